package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalDeterministic(t *testing.T) {
	a := map[string]any{"source": "wiki", "rank": 3, "tags": []any{"x", "y"}}
	b := map[string]any{"tags": []any{"x", "y"}, "rank": 3, "source": "wiki"}

	first, err := Marshal(a)
	require.NoError(t, err)
	second, err := Marshal(b)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(first, second), "map key order must not affect encoding")
}

func TestNestedMapsDecodeAsStringKeyed(t *testing.T) {
	data, err := Marshal(map[string]any{"author": map[string]any{"name": "ada"}})
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, Unmarshal(data, &out))
	author, ok := out["author"].(map[string]any)
	require.True(t, ok, "nested map decoded as %T", out["author"])
	assert.Equal(t, "ada", author["name"])
}
