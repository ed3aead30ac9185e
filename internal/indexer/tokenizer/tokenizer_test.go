package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"lowercases and splits", "The Cat sat", []string{"the", "cat", "sat"}},
		{"punctuation boundaries", "cats,and--dogs!", []string{"cats", "and", "dogs"}},
		{"digits kept", "BM25 in 2024", []string{"bm25", "in", "2024"}},
		{"unicode letters", "Café crème", []string{"café", "crème"}},
		{"only separators", "  ...  ", nil},
		{"empty", "", nil},
		{"single letters kept", "a b c", []string{"a", "b", "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Default.Tokenize(tt.text)
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTokenizeDeterministic(t *testing.T) {
	text := "Distributed search engines process queries across multiple shards"
	assert.Equal(t, Default.Tokenize(text), Default.Tokenize(text))
}

func TestStemming(t *testing.T) {
	tok, err := NewStemming("english", true)
	require.NoError(t, err)

	got := tok.Tokenize("The cats are running with the dogs")
	assert.Equal(t, []string{"cat", "run", "dog"}, got)
}

func TestStemmingKeepsStopWordsWhenAsked(t *testing.T) {
	tok, err := NewStemming("english", false)
	require.NoError(t, err)

	got := tok.Tokenize("the cats")
	assert.Equal(t, []string{"the", "cat"}, got)
}

func TestNewStemmingUnknownLanguage(t *testing.T) {
	_, err := NewStemming("klingon", false)
	assert.Error(t, err)
}

func TestFromName(t *testing.T) {
	tok, err := FromName("default", "english", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"the", "cat"}, tok.Tokenize("The cat"))

	tok, err = FromName("default", "english", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"cat"}, tok.Tokenize("The cat"))

	_, err = FromName("whitespace", "english", false)
	assert.Error(t, err)
}

func TestFuncAdapter(t *testing.T) {
	var tok Tokenizer = Func(func(text string) []string { return []string{text} })
	assert.Equal(t, []string{"raw"}, tok.Tokenize("raw"))
}
