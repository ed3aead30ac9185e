package tracing

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/logger"
)

func TestSpanTree(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "search", "req-1")
	childCtx, child := StartChildSpan(ctx, "rank")
	child.SetAttr("candidates", 3)
	child.End()
	root.End()

	assert.Same(t, child, SpanFromContext(childCtx))
	require.Len(t, root.Children, 1)
	assert.Equal(t, "req-1", child.TraceID)
	assert.GreaterOrEqual(t, root.Duration, child.Duration)
}

func TestChildWithoutParent(t *testing.T) {
	_, span := StartChildSpan(context.Background(), "orphan")
	span.End()
	assert.Empty(t, span.TraceID)
	assert.Nil(t, SpanFromContext(context.Background()))
}

func TestLogOnlyAtDebug(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "search", "req-2")
	_, child := StartChildSpan(ctx, "tokenize")
	child.End()
	root.End()

	var buf bytes.Buffer
	root.Log(logger.New(&buf, "info", "text"))
	assert.Empty(t, buf.String())

	root.Log(logger.New(&buf, "debug", "text"))
	out := buf.String()
	assert.Equal(t, 2, strings.Count(out, "msg=span"))
	assert.Contains(t, out, "span=tokenize")
	assert.Contains(t, out, "trace_id=req-2")
}
