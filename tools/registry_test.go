package tools

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rawTool struct {
	name   string
	params any
	output string
	err    error
}

func (r *rawTool) Name() string        { return r.name }
func (r *rawTool) Description() string { return "raw " + r.name }
func (r *rawTool) Parameters() any     { return r.params }
func (r *rawTool) Call(_ context.Context, _ string) (string, error) {
	return r.output, r.err
}

type recorder struct {
	lock   sync.Mutex
	events []string
}

func (r *recorder) add(ev string) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) OnToolStart(_ context.Context, tool string, _ map[string]any) {
	r.add("start:" + tool)
}

func (r *recorder) OnToolEnd(_ context.Context, tool string, _ map[string]any, _ string) {
	r.add("end:" + tool)
}

func (r *recorder) OnToolError(_ context.Context, tool string, _ map[string]any, _ string) {
	r.add("error:" + tool)
}

func (r *recorder) OnToolNotFound(_ context.Context, tool string) {
	r.add("notfound:" + tool)
}

func TestRegistry_Register(t *testing.T) {
	r, err := NewRegistry(newEcho(t), &rawTool{name: "Raw"})
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []string{"echo", "raw"}, r.Names())
	assert.True(t, r.Has(" RAW "))
	assert.False(t, r.Has("missing"))

	_, ok := r.Get("Echo")
	assert.True(t, ok)

	assert.EqualError(t, r.Register(&rawTool{name: "echo"}), "tool already registered: echo")
	assert.EqualError(t, r.Register(&rawTool{name: "  "}), "tool name is required")

	_, err = NewRegistry(&rawTool{name: "a"}, &rawTool{name: "A"})
	assert.Error(t, err)
}

func TestRegistry_Descriptors(t *testing.T) {
	r, err := NewRegistry(
		&rawTool{name: "nil"},
		&rawTool{name: "raw", params: json.RawMessage(`{"type":"object","properties":{"q":{"type":"string"}}}`)},
		&rawTool{name: "map", params: map[string]any{"type": "object"}},
	)
	require.NoError(t, err)

	list := r.Descriptors()
	require.Len(t, list, 3)
	assert.JSONEq(t, `{"type":"object","properties":{}}`, string(list[0].InputSchema))
	assert.Equal(t, `- raw: raw raw input={"type":"object","properties":{"q":{"type":"string"}}}`, list[1].CatalogLine())
	assert.JSONEq(t, `{"type":"object"}`, string(list[2].InputSchema))

	js, err := json.Marshal(list[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"nil","description":"raw nil","inputSchema":{"type":"object","properties":{}}}`, string(js))

	assert.Equal(t, "- x: y input={}", Descriptor{Name: "x", Description: "y"}.CatalogLine())
}

func TestRegistry_RunTool(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	r, err := NewRegistry(
		newEcho(t),
		&rawTool{name: "texterr", output: "Error: bad thing"},
		&rawTool{name: "plain", output: "just text"},
	)
	require.NoError(t, err)
	r.WithCallback(rec)

	out, meta := r.RunTool(ctx, "echo", map[string]any{"text": "hi"})
	assert.JSONEq(t, `{"text":"hi"}`, out)
	assert.Equal(t, "echo", meta["tool"])
	assert.Equal(t, map[string]any{"text": "hi"}, meta["input"])
	assert.Equal(t, map[string]any{"text": "hi"}, meta["response"])
	assert.NotContains(t, meta, "error")

	out, meta = r.RunTool(ctx, "plain", nil)
	assert.Equal(t, "just text", out)
	assert.Equal(t, map[string]any{"result": "just text"}, meta["response"])
	assert.Equal(t, map[string]any{}, meta["input"])

	out, meta = r.RunTool(ctx, "echo", map[string]any{"text": "fail"})
	assert.Equal(t, "Error: asked to fail", out)
	assert.Equal(t, "asked to fail", meta["error"])

	out, meta = r.RunTool(ctx, "texterr", nil)
	assert.Equal(t, "Error: bad thing", out)
	assert.Equal(t, "bad thing", meta["error"])

	out, meta = r.RunTool(ctx, "Nope", nil)
	assert.Equal(t, "Error: unknown tool `nope`", out)
	assert.Equal(t, "unknown tool", meta["error"])

	assert.Equal(t, []string{
		"start:echo", "end:echo",
		"start:plain", "end:plain",
		"start:echo", "error:echo",
		"start:texterr", "error:texterr",
		"notfound:nope",
	}, rec.events)
}
