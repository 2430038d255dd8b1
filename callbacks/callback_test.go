package callbacks_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/effective-security/mcpagent/callbacks"
	"github.com/effective-security/mcpagent/chatmodel"
	"github.com/effective-security/mcpagent/pkg/llms"
	"github.com/effective-security/xlog"
	"github.com/stretchr/testify/assert"
)

func TestPrinter(t *testing.T) {
	var buf bytes.Buffer
	cb := callbacks.NewPrinter(&buf, callbacks.ModeVerbose)
	ctx := context.Background()

	cb.OnAgentStart(ctx, "test-agent", "test input")
	cb.OnLLMCallStart(ctx, "test-agent", 1, []llms.Message{llms.UserMessage("hello")})
	cb.OnLLMCallEnd(ctx, "test-agent", 1, llms.NewTextResponse("model output", nil))
	cb.OnLLMParseError(ctx, "test-agent", "not json")
	cb.OnToolStart(ctx, "test-tool", map[string]any{"a": 1})
	cb.OnToolEnd(ctx, "test-tool", nil, "test output")
	cb.OnToolError(ctx, "test-tool", nil, "Error: boom")
	cb.OnToolNotFound(ctx, "missing")
	cb.OnAgentEnd(ctx, "test-agent", chatmodel.NewResponse("final answer", nil))
	cb.OnAgentError(ctx, "test-agent", &chatmodel.TurnResult{StatusCode: 502, Error: "failed"})

	res := buf.String()
	assert.Contains(t, res, "Agent Start: test-agent")
	assert.Contains(t, res, "Input: test input")
	assert.Contains(t, res, "LLM Call: test-agent: step 1, 1 messages")
	assert.Contains(t, res, "USER: hello")
	assert.Contains(t, res, "Output: model output")
	assert.Contains(t, res, "LLM Parse Error: test-agent")
	assert.Contains(t, res, "Tool Start: test-tool")
	assert.Contains(t, res, "Tool End: test-tool")
	assert.Contains(t, res, "Output: test output")
	assert.Contains(t, res, "Tool Error: test-tool: Error: boom")
	assert.Contains(t, res, "Tool Not Found: missing")
	assert.Contains(t, res, "Agent End: test-agent")
	assert.Contains(t, res, "final answer")
	assert.Contains(t, res, "Agent Error: test-agent: 502 failed")
}

func TestPrinter_Default(t *testing.T) {
	var buf bytes.Buffer
	cb := callbacks.NewPrinter(&buf, callbacks.ModeDefault)
	ctx := context.Background()

	cb.OnLLMCallStart(ctx, "a", 2, []llms.Message{llms.UserMessage("hello")})
	cb.OnToolEnd(ctx, "t", nil, "secret output")

	res := buf.String()
	assert.Contains(t, res, "LLM Call: a: step 2, 1 messages")
	assert.NotContains(t, res, "USER: hello")
	assert.NotContains(t, res, "secret output")
}

func TestFanout(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	cb := callbacks.NewFanout(callbacks.NewPrinter(&buf1, callbacks.ModeDefault))
	cb.Add(callbacks.NewPrinter(&buf2, callbacks.ModeDefault))
	cb.Add(callbacks.NewPackageLogger(xlog.NewPackageLogger("github.com/effective-security/mcpagent", "callbacks_test")))

	ctx := context.Background()
	cb.OnAgentStart(ctx, "agent", "input")
	cb.OnAgentEnd(ctx, "agent", chatmodel.NewResponse("ok", nil))
	cb.OnAgentError(ctx, "agent", &chatmodel.TurnResult{StatusCode: 500, Error: "x"})
	cb.OnLLMCallStart(ctx, "agent", 1, nil)
	cb.OnLLMCallEnd(ctx, "agent", 1, llms.NewTextResponse("out", nil))
	cb.OnLLMParseError(ctx, "agent", "out")
	cb.OnToolStart(ctx, "tool", nil)
	cb.OnToolEnd(ctx, "tool", nil, "out")
	cb.OnToolError(ctx, "tool", nil, "Error: x")
	cb.OnToolNotFound(ctx, "nope")

	for _, res := range []string{buf1.String(), buf2.String()} {
		assert.Contains(t, res, "Agent Start: agent")
		assert.Contains(t, res, "Agent End: agent")
		assert.Contains(t, res, "Agent Error: agent: 500 x")
		assert.Contains(t, res, "Tool Start: tool")
		assert.Contains(t, res, "Tool Not Found: nope")
	}
}
