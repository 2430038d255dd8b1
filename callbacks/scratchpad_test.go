package callbacks

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/effective-security/mcpagent/chatmodel"
	"github.com/effective-security/mcpagent/pkg/llms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChatContext() (context.Context, chatmodel.ChatContext) {
	chatCtx := chatmodel.NewChatContext("chatid")
	ctx := chatmodel.WithChatContext(context.Background(), chatCtx)
	return ctx, chatCtx
}

func TestScratchpad_StartRun_EndRun(t *testing.T) {
	sp := NewScratchpad(ModeVerbose)
	ctx, cctx := newTestChatContext()
	sp.StartRun(ctx)

	r := sp.runs[cctx.GetChatID()]
	require.NotNil(t, r)
	r.stats.AgentCalls = 2
	r.stats.AgentCallsFailed = 1
	r.stats.ToolsCalls = 3
	r.stats.ToolsCallsFailed = 2
	r.stats.ToolNotFound = 1
	r.stats.LLMCalls = 1
	r.stats.TotalMessages = 4
	r.stats.LLMBytesOut = 10
	r.stats.LLMBytesIn = 11

	stats, buf := sp.EndRun(ctx)
	require.NotNil(t, stats)
	assert.Equal(t, "chatid", stats.ChatID)
	out := string(buf)
	assert.Contains(t, out, "Run Started")
	assert.Contains(t, out, "Run Ended")
	assert.Contains(t, out, "Agent calls: 2, Failed: 1")
	assert.Contains(t, out, "Tool calls: 3, Failed: 2, Not Found: 1")
	assert.Contains(t, out, "Bytes Total: 21")

	_, ok := sp.runs[cctx.GetChatID()]
	assert.False(t, ok)

	s2, _ := sp.EndRun(ctx)
	assert.Nil(t, s2)
}

func TestScratchpad_getRun_nil(t *testing.T) {
	sp := NewScratchpad(ModeDefault)
	assert.Nil(t, sp.getRun(context.Background()))

	sp.StartRun(context.Background())
	assert.Empty(t, sp.runs)

	ctx, _ := newTestChatContext()
	assert.Nil(t, sp.getRun(ctx))
}

func TestScratchpad_OnCallbacks(t *testing.T) {
	sp := NewScratchpad(ModeVerbose)
	ctx, _ := newTestChatContext()
	sp.StartRun(ctx)

	resp := &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{
			Content:        "Answer 1",
			GenerationInfo: map[string]any{"PromptTokens": 7, "CompletionTokens": 3, "TotalTokens": 10},
		}},
	}
	messages := []llms.Message{llms.SystemMessage("sys"), llms.UserMessage("foo")}

	sp.OnAgentStart(ctx, "A1", "input")
	sp.OnLLMCallStart(ctx, "A1", 1, messages)
	sp.OnLLMCallEnd(ctx, "A1", 1, resp)
	sp.OnLLMParseError(ctx, "A1", "output")
	sp.OnToolStart(ctx, "T1", map[string]any{"x": "y"})
	sp.OnToolEnd(ctx, "T1", nil, "toutput")
	sp.OnToolError(ctx, "T1", nil, "Error: terr")
	sp.OnToolNotFound(ctx, "T2")
	sp.OnAgentEnd(ctx, "A1", chatmodel.NewResponse("done", nil))
	sp.OnAgentError(ctx, "A1", &chatmodel.TurnResult{StatusCode: 502, Error: "fail", Details: "upstream"})

	stats, output := sp.EndRun(ctx)
	require.NotNil(t, stats)
	assert.Equal(t, uint32(1), stats.AgentCalls)
	assert.Equal(t, uint32(1), stats.AgentCallsSucceeded)
	assert.Equal(t, uint32(1), stats.AgentCallsFailed)
	assert.Equal(t, uint32(1), stats.LLMCalls)
	assert.Equal(t, uint32(1), stats.LLMParseErrors)
	assert.Equal(t, uint32(2), stats.TotalMessages)
	assert.Equal(t, uint64(8), stats.LLMBytesIn)
	assert.Equal(t, uint64(7), stats.LLMInputTokens)
	assert.Equal(t, uint64(3), stats.LLMOutputTokens)
	assert.Equal(t, uint64(10), stats.LLMTotalTokens)
	assert.Equal(t, uint32(1), stats.ToolsCalls)
	assert.Equal(t, uint32(1), stats.ToolsCallsSucceeded)
	assert.Equal(t, uint32(1), stats.ToolsCallsFailed)
	assert.Equal(t, uint32(1), stats.ToolNotFound)

	outStr := string(output)
	assert.Contains(t, outStr, "A1 *** Agent Start ***")
	assert.Contains(t, outStr, "A1 *** Agent End ***")
	assert.Contains(t, outStr, "T1 *** Tool Start ***")
	assert.Contains(t, outStr, `T1 Input: {"x":"y"}`)
	assert.Contains(t, outStr, "T1 *** Tool End ***")
	assert.Contains(t, outStr, "*** LLM Call *** step 1, 2 messages")
	assert.Contains(t, outStr, "[1] user: foo")
	assert.Contains(t, outStr, "LLM Parse Error")
	assert.Contains(t, outStr, "*** Error *** 502 fail")
	assert.Contains(t, outStr, "Details: upstream")
	assert.Contains(t, outStr, "*** Tool Not Found *** T2")

	// no run: events are ignored
	sp.OnAgentStart(ctx, "A1", "input")
	sp.OnLLMCallStart(ctx, "A1", 1, nil)
	sp.OnLLMCallEnd(ctx, "A1", 1, resp)
	sp.OnLLMParseError(ctx, "A1", "output")
	sp.OnToolStart(ctx, "T1", nil)
	sp.OnToolEnd(ctx, "T1", nil, "toutput")
	sp.OnToolError(ctx, "T1", nil, "Error: terr2")
	sp.OnToolNotFound(ctx, "T3")
	sp.OnAgentEnd(ctx, "A1", chatmodel.NewResponse("done", nil))
	sp.OnAgentError(ctx, "A1", &chatmodel.TurnResult{StatusCode: 502})
	assert.Empty(t, sp.runs)
}

func Test_run_print_format(t *testing.T) {
	_, chatCtx := newTestChatContext()
	r := &run{chatCtx: chatCtx}
	oldTimeFn := TimeNowFn
	TimeNowFn = func() time.Time { return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC) }
	defer func() { TimeNowFn = oldTimeFn }()

	r.print("hello", "again")
	lines := strings.Split(r.w.String(), "\n")
	require.NotEmpty(t, lines[0])
	assert.Equal(t, "2024-01-01 12:00:00 chatid hello again", lines[0])
}
