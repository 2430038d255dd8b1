package chatmodel

import (
	goerr "errors"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/pkg/llms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrFailedUnmarshalInput(t *testing.T) {
	err := ErrFailedUnmarshalInput
	assert.True(t, goerr.Is(err, ErrFailedUnmarshalInput))
	assert.True(t, goerr.Is(errors.WithStack(err), ErrFailedUnmarshalInput))
	assert.True(t, goerr.Is(errors.Wrap(err, "test"), ErrFailedUnmarshalInput))
	assert.True(t, goerr.Is(errors.WithMessage(err, "test"), ErrFailedUnmarshalInput))
	assert.False(t, goerr.Is(err, ErrInvalidChatContext))
	assert.False(t, goerr.Is(err, ErrFailedUnmarshalOutput))
}

func TestTurnResult(t *testing.T) {
	res := NewResponse("done", nil)
	assert.Equal(t, 200, res.StatusCode)
	assert.False(t, res.Failed())
	assert.Equal(t, "done", res.Response)
	assert.NotNil(t, res.AgentTrace)

	step := llms.NewTraceStep("OpenAI", "https://api.openai.com/v1/chat/completions", nil)
	ferr := NewFailure(llms.NewCallError(401, "OpenAI request failed.", errors.New("bad key"), step), "Agent LLM call failed.", nil)
	assert.True(t, ferr.Failed())
	assert.Equal(t, 401, ferr.StatusCode)
	assert.Equal(t, "OpenAI request failed.", ferr.Error)
	assert.Equal(t, "bad key", ferr.Details)
	require.NotNil(t, ferr.Trace)
	require.Len(t, ferr.Trace.Steps, 1)
	assert.Equal(t, step, ferr.Trace.Steps[0])

	ferr = NewFailure(&llms.CallError{}, "Agent LLM call failed.", nil)
	assert.Equal(t, 502, ferr.StatusCode)
	assert.Equal(t, "Agent LLM call failed.", ferr.Error)
	assert.Empty(t, ferr.Trace.Steps)
}

func TestTraceEntries(t *testing.T) {
	entries := []*TraceEntry{
		{Kind: KindLLM, Step: 1},
		{Kind: KindTool, Step: 1},
		{Kind: KindMCP, Step: 0, Event: EventToolsList},
		{Kind: KindTool, Step: 2},
	}
	assert.Equal(t, 2, CountKind(entries, KindTool))
	assert.Equal(t, 0, CountKind(entries, KindMultiAgent))
	assert.Equal(t, 0, CountKind(nil, KindTool))
	assert.True(t, *Bool(true))
	assert.False(t, *Bool(false))
}
