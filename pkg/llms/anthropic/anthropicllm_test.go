package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/effective-security/mcpagent/pkg/llms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	_, err := New()
	assert.ErrorIs(t, err, ErrMissingToken)

	llm, err := New(WithToken("key"))
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, llm.GetName())
	assert.Equal(t, llms.ProviderAnthropic, llm.GetProviderType())
	assert.Equal(t, DefaultRequestTimeout, llm.Options.RequestTimeout)

	llm, err = New(WithToken("key"), WithRequestTimeout(time.Second), WithBaseURL("http://localhost:1/"))
	require.NoError(t, err)
	assert.Equal(t, time.Second, llm.Options.RequestTimeout)
	assert.Equal(t, "http://localhost:1", llm.Options.BaseURL)

	llm, err = New(WithToken("key"), WithRequestTimeout(0))
	require.NoError(t, err)
	assert.Equal(t, DefaultRequestTimeout, llm.Options.RequestTimeout)
}

func TestProcessMessages(t *testing.T) {
	msgs := ProcessMessages([]llms.Message{
		llms.UserMessage("a"),
		llms.UserMessage("b"),
		llms.AssistantMessage("c"),
		llms.UserMessage("d"),
	})
	require.Len(t, msgs, 3)
	assert.Len(t, msgs[0].Content, 2)
	assert.EqualValues(t, "user", msgs[0].Role)
	assert.EqualValues(t, "assistant", msgs[1].Role)
}

func TestGenerateContent(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("X-Api-Key"))
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id":"msg_1","type":"message","role":"assistant","model":"claude-3-haiku-20240307",
			"content":[{"type":"text","text":"hello "},{"type":"text","text":"world"}],
			"stop_reason":"end_turn","usage":{"input_tokens":5,"output_tokens":2}
		}`))
	}))
	defer srv.Close()

	llm, err := New(WithToken("key"), WithBaseURL(srv.URL), WithMaxRetries(0))
	require.NoError(t, err)

	resp, err := llm.GenerateContent(context.Background(), []llms.Message{
		llms.SystemMessage("one"),
		llms.SystemMessage("two"),
		llms.UserMessage("hi"),
	}, llms.WithMaxTokens(400))
	require.NoError(t, err)
	assert.Equal(t, "hello world", resp.Text())
	assert.Equal(t, "end_turn", resp.Choices[0].StopReason)
	require.NotNil(t, resp.TraceStep)
	assert.Equal(t, TraceName, resp.TraceStep.Name)
	assert.Equal(t, http.StatusOK, resp.TraceStep.Response.Status)

	assert.EqualValues(t, 400, got["max_tokens"])
	system, ok := got["system"].([]any)
	require.True(t, ok)
	require.Len(t, system, 1)
	assert.Equal(t, "one\n\ntwo", system[0].(map[string]any)["text"])
}

func TestGenerateContent_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"permission_error","message":"denied"}}`))
	}))
	defer srv.Close()

	llm, err := New(WithToken("key"), WithBaseURL(srv.URL), WithMaxRetries(0))
	require.NoError(t, err)

	_, err = llm.GenerateContent(context.Background(), []llms.Message{llms.UserMessage("hi")})
	require.Error(t, err)
	ce := llms.AsCallError(err)
	assert.Equal(t, http.StatusForbidden, ce.StatusCode)
	assert.Equal(t, "Anthropic request failed.", ce.Message)
	require.NotNil(t, ce.TraceStep)
	assert.Equal(t, http.StatusForbidden, ce.TraceStep.Response.Status)
}
