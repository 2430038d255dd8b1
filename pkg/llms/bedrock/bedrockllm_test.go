package bedrock

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/effective-security/mcpagent/pkg/llms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLLM(t *testing.T, url string) *LLM {
	llm, err := New(context.Background(),
		WithRegion("us-west-2"),
		WithEndpoint(url),
		WithStaticCredentials("AKIDEXAMPLE", "secret", ""),
	)
	require.NoError(t, err)
	return llm
}

func TestToMessages(t *testing.T) {
	msgs := ToMessages([]llms.Message{
		llms.UserMessage("q"),
		llms.AssistantMessage("a"),
	})
	require.Len(t, msgs, 2)
	assert.Equal(t, types.ConversationRoleUser, msgs[0].Role)
	assert.Equal(t, types.ConversationRoleAssistant, msgs[1].Role)

	assert.Empty(t, OutputText(nil))
	assert.Equal(t, "ab", OutputText(&types.ConverseOutputMemberMessage{
		Value: types.Message{Content: []types.ContentBlock{
			&types.ContentBlockMemberText{Value: "a"},
			&types.ContentBlockMemberText{Value: "b"},
		}},
	}))
}

func TestGenerateContent(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/converse"), r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"output":{"message":{"role":"assistant","content":[{"text":" hi there "}]}},
			"stopReason":"end_turn",
			"usage":{"inputTokens":3,"outputTokens":2,"totalTokens":5},
			"metrics":{"latencyMs":10}
		}`))
	}))
	defer srv.Close()

	llm := newTestLLM(t, srv.URL)
	assert.Equal(t, DefaultModel, llm.GetName())
	assert.Equal(t, llms.ProviderBedrock, llm.GetProviderType())

	resp, err := llm.GenerateContent(context.Background(), []llms.Message{
		llms.SystemMessage("sys"),
		llms.UserMessage("hello"),
	}, llms.WithMaxTokens(400), llms.WithTemperature(0.2))
	require.NoError(t, err)
	assert.Equal(t, "hi there", resp.Text())
	assert.Equal(t, "end_turn", resp.Choices[0].StopReason)
	require.NotNil(t, resp.TraceStep)
	assert.Equal(t, TraceName, resp.TraceStep.Name)
	assert.Equal(t, http.StatusOK, resp.TraceStep.Response.Status)

	cfg, ok := got["inferenceConfig"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 400, cfg["maxTokens"])
	system, ok := got["system"].([]any)
	require.True(t, ok)
	assert.Len(t, system, 1)
}

func TestGenerateContent_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Amzn-ErrorType", "AccessDeniedException")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"denied"}`))
	}))
	defer srv.Close()

	llm := newTestLLM(t, srv.URL)
	_, err := llm.GenerateContent(context.Background(), []llms.Message{llms.UserMessage("hello")})
	require.Error(t, err)
	ce := llms.AsCallError(err)
	assert.Equal(t, http.StatusForbidden, ce.StatusCode)
	assert.Equal(t, "Bedrock invoke request failed.", ce.Message)
	require.NotNil(t, ce.TraceStep)
	assert.Equal(t, http.StatusForbidden, ce.TraceStep.Response.Status)
}
