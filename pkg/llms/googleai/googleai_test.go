package googleai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/effective-security/mcpagent/pkg/llms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	_, err := New(context.Background())
	assert.ErrorIs(t, err, ErrMissingAuth)

	llm, err := New(context.Background(), WithAPIKey("key"), WithDefaultModel("gemini-2.0-flash"))
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.0-flash", llm.GetName())
	assert.Equal(t, llms.ProviderGoogleAI, llm.GetProviderType())
}

func TestToContents(t *testing.T) {
	contents := ToContents([]llms.Message{
		llms.UserMessage("q"),
		llms.AssistantMessage("a"),
	})
	require.Len(t, contents, 2)
	assert.Equal(t, RoleUser, contents[0].Role)
	assert.Equal(t, RoleModel, contents[1].Role)
	assert.Equal(t, "a", contents[1].Parts[0].Text)
}

func TestGenerateContent(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/models/gemini-1.5-flash:generateContent"), r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"candidates":[{"content":{"role":"model","parts":[{"text":" pong "}]},"finishReason":"STOP"}],
			"usageMetadata":{"promptTokenCount":2,"candidatesTokenCount":1,"totalTokenCount":3}
		}`))
	}))
	defer srv.Close()

	llm, err := New(context.Background(), WithAPIKey("key"), WithBaseURL(srv.URL))
	require.NoError(t, err)

	resp, err := llm.GenerateContent(context.Background(), []llms.Message{
		llms.SystemMessage("sys"),
		llms.UserMessage("ping"),
	})
	require.NoError(t, err)
	assert.Equal(t, "pong", resp.Text())
	assert.Equal(t, "STOP", resp.Choices[0].StopReason)
	require.NotNil(t, resp.TraceStep)
	assert.Equal(t, TraceName, resp.TraceStep.Name)
	assert.Equal(t, srv.URL+"/v1beta/models/gemini-1.5-flash:generateContent", resp.TraceStep.Request.URL)
	assert.Equal(t, http.StatusOK, resp.TraceStep.Response.Status)

	assert.NotNil(t, got["systemInstruction"])
	contents, ok := got["contents"].([]any)
	require.True(t, ok)
	assert.Len(t, contents, 1)
}

func TestGenerateContent_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"bad request","status":"INVALID_ARGUMENT"}}`))
	}))
	defer srv.Close()

	llm, err := New(context.Background(), WithAPIKey("key"), WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = llm.GenerateContent(context.Background(), []llms.Message{llms.UserMessage("ping")})
	require.Error(t, err)
	ce := llms.AsCallError(err)
	assert.Equal(t, http.StatusBadGateway, ce.StatusCode)
	assert.Equal(t, "Gemini request failed.", ce.Message)
	require.NotNil(t, ce.TraceStep)
	assert.Equal(t, http.StatusBadRequest, ce.TraceStep.Response.Status)
}
