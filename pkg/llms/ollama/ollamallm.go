package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/pkg/llms"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
	"github.com/ollama/ollama/api"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpagent/pkg/llms", "ollama")

// TraceName is the name of the trace step
const TraceName = "Ollama (Local)"

// LLM is the Ollama chat model
type LLM struct {
	client  *api.Client
	baseURL string
	Options *Options
}

var _ llms.Model = (*LLM)(nil)

// New returns Ollama model
func New(opts ...Option) (*LLM, error) {
	options := &Options{
		BaseURL:    DefaultBaseURL,
		Model:      DefaultModel,
		HTTPClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(options)
	}

	baseURL := strings.TrimRight(values.StringsCoalesce(options.BaseURL, DefaultBaseURL), "/")
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrapf(err, "ollama: invalid base URL: %s", baseURL)
	}
	if options.HTTPClient == nil {
		options.HTTPClient = http.DefaultClient
	}

	return &LLM{
		client:  api.NewClient(u, options.HTTPClient),
		baseURL: baseURL,
		Options: options,
	}, nil
}

// GetName implements the Model interface.
func (o *LLM) GetName() string {
	return o.Options.Model
}

// GetProviderType implements the Model interface.
func (o *LLM) GetProviderType() llms.ProviderType {
	return llms.ProviderOllama
}

// GenerateContent implements the Model interface.
func (o *LLM) GenerateContent(ctx context.Context, messages []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.NewCallOptions(o.Options.Model, options...)

	stream := false
	req := &api.ChatRequest{
		Model:    values.StringsCoalesce(opts.Model, o.Options.Model),
		Messages: make([]api.Message, 0, len(messages)),
		Stream:   &stream,
		Options:  map[string]any{},
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, api.Message{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	if opts.Temperature > 0 {
		req.Options["temperature"] = opts.Temperature
	}
	if opts.MaxTokens > 0 {
		req.Options["num_predict"] = opts.MaxTokens
	}
	if opts.TopP > 0 {
		req.Options["top_p"] = opts.TopP
	}
	if len(opts.StopWords) > 0 {
		req.Options["stop"] = opts.StopWords
	}
	if opts.JSONMode {
		req.Format = json.RawMessage(`"json"`)
	}

	trace := llms.NewTraceStep(TraceName, o.baseURL+"/api/chat", map[string]any{
		"model":    req.Model,
		"messages": messages,
		"options":  req.Options,
		"stream":   false,
	})

	var resp api.ChatResponse
	err := o.client.Chat(ctx, req, func(r api.ChatResponse) error {
		resp.Model = r.Model
		resp.Message.Role = r.Message.Role
		resp.Message.Content += r.Message.Content
		resp.Done = r.Done
		resp.DoneReason = r.DoneReason
		resp.Metrics = r.Metrics
		return nil
	})
	if err != nil {
		logger.ContextKV(ctx, xlog.ERROR, "model", req.Model, "err", err.Error())

		var se api.StatusError
		if errors.As(err, &se) {
			trace.WithResponse(se.StatusCode, values.StringsCoalesce(se.ErrorMessage, se.Status))
			return nil, llms.NewCallError(llms.DefaultErrorStatus, "Ollama chat request failed.", err, trace)
		}
		return nil, llms.NewCallError(llms.DefaultErrorStatus, "Could not reach local Ollama server.", err, trace)
	}

	text := strings.TrimSpace(resp.Message.Content)
	trace.WithResponse(http.StatusOK, map[string]any{
		"model":       resp.Model,
		"message":     map[string]any{"role": resp.Message.Role, "content": resp.Message.Content},
		"done":        resp.Done,
		"done_reason": resp.DoneReason,
	})

	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{
			{
				Content:    text,
				StopReason: resp.DoneReason,
				GenerationInfo: map[string]any{
					"PromptTokens":     resp.PromptEvalCount,
					"CompletionTokens": resp.EvalCount,
				},
			},
		},
		TraceStep: trace,
	}, nil
}
