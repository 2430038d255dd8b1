package openai

import (
	"context"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/pkg/llms"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpagent/pkg/llms", "openai")

// ErrMissingToken is returned when the API key is not configured
var ErrMissingToken = errors.New("openai: missing API key")

// LLM is the OpenAI chat completions model
type LLM struct {
	Client  *openai.Client
	Options *Options
}

var _ llms.Model = (*LLM)(nil)

// New returns a new OpenAI LLM.
func New(opts ...Option) (*LLM, error) {
	options := &Options{
		BaseURL:    DefaultBaseURL,
		Model:      DefaultModel,
		Name:       "OpenAI",
		MaxRetries: 2,
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.Token == "" {
		return nil, ErrMissingToken
	}
	options.BaseURL = strings.TrimRight(values.StringsCoalesce(options.BaseURL, DefaultBaseURL), "/")

	sdkOpts := []option.RequestOption{
		option.WithAPIKey(options.Token),
		option.WithBaseURL(options.BaseURL + "/"),
		option.WithMaxRetries(options.MaxRetries),
	}
	if options.Organization != "" {
		sdkOpts = append(sdkOpts, option.WithOrganization(options.Organization))
	}
	if options.HTTPClient != nil {
		sdkOpts = append(sdkOpts, option.WithHTTPClient(options.HTTPClient))
	}

	client := openai.NewClient(sdkOpts...)
	return &LLM{
		Client:  &client,
		Options: options,
	}, nil
}

// GetName implements the Model interface.
func (o *LLM) GetName() string {
	return o.Options.Model
}

// GetProviderType implements the Model interface.
func (o *LLM) GetProviderType() llms.ProviderType {
	return llms.ProviderOpenAI
}

// GenerateContent implements the Model interface.
func (o *LLM) GenerateContent(ctx context.Context, messages []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.NewCallOptions(o.Options.Model, options...)
	model := values.StringsCoalesce(opts.Model, o.Options.Model)

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)),
	}
	for _, m := range messages {
		switch m.Role {
		case llms.RoleSystem:
			params.Messages = append(params.Messages, openai.SystemMessage(m.Content))
		case llms.RoleUser:
			params.Messages = append(params.Messages, openai.UserMessage(m.Content))
		default:
			params.Messages = append(params.Messages, openai.AssistantMessage(m.Content))
		}
	}

	payload := map[string]any{
		"model":    model,
		"messages": messages,
	}
	if opts.Temperature > 0 {
		params.Temperature = openai.Float(opts.Temperature)
		payload["temperature"] = opts.Temperature
	}
	if opts.TopP > 0 {
		params.TopP = openai.Float(opts.TopP)
	}
	if opts.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(opts.MaxTokens))
		payload["max_completion_tokens"] = opts.MaxTokens
	}
	if len(opts.StopWords) > 0 {
		params.Stop = openai.ChatCompletionNewParamsStopUnion{OfStringArray: opts.StopWords}
	}
	if opts.JSONMode {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
		payload["response_format"] = map[string]any{"type": "json_object"}
	}

	trace := llms.NewTraceStep(o.Options.Name, o.Options.BaseURL+"/chat/completions", payload)

	resp, err := o.Client.Chat.Completions.New(ctx, params)
	if err != nil {
		logger.ContextKV(ctx, xlog.ERROR, "model", model, "err", err.Error())

		status := llms.DefaultErrorStatus
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			status = apiErr.StatusCode
		}
		return nil, llms.NewCallError(status, o.Options.Name+" request failed.", err, trace)
	}
	if len(resp.Choices) == 0 {
		trace.WithResponse(llms.DefaultErrorStatus, map[string]any{"id": resp.ID, "model": resp.Model, "choices": []any{}})
		return nil, llms.NewCallError(llms.DefaultErrorStatus, o.Options.Name+" request failed.", errors.New("empty response"), trace)
	}

	choice := resp.Choices[0]
	text := strings.TrimSpace(choice.Message.Content)
	trace.WithResponse(http.StatusOK, map[string]any{
		"id":     resp.ID,
		"model":  resp.Model,
		"object": resp.Object,
		"choices": []map[string]any{
			{
				"index":         choice.Index,
				"finish_reason": choice.FinishReason,
				"message":       map[string]any{"role": choice.Message.Role, "content": text},
			},
		},
		"usage": map[string]any{
			"prompt_tokens":     resp.Usage.PromptTokens,
			"completion_tokens": resp.Usage.CompletionTokens,
			"total_tokens":      resp.Usage.TotalTokens,
		},
	})

	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{
			{
				Content:    text,
				StopReason: string(choice.FinishReason),
				GenerationInfo: map[string]any{
					"CompletionTokens": resp.Usage.CompletionTokens,
					"PromptTokens":     resp.Usage.PromptTokens,
					"TotalTokens":      resp.Usage.TotalTokens,
				},
			},
		},
		TraceStep: trace,
	}, nil
}
