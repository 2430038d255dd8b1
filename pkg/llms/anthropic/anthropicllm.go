package anthropic

import (
	"context"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/pkg/llms"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpagent/pkg/llms", "anthropic")

var (
	ErrEmptyResponse = errors.New("anthropic: no response")
	ErrMissingToken  = errors.New("anthropic: missing API key")
)

const (
	// TraceName is the name of the trace step
	TraceName = "Anthropic"

	DefaultMaxTokens = 4096
)

type LLM struct {
	Client  *anthropic.Client
	Options *Options
}

var _ llms.Model = (*LLM)(nil)

// New creates a new Anthropic LLM client using the official Anthropic SDK.
//
// Required configuration:
//   - API token (via WithToken option)
//
// Example usage:
//
//	llm, err := anthropic.New(
//	    anthropic.WithToken("your-api-key"),
//	    anthropic.WithModel("claude-3-5-sonnet-20241022"),
//	)
func New(opts ...Option) (*LLM, error) {
	options := &Options{
		BaseURL:        DefaultBaseURL,
		Model:          DefaultModel,
		HTTPClient:     http.DefaultClient,
		MaxRetries:     2,
		RequestTimeout: DefaultRequestTimeout,
	}

	for _, opt := range opts {
		opt(options)
	}

	if len(options.Token) == 0 {
		return nil, ErrMissingToken
	}
	options.BaseURL = strings.TrimRight(values.StringsCoalesce(options.BaseURL, DefaultBaseURL), "/")

	return &LLM{
		Client:  newClient(options),
		Options: options,
	}, nil
}

func newClient(options *Options) *anthropic.Client {
	sdkOpts := []option.RequestOption{
		option.WithAPIKey(options.Token),
		option.WithMaxRetries(options.MaxRetries),
		option.WithRequestTimeout(options.RequestTimeout),
		option.WithBaseURL(options.BaseURL + "/"),
	}

	if options.HTTPClient != nil {
		sdkOpts = append(sdkOpts, option.WithHTTPClient(options.HTTPClient))
	}

	client := anthropic.NewClient(sdkOpts...)
	return &client
}

// GetName implements the Model interface.
func (o *LLM) GetName() string {
	return o.Options.Model
}

// GetProviderType implements the Model interface.
func (o *LLM) GetProviderType() llms.ProviderType {
	return llms.ProviderAnthropic
}

// GenerateContent implements the Model interface.
//
// System messages are joined into the system prompt,
// the rest of the conversation is sent as user and assistant turns.
func (o *LLM) GenerateContent(ctx context.Context, messages []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.NewCallOptions(o.Options.Model, options...)
	model := values.StringsCoalesce(opts.Model, o.Options.Model)

	systemPrompt, conversation := llms.SplitSystem(messages)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  ProcessMessages(conversation),
		MaxTokens: values.NumbersCoalesce(int64(opts.MaxTokens), DefaultMaxTokens),
	}

	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{
			{
				Type: "text",
				Text: systemPrompt,
			},
		}
	}
	if opts.Temperature > 0 {
		params.Temperature = anthropic.Float(opts.Temperature)
	}
	if opts.TopP > 0 {
		params.TopP = anthropic.Float(opts.TopP)
	}
	if len(opts.StopWords) > 0 {
		params.StopSequences = opts.StopWords
	}

	trace := llms.NewTraceStep(TraceName, o.Options.BaseURL+"/v1/messages", map[string]any{
		"model":      model,
		"max_tokens": params.MaxTokens,
		"system":     systemPrompt,
		"messages":   conversation,
	})

	result, err := o.Client.Messages.New(ctx, params)
	if err != nil {
		logger.ContextKV(ctx, xlog.ERROR, "model", model, "err", err.Error())

		status := llms.DefaultErrorStatus
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			status = apiErr.StatusCode
		}
		return nil, llms.NewCallError(status, "Anthropic request failed.", err, trace)
	}

	var text strings.Builder
	for _, block := range result.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(tb.Text)
		}
	}
	content := strings.TrimSpace(text.String())

	trace.WithResponse(http.StatusOK, map[string]any{
		"id":          result.ID,
		"model":       result.Model,
		"stop_reason": result.StopReason,
		"text":        content,
		"usage": map[string]any{
			"input_tokens":  result.Usage.InputTokens,
			"output_tokens": result.Usage.OutputTokens,
		},
	})

	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{
			{
				Content:    content,
				StopReason: string(result.StopReason),
				GenerationInfo: map[string]any{
					"InputTokens":  result.Usage.InputTokens,
					"OutputTokens": result.Usage.OutputTokens,
					"TotalTokens":  result.Usage.InputTokens + result.Usage.OutputTokens,
					"ID":           result.ID,
				},
			},
		},
		TraceStep: trace,
	}, nil
}

// ProcessMessages converts the conversation to Anthropic message params.
// Consecutive messages of the same role are merged, as the API requires alternating turns.
func ProcessMessages(messages []llms.Message) []anthropic.MessageParam {
	type turn struct {
		role  llms.Role
		parts []string
	}
	var turns []*turn
	for _, m := range messages {
		role := m.Role
		if role != llms.RoleUser {
			role = llms.RoleAssistant
		}
		if n := len(turns); n > 0 && turns[n-1].role == role {
			turns[n-1].parts = append(turns[n-1].parts, m.Content)
			continue
		}
		turns = append(turns, &turn{role: role, parts: []string{m.Content}})
	}

	res := make([]anthropic.MessageParam, 0, len(turns))
	for _, t := range turns {
		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(t.parts))
		for _, p := range t.parts {
			blocks = append(blocks, anthropic.NewTextBlock(p))
		}
		if t.role == llms.RoleUser {
			res = append(res, anthropic.NewUserMessage(blocks...))
		} else {
			res = append(res, anthropic.NewAssistantMessage(blocks...))
		}
	}
	return res
}
