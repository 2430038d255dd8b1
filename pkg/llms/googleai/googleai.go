package googleai

import (
	"context"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/pkg/llms"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
	"google.golang.org/genai"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpagent/pkg/llms", "googleai")

const (
	// TraceName is the name of the trace step
	TraceName = "Google Gemini"

	RoleModel = "model"
	RoleUser  = "user"

	ResponseMIMETypeJson = "application/json"
)

// GetName implements the Model interface.
func (g *GoogleAI) GetName() string {
	return g.opts.DefaultModel
}

// GetProviderType implements the Model interface.
func (g *GoogleAI) GetProviderType() llms.ProviderType {
	return llms.ProviderGoogleAI
}

// GenerateContent implements the [llms.Model] interface.
func (g *GoogleAI) GenerateContent(
	ctx context.Context,
	messages []llms.Message,
	options ...llms.CallOption,
) (*llms.ContentResponse, error) {
	opts := llms.NewCallOptions(g.opts.DefaultModel, options...)
	model := values.StringsCoalesce(opts.Model, g.opts.DefaultModel)

	systemPrompt, conversation := llms.SplitSystem(messages)

	callCfg := &genai.GenerateContentConfig{
		StopSequences: opts.StopWords,
	}
	if opts.MaxTokens > 0 {
		callCfg.MaxOutputTokens = int32(opts.MaxTokens) //nolint:gosec
	}
	if opts.Temperature > 0 {
		t := float32(opts.Temperature)
		callCfg.Temperature = &t
	}
	if opts.TopP > 0 {
		p := float32(opts.TopP)
		callCfg.TopP = &p
	}
	if opts.JSONMode {
		callCfg.ResponseMIMEType = ResponseMIMETypeJson
	}
	if systemPrompt != "" {
		callCfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: systemPrompt}},
		}
	}

	contents := ToContents(conversation)

	trace := llms.NewTraceStep(TraceName, g.baseURL+"/v1beta/models/"+model+":generateContent", map[string]any{
		"model":              model,
		"system_instruction": systemPrompt,
		"contents":           conversation,
	})

	result, err := g.client.Models.GenerateContent(ctx, model, contents, callCfg)
	if err != nil {
		logger.ContextKV(ctx, xlog.ERROR, "model", model, "err", err.Error())
		trace.WithResponse(errorStatus(err), map[string]any{"error": err.Error()})
		return nil, llms.NewCallError(llms.DefaultErrorStatus, "Gemini request failed.", err, trace)
	}
	if result == nil || len(result.Candidates) == 0 {
		trace.WithResponse(llms.DefaultErrorStatus, map[string]any{"candidates": []any{}})
		return nil, llms.NewCallError(llms.DefaultErrorStatus, "Gemini request failed.", errors.New("no candidates in response"), trace)
	}

	text := strings.TrimSpace(result.Text())
	stopReason := ""
	if result.Candidates[0] != nil {
		stopReason = string(result.Candidates[0].FinishReason)
	}

	info := map[string]any{}
	if result.UsageMetadata != nil {
		info["PromptTokens"] = result.UsageMetadata.PromptTokenCount
		info["CompletionTokens"] = result.UsageMetadata.CandidatesTokenCount
		info["TotalTokens"] = result.UsageMetadata.TotalTokenCount
	}

	trace.WithResponse(http.StatusOK, map[string]any{
		"model":         model,
		"text":          text,
		"finish_reason": stopReason,
		"usage":         info,
	})

	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{
			{
				Content:        text,
				StopReason:     stopReason,
				GenerationInfo: info,
			},
		},
		TraceStep: trace,
	}, nil
}

// ToContents converts the conversation to genai contents,
// assistant messages are sent with the model role.
func ToContents(messages []llms.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		role := RoleModel
		if m.Role == llms.RoleUser {
			role = RoleUser
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Content}},
		})
	}
	return contents
}

func errorStatus(err error) int {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code > 0 {
		return apiErr.Code
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr.Code > 0 {
		return apiErrPtr.Code
	}
	return llms.DefaultErrorStatus
}
