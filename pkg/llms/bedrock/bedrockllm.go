package bedrock

import (
	"context"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/pkg/llms"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpagent/pkg/llms", "bedrock")

// TraceName is the name of the trace step
const TraceName = "AWS Bedrock"

// LLM is a Bedrock LLM implementation on top of the Converse API.
type LLM struct {
	modelID string
	region  string
	client  *bedrockruntime.Client
}

var _ llms.Model = (*LLM)(nil)

// New creates a new Bedrock LLM implementation.
func New(ctx context.Context, opts ...Option) (*LLM, error) {
	o := &options{
		modelID: DefaultModel,
		region:  DefaultRegion,
	}
	for _, opt := range opts {
		opt(o)
	}

	client := o.client
	if client == nil {
		loadOpts := []func(*config.LoadOptions) error{
			config.WithRegion(values.StringsCoalesce(o.region, DefaultRegion)),
		}
		if o.accessKeyID != "" {
			loadOpts = append(loadOpts, config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(o.accessKeyID, o.secretAccessKey, o.sessionToken),
			))
		}
		cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, errors.Wrap(err, "bedrock: failed to load AWS config")
		}
		client = bedrockruntime.NewFromConfig(cfg, func(bo *bedrockruntime.Options) {
			if o.endpoint != "" {
				bo.BaseEndpoint = aws.String(o.endpoint)
			}
		})
	}

	return &LLM{
		client:  client,
		modelID: o.modelID,
		region:  o.region,
	}, nil
}

// GetName implements the Model interface.
func (l *LLM) GetName() string {
	return l.modelID
}

// GetProviderType implements the Model interface.
func (l *LLM) GetProviderType() llms.ProviderType {
	return llms.ProviderBedrock
}

// GenerateContent implements llms.Model.
func (l *LLM) GenerateContent(ctx context.Context, messages []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.NewCallOptions(l.modelID, options...)
	modelID := values.StringsCoalesce(opts.Model, l.modelID)

	systemPrompt, conversation := llms.SplitSystem(messages)

	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(modelID),
		Messages: ToMessages(conversation),
	}
	if systemPrompt != "" {
		input.System = []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: systemPrompt},
		}
	}

	inference := map[string]any{}
	if opts.MaxTokens > 0 || opts.Temperature > 0 || opts.TopP > 0 || len(opts.StopWords) > 0 {
		input.InferenceConfig = &types.InferenceConfiguration{}
		if opts.MaxTokens > 0 {
			input.InferenceConfig.MaxTokens = aws.Int32(int32(opts.MaxTokens)) //nolint:gosec
			inference["maxTokens"] = opts.MaxTokens
		}
		if opts.Temperature > 0 {
			input.InferenceConfig.Temperature = aws.Float32(float32(opts.Temperature))
			inference["temperature"] = opts.Temperature
		}
		if opts.TopP > 0 {
			input.InferenceConfig.TopP = aws.Float32(float32(opts.TopP))
		}
		if len(opts.StopWords) > 0 {
			input.InferenceConfig.StopSequences = opts.StopWords
		}
	}

	trace := llms.NewTraceStep(TraceName, "bedrock-runtime.converse ("+l.region+")", map[string]any{
		"modelId":         modelID,
		"system":          systemPrompt,
		"messages":        conversation,
		"inferenceConfig": inference,
	})

	out, err := l.client.Converse(ctx, input)
	if err != nil {
		logger.ContextKV(ctx, xlog.ERROR, "model", modelID, "err", err.Error())

		status := llms.DefaultErrorStatus
		var re interface{ HTTPStatusCode() int }
		if errors.As(err, &re) && re.HTTPStatusCode() > 0 {
			status = re.HTTPStatusCode()
		}
		trace.WithResponse(status, map[string]any{"error": err.Error()})
		return nil, llms.NewCallError(status, "Bedrock invoke request failed.", err, trace)
	}

	text := strings.TrimSpace(OutputText(out.Output))
	body := map[string]any{
		"modelId":    modelID,
		"text":       text,
		"stopReason": string(out.StopReason),
	}
	info := map[string]any{}
	if out.Usage != nil {
		info["InputTokens"] = aws.ToInt32(out.Usage.InputTokens)
		info["OutputTokens"] = aws.ToInt32(out.Usage.OutputTokens)
		info["TotalTokens"] = aws.ToInt32(out.Usage.TotalTokens)
		body["usage"] = info
	}
	trace.WithResponse(http.StatusOK, body)

	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{
			{
				Content:        text,
				StopReason:     string(out.StopReason),
				GenerationInfo: info,
			},
		},
		TraceStep: trace,
	}, nil
}

// ToMessages converts the conversation to Converse messages.
func ToMessages(messages []llms.Message) []types.Message {
	res := make([]types.Message, 0, len(messages))
	for _, m := range messages {
		role := types.ConversationRoleAssistant
		if m.Role == llms.RoleUser {
			role = types.ConversationRoleUser
		}
		res = append(res, types.Message{
			Role: role,
			Content: []types.ContentBlock{
				&types.ContentBlockMemberText{Value: m.Content},
			},
		})
	}
	return res
}

// OutputText returns the joined text blocks of the Converse output
func OutputText(output types.ConverseOutput) string {
	msg, ok := output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return ""
	}
	var sb strings.Builder
	for _, block := range msg.Value.Content {
		if tb, ok := block.(*types.ContentBlockMemberText); ok {
			sb.WriteString(tb.Value)
		}
	}
	return sb.String()
}
