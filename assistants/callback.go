package assistants

import (
	"context"

	"github.com/effective-security/mcpagent/chatmodel"
	"github.com/effective-security/mcpagent/pkg/llms"
	"github.com/effective-security/mcpagent/tools"
)

//go:generate mockgen -source=callback.go -destination=../mocks/mockassistants/callback_mock.gen.go -package mockassistants

// Callback receives agent, model and tool events.
// Agents are identified by name, the pipeline stages use their role names.
type Callback interface {
	tools.Callback
	OnAgentStart(ctx context.Context, agent string, input string)
	OnAgentEnd(ctx context.Context, agent string, res *chatmodel.TurnResult)
	OnAgentError(ctx context.Context, agent string, res *chatmodel.TurnResult)
	OnLLMCallStart(ctx context.Context, agent string, step int, messages []llms.Message)
	OnLLMCallEnd(ctx context.Context, agent string, step int, resp *llms.ContentResponse)
	OnLLMParseError(ctx context.Context, agent string, output string)
}

// NoopCallback does nothing.
type NoopCallback struct{}

var _ Callback = (*NoopCallback)(nil)

// NewNoopCallback returns callback that does nothing
func NewNoopCallback() *NoopCallback {
	return &NoopCallback{}
}

func (NoopCallback) OnAgentStart(context.Context, string, string) {}
func (NoopCallback) OnAgentEnd(context.Context, string, *chatmodel.TurnResult) {}
func (NoopCallback) OnAgentError(context.Context, string, *chatmodel.TurnResult) {}
func (NoopCallback) OnLLMCallStart(context.Context, string, int, []llms.Message) {}
func (NoopCallback) OnLLMCallEnd(context.Context, string, int, *llms.ContentResponse) {}
func (NoopCallback) OnLLMParseError(context.Context, string, string) {}
func (NoopCallback) OnToolStart(context.Context, string, map[string]any) {}
func (NoopCallback) OnToolEnd(context.Context, string, map[string]any, string) {}
func (NoopCallback) OnToolError(context.Context, string, map[string]any, string) {}
func (NoopCallback) OnToolNotFound(context.Context, string) {}
