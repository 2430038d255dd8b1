package assistants

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/chatmodel"
	"github.com/effective-security/mcpagent/mcp/protocol"
	"github.com/effective-security/mcpagent/mcp/transport/stdiotransport"
	"github.com/effective-security/mcpagent/pkg/llms"
	"github.com/effective-security/mcpagent/pkg/llmutils"
	"github.com/effective-security/mcpagent/pkg/metricskey"
	"github.com/effective-security/mcpagent/pkg/prompts"
	"github.com/effective-security/mcpagent/toolset"
	"github.com/effective-security/x/slices"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpagent", "assistants")

// Responses of the terminal paths
const (
	ToolsDisabledResponse       = "Agent requested a tool, but Tools (MCP) is disabled. Enable it to allow tool execution."
	UnsupportedDecisionResponse = "Agent produced an unsupported decision type. Returning raw model output."
	MaxStepsResponse            = "Agent reached the max number of steps without producing a final answer."
	RepeatedToolCallResponse    = "Agent repeated the same tool call. Returning the previous tool result to avoid a loop."
)

// Agent runs the tool-using loop over one conversation turn
type Agent struct {
	model   llms.Model
	toolset *toolset.Toolset
	cfg     *Config
}

// New returns agent for the model, the toolset provides the tools of each turn
func New(model llms.Model, ts *toolset.Toolset, opts ...Option) *Agent {
	if ts == nil {
		ts = toolset.New(stdiotransport.Config{})
	}
	return &Agent{
		model:   model,
		toolset: ts,
		cfg:     NewConfig(opts...),
	}
}

// Name returns the agent name
func (a *Agent) Name() string {
	return a.cfg.Name
}

// Config returns the agent config
func (a *Agent) Config() Config {
	return *a.cfg
}

// toolCall is the identity of a tool request within one turn
type toolCall struct {
	Tool  string         `json:"tool"`
	Input map[string]any `json:"input"`
}

type turn struct {
	*Agent
	session      *toolset.Session
	toolsEnabled bool
	messages     []llms.Message
	trace        []*chatmodel.TraceEntry
	// outputs by tool call signature
	outputs map[string]string
}

// Run executes one turn over the conversation.
// The conversation must not contain the system prompt, it is produced from the tool catalog.
// The result is never nil, failures are reported with the status code and the trace so far.
func (a *Agent) Run(ctx context.Context, messages []llms.Message, toolsEnabled bool) *chatmodel.TurnResult {
	started := time.Now()
	name := a.Name()
	cb := a.cfg.Callback
	cb.OnAgentStart(ctx, name, llms.LatestUserPrompt(messages))

	t := &turn{
		Agent:        a,
		toolsEnabled: toolsEnabled,
		trace:        []*chatmodel.TraceEntry{},
		outputs:      map[string]string{},
	}
	t.session = t.openSession(ctx)
	defer func() {
		if err := t.session.Close(); err != nil {
			logger.ContextKV(ctx, xlog.DEBUG, "agent", name, "status", "session_close", "err", err.Error())
		}
	}()

	_, conversation := llms.SplitSystem(messages)
	t.messages = append([]llms.Message{
		llms.SystemMessage(prompts.AgentSystem(toolsEnabled, t.session.Catalog())),
	}, conversation...)

	res := t.loop(ctx)

	metricskey.PerfAssistantCall.MeasureSince(started, name)
	if res.Failed() {
		metricskey.StatsAssistantCallsFailed.IncrCounter(1, name)
		cb.OnAgentError(ctx, name, res)
	} else {
		metricskey.StatsAssistantCallsSucceeded.IncrCounter(1, name)
		cb.OnAgentEnd(ctx, name, res)
	}
	return res
}

// openSession connects to the tool host when tools are enabled,
// a failed startup is traced and the turn continues with local tools
func (t *turn) openSession(ctx context.Context) *toolset.Session {
	if !t.toolsEnabled || !t.toolset.Configured() {
		return t.toolset.Local()
	}
	s, err := t.toolset.Open(ctx)
	if err != nil {
		logger.ContextKV(ctx, xlog.WARNING,
			"agent", t.Name(),
			"status", "tools_startup_failed",
			"command", t.toolset.Command(),
			"err", err.Error(),
		)
		t.trace = append(t.trace, &chatmodel.TraceEntry{
			Kind:  chatmodel.KindMCP,
			Event: chatmodel.EventStartupError,
			Error: err.Error(),
		})
		return t.toolset.Local()
	}

	remote := s.RemoteTools()
	count := len(remote)
	t.trace = append(t.trace, &chatmodel.TraceEntry{
		Kind:       chatmodel.KindMCP,
		Event:      chatmodel.EventToolsList,
		ToolCount:  &count,
		ServerInfo: s.ServerInfo(),
		Tools:      remote,
	})
	return s
}

func (t *turn) loop(ctx context.Context) *chatmodel.TurnResult {
	name := t.Name()
	known := t.session.KnownTools()

	for step := 1; step <= t.cfg.MaxSteps; step++ {
		resp, ce := CallModel(ctx, t.model, name, step, t.messages, t.cfg.Callback, t.cfg.CallOptions...)
		text := resp.Text()

		entry := &chatmodel.TraceEntry{
			Kind:      chatmodel.KindLLM,
			Step:      step,
			RawOutput: text,
		}
		if ce != nil {
			entry.TraceStep = ce.TraceStep
		} else if resp != nil {
			entry.TraceStep = resp.TraceStep
		}
		t.trace = append(t.trace, entry)

		if ce != nil {
			return chatmodel.NewFailure(ce, chatmodel.DefaultAgentCallFailure, t.trace)
		}

		decision := ParseDecision(text, known)
		if decision == nil {
			metricskey.StatsAssistantLLMParseErrors.IncrCounter(1, name)
			t.cfg.Callback.OnLLMParseError(ctx, name, text)
			logger.ContextKV(ctx, xlog.DEBUG,
				"agent", name,
				"status", "raw_text_fallback",
				"step", step,
				"output", slices.StringUpto(text, 128),
			)
			res := t.result(strings.TrimSpace(text), entry)
			res.Agentic = &chatmodel.AgenticInfo{Enabled: true, FinalMode: chatmodel.FinalModeRawText}
			return res
		}

		switch decision.Type {
		case DecisionFinal:
			res := t.result(values.StringsCoalesce(decision.ResponseText(), chatmodel.DefaultEmptyResponse), entry)
			res.Agentic = &chatmodel.AgenticInfo{
				Enabled:   true,
				ToolCalls: chatmodel.CountKind(t.trace, chatmodel.KindTool),
				FinalMode: chatmodel.FinalModeJSON,
			}
			return res

		case DecisionTool:
			if !t.toolsEnabled {
				res := t.result(ToolsDisabledResponse, entry)
				res.Agentic = &chatmodel.AgenticInfo{Enabled: true, BlockedReason: chatmodel.BlockedReasonToolsOff}
				return res
			}

			call := toolCall{Tool: decision.Tool, Input: decision.Input}
			if call.Input == nil {
				call.Input = map[string]any{}
			}
			signature := llmutils.ToJSON(call)
			if prior, seen := t.outputs[signature]; seen && t.cfg.BreakRepeatedToolCalls {
				logger.ContextKV(ctx, xlog.WARNING,
					"agent", name,
					"status", "repeated_tool_call",
					"tool", call.Tool,
				)
				res := t.result(RepeatedToolCallResponse+"\n\n"+values.StringsCoalesce(prior, signature), entry)
				res.Agentic = &chatmodel.AgenticInfo{
					Enabled:   true,
					ToolCalls: chatmodel.CountKind(t.trace, chatmodel.KindTool),
					FinalMode: chatmodel.FinalModeRepeatedBreak,
				}
				return res
			}

			output := t.runTool(ctx, step, call)
			t.outputs[signature] = output
			t.messages = append(t.messages,
				llms.AssistantMessage(text),
				llms.UserMessage(prompts.ToolResult(call.Tool, call.Input, output)),
			)
			continue
		}

		logger.ContextKV(ctx, xlog.WARNING,
			"agent", name,
			"status", "unsupported_decision",
			"type", decision.Type,
		)
		res := t.result(UnsupportedDecisionResponse, entry)
		res.RawOutput = text
		return res
	}

	logger.ContextKV(ctx, xlog.WARNING,
		"agent", name,
		"status", "max_steps",
		"max_steps", t.cfg.MaxSteps,
	)
	res := chatmodel.NewResponse(MaxStepsResponse, t.trace)
	res.Agentic = &chatmodel.AgenticInfo{Enabled: true, MaxSteps: t.cfg.MaxSteps, TimedOut: true}
	return res
}

func (t *turn) result(response string, entry *chatmodel.TraceEntry) *chatmodel.TurnResult {
	res := chatmodel.NewResponse(response, t.trace)
	res.Trace = chatmodel.StepsOf(entry.TraceStep)
	return res
}

func (t *turn) runTool(ctx context.Context, step int, call toolCall) string {
	cb := t.cfg.Callback
	cb.OnToolStart(ctx, call.Tool, call.Input)

	output, meta := t.session.RunTool(ctx, call.Tool, call.Input)
	switch {
	case meta["error"] == "unknown tool":
		cb.OnToolNotFound(ctx, call.Tool)
	case protocol.IsErrorText(output):
		cb.OnToolError(ctx, call.Tool, call.Input, output)
	default:
		cb.OnToolEnd(ctx, call.Tool, call.Input, output)
	}

	t.trace = append(t.trace, &chatmodel.TraceEntry{
		Kind:      chatmodel.KindTool,
		Step:      step,
		Tool:      call.Tool,
		Input:     call.Input,
		Output:    output,
		ToolTrace: meta,
	})
	return output
}

// CallModel sends the conversation to the model.
// Any failure is returned as *llms.CallError with the status defaulted to 502,
// errors of other types carry no message and callers apply their own default.
func CallModel(ctx context.Context, model llms.Model, agent string, step int, messages []llms.Message, cb Callback, options ...llms.CallOption) (*llms.ContentResponse, *llms.CallError) {
	if cb == nil {
		cb = NewNoopCallback()
	}
	modelName := model.GetName()
	bytesSent := llmutils.CountMessagesContentSize(messages)

	cb.OnLLMCallStart(ctx, agent, step, messages)
	metricskey.StatsLLMMessagesSent.IncrCounter(float64(len(messages)), agent, modelName)
	metricskey.StatsLLMBytesSent.IncrCounter(float64(bytesSent), agent, modelName)

	resp, err := model.GenerateContent(ctx, messages, options...)
	if err != nil {
		var ce *llms.CallError
		if !errors.As(err, &ce) {
			ce = llms.NewCallError(0, "", err, nil)
		}
		logger.ContextKV(ctx, xlog.ERROR,
			"agent", agent,
			"model", modelName,
			"step", step,
			"status", ce.StatusCode,
			"err", err.Error(),
		)
		return nil, ce
	}
	if resp == nil {
		resp = llms.NewTextResponse("", nil)
	}

	cb.OnLLMCallEnd(ctx, agent, step, resp)
	metricskey.StatsLLMBytesReceived.IncrCounter(float64(llmutils.CountResponseContentSize(resp)), agent, modelName)
	return resp, nil
}
