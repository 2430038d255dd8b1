package callbacks

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/effective-security/mcpagent/assistants"
	"github.com/effective-security/mcpagent/chatmodel"
	"github.com/effective-security/mcpagent/pkg/llms"
	"github.com/effective-security/mcpagent/pkg/prompts"
	"github.com/effective-security/mcpagent/tools"
	"github.com/effective-security/x/slices"
	"github.com/effective-security/xlog"
)

// ensure that the callbacks implement the correct interfaces
var (
	_ assistants.Callback = (*Printer)(nil)
	_ tools.Callback      = (*Printer)(nil)
	_ assistants.Callback = (*PackageLogger)(nil)
	_ tools.Callback      = (*PackageLogger)(nil)
	_ assistants.Callback = (*Fanout)(nil)
	_ tools.Callback      = (*Fanout)(nil)
)

// Mode defines the mode for callback printing
type Mode int

const (
	// ModeDefault is the default mode for callback printing
	ModeDefault Mode = iota
	// ModeVerbose is the verbose mode for callback printing
	ModeVerbose
)

// Fanout is a callback handler that forwards the events to multiple callbacks.
type Fanout struct {
	callbacks []assistants.Callback
}

func NewFanout(callbacks ...assistants.Callback) *Fanout {
	return &Fanout{callbacks: callbacks}
}

func (l *Fanout) Add(callback assistants.Callback) {
	l.callbacks = append(l.callbacks, callback)
}

func (l *Fanout) OnAgentStart(ctx context.Context, agent string, input string) {
	for _, callback := range l.callbacks {
		callback.OnAgentStart(ctx, agent, input)
	}
}

func (l *Fanout) OnAgentEnd(ctx context.Context, agent string, res *chatmodel.TurnResult) {
	for _, callback := range l.callbacks {
		callback.OnAgentEnd(ctx, agent, res)
	}
}

func (l *Fanout) OnAgentError(ctx context.Context, agent string, res *chatmodel.TurnResult) {
	for _, callback := range l.callbacks {
		callback.OnAgentError(ctx, agent, res)
	}
}

func (l *Fanout) OnLLMCallStart(ctx context.Context, agent string, step int, messages []llms.Message) {
	for _, callback := range l.callbacks {
		callback.OnLLMCallStart(ctx, agent, step, messages)
	}
}

func (l *Fanout) OnLLMCallEnd(ctx context.Context, agent string, step int, resp *llms.ContentResponse) {
	for _, callback := range l.callbacks {
		callback.OnLLMCallEnd(ctx, agent, step, resp)
	}
}

func (l *Fanout) OnLLMParseError(ctx context.Context, agent string, output string) {
	for _, callback := range l.callbacks {
		callback.OnLLMParseError(ctx, agent, output)
	}
}

func (l *Fanout) OnToolStart(ctx context.Context, tool string, input map[string]any) {
	for _, callback := range l.callbacks {
		callback.OnToolStart(ctx, tool, input)
	}
}

func (l *Fanout) OnToolEnd(ctx context.Context, tool string, input map[string]any, output string) {
	for _, callback := range l.callbacks {
		callback.OnToolEnd(ctx, tool, input, output)
	}
}

func (l *Fanout) OnToolError(ctx context.Context, tool string, input map[string]any, output string) {
	for _, callback := range l.callbacks {
		callback.OnToolError(ctx, tool, input, output)
	}
}

func (l *Fanout) OnToolNotFound(ctx context.Context, tool string) {
	for _, callback := range l.callbacks {
		callback.OnToolNotFound(ctx, tool)
	}
}

// Printer is a callback handler that prints to the Writer.
type Printer struct {
	Out  io.Writer
	Mode Mode

	lock sync.Mutex
}

func NewPrinter(out io.Writer, mode Mode) *Printer {
	return &Printer{Out: out, Mode: mode}
}

func (l *Printer) OnAgentStart(_ context.Context, agent string, input string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Agent Start: %s\n", agent)
	fmt.Fprintf(l.Out, "Input: %s\n", input)
}

func (l *Printer) OnAgentEnd(_ context.Context, agent string, res *chatmodel.TurnResult) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Agent End: %s\n", agent)
	if l.Mode == ModeVerbose && res.Response != "" {
		fmt.Fprintln(l.Out, res.Response)
	}
}

func (l *Printer) OnAgentError(_ context.Context, agent string, res *chatmodel.TurnResult) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Agent Error: %s: %d %s\n", agent, res.StatusCode, res.Error)
}

func (l *Printer) OnLLMCallStart(_ context.Context, agent string, step int, messages []llms.Message) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "LLM Call: %s: step %d, %d messages\n", agent, step, len(messages))
	if l.Mode == ModeVerbose {
		fmt.Fprint(l.Out, prompts.ChatPromptValue(messages).String())
	}
}

func (l *Printer) OnLLMCallEnd(_ context.Context, agent string, step int, resp *llms.ContentResponse) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "LLM Call End: %s: step %d\n", agent, step)
	if l.Mode == ModeVerbose {
		fmt.Fprintf(l.Out, "Output: %s\n", resp.Text())
	}
}

func (l *Printer) OnLLMParseError(_ context.Context, agent string, output string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "LLM Parse Error: %s\n", agent)
	fmt.Fprintf(l.Out, "Response: %s\n", slices.StringUpto(output, 256))
}

func (l *Printer) OnToolStart(_ context.Context, tool string, input map[string]any) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Tool Start: %s\n", tool)
	fmt.Fprintf(l.Out, "Input: %v\n", input)
}

func (l *Printer) OnToolEnd(_ context.Context, tool string, _ map[string]any, output string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Tool End: %s\n", tool)
	if l.Mode == ModeVerbose {
		fmt.Fprintf(l.Out, "Output: %s\n", output)
	}
}

func (l *Printer) OnToolError(_ context.Context, tool string, _ map[string]any, output string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Tool Error: %s: %s\n", tool, output)
}

func (l *Printer) OnToolNotFound(_ context.Context, tool string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Tool Not Found: %s\n", tool)
}

// PackageLogger is a callback handler that prints to the logger.
type PackageLogger struct {
	logger *xlog.PackageLogger
}

func NewPackageLogger(logger *xlog.PackageLogger) *PackageLogger {
	return &PackageLogger{logger: logger}
}

func (l *PackageLogger) OnAgentStart(ctx context.Context, agent string, input string) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "agent_start",
		"agent", agent,
		"input", slices.StringUpto(input, 256),
	)
}

func (l *PackageLogger) OnAgentEnd(ctx context.Context, agent string, res *chatmodel.TurnResult) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "agent_end",
		"agent", agent,
		"trace", len(res.AgentTrace),
	)
}

func (l *PackageLogger) OnAgentError(ctx context.Context, agent string, res *chatmodel.TurnResult) {
	l.logger.ContextKV(ctx, xlog.ERROR,
		"event", "agent_error",
		"agent", agent,
		"status", res.StatusCode,
		"err", res.Error,
		"details", res.Details,
	)
}

func (l *PackageLogger) OnLLMCallStart(ctx context.Context, agent string, step int, messages []llms.Message) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "llm_call_start",
		"agent", agent,
		"step", step,
		"messages", len(messages),
	)
}

func (l *PackageLogger) OnLLMCallEnd(ctx context.Context, agent string, step int, resp *llms.ContentResponse) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "llm_call_end",
		"agent", agent,
		"step", step,
		"choices", len(resp.Choices),
	)
}

func (l *PackageLogger) OnLLMParseError(ctx context.Context, agent string, output string) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "llm_parse_error",
		"agent", agent,
		"response", slices.StringUpto(output, 256),
	)
}

func (l *PackageLogger) OnToolStart(ctx context.Context, tool string, input map[string]any) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "tool_start",
		"tool", tool,
		"input", input,
	)
}

func (l *PackageLogger) OnToolEnd(ctx context.Context, tool string, _ map[string]any, output string) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "tool_end",
		"tool", tool,
		"output", slices.StringUpto(output, 256),
	)
}

func (l *PackageLogger) OnToolError(ctx context.Context, tool string, _ map[string]any, output string) {
	l.logger.ContextKV(ctx, xlog.ERROR,
		"event", "tool_error",
		"tool", tool,
		"err", output,
	)
}

func (l *PackageLogger) OnToolNotFound(ctx context.Context, tool string) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "tool_not_found",
		"tool", tool,
	)
}
