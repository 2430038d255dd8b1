package chatmodel

import (
	"net/http"

	"github.com/effective-security/mcpagent/pkg/llms"
	"github.com/effective-security/x/values"
)

// Trace entry kinds
const (
	KindLLM        = "llm"
	KindTool       = "tool"
	KindMCP        = "mcp"
	KindMultiAgent = "multi_agent"
)

// Trace entry events
const (
	EventToolsList     = "tools_list"
	EventStartupError  = "startup_error"
	EventPipelineStart = "pipeline_start"
	EventHandoff       = "handoff"
)

// Final modes of the single agent loop
const (
	FinalModeJSON           = "json_final"
	FinalModeRawText        = "raw_text_fallback"
	FinalModeRepeatedBreak  = "repeated_tool_loop_break"
	BlockedReasonToolsOff   = "tools_disabled"
	DefaultEmptyResponse    = "(Empty response)"
	DefaultAgentCallFailure = "Agent LLM call failed."
)

// ToolSummary is the name and description of a listed tool
type ToolSummary struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

// TraceEntry is one observability record of a turn.
// Entries are returned to the caller and never read back by the loop.
type TraceEntry struct {
	Kind       string `json:"kind" yaml:"kind"`
	Event      string `json:"event,omitempty" yaml:"event,omitempty"`
	Agent      string `json:"agent,omitempty" yaml:"agent,omitempty"`
	AgentRound int    `json:"agent_round,omitempty" yaml:"agent_round,omitempty"`
	ToAgent    string `json:"to_agent,omitempty" yaml:"to_agent,omitempty"`
	Step       int    `json:"step" yaml:"step"`

	// llm
	TraceStep *llms.TraceStep `json:"trace_step,omitempty" yaml:"trace_step,omitempty"`
	RawOutput string          `json:"raw_output,omitempty" yaml:"raw_output,omitempty"`

	// tool
	Tool      string         `json:"tool,omitempty" yaml:"tool,omitempty"`
	Input     map[string]any `json:"input,omitempty" yaml:"input,omitempty"`
	Output    string         `json:"output,omitempty" yaml:"output,omitempty"`
	ToolTrace map[string]any `json:"tool_trace,omitempty" yaml:"tool_trace,omitempty"`

	// mcp
	ToolCount  *int          `json:"tool_count,omitempty" yaml:"tool_count,omitempty"`
	ServerInfo any           `json:"server_info,omitempty" yaml:"server_info,omitempty"`
	Tools      []ToolSummary `json:"tools,omitempty" yaml:"tools,omitempty"`
	Error      string        `json:"error,omitempty" yaml:"error,omitempty"`

	// multi_agent
	Agents         []string `json:"agents,omitempty" yaml:"agents,omitempty"`
	ToolsEnabled   *bool    `json:"tools_enabled,omitempty" yaml:"tools_enabled,omitempty"`
	NeedsToolsPlan *bool    `json:"needs_tools_plan,omitempty" yaml:"needs_tools_plan,omitempty"`
	ResearchFocus  string   `json:"research_focus,omitempty" yaml:"research_focus,omitempty"`
}

// AgenticInfo describes how the single agent loop ended
type AgenticInfo struct {
	Enabled       bool   `json:"enabled" yaml:"enabled"`
	ToolCalls     int    `json:"tool_calls" yaml:"tool_calls"`
	FinalMode     string `json:"final_mode,omitempty" yaml:"final_mode,omitempty"`
	BlockedReason string `json:"blocked_reason,omitempty" yaml:"blocked_reason,omitempty"`
	MaxSteps      int    `json:"max_steps,omitempty" yaml:"max_steps,omitempty"`
	TimedOut      bool   `json:"timed_out,omitempty" yaml:"timed_out,omitempty"`
}

// MultiAgentInfo describes the multi-agent pipeline run
type MultiAgentInfo struct {
	Enabled           bool     `json:"enabled" yaml:"enabled"`
	Implemented       bool     `json:"implemented" yaml:"implemented"`
	Agents            []string `json:"agents,omitempty" yaml:"agents,omitempty"`
	ToolsEnabled      *bool    `json:"tools_enabled,omitempty" yaml:"tools_enabled,omitempty"`
	ResearchUsedTools *bool    `json:"research_used_tools,omitempty" yaml:"research_used_tools,omitempty"`
	NeedsToolsPlan    *bool    `json:"needs_tools_plan,omitempty" yaml:"needs_tools_plan,omitempty"`
	FailedAgent       string   `json:"failed_agent,omitempty" yaml:"failed_agent,omitempty"`
}

// Trace carries the provider steps of the terminal call
type Trace struct {
	Steps []*llms.TraceStep `json:"steps" yaml:"steps"`
}

// TurnResult is the payload of one chat turn
type TurnResult struct {
	StatusCode int    `json:"status_code" yaml:"status_code"`
	Response   string `json:"response,omitempty" yaml:"response,omitempty"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
	Details    string `json:"details,omitempty" yaml:"details,omitempty"`
	// RawOutput is the model output for unsupported decisions
	RawOutput  string          `json:"raw_output,omitempty" yaml:"raw_output,omitempty"`
	AgentTrace []*TraceEntry   `json:"agent_trace" yaml:"agent_trace"`
	Agentic    *AgenticInfo    `json:"agentic,omitempty" yaml:"agentic,omitempty"`
	MultiAgent *MultiAgentInfo `json:"multi_agent,omitempty" yaml:"multi_agent,omitempty"`
	Trace      *Trace          `json:"trace,omitempty" yaml:"trace,omitempty"`
}

// Failed returns true if the turn did not produce a response
func (r *TurnResult) Failed() bool {
	return r.StatusCode >= http.StatusBadRequest
}

// NewResponse returns successful turn result
func NewResponse(response string, trace []*TraceEntry) *TurnResult {
	if trace == nil {
		trace = []*TraceEntry{}
	}
	return &TurnResult{
		StatusCode: http.StatusOK,
		Response:   response,
		AgentTrace: trace,
	}
}

// NewFailure returns failed turn result for the model call error,
// defaultMessage is used when the error has no message
func NewFailure(ce *llms.CallError, defaultMessage string, trace []*TraceEntry) *TurnResult {
	if trace == nil {
		trace = []*TraceEntry{}
	}
	res := &TurnResult{
		StatusCode: values.NumbersCoalesce(ce.StatusCode, llms.DefaultErrorStatus),
		Error:      values.StringsCoalesce(ce.Message, defaultMessage),
		Details:    ce.Details,
		AgentTrace: trace,
		Trace:      &Trace{Steps: []*llms.TraceStep{}},
	}
	if ce.TraceStep != nil {
		res.Trace.Steps = append(res.Trace.Steps, ce.TraceStep)
	}
	return res
}

// StepsOf returns trace with the step, or empty trace
func StepsOf(step *llms.TraceStep) *Trace {
	t := &Trace{Steps: []*llms.TraceStep{}}
	if step != nil {
		t.Steps = append(t.Steps, step)
	}
	return t
}

// CountKind returns the number of entries of the kind
func CountKind(entries []*TraceEntry, kind string) int {
	n := 0
	for _, e := range entries {
		if e != nil && e.Kind == kind {
			n++
		}
	}
	return n
}

// Bool returns pointer to v
func Bool(v bool) *bool {
	return &v
}
