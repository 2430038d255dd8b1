package prompts

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/effective-security/mcpagent/pkg/llms"
	"github.com/effective-security/mcpagent/pkg/llmutils"
)

// ToolResultPrefix starts the user turn carrying a tool result
const ToolResultPrefix = "TOOL_RESULT\n"

// Defaults of the orchestrator plan
const (
	DefaultAnalysisFocus = "Extract key facts, risks, and recommendations."
	DefaultFinalStyle    = "Clear, concise answer with bullets when helpful."
)

// AgentSystem returns the system prompt of the single agent loop
func AgentSystem(toolsEnabled bool, catalog string) string {
	var b strings.Builder
	b.WriteString("You are a helpful agent. When tools are enabled and useful, decide whether to call a tool.\n")
	b.WriteString("TOOLS_ENABLED=" + strconv.FormatBool(toolsEnabled) + "\n")
	b.WriteString("Return ONLY JSON in one of these shapes:\n")
	b.WriteString(`{"type":"final","response":"..."}` + "\n")
	b.WriteString(`{"type":"tool","tool":"calculator","input":{"expression":"2+2"}}` + "\n")
	b.WriteString(`IMPORTANT: "type" must be exactly "final" or "tool". Put the tool name in the "tool" field, not in "type".` + "\n")
	b.WriteString("Available tools:\n")
	b.WriteString(catalog)
	b.WriteString("\nIf tools are disabled, always return type=final.")
	return b.String()
}

// ToolResult returns the user turn carrying the tool output
func ToolResult(tool string, input map[string]any, output string) string {
	return ToolResultPrefix + llmutils.ToJSON(map[string]any{
		"tool":   tool,
		"input":  input,
		"output": output,
	})
}

// Orchestrator is the system prompt of the planning stage
const Orchestrator = "You are the Orchestrator agent for a multi-agent demo.\n" +
	"Create a concise plan for specialist agents. Return ONLY JSON with this shape:\n" +
	`{"goal":"...","needs_tools":true|false,"research_focus":"...","analysis_focus":"...","final_style":"..."}`

// Reviewer is the system prompt of the review stage
const Reviewer = "You are the Reviewer agent.\n" +
	"Review the research output for accuracy risks, gaps, and clarity.\n" +
	"Return ONLY JSON with this shape:\n" +
	`{"strengths":["..."],"risks":["..."],"fixes":["..."],"approved_summary":"..."}`

// Finalizer returns the system prompt of the final stage
func Finalizer(style string) string {
	return "You are the Finalizer agent in a multi-agent app.\n" +
		"Produce the final user-facing response using the orchestrator plan, research output, and reviewer notes.\n" +
		"Do not mention hidden chain-of-thought. If tools were not used, be transparent.\n" +
		"Style guidance: " + style
}

// OrchestratorTask returns the planning request with the recent conversation
func OrchestratorTask(conversation, prompt string) string {
	return fmt.Sprintf("Conversation context (most recent turns):\n%s\n\nCurrent task:\n%s", conversation, prompt)
}

// ResearchTask returns the request of the research round
func ResearchTask(round int, focus string) string {
	return fmt.Sprintf("Research task round %d: %s\nUse tools when helpful and available. Return a useful answer for the analyst.", round, focus)
}

// ReviewTask returns the request of the review stage
func ReviewTask(request, research, analysisFocus string) string {
	return fmt.Sprintf("Original user request:\n%s\n\nResearch output:\n%s\n\nAnalysis focus:\n%s", request, research, analysisFocus)
}

// FinalTask returns the request of the final stage
func FinalTask(request, plan, research, review string) string {
	return fmt.Sprintf("User request:\n%s\n\nOrchestrator plan (raw):\n%s\n\nResearch output:\n%s\n\nReviewer notes:\n%s", request, plan, research, review)
}

// ChatPromptValue is a conversation rendered for printing
type ChatPromptValue []llms.Message

// String returns the conversation as `ROLE: content` lines
func (v ChatPromptValue) String() string {
	var buf strings.Builder
	llmutils.PrintMessages(&buf, v)
	return buf.String()
}

// Messages returns the conversation
func (v ChatPromptValue) Messages() []llms.Message {
	return v
}
