package llms

import (
	"strings"
)

// Role is the type of chat message.
type Role string

const (
	// RoleSystem is the instruction message
	RoleSystem Role = "system"
	// RoleUser is a message sent by the user
	RoleUser Role = "user"
	// RoleAssistant is a message sent by the model
	RoleAssistant Role = "assistant"
)

// ParseRole returns role from string, unknown roles are treated as assistant
func ParseRole(s string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleSystem:
		return RoleSystem
	case RoleUser:
		return RoleUser
	}
	return RoleAssistant
}

// Message is one message of a conversation
type Message struct {
	Role    Role   `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

// SystemMessage returns system message
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage returns user message
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage returns assistant message
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// SplitSystem returns the joined content of system messages and the rest of the conversation
func SplitSystem(messages []Message) (string, []Message) {
	var system []string
	rest := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(system, "\n\n"), rest
}

// LatestUserPrompt returns content of the last user message
func LatestUserPrompt(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return messages[i].Content
		}
	}
	return ""
}

// ContentResponse is the response returned by a GenerateContent call.
type ContentResponse struct {
	Choices []*ContentChoice `json:"choices"`
	// TraceStep describes the provider request and response
	TraceStep *TraceStep `json:"trace_step,omitempty"`
}

// ContentChoice is one of the response choices returned by GenerateContent
// calls.
type ContentChoice struct {
	// Content is the textual content of a response
	Content string `json:"content"`

	// StopReason is the reason the model stopped generating output.
	StopReason string `json:"stop_reason,omitempty"`

	// GenerationInfo is arbitrary information the model adds to the response.
	GenerationInfo map[string]any `json:"generation_info,omitempty"`
}

// Text returns content of the first choice
func (r *ContentResponse) Text() string {
	if r == nil || len(r.Choices) == 0 || r.Choices[0] == nil {
		return ""
	}
	return r.Choices[0].Content
}

// NewTextResponse returns response with a single choice
func NewTextResponse(text string, trace *TraceStep) *ContentResponse {
	return &ContentResponse{
		Choices:   []*ContentChoice{{Content: text}},
		TraceStep: trace,
	}
}
