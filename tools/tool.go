package tools

import (
	"context"
)

// ITool is a tool for the llm agent to interact with different applications.
type ITool interface {
	// Name returns the name of the Tool.
	Name() string
	// Description returns the description of the tool, to be used in the prompt.
	// Should not exceed LLM model limit.
	Description() string
	// Parameters returns the JSON schema of the tool input, to be used in the prompt.
	Parameters() any

	// Call executes the tool with the given JSON input and returns the result.
	// If the tool fails to parse the input, it should return ErrFailedUnmarshalInput error.
	Call(context.Context, string) (string, error)
}

type Tool[I any, O any] interface {
	ITool
	Run(context.Context, *I) (*O, error)
}

// Runner executes tools by name.
// The output is always a string, a leading "Error:" marks a tool level failure.
// The meta describes the call for the trace.
type Runner interface {
	RunTool(ctx context.Context, name string, input map[string]any) (output string, meta map[string]any)
}

// Callback receives tool events
type Callback interface {
	OnToolStart(ctx context.Context, tool string, input map[string]any)
	OnToolEnd(ctx context.Context, tool string, input map[string]any, output string)
	OnToolError(ctx context.Context, tool string, input map[string]any, output string)
	OnToolNotFound(ctx context.Context, tool string)
}
