package assistants

import (
	"fmt"
	"strings"

	"github.com/effective-security/mcpagent/pkg/llmutils"
	"github.com/effective-security/mcpagent/tools"
)

// Decision types
const (
	DecisionFinal = "final"
	DecisionTool  = "tool"
)

var (
	toolKeys     = []string{"tool", "tool_name", "name", "function", "action"}
	responseKeys = []string{"response", "output", "final", "answer", "message", "text"}
	inputKeys    = []string{"input", "arguments", "args"}
)

var reservedKeys = func() map[string]bool {
	m := map[string]bool{"type": true}
	for _, list := range [][]string{toolKeys, responseKeys, inputKeys} {
		for _, k := range list {
			m[k] = true
		}
	}
	return m
}()

// Decision is the normalized step decision of the model
type Decision struct {
	Type     string         `json:"type"`
	Tool     string         `json:"tool"`
	Input    map[string]any `json:"input"`
	Response any            `json:"response"`
}

// ResponseText returns the response as trimmed text
func (d *Decision) ResponseText() string {
	return strings.TrimSpace(textOf(d.Response))
}

// ParseDecision extracts the JSON object from the model output and normalizes it.
// Nil is returned when the output carries no usable decision.
func ParseDecision(text string, known map[string]bool) *Decision {
	obj, ok := llmutils.ExtractJSONObject(text)
	if !ok {
		return nil
	}
	return NormalizeDecision(obj, known)
}

// NormalizeDecision maps the loose shapes produced by smaller models
// to a final or tool decision.
// The known set contains canonical tool names.
func NormalizeDecision(obj map[string]any, known map[string]bool) *Decision {
	if obj == nil {
		return nil
	}

	dtype := strings.ToLower(strings.TrimSpace(textOf(obj["type"])))
	toolName := tools.CanonicalName(textOf(firstTruthy(obj, toolKeys)))
	response := firstTruthy(obj, responseKeys)
	input := inputOf(obj)

	inferred := map[string]any{}
	for k, v := range obj {
		if !reservedKeys[k] {
			inferred[k] = v
		}
	}
	inputOrInferred := func() map[string]any {
		if len(input) > 0 {
			return input
		}
		return inferred
	}

	if dtype == DecisionFinal || dtype == DecisionTool {
		if dtype == DecisionFinal && !nonEmptyString(response) {
			if out, ok := obj["output"]; ok {
				response = ""
				if truthy(out) {
					response = textOf(out)
				}
			} else if toolName != "" && known[toolName] {
				return &Decision{Type: DecisionTool, Tool: toolName, Input: inputOrInferred()}
			}
		}
		return &Decision{Type: dtype, Tool: toolName, Input: input, Response: response}
	}

	// {"tool":"name","input":{...}} without type
	if dtype == "" && toolName != "" && known[toolName] {
		return &Decision{Type: DecisionTool, Tool: toolName, Input: inputOrInferred(), Response: response}
	}

	// tool name placed in type
	if canonical := tools.CanonicalName(dtype); canonical != "" && known[canonical] {
		if len(input) == 0 && nonEmptyString(response) {
			return &Decision{Type: DecisionFinal, Input: map[string]any{}, Response: response}
		}
		return &Decision{Type: DecisionTool, Tool: canonical, Input: inputOrInferred(), Response: response}
	}

	if nonEmptyString(response) {
		return &Decision{Type: DecisionFinal, Input: map[string]any{}, Response: response}
	}
	// an explicit type that is neither final nor tool is reported as unsupported
	if dtype != "" {
		return &Decision{Type: dtype, Tool: toolName, Input: input}
	}
	return nil
}

func inputOf(obj map[string]any) map[string]any {
	for _, k := range inputKeys {
		if m, ok := obj[k].(map[string]any); ok && len(m) > 0 {
			return m
		}
	}
	return map[string]any{}
}

func firstTruthy(obj map[string]any, keys []string) any {
	for _, k := range keys {
		if v, ok := obj[k]; ok && truthy(v) {
			return v
		}
	}
	return nil
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case float64:
		return t != 0
	case map[string]any:
		return len(t) > 0
	case []any:
		return len(t) > 0
	}
	return true
}

func nonEmptyString(v any) bool {
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) != ""
}

func textOf(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool, float64:
		return fmt.Sprint(t)
	}
	return llmutils.ToJSON(v)
}
