package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/mcp/protocol"
	"github.com/effective-security/mcpagent/pkg/metricskey"
	"github.com/effective-security/mcpagent/pkg/schema"
	"github.com/effective-security/x/slices"
	"github.com/effective-security/xlog"
	"github.com/tidwall/gjson"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpagent", "tools")

// Descriptor is the listing form of a tool
type Descriptor struct {
	Name        string          `json:"name" yaml:"name"`
	Description string          `json:"description" yaml:"description"`
	InputSchema json.RawMessage `json:"inputSchema" yaml:"inputSchema"`
}

// CatalogLine returns the prompt line of the tool
func (d Descriptor) CatalogLine() string {
	input := d.InputSchema
	if len(input) == 0 {
		input = json.RawMessage("{}")
	}
	return fmt.Sprintf("- %s: %s input=%s", d.Name, d.Description, string(input))
}

// Describe returns the descriptor of the tool
func Describe(t ITool) Descriptor {
	d := Descriptor{
		Name:        t.Name(),
		Description: t.Description(),
	}
	switch p := t.Parameters().(type) {
	case nil:
		d.InputSchema = json.RawMessage(schema.EmptyObject)
	case json.RawMessage:
		d.InputSchema = p
	default:
		js, err := json.Marshal(p)
		if err != nil {
			js = []byte(schema.EmptyObject)
		}
		d.InputSchema = js
	}
	return d
}

// CanonicalName returns the lookup form of the tool name
func CanonicalName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Registry is an ordered set of tools, executed in process
type Registry struct {
	tools    *orderedmap.OrderedMap[string, ITool]
	callback Callback
}

var _ Runner = (*Registry)(nil)

// NewRegistry returns registry with the tools
func NewRegistry(list ...ITool) (*Registry, error) {
	r := &Registry{
		tools: orderedmap.New[string, ITool](),
	}
	for _, t := range list {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// WithCallback sets the callback for tool events
func (r *Registry) WithCallback(cb Callback) *Registry {
	r.callback = cb
	return r
}

// Register adds the tool, names must be unique
func (r *Registry) Register(t ITool) error {
	name := CanonicalName(t.Name())
	if name == "" {
		return errors.New("tool name is required")
	}
	if _, exists := r.tools.Get(name); exists {
		return errors.Newf("tool already registered: %s", name)
	}
	r.tools.Set(name, t)
	return nil
}

// Get returns the tool by name
func (r *Registry) Get(name string) (ITool, bool) {
	return r.tools.Get(CanonicalName(name))
}

// Has returns true if the tool is registered
func (r *Registry) Has(name string) bool {
	_, ok := r.tools.Get(CanonicalName(name))
	return ok
}

// Len returns the number of tools
func (r *Registry) Len() int {
	return r.tools.Len()
}

// Names returns the tool names in the registration order
func (r *Registry) Names() []string {
	names := make([]string, 0, r.tools.Len())
	for pair := r.tools.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// Descriptors returns the tool listing in the registration order
func (r *Registry) Descriptors() []Descriptor {
	list := make([]Descriptor, 0, r.tools.Len())
	for pair := r.tools.Oldest(); pair != nil; pair = pair.Next() {
		list = append(list, Describe(pair.Value))
	}
	return list
}

// RunTool executes the tool.
// Failures are returned as the output text with "Error: " prefix.
func (r *Registry) RunTool(ctx context.Context, name string, input map[string]any) (string, map[string]any) {
	name = CanonicalName(name)
	if input == nil {
		input = map[string]any{}
	}
	meta := map[string]any{
		"tool":  name,
		"input": input,
	}

	tool, ok := r.tools.Get(name)
	if !ok {
		metricskey.StatsToolCallsNotFound.IncrCounter(1, name)
		logger.ContextKV(ctx, xlog.WARNING, "status", "tool_not_found", "tool", name)
		if r.callback != nil {
			r.callback.OnToolNotFound(ctx, name)
		}
		meta["error"] = "unknown tool"
		return fmt.Sprintf("%s unknown tool `%s`", protocol.ErrorPrefix, name), meta
	}

	if r.callback != nil {
		r.callback.OnToolStart(ctx, name, input)
	}

	started := time.Now()
	js, _ := json.Marshal(input)
	output, err := tool.Call(ctx, string(js))
	metricskey.PerfToolCall.MeasureSince(started, name)

	if err == nil && protocol.IsErrorText(output) {
		err = errors.New(strings.TrimSpace(strings.TrimPrefix(output, protocol.ErrorPrefix)))
	}
	if err != nil {
		metricskey.StatsToolCallsFailed.IncrCounter(1, name)
		output = protocol.ErrorPrefix + " " + err.Error()
		logger.ContextKV(ctx, xlog.WARNING,
			"status", "tool_failed",
			"tool", name,
			"input", slices.StringUpto(string(js), 256),
			"err", err.Error(),
		)
		if r.callback != nil {
			r.callback.OnToolError(ctx, name, input, output)
		}
		meta["error"] = err.Error()
		return output, meta
	}

	metricskey.StatsToolCallsSucceeded.IncrCounter(1, name)
	logger.ContextKV(ctx, xlog.DEBUG,
		"status", "tool_called",
		"tool", name,
		"output", slices.StringUpto(output, 256),
	)
	if r.callback != nil {
		r.callback.OnToolEnd(ctx, name, input, output)
	}
	meta["response"] = responseOf(output)
	return output, meta
}

// responseOf returns JSON object output as a value, other output as {"result": output}
func responseOf(output string) any {
	if gjson.Valid(output) {
		if res := gjson.Parse(output); res.IsObject() {
			return res.Value()
		}
	}
	return map[string]any{"result": output}
}
