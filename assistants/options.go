package assistants

import (
	"github.com/effective-security/mcpagent/pkg/llms"
)

// DefaultName is the agent name used in metrics and callbacks
const DefaultName = "agent"

// DefaultMaxSteps is the number of model calls of one turn
const DefaultMaxSteps = 3

// Option is a function that can be used to modify the behavior of the Agent Config.
type Option func(*Config)

// Config of the agent
type Config struct {
	// Name identifies the agent in metrics, logs and callbacks.
	Name string

	// MaxSteps is the maximum number of model calls in one turn.
	MaxSteps int

	// BreakRepeatedToolCalls ends the turn when the model requests
	// a tool call identical to an earlier call of the same turn.
	BreakRepeatedToolCalls bool

	// Callback receives agent, model and tool events.
	Callback Callback

	// CallOptions are passed to every model call.
	CallOptions []llms.CallOption
}

// NewConfig returns config with defaults applied
func NewConfig(opts ...Option) *Config {
	cfg := &Config{
		Name:     DefaultName,
		MaxSteps: DefaultMaxSteps,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	if cfg.Callback == nil {
		cfg.Callback = NewNoopCallback()
	}
	return cfg
}

// WithName is an option that sets the agent name.
func WithName(name string) Option {
	return func(o *Config) {
		o.Name = name
	}
}

// WithMaxSteps is an option that limits the number of model calls in one turn.
func WithMaxSteps(steps int) Option {
	return func(o *Config) {
		o.MaxSteps = steps
	}
}

// WithBreakRepeatedToolCalls is an option that ends the turn on a repeated tool call.
func WithBreakRepeatedToolCalls(enabled bool) Option {
	return func(o *Config) {
		o.BreakRepeatedToolCalls = enabled
	}
}

// WithCallback allows setting a custom Callback Handler.
func WithCallback(callback Callback) Option {
	return func(o *Config) {
		o.Callback = callback
	}
}

// WithCallOptions is an option that adds options to every model call.
func WithCallOptions(options ...llms.CallOption) Option {
	return func(o *Config) {
		o.CallOptions = append(o.CallOptions, options...)
	}
}

// WithJSONMode is an option that asks the provider to return a JSON object.
func WithJSONMode() Option {
	return WithCallOptions(llms.WithJSONMode())
}
