package multiagent

import (
	"github.com/effective-security/mcpagent/assistants"
	"github.com/effective-security/mcpagent/pkg/llms"
)

// DefaultName is the pipeline name used in metrics and callbacks
const DefaultName = "multi_agent"

// DefaultMaxSpecialistRounds is the number of researcher runs of one turn
const DefaultMaxSpecialistRounds = 1

// ContextTurns is the number of recent messages given to the orchestrator
const ContextTurns = 8

// Option is a function that can be used to modify the behavior of the Pipeline Config.
type Option func(*Config)

// Config of the pipeline
type Config struct {
	// Name identifies the pipeline in metrics, logs and callbacks.
	Name string

	// MaxSpecialistRounds is the maximum number of researcher runs,
	// the rounds stop at the first non-empty research output.
	MaxSpecialistRounds int

	// Callback receives pipeline, model and tool events.
	Callback assistants.Callback

	// CallOptions are passed to every model call.
	CallOptions []llms.CallOption

	// ResearcherOptions configure the researcher agent loop.
	ResearcherOptions []assistants.Option
}

// NewConfig returns config with defaults applied
func NewConfig(opts ...Option) *Config {
	cfg := &Config{
		Name:                DefaultName,
		MaxSpecialistRounds: DefaultMaxSpecialistRounds,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if cfg.MaxSpecialistRounds < 1 {
		cfg.MaxSpecialistRounds = DefaultMaxSpecialistRounds
	}
	if cfg.Callback == nil {
		cfg.Callback = assistants.NewNoopCallback()
	}
	return cfg
}

// WithName is an option that sets the pipeline name.
func WithName(name string) Option {
	return func(o *Config) {
		o.Name = name
	}
}

// WithMaxSpecialistRounds is an option that limits the researcher runs.
func WithMaxSpecialistRounds(rounds int) Option {
	return func(o *Config) {
		o.MaxSpecialistRounds = rounds
	}
}

// WithCallback allows setting a custom Callback Handler.
func WithCallback(callback assistants.Callback) Option {
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

// WithResearcherOptions is an option that configures the researcher agent.
func WithResearcherOptions(options ...assistants.Option) Option {
	return func(o *Config) {
		o.ResearcherOptions = append(o.ResearcherOptions, options...)
	}
}
