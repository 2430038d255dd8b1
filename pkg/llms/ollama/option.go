package ollama

import (
	"net/http"
)

const (
	// DefaultBaseURL is the address of a local Ollama server
	DefaultBaseURL = "http://127.0.0.1:11434"
	// DefaultModel is used when no model is configured
	DefaultModel = "llama3.2:1b"
)

// Options for the Ollama client
type Options struct {
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

// Option configures Options
type Option func(*Options)

// WithBaseURL sets the Ollama server address.
// If not set, DefaultBaseURL is used.
func WithBaseURL(baseURL string) Option {
	return func(opts *Options) {
		opts.BaseURL = baseURL
	}
}

// WithModel sets the model name
func WithModel(model string) Option {
	return func(opts *Options) {
		opts.Model = model
	}
}

// WithHTTPClient allows setting a custom HTTP client. If not set, the default value
// is http.DefaultClient.
func WithHTTPClient(client *http.Client) Option {
	return func(opts *Options) {
		opts.HTTPClient = client
	}
}
