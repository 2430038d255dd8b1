package openai

import (
	"github.com/openai/openai-go/v3/option"
)

const (
	// DefaultBaseURL is the OpenAI API endpoint
	DefaultBaseURL = "https://api.openai.com/v1"
	// DefaultModel is used when no model is configured
	DefaultModel = "gpt-4o-mini"
)

// Options for the OpenAI client.
// BaseURL allows any OpenAI compatible endpoint.
type Options struct {
	Token        string
	Model        string
	BaseURL      string
	Organization string
	// Name is reported in the trace step, defaults to OpenAI
	Name       string
	HTTPClient option.HTTPClient
	MaxRetries int
}

// Option is a functional option for the OpenAI client.
type Option func(*Options)

// WithToken passes the OpenAI API token to the client.
func WithToken(token string) Option {
	return func(opts *Options) {
		opts.Token = token
	}
}

// WithModel passes the OpenAI model to the client.
func WithModel(model string) Option {
	return func(opts *Options) {
		opts.Model = model
	}
}

// WithBaseURL passes the OpenAI base url to the client.
// If not set, DefaultBaseURL is used.
func WithBaseURL(baseURL string) Option {
	return func(opts *Options) {
		opts.BaseURL = baseURL
	}
}

// WithOrganization passes the OpenAI organization to the client.
func WithOrganization(organization string) Option {
	return func(opts *Options) {
		opts.Organization = organization
	}
}

// WithName sets the provider name reported in the trace,
// useful for OpenAI compatible endpoints.
func WithName(name string) Option {
	return func(opts *Options) {
		opts.Name = name
	}
}

// WithHTTPClient allows setting a custom HTTP client. If not set, the default value
// is http.DefaultClient.
func WithHTTPClient(client option.HTTPClient) Option {
	return func(opts *Options) {
		opts.HTTPClient = client
	}
}

// WithMaxRetries sets the number of SDK retries, default is 2
func WithMaxRetries(n int) Option {
	return func(opts *Options) {
		opts.MaxRetries = n
	}
}
