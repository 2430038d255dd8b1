package anthropic

import (
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	// DefaultBaseURL is the Anthropic API endpoint
	DefaultBaseURL = "https://api.anthropic.com"
	// DefaultModel is used when no model is configured
	DefaultModel = "claude-3-haiku-20240307"
	// DefaultRequestTimeout bounds one Messages call including SDK retries
	DefaultRequestTimeout = 2 * time.Minute
)

// Options of the Anthropic client
type Options struct {
	Token          string
	Model          string
	BaseURL        string
	HTTPClient     option.HTTPClient
	MaxRetries     int
	RequestTimeout time.Duration
}

type Option func(*Options)

// WithToken sets the API key, required
func WithToken(token string) Option {
	return func(opts *Options) {
		opts.Token = token
	}
}

// WithModel sets the default model of the calls
func WithModel(model string) Option {
	return func(opts *Options) {
		opts.Model = model
	}
}

// WithBaseURL overrides DefaultBaseURL, used by tests and proxies.
func WithBaseURL(baseURL string) Option {
	return func(opts *Options) {
		opts.BaseURL = baseURL
	}
}

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

// WithRequestTimeout sets the timeout of one call, zero keeps DefaultRequestTimeout
func WithRequestTimeout(d time.Duration) Option {
	return func(opts *Options) {
		if d > 0 {
			opts.RequestTimeout = d
		}
	}
}
