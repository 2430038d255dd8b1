// Package googleai implements the Gemini provider on top of the genai SDK.
// See https://ai.google.dev/ for more details.
package googleai

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/pkg/llms"
	"github.com/effective-security/x/values"
	"google.golang.org/genai"
)

// ErrMissingAuth is returned when neither API key nor credentials are provided
var ErrMissingAuth = errors.New("googleai: missing API key or credentials")

// GoogleAI is a type that represents a Google AI API client.
type GoogleAI struct {
	client  *genai.Client
	baseURL string
	opts    Options
}

var _ llms.Model = (*GoogleAI)(nil)

// New creates a new GoogleAI client.
func New(ctx context.Context, opts ...Option) (*GoogleAI, error) {
	clientOptions := DefaultOptions()
	for _, opt := range opts {
		opt(&clientOptions)
	}
	if clientOptions.APIKey == "" && clientOptions.Credentials == nil {
		return nil, ErrMissingAuth
	}

	cfg := &genai.ClientConfig{
		APIKey:      clientOptions.APIKey,
		Credentials: clientOptions.Credentials,
		HTTPClient:  clientOptions.HTTPClient,
		Backend:     genai.BackendGeminiAPI,
	}
	if clientOptions.CloudProject != "" {
		cfg.Backend = genai.BackendVertexAI
		cfg.Project = clientOptions.CloudProject
		cfg.Location = values.StringsCoalesce(clientOptions.CloudLocation, "us-central1")
		cfg.APIKey = ""
	}
	if clientOptions.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: strings.TrimRight(clientOptions.BaseURL, "/") + "/"}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "googleai: failed to create client")
	}

	return &GoogleAI{
		client:  client,
		baseURL: strings.TrimRight(values.StringsCoalesce(clientOptions.BaseURL, DefaultBaseURL), "/"),
		opts:    clientOptions,
	}, nil
}
