// Package tavily provides the web_search tool backed by the Tavily search API.
package tavily

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	tavilygo "github.com/diverged/tavily-go"
	tavilyModels "github.com/diverged/tavily-go/models"
	"github.com/effective-security/mcpagent/chatmodel"
	"github.com/effective-security/mcpagent/encoding"
	"github.com/effective-security/mcpagent/pkg/schema"
	"github.com/effective-security/mcpagent/tools"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpagent/tools", "tavily")

// ToolName is the name of the tool
const ToolName = "web_search"

// SearchRequest represents the tool input.
type SearchRequest struct {
	Query string `json:"query" yaml:"query" jsonschema:"title=Search Query,description=The query to search web."`
}

// SearchResult represents the structure for a search response
type SearchResult struct {
	Results []tavilyModels.SearchResult `json:"results" yaml:"results"`
	Answer  string                      `json:"answer,omitempty" yaml:"answer,omitempty"`
}

// Tool is a tool that provides a web search functionality
type Tool struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	schema     *schema.Schema
	parser     *encoding.TypedOutputParser[SearchRequest]
}

// ensure Tool implements the tools.Tool interface
var _ tools.Tool[SearchRequest, SearchResult] = (*Tool)(nil)

// New returns the tool, the API key is required
func New(apiKey string) (*Tool, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("tavily API key is required")
	}

	sc, err := schema.Of[SearchRequest]()
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create schema")
	}
	parser, err := encoding.NewTypedOutputParser(SearchRequest{}, encoding.ModeJSON)
	if err != nil {
		return nil, err
	}
	return &Tool{
		apiKey:     apiKey,
		httpClient: http.DefaultClient,
		schema:     sc,
		parser:     parser,
	}, nil
}

// WithBaseURL overrides the API endpoint
func (t *Tool) WithBaseURL(baseURL string) *Tool {
	t.baseURL = baseURL
	return t
}

// WithHTTPClient overrides the HTTP client
func (t *Tool) WithHTTPClient(client *http.Client) *Tool {
	t.httpClient = client
	return t
}

func (t *Tool) Name() string {
	return ToolName
}

func (t *Tool) Description() string {
	return "Search the web and return an answer with sources."
}

func (t *Tool) Parameters() any {
	return t.schema.Parameters
}

func (t *Tool) Run(ctx context.Context, req *SearchRequest) (*SearchResult, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, errors.New("web_search requires `query`.")
	}

	client := tavilygo.NewClient(t.apiKey)
	if t.baseURL != "" {
		client.BaseURL = t.baseURL
	}
	if t.httpClient != nil {
		client.HTTPClient = t.httpClient
	}

	searchResp, err := tavilygo.Search(client, tavilyModels.SearchRequest{
		Query:         query,
		SearchDepth:   "basic",
		IncludeAnswer: true,
	})
	if err != nil {
		logger.ContextKV(ctx, xlog.WARNING, "status", "search_failed", "err", err.Error())
		return nil, errors.Wrap(err, "web search failed")
	}

	return &SearchResult{
		Results: searchResp.Results,
		Answer:  searchResp.Answer,
	}, nil
}

func (t *Tool) Call(ctx context.Context, input string) (string, error) {
	if strings.TrimSpace(input) == "" {
		input = "{}"
	}
	req, err := t.parser.Parse(input)
	if err != nil {
		return "", errors.WithStack(chatmodel.ErrFailedUnmarshalInput)
	}
	out, err := t.Run(ctx, req)
	if err != nil {
		return "", err
	}
	return tools.Stringify(out)
}

func (r *SearchResult) String() string {
	var buf bytes.Buffer
	if r.Answer != "" {
		fmt.Fprintf(&buf, "ANSWER: %s\n", r.Answer)
	}

	for _, result := range r.Results {
		fmt.Fprintf(&buf, "- URL: %s\n", result.URL)
		fmt.Fprintf(&buf, "  TITLE: %s\n", result.Title)
		fmt.Fprintf(&buf, "  SCORE: %f\n", result.Score)
		fmt.Fprintf(&buf, "  CONTENT: %s\n", result.Content)
	}

	return buf.String()
}
