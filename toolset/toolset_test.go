package toolset

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/mcp/protocol"
	"github.com/effective-security/mcpagent/mcp/server"
	"github.com/effective-security/mcpagent/mcp/transport/stdiotransport"
	"github.com/effective-security/mcpagent/tools/builtin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const helperEnv = "MCPAGENT_TOOLSET_HELPER"

func TestMain(m *testing.M) {
	if os.Getenv(helperEnv) == "toolhost" {
		reg, err := builtin.NewRegistry()
		if err != nil {
			os.Exit(2)
		}
		_ = server.New(reg).Serve(context.Background(), os.Stdin, os.Stdout)
		os.Exit(0)
	}
	os.Exit(m.Run())
}

type fakeClient struct {
	info     protocol.Implementation
	tools    []string
	startErr error
	listErr  error
	callErr  error
	result   *protocol.ToolsCallResult
	calls    []string
	closed   int
}

func (f *fakeClient) Start(context.Context) error           { return f.startErr }
func (f *fakeClient) ServerInfo() protocol.Implementation { return f.info }
func (f *fakeClient) Close() error {
	f.closed++
	return nil
}

func (f *fakeClient) ListTools(context.Context) ([]json.RawMessage, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	list := make([]json.RawMessage, 0, len(f.tools))
	for _, t := range f.tools {
		list = append(list, json.RawMessage(t))
	}
	return list, nil
}

func (f *fakeClient) CallTool(_ context.Context, name string, _ map[string]any) (*protocol.ToolsCallResult, error) {
	f.calls = append(f.calls, name)
	if f.callErr != nil {
		return nil, f.callErr
	}
	return f.result, nil
}

func fakeToolset(f *fakeClient, opts ...Option) *Toolset {
	opts = append(opts, WithConnector(func(stdiotransport.Config) Client { return f }))
	return New(stdiotransport.Config{Command: []string{"fake-host", "--stdio"}}, opts...)
}

func TestDiscover_NotConfigured(t *testing.T) {
	list, servers, snap := Discover(context.Background(), stdiotransport.Config{})
	assert.Empty(t, list)
	assert.Empty(t, servers)
	require.NotNil(t, snap)
	assert.Equal(t, "not_configured", snap.Error)
	assert.Equal(t, "mcp", snap.Kind)
	assert.Equal(t, "toolset.snapshot", snap.Event)
	assert.Equal(t, "toolset.snapshot", snap.Type)
	assert.Equal(t, "chat_start", snap.Stage)
	assert.Equal(t, "mcp", snap.ToolSource)
	assert.NotEmpty(t, snap.TraceID)
	assert.Equal(t, Counts{}, snap.Counts)

	js, err := json.Marshal(snap)
	require.NoError(t, err)
	assert.Contains(t, string(js), `"servers":[]`)
	assert.Contains(t, string(js), `"tools":[]`)

	_, err = time.Parse(time.RFC3339, snap.Timestamp)
	assert.NoError(t, err)
}

func TestDiscover(t *testing.T) {
	f := &fakeClient{
		info: protocol.Implementation{Name: "Local LLM Demo!! Tools", Version: "2.1"},
		tools: []string{
			`{"name":"calc","description":"Adds.","inputSchema":{"type":"object","properties":{"a":{"type":"number"}}}}`,
			`{"name":" legacy ","input_schema":{"type":"object","properties":{"q":{"type":"string"}}}}`,
			`{"name":"bare","inputSchema":"not an object"}`,
			`{"description":"no name"}`,
			`"not an object"`,
		},
	}
	list, servers, snap := fakeToolset(f).Discover(context.Background())
	require.Len(t, servers, 1)
	srv := servers[0]
	assert.Equal(t, ServerID("local-llm-demo-tools", "fake-host --stdio"), srv.ID)
	assert.Len(t, srv.ID, 12)
	assert.Equal(t, "Local LLM Demo!! Tools", srv.Name)
	assert.Equal(t, "stdio", srv.Transport)
	assert.Equal(t, "2.1", srv.Version)

	require.Len(t, list, 3)
	assert.Equal(t, srv.ID+":calc", list[0].ID)
	assert.Equal(t, "local-llm-demo-tools.calc", list[0].Name)
	assert.Equal(t, "Adds.", list[0].Description)
	assert.Equal(t, "local-llm-demo-tools", list[0].SourceServer)

	assert.Equal(t, "local-llm-demo-tools.legacy", list[1].Name)
	assert.Equal(t, "MCP tool", list[1].Description)
	assert.JSONEq(t, `{"type":"object","properties":{"q":{"type":"string"}}}`, string(list[1].InputSchema))

	assert.JSONEq(t, `{"type":"object","properties":{}}`, string(list[2].InputSchema))

	assert.Empty(t, snap.Error)
	assert.Equal(t, Counts{Servers: 1, Tools: 3}, snap.Counts)
	assert.Equal(t, 1, f.closed)
}

func TestDiscover_Failures(t *testing.T) {
	f := &fakeClient{startErr: errors.New("mcp: read timeout")}
	list, servers, snap := fakeToolset(f).Discover(context.Background())
	assert.Empty(t, list)
	assert.Empty(t, servers)
	assert.Equal(t, "mcp: read timeout", snap.Error)
	assert.Equal(t, 1, f.closed)

	f = &fakeClient{info: protocol.Implementation{Name: "x"}, listErr: errors.New("list failed")}
	list, servers, snap = fakeToolset(f).Discover(context.Background())
	assert.Empty(t, list)
	assert.Len(t, servers, 1)
	assert.Equal(t, "list failed", snap.Error)
	assert.Equal(t, 1, snap.Counts.Servers)
	assert.Equal(t, 1, f.closed)
}

func TestSanitizeServerName(t *testing.T) {
	tcases := map[string]string{
		"":                         "mcp",
		"   ":                      "mcp",
		"!!!":                      "mcp",
		"local-llm-demo-mcp-tools": "local-llm-demo-mcp-tools",
		"My Server":                "my-server",
		"--a--b__c--":              "a-b__c",
		"Ünïcode Tools v2.0":       "ünïcode-tools-v2-0",
	}
	for in, exp := range tcases {
		assert.Equal(t, exp, SanitizeServerName(in), in)
	}
}

func TestServerID(t *testing.T) {
	a := ServerID("local", "python server.py")
	assert.Len(t, a, 12)
	assert.Equal(t, a, ServerID("local", "python server.py"))
	assert.NotEqual(t, a, ServerID("local", "python other.py"))
	assert.NotEqual(t, a, ServerID("remote", "python server.py"))
}

func TestDiscover_Stdio(t *testing.T) {
	cfg := stdiotransport.Config{
		Command: []string{os.Args[0]},
		Env:     []string{helperEnv + "=toolhost"},
		Timeout: 5 * time.Second,
		Stderr:  io.Discard,
	}
	list, servers, snap := Discover(context.Background(), cfg)
	require.Empty(t, snap.Error)
	require.Len(t, servers, 1)
	assert.Equal(t, "local-llm-demo-mcp-tools", servers[0].Name)
	assert.Equal(t, "1.0", servers[0].Version)
	require.Len(t, list, 8)
	assert.Equal(t, "local-llm-demo-mcp-tools.calculator", list[0].Name)
	assert.Equal(t, servers[0].ID+":calculator", list[0].ID)
}
