package stdiotransport

import (
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/effective-security/mcpagent/mcp/protocol"
	"github.com/effective-security/mcpagent/mcp/server"
	"github.com/effective-security/mcpagent/mcp/transport"
	"github.com/effective-security/mcpagent/tools/builtin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const helperEnv = "MCPAGENT_STDIO_HELPER"

// TestMain turns the test binary into a child process when helperEnv is set
func TestMain(m *testing.M) {
	switch os.Getenv(helperEnv) {
	case "toolhost":
		reg, err := builtin.NewRegistry()
		if err != nil {
			os.Exit(2)
		}
		if err = server.New(reg).Serve(context.Background(), os.Stdin, os.Stdout); err != nil {
			os.Exit(1)
		}
		os.Exit(0)
	case "mute":
		_, _ = io.Copy(io.Discard, os.Stdin)
		// linger after stdin is closed, until terminated
		time.Sleep(time.Minute)
		os.Exit(0)
	case "exit":
		os.Exit(3)
	}
	os.Exit(m.Run())
}

func helperConfig(mode string, timeout time.Duration) Config {
	return Config{
		Command: []string{os.Args[0]},
		Env:     []string{helperEnv + "=" + mode},
		Timeout: timeout,
		Stderr:  io.Discard,
	}
}

func TestClient_Toolhost(t *testing.T) {
	ctx := context.Background()
	c := New(helperConfig("toolhost", 5*time.Second))
	assert.Equal(t, NotStarted, c.State())

	require.NoError(t, c.Start(ctx))
	defer c.Close()

	assert.Equal(t, Running, c.State())
	assert.Equal(t, "local-llm-demo-mcp-tools", c.ServerInfo().Name)
	assert.Equal(t, "1.0", c.ServerInfo().Version)
	assert.Equal(t, protocol.DefaultProtocolVersion, c.ProtocolVersion())
	assert.Contains(t, c.Capabilities(), "tools")

	list, err := c.ListTools(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 8)

	res, err := c.CallTool(ctx, "calculator", map[string]any{"expression": "6*7"})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	require.Len(t, res.Content, 1)
	assert.Equal(t, "42", res.Content[0].Text)

	err = c.Request(ctx, "resources/list", nil, nil)
	var perr *transport.ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, transport.MethodNotFound, perr.Err.Code)

	require.NoError(t, c.Close())
	assert.Equal(t, Closed, c.State())
	// idempotent
	require.NoError(t, c.Close())

	_, err = c.ListTools(ctx)
	assert.ErrorIs(t, err, transport.ErrClosed)
	assert.ErrorIs(t, c.Start(ctx), transport.ErrClosed)
}

func TestClient_NotStarted(t *testing.T) {
	c := New(Config{})
	err := c.Request(context.Background(), protocol.MethodToolsList, nil, nil)
	assert.ErrorIs(t, err, ErrNotStarted)
	assert.ErrorIs(t, c.Notify(context.Background(), protocol.MethodNotificationInitialized, nil), ErrNotStarted)

	// close before start is a no-op
	assert.NoError(t, c.Close())
	assert.Equal(t, Closed, c.State())
}

func TestClient_NoCommand(t *testing.T) {
	c := New(Config{})
	assert.EqualError(t, c.Start(context.Background()), "mcp: command is required")

	c = New(Config{Command: []string{"/nonexistent/mcp-tool-host"}})
	assert.Error(t, c.Start(context.Background()))
}

func TestClient_HandshakeTimeout(t *testing.T) {
	c := New(helperConfig("mute", 200*time.Millisecond))

	started := time.Now()
	err := c.Start(context.Background())
	require.Error(t, err)
	assert.True(t, transport.IsTimeout(err), "%v", err)
	assert.Equal(t, Closed, c.State())
	// SIGTERM ends the helper well before its sleep
	assert.Less(t, time.Since(started), 10*time.Second)
}

func TestClient_ChildExits(t *testing.T) {
	c := New(helperConfig("exit", 2*time.Second))
	err := c.Start(context.Background())
	require.Error(t, err)
	assert.False(t, transport.IsTimeout(err), "%v", err)
	assert.Equal(t, Closed, c.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "not_started", NotStarted.String())
	assert.Equal(t, "running", Running.String())
	assert.Equal(t, "closed", Closed.String())
	assert.Equal(t, "unknown", State(9).String())
}
