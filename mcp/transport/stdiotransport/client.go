// Package stdiotransport launches a tool host as a child process
// and talks MCP to it over the child's stdin and stdout.
package stdiotransport

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/mcp/protocol"
	"github.com/effective-security/mcpagent/mcp/transport"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpagent/mcp/transport", "stdiotransport")

// KillTimeout is the time given to the child to exit after SIGTERM
const KillTimeout = time.Second

// DefaultClientInfo identifies the client in initialize
var DefaultClientInfo = protocol.Implementation{
	Name:    "local-llm-demo",
	Version: "1.0",
}

// ErrNotStarted is returned when the client is used before Start
var ErrNotStarted = errors.New("mcp: client is not started")

// State is the lifecycle state of the client
type State int

const (
	// NotStarted is the initial state
	NotStarted State = iota
	// Running is the state after a successful handshake
	Running
	// Closed is the terminal state
	Closed
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Running:
		return "running"
	case Closed:
		return "closed"
	}
	return "unknown"
}

// Config describes the child process and the handshake
type Config struct {
	// Command is the program and its arguments
	Command []string
	// Env is appended to the parent environment
	Env []string
	// Dir is the working directory of the child
	Dir string
	// Timeout bounds every request
	Timeout time.Duration
	// ProtocolVersion is sent in initialize
	ProtocolVersion string
	// ClientInfo is sent in initialize
	ClientInfo protocol.Implementation
	// Stderr receives the child stderr, os.Stderr by default
	Stderr io.Writer
}

// Client owns the child process and both of its streams
type Client struct {
	cfg Config

	lock  sync.Mutex
	state State
	cmd   *exec.Cmd
	stdin *os.File
	out   *os.File
	conn  *transport.Conn
	done  chan struct{}

	serverInfo   protocol.Implementation
	capabilities map[string]any
	version      string
}

// New returns a client that is not started
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = transport.DefaultTimeout
	}
	if cfg.ProtocolVersion == "" {
		cfg.ProtocolVersion = protocol.DefaultProtocolVersion
	}
	if cfg.ClientInfo.Name == "" {
		cfg.ClientInfo = DefaultClientInfo
	}
	if cfg.Stderr == nil {
		cfg.Stderr = os.Stderr
	}
	return &Client{cfg: cfg}
}

// State returns the lifecycle state
func (c *Client) State() State {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.state
}

// ServerInfo returns the server identification captured by the handshake
func (c *Client) ServerInfo() protocol.Implementation {
	return c.serverInfo
}

// Capabilities returns the server capabilities captured by the handshake
func (c *Client) Capabilities() map[string]any {
	return c.capabilities
}

// ProtocolVersion returns the version the server answered with
func (c *Client) ProtocolVersion() string {
	return c.version
}

// Start launches the child and performs the handshake.
// On failure the child is terminated and the client is closed.
func (c *Client) Start(ctx context.Context) error {
	if err := c.launch(); err != nil {
		return err
	}

	var res protocol.InitializeResult
	err := c.Request(ctx, protocol.MethodInitialize, &protocol.InitializeParams{
		ProtocolVersion: c.cfg.ProtocolVersion,
		Capabilities:    map[string]any{},
		ClientInfo:      c.cfg.ClientInfo,
	}, &res)
	if err == nil {
		err = c.Notify(ctx, protocol.MethodNotificationInitialized, nil)
	}
	if err != nil {
		logger.ContextKV(ctx, xlog.ERROR, "status", "handshake_failed", "command", c.cfg.Command, "err", err.Error())
		_ = c.Close()
		return errors.WithMessage(err, "MCP handshake failed")
	}

	c.serverInfo = res.ServerInfo
	c.capabilities = res.Capabilities
	c.version = res.ProtocolVersion

	logger.ContextKV(ctx, xlog.DEBUG,
		"status", "started",
		"server", res.ServerInfo.Name,
		"version", res.ServerInfo.Version,
		"protocol", res.ProtocolVersion,
	)
	return nil
}

func (c *Client) launch() error {
	c.lock.Lock()
	defer c.lock.Unlock()

	switch c.state {
	case Running:
		return errors.New("mcp: client is already started")
	case Closed:
		return transport.ErrClosed
	}
	if len(c.cfg.Command) == 0 || c.cfg.Command[0] == "" {
		return errors.New("mcp: command is required")
	}

	childIn, stdin, err := os.Pipe()
	if err != nil {
		return errors.Wrap(err, "failed to create stdin pipe")
	}
	out, childOut, err := os.Pipe()
	if err != nil {
		_ = childIn.Close()
		_ = stdin.Close()
		return errors.Wrap(err, "failed to create stdout pipe")
	}

	cmd := exec.Command(c.cfg.Command[0], c.cfg.Command[1:]...)
	cmd.Stdin = childIn
	cmd.Stdout = childOut
	cmd.Stderr = c.cfg.Stderr
	cmd.Dir = c.cfg.Dir
	if len(c.cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), c.cfg.Env...)
	}

	err = cmd.Start()
	// the child owns its ends now
	_ = childIn.Close()
	_ = childOut.Close()
	if err != nil {
		_ = stdin.Close()
		_ = out.Close()
		return errors.Wrapf(err, "failed to start %q", c.cfg.Command[0])
	}

	c.cmd = cmd
	c.stdin = stdin
	c.out = out
	c.conn = transport.NewConn(out, stdin, c.cfg.Timeout)
	c.done = make(chan struct{})
	c.state = Running

	go func() {
		_ = cmd.Wait()
		close(c.done)
	}()
	return nil
}

func (c *Client) running() (*transport.Conn, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	switch c.state {
	case NotStarted:
		return nil, ErrNotStarted
	case Closed:
		return nil, transport.ErrClosed
	}
	return c.conn, nil
}

// Request sends a correlated call and decodes the result into result, when not nil
func (c *Client) Request(ctx context.Context, method string, params any, result any) error {
	conn, err := c.running()
	if err != nil {
		return err
	}
	raw, err := conn.Call(ctx, method, params)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	if err = json.Unmarshal(raw, result); err != nil {
		return errors.WithMessagef(transport.ErrInvalidJSON, "%s result: %s", method, err.Error())
	}
	return nil
}

// Notify sends one-way notification
func (c *Client) Notify(ctx context.Context, method string, params any) error {
	conn, err := c.running()
	if err != nil {
		return err
	}
	return conn.Notify(ctx, method, params)
}

// ListTools returns the raw tool definitions of the server
func (c *Client) ListTools(ctx context.Context) ([]json.RawMessage, error) {
	var res protocol.ToolsListResult
	if err := c.Request(ctx, protocol.MethodToolsList, map[string]any{}, &res); err != nil {
		return nil, err
	}
	return res.Tools, nil
}

// CallTool invokes the tool
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]any) (*protocol.ToolsCallResult, error) {
	if arguments == nil {
		arguments = map[string]any{}
	}
	var res protocol.ToolsCallResult
	err := c.Request(ctx, protocol.MethodToolsCall, &protocol.ToolsCallParams{
		Name:      name,
		Arguments: arguments,
	}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Close terminates the child: closes its stdin, sends SIGTERM,
// and kills it if it does not exit in KillTimeout.
// It is safe to call more than once, and before Start.
func (c *Client) Close() error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.state != Running {
		c.state = Closed
		return nil
	}
	c.state = Closed

	_ = c.stdin.Close()

	proc := c.cmd.Process
	if err := proc.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		logger.KV(xlog.DEBUG, "status", "sigterm_failed", "pid", proc.Pid, "err", err.Error())
	}

	timer := time.NewTimer(KillTimeout)
	defer timer.Stop()
	select {
	case <-c.done:
	case <-timer.C:
		logger.KV(xlog.WARNING, "status", "killing", "pid", proc.Pid)
		_ = proc.Kill()
		<-c.done
	}

	_ = c.out.Close()
	return nil
}
