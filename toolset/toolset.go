// Package toolset discovers the tools of the configured tool host
// and serves them for the duration of one agent turn.
package toolset

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/cespare/xxhash/v2"
	"github.com/effective-security/mcpagent/chatmodel"
	"github.com/effective-security/mcpagent/mcp/protocol"
	"github.com/effective-security/mcpagent/mcp/transport/stdiotransport"
	"github.com/effective-security/mcpagent/pkg/metricskey"
	"github.com/effective-security/mcpagent/pkg/schema"
	"github.com/effective-security/mcpagent/tools"
	"github.com/effective-security/xlog"
	"github.com/tidwall/gjson"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpagent", "toolset")

// Snapshot constants
const (
	SnapshotEvent     = "toolset.snapshot"
	SourceMCP         = "mcp"
	StageChatStart    = "chat_start"
	TransportStdio    = "stdio"
	ErrNotConfigured  = "not_configured"
	DefaultServerName = "mcp"
	DefaultToolDesc   = "MCP tool"
)

// ToolDef is a discovered tool, namespaced by its server
type ToolDef struct {
	ID           string          `json:"id" yaml:"id"`
	Name         string          `json:"name" yaml:"name"`
	Description  string          `json:"description" yaml:"description"`
	InputSchema  json.RawMessage `json:"input_schema" yaml:"input_schema"`
	SourceServer string          `json:"source_server" yaml:"source_server"`
}

// ServerDescriptor describes a connected tool host
type ServerDescriptor struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	Transport string `json:"transport" yaml:"transport"`
	Version   string `json:"version" yaml:"version"`
}

// Counts of the snapshot
type Counts struct {
	Servers int `json:"servers" yaml:"servers"`
	Tools   int `json:"tools" yaml:"tools"`
}

// Snapshot is the event describing the discovered toolset
type Snapshot struct {
	Kind       string             `json:"kind" yaml:"kind"`
	Event      string             `json:"event" yaml:"event"`
	Type       string             `json:"type" yaml:"type"`
	TraceID    string             `json:"trace_id" yaml:"trace_id"`
	ToolSource string             `json:"tool_source" yaml:"tool_source"`
	Stage      string             `json:"stage" yaml:"stage"`
	Servers    []ServerDescriptor `json:"servers" yaml:"servers"`
	Tools      []ToolDef          `json:"tools" yaml:"tools"`
	Counts     Counts             `json:"counts" yaml:"counts"`
	Timestamp  string             `json:"timestamp" yaml:"timestamp"`
	Error      string             `json:"error,omitempty" yaml:"error,omitempty"`
}

// NewSnapshot returns snapshot event for the lists
func NewSnapshot(traceID string, servers []ServerDescriptor, list []ToolDef) *Snapshot {
	if servers == nil {
		servers = []ServerDescriptor{}
	}
	if list == nil {
		list = []ToolDef{}
	}
	return &Snapshot{
		Kind:       chatmodel.KindMCP,
		Event:      SnapshotEvent,
		Type:       SnapshotEvent,
		TraceID:    traceID,
		ToolSource: SourceMCP,
		Stage:      StageChatStart,
		Servers:    servers,
		Tools:      list,
		Counts:     Counts{Servers: len(servers), Tools: len(list)},
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
}

// Client is the MCP client used by the toolset
type Client interface {
	Start(ctx context.Context) error
	ServerInfo() protocol.Implementation
	ListTools(ctx context.Context) ([]json.RawMessage, error)
	CallTool(ctx context.Context, name string, arguments map[string]any) (*protocol.ToolsCallResult, error)
	Close() error
}

// Connector returns a client that is not started
type Connector func(cfg stdiotransport.Config) Client

// StdioConnector launches the tool host as a child process
func StdioConnector(cfg stdiotransport.Config) Client {
	return stdiotransport.New(cfg)
}

// Toolset discovers and opens tool sessions
type Toolset struct {
	cfg     stdiotransport.Config
	connect Connector
	local   *tools.Registry
}

// Option configures the toolset
type Option func(*Toolset)

// WithConnector replaces the stdio connector
func WithConnector(c Connector) Option {
	return func(t *Toolset) {
		t.connect = c
	}
}

// WithLocalTools serves the registry tools in process
func WithLocalTools(r *tools.Registry) Option {
	return func(t *Toolset) {
		t.local = r
	}
}

// New returns toolset for the tool host command
func New(cfg stdiotransport.Config, opts ...Option) *Toolset {
	t := &Toolset{
		cfg:     cfg,
		connect: StdioConnector,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Configured returns true if a tool host command is set
func (t *Toolset) Configured() bool {
	return len(t.cfg.Command) > 0 && strings.TrimSpace(t.cfg.Command[0]) != ""
}

// Command returns the tool host command line
func (t *Toolset) Command() string {
	return strings.Join(t.cfg.Command, " ")
}

// Discover returns the tools of the configured host, see Toolset.Discover
func Discover(ctx context.Context, cfg stdiotransport.Config, opts ...Option) ([]ToolDef, []ServerDescriptor, *Snapshot) {
	return New(cfg, opts...).Discover(ctx)
}

// Discover connects to the tool host, lists its tools and disconnects.
// Failures never propagate, they are reported as the snapshot error.
func (t *Toolset) Discover(ctx context.Context) ([]ToolDef, []ServerDescriptor, *Snapshot) {
	traceID := chatmodel.NewChatID()
	if !t.Configured() {
		snap := NewSnapshot(traceID, nil, nil)
		snap.Error = ErrNotConfigured
		return nil, nil, snap
	}

	client := t.connect(t.cfg)
	defer func() {
		_ = client.Close()
	}()

	var (
		servers []ServerDescriptor
		list    []ToolDef
	)
	fail := func(err error, server string) ([]ToolDef, []ServerDescriptor, *Snapshot) {
		metricskey.StatsDiscoveryFailed.IncrCounter(1, server)
		logger.ContextKV(ctx, xlog.WARNING,
			"status", "discovery_failed",
			"command", t.Command(),
			"err", err.Error(),
		)
		snap := NewSnapshot(traceID, servers, list)
		snap.Error = err.Error()
		return list, servers, snap
	}

	if err := client.Start(ctx); err != nil {
		return fail(err, DefaultServerName)
	}

	info := client.ServerInfo()
	serverName := SanitizeServerName(info.Name)
	serverID := ServerID(serverName, t.Command())
	servers = []ServerDescriptor{{
		ID:        serverID,
		Name:      strings.TrimSpace(info.Name),
		Transport: TransportStdio,
		Version:   info.Version,
	}}
	if servers[0].Name == "" {
		servers[0].Name = serverName
	}

	raw, err := client.ListTools(ctx)
	if err != nil {
		return fail(err, serverName)
	}
	for _, item := range raw {
		p, ok := parseTool(item)
		if !ok {
			continue
		}
		list = append(list, ToolDef{
			ID:           serverID + ":" + p.Name,
			Name:         serverName + "." + p.Name,
			Description:  p.Description,
			InputSchema:  p.InputSchema,
			SourceServer: serverName,
		})
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"status", "discovered",
		"server", serverName,
		"id", serverID,
		"tools", len(list),
	)
	return list, servers, NewSnapshot(traceID, servers, list)
}

// SanitizeServerName returns the lower-cased name with runs of characters
// other than letters, digits, `-` and `_` collapsed to single hyphens
func SanitizeServerName(name string) string {
	var b strings.Builder
	hyphen := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			if hyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			hyphen = false
			b.WriteRune(r)
			continue
		}
		hyphen = true
	}
	if b.Len() == 0 {
		return DefaultServerName
	}
	return b.String()
}

// ServerID returns the short deterministic id of the server
func ServerID(name, command string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(name+":"+command))[:12]
}

// parseTool returns the tool from the server listing,
// entries without a name are skipped
func parseTool(raw json.RawMessage) (protocol.Tool, bool) {
	res := gjson.ParseBytes(raw)
	if !res.IsObject() {
		return protocol.Tool{}, false
	}
	name := strings.TrimSpace(res.Get("name").String())
	if name == "" {
		return protocol.Tool{}, false
	}
	desc := strings.TrimSpace(res.Get("description").String())
	if desc == "" {
		desc = DefaultToolDesc
	}
	sc := json.RawMessage(schema.EmptyObject)
	for _, key := range []string{"inputSchema", "input_schema"} {
		if v := res.Get(key); v.IsObject() {
			sc = json.RawMessage(v.Raw)
			break
		}
	}
	return protocol.Tool{Name: name, Description: desc, InputSchema: sc}, true
}
