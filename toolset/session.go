package toolset

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/chatmodel"
	"github.com/effective-security/mcpagent/mcp/protocol"
	"github.com/effective-security/mcpagent/tools"
	"github.com/effective-security/xlog"
)

// EmptyResult is the output of a tool call without content
const EmptyResult = "(empty MCP tool result)"

// Session serves tools for one turn: the local registry in process,
// the remaining tools through the live MCP connection
type Session struct {
	client     Client
	serverName string
	info       protocol.Implementation
	remote     []protocol.Tool
	local      *tools.Registry
}

var _ tools.Runner = (*Session)(nil)

// Local returns a session with local tools only
func (t *Toolset) Local() *Session {
	return &Session{local: t.local}
}

// Open connects to the tool host and lists its tools.
// The session must be closed by the caller.
func (t *Toolset) Open(ctx context.Context) (*Session, error) {
	if !t.Configured() {
		return nil, errors.New("mcp client is not configured")
	}
	client := t.connect(t.cfg)
	if err := client.Start(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	raw, err := client.ListTools(ctx)
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	s := &Session{
		client:     client,
		info:       client.ServerInfo(),
		serverName: SanitizeServerName(client.ServerInfo().Name),
		local:      t.local,
	}
	for _, item := range raw {
		if p, ok := parseTool(item); ok {
			s.remote = append(s.remote, p)
		}
	}
	logger.ContextKV(ctx, xlog.DEBUG, "status", "session_opened", "server", s.serverName, "tools", len(s.remote))
	return s, nil
}

// Connected returns true if the session has a live MCP connection
func (s *Session) Connected() bool {
	return s.client != nil
}

// ServerInfo returns the server identification, nil when not connected
func (s *Session) ServerInfo() *protocol.Implementation {
	if s.client == nil {
		return nil
	}
	info := s.info
	return &info
}

// RemoteTools returns the tools listed by the server
func (s *Session) RemoteTools() []chatmodel.ToolSummary {
	list := make([]chatmodel.ToolSummary, 0, len(s.remote))
	for _, t := range s.remote {
		list = append(list, chatmodel.ToolSummary{Name: t.Name, Description: t.Description})
	}
	return list
}

// Descriptors returns the tools available in the session,
// local tools first, then remote tools not shadowed by a local one
func (s *Session) Descriptors() []tools.Descriptor {
	var list []tools.Descriptor
	if s.local != nil {
		list = s.local.Descriptors()
	}
	for _, t := range s.remote {
		if s.hasLocal(t.Name) {
			continue
		}
		list = append(list, tools.Descriptor{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}
	return list
}

// KnownTools returns canonical names of the available tools
func (s *Session) KnownTools() map[string]bool {
	known := map[string]bool{}
	for _, d := range s.Descriptors() {
		known[tools.CanonicalName(d.Name)] = true
	}
	return known
}

// Catalog returns the tool lines of the system prompt
func (s *Session) Catalog() string {
	list := s.Descriptors()
	rows := make([]string, 0, len(list))
	for _, d := range list {
		rows = append(rows, d.CatalogLine())
	}
	return strings.Join(rows, "\n")
}

// Close closes the MCP connection
func (s *Session) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}

func (s *Session) hasLocal(name string) bool {
	return s.local != nil && s.local.Has(name)
}

// RunTool executes the tool, in process when it is local
func (s *Session) RunTool(ctx context.Context, name string, input map[string]any) (string, map[string]any) {
	name = tools.CanonicalName(name)
	if input == nil {
		input = map[string]any{}
	}
	if s.hasLocal(name) {
		return s.local.RunTool(ctx, name, input)
	}
	if s.client == nil {
		return fmt.Sprintf("%s unknown tool `%s`", protocol.ErrorPrefix, name), map[string]any{
			"tool":  name,
			"input": input,
			"error": "unknown tool",
		}
	}
	return s.callRemote(ctx, s.remoteName(name), input)
}

// remoteName strips the server namespace
func (s *Session) remoteName(name string) string {
	if s.serverName != "" {
		if raw, ok := strings.CutPrefix(name, s.serverName+"."); ok {
			return raw
		}
	}
	return name
}

func (s *Session) callRemote(ctx context.Context, name string, input map[string]any) (string, map[string]any) {
	res, err := s.client.CallTool(ctx, name, input)
	if err != nil {
		logger.ContextKV(ctx, xlog.WARNING, "status", "mcp_call_failed", "tool", name, "err", err.Error())
		return fmt.Sprintf("%s MCP tool `%s` failed: %s", protocol.ErrorPrefix, name, err.Error()), map[string]any{
			"tool":   name,
			"input":  input,
			"source": SourceMCP,
			"error":  err.Error(),
		}
	}

	text := FlattenResult(res)
	if res.IsError {
		text = fmt.Sprintf("%s MCP tool `%s` returned isError=true. %s", protocol.ErrorPrefix, name, text)
	}

	var response any = res
	if js, err := json.Marshal(res); err == nil {
		var m map[string]any
		if json.Unmarshal(js, &m) == nil {
			response = m
		}
	}
	return text, map[string]any{
		"tool":   name,
		"input":  input,
		"source": SourceMCP,
		"request": map[string]any{
			"method": protocol.MethodToolsCall,
			"params": map[string]any{
				"name":      name,
				"arguments": input,
			},
		},
		"response": response,
	}
}

// FlattenResult joins text items with newlines,
// other items are JSON encoded
func FlattenResult(res *protocol.ToolsCallResult) string {
	parts := make([]string, 0, len(res.Content))
	for _, item := range res.Content {
		var part string
		if item.Type == protocol.ContentTypeText {
			part = item.Text
		} else {
			js, _ := json.Marshal(item)
			part = string(js)
		}
		if part != "" {
			parts = append(parts, part)
		}
	}
	text := strings.TrimSpace(strings.Join(parts, "\n"))
	if text == "" {
		return EmptyResult
	}
	return text
}
