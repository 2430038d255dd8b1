// Package protocol defines typed params and results of the MCP methods
// served by the tool host and consumed by the stdio client.
package protocol

import (
	"encoding/json"
	"strings"
)

// DefaultProtocolVersion is sent in initialize when not configured
const DefaultProtocolVersion = "2024-11-05"

// Methods
const (
	MethodInitialize              = "initialize"
	MethodNotificationInitialized = "notifications/initialized"
	MethodToolsList               = "tools/list"
	MethodToolsCall               = "tools/call"
	MethodPing                    = "ping"
)

// Content types
const (
	ContentTypeText  = "text"
	ContentTypeImage = "image"
)

// ErrorPrefix marks tool output as a tool level failure
const ErrorPrefix = "Error:"

// Implementation describes the name and version of an MCP implementation
type Implementation struct {
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version" yaml:"version"`
}

// InitializeParams is sent by the client to start the session
type InitializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ClientInfo      Implementation `json:"clientInfo"`
}

// InitializeResult is returned by the server in response to initialize
type InitializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      Implementation `json:"serverInfo"`
}

// Tool is a tool definition as listed by the server
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// ToolsListResult is returned in response to tools/list.
// Tools are kept raw, as third party servers are not always well formed.
type ToolsListResult struct {
	Tools []json.RawMessage `json:"tools"`
}

// ToolsCallParams is sent by the client to invoke a tool
type ToolsCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// ContentBlock is one item of a tool result
type ContentBlock struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Data     string `json:"data,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// ToolsCallResult is returned in response to tools/call
type ToolsCallResult struct {
	Content []ContentBlock  `json:"content"`
	IsError bool            `json:"isError"`
	Meta    json.RawMessage `json:"meta,omitempty"`
}

// NewTextResult returns a single text block result.
// IsError is set when the text starts with ErrorPrefix.
func NewTextResult(text string) *ToolsCallResult {
	return &ToolsCallResult{
		Content: []ContentBlock{{Type: ContentTypeText, Text: text}},
		IsError: IsErrorText(text),
	}
}

// IsErrorText returns true if tool output indicates a failure
func IsErrorText(text string) bool {
	return strings.HasPrefix(text, ErrorPrefix)
}
