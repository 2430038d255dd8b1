// Package server implements the tool host: a stdio MCP responder
// that lists and invokes the tools of a registry.
package server

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/chatmodel"
	"github.com/effective-security/mcpagent/mcp/protocol"
	"github.com/effective-security/mcpagent/mcp/transport"
	"github.com/effective-security/mcpagent/tools"
	"github.com/effective-security/xlog"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpagent/mcp", "server")

// DefaultInfo is the server identification returned by initialize
var DefaultInfo = protocol.Implementation{
	Name:    "local-llm-demo-mcp-tools",
	Version: "1.0",
}

// Catalog is the set of tools served by the host
type Catalog interface {
	tools.Runner
	Descriptors() []tools.Descriptor
}

type handler func(ctx context.Context, s *Server, params json.RawMessage) (any, *transport.JSONRPCError)

var methodHandlers = map[string]handler{
	protocol.MethodInitialize: handleInitialize,
	protocol.MethodToolsList:  handleToolsList,
	protocol.MethodToolsCall:  handleToolsCall,
	protocol.MethodPing:       handlePing,
}

// Server answers MCP requests, it never initiates
type Server struct {
	catalog         Catalog
	info            protocol.Implementation
	protocolVersion string
}

// Option configures the server
type Option func(*Server)

// WithInfo sets the server identification
func WithInfo(info protocol.Implementation) Option {
	return func(s *Server) {
		s.info = info
	}
}

// WithProtocolVersion sets the protocol version returned by initialize
func WithProtocolVersion(version string) Option {
	return func(s *Server) {
		if version != "" {
			s.protocolVersion = version
		}
	}
}

// New returns the server for the catalog
func New(catalog Catalog, opts ...Option) *Server {
	s := &Server{
		catalog:         catalog,
		info:            DefaultInfo,
		protocolVersion: protocol.DefaultProtocolVersion,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Serve reads framed requests from r and writes responses to w
// until the end of input. Logging never goes to w.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	reader := transport.NewReader(r)
	writer := transport.NewWriter(w)

	logger.ContextKV(ctx, xlog.INFO, "status", "serving", "name", s.info.Name, "version", s.info.Version)

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		var resp *transport.BaseJSONRPCMessage
		msg, err := reader.ReadMessage()
		switch {
		case err == nil:
			resp = s.Handle(ctx, msg)
		case errors.Is(err, transport.ErrClosed):
			logger.ContextKV(ctx, xlog.INFO, "status", "end_of_input")
			return nil
		case errors.Is(err, transport.ErrInvalidJSON):
			// the frame was consumed, the stream is still in sync
			logger.ContextKV(ctx, xlog.WARNING, "status", "parse_error", "err", err.Error())
			resp = transport.NewErrorResponse(transport.NullRequestId(), transport.ParseError, "Parse error")
		default:
			logger.ContextKV(ctx, xlog.ERROR, "status", "read_failed", "err", err.Error())
			return err
		}

		if resp == nil {
			continue
		}
		if err = writer.WriteMessage(resp); err != nil {
			logger.ContextKV(ctx, xlog.ERROR, "status", "write_failed", "err", err.Error())
			return err
		}
	}
}

// Handle returns the response to the message,
// or nil for notifications and stray responses
func (s *Server) Handle(ctx context.Context, msg *transport.BaseJSONRPCMessage) *transport.BaseJSONRPCMessage {
	if msg.Method == protocol.MethodNotificationInitialized {
		// no-op even when sent with an id
		logger.ContextKV(ctx, xlog.DEBUG, "status", "initialized", "id", string(msg.Id))
		return nil
	}

	switch msg.Type() {
	case transport.BaseMessageTypeJSONRPCNotificationType:
		logger.ContextKV(ctx, xlog.DEBUG, "status", "notification", "method", msg.Method)
		return nil
	case transport.BaseMessageTypeJSONRPCRequestType:
	default:
		logger.ContextKV(ctx, xlog.DEBUG, "status", "ignored", "id", string(msg.Id))
		return nil
	}

	logger.ContextKV(ctx, xlog.DEBUG, "status", "request", "method", msg.Method, "id", string(msg.Id))

	h, ok := methodHandlers[msg.Method]
	if !ok {
		return transport.NewErrorResponse(msg.Id, transport.MethodNotFound, "Method not found: "+msg.Method)
	}

	result, rpcErr := h(ctx, s, msg.Params)
	if rpcErr != nil {
		return &transport.BaseJSONRPCMessage{
			Jsonrpc: transport.JSONRPCVersion,
			Id:      msg.Id,
			Error:   rpcErr,
		}
	}
	resp, err := transport.NewResponse(msg.Id, result)
	if err != nil {
		return transport.NewErrorResponse(msg.Id, transport.InternalError, err.Error())
	}
	return resp
}

// decodeParams decodes the params object into v,
// malformed params are reported and v keeps its zero value
func decodeParams(ctx context.Context, method string, params json.RawMessage, v any) {
	if !gjson.ParseBytes(params).IsObject() {
		return
	}
	if err := json.Unmarshal(params, v); err != nil {
		logger.ContextKV(ctx, xlog.WARNING, "status", "invalid_params", "method", method, "err", err.Error())
	}
}

func handleInitialize(ctx context.Context, s *Server, params json.RawMessage) (any, *transport.JSONRPCError) {
	var req protocol.InitializeParams
	decodeParams(ctx, protocol.MethodInitialize, params, &req)
	logger.ContextKV(ctx, xlog.INFO,
		"status", "initialize",
		"client", req.ClientInfo.Name,
		"client_version", req.ClientInfo.Version,
		"protocol", req.ProtocolVersion,
	)
	return &protocol.InitializeResult{
		ProtocolVersion: s.protocolVersion,
		Capabilities:    map[string]any{"tools": map[string]any{}},
		ServerInfo:      s.info,
	}, nil
}

func handlePing(_ context.Context, _ *Server, _ json.RawMessage) (any, *transport.JSONRPCError) {
	return map[string]any{}, nil
}

func handleToolsList(_ context.Context, s *Server, _ json.RawMessage) (any, *transport.JSONRPCError) {
	list := s.catalog.Descriptors()
	res := &protocol.ToolsListResult{
		Tools: make([]json.RawMessage, 0, len(list)),
	}
	for _, d := range list {
		js, err := json.Marshal(d)
		if err != nil {
			return nil, &transport.JSONRPCError{Code: transport.InternalError, Message: err.Error()}
		}
		res.Tools = append(res.Tools, js)
	}
	return res, nil
}

func handleToolsCall(ctx context.Context, s *Server, params json.RawMessage) (any, *transport.JSONRPCError) {
	ctx, _ = chatmodel.EnsureChatContext(ctx)

	// a non-object arguments value is called with empty arguments
	p := gjson.ParseBytes(params)
	name := strings.TrimSpace(p.Get("name").String())
	args := map[string]any{}
	if raw := p.Get("arguments"); raw.IsObject() {
		if err := json.Unmarshal([]byte(raw.Raw), &args); err != nil {
			logger.ContextKV(ctx, xlog.WARNING, "status", "invalid_arguments", "tool", name, "err", err.Error())
			args = map[string]any{}
		}
	}
	output, meta := s.catalog.RunTool(ctx, name, args)

	res := protocol.NewTextResult(output)
	res.Meta = s.encodeMeta(meta)
	return res, nil
}

// encodeMeta returns the tool meta tagged with the host name
func (s *Server) encodeMeta(meta map[string]any) json.RawMessage {
	if meta == nil {
		meta = map[string]any{}
	}
	js, err := json.Marshal(meta)
	if err != nil {
		js = []byte("{}")
	}
	if tagged, err := sjson.SetBytes(js, "host", s.info.Name); err == nil {
		js = tagged
	}
	return js
}
