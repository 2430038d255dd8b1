package transport

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/cockroachdb/errors"
)

// JSONRPCVersion is the only protocol version accepted on the wire
const JSONRPCVersion = "2.0"

// Standard JSON-RPC error codes
const (
	ParseError     = -32700
	MethodNotFound = -32601
	InternalError  = -32603
)

// BaseMessageType identifies the shape of an envelope
type BaseMessageType string

const (
	BaseMessageTypeJSONRPCRequestType      BaseMessageType = "request"
	BaseMessageTypeJSONRPCNotificationType BaseMessageType = "notification"
	BaseMessageTypeJSONRPCResponseType     BaseMessageType = "response"
	BaseMessageTypeJSONRPCErrorType        BaseMessageType = "error"
	BaseMessageTypeUnknown                 BaseMessageType = "unknown"
)

// RequestId is the raw JSON value of an envelope id.
// Ids issued by this package are always positive integers,
// the server side echoes whatever value it receives.
type RequestId = json.RawMessage

// NewRequestId returns numeric id
func NewRequestId(id int64) RequestId {
	return RequestId(strconv.FormatInt(id, 10))
}

// NullRequestId returns the null id of a response
// to a request whose id could not be read
func NullRequestId() RequestId {
	return RequestId("null")
}

// JSONRPCError is the error member of a response
type JSONRPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *JSONRPCError) Error() string {
	return "RPC error " + strconv.Itoa(e.Code) + ": " + e.Message
}

// BaseJSONRPCMessage is the generic envelope used at the transport boundary.
// Method specific params and results are decoded by the caller.
type BaseJSONRPCMessage struct {
	Jsonrpc string          `json:"jsonrpc"`
	Id      RequestId       `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

// HasID returns true if the envelope carries non-null id
func (m *BaseJSONRPCMessage) HasID() bool {
	return len(m.Id) > 0 && !bytes.Equal(m.Id, []byte("null"))
}

// IDEquals returns true if the envelope id is numeric and equals to id
func (m *BaseJSONRPCMessage) IDEquals(id int64) bool {
	if !m.HasID() {
		return false
	}
	v, err := strconv.ParseInt(string(bytes.TrimSpace(m.Id)), 10, 64)
	return err == nil && v == id
}

// Type returns the shape of the envelope
func (m *BaseJSONRPCMessage) Type() BaseMessageType {
	switch {
	case m.Method != "" && m.HasID():
		return BaseMessageTypeJSONRPCRequestType
	case m.Method != "":
		return BaseMessageTypeJSONRPCNotificationType
	case m.Error != nil:
		return BaseMessageTypeJSONRPCErrorType
	case m.HasID():
		return BaseMessageTypeJSONRPCResponseType
	}
	return BaseMessageTypeUnknown
}

// NewRequest returns a request envelope
func NewRequest(id int64, method string, params any) (*BaseJSONRPCMessage, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	return &BaseJSONRPCMessage{
		Jsonrpc: JSONRPCVersion,
		Id:      NewRequestId(id),
		Method:  method,
		Params:  raw,
	}, nil
}

// NewNotification returns a notification envelope
func NewNotification(method string, params any) (*BaseJSONRPCMessage, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	return &BaseJSONRPCMessage{
		Jsonrpc: JSONRPCVersion,
		Method:  method,
		Params:  raw,
	}, nil
}

// NewResponse returns a result envelope for the request id
func NewResponse(id RequestId, result any) (*BaseJSONRPCMessage, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal result")
	}
	return &BaseJSONRPCMessage{
		Jsonrpc: JSONRPCVersion,
		Id:      id,
		Result:  raw,
	}, nil
}

// NewErrorResponse returns an error envelope for the request id
func NewErrorResponse(id RequestId, code int, message string) *BaseJSONRPCMessage {
	return &BaseJSONRPCMessage{
		Jsonrpc: JSONRPCVersion,
		Id:      id,
		Error: &JSONRPCError{
			Code:    code,
			Message: message,
		},
	}
}

func marshalParams(params any) (json.RawMessage, error) {
	if params == nil {
		return json.RawMessage("{}"), nil
	}
	if raw, ok := params.(json.RawMessage); ok {
		return raw, nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal params")
	}
	return raw, nil
}
