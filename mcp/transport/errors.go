package transport

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Transport errors are fatal to the call that observed them.
var (
	// ErrTimeout is returned when the deadline expires while waiting for a frame
	ErrTimeout = errors.New("mcp: read timeout")
	// ErrClosed is returned on clean end of stream, or when the transport is closed
	ErrClosed = errors.New("mcp: stream closed")
	// ErrMalformedFrame is returned for bad headers, missing length or truncated body
	ErrMalformedFrame = errors.New("mcp: malformed frame")
	// ErrInvalidJSON is returned when the frame body is not a JSON object
	ErrInvalidJSON = errors.New("mcp: invalid JSON")
	// ErrBroken is returned by a connection that failed a previous call
	ErrBroken = errors.New("mcp: connection is unusable after a failed call")
)

// ProtocolError is returned when the peer answers a request with an error member
type ProtocolError struct {
	Method string
	Err    *JSONRPCError
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("MCP %s error: %d %s", e.Method, e.Err.Code, e.Err.Message)
}

// IsTimeout returns true if err is a read timeout
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
