package transport

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/pkg/metricskey"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpagent/mcp", "transport")

// DefaultTimeout is the per-call timeout
const DefaultTimeout = 15 * time.Second

// ReadDeadliner is implemented by streams that support read deadlines, e.g. *os.File pipes
type ReadDeadliner interface {
	SetReadDeadline(t time.Time) error
}

// WriteDeadliner is implemented by streams that support write deadlines
type WriteDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// Conn is the client side of a framed, correlated JSON-RPC exchange.
// It serves one in-flight request at a time.
type Conn struct {
	reader  *Reader
	writer  *Writer
	rd      ReadDeadliner
	wd      WriteDeadliner
	timeout time.Duration

	lock   sync.Mutex
	nextID int64
	broken error
}

// NewConn returns a connection reading responses from r and writing requests to w.
// When r implements ReadDeadliner, reads are bounded by the file deadline,
// otherwise every read is performed on a helper goroutine bounded by a timer.
func NewConn(r io.Reader, w io.Writer, timeout time.Duration) *Conn {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Conn{
		reader:  NewReader(r),
		writer:  NewWriter(w),
		timeout: timeout,
		nextID:  1,
	}
	c.rd, _ = r.(ReadDeadliner)
	c.wd, _ = w.(WriteDeadliner)
	return c
}

// Timeout returns the per-call timeout
func (c *Conn) Timeout() time.Duration {
	return c.timeout
}

// NextID returns the id that will be assigned to the next request
func (c *Conn) NextID() int64 {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.nextID
}

// Call sends a request and waits for the response with the matching id.
// Messages with other ids, and notifications, are discarded.
func (c *Conn) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.broken != nil {
		return nil, errors.WithMessage(ErrBroken, c.broken.Error())
	}

	started := time.Now()
	deadline := c.deadline(ctx, started)

	id := c.nextID
	c.nextID++

	req, err := NewRequest(id, method, params)
	if err != nil {
		return nil, err
	}

	logger.ContextKV(ctx, xlog.DEBUG, "status", "request", "method", method, "id", id)

	if err = c.write(req, deadline); err != nil {
		return nil, c.fail(method, err)
	}

	for {
		msg, err := c.read(deadline)
		if err != nil {
			return nil, c.fail(method, err)
		}
		if !msg.IDEquals(id) {
			logger.ContextKV(ctx, xlog.DEBUG,
				"status", "skipped",
				"method", method,
				"id", id,
				"received_id", string(msg.Id),
				"received_method", msg.Method,
			)
			continue
		}
		metricskey.PerfMCPRequest.MeasureSince(started, method)
		if msg.Error != nil {
			metricskey.StatsMCPRequestsFailed.IncrCounter(1, method)
			return nil, &ProtocolError{Method: method, Err: msg.Error}
		}
		metricskey.StatsMCPRequestsSucceeded.IncrCounter(1, method)
		if len(msg.Result) == 0 {
			return json.RawMessage("null"), nil
		}
		return msg.Result, nil
	}
}

// Notify sends a one-way notification
func (c *Conn) Notify(ctx context.Context, method string, params any) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.broken != nil {
		return errors.WithMessage(ErrBroken, c.broken.Error())
	}
	msg, err := NewNotification(method, params)
	if err != nil {
		return err
	}
	logger.ContextKV(ctx, xlog.DEBUG, "status", "notify", "method", method)
	if err = c.write(msg, c.deadline(ctx, time.Now())); err != nil {
		return c.fail(method, err)
	}
	return nil
}

func (c *Conn) deadline(ctx context.Context, now time.Time) time.Time {
	deadline := now.Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	return deadline
}

func (c *Conn) fail(method string, err error) error {
	if IsTimeout(err) {
		metricskey.StatsMCPTimeouts.IncrCounter(1, method)
	} else {
		metricskey.StatsMCPRequestsFailed.IncrCounter(1, method)
	}
	c.broken = err
	return errors.WithMessagef(err, "MCP %s", method)
}

func (c *Conn) write(msg *BaseJSONRPCMessage, deadline time.Time) error {
	if c.wd != nil {
		_ = c.wd.SetWriteDeadline(deadline)
	}
	return c.writer.WriteMessage(msg)
}

func (c *Conn) read(deadline time.Time) (*BaseJSONRPCMessage, error) {
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return nil, errors.WithMessage(ErrTimeout, "deadline expired before read")
	}

	if c.rd != nil {
		if err := c.rd.SetReadDeadline(deadline); err == nil {
			return c.reader.ReadMessage()
		}
	}

	type result struct {
		msg *BaseJSONRPCMessage
		err error
	}
	ch := make(chan result, 1)
	go func() {
		msg, err := c.reader.ReadMessage()
		ch <- result{msg: msg, err: err}
	}()

	timer := time.NewTimer(remaining)
	defer timer.Stop()

	select {
	case res := <-ch:
		return res.msg, res.err
	case <-timer.C:
		return nil, errors.WithMessage(ErrTimeout, "waiting for frame")
	}
}
