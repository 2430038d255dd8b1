package transport

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
)

// MaxMessageSize caps the Content-Length value
const MaxMessageSize = 32 << 20

const headerContentLength = "content-length"

// Writer writes Content-Length framed messages
type Writer struct {
	w    io.Writer
	lock sync.Mutex
}

// NewWriter returns framed writer
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteMessage serializes the envelope and writes it as a single frame
func (w *Writer) WriteMessage(msg *BaseJSONRPCMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "failed to marshal message")
	}
	return w.WriteRaw(body)
}

// WriteRaw writes the body as a single frame
func (w *Writer) WriteRaw(body []byte) error {
	var buf bytes.Buffer
	buf.Grow(len(body) + 32)
	buf.WriteString("Content-Length: ")
	buf.WriteString(strconv.Itoa(len(body)))
	buf.WriteString("\r\n\r\n")
	buf.Write(body)

	w.lock.Lock()
	defer w.lock.Unlock()
	if _, err := w.w.Write(buf.Bytes()); err != nil {
		return ioError(err, "failed to write frame")
	}
	return nil
}

// Reader reads Content-Length framed messages
type Reader struct {
	br *bufio.Reader
}

// NewReader returns framed reader
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReader(r)}
}

// ReadMessage reads exactly one frame and decodes the envelope.
// io.EOF before the first header byte is reported as ErrClosed.
func (r *Reader) ReadMessage() (*BaseJSONRPCMessage, error) {
	body, err := r.ReadRaw()
	if err != nil {
		return nil, err
	}
	return DecodeMessage(body)
}

// ReadRaw reads exactly one frame and returns its body
func (r *Reader) ReadRaw() ([]byte, error) {
	length := -1
	first := true
	for {
		line, err := r.br.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				if first && line == "" {
					return nil, ErrClosed
				}
				return nil, errors.WithMessage(ErrMalformedFrame, "truncated header")
			}
			return nil, ioError(err, "failed to read header")
		}
		first = false

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, errors.WithMessagef(ErrMalformedFrame, "invalid header line: %q", line)
		}
		if !strings.EqualFold(strings.TrimSpace(key), headerContentLength) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n < 0 {
			return nil, errors.WithMessagef(ErrMalformedFrame, "invalid Content-Length: %q", value)
		}
		if n > MaxMessageSize {
			return nil, errors.WithMessagef(ErrMalformedFrame, "Content-Length exceeds limit: %d", n)
		}
		length = n
	}

	if length < 0 {
		return nil, errors.WithMessage(ErrMalformedFrame, "missing Content-Length header")
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r.br, body); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, errors.WithMessagef(ErrMalformedFrame, "truncated body: expected %d bytes", length)
		}
		return nil, ioError(err, "failed to read body")
	}
	return body, nil
}

// DecodeMessage decodes the frame body, which must be a JSON object
func DecodeMessage(body []byte) (*BaseJSONRPCMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errors.WithMessage(ErrInvalidJSON, "unexpected message shape")
	}
	msg := new(BaseJSONRPCMessage)
	if err := json.Unmarshal(trimmed, msg); err != nil {
		return nil, errors.WithMessage(ErrInvalidJSON, err.Error())
	}
	return msg, nil
}

func ioError(err error, msg string) error {
	switch {
	case errors.Is(err, os.ErrDeadlineExceeded):
		return errors.WithMessage(ErrTimeout, msg)
	case errors.Is(err, os.ErrClosed), errors.Is(err, io.ErrClosedPipe), errors.Is(err, io.EOF):
		return errors.WithMessage(ErrClosed, msg)
	}
	return errors.WithMessage(ErrClosed, msg+": "+err.Error())
}
