package transport

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFraming_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	sent := make([]*BaseJSONRPCMessage, 0, 10)
	for i := range 10 {
		var params struct {
			Name    string `json:"name" fake:"{name}"`
			Email   string `json:"email" fake:"{email}"`
			Count   int    `json:"count"`
			Unicode string `json:"unicode"`
		}
		require.NoError(t, gofakeit.Struct(&params))
		params.Unicode = "héllo 世界 " + gofakeit.Word()
		msg, err := NewRequest(int64(i+1), gofakeit.Word(), params)
		require.NoError(t, err)
		require.NoError(t, w.WriteMessage(msg))
		sent = append(sent, msg)
	}

	r := NewReader(&buf)
	for _, exp := range sent {
		got, err := r.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, exp.Method, got.Method)
		assert.Equal(t, string(exp.Id), string(got.Id))
		assert.JSONEq(t, string(exp.Params), string(got.Params))
	}

	_, err := r.ReadMessage()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestFraming_LengthCountsBytes(t *testing.T) {
	var buf bytes.Buffer
	body := []byte(`{"jsonrpc":"2.0","method":"x","params":{"t":"日本語"}}`)
	require.NoError(t, NewWriter(&buf).WriteRaw(body))

	// 日本語 is 9 bytes, 3 runes
	assert.True(t, strings.HasPrefix(buf.String(), "Content-Length: 57\r\n\r\n"), buf.String())
	assert.Equal(t, 57+len("Content-Length: 57\r\n\r\n"), buf.Len())
}

func TestFraming_Headers(t *testing.T) {
	body := `{"jsonrpc":"2.0","id":1,"result":{}}`

	t.Run("case insensitive", func(t *testing.T) {
		frame := "content-LENGTH: 36\r\n\r\n" + body
		msg, err := NewReader(strings.NewReader(frame)).ReadMessage()
		require.NoError(t, err)
		assert.True(t, msg.IDEquals(1))
	})

	t.Run("extra headers ignored", func(t *testing.T) {
		frame := "Content-Type: application/json\r\nContent-Length: 36\r\n\r\n" + body
		msg, err := NewReader(strings.NewReader(frame)).ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, BaseMessageTypeJSONRPCResponseType, msg.Type())
	})

	t.Run("bare LF", func(t *testing.T) {
		frame := "Content-Length: 36\n\n" + body
		_, err := NewReader(strings.NewReader(frame)).ReadMessage()
		require.NoError(t, err)
	})
}

func TestFraming_Malformed(t *testing.T) {
	tcases := []struct {
		name  string
		frame string
		exp   error
	}{
		{"missing length", "X-Foo: bar\r\n\r\n{}", ErrMalformedFrame},
		{"no colon", "garbage\r\n\r\n{}", ErrMalformedFrame},
		{"bad length", "Content-Length: abc\r\n\r\n{}", ErrMalformedFrame},
		{"negative length", "Content-Length: -1\r\n\r\n{}", ErrMalformedFrame},
		{"truncated header", "Content-Length: 2\r\n", ErrMalformedFrame},
		{"truncated body", "Content-Length: 20\r\n\r\n{}", ErrMalformedFrame},
		{"array body", "Content-Length: 2\r\n\r\n[]", ErrInvalidJSON},
		{"not json", "Content-Length: 5\r\n\r\nhello", ErrInvalidJSON},
		{"broken json", "Content-Length: 5\r\n\r\n{\"a\":", ErrInvalidJSON},
		{"empty", "", ErrClosed},
	}
	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewReader(strings.NewReader(tc.frame)).ReadMessage()
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.exp), "expected %v, got %v", tc.exp, err)
		})
	}
}

func TestMessage_Type(t *testing.T) {
	req, err := NewRequest(7, "tools/list", nil)
	require.NoError(t, err)
	assert.Equal(t, BaseMessageTypeJSONRPCRequestType, req.Type())
	assert.Equal(t, "{}", string(req.Params))
	assert.True(t, req.IDEquals(7))
	assert.False(t, req.IDEquals(8))

	n, err := NewNotification("notifications/initialized", nil)
	require.NoError(t, err)
	assert.Equal(t, BaseMessageTypeJSONRPCNotificationType, n.Type())
	assert.False(t, n.HasID())

	raw, err := json.Marshal(n)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"id"`)

	e := NewErrorResponse(json.RawMessage("null"), MethodNotFound, "Method not found: x")
	assert.Equal(t, BaseMessageTypeJSONRPCErrorType, e.Type())
	raw, err = json.Marshal(e)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"id":null`)

	str := &BaseJSONRPCMessage{Id: json.RawMessage(`"abc"`)}
	assert.True(t, str.HasID())
	assert.False(t, str.IDEquals(1))
}
