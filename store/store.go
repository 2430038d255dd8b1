// Package store keeps the conversation of a chat between turns.
package store

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/pkg/llms"
)

// ErrInvalidChatContext is returned when ctx has no chat context
var ErrInvalidChatContext = errors.New("invalid chat context")

// MessageStore keeps the messages of the chat in ctx
type MessageStore interface {
	// Messages returns a copy of the conversation
	Messages(ctx context.Context) []llms.Message
	Add(ctx context.Context, msgs ...llms.Message) error
	Reset(ctx context.Context) error
}
