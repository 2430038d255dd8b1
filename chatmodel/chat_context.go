package chatmodel

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/effective-security/x/values"
	"github.com/effective-security/xdb/pkg/flake"
)

// ChatContext identifies one conversation across its turns.
// The chat ID is logged with every model and tool call.
type ChatContext interface {
	GetChatID() string
	// StartedAt returns the time the chat was created
	StartedAt() time.Time
	// Turn returns the number of turns started in the chat
	Turn() int
	// NextTurn starts a new turn and returns its number, starting at 1
	NextTurn() int
}

type chatContext struct {
	chatID  string
	started time.Time
	turns   atomic.Int32
}

// NewChatContext returns ChatContext for chatID,
// a flake ID is generated when chatID is empty
func NewChatContext(chatID string) ChatContext {
	return &chatContext{
		chatID:  values.StringsCoalesce(chatID, NewChatID()),
		started: time.Now(),
	}
}

func (c *chatContext) GetChatID() string    { return c.chatID }
func (c *chatContext) StartedAt() time.Time { return c.started }
func (c *chatContext) Turn() int            { return int(c.turns.Load()) }
func (c *chatContext) NextTurn() int        { return int(c.turns.Add(1)) }

type contextKey struct{}

// WithChatContext returns a new context with ChatContext value
func WithChatContext(ctx context.Context, chatCtx ChatContext) context.Context {
	return context.WithValue(ctx, contextKey{}, chatCtx)
}

// GetChatContext returns ChatContext from ctx, or nil
func GetChatContext(ctx context.Context) ChatContext {
	c, _ := ctx.Value(contextKey{}).(ChatContext)
	return c
}

// EnsureChatContext returns ctx with ChatContext,
// a new one with generated chat ID is attached when ctx has none
func EnsureChatContext(ctx context.Context) (context.Context, ChatContext) {
	if c := GetChatContext(ctx); c != nil {
		return ctx, c
	}
	c := NewChatContext("")
	return WithChatContext(ctx, c), c
}

// GetChatID returns the chat ID of ctx, empty when ctx has no ChatContext.
func GetChatID(ctx context.Context) string {
	if c := GetChatContext(ctx); c != nil {
		return c.GetChatID()
	}
	return ""
}

// NewChatID returns a new flake ID, also used as discovery trace ID.
func NewChatID() string {
	return strconv.FormatUint(flake.DefaultIDGenerator.NextID(), 10)
}
