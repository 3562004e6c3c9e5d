package queue

import (
	"context"
	"fmt"
)

// Client sends messages to a queue backend.
type Client interface {
	Send(ctx context.Context, msg Message) error
}

// HandlerFunc consumes one message.
type HandlerFunc func(ctx context.Context, msg Message) error

// InlineClient handles messages in the sending process.
type InlineClient struct {
	handle HandlerFunc
}

// NewInlineClient returns a client that passes each message to handle.
func NewInlineClient(handle HandlerFunc) *InlineClient {
	return &InlineClient{handle: handle}
}

// Send runs the handler synchronously.
func (c *InlineClient) Send(ctx context.Context, msg Message) error {
	if c.handle == nil {
		return fmt.Errorf("inline queue has no handler")
	}
	return c.handle(ctx, msg)
}

var _ Client = (*InlineClient)(nil)
