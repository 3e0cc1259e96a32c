package queue

import "context"

const (
	// WorkQueue is the single work queue all dispatch requests flow through.
	WorkQueue = "dispatch"

	// DLQ receives messages rejected as unprocessable.
	DLQ = "dlq.dispatch"
)

// Publisher publishes dispatch messages to a queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, msg DispatchMessage) error
	Close() error
}

// MessageHandler handles a consumed queue message.
type MessageHandler func(ctx context.Context, msg DispatchMessage) error

// Consumer consumes dispatch messages from a queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler MessageHandler) error
	Close() error
}
