package publisher

import "context"

// Publisher publishes run events to a stream
type Publisher interface {
	// Publish appends a message to the stream under the given field key
	Publish(ctx context.Context, key string, message []byte) error

	// TrimStreams trims the stream to the configured maximum length
	TrimStreams(ctx context.Context) error

	// Close closes the publisher connection
	Close() error
}

// NoopPublisher discards every message
type NoopPublisher struct{}

// Publish implements Publisher
func (NoopPublisher) Publish(context.Context, string, []byte) error { return nil }

// TrimStreams implements Publisher
func (NoopPublisher) TrimStreams(context.Context) error { return nil }

// Close implements Publisher
func (NoopPublisher) Close() error { return nil }
