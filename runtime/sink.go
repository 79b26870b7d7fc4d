package runtime

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"context"
	"sync"
)

// ChannelSink is the buffered delivery channel of one live connection.
type ChannelSink struct {
	messages chan domain.Message
	closed   chan struct{}
	once     sync.Once
}

func NewChannelSink(bufferSize int) *ChannelSink {
	return &ChannelSink{
		messages: make(chan domain.Message, bufferSize),
		closed:   make(chan struct{}),
	}
}

// Consume is called by fanout.
// It never waits: a full buffer means the consumer is too slow and is dropped.
func (s *ChannelSink) Consume(ctx context.Context, m domain.Message) error {
	select {
	case <-s.closed:
		return errors.ErrFeedClosed
	default:
	}

	select {
	case s.messages <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return errors.ErrDeliveryDropped
	}
}

// Close is idempotent. Messages already buffered stay readable.
func (s *ChannelSink) Close() {
	s.once.Do(func() { close(s.closed) })
}

func (s *ChannelSink) Messages() <-chan domain.Message {
	return s.messages
}

// Closed is closed once the registry evicted or released the sink.
func (s *ChannelSink) Closed() <-chan struct{} {
	return s.closed
}
