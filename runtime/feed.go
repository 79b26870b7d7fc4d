package runtime

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

type FeedState int32

const (
	Connecting FeedState = iota
	Authenticated
	Streaming
	Closed
)

func (s FeedState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Authenticated:
		return "authenticated"
	case Streaming:
		return "streaming"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("FeedState(%d)", int32(s))
	}
}

// Feed is one live connection of an identity.
// Next must be called from a single goroutine; Close and State are safe anywhere.
type Feed struct {
	relay      *Relay
	credential string
	state      atomic.Int32

	mu      sync.RWMutex
	session domain.Session

	sub        domain.Subscription
	sink       *ChannelSink
	revalidate *time.Ticker
	expiry     *time.Timer
	closeOnce  sync.Once
	now        func() time.Time
}

func newFeed(relay *Relay, credential string) *Feed {
	f := &Feed{relay: relay, credential: credential, now: time.Now}
	f.state.Store(int32(Connecting))
	return f
}

func (f *Feed) authenticated(session domain.Session) {
	f.mu.Lock()
	f.session = session
	f.mu.Unlock()
	f.state.Store(int32(Authenticated))
}

func (f *Feed) stream(sub domain.Subscription, sink *ChannelSink) {
	f.sub = sub
	f.sink = sink
	f.revalidate = time.NewTicker(f.relay.revalidateInterval)
	f.expiry = time.NewTimer(f.Session().Remaining(f.now()))
	f.state.Store(int32(Streaming))
}

func (f *Feed) State() FeedState {
	return FeedState(f.state.Load())
}

func (f *Feed) Session() domain.Session {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.session
}

func (f *Feed) Subscription() domain.Subscription {
	return f.sub
}

// Next blocks until a message arrives for this feed.
// The feed is closed, and an error returned, when the context ends,
// the registry evicts the subscription (errors.ErrDeliveryDropped)
// or the session is no longer valid (errors.ErrUnauthenticated).
func (f *Feed) Next(ctx context.Context) (domain.Message, error) {
	if f.State() == Closed {
		return domain.Message{}, errors.ErrFeedClosed
	}

	for {
		select {
		case m := <-f.sink.Messages():
			if f.Session().Expired(f.now()) {
				f.shutdown("session expired")
				return domain.Message{}, fmt.Errorf("%w: session expired", errors.ErrUnauthenticated)
			}
			return m, nil

		case <-f.sink.Closed():
			if f.State() == Closed {
				return domain.Message{}, errors.ErrFeedClosed
			}
			f.shutdown("evicted")
			return domain.Message{}, errors.ErrDeliveryDropped

		case <-ctx.Done():
			f.shutdown("consumer gone")
			return domain.Message{}, ctx.Err()

		case <-f.expiry.C:
			f.shutdown("session expired")
			return domain.Message{}, fmt.Errorf("%w: session expired", errors.ErrUnauthenticated)

		case <-f.revalidate.C:
			if err := f.check(ctx); err != nil {
				f.shutdown("credential rejected")
				return domain.Message{}, err
			}
		}
	}
}

// check asks the provider again. An unreachable provider keeps the feed
// open until the session's known expiry.
func (f *Feed) check(ctx context.Context) error {
	session, err := f.relay.validator.Revalidate(ctx, f.credential)
	switch {
	case stderrors.Is(err, errors.ErrUnauthenticated):
		return err
	case err != nil:
		f.relay.log.Warn("Live feed revalidation skipped",
			"identity", f.sub.Identity, "subscription_id", f.sub.ID, "error", err)
		return nil
	}

	f.mu.Lock()
	f.session = session
	f.mu.Unlock()
	f.expiry.Reset(session.Remaining(f.now()))
	return nil
}

func (f *Feed) Close() {
	if f.State() == Connecting {
		f.state.Store(int32(Closed))
		return
	}
	f.shutdown("closed by consumer")
}

func (f *Feed) shutdown(reason string) {
	f.closeOnce.Do(func() {
		f.state.Store(int32(Closed))
		if f.sink == nil {
			return
		}
		f.revalidate.Stop()
		f.expiry.Stop()
		f.relay.registry.Unregister(f.sub)
		f.relay.log.Info("Live feed closed",
			"identity", f.sub.Identity, "subscription_id", f.sub.ID, "reason", reason)
	})
}
