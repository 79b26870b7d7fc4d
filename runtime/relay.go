// Package runtime wires credential resolution, persistence and live delivery.
// It holds no storage or transport code of its own.
package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"context"
	"log/slog"
	"time"
)

const defaultRevalidateInterval = time.Minute

type Relay struct {
	log                  *slog.Logger
	validator            contract.ICredentialValidator
	messageRepository    contract.IMessageRepository
	registry             contract.IRegistry
	connectionBufferSize int
	revalidateInterval   time.Duration
}

func NewRelay(log *slog.Logger, validator contract.ICredentialValidator,
	messageRepository contract.IMessageRepository, registry contract.IRegistry,
	connectionBufferSize int, revalidateInterval time.Duration) *Relay {
	if revalidateInterval <= 0 {
		revalidateInterval = defaultRevalidateInterval
	}
	return &Relay{
		log:                  log,
		validator:            validator,
		messageRepository:    messageRepository,
		registry:             registry,
		connectionBufferSize: connectionBufferSize,
		revalidateInterval:   revalidateInterval,
	}
}

// Submit persists a message on behalf of the credential's owner, then pushes
// it to the connected recipients. Persistence is the only guarantee:
// a failed live delivery never fails the call.
func (r *Relay) Submit(ctx context.Context, cmd domain.PostMessageCommand) (domain.Message, error) {
	session, err := r.validator.Resolve(ctx, cmd.Credential)
	if err != nil {
		return domain.Message{}, err
	}

	message, err := r.messageRepository.Append(ctx, session.Identity, domain.NormalizeReceiver(cmd.Receiver), cmd.Text)
	if err != nil {
		return domain.Message{}, err
	}

	// The caller going away must not cancel delivery to the others
	report := r.registry.Fanout(context.WithoutCancel(ctx), message)
	if report.Dropped > 0 {
		r.log.Warn("Fanout dropped subscribers",
			"message_id", message.ID, "delivered", report.Delivered, "dropped", report.Dropped)
	} else {
		r.log.Debug("Message relayed", "message_id", message.ID, "delivered", report.Delivered)
	}
	return message, nil
}

// History returns the caller's visible messages in id order.
func (r *Relay) History(ctx context.Context, cmd domain.GetMessagesCommand) ([]domain.Message, error) {
	session, err := r.validator.Resolve(ctx, cmd.Credential)
	if err != nil {
		return nil, err
	}
	return r.messageRepository.ListFor(ctx, session.Identity, cmd.SinceID)
}

// LiveFeed opens a subscription bound to the credential's identity.
// The caller owns the feed and must Close it.
func (r *Relay) LiveFeed(ctx context.Context, credential string) (*Feed, error) {
	feed := newFeed(r, credential)

	session, err := r.validator.Resolve(ctx, credential)
	if err != nil {
		feed.state.Store(int32(Closed))
		return nil, err
	}
	feed.authenticated(session)

	sink := NewChannelSink(r.connectionBufferSize)
	feed.stream(r.registry.Register(session.Identity, sink), sink)

	r.log.Info("Live feed opened", "identity", session.Identity, "subscription_id", feed.sub.ID)
	return feed, nil
}
