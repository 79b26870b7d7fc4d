//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-relay/domain"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// AuthProvider is the identity provider minting the credentials.
// It must return errors.ErrUnauthenticated for a token it rejects;
// any other error is treated as the provider being unreachable.
type AuthProvider interface {
	ValidateToken(ctx context.Context, token string) (domain.Session, error)
}

type ICredentialValidator interface {
	Resolve(ctx context.Context, credential string) (domain.Session, error)
	Revalidate(ctx context.Context, credential string) (domain.Session, error)
	Invalidate(credential string)
}

type IMessageRepository interface {
	Append(ctx context.Context, sender string, receiver *string, text string) (domain.Message, error)
	ListFor(ctx context.Context, identity string, sinceID *uint64) ([]domain.Message, error)
	Count(ctx context.Context) (int, error)
}

// MessageSink is the delivery end of one live connection.
// Consume must never block: a sink that cannot accept a message returns an error.
type MessageSink interface {
	Consume(ctx context.Context, m domain.Message) error
	Close()
}

type IRegistry interface {
	Register(identity string, sink MessageSink) domain.Subscription
	Unregister(sub domain.Subscription) bool
	Fanout(ctx context.Context, m domain.Message) domain.FanoutReport
}
