package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

type entry struct {
	sub  domain.Subscription
	sink contract.MessageSink
}

// Registry tracks the live sinks of every connected identity.
// A user may hold several subscriptions at once, one per connection.
type Registry struct {
	mu         sync.RWMutex
	byIdentity map[string]map[uuid.UUID]entry
	log        *slog.Logger
	now        func() time.Time
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		byIdentity: make(map[string]map[uuid.UUID]entry),
		log:        log,
		now:        time.Now,
	}
}

// Register records a new delivery sink for identity and returns its handle.
func (r *Registry) Register(identity string, sink contract.MessageSink) domain.Subscription {
	sub := domain.Subscription{
		ID:           uuid.New(),
		Identity:     identity,
		RegisteredAt: r.now().UTC(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byIdentity[identity]; !ok {
		r.byIdentity[identity] = make(map[uuid.UUID]entry)
	}
	r.byIdentity[identity][sub.ID] = entry{sub: sub, sink: sink}
	return sub
}

// Unregister removes the subscription and closes its sink.
// It reports whether the subscription was still registered;
// calling it again, or after an eviction, is a no-op.
func (r *Registry) Unregister(sub domain.Subscription) bool {
	r.mu.Lock()
	entries, ok := r.byIdentity[sub.Identity]
	if !ok {
		r.mu.Unlock()
		return false
	}
	e, ok := entries[sub.ID]
	if ok {
		delete(entries, sub.ID)
		// No empty sets are left behind
		if len(entries) == 0 {
			delete(r.byIdentity, sub.Identity)
		}
	}
	r.mu.Unlock()

	if ok {
		e.sink.Close()
	}
	return ok
}

// Fanout delivers m to every matching sink:
// all of them for a broadcast, otherwise the receiver's and the sender's.
// Each sink gets at most one copy. A sink refusing the message is evicted,
// other sinks are unaffected.
func (r *Registry) Fanout(ctx context.Context, m domain.Message) domain.FanoutReport {
	var report domain.FanoutReport
	for _, e := range r.targets(m) {
		if err := e.sink.Consume(ctx, m); err != nil {
			report.Dropped++
			r.log.Warn("DeliveryDropped",
				"identity", e.sub.Identity,
				"subscription_id", e.sub.ID,
				"message_id", m.ID,
				"error", err)
			r.Unregister(e.sub)
			continue
		}
		report.Delivered++
	}
	return report
}

// targets snapshots the matching entries so delivery happens outside the lock.
func (r *Registry) targets(m domain.Message) []entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var res []entry
	if m.IsBroadcast() {
		for _, entries := range r.byIdentity {
			for _, e := range entries {
				res = append(res, e)
			}
		}
		return res
	}

	for _, e := range r.byIdentity[*m.ReceiverID] {
		res = append(res, e)
	}
	if m.SenderID != *m.ReceiverID {
		for _, e := range r.byIdentity[m.SenderID] {
			res = append(res, e)
		}
	}
	return res
}

// Count returns the number of live subscriptions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := 0
	for _, entries := range r.byIdentity {
		total += len(entries)
	}
	return total
}
