// Package idempotency guards Pub/Sub consumers against redelivered order
// events. Each event id moves through a short "processing" claim to a
// long-lived "done" marker under
// aharraa:idempotency:evt:<consumer>:<event_id>.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	markerProcessing = "processing"
	markerDone       = "done"

	defaultClaimTTL = 10 * time.Minute
)

// Outcome reports what Process did with an event.
type Outcome int

const (
	Handled Outcome = iota
	// Duplicate means the event was already handled by this consumer.
	Duplicate
	// InFlight means another delivery of the event currently holds the claim.
	InFlight
)

func (o Outcome) String() string {
	switch o {
	case Duplicate:
		return "duplicate"
	case InFlight:
		return "in_flight"
	default:
		return "handled"
	}
}

type markerStore interface {
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// Manager records which events each consumer has handled.
type Manager struct {
	store    markerStore
	doneTTL  time.Duration
	claimTTL time.Duration
}

// NewManager keeps done markers for doneTTL. A zero doneTTL keeps them
// until redis evicts them.
func NewManager(store markerStore, doneTTL time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if doneTTL < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Manager{store: store, doneTTL: doneTTL, claimTTL: defaultClaimTTL}, nil
}

// Process runs fn at most once per consumer and event. fn's error is returned
// unchanged after the claim is released so a redelivery can try again.
func (m *Manager) Process(ctx context.Context, consumer string, eventID uuid.UUID, fn func(context.Context) error) (Outcome, error) {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return Handled, err
	}

	claimed, err := m.store.SetNX(ctx, key, markerProcessing, m.claimTTL)
	if err != nil {
		return Handled, fmt.Errorf("claim %s: %w", key, err)
	}
	if !claimed {
		state, err := m.store.Get(ctx, key)
		if err != nil {
			// The claim vanished between the two calls; let the broker redeliver.
			return InFlight, nil
		}
		if state == markerDone {
			return Duplicate, nil
		}
		return InFlight, nil
	}

	if err := fn(ctx); err != nil {
		if delErr := m.store.Del(ctx, key); delErr != nil {
			return Handled, errors.Join(err, fmt.Errorf("release claim: %w", delErr))
		}
		return Handled, err
	}

	if err := m.store.Set(ctx, key, markerDone, m.doneTTL); err != nil {
		return Handled, fmt.Errorf("mark done %s: %w", key, err)
	}
	return Handled, nil
}

// Forget drops any marker for the event so it can be replayed by hand.
func (m *Manager) Forget(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

func (m *Manager) key(consumer string, eventID uuid.UUID) (string, error) {
	if consumer == "" {
		return "", errors.New("consumer name is required")
	}
	if eventID == uuid.Nil {
		return "", errors.New("event id is required")
	}
	return m.store.IdempotencyKey("evt:"+consumer, eventID.String()), nil
}
