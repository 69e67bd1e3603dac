package webhooks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/digitalrevolution/dr-backend/pkg/redis"
)

const (
	// ProcessingTimeout bounds one delivery's handler run once it is detached
	// from the inbound request.
	ProcessingTimeout = 30 * time.Second

	claimTTL     = 2 * ProcessingTimeout
	storeTimeout = 5 * time.Second

	claimValue = "processing"
	doneValue  = "done"
)

// IdempotencyGuard remembers provider event ids so a redelivery is
// acknowledged without running its handler a second time.
//
// A claim only lives for claimTTL until Confirm stores the final mark, so a
// process that dies mid-delivery does not hide the event from the provider's
// retry.
type IdempotencyGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
}

func NewIdempotencyGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &IdempotencyGuard{
		store: store,
		ttl:   ttl,
		scope: scope,
	}, nil
}

// Detach returns a context that keeps ctx's values but not its cancellation,
// bounded by ProcessingTimeout. A provider hanging up must not abort a
// delivery halfway through its writes.
func Detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), ProcessingTimeout)
}

// CheckAndMark claims eventID and reports whether it had already been claimed.
func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, errors.New("event id is required")
	}
	key := g.store.IdempotencyKey(g.scope, eventID)
	ttl := claimTTL
	if g.ttl > 0 && g.ttl < ttl {
		ttl = g.ttl
	}
	set, err := g.store.SetNX(ctx, key, claimValue, ttl)
	if err != nil {
		return false, fmt.Errorf("set idempotency key: %w", err)
	}
	return !set, nil
}

// Confirm turns the claim on eventID into the long-lived processed mark.
func (g *IdempotencyGuard) Confirm(ctx context.Context, eventID string) error {
	if eventID == "" {
		return errors.New("event id is required")
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()
	key := g.store.IdempotencyKey(g.scope, eventID)
	if err := g.store.Set(ctx, key, doneValue, g.ttl); err != nil {
		return fmt.Errorf("confirm idempotency key: %w", err)
	}
	return nil
}

// Release forgets eventID so the provider's retry runs the handler again. It
// runs even when ctx is already cancelled.
func (g *IdempotencyGuard) Release(ctx context.Context, eventID string) error {
	if eventID == "" {
		return errors.New("event id is required")
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()
	key := g.store.IdempotencyKey(g.scope, eventID)
	return g.store.Del(ctx, key)
}
