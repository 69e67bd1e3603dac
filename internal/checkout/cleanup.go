package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/digitalrevolution/dr-backend/internal/cart"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CleanupInput identifies the cart and session a completed checkout consumed.
// CheckoutSessionID may be nil for sessions created before the local id was
// carried in metadata; the processor session id is used instead.
type CleanupInput struct {
	CartID            uuid.UUID
	CheckoutSessionID *uuid.UUID
	StripeSessionID   string
	EventID           string
	Totals            Totals
}

// CleanupResult reports what the cleanup touched.
type CleanupResult struct {
	ItemsRemoved     int64
	SessionCompleted bool
}

// Cleaner empties the purchased cart and completes its checkout session.
// Running it twice for the same checkout changes nothing the second time.
type Cleaner struct {
	tx       txRunner
	carts    cart.Repository
	sessions Repository
	now      func() time.Time
}

func NewCleaner(tx txRunner, carts cart.Repository, sessions Repository) (*Cleaner, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("checkout session repository required")
	}
	return &Cleaner{tx: tx, carts: carts, sessions: sessions, now: time.Now}, nil
}

func (c *Cleaner) Complete(ctx context.Context, input CleanupInput) (CleanupResult, error) {
	var result CleanupResult
	err := c.tx.WithTx(ctx, func(tx *gorm.DB) error {
		removed, err := c.carts.WithTx(tx).ClearItems(ctx, input.CartID)
		if err != nil {
			return fmt.Errorf("clear cart items: %w", err)
		}
		result.ItemsRemoved = removed

		sessions := c.sessions.WithTx(tx)
		sessionID := input.CheckoutSessionID
		if sessionID == nil {
			existing, err := sessions.FindByStripeSessionID(ctx, input.StripeSessionID)
			if err != nil {
				return fmt.Errorf("find checkout session: %w", err)
			}
			if existing == nil {
				return nil
			}
			sessionID = &existing.ID
		}

		completed, err := sessions.MarkCompleted(ctx, *sessionID, Completion{
			StripeSessionID: input.StripeSessionID,
			EventID:         input.EventID,
			Totals:          input.Totals,
			ProcessedAt:     c.now().UTC(),
		})
		if err != nil {
			return fmt.Errorf("complete checkout session: %w", err)
		}
		result.SessionCompleted = completed
		return nil
	})
	return result, err
}
