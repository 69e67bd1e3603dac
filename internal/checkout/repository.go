package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/digitalrevolution/dr-backend/pkg/db/models"
	"github.com/digitalrevolution/dr-backend/pkg/enums"
)

// Repository persists checkout sessions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, session *models.CheckoutSession) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.CheckoutSession, error)
	FindByStripeSessionID(ctx context.Context, stripeSessionID string) (*models.CheckoutSession, error)
	SetStripeSessionID(ctx context.Context, id uuid.UUID, stripeSessionID string) error
	MarkCompleted(ctx context.Context, id uuid.UUID, completion Completion) (bool, error)
}

// Totals are the final amounts reported by the processor, in minor units.
type Totals struct {
	Currency      string
	SubtotalCents int64
	DiscountCents int64
	ShippingCents int64
	TaxCents      int64
	TotalCents    int64
}

// Completion stamps a session as completed by a processor event.
type Completion struct {
	StripeSessionID string
	EventID         string
	Totals          Totals
	ProcessedAt     time.Time
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a checkout session repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, session *models.CheckoutSession) error {
	if session.Status == "" {
		session.Status = enums.CheckoutSessionStatusPending
	}
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.CheckoutSession, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *repository) FindByStripeSessionID(ctx context.Context, stripeSessionID string) (*models.CheckoutSession, error) {
	if stripeSessionID == "" {
		return nil, nil
	}
	return r.first(ctx, "stripe_session_id = ?", stripeSessionID)
}

func (r *repository) first(ctx context.Context, query string, arg any) (*models.CheckoutSession, error) {
	var session models.CheckoutSession
	if err := r.db.WithContext(ctx).Where(query, arg).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

func (r *repository) SetStripeSessionID(ctx context.Context, id uuid.UUID, stripeSessionID string) error {
	return r.db.WithContext(ctx).
		Model(&models.CheckoutSession{}).
		Where("id = ?", id).
		Update("stripe_session_id", stripeSessionID).Error
}

// MarkCompleted moves a session to completed. A session that is already
// completed keeps its original stamp and false is returned.
func (r *repository) MarkCompleted(ctx context.Context, id uuid.UUID, completion Completion) (bool, error) {
	updates := map[string]any{
		"status":          enums.CheckoutSessionStatusCompleted,
		"stripe_event_id": completion.EventID,
		"processed_at":    completion.ProcessedAt,
		"subtotal_cents":  completion.Totals.SubtotalCents,
		"discount_cents":  completion.Totals.DiscountCents,
		"shipping_cents":  completion.Totals.ShippingCents,
		"tax_cents":       completion.Totals.TaxCents,
		"total_cents":     completion.Totals.TotalCents,
	}
	if completion.StripeSessionID != "" {
		updates["stripe_session_id"] = completion.StripeSessionID
	}
	if completion.Totals.Currency != "" {
		updates["currency"] = completion.Totals.Currency
	}
	res := r.db.WithContext(ctx).
		Model(&models.CheckoutSession{}).
		Where("id = ? AND status <> ?", id, enums.CheckoutSessionStatusCompleted).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
