package subscriptions

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/digitalrevolution/dr-backend/pkg/db/models"
	"github.com/digitalrevolution/dr-backend/pkg/enums"
)

// Repository persists recurring donations and their paid invoices.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, sub *models.Subscription) error
	Save(ctx context.Context, sub *models.Subscription) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	FindByStripeID(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error)
	ListOpen(ctx context.Context, after uuid.UUID, limit int) ([]models.Subscription, error)
	RecordCancellationRequest(ctx context.Context, id uuid.UUID, reason *string) error
	CreatePayment(ctx context.Context, payment *models.SubscriptionPayment) error
	FindPaymentByInvoiceID(ctx context.Context, invoiceID string) (*models.SubscriptionPayment, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).Create(sub).Error
}

func (r *repository) Save(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).Save(sub).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *repository) FindByStripeID(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error) {
	if stripeSubscriptionID == "" {
		return nil, nil
	}
	return r.first(ctx, "stripe_subscription_id = ?", stripeSubscriptionID)
}

func (r *repository) first(ctx context.Context, query string, arg any) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).Where(query, arg).First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

// ListOpen pages through subscriptions the processor may still change, keyed
// by id so a caller can resume after the last row it saw.
func (r *repository) ListOpen(ctx context.Context, after uuid.UUID, limit int) ([]models.Subscription, error) {
	if limit <= 0 {
		limit = 100
	}
	query := r.db.WithContext(ctx).
		Where("status NOT IN ?", []enums.SubscriptionStatus{
			enums.SubscriptionStatusCanceled,
			enums.SubscriptionStatusIncompleteExpired,
		}).
		Order("id ASC").
		Limit(limit)
	if after != uuid.Nil {
		query = query.Where("id > ?", after)
	}
	var subs []models.Subscription
	if err := query.Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *repository) RecordCancellationRequest(ctx context.Context, id uuid.UUID, reason *string) error {
	return r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"cancel_at_period_end": true,
			"cancellation_reason":  reason,
		}).Error
}

func (r *repository) CreatePayment(ctx context.Context, payment *models.SubscriptionPayment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) FindPaymentByInvoiceID(ctx context.Context, invoiceID string) (*models.SubscriptionPayment, error) {
	var payment models.SubscriptionPayment
	if err := r.db.WithContext(ctx).Where("stripe_invoice_id = ?", invoiceID).First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}
