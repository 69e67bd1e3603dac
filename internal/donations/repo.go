package donations

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/digitalrevolution/dr-backend/pkg/db/models"
)

// Repository persists one-time donations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByStripeSessionID(ctx context.Context, stripeSessionID string) (*models.Donation, error)
	Save(ctx context.Context, donation *models.Donation) error
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

// FindByStripeSessionID returns nil, nil when no donation exists for the session.
func (r *repository) FindByStripeSessionID(ctx context.Context, stripeSessionID string) (*models.Donation, error) {
	var donation models.Donation
	err := r.db.WithContext(ctx).Where("stripe_session_id = ?", stripeSessionID).First(&donation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &donation, nil
}

// Save inserts new donations and updates existing ones.
func (r *repository) Save(ctx context.Context, donation *models.Donation) error {
	return r.db.WithContext(ctx).Save(donation).Error
}
