package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/digitalrevolution/dr-backend/pkg/enums"
)

// Subscription persists Stripe recurring-donation state per user.
type Subscription struct {
	ID                   uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	UserID               uuid.UUID                `gorm:"column:user_id;type:uuid;not null;index"`
	StripeSubscriptionID string                   `gorm:"column:stripe_subscription_id;not null"`
	StripeCustomerID     string                   `gorm:"column:stripe_customer_id;not null"`
	StripePriceID        *string                  `gorm:"column:stripe_price_id"`
	AmountCents          int64                    `gorm:"column:amount_cents;not null"`
	Currency             enums.Currency           `gorm:"column:currency;not null"`
	Interval             enums.BillingInterval    `gorm:"column:billing_interval;not null"`
	Status               enums.SubscriptionStatus `gorm:"column:status;not null"`
	CurrentPeriodStart   *time.Time               `gorm:"column:current_period_start"`
	CurrentPeriodEnd     *time.Time               `gorm:"column:current_period_end"`
	CancelAtPeriodEnd    bool                     `gorm:"column:cancel_at_period_end;not null"`
	CanceledAt           *time.Time               `gorm:"column:canceled_at"`
	CancellationReason   *string                  `gorm:"column:cancellation_reason"`
	CreatedAt            time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
