package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/digitalrevolution/dr-backend/pkg/enums"
)

// SubscriptionPayment records one paid invoice against a subscription.
type SubscriptionPayment struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	SubscriptionID  uuid.UUID           `gorm:"column:subscription_id;type:uuid;not null;index"`
	StripeInvoiceID string              `gorm:"column:stripe_invoice_id;not null"`
	AmountCents     int64               `gorm:"column:amount_cents;not null"`
	Currency        enums.Currency      `gorm:"column:currency;not null"`
	Status          enums.PaymentStatus `gorm:"column:status;not null"`
	PeriodStart     *time.Time          `gorm:"column:period_start"`
	PeriodEnd       *time.Time          `gorm:"column:period_end"`
	PaidAt          time.Time           `gorm:"column:paid_at;not null"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
}
