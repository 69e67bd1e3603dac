package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/digitalrevolution/dr-backend/pkg/enums"
)

// Donation is a one-time contribution keyed by the processor's session id.
type Donation struct {
	ID                    uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	StripeSessionID       string               `gorm:"column:stripe_session_id;not null"`
	StripePaymentIntentID *string              `gorm:"column:stripe_payment_intent_id"`
	AmountCents           int64                `gorm:"column:amount_cents;not null"`
	Currency              enums.Currency       `gorm:"column:currency;not null"`
	DonorName             *string              `gorm:"column:donor_name"`
	DonorEmail            *string              `gorm:"column:donor_email"`
	Anonymous             bool                 `gorm:"column:anonymous;not null"`
	Message               *string              `gorm:"column:message"`
	Status                enums.DonationStatus `gorm:"column:status;not null"`
	CompletedAt           *time.Time           `gorm:"column:completed_at"`
	CreatedAt             time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
