package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/digitalrevolution/dr-backend/pkg/enums"
)

// CheckoutSession tracks one checkout attempt; only the payment webhook completes it.
type CheckoutSession struct {
	ID              uuid.UUID                   `gorm:"column:id;type:uuid;primaryKey"`
	CartID          uuid.UUID                   `gorm:"column:cart_id;type:uuid;not null"`
	UserID          *uuid.UUID                  `gorm:"column:user_id;type:uuid"`
	GuestID         *string                     `gorm:"column:guest_id"`
	Email           *string                     `gorm:"column:email"`
	Status          enums.CheckoutSessionStatus `gorm:"column:status;not null"`
	Currency        string                      `gorm:"column:currency;not null"`
	SubtotalCents   int64                       `gorm:"column:subtotal_cents;not null"`
	DiscountCents   int64                       `gorm:"column:discount_cents;not null"`
	ShippingCents   int64                       `gorm:"column:shipping_cents;not null"`
	TaxCents        int64                       `gorm:"column:tax_cents;not null"`
	TotalCents      int64                       `gorm:"column:total_cents;not null"`
	StripeSessionID *string                     `gorm:"column:stripe_session_id"`
	StripeEventID   *string                     `gorm:"column:stripe_event_id"`
	ProcessedAt     *time.Time                  `gorm:"column:processed_at"`
	CreatedAt       time.Time                   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time                   `gorm:"column:updated_at;autoUpdateTime"`
}
