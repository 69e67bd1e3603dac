package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/digitalrevolution/dr-backend/pkg/enums"
	"github.com/digitalrevolution/dr-backend/pkg/types"
)

// Order is the durable record of a paid purchase.
type Order struct {
	ID                    uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber           string                `gorm:"column:order_number;not null"`
	UserID                *uuid.UUID            `gorm:"column:user_id;type:uuid"`
	GuestID               *string               `gorm:"column:guest_id"`
	CustomerEmail         string                `gorm:"column:customer_email;not null"`
	CustomerName          string                `gorm:"column:customer_name;not null"`
	CustomerPhone         *string               `gorm:"column:customer_phone"`
	ShippingAddress       types.ShippingAddress `gorm:"column:shipping_address;type:jsonb;not null"`
	ShippingMethod        *string               `gorm:"column:shipping_method"`
	ShippingCents         int64                 `gorm:"column:shipping_cents;not null"`
	SubtotalCents         int64                 `gorm:"column:subtotal_cents;not null"`
	DiscountCents         int64                 `gorm:"column:discount_cents;not null"`
	TaxCents              int64                 `gorm:"column:tax_cents;not null"`
	TotalCents            int64                 `gorm:"column:total_cents;not null"`
	Currency              enums.Currency        `gorm:"column:currency;not null"`
	StripeSessionID       string                `gorm:"column:stripe_session_id;not null"`
	StripePaymentIntentID *string               `gorm:"column:stripe_payment_intent_id"`
	PrintfulOrderID       *int64                `gorm:"column:printful_order_id"`
	FulfillmentStatus     *string               `gorm:"column:fulfillment_status"`
	Status                enums.OrderStatus     `gorm:"column:status;not null"`
	TrackingNumber        *string               `gorm:"column:tracking_number"`
	TrackingURL           *string               `gorm:"column:tracking_url"`
	Carrier               *string               `gorm:"column:carrier"`
	EstimatedDelivery     *time.Time            `gorm:"column:estimated_delivery"`
	ShippedAt             *time.Time            `gorm:"column:shipped_at"`
	Items                 []OrderItem           `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt             time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
