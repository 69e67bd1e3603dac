package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/digitalrevolution/dr-backend/pkg/types"
)

// OrderItem freezes a cart line at purchase time; it is never updated.
type OrderItem struct {
	ID             uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID        `gorm:"column:order_id;type:uuid;not null"`
	ProductID      string           `gorm:"column:product_id;not null"`
	VariantID      string           `gorm:"column:variant_id;not null"`
	ProductName    string           `gorm:"column:product_name;not null"`
	Size           *string          `gorm:"column:size"`
	Color          *string          `gorm:"column:color"`
	SKU            *string          `gorm:"column:sku"`
	UnitPriceCents int64            `gorm:"column:unit_price_cents;not null"`
	Quantity       int              `gorm:"column:quantity;not null"`
	LineTotalCents int64            `gorm:"column:line_total_cents;not null"`
	Images         types.StringList `gorm:"column:images;type:jsonb;not null"`
	CreatedAt      time.Time        `gorm:"column:created_at;autoCreateTime"`
}
