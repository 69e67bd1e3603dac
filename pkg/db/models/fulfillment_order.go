package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// FulfillmentOrder is the audit row for a production order placed with the provider.
type FulfillmentOrder struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID         uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	Provider        string          `gorm:"column:provider;not null"`
	ProviderOrderID string          `gorm:"column:provider_order_id;not null"`
	Status          string          `gorm:"column:status;not null"`
	RawResponse     json.RawMessage `gorm:"column:raw_response;type:jsonb"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
}
