package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/digitalrevolution/dr-backend/pkg/db/models"
	"github.com/digitalrevolution/dr-backend/pkg/enums"
)

// Repository persists orders, their frozen items and fulfillment audit rows.
// Find methods return nil, nil when nothing matches.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	CreateItems(ctx context.Context, items []models.OrderItem) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByStripeSessionID(ctx context.Context, stripeSessionID string) (*models.Order, error)
	FindByPrintfulOrderID(ctx context.Context, printfulOrderID int64) (*models.Order, error)
	FindByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	ListAwaitingPlacement(ctx context.Context, createdBefore time.Time, limit int) ([]models.Order, error)
	RecordFulfillment(ctx context.Context, id uuid.UUID, printfulOrderID int64, fulfillmentStatus string) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) error
	UpdateFulfillmentStatus(ctx context.Context, id uuid.UUID, fulfillmentStatus string, status *enums.OrderStatus) error
	MarkShipped(ctx context.Context, id uuid.UUID, shipment Shipment) error
	CreateFulfillmentOrder(ctx context.Context, record *models.FulfillmentOrder) error
}

// Shipment carries tracking details reported by the fulfillment provider.
type Shipment struct {
	TrackingNumber    *string
	TrackingURL       *string
	Carrier           *string
	EstimatedDelivery *time.Time
	ShippedAt         time.Time
}

type cartReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Cart, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}
