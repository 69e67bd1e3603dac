package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/digitalrevolution/dr-backend/pkg/db/models"
	"github.com/digitalrevolution/dr-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Create inserts the order row only; items are written with CreateItems.
func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(order).Error
}

func (r *repository) CreateItems(ctx context.Context, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *repository) FindByStripeSessionID(ctx context.Context, stripeSessionID string) (*models.Order, error) {
	if stripeSessionID == "" {
		return nil, nil
	}
	return r.first(ctx, "stripe_session_id = ?", stripeSessionID)
}

func (r *repository) FindByPrintfulOrderID(ctx context.Context, printfulOrderID int64) (*models.Order, error) {
	if printfulOrderID == 0 {
		return nil, nil
	}
	return r.first(ctx, "printful_order_id = ?", printfulOrderID)
}

func (r *repository) FindByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	if orderNumber == "" {
		return nil, nil
	}
	return r.first(ctx, "order_number = ?", orderNumber)
}

func (r *repository) first(ctx context.Context, query string, arg any) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Where(query, arg).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// ListAwaitingPlacement returns the oldest fulfillment_pending orders created
// before the cutoff that Printful has never accepted. Orders Printful already
// holds cannot be placed again under the same external id.
func (r *repository) ListAwaitingPlacement(ctx context.Context, createdBefore time.Time, limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = 25
	}
	var rows []models.Order
	if err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Where("status = ? AND printful_order_id IS NULL AND created_at <= ?", enums.OrderStatusFulfillmentPending, createdBefore).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// RecordFulfillment stores the provider's order reference and moves the order
// back to processing.
func (r *repository) RecordFulfillment(ctx context.Context, id uuid.UUID, printfulOrderID int64, fulfillmentStatus string) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"printful_order_id":  printfulOrderID,
			"fulfillment_status": fulfillmentStatus,
			"status":             enums.OrderStatusProcessing,
		}).Error
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *repository) UpdateFulfillmentStatus(ctx context.Context, id uuid.UUID, fulfillmentStatus string, status *enums.OrderStatus) error {
	updates := map[string]any{"fulfillment_status": fulfillmentStatus}
	if status != nil {
		updates["status"] = *status
	}
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) MarkShipped(ctx context.Context, id uuid.UUID, shipment Shipment) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":             enums.OrderStatusShipped,
			"tracking_number":    shipment.TrackingNumber,
			"tracking_url":       shipment.TrackingURL,
			"carrier":            shipment.Carrier,
			"estimated_delivery": shipment.EstimatedDelivery,
			"shipped_at":         shipment.ShippedAt,
		}).Error
}

func (r *repository) CreateFulfillmentOrder(ctx context.Context, record *models.FulfillmentOrder) error {
	return r.db.WithContext(ctx).Create(record).Error
}
