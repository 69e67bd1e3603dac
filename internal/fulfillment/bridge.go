package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/digitalrevolution/dr-backend/internal/orders"
	"github.com/digitalrevolution/dr-backend/pkg/db/models"
	"github.com/digitalrevolution/dr-backend/pkg/enums"
	"github.com/digitalrevolution/dr-backend/pkg/logger"
	"github.com/digitalrevolution/dr-backend/pkg/printful"
)

const (
	ProviderPrintful = "printful"
	degradedStep     = "fulfillment"
	defaultShipping  = "STANDARD"
)

// ErrAlreadyPlaced is returned for an order Printful already holds.
var ErrAlreadyPlaced = errors.New("order already placed with printful")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type orderPlacer interface {
	CreateOrder(ctx context.Context, req printful.OrderRequest) (*printful.OrderResult, error)
}

type degradedRecorder interface {
	IncDegraded(step string)
}

type BridgeParams struct {
	Tx       txRunner
	Orders   orders.Repository
	Printful orderPlacer
	Logger   *logger.Logger
	Metrics  degradedRecorder
}

// Bridge places production orders with Printful for paid orders.
type Bridge struct {
	tx       txRunner
	orders   orders.Repository
	printful orderPlacer
	logg     *logger.Logger
	metrics  degradedRecorder
}

func NewBridge(params BridgeParams) (*Bridge, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Printful == nil {
		return nil, fmt.Errorf("printful client required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Bridge{
		tx:       params.Tx,
		orders:   params.Orders,
		printful: params.Printful,
		logg:     logg,
		metrics:  params.Metrics,
	}, nil
}

// Submit places the order with the provider and records the outcome on it.
// On success the provider id and status are stored together with an audit row.
// On failure the order is parked in fulfillment_pending; the returned error is
// informational, the degraded state has already been written. Orders that
// already carry a Printful id are refused with ErrAlreadyPlaced.
func (b *Bridge) Submit(ctx context.Context, order *models.Order) error {
	ctx = b.logg.WithFields(ctx, map[string]any{
		"order_id":     order.ID.String(),
		"order_number": order.OrderNumber,
	})
	if order.PrintfulOrderID != nil {
		return fmt.Errorf("%w: %d", ErrAlreadyPlaced, *order.PrintfulOrderID)
	}

	result, err := b.printful.CreateOrder(ctx, BuildOrderRequest(order))
	if err != nil {
		b.degrade(ctx, order, err)
		return err
	}

	err = b.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := b.orders.WithTx(tx)
		if err := repo.RecordFulfillment(ctx, order.ID, result.ID, result.Status); err != nil {
			return err
		}
		return repo.CreateFulfillmentOrder(ctx, &models.FulfillmentOrder{
			OrderID:         order.ID,
			Provider:        ProviderPrintful,
			ProviderOrderID: strconv.FormatInt(result.ID, 10),
			Status:          result.Status,
			RawResponse:     result.Raw,
		})
	})
	if err != nil {
		// the provider order exists; resubmitting would be rejected as a duplicate external id
		b.logg.Error(b.logg.WithField(ctx, "printful_order_id", result.ID), "printful order placed but not recorded", err)
		b.incDegraded()
		return err
	}

	id := result.ID
	status := result.Status
	order.PrintfulOrderID = &id
	order.FulfillmentStatus = &status
	order.Status = enums.OrderStatusProcessing
	b.logg.Info(b.logg.WithField(ctx, "printful_order_id", id), "fulfillment order placed")
	return nil
}

func (b *Bridge) degrade(ctx context.Context, order *models.Order, cause error) {
	b.logg.Error(ctx, "fulfillment submission failed; order parked as fulfillment_pending", cause)
	b.incDegraded()
	if err := b.orders.UpdateStatus(ctx, order.ID, enums.OrderStatusFulfillmentPending); err != nil {
		b.logg.Error(ctx, "mark order fulfillment_pending", err)
		return
	}
	order.Status = enums.OrderStatusFulfillmentPending
}

func (b *Bridge) incDegraded() {
	if b.metrics != nil {
		b.metrics.IncDegraded(degradedStep)
	}
}

// BuildOrderRequest maps an order and its frozen items to a Printful order.
// The order number is the external id so Printful rejects duplicates.
func BuildOrderRequest(order *models.Order) printful.OrderRequest {
	addr := order.ShippingAddress
	recipient := printful.Recipient{
		Name:        addr.FullName(),
		Address1:    addr.Line1,
		City:        addr.City,
		StateCode:   addr.State,
		CountryCode: addr.Country,
		Zip:         addr.PostalCode,
		Email:       order.CustomerEmail,
	}
	if addr.Line2 != nil {
		recipient.Address2 = *addr.Line2
	}
	if addr.Phone != nil {
		recipient.Phone = *addr.Phone
	}

	money := func(minor int64) string {
		exp := order.Currency.Exponent()
		return decimal.New(minor, -exp).StringFixed(exp)
	}

	items := make([]printful.Item, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, printful.Item{
			ExternalVariantID: item.VariantID,
			Quantity:          item.Quantity,
			RetailPrice:       money(item.UnitPriceCents),
			Name:              item.ProductName,
		})
	}

	shipping := defaultShipping
	if order.ShippingMethod != nil && *order.ShippingMethod != "" {
		shipping = *order.ShippingMethod
	}

	return printful.OrderRequest{
		ExternalID: order.OrderNumber,
		Shipping:   shipping,
		Recipient:  recipient,
		Items:      items,
		RetailCosts: &printful.RetailCosts{
			Currency: order.Currency.String(),
			Subtotal: money(order.SubtotalCents),
			Discount: money(order.DiscountCents),
			Shipping: money(order.ShippingCents),
			Tax:      money(order.TaxCents),
		},
	}
}
