package printfulwebhook

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/digitalrevolution/dr-backend/internal/orders"
	"github.com/digitalrevolution/dr-backend/internal/webhooks"
	"github.com/digitalrevolution/dr-backend/pkg/db/models"
	"github.com/digitalrevolution/dr-backend/pkg/enums"
	pkgerrors "github.com/digitalrevolution/dr-backend/pkg/errors"
	"github.com/digitalrevolution/dr-backend/pkg/logger"
	"github.com/digitalrevolution/dr-backend/pkg/printful"
)

const (
	Provider = "printful"

	fulfillmentCanceled = "canceled"
	dateLayout          = "2006-01-02"
)

type eventGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Confirm(ctx context.Context, eventID string) error
	Release(ctx context.Context, eventID string) error
}

type orderStore interface {
	FindByPrintfulOrderID(ctx context.Context, printfulOrderID int64) (*models.Order, error)
	FindByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) error
	UpdateFulfillmentStatus(ctx context.Context, id uuid.UUID, fulfillmentStatus string, status *enums.OrderStatus) error
	MarkShipped(ctx context.Context, id uuid.UUID, shipment orders.Shipment) error
}

type notifier interface {
	ShipmentNotice(ctx context.Context, order *models.Order)
}

type webhookMetrics interface {
	Observe(provider, eventType, outcome string, duration time.Duration)
}

type ServiceParams struct {
	Secret   string
	Guard    eventGuard
	Orders   orderStore
	Notifier notifier
	Metrics  webhookMetrics
	Logger   *logger.Logger
}

// Service applies fulfillment-provider status changes to orders.
type Service struct {
	secret   string
	guard    eventGuard
	orders   orderStore
	notifier notifier
	metrics  webhookMetrics
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Guard == nil {
		return nil, fmt.Errorf("idempotency guard required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{
		secret:   params.Secret,
		guard:    params.Guard,
		orders:   params.Orders,
		notifier: params.Notifier,
		metrics:  params.Metrics,
		logg:     logg,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// HandleEvent verifies the body signature and applies the event. Printful
// envelopes carry no event id, so deliveries are keyed on type, order and
// creation time.
func (s *Service) HandleEvent(ctx context.Context, body []byte, signature string) (webhooks.Outcome, error) {
	started := s.now()

	event, err := printful.VerifyEvent(body, signature, s.secret)
	if err != nil {
		s.logg.Warn(ctx, "printful webhook rejected")
		s.observe("unknown", webhooks.OutcomeRejected, 0)
		return webhooks.OutcomeRejected, err
	}
	key := deliveryKey(event)
	ctx = s.logg.WithEvent(ctx, Provider, key, event.Type)

	seen, err := s.guard.CheckAndMark(ctx, key)
	if err != nil {
		s.observe(event.Type, webhooks.OutcomeError, 0)
		return webhooks.OutcomeError, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency")
	}
	if seen {
		s.logg.Info(ctx, "printful event already processed")
		s.observe(event.Type, webhooks.OutcomeDuplicate, 0)
		return webhooks.OutcomeDuplicate, nil
	}

	work, cancel := webhooks.Detach(ctx)
	defer cancel()
	outcome, err := s.dispatch(work, event)
	if err != nil {
		outcome, err = webhooks.Settle(ctx, s.logg, err)
	}
	if err != nil {
		if releaseErr := s.guard.Release(ctx, key); releaseErr != nil {
			s.logg.Error(ctx, "release idempotency key", releaseErr)
		}
		s.logg.Error(ctx, "printful event processing failed", err)
	} else {
		if confirmErr := s.guard.Confirm(ctx, key); confirmErr != nil {
			s.logg.Error(ctx, "confirm idempotency key", confirmErr)
		}
		s.logg.Info(s.logg.WithField(ctx, "outcome", outcome.String()), "printful event handled")
	}
	s.observe(event.Type, outcome, s.now().Sub(started))
	return outcome, err
}

func (s *Service) dispatch(ctx context.Context, event printful.Event) (webhooks.Outcome, error) {
	switch event.Type {
	case printful.EventPackageShipped, printful.EventOrderUpdated, printful.EventOrderCanceled, printful.EventOrderFailed:
	default:
		s.logg.Info(ctx, "printful event type not handled")
		return webhooks.OutcomeIgnored, nil
	}

	order, err := s.findOrder(ctx, event.Data.Order)
	if err != nil {
		return webhooks.OutcomeError, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	if order == nil {
		ref := event.Data.Order.ExternalID
		if ref == "" {
			ref = strconv.FormatInt(event.Data.Order.ID, 10)
		}
		return webhooks.OutcomeFailed, pkgerrors.NotFound(pkgerrors.ErrOrderNotFound, ref)
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"order_id":     order.ID.String(),
		"order_number": order.OrderNumber,
	})

	switch event.Type {
	case printful.EventPackageShipped:
		return s.packageShipped(ctx, order, event.Data.Shipment)
	case printful.EventOrderUpdated:
		if event.Data.Order.Status == "" {
			return webhooks.OutcomeIgnored, nil
		}
		if err := s.orders.UpdateFulfillmentStatus(ctx, order.ID, event.Data.Order.Status, nil); err != nil {
			return webhooks.OutcomeError, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update fulfillment status")
		}
	case printful.EventOrderCanceled:
		status := enums.OrderStatusCancelled
		if err := s.orders.UpdateFulfillmentStatus(ctx, order.ID, fulfillmentCanceled, &status); err != nil {
			return webhooks.OutcomeError, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cancel order")
		}
	case printful.EventOrderFailed:
		if err := s.orders.UpdateStatus(ctx, order.ID, enums.OrderStatusFulfillmentPending); err != nil {
			return webhooks.OutcomeError, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "park order")
		}
		s.logg.Warn(s.logg.WithField(ctx, "reason", event.Data.Reason), "printful reported order failure")
	}
	return webhooks.OutcomeProcessed, nil
}

func (s *Service) packageShipped(ctx context.Context, order *models.Order, shipment *printful.EventShipment) (webhooks.Outcome, error) {
	record := orders.Shipment{ShippedAt: s.now()}
	if shipment != nil {
		record.TrackingNumber = nonEmpty(shipment.TrackingNumber)
		record.TrackingURL = nonEmpty(shipment.TrackingURL)
		record.Carrier = nonEmpty(shipment.Carrier)
		record.EstimatedDelivery = parseDate(shipment.EstimatedDelivery)
		if record.EstimatedDelivery == nil {
			record.EstimatedDelivery = parseDate(shipment.ShipDate)
		}
		if shipment.ShippedAt > 0 {
			record.ShippedAt = time.Unix(shipment.ShippedAt, 0).UTC()
		}
	}
	if err := s.orders.MarkShipped(ctx, order.ID, record); err != nil {
		return webhooks.OutcomeError, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark order shipped")
	}

	order.Status = enums.OrderStatusShipped
	order.TrackingNumber = record.TrackingNumber
	order.TrackingURL = record.TrackingURL
	order.Carrier = record.Carrier
	order.EstimatedDelivery = record.EstimatedDelivery
	shippedAt := record.ShippedAt
	order.ShippedAt = &shippedAt
	s.notifier.ShipmentNotice(ctx, order)
	return webhooks.OutcomeProcessed, nil
}

// findOrder prefers the provider id and falls back to the order number we sent
// as external id.
func (s *Service) findOrder(ctx context.Context, ref printful.EventOrder) (*models.Order, error) {
	if ref.ID != 0 {
		order, err := s.orders.FindByPrintfulOrderID(ctx, ref.ID)
		if err != nil || order != nil {
			return order, err
		}
	}
	return s.orders.FindByOrderNumber(ctx, strings.TrimSpace(ref.ExternalID))
}

func (s *Service) observe(eventType string, outcome webhooks.Outcome, d time.Duration) {
	if s.metrics != nil {
		s.metrics.Observe(Provider, eventType, outcome.String(), d)
	}
}

func deliveryKey(event printful.Event) string {
	ref := event.Data.Order.ExternalID
	if event.Data.Order.ID != 0 {
		ref = strconv.FormatInt(event.Data.Order.ID, 10)
	}
	return fmt.Sprintf("%s:%s:%d", event.Type, ref, event.Created)
}

func nonEmpty(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func parseDate(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	if t, err := time.Parse(dateLayout, value); err == nil {
		return &t
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		utc := t.UTC()
		return &utc
	}
	return nil
}
