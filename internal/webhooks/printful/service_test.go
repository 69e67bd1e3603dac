package printfulwebhook

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/digitalrevolution/dr-backend/internal/orders"
	"github.com/digitalrevolution/dr-backend/internal/webhooks"
	"github.com/digitalrevolution/dr-backend/pkg/db/dbtest"
	"github.com/digitalrevolution/dr-backend/pkg/db/models"
	"github.com/digitalrevolution/dr-backend/pkg/enums"
	pkgerrors "github.com/digitalrevolution/dr-backend/pkg/errors"
	"github.com/digitalrevolution/dr-backend/pkg/printful"
	pkgredis "github.com/digitalrevolution/dr-backend/pkg/redis"
	"github.com/digitalrevolution/dr-backend/pkg/types"
)

const secret = "printful-secret"

type recordingNotifier struct {
	shipped []*models.Order
}

func (n *recordingNotifier) ShipmentNotice(_ context.Context, order *models.Order) {
	n.shipped = append(n.shipped, order)
}

type fixture struct {
	conn     *gorm.DB
	redis    *miniredis.Miniredis
	repo     orders.Repository
	notifier *recordingNotifier
	service  *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	srv := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = raw.Close() })

	guard, err := webhooks.NewIdempotencyGuard(pkgredis.NewFromClient(raw), time.Hour, "printful-webhook")
	require.NoError(t, err)

	repo := orders.NewRepository(conn)
	notifier := &recordingNotifier{}
	svc, err := NewService(ServiceParams{Secret: secret, Guard: guard, Orders: repo, Notifier: notifier})
	require.NoError(t, err)
	return &fixture{conn: conn, redis: srv, repo: repo, notifier: notifier, service: svc}
}

func (f *fixture) seedOrder(t *testing.T, printfulID *int64) *models.Order {
	t.Helper()
	guest := "guest-1"
	order := &models.Order{
		OrderNumber:     "ORD-1717171717171-ABCDE",
		GuestID:         &guest,
		CustomerEmail:   "jane@example.org",
		CustomerName:    "Jane Doe",
		ShippingAddress: types.ShippingAddress{FirstName: "Jane", LastName: "Doe", Line1: "1 Main St", City: "Austin", State: "TX", Country: "US", PostalCode: "78701"},
		SubtotalCents:   2000,
		TotalCents:      2000,
		Currency:        enums.CurrencyUSD,
		StripeSessionID: "cs_1",
		PrintfulOrderID: printfulID,
		Status:          enums.OrderStatusProcessing,
	}
	require.NoError(t, f.repo.Create(context.Background(), order))
	return order
}

func (f *fixture) deliver(t *testing.T, event printful.Event) (webhooks.Outcome, error) {
	t.Helper()
	body, err := json.Marshal(event)
	require.NoError(t, err)
	return f.service.HandleEvent(context.Background(), body, printful.Sign(body, secret))
}

func (f *fixture) reload(t *testing.T, order *models.Order) *models.Order {
	t.Helper()
	stored, err := f.repo.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	return stored
}

func TestPackageShippedRecordsTrackingAndNotifies(t *testing.T) {
	f := newFixture(t)
	printfulID := int64(9001)
	order := f.seedOrder(t, &printfulID)

	event := printful.Event{
		Type:    printful.EventPackageShipped,
		Created: 1767225600,
		Data: printful.EventData{
			Order: printful.EventOrder{ID: printfulID, ExternalID: order.OrderNumber, Status: "fulfilled"},
			Shipment: &printful.EventShipment{
				Carrier:           "USPS",
				TrackingNumber:    "9400111",
				TrackingURL:       "https://track.example/9400111",
				EstimatedDelivery: "2026-01-08",
				ShippedAt:         1767225600,
			},
		},
	}
	outcome, err := f.deliver(t, event)
	require.NoError(t, err)
	assert.Equal(t, webhooks.OutcomeProcessed, outcome)

	stored := f.reload(t, order)
	assert.Equal(t, enums.OrderStatusShipped, stored.Status)
	require.NotNil(t, stored.TrackingNumber)
	assert.Equal(t, "9400111", *stored.TrackingNumber)
	require.NotNil(t, stored.Carrier)
	assert.Equal(t, "USPS", *stored.Carrier)
	require.NotNil(t, stored.EstimatedDelivery)
	assert.Equal(t, "2026-01-08", stored.EstimatedDelivery.UTC().Format("2006-01-02"))
	require.NotNil(t, stored.ShippedAt)

	require.Len(t, f.notifier.shipped, 1)
	assert.Equal(t, "https://track.example/9400111", *f.notifier.shipped[0].TrackingURL)

	outcome, err = f.deliver(t, event)
	require.NoError(t, err)
	assert.Equal(t, webhooks.OutcomeDuplicate, outcome)
	assert.Len(t, f.notifier.shipped, 1)
}

func TestPackageShippedFallsBackToOrderNumber(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, nil)

	outcome, err := f.deliver(t, printful.Event{
		Type:    printful.EventPackageShipped,
		Created: 1,
		Data: printful.EventData{
			Order:    printful.EventOrder{ID: 777, ExternalID: order.OrderNumber},
			Shipment: &printful.EventShipment{TrackingNumber: "1Z", ShipDate: "2026-02-01"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, webhooks.OutcomeProcessed, outcome)

	stored := f.reload(t, order)
	assert.Equal(t, enums.OrderStatusShipped, stored.Status)
	require.NotNil(t, stored.EstimatedDelivery)
	assert.Equal(t, "2026-02-01", stored.EstimatedDelivery.UTC().Format("2006-01-02"))
}

func TestUnknownOrderIsAcknowledged(t *testing.T) {
	f := newFixture(t)
	outcome, err := f.deliver(t, printful.Event{
		Type: printful.EventPackageShipped,
		Data: printful.EventData{Order: printful.EventOrder{ID: 1, ExternalID: "ORD-missing"}},
	})
	require.NoError(t, err)
	assert.Equal(t, webhooks.OutcomeFailed, outcome)
	assert.Empty(t, f.notifier.shipped)
}

func TestOrderStatusEvents(t *testing.T) {
	f := newFixture(t)
	printfulID := int64(42)
	order := f.seedOrder(t, &printfulID)

	outcome, err := f.deliver(t, printful.Event{
		Type:    printful.EventOrderUpdated,
		Created: 1,
		Data:    printful.EventData{Order: printful.EventOrder{ID: printfulID, Status: "inprocess"}},
	})
	require.NoError(t, err)
	assert.Equal(t, webhooks.OutcomeProcessed, outcome)
	stored := f.reload(t, order)
	require.NotNil(t, stored.FulfillmentStatus)
	assert.Equal(t, "inprocess", *stored.FulfillmentStatus)
	assert.Equal(t, enums.OrderStatusProcessing, stored.Status)

	_, err = f.deliver(t, printful.Event{
		Type:    printful.EventOrderFailed,
		Created: 2,
		Data:    printful.EventData{Order: printful.EventOrder{ID: printfulID}, Reason: "out of stock"},
	})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusFulfillmentPending, f.reload(t, order).Status)

	_, err = f.deliver(t, printful.Event{
		Type:    printful.EventOrderCanceled,
		Created: 3,
		Data:    printful.EventData{Order: printful.EventOrder{ID: printfulID}},
	})
	require.NoError(t, err)
	stored = f.reload(t, order)
	assert.Equal(t, enums.OrderStatusCancelled, stored.Status)
	assert.Equal(t, "canceled", *stored.FulfillmentStatus)
}

// hangupOrders cancels the request context on its first lookup and fails it,
// as a dropped connection would.
type hangupOrders struct {
	orders.Repository
	hangup context.CancelFunc
	calls  int
}

func (h *hangupOrders) FindByPrintfulOrderID(ctx context.Context, id int64) (*models.Order, error) {
	h.calls++
	if h.hangup != nil {
		h.hangup()
		h.hangup = nil
		return nil, errors.New("connection reset")
	}
	return h.Repository.FindByPrintfulOrderID(ctx, id)
}

func TestRequestCancellationReleasesDeliveryKey(t *testing.T) {
	f := newFixture(t)
	printfulID := int64(77)
	order := f.seedOrder(t, &printfulID)

	store := &hangupOrders{Repository: f.repo}
	raw := goredis.NewClient(&goredis.Options{Addr: f.redis.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	guard, err := webhooks.NewIdempotencyGuard(pkgredis.NewFromClient(raw), time.Hour, "printful-webhook")
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{Secret: secret, Guard: guard, Orders: store, Notifier: f.notifier})
	require.NoError(t, err)

	event := printful.Event{
		Type:    printful.EventOrderUpdated,
		Created: 9,
		Data:    printful.EventData{Order: printful.EventOrder{ID: printfulID, Status: "inprocess"}},
	}
	body, err := json.Marshal(event)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store.hangup = cancel
	outcome, err := svc.HandleEvent(ctx, body, printful.Sign(body, secret))
	require.Error(t, err)
	assert.Equal(t, webhooks.OutcomeError, outcome)
	assert.Empty(t, f.redis.Keys())

	outcome, err = svc.HandleEvent(context.Background(), body, printful.Sign(body, secret))
	require.NoError(t, err)
	assert.Equal(t, webhooks.OutcomeProcessed, outcome)
	assert.Equal(t, 2, store.calls)
	assert.Equal(t, "inprocess", *f.reload(t, order).FulfillmentStatus)
}

func TestUnhandledPrintfulEventIsIgnored(t *testing.T) {
	f := newFixture(t)
	outcome, err := f.deliver(t, printful.Event{Type: "stock_updated"})
	require.NoError(t, err)
	assert.Equal(t, webhooks.OutcomeIgnored, outcome)
}

func TestBadPrintfulSignatureIsRejected(t *testing.T) {
	f := newFixture(t)
	printfulID := int64(5)
	order := f.seedOrder(t, &printfulID)
	body, err := json.Marshal(printful.Event{
		Type: printful.EventOrderCanceled,
		Data: printful.EventData{Order: printful.EventOrder{ID: printfulID}},
	})
	require.NoError(t, err)

	outcome, err := f.service.HandleEvent(context.Background(), body, printful.Sign(body, "wrong"))
	require.ErrorIs(t, err, pkgerrors.ErrInvalidSignature)
	assert.Equal(t, webhooks.OutcomeRejected, outcome)

	_, err = f.service.HandleEvent(context.Background(), body, "")
	require.ErrorIs(t, err, pkgerrors.ErrInvalidSignature)
	assert.Equal(t, enums.OrderStatusProcessing, f.reload(t, order).Status)
}

func TestParseDate(t *testing.T) {
	assert.Nil(t, parseDate(""))
	assert.Nil(t, parseDate("soon"))
	require.NotNil(t, parseDate("2026-03-04"))
	require.NotNil(t, parseDate("2026-03-04T10:00:00Z"))
}
