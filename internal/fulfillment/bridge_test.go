package fulfillment

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/digitalrevolution/dr-backend/internal/orders"
	"github.com/digitalrevolution/dr-backend/pkg/db"
	"github.com/digitalrevolution/dr-backend/pkg/db/dbtest"
	"github.com/digitalrevolution/dr-backend/pkg/db/models"
	"github.com/digitalrevolution/dr-backend/pkg/enums"
	pkgerrors "github.com/digitalrevolution/dr-backend/pkg/errors"
	"github.com/digitalrevolution/dr-backend/pkg/printful"
	"github.com/digitalrevolution/dr-backend/pkg/types"
)

type stubPlacer struct {
	calls  int
	req    printful.OrderRequest
	result *printful.OrderResult
	err    error
}

func (s *stubPlacer) CreateOrder(_ context.Context, req printful.OrderRequest) (*printful.OrderResult, error) {
	s.calls++
	s.req = req
	return s.result, s.err
}

type countingMetrics struct {
	steps []string
}

func (c *countingMetrics) IncDegraded(step string) {
	c.steps = append(c.steps, step)
}

func seedOrder(t *testing.T, conn *gorm.DB) *models.Order {
	t.Helper()
	guest := "guest-1"
	line2 := "Unit 4"
	order := &models.Order{
		OrderNumber:     "ORD-1717171717171-ABCDE",
		GuestID:         &guest,
		CustomerEmail:   "jane@example.org",
		CustomerName:    "Jane Doe",
		ShippingAddress: types.ShippingAddress{FirstName: "Jane", LastName: "Doe", Line1: "1 Main St", Line2: &line2, City: "Austin", State: "TX", Country: "US", PostalCode: "78701"},
		SubtotalCents:   2000,
		TaxCents:        160,
		TotalCents:      2160,
		Currency:        enums.CurrencyUSD,
		StripeSessionID: "cs_1",
		Status:          enums.OrderStatusProcessing,
	}
	repo := orders.NewRepository(conn)
	require.NoError(t, repo.Create(context.Background(), order))
	items := []models.OrderItem{
		{OrderID: order.ID, ProductID: "p1", VariantID: "4011", ProductName: "Tee", UnitPriceCents: 500, Quantity: 2, LineTotalCents: 1000},
		{OrderID: order.ID, ProductID: "p2", VariantID: "4012", ProductName: "Hoodie", UnitPriceCents: 1000, Quantity: 1, LineTotalCents: 1000},
	}
	require.NoError(t, repo.CreateItems(context.Background(), items))
	order.Items = items
	return order
}

func newBridge(t *testing.T, conn *gorm.DB, placer *stubPlacer, metrics *countingMetrics) *Bridge {
	t.Helper()
	bridge, err := NewBridge(BridgeParams{
		Tx:       db.Wrap(conn),
		Orders:   orders.NewRepository(conn),
		Printful: placer,
		Metrics:  metrics,
	})
	require.NoError(t, err)
	return bridge
}

func TestSubmitRecordsProviderOrder(t *testing.T) {
	conn := dbtest.Open(t)
	order := seedOrder(t, conn)
	placer := &stubPlacer{result: &printful.OrderResult{ID: 555, Status: "draft", Raw: json.RawMessage(`{"code":200,"result":{"id":555,"status":"draft"}}`)}}
	metrics := &countingMetrics{}

	require.NoError(t, newBridge(t, conn, placer, metrics).Submit(context.Background(), order))
	assert.Empty(t, metrics.steps)
	require.NotNil(t, order.PrintfulOrderID)
	assert.EqualValues(t, 555, *order.PrintfulOrderID)

	stored, err := orders.NewRepository(conn).FindByPrintfulOrderID(context.Background(), 555)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, enums.OrderStatusProcessing, stored.Status)
	require.NotNil(t, stored.FulfillmentStatus)
	assert.Equal(t, "draft", *stored.FulfillmentStatus)

	var audit models.FulfillmentOrder
	require.NoError(t, conn.First(&audit, "order_id = ?", order.ID).Error)
	assert.Equal(t, ProviderPrintful, audit.Provider)
	assert.Equal(t, "555", audit.ProviderOrderID)
	assert.JSONEq(t, `{"code":200,"result":{"id":555,"status":"draft"}}`, string(audit.RawResponse))
}

func TestSubmitRefusesOrderPrintfulAlreadyHolds(t *testing.T) {
	conn := dbtest.Open(t)
	order := seedOrder(t, conn)
	printfulID := int64(777)
	order.PrintfulOrderID = &printfulID
	order.Status = enums.OrderStatusFulfillmentPending
	placer := &stubPlacer{}
	metrics := &countingMetrics{}

	err := newBridge(t, conn, placer, metrics).Submit(context.Background(), order)
	require.ErrorIs(t, err, ErrAlreadyPlaced)
	assert.Zero(t, placer.calls)
	assert.Empty(t, metrics.steps)
}

func TestSubmitFailureParksOrder(t *testing.T) {
	conn := dbtest.Open(t)
	order := seedOrder(t, conn)
	placer := &stubPlacer{err: pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("503"), "printful order request failed")}
	metrics := &countingMetrics{}

	err := newBridge(t, conn, placer, metrics).Submit(context.Background(), order)
	require.Error(t, err)
	assert.Equal(t, []string{"fulfillment"}, metrics.steps)
	assert.Equal(t, enums.OrderStatusFulfillmentPending, order.Status)

	stored, err := orders.NewRepository(conn).FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusFulfillmentPending, stored.Status)
	assert.Nil(t, stored.PrintfulOrderID)
	assert.EqualValues(t, 0, dbtest.Count(t, conn, "fulfillment_orders"))
}

func TestBuildOrderRequest(t *testing.T) {
	phone := "+15550100"
	line2 := "Apt 2"
	order := &models.Order{
		OrderNumber:   "ORD-1-ZZZZZ",
		CustomerEmail: "jane@example.org",
		ShippingAddress: types.ShippingAddress{
			FirstName: "Jane", LastName: "Doe", Line1: "1 Main", Line2: &line2,
			City: "Austin", State: "TX", Country: "US", PostalCode: "78701", Phone: &phone,
		},
		SubtotalCents: 2000,
		ShippingCents: 499,
		TaxCents:      160,
		Currency:      enums.CurrencyUSD,
		Items: []models.OrderItem{
			{VariantID: "4011", ProductName: "Tee", UnitPriceCents: 500, Quantity: 2},
		},
	}

	req := BuildOrderRequest(order)
	assert.Equal(t, "ORD-1-ZZZZZ", req.ExternalID)
	assert.Equal(t, "STANDARD", req.Shipping)
	assert.Equal(t, "Jane Doe", req.Recipient.Name)
	assert.Equal(t, "Apt 2", req.Recipient.Address2)
	assert.Equal(t, "+15550100", req.Recipient.Phone)
	assert.Equal(t, "jane@example.org", req.Recipient.Email)
	require.Len(t, req.Items, 1)
	assert.Equal(t, printful.Item{ExternalVariantID: "4011", Quantity: 2, RetailPrice: "5.00", Name: "Tee"}, req.Items[0])
	require.NotNil(t, req.RetailCosts)
	assert.Equal(t, "20.00", req.RetailCosts.Subtotal)
	assert.Equal(t, "4.99", req.RetailCosts.Shipping)
	assert.Equal(t, "1.60", req.RetailCosts.Tax)
	assert.Equal(t, "0.00", req.RetailCosts.Discount)
}

func TestBuildOrderRequestZeroDecimalCurrencyAndMethod(t *testing.T) {
	express := "EXPRESS"
	order := &models.Order{
		OrderNumber:    "ORD-2-YYYYY",
		SubtotalCents:  3000,
		Currency:       enums.Currency("JPY"),
		ShippingMethod: &express,
		Items: []models.OrderItem{
			{VariantID: "4011", ProductName: "Tee", UnitPriceCents: 1500, Quantity: 2},
		},
	}

	req := BuildOrderRequest(order)
	assert.Equal(t, "EXPRESS", req.Shipping)
	assert.Equal(t, "1500", req.Items[0].RetailPrice)
	assert.Equal(t, "3000", req.RetailCosts.Subtotal)
}
