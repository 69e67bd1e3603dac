package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"

	"github.com/digitalrevolution/dr-backend/pkg/db/models"
	"github.com/digitalrevolution/dr-backend/pkg/logger"
	pkgstripe "github.com/digitalrevolution/dr-backend/pkg/stripe"
)

type stubPendingOrders struct {
	orders []models.Order
	cutoff time.Time
	limit  int
}

func (s *stubPendingOrders) ListAwaitingPlacement(_ context.Context, createdBefore time.Time, limit int) ([]models.Order, error) {
	s.cutoff = createdBefore
	s.limit = limit
	return s.orders, nil
}

type stubSubmitter struct {
	failFor   map[string]bool
	submitted []string
}

func (s *stubSubmitter) Submit(_ context.Context, order *models.Order) error {
	if s.failFor[order.OrderNumber] {
		return errors.New("printful unavailable")
	}
	s.submitted = append(s.submitted, order.OrderNumber)
	return nil
}

func TestFulfillmentRetryResubmitsPendingOrders(t *testing.T) {
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	lister := &stubPendingOrders{orders: []models.Order{
		{OrderNumber: "ORD-1"},
		{OrderNumber: "ORD-2"},
		{OrderNumber: "ORD-3"},
	}}
	submitter := &stubSubmitter{failFor: map[string]bool{"ORD-2": true}}

	job, err := NewFulfillmentRetryJob(FulfillmentRetryJobParams{
		Logger:    logger.Nop(),
		Orders:    lister,
		Submitter: submitter,
		MinAge:    30 * time.Minute,
		Now:       func() time.Time { return now },
	})
	require.NoError(t, err)
	assert.Equal(t, "fulfillment-retry", job.Name())

	err = job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ORD-2")

	assert.Equal(t, []string{"ORD-1", "ORD-3"}, submitter.submitted)
	assert.Equal(t, now.Add(-30*time.Minute), lister.cutoff)
	assert.Equal(t, defaultRetryBatch, lister.limit)
}

func TestFulfillmentRetrySkipsOrdersPrintfulAlreadyHolds(t *testing.T) {
	printfulID := int64(8812)
	lister := &stubPendingOrders{orders: []models.Order{
		{OrderNumber: "ORD-placed", PrintfulOrderID: &printfulID},
		{OrderNumber: "ORD-new"},
	}}
	submitter := &stubSubmitter{}

	job, err := NewFulfillmentRetryJob(FulfillmentRetryJobParams{
		Logger:    logger.Nop(),
		Orders:    lister,
		Submitter: submitter,
	})
	require.NoError(t, err)

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, []string{"ORD-new"}, submitter.submitted)

	// a later tick does not start failing on the placed order either
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, []string{"ORD-new", "ORD-new"}, submitter.submitted)
}

func TestFulfillmentRetryWithNothingPending(t *testing.T) {
	job, err := NewFulfillmentRetryJob(FulfillmentRetryJobParams{
		Logger:    logger.Nop(),
		Orders:    &stubPendingOrders{},
		Submitter: &stubSubmitter{},
	})
	require.NoError(t, err)
	assert.NoError(t, job.Run(context.Background()))
}

type stubOpenSubscriptions struct {
	rows   []models.Subscription
	afters []uuid.UUID
}

func (s *stubOpenSubscriptions) ListOpen(_ context.Context, after uuid.UUID, limit int) ([]models.Subscription, error) {
	s.afters = append(s.afters, after)
	start := 0
	if after != uuid.Nil {
		for i := range s.rows {
			if s.rows[i].ID == after {
				start = i + 1
			}
		}
	}
	end := start + limit
	if end > len(s.rows) {
		end = len(s.rows)
	}
	return s.rows[start:end], nil
}

type stubStripeSubscriptions struct {
	remote map[string]*stripe.Subscription
}

func (s *stubStripeSubscriptions) GetSubscription(_ context.Context, id string) (*stripe.Subscription, error) {
	sub, ok := s.remote[id]
	if !ok {
		return nil, &stripe.Error{HTTPStatusCode: 404, Code: stripe.ErrorCodeResourceMissing}
	}
	return sub, nil
}

type recordingApplier struct {
	updated []*pkgstripe.Subscription
	deleted []*pkgstripe.Subscription
}

func (r *recordingApplier) Updated(_ context.Context, snapshot *pkgstripe.Subscription) (bool, error) {
	r.updated = append(r.updated, snapshot)
	return true, nil
}

func (r *recordingApplier) Deleted(_ context.Context, snapshot *pkgstripe.Subscription) (bool, error) {
	r.deleted = append(r.deleted, snapshot)
	return true, nil
}

func remoteSubscription(id string, status stripe.SubscriptionStatus) *stripe.Subscription {
	return &stripe.Subscription{
		ID:                id,
		Status:            status,
		Customer:          &stripe.Customer{ID: "cus_1"},
		CancelAtPeriodEnd: true,
		Items: &stripe.SubscriptionItemList{Data: []*stripe.SubscriptionItem{{
			CurrentPeriodStart: 1767225600,
			CurrentPeriodEnd:   1769904000,
			Price: &stripe.Price{
				ID:         "price_1",
				UnitAmount: 1500,
				Currency:   stripe.CurrencyUSD,
				Recurring:  &stripe.PriceRecurring{Interval: stripe.PriceRecurringIntervalMonth},
			},
		}}},
	}
}

func TestSubscriptionReconcilePagesAndRoutesByStatus(t *testing.T) {
	rows := []models.Subscription{
		{ID: uuid.MustParse("00000000-0000-0000-0000-000000000001"), StripeSubscriptionID: "sub_a"},
		{ID: uuid.MustParse("00000000-0000-0000-0000-000000000002"), StripeSubscriptionID: "sub_b"},
		{ID: uuid.MustParse("00000000-0000-0000-0000-000000000003"), StripeSubscriptionID: "sub_gone"},
	}
	lister := &stubOpenSubscriptions{rows: rows}
	applier := &recordingApplier{}
	remote := &stubStripeSubscriptions{remote: map[string]*stripe.Subscription{
		"sub_a": remoteSubscription("sub_a", stripe.SubscriptionStatusActive),
		"sub_b": remoteSubscription("sub_b", stripe.SubscriptionStatusCanceled),
	}}

	job, err := NewSubscriptionReconcileJob(SubscriptionReconcileJobParams{
		Logger:        logger.Nop(),
		Subscriptions: lister,
		Stripe:        remote,
		Reconciler:    applier,
		PageSize:      2,
	})
	require.NoError(t, err)
	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, []uuid.UUID{uuid.Nil, rows[1].ID}, lister.afters)

	require.Len(t, applier.updated, 1)
	snapshot := applier.updated[0]
	assert.Equal(t, "sub_a", snapshot.ID)
	assert.Equal(t, "cus_1", snapshot.Customer.String())
	assert.True(t, snapshot.CancelAtPeriodEnd)
	start, end := snapshot.Period()
	assert.EqualValues(t, 1767225600, start)
	assert.EqualValues(t, 1769904000, end)
	require.NotNil(t, snapshot.PrimaryItem().Price)
	assert.EqualValues(t, 1500, snapshot.PrimaryItem().Price.UnitAmount)

	require.Len(t, applier.deleted, 1)
	assert.Equal(t, "sub_b", applier.deleted[0].ID)
}

func TestSubscriptionReconcileCollectsFetchErrors(t *testing.T) {
	lister := &stubOpenSubscriptions{rows: []models.Subscription{
		{ID: uuid.New(), StripeSubscriptionID: "sub_x"},
	}}
	job, err := NewSubscriptionReconcileJob(SubscriptionReconcileJobParams{
		Logger:        logger.Nop(),
		Subscriptions: lister,
		Stripe:        failingFetcher{},
		Reconciler:    &recordingApplier{},
	})
	require.NoError(t, err)
	err = job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sub_x")
}

type failingFetcher struct{}

func (failingFetcher) GetSubscription(context.Context, string) (*stripe.Subscription, error) {
	return nil, &stripe.Error{HTTPStatusCode: 500, Msg: "api down"}
}
