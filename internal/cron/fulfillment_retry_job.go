package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/digitalrevolution/dr-backend/pkg/db/models"
	"github.com/digitalrevolution/dr-backend/pkg/logger"
)

const (
	defaultRetryBatch  = 25
	defaultRetryMinAge = 10 * time.Minute
)

type pendingOrderLister interface {
	ListAwaitingPlacement(ctx context.Context, createdBefore time.Time, limit int) ([]models.Order, error)
}

type orderSubmitter interface {
	Submit(ctx context.Context, order *models.Order) error
}

type FulfillmentRetryJobParams struct {
	Logger    *logger.Logger
	Orders    pendingOrderLister
	Submitter orderSubmitter
	BatchSize int
	MinAge    time.Duration
	Now       func() time.Time
}

type fulfillmentRetryJob struct {
	logg      *logger.Logger
	orders    pendingOrderLister
	submitter orderSubmitter
	batch     int
	minAge    time.Duration
	now       func() time.Time
}

// NewFulfillmentRetryJob resubmits orders parked in fulfillment_pending. The
// minimum age keeps the job from racing a webhook that is still submitting.
func NewFulfillmentRetryJob(params FulfillmentRetryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Submitter == nil {
		return nil, fmt.Errorf("fulfillment submitter required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultRetryBatch
	}
	minAge := params.MinAge
	if minAge <= 0 {
		minAge = defaultRetryMinAge
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &fulfillmentRetryJob{
		logg:      params.Logger,
		orders:    params.Orders,
		submitter: params.Submitter,
		batch:     batch,
		minAge:    minAge,
		now:       now,
	}, nil
}

func (j *fulfillmentRetryJob) Name() string { return "fulfillment-retry" }

func (j *fulfillmentRetryJob) Run(ctx context.Context) error {
	pending, err := j.orders.ListAwaitingPlacement(ctx, j.now().Add(-j.minAge), j.batch)
	if err != nil {
		return fmt.Errorf("list fulfillment_pending orders: %w", err)
	}

	var errs error
	submitted, skipped := 0, 0
	for i := range pending {
		order := &pending[i]
		if order.PrintfulOrderID != nil {
			// Printful rejects a second order under the same external id
			j.logg.Warn(j.logg.WithFields(ctx, map[string]any{
				"order_number":      order.OrderNumber,
				"printful_order_id": *order.PrintfulOrderID,
			}), "order already placed with printful; needs manual review")
			skipped++
			continue
		}
		if err := j.submitter.Submit(ctx, order); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", order.OrderNumber, err))
			continue
		}
		submitted++
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"candidates": len(pending),
		"submitted":  submitted,
		"skipped":    skipped,
	}), "fulfillment retry complete")
	return errs
}
