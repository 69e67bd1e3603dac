package cron

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"go.uber.org/multierr"

	"github.com/digitalrevolution/dr-backend/pkg/db/models"
	"github.com/digitalrevolution/dr-backend/pkg/logger"
	pkgstripe "github.com/digitalrevolution/dr-backend/pkg/stripe"
)

const (
	defaultReconcilePage  = 100
	defaultReconcileLimit = 1000
)

type openSubscriptionLister interface {
	ListOpen(ctx context.Context, after uuid.UUID, limit int) ([]models.Subscription, error)
}

type subscriptionFetcher interface {
	GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error)
}

type snapshotApplier interface {
	Updated(ctx context.Context, snapshot *pkgstripe.Subscription) (bool, error)
	Deleted(ctx context.Context, snapshot *pkgstripe.Subscription) (bool, error)
}

// SubscriptionReconcileJobParams configures the subscription drift repair job.
type SubscriptionReconcileJobParams struct {
	Logger        *logger.Logger
	Subscriptions openSubscriptionLister
	Stripe        subscriptionFetcher
	Reconciler    snapshotApplier
	PageSize      int
	Limit         int
}

type subscriptionReconcileJob struct {
	logg       *logger.Logger
	subs       openSubscriptionLister
	stripe     subscriptionFetcher
	reconciler snapshotApplier
	pageSize   int
	limit      int
}

// NewSubscriptionReconcileJob re-reads open subscriptions from Stripe and
// applies them through the same reconciler the webhooks use, repairing state
// left behind by lost or out-of-order deliveries.
func NewSubscriptionReconcileJob(params SubscriptionReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Subscriptions == nil {
		return nil, fmt.Errorf("subscriptions repository required")
	}
	if params.Stripe == nil {
		return nil, fmt.Errorf("stripe client required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("subscription reconciler required")
	}
	pageSize := params.PageSize
	if pageSize <= 0 {
		pageSize = defaultReconcilePage
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultReconcileLimit
	}
	return &subscriptionReconcileJob{
		logg:       params.Logger,
		subs:       params.Subscriptions,
		stripe:     params.Stripe,
		reconciler: params.Reconciler,
		pageSize:   pageSize,
		limit:      limit,
	}, nil
}

func (j *subscriptionReconcileJob) Name() string { return "subscription-reconcile" }

func (j *subscriptionReconcileJob) Run(ctx context.Context) error {
	var (
		errs    error
		after   uuid.UUID
		scanned int
		changed int
	)
	for scanned < j.limit {
		page, err := j.subs.ListOpen(ctx, after, j.pageSize)
		if err != nil {
			return multierr.Append(errs, fmt.Errorf("list open subscriptions: %w", err))
		}
		for i := range page {
			scanned++
			applied, err := j.reconcile(ctx, &page[i])
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("subscription %s: %w", page[i].StripeSubscriptionID, err))
				continue
			}
			if applied {
				changed++
			}
		}
		if len(page) < j.pageSize {
			break
		}
		after = page[len(page)-1].ID
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"candidates": scanned,
		"changed":    changed,
	}), "subscription reconcile complete")
	return errs
}

func (j *subscriptionReconcileJob) reconcile(ctx context.Context, sub *models.Subscription) (bool, error) {
	ctx = j.logg.WithFields(ctx, map[string]any{
		"subscription_id":        sub.ID.String(),
		"stripe_subscription_id": sub.StripeSubscriptionID,
	})
	remote, err := j.stripe.GetSubscription(ctx, sub.StripeSubscriptionID)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == http.StatusNotFound {
			j.logg.Warn(ctx, "subscription missing at stripe; skipping")
			return false, nil
		}
		return false, fmt.Errorf("fetch stripe subscription: %w", err)
	}

	snapshot, err := toSnapshot(remote)
	if err != nil {
		return false, err
	}
	if remote.Status == stripe.SubscriptionStatusCanceled {
		return j.reconciler.Deleted(ctx, snapshot)
	}
	return j.reconciler.Updated(ctx, snapshot)
}

// toSnapshot re-reads the SDK object through its wire form so the job and the
// webhooks share one decoding path.
func toSnapshot(remote *stripe.Subscription) (*pkgstripe.Subscription, error) {
	raw, err := json.Marshal(remote)
	if err != nil {
		return nil, fmt.Errorf("encode stripe subscription: %w", err)
	}
	var snapshot pkgstripe.Subscription
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, fmt.Errorf("decode stripe subscription: %w", err)
	}
	return &snapshot, nil
}
