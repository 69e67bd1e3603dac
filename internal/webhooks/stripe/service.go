package stripewebhook

import (
	"context"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v84"

	"github.com/digitalrevolution/dr-backend/internal/checkout"
	"github.com/digitalrevolution/dr-backend/internal/donations"
	"github.com/digitalrevolution/dr-backend/internal/orders"
	"github.com/digitalrevolution/dr-backend/internal/webhooks"
	"github.com/digitalrevolution/dr-backend/pkg/db/models"
	pkgerrors "github.com/digitalrevolution/dr-backend/pkg/errors"
	"github.com/digitalrevolution/dr-backend/pkg/logger"
	pkgstripe "github.com/digitalrevolution/dr-backend/pkg/stripe"
)

const Provider = "stripe"

type verifier interface {
	Verify(payload []byte, header string) (stripe.Event, error)
}

type eventGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Confirm(ctx context.Context, eventID string) error
	Release(ctx context.Context, eventID string) error
}

type orderFinder interface {
	FindByStripeSessionID(ctx context.Context, stripeSessionID string) (*models.Order, error)
}

type materializer interface {
	Materialize(ctx context.Context, input orders.MaterializeInput) (*models.Order, error)
}

type fulfiller interface {
	Submit(ctx context.Context, order *models.Order) error
}

type cartCleaner interface {
	Complete(ctx context.Context, input checkout.CleanupInput) (checkout.CleanupResult, error)
}

type subscriptionReconciler interface {
	Created(ctx context.Context, snapshot *pkgstripe.Subscription) (bool, error)
	Updated(ctx context.Context, snapshot *pkgstripe.Subscription) (bool, error)
	Deleted(ctx context.Context, snapshot *pkgstripe.Subscription) (bool, error)
	InvoicePaid(ctx context.Context, invoice *pkgstripe.Invoice) (bool, error)
}

type notifier interface {
	OrderConfirmation(ctx context.Context, order *models.Order)
	DonationReceipt(ctx context.Context, donation *models.Donation)
}

type webhookMetrics interface {
	Observe(provider, eventType, outcome string, duration time.Duration)
	IncDegraded(step string)
}

type ServiceParams struct {
	Verifier      verifier
	Guard         eventGuard
	Orders        orderFinder
	Materializer  materializer
	Fulfillment   fulfiller
	Cleaner       cartCleaner
	Donations     donations.Service
	Subscriptions subscriptionReconciler
	Notifier      notifier
	Metrics       webhookMetrics
	Logger        *logger.Logger
	// ShippingRates resolves the Printful method from the chosen Stripe rate.
	ShippingRates checkout.ShippingRates
}

// Service verifies, de-duplicates and dispatches payment-processor events.
type Service struct {
	verifier      verifier
	guard         eventGuard
	orders        orderFinder
	materializer  materializer
	fulfillment   fulfiller
	cleaner       cartCleaner
	donations     donations.Service
	subscriptions subscriptionReconciler
	notifier      notifier
	metrics       webhookMetrics
	logg          *logger.Logger
	shipping      checkout.ShippingRates
	now           func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Verifier == nil:
		return nil, fmt.Errorf("stripe verifier required")
	case params.Guard == nil:
		return nil, fmt.Errorf("idempotency guard required")
	case params.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case params.Materializer == nil:
		return nil, fmt.Errorf("order materializer required")
	case params.Fulfillment == nil:
		return nil, fmt.Errorf("fulfillment bridge required")
	case params.Cleaner == nil:
		return nil, fmt.Errorf("checkout cleaner required")
	case params.Donations == nil:
		return nil, fmt.Errorf("donation service required")
	case params.Subscriptions == nil:
		return nil, fmt.Errorf("subscription reconciler required")
	case params.Notifier == nil:
		return nil, fmt.Errorf("notifier required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{
		verifier:      params.Verifier,
		guard:         params.Guard,
		orders:        params.Orders,
		materializer:  params.Materializer,
		fulfillment:   params.Fulfillment,
		cleaner:       params.Cleaner,
		donations:     params.Donations,
		subscriptions: params.Subscriptions,
		notifier:      params.Notifier,
		metrics:       params.Metrics,
		logg:          logg,
		shipping:      params.ShippingRates,
		now:           func() time.Time { return time.Now().UTC() },
	}, nil
}

// HandleEvent authenticates the raw delivery and runs its handler at most once
// per event id. A returned error means the delivery must not be acknowledged:
// either the signature is bad (validation) or processing failed in a way a
// retry may fix, in which case the event id has been released again.
func (s *Service) HandleEvent(ctx context.Context, payload []byte, signature string) (webhooks.Outcome, error) {
	started := s.now()

	event, err := s.verifier.Verify(payload, signature)
	if err != nil {
		s.logg.Warn(ctx, "stripe webhook rejected: signature verification failed")
		s.observe("unknown", webhooks.OutcomeRejected, 0)
		return webhooks.OutcomeRejected, err
	}
	eventType := string(event.Type)
	ctx = s.logg.WithEvent(ctx, Provider, event.ID, eventType)

	seen, err := s.guard.CheckAndMark(ctx, event.ID)
	if err != nil {
		s.observe(eventType, webhooks.OutcomeError, 0)
		return webhooks.OutcomeError, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency")
	}
	if seen {
		s.logg.Info(ctx, "stripe event already processed")
		s.observe(eventType, webhooks.OutcomeDuplicate, 0)
		return webhooks.OutcomeDuplicate, nil
	}

	work, cancel := webhooks.Detach(ctx)
	defer cancel()
	outcome, err := s.dispatchSafely(work, event)
	if err != nil {
		outcome, err = webhooks.Settle(ctx, s.logg, err)
	}
	if err != nil {
		if releaseErr := s.guard.Release(ctx, event.ID); releaseErr != nil {
			s.logg.Error(ctx, "release idempotency key", releaseErr)
		}
		s.logg.Error(ctx, "stripe event processing failed; provider will retry", err)
	} else {
		if confirmErr := s.guard.Confirm(ctx, event.ID); confirmErr != nil {
			s.logg.Error(ctx, "confirm idempotency key", confirmErr)
		}
		s.logg.Info(s.logg.WithField(ctx, "outcome", outcome.String()), "stripe event handled")
	}
	s.observe(eventType, outcome, s.now().Sub(started))
	return outcome, err
}

func (s *Service) dispatchSafely(ctx context.Context, event stripe.Event) (outcome webhooks.Outcome, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			outcome = webhooks.OutcomeError
			err = pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("panic handling stripe event: %v", rec))
		}
	}()
	return s.dispatch(ctx, event)
}

func (s *Service) dispatch(ctx context.Context, event stripe.Event) (webhooks.Outcome, error) {
	decoded, err := Decode(event)
	if err != nil {
		return webhooks.OutcomeFailed, err
	}

	switch e := decoded.(type) {
	case CheckoutCompleted:
		return s.handleCheckoutCompleted(ctx, event.ID, &e.Session)
	case SubscriptionCreated:
		return changed(s.subscriptions.Created(ctx, &e.Subscription))
	case SubscriptionUpdated:
		return changed(s.subscriptions.Updated(ctx, &e.Subscription))
	case SubscriptionDeleted:
		return changed(s.subscriptions.Deleted(ctx, &e.Subscription))
	case InvoicePaymentSucceeded:
		return changed(s.subscriptions.InvoicePaid(ctx, &e.Invoice))
	default:
		s.logg.Info(ctx, "stripe event type not handled")
		return webhooks.OutcomeIgnored, nil
	}
}

func changed(applied bool, err error) (webhooks.Outcome, error) {
	if err != nil {
		return webhooks.OutcomeFailed, err
	}
	if !applied {
		return webhooks.OutcomeIgnored, nil
	}
	return webhooks.OutcomeProcessed, nil
}

func (s *Service) observe(eventType string, outcome webhooks.Outcome, d time.Duration) {
	if s.metrics != nil {
		s.metrics.Observe(Provider, eventType, outcome.String(), d)
	}
}

func (s *Service) degraded(step string) {
	if s.metrics != nil {
		s.metrics.IncDegraded(step)
	}
}
