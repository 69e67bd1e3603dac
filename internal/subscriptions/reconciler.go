package subscriptions

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/digitalrevolution/dr-backend/pkg/db"
	"github.com/digitalrevolution/dr-backend/pkg/db/models"
	"github.com/digitalrevolution/dr-backend/pkg/enums"
	pkgerrors "github.com/digitalrevolution/dr-backend/pkg/errors"
	"github.com/digitalrevolution/dr-backend/pkg/logger"
	pkgstripe "github.com/digitalrevolution/dr-backend/pkg/stripe"
)

const (
	uniqueStripeSubscription = "ux_subscriptions_stripe_subscription_id"
	uniqueInvoicePayment     = "ux_subscription_payments_stripe_invoice_id"
)

type userFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type notifier interface {
	SubscriptionConfirmation(ctx context.Context, user *models.User, sub *models.Subscription)
	SubscriptionCancellation(ctx context.Context, user *models.User, sub *models.Subscription)
	SubscriptionPaymentReceipt(ctx context.Context, user *models.User, sub *models.Subscription, payment *models.SubscriptionPayment)
}

type ReconcilerParams struct {
	Subscriptions Repository
	Users         userFinder
	Notifier      notifier
	Logger        *logger.Logger
}

// Reconciler keeps local subscription rows in line with processor lifecycle
// events. Each method reports whether it changed anything.
type Reconciler struct {
	subs     Repository
	users    userFinder
	notifier notifier
	logg     *logger.Logger
	now      func() time.Time
}

func NewReconciler(params ReconcilerParams) (*Reconciler, error) {
	if params.Subscriptions == nil {
		return nil, fmt.Errorf("subscription repository required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("user repository required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Reconciler{
		subs:     params.Subscriptions,
		users:    params.Users,
		notifier: params.Notifier,
		logg:     logg,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Created inserts the subscription for the user named in its metadata. A row
// that already exists (an update arrived first) is refreshed instead.
func (r *Reconciler) Created(ctx context.Context, snapshot *pkgstripe.Subscription) (bool, error) {
	userID, err := UserIDFromMetadata(snapshot.Metadata)
	if err != nil {
		return false, err
	}
	ctx = r.logg.WithFields(ctx, map[string]any{
		"user_id":                userID.String(),
		"stripe_subscription_id": snapshot.ID,
	})

	user, err := r.users.FindByID(ctx, userID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}
	if user == nil {
		return false, pkgerrors.NotFound(pkgerrors.ErrUserNotFound, userID.String())
	}

	existing, err := r.subs.FindByStripeID(ctx, snapshot.ID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load subscription")
	}
	if existing != nil {
		r.logg.Info(ctx, "subscription already recorded; applying as update")
		return true, r.refresh(ctx, existing, snapshot)
	}

	sub, err := BuildSubscription(snapshot, userID)
	if err != nil {
		return false, err
	}
	if err := r.subs.Create(ctx, sub); err != nil {
		if db.IsUniqueViolation(err, uniqueStripeSubscription) {
			return r.Updated(ctx, snapshot)
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create subscription")
	}
	r.logg.Info(ctx, "subscription created")

	r.notifier.SubscriptionConfirmation(ctx, user, sub)
	return true, nil
}

// Updated mirrors status, period and cancellation flags. Unknown subscriptions
// are skipped.
func (r *Reconciler) Updated(ctx context.Context, snapshot *pkgstripe.Subscription) (bool, error) {
	ctx = r.logg.WithField(ctx, "stripe_subscription_id", snapshot.ID)
	existing, err := r.subs.FindByStripeID(ctx, snapshot.ID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load subscription")
	}
	if existing == nil {
		r.logg.Info(ctx, "subscription update for unknown subscription skipped")
		return false, nil
	}
	if err := r.refresh(ctx, existing, snapshot); err != nil {
		return false, err
	}
	return true, nil
}

// Deleted marks the subscription canceled and sends the cancellation email,
// which quotes any reason the user gave when requesting the cancel.
func (r *Reconciler) Deleted(ctx context.Context, snapshot *pkgstripe.Subscription) (bool, error) {
	ctx = r.logg.WithField(ctx, "stripe_subscription_id", snapshot.ID)
	existing, err := r.subs.FindByStripeID(ctx, snapshot.ID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load subscription")
	}
	if existing == nil {
		r.logg.Info(ctx, "subscription deletion for unknown subscription skipped")
		return false, nil
	}

	if err := ApplySnapshot(existing, snapshot); err != nil {
		return false, err
	}
	existing.Status = enums.SubscriptionStatusCanceled
	if existing.CanceledAt == nil {
		now := r.now()
		existing.CanceledAt = &now
	}
	if err := r.subs.Save(ctx, existing); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cancel subscription")
	}
	r.logg.Info(ctx, "subscription canceled")

	user, err := r.users.FindByID(ctx, existing.UserID)
	if err != nil || user == nil {
		r.logg.Warn(ctx, "cancellation email skipped: user not found")
		return true, nil
	}
	r.notifier.SubscriptionCancellation(ctx, user, existing)
	return true, nil
}

// InvoicePaid records one payment per invoice. Invoices that bill no
// subscription are skipped; invoices for a subscription this shop never
// recorded fail with ErrSubscriptionNotFound.
func (r *Reconciler) InvoicePaid(ctx context.Context, invoice *pkgstripe.Invoice) (bool, error) {
	subscriptionID := invoice.SubscriptionID()
	ctx = r.logg.WithFields(ctx, map[string]any{
		"stripe_invoice_id":      invoice.ID,
		"stripe_subscription_id": subscriptionID,
	})
	if subscriptionID == "" {
		r.logg.Info(ctx, "invoice without subscription skipped")
		return false, nil
	}

	sub, err := r.subs.FindByStripeID(ctx, subscriptionID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load subscription")
	}
	if sub == nil {
		return false, pkgerrors.NotFound(pkgerrors.ErrSubscriptionNotFound, subscriptionID)
	}

	recorded, err := r.subs.FindPaymentByInvoiceID(ctx, invoice.ID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payment")
	}
	if recorded != nil {
		r.logg.Info(ctx, "invoice payment already recorded")
		return false, nil
	}

	paidAt := r.now()
	if invoice.StatusTransitions.PaidAt > 0 {
		paidAt = time.Unix(invoice.StatusTransitions.PaidAt, 0).UTC()
	}
	period := invoice.BillingPeriod()
	payment := &models.SubscriptionPayment{
		SubscriptionID:  sub.ID,
		StripeInvoiceID: invoice.ID,
		AmountCents:     invoice.AmountPaid,
		Currency:        enums.NormalizeCurrency(invoice.Currency),
		Status:          enums.PaymentStatusPaid,
		PeriodStart:     toTimePtr(period.Start),
		PeriodEnd:       toTimePtr(period.End),
		PaidAt:          paidAt,
	}
	if err := r.subs.CreatePayment(ctx, payment); err != nil {
		if db.IsUniqueViolation(err, uniqueInvoicePayment) {
			r.logg.Info(ctx, "invoice payment already recorded")
			return false, nil
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record payment")
	}
	r.logg.Info(ctx, "subscription payment recorded")

	user, err := r.users.FindByID(ctx, sub.UserID)
	if err != nil || user == nil {
		r.logg.Warn(ctx, "payment receipt skipped: user not found")
		return true, nil
	}
	r.notifier.SubscriptionPaymentReceipt(ctx, user, sub, payment)
	return true, nil
}

func (r *Reconciler) refresh(ctx context.Context, existing *models.Subscription, snapshot *pkgstripe.Subscription) error {
	if err := ApplySnapshot(existing, snapshot); err != nil {
		return err
	}
	if err := r.subs.Save(ctx, existing); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update subscription")
	}
	r.logg.Info(ctx, "subscription updated")
	return nil
}
