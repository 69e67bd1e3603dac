package subscriptions

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/digitalrevolution/dr-backend/pkg/db/models"
	"github.com/digitalrevolution/dr-backend/pkg/enums"
	pkgerrors "github.com/digitalrevolution/dr-backend/pkg/errors"
	"github.com/digitalrevolution/dr-backend/pkg/logger"
)

const MaxCancellationReasonLength = 500

// StripeSubscriptionClient exposes the subset of Stripe operations the service needs.
type StripeSubscriptionClient interface {
	SetCancelAtPeriodEnd(ctx context.Context, id string, cancel bool) (*stripe.Subscription, error)
}

// Service defines the user-facing subscription surface.
type Service interface {
	Cancel(ctx context.Context, input CancelInput) (*models.Subscription, error)
}

type CancelInput struct {
	SubscriptionID uuid.UUID
	UserID         uuid.UUID
	Reason         string
}

type service struct {
	subs   Repository
	stripe StripeSubscriptionClient
	logg   *logger.Logger
}

func NewService(subs Repository, stripeClient StripeSubscriptionClient, logg *logger.Logger) (Service, error) {
	if subs == nil {
		return nil, fmt.Errorf("subscription repository required")
	}
	if stripeClient == nil {
		return nil, fmt.Errorf("stripe client required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{subs: subs, stripe: stripeClient, logg: logg}, nil
}

// Cancel schedules cancellation at the end of the current period and stores
// the reason. The row turns canceled when the processor's deletion event arrives.
func (s *service) Cancel(ctx context.Context, input CancelInput) (*models.Subscription, error) {
	if input.SubscriptionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subscription id is required")
	}
	reason := strings.TrimSpace(input.Reason)
	if len([]rune(reason)) > MaxCancellationReasonLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cancellation reason is too long").
			WithDetails(map[string]any{"field": "reason", "max": MaxCancellationReasonLength})
	}

	sub, err := s.subs.FindByID(ctx, input.SubscriptionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load subscription")
	}
	if sub == nil {
		return nil, pkgerrors.NotFound(pkgerrors.ErrSubscriptionNotFound, input.SubscriptionID.String())
	}
	if sub.UserID != input.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "subscription belongs to another account")
	}
	if sub.Status == enums.SubscriptionStatusCanceled {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "subscription is already canceled")
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"subscription_id":        sub.ID.String(),
		"stripe_subscription_id": sub.StripeSubscriptionID,
	})
	if _, err := s.stripe.SetCancelAtPeriodEnd(ctx, sub.StripeSubscriptionID, true); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "schedule stripe cancellation")
	}

	var stored *string
	if reason != "" {
		stored = &reason
	}
	if err := s.subs.RecordCancellationRequest(ctx, sub.ID, stored); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record cancellation")
	}
	sub.CancelAtPeriodEnd = true
	sub.CancellationReason = stored
	s.logg.Info(ctx, "subscription cancellation scheduled")
	return sub, nil
}
