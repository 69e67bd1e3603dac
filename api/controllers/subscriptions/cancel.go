package subscriptions

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/digitalrevolution/dr-backend/api/middleware"
	"github.com/digitalrevolution/dr-backend/api/responses"
	"github.com/digitalrevolution/dr-backend/api/validators"
	subscriptionsvc "github.com/digitalrevolution/dr-backend/internal/subscriptions"
	"github.com/digitalrevolution/dr-backend/pkg/db/models"
	pkgerrors "github.com/digitalrevolution/dr-backend/pkg/errors"
	"github.com/digitalrevolution/dr-backend/pkg/logger"
)

// Cancel schedules the caller's subscription to end with its current period.
func Cancel(svc subscriptionsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		userID, err := uuid.Parse(middleware.UserIDFromContext(ctx))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}
		subscriptionID, err := uuid.Parse(chi.URLParam(r, "subscriptionId"))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid subscription id"))
			return
		}

		var payload cancelRequest
		if err := validators.DecodeOptionalJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		sub, err := svc.Cancel(ctx, subscriptionsvc.CancelInput{
			SubscriptionID: subscriptionID,
			UserID:         userID,
			Reason:         payload.Reason,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSubscriptionResponse(sub))
	}
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type subscriptionResponse struct {
	ID                 uuid.UUID  `json:"id"`
	Status             string     `json:"status"`
	AmountCents        int64      `json:"amount_cents"`
	Currency           string     `json:"currency"`
	Interval           string     `json:"interval"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd  bool       `json:"cancel_at_period_end"`
	CancellationReason *string    `json:"cancellation_reason,omitempty"`
}

func newSubscriptionResponse(sub *models.Subscription) subscriptionResponse {
	return subscriptionResponse{
		ID:                 sub.ID,
		Status:             string(sub.Status),
		AmountCents:        sub.AmountCents,
		Currency:           string(sub.Currency),
		Interval:           string(sub.Interval),
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
		CancellationReason: sub.CancellationReason,
	}
}
