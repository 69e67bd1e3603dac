package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/digitalrevolution/dr-backend/api/middleware"
	"github.com/digitalrevolution/dr-backend/api/responses"
	"github.com/digitalrevolution/dr-backend/api/validators"
	checkoutsvc "github.com/digitalrevolution/dr-backend/internal/checkout"
	pkgerrors "github.com/digitalrevolution/dr-backend/pkg/errors"
	"github.com/digitalrevolution/dr-backend/pkg/logger"
)

// Checkout opens a hosted payment session for the caller's cart. Signed-in
// users and guests carrying the guest cookie are both accepted.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		input, err := checkoutIdentity(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		input.CartID = payload.CartID
		if payload.Email != nil {
			email := strings.TrimSpace(*payload.Email)
			if email != "" {
				input.Email = &email
			}
		}

		result, err := svc.Begin(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, checkoutResponse{
			CheckoutSessionID: result.CheckoutSessionID,
			URL:               result.URL,
		})
	}
}

func checkoutIdentity(r *http.Request) (checkoutsvc.BeginInput, error) {
	var input checkoutsvc.BeginInput
	if raw := middleware.UserIDFromContext(r.Context()); raw != "" {
		userID, err := uuid.Parse(raw)
		if err != nil {
			return input, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
		}
		input.UserID = &userID
		return input, nil
	}
	if guest := middleware.GuestIDFromContext(r.Context()); guest != "" {
		input.GuestID = &guest
		return input, nil
	}
	return input, pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in or continue as guest to check out")
}

type checkoutRequest struct {
	CartID uuid.UUID `json:"cart_id" validate:"required"`
	Email  *string   `json:"email,omitempty" validate:"omitempty,email,max=320"`
}

type checkoutResponse struct {
	CheckoutSessionID uuid.UUID `json:"checkout_session_id"`
	URL               string    `json:"url"`
}
