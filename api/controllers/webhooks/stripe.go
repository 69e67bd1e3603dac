package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/digitalrevolution/dr-backend/api/responses"
	"github.com/digitalrevolution/dr-backend/internal/webhooks"
	pkgerrors "github.com/digitalrevolution/dr-backend/pkg/errors"
	"github.com/digitalrevolution/dr-backend/pkg/logger"
)

const (
	maxPayloadBytes       = 512 << 10
	StripeSignatureHeader = "Stripe-Signature"
)

// EventHandler verifies and settles one provider delivery.
type EventHandler interface {
	HandleEvent(ctx context.Context, payload []byte, signature string) (webhooks.Outcome, error)
}

// StripeWebhook receives checkout, subscription and invoice events from Stripe.
func StripeWebhook(svc EventHandler, logg *logger.Logger) http.HandlerFunc {
	return delivery(svc, StripeSignatureHeader, "stripe", logg)
}

func delivery(svc EventHandler, signatureHeader, provider string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, provider+" webhook service unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		outcome, err := svc.HandleEvent(ctx, payload, r.Header.Get(signatureHeader))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteJSON(w, http.StatusOK, webhooks.NewAck(outcome))
	}
}
