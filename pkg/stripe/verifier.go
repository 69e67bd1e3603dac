package stripe

import (
	"strings"
	"time"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	pkgerrors "github.com/digitalrevolution/dr-backend/pkg/errors"
)

// Verifier authenticates Stripe webhook deliveries against the signing secret.
type Verifier struct {
	secret    string
	tolerance time.Duration
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: strings.TrimSpace(secret), tolerance: webhook.DefaultTolerance}
}

// Verify checks the Stripe-Signature header against the raw body and decodes the
// event envelope. Payloads are decoded into local shapes later, so API version
// drift is tolerated here.
func (v *Verifier) Verify(payload []byte, header string) (stripe.Event, error) {
	if v == nil || v.secret == "" {
		return stripe.Event{}, pkgerrors.New(pkgerrors.CodeInternal, "stripe webhook secret not configured")
	}
	if strings.TrimSpace(header) == "" {
		return stripe.Event{}, pkgerrors.InvalidSignature(nil)
	}
	event, err := webhook.ConstructEventWithOptions(payload, header, v.secret, webhook.ConstructEventOptions{
		Tolerance:                v.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, pkgerrors.InvalidSignature(err)
	}
	return event, nil
}
