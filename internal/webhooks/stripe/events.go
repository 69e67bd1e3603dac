package stripewebhook

import (
	"encoding/json"

	"github.com/stripe/stripe-go/v84"

	pkgerrors "github.com/digitalrevolution/dr-backend/pkg/errors"
	pkgstripe "github.com/digitalrevolution/dr-backend/pkg/stripe"
)

// Event is the closed set of processor events the shop reacts to. Decode is
// the only place raw payloads are interpreted.
type Event interface {
	isEvent()
}

type CheckoutCompleted struct {
	Session pkgstripe.CheckoutSession
}

type SubscriptionCreated struct {
	Subscription pkgstripe.Subscription
}

type SubscriptionUpdated struct {
	Subscription pkgstripe.Subscription
}

type SubscriptionDeleted struct {
	Subscription pkgstripe.Subscription
}

type InvoicePaymentSucceeded struct {
	Invoice pkgstripe.Invoice
}

// Unhandled is any event type the shop does not act on.
type Unhandled struct {
	Type string
}

func (CheckoutCompleted) isEvent()       {}
func (SubscriptionCreated) isEvent()     {}
func (SubscriptionUpdated) isEvent()     {}
func (SubscriptionDeleted) isEvent()     {}
func (InvoicePaymentSucceeded) isEvent() {}
func (Unhandled) isEvent()               {}

// Decode maps a verified envelope onto its typed payload. A payload that does
// not match its declared type is a validation error: redelivering it cannot help.
func Decode(event stripe.Event) (Event, error) {
	if event.Data == nil || len(event.Data.Raw) == 0 {
		if isHandled(event.Type) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
		}
		return Unhandled{Type: string(event.Type)}, nil
	}
	raw := event.Data.Raw

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var out CheckoutCompleted
		if err := unmarshal(raw, &out.Session, "checkout session"); err != nil {
			return nil, err
		}
		return out, nil
	case stripe.EventTypeCustomerSubscriptionCreated:
		sub, err := decodeSubscription(raw)
		if err != nil {
			return nil, err
		}
		return SubscriptionCreated{Subscription: sub}, nil
	case stripe.EventTypeCustomerSubscriptionUpdated:
		sub, err := decodeSubscription(raw)
		if err != nil {
			return nil, err
		}
		return SubscriptionUpdated{Subscription: sub}, nil
	case stripe.EventTypeCustomerSubscriptionDeleted:
		sub, err := decodeSubscription(raw)
		if err != nil {
			return nil, err
		}
		return SubscriptionDeleted{Subscription: sub}, nil
	case stripe.EventTypeInvoicePaymentSucceeded:
		var out InvoicePaymentSucceeded
		if err := unmarshal(raw, &out.Invoice, "invoice"); err != nil {
			return nil, err
		}
		return out, nil
	default:
		return Unhandled{Type: string(event.Type)}, nil
	}
}

func decodeSubscription(raw json.RawMessage) (pkgstripe.Subscription, error) {
	var sub pkgstripe.Subscription
	err := unmarshal(raw, &sub, "subscription")
	return sub, err
}

func isHandled(t stripe.EventType) bool {
	switch t {
	case stripe.EventTypeCheckoutSessionCompleted,
		stripe.EventTypeCustomerSubscriptionCreated,
		stripe.EventTypeCustomerSubscriptionUpdated,
		stripe.EventTypeCustomerSubscriptionDeleted,
		stripe.EventTypeInvoicePaymentSucceeded:
		return true
	}
	return false
}

func unmarshal(raw json.RawMessage, target any, kind string) error {
	if err := json.Unmarshal(raw, target); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode "+kind+" payload")
	}
	return nil
}
