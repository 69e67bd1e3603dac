package errors

import (
	stdErrors "errors"
	"testing"

	"github.com/stripe/stripe-go/v84"
)

func TestNotFoundMatchesSentinelAndCode(t *testing.T) {
	err := NotFound(ErrCartNotFound, "cart-1")
	if !Is(err, ErrCartNotFound) {
		t.Fatalf("expected cart sentinel in chain")
	}
	if Is(err, ErrUserNotFound) {
		t.Fatalf("unexpected user sentinel match")
	}
	if err.Code() != CodeNotFound {
		t.Fatalf("expected not found code, got %s", err.Code())
	}
}

func TestInvalidSignatureKeepsCause(t *testing.T) {
	cause := stdErrors.New("hmac mismatch")
	err := InvalidSignature(cause)
	if !Is(err, ErrInvalidSignature) || !Is(err, cause) {
		t.Fatalf("expected both sentinel and cause in chain")
	}
	if MetadataFor(err.Code()).HTTPStatus != 400 {
		t.Fatalf("invalid signature should map to 400")
	}
	if !Is(InvalidSignature(nil), ErrInvalidSignature) {
		t.Fatalf("nil cause should still carry sentinel")
	}
}

func TestMissingMetadataDetails(t *testing.T) {
	err := MissingMetadata("cart_id")
	if !Is(err, ErrMissingMetadata) {
		t.Fatalf("expected missing metadata sentinel")
	}
	details, ok := err.Details().(map[string]any)
	if !ok || details["field"] != "cart_id" {
		t.Fatalf("expected field detail, got %#v", err.Details())
	}
}

func TestDumpWalksChain(t *testing.T) {
	d := Dump(NotFound(ErrSubscriptionNotFound, "sub_1"))
	if d.Code != CodeNotFound {
		t.Fatalf("expected code in dump, got %s", d.Code)
	}
	if len(d.Chain) < 2 {
		t.Fatalf("expected at least two links, got %v", d.Chain)
	}
}

func TestDumpLiftsStripeDetails(t *testing.T) {
	cause := &stripe.Error{Code: stripe.ErrorCodeResourceMissing, RequestID: "req_123", HTTPStatusCode: 404}
	d := Dump(Wrap(CodeDependency, cause, "load subscription"))
	if d.StripeCode != "resource_missing" || d.StripeRequestID != "req_123" || d.StripeStatus != 404 {
		t.Fatalf("unexpected stripe fields %+v", d)
	}
	if d.PGCode != "" {
		t.Fatalf("expected no postgres fields, got %q", d.PGCode)
	}
}
