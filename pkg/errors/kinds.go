package errors

import (
	stdErrors "errors"
	"fmt"
)

var (
	ErrInvalidSignature     = stdErrors.New("invalid webhook signature")
	ErrMissingMetadata      = stdErrors.New("missing event metadata")
	ErrCartNotFound         = stdErrors.New("cart not found")
	ErrUserNotFound         = stdErrors.New("user not found")
	ErrSubscriptionNotFound = stdErrors.New("subscription not found")
	ErrOrderNotFound        = stdErrors.New("order not found")
)

// InvalidSignature rejects a webhook whose payload could not be authenticated.
func InvalidSignature(cause error) *Error {
	if cause == nil {
		return Wrap(CodeValidation, ErrInvalidSignature, ErrInvalidSignature.Error())
	}
	return Wrap(CodeValidation, fmt.Errorf("%w: %w", ErrInvalidSignature, cause), ErrInvalidSignature.Error())
}

func MissingMetadata(field string) *Error {
	return Wrap(CodeValidation, fmt.Errorf("%w: %s", ErrMissingMetadata, field), "missing metadata "+field).
		WithDetails(map[string]any{"field": field})
}

// NotFound wraps one of the entity sentinels so callers can match on either the
// sentinel or the NOT_FOUND code.
func NotFound(kind error, id string) *Error {
	return Wrap(CodeNotFound, fmt.Errorf("%w: %s", kind, id), kind.Error())
}

func Is(err, target error) bool {
	return stdErrors.Is(err, target)
}
