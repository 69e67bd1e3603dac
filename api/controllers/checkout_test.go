package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digitalrevolution/dr-backend/api/middleware"
	checkoutsvc "github.com/digitalrevolution/dr-backend/internal/checkout"
	pkgerrors "github.com/digitalrevolution/dr-backend/pkg/errors"
)

type stubCheckoutService struct {
	input  checkoutsvc.BeginInput
	calls  int
	result *checkoutsvc.BeginResult
	err    error
}

func (s *stubCheckoutService) Begin(_ context.Context, input checkoutsvc.BeginInput) (*checkoutsvc.BeginResult, error) {
	s.calls++
	s.input = input
	return s.result, s.err
}

func checkoutRequestFor(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
}

func TestCheckoutForSignedInUser(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	cartID := uuid.New()
	svc := &stubCheckoutService{result: &checkoutsvc.BeginResult{
		CheckoutSessionID: uuid.New(),
		StripeSessionID:   "cs_test_1",
		URL:               "https://checkout.stripe.test/cs_test_1",
	}}

	req := checkoutRequestFor(`{"cart_id":"` + cartID.String() + `","email":"  ada@example.org "}`)
	req = req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
	rec := httptest.NewRecorder()
	Checkout(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NotNil(t, svc.input.UserID)
	assert.Equal(t, userID, *svc.input.UserID)
	assert.Nil(t, svc.input.GuestID)
	assert.Equal(t, cartID, svc.input.CartID)
	require.NotNil(t, svc.input.Email)
	assert.Equal(t, "ada@example.org", *svc.input.Email)

	var envelope struct {
		Data checkoutResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, svc.result.CheckoutSessionID, envelope.Data.CheckoutSessionID)
	assert.Equal(t, svc.result.URL, envelope.Data.URL)
}

func TestCheckoutForGuest(t *testing.T) {
	t.Parallel()

	svc := &stubCheckoutService{result: &checkoutsvc.BeginResult{CheckoutSessionID: uuid.New()}}
	req := checkoutRequestFor(`{"cart_id":"` + uuid.NewString() + `"}`)
	req = req.WithContext(middleware.WithGuestID(req.Context(), "guest-9"))
	rec := httptest.NewRecorder()
	Checkout(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, svc.input.GuestID)
	assert.Equal(t, "guest-9", *svc.input.GuestID)
	assert.Nil(t, svc.input.UserID)
	assert.Nil(t, svc.input.Email)
}

func TestCheckoutRequiresIdentity(t *testing.T) {
	t.Parallel()

	svc := &stubCheckoutService{}
	rec := httptest.NewRecorder()
	Checkout(svc, nil).ServeHTTP(rec, checkoutRequestFor(`{"cart_id":"`+uuid.NewString()+`"}`))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, svc.calls)
}

func TestCheckoutRejectsInvalidBody(t *testing.T) {
	t.Parallel()

	for _, body := range []string{`{}`, `{"cart_id":"nope"}`, `{"cart_id":"` + uuid.NewString() + `","email":"bad"}`} {
		svc := &stubCheckoutService{}
		req := checkoutRequestFor(body)
		req = req.WithContext(middleware.WithGuestID(req.Context(), "guest-9"))
		rec := httptest.NewRecorder()
		Checkout(svc, nil).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Zero(t, svc.calls)
	}
}

func TestCheckoutPropagatesServiceErrors(t *testing.T) {
	t.Parallel()

	svc := &stubCheckoutService{err: pkgerrors.NotFound(pkgerrors.ErrCartNotFound, "x")}
	req := checkoutRequestFor(`{"cart_id":"` + uuid.NewString() + `"}`)
	req = req.WithContext(middleware.WithGuestID(req.Context(), "guest-9"))
	rec := httptest.NewRecorder()
	Checkout(svc, nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
