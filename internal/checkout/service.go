package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/digitalrevolution/dr-backend/internal/cart"
	"github.com/digitalrevolution/dr-backend/pkg/db/models"
	"github.com/digitalrevolution/dr-backend/pkg/enums"
	pkgerrors "github.com/digitalrevolution/dr-backend/pkg/errors"
)

// Metadata keys carried on the processor session and read back by the webhook.
const (
	MetadataKind              = "kind"
	MetadataCartID            = "cart_id"
	MetadataUserID            = "user_id"
	MetadataGuestID           = "guest_id"
	MetadataCheckoutSessionID = "checkout_session_id"

	KindOrder    = "order"
	KindDonation = "donation"
)

type sessionCreator interface {
	CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// Service begins hosted checkouts for carts.
type Service interface {
	Begin(ctx context.Context, input BeginInput) (*BeginResult, error)
}

// BeginInput identifies the cart and its caller. Exactly one of UserID and
// GuestID is expected.
type BeginInput struct {
	CartID  uuid.UUID
	UserID  *uuid.UUID
	GuestID *string
	Email   *string
}

type BeginResult struct {
	CheckoutSessionID uuid.UUID
	StripeSessionID   string
	URL               string
}

type ServiceParams struct {
	Carts            cart.Repository
	Sessions         Repository
	Stripe           sessionCreator
	PublicBaseURL    string
	AllowedCountries []string
	ShippingRates    ShippingRates
}

type service struct {
	carts            cart.Repository
	sessions         Repository
	stripe           sessionCreator
	baseURL          string
	allowedCountries []string
	shippingRates    ShippingRates
}

func NewService(params ServiceParams) (Service, error) {
	if params.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Sessions == nil {
		return nil, fmt.Errorf("checkout session repository required")
	}
	if params.Stripe == nil {
		return nil, fmt.Errorf("stripe client required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(params.PublicBaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("public base url required")
	}
	countries := params.AllowedCountries
	if len(countries) == 0 {
		countries = []string{"US"}
	}
	return &service{
		carts:            params.Carts,
		sessions:         params.Sessions,
		stripe:           params.Stripe,
		baseURL:          baseURL,
		allowedCountries: countries,
		shippingRates:    params.ShippingRates,
	}, nil
}

func (s *service) Begin(ctx context.Context, input BeginInput) (*BeginResult, error) {
	if input.CartID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart id required")
	}
	if (input.UserID == nil) == (input.GuestID == nil) {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "cart owner could not be identified")
	}

	record, err := s.carts.FindByID(ctx, input.CartID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	if record == nil {
		return nil, pkgerrors.NotFound(pkgerrors.ErrCartNotFound, input.CartID.String())
	}
	if !record.OwnedBy(input.UserID, input.GuestID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "cart belongs to another owner")
	}
	if len(record.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart contains no items")
	}

	subtotal := record.SubtotalCents()
	session := &models.CheckoutSession{
		CartID:        record.ID,
		UserID:        record.UserID,
		GuestID:       record.GuestID,
		Email:         input.Email,
		Status:        enums.CheckoutSessionStatusPending,
		Currency:      enums.CurrencyUSD.String(),
		SubtotalCents: subtotal,
		TotalCents:    subtotal,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create checkout session")
	}

	created, err := s.stripe.CreateCheckoutSession(ctx, s.stripeParams(record, session))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stripe checkout session")
	}
	if err := s.sessions.SetStripeSessionID(ctx, session.ID, created.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store stripe session id")
	}

	return &BeginResult{
		CheckoutSessionID: session.ID,
		StripeSessionID:   created.ID,
		URL:               created.URL,
	}, nil
}

func (s *service) stripeParams(record *models.Cart, session *models.CheckoutSession) *stripe.CheckoutSessionParams {
	currency := strings.ToLower(session.Currency)
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(record.Items))
	for _, item := range record.Items {
		product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(displayName(item)),
			Metadata: map[string]string{
				"product_id": item.ProductID,
				"variant_id": item.VariantID,
			},
		}
		if item.ImageURL != nil && *item.ImageURL != "" {
			product.Images = stripe.StringSlice([]string{*item.ImageURL})
		}
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(currency),
				UnitAmount:  stripe.Int64(item.UnitPriceCents),
				ProductData: product,
			},
			Quantity: stripe.Int64(int64(item.Quantity)),
		})
	}

	metadata := map[string]string{
		MetadataKind:              KindOrder,
		MetadataCartID:            record.ID.String(),
		MetadataCheckoutSessionID: session.ID.String(),
	}
	if record.UserID != nil {
		metadata[MetadataUserID] = record.UserID.String()
	} else if record.GuestID != nil {
		metadata[MetadataGuestID] = *record.GuestID
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(s.baseURL + "/checkout/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:         stripe.String(s.baseURL + "/cart"),
		ClientReferenceID: stripe.String(session.ID.String()),
		LineItems:         lineItems,
		ShippingAddressCollection: &stripe.CheckoutSessionShippingAddressCollectionParams{
			AllowedCountries: stripe.StringSlice(s.allowedCountries),
		},
		AutomaticTax: &stripe.CheckoutSessionAutomaticTaxParams{Enabled: stripe.Bool(true)},
		Metadata:     metadata,
	}
	for _, rate := range s.shippingRates.RateIDs() {
		params.ShippingOptions = append(params.ShippingOptions, &stripe.CheckoutSessionShippingOptionParams{
			ShippingRate: stripe.String(rate),
		})
	}
	if session.Email != nil && *session.Email != "" {
		params.CustomerEmail = stripe.String(*session.Email)
	}
	return params
}

func displayName(item models.CartItem) string {
	parts := []string{item.Name}
	if item.Size != nil && *item.Size != "" {
		parts = append(parts, *item.Size)
	}
	if item.Color != nil && *item.Color != "" {
		parts = append(parts, *item.Color)
	}
	return strings.Join(parts, " / ")
}
