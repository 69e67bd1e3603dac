package stripewebhook

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/digitalrevolution/dr-backend/internal/checkout"
	"github.com/digitalrevolution/dr-backend/internal/donations"
	"github.com/digitalrevolution/dr-backend/internal/orders"
	"github.com/digitalrevolution/dr-backend/internal/webhooks"
	pkgerrors "github.com/digitalrevolution/dr-backend/pkg/errors"
	pkgstripe "github.com/digitalrevolution/dr-backend/pkg/stripe"
)

const (
	sessionModeSubscription = "subscription"
	degradedStepCleanup     = "cleanup"
)

type orderMetadata struct {
	cartID            uuid.UUID
	userID            *uuid.UUID
	guestID           *string
	checkoutSessionID *uuid.UUID
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, eventID string, session *pkgstripe.CheckoutSession) (webhooks.Outcome, error) {
	ctx = s.logg.WithField(ctx, "stripe_session_id", session.ID)

	if session.Mode == sessionModeSubscription {
		s.logg.Info(ctx, "subscription checkout left to subscription lifecycle events")
		return webhooks.OutcomeIgnored, nil
	}

	switch kind := strings.ToLower(strings.TrimSpace(session.Metadata[checkout.MetadataKind])); kind {
	case "", checkout.KindOrder:
		return s.completeOrder(ctx, eventID, session)
	case checkout.KindDonation:
		return s.completeDonation(ctx, session)
	default:
		return webhooks.OutcomeFailed, pkgerrors.New(pkgerrors.CodeValidation, "unknown checkout kind").
			WithDetails(map[string]any{"field": checkout.MetadataKind, "value": kind})
	}
}

// completeOrder runs materialize, fulfillment, cleanup and confirmation. Only
// materialization can fail the event; the later steps are best effort.
func (s *Service) completeOrder(ctx context.Context, eventID string, session *pkgstripe.CheckoutSession) (webhooks.Outcome, error) {
	meta, err := parseOrderMetadata(session.Metadata)
	if err != nil {
		return webhooks.OutcomeFailed, err
	}
	ctx = s.logg.WithField(ctx, "cart_id", meta.cartID.String())

	existing, err := s.orders.FindByStripeSessionID(ctx, session.ID)
	if err != nil {
		return webhooks.OutcomeError, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check existing order")
	}
	if existing != nil {
		s.logg.Info(s.logg.WithField(ctx, "order_id", existing.ID.String()), "order already exists for checkout session")
		return webhooks.OutcomeDuplicate, nil
	}

	totals := session.Totals()
	order, err := s.materializer.Materialize(ctx, orders.MaterializeInput{
		CartID:          meta.cartID,
		UserID:          meta.userID,
		GuestID:         meta.guestID,
		StripeSessionID: session.ID,
		PaymentIntentID: session.PaymentIntent.Ptr(),
		Email:           session.Email(),
		Shipping:        session.ShippingContact(),
		Customer:        session.CustomerDetails,
		ShippingMethod:  s.shipping.Method(session.ShippingRateID()),
		DiscountCents:   totals.AmountDiscount,
		ShippingCents:   totals.AmountShipping,
		TaxCents:        totals.AmountTax,
		TotalCents:      session.AmountTotal,
		Currency:        session.Currency,
	})
	if err != nil {
		return webhooks.OutcomeFailed, err
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"order_id":     order.ID.String(),
		"order_number": order.OrderNumber,
	})
	s.logg.Info(ctx, "order materialized")

	// failures park the order as fulfillment_pending and are logged by the bridge
	_ = s.fulfillment.Submit(ctx, order)

	result, err := s.cleaner.Complete(ctx, checkout.CleanupInput{
		CartID:            meta.cartID,
		CheckoutSessionID: meta.checkoutSessionID,
		StripeSessionID:   session.ID,
		EventID:           eventID,
		Totals: checkout.Totals{
			Currency:      order.Currency.String(),
			SubtotalCents: order.SubtotalCents,
			DiscountCents: order.DiscountCents,
			ShippingCents: order.ShippingCents,
			TaxCents:      order.TaxCents,
			TotalCents:    order.TotalCents,
		},
	})
	if err != nil {
		s.logg.Error(ctx, "checkout cleanup failed after order was created", err)
		s.degraded(degradedStepCleanup)
	} else {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"cart_items_removed": result.ItemsRemoved,
			"session_completed":  result.SessionCompleted,
		}), "checkout cleaned up")
	}

	s.notifier.OrderConfirmation(ctx, order)
	return webhooks.OutcomeProcessed, nil
}

func (s *Service) completeDonation(ctx context.Context, session *pkgstripe.CheckoutSession) (webhooks.Outcome, error) {
	donation, fresh, err := s.donations.Complete(ctx, donations.InputFromCheckout(session))
	if err != nil {
		return webhooks.OutcomeFailed, err
	}
	ctx = s.logg.WithField(ctx, "donation_id", donation.ID.String())
	if !fresh {
		s.logg.Info(ctx, "donation already completed")
		return webhooks.OutcomeDuplicate, nil
	}
	s.logg.Info(ctx, "donation completed")
	s.notifier.DonationReceipt(ctx, donation)
	return webhooks.OutcomeProcessed, nil
}

func parseOrderMetadata(metadata map[string]string) (orderMetadata, error) {
	var meta orderMetadata

	rawCart := strings.TrimSpace(metadata[checkout.MetadataCartID])
	if rawCart == "" {
		return meta, pkgerrors.MissingMetadata(checkout.MetadataCartID)
	}
	cartID, err := uuid.Parse(rawCart)
	if err != nil {
		return meta, pkgerrors.MissingMetadata(checkout.MetadataCartID)
	}
	meta.cartID = cartID

	if rawUser := strings.TrimSpace(metadata[checkout.MetadataUserID]); rawUser != "" {
		userID, err := uuid.Parse(rawUser)
		if err != nil {
			return meta, pkgerrors.MissingMetadata(checkout.MetadataUserID)
		}
		meta.userID = &userID
	}
	if guest := strings.TrimSpace(metadata[checkout.MetadataGuestID]); guest != "" {
		meta.guestID = &guest
	}
	if (meta.userID == nil) == (meta.guestID == nil) {
		return meta, pkgerrors.MissingMetadata(checkout.MetadataUserID + "|" + checkout.MetadataGuestID)
	}

	if rawSession := strings.TrimSpace(metadata[checkout.MetadataCheckoutSessionID]); rawSession != "" {
		if id, err := uuid.Parse(rawSession); err == nil {
			meta.checkoutSessionID = &id
		}
	}
	return meta, nil
}
