package donations

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/digitalrevolution/dr-backend/pkg/db"
	"github.com/digitalrevolution/dr-backend/pkg/db/models"
	"github.com/digitalrevolution/dr-backend/pkg/enums"
	pkgerrors "github.com/digitalrevolution/dr-backend/pkg/errors"
	pkgstripe "github.com/digitalrevolution/dr-backend/pkg/stripe"
)

const (
	MetadataDonorName  = "donor_name"
	MetadataDonorEmail = "donor_email"
	MetadataAnonymous  = "anonymous"
	MetadataMessage    = "message"

	uniqueDonationSession = "ux_donations_stripe_session_id"
	maxMessageLength      = 1000
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CompleteInput is a paid donation checkout in local terms.
type CompleteInput struct {
	StripeSessionID string
	PaymentIntentID *string
	AmountCents     int64
	Currency        string
	DonorName       *string
	DonorEmail      *string
	Anonymous       bool
	Message         *string
}

// InputFromCheckout reads donor details from session metadata first and falls
// back to what the customer typed into the hosted page.
func InputFromCheckout(session *pkgstripe.CheckoutSession) CompleteInput {
	input := CompleteInput{
		StripeSessionID: session.ID,
		PaymentIntentID: session.PaymentIntent.Ptr(),
		AmountCents:     session.AmountTotal,
		Currency:        session.Currency,
		Anonymous:       strings.EqualFold(strings.TrimSpace(session.Metadata[MetadataAnonymous]), "true"),
	}

	var customerName string
	if session.CustomerDetails != nil {
		customerName = session.CustomerDetails.Name
	}
	input.DonorName = firstNonEmpty(session.Metadata[MetadataDonorName], customerName)
	input.DonorEmail = firstNonEmpty(session.Metadata[MetadataDonorEmail], session.Email())

	if message := strings.TrimSpace(session.Metadata[MetadataMessage]); message != "" {
		if runes := []rune(message); len(runes) > maxMessageLength {
			message = string(runes[:maxMessageLength])
		}
		input.Message = &message
	}
	return input
}

type Service interface {
	// Complete records the donation as paid. The boolean is false when the
	// session had already been completed by an earlier delivery.
	Complete(ctx context.Context, input CompleteInput) (*models.Donation, bool, error)
}

type service struct {
	tx   txRunner
	repo Repository
	now  func() time.Time
}

func NewService(tx txRunner, repo Repository) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("donation repository required")
	}
	return &service{tx: tx, repo: repo, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *service) Complete(ctx context.Context, input CompleteInput) (*models.Donation, bool, error) {
	if strings.TrimSpace(input.StripeSessionID) == "" {
		return nil, false, pkgerrors.MissingMetadata("stripe_session_id")
	}

	var (
		donation *models.Donation
		fresh    bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := repo.FindByStripeSessionID(ctx, input.StripeSessionID)
		if err != nil {
			return err
		}
		if existing != nil && existing.Status == enums.DonationStatusCompleted {
			donation = existing
			return nil
		}
		if existing == nil {
			existing = &models.Donation{StripeSessionID: input.StripeSessionID}
		}

		completedAt := s.now()
		existing.StripePaymentIntentID = input.PaymentIntentID
		existing.AmountCents = input.AmountCents
		existing.Currency = enums.NormalizeCurrency(input.Currency)
		existing.DonorName = input.DonorName
		existing.DonorEmail = input.DonorEmail
		existing.Anonymous = input.Anonymous
		existing.Message = input.Message
		existing.Status = enums.DonationStatusCompleted
		existing.CompletedAt = &completedAt
		if err := repo.Save(ctx, existing); err != nil {
			return err
		}
		donation = existing
		fresh = true
		return nil
	})
	if err != nil {
		if db.IsUniqueViolation(err, uniqueDonationSession) {
			return nil, false, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "donation already recorded for checkout session")
		}
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist donation")
	}
	return donation, fresh, nil
}

func firstNonEmpty(values ...string) *string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return &trimmed
		}
	}
	return nil
}
