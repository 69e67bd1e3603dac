package subscriptions

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/digitalrevolution/dr-backend/pkg/db/models"
	"github.com/digitalrevolution/dr-backend/pkg/enums"
	pkgerrors "github.com/digitalrevolution/dr-backend/pkg/errors"
	pkgstripe "github.com/digitalrevolution/dr-backend/pkg/stripe"
)

const MetadataUserID = "user_id"

// BuildSubscription maps a Stripe subscription into a new local row for userID.
func BuildSubscription(snapshot *pkgstripe.Subscription, userID uuid.UUID) (*models.Subscription, error) {
	if snapshot == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subscription payload is nil")
	}
	sub := &models.Subscription{
		UserID:               userID,
		StripeSubscriptionID: snapshot.ID,
	}
	if err := ApplySnapshot(sub, snapshot); err != nil {
		return nil, err
	}
	return sub, nil
}

// ApplySnapshot copies the processor-owned fields onto target. The cancellation
// reason is user-supplied and never overwritten here.
func ApplySnapshot(target *models.Subscription, snapshot *pkgstripe.Subscription) error {
	if target == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "target subscription is nil")
	}
	if snapshot == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "subscription payload is nil")
	}

	target.Status = mapStatus(snapshot.Status)
	if customer := snapshot.Customer.String(); customer != "" {
		target.StripeCustomerID = customer
	}

	currency := snapshot.Currency
	if item := snapshot.PrimaryItem(); item != nil && item.Price != nil {
		price := item.Price
		if price.ID != "" {
			id := price.ID
			target.StripePriceID = &id
		}
		target.AmountCents = price.UnitAmount
		if price.Currency != "" {
			currency = price.Currency
		}
		if price.Recurring != nil {
			if interval, err := enums.ParseBillingInterval(strings.ToLower(price.Recurring.Interval)); err == nil {
				target.Interval = interval
			}
		}
	}
	if target.Interval == "" {
		target.Interval = enums.BillingIntervalMonth
	}
	target.Currency = enums.NormalizeCurrency(currency)

	start, end := snapshot.Period()
	target.CurrentPeriodStart = toTimePtr(start)
	target.CurrentPeriodEnd = toTimePtr(end)
	target.CancelAtPeriodEnd = snapshot.CancelAtPeriodEnd
	// a reactivated subscription comes back with canceled_at null
	target.CanceledAt = toTimePtr(snapshot.CanceledAt)
	return nil
}

// UserIDFromMetadata extracts the account id attached when the subscription was started.
func UserIDFromMetadata(metadata map[string]string) (uuid.UUID, error) {
	raw := strings.TrimSpace(metadata[MetadataUserID])
	if raw == "" {
		return uuid.Nil, pkgerrors.MissingMetadata(MetadataUserID)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.MissingMetadata(MetadataUserID).WithDetails(map[string]any{
			"field":  MetadataUserID,
			"reason": "not a uuid",
		})
	}
	return id, nil
}

func toTimePtr(ts int64) *time.Time {
	if ts == 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}

// mapStatus accepts Stripe's status strings; unknown values degrade to active
// so a new processor state never blocks reconciliation.
func mapStatus(raw string) enums.SubscriptionStatus {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	if alias, ok := statusAliases[normalized]; ok {
		return alias
	}
	if parsed, err := enums.ParseSubscriptionStatus(normalized); err == nil {
		return parsed
	}
	return enums.SubscriptionStatusActive
}

var statusAliases = map[string]enums.SubscriptionStatus{
	"cancelled": enums.SubscriptionStatusCanceled,
	"ended":     enums.SubscriptionStatusCanceled,
}
