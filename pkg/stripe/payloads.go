package stripe

import (
	"bytes"
	"encoding/json"
	"strings"
)

// The shapes below mirror the fields of Stripe's JSON objects that the shop
// reads from webhook payloads. Decoding into them instead of the SDK structs
// keeps older and newer API versions readable side by side.

// ExpandableID reads a field Stripe renders either as a bare id or as an
// expanded object carrying an id.
type ExpandableID string

func (e *ExpandableID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*e = ""
		return nil
	}
	if data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*e = ExpandableID(id)
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*e = ExpandableID(obj.ID)
	return nil
}

func (e ExpandableID) String() string {
	return string(e)
}

// Ptr returns nil for an absent id.
func (e ExpandableID) Ptr() *string {
	if e == "" {
		return nil
	}
	s := string(e)
	return &s
}

type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	State      string `json:"state"`
	Country    string `json:"country"`
	PostalCode string `json:"postal_code"`
}

// IsZero reports whether no address line was provided.
func (a *Address) IsZero() bool {
	return a == nil || (a.Line1 == "" && a.City == "" && a.PostalCode == "" && a.Country == "")
}

// ContactDetails covers both customer_details and shipping_details objects.
type ContactDetails struct {
	Name    string   `json:"name"`
	Email   string   `json:"email"`
	Phone   string   `json:"phone"`
	Address *Address `json:"address"`
}

type TotalDetails struct {
	AmountDiscount int64 `json:"amount_discount"`
	AmountShipping int64 `json:"amount_shipping"`
	AmountTax      int64 `json:"amount_tax"`
}

type ShippingCost struct {
	AmountTotal  int64        `json:"amount_total"`
	ShippingRate ExpandableID `json:"shipping_rate"`
}

// CheckoutSession is the data.object of checkout.session.completed.
type CheckoutSession struct {
	ID                   string            `json:"id"`
	Mode                 string            `json:"mode"`
	Status               string            `json:"status"`
	PaymentStatus        string            `json:"payment_status"`
	AmountSubtotal       int64             `json:"amount_subtotal"`
	AmountTotal          int64             `json:"amount_total"`
	Currency             string            `json:"currency"`
	CustomerEmail        string            `json:"customer_email"`
	Customer             ExpandableID      `json:"customer"`
	PaymentIntent        ExpandableID      `json:"payment_intent"`
	Subscription         ExpandableID      `json:"subscription"`
	CustomerDetails      *ContactDetails   `json:"customer_details"`
	ShippingDetails      *ContactDetails   `json:"shipping_details"`
	CollectedInformation *struct {
		ShippingDetails *ContactDetails `json:"shipping_details"`
	} `json:"collected_information"`
	ShippingCost *ShippingCost     `json:"shipping_cost"`
	TotalDetails *TotalDetails     `json:"total_details"`
	Metadata     map[string]string `json:"metadata"`
}

// ShippingContact returns the collected shipping details, preferring the
// current collected_information location over the legacy top-level field.
func (c *CheckoutSession) ShippingContact() *ContactDetails {
	if c.CollectedInformation != nil && c.CollectedInformation.ShippingDetails != nil {
		return c.CollectedInformation.ShippingDetails
	}
	return c.ShippingDetails
}

// ShippingRateID returns the shipping rate the customer picked, if any.
func (c *CheckoutSession) ShippingRateID() string {
	if c.ShippingCost == nil {
		return ""
	}
	return c.ShippingCost.ShippingRate.String()
}

// Email returns the customer's email from customer_details or customer_email.
func (c *CheckoutSession) Email() string {
	if c.CustomerDetails != nil && strings.TrimSpace(c.CustomerDetails.Email) != "" {
		return strings.TrimSpace(c.CustomerDetails.Email)
	}
	return strings.TrimSpace(c.CustomerEmail)
}

// Totals flattens total_details, which is absent on some test payloads.
func (c *CheckoutSession) Totals() TotalDetails {
	if c.TotalDetails == nil {
		return TotalDetails{}
	}
	return *c.TotalDetails
}

type Recurring struct {
	Interval      string `json:"interval"`
	IntervalCount int64  `json:"interval_count"`
}

type Price struct {
	ID         string     `json:"id"`
	UnitAmount int64      `json:"unit_amount"`
	Currency   string     `json:"currency"`
	Recurring  *Recurring `json:"recurring"`
}

type SubscriptionItem struct {
	ID                 string `json:"id"`
	CurrentPeriodStart int64  `json:"current_period_start"`
	CurrentPeriodEnd   int64  `json:"current_period_end"`
	Quantity           int64  `json:"quantity"`
	Price              *Price `json:"price"`
}

// Subscription is the data.object of customer.subscription.* events.
type Subscription struct {
	ID                string       `json:"id"`
	Status            string       `json:"status"`
	Customer          ExpandableID `json:"customer"`
	Currency          string       `json:"currency"`
	CancelAtPeriodEnd bool         `json:"cancel_at_period_end"`
	CanceledAt        int64        `json:"canceled_at"`
	EndedAt           int64        `json:"ended_at"`
	// Older API versions carried the period on the subscription itself.
	CurrentPeriodStart int64 `json:"current_period_start"`
	CurrentPeriodEnd   int64 `json:"current_period_end"`
	Items              struct {
		Data []SubscriptionItem `json:"data"`
	} `json:"items"`
	Metadata map[string]string `json:"metadata"`
}

// PrimaryItem returns the first subscription item, if any.
func (s *Subscription) PrimaryItem() *SubscriptionItem {
	if len(s.Items.Data) == 0 {
		return nil
	}
	return &s.Items.Data[0]
}

// Period returns the current billing period bounds as unix seconds.
func (s *Subscription) Period() (start, end int64) {
	if item := s.PrimaryItem(); item != nil && item.CurrentPeriodEnd > 0 {
		return item.CurrentPeriodStart, item.CurrentPeriodEnd
	}
	return s.CurrentPeriodStart, s.CurrentPeriodEnd
}

type Period struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

type InvoiceLine struct {
	ID           string       `json:"id"`
	Amount       int64        `json:"amount"`
	Subscription ExpandableID `json:"subscription"`
	Period       Period       `json:"period"`
	Parent       *struct {
		SubscriptionItemDetails *struct {
			Subscription ExpandableID `json:"subscription"`
		} `json:"subscription_item_details"`
	} `json:"parent"`
}

// SubscriptionID returns the subscription the line bills, if any.
func (l *InvoiceLine) SubscriptionID() string {
	if l.Subscription != "" {
		return l.Subscription.String()
	}
	if l.Parent != nil && l.Parent.SubscriptionItemDetails != nil {
		return l.Parent.SubscriptionItemDetails.Subscription.String()
	}
	return ""
}

// Invoice is the data.object of invoice.payment_succeeded.
type Invoice struct {
	ID           string       `json:"id"`
	Status       string       `json:"status"`
	AmountPaid   int64        `json:"amount_paid"`
	Currency     string       `json:"currency"`
	Customer     ExpandableID `json:"customer"`
	Subscription ExpandableID `json:"subscription"`
	Lines        struct {
		Data []InvoiceLine `json:"data"`
	} `json:"lines"`
	Parent *struct {
		SubscriptionDetails *struct {
			Subscription ExpandableID `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
	StatusTransitions struct {
		PaidAt int64 `json:"paid_at"`
	} `json:"status_transitions"`
	Created int64 `json:"created"`
}

// SubscriptionID finds the subscription the invoice was raised for. Line items
// win; the invoice-level fields are a fallback.
func (i *Invoice) SubscriptionID() string {
	for idx := range i.Lines.Data {
		if id := i.Lines.Data[idx].SubscriptionID(); id != "" {
			return id
		}
	}
	if i.Parent != nil && i.Parent.SubscriptionDetails != nil && i.Parent.SubscriptionDetails.Subscription != "" {
		return i.Parent.SubscriptionDetails.Subscription.String()
	}
	return i.Subscription.String()
}

// BillingPeriod returns the period of the first line item.
func (i *Invoice) BillingPeriod() Period {
	if len(i.Lines.Data) == 0 {
		return Period{}
	}
	return i.Lines.Data[0].Period
}
