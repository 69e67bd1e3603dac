package notifications

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/digitalrevolution/dr-backend/pkg/enums"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	tmplOrderConfirmation       = "order_confirmation"
	tmplShipmentNotice          = "shipment_notice"
	tmplDonationReceipt         = "donation_receipt"
	tmplSubscriptionConfirmed   = "subscription_confirmation"
	tmplSubscriptionCancelled   = "subscription_cancellation"
	tmplSubscriptionPaymentPaid = "subscription_payment_receipt"

	layoutTemplate = "layout.html"
	longDateLayout = "January 2, 2006"
)

var templateFuncs = template.FuncMap{
	"money": formatMoney,
	"date":  formatDate,
	"deref": deref,
}

// renderer holds one parsed template set per email, each sharing the layout.
type renderer struct {
	sets map[string]*template.Template
}

func newRenderer() (*renderer, error) {
	names := []string{
		tmplOrderConfirmation,
		tmplShipmentNotice,
		tmplDonationReceipt,
		tmplSubscriptionConfirmed,
		tmplSubscriptionCancelled,
		tmplSubscriptionPaymentPaid,
	}
	sets := make(map[string]*template.Template, len(names))
	for _, name := range names {
		set, err := template.New(layoutTemplate).
			Funcs(templateFuncs).
			ParseFS(templateFS, "templates/"+layoutTemplate, "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse email template %s: %w", name, err)
		}
		sets[name] = set
	}
	return &renderer{sets: sets}, nil
}

func (r *renderer) render(name string, data any) (string, error) {
	set, ok := r.sets[name]
	if !ok {
		return "", fmt.Errorf("unknown email template %q", name)
	}
	var buf bytes.Buffer
	if err := set.ExecuteTemplate(&buf, layoutTemplate, data); err != nil {
		return "", fmt.Errorf("render email template %s: %w", name, err)
	}
	return buf.String(), nil
}

// formatMoney renders minor units, e.g. 2160 USD -> $21.60, 500 JPY -> 500 JPY.
func formatMoney(minor int64, currency enums.Currency) string {
	exp := currency.Exponent()
	amount := decimal.New(minor, -exp).StringFixed(exp)
	code := strings.ToUpper(currency.String())
	switch code {
	case "", "USD":
		return "$" + amount
	case "EUR":
		return "€" + amount
	case "GBP":
		return "£" + amount
	default:
		return amount + " " + code
	}
}

func formatDate(value any) string {
	switch v := value.(type) {
	case time.Time:
		if v.IsZero() {
			return ""
		}
		return v.UTC().Format(longDateLayout)
	case *time.Time:
		if v == nil || v.IsZero() {
			return ""
		}
		return v.UTC().Format(longDateLayout)
	default:
		return ""
	}
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
