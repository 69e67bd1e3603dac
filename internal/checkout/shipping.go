package checkout

import (
	"sort"
	"strings"
)

// ShippingRates maps a Printful shipping method (STANDARD, EXPRESS, ...) to
// the Stripe shipping rate offered for it on hosted checkout.
type ShippingRates map[string]string

// RateIDs returns the configured Stripe rate ids ordered by method name.
func (r ShippingRates) RateIDs() []string {
	methods := make([]string, 0, len(r))
	for method, rate := range r {
		if strings.TrimSpace(rate) != "" {
			methods = append(methods, method)
		}
	}
	sort.Strings(methods)
	ids := make([]string, 0, len(methods))
	for _, method := range methods {
		ids = append(ids, strings.TrimSpace(r[method]))
	}
	return ids
}

// Method resolves the Printful method for the rate the customer picked. An
// unknown or empty rate yields nil.
func (r ShippingRates) Method(rateID string) *string {
	rateID = strings.TrimSpace(rateID)
	if rateID == "" {
		return nil
	}
	for method, rate := range r {
		if strings.TrimSpace(rate) == rateID {
			m := strings.ToUpper(strings.TrimSpace(method))
			return &m
		}
	}
	return nil
}
