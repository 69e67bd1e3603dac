package enums

import "strings"

// Currency is an ISO 4217 code as reported by the payment processor.
type Currency string

const CurrencyUSD Currency = "USD"

// String implements fmt.Stringer.
func (c Currency) String() string {
	return string(c)
}

// zeroDecimal lists the currencies Stripe charges in whole units.
var zeroDecimal = map[Currency]struct{}{
	"BIF": {}, "CLP": {}, "DJF": {}, "GNF": {}, "JPY": {}, "KMF": {}, "KRW": {}, "MGA": {},
	"PYG": {}, "RWF": {}, "UGX": {}, "VND": {}, "VUV": {}, "XAF": {}, "XOF": {}, "XPF": {},
}

// Exponent returns the number of decimal places in one major unit.
func (c Currency) Exponent() int32 {
	if _, ok := zeroDecimal[Currency(strings.ToUpper(string(c)))]; ok {
		return 0
	}
	return 2
}

// NormalizeCurrency upper-cases processor currency codes, defaulting to USD.
func NormalizeCurrency(value string) Currency {
	value = strings.ToUpper(strings.TrimSpace(value))
	if value == "" {
		return CurrencyUSD
	}
	return Currency(value)
}
