package enums

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseOrderStatus(t *testing.T) {
	status, err := ParseOrderStatus("fulfillment_pending")
	require.NoError(t, err)
	require.Equal(t, OrderStatusFulfillmentPending, status)

	_, err = ParseOrderStatus("lost")
	require.Error(t, err)
}

func TestSubscriptionStatusTerminal(t *testing.T) {
	require.True(t, SubscriptionStatusCanceled.IsTerminal())
	require.False(t, SubscriptionStatusPastDue.IsTerminal())

	status, err := ParseSubscriptionStatus("paused")
	require.NoError(t, err)
	require.True(t, status.IsValid())
}

func TestNormalizeCurrency(t *testing.T) {
	require.Equal(t, Currency("EUR"), NormalizeCurrency(" eur "))
	require.Equal(t, CurrencyUSD, NormalizeCurrency(""))
	require.EqualValues(t, 2, CurrencyUSD.Exponent())
	require.EqualValues(t, 0, Currency("JPY").Exponent())
	require.EqualValues(t, 0, Currency("krw").Exponent())
}

func TestBillingIntervalParse(t *testing.T) {
	interval, err := ParseBillingInterval("month")
	require.NoError(t, err)
	require.Equal(t, BillingIntervalMonth, interval)
	require.False(t, BillingInterval("fortnight").IsValid())
}
