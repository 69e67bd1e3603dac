package printful

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	pkgerrors "github.com/digitalrevolution/dr-backend/pkg/errors"
)

const shippedBody = `{"type":"package_shipped","created":1700000000,"retries":0,"store":42,"data":{"shipment":{"id":5,"carrier":"USPS","service":"First Class","tracking_number":"9400","tracking_url":"https://track/9400","ship_date":"2026-03-02","estimated_delivery":"2026-03-06"},"order":{"id":987,"external_id":"ORD-1-AAAAA","status":"fulfilled"}}}`

func TestVerifyEventDecodesSignedBody(t *testing.T) {
	body := []byte(shippedBody)
	event, err := VerifyEvent(body, Sign(body, "pf-secret"), "pf-secret")
	require.NoError(t, err)
	require.Equal(t, EventPackageShipped, event.Type)
	require.EqualValues(t, 987, event.Data.Order.ID)
	require.NotNil(t, event.Data.Shipment)
	require.Equal(t, "9400", event.Data.Shipment.TrackingNumber)
}

func TestSignMatchesHMACVector(t *testing.T) {
	require.Equal(t,
		"f7bc83f430538424b13298e6aa6fb143ef4d59a14946175997479dbc2d1a3cd8",
		Sign([]byte("The quick brown fox jumps over the lazy dog"), "key"))

	body := []byte(shippedBody)
	_, err := VerifyEvent(body, strings.ToUpper(Sign(body, "pf-secret")), "pf-secret")
	require.NoError(t, err)
}

func TestVerifyEventRejectsBadSignatures(t *testing.T) {
	body := []byte(shippedBody)
	for _, sig := range []string{"", "not-hex", Sign(body, "other-secret"), Sign([]byte(`{}`), "pf-secret")} {
		_, err := VerifyEvent(body, sig, "pf-secret")
		require.ErrorIs(t, err, pkgerrors.ErrInvalidSignature, "signature %q", sig)
	}
}

func TestVerifyEventRequiresSecretAndType(t *testing.T) {
	_, err := VerifyEvent([]byte(shippedBody), "abc", "")
	require.Equal(t, pkgerrors.CodeInternal, pkgerrors.CodeOf(err))

	body := []byte(`{"data":{}}`)
	_, err = VerifyEvent(body, Sign(body, "s"), "s")
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}
