package printful

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	pkgerrors "github.com/digitalrevolution/dr-backend/pkg/errors"
)

const SignatureHeader = "X-Printful-Signature"

// Webhook event types handled by the shop.
const (
	EventPackageShipped = "package_shipped"
	EventOrderUpdated   = "order_updated"
	EventOrderCanceled  = "order_canceled"
	EventOrderFailed    = "order_failed"
)

// Event is the envelope Printful posts to the webhook URL.
type Event struct {
	Type    string    `json:"type"`
	Created int64     `json:"created"`
	Retries int       `json:"retries"`
	Store   int64     `json:"store"`
	Data    EventData `json:"data"`
}

type EventData struct {
	Order    EventOrder     `json:"order"`
	Shipment *EventShipment `json:"shipment,omitempty"`
	Reason   string         `json:"reason,omitempty"`
}

type EventOrder struct {
	ID         int64  `json:"id"`
	ExternalID string `json:"external_id"`
	Status     string `json:"status"`
}

type EventShipment struct {
	ID                int64  `json:"id"`
	Carrier           string `json:"carrier"`
	Service           string `json:"service"`
	TrackingNumber    string `json:"tracking_number"`
	TrackingURL       string `json:"tracking_url"`
	ShipDate          string `json:"ship_date"`
	EstimatedDelivery string `json:"estimated_delivery"`
	ShippedAt         int64  `json:"shipped_at"`
}

// Sign computes the hex HMAC-SHA256 of body under secret.
func Sign(body []byte, secret string) string {
	return hex.EncodeToString(digest(body, secret))
}

func digest(body []byte, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}

// VerifyEvent authenticates the raw body and decodes the envelope.
func VerifyEvent(body []byte, signature, secret string) (Event, error) {
	if strings.TrimSpace(secret) == "" {
		return Event{}, pkgerrors.New(pkgerrors.CodeInternal, "printful webhook secret not configured")
	}
	given, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil || len(given) == 0 {
		return Event{}, pkgerrors.InvalidSignature(err)
	}
	if !hmac.Equal(given, digest(body, secret)) {
		return Event{}, pkgerrors.InvalidSignature(nil)
	}

	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		return Event{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode printful event")
	}
	if event.Type == "" {
		return Event{}, pkgerrors.New(pkgerrors.CodeValidation, "printful event missing type")
	}
	return event, nil
}
