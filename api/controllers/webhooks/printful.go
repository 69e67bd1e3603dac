package webhooks

import (
	"net/http"

	"github.com/digitalrevolution/dr-backend/pkg/logger"
	"github.com/digitalrevolution/dr-backend/pkg/printful"
)

// PrintfulWebhook receives shipment and order status events from Printful.
func PrintfulWebhook(svc EventHandler, logg *logger.Logger) http.HandlerFunc {
	return delivery(svc, printful.SignatureHeader, "printful", logg)
}
