package webhooks

import (
	"context"

	pkgerrors "github.com/digitalrevolution/dr-backend/pkg/errors"
	"github.com/digitalrevolution/dr-backend/pkg/logger"
	"github.com/digitalrevolution/dr-backend/pkg/metrics"
)

// Outcome is how a verified event was settled. It is echoed to the provider in
// the acknowledgement body and used as the metrics outcome label.
type Outcome string

const (
	OutcomeProcessed Outcome = metrics.OutcomeProcessed
	OutcomeIgnored   Outcome = metrics.OutcomeIgnored
	OutcomeDuplicate Outcome = metrics.OutcomeDuplicate
	OutcomeFailed    Outcome = metrics.OutcomeFailed
	OutcomeError     Outcome = metrics.OutcomeError
	OutcomeRejected  Outcome = metrics.OutcomeRejected
)

func (o Outcome) String() string {
	return string(o)
}

// Ack is the body returned to the provider for every acknowledged delivery.
type Ack struct {
	Received bool    `json:"received"`
	Status   Outcome `json:"status"`
}

func NewAck(outcome Outcome) Ack {
	return Ack{Received: true, Status: outcome}
}

// Settle classifies a handler error. Errors a redelivery cannot fix (bad
// metadata, unknown entities, duplicate writes) are logged and acknowledged
// as failed; everything else is returned so the provider retries.
func Settle(ctx context.Context, logg *logger.Logger, err error) (Outcome, error) {
	if err == nil {
		return OutcomeProcessed, nil
	}
	code := pkgerrors.CodeOf(err)
	if !pkgerrors.MetadataFor(code).Acknowledgeable() {
		return OutcomeError, err
	}
	if logg != nil {
		dump := pkgerrors.Dump(err)
		ctx = logg.WithFields(ctx, map[string]any{
			"error_code":  string(code),
			"error_chain": dump.Chain,
		})
		logg.Error(ctx, "webhook event acknowledged as failed", err)
	}
	return OutcomeFailed, nil
}
