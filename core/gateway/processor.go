package gateway

import (
	"context"
	"fmt"

	"github.com/trezcool/classfund/core"
	"github.com/trezcool/classfund/core/ledger"
)

type Outcome string

const (
	OutcomeOK      Outcome = "ok"
	OutcomeIgnored Outcome = "ignored"
)

type (
	// Capturer marks the payment behind a gateway order as Paid. It must be idempotent.
	Capturer interface {
		ApplyGatewayCapture(ctx context.Context, orderID, transactionID string) (ledger.Payment, error)
	}

	Result struct {
		Status Outcome `json:"status"`
		Reason string  `json:"reason,omitempty"`
	}

	// Processor turns verified webhook deliveries into payment captures.
	Processor struct {
		capturer Capturer
		secret   string
		logger   core.Logger
	}
)

func NewProcessor(capturer Capturer, webhookSecret string, logger core.Logger) *Processor {
	return &Processor{capturer: capturer, secret: webhookSecret, logger: logger}
}

// Handle verifies and applies one webhook delivery.
// Redeliveries are safe: an order already captured is acknowledged without changes.
func (p *Processor) Handle(ctx context.Context, body []byte, signature string) (Result, error) {
	if err := VerifySignature(body, signature, p.secret); err != nil {
		if core.KindOf(err) == core.KindSignatureMismatch {
			p.logger.Warn(fmt.Sprintf("gateway webhook rejected: %v", err), err)
		}
		return Result{}, err
	}

	evt, err := ParseWebhook(body)
	if err != nil {
		return Result{}, err
	}
	if evt.Event != EventPaymentCaptured {
		return Result{Status: OutcomeOK}, nil
	}

	entity := evt.Payload.Payment.Entity
	eventID, studentID, ok := evt.Correlation()
	if !ok || entity.OrderID == "" {
		p.logger.Warn(fmt.Sprintf("gateway webhook for order %q without required notes", entity.OrderID))
		return Result{Status: OutcomeIgnored, Reason: "Missing required notes"}, nil
	}

	pmt, err := p.capturer.ApplyGatewayCapture(ctx, entity.OrderID, entity.ID)
	if err != nil {
		if core.KindOf(err) == core.KindNotFound {
			p.logger.Error(fmt.Sprintf("no payment found for gateway order %q", entity.OrderID), err)
		}
		return Result{}, err
	}
	if pmt.EventID != eventID || pmt.StudentID != studentID {
		p.logger.Warn(fmt.Sprintf(
			"gateway order %q notes (event %s, student %s) do not match payment %s",
			entity.OrderID, eventID, studentID, pmt.ID,
		))
	}
	return Result{Status: OutcomeOK}, nil
}
