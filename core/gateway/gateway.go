// Package gateway holds the payment gateway contract: order creation, webhook signature checks
// and the mapping of webhook deliveries onto payment captures.
package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/trezcool/classfund/core"
)

const (
	// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body.
	SignatureHeader = "X-Razorpay-Signature"

	EventPaymentCaptured = "payment.captured"

	NoteEventID   = "eventId"
	NoteStudentID = "studentId"

	maxReceiptLen = 40
)

var (
	ErrSignatureMismatch = core.NewError(core.KindSignatureMismatch, "invalid signature")
	ErrSignatureMissing  = core.NewError(core.KindSignatureMismatch, "signature missing")
	ErrNotConfigured     = core.NewError(core.KindUnknown, "payment gateway not configured on server")
)

type (
	OrderRequest struct {
		Amount    decimal.Decimal
		Currency  string
		EventID   string
		StudentID string
	}

	// Order is what the checkout widget needs to open the gateway payment form.
	Order struct {
		ID       string `json:"id"`
		Amount   int64  `json:"amount"` // minor units
		Currency string `json:"currency"`
		Receipt  string `json:"receipt"`
		Status   string `json:"status,omitempty"`
	}

	// Client creates orders at the payment gateway.
	Client interface {
		CreateOrder(ctx context.Context, req OrderRequest) (Order, error)
	}
)

// Receipt returns a receipt id of at most 40 characters for the (eventID, studentID) pair.
// Long ids are replaced by a short hash, so retried orders for the same pair stay traceable.
func Receipt(eventID, studentID string) string {
	readable := fmt.Sprintf("receipt_event_%s_student_%s", eventID, studentID)
	if len(readable) <= maxReceiptLen {
		return readable
	}
	sum := sha256.Sum256([]byte(eventID + ":" + studentID))
	return "rcpt_" + hex.EncodeToString(sum[:])[:32]
}

// MinorUnits converts amount to the smallest currency unit (paise for INR).
func MinorUnits(amount decimal.Decimal) (int64, error) {
	if !amount.IsPositive() || !core.IsMoney(amount) {
		return 0, core.NewValidationError(nil, core.FieldError{Field: "amount", Error: "must be a positive amount with at most 2 decimal places"})
	}
	return amount.Shift(2).IntPart(), nil
}

// Sign returns the hex HMAC-SHA256 of body keyed with secret.
func Sign(body []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	_, _ = h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// VerifySignature checks signature against the raw webhook body. It must run before the body is parsed.
func VerifySignature(body []byte, signature, secret string) error {
	if secret == "" {
		return ErrNotConfigured
	}
	if signature == "" {
		return ErrSignatureMissing
	}
	if subtle.ConstantTimeCompare([]byte(Sign(body, secret)), []byte(signature)) == 0 {
		return ErrSignatureMismatch
	}
	return nil
}

type (
	// Notes is the order metadata echoed back by webhooks.
	// The gateway sends an empty JSON array instead of an object when there are none.
	Notes map[string]string

	PaymentEntity struct {
		ID       string `json:"id"`
		OrderID  string `json:"order_id"`
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Status   string `json:"status"`
		Method   string `json:"method"`
		Notes    Notes  `json:"notes"`
	}

	WebhookEvent struct {
		Event   string `json:"event"`
		Payload struct {
			Payment struct {
				Entity PaymentEntity `json:"entity"`
			} `json:"payment"`
		} `json:"payload"`
	}
)

func (n *Notes) UnmarshalJSON(data []byte) error {
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		var arr []interface{}
		if aErr := json.Unmarshal(data, &arr); aErr != nil {
			return err
		}
		*n = Notes{}
		return nil
	}
	notes := make(Notes, len(m))
	for k, v := range m {
		if s, ok := v.(string); ok {
			notes[k] = s
		} else if v != nil {
			notes[k] = fmt.Sprint(v)
		}
	}
	*n = notes
	return nil
}

// ParseWebhook decodes a webhook body. Shape errors are reported as validation errors.
func ParseWebhook(body []byte) (WebhookEvent, error) {
	var evt WebhookEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return WebhookEvent{}, core.NewValidationError(fmt.Errorf("invalid webhook payload: %v", err))
	}
	if evt.Event == "" {
		return WebhookEvent{}, core.NewValidationError(fmt.Errorf("invalid webhook payload: missing event"))
	}
	return evt, nil
}

// Correlation returns the (eventID, studentID) pair set on the order, if both are present.
func (e WebhookEvent) Correlation() (eventID, studentID string, ok bool) {
	notes := e.Payload.Payment.Entity.Notes
	eventID, studentID = notes[NoteEventID], notes[NoteStudentID]
	return eventID, studentID, eventID != "" && studentID != ""
}
