package gateway

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/classfund/core"
	"github.com/trezcool/classfund/core/ledger"
)

func TestReceipt(t *testing.T) {
	tests := []struct {
		name      string
		eventID   string
		studentID string
		want      string
	}{
		{name: "short ids stay readable", eventID: "e1", studentID: "s1", want: "receipt_event_e1_student_s1"},
		{name: "exactly 40 chars", eventID: "12345678", studentID: "123456789", want: "receipt_event_12345678_student_123456789"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Receipt(tt.eventID, tt.studentID))
		})
	}

	evt, std := "7c9e6679-7425-40de-944b-e07fc1f90ae7", "16fd2706-8baf-433b-82eb-8c7fada847da"
	got := Receipt(evt, std)
	assert.LessOrEqual(t, len(got), 40)
	assert.True(t, strings.HasPrefix(got, "rcpt_"))
	assert.Len(t, got, 37)
	assert.Equal(t, got, Receipt(evt, std), "receipts must be deterministic")
	assert.NotEqual(t, got, Receipt(std, evt))
}

func TestMinorUnits(t *testing.T) {
	tests := []struct {
		amount  string
		want    int64
		wantErr bool
	}{
		{amount: "500", want: 50000},
		{amount: "0.01", want: 1},
		{amount: "1234.56", want: 123456},
		{amount: "0", wantErr: true},
		{amount: "-1", wantErr: true},
		{amount: "1.234", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			got, err := MinorUnits(decimal.RequireFromString(tt.amount))
			if tt.wantErr {
				assert.Equal(t, core.KindValidation, core.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"event":"payment.captured"}`)
	secret := "whsec"
	valid := Sign(body, secret)

	tests := []struct {
		name      string
		body      []byte
		signature string
		secret    string
		wantErr   error
	}{
		{name: "valid", body: body, signature: valid, secret: secret},
		{name: "missing signature", body: body, secret: secret, wantErr: ErrSignatureMissing},
		{name: "wrong secret", body: body, signature: Sign(body, "other"), secret: secret, wantErr: ErrSignatureMismatch},
		{name: "tampered body", body: []byte(`{"event":"payment.failed"}`), signature: valid, secret: secret, wantErr: ErrSignatureMismatch},
		{name: "not configured", body: body, signature: valid, wantErr: ErrNotConfigured},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantErr, VerifySignature(tt.body, tt.signature, tt.secret))
		})
	}
}

func TestParseWebhook(t *testing.T) {
	t.Run("notes object", func(t *testing.T) {
		evt, err := ParseWebhook([]byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_1","order_id":"order_1","notes":{"eventId":"e1","studentId":"s1","extra":12}}}}}`))
		require.NoError(t, err)
		eventID, studentID, ok := evt.Correlation()
		assert.True(t, ok)
		assert.Equal(t, "e1", eventID)
		assert.Equal(t, "s1", studentID)
		assert.Equal(t, "12", evt.Payload.Payment.Entity.Notes["extra"])
	})

	t.Run("notes empty array", func(t *testing.T) {
		evt, err := ParseWebhook([]byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_1","order_id":"order_1","notes":[]}}}}`))
		require.NoError(t, err)
		_, _, ok := evt.Correlation()
		assert.False(t, ok)
	})

	t.Run("invalid shapes", func(t *testing.T) {
		for _, body := range []string{`not json`, `{}`, `{"event":"payment.captured","payload":{"payment":{"entity":{"notes":"x"}}}}`} {
			_, err := ParseWebhook([]byte(body))
			assert.Equal(t, core.KindValidation, core.KindOf(err), body)
		}
	})
}

type fakeCapturer struct {
	calls    []string
	payments map[string]ledger.Payment
}

func (f *fakeCapturer) ApplyGatewayCapture(_ context.Context, orderID, txnID string) (ledger.Payment, error) {
	f.calls = append(f.calls, orderID+"/"+txnID)
	pmt, ok := f.payments[orderID]
	if !ok {
		return ledger.Payment{}, ledger.ErrPaymentNotFound
	}
	pmt.Status = ledger.StatusPaid
	return pmt, nil
}

type nopLogger struct{ warns, errors int }

func (l *nopLogger) Debug(string, ...interface{}) {}
func (l *nopLogger) Info(string, ...interface{})  {}
func (l *nopLogger) Warn(string, ...interface{})  { l.warns++ }
func (l *nopLogger) Error(string, ...interface{}) { l.errors++ }
func (l *nopLogger) Fatal(string, ...interface{}) {}

func TestProcessorHandle(t *testing.T) {
	const (
		secret = "whsec"
		notes  = `{"eventId":"e1","studentId":"s1"}`
	)
	captured := func(orderID, notes string) string {
		return fmt.Sprintf(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_1","order_id":%q,"notes":%s}}}}`, orderID, notes)
	}

	tests := []struct {
		name       string
		body       string
		signature  string // defaults to a valid one
		wantResult Result
		wantKind   core.ErrorKind
		wantCalls  int
		wantWarns  int
		wantErrors int
	}{
		{
			name:       "captured",
			body:       captured("order_1", notes),
			wantResult: Result{Status: OutcomeOK},
			wantCalls:  1,
		},
		{
			name:       "other events are acknowledged",
			body:       `{"event":"payment.failed","payload":{"payment":{"entity":{"order_id":"order_1"}}}}`,
			wantResult: Result{Status: OutcomeOK},
		},
		{
			name:       "missing notes",
			body:       captured("order_1", "[]"),
			wantResult: Result{Status: OutcomeIgnored, Reason: "Missing required notes"},
			wantWarns:  1,
		},
		{
			name:       "unknown order",
			body:       captured("order_404", notes),
			wantKind:   core.KindNotFound,
			wantCalls:  1,
			wantErrors: 1,
		},
		{
			name:       "mismatched notes",
			body:       captured("order_1", `{"eventId":"e2","studentId":"s1"}`),
			wantResult: Result{Status: OutcomeOK},
			wantCalls:  1,
			wantWarns:  1,
		},
		{
			name:      "bad signature",
			body:      captured("order_1", notes),
			signature: "deadbeef",
			wantKind:  core.KindSignatureMismatch,
			wantWarns: 1,
		},
		{
			name:     "bad body",
			body:     `[`,
			wantKind: core.KindValidation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := tt.body
			sig := tt.signature
			if sig == "" {
				sig = Sign([]byte(body), secret)
			}
			capturer := &fakeCapturer{payments: map[string]ledger.Payment{
				"order_1": {ID: "p1", EventID: "e1", StudentID: "s1", GatewayOrderID: "order_1"},
			}}
			logger := &nopLogger{}

			res, err := NewProcessor(capturer, secret, logger).Handle(context.Background(), []byte(body), sig)
			if tt.wantKind != core.KindUnknown {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, core.KindOf(err))
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantResult, res)
			}
			assert.Len(t, capturer.calls, tt.wantCalls)
			assert.Equal(t, tt.wantWarns, logger.warns, "warns")
			assert.Equal(t, tt.wantErrors, logger.errors, "errors")
		})
	}
}
