// Package reconcile drives the payment state machine and builds the reconciled views
// (event transaction lists, student statements, public status lookups).
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/classfund/core"
	"github.com/trezcool/classfund/core/balance"
	"github.com/trezcool/classfund/core/gateway"
	"github.com/trezcool/classfund/core/ledger"
)

var NowFunc = time.Now // mockable

var (
	errSyntheticRow     = core.NewValidationError(nil, core.FieldError{Field: "id", Error: "outstanding balance rows cannot be modified"})
	errEventNotOpen     = core.NewValidationError(nil, core.FieldError{Field: "event_id", Error: "this event is not open for payments"})
	errMethodDisabled   = core.NewValidationError(nil, core.FieldError{Field: "payment_method", Error: "this payment method is not enabled for the event"})
	errBadInitialStatus = core.NewValidationError(nil, core.FieldError{Field: "status", Error: "new payments must be Pending or Verification Pending"})
	errBadTargetStatus  = core.NewValidationError(nil, core.FieldError{Field: "status", Error: "payments can only be marked Paid or Failed"})
	errNotPrintEvent    = core.NewValidationError(nil, core.FieldError{Field: "event_id", Error: "prints can only be distributed for Print events"})
)

type (
	NewPayment struct {
		StudentID     string               `json:"student_id" validate:"required"`
		EventID       string               `json:"event_id" validate:"required"`
		Amount        decimal.Decimal      `json:"amount" validate:"amount"`
		Method        ledger.PaymentMethod `json:"payment_method" validate:"paymethod"`
		Status        ledger.PaymentStatus `json:"status" validate:"omitempty,paystatus"`
		TransactionID string               `json:"transaction_id" validate:"max=100"`
		ScreenshotURL string               `json:"screenshot_url" validate:"omitempty,url"`

		gatewayOrderID string
	}

	CashPayment struct {
		StudentID     string          `json:"student_id" validate:"required"`
		EventID       string          `json:"event_id" validate:"required"`
		Amount        decimal.Decimal `json:"amount" validate:"amount"`
		Date          time.Time       `json:"date"`
		ReceiptNumber string          `json:"receipt_number" validate:"max=50"`
		Notes         string          `json:"notes" validate:"max=500"`
	}

	CheckoutRequest struct {
		StudentID string          `json:"student_id" validate:"required"`
		EventID   string          `json:"event_id" validate:"required"`
		Amount    decimal.Decimal `json:"amount" validate:"amount"`
	}

	Checkout struct {
		Order   gateway.Order  `json:"order"`
		Payment ledger.Payment `json:"payment"`
		KeyID   string         `json:"key_id"`
	}

	// StatementAttacher renders a student statement as an email attachment.
	StatementAttacher interface {
		StatementAttachment(ctx context.Context, studentID string) (core.Attachment, error)
	}

	Engine struct {
		store      ledger.Store
		gateway    gateway.Client
		mailer     core.EmailService
		statements StatementAttacher
		logger     core.Logger
		conf       *core.Config
	}
)

var _ gateway.Capturer = (*Engine)(nil) // interface compliance check

func NewEngine(store ledger.Store, gw gateway.Client, mailer core.EmailService, logger core.Logger, conf *core.Config) *Engine {
	return &Engine{store: store, gateway: gw, mailer: mailer, logger: logger, conf: conf}
}

// AttachStatements makes payment confirmation emails carry the student statement.
func (e *Engine) AttachStatements(a StatementAttacher) {
	e.statements = a
}

func checkAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() || !core.IsMoney(amount) {
		return core.NewValidationError(nil, core.FieldError{Field: "amount", Error: "must be a positive amount with at most 2 decimal places"})
	}
	return nil
}

func (np *NewPayment) check() error {
	np.StudentID = core.CleanString(np.StudentID)
	np.EventID = core.CleanString(np.EventID)
	np.TransactionID = core.CleanString(np.TransactionID)
	if err := checkAmount(np.Amount); err != nil {
		return err
	}
	if !np.Method.Valid() {
		return core.NewValidationError(nil, core.FieldError{Field: "payment_method", Error: "unknown payment method"})
	}
	if np.Status == "" {
		np.Status = ledger.StatusVerificationPending
		if np.Method == ledger.MethodRazorpay {
			np.Status = ledger.StatusPending
		}
	}
	if np.Status != ledger.StatusPending && np.Status != ledger.StatusVerificationPending {
		return errBadInitialStatus
	}
	return nil
}

func loadPair(ctx context.Context, store ledger.Store, studentID, eventID string) (ledger.Student, ledger.Event, error) {
	std, err := store.GetStudent(ctx, studentID)
	if err != nil {
		return ledger.Student{}, ledger.Event{}, err
	}
	evt, err := store.GetEvent(ctx, eventID)
	if err != nil {
		return ledger.Student{}, ledger.Event{}, err
	}
	return std, evt, nil
}

// CreatePayment records a student's payment claim. Gateway payments start Pending,
// QR and declared cash payments start Verification Pending.
// Amounts above the remaining balance are accepted but logged.
func (e *Engine) CreatePayment(ctx context.Context, np NewPayment) (ledger.Payment, error) {
	if err := np.check(); err != nil {
		return ledger.Payment{}, err
	}

	var (
		pmt ledger.Payment
		std ledger.Student
		evt ledger.Event
	)
	err := e.store.Tx(ctx, func(tx ledger.Store) error {
		var err error
		if std, evt, err = loadPair(ctx, tx, np.StudentID, np.EventID); err != nil {
			return err
		}
		if evt.Status != ledger.EventPublished {
			return errEventNotOpen
		}
		if !evt.Accepts(np.Method) {
			return errMethodDisabled
		}

		payments, err := tx.QueryPayments(ctx, ledger.PaymentFilter{EventID: evt.ID, StudentID: std.ID})
		if err != nil {
			return err
		}
		if bal := balance.Compute(evt.Cost, payments); np.Amount.GreaterThan(bal.Pending) {
			e.logger.Warn(fmt.Sprintf(
				"payment of %s for event %s exceeds the remaining balance %s of student %s",
				np.Amount, evt.ID, bal.Pending, std.ID,
			))
		}

		now := NowFunc().UTC()
		pmt, err = tx.CreatePayment(ctx, ledger.Payment{
			StudentID:      std.ID,
			EventID:        evt.ID,
			Amount:         np.Amount,
			Method:         np.Method,
			Status:         np.Status,
			TransactionID:  np.TransactionID,
			GatewayOrderID: np.gatewayOrderID,
			ScreenshotURL:  np.ScreenshotURL,
			PaymentDate:    now,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
		return err
	})
	if err != nil {
		return ledger.Payment{}, core.StoreError(err, "creating payment")
	}

	if pmt.Status == ledger.StatusVerificationPending {
		e.notifySubmitted(std, evt, pmt)
	}
	return pmt, nil
}

// StartGatewayCheckout creates a gateway order and the Pending payment tracking it.
func (e *Engine) StartGatewayCheckout(ctx context.Context, req CheckoutRequest) (Checkout, error) {
	if e.gateway == nil {
		return Checkout{}, gateway.ErrNotConfigured
	}
	if err := checkAmount(req.Amount); err != nil {
		return Checkout{}, err
	}
	_, evt, err := loadPair(ctx, e.store, req.StudentID, req.EventID)
	if err != nil {
		return Checkout{}, core.StoreError(err, "loading checkout")
	}
	if evt.Status != ledger.EventPublished {
		return Checkout{}, errEventNotOpen
	}
	if !evt.Accepts(ledger.MethodRazorpay) {
		return Checkout{}, errMethodDisabled
	}

	order, err := e.gateway.CreateOrder(ctx, gateway.OrderRequest{
		Amount:    req.Amount,
		Currency:  e.conf.Gateway.Currency,
		EventID:   req.EventID,
		StudentID: req.StudentID,
	})
	if err != nil {
		return Checkout{}, err
	}

	pmt, err := e.CreatePayment(ctx, NewPayment{
		StudentID:      req.StudentID,
		EventID:        req.EventID,
		Amount:         req.Amount,
		Method:         ledger.MethodRazorpay,
		Status:         ledger.StatusPending,
		gatewayOrderID: order.ID,
	})
	if err != nil {
		return Checkout{}, err
	}
	return Checkout{Order: order, Payment: pmt, KeyID: e.conf.Gateway.KeyID}, nil
}

// ApplyGatewayCapture marks the payment of orderID as Paid.
// Captures of an already Paid payment change nothing, so webhook redeliveries are harmless.
func (e *Engine) ApplyGatewayCapture(ctx context.Context, orderID, transactionID string) (ledger.Payment, error) {
	var (
		pmt      ledger.Payment
		captured bool
	)
	err := e.store.Tx(ctx, func(tx ledger.Store) error {
		p, err := tx.GetPaymentByOrderID(ctx, orderID)
		if err != nil {
			return err
		}
		switch p.Status {
		case ledger.StatusPaid:
			pmt = p
			return nil
		case ledger.StatusFailed:
			lost := errors.Errorf("gateway captured order %q (transaction %q) but payment %s was already marked Failed", orderID, transactionID, p.ID)
			e.logger.Error(lost.Error(), lost)
			pmt = p
			return nil
		}

		p.Status = ledger.StatusPaid
		p.TransactionID = transactionID
		p.UpdatedAt = NowFunc().UTC()
		if pmt, err = tx.UpdatePayment(ctx, p); err != nil {
			return err
		}
		captured = true
		return nil
	})
	if err != nil {
		return ledger.Payment{}, core.StoreError(err, "applying gateway capture")
	}

	if captured {
		e.logger.Info(fmt.Sprintf("payment %s captured for gateway order %q", pmt.ID, orderID))
		e.notifyApproved(ctx, pmt)
	}
	return pmt, nil
}

// SetStatus settles a Pending or Verification Pending payment as Paid or Failed.
func (e *Engine) SetStatus(ctx context.Context, paymentID string, status ledger.PaymentStatus, actor core.Actor) (ledger.Payment, error) {
	if IsSynthetic(paymentID) {
		return ledger.Payment{}, errSyntheticRow
	}
	if status != ledger.StatusPaid && status != ledger.StatusFailed {
		return ledger.Payment{}, errBadTargetStatus
	}

	var pmt ledger.Payment
	err := e.store.Tx(ctx, func(tx ledger.Store) error {
		p, err := tx.GetPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		if p.Status.Terminal() {
			return &core.Error{
				Kind: core.KindInvalidTransition,
				Msg:  fmt.Sprintf("payment is already %s", p.Status),
			}
		}
		p.Status = status
		p.UpdatedAt = NowFunc().UTC()
		pmt, err = tx.UpdatePayment(ctx, p)
		return err
	})
	if err != nil {
		return ledger.Payment{}, core.StoreError(err, "setting payment status")
	}

	e.logger.Info(fmt.Sprintf("payment %s marked %s", pmt.ID, pmt.Status), actor)
	if pmt.Status == ledger.StatusPaid {
		e.notifyApproved(ctx, pmt)
	}
	return pmt, nil
}

// RecordCashPayment records money an admin already received. It is the only path that skips verification.
func (e *Engine) RecordCashPayment(ctx context.Context, cp CashPayment, actor core.Actor) (ledger.Payment, error) {
	if err := checkAmount(cp.Amount); err != nil {
		return ledger.Payment{}, err
	}
	now := NowFunc().UTC()
	date := cp.Date.UTC()
	if cp.Date.IsZero() {
		date = now
	}
	recordedBy := actor.Name
	if recordedBy == "" {
		recordedBy = actor.ID
	}

	var pmt ledger.Payment
	err := e.store.Tx(ctx, func(tx ledger.Store) error {
		std, evt, err := loadPair(ctx, tx, core.CleanString(cp.StudentID), core.CleanString(cp.EventID))
		if err != nil {
			return err
		}
		pmt, err = tx.CreatePayment(ctx, ledger.Payment{
			StudentID:     std.ID,
			EventID:       evt.ID,
			Amount:        cp.Amount,
			Method:        ledger.MethodCash,
			Status:        ledger.StatusPaid,
			PaymentDate:   date,
			IsManualEntry: true,
			RecordedBy:    recordedBy,
			Notes:         core.CleanString(cp.Notes),
			ReceiptNumber: core.CleanString(cp.ReceiptNumber),
			CreatedAt:     now,
			UpdatedAt:     now,
		})
		return err
	})
	if err != nil {
		return ledger.Payment{}, core.StoreError(err, "recording cash payment")
	}

	e.logger.Info(fmt.Sprintf("cash payment %s of %s recorded", pmt.ID, pmt.Amount), actor)
	e.notifyApproved(ctx, pmt)
	return pmt, nil
}

// DistributePrint records that the student received the event's print. A pair is distributed at most once.
func (e *Engine) DistributePrint(ctx context.Context, studentID, eventID string, actor core.Actor) (ledger.PrintDistribution, error) {
	var (
		pd  ledger.PrintDistribution
		std ledger.Student
		evt ledger.Event
	)
	err := e.store.Tx(ctx, func(tx ledger.Store) error {
		var err error
		if std, evt, err = loadPair(ctx, tx, studentID, eventID); err != nil {
			return err
		}
		if evt.Category != ledger.CategoryPrint {
			return errNotPrintEvent
		}
		if _, err = tx.GetPrintDistribution(ctx, std.ID, evt.ID); err == nil {
			return ledger.ErrAlreadyDistributed
		} else if core.KindOf(err) != core.KindNotFound {
			return err
		}
		pd, err = tx.CreatePrintDistribution(ctx, ledger.PrintDistribution{
			StudentID:     std.ID,
			EventID:       evt.ID,
			DistributedAt: NowFunc().UTC(),
		})
		return err
	})
	if err != nil {
		return ledger.PrintDistribution{}, core.StoreError(err, "distributing print")
	}

	e.logger.Info(fmt.Sprintf("print of event %s distributed to student %s", evt.ID, std.ID), actor)
	e.notifyPrint(std, evt, pd)
	return pd, nil
}
