package report

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trezcool/classfund/core"
	"github.com/trezcool/classfund/core/balance"
	"github.com/trezcool/classfund/core/ledger"
	"github.com/trezcool/classfund/core/reconcile"
)

type (
	// Statements builds student statements; implemented by reconcile.Engine.
	Statements interface {
		StudentStatement(ctx context.Context, studentID string) (reconcile.Statement, error)
	}

	TransactionRow struct {
		PaymentID     string               `json:"payment_id"`
		StudentName   string               `json:"student_name"`
		RollNo        string               `json:"roll_no"`
		Email         string               `json:"email"`
		EventName     string               `json:"event_name"`
		Amount        decimal.Decimal      `json:"amount"`
		PaymentDate   time.Time            `json:"payment_date"`
		Method        ledger.PaymentMethod `json:"payment_method"`
		Status        ledger.PaymentStatus `json:"status"`
		TransactionID string               `json:"transaction_id"`
		IsManualEntry bool                 `json:"is_manual_entry"`
		RecordedBy    string               `json:"recorded_by"`
		ReceiptNumber string               `json:"receipt_number"`
		Notes         string               `json:"notes"`
	}

	TransactionReport struct {
		Summary Summary          `json:"summary"`
		Rows    []TransactionRow `json:"transactions"`
	}

	ParticipantRow struct {
		Name   string `json:"name"`
		RollNo string `json:"roll_no"`
		balance.Balance
	}

	// EventOverview holds the collection progress of an event.
	// Completion is the share of participants that fully paid, in percent.
	EventOverview struct {
		Event        ledger.Event    `json:"event"`
		Participants int             `json:"participants"`
		Expected     decimal.Decimal `json:"expected"`
		Collected    decimal.Decimal `json:"collected"`
		Pending      decimal.Decimal `json:"pending"`
		PaidCount    int             `json:"paid_count"`
		Completion   float64         `json:"completion"`
	}

	EventReport struct {
		EventOverview
		Summary Summary          `json:"summary"`
		Rows    []ParticipantRow `json:"participants"`
	}

	StudentReport struct {
		reconcile.Statement
		Summary Summary `json:"summary"`
	}

	Service struct {
		store      ledger.Store
		statements Statements
	}
)

func NewService(store ledger.Store, statements Statements) *Service {
	return &Service{store: store, statements: statements}
}

// Transactions returns the payments matching filter, newest first, with their summary.
func (svc *Service) Transactions(ctx context.Context, filter Filter) (TransactionReport, error) {
	payments, err := svc.store.QueryPayments(ctx, filter)
	if err != nil {
		return TransactionReport{}, core.StoreError(err, "querying payments")
	}
	students, events, err := svc.names(ctx, payments)
	if err != nil {
		return TransactionReport{}, err
	}

	rows := make([]TransactionRow, 0, len(payments))
	for _, p := range payments {
		std := students[p.StudentID]
		rows = append(rows, TransactionRow{
			PaymentID:     p.ID,
			StudentName:   std.Name,
			RollNo:        std.RollNo,
			Email:         std.Email,
			EventName:     events[p.EventID],
			Amount:        p.Amount,
			PaymentDate:   p.PaymentDate,
			Method:        p.Method,
			Status:        p.Status,
			TransactionID: p.TransactionID,
			IsManualEntry: p.IsManualEntry,
			RecordedBy:    p.RecordedBy,
			ReceiptNumber: p.ReceiptNumber,
			Notes:         p.Notes,
		})
	}
	return TransactionReport{Summary: Summarize(payments), Rows: rows}, nil
}

// ByEvent returns the per-event summaries of the payments matching filter, named after their event.
func (svc *Service) ByEvent(ctx context.Context, filter Filter) ([]Group, error) {
	payments, err := svc.store.QueryPayments(ctx, filter)
	if err != nil {
		return nil, core.StoreError(err, "querying payments")
	}
	_, events, err := svc.names(ctx, payments)
	if err != nil {
		return nil, err
	}
	groups := ByEvent(payments)
	for i := range groups {
		groups[i].Name = events[groups[i].Key]
	}
	return groups, nil
}

// ByStudent returns the per-student summaries of the payments matching filter, named after their student.
func (svc *Service) ByStudent(ctx context.Context, filter Filter) ([]Group, error) {
	payments, err := svc.store.QueryPayments(ctx, filter)
	if err != nil {
		return nil, core.StoreError(err, "querying payments")
	}
	students, _, err := svc.names(ctx, payments)
	if err != nil {
		return nil, err
	}
	groups := ByStudent(payments)
	for i := range groups {
		groups[i].Name = students[groups[i].Key].Name
	}
	return groups, nil
}

func (svc *Service) names(ctx context.Context, payments []ledger.Payment) (map[string]ledger.Student, map[string]string, error) {
	students := make(map[string]ledger.Student)
	events := make(map[string]string)
	if len(payments) == 0 {
		return students, events, nil
	}

	stdIDs := make([]string, 0, len(payments))
	evtIDs := make([]string, 0, len(payments))
	for _, p := range payments {
		stdIDs = append(stdIDs, p.StudentID)
		evtIDs = append(evtIDs, p.EventID)
	}
	stds, err := svc.store.QueryStudents(ctx, ledger.StudentFilter{IDs: stdIDs}, nil)
	if err != nil {
		return nil, nil, core.StoreError(err, "querying students")
	}
	for _, std := range stds {
		students[std.ID] = std
	}
	evts, err := svc.store.QueryEvents(ctx, ledger.EventFilter{IDs: evtIDs})
	if err != nil {
		return nil, nil, core.StoreError(err, "querying events")
	}
	for _, evt := range evts {
		events[evt.ID] = evt.Name
	}
	return students, events, nil
}

func overview(evt ledger.Event, balances []balance.Balance) EventOverview {
	ov := EventOverview{
		Event:        evt,
		Participants: len(balances),
		Expected:     evt.Cost.Mul(decimal.NewFromInt(int64(len(balances)))),
		Collected:    decimal.Zero,
		Pending:      decimal.Zero,
	}
	for _, b := range balances {
		ov.Collected = ov.Collected.Add(b.TotalPaid)
		ov.Pending = ov.Pending.Add(b.Pending)
		if b.Status == balance.FullyPaid {
			ov.PaidCount++
		}
	}
	if ov.Participants > 0 {
		ov.Completion = float64(ov.PaidCount) / float64(ov.Participants) * 100
	}
	return ov
}

// EventReport returns the balance of every participant of the event with its totals.
// Only the date range of filter applies: balances then count the payments made within it.
func (svc *Service) EventReport(ctx context.Context, eventID string, filter Filter) (EventReport, error) {
	evt, err := svc.store.GetEvent(ctx, eventID)
	if err != nil {
		return EventReport{}, core.StoreError(err, "getting event")
	}
	payments, err := svc.store.QueryPayments(ctx, ledger.PaymentFilter{
		EventID:  evt.ID,
		DateFrom: filter.DateFrom,
		DateTo:   filter.DateTo,
	})
	if err != nil {
		return EventReport{}, core.StoreError(err, "querying payments")
	}

	balances := balance.ForParticipants(evt, payments)
	rep := EventReport{
		EventOverview: overview(evt, balances),
		Summary:       Summarize(payments),
		Rows:          make([]ParticipantRow, 0, len(balances)),
	}
	if len(balances) == 0 {
		return rep, nil
	}

	students, err := svc.store.QueryStudents(ctx, ledger.StudentFilter{IDs: evt.ParticipantIDs}, nil)
	if err != nil {
		return EventReport{}, core.StoreError(err, "querying students")
	}
	byID := make(map[string]ledger.Student, len(students))
	for _, std := range students {
		byID[std.ID] = std
	}
	for _, b := range balances {
		std := byID[b.StudentID]
		rep.Rows = append(rep.Rows, ParticipantRow{Name: std.Name, RollNo: std.RollNo, Balance: b})
	}
	sort.SliceStable(rep.Rows, func(i, j int) bool { return rep.Rows[i].RollNo < rep.Rows[j].RollNo })
	return rep, nil
}

// StudentReport returns the student statement with the summary of its payments.
func (svc *Service) StudentReport(ctx context.Context, studentID string) (StudentReport, error) {
	stmt, err := svc.statements.StudentStatement(ctx, studentID)
	if err != nil {
		return StudentReport{}, err
	}
	payments := make([]ledger.Payment, 0, len(stmt.Payments))
	for _, p := range stmt.Payments {
		payments = append(payments, p.Payment)
	}
	return StudentReport{Statement: stmt, Summary: Summarize(payments)}, nil
}

var _ reconcile.StatementAttacher = (*Service)(nil) // interface compliance check

// StatementAttachment renders the student report as a CSV file attachment.
func (svc *Service) StatementAttachment(ctx context.Context, studentID string) (core.Attachment, error) {
	rep, err := svc.StudentReport(ctx, studentID)
	if err != nil {
		return core.Attachment{}, err
	}
	var buf bytes.Buffer
	if err = WriteCSV(&buf, rep.Table()); err != nil {
		return core.Attachment{}, err
	}
	return core.Attachment{
		Content:     &buf,
		ContentType: "text/csv; charset=utf-8",
		Filename:    fmt.Sprintf("statement_%s.csv", rep.Student.RollNo),
	}, nil
}

// EventOverviews returns the progress of every event, newest first.
func (svc *Service) EventOverviews(ctx context.Context) ([]EventOverview, error) {
	events, err := svc.store.QueryEvents(ctx, ledger.EventFilter{})
	if err != nil {
		return nil, core.StoreError(err, "querying events")
	}
	payments, err := svc.store.QueryPayments(ctx, ledger.PaymentFilter{})
	if err != nil {
		return nil, core.StoreError(err, "querying payments")
	}
	overviews := make([]EventOverview, 0, len(events))
	for _, evt := range events {
		overviews = append(overviews, overview(evt, balance.ForParticipants(evt, payments)))
	}
	return overviews, nil
}
