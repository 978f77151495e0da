package sqlxdb

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/classfund/core/ledger"
)

const paymentColumns = "id, student_id, event_id, amount, payment_method, status, transaction_id, gateway_order_id, " +
	"screenshot_url, payment_date, is_manual_entry, recorded_by, notes, receipt_number, created_at, updated_at"

type paymentRow struct {
	ID             string          `db:"id"`
	StudentID      string          `db:"student_id"`
	EventID        string          `db:"event_id"`
	Amount         decimal.Decimal `db:"amount"`
	Method         string          `db:"payment_method"`
	Status         string          `db:"status"`
	TransactionID  null.String     `db:"transaction_id"`
	GatewayOrderID null.String     `db:"gateway_order_id"`
	ScreenshotURL  null.String     `db:"screenshot_url"`
	PaymentDate    time.Time       `db:"payment_date"`
	IsManualEntry  bool            `db:"is_manual_entry"`
	RecordedBy     null.String     `db:"recorded_by"`
	Notes          null.String     `db:"notes"`
	ReceiptNumber  null.String     `db:"receipt_number"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

type printRow struct {
	ID            string    `db:"id"`
	StudentID     string    `db:"student_id"`
	EventID       string    `db:"event_id"`
	DistributedAt time.Time `db:"distributed_at"`
}

// optional stores empty strings as NULL.
func optional(s string) null.String {
	return null.NewString(s, s != "")
}

func (r paymentRow) toPayment() ledger.Payment {
	return ledger.Payment{
		ID:             r.ID,
		StudentID:      r.StudentID,
		EventID:        r.EventID,
		Amount:         r.Amount,
		Method:         ledger.PaymentMethod(r.Method),
		Status:         ledger.PaymentStatus(r.Status),
		TransactionID:  r.TransactionID.String,
		GatewayOrderID: r.GatewayOrderID.String,
		ScreenshotURL:  r.ScreenshotURL.String,
		PaymentDate:    r.PaymentDate,
		IsManualEntry:  r.IsManualEntry,
		RecordedBy:     r.RecordedBy.String,
		Notes:          r.Notes.String,
		ReceiptNumber:  r.ReceiptNumber.String,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func (r printRow) toPrint() ledger.PrintDistribution {
	return ledger.PrintDistribution{ID: r.ID, StudentID: r.StudentID, EventID: r.EventID, DistributedAt: r.DistributedAt}
}

func (s *store) CreatePayment(ctx context.Context, pmt ledger.Payment) (ledger.Payment, error) {
	pmt.ID = newID()
	_, err := s.ext.ExecContext(ctx,
		`INSERT INTO payment (`+paymentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		pmt.ID, pmt.StudentID, pmt.EventID, pmt.Amount, string(pmt.Method), string(pmt.Status),
		optional(pmt.TransactionID), optional(pmt.GatewayOrderID), optional(pmt.ScreenshotURL), pmt.PaymentDate,
		pmt.IsManualEntry, optional(pmt.RecordedBy), optional(pmt.Notes), optional(pmt.ReceiptNumber),
		pmt.CreatedAt, pmt.UpdatedAt,
	)
	if err != nil {
		return ledger.Payment{}, translate(err, nil, "inserting payment")
	}
	return pmt, nil
}

func (s *store) GetPayment(ctx context.Context, id string) (ledger.Payment, error) {
	var row paymentRow
	if err := sqlx.GetContext(ctx, s.ext, &row, `SELECT `+paymentColumns+` FROM payment WHERE id = $1`, id); err != nil {
		return ledger.Payment{}, translate(err, ledger.ErrPaymentNotFound, "getting payment")
	}
	return row.toPayment(), nil
}

func (s *store) GetPaymentByOrderID(ctx context.Context, orderID string) (ledger.Payment, error) {
	if orderID == "" {
		return ledger.Payment{}, ledger.ErrPaymentNotFound
	}
	var row paymentRow
	err := sqlx.GetContext(ctx, s.ext, &row,
		`SELECT `+paymentColumns+` FROM payment WHERE gateway_order_id = $1 FOR UPDATE`, orderID)
	if err != nil {
		return ledger.Payment{}, translate(err, ledger.ErrPaymentNotFound, "getting payment by order")
	}
	return row.toPayment(), nil
}

// UpdatePayment only writes the mutable columns: status, transaction id, notes and updated_at.
func (s *store) UpdatePayment(ctx context.Context, pmt ledger.Payment) (ledger.Payment, error) {
	var row paymentRow
	err := sqlx.GetContext(ctx, s.ext, &row,
		`UPDATE payment SET status = $2, transaction_id = $3, notes = $4, updated_at = $5
		WHERE id = $1 RETURNING `+paymentColumns,
		pmt.ID, string(pmt.Status), optional(pmt.TransactionID), optional(pmt.Notes), pmt.UpdatedAt,
	)
	if err != nil {
		return ledger.Payment{}, translate(err, ledger.ErrPaymentNotFound, "updating payment")
	}
	return row.toPayment(), nil
}

func (s *store) QueryPayments(ctx context.Context, filter ledger.PaymentFilter) ([]ledger.Payment, error) {
	var (
		where []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if filter.EventID != "" {
		if len(validIDs([]string{filter.EventID})) == 0 {
			return []ledger.Payment{}, nil
		}
		where = append(where, "event_id = "+arg(filter.EventID))
	}
	if filter.StudentID != "" {
		if len(validIDs([]string{filter.StudentID})) == 0 {
			return []ledger.Payment{}, nil
		}
		where = append(where, "student_id = "+arg(filter.StudentID))
	}
	if len(filter.Statuses) > 0 {
		statuses := make(pq.StringArray, 0, len(filter.Statuses))
		for _, st := range filter.Statuses {
			statuses = append(statuses, string(st))
		}
		where = append(where, "status = ANY("+arg(statuses)+")")
	}
	if len(filter.Methods) > 0 {
		methods := make(pq.StringArray, 0, len(filter.Methods))
		for _, m := range filter.Methods {
			methods = append(methods, string(m))
		}
		where = append(where, "payment_method = ANY("+arg(methods)+")")
	}
	if !filter.DateFrom.IsZero() {
		where = append(where, "payment_date >= "+arg(filter.DateFrom))
	}
	if !filter.DateTo.IsZero() {
		where = append(where, "payment_date <= "+arg(filter.DateTo))
	}

	q := `SELECT ` + paymentColumns + ` FROM payment`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY payment_date DESC, id ASC"

	var rows []paymentRow
	if err := sqlx.SelectContext(ctx, s.ext, &rows, q, args...); err != nil {
		return nil, translate(err, nil, "querying payments")
	}
	payments := make([]ledger.Payment, 0, len(rows))
	for _, r := range rows {
		payments = append(payments, r.toPayment())
	}
	return payments, nil
}

func (s *store) DeletePaymentsByEvent(ctx context.Context, eventID string) error {
	_, err := s.ext.ExecContext(ctx, `DELETE FROM payment WHERE event_id = ANY($1::uuid[])`, pq.Array(validIDs([]string{eventID})))
	return translate(err, nil, "deleting event payments")
}

func (s *store) DeletePaymentsByStudents(ctx context.Context, studentIDs ...string) error {
	_, err := s.ext.ExecContext(ctx, `DELETE FROM payment WHERE student_id = ANY($1::uuid[])`, pq.Array(validIDs(studentIDs)))
	return translate(err, nil, "deleting student payments")
}

// Print distributions

func (s *store) CreatePrintDistribution(ctx context.Context, pd ledger.PrintDistribution) (ledger.PrintDistribution, error) {
	pd.ID = newID()
	_, err := s.ext.ExecContext(ctx,
		`INSERT INTO print_distribution (id, student_id, event_id, distributed_at) VALUES ($1, $2, $3, $4)`,
		pd.ID, pd.StudentID, pd.EventID, pd.DistributedAt,
	)
	if err != nil {
		return ledger.PrintDistribution{}, translate(err, nil, "inserting print distribution")
	}
	return pd, nil
}

func (s *store) GetPrintDistribution(ctx context.Context, studentID, eventID string) (ledger.PrintDistribution, error) {
	var row printRow
	err := sqlx.GetContext(ctx, s.ext, &row,
		`SELECT id, student_id, event_id, distributed_at FROM print_distribution WHERE student_id = $1 AND event_id = $2`,
		studentID, eventID,
	)
	if err != nil {
		return ledger.PrintDistribution{}, translate(err, ledger.ErrPrintNotFound, "getting print distribution")
	}
	return row.toPrint(), nil
}

func (s *store) QueryPrintDistributions(ctx context.Context, eventID string) ([]ledger.PrintDistribution, error) {
	q := `SELECT id, student_id, event_id, distributed_at FROM print_distribution`
	var args []interface{}
	if eventID != "" {
		if len(validIDs([]string{eventID})) == 0 {
			return []ledger.PrintDistribution{}, nil
		}
		q += " WHERE event_id = $1"
		args = append(args, eventID)
	}
	q += " ORDER BY distributed_at ASC"

	var rows []printRow
	if err := sqlx.SelectContext(ctx, s.ext, &rows, q, args...); err != nil {
		return nil, translate(err, nil, "querying print distributions")
	}
	prints := make([]ledger.PrintDistribution, 0, len(rows))
	for _, r := range rows {
		prints = append(prints, r.toPrint())
	}
	return prints, nil
}

func (s *store) DeletePrintDistributionsByEvent(ctx context.Context, eventID string) error {
	_, err := s.ext.ExecContext(ctx,
		`DELETE FROM print_distribution WHERE event_id = ANY($1::uuid[])`, pq.Array(validIDs([]string{eventID})))
	return translate(err, nil, "deleting event print distributions")
}

func (s *store) DeletePrintDistributionsByStudents(ctx context.Context, studentIDs ...string) error {
	_, err := s.ext.ExecContext(ctx,
		`DELETE FROM print_distribution WHERE student_id = ANY($1::uuid[])`, pq.Array(validIDs(studentIDs)))
	return translate(err, nil, "deleting student print distributions")
}
