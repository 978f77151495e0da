package ledger

import (
	"context"
	"time"

	"github.com/trezcool/classfund/core"
)

var (
	// errors
	ErrStudentNotFound    = core.NotFoundError("student")
	ErrEventNotFound      = core.NotFoundError("event")
	ErrPaymentNotFound    = core.NotFoundError("payment")
	ErrPrintNotFound      = core.NotFoundError("print distribution")
	ErrRollNoExists       = core.NewError(core.KindAlreadyExists, "a student with this roll number already exists")
	ErrOrderExists        = core.NewError(core.KindAlreadyExists, "a payment for this gateway order already exists")
	ErrAlreadyDistributed = core.NewError(core.KindAlreadyExists, "print already distributed to this student")

	// StudentOrderingFields are the fields students can be ordered by.
	StudentOrderingFields = []string{"name", "roll_no", "class", "created_at"}
)

type (
	StudentFilter struct {
		// Search does a case-insensitive substring match on Student.Name or Student.RollNo.
		Search string
		IDs    []string
		Limit  int
	}

	EventFilter struct {
		IDs      []string
		Status   EventStatus
		Category EventCategory
	}

	// PaymentFilter fields are combined with AND; zero values match everything.
	// DateFrom and DateTo are inclusive bounds on Payment.PaymentDate.
	PaymentFilter struct {
		EventID   string
		StudentID string
		Statuses  []PaymentStatus
		Methods   []PaymentMethod
		DateFrom  time.Time
		DateTo    time.Time
	}

	// Store persists students, events, payments and print distributions.
	// Write methods that touch several rows must be called within Tx to be atomic.
	Store interface {
		CreateStudent(ctx context.Context, std Student) (Student, error)
		GetStudent(ctx context.Context, id string) (Student, error)
		GetStudentByRollNo(ctx context.Context, rollNo string) (Student, error)
		QueryStudents(ctx context.Context, filter StudentFilter, ordering []core.DBOrdering) ([]Student, error)
		DeleteStudents(ctx context.Context, ids ...string) error

		CreateEvent(ctx context.Context, evt Event) (Event, error)
		UpdateEvent(ctx context.Context, evt Event) (Event, error)
		GetEvent(ctx context.Context, id string) (Event, error)
		QueryEvents(ctx context.Context, filter EventFilter) ([]Event, error)
		// DeleteEvent deletes the event and its participant links.
		DeleteEvent(ctx context.Context, id string) error

		CreatePayment(ctx context.Context, pmt Payment) (Payment, error)
		GetPayment(ctx context.Context, id string) (Payment, error)
		// GetPaymentByOrderID locks the payment row until the surrounding Tx ends.
		GetPaymentByOrderID(ctx context.Context, orderID string) (Payment, error)
		UpdatePayment(ctx context.Context, pmt Payment) (Payment, error)
		QueryPayments(ctx context.Context, filter PaymentFilter) ([]Payment, error)
		DeletePaymentsByEvent(ctx context.Context, eventID string) error
		DeletePaymentsByStudents(ctx context.Context, studentIDs ...string) error

		CreatePrintDistribution(ctx context.Context, pd PrintDistribution) (PrintDistribution, error)
		GetPrintDistribution(ctx context.Context, studentID, eventID string) (PrintDistribution, error)
		QueryPrintDistributions(ctx context.Context, eventID string) ([]PrintDistribution, error)
		DeletePrintDistributionsByEvent(ctx context.Context, eventID string) error
		DeletePrintDistributionsByStudents(ctx context.Context, studentIDs ...string) error

		// Tx runs fn against a Store bound to a single transaction.
		// The transaction is rolled back when fn returns an error.
		Tx(ctx context.Context, fn func(tx Store) error) error
	}
)

// Match reports whether pmt satisfies every set field of the filter.
func (f PaymentFilter) Match(pmt Payment) bool {
	if f.EventID != "" && pmt.EventID != f.EventID {
		return false
	}
	if f.StudentID != "" && pmt.StudentID != f.StudentID {
		return false
	}
	if !f.DateFrom.IsZero() && pmt.PaymentDate.Before(f.DateFrom) {
		return false
	}
	if !f.DateTo.IsZero() && pmt.PaymentDate.After(f.DateTo) {
		return false
	}
	if len(f.Statuses) > 0 {
		var found bool
		for _, s := range f.Statuses {
			if pmt.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.Methods) > 0 {
		var found bool
		for _, m := range f.Methods {
			if pmt.Method == m {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// ClearAll deletes every row, children first, in a single transaction.
func ClearAll(ctx context.Context, store Store) error {
	return store.Tx(ctx, func(tx Store) error {
		students, err := tx.QueryStudents(ctx, StudentFilter{}, nil)
		if err != nil {
			return err
		}
		events, err := tx.QueryEvents(ctx, EventFilter{})
		if err != nil {
			return err
		}
		for _, evt := range events {
			if err = tx.DeletePrintDistributionsByEvent(ctx, evt.ID); err != nil {
				return err
			}
			if err = tx.DeletePaymentsByEvent(ctx, evt.ID); err != nil {
				return err
			}
			if err = tx.DeleteEvent(ctx, evt.ID); err != nil {
				return err
			}
		}
		ids := make([]string, 0, len(students))
		for _, std := range students {
			ids = append(ids, std.ID)
		}
		if len(ids) == 0 {
			return nil
		}
		if err = tx.DeletePrintDistributionsByStudents(ctx, ids...); err != nil {
			return err
		}
		if err = tx.DeletePaymentsByStudents(ctx, ids...); err != nil {
			return err
		}
		return tx.DeleteStudents(ctx, ids...)
	})
}
