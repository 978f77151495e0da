package reconcile

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trezcool/classfund/core"
	"github.com/trezcool/classfund/core/balance"
	"github.com/trezcool/classfund/core/ledger"
)

const syntheticPrefix = "pending_"

type TransactionKind string

const (
	KindPayment          TransactionKind = "payment"
	KindSyntheticPending TransactionKind = "synthetic_pending"
)

// Transaction is a row of an event's transaction list: a stored payment or an outstanding balance.
type Transaction interface {
	TransactionID() string
	Kind() TransactionKind
}

type (
	// RealPayment is a persisted payment decorated with display names.
	RealPayment struct {
		ledger.Payment
		StudentName string `json:"student_name"`
		RollNo      string `json:"roll_no"`
		EventName   string `json:"event_name"`
	}

	// SyntheticPending is the outstanding balance of a participant. It is rebuilt on every read and never stored.
	SyntheticPending struct {
		ID          string               `json:"id"`
		StudentID   string               `json:"student_id"`
		EventID     string               `json:"event_id"`
		StudentName string               `json:"student_name"`
		RollNo      string               `json:"roll_no"`
		EventName   string               `json:"event_name"`
		Amount      decimal.Decimal      `json:"amount"`
		Status      ledger.PaymentStatus `json:"status"`
		Deadline    time.Time            `json:"deadline"`
	}
)

func (r RealPayment) TransactionID() string { return r.ID }
func (r RealPayment) Kind() TransactionKind { return KindPayment }

func (r RealPayment) MarshalJSON() ([]byte, error) {
	type plain RealPayment
	return json.Marshal(struct {
		Kind TransactionKind `json:"kind"`
		plain
	}{KindPayment, plain(r)})
}

func (s SyntheticPending) TransactionID() string { return s.ID }
func (s SyntheticPending) Kind() TransactionKind { return KindSyntheticPending }

func (s SyntheticPending) MarshalJSON() ([]byte, error) {
	type plain SyntheticPending
	return json.Marshal(struct {
		Kind TransactionKind `json:"kind"`
		plain
	}{KindSyntheticPending, plain(s)})
}

// SyntheticID returns the id of the outstanding balance row of (studentID, eventID).
func SyntheticID(studentID, eventID string) string {
	return syntheticPrefix + studentID + "_" + eventID
}

// IsSynthetic reports whether id names an outstanding balance row rather than a stored payment.
func IsSynthetic(id string) bool {
	return strings.HasPrefix(id, syntheticPrefix)
}

func indexStudents(students []ledger.Student) map[string]ledger.Student {
	idx := make(map[string]ledger.Student, len(students))
	for _, std := range students {
		idx[std.ID] = std
	}
	return idx
}

// ListEventTransactions returns one synthetic Pending row per participant that still owes money,
// in roll number order, followed by the stored payments of the event, newest first.
func (e *Engine) ListEventTransactions(ctx context.Context, eventID string) ([]Transaction, error) {
	evt, err := e.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, core.StoreError(err, "getting event")
	}
	payments, err := e.store.QueryPayments(ctx, ledger.PaymentFilter{EventID: evt.ID})
	if err != nil {
		return nil, core.StoreError(err, "querying payments")
	}

	ids := append([]string{}, evt.ParticipantIDs...)
	for _, p := range payments {
		ids = append(ids, p.StudentID)
	}
	var students map[string]ledger.Student
	if len(ids) > 0 {
		found, err := e.store.QueryStudents(ctx, ledger.StudentFilter{IDs: ids}, nil)
		if err != nil {
			return nil, core.StoreError(err, "querying students")
		}
		students = indexStudents(found)
	}

	pending := make([]SyntheticPending, 0, len(evt.ParticipantIDs))
	for _, bal := range balance.ForParticipants(evt, payments) {
		if !bal.Owes() {
			continue
		}
		std, ok := students[bal.StudentID]
		if !ok {
			continue // participant deleted since
		}
		pending = append(pending, SyntheticPending{
			ID:          SyntheticID(std.ID, evt.ID),
			StudentID:   std.ID,
			EventID:     evt.ID,
			StudentName: std.Name,
			RollNo:      std.RollNo,
			EventName:   evt.Name,
			Amount:      bal.Pending,
			Status:      ledger.StatusPending,
			Deadline:    evt.Deadline,
		})
	}
	sort.SliceStable(pending, func(i, j int) bool { return pending[i].RollNo < pending[j].RollNo })
	txns := make([]Transaction, 0, len(pending)+len(payments))
	for _, sp := range pending {
		txns = append(txns, sp)
	}
	for _, p := range payments {
		std := students[p.StudentID]
		txns = append(txns, RealPayment{Payment: p, StudentName: std.Name, RollNo: std.RollNo, EventName: evt.Name})
	}
	return txns, nil
}
