// Package balance derives paid/pending state for a (student, event) pair from its payments.
// Balances are never stored; they are recomputed on every read.
package balance

import (
	"github.com/shopspring/decimal"

	"github.com/trezcool/classfund/core/ledger"
)

type Status string

const (
	FullyPaid     Status = "Fully Paid"
	PartiallyPaid Status = "Partially Paid"
	Unpaid        Status = "Unpaid"
)

// Balance is the derived EventBalance of one student for one event.
type Balance struct {
	StudentID string          `json:"student_id"`
	EventID   string          `json:"event_id"`
	Cost      decimal.Decimal `json:"cost"`
	TotalPaid decimal.Decimal `json:"total_paid"`
	Pending   decimal.Decimal `json:"pending_amount"`
	Status    Status          `json:"status"`
}

// Owes reports whether there is an outstanding amount.
func (b Balance) Owes() bool {
	return b.Pending.IsPositive()
}

// TotalPaid sums the amounts of Paid payments. Every other status is ignored.
func TotalPaid(payments []ledger.Payment) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		if p.Status == ledger.StatusPaid {
			total = total.Add(p.Amount)
		}
	}
	return total
}

// Classify maps cost and totalPaid to a Status.
// A zero cost never reads FullyPaid: there is nothing to collect, so it stays Unpaid.
func Classify(cost, totalPaid decimal.Decimal) Status {
	switch {
	case cost.IsPositive() && totalPaid.GreaterThanOrEqual(cost):
		return FullyPaid
	case totalPaid.IsPositive() && totalPaid.LessThan(cost):
		return PartiallyPaid
	default:
		return Unpaid
	}
}

// Compute returns the balance of payments against cost.
// pending = max(0, cost - totalPaid).
func Compute(cost decimal.Decimal, payments []ledger.Payment) Balance {
	paid := TotalPaid(payments)
	pending := cost.Sub(paid)
	if pending.IsNegative() {
		pending = decimal.Zero
	}
	return Balance{
		Cost:      cost,
		TotalPaid: paid,
		Pending:   pending,
		Status:    Classify(cost, paid),
	}
}

// ForStudent computes the balance of studentID for evt, picking its payments out of payments.
func ForStudent(evt ledger.Event, studentID string, payments []ledger.Payment) Balance {
	own := make([]ledger.Payment, 0, 2)
	for _, p := range payments {
		if p.StudentID == studentID && p.EventID == evt.ID {
			own = append(own, p)
		}
	}
	b := Compute(evt.Cost, own)
	b.StudentID = studentID
	b.EventID = evt.ID
	return b
}

// ForParticipants computes the balance of every participant of evt, in roster order.
func ForParticipants(evt ledger.Event, payments []ledger.Payment) []Balance {
	byStudent := make(map[string][]ledger.Payment, len(evt.ParticipantIDs))
	for _, p := range payments {
		if p.EventID == evt.ID {
			byStudent[p.StudentID] = append(byStudent[p.StudentID], p)
		}
	}
	balances := make([]Balance, 0, len(evt.ParticipantIDs))
	for _, id := range evt.ParticipantIDs {
		b := Compute(evt.Cost, byStudent[id])
		b.StudentID = id
		b.EventID = evt.ID
		balances = append(balances, b)
	}
	return balances
}
