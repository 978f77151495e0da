// Package report reduces filtered payment sets into summaries and exports them as CSV or XLSX.
package report

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/trezcool/classfund/core/ledger"
)

// Filter selects the payments of a report. See ledger.PaymentFilter.
type Filter = ledger.PaymentFilter

// Summary is an order-independent reduction of a payment set.
// PendingAmount is everything not Paid, Failed payments included.
type Summary struct {
	TotalTransactions int             `json:"total_transactions"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	PaidAmount        decimal.Decimal `json:"paid_amount"`
	PendingAmount     decimal.Decimal `json:"pending_amount"`
	PaidCount         int             `json:"paid_count"`
	PendingCount      int             `json:"pending_count"`
}

// Group is the summary of the payments sharing a key (event or student id).
type Group struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	Summary
}

func emptySummary() Summary {
	return Summary{TotalAmount: decimal.Zero, PaidAmount: decimal.Zero, PendingAmount: decimal.Zero}
}

func (s *Summary) add(p ledger.Payment) {
	s.TotalTransactions++
	s.TotalAmount = s.TotalAmount.Add(p.Amount)
	if p.Status == ledger.StatusPaid {
		s.PaidAmount = s.PaidAmount.Add(p.Amount)
		s.PaidCount++
	} else {
		s.PendingCount++
	}
	s.PendingAmount = s.TotalAmount.Sub(s.PaidAmount)
}

// Merge combines two summaries; summarizing a partition and merging equals summarizing the whole.
func (s Summary) Merge(o Summary) Summary {
	total := s.TotalAmount.Add(o.TotalAmount)
	paid := s.PaidAmount.Add(o.PaidAmount)
	return Summary{
		TotalTransactions: s.TotalTransactions + o.TotalTransactions,
		TotalAmount:       total,
		PaidAmount:        paid,
		PendingAmount:     total.Sub(paid),
		PaidCount:         s.PaidCount + o.PaidCount,
		PendingCount:      s.PendingCount + o.PendingCount,
	}
}

func Summarize(payments []ledger.Payment) Summary {
	sum := emptySummary()
	for _, p := range payments {
		sum.add(p)
	}
	return sum
}

func groupBy(payments []ledger.Payment, key func(ledger.Payment) string) []Group {
	idx := make(map[string]int)
	groups := make([]Group, 0)
	for _, p := range payments {
		k := key(p)
		i, ok := idx[k]
		if !ok {
			i = len(groups)
			idx[k] = i
			groups = append(groups, Group{Key: k, Summary: emptySummary()})
		}
		groups[i].add(p)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Key < groups[j].Key })
	return groups
}

// ByEvent summarizes payments per event, ordered by event id.
func ByEvent(payments []ledger.Payment) []Group {
	return groupBy(payments, func(p ledger.Payment) string { return p.EventID })
}

// ByStudent summarizes payments per student, ordered by student id.
// Students without any payment in the set do not appear.
func ByStudent(payments []ledger.Payment) []Group {
	return groupBy(payments, func(p ledger.Payment) string { return p.StudentID })
}
