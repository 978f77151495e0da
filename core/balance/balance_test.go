package balance

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/classfund/core/ledger"
)

func paid(amounts ...int64) []ledger.Payment {
	pmts := make([]ledger.Payment, 0, len(amounts))
	for _, a := range amounts {
		pmts = append(pmts, ledger.Payment{Amount: decimal.NewFromInt(a), Status: ledger.StatusPaid})
	}
	return pmts
}

func TestCompute(t *testing.T) {
	d := decimal.NewFromInt

	tests := []struct {
		name        string
		cost        decimal.Decimal
		payments    []ledger.Payment
		wantPaid    decimal.Decimal
		wantPending decimal.Decimal
		wantStatus  Status
	}{
		{name: "no payments", cost: d(500), wantPaid: d(0), wantPending: d(500), wantStatus: Unpaid},
		{name: "partially paid", cost: d(500), payments: paid(200, 150), wantPaid: d(350), wantPending: d(150), wantStatus: PartiallyPaid},
		{name: "fully paid", cost: d(500), payments: paid(500), wantPaid: d(500), wantPending: d(0), wantStatus: FullyPaid},
		{name: "overpaid", cost: d(500), payments: paid(300, 300), wantPaid: d(600), wantPending: d(0), wantStatus: FullyPaid},
		{name: "zero cost, nothing paid", cost: d(0), wantPaid: d(0), wantPending: d(0), wantStatus: Unpaid},
		{name: "zero cost, something paid", cost: d(0), payments: paid(50), wantPaid: d(50), wantPending: d(0), wantStatus: Unpaid},
		{
			name: "only Paid counts",
			cost: d(500),
			payments: []ledger.Payment{
				{Amount: d(100), Status: ledger.StatusPaid},
				{Amount: d(100), Status: ledger.StatusPending},
				{Amount: d(100), Status: ledger.StatusVerificationPending},
				{Amount: d(100), Status: ledger.StatusFailed},
			},
			wantPaid: d(100), wantPending: d(400), wantStatus: PartiallyPaid,
		},
		{
			name: "fractional amounts", cost: decimal.RequireFromString("99.99"),
			payments:    []ledger.Payment{{Amount: decimal.RequireFromString("33.33"), Status: ledger.StatusPaid}},
			wantPaid:    decimal.RequireFromString("33.33"),
			wantPending: decimal.RequireFromString("66.66"),
			wantStatus:  PartiallyPaid,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compute(tt.cost, tt.payments)
			assert.True(t, tt.wantPaid.Equal(got.TotalPaid), "TotalPaid = %s; want %s", got.TotalPaid, tt.wantPaid)
			assert.True(t, tt.wantPending.Equal(got.Pending), "Pending = %s; want %s", got.Pending, tt.wantPending)
			assert.Equal(t, tt.wantStatus, got.Status)
		})
	}
}

func TestCompute_zeroCostNeverFullyPaid(t *testing.T) {
	for _, pmts := range [][]ledger.Payment{nil, paid(1), paid(100, 200)} {
		assert.NotEqual(t, FullyPaid, Compute(decimal.Zero, pmts).Status)
		assert.Equal(t, Unpaid, Compute(decimal.Zero, pmts).Status)
	}
}

func TestCompute_properties(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))

	for i := 0; i < 500; i++ {
		cost := decimal.NewFromInt(rnd.Int63n(2000))
		n := rnd.Intn(6)
		amounts := make([]int64, 0, n)
		for j := 0; j < n; j++ {
			amounts = append(amounts, 1+rnd.Int63n(800))
		}
		b := Compute(cost, paid(amounts...))

		if b.TotalPaid.LessThan(cost) {
			assert.True(t, b.TotalPaid.Add(b.Pending).Equal(cost), "cost=%s paid=%s pending=%s", cost, b.TotalPaid, b.Pending)
		} else {
			assert.True(t, b.Pending.IsZero(), "cost=%s paid=%s pending=%s", cost, b.TotalPaid, b.Pending)
		}
		assert.False(t, b.Pending.IsNegative())

		// order of payments does not matter
		rnd.Shuffle(len(amounts), func(i, j int) { amounts[i], amounts[j] = amounts[j], amounts[i] })
		assert.Equal(t, b.Status, Compute(cost, paid(amounts...)).Status)
	}
}

func TestForParticipants(t *testing.T) {
	evt := ledger.Event{ID: "e1", Cost: decimal.NewFromInt(100), ParticipantIDs: []string{"s1", "s2", "s3"}}
	payments := []ledger.Payment{
		{StudentID: "s1", EventID: "e1", Amount: decimal.NewFromInt(100), Status: ledger.StatusPaid},
		{StudentID: "s2", EventID: "e1", Amount: decimal.NewFromInt(40), Status: ledger.StatusPaid},
		{StudentID: "s2", EventID: "other", Amount: decimal.NewFromInt(60), Status: ledger.StatusPaid},
		{StudentID: "s4", EventID: "e1", Amount: decimal.NewFromInt(100), Status: ledger.StatusPaid},
	}

	got := ForParticipants(evt, payments)
	if assert.Len(t, got, 3) {
		assert.Equal(t, "s1", got[0].StudentID)
		assert.Equal(t, FullyPaid, got[0].Status)
		assert.False(t, got[0].Owes())

		assert.Equal(t, PartiallyPaid, got[1].Status)
		assert.True(t, decimal.NewFromInt(60).Equal(got[1].Pending))

		assert.Equal(t, Unpaid, got[2].Status)
		assert.True(t, got[2].Owes())
	}

	one := ForStudent(evt, "s2", payments)
	assert.True(t, decimal.NewFromInt(40).Equal(one.TotalPaid))
	assert.Equal(t, "e1", one.EventID)
}
