package event_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/classfund/core"
	"github.com/trezcool/classfund/core/event"
	"github.com/trezcool/classfund/core/ledger"
	"github.com/trezcool/classfund/tests"
)

var ctx = context.Background()

func newService() (*event.Service, ledger.Store) {
	store := testutil.NewInmemStore()
	validate, _ := testutil.NewValidator()
	return event.NewService(store, validate), store
}

func TestPublish(t *testing.T) {
	deadline := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		input    event.NewEvent
		wantErr  bool
		wantCat  ledger.EventCategory
		wantOpts []ledger.PaymentMethod
		wantPtcp []string
	}{
		{
			name:     "defaults and dedup",
			input:    event.NewEvent{Name: "  Farewell ", Cost: testutil.Amount("500"), Deadline: deadline, PaymentOptions: []ledger.PaymentMethod{ledger.MethodQR, ledger.MethodQR}},
			wantCat:  ledger.CategoryNormal,
			wantOpts: []ledger.PaymentMethod{ledger.MethodQR},
			wantPtcp: []string{},
		},
		{
			name:     "zero cost is allowed",
			input:    event.NewEvent{Name: "Free", Cost: testutil.Amount("0"), Deadline: deadline, Category: ledger.CategoryPrint},
			wantCat:  ledger.CategoryPrint,
			wantOpts: []ledger.PaymentMethod{},
			wantPtcp: []string{},
		},
		{name: "missing name", input: event.NewEvent{Cost: testutil.Amount("1"), Deadline: deadline}, wantErr: true},
		{name: "missing deadline", input: event.NewEvent{Name: "x", Cost: testutil.Amount("1")}, wantErr: true},
		{name: "negative cost", input: event.NewEvent{Name: "x", Cost: testutil.Amount("-1"), Deadline: deadline}, wantErr: true},
		{name: "three decimals", input: event.NewEvent{Name: "x", Cost: testutil.Amount("1.005"), Deadline: deadline}, wantErr: true},
		{name: "unknown method", input: event.NewEvent{Name: "x", Cost: testutil.Amount("1"), Deadline: deadline, PaymentOptions: []ledger.PaymentMethod{"Card"}}, wantErr: true},
		{name: "unknown category", input: event.NewEvent{Name: "x", Cost: testutil.Amount("1"), Deadline: deadline, Category: "Other"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newService()
			evt, err := svc.Publish(ctx, tt.input)
			if tt.wantErr {
				assert.Equal(t, core.KindValidation, core.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, evt.ID)
			assert.Equal(t, ledger.EventPublished, evt.Status)
			assert.Equal(t, tt.wantCat, evt.Category)
			assert.Equal(t, tt.wantOpts, evt.PaymentOptions)
			assert.Equal(t, tt.wantPtcp, evt.ParticipantIDs)
		})
	}
}

func TestPublishParticipants(t *testing.T) {
	svc, store := newService()
	a := testutil.CreateStudent(t, store, "Aarav Sharma", "CS-01")
	b := testutil.CreateStudent(t, store, "Diya Patel", "CS-02")
	deadline := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	evt, err := svc.Publish(ctx, event.NewEvent{
		Name: "Farewell", Cost: testutil.Amount("500"), Deadline: deadline,
		ParticipantIDs: []string{a.ID, " " + a.ID, b.ID, ""},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, evt.ParticipantIDs)

	_, err = svc.Publish(ctx, event.NewEvent{Name: "Trip", Cost: testutil.Amount("1"), Deadline: deadline, ParticipantIDs: []string{"ghost"}})
	assert.Equal(t, core.KindNotFound, core.KindOf(err))
}

func TestSaveDraftAndPublishLater(t *testing.T) {
	svc, _ := newService()
	draft, err := svc.SaveDraft(ctx, event.NewEvent{Name: "Trip", Cost: testutil.Amount("1000")})
	require.NoError(t, err)
	assert.Equal(t, ledger.EventDraft, draft.Status)

	_, err = svc.Update(ctx, draft.ID, event.UpdateEvent{
		NewEvent: event.NewEvent{Name: "Trip", Cost: testutil.Amount("1000")},
		Status:   ledger.EventPublished,
	})
	assert.Equal(t, core.KindValidation, core.KindOf(err), "a published event needs a deadline")

	deadline := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	pub, err := svc.Update(ctx, draft.ID, event.UpdateEvent{
		NewEvent: event.NewEvent{Name: "Trip", Cost: testutil.Amount("1200"), Deadline: deadline},
		Status:   ledger.EventPublished,
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.EventPublished, pub.Status)
	assert.True(t, testutil.Amount("1200").Equal(pub.Cost))
	assert.Equal(t, draft.CreatedAt, pub.CreatedAt)

	_, err = svc.Update(ctx, "nope", event.UpdateEvent{NewEvent: event.NewEvent{Name: "x", Deadline: deadline}})
	assert.Equal(t, core.KindNotFound, core.KindOf(err))
}

func TestDeleteCascades(t *testing.T) {
	svc, store := newService()
	std := testutil.CreateStudent(t, store, "Aarav Sharma", "CS-01")
	evt := testutil.CreateEvent(t, store, "Yearbook", "300", []string{std.ID}, testutil.PrintEvent())
	other := testutil.CreateEvent(t, store, "Farewell", "500", []string{std.ID})
	testutil.CreatePayment(t, store, std.ID, evt.ID, "300", ledger.MethodCash, ledger.StatusPaid)
	testutil.CreatePayment(t, store, std.ID, other.ID, "500", ledger.MethodCash, ledger.StatusPaid)
	_, err := store.CreatePrintDistribution(ctx, ledger.PrintDistribution{StudentID: std.ID, EventID: evt.ID, DistributedAt: time.Now()})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, evt.ID))

	_, err = svc.Get(ctx, evt.ID)
	assert.Equal(t, core.KindNotFound, core.KindOf(err))
	pmts, err := store.QueryPayments(ctx, ledger.PaymentFilter{})
	require.NoError(t, err)
	require.Len(t, pmts, 1)
	assert.Equal(t, other.ID, pmts[0].EventID)
	pds, err := store.QueryPrintDistributions(ctx, evt.ID)
	require.NoError(t, err)
	assert.Empty(t, pds)

	assert.Equal(t, core.KindNotFound, core.KindOf(svc.Delete(ctx, evt.ID)))
}

func TestQuery(t *testing.T) {
	svc, store := newService()
	testutil.CreateEvent(t, store, "Farewell", "500", nil)
	testutil.CreateEvent(t, store, "Yearbook", "300", nil, testutil.PrintEvent())
	testutil.CreateEvent(t, store, "Trip", "1000", nil, testutil.Draft())

	all, err := svc.Query(ctx, ledger.EventFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	published, err := svc.Query(ctx, ledger.EventFilter{Status: ledger.EventPublished})
	require.NoError(t, err)
	assert.Len(t, published, 2)

	prints, err := svc.Query(ctx, ledger.EventFilter{Category: ledger.CategoryPrint})
	require.NoError(t, err)
	require.Len(t, prints, 1)
	assert.Equal(t, "Yearbook", prints[0].Name)
}
