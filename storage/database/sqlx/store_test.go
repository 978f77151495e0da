package sqlxdb_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/classfund/core"
	"github.com/trezcool/classfund/core/ledger"
	"github.com/trezcool/classfund/core/user"
	"github.com/trezcool/classfund/storage/database"
	"github.com/trezcool/classfund/storage/database/sqlx"
	"github.com/trezcool/classfund/tests"
)

var ctx = context.Background()

func newStore(t *testing.T) ledger.Store {
	db := testutil.OpenDB(t)
	require.NoError(t, database.Migrate(db.DB, "up"))
	store := sqlxdb.NewStore(db)
	require.NoError(t, ledger.ClearAll(ctx, store))
	t.Cleanup(func() { _ = ledger.ClearAll(ctx, store) })
	return store
}

func TestStudents(t *testing.T) {
	store := newStore(t)
	a := testutil.CreateStudent(t, store, "Aarav Sharma", "CS-01", "aarav@school.test")
	testutil.CreateStudent(t, store, "Diya Patel", "CS-02")

	got, err := store.GetStudentByRollNo(ctx, "cs-01")
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	_, err = store.CreateStudent(ctx, ledger.Student{Name: "Dup", RollNo: "cs-01", CreatedAt: time.Now(), UpdatedAt: time.Now()})
	assert.Equal(t, ledger.ErrRollNoExists, err)

	_, err = store.GetStudent(ctx, "not-a-uuid")
	assert.Equal(t, ledger.ErrStudentNotFound, err)

	found, err := store.QueryStudents(ctx, ledger.StudentFilter{Search: "dIYa"}, nil)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "CS-02", found[0].RollNo)

	found, err = store.QueryStudents(ctx, ledger.StudentFilter{}, []core.DBOrdering{{Field: "name", Ascending: false}, {Field: "password"}})
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "Diya Patel", found[0].Name)
}

func TestEventsAndParticipants(t *testing.T) {
	store := newStore(t)
	a := testutil.CreateStudent(t, store, "Aarav Sharma", "CS-01")
	b := testutil.CreateStudent(t, store, "Diya Patel", "CS-02")

	evt := testutil.CreateEvent(t, store, "Farewell", "500.50", []string{a.ID}, testutil.Methods(ledger.MethodQR, ledger.MethodCash))
	assert.Equal(t, []string{a.ID}, evt.ParticipantIDs)
	assert.True(t, testutil.Amount("500.50").Equal(evt.Cost))
	assert.Equal(t, []ledger.PaymentMethod{ledger.MethodQR, ledger.MethodCash}, evt.PaymentOptions)

	evt.ParticipantIDs = []string{b.ID}
	evt.Status = ledger.EventDraft
	evt.Deadline = time.Time{}
	updated, err := store.UpdateEvent(ctx, evt)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, updated.ParticipantIDs)
	assert.True(t, updated.Deadline.IsZero())

	_, err = store.CreateEvent(ctx, ledger.Event{Name: "Ghosts", Cost: testutil.Amount("1"), ParticipantIDs: []string{"ghost"}})
	assert.Equal(t, ledger.ErrStudentNotFound, err)
	events, err := store.QueryEvents(ctx, ledger.EventFilter{})
	require.NoError(t, err)
	assert.Len(t, events, 1, "a failed create leaves nothing behind")

	require.NoError(t, store.DeleteEvent(ctx, evt.ID))
	assert.Equal(t, ledger.ErrEventNotFound, store.DeleteEvent(ctx, evt.ID))
}

func TestPayments(t *testing.T) {
	store := newStore(t)
	std := testutil.CreateStudent(t, store, "Aarav Sharma", "CS-01")
	evt := testutil.CreateEvent(t, store, "Farewell", "500", []string{std.ID})

	now := time.Now().UTC().Truncate(time.Second)
	pmt, err := store.CreatePayment(ctx, ledger.Payment{
		StudentID: std.ID, EventID: evt.ID, Amount: testutil.Amount("200"), Method: ledger.MethodRazorpay,
		Status: ledger.StatusPending, GatewayOrderID: "order_1", PaymentDate: now, CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)

	_, err = store.CreatePayment(ctx, ledger.Payment{
		StudentID: std.ID, EventID: evt.ID, Amount: testutil.Amount("1"), Method: ledger.MethodRazorpay,
		Status: ledger.StatusPending, GatewayOrderID: "order_1", PaymentDate: now, CreatedAt: now, UpdatedAt: now,
	})
	assert.Equal(t, ledger.ErrOrderExists, err)

	err = store.Tx(ctx, func(tx ledger.Store) error {
		locked, err := tx.GetPaymentByOrderID(ctx, "order_1")
		if err != nil {
			return err
		}
		locked.Status = ledger.StatusPaid
		locked.TransactionID = "pay_1"
		locked.Amount = testutil.Amount("999") // immutable
		_, err = tx.UpdatePayment(ctx, locked)
		return err
	})
	require.NoError(t, err)

	got, err := store.GetPayment(ctx, pmt.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPaid, got.Status)
	assert.Equal(t, "pay_1", got.TransactionID)
	assert.True(t, testutil.Amount("200").Equal(got.Amount))
	assert.Empty(t, got.Notes)

	testutil.CreatePayment(t, store, std.ID, evt.ID, "50", ledger.MethodCash, ledger.StatusPaid, now.Add(-48*time.Hour))
	filtered, err := store.QueryPayments(ctx, ledger.PaymentFilter{
		EventID:  evt.ID,
		Statuses: []ledger.PaymentStatus{ledger.StatusPaid},
		DateFrom: now.Add(-time.Hour),
	})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, pmt.ID, filtered[0].ID)

	_, err = store.GetPaymentByOrderID(ctx, "order_404")
	assert.Equal(t, ledger.ErrPaymentNotFound, err)
}

func TestTxRollsBack(t *testing.T) {
	store := newStore(t)
	err := store.Tx(ctx, func(tx ledger.Store) error {
		testutil.CreateStudent(t, tx, "Aarav Sharma", "CS-01")
		_, err := tx.CreateStudent(ctx, ledger.Student{Name: "Dup", RollNo: "CS-01", CreatedAt: time.Now(), UpdatedAt: time.Now()})
		return err
	})
	assert.Equal(t, ledger.ErrRollNoExists, err)

	students, err := store.QueryStudents(ctx, ledger.StudentFilter{}, nil)
	require.NoError(t, err)
	assert.Empty(t, students)
}

func TestPrintDistributions(t *testing.T) {
	store := newStore(t)
	std := testutil.CreateStudent(t, store, "Aarav Sharma", "CS-01")
	evt := testutil.CreateEvent(t, store, "Yearbook", "300", []string{std.ID}, testutil.PrintEvent())

	pd := ledger.PrintDistribution{StudentID: std.ID, EventID: evt.ID, DistributedAt: time.Now().UTC()}
	_, err := store.CreatePrintDistribution(ctx, pd)
	require.NoError(t, err)
	_, err = store.CreatePrintDistribution(ctx, pd)
	assert.Equal(t, ledger.ErrAlreadyDistributed, err)

	prints, err := store.QueryPrintDistributions(ctx, evt.ID)
	require.NoError(t, err)
	assert.Len(t, prints, 1)

	require.NoError(t, store.DeletePrintDistributionsByStudents(ctx, std.ID))
	_, err = store.GetPrintDistribution(ctx, std.ID, evt.ID)
	assert.Equal(t, ledger.ErrPrintNotFound, err)
}

func TestUsers(t *testing.T) {
	db := testutil.OpenDB(t)
	require.NoError(t, database.Migrate(db.DB, "up"))
	_, err := db.Exec(`DELETE FROM admin_user`)
	require.NoError(t, err)
	t.Cleanup(func() { _, _ = db.Exec(`DELETE FROM admin_user`) })

	repo := sqlxdb.NewUserRepository(db)
	now := time.Now().UTC().Truncate(time.Microsecond)
	rep, err := repo.CreateUser(ctx, user.User{Name: "Rep", Email: "rep@school.test", PasswordHash: []byte("hash"), CreatedAt: now, UpdatedAt: now})
	require.NoError(t, err)
	_, err = repo.CreateUser(ctx, user.User{Name: "Other", Email: "Rep@School.test", PasswordHash: []byte("hash"), CreatedAt: now, UpdatedAt: now})
	assert.Equal(t, user.ErrEmailExists, err)

	got, err := repo.GetUserByEmail(ctx, "REP@school.test")
	require.NoError(t, err)
	assert.Equal(t, rep.ID, got.ID)
	assert.Equal(t, []byte("hash"), got.PasswordHash)

	_, err = repo.GetUser(ctx, "not-a-uuid")
	assert.Equal(t, user.ErrNotFound, err)

	got.PasswordHash = []byte("new-hash")
	_, err = repo.UpdateUser(ctx, got)
	require.NoError(t, err)
	got, err = repo.GetUser(ctx, rep.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("new-hash"), got.PasswordHash)

	users, err := repo.QueryUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)

	require.NoError(t, repo.DeleteUser(ctx, rep.ID))
	assert.Equal(t, user.ErrNotFound, repo.DeleteUser(ctx, rep.ID))
}
