package inmemdb

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/trezcool/classfund/core"
	"github.com/trezcool/classfund/core/ledger"
	"github.com/trezcool/classfund/core/user"
)

type participantKey struct{ eventID, studentID string }

type tables struct {
	students     map[string]ledger.Student
	events       map[string]ledger.Event
	participants map[participantKey]struct{}
	payments     map[string]ledger.Payment
	prints       map[string]ledger.PrintDistribution
	users        map[string]user.User
}

func newTables() tables {
	return tables{
		students:     make(map[string]ledger.Student),
		events:       make(map[string]ledger.Event),
		participants: make(map[participantKey]struct{}),
		payments:     make(map[string]ledger.Payment),
		prints:       make(map[string]ledger.PrintDistribution),
		users:        make(map[string]user.User),
	}
}

func (t tables) clone() tables {
	c := newTables()
	for k, v := range t.students {
		c.students[k] = v
	}
	for k, v := range t.events {
		c.events[k] = v
	}
	for k := range t.participants {
		c.participants[k] = struct{}{}
	}
	for k, v := range t.payments {
		c.payments[k] = v
	}
	for k, v := range t.prints {
		c.prints[k] = v
	}
	for k, v := range t.users {
		c.users[k] = v
	}
	return c
}

// DB is an in-memory ledger (and admin accounts), used for tests and local demos.
type DB struct {
	mutex sync.RWMutex
	data  tables
}

func NewDB() *DB {
	return &DB{data: newTables()}
}

// store implements ledger.Store on top of DB.
// A store bound to a transaction already holds the write lock, so it must not lock again.
type store struct {
	db   *DB
	inTx bool
}

var _ ledger.Store = (*store)(nil) // interface compliance check

func NewStore(db *DB) ledger.Store {
	return &store{db: db}
}

func (s *store) rlock() func() {
	if s.inTx {
		return func() {}
	}
	s.db.mutex.RLock()
	return s.db.mutex.RUnlock
}

func (s *store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.db.mutex.Lock()
	return s.db.mutex.Unlock
}

func (s *store) Tx(ctx context.Context, fn func(tx ledger.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.db.mutex.Lock()
	defer s.db.mutex.Unlock()

	snapshot := s.db.data.clone()
	if err := fn(&store{db: s.db, inTx: true}); err != nil {
		s.db.data = snapshot
		return err
	}
	if err := ctx.Err(); err != nil {
		s.db.data = snapshot
		return err
	}
	return nil
}

// Students

func (s *store) CreateStudent(_ context.Context, std ledger.Student) (ledger.Student, error) {
	defer s.lock()()

	for _, other := range s.db.data.students {
		if strings.EqualFold(other.RollNo, std.RollNo) {
			return ledger.Student{}, ledger.ErrRollNoExists
		}
	}
	std.ID = newID()
	s.db.data.students[std.ID] = std
	return std, nil
}

func (s *store) GetStudent(_ context.Context, id string) (ledger.Student, error) {
	defer s.rlock()()

	if std, ok := s.db.data.students[id]; ok {
		return std, nil
	}
	return ledger.Student{}, ledger.ErrStudentNotFound
}

func (s *store) GetStudentByRollNo(_ context.Context, rollNo string) (ledger.Student, error) {
	defer s.rlock()()

	for _, std := range s.db.data.students {
		if strings.EqualFold(std.RollNo, rollNo) {
			return std, nil
		}
	}
	return ledger.Student{}, ledger.ErrStudentNotFound
}

func (s *store) QueryStudents(_ context.Context, filter ledger.StudentFilter, ordering []core.DBOrdering) ([]ledger.Student, error) {
	defer s.rlock()()

	ids := toSet(filter.IDs)
	students := make([]ledger.Student, 0, len(s.db.data.students))
	for _, std := range s.db.data.students {
		if len(ids) > 0 {
			if _, ok := ids[std.ID]; !ok {
				continue
			}
		}
		if filter.Search != "" && !(core.ContainsFold(std.Name, filter.Search) || core.ContainsFold(std.RollNo, filter.Search)) {
			continue
		}
		students = append(students, std)
	}
	sortStudents(students, ordering)
	if filter.Limit > 0 && len(students) > filter.Limit {
		students = students[:filter.Limit]
	}
	return students, nil
}

func (s *store) DeleteStudents(_ context.Context, ids ...string) error {
	defer s.lock()()

	for _, id := range ids {
		delete(s.db.data.students, id)
		for k := range s.db.data.participants {
			if k.studentID == id {
				delete(s.db.data.participants, k)
			}
		}
	}
	return nil
}

// Events

func (s *store) participantsOf(eventID string) []string {
	ids := make([]string, 0)
	for k := range s.db.data.participants {
		if k.eventID == eventID {
			ids = append(ids, k.studentID)
		}
	}
	sort.Strings(ids)
	return ids
}

func (s *store) setParticipants(evt ledger.Event) error {
	for _, id := range evt.ParticipantIDs {
		if _, ok := s.db.data.students[id]; !ok {
			return ledger.ErrStudentNotFound
		}
	}
	for k := range s.db.data.participants {
		if k.eventID == evt.ID {
			delete(s.db.data.participants, k)
		}
	}
	for _, id := range evt.ParticipantIDs {
		s.db.data.participants[participantKey{eventID: evt.ID, studentID: id}] = struct{}{}
	}
	return nil
}

func (s *store) CreateEvent(_ context.Context, evt ledger.Event) (ledger.Event, error) {
	defer s.lock()()

	evt.ID = newID()
	if err := s.setParticipants(evt); err != nil {
		return ledger.Event{}, err
	}
	evt.ParticipantIDs = s.participantsOf(evt.ID)
	s.db.data.events[evt.ID] = evt
	return evt, nil
}

func (s *store) UpdateEvent(_ context.Context, evt ledger.Event) (ledger.Event, error) {
	defer s.lock()()

	orig, ok := s.db.data.events[evt.ID]
	if !ok {
		return ledger.Event{}, ledger.ErrEventNotFound
	}
	if err := s.setParticipants(evt); err != nil {
		return ledger.Event{}, err
	}
	evt.CreatedAt = orig.CreatedAt
	evt.ParticipantIDs = s.participantsOf(evt.ID)
	s.db.data.events[evt.ID] = evt
	return evt, nil
}

func (s *store) GetEvent(_ context.Context, id string) (ledger.Event, error) {
	defer s.rlock()()

	evt, ok := s.db.data.events[id]
	if !ok {
		return ledger.Event{}, ledger.ErrEventNotFound
	}
	evt.ParticipantIDs = s.participantsOf(id)
	return evt, nil
}

func (s *store) QueryEvents(_ context.Context, filter ledger.EventFilter) ([]ledger.Event, error) {
	defer s.rlock()()

	ids := toSet(filter.IDs)
	events := make([]ledger.Event, 0, len(s.db.data.events))
	for _, evt := range s.db.data.events {
		if len(ids) > 0 {
			if _, ok := ids[evt.ID]; !ok {
				continue
			}
		}
		if filter.Status != "" && evt.Status != filter.Status {
			continue
		}
		if filter.Category != "" && evt.Category != filter.Category {
			continue
		}
		evt.ParticipantIDs = s.participantsOf(evt.ID)
		events = append(events, evt)
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].CreatedAt.Equal(events[j].CreatedAt) {
			return events[i].ID < events[j].ID
		}
		return events[i].CreatedAt.After(events[j].CreatedAt)
	})
	return events, nil
}

func (s *store) DeleteEvent(_ context.Context, id string) error {
	defer s.lock()()

	if _, ok := s.db.data.events[id]; !ok {
		return ledger.ErrEventNotFound
	}
	delete(s.db.data.events, id)
	for k := range s.db.data.participants {
		if k.eventID == id {
			delete(s.db.data.participants, k)
		}
	}
	return nil
}

// Payments

func (s *store) CreatePayment(_ context.Context, pmt ledger.Payment) (ledger.Payment, error) {
	defer s.lock()()

	if _, ok := s.db.data.students[pmt.StudentID]; !ok {
		return ledger.Payment{}, ledger.ErrStudentNotFound
	}
	if _, ok := s.db.data.events[pmt.EventID]; !ok {
		return ledger.Payment{}, ledger.ErrEventNotFound
	}
	if pmt.GatewayOrderID != "" {
		for _, other := range s.db.data.payments {
			if other.GatewayOrderID == pmt.GatewayOrderID {
				return ledger.Payment{}, ledger.ErrOrderExists
			}
		}
	}
	pmt.ID = newID()
	s.db.data.payments[pmt.ID] = pmt
	return pmt, nil
}

func (s *store) GetPayment(_ context.Context, id string) (ledger.Payment, error) {
	defer s.rlock()()

	if pmt, ok := s.db.data.payments[id]; ok {
		return pmt, nil
	}
	return ledger.Payment{}, ledger.ErrPaymentNotFound
}

func (s *store) GetPaymentByOrderID(_ context.Context, orderID string) (ledger.Payment, error) {
	defer s.rlock()()

	for _, pmt := range s.db.data.payments {
		if orderID != "" && pmt.GatewayOrderID == orderID {
			return pmt, nil
		}
	}
	return ledger.Payment{}, ledger.ErrPaymentNotFound
}

func (s *store) UpdatePayment(_ context.Context, pmt ledger.Payment) (ledger.Payment, error) {
	defer s.lock()()

	orig, ok := s.db.data.payments[pmt.ID]
	if !ok {
		return ledger.Payment{}, ledger.ErrPaymentNotFound
	}
	// only status, transaction and audit fields are mutable
	orig.Status = pmt.Status
	orig.TransactionID = pmt.TransactionID
	orig.Notes = pmt.Notes
	orig.UpdatedAt = pmt.UpdatedAt
	s.db.data.payments[pmt.ID] = orig
	return orig, nil
}

func (s *store) QueryPayments(_ context.Context, filter ledger.PaymentFilter) ([]ledger.Payment, error) {
	defer s.rlock()()

	payments := make([]ledger.Payment, 0)
	for _, pmt := range s.db.data.payments {
		if filter.Match(pmt) {
			payments = append(payments, pmt)
		}
	}
	sort.Slice(payments, func(i, j int) bool {
		if payments[i].PaymentDate.Equal(payments[j].PaymentDate) {
			return payments[i].ID < payments[j].ID
		}
		return payments[i].PaymentDate.After(payments[j].PaymentDate)
	})
	return payments, nil
}

func (s *store) DeletePaymentsByEvent(_ context.Context, eventID string) error {
	defer s.lock()()

	for id, pmt := range s.db.data.payments {
		if pmt.EventID == eventID {
			delete(s.db.data.payments, id)
		}
	}
	return nil
}

func (s *store) DeletePaymentsByStudents(_ context.Context, studentIDs ...string) error {
	defer s.lock()()

	ids := toSet(studentIDs)
	for id, pmt := range s.db.data.payments {
		if _, ok := ids[pmt.StudentID]; ok {
			delete(s.db.data.payments, id)
		}
	}
	return nil
}

// Print distributions

func (s *store) CreatePrintDistribution(_ context.Context, pd ledger.PrintDistribution) (ledger.PrintDistribution, error) {
	defer s.lock()()

	for _, other := range s.db.data.prints {
		if other.StudentID == pd.StudentID && other.EventID == pd.EventID {
			return ledger.PrintDistribution{}, ledger.ErrAlreadyDistributed
		}
	}
	pd.ID = newID()
	s.db.data.prints[pd.ID] = pd
	return pd, nil
}

func (s *store) GetPrintDistribution(_ context.Context, studentID, eventID string) (ledger.PrintDistribution, error) {
	defer s.rlock()()

	for _, pd := range s.db.data.prints {
		if pd.StudentID == studentID && pd.EventID == eventID {
			return pd, nil
		}
	}
	return ledger.PrintDistribution{}, ledger.ErrPrintNotFound
}

func (s *store) QueryPrintDistributions(_ context.Context, eventID string) ([]ledger.PrintDistribution, error) {
	defer s.rlock()()

	prints := make([]ledger.PrintDistribution, 0)
	for _, pd := range s.db.data.prints {
		if eventID == "" || pd.EventID == eventID {
			prints = append(prints, pd)
		}
	}
	sort.Slice(prints, func(i, j int) bool { return prints[i].DistributedAt.Before(prints[j].DistributedAt) })
	return prints, nil
}

func (s *store) DeletePrintDistributionsByEvent(_ context.Context, eventID string) error {
	defer s.lock()()

	for id, pd := range s.db.data.prints {
		if pd.EventID == eventID {
			delete(s.db.data.prints, id)
		}
	}
	return nil
}

func (s *store) DeletePrintDistributionsByStudents(_ context.Context, studentIDs ...string) error {
	defer s.lock()()

	ids := toSet(studentIDs)
	for id, pd := range s.db.data.prints {
		if _, ok := ids[pd.StudentID]; ok {
			delete(s.db.data.prints, id)
		}
	}
	return nil
}
