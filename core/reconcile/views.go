package reconcile

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/shopspring/decimal"

	"github.com/trezcool/classfund/core"
	"github.com/trezcool/classfund/core/balance"
	"github.com/trezcool/classfund/core/ledger"
)

const (
	minLookupLen     = 2
	maxSuggestions   = 3
	suggestionCutoff = 0.6
)

var errShortQuery = core.NewValidationError(nil, core.FieldError{Field: "q", Error: "enter at least 2 characters of a name or roll number"})

type (
	EventLine struct {
		EventID   string               `json:"event_id"`
		EventName string               `json:"event_name"`
		Category  ledger.EventCategory `json:"category"`
		Deadline  time.Time            `json:"deadline"`
		balance.Balance
	}

	Statement struct {
		Student      ledger.Student  `json:"student"`
		Events       []EventLine     `json:"events"`
		Payments     []RealPayment   `json:"payments"`
		TotalDue     decimal.Decimal `json:"total_due"`
		TotalPaid    decimal.Decimal `json:"total_paid"`
		TotalPending decimal.Decimal `json:"total_pending"`
	}

	PayableStudent struct {
		StudentID string          `json:"student_id"`
		Name      string          `json:"name"`
		RollNo    string          `json:"roll_no"`
		Remaining decimal.Decimal `json:"remaining"`
	}

	PayPage struct {
		Event    ledger.Event     `json:"event"`
		Students []PayableStudent `json:"students"`
	}

	LookupEntry struct {
		StudentID string      `json:"student_id"`
		Name      string      `json:"name"`
		RollNo    string      `json:"roll_no"`
		Class     string      `json:"class"`
		Events    []EventLine `json:"events"`
	}

	LookupResult struct {
		Query       string        `json:"query"`
		Results     []LookupEntry `json:"results"`
		Suggestions []string      `json:"suggestions,omitempty"`
	}

	PrintStatus struct {
		StudentID     string         `json:"student_id"`
		Name          string         `json:"name"`
		RollNo        string         `json:"roll_no"`
		Distributed   bool           `json:"distributed"`
		DistributedAt *time.Time     `json:"distributed_at,omitempty"`
		PaymentStatus balance.Status `json:"payment_status"`
	}
)

func eventLine(evt ledger.Event, studentID string, payments []ledger.Payment) EventLine {
	return EventLine{
		EventID:   evt.ID,
		EventName: evt.Name,
		Category:  evt.Category,
		Deadline:  evt.Deadline,
		Balance:   balance.ForStudent(evt, studentID, payments),
	}
}

// eventLines returns one line per event the student takes part in or has a Paid payment toward, in events order.
func eventLines(events []ledger.Event, studentID string, payments []ledger.Payment) []EventLine {
	paidToward := make(map[string]bool)
	for _, p := range payments {
		if p.Status == ledger.StatusPaid {
			paidToward[p.EventID] = true
		}
	}
	lines := make([]EventLine, 0, len(events))
	for _, evt := range events {
		if evt.HasParticipant(studentID) || paidToward[evt.ID] {
			lines = append(lines, eventLine(evt, studentID, payments))
		}
	}
	return lines
}

// StudentStatement returns every balance and payment of the student.
func (e *Engine) StudentStatement(ctx context.Context, studentID string) (Statement, error) {
	std, err := e.store.GetStudent(ctx, studentID)
	if err != nil {
		return Statement{}, core.StoreError(err, "getting student")
	}
	events, err := e.store.QueryEvents(ctx, ledger.EventFilter{})
	if err != nil {
		return Statement{}, core.StoreError(err, "querying events")
	}
	payments, err := e.store.QueryPayments(ctx, ledger.PaymentFilter{StudentID: std.ID})
	if err != nil {
		return Statement{}, core.StoreError(err, "querying payments")
	}

	stmt := Statement{
		Student:      std,
		Events:       eventLines(events, std.ID, payments),
		Payments:     make([]RealPayment, 0, len(payments)),
		TotalDue:     decimal.Zero,
		TotalPaid:    decimal.Zero,
		TotalPending: decimal.Zero,
	}
	for _, line := range stmt.Events {
		stmt.TotalDue = stmt.TotalDue.Add(line.Cost)
		stmt.TotalPaid = stmt.TotalPaid.Add(line.TotalPaid)
		stmt.TotalPending = stmt.TotalPending.Add(line.Pending)
	}

	names := make(map[string]string, len(events))
	for _, evt := range events {
		names[evt.ID] = evt.Name
	}
	for _, p := range payments {
		stmt.Payments = append(stmt.Payments, RealPayment{Payment: p, StudentName: std.Name, RollNo: std.RollNo, EventName: names[p.EventID]})
	}
	return stmt, nil
}

// PayPage returns a published event with the participants that still owe money.
// Draft events are reported as not found.
func (e *Engine) PayPage(ctx context.Context, eventID string) (PayPage, error) {
	evt, err := e.store.GetEvent(ctx, eventID)
	if err != nil {
		return PayPage{}, core.StoreError(err, "getting event")
	}
	if evt.Status != ledger.EventPublished {
		return PayPage{}, ledger.ErrEventNotFound
	}
	payments, err := e.store.QueryPayments(ctx, ledger.PaymentFilter{EventID: evt.ID})
	if err != nil {
		return PayPage{}, core.StoreError(err, "querying payments")
	}

	page := PayPage{Event: evt, Students: make([]PayableStudent, 0, len(evt.ParticipantIDs))}
	if len(evt.ParticipantIDs) == 0 {
		return page, nil
	}
	students, err := e.store.QueryStudents(ctx, ledger.StudentFilter{IDs: evt.ParticipantIDs}, nil)
	if err != nil {
		return PayPage{}, core.StoreError(err, "querying students")
	}
	for _, std := range students {
		if bal := balance.ForStudent(evt, std.ID, payments); bal.Owes() {
			page.Students = append(page.Students, PayableStudent{
				StudentID: std.ID,
				Name:      std.Name,
				RollNo:    std.RollNo,
				Remaining: bal.Pending,
			})
		}
	}
	return page, nil
}

// PublicLookup finds students by name or roll number and reports their balances for published events.
// When nothing matches, close names are suggested instead.
func (e *Engine) PublicLookup(ctx context.Context, query string) (LookupResult, error) {
	query = core.CleanString(query)
	if len([]rune(query)) < minLookupLen {
		return LookupResult{}, errShortQuery
	}

	students, err := e.store.QueryStudents(ctx, ledger.StudentFilter{Search: query, Limit: e.conf.Lookup.Limit}, nil)
	if err != nil {
		return LookupResult{}, core.StoreError(err, "querying students")
	}
	res := LookupResult{Query: query, Results: make([]LookupEntry, 0, len(students))}
	if len(students) == 0 {
		if res.Suggestions, err = e.suggest(ctx, query); err != nil {
			return LookupResult{}, err
		}
		return res, nil
	}

	events, err := e.store.QueryEvents(ctx, ledger.EventFilter{Status: ledger.EventPublished})
	if err != nil {
		return LookupResult{}, core.StoreError(err, "querying events")
	}
	for _, std := range students {
		payments, err := e.store.QueryPayments(ctx, ledger.PaymentFilter{StudentID: std.ID})
		if err != nil {
			return LookupResult{}, core.StoreError(err, "querying payments")
		}
		res.Results = append(res.Results, LookupEntry{
			StudentID: std.ID,
			Name:      std.Name,
			RollNo:    std.RollNo,
			Class:     std.Class,
			Events:    eventLines(events, std.ID, payments),
		})
	}
	return res, nil
}

type suggestion struct {
	name  string
	ratio float64
}

func (e *Engine) suggest(ctx context.Context, query string) ([]string, error) {
	students, err := e.store.QueryStudents(ctx, ledger.StudentFilter{}, nil)
	if err != nil {
		return nil, core.StoreError(err, "querying students")
	}

	q := strings.Split(strings.ToLower(query), "")
	matcher := difflib.NewMatcher(nil, q) // b is cached, a varies
	seen := make(map[string]bool)
	var found []suggestion
	for _, std := range students {
		if seen[std.Name] {
			continue
		}
		seen[std.Name] = true
		matcher.SetSeq1(strings.Split(strings.ToLower(std.Name), ""))
		if ratio := matcher.Ratio(); ratio >= suggestionCutoff {
			found = append(found, suggestion{name: std.Name, ratio: ratio})
		}
	}
	sort.SliceStable(found, func(i, j int) bool {
		if found[i].ratio != found[j].ratio {
			return found[i].ratio > found[j].ratio
		}
		return found[i].name < found[j].name
	})

	names := make([]string, 0, maxSuggestions)
	for i := 0; i < len(found) && i < maxSuggestions; i++ {
		names = append(names, found[i].name)
	}
	return names, nil
}

// PrintDistributions lists the participants of a Print event with their distribution and payment state.
func (e *Engine) PrintDistributions(ctx context.Context, eventID string) ([]PrintStatus, error) {
	evt, err := e.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, core.StoreError(err, "getting event")
	}
	if evt.Category != ledger.CategoryPrint {
		return nil, errNotPrintEvent
	}
	dists, err := e.store.QueryPrintDistributions(ctx, evt.ID)
	if err != nil {
		return nil, core.StoreError(err, "querying print distributions")
	}
	payments, err := e.store.QueryPayments(ctx, ledger.PaymentFilter{EventID: evt.ID})
	if err != nil {
		return nil, core.StoreError(err, "querying payments")
	}

	byStudent := make(map[string]ledger.PrintDistribution, len(dists))
	for _, pd := range dists {
		byStudent[pd.StudentID] = pd
	}
	statuses := make([]PrintStatus, 0, len(evt.ParticipantIDs))
	if len(evt.ParticipantIDs) == 0 {
		return statuses, nil
	}
	students, err := e.store.QueryStudents(ctx, ledger.StudentFilter{IDs: evt.ParticipantIDs}, nil)
	if err != nil {
		return nil, core.StoreError(err, "querying students")
	}
	for _, std := range students {
		ps := PrintStatus{
			StudentID:     std.ID,
			Name:          std.Name,
			RollNo:        std.RollNo,
			PaymentStatus: balance.ForStudent(evt, std.ID, payments).Status,
		}
		if pd, ok := byStudent[std.ID]; ok {
			at := pd.DistributedAt
			ps.Distributed = true
			ps.DistributedAt = &at
		}
		statuses = append(statuses, ps)
	}
	return statuses, nil
}
