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

const eventColumns = "id, name, description, cost, deadline, category, status, payment_options, qr_code_url, created_at, updated_at"

type eventRow struct {
	ID             string          `db:"id"`
	Name           string          `db:"name"`
	Description    string          `db:"description"`
	Cost           decimal.Decimal `db:"cost"`
	Deadline       null.Time       `db:"deadline"` // drafts may have none
	Category       string          `db:"category"`
	Status         string          `db:"status"`
	PaymentOptions pq.StringArray  `db:"payment_options"`
	QRCodeURL      string          `db:"qr_code_url"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

type participantRow struct {
	EventID   string `db:"event_id"`
	StudentID string `db:"student_id"`
}

func (r eventRow) toEvent(participants []string) ledger.Event {
	opts := make([]ledger.PaymentMethod, 0, len(r.PaymentOptions))
	for _, o := range r.PaymentOptions {
		opts = append(opts, ledger.PaymentMethod(o))
	}
	if participants == nil {
		participants = make([]string, 0)
	}
	return ledger.Event{
		ID:             r.ID,
		Name:           r.Name,
		Description:    r.Description,
		Cost:           r.Cost,
		Deadline:       r.Deadline.Time,
		Category:       ledger.EventCategory(r.Category),
		Status:         ledger.EventStatus(r.Status),
		PaymentOptions: opts,
		QRCodeURL:      r.QRCodeURL,
		ParticipantIDs: participants,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func eventArgs(evt ledger.Event) []interface{} {
	opts := make(pq.StringArray, 0, len(evt.PaymentOptions))
	for _, o := range evt.PaymentOptions {
		opts = append(opts, string(o))
	}
	return []interface{}{
		evt.ID, evt.Name, evt.Description, evt.Cost, null.NewTime(evt.Deadline, !evt.Deadline.IsZero()),
		string(evt.Category), string(evt.Status), opts, evt.QRCodeURL, evt.CreatedAt, evt.UpdatedAt,
	}
}

// setParticipants replaces the participant links of an event.
func (s *store) setParticipants(ctx context.Context, eventID string, studentIDs []string) error {
	if _, err := s.ext.ExecContext(ctx, `DELETE FROM event_participant WHERE event_id = $1`, eventID); err != nil {
		return translate(err, nil, "clearing participants")
	}
	for _, id := range studentIDs {
		_, err := s.ext.ExecContext(ctx,
			`INSERT INTO event_participant (event_id, student_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, eventID, id)
		if err != nil {
			return translate(err, ledger.ErrStudentNotFound, "linking participant")
		}
	}
	return nil
}

// participants returns the sorted participant ids of each event.
func (s *store) participants(ctx context.Context, eventIDs []string) (map[string][]string, error) {
	byEvent := make(map[string][]string, len(eventIDs))
	if len(eventIDs) == 0 {
		return byEvent, nil
	}
	var rows []participantRow
	err := sqlx.SelectContext(ctx, s.ext, &rows,
		`SELECT event_id, student_id FROM event_participant WHERE event_id = ANY($1::uuid[]) ORDER BY student_id`,
		pq.Array(eventIDs),
	)
	if err != nil {
		return nil, translate(err, nil, "querying participants")
	}
	for _, r := range rows {
		byEvent[r.EventID] = append(byEvent[r.EventID], r.StudentID)
	}
	return byEvent, nil
}

func (s *store) CreateEvent(ctx context.Context, evt ledger.Event) (ledger.Event, error) {
	evt.ID = newID()
	err := s.atomic(ctx, func(ts *store) error {
		_, err := ts.ext.ExecContext(ctx,
			`INSERT INTO event (`+eventColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			eventArgs(evt)...,
		)
		if err != nil {
			return translate(err, nil, "inserting event")
		}
		if err = ts.setParticipants(ctx, evt.ID, evt.ParticipantIDs); err != nil {
			return err
		}
		evt, err = ts.GetEvent(ctx, evt.ID)
		return err
	})
	if err != nil {
		return ledger.Event{}, err
	}
	return evt, nil
}

func (s *store) UpdateEvent(ctx context.Context, evt ledger.Event) (ledger.Event, error) {
	err := s.atomic(ctx, func(ts *store) error {
		args := eventArgs(evt)
		args = append(args[:9], evt.UpdatedAt) // created_at is immutable
		n, err := execAffected(ctx, ts.ext,
			`UPDATE event SET name = $2, description = $3, cost = $4, deadline = $5, category = $6, status = $7,
			payment_options = $8, qr_code_url = $9, updated_at = $10 WHERE id = $1`,
			args...,
		)
		if err != nil {
			return translate(err, ledger.ErrEventNotFound, "updating event")
		}
		if n == 0 {
			return ledger.ErrEventNotFound
		}
		if err = ts.setParticipants(ctx, evt.ID, evt.ParticipantIDs); err != nil {
			return err
		}
		evt, err = ts.GetEvent(ctx, evt.ID)
		return err
	})
	if err != nil {
		return ledger.Event{}, err
	}
	return evt, nil
}

func (s *store) GetEvent(ctx context.Context, id string) (ledger.Event, error) {
	var row eventRow
	if err := sqlx.GetContext(ctx, s.ext, &row, `SELECT `+eventColumns+` FROM event WHERE id = $1`, id); err != nil {
		return ledger.Event{}, translate(err, ledger.ErrEventNotFound, "getting event")
	}
	ptcp, err := s.participants(ctx, []string{row.ID})
	if err != nil {
		return ledger.Event{}, err
	}
	return row.toEvent(ptcp[row.ID]), nil
}

func (s *store) QueryEvents(ctx context.Context, filter ledger.EventFilter) ([]ledger.Event, error) {
	var (
		where []string
		args  []interface{}
	)
	if len(filter.IDs) > 0 {
		args = append(args, pq.Array(validIDs(filter.IDs)))
		where = append(where, "id = ANY($"+strconv.Itoa(len(args))+"::uuid[])")
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, "status = $"+strconv.Itoa(len(args)))
	}
	if filter.Category != "" {
		args = append(args, string(filter.Category))
		where = append(where, "category = $"+strconv.Itoa(len(args)))
	}

	q := `SELECT ` + eventColumns + ` FROM event`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC, id ASC"

	var rows []eventRow
	if err := sqlx.SelectContext(ctx, s.ext, &rows, q, args...); err != nil {
		return nil, translate(err, nil, "querying events")
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	ptcp, err := s.participants(ctx, ids)
	if err != nil {
		return nil, err
	}
	events := make([]ledger.Event, 0, len(rows))
	for _, r := range rows {
		events = append(events, r.toEvent(ptcp[r.ID]))
	}
	return events, nil
}

// DeleteEvent also drops its participant links (ON DELETE CASCADE).
func (s *store) DeleteEvent(ctx context.Context, id string) error {
	n, err := execAffected(ctx, s.ext, `DELETE FROM event WHERE id = $1`, id)
	if err != nil {
		return translate(err, ledger.ErrEventNotFound, "deleting event")
	}
	if n == 0 {
		return ledger.ErrEventNotFound
	}
	return nil
}
