// Package sqlxdb is the Postgres ledger.Store and user.Repository.
package sqlxdb

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/classfund/core/ledger"
	"github.com/trezcool/classfund/core/user"
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
	pqInvalidText         = "22P02"
)

// sentinels for the constraints the schema enforces
var constraintErrors = map[string]error{
	"student_roll_no_key":                  ledger.ErrRollNoExists,
	"payment_gateway_order_id_key":         ledger.ErrOrderExists,
	"print_distribution_student_event_key": ledger.ErrAlreadyDistributed,
	"payment_student_id_fkey":              ledger.ErrStudentNotFound,
	"payment_event_id_fkey":                ledger.ErrEventNotFound,
	"print_distribution_student_id_fkey":   ledger.ErrStudentNotFound,
	"print_distribution_event_id_fkey":     ledger.ErrEventNotFound,
	"event_participant_student_id_fkey":    ledger.ErrStudentNotFound,
	"event_participant_event_id_fkey":      ledger.ErrEventNotFound,
	"admin_user_email_key":                 user.ErrEmailExists,
}

type store struct {
	db  *sqlx.DB
	ext sqlx.ExtContext
	tx  *sqlx.Tx
}

var _ ledger.Store = (*store)(nil) // interface compliance check

func NewStore(db *sqlx.DB) ledger.Store {
	return &store{db: db, ext: db}
}

func newID() string {
	return uuid.New().String()
}

func (s *store) Tx(ctx context.Context, fn func(tx ledger.Store) error) error {
	return s.atomic(ctx, func(ts *store) error { return fn(ts) })
}

// atomic runs fn in the current transaction, or in a new one.
func (s *store) atomic(ctx context.Context, fn func(ts *store) error) error {
	if s.tx != nil {
		return fn(s)
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning tx")
	}
	if err = fn(&store{db: s.db, ext: tx, tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing tx")
}

// translate maps driver errors to ledger sentinels; notFound is returned for missing or malformed ids.
func translate(err error, notFound error, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) && notFound != nil {
		return notFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation, pqForeignKeyViolation:
			if sentinel, ok := constraintErrors[pqErr.Constraint]; ok {
				return sentinel
			}
		case pqInvalidText:
			if notFound != nil {
				return notFound
			}
		}
	}
	return errors.Wrap(err, msg)
}

// validIDs drops the ids Postgres could not parse as uuids; they cannot match any row.
func validIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			out = append(out, id)
		}
	}
	return out
}

func execAffected(ctx context.Context, ext sqlx.ExtContext, q string, args ...interface{}) (int64, error) {
	res, err := ext.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
