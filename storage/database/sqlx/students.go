package sqlxdb

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/trezcool/classfund/core"
	"github.com/trezcool/classfund/core/ledger"
)

const studentColumns = "id, name, roll_no, email, class, created_at, updated_at"

type studentRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	RollNo    string    `db:"roll_no"`
	Email     string    `db:"email"`
	Class     string    `db:"class"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r studentRow) toStudent() ledger.Student {
	return ledger.Student{
		ID:        r.ID,
		Name:      r.Name,
		RollNo:    r.RollNo,
		Email:     r.Email,
		Class:     r.Class,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func (s *store) CreateStudent(ctx context.Context, std ledger.Student) (ledger.Student, error) {
	std.ID = newID()
	_, err := s.ext.ExecContext(ctx,
		`INSERT INTO student (`+studentColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		std.ID, std.Name, std.RollNo, std.Email, std.Class, std.CreatedAt, std.UpdatedAt,
	)
	if err != nil {
		return ledger.Student{}, translate(err, nil, "inserting student")
	}
	return std, nil
}

func (s *store) GetStudent(ctx context.Context, id string) (ledger.Student, error) {
	var row studentRow
	err := sqlx.GetContext(ctx, s.ext, &row, `SELECT `+studentColumns+` FROM student WHERE id = $1`, id)
	if err != nil {
		return ledger.Student{}, translate(err, ledger.ErrStudentNotFound, "getting student")
	}
	return row.toStudent(), nil
}

func (s *store) GetStudentByRollNo(ctx context.Context, rollNo string) (ledger.Student, error) {
	var row studentRow
	err := sqlx.GetContext(ctx, s.ext, &row, `SELECT `+studentColumns+` FROM student WHERE lower(roll_no) = lower($1)`, rollNo)
	if err != nil {
		return ledger.Student{}, translate(err, ledger.ErrStudentNotFound, "getting student by roll number")
	}
	return row.toStudent(), nil
}

// escapeLike escapes the LIKE wildcards in s.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func studentOrderBy(ordering []core.DBOrdering) string {
	ordering = core.FilterOrderings(ordering, ledger.StudentOrderingFields...)
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "roll_no", Ascending: true}}
	}
	terms := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		if ord.Field == "name" {
			ord.Field = "lower(name)"
		}
		terms = append(terms, ord.String())
	}
	return strings.Join(append(terms, "id ASC"), ", ")
}

func (s *store) QueryStudents(ctx context.Context, filter ledger.StudentFilter, ordering []core.DBOrdering) ([]ledger.Student, error) {
	var (
		where []string
		args  []interface{}
	)
	if len(filter.IDs) > 0 {
		args = append(args, pq.Array(validIDs(filter.IDs)))
		where = append(where, "id = ANY($"+strconv.Itoa(len(args))+"::uuid[])")
	}
	if filter.Search != "" {
		args = append(args, "%"+escapeLike(filter.Search)+"%")
		n := strconv.Itoa(len(args))
		where = append(where, "(name ILIKE $"+n+" OR roll_no ILIKE $"+n+")")
	}

	q := `SELECT ` + studentColumns + ` FROM student`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY " + studentOrderBy(ordering)
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		q += " LIMIT $" + strconv.Itoa(len(args))
	}

	var rows []studentRow
	if err := sqlx.SelectContext(ctx, s.ext, &rows, q, args...); err != nil {
		return nil, translate(err, nil, "querying students")
	}
	students := make([]ledger.Student, 0, len(rows))
	for _, r := range rows {
		students = append(students, r.toStudent())
	}
	return students, nil
}

// DeleteStudents also drops their participant links (ON DELETE CASCADE).
func (s *store) DeleteStudents(ctx context.Context, ids ...string) error {
	_, err := s.ext.ExecContext(ctx, `DELETE FROM student WHERE id = ANY($1::uuid[])`, pq.Array(validIDs(ids)))
	return translate(err, nil, "deleting students")
}
