package student

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/classfund/core"
	"github.com/trezcool/classfund/core/ledger"
)

var NowFunc = time.Now // mockable

type (
	NewStudent struct {
		Name   string `json:"name" validate:"required,max=200"`
		RollNo string `json:"roll_no" validate:"required,max=50,rollno"`
		Email  string `json:"email" validate:"omitempty,email"`
		Class  string `json:"class" validate:"max=50"`
	}

	RowError struct {
		Row    int    `json:"row"`
		RollNo string `json:"roll_no,omitempty"`
		Error  string `json:"error"`
	}

	ImportResult struct {
		Success int        `json:"success"`
		Failed  int        `json:"failed"`
		Errors  []RowError `json:"errors"`
	}

	Service struct {
		store    ledger.Store
		validate *validator.Validate
		logger   core.Logger
	}
)

func NewService(store ledger.Store, validate *validator.Validate, logger core.Logger) *Service {
	return &Service{store: store, validate: validate, logger: logger}
}

func (ns *NewStudent) Clean() {
	ns.Name = core.CleanString(ns.Name)
	ns.RollNo = core.CleanString(ns.RollNo)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	ns.Class = core.CleanString(ns.Class)
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.Clean()
	return validate.Struct(ns)
}

func (svc *Service) Create(ctx context.Context, ns NewStudent) (ledger.Student, error) {
	if err := ns.Validate(svc.validate); err != nil {
		return ledger.Student{}, err
	}
	now := NowFunc().UTC()
	std, err := svc.store.CreateStudent(ctx, ledger.Student{
		Name:      ns.Name,
		RollNo:    ns.RollNo,
		Email:     ns.Email,
		Class:     ns.Class,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return ledger.Student{}, core.StoreError(err, "creating student")
	}
	return std, nil
}

// Import creates one student per roster row. rows[0] must be the header (name, roll_no, email, class).
// Bad or duplicate rows are reported and skipped; they never abort the whole import.
func (svc *Service) Import(ctx context.Context, rows [][]string) (ImportResult, error) {
	res := ImportResult{Errors: make([]RowError, 0)}
	if len(rows) == 0 {
		return res, core.NewValidationError(nil, core.FieldError{Field: "file", Error: "the roster is empty"})
	}
	cols, err := headerIndex(rows[0])
	if err != nil {
		return res, err
	}

	seen := make(map[string]bool, len(rows))
	for i, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		rowNum := i + 2 // 1-based, after the header
		ns := NewStudent{
			Name:   cell(row, cols["name"]),
			RollNo: cell(row, cols["roll_no"]),
			Email:  cell(row, cols["email"]),
			Class:  cell(row, cols["class"]),
		}
		fail := func(msg string) {
			res.Failed++
			res.Errors = append(res.Errors, RowError{Row: rowNum, RollNo: ns.RollNo, Error: msg})
		}

		if err := ns.Validate(svc.validate); err != nil {
			fail(validationSummary(err))
			continue
		}
		key := strings.ToLower(ns.RollNo)
		if seen[key] {
			fail(ledger.ErrRollNoExists.Error())
			continue
		}
		seen[key] = true

		if _, err := svc.Create(ctx, ns); err != nil {
			if core.KindOf(err) == core.KindStoreFailure {
				return res, err
			}
			fail(err.Error())
			continue
		}
		res.Success++
	}

	svc.logger.Info(fmt.Sprintf("student import: %d created, %d failed", res.Success, res.Failed))
	return res, nil
}

func (svc *Service) Get(ctx context.Context, id string) (ledger.Student, error) {
	std, err := svc.store.GetStudent(ctx, id)
	return std, core.StoreError(err, "getting student")
}

func (svc *Service) Query(ctx context.Context, filter ledger.StudentFilter, ordering []core.DBOrdering) ([]ledger.Student, error) {
	filter.Search = core.CleanString(filter.Search)
	students, err := svc.store.QueryStudents(ctx, filter, ordering)
	return students, core.StoreError(err, "querying students")
}

// Delete removes the students together with their payments, print distributions and event enrolments.
func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	err := svc.store.Tx(ctx, func(tx ledger.Store) error {
		for _, id := range ids {
			if _, err := tx.GetStudent(ctx, id); err != nil {
				return err
			}
		}
		if err := tx.DeletePrintDistributionsByStudents(ctx, ids...); err != nil {
			return err
		}
		if err := tx.DeletePaymentsByStudents(ctx, ids...); err != nil {
			return err
		}
		return tx.DeleteStudents(ctx, ids...)
	})
	return core.StoreError(err, "deleting students")
}

func validationSummary(err error) string {
	if vErrs, ok := err.(validator.ValidationErrors); ok && len(vErrs) > 0 {
		msgs := make([]string, 0, len(vErrs))
		for _, fe := range vErrs {
			msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Field(), fe.Tag()))
		}
		return strings.Join(msgs, "; ")
	}
	return err.Error()
}
