package echoapi

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/classfund/core"
	"github.com/trezcool/classfund/core/ledger"
	"github.com/trezcool/classfund/core/report"
)

const (
	orderingParam = "ordering"
	dateLayout    = "2006-01-02"

	formatJSON = "json"
	formatCSV  = "csv"
	formatXLSX = "xlsx"
)

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// ReportQuery holds the report filters and the requested output format.
// e.g. `?date_from=2024-01-01&date_to=2024-01-31&status=Paid&method=Cash&method=QR&format=csv`
type ReportQuery struct {
	Filter report.Filter
	Format string
}

func (rq *ReportQuery) Bind(ctx echo.Context) error {
	data := ctx.QueryParams()
	var flds []core.FieldError

	rq.Filter.EventID = data.Get("event_id")
	rq.Filter.StudentID = data.Get("student_id")

	from, err := parseDate(data.Get("date_from"), false)
	if err != nil {
		flds = append(flds, core.FieldError{Field: "date_from", Error: err.Error()})
	}
	to, err := parseDate(data.Get("date_to"), true)
	if err != nil {
		flds = append(flds, core.FieldError{Field: "date_to", Error: err.Error()})
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		flds = append(flds, core.FieldError{Field: "date_to", Error: "must not be before date_from"})
	}
	rq.Filter.DateFrom, rq.Filter.DateTo = from, to

	for _, s := range multi(data, "status") {
		st := ledger.PaymentStatus(s)
		if !st.Valid() {
			flds = append(flds, core.FieldError{Field: "status", Error: "unknown payment status " + strconv.Quote(s)})
			continue
		}
		rq.Filter.Statuses = append(rq.Filter.Statuses, st)
	}
	for _, m := range multi(data, "method") {
		pm := ledger.PaymentMethod(m)
		if !pm.Valid() {
			flds = append(flds, core.FieldError{Field: "method", Error: "unknown payment method " + strconv.Quote(m)})
			continue
		}
		rq.Filter.Methods = append(rq.Filter.Methods, pm)
	}

	rq.Format, err = bindFormat(ctx)
	if err != nil {
		flds = append(flds, core.FieldError{Field: "format", Error: err.Error()})
	}

	if len(flds) > 0 {
		return core.NewValidationError(nil, flds...)
	}
	return nil
}

func bindFormat(ctx echo.Context) (string, error) {
	switch f := strings.ToLower(ctx.QueryParam("format")); f {
	case "", formatJSON:
		return formatJSON, nil
	case formatCSV, formatXLSX:
		return f, nil
	default:
		return "", errUnknownFormat
	}
}

func formatError(err error) error {
	return core.NewValidationError(nil, core.FieldError{Field: "format", Error: err.Error()})
}

// multi accepts both repeated params and comma separated values.
func multi(data url.Values, key string) []string {
	var vals []string
	for _, v := range data[key] {
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				vals = append(vals, s)
			}
		}
	}
	return vals
}

// parseDate accepts RFC3339 timestamps or plain dates; a plain upper bound covers the whole day.
func parseDate(s string, endOfDay bool) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, errBadDate
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

func queryLimit(ctx echo.Context) int {
	n, err := strconv.Atoi(ctx.QueryParam("limit"))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
