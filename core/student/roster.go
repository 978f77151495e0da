package student

import (
	"encoding/csv"
	"io"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/classfund/core"
)

var errUnsupportedRoster = core.NewValidationError(nil, core.FieldError{Field: "file", Error: "only .csv and .xlsx rosters are supported"})

// header aliases, lowercased with spaces and underscores removed
var headerAliases = map[string]string{
	"name":        "name",
	"studentname": "name",
	"rollno":      "roll_no",
	"rollnumber":  "roll_no",
	"roll":        "roll_no",
	"email":       "email",
	"class":       "class",
}

// ParseRoster reads the roster rows of a .csv or .xlsx file (first sheet).
func ParseRoster(r io.Reader, filename string) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		cr := csv.NewReader(r)
		cr.FieldsPerRecord = -1
		cr.TrimLeadingSpace = true
		rows, err := cr.ReadAll()
		if err != nil {
			return nil, core.NewValidationError(errors.Wrap(err, "reading csv roster"))
		}
		if len(rows) > 0 && len(rows[0]) > 0 {
			rows[0][0] = strings.TrimPrefix(rows[0][0], "\ufeff")
		}
		return rows, nil
	case ".xlsx":
		f, err := excelize.OpenReader(r)
		if err != nil {
			return nil, core.NewValidationError(errors.Wrap(err, "reading xlsx roster"))
		}
		defer func() { _ = f.Close() }()
		rows, err := f.GetRows(f.GetSheetName(0))
		if err != nil {
			return nil, core.NewValidationError(errors.Wrap(err, "reading xlsx roster"))
		}
		return rows, nil
	}
	return nil, errUnsupportedRoster
}

// headerIndex maps the canonical column names to their position in the header row.
func headerIndex(header []string) (map[string]int, error) {
	cols := map[string]int{"name": -1, "roll_no": -1, "email": -1, "class": -1}
	for i, h := range header {
		key := strings.NewReplacer(" ", "", "_", "", "-", "").Replace(core.CleanString(h, true /* lower */))
		if canon, ok := headerAliases[key]; ok && cols[canon] < 0 {
			cols[canon] = i
		}
	}
	if cols["name"] < 0 || cols["roll_no"] < 0 {
		return nil, core.NewValidationError(nil, core.FieldError{
			Field: "file",
			Error: "the roster header must contain at least the name and roll_no columns",
		})
	}
	return cols, nil
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
