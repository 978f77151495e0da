package report

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	bom           = "\ufeff"
	summaryMarker = "=== SUMMARY ==="
	dataMarker    = "=== REPORT DATA ==="
	noDataMessage = "No data available for the selected range."
	dateLayout    = "2006-01-02"
	notApplicable = "N/A"
	summarySheet  = "Summary"
	reportSheet   = "Report"
	defaultSheet  = "Sheet1"
)

type (
	Field struct {
		Label string
		Value string
	}

	// Table is the export form of a report: an optional summary block and the tabular data.
	Table struct {
		Summary []Field
		Header  []string
		Rows    [][]string
	}
)

func money(d decimal.Decimal) string { return d.StringFixed(2) }

func orNA(s string) string {
	if s == "" {
		return notApplicable
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func (s Summary) Fields() []Field {
	return []Field{
		{"Total Transactions", strconv.Itoa(s.TotalTransactions)},
		{"Total Amount", money(s.TotalAmount)},
		{"Paid Amount", money(s.PaidAmount)},
		{"Pending Amount", money(s.PendingAmount)},
		{"Paid Count", strconv.Itoa(s.PaidCount)},
		{"Pending Count", strconv.Itoa(s.PendingCount)},
	}
}

func (r TransactionReport) Table() Table {
	t := Table{
		Summary: r.Summary.Fields(),
		Header: []string{
			"Transaction ID", "Student Name", "Roll Number", "Email", "Event Name", "Amount", "Payment Date",
			"Payment Method", "Status", "Transaction Reference", "Manual Entry", "Recorded By", "Receipt Number", "Notes",
		},
		Rows: make([][]string, 0, len(r.Rows)),
	}
	for _, row := range r.Rows {
		t.Rows = append(t.Rows, []string{
			row.PaymentID, row.StudentName, row.RollNo, row.Email, row.EventName, money(row.Amount),
			row.PaymentDate.Format(dateLayout), string(row.Method), string(row.Status), orNA(row.TransactionID),
			yesNo(row.IsManualEntry), orNA(row.RecordedBy), orNA(row.ReceiptNumber), orNA(row.Notes),
		})
	}
	return t
}

func (r EventReport) Table() Table {
	t := Table{
		Summary: []Field{
			{"Event", r.Event.Name},
			{"Cost", money(r.Event.Cost)},
			{"Deadline", r.Event.Deadline.Format(dateLayout)},
			{"Participants", strconv.Itoa(r.Participants)},
			{"Expected", money(r.Expected)},
			{"Collected", money(r.Collected)},
			{"Pending", money(r.Pending)},
			{"Completion", strconv.FormatFloat(r.Completion, 'f', 1, 64) + "%"},
		},
		Header: []string{"Student Name", "Roll Number", "Cost", "Total Paid", "Pending Amount", "Status"},
		Rows:   make([][]string, 0, len(r.Rows)),
	}
	for _, row := range r.Rows {
		t.Rows = append(t.Rows, []string{
			row.Name, row.RollNo, money(row.Cost), money(row.TotalPaid), money(row.Pending), string(row.Status),
		})
	}
	return t
}

func (r StudentReport) Table() Table {
	t := Table{
		Summary: append([]Field{
			{"Student", r.Student.Name},
			{"Roll Number", r.Student.RollNo},
			{"Class", r.Student.Class},
			{"Total Due", money(r.TotalDue)},
			{"Total Paid", money(r.TotalPaid)},
			{"Total Pending", money(r.TotalPending)},
		}, r.Summary.Fields()...),
		Header: []string{"Event Name", "Amount", "Payment Date", "Payment Method", "Status", "Transaction ID", "Receipt Number"},
		Rows:   make([][]string, 0, len(r.Payments)),
	}
	for _, p := range r.Payments {
		t.Rows = append(t.Rows, []string{
			p.EventName, money(p.Amount), p.PaymentDate.Format(dateLayout), string(p.Method), string(p.Status),
			orNA(p.Payment.TransactionID), orNA(p.ReceiptNumber),
		})
	}
	return t
}

// GroupsTable exports grouped summaries; keyLabel names the group column (e.g. "Event Name").
func GroupsTable(keyLabel string, groups []Group) Table {
	total := emptySummary()
	t := Table{
		Header: []string{keyLabel, "Total Transactions", "Total Amount", "Paid Amount", "Pending Amount", "Paid Count", "Pending Count"},
		Rows:   make([][]string, 0, len(groups)),
	}
	for _, g := range groups {
		total = total.Merge(g.Summary)
		t.Rows = append(t.Rows, []string{
			orNA(g.Name), strconv.Itoa(g.TotalTransactions), money(g.TotalAmount), money(g.PaidAmount),
			money(g.PendingAmount), strconv.Itoa(g.PaidCount), strconv.Itoa(g.PendingCount),
		})
	}
	t.Summary = total.Fields()
	return t
}

// WriteCSV writes t as UTF-8 CSV with a BOM, so spreadsheet apps detect the encoding.
// The summary block, when present, is framed by the SUMMARY and REPORT DATA markers.
func WriteCSV(w io.Writer, t Table) error {
	if _, err := io.WriteString(w, bom); err != nil {
		return errors.Wrap(err, "writing csv")
	}
	cw := csv.NewWriter(w)
	if len(t.Summary) > 0 {
		records := make([][]string, 0, len(t.Summary)+4)
		records = append(records, []string{summaryMarker, ""})
		for _, f := range t.Summary {
			records = append(records, []string{f.Label, f.Value})
		}
		records = append(records, []string{"", ""}, []string{dataMarker, ""})
		for _, rec := range records {
			if err := cw.Write(rec); err != nil {
				return errors.Wrap(err, "writing csv summary")
			}
		}
		cw.Flush()
		if _, err := io.WriteString(w, "\n"); err != nil {
			return errors.Wrap(err, "writing csv")
		}
	}

	if len(t.Rows) == 0 {
		cw.Flush()
		_, err := io.WriteString(w, noDataMessage)
		return errors.Wrap(err, "writing csv")
	}
	if err := cw.Write(t.Header); err != nil {
		return errors.Wrap(err, "writing csv header")
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return errors.Wrap(err, "writing csv rows")
	}
	return nil
}

// WriteXLSX writes t as a workbook with a Summary sheet and a Report sheet.
func WriteXLSX(w io.Writer, t Table) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(defaultSheet, summarySheet); err != nil {
		return errors.Wrap(err, "naming summary sheet")
	}
	for i, fld := range t.Summary {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &[]interface{}{fld.Label, fld.Value}); err != nil {
			return errors.Wrap(err, "writing summary row")
		}
	}
	if err := f.SetColWidth(summarySheet, "A", "B", 24); err != nil {
		return errors.Wrap(err, "sizing summary columns")
	}

	idx, err := f.NewSheet(reportSheet)
	if err != nil {
		return errors.Wrap(err, "creating report sheet")
	}
	if len(t.Rows) == 0 {
		if err = f.SetCellValue(reportSheet, "A1", noDataMessage); err != nil {
			return errors.Wrap(err, "writing report sheet")
		}
	} else {
		rows := append([][]string{t.Header}, t.Rows...)
		for i, row := range rows {
			cell, _ := excelize.CoordinatesToCellName(1, i+1)
			values := make([]interface{}, len(row))
			for j, v := range row {
				values[j] = v
			}
			if err = f.SetSheetRow(reportSheet, cell, &values); err != nil {
				return errors.Wrap(err, "writing report row")
			}
		}
		if err = f.SetPanes(reportSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
			return errors.Wrap(err, "freezing report header")
		}
	}
	f.SetActiveSheet(idx)

	return errors.Wrap(f.Write(w), "writing xlsx")
}
