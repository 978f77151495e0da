package echoapi

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/classfund/core/report"
)

const (
	mimeCSV  = "text/csv; charset=utf-8"
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type reportApi struct {
	svc *report.Service
}

func registerReportAPI(g *echo.Group, deps ServerDeps) {
	api := reportApi{svc: deps.Reports}

	rg := g.Group("/reports")
	rg.GET("/overview", api.overview)
	rg.GET("/transactions", api.transactions)
	rg.GET("/events/:id", api.event)
	rg.GET("/students/:id", api.student)
	rg.GET("/summary/events", api.byEvent)
	rg.GET("/summary/students", api.byStudent)
}

// Handlers

func (api *reportApi) overview(ctx echo.Context) error {
	overviews, err := api.svc.EventOverviews(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "building event overviews")
	}
	if overviews == nil {
		overviews = []report.EventOverview{}
	}
	return ctx.JSON(http.StatusOK, overviews)
}

func (api *reportApi) transactions(ctx echo.Context) error {
	var rq ReportQuery
	if err := rq.Bind(ctx); err != nil {
		return err
	}

	rep, err := api.svc.Transactions(ctx.Request().Context(), rq.Filter)
	if err != nil {
		return errors.Wrap(err, "building transactions report")
	}
	if rep.Rows == nil {
		rep.Rows = []report.TransactionRow{}
	}
	return respond(ctx, rq.Format, "transactions_report", rep, rep.Table)
}

func (api *reportApi) event(ctx echo.Context) error {
	var rq ReportQuery
	if err := rq.Bind(ctx); err != nil {
		return err
	}

	rep, err := api.svc.EventReport(ctx.Request().Context(), ctx.Param("id"), rq.Filter)
	if err != nil {
		return errors.Wrap(err, "building event report")
	}
	return respond(ctx, rq.Format, "event_report", rep, rep.Table)
}

func (api *reportApi) student(ctx echo.Context) error {
	format, err := bindFormat(ctx)
	if err != nil {
		return formatError(err)
	}

	rep, err := api.svc.StudentReport(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "building student report")
	}
	return respond(ctx, format, "student_report", rep, rep.Table)
}

func (api *reportApi) byEvent(ctx echo.Context) error {
	var rq ReportQuery
	if err := rq.Bind(ctx); err != nil {
		return err
	}

	groups, err := api.svc.ByEvent(ctx.Request().Context(), rq.Filter)
	if err != nil {
		return errors.Wrap(err, "summarizing payments by event")
	}
	return respond(ctx, rq.Format, "event_summary", groups, func() report.Table {
		return report.GroupsTable("Event Name", groups)
	})
}

func (api *reportApi) byStudent(ctx echo.Context) error {
	var rq ReportQuery
	if err := rq.Bind(ctx); err != nil {
		return err
	}

	groups, err := api.svc.ByStudent(ctx.Request().Context(), rq.Filter)
	if err != nil {
		return errors.Wrap(err, "summarizing payments by student")
	}
	return respond(ctx, rq.Format, "student_summary", groups, func() report.Table {
		return report.GroupsTable("Student Name", groups)
	})
}

// respond writes obj as JSON, or its table as a CSV or XLSX attachment.
func respond(ctx echo.Context, format, name string, obj interface{}, table func() report.Table) error {
	var (
		buf  bytes.Buffer
		mime string
		err  error
	)
	switch format {
	case formatCSV:
		mime = mimeCSV
		err = report.WriteCSV(&buf, table())
	case formatXLSX:
		mime = mimeXLSX
		err = report.WriteXLSX(&buf, table())
	default:
		return ctx.JSON(http.StatusOK, obj)
	}
	if err != nil {
		return errors.Wrapf(err, "exporting %s as %s", name, format)
	}

	filename := fmt.Sprintf("%s_%s.%s", name, time.Now().Format(dateLayout), format)
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return ctx.Blob(http.StatusOK, mime, buf.Bytes())
}
