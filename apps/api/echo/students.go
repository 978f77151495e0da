package echoapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/classfund/core"
	"github.com/trezcool/classfund/core/ledger"
	"github.com/trezcool/classfund/core/reconcile"
	"github.com/trezcool/classfund/core/student"
)

const rosterField = "file"

var errRosterMissing = core.NewValidationError(nil, core.FieldError{Field: rosterField, Error: "a .csv or .xlsx roster is required"})

type studentApi struct {
	svc    *student.Service
	engine *reconcile.Engine
	logger core.Logger
}

// DeleteStudents is the body of a bulk delete.
type DeleteStudents struct {
	IDs []string `json:"ids"`
}

func registerStudentAPI(g *echo.Group, deps ServerDeps) {
	api := studentApi{
		svc:    deps.Students,
		engine: deps.Engine,
		logger: deps.Logger,
	}

	sg := g.Group("/students")
	sg.GET("", api.query)
	sg.POST("", api.create)
	sg.POST("/import", api.importRoster)
	sg.DELETE("", api.destroyMultiple)

	// detail endpoints
	sg.GET("/:id", api.retrieve)
	sg.DELETE("/:id", api.destroy)
	sg.GET("/:id/statement", api.statement)
}

// Handlers

func (api *studentApi) create(ctx echo.Context) error {
	var data student.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}

	std, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating student")
	}
	return ctx.JSON(http.StatusCreated, std)
}

func (api *studentApi) importRoster(ctx echo.Context) error {
	fh, err := ctx.FormFile(rosterField)
	if err != nil {
		return errRosterMissing
	}
	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening roster")
	}
	defer f.Close()

	rows, err := student.ParseRoster(f, fh.Filename)
	if err != nil {
		return err
	}
	res, err := api.svc.Import(ctx.Request().Context(), rows)
	if err != nil {
		return errors.Wrap(err, "importing roster")
	}
	if res.Errors == nil {
		res.Errors = []student.RowError{}
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *studentApi) query(ctx echo.Context) error {
	filter := ledger.StudentFilter{
		Search: strings.TrimSpace(ctx.QueryParam("search")),
		Limit:  queryLimit(ctx),
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	students, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	if students == nil {
		students = []ledger.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *studentApi) retrieve(ctx echo.Context) error {
	std, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting student")
	}
	return ctx.JSON(http.StatusOK, std)
}

func (api *studentApi) statement(ctx echo.Context) error {
	stmt, err := api.engine.StudentStatement(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "building student statement")
	}
	return ctx.JSON(http.StatusOK, stmt)
}

func (api *studentApi) destroy(ctx echo.Context) error {
	id := ctx.Param("id")
	if err := api.svc.Delete(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting student")
	}
	api.logger.Info("student "+id+" deleted", contextActor(ctx))
	return ctx.NoContent(http.StatusNoContent)
}

func (api *studentApi) destroyMultiple(ctx echo.Context) error {
	var data DeleteStudents
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to DeleteStudents")
	}
	if len(data.IDs) == 0 {
		return core.NewValidationError(nil, core.FieldError{Field: "ids", Error: "this field is required"})
	}
	if err := api.svc.Delete(ctx.Request().Context(), data.IDs...); err != nil {
		return errors.Wrap(err, "deleting students")
	}
	api.logger.Info(strings.Join(data.IDs, ", ")+": students deleted", contextActor(ctx))
	return ctx.NoContent(http.StatusNoContent)
}
