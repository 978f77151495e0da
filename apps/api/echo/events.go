package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/classfund/core"
	"github.com/trezcool/classfund/core/event"
	"github.com/trezcool/classfund/core/ledger"
	"github.com/trezcool/classfund/core/reconcile"
)

type eventApi struct {
	svc    *event.Service
	engine *reconcile.Engine
	logger core.Logger
}

// DistributePrint is the body of a print hand-over.
type DistributePrint struct {
	StudentID string `json:"student_id"`
}

func registerEventAPI(g *echo.Group, deps ServerDeps) {
	api := eventApi{
		svc:    deps.Events,
		engine: deps.Engine,
		logger: deps.Logger,
	}

	eg := g.Group("/events")
	eg.GET("", api.query)
	eg.POST("", api.publish)
	eg.POST("/drafts", api.saveDraft)

	// detail endpoints
	eg.GET("/:id", api.retrieve)
	eg.PUT("/:id", api.update)
	eg.DELETE("/:id", api.destroy)
	eg.GET("/:id/transactions", api.transactions)
	eg.GET("/:id/prints", api.prints)
	eg.POST("/:id/prints", api.distributePrint)
}

// Handlers

func (api *eventApi) publish(ctx echo.Context) error {
	var data event.NewEvent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEvent")
	}

	evt, err := api.svc.Publish(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "publishing event")
	}
	api.logger.Info("event "+evt.ID+" published", contextActor(ctx))
	return ctx.JSON(http.StatusCreated, evt)
}

func (api *eventApi) saveDraft(ctx echo.Context) error {
	var data event.NewEvent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEvent")
	}

	evt, err := api.svc.SaveDraft(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "saving event draft")
	}
	return ctx.JSON(http.StatusCreated, evt)
}

func (api *eventApi) query(ctx echo.Context) error {
	filter := ledger.EventFilter{
		Status:   ledger.EventStatus(ctx.QueryParam("status")),
		Category: ledger.EventCategory(ctx.QueryParam("category")),
	}

	events, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying events")
	}
	if events == nil {
		events = []ledger.Event{}
	}
	return ctx.JSON(http.StatusOK, events)
}

func (api *eventApi) retrieve(ctx echo.Context) error {
	evt, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting event")
	}
	return ctx.JSON(http.StatusOK, evt)
}

func (api *eventApi) update(ctx echo.Context) error {
	var data event.UpdateEvent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateEvent")
	}

	evt, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating event")
	}
	return ctx.JSON(http.StatusOK, evt)
}

func (api *eventApi) destroy(ctx echo.Context) error {
	id := ctx.Param("id")
	if err := api.svc.Delete(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting event")
	}
	api.logger.Info("event "+id+" deleted", contextActor(ctx))
	return ctx.NoContent(http.StatusNoContent)
}

func (api *eventApi) transactions(ctx echo.Context) error {
	txns, err := api.engine.ListEventTransactions(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing event transactions")
	}
	if txns == nil {
		txns = []reconcile.Transaction{}
	}
	return ctx.JSON(http.StatusOK, txns)
}

func (api *eventApi) prints(ctx echo.Context) error {
	statuses, err := api.engine.PrintDistributions(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing print distributions")
	}
	if statuses == nil {
		statuses = []reconcile.PrintStatus{}
	}
	return ctx.JSON(http.StatusOK, statuses)
}

func (api *eventApi) distributePrint(ctx echo.Context) error {
	var data DistributePrint
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to DistributePrint")
	}
	if data.StudentID == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "student_id", Error: "this field is required"})
	}

	pd, err := api.engine.DistributePrint(ctx.Request().Context(), data.StudentID, ctx.Param("id"), contextActor(ctx))
	if err != nil {
		return errors.Wrap(err, "distributing print")
	}
	return ctx.JSON(http.StatusCreated, pd)
}
