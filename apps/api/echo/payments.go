package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/classfund/core/ledger"
	"github.com/trezcool/classfund/core/reconcile"
)

type paymentApi struct {
	engine   *reconcile.Engine
	validate *validator.Validate
}

// SetPaymentStatus is the body of an admin verification.
type SetPaymentStatus struct {
	Status ledger.PaymentStatus `json:"status" validate:"required,paystatus"`
}

func registerPaymentAPI(g *echo.Group, deps ServerDeps) {
	api := paymentApi{
		engine:   deps.Engine,
		validate: deps.Validate,
	}

	pg := g.Group("/payments")
	pg.POST("/cash", api.recordCash)
	pg.PATCH("/:id/status", api.setStatus)
}

// Handlers

func (api *paymentApi) setStatus(ctx echo.Context) error {
	var data SetPaymentStatus
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SetPaymentStatus")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	pmt, err := api.engine.SetStatus(ctx.Request().Context(), ctx.Param("id"), data.Status, contextActor(ctx))
	if err != nil {
		return errors.Wrap(err, "setting payment status")
	}
	return ctx.JSON(http.StatusOK, pmt)
}

func (api *paymentApi) recordCash(ctx echo.Context) error {
	var data reconcile.CashPayment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CashPayment")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	pmt, err := api.engine.RecordCashPayment(ctx.Request().Context(), data, contextActor(ctx))
	if err != nil {
		return errors.Wrap(err, "recording cash payment")
	}
	return ctx.JSON(http.StatusCreated, pmt)
}
