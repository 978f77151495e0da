package echoapi

import (
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/classfund/core"
	"github.com/trezcool/classfund/core/gateway"
	"github.com/trezcool/classfund/core/ledger"
	"github.com/trezcool/classfund/core/reconcile"
)

var errUseCheckout = core.NewValidationError(nil, core.FieldError{
	Field: "payment_method",
	Error: "gateway payments are started through /v1/gateway/orders",
})

type publicApi struct {
	engine   *reconcile.Engine
	webhooks *gateway.Processor
	validate *validator.Validate
}

func registerPublicAPI(g *echo.Group, deps ServerDeps) {
	api := publicApi{
		engine:   deps.Engine,
		webhooks: deps.Webhooks,
		validate: deps.Validate,
	}

	g.GET("/lookup", api.lookup)
	g.GET("/pay/:eventId", api.payPage)
	g.POST("/payments", api.submitPayment)
	g.POST("/gateway/orders", api.startCheckout)
	g.POST("/gateway/webhook", api.webhook)
}

// Handlers

func (api *publicApi) lookup(ctx echo.Context) error {
	res, err := api.engine.PublicLookup(ctx.Request().Context(), ctx.QueryParam("q"))
	if err != nil {
		return errors.Wrap(err, "looking up students")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *publicApi) payPage(ctx echo.Context) error {
	page, err := api.engine.PayPage(ctx.Request().Context(), ctx.Param("eventId"))
	if err != nil {
		return errors.Wrap(err, "loading pay page")
	}
	if page.Students == nil {
		page.Students = []reconcile.PayableStudent{}
	}
	return ctx.JSON(http.StatusOK, page)
}

// submitPayment records a QR or declared cash payment awaiting admin verification.
func (api *publicApi) submitPayment(ctx echo.Context) error {
	var data reconcile.NewPayment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPayment")
	}
	data.Status = ledger.StatusVerificationPending // students cannot settle their own payments
	if err := api.validate.Struct(data); err != nil {
		return err
	}
	if data.Method == ledger.MethodRazorpay {
		return errUseCheckout
	}

	pmt, err := api.engine.CreatePayment(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating payment")
	}
	return ctx.JSON(http.StatusCreated, pmt)
}

func (api *publicApi) startCheckout(ctx echo.Context) error {
	var data reconcile.CheckoutRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CheckoutRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	checkout, err := api.engine.StartGatewayCheckout(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "starting gateway checkout")
	}
	return ctx.JSON(http.StatusCreated, checkout)
}

// webhook needs the raw body: the signature covers the exact bytes sent by the gateway.
func (api *publicApi) webhook(ctx echo.Context) error {
	body, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return core.NewValidationError(errors.Wrap(err, "reading webhook body"))
	}

	res, err := api.webhooks.Handle(ctx.Request().Context(), body, ctx.Request().Header.Get(gateway.SignatureHeader))
	if err != nil {
		return errors.Wrap(err, "handling gateway webhook")
	}
	return ctx.JSON(http.StatusOK, res)
}
