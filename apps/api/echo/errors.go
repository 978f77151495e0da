package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/classfund/core"
)

var (
	errUnauthorized  = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errHttpForbidden = echo.NewHTTPError(http.StatusForbidden, "permission denied")

	errUnknownFormat = errors.New("must be one of json, csv, xlsx")
	errBadDate       = errors.New("must be a date (YYYY-MM-DD) or an RFC3339 timestamp")
)

var kindStatus = map[core.ErrorKind]int{
	core.KindValidation:        http.StatusBadRequest,
	core.KindSignatureMismatch: http.StatusBadRequest,
	core.KindNotFound:          http.StatusNotFound,
	core.KindAlreadyExists:     http.StatusConflict,
	core.KindInvalidTransition: http.StatusConflict,
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var (
			code    int
			message interface{}

			httpErr *echo.HTTPError
			fldErrs validator.ValidationErrors
			vErr    *core.ValidationError
			appErr  *core.Error
		)

		switch {
		case errors.As(err, &httpErr):
			if httpErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = httpErr.Message
				break
			}
			if herr, ok := httpErr.Internal.(*echo.HTTPError); ok {
				httpErr = herr
			}
			code = httpErr.Code
			message = httpErr.Message
		case errors.As(err, &fldErrs):
			errs := make(map[string]string, len(fldErrs))
			for _, fe := range fldErrs {
				errs[fe.Field()] = fe.Translate(translator)
			}
			code = http.StatusBadRequest
			message = errs
		case errors.As(err, &vErr):
			if vErr.Fields != nil {
				errs := make(map[string]string, len(vErr.Fields))
				for _, fe := range vErr.Fields {
					errs[fe.Field] = fe.Error
				}
				message = errs
			} else {
				message = vErr.Error()
			}
			code = http.StatusBadRequest
		case errors.As(err, &appErr) && kindStatus[appErr.Kind] != 0:
			code = kindStatus[appErr.Kind]
			message = appErr.Msg
		default: // any other error is a server error; its cause stays in the logs
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg
			logger.Error(msg, errors.Wrap(err, msg), contextActor(ctx))

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
