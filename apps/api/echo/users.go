package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/classfund/core"
	"github.com/trezcool/classfund/core/user"
)

var errInvalidCredentials = echo.NewHTTPError(http.StatusUnauthorized, user.ErrInvalidCredentials.Error())

type userApi struct {
	svc    *user.Service
	conf   *core.Config
	logger core.Logger
}

// TokenResponse is returned by a successful login.
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      user.User `json:"user"`
}

func registerAuthAPI(g *echo.Group, deps ServerDeps) {
	api := userApi{svc: deps.Users, conf: deps.Conf, logger: deps.Logger}
	g.POST("/auth/token", api.login)
}

func registerUserAPI(g *echo.Group, deps ServerDeps) {
	api := userApi{svc: deps.Users, conf: deps.Conf, logger: deps.Logger}

	ug := g.Group("/users")
	ug.GET("", api.query)
	ug.POST("", api.create)
	ug.DELETE("/:id", api.destroy)
}

// Handlers

func (api *userApi) login(ctx echo.Context) error {
	var creds user.Credentials
	if err := ctx.Bind(&creds); err != nil {
		return errors.Wrap(err, "binding to Credentials")
	}

	usr, err := api.svc.Authenticate(ctx.Request().Context(), creds)
	if err != nil {
		if err == user.ErrInvalidCredentials {
			api.logger.Warn("failed admin login for "+core.CleanString(creds.Email, true))
			return errInvalidCredentials
		}
		return errors.Wrap(err, "authenticating")
	}

	claims := NewAdminClaims(api.conf, usr.Actor(), 0)
	token, err := GenerateToken(api.conf, claims)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, TokenResponse{
		Token:     token,
		ExpiresAt: time.Unix(claims.ExpiresAt, 0).UTC(),
		User:      usr,
	})
}

func (api *userApi) query(ctx echo.Context) error {
	users, err := api.svc.QueryAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *userApi) create(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}

	usr, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	api.logger.Info("admin "+usr.ID+" created", contextActor(ctx))
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *userApi) destroy(ctx echo.Context) error {
	id := ctx.Param("id")
	if err := api.svc.Delete(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	api.logger.Info("admin "+id+" deleted", contextActor(ctx))
	return ctx.NoContent(http.StatusNoContent)
}
