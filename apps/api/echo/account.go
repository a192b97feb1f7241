package echoapi

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/playmate/core"
	"github.com/trezcool/playmate/core/account"
)

type accountApi struct {
	svc      *account.Service
	conf     *core.Config
	validate *validator.Validate
}

func registerAccountAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *account.Service, conf *core.Config, validate *validator.Validate) {
	api := accountApi{svc: svc, conf: conf, validate: validate}

	// un-authed endpoints
	ag := g.Group("/auth")
	ag.POST("/login", api.login)

	// authed endpoints
	ag.GET("/me", api.me, jwt)
	ag.POST("/token-refresh", api.refreshToken, jwt)

	// account management
	mg := g.Group("/accounts", jwt, adminMiddleware())
	mg.GET("", api.query)
	mg.POST("", api.create)
	mg.GET("/roles", api.queryRoles)
	mg.GET("/:id", api.retrieve)
	mg.PUT("/:id", api.update)
	mg.PUT("/:id/password", api.setPassword)
}

// Handlers

func (api *accountApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	acc, err := api.svc.Authenticate(ctx.Request().Context(), data.ID, data.Password)
	if err != nil {
		switch errors.Cause(err) {
		case account.ErrInvalidID, account.ErrWrongPassword:
			return core.NewValidationError(errors.Cause(err))
		case account.ErrDeactivated:
			return errAccountDeactivated
		}
		return errors.Wrap(err, "authenticating")
	}

	claims := GetAccountClaims(acc, api.conf)
	token, err := GenerateToken(claims, api.conf)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, newLoginResponse(token, claims))
}

func (api *accountApi) me(ctx echo.Context) error {
	acc, err := getContextAccount(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context account")
	}
	return ctx.JSON(http.StatusOK, acc)
}

func (api *accountApi) refreshToken(ctx echo.Context) error {
	claims, token, err := refreshToken(ctx, api.svc, api.conf)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, newLoginResponse(token, claims))
}

func (api *accountApi) query(ctx echo.Context) error {
	var filter account.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []account.Account{})
	}

	accounts, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying accounts")
	}
	if accounts == nil {
		accounts = []account.Account{}
	}
	return ctx.JSON(http.StatusOK, accounts)
}

func (api *accountApi) create(ctx echo.Context) error {
	var data account.NewAccount
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAccount")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}

	acc, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating account")
	}
	return ctx.JSON(http.StatusCreated, acc)
}

func (api *accountApi) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, account.Roles)
}

func (api *accountApi) retrieve(ctx echo.Context) error {
	acc, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding account by ID")
	}
	return ctx.JSON(http.StatusOK, acc)
}

func (api *accountApi) update(ctx echo.Context) error {
	var data account.UpdateAccount
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAccount")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	// an admin cannot demote or deactivate themselves
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if core.CleanString(ctx.Param("id"), true /* lower */) == claims.Subject {
		if (data.Role != nil && *data.Role != account.RoleAdmin) || (data.IsActive != nil && !*data.IsActive) {
			return errHttpForbidden
		}
	}

	acc, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating account")
	}
	return ctx.JSON(http.StatusOK, acc)
}

func (api *accountApi) setPassword(ctx echo.Context) error {
	var data account.SetPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SetPassword")
	}
	if err := api.svc.SetPassword(ctx.Request().Context(), ctx.Param("id"), data); err != nil {
		return errors.Wrap(err, "setting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been changed."})
}

type (
	LoginRequest struct {
		ID       string `json:"id" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token     string    `json:"token"`
		Role      string    `json:"role"`
		ExpiresAt time.Time `json:"expires_at"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.ID = core.CleanString(lr.ID, true /* lower */)
	return validate.Struct(lr)
}

func newLoginResponse(token string, claims *Claims) LoginResponse {
	return LoginResponse{
		Token:     token,
		Role:      claims.Role,
		ExpiresAt: time.Unix(claims.ExpiresAt, 0).UTC(),
	}
}
