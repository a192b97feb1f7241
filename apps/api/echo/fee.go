package echoapi

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/playmate/core/fee"
)

type feeApi struct {
	svc      *fee.Service
	validate *validator.Validate
}

func registerFeeAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *fee.Service, validate *validator.Validate) {
	api := feeApi{svc: svc, validate: validate}

	fg := g.Group("/fees/:year", jwt)
	fg.GET("", api.query)
	fg.GET("/export", api.export)
	fg.GET("/:student", api.retrieve)
	fg.PUT("/:student/:month", api.update, adminMiddleware())
	fg.GET("/:student/:month/reminder", api.reminder)
}

// year parses the `year` path param. Invalid years are reported by the service as 0.
func year(ctx echo.Context) int {
	y, _ := strconv.Atoi(ctx.Param("year"))
	return y
}

// Handlers

func (api *feeApi) query(ctx echo.Context) error {
	rows, err := api.svc.Ledgers(ctx.Request().Context(), year(ctx))
	if err != nil {
		return errors.Wrap(err, "querying ledgers")
	}
	pg := paginate(ctx, len(rows))
	return ctx.JSON(http.StatusOK, newListResponse(rows[pg.Start:pg.End], pg))
}

func (api *feeApi) export(ctx echo.Context) error {
	y := year(ctx)
	return sendCSV(ctx, fee.CSVFilename(y), func(w io.Writer) (int, error) {
		return api.svc.ExportCSV(ctx.Request().Context(), y, w)
	})
}

func (api *feeApi) retrieve(ctx echo.Context) error {
	l, err := api.svc.Ledger(ctx.Request().Context(), year(ctx), ctx.Param("student"))
	if err != nil {
		return errors.Wrap(err, "loading ledger")
	}
	return ctx.JSON(http.StatusOK, l)
}

func (api *feeApi) update(ctx echo.Context) error {
	var data fee.UpdateMonth
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateMonth")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	l, err := api.svc.Update(ctx.Request().Context(), year(ctx), ctx.Param("student"), ctx.Param("month"), data)
	if err != nil {
		return errors.Wrap(err, "updating fee")
	}
	return ctx.JSON(http.StatusOK, l)
}

func (api *feeApi) reminder(ctx echo.Context) error {
	r, err := api.svc.Reminder(ctx.Request().Context(), year(ctx), ctx.Param("student"), ctx.Param("month"))
	if err != nil {
		return errors.Wrap(err, "building reminder")
	}
	return ctx.JSON(http.StatusOK, r)
}
