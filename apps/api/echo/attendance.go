package echoapi

import (
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/playmate/core"
	"github.com/trezcool/playmate/core/attendance"
)

type attendanceApi struct {
	svc      *attendance.Service
	validate *validator.Validate
}

func registerAttendanceAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *attendance.Service, validate *validator.Validate) {
	api := attendanceApi{svc: svc, validate: validate}

	ag := g.Group("/attendance", jwt)
	ag.POST("/scan", api.scan)
	ag.GET("/today", api.today)
	ag.GET("/summary", api.summary)
	ag.GET("/summary/export", api.exportSummary)
	ag.GET("/days/:date", api.day)
	ag.GET("/days/:date/export", api.exportDay)
}

// month returns the `month` query param, defaulting to the current month.
func (api *attendanceApi) month(ctx echo.Context) string {
	if m := core.CleanString(ctx.QueryParam("month")); m != "" {
		return m
	}
	return api.svc.CurrentDay()[:len(core.MonthLayout)]
}

// Handlers

func (api *attendanceApi) scan(ctx echo.Context) error {
	var data ScanRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ScanRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.Scan(ctx.Request().Context(), data.Code)
	if err != nil {
		return errors.Wrap(err, "scanning")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *attendanceApi) today(ctx echo.Context) error {
	rep, err := api.svc.Today(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "loading today's attendance")
	}
	return ctx.JSON(http.StatusOK, rep)
}

func (api *attendanceApi) day(ctx echo.Context) error {
	rep, err := api.svc.Day(ctx.Request().Context(), ctx.Param("date"))
	if err != nil {
		return errors.Wrap(err, "loading day attendance")
	}
	return ctx.JSON(http.StatusOK, rep)
}

func (api *attendanceApi) exportDay(ctx echo.Context) error {
	date := core.CleanString(ctx.Param("date"))
	return sendCSV(ctx, attendance.DayCSVFilename(date), func(w io.Writer) (int, error) {
		return api.svc.ExportDayCSV(ctx.Request().Context(), date, w)
	})
}

func (api *attendanceApi) summary(ctx echo.Context) error {
	sum, err := api.svc.MonthlySummary(ctx.Request().Context(), api.month(ctx))
	if err != nil {
		return errors.Wrap(err, "computing monthly summary")
	}
	pg := paginate(ctx, len(sum.Rows))
	return ctx.JSON(http.StatusOK, SummaryResponse{
		Month:        sum.Month,
		WorkingDays:  sum.WorkingDays,
		ListResponse: newListResponse(sum.Rows[pg.Start:pg.End], pg),
	})
}

func (api *attendanceApi) exportSummary(ctx echo.Context) error {
	month := api.month(ctx)
	return sendCSV(ctx, attendance.SummaryCSVFilename(month), func(w io.Writer) (int, error) {
		return api.svc.ExportSummaryCSV(ctx.Request().Context(), month, w)
	})
}

type (
	// ScanRequest carries the text decoded from a student's QR code.
	ScanRequest struct {
		Code string `json:"code" validate:"required"`
	}

	SummaryResponse struct {
		Month       string `json:"month"`
		WorkingDays int    `json:"working_days"`
		ListResponse
	}
)

func (sr *ScanRequest) Validate(validate *validator.Validate) error {
	sr.Code = core.CleanString(sr.Code)
	return validate.Struct(sr)
}
