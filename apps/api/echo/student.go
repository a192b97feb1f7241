package echoapi

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/playmate/core"
	"github.com/trezcool/playmate/core/attendance"
	"github.com/trezcool/playmate/core/student"
)

const (
	rosterCSVFilename = "Student_Master_Data.csv"
	importFileField   = "file"
)

var errNoImportFile = errors.New("upload the roster as a `file` form field")

type studentApi struct {
	svc           *student.Service
	attendanceSvc *attendance.Service
	validate      *validator.Validate
}

func registerStudentAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc *student.Service,
	attendanceSvc *attendance.Service,
	validate *validator.Validate,
) {
	api := studentApi{svc: svc, attendanceSvc: attendanceSvc, validate: validate}

	sg := g.Group("/students", jwt)
	sg.GET("", api.query)
	sg.POST("", api.create, adminMiddleware())
	sg.POST("/import", api.importRoster, adminMiddleware())
	sg.GET("/export", api.export)

	// detail endpoints
	sg.GET("/:id", api.retrieve)
	sg.PUT("/:id", api.update, adminMiddleware())
	sg.GET("/:id/qrcode", api.qrcode)
	sg.GET("/:id/attendance", api.history)
}

// Handlers

func (api *studentApi) query(ctx echo.Context) error {
	var filter student.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, newListResponse([]student.Student{}, core.Paginate(0, 1, core.DefaultPageSize)))
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	students, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	if students == nil {
		students = []student.Student{}
	}
	pg := paginate(ctx, len(students))
	return ctx.JSON(http.StatusOK, newListResponse(students[pg.Start:pg.End], pg))
}

func (api *studentApi) create(ctx echo.Context) error {
	var data student.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	s, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating student")
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *studentApi) importRoster(ctx echo.Context) error {
	fh, err := ctx.FormFile(importFileField)
	if err != nil {
		return core.NewFieldError(importFileField, errNoImportFile)
	}
	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded roster")
	}
	defer f.Close()

	res, err := api.svc.Import(ctx.Request().Context(), fh.Filename, f)
	if err != nil {
		return errors.Wrap(err, "importing roster")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *studentApi) export(ctx echo.Context) error {
	return sendCSV(ctx, rosterCSVFilename, func(w io.Writer) (int, error) {
		return api.svc.ExportCSV(ctx.Request().Context(), w)
	})
}

func (api *studentApi) retrieve(ctx echo.Context) error {
	s, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding student by ID")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *studentApi) update(ctx echo.Context) error {
	var data student.UpdateStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStudent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	s, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating student")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *studentApi) qrcode(ctx echo.Context) error {
	size, _ := strconv.Atoi(ctx.QueryParam("size"))
	png, err := api.svc.QRCode(ctx.Request().Context(), ctx.Param("id"), size)
	if err != nil {
		return errors.Wrap(err, "generating qr code")
	}
	return ctx.Blob(http.StatusOK, "image/png", png)
}

func (api *studentApi) history(ctx echo.Context) error {
	items, err := api.attendanceSvc.History(ctx.Request().Context(), ctx.Param("id"), ctx.QueryParam("month"))
	if err != nil {
		return errors.Wrap(err, "loading attendance history")
	}
	return ctx.JSON(http.StatusOK, items)
}
