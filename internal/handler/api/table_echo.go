package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"VolMonitor/internal/domain/models"
	"VolMonitor/internal/export"
	"VolMonitor/internal/service/ratelimit"
	"VolMonitor/internal/services/timeseries"
	xhttp "VolMonitor/pkg/http"
	xlogger "VolMonitor/pkg/logger"
)

// TableService is what the table endpoints need from the use case layer.
type TableService interface {
	BuildTable(ctx context.Context, date time.Time) (*models.AnalyticsTable, error)
	BuildLatest(ctx context.Context) (*models.AnalyticsTable, error)
	Coverage(ctx context.Context) (models.Coverage, error)
}

// TableView is the JSON shape of a (possibly filtered) table.
type TableView struct {
	AsOf             string                `json:"as_of"`
	Version          string                `json:"version"`
	RealizedHorizons []int                 `json:"realized_horizons"`
	Rows             []models.AnalyticsRow `json:"rows"`
	Total            int                   `json:"total"`
}

// TableEchoHandler serves analytics tables over HTTP.
type TableEchoHandler struct {
	logger  *xlogger.Logger
	svc     TableService
	limiter *ratelimit.Limiter
}

func NewTableEchoHandler(logger *xlogger.Logger, svc TableService, limiter *ratelimit.Limiter) *TableEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &TableEchoHandler{logger: logger, svc: svc, limiter: limiter}
}

func (h *TableEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/table", h.Table)
	g.GET("/table/latest", h.Latest)
	g.GET("/table/movers", h.Movers)
	g.GET("/table/export", h.Export)
	g.GET("/coverage", h.Coverage)
}

func (h *TableEchoHandler) Table(c echo.Context) error {
	req := &models.TableRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	filters, aerr := rowFilters(req.OptionTenor, req.UnderlyingTenor, req.Mover, req.RichCheap)
	if aerr != nil {
		return xhttp.AppErrorResponse(c, aerr)
	}
	d, _ := timeseries.ParseDay(req.Date)
	t, err := h.svc.BuildTable(c.Request().Context(), d)
	if err != nil {
		return h.fail(c, "table", err)
	}
	return xhttp.SuccessResponse(c, view(t, filters))
}

func (h *TableEchoHandler) Latest(c echo.Context) error {
	req := &models.LatestTableRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	filters, aerr := rowFilters(req.OptionTenor, req.UnderlyingTenor, req.Mover, req.RichCheap)
	if aerr != nil {
		return xhttp.AppErrorResponse(c, aerr)
	}
	t, err := h.svc.BuildLatest(c.Request().Context())
	if err != nil {
		return h.fail(c, "latest table", err)
	}
	return xhttp.SuccessResponse(c, view(t, filters))
}

// Movers lists the cells flagged as largest mover, on every horizon by default.
func (h *TableEchoHandler) Movers(c echo.Context) error {
	req := &models.MoversRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	t, err := h.tableOrLatest(c.Request().Context(), req.Date)
	if err != nil {
		return h.fail(c, "movers", err)
	}
	filters, _ := rowFilters("", "", req.Horizon, "")
	return xhttp.SuccessResponse(c, view(t, filters))
}

// Export streams the table as CSV (default) or JSON. Requests are limited per client IP.
func (h *TableEchoHandler) Export(c echo.Context) error {
	if h.limiter != nil && !h.limiter.Allow(c.RealIP()) {
		return xhttp.TooManyRequestsResponse(c)
	}
	req := &models.ExportRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	t, err := h.tableOrLatest(c.Request().Context(), req.Date)
	if err != nil {
		return h.fail(c, "export", err)
	}

	var buf bytes.Buffer
	contentType := "text/csv; charset=utf-8"
	if req.Format == "json" {
		contentType = echo.MIMEApplicationJSONCharsetUTF8
		err = export.WriteJSON(&buf, t)
	} else {
		err = export.WriteCSV(&buf, t)
	}
	if err != nil {
		return h.fail(c, "export encode", err)
	}
	name := fmt.Sprintf("swaption_table_%s.%s", t.AsOf.Format(timeseries.DateLayout), req.Format)
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.Blob(http.StatusOK, contentType, buf.Bytes())
}

func (h *TableEchoHandler) Coverage(c echo.Context) error {
	cov, err := h.svc.Coverage(c.Request().Context())
	if err != nil {
		return h.fail(c, "coverage", err)
	}
	return xhttp.SuccessResponse(c, cov)
}

func (h *TableEchoHandler) tableOrLatest(ctx context.Context, date string) (*models.AnalyticsTable, error) {
	if date == "" {
		return h.svc.BuildLatest(ctx)
	}
	d, err := timeseries.ParseDay(date)
	if err != nil {
		return nil, err
	}
	return h.svc.BuildTable(ctx, d)
}

func (h *TableEchoHandler) fail(c echo.Context, op string, err error) error {
	aerr := toAppError(err)
	if aerr.Status >= http.StatusInternalServerError {
		h.logger.Error(op+" usecase error", xlogger.Error(err))
	} else {
		h.logger.Debug(op+" rejected", xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, aerr)
}

// toAppError maps core errors onto transport errors.
func toAppError(err error) *xhttp.AppError {
	var dnc *timeseries.DateNotCoveredError
	switch {
	case errors.As(err, &dnc):
		return xhttp.NotFoundErrorf("no data for %s", dnc.Date.Format(timeseries.DateLayout)).
			WithParam("date", dnc.Date.Format(timeseries.DateLayout)).WithError(err)
	case errors.Is(err, timeseries.ErrDateNotCovered):
		return xhttp.NotFoundError("no data available").WithError(err)
	case errors.Is(err, timeseries.ErrMalformedInput):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	default:
		return xhttp.InternalError("failed to build table").WithError(err)
	}
}

func rowFilters(option, underlying, mover, richCheap string) ([]models.RowFilter, *xhttp.AppError) {
	var fs []models.RowFilter
	if option != "" {
		t, err := models.ParseTenor(option)
		if err != nil {
			return nil, xhttp.BadRequestErrorf("invalid option_tenor %q", option).WithParam("field", "option_tenor")
		}
		fs = append(fs, models.ByOptionTenor(t))
	}
	if underlying != "" {
		t, err := models.ParseTenor(underlying)
		if err != nil {
			return nil, xhttp.BadRequestErrorf("invalid underlying_tenor %q", underlying).WithParam("field", "underlying_tenor")
		}
		fs = append(fs, models.ByUnderlyingTenor(t))
	}
	switch mover {
	case "":
	case "any":
		fs = append(fs, models.AnyMover())
	default:
		fs = append(fs, models.MoversFor(models.MoverHorizon(mover)))
	}
	if richCheap != "" {
		fs = append(fs, models.ByRichCheap(models.RichCheap(richCheap)))
	}
	return fs, nil
}

func view(t *models.AnalyticsTable, filters []models.RowFilter) TableView {
	rows := t.Filter(filters...)
	return TableView{
		AsOf:             t.AsOf.Format(timeseries.DateLayout),
		Version:          t.Version,
		RealizedHorizons: t.RealizedHorizons,
		Rows:             rows,
		Total:            len(rows),
	}
}
