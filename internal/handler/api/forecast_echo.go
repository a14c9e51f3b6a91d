package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"CropCast/internal/domain/models"
	"CropCast/internal/service/ratelimit"
	"CropCast/internal/service/registry"
	"CropCast/internal/usecase"
	xhttp "CropCast/pkg/http"
	xlogger "CropCast/pkg/logger"

	"github.com/labstack/echo/v4"
)

const statusMessage = "Crop price forecasting server is up and running"

// ForecastEchoHandler serves the forecast API.
type ForecastEchoHandler struct {
	logger   *xlogger.Logger
	query    *usecase.QueryService
	reloader registry.Reloader
	limiter  *ratelimit.Limiter
	// defaultDays applies when the request has no days parameter.
	defaultDays int
}

type HandlerOption func(*ForecastEchoHandler)

func WithDefaultDays(n int) HandlerOption {
	return func(h *ForecastEchoHandler) {
		if n > 0 {
			h.defaultDays = n
		}
	}
}

// WithReloader enables POST /admin/reload.
func WithReloader(r registry.Reloader) HandlerOption {
	return func(h *ForecastEchoHandler) { h.reloader = r }
}

// WithRateLimit limits /predict per client IP.
func WithRateLimit(l *ratelimit.Limiter) HandlerOption {
	return func(h *ForecastEchoHandler) { h.limiter = l }
}

func NewForecastEchoHandler(logger *xlogger.Logger, query *usecase.QueryService, opts ...HandlerOption) *ForecastEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	h := &ForecastEchoHandler{logger: logger, query: query, defaultDays: 7}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *ForecastEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/", h.Status)
	e.GET("/health", h.Health)
	e.GET("/options", h.Options)
	e.GET("/options/:axis", h.Dimension)
	e.GET("/predict", h.Predict, h.rateLimit)
	if h.reloader != nil {
		e.POST("/admin/reload", h.Reload)
	}
}

func (h *ForecastEchoHandler) Status(c echo.Context) error {
	return xhttp.StatusOK(c, statusMessage)
}

func (h *ForecastEchoHandler) Health(c echo.Context) error {
	n := h.query.ModelCount()
	return xhttp.SuccessResponse(c, xhttp.StatusResponse{Status: "ok", Models: &n})
}

func (h *ForecastEchoHandler) Options(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.query.Options())
}

func (h *ForecastEchoHandler) Dimension(c echo.Context) error {
	req := &models.DimensionRequest{}
	if err := xhttp.ReadAndValidateRequest(c, req); err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	axis, err := models.ParseAxis(req.Axis)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}
	return xhttp.SuccessResponse(c, map[string][]string{string(axis): h.query.Dimension(axis)})
}

func (h *ForecastEchoHandler) Predict(c echo.Context) error {
	req := &models.PredictRequest{}
	if err := xhttp.ReadAndValidateRequest(c, req); err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	days := h.defaultDays
	if raw := strings.TrimSpace(req.Days); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_INVALID_HORIZON", msgInvalidDays, http.StatusBadRequest))
		}
		days = n
	}

	pts, err := h.query.Predict(c.Request().Context(), req.Key(), days)
	if err != nil {
		appErr := toAppError(err)
		if appErr.Status >= http.StatusInternalServerError {
			h.logger.Error("predict usecase error",
				xlogger.String("key", req.Key().String()),
				xlogger.Error(err))
		}
		return xhttp.AppErrorResponse(c, appErr)
	}
	return xhttp.SuccessResponse(c, models.ToDTO(pts))
}

func (h *ForecastEchoHandler) Reload(c echo.Context) error {
	res, err := h.reloader.Reload(context.WithoutCancel(c.Request().Context()))
	if err != nil {
		h.logger.Error("registry reload failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.UnavailableError("Model reload failed: "+err.Error()))
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"loaded":  res.Loaded,
		"skipped": res.Skipped,
		"took_ms": res.Took.Milliseconds(),
	})
}

func (h *ForecastEchoHandler) rateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	if h.limiter == nil {
		return next
	}
	return func(c echo.Context) error {
		if !h.limiter.Allow(c.RealIP()) {
			return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("Too many requests. Please slow down."))
		}
		return next(c)
	}
}
