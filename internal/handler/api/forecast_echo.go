package api

import (
	"errors"
	"time"

	models "FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	svcmetrics "FinCast/internal/service/metrics"
	"FinCast/internal/services/features"
	"FinCast/internal/usecase"
	xhttp "FinCast/pkg/http"
	xlogger "FinCast/pkg/logger"
	"FinCast/pkg/util"

	"github.com/labstack/echo/v4"
)

// ForecastEchoHandler exposes the forecasting pipeline over HTTP.
type ForecastEchoHandler struct {
	logger     *xlogger.Logger
	forecaster *usecase.Forecaster
}

func NewForecastEchoHandler(logger *xlogger.Logger, forecaster *usecase.Forecaster) *ForecastEchoHandler {
	svcmetrics.Register()
	return &ForecastEchoHandler{logger: logger, forecaster: forecaster}
}

func (h *ForecastEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/predict", h.Predict)
	g.POST("/record", h.RecordResult)
	g.POST("/expert-record", h.RecordExpertResult)
	g.GET("/retraining", h.Retraining)
	g.GET("/health", h.Health)
	g.GET("/statistics", h.Statistics)
	g.GET("/candles", h.Candles)
	g.POST("/import", h.Import)
	g.POST("/reset", h.Reset)
}

func (h *ForecastEchoHandler) Predict(c echo.Context) error {
	start := time.Now()
	req := &models.PredictRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	tf := domrepo.NormalizeTimeframe(req.TF)

	res, err := h.forecaster.PredictSymbol(c.Request().Context(), req.Symbol, req.N, req.Lookback, tf)
	if err != nil {
		svcmetrics.EndpointErrors.WithLabelValues("predict").Inc()
		if errors.Is(err, features.ErrInsufficientData) {
			return xhttp.BadRequestResponse(c, map[string]string{"error": err.Error()})
		}
		h.logger.Error("predict usecase error", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	svcmetrics.EndpointLatency.WithLabelValues("predict").Observe(time.Since(start).Seconds())
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, res)
}

func (h *ForecastEchoHandler) RecordResult(c echo.Context) error {
	req := &models.RecordResultRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	h.forecaster.RecordResult(req.Predicted, req.Actual, req.Confidence, models.MarketRegime(req.Regime))
	return xhttp.NoContentResponse(c)
}

func (h *ForecastEchoHandler) RecordExpertResult(c echo.Context) error {
	req := &models.RecordExpertResultRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.forecaster.RecordExpertResult(req.Expert, req.Predicted, req.Actual, 50, models.RegimeQuiet); err != nil {
		return xhttp.BadRequestResponse(c, map[string]string{"error": err.Error()})
	}
	return xhttp.NoContentResponse(c)
}

func (h *ForecastEchoHandler) Retraining(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.forecaster.EvaluateRetraining())
}

func (h *ForecastEchoHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.forecaster.HealthCheck())
}

func (h *ForecastEchoHandler) Statistics(c echo.Context) error {
	metrics, weights := h.forecaster.Statistics()
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"metrics": metrics,
		"weights": weights,
	})
}

func (h *ForecastEchoHandler) Candles(c echo.Context) error {
	req := &models.CandlesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	tf := domrepo.NormalizeTimeframe(req.TF)
	now := time.Now().UTC()
	from := util.ParseTimeDefault(req.From, now.Add(-24*time.Hour))
	to := util.ParseTimeDefault(req.To, now)
	from, to = util.AlignFromTo(from, to, string(tf))

	candles, err := h.forecaster.History(c.Request().Context(), req.Symbol, from, to, tf)
	if err != nil {
		h.logger.Error("candles usecase error", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, candles)
}

func (h *ForecastEchoHandler) Import(c echo.Context) error {
	req := &models.ImportRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.forecaster.ImportHistory(&req.Snapshot); err != nil {
		return xhttp.BadRequestResponse(c, map[string]string{"error": err.Error()})
	}
	return xhttp.NoContentResponse(c)
}

func (h *ForecastEchoHandler) Reset(c echo.Context) error {
	h.forecaster.Reset()
	return xhttp.NoContentResponse(c)
}
