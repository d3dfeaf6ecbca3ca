package api

import (
	"context"
	"fmt"
	"time"

	models "MarketPull/internal/domain/models"
	domrepo "MarketPull/internal/domain/repository"
	"MarketPull/internal/service/ratelimit"
	"MarketPull/internal/usecase"
	cachepkg "MarketPull/pkg/cache"
	xhttp "MarketPull/pkg/http"
	xlogger "MarketPull/pkg/logger"
	"MarketPull/pkg/queue"
	"MarketPull/pkg/util"

	"github.com/labstack/echo/v4"
)

// MarketHandler exposes the market data API: pipeline health and stats, the
// latest per-symbol payload, candle queries across all timeframes, raw
// trades, and a manual aggregation trigger.
type MarketHandler struct {
	logger    *xlogger.Logger
	ingestion *usecase.IngestionService
	candles   *usecase.CandlesUseCase
	trades    domrepo.TradeStorage
	snapshots domrepo.SnapshotStore
	queueSvc  queue.QueueService
	cache     cachepkg.Service
	rl        *ratelimit.Limiter
}

func NewMarketHandler(
	logger *xlogger.Logger,
	ingestion *usecase.IngestionService,
	candles *usecase.CandlesUseCase,
	trades domrepo.TradeStorage,
	snapshots domrepo.SnapshotStore,
	queueSvc queue.QueueService,
) *MarketHandler {
	return &MarketHandler{
		logger:    logger,
		ingestion: ingestion,
		candles:   candles,
		trades:    trades,
		snapshots: snapshots,
		queueSvc:  queueSvc,
		rl:        ratelimit.New(),
	}
}

// SetCache enables response caching on the candle endpoints.
func (h *MarketHandler) SetCache(c cachepkg.Service) { h.cache = c }

func (h *MarketHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	g := e.Group("/api")
	g.GET("/stats", h.Stats)
	g.GET("/latest/:symbol", h.Latest)
	g.GET("/candles", h.Candles)
	g.GET("/candles/latest", h.LatestCandles)
	g.GET("/trades", h.Trades)
	g.POST("/aggregation/run", h.TriggerAggregation)
}

func (h *MarketHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	status := map[string]string{"status": "ok"}
	if err := h.snapshots.Health(ctx); err != nil {
		h.logger.Error("health check failed", xlogger.Error(err))
		status["status"] = "degraded"
		status["clickhouse"] = err.Error()
		return xhttp.DataResponse(c, 503, status)
	}
	return xhttp.SuccessResponse(c, status)
}

func (h *MarketHandler) Stats(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.ingestion.Stats())
}

func (h *MarketHandler) Latest(c echo.Context) error {
	req := &models.LatestRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	p := h.ingestion.LatestPayload(req.Symbol)
	if p == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no payload for symbol %s", req.Symbol))
	}
	return xhttp.SuccessResponse(c, p)
}

func (h *MarketHandler) Candles(c echo.Context) error {
	req := &models.CandlesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":candles", 10, 5) {
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("rate limited"))
	}

	from, to, err := parseRange(req.From, req.To)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}
	tf := domrepo.NormalizeTimeframe(req.TF)
	from, to = util.AlignFromTo(from, to, string(tf))

	cacheKey := cachepkg.GenerateKeyWithParams("candles", req.Symbol, tf, from.Unix(), to.Unix(), req.Limit)
	if h.cache != nil {
		var cached usecase.GetCandlesResult
		if err := h.cache.Get(c.Request().Context(), cacheKey, &cached); err == nil {
			return xhttp.SuccessResponse(c, &cached)
		}
	}

	res, err := h.candles.GetCandles(c.Request().Context(), usecase.GetCandlesParams{
		Symbol:    req.Symbol,
		From:      from,
		To:        to,
		Timeframe: tf,
		Limit:     req.Limit,
	})
	if err != nil {
		h.logger.Error("candles usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if h.cache != nil {
		if err := h.cache.Set(c.Request().Context(), cacheKey, res, 30*time.Second); err != nil {
			h.logger.Warn("candles cache set failed", xlogger.Error(err))
		}
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *MarketHandler) LatestCandles(c echo.Context) error {
	req := &models.LatestCandlesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	tf := domrepo.NormalizeTimeframe(req.TF)

	candles, err := h.candles.GetLatestCandles(c.Request().Context(), req.Symbol, req.N, tf)
	if err != nil {
		h.logger.Error("latest candles usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, candles, int64(len(candles)))
}

func (h *MarketHandler) Trades(c echo.Context) error {
	req := &models.TradesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":trades", 10, 5) {
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("rate limited"))
	}

	to := time.Now().UTC()
	from := to.Add(-24 * time.Hour)
	trades, err := h.trades.Query(c.Request().Context(), req.Symbol, from, to, req.Limit)
	if err != nil {
		h.logger.Error("trades query error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, trades, int64(len(trades)))
}

// TriggerAggregation enqueues a manual pipeline pass. The queue worker picks
// it up; the scheduled loop and manual runs never overlap.
func (h *MarketHandler) TriggerAggregation(c echo.Context) error {
	if h.queueSvc == nil {
		return xhttp.AppErrorResponse(c, xhttp.InternalError("aggregation trigger unavailable"))
	}
	if err := h.queueSvc.PublishMessage(c.Request().Context(), usecase.AggregationJobType, usecase.AggregationTrigger{
		RequestedAt: time.Now().UTC().Format(time.RFC3339),
		Source:      "api",
	}); err != nil {
		h.logger.Error("aggregation trigger enqueue failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.DataResponse(c, 202, map[string]string{"status": "queued"})
}

// parseRange interprets from/to as RFC3339 or unix-seconds timestamps. Empty
// values default to the trailing 24 hours.
func parseRange(fromS, toS string) (time.Time, time.Time, error) {
	to := time.Now().UTC()
	from := to.Add(-24 * time.Hour)
	if toS != "" {
		t, ok := util.ParseTime(toS)
		if !ok {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid to: %s", toS)
		}
		to = t
	}
	if fromS != "" {
		t, ok := util.ParseTime(fromS)
		if !ok {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid from: %s", fromS)
		}
		from = t
	}
	if from.After(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("from must be before to")
	}
	return from, to, nil
}
