package api

import (
	"github.com/labstack/echo/v4"

	"TradeGate/internal/middleware"
	"TradeGate/internal/ratelimit"
	xhttp "TradeGate/pkg/http"
	xlogger "TradeGate/pkg/logger"
)

// LimitsHandler reports the caller's current rate-limit standing.
type LimitsHandler struct {
	logger  *xlogger.Logger
	limiter *ratelimit.Limiter
}

func NewLimitsHandler(logger *xlogger.Logger, limiter *ratelimit.Limiter) *LimitsHandler {
	return &LimitsHandler{logger: logger, limiter: limiter}
}

func (h *LimitsHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/limits", h.Limits)
}

type limitsResponse struct {
	Client             string `json:"client"`
	BurstLimit         int    `json:"burst_limit"`
	BurstUsed          int    `json:"burst_used"`
	RemainingBurst     int    `json:"remaining_burst"`
	SustainedLimit     int    `json:"sustained_limit"`
	SustainedUsed      int    `json:"sustained_used"`
	RemainingSustained int    `json:"remaining_sustained"`
	SustainedWindow    string `json:"sustained_window"`
}

func (h *LimitsHandler) Limits(c echo.Context) error {
	client := middleware.ClientKey(c.Request())
	stats := h.limiter.Stats(client)

	return xhttp.SuccessResponse(c, &limitsResponse{
		Client:             client,
		BurstLimit:         stats.BurstLimit,
		BurstUsed:          stats.BurstCount,
		RemainingBurst:     stats.RemainingBurst,
		SustainedLimit:     stats.SustainedLimit,
		SustainedUsed:      stats.SustainedCount,
		RemainingSustained: stats.RemainingSustained,
		SustainedWindow:    stats.SustainedWindow,
	})
}
