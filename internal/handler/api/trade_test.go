package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeGate/internal/order"
	"TradeGate/internal/ratelimit"
	"TradeGate/pkg/logger"
)

func newTradeEnv(t *testing.T) *echo.Echo {
	t.Helper()

	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)

	e := echo.New()
	NewTradeHandler(log, order.NewValidator()).RegisterRoutes(e)
	return e
}

func post(e *echo.Echo, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func sigField() string {
	return `"signature":"0x` + strings.Repeat("a", 130) + `","timestamp":` + fmt.Sprint(time.Now().Unix())
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestPlaceAcceptsValidLimitOrder(t *testing.T) {
	e := newTradeEnv(t)

	rec := post(e, "/api/trade/place",
		`{`+sigField()+`,"coin":"BTC","isBuy":true,"limitPx":50000,"sz":0.5,"orderType":"limit","tif":"GTC"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	env := decodeEnvelope(t, rec)
	assert.Equal(t, http.StatusOK, env.Status)

	var resp struct {
		Success bool   `json:"success"`
		OrderID int64  `json:"order_id"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.True(t, resp.Success)
	assert.Positive(t, resp.OrderID)
	assert.Equal(t, "order accepted", resp.Message)
}

func TestPlaceAppliesDefaults(t *testing.T) {
	e := newTradeEnv(t)

	// orderType and tif omitted: default limit/GTC, so the limit price is
	// required and a bare market-style body must still pass as a limit order.
	rec := post(e, "/api/trade/place",
		`{`+sigField()+`,"coin":"ETH","isBuy":false,"limitPx":3000,"sz":1}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPlaceRejectsMissingSize(t *testing.T) {
	e := newTradeEnv(t)

	rec := post(e, "/api/trade/place",
		`{`+sigField()+`,"coin":"BTC","limitPx":50000,"orderType":"limit","tif":"GTC"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_REQUIRED")
	assert.Contains(t, rec.Body.String(), "Sz")
}

func TestPlaceRejectsMarketOrderWithLimitPrice(t *testing.T) {
	e := newTradeEnv(t)

	rec := post(e, "/api/trade/place",
		`{`+sigField()+`,"coin":"BTC","limitPx":50000,"sz":1,"orderType":"market","tif":"IOC"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_ORDER_RULE")
	assert.Contains(t, rec.Body.String(), "market_price")
}

func TestPlaceRejectsStaleTimestamp(t *testing.T) {
	e := newTradeEnv(t)

	stale := time.Now().Add(-10 * time.Minute).Unix()
	body := fmt.Sprintf(`{"signature":"0x%s","timestamp":%d,"coin":"BTC","limitPx":50000,"sz":1,"orderType":"limit","tif":"GTC"}`,
		strings.Repeat("a", 130), stale)

	rec := post(e, "/api/trade/place", body)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_TIMESTAMP_RANGE")
}

func TestCancelEchoesOrderID(t *testing.T) {
	e := newTradeEnv(t)

	rec := post(e, "/api/trade/cancel", `{`+sigField()+`,"coin":"BTC","oid":42}`)
	require.Equal(t, http.StatusOK, rec.Code)

	env := decodeEnvelope(t, rec)
	var resp struct {
		OrderID int64 `json:"order_id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, int64(42), resp.OrderID)
}

func TestModifyRequiresPriceOrSize(t *testing.T) {
	e := newTradeEnv(t)

	rec := post(e, "/api/trade/modify", `{`+sigField()+`,"coin":"BTC","oid":42}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "modify_fields")

	rec = post(e, "/api/trade/modify", `{`+sigField()+`,"coin":"BTC","oid":42,"newPx":51000}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestModifyPositionRejectsBothDirections(t *testing.T) {
	e := newTradeEnv(t)

	rec := post(e, "/api/trade/modify-position",
		`{`+sigField()+`,"coin":"BTC","addSize":1,"reduceSize":1}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "position_fields")
}

func TestCancelAllWithoutCoinPasses(t *testing.T) {
	e := newTradeEnv(t)

	rec := post(e, "/api/trade/cancel-all", `{`+sigField()+`}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSetMarginModeRejectsUnknownMode(t *testing.T) {
	e := newTradeEnv(t)

	rec := post(e, "/api/trade/set-margin-mode",
		`{`+sigField()+`,"coin":"BTC","marginType":"hedged"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_ONEOF")
}

func TestOrderIDsIncrease(t *testing.T) {
	e := newTradeEnv(t)

	body := `{` + sigField() + `,"coin":"BTC","limitPx":50000,"sz":1,"orderType":"limit","tif":"GTC"}`
	var ids []int64
	for i := 0; i < 3; i++ {
		env := decodeEnvelope(t, post(e, "/api/trade/place", body))
		var resp struct {
			OrderID int64 `json:"order_id"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &resp))
		ids = append(ids, resp.OrderID)
	}
	assert.Less(t, ids[0], ids[1])
	assert.Less(t, ids[1], ids[2])
}

func TestLimitsReportsUsage(t *testing.T) {
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)

	limiter := ratelimit.New(
		ratelimit.WithBurst(5, time.Second),
		ratelimit.WithSustained(100, time.Minute),
	)
	limiter.Allow("198.51.100.7")
	limiter.Allow("198.51.100.7")

	e := echo.New()
	NewLimitsHandler(log, limiter).RegisterRoutes(e)

	req := httptest.NewRequest(http.MethodGet, "/api/limits", nil)
	req.Header.Set("X-Forwarded-For", "198.51.100.7")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	env := decodeEnvelope(t, rec)
	var resp struct {
		Client             string `json:"client"`
		BurstLimit         int    `json:"burst_limit"`
		BurstUsed          int    `json:"burst_used"`
		RemainingBurst     int    `json:"remaining_burst"`
		SustainedUsed      int    `json:"sustained_used"`
		RemainingSustained int    `json:"remaining_sustained"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, "198.51.100.7", resp.Client)
	assert.Equal(t, 5, resp.BurstLimit)
	assert.Equal(t, 2, resp.BurstUsed)
	assert.Equal(t, 3, resp.RemainingBurst)
	assert.Equal(t, 2, resp.SustainedUsed)
	assert.Equal(t, 98, resp.RemainingSustained)
}
