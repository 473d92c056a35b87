package order

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeGate/internal/domain/models"
	pkghttp "TradeGate/pkg/http"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testValidator() *Validator {
	return NewValidator(WithClock(func() time.Time { return testNow }))
}

func validSignature() string {
	return "0x" + strings.Repeat("a", 130)
}

func signed() models.SignedRequest {
	return models.SignedRequest{
		Signature: validSignature(),
		Timestamp: testNow.Unix(),
	}
}

func baseOrder() *models.OrderRequest {
	return &models.OrderRequest{
		SignedRequest: signed(),
		Coin:          "BTC",
		IsBuy:         true,
		LimitPx:       50000,
		Sz:            0.5,
		OrderType:     TypeLimit,
		TIF:           TIFGoodTillCancel,
	}
}

func ruleOf(t *testing.T, err error) string {
	t.Helper()
	var appErr *pkghttp.AppError
	require.True(t, errors.As(err, &appErr))
	rule, _ := appErr.Params["rule"].(string)
	return rule
}

func TestValidateOrderRules(t *testing.T) {
	v := testValidator()

	t.Run("valid limit order", func(t *testing.T) {
		assert.NoError(t, v.ValidateOrder(baseOrder()))
	})

	t.Run("market order with nonzero price rejected", func(t *testing.T) {
		req := baseOrder()
		req.OrderType = TypeMarket
		req.LimitPx = 50
		err := v.ValidateOrder(req)
		require.Error(t, err)
		assert.Equal(t, "market_price", ruleOf(t, err))
	})

	t.Run("market order with zero price passes", func(t *testing.T) {
		req := baseOrder()
		req.OrderType = TypeMarket
		req.LimitPx = 0
		assert.NoError(t, v.ValidateOrder(req))
	})

	t.Run("limit order with zero price rejected", func(t *testing.T) {
		req := baseOrder()
		req.LimitPx = 0
		err := v.ValidateOrder(req)
		require.Error(t, err)
		assert.Equal(t, "limit_price", ruleOf(t, err))
	})

	t.Run("stop order without stop price rejected", func(t *testing.T) {
		for _, typ := range []string{TypeStopLimit, TypeStopMarket} {
			req := baseOrder()
			req.OrderType = typ
			err := v.ValidateOrder(req)
			require.Error(t, err, typ)
			assert.Equal(t, "stop_price", ruleOf(t, err))
		}
	})

	t.Run("stop order with stop price passes", func(t *testing.T) {
		req := baseOrder()
		req.OrderType = TypeStopLimit
		stop := 49000.0
		req.StopPx = &stop
		assert.NoError(t, v.ValidateOrder(req))
	})

	t.Run("post only on market order rejected", func(t *testing.T) {
		req := baseOrder()
		req.OrderType = TypeMarket
		req.LimitPx = 0
		req.PostOnly = true
		err := v.ValidateOrder(req)
		require.Error(t, err)
		assert.Equal(t, "post_only_type", ruleOf(t, err))
	})

	t.Run("post only with IOC rejected", func(t *testing.T) {
		req := baseOrder()
		req.PostOnly = true
		req.TIF = TIFImmediateOrCancel
		err := v.ValidateOrder(req)
		require.Error(t, err)
		assert.Equal(t, "post_only_tif", ruleOf(t, err))
	})

	t.Run("post only with FOK rejected", func(t *testing.T) {
		req := baseOrder()
		req.PostOnly = true
		req.TIF = TIFFillOrKill
		err := v.ValidateOrder(req)
		require.Error(t, err)
		assert.Equal(t, "post_only_tif", ruleOf(t, err))
	})

	t.Run("post only with GTC passes", func(t *testing.T) {
		req := baseOrder()
		req.PostOnly = true
		assert.NoError(t, v.ValidateOrder(req))
	})

	t.Run("bad symbol rejected", func(t *testing.T) {
		req := baseOrder()
		req.Coin = "B"
		var appErr *pkghttp.AppError
		require.ErrorAs(t, v.ValidateOrder(req), &appErr)
		assert.Equal(t, "coin", appErr.Field)
	})
}

func TestValidateModify(t *testing.T) {
	v := testValidator()
	px := 51000.0
	sz := 1.0

	t.Run("neither field rejected", func(t *testing.T) {
		err := v.ValidateModify(&models.ModifyRequest{
			SignedRequest: signed(), Coin: "ETH", OID: 7,
		})
		require.Error(t, err)
		assert.Equal(t, "modify_fields", ruleOf(t, err))
	})

	t.Run("price only passes", func(t *testing.T) {
		assert.NoError(t, v.ValidateModify(&models.ModifyRequest{
			SignedRequest: signed(), Coin: "ETH", OID: 7, NewPx: &px,
		}))
	})

	t.Run("both fields pass", func(t *testing.T) {
		assert.NoError(t, v.ValidateModify(&models.ModifyRequest{
			SignedRequest: signed(), Coin: "ETH", OID: 7, NewPx: &px, NewSz: &sz,
		}))
	})
}

func TestValidateModifyPosition(t *testing.T) {
	v := testValidator()
	add := 2.0
	reduce := 1.0

	t.Run("exactly one field passes", func(t *testing.T) {
		assert.NoError(t, v.ValidateModifyPosition(&models.ModifyPositionRequest{
			SignedRequest: signed(), Coin: "SOL", AddSize: &add,
		}))
		assert.NoError(t, v.ValidateModifyPosition(&models.ModifyPositionRequest{
			SignedRequest: signed(), Coin: "SOL", ReduceSize: &reduce,
		}))
	})

	t.Run("both fields rejected", func(t *testing.T) {
		err := v.ValidateModifyPosition(&models.ModifyPositionRequest{
			SignedRequest: signed(), Coin: "SOL", AddSize: &add, ReduceSize: &reduce,
		})
		require.Error(t, err)
		assert.Equal(t, "position_fields", ruleOf(t, err))
	})

	t.Run("neither field rejected", func(t *testing.T) {
		err := v.ValidateModifyPosition(&models.ModifyPositionRequest{
			SignedRequest: signed(), Coin: "SOL",
		})
		require.Error(t, err)
		assert.Equal(t, "position_fields", ruleOf(t, err))
	})

	t.Run("non-positive size rejected", func(t *testing.T) {
		zero := 0.0
		err := v.ValidateModifyPosition(&models.ModifyPositionRequest{
			SignedRequest: signed(), Coin: "SOL", AddSize: &zero,
		})
		require.Error(t, err)
		assert.Equal(t, "position_size", ruleOf(t, err))
	})
}

func TestSignatureAndTimestamp(t *testing.T) {
	v := testValidator()

	t.Run("malformed signature rejected", func(t *testing.T) {
		req := baseOrder()
		req.Signature = "0x" + strings.Repeat("a", 10)
		var appErr *pkghttp.AppError
		require.ErrorAs(t, v.ValidateOrder(req), &appErr)
		assert.Equal(t, "ERR_SIGNATURE_FORMAT", appErr.Code)
	})

	t.Run("unprefixed 128 char signature accepted", func(t *testing.T) {
		req := baseOrder()
		req.Signature = strings.Repeat("b", 128)
		assert.NoError(t, v.ValidateOrder(req))
	})

	t.Run("stale timestamp rejected", func(t *testing.T) {
		req := baseOrder()
		req.Timestamp = testNow.Add(-2 * time.Minute).Unix()
		var appErr *pkghttp.AppError
		require.ErrorAs(t, v.ValidateOrder(req), &appErr)
		assert.Equal(t, "ERR_TIMESTAMP_RANGE", appErr.Code)
	})

	t.Run("future timestamp rejected", func(t *testing.T) {
		req := baseOrder()
		req.Timestamp = testNow.Add(2 * time.Minute).Unix()
		assert.Error(t, v.ValidateOrder(req))
	})

	t.Run("timestamp within trading skew passes", func(t *testing.T) {
		req := baseOrder()
		req.Timestamp = testNow.Add(-30 * time.Second).Unix()
		assert.NoError(t, v.ValidateOrder(req))
	})

	t.Run("general skew is looser", func(t *testing.T) {
		ts := testNow.Add(-2 * time.Minute).Unix()
		assert.NoError(t, v.CheckGeneralTimestamp(ts))
		assert.Error(t, v.CheckGeneralTimestamp(testNow.Add(-10*time.Minute).Unix()))
	})
}
