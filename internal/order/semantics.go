// Package order enforces cross-field business rules on trading requests
// after tag-level type and range validation has passed.
package order

import (
	"strings"
	"time"

	"TradeGate/internal/domain/models"
	"TradeGate/internal/security"
	pkghttp "TradeGate/pkg/http"
)

// Order categories and time-in-force values accepted by the API.
const (
	TypeLimit      = "limit"
	TypeMarket     = "market"
	TypeStopLimit  = "stop_limit"
	TypeStopMarket = "stop_market"

	TIFGoodTillCancel    = "GTC"
	TIFImmediateOrCancel = "IOC"
	TIFFillOrKill        = "FOK"
)

// Validator checks order intents against business rules and the signature
// and timestamp freshness requirements of signed trading requests.
// It is stateless and safe for concurrent use.
type Validator struct {
	generalSkew time.Duration
	tradingSkew time.Duration
	now         func() time.Time
}

// Option configures a Validator.
type Option func(*Validator)

// WithSkew sets the timestamp freshness tolerances. The general tolerance
// applies to most signed requests; the trading tolerance is the stricter
// bound used on the signature path.
func WithSkew(general, trading time.Duration) Option {
	return func(v *Validator) {
		if general > 0 {
			v.generalSkew = general
		}
		if trading > 0 {
			v.tradingSkew = trading
		}
	}
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) {
		if now != nil {
			v.now = now
		}
	}
}

// NewValidator builds a Validator with 300s general and 60s trading skew.
func NewValidator(opts ...Option) *Validator {
	v := &Validator{
		generalSkew: 300 * time.Second,
		tradingSkew: 60 * time.Second,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ValidateOrder checks a new order against the full rule set. All rules must
// hold; the first violation fails the request.
func (v *Validator) ValidateOrder(req *models.OrderRequest) error {
	if !security.ValidateSymbol(strings.ToUpper(req.Coin)) {
		return pkghttp.FieldError("coin", "symbol must be 2-10 uppercase letters")
	}

	switch req.OrderType {
	case TypeMarket:
		if req.LimitPx != 0 {
			return pkghttp.OrderRuleError("market_price",
				"market orders must have limit_px equal to 0")
		}
	case TypeLimit:
		if req.LimitPx <= 0 {
			return pkghttp.OrderRuleError("limit_price",
				"limit orders must have limit_px greater than 0")
		}
	}

	if isStop(req.OrderType) && req.StopPx == nil {
		return pkghttp.OrderRuleError("stop_price",
			"stop orders require a stop_px")
	}

	if req.PostOnly {
		if req.OrderType != TypeLimit {
			return pkghttp.OrderRuleError("post_only_type",
				"post_only is only valid for limit orders")
		}
		if req.TIF == TIFImmediateOrCancel || req.TIF == TIFFillOrKill {
			return pkghttp.OrderRuleError("post_only_tif",
				"post_only cannot be combined with IOC or FOK time-in-force")
		}
	}

	return v.validateSignature(&req.SignedRequest)
}

// ValidateCancel checks a single-order cancel request.
func (v *Validator) ValidateCancel(req *models.CancelRequest) error {
	if !security.ValidateSymbol(strings.ToUpper(req.Coin)) {
		return pkghttp.FieldError("coin", "symbol must be 2-10 uppercase letters")
	}
	return v.validateSignature(&req.SignedRequest)
}

// ValidateCancelAll checks a cancel-all request. Coin is optional.
func (v *Validator) ValidateCancelAll(req *models.CancelAllRequest) error {
	if req.Coin != "" && !security.ValidateSymbol(strings.ToUpper(req.Coin)) {
		return pkghttp.FieldError("coin", "symbol must be 2-10 uppercase letters")
	}
	return v.validateSignature(&req.SignedRequest)
}

// ValidateModify checks an order modification. At least one of new price or
// new size must be supplied.
func (v *Validator) ValidateModify(req *models.ModifyRequest) error {
	if !security.ValidateSymbol(strings.ToUpper(req.Coin)) {
		return pkghttp.FieldError("coin", "symbol must be 2-10 uppercase letters")
	}
	if req.NewPx == nil && req.NewSz == nil {
		return pkghttp.OrderRuleError("modify_fields",
			"modify requires at least one of new_px or new_sz")
	}
	return v.validateSignature(&req.SignedRequest)
}

// ValidateClosePosition checks a close-position request.
func (v *Validator) ValidateClosePosition(req *models.ClosePositionRequest) error {
	if !security.ValidateSymbol(strings.ToUpper(req.Coin)) {
		return pkghttp.FieldError("coin", "symbol must be 2-10 uppercase letters")
	}
	return v.validateSignature(&req.SignedRequest)
}

// ValidateModifyPosition checks a position-size change. Exactly one of
// add_size / reduce_size must be supplied and be strictly positive.
func (v *Validator) ValidateModifyPosition(req *models.ModifyPositionRequest) error {
	if !security.ValidateSymbol(strings.ToUpper(req.Coin)) {
		return pkghttp.FieldError("coin", "symbol must be 2-10 uppercase letters")
	}
	if (req.AddSize == nil) == (req.ReduceSize == nil) {
		return pkghttp.OrderRuleError("position_fields",
			"modify position requires exactly one of add_size or reduce_size")
	}
	if req.AddSize != nil && *req.AddSize <= 0 {
		return pkghttp.OrderRuleError("position_size", "add_size must be positive")
	}
	if req.ReduceSize != nil && *req.ReduceSize <= 0 {
		return pkghttp.OrderRuleError("position_size", "reduce_size must be positive")
	}
	return v.validateSignature(&req.SignedRequest)
}

// ValidateSetMarginMode checks a margin-mode switch request.
func (v *Validator) ValidateSetMarginMode(req *models.SetMarginModeRequest) error {
	if !security.ValidateSymbol(strings.ToUpper(req.Coin)) {
		return pkghttp.FieldError("coin", "symbol must be 2-10 uppercase letters")
	}
	return v.validateSignature(&req.SignedRequest)
}

// validateSignature enforces the trading signature path: shape check plus
// the stricter freshness tolerance.
func (v *Validator) validateSignature(req *models.SignedRequest) error {
	if !security.ValidateSignatureFormat(req.Signature) {
		return pkghttp.SignatureFormatError()
	}
	return v.checkTimestamp(req.Timestamp, v.tradingSkew)
}

// CheckGeneralTimestamp applies the looser freshness tolerance used by
// non-trading signed requests.
func (v *Validator) CheckGeneralTimestamp(ts int64) error {
	return v.checkTimestamp(ts, v.generalSkew)
}

func (v *Validator) checkTimestamp(ts int64, skew time.Duration) error {
	now := v.now().Unix()
	max := int64(skew.Seconds())
	diff := now - ts
	if diff < 0 {
		diff = -diff
	}
	if diff > max {
		return pkghttp.TimestampError(ts, now, max)
	}
	return nil
}

func isStop(orderType string) bool {
	return strings.Contains(orderType, "stop")
}
