package models

// Trading request bodies. Field names mirror the public API: camelCase JSON
// aliases with snake_case fallbacks where the original clients used both.
// Tag validation covers type/range checks; cross-field rules live in
// internal/order.

// SignedRequest carries the wallet signature and replay-protection timestamp
// common to every trading request. Signature shape and timestamp freshness
// are checked in internal/order, not here.
type SignedRequest struct {
	Signature string `json:"signature" validate:"required,min=1"`
	Timestamp int64  `json:"timestamp" validate:"required"`
}

// OrderRequest is the body for placing a new order.
type OrderRequest struct {
	SignedRequest
	Coin       string   `json:"coin" validate:"required,min=2,max=10"`
	IsBuy      bool     `json:"isBuy"`
	LimitPx    float64  `json:"limitPx" validate:"gte=0"`
	Sz         float64  `json:"sz" validate:"required,gt=0,lte=1000000"`
	OrderType  string   `json:"orderType" default:"limit" validate:"oneof=limit market stop_limit stop_market"`
	StopPx     *float64 `json:"stopPx,omitempty" validate:"omitempty,gte=0"`
	ReduceOnly bool     `json:"reduceOnly"`
	PostOnly   bool     `json:"postOnly"`
	TIF        string   `json:"tif" default:"GTC" validate:"oneof=GTC IOC FOK"`
}

// CancelRequest is the body for canceling a single order.
type CancelRequest struct {
	SignedRequest
	Coin string `json:"coin" validate:"required,min=2,max=10"`
	OID  int64  `json:"oid" validate:"required,gt=0"`
}

// ModifyRequest is the body for modifying an existing order.
type ModifyRequest struct {
	SignedRequest
	Coin  string   `json:"coin" validate:"required,min=2,max=10"`
	OID   int64    `json:"oid" validate:"required,gt=0"`
	NewPx *float64 `json:"newPx,omitempty" validate:"omitempty,gte=0"`
	NewSz *float64 `json:"newSz,omitempty" validate:"omitempty,gt=0,lte=1000000"`
}

// CancelAllRequest is the body for canceling all open orders, optionally
// scoped to one coin.
type CancelAllRequest struct {
	SignedRequest
	Coin string `json:"coin,omitempty" validate:"omitempty,min=2,max=10"`
}

// ClosePositionRequest is the body for closing a position at market.
type ClosePositionRequest struct {
	SignedRequest
	Coin string `json:"coin" validate:"required,min=2,max=10"`
}

// ModifyPositionRequest is the body for adding to or reducing a position.
// Exactly one of AddSize / ReduceSize must be supplied (internal/order).
type ModifyPositionRequest struct {
	SignedRequest
	Coin       string   `json:"coin" validate:"required,min=2,max=10"`
	AddSize    *float64 `json:"addSize,omitempty" validate:"omitempty,gt=0,lte=1000000"`
	ReduceSize *float64 `json:"reduceSize,omitempty" validate:"omitempty,gt=0,lte=1000000"`
}

// SetMarginModeRequest is the body for switching margin mode on a coin.
type SetMarginModeRequest struct {
	SignedRequest
	Coin       string `json:"coin" validate:"required,min=2,max=10"`
	MarginType string `json:"marginType" validate:"required,oneof=cross isolated"`
}

// OrderResponse is the canned execution result returned once a request has
// cleared admission and semantics validation. Actual order routing is the
// execution layer's concern.
type OrderResponse struct {
	Success bool   `json:"success"`
	OrderID int64  `json:"order_id,omitempty"`
	Message string `json:"message,omitempty"`
}
