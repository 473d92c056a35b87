package api

import (
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"

	"TradeGate/internal/domain/models"
	"TradeGate/internal/order"
	xhttp "TradeGate/pkg/http"
	xlogger "TradeGate/pkg/logger"
)

// TradeHandler exposes the trading endpoints. Requests reaching these
// handlers have already cleared the admission middleware; what remains is
// struct validation and order semantics before hand-off to execution.
type TradeHandler struct {
	logger    *xlogger.Logger
	semantics *order.Validator
	orderSeq  atomic.Int64
}

func NewTradeHandler(logger *xlogger.Logger, semantics *order.Validator) *TradeHandler {
	h := &TradeHandler{logger: logger, semantics: semantics}
	h.orderSeq.Store(time.Now().UnixMilli())
	return h
}

func (h *TradeHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/trade")
	g.POST("/place", h.Place)
	g.POST("/cancel", h.Cancel)
	g.POST("/modify", h.Modify)
	g.POST("/cancel-all", h.CancelAll)
	g.POST("/close-position", h.ClosePosition)
	g.POST("/modify-position", h.ModifyPosition)
	g.POST("/set-margin-mode", h.SetMarginMode)
}

func (h *TradeHandler) Place(c echo.Context) error {
	req := &models.OrderRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.semantics.ValidateOrder(req); err != nil {
		h.logger.Warn("order rejected", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, &models.OrderResponse{
		Success: true,
		OrderID: h.nextOrderID(),
		Message: "order accepted",
	})
}

func (h *TradeHandler) Cancel(c echo.Context) error {
	req := &models.CancelRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.semantics.ValidateCancel(req); err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, &models.OrderResponse{
		Success: true,
		OrderID: req.OID,
		Message: "cancel accepted",
	})
}

func (h *TradeHandler) Modify(c echo.Context) error {
	req := &models.ModifyRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.semantics.ValidateModify(req); err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, &models.OrderResponse{
		Success: true,
		OrderID: req.OID,
		Message: "modify accepted",
	})
}

func (h *TradeHandler) CancelAll(c echo.Context) error {
	req := &models.CancelAllRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.semantics.ValidateCancelAll(req); err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, &models.OrderResponse{
		Success: true,
		Message: "cancel-all accepted",
	})
}

func (h *TradeHandler) ClosePosition(c echo.Context) error {
	req := &models.ClosePositionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.semantics.ValidateClosePosition(req); err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, &models.OrderResponse{
		Success: true,
		OrderID: h.nextOrderID(),
		Message: "close accepted",
	})
}

func (h *TradeHandler) ModifyPosition(c echo.Context) error {
	req := &models.ModifyPositionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.semantics.ValidateModifyPosition(req); err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, &models.OrderResponse{
		Success: true,
		OrderID: h.nextOrderID(),
		Message: "position change accepted",
	})
}

func (h *TradeHandler) SetMarginMode(c echo.Context) error {
	req := &models.SetMarginModeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.semantics.ValidateSetMarginMode(req); err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, &models.OrderResponse{
		Success: true,
		Message: "margin mode updated",
	})
}

func (h *TradeHandler) nextOrderID() int64 {
	return h.orderSeq.Add(1)
}
