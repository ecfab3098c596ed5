package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alejandrodnm/fxbot/internal/application/controller"
	"github.com/alejandrodnm/fxbot/internal/domain"
	"github.com/alejandrodnm/fxbot/internal/features"
	"github.com/gin-gonic/gin"
)

// PredictRequest is the body of POST /api/agent/predict.
type PredictRequest struct {
	Prices []float64 `json:"prices" binding:"required,min=1"`
	Model  string    `json:"model"`
}

// OpenTradeRequest is the body of POST /api/accounts/:id/trades.
type OpenTradeRequest struct {
	Type   string  `json:"type" binding:"required"`
	Amount float64 `json:"amount"`
}

// ErrorResponse is returned for every failed request. Rejections carry the
// kind (risk|ledger) in Error and the code in Reason.
type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// HandlePredict answers with the upstream predictor when it is available
// and with the requested local strategy otherwise.
func (s *Server) HandlePredict(c *gin.Context) {
	var req PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "prices required", Detail: err.Error()})
		return
	}
	if err := features.Validate(req.Prices); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid prices", Detail: err.Error()})
		return
	}

	model := req.Model
	if model == "" {
		model = string(s.cfg.DefaultModel)
	}
	local, err := s.strategies.Lookup(model)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unknown model", Detail: err.Error()})
		return
	}

	if s.predictor != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.PredictorTimeout)
		pred, err := s.predictor.Predict(ctx, req.Prices, string(local.Name()))
		cancel()
		if err == nil {
			c.JSON(http.StatusOK, pred)
			return
		}
		slog.Warn("httpapi: predictor unavailable, using local strategy", "model", local.Name(), "err", err)
	}

	c.JSON(http.StatusOK, local.Predict(req.Prices))
}

// HandleSnapshot responde a GET /api/accounts/:id/snapshot.
func (s *Server) HandleSnapshot(c *gin.Context) {
	ctrl, ok := s.controller(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, ctrl.Account().Snapshot())
}

// HandleOpenTrade responde a POST /api/accounts/:id/trades.
func (s *Server) HandleOpenTrade(c *gin.Context) {
	ctrl, ok := s.controller(c)
	if !ok {
		return
	}

	var req OpenTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Detail: err.Error()})
		return
	}

	side := domain.Side(strings.ToUpper(strings.TrimSpace(req.Type)))
	trade, err := ctrl.OpenTrade(c.Request.Context(), side, req.Amount)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, trade)
}

// HandleCloseTrade responde a POST /api/accounts/:id/trades/:tradeId/close.
func (s *Server) HandleCloseTrade(c *gin.Context) {
	ctrl, ok := s.controller(c)
	if !ok {
		return
	}

	trade, err := ctrl.CloseTrade(c.Request.Context(), c.Param("tradeId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, trade)
}

func (s *Server) controller(c *gin.Context) (*controller.Controller, bool) {
	id := c.Param("id")
	ctrl, ok := s.controllers[id]
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "account not found", Detail: id})
	}
	return ctrl, ok
}

// writeError traduce los errores de dominio a status HTTP.
func writeError(c *gin.Context, err error) {
	kind, code := domain.RejectionKind(err)
	switch {
	case errors.Is(err, domain.ErrTradeNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: kind, Reason: code, Detail: err.Error()})
	case kind != "":
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: kind, Reason: code, Detail: err.Error()})
	default:
		slog.Error("httpapi: request failed", "path", c.FullPath(), "err", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal", Detail: err.Error()})
	}
}
