// internal/handler/health_handler.go
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/levisbarua/pesaflow/internal/usecase"
	"github.com/levisbarua/pesaflow/pkg/response"

	"go.uber.org/zap"
)

type HealthResponse struct {
	Status      string `json:"status"`
	BaseURL     string `json:"base_url"`
	CallbackURL string `json:"callback_url"`
	Store       string `json:"store"`
}

type HealthHandler struct {
	walletUC    *usecase.WalletUsecase
	baseURL     string
	callbackURL string
	logger      *zap.Logger
}

func NewHealthHandler(walletUC *usecase.WalletUsecase, publicBaseURL, callbackURL string, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		walletUC:    walletUC,
		baseURL:     publicBaseURL,
		callbackURL: callbackURL,
		logger:      logger,
	}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:      "ok",
		BaseURL:     h.baseURL,
		CallbackURL: h.callbackURL,
		Store:       "up",
	}
	status := http.StatusOK

	if err := h.walletUC.Ping(ctx); err != nil {
		h.logger.Warn("store health check failed", zap.Error(err))
		resp.Status = "degraded"
		resp.Store = "down"
		status = http.StatusServiceUnavailable
	}
	response.JSON(w, status, resp)
}
