// internal/handler/wallet_handler.go
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/levisbarua/pesaflow/internal/domain"
	"github.com/levisbarua/pesaflow/internal/usecase"
	"github.com/levisbarua/pesaflow/pkg/response"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type WalletHandler struct {
	walletUC *usecase.WalletUsecase
	logger   *zap.Logger
}

func NewWalletHandler(walletUC *usecase.WalletUsecase, logger *zap.Logger) *WalletHandler {
	return &WalletHandler{
		walletUC: walletUC,
		logger:   logger,
	}
}

func (h *WalletHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateUserRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.walletUC.CreateUser(r.Context(), &req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.JSON(w, http.StatusOK, user)
}

func (h *WalletHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.walletUC.GetUser(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.JSON(w, http.StatusOK, user)
}

func (h *WalletHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.walletUC.ListTransactions(r.Context(), chi.URLParam(r, "userId"), limitParam(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.JSON(w, http.StatusOK, txs)
}

func (h *WalletHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := h.walletUC.GetTransaction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.JSON(w, http.StatusOK, tx)
}

func (h *WalletHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	notes, err := h.walletUC.ListNotifications(r.Context(), chi.URLParam(r, "userId"), limitParam(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.JSON(w, http.StatusOK, notes)
}

func (h *WalletHandler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	err := h.walletUC.MarkNotificationRead(r.Context(), chi.URLParam(r, "userId"), chi.URLParam(r, "notificationId"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// limitParam returns 0 (store default) for a missing or unparsable ?limit.
func limitParam(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		return 0
	}
	return limit
}
