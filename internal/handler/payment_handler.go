// internal/handler/payment_handler.go
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/levisbarua/pesaflow/internal/domain"
	"github.com/levisbarua/pesaflow/internal/usecase"
	"github.com/levisbarua/pesaflow/pkg/response"

	"go.uber.org/zap"
)

const maxRequestBody = 1 << 20

type PaymentHandler struct {
	paymentUC *usecase.PaymentUsecase
	logger    *zap.Logger
}

func NewPaymentHandler(paymentUC *usecase.PaymentUsecase, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		paymentUC: paymentUC,
		logger:    logger,
	}
}

// Deposit starts an STK push and returns the provider's acceptance.
func (h *PaymentHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req domain.DepositRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.paymentUC.InitiateDeposit(r.Context(), &req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.JSON(w, http.StatusOK, result)
}

func (h *PaymentHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req domain.WithdrawalRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tx, err := h.paymentUC.Withdraw(r.Context(), &req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.JSON(w, http.StatusOK, tx)
}
