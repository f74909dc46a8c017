// internal/handler/callback_handler.go
package handler

import (
	"io"
	"net/http"

	"github.com/levisbarua/pesaflow/internal/usecase"
	"github.com/levisbarua/pesaflow/pkg/response"

	"go.uber.org/zap"
)

const maxCallbackBody = 64 << 10

type CallbackHandler struct {
	callbackUC *usecase.CallbackUsecase
	logger     *zap.Logger
}

func NewCallbackHandler(callbackUC *usecase.CallbackUsecase, logger *zap.Logger) *CallbackHandler {
	return &CallbackHandler{
		callbackUC: callbackUC,
		logger:     logger,
	}
}

// HandleMpesaSTKCallback settles the deposit before answering, so a 503 tells
// the provider to redeliver.
func (h *CallbackHandler) HandleMpesaSTKCallback(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCallbackBody))
	if err != nil {
		h.logger.Warn("failed to read callback payload",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err))
		response.Error(w, http.StatusBadRequest, "unreadable callback body")
		return
	}

	h.logger.Debug("mpesa stk callback payload received",
		zap.String("remote_addr", r.RemoteAddr),
		zap.Int("payload_size", len(payload)))

	ack, err := h.callbackUC.HandleCallback(r.Context(), payload)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.JSON(w, http.StatusOK, ack)
}
