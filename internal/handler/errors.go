// internal/handler/errors.go
package handler

import (
	"errors"
	"net/http"

	"github.com/levisbarua/pesaflow/internal/domain"
	"github.com/levisbarua/pesaflow/pkg/response"

	"go.uber.org/zap"
)

// statusFor maps domain errors to HTTP statuses.
func statusFor(err error) int {
	var (
		validationErr *domain.ValidationError
		malformedErr  *domain.MalformedCallbackError
		authErr       *domain.UpstreamAuthError
		initErr       *domain.PaymentInitiationError
		storeErr      *domain.StoreUnavailableError
	)
	switch {
	case errors.As(err, &validationErr), errors.As(err, &malformedErr):
		return http.StatusBadRequest
	case errors.As(err, &authErr), errors.As(err, &initErr):
		return http.StatusBadGateway
	case errors.As(err, &storeErr):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrDuplicateRequest):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status := statusFor(err)
	msg := err.Error()

	var storeErr *domain.StoreUnavailableError
	switch {
	case status == http.StatusInternalServerError:
		logger.Error("unhandled error", zap.Error(err))
		msg = "internal server error"
	case errors.As(err, &storeErr):
		msg = "service temporarily unavailable"
	}
	response.Error(w, status, msg)
}
