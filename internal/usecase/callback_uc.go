// internal/usecase/callback_uc.go
package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/levisbarua/pesaflow/config"
	"github.com/levisbarua/pesaflow/internal/domain"
	"github.com/levisbarua/pesaflow/internal/events"
	"github.com/levisbarua/pesaflow/internal/metrics"
	"github.com/levisbarua/pesaflow/internal/provider/mpesa"
	"github.com/levisbarua/pesaflow/internal/repository"
	"github.com/levisbarua/pesaflow/pkg/id"

	"go.uber.org/zap"
)

const defaultFailureReason = "payment failed"

type CallbackUsecase struct {
	store        repository.TransactionStore
	publisher    events.Publisher
	storeTimeout time.Duration
	now          func() time.Time
	logger       *zap.Logger
}

func NewCallbackUsecase(
	store repository.TransactionStore,
	publisher events.Publisher,
	storeCfg config.StoreConfig,
	logger *zap.Logger,
) *CallbackUsecase {
	return &CallbackUsecase{
		store:        store,
		publisher:    publisher,
		storeTimeout: storeCfg.Timeout,
		now:          func() time.Time { return time.Now().UTC() },
		logger:       logger,
	}
}

// HandleCallback settles the pending deposit named by the callback. Unknown
// ids and transactions already in a terminal state are acknowledged as ignored.
func (uc *CallbackUsecase) HandleCallback(ctx context.Context, raw []byte) (*domain.CallbackAck, error) {
	result, err := mpesa.ParseSTKCallback(raw)
	if err != nil {
		metrics.CallbacksProcessed.WithLabelValues("malformed").Inc()
		uc.logger.Warn("rejecting malformed stk callback",
			zap.Int("payload_size", len(raw)),
			zap.Error(err))
		return nil, err
	}

	uc.logger.Info("stk callback received",
		zap.Stringer("envelope", result.Envelope),
		zap.String("checkout_request_id", result.CheckoutRequestID),
		zap.String("merchant_request_id", result.MerchantRequestID),
		zap.Int("result_code", result.ResultCode),
		zap.String("result_desc", result.ResultDesc))

	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uc.storeTimeout)
	defer cancel()

	var (
		settled      *domain.Transaction
		ignoreReason string
	)
	err = uc.store.AtomicApply(storeCtx, repository.ApplyKeys{TransactionID: result.CheckoutRequestID},
		func(snap *repository.Snapshot) (*repository.Mutation, error) {
			settled = nil
			if snap.Transaction == nil {
				ignoreReason = "unknown transaction"
				return nil, repository.ErrNoChange
			}
			if snap.Transaction.Status != domain.TransactionStatusPending {
				ignoreReason = "already " + string(snap.Transaction.Status)
				return nil, repository.ErrNoChange
			}

			tx := *snap.Transaction
			now := uc.now()
			if result.Success() {
				if err := tx.Complete(result.Receipt(), now); err != nil {
					return nil, err
				}
				settled = &tx
				return &repository.Mutation{
					Transaction:  &tx,
					BalanceDelta: tx.BalanceEffect(),
					Notification: domain.DepositReceivedNotification(id.GenerateAt(id.PrefixNotification, now), &tx, now),
				}, nil
			}

			reason := result.ResultDesc
			if reason == "" {
				reason = defaultFailureReason
			}
			if err := tx.Fail(reason, now); err != nil {
				return nil, err
			}
			settled = &tx
			return &repository.Mutation{Transaction: &tx}, nil
		})

	if errors.Is(err, repository.ErrNoChange) {
		if ignoreReason == "" {
			ignoreReason = "unknown transaction"
		}
		metrics.CallbacksProcessed.WithLabelValues("ignored").Inc()
		uc.logger.Info("stk callback ignored",
			zap.String("checkout_request_id", result.CheckoutRequestID),
			zap.String("reason", ignoreReason))
		return &domain.CallbackAck{Result: domain.CallbackOutcomeIgnored}, nil
	}
	if err != nil {
		metrics.CallbacksProcessed.WithLabelValues("store_error").Inc()
		uc.logger.Error("failed to apply stk callback",
			zap.String("checkout_request_id", result.CheckoutRequestID),
			zap.Error(err))

		var storeErr *domain.StoreUnavailableError
		if errors.As(err, &storeErr) {
			return nil, err
		}
		return nil, &domain.StoreUnavailableError{Op: "apply callback", Err: err}
	}

	metrics.CallbacksProcessed.WithLabelValues(string(settled.Status)).Inc()
	uc.logger.Info("deposit settled",
		zap.String("transaction_id", settled.ID),
		zap.String("user_id", settled.UserID),
		zap.String("status", string(settled.Status)),
		zap.String("reference", settled.Reference),
		zap.Int64("amount", int64(settled.Amount)))

	publishSettlement(uc.publisher, uc.logger, settled)
	return &domain.CallbackAck{Result: domain.CallbackOutcomeOK}, nil
}
