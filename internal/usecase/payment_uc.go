// internal/usecase/payment_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/levisbarua/pesaflow/config"
	"github.com/levisbarua/pesaflow/internal/domain"
	"github.com/levisbarua/pesaflow/internal/events"
	"github.com/levisbarua/pesaflow/internal/metrics"
	"github.com/levisbarua/pesaflow/internal/provider"
	"github.com/levisbarua/pesaflow/internal/provider/mpesa"
	"github.com/levisbarua/pesaflow/internal/repository"
	"github.com/levisbarua/pesaflow/pkg/id"

	"go.uber.org/zap"
)

type PaymentUsecase struct {
	provider     provider.PushProvider
	store        repository.TransactionStore
	publisher    events.Publisher
	callbackURL  string
	storeTimeout time.Duration
	now          func() time.Time
	logger       *zap.Logger
}

func NewPaymentUsecase(
	pushProvider provider.PushProvider,
	store repository.TransactionStore,
	publisher events.Publisher,
	server config.ServerConfig,
	storeCfg config.StoreConfig,
	logger *zap.Logger,
) (*PaymentUsecase, error) {
	if server.PublicBaseURL == "" {
		return nil, domain.ErrCallbackURLNotConfigured
	}
	return &PaymentUsecase{
		provider:     pushProvider,
		store:        store,
		publisher:    publisher,
		callbackURL:  server.CallbackURL(),
		storeTimeout: storeCfg.Timeout,
		now:          func() time.Time { return time.Now().UTC() },
		logger:       logger,
	}, nil
}

func (uc *PaymentUsecase) CallbackURL() string {
	return uc.callbackURL
}

// InitiateDeposit prompts the payer's phone and records a PENDING deposit keyed
// by the provider's CheckoutRequestID before returning the acceptance.
func (uc *PaymentUsecase) InitiateDeposit(ctx context.Context, req *domain.DepositRequest) (*domain.DepositResult, error) {
	if err := req.Validate(); err != nil {
		metrics.DepositsInitiated.WithLabelValues("invalid").Inc()
		return nil, err
	}

	phone, err := mpesa.NormalizePhone(req.PhoneNumber)
	if err != nil {
		metrics.DepositsInitiated.WithLabelValues("invalid").Inc()
		return nil, err
	}
	whole := domain.TruncateWhole(req.Amount)
	amount, err := domain.AmountFromWhole(whole)
	if err != nil {
		metrics.DepositsInitiated.WithLabelValues("invalid").Inc()
		return nil, err
	}

	uc.logger.Info("initiating deposit",
		zap.String("provider", uc.provider.Name()),
		zap.String("user_id", req.UserID),
		zap.String("phone_number", phone),
		zap.Int64("amount", whole),
		zap.String("account_reference", req.AccountReference))

	resp, err := uc.provider.InitiatePush(ctx, &provider.PushRequest{
		PhoneNumber:      phone,
		Amount:           whole,
		AccountReference: req.AccountReference,
		CallbackURL:      uc.callbackURL,
	})
	if err != nil {
		metrics.DepositsInitiated.WithLabelValues("rejected").Inc()
		uc.logger.Warn("deposit initiation failed",
			zap.String("user_id", req.UserID),
			zap.Error(err))
		return nil, err
	}

	pending := domain.NewPendingDeposit(
		resp.CheckoutRequestID,
		req.UserID,
		phone,
		req.AccountReference,
		amount,
		uc.now(),
	)

	// The payer has already been prompted, so the record must be written even
	// if the caller goes away.
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uc.storeTimeout)
	defer cancel()

	if err := uc.store.CreateIfAbsent(storeCtx, pending); err != nil {
		if errors.Is(err, domain.ErrDuplicateRequest) {
			metrics.DepositsInitiated.WithLabelValues("duplicate").Inc()
			uc.logger.Warn("provider returned an already recorded checkout request id",
				zap.String("checkout_request_id", resp.CheckoutRequestID),
				zap.String("user_id", req.UserID))
			return nil, err
		}

		metrics.DepositsInitiated.WithLabelValues("unrecorded").Inc()
		metrics.UnrecordedAcceptances.Inc()
		uc.logger.Error("provider accepted deposit but pending record was not written",
			zap.Bool("manual_reconciliation", true),
			zap.String("correlation_id", id.CorrelationID()),
			zap.String("checkout_request_id", resp.CheckoutRequestID),
			zap.String("merchant_request_id", resp.MerchantRequestID),
			zap.String("user_id", req.UserID),
			zap.String("phone_number", phone),
			zap.Int64("amount", whole),
			zap.ByteString("provider_response", resp.Raw),
			zap.Error(err))

		var storeErr *domain.StoreUnavailableError
		if errors.As(err, &storeErr) {
			return nil, err
		}
		return nil, &domain.StoreUnavailableError{Op: "record pending deposit", Err: err}
	}

	metrics.DepositsInitiated.WithLabelValues("accepted").Inc()
	uc.logger.Info("deposit accepted",
		zap.String("checkout_request_id", resp.CheckoutRequestID),
		zap.String("merchant_request_id", resp.MerchantRequestID),
		zap.String("user_id", req.UserID))

	return &domain.DepositResult{
		MerchantRequestID:   resp.MerchantRequestID,
		CheckoutRequestID:   resp.CheckoutRequestID,
		ResponseCode:        resp.ResponseCode,
		ResponseDescription: resp.ResponseDescription,
		CustomerMessage:     resp.CustomerMessage,
	}, nil
}

// Withdraw debits the wallet and records a COMPLETED withdrawal in one apply.
func (uc *PaymentUsecase) Withdraw(ctx context.Context, req *domain.WithdrawalRequest) (*domain.Transaction, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	phone, err := mpesa.NormalizePhone(req.PhoneNumber)
	if err != nil {
		return nil, err
	}

	amount, err := domain.AmountFromWhole(domain.TruncateWhole(req.Amount))
	if err != nil {
		return nil, err
	}
	description := req.Description
	if description == "" {
		description = fmt.Sprintf("Withdrawal to %s", phone)
	}

	now := uc.now()
	txID := id.GenerateAt(id.PrefixWithdrawal, now)

	storeCtx, cancel := context.WithTimeout(ctx, uc.storeTimeout)
	defer cancel()

	var recorded *domain.Transaction
	err = uc.store.AtomicApply(storeCtx, repository.ApplyKeys{TransactionID: txID, UserID: req.UserID},
		func(snap *repository.Snapshot) (*repository.Mutation, error) {
			if snap.Transaction != nil {
				return nil, domain.ErrDuplicateRequest
			}
			tx := &domain.Transaction{
				ID:          txID,
				UserID:      snap.User.ID,
				Type:        domain.TransactionTypeWithdrawal,
				Amount:      amount,
				Currency:    domain.Currency,
				Status:      domain.TransactionStatusCompleted,
				Description: description,
				PhoneNumber: phone,
				CreatedAt:   now,
				UpdatedAt:   now,
				CompletedAt: &now,
			}
			recorded = tx
			return &repository.Mutation{
				Transaction:  tx,
				BalanceDelta: tx.BalanceEffect(),
				Notification: domain.WithdrawalSentNotification(id.GenerateAt(id.PrefixNotification, now), tx, now),
			}, nil
		})
	if err != nil {
		uc.logger.Warn("withdrawal rejected",
			zap.String("user_id", req.UserID),
			zap.Int64("amount", int64(amount)),
			zap.Error(err))
		return nil, err
	}

	uc.logger.Info("withdrawal recorded",
		zap.String("transaction_id", recorded.ID),
		zap.String("user_id", recorded.UserID),
		zap.Int64("amount", int64(recorded.Amount)))

	publishSettlement(uc.publisher, uc.logger, recorded)
	return recorded, nil
}

// publishSettlement is best-effort and runs after the store has committed.
func publishSettlement(publisher events.Publisher, logger *zap.Logger, tx *domain.Transaction) {
	event := events.NewSettlementEvent(tx)
	if event == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := publisher.Publish(ctx, event); err != nil {
		logger.Error("failed to publish settlement event",
			zap.String("type", event.Type),
			zap.String("transaction_id", tx.ID),
			zap.Error(err))
	}
}
