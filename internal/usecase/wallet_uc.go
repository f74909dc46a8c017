// internal/usecase/wallet_uc.go
package usecase

import (
	"context"
	"time"

	"github.com/levisbarua/pesaflow/internal/domain"
	"github.com/levisbarua/pesaflow/internal/repository"

	"go.uber.org/zap"
)

// WalletUsecase serves the read side of the wallet plus first-login user creation.
type WalletUsecase struct {
	store  repository.TransactionStore
	now    func() time.Time
	logger *zap.Logger
}

func NewWalletUsecase(store repository.TransactionStore, logger *zap.Logger) *WalletUsecase {
	return &WalletUsecase{
		store:  store,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
}

// CreateUser is create-if-absent; an existing user is returned unchanged.
func (uc *WalletUsecase) CreateUser(ctx context.Context, req *domain.CreateUserRequest) (*domain.User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	user, err := domain.NewUser(req.UserID, req.DisplayName, req.PhotoURL, uc.now())
	if err != nil {
		return nil, err
	}

	stored, err := uc.store.EnsureUser(ctx, user)
	if err != nil {
		uc.logger.Error("failed to ensure user", zap.String("user_id", req.UserID), zap.Error(err))
		return nil, err
	}
	return stored, nil
}

func (uc *WalletUsecase) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	return uc.store.GetUser(ctx, userID)
}

func (uc *WalletUsecase) GetTransaction(ctx context.Context, txID string) (*domain.Transaction, error) {
	return uc.store.GetTransaction(ctx, txID)
}

func (uc *WalletUsecase) ListTransactions(ctx context.Context, userID string, limit int) ([]domain.Transaction, error) {
	return uc.store.ListTransactions(ctx, userID, limit)
}

func (uc *WalletUsecase) ListNotifications(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	return uc.store.ListNotifications(ctx, userID, limit)
}

func (uc *WalletUsecase) MarkNotificationRead(ctx context.Context, userID, notificationID string) error {
	return uc.store.MarkNotificationRead(ctx, userID, notificationID)
}

// Ping reports whether the store is reachable.
func (uc *WalletUsecase) Ping(ctx context.Context) error {
	return uc.store.Ping(ctx)
}
