// internal/repository/store.go
package repository

import (
	"context"
	"errors"
	"math"

	"github.com/levisbarua/pesaflow/internal/domain"
)

// ErrNoChange is returned by an ApplyFunc to abort without writing anything.
// AtomicApply passes it back to the caller unchanged.
var ErrNoChange = errors.New("no change")

var (
	ErrNonPositiveAmount = errors.New("transaction amount must be positive")
	ErrBalanceOverflow   = errors.New("balance would overflow")
)

// TransactionStore persists users, transactions and notifications.
type TransactionStore interface {
	GetTransaction(ctx context.Context, id string) (*domain.Transaction, error)

	// CreateIfAbsent writes tx unless a record with the same id exists,
	// in which case it returns domain.ErrDuplicateRequest.
	CreateIfAbsent(ctx context.Context, tx *domain.Transaction) error

	// AtomicApply reads the records named by keys, hands them to fn and writes
	// the returned mutation all-or-nothing. Concurrent applies on the same
	// transaction or user are serialized.
	AtomicApply(ctx context.Context, keys ApplyKeys, fn ApplyFunc) error

	EnsureUser(ctx context.Context, user *domain.User) (*domain.User, error)
	GetUser(ctx context.Context, id string) (*domain.User, error)
	ListTransactions(ctx context.Context, userID string, limit int) ([]domain.Transaction, error)
	ListNotifications(ctx context.Context, userID string, limit int) ([]domain.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, notificationID string) error
	Ping(ctx context.Context) error
}

// ApplyKeys names the records an apply touches. UserID may be empty when the
// transaction exists; the owner is then taken from the stored record.
type ApplyKeys struct {
	TransactionID string
	UserID        string
}

// Snapshot is the state handed to an ApplyFunc. Transaction is nil when no
// record with the requested id exists.
type Snapshot struct {
	Transaction *domain.Transaction
	User        domain.User
}

// Mutation is written atomically. A nil Transaction or Notification is skipped.
type Mutation struct {
	Transaction  *domain.Transaction
	BalanceDelta int64
	Notification *domain.Notification
}

type ApplyFunc func(snap *Snapshot) (*Mutation, error)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

// resolveOwner checks that the apply targets a known user.
func resolveOwner(keys ApplyKeys, tx *domain.Transaction) (string, error) {
	switch {
	case tx != nil && keys.UserID != "" && tx.UserID != keys.UserID:
		return "", errors.New("transaction belongs to a different user")
	case tx != nil:
		return tx.UserID, nil
	case keys.UserID != "":
		return keys.UserID, nil
	default:
		return "", ErrNoChange
	}
}

// validateMutation rejects writes that would break the transaction invariants.
func validateMutation(snap *Snapshot, m *Mutation) error {
	if m.Transaction != nil {
		if m.Transaction.ID != "" && snap.Transaction != nil && m.Transaction.ID != snap.Transaction.ID {
			return errors.New("mutation changes transaction id")
		}
		if snap.Transaction != nil && snap.Transaction.Status.IsTerminal() {
			return domain.ErrInvalidTransition
		}
		if m.Transaction.UserID != snap.User.ID {
			return errors.New("mutation transaction owner mismatch")
		}
		if m.Transaction.Amount <= 0 {
			return ErrNonPositiveAmount
		}
	}
	if m.Notification != nil && m.Notification.UserID != snap.User.ID {
		return errors.New("mutation notification owner mismatch")
	}
	balance := int64(snap.User.Balance)
	if m.BalanceDelta > 0 && balance > math.MaxInt64-m.BalanceDelta {
		return ErrBalanceOverflow
	}
	if balance+m.BalanceDelta < 0 {
		return domain.ErrInsufficientFunds
	}
	return nil
}
