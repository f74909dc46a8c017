package domain

import (
	"fmt"
	"time"
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notification is created as a side effect of a transaction reaching a terminal state.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// DepositReceivedNotification is emitted when a deposit completes.
func DepositReceivedNotification(id string, tx *Transaction, at time.Time) *Notification {
	return &Notification{
		ID:        id,
		UserID:    tx.UserID,
		Title:     "Deposit Received",
		Message:   fmt.Sprintf("Your deposit of %s was successful. M-Pesa ref %s.", tx.Amount, tx.Reference),
		Severity:  SeveritySuccess,
		CreatedAt: at,
	}
}

// WithdrawalSentNotification is emitted when a withdrawal is recorded.
func WithdrawalSentNotification(id string, tx *Transaction, at time.Time) *Notification {
	return &Notification{
		ID:        id,
		UserID:    tx.UserID,
		Title:     "Withdrawal Sent",
		Message:   fmt.Sprintf("%s has been sent to %s.", tx.Amount, tx.PhoneNumber),
		Severity:  SeverityInfo,
		CreatedAt: at,
	}
}
