package domain

import "time"

type TransactionType string
type TransactionStatus string

const (
	TransactionTypeDeposit    TransactionType = "DEPOSIT"
	TransactionTypeWithdrawal TransactionType = "WITHDRAWAL"
)

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
)

// IsTerminal reports whether no further transition is allowed.
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusCompleted || s == TransactionStatusFailed
}

// Transaction is a wallet movement. For deposits the ID is the provider's
// CheckoutRequestID so the pending record and its callback share a key.
// Amount is always a positive magnitude; Type carries the sign.
type Transaction struct {
	ID          string            `json:"id"`
	UserID      string            `json:"user_id"`
	Type        TransactionType   `json:"type"`
	Amount      Amount            `json:"amount"`
	Currency    string            `json:"currency"`
	Status      TransactionStatus `json:"status"`
	Description string            `json:"description"`
	Reference   string            `json:"reference,omitempty"`
	PhoneNumber string            `json:"phone_number,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

// NewPendingDeposit builds the record written right after the provider accepts a push.
func NewPendingDeposit(checkoutRequestID, userID, phone, reference string, amount Amount, at time.Time) *Transaction {
	return &Transaction{
		ID:          checkoutRequestID,
		UserID:      userID,
		Type:        TransactionTypeDeposit,
		Amount:      amount,
		Currency:    Currency,
		Status:      TransactionStatusPending,
		Description: reference,
		PhoneNumber: phone,
		CreatedAt:   at,
		UpdatedAt:   at,
	}
}

// CanTransition allows PENDING -> COMPLETED|FAILED only.
func (t *Transaction) CanTransition(to TransactionStatus) bool {
	return t.Status == TransactionStatusPending && to.IsTerminal()
}

// BalanceEffect is the signed change this transaction applies once completed.
func (t *Transaction) BalanceEffect() int64 {
	if t.Type == TransactionTypeWithdrawal {
		return -int64(t.Amount)
	}
	return int64(t.Amount)
}

// Complete moves a pending transaction to COMPLETED with the provider receipt as reference.
func (t *Transaction) Complete(reference string, at time.Time) error {
	if !t.CanTransition(TransactionStatusCompleted) {
		return ErrInvalidTransition
	}
	t.Status = TransactionStatusCompleted
	t.Reference = reference
	t.UpdatedAt = at
	t.CompletedAt = &at
	return nil
}

// Fail moves a pending transaction to FAILED, recording the provider's reason.
func (t *Transaction) Fail(reason string, at time.Time) error {
	if !t.CanTransition(TransactionStatusFailed) {
		return ErrInvalidTransition
	}
	t.Status = TransactionStatusFailed
	t.Description = reason
	t.UpdatedAt = at
	t.CompletedAt = &at
	return nil
}
