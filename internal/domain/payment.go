package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DepositRequest is the client's request to pull money from their M-Pesa account.
type DepositRequest struct {
	PhoneNumber      string          `json:"phoneNumber"`
	Amount           decimal.Decimal `json:"amount"`
	AccountReference string          `json:"accountReference"`
	UserID           string          `json:"userId"`
}

func (r *DepositRequest) Validate() error {
	if strings.TrimSpace(r.PhoneNumber) == "" {
		return &ValidationError{Field: "phoneNumber", Message: "phoneNumber is required"}
	}
	if r.UserID == "" {
		return &ValidationError{Field: "userId", Message: "userId is required"}
	}
	if !r.Amount.IsPositive() {
		return &ValidationError{Field: "amount", Message: "amount must be greater than 0"}
	}
	if err := validateWholeAmount(r.Amount); err != nil {
		return err
	}
	if len(r.AccountReference) > 12 {
		return &ValidationError{Field: "accountReference", Message: "accountReference must be at most 12 characters"}
	}
	return nil
}

// DepositResult mirrors the provider's acceptance payload.
type DepositResult struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

// WithdrawalRequest debits the wallet. Recorded directly as COMPLETED; there is no async leg.
type WithdrawalRequest struct {
	UserID      string          `json:"userId"`
	PhoneNumber string          `json:"phoneNumber"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

func (r *WithdrawalRequest) Validate() error {
	if r.UserID == "" {
		return &ValidationError{Field: "userId", Message: "userId is required"}
	}
	if strings.TrimSpace(r.PhoneNumber) == "" {
		return &ValidationError{Field: "phoneNumber", Message: "phoneNumber is required"}
	}
	if err := validateWholeAmount(r.Amount); err != nil {
		return err
	}
	return nil
}

type CallbackOutcome string

const (
	CallbackOutcomeOK      CallbackOutcome = "ok"
	CallbackOutcomeIgnored CallbackOutcome = "ignored"
)

// CallbackAck is what the provider receives back from the callback endpoint.
type CallbackAck struct {
	Result CallbackOutcome `json:"result"`
}
