package domain

import (
	"errors"
	"time"
)

// User is a wallet owner. ID is issued by the identity provider and treated as opaque.
// Balance changes only through TransactionStore.AtomicApply.
type User struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Balance     Amount    `json:"balance"`
	PhotoURL    string    `json:"photo_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateUserRequest is sent by the client after first sign-in / sign-up.
type CreateUserRequest struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoUrl"`
}

func (r *CreateUserRequest) Validate() error {
	if r.UserID == "" {
		return &ValidationError{Field: "userId", Message: "userId is required"}
	}
	if len(r.DisplayName) > 120 {
		return &ValidationError{Field: "displayName", Message: "displayName must be at most 120 characters"}
	}
	return nil
}

var errEmptyUserID = errors.New("user id is empty")

// NewUser builds a zero-balance user for create-if-absent writes.
func NewUser(id, displayName, photoURL string, at time.Time) (*User, error) {
	if id == "" {
		return nil, errEmptyUserID
	}
	return &User{
		ID:          id,
		DisplayName: displayName,
		PhotoURL:    photoURL,
		CreatedAt:   at,
		UpdatedAt:   at,
	}, nil
}
