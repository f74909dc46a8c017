// internal/provider/provider.go
package provider

import (
	"context"
	"encoding/json"
)

// PushProvider is a mobile-money provider that can prompt a payer's device
// and report the outcome later through a callback.
type PushProvider interface {
	// Name returns the provider name
	Name() string

	// InitiatePush sends a push-payment prompt and returns the provider's acceptance
	InitiatePush(ctx context.Context, req *PushRequest) (*PushResponse, error)
}

// PushRequest carries an already normalized phone number and whole-unit amount.
type PushRequest struct {
	PhoneNumber      string
	Amount           int64
	AccountReference string
	Description      string
	CallbackURL      string
}

type PushResponse struct {
	MerchantRequestID   string
	CheckoutRequestID   string
	ResponseCode        string
	ResponseDescription string
	CustomerMessage     string
	Raw                 json.RawMessage
}
