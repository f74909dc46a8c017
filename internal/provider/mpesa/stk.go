package mpesa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/levisbarua/pesaflow/internal/domain"
	"github.com/levisbarua/pesaflow/internal/metrics"
	"github.com/levisbarua/pesaflow/internal/provider"

	"go.uber.org/zap"
)

// STKPushRequest represents M-Pesa STK Push request
type STKPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

// STKPushResponse represents M-Pesa STK Push response
type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

// errorResponse is what Daraja returns with 4xx/5xx statuses.
type errorResponse struct {
	RequestID    string `json:"requestId"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

// InitiatePush runs the token exchange and submits an STK push (Lipa Na M-Pesa Online).
func (c *Client) InitiatePush(ctx context.Context, req *provider.PushRequest) (*provider.PushResponse, error) {
	token, err := c.ObtainToken(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := Timestamp(c.now())
	description := req.Description
	if description == "" {
		description = fmt.Sprintf("Payment for %s", req.AccountReference)
	}

	request := STKPushRequest{
		BusinessShortCode: c.config.ShortCode,
		Password:          Password(c.config.ShortCode, c.config.Passkey, timestamp),
		Timestamp:         timestamp,
		TransactionType:   c.config.TransactionType,
		Amount:            req.Amount,
		PartyA:            req.PhoneNumber,
		PartyB:            c.config.ShortCode,
		PhoneNumber:       req.PhoneNumber,
		CallBackURL:       req.CallbackURL,
		AccountReference:  req.AccountReference,
		TransactionDesc:   description,
	}

	c.logger.Debug("submitting mpesa stk push",
		zap.String("phone_number", req.PhoneNumber),
		zap.Int64("amount", req.Amount),
		zap.String("callback_url", req.CallbackURL))

	start := time.Now()
	status, body, err := c.postJSON(ctx, "/mpesa/stkpush/v1/processrequest", token, request)
	metrics.ObserveUpstream("stk_push", start)
	if err != nil {
		return nil, &domain.PaymentInitiationError{Description: "stk push request failed", Err: err}
	}

	if status < 200 || status >= 300 {
		var apiErr errorResponse
		_ = json.Unmarshal(body, &apiErr)
		reason := apiErr.ErrorMessage
		if reason == "" {
			reason = c.redact(truncate(string(body), maxErrorBody))
		}
		return nil, &domain.PaymentInitiationError{
			StatusCode:  status,
			Code:        apiErr.ErrorCode,
			Description: reason,
		}
	}

	var response STKPushResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, &domain.PaymentInitiationError{StatusCode: status, Description: "failed to parse stk push response", Err: err}
	}

	if response.ResponseCode != "0" || response.CheckoutRequestID == "" {
		return nil, &domain.PaymentInitiationError{
			StatusCode:  status,
			Code:        response.ResponseCode,
			Description: response.ResponseDescription,
		}
	}

	return &provider.PushResponse{
		MerchantRequestID:   response.MerchantRequestID,
		CheckoutRequestID:   response.CheckoutRequestID,
		ResponseCode:        response.ResponseCode,
		ResponseDescription: response.ResponseDescription,
		CustomerMessage:     response.CustomerMessage,
		Raw:                 json.RawMessage(body),
	}, nil
}

// postJSON makes an authorized JSON POST and returns the status and raw body.
func (c *Client) postJSON(ctx context.Context, path, token string, payload interface{}) (int, []byte, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, responseBody, nil
}
