package mpesa

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/levisbarua/pesaflow/config"
	"github.com/levisbarua/pesaflow/internal/domain"
	"github.com/levisbarua/pesaflow/internal/provider"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testKey      = "consumer-key"
	testSecret   = "super-secret-value"
	testPasskey  = "bfb279f9aa9bdbcf158e97dd71a467cd"
	testShort    = "174379"
	testCheckout = "ws_CO_191220191020363925"
)

type darajaFake struct {
	tokenStatus int
	tokenBody   string
	pushStatus  int
	pushBody    string

	tokenCalls atomic.Int32
	lastPush   STKPushRequest
	lastAuth   string
}

func (f *darajaFake) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "client_credentials", r.URL.Query().Get("grant_type"))
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, testKey, user)
		assert.Equal(t, testSecret, pass)
		w.WriteHeader(f.tokenStatus)
		_, _ = w.Write([]byte(f.tokenBody))
	})
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", func(w http.ResponseWriter, r *http.Request) {
		f.lastAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&f.lastPush))
		w.WriteHeader(f.pushStatus)
		_, _ = w.Write([]byte(f.pushBody))
	})
	return mux
}

func newTestClient(t *testing.T, fake *darajaFake) *Client {
	t.Helper()
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)

	cfg := config.MpesaConfig{
		BaseURL:         srv.URL,
		ConsumerKey:     testKey,
		ConsumerSecret:  testSecret,
		Passkey:         testPasskey,
		ShortCode:       testShort,
		TransactionType: "CustomerPayBillOnline",
		Timeout:         2 * time.Second,
	}
	fixed := time.Date(2024, time.March, 9, 22, 4, 5, 0, time.UTC)
	return NewClient(cfg, zap.NewNop(), WithClock(func() time.Time { return fixed }))
}

func acceptedFake() *darajaFake {
	return &darajaFake{
		tokenStatus: http.StatusOK,
		tokenBody:   `{"access_token":"tok-123","expires_in":"3599"}`,
		pushStatus:  http.StatusOK,
		pushBody: `{"MerchantRequestID":"29115-34620561-1","CheckoutRequestID":"` + testCheckout + `",` +
			`"ResponseCode":"0","ResponseDescription":"Success. Request accepted for processing","CustomerMessage":"Success. Request accepted for processing"}`,
	}
}

func TestObtainToken(t *testing.T) {
	fake := acceptedFake()
	c := newTestClient(t, fake)

	token, err := c.ObtainToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-123", token)
}

func TestObtainTokenFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"errorMessage":"Invalid credentials super-secret-value"}`},
		{"missing field", http.StatusOK, `{"expires_in":"3599"}`},
		{"not json", http.StatusOK, `<html>gateway</html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := acceptedFake()
			fake.tokenStatus, fake.tokenBody = tt.status, tt.body
			c := newTestClient(t, fake)

			_, err := c.ObtainToken(context.Background())
			require.Error(t, err)

			var authErr *domain.UpstreamAuthError
			require.ErrorAs(t, err, &authErr)
			assert.NotContains(t, err.Error(), testSecret)
		})
	}
}

func TestObtainTokenUnreachable(t *testing.T) {
	cfg := config.MpesaConfig{
		BaseURL:        "http://127.0.0.1:1",
		ConsumerKey:    testKey,
		ConsumerSecret: testSecret,
		Timeout:        500 * time.Millisecond,
	}
	c := NewClient(cfg, zap.NewNop())

	_, err := c.ObtainToken(context.Background())
	var authErr *domain.UpstreamAuthError
	require.ErrorAs(t, err, &authErr)
	assert.NotContains(t, err.Error(), testSecret)
}

func TestInitiatePush(t *testing.T) {
	fake := acceptedFake()
	c := newTestClient(t, fake)

	resp, err := c.InitiatePush(context.Background(), &provider.PushRequest{
		PhoneNumber:      "254712345678",
		Amount:           100,
		AccountReference: "Test",
		CallbackURL:      "https://wallet.example.com/api/v1/callbacks/mpesa/stk",
	})
	require.NoError(t, err)

	assert.Equal(t, testCheckout, resp.CheckoutRequestID)
	assert.Equal(t, "0", resp.ResponseCode)
	assert.Contains(t, string(resp.Raw), testCheckout)

	assert.Equal(t, "Bearer tok-123", fake.lastAuth)
	assert.Equal(t, int64(100), fake.lastPush.Amount)
	assert.Equal(t, "254712345678", fake.lastPush.PartyA)
	assert.Equal(t, "254712345678", fake.lastPush.PhoneNumber)
	assert.Equal(t, testShort, fake.lastPush.PartyB)
	assert.Equal(t, testShort, fake.lastPush.BusinessShortCode)
	assert.Equal(t, "20240310010405", fake.lastPush.Timestamp)
	assert.Equal(t, Password(testShort, testPasskey, "20240310010405"), fake.lastPush.Password)
	assert.Equal(t, "https://wallet.example.com/api/v1/callbacks/mpesa/stk", fake.lastPush.CallBackURL)
	assert.Equal(t, "Payment for Test", fake.lastPush.TransactionDesc)
}

func TestInitiatePushTokenFailureStopsFlow(t *testing.T) {
	fake := acceptedFake()
	fake.tokenStatus = http.StatusBadRequest
	fake.tokenBody = `{"errorCode":"400.008.01","errorMessage":"Invalid Authentication passed"}`
	c := newTestClient(t, fake)

	_, err := c.InitiatePush(context.Background(), &provider.PushRequest{PhoneNumber: "254712345678", Amount: 1})

	var authErr *domain.UpstreamAuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusBadRequest, authErr.StatusCode)
	assert.Empty(t, fake.lastPush.PhoneNumber)
}

func TestInitiatePushRejected(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode string
		wantDesc string
	}{
		{
			name:     "http error",
			status:   http.StatusBadRequest,
			body:     `{"requestId":"1","errorCode":"400.002.02","errorMessage":"Bad Request - Invalid PhoneNumber"}`,
			wantCode: "400.002.02",
			wantDesc: "Bad Request - Invalid PhoneNumber",
		},
		{
			name:     "non zero response code",
			status:   http.StatusOK,
			body:     `{"ResponseCode":"1","ResponseDescription":"Rejected"}`,
			wantCode: "1",
			wantDesc: "Rejected",
		},
		{
			name:     "server error without body",
			status:   http.StatusServiceUnavailable,
			body:     ``,
			wantCode: "",
			wantDesc: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := acceptedFake()
			fake.pushStatus, fake.pushBody = tt.status, tt.body
			c := newTestClient(t, fake)

			_, err := c.InitiatePush(context.Background(), &provider.PushRequest{PhoneNumber: "254712345678", Amount: 1})

			var initErr *domain.PaymentInitiationError
			require.ErrorAs(t, err, &initErr)
			assert.Equal(t, tt.status, initErr.StatusCode)
			assert.Equal(t, tt.wantCode, initErr.Code)
			assert.Equal(t, tt.wantDesc, initErr.Description)
		})
	}
}
