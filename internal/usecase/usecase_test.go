package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/levisbarua/pesaflow/config"
	"github.com/levisbarua/pesaflow/internal/domain"
	"github.com/levisbarua/pesaflow/internal/events"
	"github.com/levisbarua/pesaflow/internal/provider"
	"github.com/levisbarua/pesaflow/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testBaseURL     = "https://wallet.example.com"
	testCallbackURL = "https://wallet.example.com/api/v1/callbacks/mpesa/stk"
	testCheckoutID  = "ws_CO_191220191020363925"
	testUserID      = "user-1"
)

type fakeProvider struct {
	mu     sync.Mutex
	resp   *provider.PushResponse
	err    error
	calls  int
	last   provider.PushRequest
	onPush func()
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) InitiatePush(_ context.Context, req *provider.PushRequest) (*provider.PushResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = *req
	if f.onPush != nil {
		f.onPush()
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func acceptingProvider(checkoutID string) *fakeProvider {
	body := fmt.Sprintf(`{"MerchantRequestID":"29115-34620561-1","CheckoutRequestID":%q,"ResponseCode":"0"}`, checkoutID)
	return &fakeProvider{resp: &provider.PushResponse{
		MerchantRequestID:   "29115-34620561-1",
		CheckoutRequestID:   checkoutID,
		ResponseCode:        "0",
		ResponseDescription: "Success. Request accepted for processing",
		CustomerMessage:     "Success. Request accepted for processing",
		Raw:                 []byte(body),
	}}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*events.SettlementEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e *events.SettlementEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

// failingStore overrides selected writes of a working store.
type failingStore struct {
	repository.TransactionStore
	createErr error
	applyErr  error
}

func (s *failingStore) CreateIfAbsent(ctx context.Context, tx *domain.Transaction) error {
	if s.createErr != nil {
		return s.createErr
	}
	return s.TransactionStore.CreateIfAbsent(ctx, tx)
}

func (s *failingStore) AtomicApply(ctx context.Context, keys repository.ApplyKeys, fn repository.ApplyFunc) error {
	if s.applyErr != nil {
		return s.applyErr
	}
	return s.TransactionStore.AtomicApply(ctx, keys, fn)
}

var (
	testServer = config.ServerConfig{Port: "8027", Env: "test", PublicBaseURL: testBaseURL}
	testStore  = config.StoreConfig{Driver: config.StoreDriverRedis, Timeout: 2 * time.Second}
)

func newRedisStore(t *testing.T) repository.TransactionStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return repository.NewRedisStore(client, zap.NewNop())
}

func newPaymentUsecase(t *testing.T, p provider.PushProvider, store repository.TransactionStore, pub events.Publisher, logger *zap.Logger) *PaymentUsecase {
	t.Helper()
	uc, err := NewPaymentUsecase(p, store, pub, testServer, testStore, logger)
	require.NoError(t, err)
	return uc
}

func successCallback(checkoutID, receipt string) []byte {
	return []byte(fmt.Sprintf(`{
	  "Body": {
	    "stkCallback": {
	      "MerchantRequestID": "29115-34620561-1",
	      "CheckoutRequestID": %q,
	      "ResultCode": 0,
	      "ResultDesc": "The service request is processed successfully.",
	      "CallbackMetadata": {
	        "Item": [
	          {"Name": "Amount", "Value": 500},
	          {"Name": "MpesaReceiptNumber", "Value": %q},
	          {"Name": "TransactionDate", "Value": 20191219102115},
	          {"Name": "PhoneNumber", "Value": 254712345678}
	        ]
	      }
	    }
	  }
	}`, checkoutID, receipt))
}

func failureCallback(checkoutID, desc string) []byte {
	return []byte(fmt.Sprintf(`{"stkCallback":{"MerchantRequestID":"29115-34620561-1","CheckoutRequestID":%q,"ResultCode":1032,"ResultDesc":%q}}`,
		checkoutID, desc))
}

var errBoom = errors.New("boom")
