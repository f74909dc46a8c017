package usecase

import (
	"context"
	"sync"
	"testing"

	"github.com/levisbarua/pesaflow/internal/domain"
	"github.com/levisbarua/pesaflow/internal/events"
	"github.com/levisbarua/pesaflow/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type callbackFixture struct {
	store    repository.TransactionStore
	pub      *recordingPublisher
	callback *CallbackUsecase
}

// newCallbackFixture records a pending 500 KES deposit the way InitiateDeposit does.
func newCallbackFixture(t *testing.T) *callbackFixture {
	t.Helper()
	store := newRedisStore(t)
	pub := &recordingPublisher{}

	pay := newPaymentUsecase(t, acceptingProvider(testCheckoutID), store, pub, zap.NewNop())
	_, err := pay.InitiateDeposit(context.Background(), depositRequest("0712345678", "500"))
	require.NoError(t, err)

	return &callbackFixture{
		store:    store,
		pub:      pub,
		callback: NewCallbackUsecase(store, pub, testStore, zap.NewNop()),
	}
}

func TestHandleCallbackSuccess(t *testing.T) {
	f := newCallbackFixture(t)
	ctx := context.Background()

	ack, err := f.callback.HandleCallback(ctx, successCallback(testCheckoutID, "NLJ7RT61SV"))
	require.NoError(t, err)
	assert.Equal(t, domain.CallbackOutcomeOK, ack.Result)

	tx, err := f.store.GetTransaction(ctx, testCheckoutID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusCompleted, tx.Status)
	assert.Equal(t, "NLJ7RT61SV", tx.Reference)
	require.NotNil(t, tx.CompletedAt)

	user, err := f.store.GetUser(ctx, testUserID)
	require.NoError(t, err)
	assert.Equal(t, domain.MustAmountFromWhole(500), user.Balance)

	notes, err := f.store.ListNotifications(ctx, testUserID, 0)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "Deposit Received", notes[0].Title)
	assert.Equal(t, domain.SeveritySuccess, notes[0].Severity)
	assert.Contains(t, notes[0].Message, "NLJ7RT61SV")

	require.Equal(t, 1, f.pub.count())
	assert.Equal(t, events.TypeTransactionCompleted, f.pub.events[0].Type)
}

func TestHandleCallbackRedeliveryIsIgnored(t *testing.T) {
	f := newCallbackFixture(t)
	ctx := context.Background()

	_, err := f.callback.HandleCallback(ctx, successCallback(testCheckoutID, "NLJ7RT61SV"))
	require.NoError(t, err)

	ack, err := f.callback.HandleCallback(ctx, successCallback(testCheckoutID, "NLJ7RT61SV"))
	require.NoError(t, err)
	assert.Equal(t, domain.CallbackOutcomeIgnored, ack.Result)

	// A late failure for a completed deposit changes nothing either.
	ack, err = f.callback.HandleCallback(ctx, failureCallback(testCheckoutID, "Request cancelled by user"))
	require.NoError(t, err)
	assert.Equal(t, domain.CallbackOutcomeIgnored, ack.Result)

	user, err := f.store.GetUser(ctx, testUserID)
	require.NoError(t, err)
	assert.Equal(t, domain.MustAmountFromWhole(500), user.Balance)

	notes, err := f.store.ListNotifications(ctx, testUserID, 0)
	require.NoError(t, err)
	assert.Len(t, notes, 1)
	assert.Equal(t, 1, f.pub.count())
}

func TestHandleCallbackFailure(t *testing.T) {
	f := newCallbackFixture(t)
	ctx := context.Background()

	ack, err := f.callback.HandleCallback(ctx, failureCallback(testCheckoutID, "Request cancelled by user"))
	require.NoError(t, err)
	assert.Equal(t, domain.CallbackOutcomeOK, ack.Result)

	tx, err := f.store.GetTransaction(ctx, testCheckoutID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusFailed, tx.Status)
	assert.Equal(t, "Request cancelled by user", tx.Description)

	// The user row may not exist at all; either way there is no credit.
	user, err := f.store.GetUser(ctx, testUserID)
	if err == nil {
		assert.Equal(t, domain.Amount(0), user.Balance)
	}

	notes, err := f.store.ListNotifications(ctx, testUserID, 0)
	require.NoError(t, err)
	assert.Empty(t, notes)

	require.Equal(t, 1, f.pub.count())
	assert.Equal(t, events.TypeTransactionFailed, f.pub.events[0].Type)
}

func TestHandleCallbackUnknownTransaction(t *testing.T) {
	f := newCallbackFixture(t)

	ack, err := f.callback.HandleCallback(context.Background(), successCallback("ws_CO_unknown", "R1"))
	require.NoError(t, err)
	assert.Equal(t, domain.CallbackOutcomeIgnored, ack.Result)

	_, err = f.store.GetTransaction(context.Background(), "ws_CO_unknown")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Zero(t, f.pub.count())
}

func TestHandleCallbackMalformed(t *testing.T) {
	f := newCallbackFixture(t)

	_, err := f.callback.HandleCallback(context.Background(), []byte(`{"unexpected":true}`))

	var mErr *domain.MalformedCallbackError
	require.ErrorAs(t, err, &mErr)

	tx, err := f.store.GetTransaction(context.Background(), testCheckoutID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusPending, tx.Status)
}

func TestHandleCallbackStoreUnavailable(t *testing.T) {
	f := newCallbackFixture(t)
	failing := &failingStore{
		TransactionStore: f.store,
		applyErr:         &domain.StoreUnavailableError{Op: "apply", Err: errBoom},
	}
	uc := NewCallbackUsecase(failing, f.pub, testStore, zap.NewNop())

	_, err := uc.HandleCallback(context.Background(), successCallback(testCheckoutID, "R1"))

	var storeErr *domain.StoreUnavailableError
	require.ErrorAs(t, err, &storeErr)
	assert.Zero(t, f.pub.count())

	tx, err := f.store.GetTransaction(context.Background(), testCheckoutID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusPending, tx.Status)
}

func TestHandleCallbackConcurrentDuplicatesCreditOnce(t *testing.T) {
	f := newCallbackFixture(t)
	ctx := context.Background()

	const deliveries = 8
	acks := make([]domain.CallbackOutcome, deliveries)
	var wg sync.WaitGroup
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ack, err := f.callback.HandleCallback(ctx, successCallback(testCheckoutID, "NLJ7RT61SV"))
			if assert.NoError(t, err) {
				acks[i] = ack.Result
			}
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, a := range acks {
		if a == domain.CallbackOutcomeOK {
			ok++
		} else {
			assert.Equal(t, domain.CallbackOutcomeIgnored, a)
		}
	}
	assert.Equal(t, 1, ok)

	user, err := f.store.GetUser(ctx, testUserID)
	require.NoError(t, err)
	assert.Equal(t, domain.MustAmountFromWhole(500), user.Balance)

	notes, err := f.store.ListNotifications(ctx, testUserID, 0)
	require.NoError(t, err)
	assert.Len(t, notes, 1)
}
