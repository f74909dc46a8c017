// internal/repository/redis_store.go
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/levisbarua/pesaflow/internal/domain"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	redisKeyPrefix   = "pesaflow"
	maxApplyAttempts = 16
)

var errTooManyConflicts = errors.New("too many concurrent updates")

// redisStore keeps each record as a JSON string and per-user sorted sets
// (scored by creation time) as indexes. Read-modify-write paths use
// WATCH/MULTI and retry when a watched key changes.
type redisStore struct {
	client redis.UniversalClient
	logger *zap.Logger
}

func NewRedisStore(client redis.UniversalClient, logger *zap.Logger) TransactionStore {
	return &redisStore{client: client, logger: logger}
}

func transactionKey(id string) string {
	return fmt.Sprintf("%s:tx:%s", redisKeyPrefix, id)
}

func userKey(id string) string {
	return fmt.Sprintf("%s:user:%s", redisKeyPrefix, id)
}

func userTransactionsKey(userID string) string {
	return fmt.Sprintf("%s:user:%s:txs", redisKeyPrefix, userID)
}

func notificationKey(id string) string {
	return fmt.Sprintf("%s:notification:%s", redisKeyPrefix, id)
}

func userNotificationsKey(userID string) string {
	return fmt.Sprintf("%s:user:%s:notifications", redisKeyPrefix, userID)
}

func (s *redisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *redisStore) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	tx, err := getJSON[domain.Transaction](ctx, s.client, transactionKey(id))
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, &domain.StoreUnavailableError{Op: "get transaction", Err: err}
	}
	return tx, nil
}

func (s *redisStore) CreateIfAbsent(ctx context.Context, tx *domain.Transaction) error {
	payload, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("marshal transaction: %w", err)
	}

	key := transactionKey(tx.ID)
	for attempt := 0; attempt < maxApplyAttempts; attempt++ {
		err = s.client.Watch(ctx, func(rtx *redis.Tx) error {
			exists, err := rtx.Exists(ctx, key).Result()
			if err != nil {
				return err
			}
			if exists > 0 {
				return domain.ErrDuplicateRequest
			}
			_, err = rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, payload, 0)
				pipe.ZAdd(ctx, userTransactionsKey(tx.UserID), redis.Z{
					Score:  float64(tx.CreatedAt.UnixNano()),
					Member: tx.ID,
				})
				return nil
			})
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err == nil || errors.Is(err, domain.ErrDuplicateRequest) {
			return err
		}
		return &domain.StoreUnavailableError{Op: "create transaction", Err: err}
	}
	return &domain.StoreUnavailableError{Op: "create transaction", Err: errTooManyConflicts}
}

// AtomicApply watches the transaction key and then the owner's key. fn may run
// more than once when a concurrent writer wins the race; only the attempt that
// commits has any effect.
func (s *redisStore) AtomicApply(ctx context.Context, keys ApplyKeys, fn ApplyFunc) error {
	for attempt := 0; attempt < maxApplyAttempts; attempt++ {
		var applyErr error

		err := s.client.Watch(ctx, func(rtx *redis.Tx) error {
			applyErr = nil

			var current *domain.Transaction
			if keys.TransactionID != "" {
				t, err := getJSON[domain.Transaction](ctx, rtx, transactionKey(keys.TransactionID))
				switch {
				case errors.Is(err, redis.Nil):
				case err != nil:
					return err
				default:
					current = t
				}
			}

			owner, err := resolveOwner(keys, current)
			if err != nil {
				applyErr = err
				return err
			}

			uKey := userKey(owner)
			if err := rtx.Watch(ctx, uKey).Err(); err != nil {
				return err
			}
			user, err := getJSON[domain.User](ctx, rtx, uKey)
			if errors.Is(err, redis.Nil) {
				user = &domain.User{ID: owner}
			} else if err != nil {
				return err
			}

			snap := &Snapshot{Transaction: current, User: *user}
			m, err := fn(snap)
			if err == nil && m == nil {
				err = ErrNoChange
			}
			if err == nil {
				err = validateMutation(snap, m)
			}
			if err != nil {
				applyErr = err
				return err
			}

			return s.writeMutation(ctx, rtx, snap, m)
		}, transactionKey(keys.TransactionID))

		if applyErr != nil {
			return applyErr
		}
		if errors.Is(err, redis.TxFailedErr) {
			s.logger.Debug("apply conflict, retrying",
				zap.String("transaction_id", keys.TransactionID),
				zap.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return &domain.StoreUnavailableError{Op: "apply", Err: err}
		}
		return nil
	}
	return &domain.StoreUnavailableError{Op: "apply", Err: errTooManyConflicts}
}

func (s *redisStore) writeMutation(ctx context.Context, rtx *redis.Tx, snap *Snapshot, m *Mutation) error {
	user := snap.User
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if m.BalanceDelta != 0 {
		user.Balance += domain.Amount(m.BalanceDelta)
		user.UpdatedAt = now
	}
	userPayload, err := json.Marshal(user)
	if err != nil {
		return err
	}

	var txPayload, notePayload []byte
	if m.Transaction != nil {
		if txPayload, err = json.Marshal(m.Transaction); err != nil {
			return err
		}
	}
	if m.Notification != nil {
		if notePayload, err = json.Marshal(m.Notification); err != nil {
			return err
		}
	}

	_, err = rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, userKey(user.ID), userPayload, 0)
		if m.Transaction != nil {
			pipe.Set(ctx, transactionKey(m.Transaction.ID), txPayload, 0)
			if snap.Transaction == nil {
				pipe.ZAdd(ctx, userTransactionsKey(user.ID), redis.Z{
					Score:  float64(m.Transaction.CreatedAt.UnixNano()),
					Member: m.Transaction.ID,
				})
			}
		}
		if m.Notification != nil {
			pipe.Set(ctx, notificationKey(m.Notification.ID), notePayload, 0)
			pipe.ZAdd(ctx, userNotificationsKey(user.ID), redis.Z{
				Score:  float64(m.Notification.CreatedAt.UnixNano()),
				Member: m.Notification.ID,
			})
		}
		return nil
	})
	return err
}

// EnsureUser creates the user, or fills in profile fields left empty when an
// earlier apply created the record implicitly. Balance is never touched.
func (s *redisStore) EnsureUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	key := userKey(user.ID)
	for attempt := 0; attempt < maxApplyAttempts; attempt++ {
		err := s.client.Watch(ctx, func(rtx *redis.Tx) error {
			existing, err := getJSON[domain.User](ctx, rtx, key)
			var next domain.User
			switch {
			case errors.Is(err, redis.Nil):
				next = *user
				next.Balance = 0
				if next.UpdatedAt.IsZero() {
					next.UpdatedAt = next.CreatedAt
				}
			case err != nil:
				return err
			default:
				next = *existing
				changed := false
				if next.DisplayName == "" && user.DisplayName != "" {
					next.DisplayName, changed = user.DisplayName, true
				}
				if next.PhotoURL == "" && user.PhotoURL != "" {
					next.PhotoURL, changed = user.PhotoURL, true
				}
				if !changed {
					return nil
				}
				next.UpdatedAt = time.Now().UTC()
			}

			payload, err := json.Marshal(next)
			if err != nil {
				return err
			}
			_, err = rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, payload, 0)
				return nil
			})
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, &domain.StoreUnavailableError{Op: "ensure user", Err: err}
		}
		return s.GetUser(ctx, user.ID)
	}
	return nil, &domain.StoreUnavailableError{Op: "ensure user", Err: errTooManyConflicts}
}

func (s *redisStore) GetUser(ctx context.Context, id string) (*domain.User, error) {
	user, err := getJSON[domain.User](ctx, s.client, userKey(id))
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, &domain.StoreUnavailableError{Op: "get user", Err: err}
	}
	return user, nil
}

func (s *redisStore) ListTransactions(ctx context.Context, userID string, limit int) ([]domain.Transaction, error) {
	txs, err := listByIndex[domain.Transaction](ctx, s.client, userTransactionsKey(userID), transactionKey, clampLimit(limit))
	if err != nil {
		return nil, &domain.StoreUnavailableError{Op: "list transactions", Err: err}
	}
	return txs, nil
}

func (s *redisStore) ListNotifications(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	notes, err := listByIndex[domain.Notification](ctx, s.client, userNotificationsKey(userID), notificationKey, clampLimit(limit))
	if err != nil {
		return nil, &domain.StoreUnavailableError{Op: "list notifications", Err: err}
	}
	return notes, nil
}

func (s *redisStore) MarkNotificationRead(ctx context.Context, userID, notificationID string) error {
	key := notificationKey(notificationID)
	for attempt := 0; attempt < maxApplyAttempts; attempt++ {
		err := s.client.Watch(ctx, func(rtx *redis.Tx) error {
			n, err := getJSON[domain.Notification](ctx, rtx, key)
			if errors.Is(err, redis.Nil) {
				return domain.ErrNotFound
			}
			if err != nil {
				return err
			}
			if n.UserID != userID {
				return domain.ErrNotFound
			}
			if n.Read {
				return nil
			}
			n.Read = true
			payload, err := json.Marshal(n)
			if err != nil {
				return err
			}
			_, err = rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, payload, 0)
				return nil
			})
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err == nil || errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return &domain.StoreUnavailableError{Op: "mark notification read", Err: err}
	}
	return &domain.StoreUnavailableError{Op: "mark notification read", Err: errTooManyConflicts}
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func getJSON[T any](ctx context.Context, c getter, key string) (*T, error) {
	raw, err := c.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return &v, nil
}

// listByIndex reads newest-first ids from a sorted-set index and loads the records.
// Ids whose record has gone missing are skipped.
func listByIndex[T any](ctx context.Context, c redis.Cmdable, index string, keyFn func(string) string, limit int) ([]T, error) {
	ids, err := c.ZRevRange(ctx, index, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = keyFn(id)
	}
	values, err := c.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var item T
		if err := json.Unmarshal([]byte(s), &item); err != nil {
			return nil, fmt.Errorf("decode %s: %w", keys[i], err)
		}
		out = append(out, item)
	}
	return out, nil
}
