// internal/repository/postgres_store.go
package repository

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/levisbarua/pesaflow/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

//go:embed schema.sql
var schemaSQL string

const pgUniqueViolation = "23505"

const (
	transactionColumns = `id, user_id, type, amount, currency, status, description,
		reference, phone_number, created_at, updated_at, completed_at`
	userColumns         = `id, display_name, balance, photo_url, created_at, updated_at`
	notificationColumns = `id, user_id, title, message, severity, read, created_at`
)

type postgresStore struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgresStore(db *pgxpool.Pool, logger *zap.Logger) TransactionStore {
	return &postgresStore{db: db, logger: logger}
}

// Migrate applies the embedded schema. Statements are idempotent.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *postgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *postgresStore) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	tx, err := scanTransaction(s.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, &domain.StoreUnavailableError{Op: "get transaction", Err: err}
	}
	return tx, nil
}

func (s *postgresStore) CreateIfAbsent(ctx context.Context, tx *domain.Transaction) error {
	if err := insertTransaction(ctx, s.db, tx); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateRequest
		}
		return &domain.StoreUnavailableError{Op: "create transaction", Err: err}
	}
	return nil
}

// AtomicApply locks the transaction row, then the owner's row, in that order so
// concurrent applies for the same user never deadlock.
func (s *postgresStore) AtomicApply(ctx context.Context, keys ApplyKeys, fn ApplyFunc) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return &domain.StoreUnavailableError{Op: "begin apply", Err: err}
	}
	defer tx.Rollback(ctx)

	var current *domain.Transaction
	if keys.TransactionID != "" {
		query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1 FOR UPDATE`
		current, err = scanTransaction(tx.QueryRow(ctx, query, keys.TransactionID))
		if errors.Is(err, pgx.ErrNoRows) {
			current = nil
		} else if err != nil {
			return &domain.StoreUnavailableError{Op: "lock transaction", Err: err}
		}
	}

	owner, err := resolveOwner(keys, current)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `INSERT INTO users (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, owner); err != nil {
		return &domain.StoreUnavailableError{Op: "ensure user", Err: err}
	}
	user, err := scanUser(tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, owner))
	if err != nil {
		return &domain.StoreUnavailableError{Op: "lock user", Err: err}
	}

	snap := &Snapshot{Transaction: current, User: *user}
	m, err := fn(snap)
	if err != nil {
		return err
	}
	if m == nil {
		return ErrNoChange
	}
	if err := validateMutation(snap, m); err != nil {
		return err
	}

	if m.Transaction != nil {
		if current == nil {
			err = insertTransaction(ctx, tx, m.Transaction)
			if isUniqueViolation(err) {
				return domain.ErrDuplicateRequest
			}
		} else {
			err = updateTransaction(ctx, tx, m.Transaction)
		}
		if err != nil {
			return &domain.StoreUnavailableError{Op: "write transaction", Err: err}
		}
	}

	if m.BalanceDelta != 0 {
		_, err := tx.Exec(ctx,
			`UPDATE users SET balance = balance + $1, updated_at = NOW() WHERE id = $2`,
			m.BalanceDelta, owner)
		if err != nil {
			return &domain.StoreUnavailableError{Op: "update balance", Err: err}
		}
	}

	if m.Notification != nil {
		n := m.Notification
		_, err := tx.Exec(ctx,
			`INSERT INTO notifications (`+notificationColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			n.ID, n.UserID, n.Title, n.Message, n.Severity, n.Read, n.CreatedAt)
		if err != nil {
			return &domain.StoreUnavailableError{Op: "insert notification", Err: err}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return &domain.StoreUnavailableError{Op: "commit apply", Err: err}
	}
	return nil
}

// EnsureUser creates the user, or fills in profile fields left empty when an
// earlier apply created the row implicitly. Balance is never touched.
func (s *postgresStore) EnsureUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	_, err := s.db.Exec(ctx, `
		INSERT INTO users (id, display_name, photo_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (id) DO UPDATE SET
			display_name = CASE WHEN users.display_name = '' THEN EXCLUDED.display_name ELSE users.display_name END,
			photo_url    = CASE WHEN users.photo_url = '' THEN EXCLUDED.photo_url ELSE users.photo_url END,
			updated_at   = NOW()
		WHERE (users.display_name = '' AND EXCLUDED.display_name <> '')
		   OR (users.photo_url = '' AND EXCLUDED.photo_url <> '')`,
		user.ID, user.DisplayName, user.PhotoURL, user.CreatedAt)
	if err != nil {
		return nil, &domain.StoreUnavailableError{Op: "ensure user", Err: err}
	}
	return s.GetUser(ctx, user.ID)
}

func (s *postgresStore) GetUser(ctx context.Context, id string) (*domain.User, error) {
	user, err := scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, &domain.StoreUnavailableError{Op: "get user", Err: err}
	}
	return user, nil
}

func (s *postgresStore) ListTransactions(ctx context.Context, userID string, limit int) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`

	rows, err := s.db.Query(ctx, query, userID, clampLimit(limit))
	if err != nil {
		return nil, &domain.StoreUnavailableError{Op: "list transactions", Err: err}
	}
	defer rows.Close()

	txs := make([]domain.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, &domain.StoreUnavailableError{Op: "scan transaction", Err: err}
		}
		txs = append(txs, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StoreUnavailableError{Op: "list transactions", Err: err}
	}
	return txs, nil
}

func (s *postgresStore) ListNotifications(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`

	rows, err := s.db.Query(ctx, query, userID, clampLimit(limit))
	if err != nil {
		return nil, &domain.StoreUnavailableError{Op: "list notifications", Err: err}
	}
	defer rows.Close()

	notes := make([]domain.Notification, 0)
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Severity, &n.Read, &n.CreatedAt); err != nil {
			return nil, &domain.StoreUnavailableError{Op: "scan notification", Err: err}
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StoreUnavailableError{Op: "list notifications", Err: err}
	}
	return notes, nil
}

func (s *postgresStore) MarkNotificationRead(ctx context.Context, userID, notificationID string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2`,
		notificationID, userID)
	if err != nil {
		return &domain.StoreUnavailableError{Op: "mark notification read", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

func insertTransaction(ctx context.Context, db execer, t *domain.Transaction) error {
	_, err := db.Exec(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		t.ID, t.UserID, t.Type, int64(t.Amount), t.Currency, t.Status, t.Description,
		t.Reference, t.PhoneNumber, t.CreatedAt, t.UpdatedAt, t.CompletedAt)
	return err
}

func updateTransaction(ctx context.Context, db execer, t *domain.Transaction) error {
	_, err := db.Exec(ctx, `
		UPDATE transactions
		SET status = $1, description = $2, reference = $3, updated_at = $4, completed_at = $5
		WHERE id = $6`,
		t.Status, t.Description, t.Reference, t.UpdatedAt, t.CompletedAt, t.ID)
	return err
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var t domain.Transaction
	var amount int64
	err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.Type,
		&amount,
		&t.Currency,
		&t.Status,
		&t.Description,
		&t.Reference,
		&t.PhoneNumber,
		&t.CreatedAt,
		&t.UpdatedAt,
		&t.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Amount = domain.Amount(amount)
	return &t, nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	var balance int64
	if err := row.Scan(&u.ID, &u.DisplayName, &balance, &u.PhotoURL, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Balance = domain.Amount(balance)
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
