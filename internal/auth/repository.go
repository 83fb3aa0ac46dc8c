package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"bookshelf/internal/lockout"
)

const accountColumns = `id, username, password_hash, is_staff, failed_login_attempts, blocked_until, created_at`

// Repository is the Postgres-backed account store.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateAccount(ctx context.Context, username, passwordHash string) (Account, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO accounts (username, password_hash, created_at)
		VALUES ($1, $2, $3)
		RETURNING `+accountColumns+`
	`, username, passwordHash, time.Now().UTC())

	account, err := scanAccount(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return Account{}, ErrUsernameTaken
		}
		return Account{}, fmt.Errorf("insert account: %w", err)
	}

	return account, nil
}

func (r *Repository) AccountByUsername(ctx context.Context, username string) (Account, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE username = $1
	`, username)

	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, fmt.Errorf("query account by username: %w", err)
	}

	return account, nil
}

func (r *Repository) AccountByID(ctx context.Context, id int64) (Account, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = $1
	`, id)

	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, fmt.Errorf("query account by id: %w", err)
	}

	return account, nil
}

// ApplyFailedLogin increments the failure counter and imposes a block when
// the policy threshold is reached, as a single row-locked transaction. The
// counter and block timestamp are written together, so the attempt that
// triggers the block commits both in one update.
func (r *Repository) ApplyFailedLogin(ctx context.Context, id int64, policy lockout.Policy, now time.Time) (*time.Time, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin failed-login tx: %w", err)
	}
	defer tx.Rollback()

	var attempts int
	var blocked sql.NullTime
	err = tx.QueryRowContext(ctx, `
		SELECT failed_login_attempts, blocked_until
		FROM accounts
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&attempts, &blocked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("lock account row: %w", err)
	}

	var blockedUntil *time.Time
	if blocked.Valid {
		value := blocked.Time.UTC()
		blockedUntil = &value
	}

	// Another attempt may have imposed a block between the caller's gate
	// check and this lock. Leave the counter untouched in that case.
	if policy.Gate(now, blockedUntil).Blocked {
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit failed-login tx: %w", err)
		}
		return blockedUntil, nil
	}

	next := policy.RecordFailure(attempts, blockedUntil, now)

	var nextBlocked any
	if next.BlockedUntil != nil {
		nextBlocked = next.BlockedUntil.UTC()
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE accounts
		SET failed_login_attempts = $2, blocked_until = $3
		WHERE id = $1
	`, id, next.Attempts, nextBlocked)
	if err != nil {
		return nil, fmt.Errorf("update login state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit failed-login tx: %w", err)
	}

	if next.BlockedUntil != nil && next.BlockedUntil.After(now) {
		return next.BlockedUntil, nil
	}
	return nil, nil
}

func (r *Repository) ResetLoginState(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE accounts
		SET failed_login_attempts = 0, blocked_until = NULL
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("reset login state: %w", err)
	}

	return nil
}

// ClearExpiredBlocks nulls out block timestamps that have already passed.
// Correctness never depends on this; the login gate compares timestamps
// lazily. It only keeps the table tidy for operators.
func (r *Repository) ClearExpiredBlocks(ctx context.Context, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 500
	}

	res, err := r.db.ExecContext(ctx, `
		WITH expired AS (
			SELECT id
			FROM accounts
			WHERE blocked_until IS NOT NULL AND blocked_until < NOW()
			ORDER BY blocked_until ASC
			LIMIT $1
		)
		UPDATE accounts a
		SET blocked_until = NULL
		FROM expired
		WHERE a.id = expired.id
	`, batchSize)
	if err != nil {
		return 0, fmt.Errorf("clear expired blocks: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expired blocks rows affected: %w", err)
	}

	return affected, nil
}

func scanAccount(row *sql.Row) (Account, error) {
	var account Account
	var blocked sql.NullTime
	err := row.Scan(
		&account.ID,
		&account.Username,
		&account.PasswordHash,
		&account.IsStaff,
		&account.FailedLoginAttempts,
		&blocked,
		&account.CreatedAt,
	)
	if err != nil {
		return Account{}, err
	}
	if blocked.Valid {
		value := blocked.Time.UTC()
		account.BlockedUntil = &value
	}

	return account, nil
}
