package auth

import (
	"context"
	"time"

	"bookshelf/internal/lockout"
)

// Store is the persisted account store. The Postgres implementation lives in
// Repository; tests substitute an in-memory fake.
type Store interface {
	CreateAccount(ctx context.Context, username, passwordHash string) (Account, error)
	AccountByUsername(ctx context.Context, username string) (Account, error)
	AccountByID(ctx context.Context, id int64) (Account, error)

	// ApplyFailedLogin runs the policy's failure transition atomically
	// against the stored counter and block timestamp, re-reading both under
	// a write lock so concurrent attempts serialize. It returns the active
	// block timestamp if the account is blocked after the transition
	// (whether imposed now or already in force), nil otherwise.
	ApplyFailedLogin(ctx context.Context, id int64, policy lockout.Policy, now time.Time) (*time.Time, error)

	// ResetLoginState zeroes the failure counter and clears any block.
	ResetLoginState(ctx context.Context, id int64) error
}
