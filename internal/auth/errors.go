package auth

import (
	"errors"
	"time"
)

var (
	ErrUsernameTaken       = errors.New("username already exists")
	ErrPasswordMismatch    = errors.New("password confirmation does not match")
	ErrInvalidCredentials  = errors.New("incorrect username or password")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrAccountNotFound     = errors.New("account not found")
)

// ErrAccountLocked is returned while an account's block is active. The same
// error covers both hitting the gate and the attempt that imposed the block.
type ErrAccountLocked struct {
	Until       time.Time
	SecondsLeft int64
}

func (e ErrAccountLocked) Error() string {
	return "account temporarily blocked"
}
