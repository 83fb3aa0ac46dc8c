package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bookshelf/internal/lockout"
)

const (
	defaultAccessTTL  = 2 * time.Hour
	defaultRefreshTTL = 24 * time.Hour
)

// Service orchestrates registration, login and refresh against the account
// store, using the password hasher, the token codec and the lockout policy.
type Service struct {
	store      Store
	codec      *TokenCodec
	policy     lockout.Policy
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewService(store Store, codec *TokenCodec) *Service {
	return &Service{
		store:      store,
		codec:      codec,
		policy:     lockout.DefaultPolicy(),
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
	}
}

func (s *Service) WithSecurityConfig(maxAttempts int, blockFor, accessTTL, refreshTTL time.Duration) {
	if maxAttempts > 0 {
		s.policy.Threshold = maxAttempts
	}
	if blockFor > 0 {
		s.policy.BlockFor = blockFor
	}
	if accessTTL > 0 {
		s.accessTTL = accessTTL
	}
	if refreshTTL > 0 {
		s.refreshTTL = refreshTTL
	}
}

// Register creates a new account with a hashed password, a zero failure
// counter and no block.
func (s *Service) Register(ctx context.Context, username, password, confirmPassword string) (Account, error) {
	username = strings.TrimSpace(username)

	if password != confirmPassword {
		return Account{}, ErrPasswordMismatch
	}

	_, err := s.store.AccountByUsername(ctx, username)
	if err == nil {
		return Account{}, ErrUsernameTaken
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return Account{}, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return Account{}, err
	}

	// The existence check above races with concurrent registration; the
	// unique constraint resolves it and the store reports ErrUsernameTaken.
	return s.store.CreateAccount(ctx, username, hash)
}

// Login verifies credentials behind the lockout gate and issues an
// access/refresh token pair on success.
//
// The gate is checked before the password, so a blocked account never
// learns whether the supplied password was correct, and a blocked attempt
// never touches the failure counter. The unknown-username error is
// byte-identical to the wrong-password error.
func (s *Service) Login(ctx context.Context, username, password string) (Account, TokenPair, error) {
	username = strings.TrimSpace(username)
	now := time.Now().UTC()

	account, err := s.store.AccountByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return Account{}, TokenPair{}, ErrInvalidCredentials
		}
		return Account{}, TokenPair{}, err
	}

	if decision := s.policy.Gate(now, account.BlockedUntil); decision.Blocked {
		return Account{}, TokenPair{}, ErrAccountLocked{
			Until:       *account.BlockedUntil,
			SecondsLeft: decision.SecondsLeft,
		}
	}

	if !CheckPassword(password, account.PasswordHash) {
		blockedUntil, err := s.store.ApplyFailedLogin(ctx, account.ID, s.policy, now)
		if err != nil {
			return Account{}, TokenPair{}, err
		}
		if blockedUntil != nil {
			return Account{}, TokenPair{}, ErrAccountLocked{
				Until:       *blockedUntil,
				SecondsLeft: s.policy.Gate(now, blockedUntil).SecondsLeft,
			}
		}
		return Account{}, TokenPair{}, ErrInvalidCredentials
	}

	if err := s.store.ResetLoginState(ctx, account.ID); err != nil {
		return Account{}, TokenPair{}, err
	}
	account.FailedLoginAttempts = 0
	account.BlockedUntil = nil

	pair, err := s.issueTokenPair(account.ID)
	if err != nil {
		return Account{}, TokenPair{}, err
	}

	return account, pair, nil
}

// Refresh exchanges a valid refresh token for a new access token. Refresh
// tokens are not rotated; the presented one stays valid until it expires.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.codec.Validate(strings.TrimSpace(refreshToken), ClassRefresh)
	if err != nil {
		// Expired, malformed and wrong-class all collapse to one caller
		// error; the cause stays available for logging.
		return "", fmt.Errorf("%w: %w", ErrInvalidRefreshToken, err)
	}

	account, err := s.store.AccountByID(ctx, claims.Subject)
	if err != nil {
		return "", err
	}

	access, err := s.codec.Issue(account.ID, ClassAccess, s.accessTTL)
	if err != nil {
		return "", err
	}

	return access, nil
}

func (s *Service) issueTokenPair(accountID int64) (TokenPair, error) {
	access, err := s.codec.Issue(accountID, ClassAccess, s.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}

	refresh, err := s.codec.Issue(accountID, ClassRefresh, s.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
	}, nil
}
