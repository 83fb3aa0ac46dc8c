package auth

import "time"

// Account is the persisted account record. Username is immutable after
// registration; FailedLoginAttempts and BlockedUntil are mutated only by the
// login path.
type Account struct {
	ID                  int64
	Username            string
	PasswordHash        string
	IsStaff             bool
	FailedLoginAttempts int
	BlockedUntil        *time.Time
	CreatedAt           time.Time
}

// TokenPair is the credential pair returned by a successful login. Tokens are
// stateless signed claims; neither kind is persisted.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}
