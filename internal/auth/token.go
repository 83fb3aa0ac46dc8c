package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token class tags. Access and refresh tokens share the same structure and
// differ only in class and TTL, so every caller that cares about the
// distinction must validate with the expected class.
const (
	ClassAccess  = "access"
	ClassRefresh = "refresh"
)

var (
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenMalformed     = errors.New("token malformed")
	ErrTokenClassMismatch = errors.New("token class mismatch")
)

// TokenClaims is the decoded claim set of a verified token.
type TokenClaims struct {
	Subject   int64
	Class     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenCodec signs and verifies bearer tokens with a process-wide secret.
// The secret and algorithm are fixed at construction.
type TokenCodec struct {
	secret []byte
	method jwt.SigningMethod
}

// NewTokenCodec builds a codec for the given HMAC algorithm name (HS256,
// HS384 or HS512).
func NewTokenCodec(secret, algorithm string) (*TokenCodec, error) {
	if secret == "" {
		return nil, errors.New("signing secret is required")
	}

	method := jwt.GetSigningMethod(algorithm)
	if method == nil {
		return nil, fmt.Errorf("unknown signing algorithm: %s", algorithm)
	}
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("signing algorithm %s is not secret-based", algorithm)
	}

	return &TokenCodec{secret: []byte(secret), method: method}, nil
}

// Issue signs a token for the given subject and class, expiring ttl from now.
func (c *TokenCodec) Issue(subject int64, class string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub": strconv.FormatInt(subject, 10),
		"typ": class,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(c.method, claims)
	encoded, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return encoded, nil
}

// Validate verifies the signature and expiry of a token and, when
// expectedClass is non-empty, that its class tag matches. It never touches
// the account store.
func (c *TokenCodec) Validate(tokenStr, expectedClass string) (TokenClaims, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (any, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{c.method.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return TokenClaims{}, ErrTokenExpired
		}
		return TokenClaims{}, ErrTokenMalformed
	}
	if !token.Valid {
		return TokenClaims{}, ErrTokenMalformed
	}

	subjectStr, _ := claims["sub"].(string)
	subject, err := strconv.ParseInt(subjectStr, 10, 64)
	if err != nil {
		return TokenClaims{}, ErrTokenMalformed
	}

	class, _ := claims["typ"].(string)
	if class == "" {
		return TokenClaims{}, ErrTokenMalformed
	}

	issuedAt, okIat := claims["iat"].(float64)
	expiresAt, okExp := claims["exp"].(float64)
	if !okIat || !okExp {
		return TokenClaims{}, ErrTokenMalformed
	}

	if expectedClass != "" && class != expectedClass {
		return TokenClaims{}, ErrTokenClassMismatch
	}

	return TokenClaims{
		Subject:   subject,
		Class:     class,
		IssuedAt:  time.Unix(int64(issuedAt), 0).UTC(),
		ExpiresAt: time.Unix(int64(expiresAt), 0).UTC(),
	}, nil
}
