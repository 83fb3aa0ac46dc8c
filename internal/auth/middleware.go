package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"
)

type accountContextKey struct{}

// Resolver turns a bearer access token into an authenticated account for
// downstream handlers. Refresh-class tokens are rejected here; they only
// buy new access tokens, never resource access.
type Resolver struct {
	codec *TokenCodec
	store Store
}

func NewResolver(codec *TokenCodec, store Store) *Resolver {
	return &Resolver{codec: codec, store: store}
}

func (rv *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if header == "" {
			writeError(w, http.StatusUnauthorized, "missing authorization token")
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			writeError(w, http.StatusUnauthorized, "invalid authorization format")
			return
		}

		tokenStr := strings.TrimSpace(parts[1])
		claims, err := rv.codec.Validate(tokenStr, ClassAccess)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		account, err := rv.store.AccountByID(r.Context(), claims.Subject)
		if err != nil {
			if errors.Is(err, ErrAccountNotFound) {
				writeError(w, http.StatusUnauthorized, "account not found")
				return
			}
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "failed to resolve identity")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithAccount(r.Context(), account)))
	})
}

// WithAccount returns a context carrying the resolved account. Exposed so
// downstream handler tests can build authenticated requests directly.
func WithAccount(ctx context.Context, account Account) context.Context {
	return context.WithValue(ctx, accountContextKey{}, account)
}

// AccountFrom returns the account the resolver attached to the request
// context.
func AccountFrom(ctx context.Context) (Account, bool) {
	account, ok := ctx.Value(accountContextKey{}).(Account)
	return account, ok
}
