package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/zhouzirui/z-chat/internal/service/account"
	"github.com/zhouzirui/z-chat/pkg/utils"
)

type contextKey string

const principalKey contextKey = "principal"

// Principal is the verified caller attached to the request context.
type Principal struct {
	Account account.Account
	Claims  *account.Claims
}

// Verifier checks bearer tokens.
type Verifier interface {
	Verify(ctx context.Context, token string) (account.Account, *account.Claims, error)
}

// RequireAuth rejects requests without a valid bearer token with a 401 detail body.
func RequireAuth(v Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				utils.RespondError(w, http.StatusUnauthorized, "Not authenticated")
				return
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
				utils.RespondError(w, http.StatusUnauthorized, "Invalid authorization format")
				return
			}

			acc, claims, err := v.Verify(r.Context(), strings.TrimSpace(parts[1]))
			if err != nil {
				msg := "Invalid token"
				if errors.Is(err, account.ErrTokenExpired) {
					msg = "Token has expired"
				}
				utils.RespondError(w, http.StatusUnauthorized, msg)
				return
			}

			ctx := context.WithValue(r.Context(), principalKey, Principal{Account: acc, Claims: claims})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PrincipalFrom extracts the caller set by RequireAuth.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}
