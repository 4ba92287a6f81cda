package report

import (
	"net/http"
	"strings"

	"paygate/auth"
)

// TokenVerifier validates a bearer token and returns the account it belongs
// to.
type TokenVerifier interface {
	VerifyToken(token string) (int64, auth.Role, error)
}

// RequireOperator gates a handler behind a valid operator or admin token.
func RequireOperator(verifier TokenVerifier, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, codeUnauthorized, "missing bearer token")
			return
		}

		_, role, err := verifier.VerifyToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, codeUnauthorized, "invalid token")
			return
		}
		if role != auth.RoleOperator && role != auth.RoleAdmin {
			writeError(w, http.StatusForbidden, codeForbidden, "operator role required")
			return
		}

		next.ServeHTTP(w, r)
	})
}
