package auth

import (
	"fmt"
	"net/http"

	"github.com/JhonAQ/te-toca-web-sub000/internal/apperror"
	"github.com/JhonAQ/te-toca-web-sub000/internal/logger"
	"github.com/JhonAQ/te-toca-web-sub000/internal/utils"
)

// Middleware attaches the principal of a valid bearer token to the request
// context. Requests without an Authorization header pass through anonymous.
func Middleware(verifier Verifier, revocations *RevocationList, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				next.ServeHTTP(w, r)
				return
			}
			rawToken, err := ExtractTokenFromRequest(r)
			if err != nil {
				utils.WriteError(w, apperror.Unauthorized(err.Error()))
				return
			}

			principal, err := verifier.Verify(r.Context(), rawToken)
			if err != nil {
				log.LogSecurity("TOKEN_REJECTED", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
				utils.WriteError(w, apperror.Unauthorized("invalid token"))
				return
			}

			// Customer tokens stay usable while the revocation store is down;
			// staff tokens are refused.
			revoked, err := revocations.IsRevoked(r.Context(), principal.TokenID)
			if err != nil {
				if principal.Type != TypeUser {
					log.Error("AUTH", fmt.Sprintf("revocation check failed for %s %s: %v", principal.Type, principal.ID, err))
					utils.WriteError(w, apperror.Internal(err))
					return
				}
				log.Warn("AUTH", err.Error())
			}
			if revoked {
				utils.WriteError(w, apperror.Unauthorized("token has been revoked"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// RequireType rejects anonymous callers and principals of other types.
func RequireType(types ...PrincipalType) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := FromContext(r.Context())
			if p == nil {
				utils.WriteError(w, apperror.Unauthorized("authentication required"))
				return
			}
			for _, t := range types {
				if p.Type == t {
					next.ServeHTTP(w, r)
					return
				}
			}
			utils.WriteError(w, apperror.Forbidden("%s principals cannot access this resource", p.Type))
		})
	}
}

// RequireAdmin allows tenant-scoped administrators only.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := FromContext(r.Context())
		if p == nil {
			utils.WriteError(w, apperror.Unauthorized("authentication required"))
			return
		}
		if !p.IsAdmin() || p.TenantID == "" {
			utils.WriteError(w, apperror.Forbidden("admin role required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
