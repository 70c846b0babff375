package middleware

import (
	"log/slog"
	"net/http"

	"github.com/Omprakash1353/Social-Media-Server/internal/auth"
)

// CookieName carries the signed token issued by the account system. The
// token rides a cookie so the credential is presented at handshake time,
// before any event handler is reachable.
const CookieName = "social-chat-token"

type rejectionCounter interface {
	Inc()
}

// NewAuthMiddleware gates the upgrade endpoint behind the credential
// verifier. A rejected handshake answers 401 and never reaches the
// registry; the response body never distinguishes why the token failed.
func NewAuthMiddleware(logger *slog.Logger, verifier *auth.Verifier, rejections rejectionCounter) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// couldn't extract metadata from request so something went wrong with previous middlewares
			reqMeta, ok := ReqMetadataFrom(r.Context())
			if !ok {
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			var tokenString string
			if cookie, err := r.Cookie(CookieName); err == nil {
				tokenString = cookie.Value
			}

			account, err := verifier.Verify(r.Context(), tokenString)
			if err != nil {
				logger.Warn("Rejected unauthenticated handshake",
					slog.String("ip", reqMeta.IP),
					slog.Any("error", err),
				)
				rejections.Inc()
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			reqMeta.Account = account
			next.ServeHTTP(w, r)
		})
	}
}
