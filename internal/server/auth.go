package server

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/GuillaumeRedon/hackathon-IBM-DIA-E22/internal/logging"
)

// authMiddleware gates the protected API routes behind a static Bearer token:
//
//	Authorization: Bearer <apiKey>
//
// An empty apiKey disables the check entirely; the startup warning in New is
// the only signal, nothing is logged per request. Rejected requests get a 401
// with a WWW-Authenticate challenge. The presented token value never reaches
// the logs, only whether one was present.
func authMiddleware(apiKey string, next http.Handler) http.Handler {
	if apiKey == "" {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)

		switch {
		case token == "":
			logging.FromContext(r.Context()).Warn("auth: missing Authorization header",
				slog.String("path", r.URL.Path),
			)
			w.Header().Set("WWW-Authenticate", `Bearer realm="helpdesk"`)
			http.Error(w, "authorization required", http.StatusUnauthorized)

		case subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1:
			logging.FromContext(r.Context()).Warn("auth: invalid token",
				slog.String("path", r.URL.Path),
				slog.Bool("token_present", true),
			)
			w.Header().Set("WWW-Authenticate", `Bearer realm="helpdesk" error="invalid_token"`)
			http.Error(w, "invalid token", http.StatusUnauthorized)

		default:
			next.ServeHTTP(w, r)
		}
	})
}

// bearerToken pulls the token out of an "Authorization: Bearer <token>"
// header. Returns "" when the header is absent, has the wrong scheme, or is
// malformed.
func bearerToken(r *http.Request) string {
	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
