package api

import (
	"net/http"
	"strings"

	"github.com/codewithboateng/adlint/internal/security"
)

// withAdmin guards mutating routes with a bearer token checked against the
// configured bcrypt hash. With no hash configured the routes are closed.
func withAdmin(s *Server, next http.HandlerFunc, action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.AdminTokenHash == "" {
			s.err(w, http.StatusForbidden, "admin api disabled")
			return
		}
		tok, ok := bearerToken(r)
		if !ok || !security.CheckToken(s.AdminTokenHash, tok) {
			s.logger().Warn("admin auth failed", "action", action, "remote", r.RemoteAddr, "request_id", requestIDFrom(r.Context()))
			w.Header().Set("WWW-Authenticate", `Bearer realm="adlint"`)
			s.err(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, tok, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}
