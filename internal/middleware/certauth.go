// Package middleware provides HTTP middlewares for client authentication and logging.
package middleware

import (
	"context"
	"net/http"
)

type ctxKey string

const clientKey ctxKey = "client"

// StatusPath is readable without a client certificate so automations can poll it.
const StatusPath = "/api/status"

// CertAuth enforces mutual TLS. Every request except GET /api/status must
// carry a verified client certificate; its Common Name is stored in the
// request context for audit logging.
func CertAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && r.URL.Path == StatusPath {
			next.ServeHTTP(w, r)
			return
		}
		if r.TLS == nil || len(r.TLS.PeerCertificates) == 0 {
			http.Error(w, "no client certificate provided", http.StatusUnauthorized)
			return
		}
		cert := r.TLS.PeerCertificates[0]
		ctx := context.WithValue(r.Context(), clientKey, cert.Subject.CommonName)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientFromContext returns the authenticated client name, or "" when the
// request was not authenticated.
func ClientFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(clientKey).(string); ok {
		return s
	}
	return ""
}
