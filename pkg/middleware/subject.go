// Package middleware provides HTTP middleware for caller identity and
// rate limiting.
package middleware

import (
	"net/http"

	"github.com/casehub/accesscore/pkg/authz"
	"github.com/casehub/accesscore/pkg/contextkeys"
	"github.com/casehub/accesscore/pkg/httputil"
)

// Identity headers set by the upstream gateway after authentication.
// This service trusts them; it does not validate credentials itself.
const (
	HeaderUserID   = "X-User-ID"
	HeaderTenantID = "X-Tenant-ID"
	HeaderRole     = "X-User-Role"
)

// SubjectMiddleware extracts the caller identity from gateway headers
// and stores it in the request context. Requests without a complete
// identity are rejected.
func SubjectMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub := authz.Subject{
			ID:       r.Header.Get(HeaderUserID),
			TenantID: r.Header.Get(HeaderTenantID),
			Role:     authz.Role(r.Header.Get(HeaderRole)),
		}
		if sub.ID == "" || sub.TenantID == "" {
			httputil.WriteUnauthorized(w, "missing caller identity")
			return
		}
		if !sub.Role.Valid() {
			httputil.WriteUnauthorized(w, "unknown role")
			return
		}

		ctx := contextkeys.WithSubject(r.Context(), &sub)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetSubject extracts the caller identity from the request, or nil when
// the subject middleware did not run.
func GetSubject(r *http.Request) *authz.Subject {
	v := r.Context().Value(contextkeys.SubjectKey)
	if v == nil {
		return nil
	}
	sub, ok := v.(*authz.Subject)
	if !ok {
		return nil
	}
	return sub
}

// RequireAdmin rejects callers below the admin tier.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub := GetSubject(r)
		if sub == nil {
			httputil.WriteUnauthorized(w, "authentication required")
			return
		}
		if !sub.Role.IsAdminTier() {
			httputil.WriteForbidden(w, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
