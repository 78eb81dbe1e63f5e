package middleware

import (
	"net/http"

	"github.com/openlearn/tenantd/internal/tenancy"
)

// Tenant runs the settings state machine for each inbound request and
// attaches the resulting snapshot to the request context, where downstream
// handlers read it via tenancy.FromContext.
func Tenant(manager *tenancy.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			snapshot := manager.BeginRequest(r.Host)
			defer manager.End()

			ctx := tenancy.WithSnapshot(r.Context(), snapshot)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
