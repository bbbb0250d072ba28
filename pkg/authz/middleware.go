package authz

import (
	"net/http"

	"github.com/halcyonsec/aegis/pkg/httputil"
	"github.com/halcyonsec/aegis/pkg/middleware"
)

// RequireScope guards a route: the caller must be authenticated and hold
// a scope covering the given resource type and action. Enforcement goes
// through the fallback controller, so a resolution outage degrades to
// the static policy instead of locking operators out of the API.
func RequireScope(controller *Controller, resourceType string, action Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subjectID := middleware.SubjectFrom(r.Context())
			if subjectID == "" {
				httputil.WriteUnauthorized(w, "missing subject identity")
				return
			}
			scopes := controller.Scopes(r.Context(), subjectID)
			if !ScopeAllows(scopes, resourceType, action) {
				httputil.WriteForbidden(w, "insufficient scope")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
