package authz

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/halcyonsec/aegis/pkg/httputil"
	"github.com/halcyonsec/aegis/pkg/observability"
)

// Handlers exposes the resolution engine over HTTP. All read paths go
// through the fallback controller so the API never returns 5xx for an
// authorization question; invalidation goes straight to the engine.
type Handlers struct {
	controller *Controller
	engine     *Engine
	log        *observability.Logger
}

// NewHandlers creates the authorization API handlers.
func NewHandlers(controller *Controller, engine *Engine, log *observability.Logger) *Handlers {
	if log == nil {
		log = observability.NewLogger(observability.ParseLevel("info"), nil)
	}
	return &Handlers{controller: controller, engine: engine, log: log}
}

// RegisterRoutes registers the authorization API routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	// Resolution routes
	router.HandleFunc("/api/v1/subjects/{id}/scopes", h.getScopes).Methods("GET")
	router.HandleFunc("/api/v1/subjects/{id}/fields", h.getFieldPermissions).Methods("POST")
	router.HandleFunc("/api/v1/check", h.check).Methods("POST")

	// Invalidation routes
	router.HandleFunc("/api/v1/invalidate/subject", h.invalidateSubject).Methods("POST")
	router.HandleFunc("/api/v1/invalidate/role", h.invalidateRole).Methods("POST")
	router.HandleFunc("/api/v1/invalidate/group", h.invalidateGroup).Methods("POST")
}

// ScopesResponse is the payload for GET /api/v1/subjects/{id}/scopes
type ScopesResponse struct {
	SubjectID  string    `json:"subject_id"`
	Scopes     []string  `json:"scopes"`
	ResolvedAt time.Time `json:"resolved_at"`
}

// getScopes handles GET /api/v1/subjects/{id}/scopes
func (h *Handlers) getScopes(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	scopes := h.controller.Scopes(r.Context(), subjectID)
	httputil.WriteSuccess(w, ScopesResponse{
		SubjectID:  subjectID,
		Scopes:     scopes,
		ResolvedAt: time.Now(),
	})
}

// CheckRequest is the payload for POST /api/v1/check
type CheckRequest struct {
	SubjectID string            `json:"subject_id"`
	Resource  Resource          `json:"resource"`
	Action    Action            `json:"action"`
	Context   map[string]string `json:"context,omitempty"`
}

// check handles POST /api/v1/check
func (h *Handlers) check(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.SubjectID == "" {
		httputil.WriteBadRequest(w, "subject_id is required")
		return
	}
	if req.Resource.Type == "" {
		httputil.WriteBadRequest(w, "resource.type is required")
		return
	}
	if req.Action == "" {
		httputil.WriteBadRequest(w, "action is required")
		return
	}

	decision := h.controller.Check(r.Context(), req.SubjectID, req.Resource, req.Action, req.Context)
	httputil.WriteSuccess(w, decision)
}

// FieldPermissionsRequest is the payload for POST /api/v1/subjects/{id}/fields
type FieldPermissionsRequest struct {
	Resource Resource `json:"resource"`
}

// FieldPermissionsResponse lists per-field action grants for a resource
type FieldPermissionsResponse struct {
	SubjectID string              `json:"subject_id"`
	Fields    map[string][]Action `json:"fields"`
}

// getFieldPermissions handles POST /api/v1/subjects/{id}/fields
func (h *Handlers) getFieldPermissions(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	var req FieldPermissionsRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Resource.Type == "" {
		httputil.WriteBadRequest(w, "resource.type is required")
		return
	}

	fields := h.controller.FieldPermissions(r.Context(), subjectID, req.Resource)
	httputil.WriteSuccess(w, FieldPermissionsResponse{
		SubjectID: subjectID,
		Fields:    fields,
	})
}

// invalidateSubject handles POST /api/v1/invalidate/subject
func (h *Handlers) invalidateSubject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SubjectID string `json:"subject_id"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.SubjectID == "" {
		httputil.WriteBadRequest(w, "subject_id is required")
		return
	}

	h.engine.Invalidate(r.Context(), req.SubjectID)
	httputil.WriteNoContent(w)
}

// invalidateRole handles POST /api/v1/invalidate/role
func (h *Handlers) invalidateRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RoleID     string   `json:"role_id"`
		SubjectIDs []string `json:"subject_ids"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.RoleID == "" {
		httputil.WriteBadRequest(w, "role_id is required")
		return
	}

	h.engine.InvalidateForRole(r.Context(), req.RoleID, req.SubjectIDs)
	httputil.WriteNoContent(w)
}

// invalidateGroup handles POST /api/v1/invalidate/group
func (h *Handlers) invalidateGroup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GroupID    string   `json:"group_id"`
		SubjectIDs []string `json:"subject_ids"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.GroupID == "" {
		httputil.WriteBadRequest(w, "group_id is required")
		return
	}

	h.engine.InvalidateForGroup(r.Context(), req.GroupID, req.SubjectIDs)
	httputil.WriteNoContent(w)
}
