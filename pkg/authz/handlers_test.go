package authz

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"github.com/halcyonsec/aegis/pkg/middleware"
)

func newTestAPI(store *fakeStore) *mux.Router {
	engine := newTestEngine(store, newMapCache())
	controller := NewController(engine, store, staticPolicy{"standard": {}}, true, testLogger(), nil)
	router := mux.NewRouter()
	NewHandlers(controller, engine, testLogger()).RegisterRoutes(router)
	return router
}

func doJSON(t *testing.T, router *mux.Router, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestGetScopesEndpoint(t *testing.T) {
	store := newFakeStore()
	seedEditorWorld(store)
	router := newTestAPI(store)

	rec := doJSON(t, router, "GET", "/api/v1/subjects/alice/scopes", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp ScopesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.SubjectID != "alice" || len(resp.Scopes) != 2 {
		t.Errorf("Unexpected response: %+v", resp)
	}
}

func TestCheckEndpoint(t *testing.T) {
	store := newFakeStore()
	seedEditorWorld(store)
	router := newTestAPI(store)

	rec := doJSON(t, router, "POST", "/api/v1/check", CheckRequest{
		SubjectID: "alice",
		Resource:  Resource{Type: "document", ID: "d1"},
		Action:    ActionUpdate,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var decision Decision
	if err := json.Unmarshal(rec.Body.Bytes(), &decision); err != nil {
		t.Fatalf("Failed to decode decision: %v", err)
	}
	if !decision.Allowed || decision.PermissionID != "p-edit" {
		t.Errorf("Unexpected decision: %+v", decision)
	}

	rec = doJSON(t, router, "POST", "/api/v1/check", CheckRequest{
		SubjectID: "alice",
		Resource:  Resource{Type: "document", ID: "d1"},
		Action:    ActionDelete,
	})
	json.Unmarshal(rec.Body.Bytes(), &decision)
	if decision.Allowed {
		t.Error("Expected deny for unheld action")
	}
}

func TestCheckEndpointValidation(t *testing.T) {
	router := newTestAPI(newFakeStore())

	cases := []struct {
		name string
		body CheckRequest
	}{
		{"missing subject", CheckRequest{Resource: Resource{Type: "document"}, Action: ActionRead}},
		{"missing resource type", CheckRequest{SubjectID: "alice", Action: ActionRead}},
		{"missing action", CheckRequest{SubjectID: "alice", Resource: Resource{Type: "document"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, router, "POST", "/api/v1/check", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestFieldPermissionsEndpoint(t *testing.T) {
	store := newFakeStore()
	store.addSubject("alice", "t1", nil)
	store.addRole("r1", "t1", nil)
	store.grant("alice", "r1", "t1")
	store.rolePerms["r1"] = []Permission{{
		ID: "p1", TenantID: "t1", ResourceType: "profile",
		Matcher:     ResourceMatcher{Wildcard: true},
		Actions:     []Action{ActionRead},
		FieldGrants: map[string][]Action{"email": {ActionRead}},
	}}
	router := newTestAPI(store)

	rec := doJSON(t, router, "POST", "/api/v1/subjects/alice/fields", FieldPermissionsRequest{
		Resource: Resource{Type: "profile", ID: "u1"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp FieldPermissionsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(resp.Fields["email"]) != 1 || resp.Fields["email"][0] != ActionRead {
		t.Errorf("Unexpected field grants: %+v", resp.Fields)
	}
}

func TestInvalidateEndpoints(t *testing.T) {
	store := newFakeStore()
	seedEditorWorld(store)
	router := newTestAPI(store)

	rec := doJSON(t, router, "POST", "/api/v1/invalidate/subject", map[string]string{"subject_id": "alice"})
	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", rec.Code)
	}

	rec = doJSON(t, router, "POST", "/api/v1/invalidate/subject", map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing subject_id, got %d", rec.Code)
	}

	rec = doJSON(t, router, "POST", "/api/v1/invalidate/role", map[string]interface{}{
		"role_id": "editor", "subject_ids": []string{"alice"},
	})
	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", rec.Code)
	}

	rec = doJSON(t, router, "POST", "/api/v1/invalidate/group", map[string]interface{}{
		"subject_ids": []string{"alice"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing group_id, got %d", rec.Code)
	}
}

func TestRequireScopeMiddleware(t *testing.T) {
	store := newFakeStore()
	seedEditorWorld(store)
	engine := newTestEngine(store, newMapCache())
	controller := NewController(engine, store, staticPolicy{"standard": {}}, true, testLogger(), nil)

	var reached bool
	handler := RequireScope(controller, "document", ActionUpdate)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	}))

	// No identity: 401
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/protected", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without identity, got %d", rec.Code)
	}
	if reached {
		t.Error("Handler must not run for unauthenticated requests")
	}

	// The identity middleware feeds the scope check.
	chain := middleware.Subject(handler)

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set(middleware.SubjectHeader, "alice")
	rec = httptest.NewRecorder()
	chain.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !reached {
		t.Errorf("Expected the scoped subject through, got %d", rec.Code)
	}

	// A subject without the scope: 403
	store.addSubject("intern", "t1", nil)
	reached = false
	req = httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set(middleware.SubjectHeader, "intern")
	rec = httptest.NewRecorder()
	chain.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for missing scope, got %d", rec.Code)
	}
	if reached {
		t.Error("Handler must not run for unauthorized requests")
	}
}
