package authz

import (
	"reflect"
	"testing"
)

func resolvedWith(perms ...Permission) *ResolvedPermissions {
	return &ResolvedPermissions{
		SubjectID:   "alice",
		TenantID:    "t1",
		Permissions: perms,
	}
}

func TestEvaluateExactResourceMatch(t *testing.T) {
	rp := resolvedWith(Permission{
		ID: "p1", ResourceType: "document",
		Matcher: ResourceMatcher{ResourceID: "doc-42"},
		Actions: []Action{ActionRead},
	})

	allowed := Evaluate(rp, Resource{Type: "document", ID: "doc-42"}, ActionRead, nil)
	if !allowed.Allowed {
		t.Errorf("Expected allow for exact resource match: %s", allowed.Reason)
	}
	if allowed.PermissionID != "p1" {
		t.Errorf("Decision must carry the granting permission, got %q", allowed.PermissionID)
	}

	denied := Evaluate(rp, Resource{Type: "document", ID: "doc-43"}, ActionRead, nil)
	if denied.Allowed {
		t.Error("Expected deny for a different resource ID")
	}
	if denied.Reason != "no matching permission" {
		t.Errorf("Expected structured deny reason, got %q", denied.Reason)
	}
}

func TestEvaluatePathPrefixGrantsDescendants(t *testing.T) {
	rp := resolvedWith(Permission{
		ID: "p-tree", ResourceType: "folder",
		Matcher: ResourceMatcher{PathPrefix: "/org/eng/"},
		Actions: []Action{ActionRead},
	})

	child := Evaluate(rp, Resource{Type: "folder", Path: "/org/eng/design/specs"}, ActionRead, nil)
	if !child.Allowed {
		t.Errorf("Permission on a parent path must cover descendants: %s", child.Reason)
	}

	sibling := Evaluate(rp, Resource{Type: "folder", Path: "/org/sales/q3"}, ActionRead, nil)
	if sibling.Allowed {
		t.Error("Path outside the prefix must be denied")
	}
}

func TestEvaluateWildcardAndTypeMismatch(t *testing.T) {
	rp := resolvedWith(Permission{
		ID: "p-all", ResourceType: "pipeline",
		Matcher: ResourceMatcher{Wildcard: true},
		Actions: []Action{ActionAdmin},
	})

	if d := Evaluate(rp, Resource{Type: "pipeline", ID: "any"}, ActionAdmin, nil); !d.Allowed {
		t.Errorf("Wildcard matcher must cover every resource of the type: %s", d.Reason)
	}
	if d := Evaluate(rp, Resource{Type: "cluster", ID: "any"}, ActionAdmin, nil); d.Allowed {
		t.Error("Wildcard must not cross resource types")
	}
}

func TestEvaluateConditions(t *testing.T) {
	rp := resolvedWith(Permission{
		ID: "p-cond", ResourceType: "dataset",
		Matcher: ResourceMatcher{Wildcard: true},
		Actions: []Action{ActionRead},
		Conditions: []Condition{
			{Key: "region", Op: ConditionEquals, Values: []string{"eu"}},
			{Key: "team", Op: ConditionInSet, Values: []string{"data", "ml"}},
		},
	})
	res := Resource{Type: "dataset", ID: "d1"}

	if d := Evaluate(rp, res, ActionRead, map[string]string{"region": "eu", "team": "ml"}); !d.Allowed {
		t.Errorf("All conditions hold, expected allow: %s", d.Reason)
	}
	if d := Evaluate(rp, res, ActionRead, map[string]string{"region": "us", "team": "ml"}); d.Allowed {
		t.Error("Failing eq condition must deny")
	}
	if d := Evaluate(rp, res, ActionRead, map[string]string{"region": "eu", "team": "sales"}); d.Allowed {
		t.Error("Failing in condition must deny")
	}
	// Conditions AND together: one missing attribute fails the permission.
	if d := Evaluate(rp, res, ActionRead, map[string]string{"region": "eu"}); d.Allowed {
		t.Error("Missing attribute must fail the condition")
	}
}

func TestEvaluateMissingAttributeFailsNotEquals(t *testing.T) {
	rp := resolvedWith(Permission{
		ID: "p-ne", ResourceType: "dataset",
		Matcher:    ResourceMatcher{Wildcard: true},
		Actions:    []Action{ActionRead},
		Conditions: []Condition{{Key: "env", Op: ConditionNotEquals, Values: []string{"prod"}}},
	})
	res := Resource{Type: "dataset", ID: "d1"}

	if d := Evaluate(rp, res, ActionRead, nil); d.Allowed {
		t.Error("A missing attribute fails every comparator, including ne")
	}
	if d := Evaluate(rp, res, ActionRead, map[string]string{"env": "staging"}); !d.Allowed {
		t.Errorf("ne condition holds, expected allow: %s", d.Reason)
	}
}

func TestEvaluatePermissionsCombineWithOr(t *testing.T) {
	rp := resolvedWith(
		Permission{
			ID: "p-narrow", ResourceType: "document",
			Matcher:    ResourceMatcher{Wildcard: true},
			Actions:    []Action{ActionRead},
			Conditions: []Condition{{Key: "owner", Op: ConditionEquals, Values: []string{"alice"}}},
		},
		Permission{
			ID: "p-broad", ResourceType: "document",
			Matcher: ResourceMatcher{Wildcard: true},
			Actions: []Action{ActionRead},
		},
	)

	// The conditioned permission fails but the unconditioned one applies.
	d := Evaluate(rp, Resource{Type: "document", ID: "d1"}, ActionRead, map[string]string{"owner": "bob"})
	if !d.Allowed {
		t.Errorf("Permissions OR together, expected allow: %s", d.Reason)
	}
	if d.PermissionID != "p-broad" {
		t.Errorf("Expected the broad permission to grant, got %q", d.PermissionID)
	}
}

func TestEvaluateNilResolution(t *testing.T) {
	d := Evaluate(nil, Resource{Type: "document"}, ActionRead, nil)
	if d.Allowed {
		t.Error("Nil resolution must deny")
	}
}

func TestFieldGrantsUnionAcrossPermissions(t *testing.T) {
	rp := resolvedWith(
		Permission{
			ID: "p1", ResourceType: "profile",
			Matcher:     ResourceMatcher{Wildcard: true},
			Actions:     []Action{ActionRead},
			FieldGrants: map[string][]Action{"email": {ActionRead}},
		},
		Permission{
			ID: "p2", ResourceType: "profile",
			Matcher:     ResourceMatcher{Wildcard: true},
			Actions:     []Action{ActionUpdate},
			FieldGrants: map[string][]Action{"email": {ActionUpdate}, "phone": {ActionRead}},
		},
		Permission{
			ID: "p-other-type", ResourceType: "billing",
			Matcher:     ResourceMatcher{Wildcard: true},
			Actions:     []Action{ActionRead},
			FieldGrants: map[string][]Action{"card": {ActionRead}},
		},
	)

	fields := FieldGrants(rp, Resource{Type: "profile", ID: "u1"})
	want := map[string][]Action{
		"email": {ActionRead, ActionUpdate},
		"phone": {ActionRead},
	}
	if !reflect.DeepEqual(fields, want) {
		t.Errorf("Expected %v, got %v", want, fields)
	}
}

func TestFieldGrantsRespectsMatcher(t *testing.T) {
	rp := resolvedWith(Permission{
		ID: "p1", ResourceType: "profile",
		Matcher:     ResourceMatcher{ResourceID: "u1"},
		Actions:     []Action{ActionRead},
		FieldGrants: map[string][]Action{"email": {ActionRead}},
	})

	if fields := FieldGrants(rp, Resource{Type: "profile", ID: "u2"}); len(fields) != 0 {
		t.Errorf("Matcher must gate field grants, got %v", fields)
	}
}

func TestScopeAllowsWildcards(t *testing.T) {
	if !ScopeAllows([]string{"*"}, "anything", ActionDelete) {
		t.Error("Global wildcard must allow everything")
	}
	if !ScopeAllows([]string{"document:*"}, "document", ActionUpdate) {
		t.Error("Type wildcard must allow any action on the type")
	}
	if ScopeAllows([]string{"document:*"}, "folder", ActionRead) {
		t.Error("Type wildcard must not cross types")
	}
	if !ScopeAllows([]string{"folder:read"}, "folder", ActionRead) {
		t.Error("Exact scope must allow")
	}
	if ScopeAllows([]string{"folder:read"}, "folder", ActionDelete) {
		t.Error("Exact scope must not widen to other actions")
	}
}
