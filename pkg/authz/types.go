package authz

import (
	"sort"
	"strings"
	"time"
)

// Classification is the coarse category of a subject, used by the static
// fallback policy when dynamic resolution is unavailable.
type Classification string

const (
	ClassificationStandard       Classification = "standard"
	ClassificationServiceAccount Classification = "service-account"
	ClassificationPlatformAdmin  Classification = "platform-admin"
)

// Action is an operation that can be performed on a resource.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionAdmin  Action = "admin"
)

// RoleType distinguishes platform-defined roles from tenant-defined ones.
type RoleType string

const (
	RoleTypeSystem RoleType = "system"
	RoleTypeCustom RoleType = "custom"
)

// IsolationMode is a tenant's isolation setting.
type IsolationMode string

const (
	IsolationShared    IsolationMode = "shared"
	IsolationDedicated IsolationMode = "dedicated"
)

// Tenant is an isolated organizational boundary. A permission with an
// empty tenant ID is global.
type Tenant struct {
	ID        string        `json:"id"`
	ParentID  *string       `json:"parent_id,omitempty"`
	Isolation IsolationMode `json:"isolation"`
}

// Subject is a user or service account on whose behalf authorization
// questions are asked.
type Subject struct {
	ID             string            `json:"id"`
	TenantID       string            `json:"tenant_id"`
	Classification Classification    `json:"classification"`
	Attributes     map[string]string `json:"attributes,omitempty"`
	Active         bool              `json:"active"`
}

// Role is a named permission bundle with optional single-parent inheritance.
type Role struct {
	ID           string   `json:"id"`
	TenantID     string   `json:"tenant_id"`
	Name         string   `json:"name"`
	ParentRoleID *string  `json:"parent_role_id,omitempty"`
	Priority     int      `json:"priority"`
	Assignable   bool     `json:"assignable"`
	Type         RoleType `json:"type"`
	Active       bool     `json:"active"`
}

// Group is an organizational collection of subjects carrying role
// assignments applied to all members.
type Group struct {
	ID            string  `json:"id"`
	TenantID      string  `json:"tenant_id"`
	Name          string  `json:"name"`
	ParentGroupID *string `json:"parent_group_id,omitempty"`
	Active        bool    `json:"active"`
}

// RoleGrant is a direct role assignment to a subject. RoleTenantID is the
// tenant of the granted role; a mismatch with the subject's tenant marks
// the record as corrupt and it is skipped during resolution.
type RoleGrant struct {
	SubjectID    string     `json:"subject_id"`
	RoleID       string     `json:"role_id"`
	RoleTenantID string     `json:"role_tenant_id"`
	Active       bool       `json:"active"`
	GrantedBy    *string    `json:"granted_by,omitempty"`
	GrantedAt    time.Time  `json:"granted_at"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// EffectiveAt reports whether the grant is active and unexpired at the
// given instant.
func (g RoleGrant) EffectiveAt(now time.Time) bool {
	if !g.Active {
		return false
	}
	return g.ExpiresAt == nil || g.ExpiresAt.After(now)
}

// ConditionOp is a comparator in a permission's condition predicate.
type ConditionOp string

const (
	ConditionEquals    ConditionOp = "eq"
	ConditionNotEquals ConditionOp = "ne"
	ConditionInSet     ConditionOp = "in"
)

// Condition is a single attribute predicate. All conditions on a
// permission must hold for the permission to apply.
type Condition struct {
	Key    string      `json:"key"`
	Op     ConditionOp `json:"op"`
	Values []string    `json:"values"`
}

// Holds evaluates the predicate against an attribute map. A missing
// attribute fails every comparator, including not-equals.
func (c Condition) Holds(attrs map[string]string) bool {
	v, ok := attrs[c.Key]
	if !ok {
		return false
	}
	switch c.Op {
	case ConditionEquals:
		return len(c.Values) > 0 && v == c.Values[0]
	case ConditionNotEquals:
		return len(c.Values) > 0 && v != c.Values[0]
	case ConditionInSet:
		for _, candidate := range c.Values {
			if v == candidate {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// ResourceMatcher selects the resources a permission applies to: a
// specific resource ID, a hierarchical path prefix, or everything of the
// permission's resource type.
type ResourceMatcher struct {
	ResourceID string `json:"resource_id,omitempty"`
	PathPrefix string `json:"path_prefix,omitempty"`
	Wildcard   bool   `json:"wildcard,omitempty"`
}

// Matches reports whether the matcher covers the resource. A path-prefix
// matcher grants down the resource hierarchy: a permission on a parent
// node applies to all descendants.
func (m ResourceMatcher) Matches(res Resource) bool {
	if m.Wildcard {
		return true
	}
	if m.ResourceID != "" && m.ResourceID == res.ID {
		return true
	}
	if m.PathPrefix != "" && res.Path != "" && strings.HasPrefix(res.Path, m.PathPrefix) {
		return true
	}
	return false
}

// Permission is a grant of actions on matching resources, optionally
// conditioned on subject/request attributes and optionally restricted to
// specific fields.
type Permission struct {
	ID           string              `json:"id"`
	TenantID     string              `json:"tenant_id,omitempty"` // empty means global
	ResourceType string              `json:"resource_type"`
	Matcher      ResourceMatcher     `json:"matcher"`
	Actions      []Action            `json:"actions"`
	Conditions   []Condition         `json:"conditions,omitempty"`
	FieldGrants  map[string][]Action `json:"field_grants,omitempty"`
}

// AllowsAction reports whether the permission's action set contains the
// requested action.
func (p Permission) AllowsAction(action Action) bool {
	for _, a := range p.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// Resource identifies the target of an authorization question.
type Resource struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
	Path string `json:"path,omitempty"`
}

// Decision is the answer to a single authorization question.
type Decision struct {
	Allowed      bool      `json:"allowed"`
	PermissionID string    `json:"permission_id,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	Fallback     bool      `json:"fallback,omitempty"`
	CheckedAt    time.Time `json:"checked_at"`
}

// ResolvedPermissions is a subject's fully aggregated permission set: the
// role closure, the deduplicated structured permission records, and the
// flattened scope strings.
type ResolvedPermissions struct {
	SubjectID   string          `json:"subject_id"`
	TenantID    string          `json:"tenant_id"`
	Scopes      []string        `json:"scopes"`
	Permissions []Permission    `json:"permissions"`
	Roles       map[string]Role `json:"roles"`
	ResolvedAt  time.Time       `json:"resolved_at"`
}

// HasScope reports whether the flattened scope set contains the scope.
func (rp *ResolvedPermissions) HasScope(scope string) bool {
	for _, s := range rp.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// ScopeFor builds the flattened "resource_type:action" scope string.
func ScopeFor(resourceType string, action Action) string {
	return resourceType + ":" + string(action)
}

// ScopeAllows reports whether a scope list covers the resource type and
// action, honoring the "*" and "type:*" wildcard forms used by the static
// fallback policy.
func ScopeAllows(scopes []string, resourceType string, action Action) bool {
	target := ScopeFor(resourceType, action)
	for _, s := range scopes {
		if s == "*" || s == target {
			return true
		}
		if strings.HasSuffix(s, ":*") && strings.TrimSuffix(s, ":*") == resourceType {
			return true
		}
	}
	return false
}

// MergeAttributes layers the request context over the subject's stored
// attributes; request values win on key collision.
func MergeAttributes(subjectAttrs, requestCtx map[string]string) map[string]string {
	merged := make(map[string]string, len(subjectAttrs)+len(requestCtx))
	for k, v := range subjectAttrs {
		merged[k] = v
	}
	for k, v := range requestCtx {
		merged[k] = v
	}
	return merged
}

func sortedScopes(set map[string]struct{}) []string {
	scopes := make([]string, 0, len(set))
	for s := range set {
		scopes = append(scopes, s)
	}
	sort.Strings(scopes)
	return scopes
}
