package authz

import (
	"context"
	"sort"
	"time"

	"github.com/halcyonsec/aegis/pkg/observability"
)

// Aggregator expands a seed role set through the hierarchy resolver and
// collects every reachable permission into a subject's resolved set.
type Aggregator struct {
	store     Store
	hierarchy *HierarchyResolver
	log       *observability.Logger
	metrics   *observability.Metrics
}

// NewAggregator creates a permission aggregator.
func NewAggregator(store Store, hierarchy *HierarchyResolver, log *observability.Logger, metrics *observability.Metrics) *Aggregator {
	if log == nil {
		log = observability.NewLogger(observability.ParseLevel("info"), nil)
	}
	return &Aggregator{store: store, hierarchy: hierarchy, log: log, metrics: metrics}
}

// Aggregate produces the subject's full resolved permission set:
// deduplicated structured permission records plus the flattened
// "resource_type:action" scope strings. Permissions are additive; there
// is no deny kind, so aggregation is a pure union. Permissions scoped to
// a different tenant than the subject are skipped; global permissions
// (empty tenant) always apply.
func (a *Aggregator) Aggregate(ctx context.Context, subject *Subject, seed []string) (*ResolvedPermissions, error) {
	closure, _, err := a.hierarchy.Expand(ctx, seed)
	if err != nil {
		return nil, err
	}

	roleIDs := make([]string, 0, len(closure))
	for roleID := range closure {
		roleIDs = append(roleIDs, roleID)
	}
	sort.Strings(roleIDs)

	permsByID := make(map[string]Permission)
	for _, roleID := range roleIDs {
		perms, err := a.store.RolePermissions(ctx, roleID)
		if err != nil {
			return nil, &DataAccessError{Op: "load role permissions", Err: err}
		}
		for _, perm := range perms {
			if perm.TenantID != "" && perm.TenantID != subject.TenantID {
				a.log.With(
					"subject_id", subject.ID,
					"permission_id", perm.ID,
					"permission_tenant", perm.TenantID,
				).Warn("skipping cross-tenant permission")
				a.metrics.RecordAnomaly(string(AnomalyTenantMismatch))
				continue
			}
			permsByID[perm.ID] = perm
		}
	}

	scopeSet := make(map[string]struct{})
	permissions := make([]Permission, 0, len(permsByID))
	for _, perm := range permsByID {
		permissions = append(permissions, perm)
		for _, action := range perm.Actions {
			scopeSet[ScopeFor(perm.ResourceType, action)] = struct{}{}
		}
	}
	sort.Slice(permissions, func(i, j int) bool { return permissions[i].ID < permissions[j].ID })

	return &ResolvedPermissions{
		SubjectID:   subject.ID,
		TenantID:    subject.TenantID,
		Scopes:      sortedScopes(scopeSet),
		Permissions: permissions,
		Roles:       closure,
		ResolvedAt:  time.Now(),
	}, nil
}
