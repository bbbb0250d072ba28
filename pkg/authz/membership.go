package authz

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/halcyonsec/aegis/pkg/observability"
)

// MembershipResolver computes a subject's seed role set: directly
// assigned, currently effective roles plus roles inherited from the
// subject's groups.
type MembershipResolver struct {
	store Store

	// inheritGroups extends group-derived roles up the group parent
	// chain. Disabled by default; see AEGIS_GROUP_INHERITANCE.
	inheritGroups bool

	log     *observability.Logger
	metrics *observability.Metrics
}

// NewMembershipResolver creates a membership resolver.
func NewMembershipResolver(store Store, inheritGroups bool, log *observability.Logger, metrics *observability.Metrics) *MembershipResolver {
	if log == nil {
		log = observability.NewLogger(observability.ParseLevel("info"), nil)
	}
	return &MembershipResolver{store: store, inheritGroups: inheritGroups, log: log, metrics: metrics}
}

// SeedRoles returns the deduplicated union of the subject's direct role
// assignments and the roles of its groups, in deterministic order.
// Assignments that are inactive, expired, or cross-tenant are skipped;
// cross-tenant records additionally count as tenant-mismatch anomalies.
func (m *MembershipResolver) SeedRoles(ctx context.Context, subject *Subject) ([]string, error) {
	now := time.Now()
	seen := make(map[string]struct{})

	grants, err := m.store.DirectGrants(ctx, subject.ID)
	if err != nil {
		return nil, &DataAccessError{Op: "load direct grants", Err: err}
	}
	for _, grant := range grants {
		if !grant.EffectiveAt(now) {
			continue
		}
		if grant.RoleTenantID != subject.TenantID {
			m.log.With(
				"subject_id", subject.ID,
				"role_id", grant.RoleID,
				"subject_tenant", subject.TenantID,
				"role_tenant", grant.RoleTenantID,
			).Warn("skipping cross-tenant role assignment")
			m.metrics.RecordAnomaly(string(AnomalyTenantMismatch))
			continue
		}
		seen[grant.RoleID] = struct{}{}
	}

	groups, err := m.groupsFor(ctx, subject)
	if err != nil {
		return nil, err
	}
	for _, group := range groups {
		roleIDs, err := m.store.GroupRoles(ctx, group.ID)
		if err != nil {
			return nil, &DataAccessError{Op: "load group roles", Err: err}
		}
		for _, roleID := range roleIDs {
			seen[roleID] = struct{}{}
		}
	}

	seed := make([]string, 0, len(seen))
	for roleID := range seen {
		seed = append(seed, roleID)
	}
	sort.Strings(seed)
	return seed, nil
}

// groupsFor returns the subject's active same-tenant groups, optionally
// extended with their ancestor groups when group inheritance is enabled.
func (m *MembershipResolver) groupsFor(ctx context.Context, subject *Subject) ([]Group, error) {
	direct, err := m.store.GroupsOf(ctx, subject.ID)
	if err != nil {
		return nil, &DataAccessError{Op: "load subject groups", Err: err}
	}

	var groups []Group
	visited := make(map[string]struct{})
	for _, group := range direct {
		if !group.Active {
			continue
		}
		if group.TenantID != subject.TenantID {
			m.log.With(
				"subject_id", subject.ID,
				"group_id", group.ID,
			).Warn("skipping cross-tenant group membership")
			m.metrics.RecordAnomaly(string(AnomalyTenantMismatch))
			continue
		}
		if _, ok := visited[group.ID]; ok {
			continue
		}
		visited[group.ID] = struct{}{}
		groups = append(groups, group)

		if !m.inheritGroups {
			continue
		}
		parent := group.ParentGroupID
		for parent != nil {
			if _, ok := visited[*parent]; ok {
				break
			}
			visited[*parent] = struct{}{}
			ancestor, err := m.store.Group(ctx, *parent)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					break
				}
				return nil, &DataAccessError{Op: "load parent group", Err: err}
			}
			if ancestor.Active && ancestor.TenantID == subject.TenantID {
				groups = append(groups, *ancestor)
			}
			parent = ancestor.ParentGroupID
		}
	}

	return groups, nil
}
