package authz

import (
	"context"
	"errors"

	"github.com/halcyonsec/aegis/pkg/observability"
)

// HierarchyResolver expands a seed role set into its ancestor-inclusive
// closure under the parent relation.
type HierarchyResolver struct {
	store   Store
	log     *observability.Logger
	metrics *observability.Metrics
}

// NewHierarchyResolver creates a hierarchy resolver.
func NewHierarchyResolver(store Store, log *observability.Logger, metrics *observability.Metrics) *HierarchyResolver {
	if log == nil {
		log = observability.NewLogger(observability.ParseLevel("info"), nil)
	}
	return &HierarchyResolver{store: store, log: log, metrics: metrics}
}

// Expand returns every role in the seed set plus all of its ancestors,
// keyed by role ID. Inactive roles are excluded from the result but do
// not break the ancestor walk for roles above them. A role repeating on
// a single ascent path is a cycle: the walk truncates there, keeps what
// it has collected, and reports the cycle as a non-fatal anomaly.
func (r *HierarchyResolver) Expand(ctx context.Context, seed []string) (map[string]Role, []Anomaly, error) {
	closure := make(map[string]Role, len(seed))
	visited := make(map[string]struct{}, len(seed))
	var anomalies []Anomaly

	for _, seedID := range seed {
		path := make(map[string]struct{})
		current := seedID

		for current != "" {
			if _, onPath := path[current]; onPath {
				anomalies = append(anomalies, Anomaly{
					Kind:   AnomalyRoleCycle,
					RoleID: current,
					Detail: "role repeats on its own ancestor chain",
				})
				break
			}
			path[current] = struct{}{}

			// Already expanded via another seed; its ancestors are in the closure.
			if _, done := visited[current]; done {
				break
			}
			visited[current] = struct{}{}

			role, err := r.store.Role(ctx, current)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					r.log.With("role_id", current).Warn("dangling role reference during hierarchy ascent")
					break
				}
				return nil, anomalies, &DataAccessError{Op: "load role", Err: err}
			}

			if role.Active {
				closure[role.ID] = *role
			}
			if role.ParentRoleID == nil {
				break
			}
			current = *role.ParentRoleID
		}
	}

	for _, anomaly := range anomalies {
		r.log.With("role_id", anomaly.RoleID).Warn("role hierarchy cycle detected, truncating ascent")
		r.metrics.RecordAnomaly(string(anomaly.Kind))
	}

	return closure, anomalies, nil
}
