package authz

import "context"

// Store is the narrow read interface the engine consumes. The
// administrative CRUD layer owns all writes; the engine only reads.
// Implementations must be safe for unbounded concurrent readers.
type Store interface {
	// Subject loads a subject by ID, with its classification and
	// attribute map.
	Subject(ctx context.Context, subjectID string) (*Subject, error)

	// DirectGrants returns the raw direct role assignments for a subject,
	// including inactive, expired, and cross-tenant records. The
	// membership resolver applies the effectiveness invariants so that
	// corrupt records are observable and skippable rather than silently
	// filtered in SQL.
	DirectGrants(ctx context.Context, subjectID string) ([]RoleGrant, error)

	// GroupsOf returns the groups a subject directly belongs to.
	GroupsOf(ctx context.Context, subjectID string) ([]Group, error)

	// Group loads a single group by ID. Used only when group-hierarchy
	// role inheritance is enabled.
	Group(ctx context.Context, groupID string) (*Group, error)

	// GroupRoles returns the role IDs assigned to a group.
	GroupRoles(ctx context.Context, groupID string) ([]string, error)

	// Role loads a single role by ID. Returns ErrNotFound for dangling
	// references.
	Role(ctx context.Context, roleID string) (*Role, error)

	// RolePermissions returns the permissions attached to a role.
	RolePermissions(ctx context.Context, roleID string) ([]Permission, error)
}
