package authz

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// SQLStore implements Store on database/sql. It issues read-only queries
// against the access-control read model owned by the administrative CRUD
// layer; the placeholder syntax targets Postgres (lib/pq) and is also
// accepted by SQLite in tests.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates a SQL-backed store.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Subject loads a subject with its classification and attribute map.
func (s *SQLStore) Subject(ctx context.Context, subjectID string) (*Subject, error) {
	query := `
		SELECT id, tenant_id, classification, attributes, is_active
		FROM subjects
		WHERE id = $1
	`

	var subject Subject
	var attributesJSON sql.NullString
	err := s.db.QueryRowContext(ctx, query, subjectID).Scan(
		&subject.ID,
		&subject.TenantID,
		&subject.Classification,
		&attributesJSON,
		&subject.Active,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("subject %s: %w", subjectID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subject: %w", err)
	}

	if attributesJSON.Valid && attributesJSON.String != "" {
		if err := json.Unmarshal([]byte(attributesJSON.String), &subject.Attributes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal subject attributes: %w", err)
		}
	}
	return &subject, nil
}

// DirectGrants returns the subject's raw direct role assignments joined
// with the role's tenant, so the membership resolver can detect
// cross-tenant corruption.
func (s *SQLStore) DirectGrants(ctx context.Context, subjectID string) ([]RoleGrant, error) {
	query := `
		SELECT sr.subject_id, sr.role_id, r.tenant_id, sr.is_active, sr.granted_by, sr.granted_at, sr.expires_at
		FROM subject_roles sr
		JOIN roles r ON r.id = sr.role_id
		WHERE sr.subject_id = $1
		ORDER BY sr.role_id
	`

	rows, err := s.db.QueryContext(ctx, query, subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to get direct grants: %w", err)
	}
	defer rows.Close()

	var grants []RoleGrant
	for rows.Next() {
		var grant RoleGrant
		var grantedBy sql.NullString
		var expiresAt sql.NullTime
		err := rows.Scan(
			&grant.SubjectID,
			&grant.RoleID,
			&grant.RoleTenantID,
			&grant.Active,
			&grantedBy,
			&grant.GrantedAt,
			&expiresAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan grant: %w", err)
		}
		if grantedBy.Valid {
			by := grantedBy.String
			grant.GrantedBy = &by
		}
		if expiresAt.Valid {
			at := expiresAt.Time
			grant.ExpiresAt = &at
		}
		grants = append(grants, grant)
	}
	return grants, rows.Err()
}

// GroupsOf returns the groups the subject directly belongs to.
func (s *SQLStore) GroupsOf(ctx context.Context, subjectID string) ([]Group, error) {
	query := `
		SELECT g.id, g.tenant_id, g.name, g.parent_group_id, g.is_active
		FROM groups g
		JOIN subject_groups sg ON sg.group_id = g.id
		WHERE sg.subject_id = $1
		ORDER BY g.id
	`

	rows, err := s.db.QueryContext(ctx, query, subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to get subject groups: %w", err)
	}
	defer rows.Close()

	var groups []Group
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, *group)
	}
	return groups, rows.Err()
}

// Group loads a single group by ID.
func (s *SQLStore) Group(ctx context.Context, groupID string) (*Group, error) {
	query := `
		SELECT id, tenant_id, name, parent_group_id, is_active
		FROM groups
		WHERE id = $1
	`
	row := s.db.QueryRowContext(ctx, query, groupID)
	group, err := scanGroup(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("group %s: %w", groupID, ErrNotFound)
	}
	return group, err
}

// GroupRoles returns the role IDs assigned to a group.
func (s *SQLStore) GroupRoles(ctx context.Context, groupID string) ([]string, error) {
	query := `
		SELECT role_id
		FROM group_roles
		WHERE group_id = $1
		ORDER BY role_id
	`

	rows, err := s.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to get group roles: %w", err)
	}
	defer rows.Close()

	var roleIDs []string
	for rows.Next() {
		var roleID string
		if err := rows.Scan(&roleID); err != nil {
			return nil, fmt.Errorf("failed to scan group role: %w", err)
		}
		roleIDs = append(roleIDs, roleID)
	}
	return roleIDs, rows.Err()
}

// Role loads a single role by ID.
func (s *SQLStore) Role(ctx context.Context, roleID string) (*Role, error) {
	query := `
		SELECT id, tenant_id, name, parent_role_id, priority, is_assignable, role_type, is_active
		FROM roles
		WHERE id = $1
	`

	var role Role
	var parentRoleID sql.NullString
	err := s.db.QueryRowContext(ctx, query, roleID).Scan(
		&role.ID,
		&role.TenantID,
		&role.Name,
		&parentRoleID,
		&role.Priority,
		&role.Assignable,
		&role.Type,
		&role.Active,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("role %s: %w", roleID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	if parentRoleID.Valid {
		parent := parentRoleID.String
		role.ParentRoleID = &parent
	}
	return &role, nil
}

// RolePermissions returns the permissions attached to a role. The
// matcher, action set, conditions, and field grants are stored as JSON
// alongside the scalar columns.
func (s *SQLStore) RolePermissions(ctx context.Context, roleID string) ([]Permission, error) {
	query := `
		SELECT p.id, p.tenant_id, p.resource_type, p.resource_id, p.path_prefix, p.wildcard,
		       p.actions, p.conditions, p.field_grants
		FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		WHERE rp.role_id = $1
		ORDER BY p.id
	`

	rows, err := s.db.QueryContext(ctx, query, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get role permissions: %w", err)
	}
	defer rows.Close()

	var perms []Permission
	for rows.Next() {
		var perm Permission
		var tenantID, resourceID, pathPrefix sql.NullString
		var actionsJSON string
		var conditionsJSON, fieldGrantsJSON sql.NullString

		err := rows.Scan(
			&perm.ID,
			&tenantID,
			&perm.ResourceType,
			&resourceID,
			&pathPrefix,
			&perm.Matcher.Wildcard,
			&actionsJSON,
			&conditionsJSON,
			&fieldGrantsJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}

		perm.TenantID = tenantID.String
		perm.Matcher.ResourceID = resourceID.String
		perm.Matcher.PathPrefix = pathPrefix.String

		if err := json.Unmarshal([]byte(actionsJSON), &perm.Actions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal permission actions: %w", err)
		}
		if conditionsJSON.Valid && conditionsJSON.String != "" {
			if err := json.Unmarshal([]byte(conditionsJSON.String), &perm.Conditions); err != nil {
				return nil, fmt.Errorf("failed to unmarshal permission conditions: %w", err)
			}
		}
		if fieldGrantsJSON.Valid && fieldGrantsJSON.String != "" {
			if err := json.Unmarshal([]byte(fieldGrantsJSON.String), &perm.FieldGrants); err != nil {
				return nil, fmt.Errorf("failed to unmarshal permission field grants: %w", err)
			}
		}
		perms = append(perms, perm)
	}
	return perms, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanGroup(scanner rowScanner) (*Group, error) {
	var group Group
	var parentGroupID sql.NullString
	err := scanner.Scan(
		&group.ID,
		&group.TenantID,
		&group.Name,
		&parentGroupID,
		&group.Active,
	)
	if err != nil {
		return nil, err
	}
	if parentGroupID.Valid {
		parent := parentGroupID.String
		group.ParentGroupID = &parent
	}
	return &group, nil
}
