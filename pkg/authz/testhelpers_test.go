package authz

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/halcyonsec/aegis/pkg/observability"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ParseLevel("error"), io.Discard)
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

// fakeStore is an in-memory Store that counts calls per operation and can
// inject failures, so tests can assert both behavior and data-access load.
type fakeStore struct {
	mu         sync.Mutex
	subjects   map[string]*Subject
	grants     map[string][]RoleGrant
	groupsOf   map[string][]Group
	groups     map[string]*Group
	groupRoles map[string][]string
	roles      map[string]*Role
	rolePerms  map[string][]Permission

	calls   map[string]int
	failOp  string
	failErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		subjects:   make(map[string]*Subject),
		grants:     make(map[string][]RoleGrant),
		groupsOf:   make(map[string][]Group),
		groups:     make(map[string]*Group),
		groupRoles: make(map[string][]string),
		roles:      make(map[string]*Role),
		rolePerms:  make(map[string][]Permission),
		calls:      make(map[string]int),
	}
}

func (s *fakeStore) record(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[op]++
	if s.failOp == op {
		return s.failErr
	}
	return nil
}

func (s *fakeStore) failOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOp = op
	s.failErr = err
}

func (s *fakeStore) callCount(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// resolutionCalls sums the store operations driven by the resolution
// pipeline. Subject lookups are excluded: identity loading sits outside
// the cached pipeline and runs on every request.
func (s *fakeStore) resolutionCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, op := range []string{"DirectGrants", "GroupsOf", "Group", "GroupRoles", "Role", "RolePermissions"} {
		total += s.calls[op]
	}
	return total
}

func (s *fakeStore) Subject(ctx context.Context, subjectID string) (*Subject, error) {
	if err := s.record("Subject"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	subject, ok := s.subjects[subjectID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *subject
	return &copied, nil
}

func (s *fakeStore) DirectGrants(ctx context.Context, subjectID string) ([]RoleGrant, error) {
	if err := s.record("DirectGrants"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.grants[subjectID], nil
}

func (s *fakeStore) GroupsOf(ctx context.Context, subjectID string) ([]Group, error) {
	if err := s.record("GroupsOf"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.groupsOf[subjectID], nil
}

func (s *fakeStore) Group(ctx context.Context, groupID string) (*Group, error) {
	if err := s.record("Group"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	group, ok := s.groups[groupID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *group
	return &copied, nil
}

func (s *fakeStore) GroupRoles(ctx context.Context, groupID string) ([]string, error) {
	if err := s.record("GroupRoles"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.groupRoles[groupID], nil
}

func (s *fakeStore) Role(ctx context.Context, roleID string) (*Role, error) {
	if err := s.record("Role"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	role, ok := s.roles[roleID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *role
	return &copied, nil
}

func (s *fakeStore) RolePermissions(ctx context.Context, roleID string) ([]Permission, error) {
	if err := s.record("RolePermissions"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rolePerms[roleID], nil
}

// addRole registers an active custom role, returning it for mutation.
func (s *fakeStore) addRole(id, tenantID string, parent *string) *Role {
	role := &Role{
		ID:           id,
		TenantID:     tenantID,
		Name:         id,
		ParentRoleID: parent,
		Assignable:   true,
		Type:         RoleTypeCustom,
		Active:       true,
	}
	s.roles[id] = role
	return role
}

// addSubject registers an active standard subject.
func (s *fakeStore) addSubject(id, tenantID string, attrs map[string]string) *Subject {
	subject := &Subject{
		ID:             id,
		TenantID:       tenantID,
		Classification: ClassificationStandard,
		Attributes:     attrs,
		Active:         true,
	}
	s.subjects[id] = subject
	return subject
}

// grant adds an active, unexpired direct role assignment.
func (s *fakeStore) grant(subjectID, roleID, roleTenantID string) {
	s.grants[subjectID] = append(s.grants[subjectID], RoleGrant{
		SubjectID:    subjectID,
		RoleID:       roleID,
		RoleTenantID: roleTenantID,
		Active:       true,
		GrantedAt:    time.Now(),
	})
}

// mapCache is a plain always-fresh ResultCache for tests.
type mapCache struct {
	mu      sync.Mutex
	entries map[string]*ResolvedPermissions
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string]*ResolvedPermissions)}
}

func (c *mapCache) GetOrResolve(ctx context.Context, tenantID, subjectID string, resolve ResolveFunc) (*ResolvedPermissions, error) {
	key := tenantID + "/" + subjectID
	c.mu.Lock()
	if cached, ok := c.entries[key]; ok {
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	resolved, err := resolve(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.entries[key] = resolved
	c.mu.Unlock()
	return resolved, nil
}

func (c *mapCache) Invalidate(tenantID, subjectID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, tenantID+"/"+subjectID)
}

func (c *mapCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*ResolvedPermissions)
}

// staticPolicy is a fixed FallbackPolicy for tests.
type staticPolicy map[string][]string

func (p staticPolicy) ScopesFor(classification string) []string {
	return p[classification]
}
