package authz

import (
	"context"
	"errors"
	"time"

	"github.com/halcyonsec/aegis/pkg/observability"
)

// ResolveFunc computes a subject's resolved permission set on cache miss.
type ResolveFunc func(ctx context.Context) (*ResolvedPermissions, error)

// ResultCache memoizes resolved permission sets keyed by (tenant,
// subject). Implementations must support concurrent callers and must
// collapse concurrent misses for the same key into a single resolution.
// The cache is injected, never a package-level singleton, so tests can
// substitute a counting fake.
type ResultCache interface {
	GetOrResolve(ctx context.Context, tenantID, subjectID string, resolve ResolveFunc) (*ResolvedPermissions, error)
	Invalidate(tenantID, subjectID string)
	Purge()
}

// EngineConfig carries the engine's behavior flags.
type EngineConfig struct {
	// GroupInheritance extends group-derived roles up the group parent
	// chain.
	GroupInheritance bool
}

// Engine is the dynamic authorization resolution pipeline: membership,
// hierarchy expansion, and aggregation behind a read-through result
// cache. The engine holds no mutable state of its own; all read paths
// are safe for unbounded concurrent callers.
type Engine struct {
	store      Store
	membership *MembershipResolver
	aggregator *Aggregator
	cache      ResultCache
	log        *observability.Logger
	metrics    *observability.Metrics
}

// NewEngine wires the resolution pipeline around a store and a result cache.
func NewEngine(store Store, cache ResultCache, cfg EngineConfig, log *observability.Logger, metrics *observability.Metrics) *Engine {
	if log == nil {
		log = observability.NewLogger(observability.ParseLevel("info"), nil)
	}
	hierarchy := NewHierarchyResolver(store, log, metrics)
	return &Engine{
		store:      store,
		membership: NewMembershipResolver(store, cfg.GroupInheritance, log, metrics),
		aggregator: NewAggregator(store, hierarchy, log, metrics),
		cache:      cache,
		log:        log,
		metrics:    metrics,
	}
}

// Resolve returns the subject's aggregated permission set, from cache
// when fresh. An unknown or inactive subject resolves to an empty set
// rather than an error, so callers observe deny instead of failure.
func (e *Engine) Resolve(ctx context.Context, subjectID string) (*ResolvedPermissions, error) {
	subject, err := e.loadSubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	return e.resolveFor(ctx, subject)
}

func (e *Engine) loadSubject(ctx context.Context, subjectID string) (*Subject, error) {
	subject, err := e.store.Subject(ctx, subjectID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return &Subject{ID: subjectID, Classification: ClassificationStandard}, nil
		}
		return nil, &DataAccessError{Op: "load subject", Err: err}
	}
	return subject, nil
}

func (e *Engine) resolveFor(ctx context.Context, subject *Subject) (*ResolvedPermissions, error) {
	if !subject.Active {
		return &ResolvedPermissions{
			SubjectID:  subject.ID,
			TenantID:   subject.TenantID,
			Scopes:     []string{},
			Roles:      map[string]Role{},
			ResolvedAt: time.Now(),
		}, nil
	}

	return e.cache.GetOrResolve(ctx, subject.TenantID, subject.ID, func(ctx context.Context) (*ResolvedPermissions, error) {
		start := time.Now()
		seed, err := e.membership.SeedRoles(ctx, subject)
		if err != nil {
			e.metrics.ObserveResolution("error", time.Since(start))
			return nil, err
		}
		resolved, err := e.aggregator.Aggregate(ctx, subject, seed)
		if err != nil {
			e.metrics.ObserveResolution("error", time.Since(start))
			return nil, err
		}
		e.metrics.ObserveResolution("ok", time.Since(start))
		e.log.With(
			"subject_id", subject.ID,
			"tenant_id", subject.TenantID,
			"roles", len(resolved.Roles),
			"permissions", len(resolved.Permissions),
		).Debug("resolved subject permissions")
		return resolved, nil
	})
}

// Scopes returns the subject's flattened scope strings.
func (e *Engine) Scopes(ctx context.Context, subjectID string) ([]string, error) {
	resolved, err := e.Resolve(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	return resolved.Scopes, nil
}

// Check answers a single authorization question. The request context is
// layered over the subject's stored attributes before condition
// evaluation; request values win.
func (e *Engine) Check(ctx context.Context, subjectID string, res Resource, action Action, requestCtx map[string]string) (Decision, error) {
	subject, err := e.loadSubject(ctx, subjectID)
	if err != nil {
		return Decision{}, err
	}
	resolved, err := e.resolveFor(ctx, subject)
	if err != nil {
		return Decision{}, err
	}
	decision := Evaluate(resolved, res, action, MergeAttributes(subject.Attributes, requestCtx))
	e.metrics.RecordDecision(decision.Allowed, "dynamic")
	return decision, nil
}

// FieldPermissions returns the union of field grants applying to the
// resource for this subject.
func (e *Engine) FieldPermissions(ctx context.Context, subjectID string, res Resource) (map[string][]Action, error) {
	resolved, err := e.Resolve(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	return FieldGrants(resolved, res), nil
}

// Invalidate drops the subject's cached resolution. Best effort: when the
// subject's tenant cannot be determined the call is logged and skipped;
// TTL expiry still bounds staleness.
func (e *Engine) Invalidate(ctx context.Context, subjectID string) {
	subject, err := e.loadSubject(ctx, subjectID)
	if err != nil {
		e.log.WithError(err).With("subject_id", subjectID).Warn("cache invalidation skipped, subject lookup failed")
		return
	}
	e.cache.Invalidate(subject.TenantID, subjectID)
	e.metrics.RecordInvalidation("subject")
}

// InvalidateForRole drops cached resolutions for the affected subjects
// after a role mutation. The caller supplies the affected subject list;
// the cache never walks the membership graph itself.
func (e *Engine) InvalidateForRole(ctx context.Context, roleID string, affectedSubjectIDs []string) {
	for _, subjectID := range affectedSubjectIDs {
		e.Invalidate(ctx, subjectID)
	}
	e.metrics.RecordInvalidation("role")
	e.log.With("role_id", roleID, "subjects", len(affectedSubjectIDs)).Info("invalidated cached resolutions for role change")
}

// InvalidateForGroup drops cached resolutions for the affected subjects
// after a group mutation.
func (e *Engine) InvalidateForGroup(ctx context.Context, groupID string, affectedSubjectIDs []string) {
	for _, subjectID := range affectedSubjectIDs {
		e.Invalidate(ctx, subjectID)
	}
	e.metrics.RecordInvalidation("group")
	e.log.With("group_id", groupID, "subjects", len(affectedSubjectIDs)).Info("invalidated cached resolutions for group change")
}
