package authz

import (
	"context"
	"errors"
	"time"

	"github.com/halcyonsec/aegis/pkg/observability"
)

// FallbackPolicy supplies the static, classification-keyed scope sets
// served when dynamic resolution fails or is disabled.
type FallbackPolicy interface {
	ScopesFor(classification string) []string
}

// Controller wraps the engine so that the authorization surface never
// fails its caller: any internal error is logged and replaced with a
// conservative decision from the static fallback policy. Fallback
// results are never cached as dynamic results, so subsequent calls retry
// dynamic resolution.
type Controller struct {
	engine  *Engine
	store   Store
	policy  FallbackPolicy
	dynamic bool
	log     *observability.Logger
	metrics *observability.Metrics
}

// NewController creates the fallback controller. When dynamicEnabled is
// false every request is served from the static policy.
func NewController(engine *Engine, store Store, policy FallbackPolicy, dynamicEnabled bool, log *observability.Logger, metrics *observability.Metrics) *Controller {
	if log == nil {
		log = observability.NewLogger(observability.ParseLevel("info"), nil)
	}
	return &Controller{
		engine:  engine,
		store:   store,
		policy:  policy,
		dynamic: dynamicEnabled,
		log:     log,
		metrics: metrics,
	}
}

// Scopes returns the subject's scope strings, degrading to the static
// policy on any internal failure.
func (c *Controller) Scopes(ctx context.Context, subjectID string) []string {
	if c.dynamic {
		scopes, err := c.engine.Scopes(ctx, subjectID)
		if err == nil {
			return scopes
		}
		c.degrade(err, subjectID, "scopes")
	}
	return c.staticScopes(ctx, subjectID)
}

// Check answers an authorization question, degrading to a coarse
// scope-level decision from the static policy on any internal failure.
func (c *Controller) Check(ctx context.Context, subjectID string, res Resource, action Action, requestCtx map[string]string) Decision {
	if c.dynamic {
		decision, err := c.engine.Check(ctx, subjectID, res, action, requestCtx)
		if err == nil {
			return decision
		}
		c.degrade(err, subjectID, "check")
	}

	scopes := c.staticScopes(ctx, subjectID)
	allowed := ScopeAllows(scopes, res.Type, action)
	c.metrics.RecordDecision(allowed, "fallback")

	decision := Decision{Allowed: allowed, Fallback: true, CheckedAt: time.Now()}
	if allowed {
		decision.Reason = "granted by fallback policy"
	} else {
		decision.Reason = "no matching fallback scope"
	}
	return decision
}

// FieldPermissions returns field grants, or an empty map in degraded
// mode: the static policy carries no field-level grants, so the
// conservative answer is none.
func (c *Controller) FieldPermissions(ctx context.Context, subjectID string, res Resource) map[string][]Action {
	if c.dynamic {
		fields, err := c.engine.FieldPermissions(ctx, subjectID, res)
		if err == nil {
			return fields
		}
		c.degrade(err, subjectID, "field_permissions")
	}
	return map[string][]Action{}
}

func (c *Controller) degrade(err error, subjectID, op string) {
	c.metrics.RecordFallback()
	var dataErr *DataAccessError
	if errors.As(err, &dataErr) {
		c.log.WithError(err).With("subject_id", subjectID, "op", op).Error("dynamic resolution failed, serving fallback")
		return
	}
	c.log.WithError(err).With("subject_id", subjectID, "op", op).Error("unexpected resolution failure, serving fallback")
}

// staticScopes maps the subject's coarse classification to the static
// policy's scope set. If even the classification cannot be determined the
// most conservative classification is assumed.
func (c *Controller) staticScopes(ctx context.Context, subjectID string) []string {
	classification := ClassificationStandard
	if subject, err := c.store.Subject(ctx, subjectID); err == nil {
		classification = subject.Classification
	}
	return c.policy.ScopesFor(string(classification))
}
