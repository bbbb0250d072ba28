// Package authz implements multi-tenant authorization resolution: it
// computes a subject's effective permission set from role assignments,
// group memberships, and a role inheritance hierarchy, and answers
// allow/deny questions against it.
//
// # Overview
//
// Resolution is a read-side pipeline over an access-control data model
// owned elsewhere; this package never mutates roles or assignments.
// A full resolution runs in four stages:
//
//  1. Membership: collect the subject's direct role grants and the roles
//     attached to its groups, filtering expired, inactive, and
//     cross-tenant assignments (MembershipResolver)
//  2. Hierarchy: expand the seed roles through parent links into the
//     full ancestor closure, tolerating cycles and dangling references
//     (HierarchyResolver)
//  3. Aggregation: collect and deduplicate the permissions attached to
//     every role in the closure into a ResolvedPermissions snapshot
//     (Aggregator)
//  4. Decision: evaluate a concrete resource/action question against the
//     snapshot, including resource matchers, attribute conditions, and
//     field-level grants (Evaluate, FieldGrants)
//
// # Caching
//
// Resolved snapshots are memoized per (tenant, subject) behind the
// ResultCache interface with a TTL bound on staleness. Mutation paths
// call the Engine's Invalidate methods; a periodic flush bounds
// staleness after out-of-band database changes.
//
// # Degraded mode
//
// The Controller wraps the Engine so authorization never fails its
// caller: when resolution errors, the request is served from a static,
// classification-keyed fallback policy and the failure is surfaced
// through logs and metrics instead of the response. Fallback results
// are never cached, so recovery is immediate.
//
// # Tenancy
//
// Every role, group, and permission belongs to a tenant. Resolution
// never crosses tenant boundaries: a grant whose role lives in another
// tenant is skipped and reported as an anomaly rather than honored.
// Permissions with an empty tenant are global and apply in any tenant.
package authz
