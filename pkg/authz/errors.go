package authz

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by stores when a record does not exist.
var ErrNotFound = errors.New("not found")

// DataAccessError wraps a failure of the inbound data-access interface.
// It is never retried; the fallback controller substitutes a static
// decision instead.
type DataAccessError struct {
	Op  string
	Err error
}

func (e *DataAccessError) Error() string {
	return fmt.Sprintf("data access failed during %s: %v", e.Op, e.Err)
}

func (e *DataAccessError) Unwrap() error { return e.Err }

// AnomalyKind classifies structural anomalies observed during resolution.
type AnomalyKind string

const (
	// AnomalyRoleCycle marks a repeated role during hierarchy ascent. The
	// walk truncates at the repetition and keeps the ancestors collected
	// so far.
	AnomalyRoleCycle AnomalyKind = "role_cycle"

	// AnomalyTenantMismatch marks an assignment whose subject and role
	// tenants differ. The record is skipped, not fatal.
	AnomalyTenantMismatch AnomalyKind = "tenant_mismatch"
)

// Anomaly is a non-fatal data irregularity surfaced only through logs and
// metrics, never as a caller-visible error.
type Anomaly struct {
	Kind      AnomalyKind
	RoleID    string
	SubjectID string
	Detail    string
}

func (a Anomaly) String() string {
	return fmt.Sprintf("%s: role=%s subject=%s %s", a.Kind, a.RoleID, a.SubjectID, a.Detail)
}
