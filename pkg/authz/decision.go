package authz

import (
	"sort"
	"time"
)

// Evaluate answers a single authorization question against a resolved
// permission set. A permission applies when its resource type matches,
// its matcher covers the resource, its action set contains the requested
// action, and every condition predicate holds against the attribute map.
// Permissions combine with OR: the first one that applies wins. A
// permission with no conditions ignores the attribute map entirely.
func Evaluate(rp *ResolvedPermissions, res Resource, action Action, attrs map[string]string) Decision {
	now := time.Now()
	if rp == nil {
		return Decision{Allowed: false, Reason: "no permissions resolved", CheckedAt: now}
	}

	for _, perm := range rp.Permissions {
		if perm.ResourceType != res.Type {
			continue
		}
		if !perm.Matcher.Matches(res) {
			continue
		}
		if !perm.AllowsAction(action) {
			continue
		}
		if !conditionsHold(perm.Conditions, attrs) {
			continue
		}
		return Decision{Allowed: true, PermissionID: perm.ID, CheckedAt: now}
	}

	return Decision{Allowed: false, Reason: "no matching permission", CheckedAt: now}
}

// FieldGrants unions the field-level grants of every permission whose
// resource type and matcher cover the resource. Action and condition
// filters are deliberately ignored: field grants are scoped independently,
// mirroring how the aggregator flattens coarse scopes.
func FieldGrants(rp *ResolvedPermissions, res Resource) map[string][]Action {
	fields := make(map[string]map[Action]struct{})
	if rp == nil {
		return map[string][]Action{}
	}

	for _, perm := range rp.Permissions {
		if perm.ResourceType != res.Type {
			continue
		}
		if !perm.Matcher.Matches(res) {
			continue
		}
		for field, actions := range perm.FieldGrants {
			set, ok := fields[field]
			if !ok {
				set = make(map[Action]struct{})
				fields[field] = set
			}
			for _, action := range actions {
				set[action] = struct{}{}
			}
		}
	}

	result := make(map[string][]Action, len(fields))
	for field, set := range fields {
		actions := make([]Action, 0, len(set))
		for action := range set {
			actions = append(actions, action)
		}
		sort.Slice(actions, func(i, j int) bool { return actions[i] < actions[j] })
		result[field] = actions
	}
	return result
}

func conditionsHold(conditions []Condition, attrs map[string]string) bool {
	for _, condition := range conditions {
		if !condition.Holds(attrs) {
			return false
		}
	}
	return true
}
