// roles/pkg/permissions/equal.go

package permissions

import "zodiac/roles/pkg/conditions"

// PermissionsEqual reports whether two permission lists grant the same
// calls. Both are projected, so authoring order, duplicates and equivalent
// condition forms do not matter.
func PermissionsEqual(a, b []Permission) (bool, error) {
	ra, err := ProcessPermissions(a)
	if err != nil {
		return false, err
	}
	rb, err := ProcessPermissions(b)
	if err != nil {
		return false, err
	}
	return TargetsEqual(ra.Targets, rb.Targets), nil
}

// TargetsEqual compares projected targets. Both sides must come out of
// ProcessPermissions so that their conditions are already normalized.
func TargetsEqual(a, b []Target) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !targetEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

func targetEqual(a, b Target) bool {
	if a.Address != b.Address || a.Clearance != b.Clearance {
		return false
	}
	if a.Clearance == ClearanceTarget && a.ExecutionOptions != b.ExecutionOptions {
		return false
	}
	if a.Clearance != ClearanceFunction {
		return true
	}
	if len(a.Functions) != len(b.Functions) {
		return false
	}
	for i := range a.Functions {
		if !FunctionEqual(a.Functions[i], b.Functions[i]) {
			return false
		}
	}
	return true
}

// FunctionEqual compares two function entries by normalized condition id.
func FunctionEqual(a, b Function) bool {
	if a.Selector != b.Selector || a.ExecutionOptions != b.ExecutionOptions || a.Wildcarded != b.Wildcarded {
		return false
	}
	if a.Wildcarded {
		return true
	}
	if a.Condition == nil || b.Condition == nil {
		return a.Condition == nil && b.Condition == nil
	}
	return conditions.ID(*a.Condition) == conditions.ID(*b.Condition)
}
