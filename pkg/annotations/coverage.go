// roles/pkg/annotations/coverage.go

package annotations

import (
	"zodiac/roles/pkg/conditions"
	"zodiac/roles/pkg/permissions"
)

// sameEntry reports whether a and b project onto the same target or
// function entry with the same execution options.
func sameEntry(a, b permissions.Permission) bool {
	if a.TargetAddress != b.TargetAddress || a.ExecutionOptions() != b.ExecutionOptions() {
		return false
	}
	if a.Selector == nil || b.Selector == nil {
		return a.Selector == nil && b.Selector == nil
	}
	return *a.Selector == *b.Selector
}

// contains reports whether every call allowed by inner is allowed by outer.
func contains(outer, inner conditions.Condition) (bool, error) {
	if _, err := conditions.Normalize(inner); err != nil {
		return false, err
	}
	equal, err := conditions.Equal(conditions.OrOf(outer.Clone(), inner.Clone()), outer)
	if err != nil {
		// Branches of incompatible shape cannot contain each other.
		return false, nil
	}
	return equal, nil
}

func grants(q, p permissions.Permission) (bool, error) {
	if !sameEntry(q, p) {
		return false, nil
	}
	if q.Condition == nil {
		return true, nil
	}
	if p.Condition == nil {
		return false, nil
	}
	return contains(*q.Condition, *p.Condition)
}

func allGranted(preset, granted []permissions.Permission) (bool, error) {
	for _, p := range preset {
		found := false
		for _, q := range granted {
			ok, err := grants(q, p)
			if err != nil {
				return false, err
			}
			if ok {
				found = true
				break
			}
		}
		if !found {
			return false, nil
		}
	}
	return true, nil
}

func branches(c conditions.Condition) ([]conditions.Condition, error) {
	normalized, err := conditions.Normalize(c)
	if err != nil {
		return nil, err
	}
	if normalized.IsLogical() && normalized.Operator == conditions.Or {
		return normalized.Children, nil
	}
	return []conditions.Condition{normalized}, nil
}

// subtract removes from granted what the kept presets account for. A scoped
// permission loses the Or branches a preset contains.
func subtract(granted, kept []permissions.Permission) ([]permissions.Permission, error) {
	var out []permissions.Permission
	for _, q := range granted {
		var matching []permissions.Permission
		for _, p := range kept {
			if sameEntry(q, p) {
				matching = append(matching, p)
			}
		}
		if len(matching) == 0 {
			out = append(out, q)
			continue
		}

		if q.Condition == nil {
			wildcarded := false
			for _, p := range matching {
				if p.Condition == nil {
					wildcarded = true
				}
			}
			if !wildcarded {
				out = append(out, q)
			}
			continue
		}

		all, err := branches(*q.Condition)
		if err != nil {
			return nil, err
		}
		var rest []conditions.Condition
		for _, b := range all {
			covered := false
			for _, p := range matching {
				if p.Condition == nil {
					covered = true
					break
				}
				ok, err := contains(*p.Condition, b)
				if err != nil {
					return nil, err
				}
				if ok {
					covered = true
					break
				}
			}
			if !covered {
				rest = append(rest, b)
			}
		}

		switch {
		case len(rest) == len(all):
			out = append(out, q)
		case len(rest) == 1:
			q.Condition = permissions.Scoped(rest[0])
			out = append(out, q)
		case len(rest) > 1:
			q.Condition = permissions.Scoped(conditions.OrOf(rest...))
			out = append(out, q)
		}
	}
	return out, nil
}
