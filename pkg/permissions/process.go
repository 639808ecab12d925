// roles/pkg/permissions/process.go

package permissions

import (
	"bytes"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"zodiac/roles/pkg/conditions"
	"zodiac/roles/pkg/logging"
)

// Result holds the projected targets and the annotations collected from the
// permission sets they came from.
type Result struct {
	Targets     []Target     `json:"targets"`
	Annotations []Annotation `json:"annotations"`
}

type targetGroup struct {
	address    common.Address
	targetWide []Permission
	functions  map[Selector][]Permission
}

func annotate(err error, target common.Address, selector *Selector) error {
	fields := map[string]interface{}{"target": target.Hex()}
	if selector != nil {
		fields["selector"] = selector.String()
	}
	return logging.AddFields(err, fields)
}

// ProcessPermissions projects flat permissions into targets. Permissions for
// the same target and selector are merged: their execution options must
// agree, an unconditioned entry wildcards the function and conditions are
// otherwise combined with Or. The output is sorted by address, then by
// selector, and every condition is normalized.
func ProcessPermissions(perms []Permission) (Result, error) {
	logging.Logger.Debug().Int("permissions", len(perms)).Msg("Processing permissions")

	groups := make(map[common.Address]*targetGroup)
	for _, p := range perms {
		if p.Selector == nil && p.Condition != nil {
			err := logging.NewError(logging.ErrorTypeValidation, "target-wide permission cannot carry a condition", nil, map[string]interface{}{
				"target": p.TargetAddress.Hex(),
			})
			logging.LogError(logging.Logger, err)
			return Result{}, err
		}
		g, ok := groups[p.TargetAddress]
		if !ok {
			g = &targetGroup{address: p.TargetAddress, functions: make(map[Selector][]Permission)}
			groups[p.TargetAddress] = g
		}
		if p.Selector == nil {
			g.targetWide = append(g.targetWide, p)
			continue
		}
		g.functions[*p.Selector] = append(g.functions[*p.Selector], p)
	}

	addresses := make([]common.Address, 0, len(groups))
	for addr := range groups {
		addresses = append(addresses, addr)
	}
	sort.Slice(addresses, func(i, j int) bool {
		return bytes.Compare(addresses[i][:], addresses[j][:]) < 0
	})

	targets := make([]Target, 0, len(addresses))
	for _, addr := range addresses {
		target, err := projectTarget(groups[addr])
		if err != nil {
			logging.LogError(logging.Logger, err)
			return Result{}, err
		}
		targets = append(targets, target)
	}
	return Result{Targets: targets, Annotations: []Annotation{}}, nil
}

func projectTarget(g *targetGroup) (Target, error) {
	if len(g.targetWide) > 0 && len(g.functions) > 0 {
		return Target{}, logging.NewError(logging.ErrorTypeIntegrity, "target is allowed entirely and scoped by function at the same time", nil, map[string]interface{}{
			"target": g.address.Hex(),
		})
	}

	if len(g.targetWide) > 0 {
		opts, err := mergeExecutionOptions(g.targetWide)
		if err != nil {
			return Target{}, annotate(err, g.address, nil)
		}
		return Target{Address: g.address, Clearance: ClearanceTarget, ExecutionOptions: opts, Functions: []Function{}}, nil
	}

	selectors := make([]Selector, 0, len(g.functions))
	for sel := range g.functions {
		selectors = append(selectors, sel)
	}
	sort.Slice(selectors, func(i, j int) bool {
		return bytes.Compare(selectors[i][:], selectors[j][:]) < 0
	})

	target := Target{Address: g.address, Clearance: ClearanceFunction, Functions: make([]Function, 0, len(selectors))}
	for _, sel := range selectors {
		sel := sel
		fn, err := projectFunction(sel, g.functions[sel])
		if err != nil {
			return Target{}, annotate(err, g.address, &sel)
		}
		target.Functions = append(target.Functions, fn)
	}
	return target, nil
}

func mergeExecutionOptions(perms []Permission) (ExecutionOptions, error) {
	opts := perms[0].ExecutionOptions()
	for _, p := range perms[1:] {
		if p.ExecutionOptions() != opts {
			return 0, logging.NewError(logging.ErrorTypeValidation, "ambiguous execution options", nil, map[string]interface{}{
				"first":  opts.String(),
				"second": p.ExecutionOptions().String(),
			})
		}
	}
	return opts, nil
}

func projectFunction(sel Selector, perms []Permission) (Function, error) {
	opts, err := mergeExecutionOptions(perms)
	if err != nil {
		return Function{}, err
	}
	fn := Function{Selector: sel, ExecutionOptions: opts}

	var branches []conditions.Condition
	for _, p := range perms {
		if p.Condition == nil {
			fn.Wildcarded = true
			return fn, nil
		}
		branches = append(branches, *p.Condition)
	}

	combined := branches[0]
	if len(branches) > 1 {
		combined = conditions.OrOf(branches...)
	}
	normalized, err := conditions.Normalize(combined)
	if err != nil {
		return Function{}, err
	}
	if normalized.IsInert() {
		fn.Wildcarded = true
		return fn, nil
	}
	fn.Condition = &normalized
	return fn, nil
}

// ProcessPermissionSets projects the permissions of every set and collects
// their annotations, deduplicated by URI and sorted.
func ProcessPermissionSets(sets []PermissionSet) (Result, error) {
	var perms []Permission
	annotations := make(map[string]Annotation)
	for _, set := range sets {
		perms = append(perms, set.Permissions...)
		if set.Annotation != nil {
			if _, ok := annotations[set.Annotation.URI]; !ok {
				annotations[set.Annotation.URI] = *set.Annotation
			}
		}
	}

	result, err := ProcessPermissions(perms)
	if err != nil {
		return Result{}, err
	}

	uris := make([]string, 0, len(annotations))
	for uri := range annotations {
		uris = append(uris, uri)
	}
	sort.Strings(uris)
	for _, uri := range uris {
		result.Annotations = append(result.Annotations, annotations[uri])
	}
	return result, nil
}

// ReconstructPermissions expands targets back into flat permissions.
// Targets without clearance grant nothing and produce none.
func ReconstructPermissions(targets []Target) []Permission {
	var perms []Permission
	for _, t := range targets {
		switch t.Clearance {
		case ClearanceTarget:
			perms = append(perms, Permission{
				TargetAddress: t.Address,
				Send:          t.ExecutionOptions.Send(),
				DelegateCall:  t.ExecutionOptions.DelegateCall(),
			})
		case ClearanceFunction:
			for _, f := range t.Functions {
				sel := f.Selector
				p := Permission{
					TargetAddress: t.Address,
					Selector:      &sel,
					Send:          f.ExecutionOptions.Send(),
					DelegateCall:  f.ExecutionOptions.DelegateCall(),
				}
				if !f.Wildcarded && f.Condition != nil {
					c := f.Condition.Clone()
					p.Condition = &c
				}
				perms = append(perms, p)
			}
		}
	}
	return perms
}
