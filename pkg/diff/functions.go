// roles/pkg/diff/functions.go

package diff

import (
	"bytes"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"zodiac/roles/pkg/conditions"
	"zodiac/roles/pkg/logging"
	"zodiac/roles/pkg/permissions"
)

func isScoped(f permissions.Function) bool {
	return !f.Wildcarded && f.Condition != nil
}

func indexFunctions(fns []permissions.Function) map[permissions.Selector]permissions.Function {
	out := make(map[permissions.Selector]permissions.Function, len(fns))
	for _, f := range fns {
		out[f.Selector] = f
	}
	return out
}

func selectorUnion(a, b map[permissions.Selector]permissions.Function) []permissions.Selector {
	seen := make(map[permissions.Selector]bool, len(a)+len(b))
	var out []permissions.Selector
	for _, m := range []map[permissions.Selector]permissions.Function{a, b} {
		for sel := range m {
			if !seen[sel] {
				seen[sel] = true
				out = append(out, sel)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i][:], out[j][:]) < 0
	})
	return out
}

// DiffFunctions compares the function entries of one target. Conditions are
// compared by normalized id, so equivalent trees produce no call.
func DiffFunctions(roleKey common.Hash, target common.Address, prev, next []permissions.Function) (Diff, error) {
	prevBySel, nextBySel := indexFunctions(prev), indexFunctions(next)

	var d Diff
	for _, sel := range selectorUnion(prevBySel, nextBySel) {
		p, inPrev := prevBySel[sel]
		n, inNext := nextBySel[sel]

		switch {
		case !inNext:
			d.minus(RevokeFunction{RoleKey: roleKey, TargetAddress: target, Selector: sel})

		case !inPrev:
			d.plus(grantFunction(roleKey, target, n))

		case !isScoped(n) && isScoped(p):
			// Relaxation to any calldata.
			d.plus(grantFunction(roleKey, target, n))

		case !isScoped(n):
			if p.ExecutionOptions == n.ExecutionOptions {
				continue
			}
			call := grantFunction(roleKey, target, n)
			if n.ExecutionOptions.Covers(p.ExecutionOptions) {
				d.plus(call)
			} else {
				d.minus(call)
			}

		case !isScoped(p):
			// Narrowing from wildcarded to a condition.
			d.minus(grantFunction(roleKey, target, n))

		default:
			equal, err := conditions.Equal(*p.Condition, *n.Condition)
			if err != nil {
				return Diff{}, logging.AddFields(err, map[string]interface{}{
					"target":   target.Hex(),
					"selector": sel.String(),
				})
			}
			switch {
			case !equal:
				d.plus(grantFunction(roleKey, target, n))
			case p.ExecutionOptions == n.ExecutionOptions:
			case n.ExecutionOptions.Covers(p.ExecutionOptions):
				d.plus(grantFunction(roleKey, target, n))
			default:
				d.minus(grantFunction(roleKey, target, n))
			}
		}
	}
	return d, nil
}

func grantFunction(roleKey common.Hash, target common.Address, f permissions.Function) Call {
	if !isScoped(f) {
		return AllowFunction{RoleKey: roleKey, TargetAddress: target, Selector: f.Selector, ExecutionOptions: f.ExecutionOptions}
	}
	return ScopeFunction{
		RoleKey:          roleKey,
		TargetAddress:    target,
		Selector:         f.Selector,
		Condition:        f.Condition.Clone(),
		ExecutionOptions: f.ExecutionOptions,
	}
}
