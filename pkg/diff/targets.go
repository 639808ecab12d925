// roles/pkg/diff/targets.go

package diff

import (
	"bytes"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"zodiac/roles/pkg/logging"
	"zodiac/roles/pkg/permissions"
)

func indexTargets(targets []permissions.Target) (map[common.Address]permissions.Target, []common.Address) {
	out := make(map[common.Address]permissions.Target, len(targets))
	var order []common.Address
	for _, t := range targets {
		if _, ok := out[t.Address]; !ok {
			order = append(order, t.Address)
		}
		out[t.Address] = t
	}
	return out, order
}

func addressUnion(lists ...[]common.Address) []common.Address {
	seen := make(map[common.Address]bool)
	var out []common.Address
	for _, list := range lists {
		for _, addr := range list {
			if !seen[addr] {
				seen[addr] = true
				out = append(out, addr)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i][:], out[j][:]) < 0
	})
	return out
}

// DiffTargets compares the targets of one role. An absent target is treated
// like one without clearance. Function entries left behind under a revoked
// or target-wide clearance stay untouched, they are inert on chain and are
// reconciled once the target is scoped by function again.
func DiffTargets(roleKey common.Hash, prev, next []permissions.Target) (Diff, error) {
	logging.Logger.Debug().Str("role", roleKey.Hex()).Int("prev", len(prev)).Int("next", len(next)).Msg("Diffing targets")

	prevByAddr, prevOrder := indexTargets(prev)
	nextByAddr, nextOrder := indexTargets(next)

	var d Diff
	for _, addr := range addressUnion(prevOrder, nextOrder) {
		p := prevByAddr[addr]
		n := nextByAddr[addr]

		switch n.Clearance {
		case permissions.ClearanceNone:
			if p.Clearance != permissions.ClearanceNone {
				d.minus(RevokeTarget{RoleKey: roleKey, TargetAddress: addr})
			}

		case permissions.ClearanceTarget:
			call := AllowTarget{RoleKey: roleKey, TargetAddress: addr, ExecutionOptions: n.ExecutionOptions}
			switch {
			case p.Clearance != permissions.ClearanceTarget:
				d.plus(call)
			case p.ExecutionOptions == n.ExecutionOptions:
			case n.ExecutionOptions.Covers(p.ExecutionOptions):
				d.plus(call)
			default:
				d.minus(call)
			}

		case permissions.ClearanceFunction:
			switch p.Clearance {
			case permissions.ClearanceTarget:
				d.minus(ScopeTarget{RoleKey: roleKey, TargetAddress: addr})
			case permissions.ClearanceNone:
				d.plus(ScopeTarget{RoleKey: roleKey, TargetAddress: addr})
			}
			fd, err := DiffFunctions(roleKey, addr, p.Functions, n.Functions)
			if err != nil {
				logging.LogError(logging.Logger, err)
				return Diff{}, err
			}
			d = d.Merge(fd)
		}
	}
	return d, nil
}
