// roles/pkg/diff/roles.go

package diff

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"zodiac/roles/pkg/logging"
	"zodiac/roles/pkg/permissions"
	"zodiac/roles/pkg/roles"
)

// DiffMembers emits a leave for every member dropped and a join for every
// member added, in address order.
func DiffMembers(roleKey common.Hash, prev, next []common.Address) Diff {
	prevSet := make(map[common.Address]bool, len(prev))
	for _, m := range prev {
		prevSet[m] = true
	}
	nextSet := make(map[common.Address]bool, len(next))
	for _, m := range next {
		nextSet[m] = true
	}

	var d Diff
	for _, m := range addressUnion(prev, next) {
		switch {
		case prevSet[m] && !nextSet[m]:
			d.minus(AssignRoles{RoleKey: roleKey, Member: m, Join: false})
		case !prevSet[m] && nextSet[m]:
			d.plus(AssignRoles{RoleKey: roleKey, Member: m, Join: true})
		}
	}
	return d
}

// DiffAnnotations emits at most one postAnnotations call. Annotations are
// identified by URI; a changed schema re-posts the annotation.
func DiffAnnotations(roleKey common.Hash, prev, next []permissions.Annotation) Diff {
	prevByURI := make(map[string]permissions.Annotation, len(prev))
	for _, a := range prev {
		prevByURI[a.URI] = a
	}
	nextByURI := make(map[string]permissions.Annotation, len(next))
	for _, a := range next {
		nextByURI[a.URI] = a
	}

	call := PostAnnotations{RoleKey: roleKey}
	for uri, a := range nextByURI {
		if p, ok := prevByURI[uri]; !ok || p != a {
			call.Add = append(call.Add, a)
		}
	}
	for uri := range prevByURI {
		if _, ok := nextByURI[uri]; !ok {
			call.Remove = append(call.Remove, uri)
		}
	}
	if len(call.Add) == 0 && len(call.Remove) == 0 {
		return Diff{}
	}
	sort.Slice(call.Add, func(i, j int) bool { return call.Add[i].URI < call.Add[j].URI })
	sort.Strings(call.Remove)

	var d Diff
	d.plus(call)
	return d
}

// DiffRole compares two snapshots of the same role.
func DiffRole(prev, next roles.Role) (Diff, error) {
	if prev.Key != next.Key {
		return Diff{}, logging.NewError(logging.ErrorTypeValidation, "cannot diff roles with different keys", nil, map[string]interface{}{
			"prev": prev.Key.Hex(),
			"next": next.Key.Hex(),
		})
	}
	d := DiffMembers(next.Key, prev.Members, next.Members)

	td, err := DiffTargets(next.Key, prev.Targets, next.Targets)
	if err != nil {
		return Diff{}, logging.AddFields(err, map[string]interface{}{"role": roles.DecodeKey(next.Key)})
	}
	d = d.Merge(td)
	return d.Merge(DiffAnnotations(next.Key, prev.Annotations, next.Annotations)), nil
}

// DiffRoles compares every role present on either side. Roles missing from
// next are revoked entirely. Roles are diffed concurrently and merged in key
// order.
func DiffRoles(prev, next []roles.Role) (Diff, error) {
	prevByKey := make(map[common.Hash]roles.Role, len(prev))
	for _, r := range prev {
		prevByKey[r.Key] = r
	}
	nextByKey := make(map[common.Hash]roles.Role, len(next))
	for _, r := range next {
		nextByKey[r.Key] = r
	}

	seen := make(map[common.Hash]bool)
	var keys []common.Hash
	for _, list := range [][]roles.Role{prev, next} {
		for _, r := range list {
			if !seen[r.Key] {
				seen[r.Key] = true
				keys = append(keys, r.Key)
			}
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		return bytes.Compare(keys[i][:], keys[j][:]) < 0
	})

	diffs := make([]Diff, len(keys))
	var g errgroup.Group
	for i, key := range keys {
		i, key := i, key
		g.Go(func() error {
			p, ok := prevByKey[key]
			if !ok {
				p = roles.Role{Key: key}
			}
			n, ok := nextByKey[key]
			if !ok {
				n = roles.Role{Key: key}
			}
			d, err := DiffRole(p, n)
			if err != nil {
				return fmt.Errorf("role %s: %w", roles.DecodeKey(key), err)
			}
			diffs[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Diff{}, err
	}

	var out Diff
	for _, d := range diffs {
		out = out.Merge(d)
	}
	return out, nil
}

// DiffState compares two modifier snapshots: allowances first, then roles.
func DiffState(prev, next roles.State) (Diff, error) {
	logging.Logger.Debug().Int("prevRoles", len(prev.Roles)).Int("nextRoles", len(next.Roles)).Msg("Diffing state")

	d := DiffAllowances(prev.Allowances, next.Allowances)
	rd, err := DiffRoles(prev.Roles, next.Roles)
	if err != nil {
		logging.LogError(logging.Logger, err)
		return Diff{}, err
	}
	return d.Merge(rd), nil
}
