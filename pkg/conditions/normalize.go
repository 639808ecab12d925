// roles/pkg/conditions/normalize.go

package conditions

import (
	"bytes"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"zodiac/roles/pkg/logging"
)

// Normalize rewrites c into canonical form. Equivalent trees, however they
// were authored, normalize to trees with the same ID. Malformed trees are
// rejected, never coerced.
//
// The passes, applied bottom-up:
//   - trailing unconstrained parameters of Calldata/AbiEncoded matches are
//     pruned
//   - nested And/And, Or/Or and Nor/Or are flattened
//   - And, Or and Nor branches are deduplicated and sorted by id
//   - Or branches matching the same shape and differing in a single
//     position are merged into one Matches with an Or at that position
//   - single-branch And/Or are unwrapped
//
// Finally sibling branches are padded to equal shapes and type-checked.
func Normalize(c Condition) (Condition, error) {
	logging.Logger.Debug().Str("operator", c.Operator.String()).Str("paramType", c.ParamType.String()).Msg("Normalizing condition")

	if err := Validate(c); err != nil {
		logging.LogError(logging.Logger, err)
		return Condition{}, err
	}
	if err := CheckTypes(c); err != nil {
		logging.LogError(logging.Logger, err)
		return Condition{}, err
	}

	normalized := normalizeStructure(c)

	padded, err := Pad(normalized)
	if err != nil {
		logging.LogError(logging.Logger, err)
		return Condition{}, err
	}
	if err := CheckTypesStrict(padded); err != nil {
		logging.LogError(logging.Logger, err)
		return Condition{}, err
	}
	return padded, nil
}

func normalizeStructure(c Condition) Condition {
	out := Condition{ParamType: c.ParamType, Operator: c.Operator, CompValue: c.CompValue}
	if len(c.Children) > 0 {
		out.Children = make([]Condition, len(c.Children))
		for i, child := range c.Children {
			out.Children[i] = normalizeStructure(child)
		}
	}

	out = pruneTrailingPass(out)
	if !out.IsLogical() {
		return out
	}

	out = flattenNested(out)
	out = dedupeAndSort(out)
	if out.Operator == Or {
		out = pushDownOr(out)
		out = dedupeAndSort(out)
	}
	return unwrapSingle(out)
}

// pruneTrailingPass drops trailing unconstrained parameters. Calldata and
// AbiEncoded values are decoded positionally, so parameters after the last
// constrained one need no type information.
func pruneTrailingPass(c Condition) Condition {
	if c.ParamType != Calldata && c.ParamType != AbiEncoded {
		return c
	}
	if c.Operator != Matches && c.Operator != Pass {
		return c
	}
	n := len(c.Children)
	for n > 0 && c.Children[n-1].IsInert() {
		n--
	}
	if n == len(c.Children) {
		return c
	}
	out := Condition{ParamType: c.ParamType, Operator: c.Operator, CompValue: c.CompValue}
	if n == 0 {
		out.Operator = Pass
		return out
	}
	out.Children = c.Children[:n:n]
	return out
}

// flattenNested hoists the branches of nested combinators that are
// equivalent to the parent: And in And, Or in Or, and Or in Nor.
func flattenNested(c Condition) Condition {
	var children []Condition
	for _, child := range c.Children {
		if child.IsLogical() && flattens(c.Operator, child.Operator) {
			children = append(children, child.Children...)
			continue
		}
		children = append(children, child)
	}
	return Condition{ParamType: c.ParamType, Operator: c.Operator, CompValue: c.CompValue, Children: children}
}

func flattens(parent, child Operator) bool {
	switch parent {
	case And:
		return child == And
	case Or, Nor:
		return child == Or
	}
	return false
}

func dedupeAndSort(c Condition) Condition {
	type keyed struct {
		id   common.Hash
		node Condition
	}
	seen := make(map[common.Hash]bool, len(c.Children))
	var items []keyed
	for _, child := range c.Children {
		id := ID(child)
		if seen[id] {
			continue
		}
		seen[id] = true
		items = append(items, keyed{id: id, node: child})
	}
	sort.Slice(items, func(i, j int) bool {
		return bytes.Compare(items[i].id[:], items[j].id[:]) < 0
	})
	children := make([]Condition, len(items))
	for i, item := range items {
		children[i] = item.node
	}
	return Condition{ParamType: c.ParamType, Operator: c.Operator, CompValue: c.CompValue, Children: children}
}

func unwrapSingle(c Condition) Condition {
	if (c.Operator == And || c.Operator == Or) && len(c.Children) == 1 {
		return c.Children[0]
	}
	return c
}

// pushDownOr merges pairs of Matches branches that differ in exactly one
// position. Every other position is kept verbatim and the merged position
// gets an Or of the two alternatives, so the component order of the scoped
// type cannot change. Branches are only merged when their type trees agree
// at every position.
func pushDownOr(c Condition) Condition {
	children := c.Children
	for {
		merged := false
	search:
		for i := 0; i < len(children); i++ {
			for j := i + 1; j < len(children); j++ {
				m, ok := mergeMatches(children[i], children[j])
				if !ok {
					continue
				}
				next := make([]Condition, 0, len(children)-1)
				next = append(next, children[:i]...)
				next = append(next, children[i+1:j]...)
				next = append(next, children[j+1:]...)
				next = append(next, m)
				children = next
				merged = true
				break search
			}
		}
		if !merged {
			break
		}
	}
	return Condition{ParamType: c.ParamType, Operator: c.Operator, CompValue: c.CompValue, Children: children}
}

func mergeMatches(a, b Condition) (Condition, bool) {
	if a.Operator != Matches || b.Operator != Matches {
		return Condition{}, false
	}
	if a.ParamType != b.ParamType || len(a.Children) != len(b.Children) || !bytes.Equal(a.CompValue, b.CompValue) {
		return Condition{}, false
	}

	diffAt := -1
	for i := range a.Children {
		if ID(a.Children[i]) == ID(b.Children[i]) {
			continue
		}
		if diffAt >= 0 {
			return Condition{}, false
		}
		diffAt = i
	}
	if diffAt < 0 {
		return Condition{}, false
	}

	for i := range a.Children {
		ta, err := TypeTree(a.Children[i])
		if err != nil || ta == nil {
			return Condition{}, false
		}
		tb, err := TypeTree(b.Children[i])
		if err != nil || tb == nil || !ta.Equal(*tb) {
			return Condition{}, false
		}
	}

	children := make([]Condition, len(a.Children))
	copy(children, a.Children)
	children[diffAt] = OrOf(a.Children[diffAt], b.Children[diffAt])
	return normalizeStructure(Condition{ParamType: a.ParamType, Operator: Matches, Children: children}), true
}
