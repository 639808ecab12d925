// roles/pkg/diff/allowances.go

package diff

import (
	"bytes"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"zodiac/roles/pkg/roles"
)

// indexAllowances keys list by allowance key, leaving out zeroed entries.
func indexAllowances(list []roles.Allowance) map[common.Hash]roles.Allowance {
	out := make(map[common.Hash]roles.Allowance, len(list))
	for _, a := range list {
		if a.IsZero() {
			continue
		}
		out[a.Key] = a
	}
	return out
}

// DiffAllowances compares allowance snapshots. For keys on both sides the
// live balance and timestamp are carried over from prev and only the refill
// parameters come from next. Keys only in prev are zeroed, keys only in next
// are created as given. A zeroed allowance counts as absent on either side,
// so revoking one that is already zeroed is a no-op and re-authoring a
// zeroed key creates it afresh.
func DiffAllowances(prev, next []roles.Allowance) Diff {
	prevByKey, nextByKey := indexAllowances(prev), indexAllowances(next)

	seen := make(map[common.Hash]bool, len(prevByKey)+len(nextByKey))
	var keys []common.Hash
	for _, m := range []map[common.Hash]roles.Allowance{prevByKey, nextByKey} {
		for k := range m {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		return bytes.Compare(keys[i][:], keys[j][:]) < 0
	})

	var d Diff
	for _, key := range keys {
		p, inPrev := prevByKey[key]
		n, inNext := nextByKey[key]

		switch {
		case !inNext:
			d.minus(SetAllowance{
				Key:       key,
				Balance:   new(uint256.Int),
				MaxRefill: new(uint256.Int),
				Refill:    new(uint256.Int),
			})

		case !inPrev:
			d.plus(SetAllowance{
				Key:       key,
				Balance:   n.BalanceOrZero().Clone(),
				MaxRefill: n.MaxRefillOrZero().Clone(),
				Refill:    n.RefillOrZero().Clone(),
				Period:    n.Period,
				Timestamp: n.Timestamp,
			})

		case !p.SameRefill(n):
			d.plus(SetAllowance{
				Key:       key,
				Balance:   p.BalanceOrZero().Clone(),
				MaxRefill: n.MaxRefillOrZero().Clone(),
				Refill:    n.RefillOrZero().Clone(),
				Period:    n.Period,
				Timestamp: p.Timestamp,
			})
		}
	}
	return d
}
