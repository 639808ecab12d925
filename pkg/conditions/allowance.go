// roles/pkg/conditions/allowance.go

package conditions

import (
	"bytes"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// AllowanceKeys lists the distinct allowance keys referenced anywhere in c,
// sorted.
func AllowanceKeys(c Condition) []common.Hash {
	seen := make(map[common.Hash]bool)
	var keys []common.Hash
	Walk(c, func(node Condition, _ []int) bool {
		switch node.Operator {
		case WithinAllowance, EtherWithinAllowance, CallWithinAllowance:
			if len(node.CompValue) != 32 {
				return true
			}
			key := common.BytesToHash(node.CompValue)
			if !seen[key] {
				seen[key] = true
				keys = append(keys, key)
			}
		}
		return true
	})
	sort.Slice(keys, func(i, j int) bool {
		return bytes.Compare(keys[i][:], keys[j][:]) < 0
	})
	return keys
}
