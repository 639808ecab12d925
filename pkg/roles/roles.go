// roles/pkg/roles/roles.go

// Package roles holds the snapshot types the diff engine compares: roles
// with their members, targets and annotations, and the allowances their
// conditions reference.
package roles

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"zodiac/roles/pkg/permissions"
)

type Role struct {
	Key         common.Hash              `json:"key"`
	Members     []common.Address         `json:"members"`
	Targets     []permissions.Target     `json:"targets"`
	Annotations []permissions.Annotation `json:"annotations"`
}

// TargetByAddress returns the role's entry for addr, if any.
func (r Role) TargetByAddress(addr common.Address) (permissions.Target, bool) {
	for _, t := range r.Targets {
		if t.Address == addr {
			return t, true
		}
	}
	return permissions.Target{}, false
}

// Allowance is a refilling budget. Amounts are uint128 on chain. A nil
// amount reads as zero.
type Allowance struct {
	Key       common.Hash  `json:"key"`
	Balance   *uint256.Int `json:"balance"`
	MaxRefill *uint256.Int `json:"maxRefill"`
	Refill    *uint256.Int `json:"refill"`
	Period    uint64       `json:"period"`
	Timestamp uint64       `json:"timestamp"`
}

func amount(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}

func (a Allowance) BalanceOrZero() *uint256.Int   { return amount(a.Balance) }
func (a Allowance) MaxRefillOrZero() *uint256.Int { return amount(a.MaxRefill) }
func (a Allowance) RefillOrZero() *uint256.Int    { return amount(a.Refill) }

// IsZero reports whether the allowance grants nothing and never refills. A
// zeroed allowance is equivalent to an absent one.
func (a Allowance) IsZero() bool {
	return a.BalanceOrZero().IsZero() && a.MaxRefillOrZero().IsZero() && a.RefillOrZero().IsZero() &&
		a.Period == 0 && a.Timestamp == 0
}

// SameRefill reports whether the refill parameters, which are owned by the
// permission author, agree.
func (a Allowance) SameRefill(other Allowance) bool {
	return a.RefillOrZero().Eq(other.RefillOrZero()) &&
		a.MaxRefillOrZero().Eq(other.MaxRefillOrZero()) &&
		a.Period == other.Period
}

// State is the snapshot of one roles modifier.
type State struct {
	Roles      []Role      `json:"roles"`
	Allowances []Allowance `json:"allowances"`
}

func (s State) RoleByKey(key common.Hash) (Role, bool) {
	for _, r := range s.Roles {
		if r.Key == key {
			return r, true
		}
	}
	return Role{}, false
}

func (s State) AllowanceByKey(key common.Hash) (Allowance, bool) {
	for _, a := range s.Allowances {
		if a.Key == key {
			return a, true
		}
	}
	return Allowance{}, false
}

// Sorted returns a copy of s with roles and allowances ordered by key.
func (s State) Sorted() State {
	out := State{
		Roles:      append([]Role(nil), s.Roles...),
		Allowances: append([]Allowance(nil), s.Allowances...),
	}
	sort.Slice(out.Roles, func(i, j int) bool {
		return bytes.Compare(out.Roles[i].Key[:], out.Roles[j].Key[:]) < 0
	})
	sort.Slice(out.Allowances, func(i, j int) bool {
		return bytes.Compare(out.Allowances[i].Key[:], out.Allowances[j].Key[:]) < 0
	})
	return out
}

// EncodeKey turns a human readable key such as "MANAGER" into the right
// padded bytes32 used on chain.
func EncodeKey(key string) (common.Hash, error) {
	if len(key) > common.HashLength {
		return common.Hash{}, fmt.Errorf("key %q is longer than %d bytes", key, common.HashLength)
	}
	var h common.Hash
	copy(h[:], key)
	return h, nil
}

// MustEncodeKey is EncodeKey for constant keys.
func MustEncodeKey(key string) common.Hash {
	h, err := EncodeKey(key)
	if err != nil {
		panic(err)
	}
	return h
}

// DecodeKey strips the padding EncodeKey adds.
func DecodeKey(h common.Hash) string {
	return string(bytes.TrimRight(h[:], "\x00"))
}
