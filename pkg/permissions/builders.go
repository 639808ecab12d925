// roles/pkg/permissions/builders.go

package permissions

import (
	"github.com/ethereum/go-ethereum/common"

	"zodiac/roles/pkg/conditions"
)

type Option func(*Permission)

func WithSend() Option {
	return func(p *Permission) { p.Send = true }
}

func WithDelegateCall() Option {
	return func(p *Permission) { p.DelegateCall = true }
}

// AllowTarget allows every function of target.
func AllowTarget(target common.Address, opts ...Option) Permission {
	p := Permission{TargetAddress: target}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// AllowFunction allows calls to selector on target. A nil condition leaves
// the calldata unconstrained.
func AllowFunction(target common.Address, selector Selector, condition *conditions.Condition, opts ...Option) Permission {
	sel := selector
	p := Permission{TargetAddress: target, Selector: &sel}
	if condition != nil {
		c := condition.Clone()
		p.Condition = &c
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// AllowSignature is AllowFunction keyed by a function signature.
func AllowSignature(target common.Address, signature string, condition *conditions.Condition, opts ...Option) Permission {
	return AllowFunction(target, SelectorFromSignature(signature), condition, opts...)
}

// Scoped is a convenience for passing a condition literal to AllowFunction.
func Scoped(c conditions.Condition) *conditions.Condition {
	return &c
}
