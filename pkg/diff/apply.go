// roles/pkg/diff/apply.go

package diff

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"zodiac/roles/pkg/logging"
	"zodiac/roles/pkg/permissions"
	"zodiac/roles/pkg/roles"
)

// Apply replays calls against a copy of state the way the modifier would.
// Revoking a target keeps its function entries, as the contract does.
func Apply(state roles.State, calls []Call) (roles.State, error) {
	s := cloneState(state)
	for i, call := range calls {
		if err := applyCall(&s, call); err != nil {
			return roles.State{}, logging.NewError(logging.ErrorTypeConsistency, fmt.Sprintf("cannot apply %s", call.Name()), err, map[string]interface{}{
				"index": i,
			})
		}
	}
	return s, nil
}

func applyCall(s *roles.State, call Call) error {
	switch c := call.(type) {
	case AllowTarget:
		t := target(role(s, c.RoleKey), c.TargetAddress)
		t.Clearance = permissions.ClearanceTarget
		t.ExecutionOptions = c.ExecutionOptions
	case ScopeTarget:
		t := target(role(s, c.RoleKey), c.TargetAddress)
		t.Clearance = permissions.ClearanceFunction
		t.ExecutionOptions = permissions.ExecutionOptionsNone
	case RevokeTarget:
		t := target(role(s, c.RoleKey), c.TargetAddress)
		t.Clearance = permissions.ClearanceNone
		t.ExecutionOptions = permissions.ExecutionOptionsNone
	case AllowFunction:
		t := target(role(s, c.RoleKey), c.TargetAddress)
		setFunction(t, permissions.Function{Selector: c.Selector, ExecutionOptions: c.ExecutionOptions, Wildcarded: true})
	case ScopeFunction:
		t := target(role(s, c.RoleKey), c.TargetAddress)
		cond := c.Condition.Clone()
		setFunction(t, permissions.Function{Selector: c.Selector, ExecutionOptions: c.ExecutionOptions, Condition: &cond})
	case RevokeFunction:
		t := target(role(s, c.RoleKey), c.TargetAddress)
		for i, f := range t.Functions {
			if f.Selector == c.Selector {
				t.Functions = append(t.Functions[:i:i], t.Functions[i+1:]...)
				break
			}
		}
	case AssignRoles:
		r := role(s, c.RoleKey)
		members := r.Members[:0:0]
		for _, m := range r.Members {
			if m != c.Member {
				members = append(members, m)
			}
		}
		if c.Join {
			members = append(members, c.Member)
		}
		r.Members = members
	case SetAllowance:
		a := roles.Allowance{
			Key:       c.Key,
			Balance:   c.Balance,
			MaxRefill: c.MaxRefill,
			Refill:    c.Refill,
			Period:    c.Period,
			Timestamp: c.Timestamp,
		}
		for i := range s.Allowances {
			if s.Allowances[i].Key == c.Key {
				s.Allowances[i] = a
				return nil
			}
		}
		s.Allowances = append(s.Allowances, a)
	case PostAnnotations:
		r := role(s, c.RoleKey)
		removed := make(map[string]bool, len(c.Remove)+len(c.Add))
		for _, uri := range c.Remove {
			removed[uri] = true
		}
		for _, a := range c.Add {
			removed[a.URI] = true
		}
		kept := r.Annotations[:0:0]
		for _, a := range r.Annotations {
			if !removed[a.URI] {
				kept = append(kept, a)
			}
		}
		r.Annotations = append(kept, c.Add...)
	default:
		return fmt.Errorf("unknown call %T", call)
	}
	return nil
}

func role(s *roles.State, key common.Hash) *roles.Role {
	for i := range s.Roles {
		if s.Roles[i].Key == key {
			return &s.Roles[i]
		}
	}
	s.Roles = append(s.Roles, roles.Role{Key: key})
	return &s.Roles[len(s.Roles)-1]
}

func target(r *roles.Role, addr common.Address) *permissions.Target {
	for i := range r.Targets {
		if r.Targets[i].Address == addr {
			return &r.Targets[i]
		}
	}
	r.Targets = append(r.Targets, permissions.Target{Address: addr})
	return &r.Targets[len(r.Targets)-1]
}

func setFunction(t *permissions.Target, f permissions.Function) {
	for i := range t.Functions {
		if t.Functions[i].Selector == f.Selector {
			t.Functions[i] = f
			return
		}
	}
	t.Functions = append(t.Functions, f)
}

func cloneState(s roles.State) roles.State {
	out := roles.State{
		Roles:      make([]roles.Role, len(s.Roles)),
		Allowances: append([]roles.Allowance(nil), s.Allowances...),
	}
	for i, r := range s.Roles {
		c := roles.Role{
			Key:         r.Key,
			Members:     append([]common.Address(nil), r.Members...),
			Annotations: append([]permissions.Annotation(nil), r.Annotations...),
			Targets:     make([]permissions.Target, len(r.Targets)),
		}
		for j, t := range r.Targets {
			t.Functions = append([]permissions.Function(nil), t.Functions...)
			c.Targets[j] = t
		}
		out.Roles[i] = c
	}
	return out
}
