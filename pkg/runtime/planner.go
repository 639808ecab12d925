// roles/pkg/runtime/planner.go

package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"zodiac/roles/pkg/annotations"
	"zodiac/roles/pkg/conditions"
	"zodiac/roles/pkg/diff"
	"zodiac/roles/pkg/encode"
	"zodiac/roles/pkg/logging"
	"zodiac/roles/pkg/permissions"
	"zodiac/roles/pkg/roles"
	"zodiac/roles/pkg/store"
)

// DesiredRole is how a role is authored in a permissions file. Key is either
// a short human readable key or a 0x prefixed bytes32.
type DesiredRole struct {
	Key            string                      `json:"key"`
	Members        []common.Address            `json:"members"`
	PermissionSets []permissions.PermissionSet `json:"permissionSets"`
}

// Desired is the content of a permissions file.
type Desired struct {
	Roles      []DesiredRole     `json:"roles"`
	Allowances []roles.Allowance `json:"allowances"`
}

func parseRoleKey(key string) (common.Hash, error) {
	if strings.HasPrefix(key, "0x") && len(key) == 2+2*common.HashLength {
		return common.HexToHash(key), nil
	}
	return roles.EncodeKey(key)
}

// Project turns the authored roles into the state they describe. Every
// projected role passes the integrity checker, and every allowance its
// conditions reference must be listed in Allowances.
func (d Desired) Project() (roles.State, error) {
	state := roles.State{Allowances: d.Allowances}
	defined := make(map[common.Hash]bool, len(d.Allowances))
	for _, a := range d.Allowances {
		defined[a.Key] = true
	}
	seen := make(map[common.Hash]bool)
	for _, dr := range d.Roles {
		key, err := parseRoleKey(dr.Key)
		if err != nil {
			return roles.State{}, logging.NewError(logging.ErrorTypeValidation, "invalid role key", err, map[string]interface{}{"role": dr.Key})
		}
		if seen[key] {
			return roles.State{}, logging.NewError(logging.ErrorTypeIntegrity, "duplicate role", nil, map[string]interface{}{"role": dr.Key})
		}
		seen[key] = true

		result, err := permissions.ProcessPermissionSets(dr.PermissionSets)
		if err != nil {
			return roles.State{}, fmt.Errorf("role %s: %w", dr.Key, err)
		}
		if err := permissions.CheckIntegrity(result.Targets, nil); err != nil {
			return roles.State{}, fmt.Errorf("role %s: %w", dr.Key, err)
		}
		if err := checkAllowanceRefs(result.Targets, defined); err != nil {
			return roles.State{}, fmt.Errorf("role %s: %w", dr.Key, err)
		}
		state.Roles = append(state.Roles, roles.Role{
			Key:         key,
			Members:     dr.Members,
			Targets:     result.Targets,
			Annotations: result.Annotations,
		})
	}
	return state.Sorted(), nil
}

func checkAllowanceRefs(targets []permissions.Target, defined map[common.Hash]bool) error {
	for _, t := range targets {
		for _, f := range t.Functions {
			if f.Condition == nil {
				continue
			}
			for _, key := range conditions.AllowanceKeys(*f.Condition) {
				if defined[key] {
					continue
				}
				err := logging.NewError(logging.ErrorTypeIntegrity, "condition references an undefined allowance", nil, map[string]interface{}{
					"target":    t.Address.Hex(),
					"selector":  f.Selector.String(),
					"allowance": key.Hex(),
				})
				logging.LogError(logging.Logger, err)
				return err
			}
		}
	}
	return nil
}

// checkStored runs the integrity checker over a stored snapshot. Function
// entries left under a target-wide clearance are inert on chain and are
// not checked.
func checkStored(state roles.State) error {
	for _, r := range state.Roles {
		targets := make([]permissions.Target, len(r.Targets))
		for i, t := range r.Targets {
			if t.Clearance == permissions.ClearanceTarget {
				t.Functions = nil
			}
			targets[i] = t
		}
		if err := permissions.CheckIntegrity(targets, nil); err != nil {
			return fmt.Errorf("stored role %s: %w", r.Key.Hex(), err)
		}
	}
	return nil
}

type Stats struct {
	PlansComputed int64     `json:"plansComputed"`
	CallsEmitted  int64     `json:"callsEmitted"`
	Failures      int64     `json:"failures"`
	LastPlanTime  time.Time `json:"lastPlanTime"`
}

type PlanResult struct {
	Mod          common.Address       `json:"mod"`
	Diff         diff.Diff            `json:"diff"`
	Transactions []encode.Transaction `json:"transactions"`
}

// Planner computes the calls moving a modifier from its stored snapshot to
// the desired state.
type Planner struct {
	store    store.Store
	resolver *annotations.Resolver
	next     roles.State

	mu     sync.RWMutex
	stats  Stats
	latest *PlanResult
}

func NewPlanner(st store.Store, desired Desired, resolver *annotations.Resolver) (*Planner, error) {
	next, err := desired.Project()
	if err != nil {
		logging.LogError(logging.Logger, err)
		return nil, err
	}
	if resolver == nil {
		resolver = annotations.NewResolver()
	}
	logging.Logger.Info().Int("roles", len(next.Roles)).Int("allowances", len(next.Allowances)).Msg("Loaded desired state")
	return &Planner{store: st, resolver: resolver, next: next}, nil
}

func NewPlannerFromFile(filename string, st store.Store, resolver *annotations.Resolver) (*Planner, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, logging.NewError(logging.ErrorTypeConfig, "cannot read permissions file", err, map[string]interface{}{"file": filename})
	}
	var desired Desired
	if err := json.Unmarshal(data, &desired); err != nil {
		return nil, logging.NewError(logging.ErrorTypeConfig, "cannot parse permissions file", err, map[string]interface{}{"file": filename})
	}
	return NewPlanner(st, desired, resolver)
}

// Desired returns the projected desired state.
func (p *Planner) Desired() roles.State {
	return p.next
}

// PlanMod plans and encodes the calls for mod.
func (p *Planner) PlanMod(ctx context.Context, mod common.Address) (PlanResult, error) {
	result, err := p.plan(ctx, mod)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats.LastPlanTime = time.Now()
	if err != nil {
		p.stats.Failures++
		return PlanResult{}, err
	}
	p.stats.PlansComputed++
	p.stats.CallsEmitted += int64(len(result.Diff.Minus) + len(result.Diff.Plus))
	p.latest = &result
	return result, nil
}

func (p *Planner) plan(ctx context.Context, mod common.Address) (PlanResult, error) {
	prev, err := p.store.LoadState(ctx, mod)
	if err != nil {
		return PlanResult{}, err
	}
	if err := checkStored(prev); err != nil {
		return PlanResult{}, err
	}
	d, err := diff.Plan(prev, p.next)
	if err != nil {
		return PlanResult{}, err
	}
	txs, err := encode.NewEncoder(mod).EncodeAll(d.Calls())
	if err != nil {
		return PlanResult{}, err
	}

	logging.Logger.Info().
		Str("mod", mod.Hex()).
		Int("minus", len(d.Minus)).
		Int("plus", len(d.Plus)).
		Int("transactions", len(txs)).
		Msg("Computed plan")
	return PlanResult{Mod: mod, Diff: d, Transactions: txs}, nil
}

// DescribeRole resolves the annotations of a stored role against the
// permissions it grants.
func (p *Planner) DescribeRole(ctx context.Context, mod common.Address, key common.Hash) (annotations.Result, error) {
	role, ok, err := p.store.LoadRole(ctx, mod, key)
	if err != nil {
		return annotations.Result{}, err
	}
	if !ok {
		return annotations.Result{}, logging.NewError(logging.ErrorTypeStore, "role not found", nil, map[string]interface{}{
			"mod":  mod.Hex(),
			"role": key.Hex(),
		})
	}
	granted := permissions.ReconstructPermissions(role.Targets)
	return p.resolver.Resolve(ctx, role.Annotations, granted)
}

func (p *Planner) GetStats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stats
}

// LatestPlan returns the last successful plan, if any.
func (p *Planner) LatestPlan() (PlanResult, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.latest == nil {
		return PlanResult{}, false
	}
	return *p.latest, true
}
