// roles/pkg/permissions/integrity.go

package permissions

import (
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"zodiac/roles/pkg/abishape"
	"zodiac/roles/pkg/conditions"
	"zodiac/roles/pkg/logging"
)

func integrityError(message string, target common.Address, selector *Selector) error {
	fields := map[string]interface{}{"target": target.Hex()}
	if selector != nil {
		fields["selector"] = selector.String()
	}
	return logging.NewError(logging.ErrorTypeIntegrity, message, nil, fields)
}

// CheckIntegrity verifies a target list before it is diffed or encoded.
// Contracts found in abis additionally have every condition checked against
// the ABI of the scoped function.
func CheckIntegrity(targets []Target, abis map[common.Address]abi.ABI) error {
	seen := make(map[common.Address]bool, len(targets))
	for _, t := range targets {
		if seen[t.Address] {
			err := integrityError("duplicate target", t.Address, nil)
			logging.LogError(logging.Logger, err)
			return err
		}
		seen[t.Address] = true

		var contract *abi.ABI
		if a, ok := abis[t.Address]; ok {
			contract = &a
		}
		if err := TargetIntegrity(t, contract); err != nil {
			logging.LogError(logging.Logger, err)
			return err
		}
	}
	return nil
}

// TargetIntegrity checks a single target. A nil contract skips the ABI checks.
func TargetIntegrity(t Target, contract *abi.ABI) error {
	switch t.Clearance {
	case ClearanceNone, ClearanceFunction:
	case ClearanceTarget:
		if len(t.Functions) > 0 {
			return integrityError("target cleared entirely must not list functions", t.Address, nil)
		}
		return nil
	default:
		return integrityError("unknown clearance "+t.Clearance.String(), t.Address, nil)
	}

	selectors := make(map[Selector]bool, len(t.Functions))
	for _, f := range t.Functions {
		sel := f.Selector
		if selectors[sel] {
			return integrityError("duplicate selector", t.Address, &sel)
		}
		selectors[sel] = true

		if f.Wildcarded == (f.Condition != nil) {
			return integrityError("function must be either wildcarded or scoped by a condition", t.Address, &sel)
		}
		if f.Condition == nil {
			continue
		}
		if err := conditions.Validate(*f.Condition); err != nil {
			return annotate(err, t.Address, &sel)
		}
		if err := conditions.CheckTypes(*f.Condition); err != nil {
			return annotate(err, t.Address, &sel)
		}
		if contract == nil {
			continue
		}
		method, err := contract.MethodById(sel[:])
		if err != nil {
			return integrityError("selector not found in contract ABI", t.Address, &sel)
		}
		if err := abishape.CheckCondition(*f.Condition, abishape.FromMethod(*method)); err != nil {
			return annotate(err, t.Address, &sel)
		}
	}
	return nil
}
