// roles/pkg/permissions/derive.go

package permissions

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"zodiac/roles/pkg/abishape"
	"zodiac/roles/pkg/conditions"
	"zodiac/roles/pkg/logging"
)

// DerivePermissionFromCall builds the permission that allows exactly the
// given call. Every argument is pinned with EqualTo except the positions
// listed in wildcards, which stay unconstrained. With every argument
// wildcarded the function is allowed without a condition.
func DerivePermissionFromCall(target common.Address, method abi.Method, calldata []byte, wildcards ...int) (Permission, error) {
	sel := Selector{}
	copy(sel[:], method.ID)
	if len(calldata) < 4 || !bytes.Equal(calldata[:4], method.ID) {
		return Permission{}, integrityError(fmt.Sprintf("calldata does not call %s", method.Sig), target, &sel)
	}

	values, err := method.Inputs.Unpack(calldata[4:])
	if err != nil {
		return Permission{}, logging.NewError(logging.ErrorTypeValidation, "calldata does not decode", err, map[string]interface{}{
			"target":   target.Hex(),
			"selector": sel.String(),
		})
	}

	wild := make(map[int]bool, len(wildcards))
	for _, w := range wildcards {
		if w < 0 || w >= len(method.Inputs) {
			return Permission{}, integrityError(fmt.Sprintf("wildcard index %d out of range for %s", w, method.Sig), target, &sel)
		}
		wild[w] = true
	}

	children := make([]conditions.Condition, len(method.Inputs))
	for i, input := range method.Inputs {
		shape := abishape.FromType(input.Type)
		if wild[i] {
			children[i] = shape.Skeleton()
			continue
		}
		value, err := abishape.EncodeValue(input.Type, values[i])
		if err != nil {
			return Permission{}, annotate(logging.NewError(logging.ErrorTypeValidation, "argument does not encode", err, map[string]interface{}{
				"argument": input.Name,
			}), target, &sel)
		}
		children[i] = conditions.EqualToValue(shape.ParamType(), value, shape.TypeChildren()...)
	}

	perm := Permission{TargetAddress: target, Selector: &sel}
	if len(children) == 0 {
		return perm, nil
	}
	normalized, err := conditions.Normalize(conditions.CalldataMatches(children...))
	if err != nil {
		return Permission{}, annotate(err, target, &sel)
	}
	if !normalized.IsInert() {
		perm.Condition = &normalized
	}
	return perm, nil
}
