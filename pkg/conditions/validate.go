// roles/pkg/conditions/validate.go

package conditions

import (
	"fmt"

	"zodiac/roles/pkg/logging"
)

const maxArraySubsetChildren = 256

func validationError(c Condition, path []int, format string, args ...interface{}) error {
	return logging.NewError(logging.ErrorTypeValidation, fmt.Sprintf(format, args...), nil, map[string]interface{}{
		"path":      FormatPath(path),
		"operator":  c.Operator.String(),
		"paramType": c.ParamType.String(),
	})
}

// Validate checks the shape of every node in the tree. It never repairs.
func Validate(c Condition) error {
	var err error
	Walk(c, func(node Condition, path []int) bool {
		if err != nil {
			return false
		}
		err = validateNode(node, path)
		return err == nil
	})
	return err
}

func validateNode(c Condition, path []int) error {
	if _, ok := paramTypeNames[c.ParamType]; !ok {
		return validationError(c, path, "unknown param type %d", uint8(c.ParamType))
	}
	if _, ok := operatorNames[c.Operator]; !ok {
		return validationError(c, path, "unknown operator %d", uint8(c.Operator))
	}

	switch c.Operator {
	case And, Or, Nor:
		if c.ParamType != None {
			return validationError(c, path, "logical operator %s must have param type None", c.Operator)
		}
		if len(c.Children) == 0 {
			return validationError(c, path, "logical operator %s requires at least one child", c.Operator)
		}
		if len(c.CompValue) > 0 {
			return validationError(c, path, "logical operator %s must not have a compValue", c.Operator)
		}
		return nil

	case Matches:
		switch c.ParamType {
		case Tuple, Array, Calldata, AbiEncoded:
		default:
			return validationError(c, path, "Matches is not applicable to param type %s", c.ParamType)
		}
		if len(c.Children) == 0 {
			return validationError(c, path, "Matches requires at least one child")
		}
		if len(c.CompValue) > 0 {
			return validationError(c, path, "Matches must not have a compValue")
		}
		return nil

	case ArraySome, ArrayEvery:
		if c.ParamType != Array {
			return validationError(c, path, "%s requires param type Array", c.Operator)
		}
		if len(c.Children) != 1 {
			return validationError(c, path, "%s requires exactly one child, got %d", c.Operator, len(c.Children))
		}
		if len(c.CompValue) > 0 {
			return validationError(c, path, "%s must not have a compValue", c.Operator)
		}
		return nil

	case ArraySubset:
		if c.ParamType != Array {
			return validationError(c, path, "ArraySubset requires param type Array")
		}
		if len(c.Children) == 0 || len(c.Children) > maxArraySubsetChildren {
			return validationError(c, path, "ArraySubset requires 1 to %d children, got %d", maxArraySubsetChildren, len(c.Children))
		}
		if len(c.CompValue) > 0 {
			return validationError(c, path, "ArraySubset must not have a compValue")
		}
		return nil
	}

	if (c.ParamType == Tuple || c.ParamType == Array) && len(c.Children) == 0 {
		return validationError(c, path, "%s on param type %s requires children describing its components", c.Operator, c.ParamType)
	}

	// Everything below is a leaf for calldata matching purposes.
	if c.ParamType == None && !c.IsAllowanceLeaf() {
		return validationError(c, path, "param type None is only valid for logical operators and allowance checks")
	}
	if len(c.Children) > 0 && !c.ParamType.IsComplex() {
		return validationError(c, path, "%s on param type %s must not have children", c.Operator, c.ParamType)
	}

	switch c.Operator {
	case Pass:
		if len(c.CompValue) > 0 {
			return validationError(c, path, "Pass must not have a compValue")
		}

	case EqualTo:
		if len(c.CompValue) == 0 {
			return validationError(c, path, "EqualTo requires a compValue")
		}
		if c.ParamType == Static && len(c.CompValue) != 32 {
			return validationError(c, path, "EqualTo on Static requires a 32 byte compValue, got %d", len(c.CompValue))
		}

	case GreaterThan, LessThan, SignedIntGreaterThan, SignedIntLessThan:
		if c.ParamType != Static {
			return validationError(c, path, "%s requires param type Static", c.Operator)
		}
		if len(c.CompValue) != 32 {
			return validationError(c, path, "%s requires a 32 byte compValue, got %d", c.Operator, len(c.CompValue))
		}

	case Bitmask:
		if c.ParamType != Static && c.ParamType != Dynamic {
			return validationError(c, path, "Bitmask requires param type Static or Dynamic")
		}
		if len(c.CompValue) != 32 {
			return validationError(c, path, "Bitmask requires a 32 byte compValue, got %d", len(c.CompValue))
		}

	case EqualToAvatar:
		if c.ParamType != Static {
			return validationError(c, path, "EqualToAvatar requires param type Static")
		}
		if len(c.CompValue) > 0 {
			return validationError(c, path, "EqualToAvatar must not have a compValue")
		}

	case WithinAllowance:
		if c.ParamType != Static {
			return validationError(c, path, "WithinAllowance requires param type Static")
		}
		if len(c.CompValue) != 32 {
			return validationError(c, path, "allowance key must be 32 bytes, got %d", len(c.CompValue))
		}

	case EtherWithinAllowance, CallWithinAllowance:
		if c.ParamType != None {
			return validationError(c, path, "%s requires param type None", c.Operator)
		}
		if len(c.Children) > 0 {
			return validationError(c, path, "%s must not have children", c.Operator)
		}
		if len(c.CompValue) != 32 {
			return validationError(c, path, "allowance key must be 32 bytes, got %d", len(c.CompValue))
		}

	case Custom:
		if len(c.CompValue) < 20 || len(c.CompValue) > 32 {
			return validationError(c, path, "Custom requires a 20 to 32 byte compValue, got %d", len(c.CompValue))
		}
	}
	return nil
}
