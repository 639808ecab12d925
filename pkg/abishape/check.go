// roles/pkg/abishape/check.go

package abishape

import (
	"fmt"

	"zodiac/roles/pkg/conditions"
	"zodiac/roles/pkg/logging"
)

func integrityError(path []int, shape Shape, format string, args ...interface{}) error {
	return logging.NewError(logging.ErrorTypeIntegrity, fmt.Sprintf(format, args...), nil, map[string]interface{}{
		"path":    conditions.FormatPath(path),
		"abiType": shape.Type,
	})
}

func childPath(path []int, i int) []int {
	return append(path[:len(path):len(path)], i)
}

// CheckCondition verifies that c can decode values of the given shape: param
// types agree along every path, tuples match their arity exactly and
// Calldata/AbiEncoded nodes scope at most the declared parameters.
func CheckCondition(c conditions.Condition, shape Shape) error {
	logging.Logger.Debug().Str("abiType", shape.Type).Msg("Checking condition against ABI")
	return check(c, shape, nil)
}

func check(c conditions.Condition, shape Shape, path []int) error {
	if c.IsAllowanceLeaf() {
		return nil
	}
	if c.IsLogical() {
		for i, child := range c.Children {
			if err := check(child, shape, childPath(path, i)); err != nil {
				return err
			}
		}
		return nil
	}

	if !accepts(shape, c.ParamType) {
		return integrityError(path, shape, "param type %s cannot decode ABI type %s", c.ParamType, shape.Type)
	}

	switch c.ParamType {
	case conditions.Calldata, conditions.AbiEncoded:
		if shape.Kind == DynamicBytes {
			// Nested payload of a bytes parameter, its layout is not in the ABI.
			return nil
		}
		positional := shape.Positional()
		if len(c.Children) > len(positional) {
			return integrityError(path, shape, "condition scopes %d parameters, ABI declares %d", len(c.Children), len(positional))
		}
		for i, child := range c.Children {
			if err := check(child, positional[i], childPath(path, i)); err != nil {
				return err
			}
		}

	case conditions.Tuple:
		positional := shape.Positional()
		if len(c.Children) != len(positional) {
			return integrityError(path, shape, "tuple condition has %d components, ABI declares %d", len(c.Children), len(positional))
		}
		for i, child := range c.Children {
			if err := check(child, positional[i], childPath(path, i)); err != nil {
				return err
			}
		}

	case conditions.Array:
		for i, child := range c.Children {
			if err := check(child, *shape.Elem, childPath(path, i)); err != nil {
				return err
			}
		}
	}
	return nil
}

func accepts(shape Shape, pt conditions.ParamType) bool {
	switch shape.Kind {
	case Atomic:
		return pt == conditions.Static
	case DynamicBytes:
		return pt == conditions.Dynamic || pt == conditions.Dynamic32 || pt == conditions.AbiEncoded || pt == conditions.Calldata
	case Tuple, FixedArray:
		return pt == conditions.Tuple
	case DynamicArray:
		if pt == conditions.Dynamic32 {
			return shape.Elem.Kind == Atomic
		}
		return pt == conditions.Array
	case Call:
		return pt == conditions.Calldata || pt == conditions.AbiEncoded
	}
	return false
}
