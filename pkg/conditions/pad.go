// roles/pkg/conditions/pad.go

package conditions

import "zodiac/roles/pkg/logging"

// Pad aligns the shapes of sibling branches. Wherever a logical node or an
// array combines complex branches of differing arity, the shorter branches
// get inert Pass skeletons of the longest sibling's trailing components, so
// every branch decodes the same positions. The input is not modified.
func Pad(c Condition) (Condition, error) {
	if c.IsLogical() || c.ParamType == Array {
		shape, err := TypeTree(c)
		if err != nil {
			return Condition{}, err
		}
		if shape == nil {
			return c, nil
		}
		logging.Logger.Debug().Str("paramType", shape.ParamType.String()).Int("branches", len(c.Children)).Msg("Padding branches")
		return padTo(c, *shape), nil
	}

	if len(c.Children) == 0 {
		return c, nil
	}
	out := Condition{ParamType: c.ParamType, Operator: c.Operator, CompValue: c.CompValue}
	out.Children = make([]Condition, len(c.Children))
	for i, child := range c.Children {
		padded, err := Pad(child)
		if err != nil {
			return Condition{}, err
		}
		out.Children[i] = padded
	}
	return out, nil
}

func padTo(c Condition, shape TypeNode) Condition {
	if c.IsAllowanceLeaf() {
		return c
	}
	out := Condition{ParamType: c.ParamType, Operator: c.Operator, CompValue: c.CompValue}

	switch {
	case c.ParamType == None:
		out.Children = make([]Condition, len(c.Children))
		for i, child := range c.Children {
			out.Children[i] = padTo(child, shape)
		}

	case c.ParamType == Array:
		if len(shape.Children) == 0 {
			return c
		}
		out.Children = make([]Condition, len(c.Children))
		for i, child := range c.Children {
			out.Children[i] = padTo(child, shape.Children[0])
		}

	case c.ParamType == Tuple || c.ParamType == Calldata || c.ParamType == AbiEncoded:
		n := len(c.Children)
		if len(shape.Children) > n {
			n = len(shape.Children)
		}
		if n == 0 {
			return c
		}
		out.Children = make([]Condition, n)
		for i := 0; i < n; i++ {
			switch {
			case i >= len(c.Children):
				out.Children[i] = Skeleton(shape.Children[i])
			case i < len(shape.Children):
				out.Children[i] = padTo(c.Children[i], shape.Children[i])
			default:
				out.Children[i] = c.Children[i]
			}
		}

	default:
		return c
	}
	return out
}
