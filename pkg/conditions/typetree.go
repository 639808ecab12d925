// roles/pkg/conditions/typetree.go

package conditions

// TypeNode is the ABI shape a condition tree decodes, with logical nodes
// resolved away.
type TypeNode struct {
	ParamType ParamType
	Children  []TypeNode
}

func childPath(path []int, i int) []int {
	return append(path[:len(path):len(path)], i)
}

// TypeTree resolves the shape scoped by c. Logical nodes inherit the merged
// shape of their children. A tree that only holds allowance checks has no
// shape and yields nil.
func TypeTree(c Condition) (*TypeNode, error) {
	return typeTree(c, nil)
}

func typeTree(c Condition, path []int) (*TypeNode, error) {
	if c.IsAllowanceLeaf() {
		return nil, nil
	}

	if c.ParamType == None {
		if len(c.Children) == 0 {
			return nil, validationError(c, path, "logical node without children has no type to inherit")
		}
		var merged *TypeNode
		for i, child := range c.Children {
			t, err := typeTree(child, childPath(path, i))
			if err != nil {
				return nil, err
			}
			if t == nil {
				continue
			}
			if merged == nil {
				merged = t
				continue
			}
			m, err := mergeTypes(*merged, *t, c, childPath(path, i))
			if err != nil {
				return nil, err
			}
			merged = &m
		}
		return merged, nil
	}

	node := TypeNode{ParamType: c.ParamType}
	switch c.ParamType {
	case Array:
		var elem *TypeNode
		for i, child := range c.Children {
			t, err := typeTree(child, childPath(path, i))
			if err != nil {
				return nil, err
			}
			if t == nil {
				return nil, validationError(child, childPath(path, i), "array element does not scope any type")
			}
			if elem == nil {
				elem = t
				continue
			}
			m, err := mergeTypes(*elem, *t, c, childPath(path, i))
			if err != nil {
				return nil, err
			}
			elem = &m
		}
		if elem != nil {
			node.Children = []TypeNode{*elem}
		}

	case Tuple, Calldata, AbiEncoded:
		for i, child := range c.Children {
			t, err := typeTree(child, childPath(path, i))
			if err != nil {
				return nil, err
			}
			if t == nil {
				return nil, validationError(child, childPath(path, i), "component does not scope any type")
			}
			node.Children = append(node.Children, *t)
		}
	}
	return &node, nil
}

// mergeTypes combines the shapes of two sibling branches. Tuples must agree
// exactly; Calldata and AbiEncoded may differ in trailing components, the
// longer list wins.
func mergeTypes(a, b TypeNode, at Condition, path []int) (TypeNode, error) {
	if a.ParamType != b.ParamType {
		return TypeNode{}, validationError(at, path, "branches resolve to different types %s and %s", a.ParamType, b.ParamType)
	}
	if len(a.Children) == 0 {
		return b, nil
	}
	if len(b.Children) == 0 {
		return a, nil
	}

	switch a.ParamType {
	case Array:
		elem, err := mergeTypes(a.Children[0], b.Children[0], at, path)
		if err != nil {
			return TypeNode{}, err
		}
		return TypeNode{ParamType: Array, Children: []TypeNode{elem}}, nil

	case Tuple:
		if len(a.Children) != len(b.Children) {
			return TypeNode{}, validationError(at, path, "tuple branches have different arity %d and %d", len(a.Children), len(b.Children))
		}
	}

	longer, shorter := a, b
	if len(b.Children) > len(a.Children) {
		longer, shorter = b, a
	}
	children := make([]TypeNode, len(longer.Children))
	for i := range longer.Children {
		if i >= len(shorter.Children) {
			children[i] = longer.Children[i]
			continue
		}
		m, err := mergeTypes(longer.Children[i], shorter.Children[i], at, path)
		if err != nil {
			return TypeNode{}, err
		}
		children[i] = m
	}
	return TypeNode{ParamType: a.ParamType, Children: children}, nil
}

// Equal reports whether two type trees are identical.
func (t TypeNode) Equal(other TypeNode) bool {
	if t.ParamType != other.ParamType || len(t.Children) != len(other.Children) {
		return false
	}
	for i := range t.Children {
		if !t.Children[i].Equal(other.Children[i]) {
			return false
		}
	}
	return true
}

// Skeleton builds the inert Pass tree decoding shape t.
func Skeleton(t TypeNode) Condition {
	out := Condition{ParamType: t.ParamType, Operator: Pass}
	if len(t.Children) > 0 {
		out.Children = make([]Condition, len(t.Children))
		for i, child := range t.Children {
			out.Children[i] = Skeleton(child)
		}
	}
	return out
}

// CheckTypes rejects logical nodes whose branches resolve to incompatible
// shapes. Branches may still differ in trailing Calldata/AbiEncoded
// components; Pad aligns those.
func CheckTypes(c Condition) error {
	_, err := TypeTree(c)
	return err
}

// CheckTypesStrict additionally requires sibling branches under every logical
// node, and the elements of every array, to have identical shapes.
func CheckTypesStrict(c Condition) error {
	if err := CheckTypes(c); err != nil {
		return err
	}
	var err error
	Walk(c, func(node Condition, path []int) bool {
		if err != nil {
			return false
		}
		if !node.IsLogical() && node.ParamType != Array {
			return true
		}
		var first *TypeNode
		for i, child := range node.Children {
			t, terr := typeTree(child, childPath(path, i))
			if terr != nil {
				err = terr
				return false
			}
			if t == nil {
				continue
			}
			if first == nil {
				first = t
				continue
			}
			if !first.Equal(*t) {
				err = validationError(node, childPath(path, i), "sibling branches have unequal shapes")
				return false
			}
		}
		return true
	})
	return err
}
