// roles/pkg/conditions/flatten.go

package conditions

import (
	"github.com/ethereum/go-ethereum/common/hexutil"

	"zodiac/roles/pkg/logging"
)

// MaxFlatConditions bounds the size of a flattened tree. Parent indexes are
// a single byte on chain.
const MaxFlatConditions = 256

// FlatCondition is one entry of the breadth-first encoding the Roles contract
// accepts. The root is its own parent.
type FlatCondition struct {
	Parent    uint8         `json:"parent"`
	ParamType ParamType     `json:"paramType"`
	Operator  Operator      `json:"operator"`
	CompValue hexutil.Bytes `json:"compValue"`
}

// Flatten encodes c breadth first, the order the Roles contract stores and
// indexes conditions in, rather than a depth-first array order. The children
// of every node appear as a contiguous run and parents precede their
// children, which keeps parent indexes non-decreasing.
func Flatten(c Condition) ([]FlatCondition, error) {
	type queued struct {
		node   Condition
		parent int
	}
	var out []FlatCondition
	queue := []queued{{node: c, parent: 0}}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		index := len(out)
		if index >= MaxFlatConditions {
			return nil, logging.NewError(logging.ErrorTypeValidation, "condition tree exceeds the maximum number of nodes", nil, map[string]interface{}{
				"max": MaxFlatConditions,
			})
		}
		compValue := next.node.CompValue
		if compValue == nil {
			compValue = hexutil.Bytes{}
		}
		out = append(out, FlatCondition{
			Parent:    uint8(next.parent),
			ParamType: next.node.ParamType,
			Operator:  next.node.Operator,
			CompValue: compValue,
		})
		for _, child := range next.node.Children {
			queue = append(queue, queued{node: child, parent: index})
		}
	}
	return out, nil
}

// Unflatten rebuilds the tree from its breadth-first encoding.
func Unflatten(flat []FlatCondition) (Condition, error) {
	if len(flat) == 0 {
		return Condition{}, logging.NewError(logging.ErrorTypeValidation, "empty flattened condition", nil, nil)
	}
	if flat[0].Parent != 0 {
		return Condition{}, logging.NewError(logging.ErrorTypeValidation, "root must be its own parent", nil, nil)
	}

	children := make([][]int, len(flat))
	for i := 1; i < len(flat); i++ {
		parent := int(flat[i].Parent)
		if parent >= i || parent < int(flat[i-1].Parent) {
			return Condition{}, logging.NewError(logging.ErrorTypeValidation, "parent indexes must precede their children and be non-decreasing", nil, map[string]interface{}{
				"index":  i,
				"parent": parent,
			})
		}
		children[parent] = append(children[parent], i)
	}

	var build func(i int) Condition
	build = func(i int) Condition {
		node := Condition{ParamType: flat[i].ParamType, Operator: flat[i].Operator}
		if len(flat[i].CompValue) > 0 {
			node.CompValue = append(hexutil.Bytes{}, flat[i].CompValue...)
		}
		for _, child := range children[i] {
			node.Children = append(node.Children, build(child))
		}
		return node
	}
	return build(0), nil
}
