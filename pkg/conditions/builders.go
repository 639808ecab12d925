// roles/pkg/conditions/builders.go

package conditions

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
)

// Builders construct nodes without validating them. Validation happens when a
// tree is normalized or projected.

func PassNode(paramType ParamType, children ...Condition) Condition {
	return Condition{ParamType: paramType, Operator: Pass, Children: children}
}

// EqualToValue compares the encoded value. Complex types pass their type tree as
// children.
func EqualToValue(paramType ParamType, value []byte, typeTree ...Condition) Condition {
	return Condition{ParamType: paramType, Operator: EqualTo, CompValue: value, Children: typeTree}
}

// EqualToWord compares a Static value against a 32 byte word.
func EqualToWord(word common.Hash) Condition {
	return Condition{ParamType: Static, Operator: EqualTo, CompValue: word.Bytes()}
}

func GreaterThanWord(word common.Hash) Condition {
	return Condition{ParamType: Static, Operator: GreaterThan, CompValue: word.Bytes()}
}

func LessThanWord(word common.Hash) Condition {
	return Condition{ParamType: Static, Operator: LessThan, CompValue: word.Bytes()}
}

func SignedIntGreaterThanWord(word common.Hash) Condition {
	return Condition{ParamType: Static, Operator: SignedIntGreaterThan, CompValue: word.Bytes()}
}

func SignedIntLessThanWord(word common.Hash) Condition {
	return Condition{ParamType: Static, Operator: SignedIntLessThan, CompValue: word.Bytes()}
}

// BitmaskValue packs shift, mask and expected into the 32 byte compValue:
// 2 bytes shift, 15 bytes mask, 15 bytes expected.
func BitmaskValue(paramType ParamType, shift uint16, mask, expected [15]byte) Condition {
	value := make([]byte, 32)
	binary.BigEndian.PutUint16(value[:2], shift)
	copy(value[2:17], mask[:])
	copy(value[17:], expected[:])
	return Condition{ParamType: paramType, Operator: Bitmask, CompValue: value}
}

func EqualToAvatarNode() Condition {
	return Condition{ParamType: Static, Operator: EqualToAvatar}
}

func WithinAllowanceKey(key common.Hash) Condition {
	return Condition{ParamType: Static, Operator: WithinAllowance, CompValue: key.Bytes()}
}

func EtherWithinAllowanceKey(key common.Hash) Condition {
	return Condition{ParamType: None, Operator: EtherWithinAllowance, CompValue: key.Bytes()}
}

func CallWithinAllowanceKey(key common.Hash) Condition {
	return Condition{ParamType: None, Operator: CallWithinAllowance, CompValue: key.Bytes()}
}

// CustomAdapter delegates the check to an adapter contract, passing up to 12
// bytes of extra data.
func CustomAdapter(paramType ParamType, adapter common.Address, extra []byte) Condition {
	value := append(adapter.Bytes(), extra...)
	return Condition{ParamType: paramType, Operator: Custom, CompValue: value}
}

func MatchesNode(paramType ParamType, children ...Condition) Condition {
	return Condition{ParamType: paramType, Operator: Matches, Children: children}
}

// CalldataMatches scopes the arguments of a function call, in order.
func CalldataMatches(children ...Condition) Condition {
	return MatchesNode(Calldata, children...)
}

// AbiEncodedMatches scopes an ABI encoded blob nested in a bytes parameter.
func AbiEncodedMatches(children ...Condition) Condition {
	return MatchesNode(AbiEncoded, children...)
}

func TupleMatches(children ...Condition) Condition {
	return MatchesNode(Tuple, children...)
}

func ArraySomeOf(element Condition) Condition {
	return Condition{ParamType: Array, Operator: ArraySome, Children: []Condition{element}}
}

func ArrayEveryOf(element Condition) Condition {
	return Condition{ParamType: Array, Operator: ArrayEvery, Children: []Condition{element}}
}

func ArraySubsetOf(elements ...Condition) Condition {
	return Condition{ParamType: Array, Operator: ArraySubset, Children: elements}
}

func AndOf(children ...Condition) Condition {
	return Condition{ParamType: None, Operator: And, Children: children}
}

func OrOf(children ...Condition) Condition {
	return Condition{ParamType: None, Operator: Or, Children: children}
}

func NorOf(children ...Condition) Condition {
	return Condition{ParamType: None, Operator: Nor, Children: children}
}

// OneOf allows any of the given encoded values.
func OneOf(paramType ParamType, values ...[]byte) Condition {
	children := make([]Condition, len(values))
	for i, v := range values {
		children[i] = EqualToValue(paramType, v)
	}
	return OrOf(children...)
}
