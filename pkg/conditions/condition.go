// roles/pkg/conditions/condition.go

package conditions

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ParamType describes how the slice of calldata scoped by a node is encoded.
// Values match the on-chain enum.
type ParamType uint8

const (
	None ParamType = iota
	Static
	Dynamic
	Tuple
	Array
	Calldata
	AbiEncoded
	Dynamic32
)

var paramTypeNames = map[ParamType]string{
	None:       "None",
	Static:     "Static",
	Dynamic:    "Dynamic",
	Tuple:      "Tuple",
	Array:      "Array",
	Calldata:   "Calldata",
	AbiEncoded: "AbiEncoded",
	Dynamic32:  "Dynamic32",
}

func (p ParamType) String() string {
	if name, ok := paramTypeNames[p]; ok {
		return name
	}
	return "ParamType(" + strconv.Itoa(int(p)) + ")"
}

// IsComplex reports whether nodes of this type carry child nodes describing
// their components.
func (p ParamType) IsComplex() bool {
	switch p {
	case Tuple, Array, Calldata, AbiEncoded:
		return true
	}
	return false
}

func (p ParamType) MarshalText() ([]byte, error) {
	if _, ok := paramTypeNames[p]; !ok {
		return nil, fmt.Errorf("unknown param type %d", uint8(p))
	}
	return []byte(p.String()), nil
}

func (p *ParamType) UnmarshalText(text []byte) error {
	for value, name := range paramTypeNames {
		if name == string(text) {
			*p = value
			return nil
		}
	}
	n, err := strconv.ParseUint(string(text), 10, 8)
	if err != nil {
		return fmt.Errorf("unknown param type %q", string(text))
	}
	if _, ok := paramTypeNames[ParamType(n)]; !ok {
		return fmt.Errorf("unknown param type %d", n)
	}
	*p = ParamType(n)
	return nil
}

// Operator is the comparison or structural operator of a node. Values match
// the on-chain enum, gaps included.
type Operator uint8

const (
	Pass                 Operator = 0
	And                  Operator = 1
	Or                   Operator = 2
	Nor                  Operator = 3
	Matches              Operator = 5
	ArraySome            Operator = 6
	ArrayEvery           Operator = 7
	ArraySubset          Operator = 8
	EqualToAvatar        Operator = 15
	EqualTo              Operator = 16
	GreaterThan          Operator = 17
	LessThan             Operator = 18
	SignedIntGreaterThan Operator = 19
	SignedIntLessThan    Operator = 20
	Bitmask              Operator = 21
	Custom               Operator = 22
	WithinAllowance      Operator = 28
	EtherWithinAllowance Operator = 29
	CallWithinAllowance  Operator = 30
)

var operatorNames = map[Operator]string{
	Pass:                 "Pass",
	And:                  "And",
	Or:                   "Or",
	Nor:                  "Nor",
	Matches:              "Matches",
	ArraySome:            "ArraySome",
	ArrayEvery:           "ArrayEvery",
	ArraySubset:          "ArraySubset",
	EqualToAvatar:        "EqualToAvatar",
	EqualTo:              "EqualTo",
	GreaterThan:          "GreaterThan",
	LessThan:             "LessThan",
	SignedIntGreaterThan: "SignedIntGreaterThan",
	SignedIntLessThan:    "SignedIntLessThan",
	Bitmask:              "Bitmask",
	Custom:               "Custom",
	WithinAllowance:      "WithinAllowance",
	EtherWithinAllowance: "EtherWithinAllowance",
	CallWithinAllowance:  "CallWithinAllowance",
}

func (o Operator) String() string {
	if name, ok := operatorNames[o]; ok {
		return name
	}
	return "Operator(" + strconv.Itoa(int(o)) + ")"
}

// IsLogical reports whether the operator is a boolean combinator.
func (o Operator) IsLogical() bool {
	return o == And || o == Or || o == Nor
}

func (o Operator) MarshalText() ([]byte, error) {
	if _, ok := operatorNames[o]; !ok {
		return nil, fmt.Errorf("unknown operator %d", uint8(o))
	}
	return []byte(o.String()), nil
}

func (o *Operator) UnmarshalText(text []byte) error {
	for value, name := range operatorNames {
		if name == string(text) {
			*o = value
			return nil
		}
	}
	n, err := strconv.ParseUint(string(text), 10, 8)
	if err != nil {
		return fmt.Errorf("unknown operator %q", string(text))
	}
	if _, ok := operatorNames[Operator(n)]; !ok {
		return fmt.Errorf("unknown operator %d", n)
	}
	*o = Operator(n)
	return nil
}

// Condition is one node of a scoping rule over an ABI encoded value.
type Condition struct {
	ParamType ParamType     `json:"paramType"`
	Operator  Operator      `json:"operator"`
	CompValue hexutil.Bytes `json:"compValue,omitempty"`
	Children  []Condition   `json:"children,omitempty"`
}

// IsLogical reports whether c is a pure boolean combinator.
func (c Condition) IsLogical() bool {
	return c.ParamType == None && c.Operator.IsLogical()
}

// IsAllowanceLeaf reports whether c is one of the None-typed allowance checks
// that do not consume any calldata.
func (c Condition) IsAllowanceLeaf() bool {
	return c.ParamType == None && (c.Operator == EtherWithinAllowance || c.Operator == CallWithinAllowance)
}

// IsInert reports whether c places no constraint at all: a Pass node whose
// whole subtree is Pass.
func (c Condition) IsInert() bool {
	if c.Operator != Pass {
		return false
	}
	for _, child := range c.Children {
		if !child.IsInert() {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of c.
func (c Condition) Clone() Condition {
	out := Condition{ParamType: c.ParamType, Operator: c.Operator}
	if c.CompValue != nil {
		out.CompValue = append(hexutil.Bytes{}, c.CompValue...)
	}
	if c.Children != nil {
		out.Children = make([]Condition, len(c.Children))
		for i, child := range c.Children {
			out.Children[i] = child.Clone()
		}
	}
	return out
}

// Walk visits c and its descendants in pre-order. The path holds the child
// indexes leading to the visited node. Returning false skips the subtree.
func Walk(c Condition, fn func(node Condition, path []int) bool) {
	walk(c, nil, fn)
}

func walk(c Condition, path []int, fn func(Condition, []int) bool) {
	if !fn(c, path) {
		return
	}
	for i, child := range c.Children {
		walk(child, append(path[:len(path):len(path)], i), fn)
	}
}

// FormatPath renders a child index path the way errors report it.
func FormatPath(path []int) string {
	if len(path) == 0 {
		return "root"
	}
	parts := make([]string, len(path))
	for i, p := range path {
		parts[i] = strconv.Itoa(p)
	}
	return "root." + strings.Join(parts, ".")
}

// String pretty-prints the tree, one node per line.
func (c Condition) String() string {
	var sb strings.Builder
	c.format(&sb, 0)
	return strings.TrimSuffix(sb.String(), "\n")
}

func (c Condition) format(sb *strings.Builder, depth int) {
	sb.WriteString(strings.Repeat("  ", depth))
	sb.WriteString(c.Operator.String())
	sb.WriteString("(")
	sb.WriteString(c.ParamType.String())
	if len(c.CompValue) > 0 {
		sb.WriteString(", ")
		sb.WriteString(c.CompValue.String())
	}
	sb.WriteString(")\n")
	for _, child := range c.Children {
		child.format(sb, depth+1)
	}
}
