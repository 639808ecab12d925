// roles/pkg/abishape/shape.go

// Package abishape resolves ABI types into the shapes condition trees scope.
// A shape is resolved once from go-ethereum's abi types and then drives
// skeleton generation, integrity checks and value encoding, so nothing
// downstream inspects ABI type strings.
package abishape

import (
	"github.com/ethereum/go-ethereum/accounts/abi"

	"zodiac/roles/pkg/conditions"
)

type Kind int

const (
	// Atomic values occupy a single 32 byte word.
	Atomic Kind = iota
	// DynamicBytes covers bytes and string.
	DynamicBytes
	Tuple
	// FixedArray is T[N]. It is scoped positionally, like a tuple.
	FixedArray
	// DynamicArray is T[].
	DynamicArray
	// Call is the argument list of a function, preceded by its selector.
	Call
)

func (k Kind) String() string {
	switch k {
	case Atomic:
		return "Atomic"
	case DynamicBytes:
		return "DynamicBytes"
	case Tuple:
		return "Tuple"
	case FixedArray:
		return "FixedArray"
	case DynamicArray:
		return "DynamicArray"
	case Call:
		return "Call"
	}
	return "Unknown"
}

type Shape struct {
	Kind       Kind
	Name       string
	Type       string
	Components []Shape
	Elem       *Shape
	Size       int
}

// FromType resolves the shape of a single ABI type.
func FromType(t abi.Type) Shape {
	shape := Shape{Type: t.String()}
	switch t.T {
	case abi.StringTy, abi.BytesTy:
		shape.Kind = DynamicBytes
	case abi.SliceTy:
		shape.Kind = DynamicArray
		elem := FromType(*t.Elem)
		shape.Elem = &elem
	case abi.ArrayTy:
		shape.Kind = FixedArray
		elem := FromType(*t.Elem)
		shape.Elem = &elem
		shape.Size = t.Size
	case abi.TupleTy:
		shape.Kind = Tuple
		shape.Components = make([]Shape, len(t.TupleElems))
		for i, elem := range t.TupleElems {
			shape.Components[i] = FromType(*elem)
			if i < len(t.TupleRawNames) {
				shape.Components[i].Name = t.TupleRawNames[i]
			}
		}
	default:
		shape.Kind = Atomic
	}
	return shape
}

// FromArguments resolves an argument list, keeping argument names.
func FromArguments(args abi.Arguments) []Shape {
	shapes := make([]Shape, len(args))
	for i, arg := range args {
		shapes[i] = FromType(arg.Type)
		shapes[i].Name = arg.Name
	}
	return shapes
}

// FromMethod resolves the calldata shape of a method.
func FromMethod(m abi.Method) Shape {
	return Shape{
		Kind:       Call,
		Name:       m.Name,
		Type:       m.Sig,
		Components: FromArguments(m.Inputs),
	}
}

// IsDynamic reports whether values of the shape are encoded out of line.
func (s Shape) IsDynamic() bool {
	switch s.Kind {
	case DynamicBytes, DynamicArray, Call:
		return true
	case FixedArray:
		return s.Size > 0 && s.Elem.IsDynamic()
	case Tuple:
		for _, c := range s.Components {
			if c.IsDynamic() {
				return true
			}
		}
	}
	return false
}

// ParamType is the condition param type that decodes the shape.
func (s Shape) ParamType() conditions.ParamType {
	switch s.Kind {
	case DynamicBytes:
		return conditions.Dynamic
	case Tuple, FixedArray:
		return conditions.Tuple
	case DynamicArray:
		return conditions.Array
	case Call:
		return conditions.Calldata
	}
	return conditions.Static
}

// Positional lists the components scoped by position: the components of a
// tuple or call, or Size copies of the element of a fixed array.
func (s Shape) Positional() []Shape {
	switch s.Kind {
	case Tuple, Call:
		return s.Components
	case FixedArray:
		out := make([]Shape, s.Size)
		for i := range out {
			out[i] = *s.Elem
		}
		return out
	}
	return nil
}

// Skeleton builds the inert Pass tree that decodes the shape.
func (s Shape) Skeleton() conditions.Condition {
	switch s.Kind {
	case DynamicArray:
		return conditions.PassNode(conditions.Array, s.Elem.Skeleton())
	case Tuple, FixedArray, Call:
		positional := s.Positional()
		if len(positional) == 0 {
			return conditions.PassNode(s.ParamType())
		}
		children := make([]conditions.Condition, len(positional))
		for i, c := range positional {
			children[i] = c.Skeleton()
		}
		return conditions.PassNode(s.ParamType(), children...)
	}
	return conditions.PassNode(s.ParamType())
}

// TypeChildren returns the children a comparison node on this shape carries
// to describe its components. Atomic and byte shapes have none.
func (s Shape) TypeChildren() []conditions.Condition {
	if s.Kind == Atomic || s.Kind == DynamicBytes {
		return nil
	}
	return s.Skeleton().Children
}
