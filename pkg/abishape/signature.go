// roles/pkg/abishape/signature.go

package abishape

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// MethodFromSignature builds a method from a human readable signature such
// as "transfer(address,uint256)" or "exec((address,uint256)[],bytes)".
// Arguments are named arg0, arg1 and so on.
func MethodFromSignature(signature string) (abi.Method, error) {
	signature = strings.ReplaceAll(signature, " ", "")
	open := strings.IndexByte(signature, '(')
	if open <= 0 || !strings.HasSuffix(signature, ")") {
		return abi.Method{}, fmt.Errorf("invalid function signature %q", signature)
	}

	name, args, err := parseSelector(signature, open)
	if err != nil {
		return abi.Method{}, fmt.Errorf("invalid function signature %q: %w", signature, err)
	}

	inputs := make(abi.Arguments, len(args))
	for i, arg := range args {
		t, err := abi.NewType(arg.Type, "", arg.Components)
		if err != nil {
			return abi.Method{}, fmt.Errorf("invalid type %q in %q: %w", arg.Type, signature, err)
		}
		inputs[i] = abi.Argument{Name: fmt.Sprintf("arg%d", i), Type: t}
	}
	return abi.NewMethod(name, name, abi.Function, "nonpayable", false, false, inputs, nil), nil
}

// parseSelector splits signature into its name and argument types. Tuple
// arrays that abi.ParseSelector cannot express, such as "(uint8,bool)[2]" or
// "(uint256)[][]", are handled by parseType.
func parseSelector(signature string, open int) (string, []abi.ArgumentMarshaling, error) {
	if selector, err := abi.ParseSelector(signature); err == nil {
		return selector.Name, selector.Inputs, nil
	}

	params, err := splitTopLevel(signature[open+1 : len(signature)-1])
	if err != nil {
		return "", nil, err
	}
	args := make([]abi.ArgumentMarshaling, len(params))
	for i, param := range params {
		typ, components, err := parseType(param)
		if err != nil {
			return "", nil, err
		}
		args[i] = abi.ArgumentMarshaling{Name: fmt.Sprintf("arg%d", i), Type: typ, Components: components}
	}
	return signature[:open], args, nil
}

// parseType turns "(uint256,bytes)[2]" into the "tuple[2]" form abi.NewType
// expects, plus its components.
func parseType(s string) (string, []abi.ArgumentMarshaling, error) {
	if !strings.HasPrefix(s, "(") {
		if s == "" {
			return "", nil, fmt.Errorf("empty type")
		}
		return s, nil, nil
	}

	depth := 0
	end := -1
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 && end < 0 {
				end = i
			}
		}
	}
	if end < 0 || depth != 0 {
		return "", nil, fmt.Errorf("unbalanced parentheses in %q", s)
	}

	parts, err := splitTopLevel(s[1:end])
	if err != nil {
		return "", nil, err
	}
	components := make([]abi.ArgumentMarshaling, len(parts))
	for i, part := range parts {
		typ, nested, err := parseType(part)
		if err != nil {
			return "", nil, err
		}
		components[i] = abi.ArgumentMarshaling{Name: fmt.Sprintf("field%d", i), Type: typ, Components: nested}
	}
	return "tuple" + s[end+1:], components, nil
}

func splitTopLevel(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	var parts []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced parentheses")
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("unbalanced parentheses")
	}
	return append(parts, s[start:]), nil
}
