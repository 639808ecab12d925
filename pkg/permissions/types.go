// roles/pkg/permissions/types.go

package permissions

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"zodiac/roles/pkg/conditions"
)

// ExecutionOptions says whether a call may carry ether and whether it may be
// a delegatecall. Values match the on-chain enum.
type ExecutionOptions uint8

const (
	ExecutionOptionsNone ExecutionOptions = iota
	ExecutionOptionsSend
	ExecutionOptionsDelegateCall
	ExecutionOptionsBoth
)

// NewExecutionOptions combines send and delegatecall flags.
func NewExecutionOptions(send, delegateCall bool) ExecutionOptions {
	var opts ExecutionOptions
	if send {
		opts |= ExecutionOptionsSend
	}
	if delegateCall {
		opts |= ExecutionOptionsDelegateCall
	}
	return opts
}

func (o ExecutionOptions) Send() bool         { return o&ExecutionOptionsSend != 0 }
func (o ExecutionOptions) DelegateCall() bool { return o&ExecutionOptionsDelegateCall != 0 }

// Covers reports whether o grants everything other grants.
func (o ExecutionOptions) Covers(other ExecutionOptions) bool {
	return o&other == other
}

var executionOptionNames = []string{"None", "Send", "DelegateCall", "Both"}

func (o ExecutionOptions) String() string {
	if int(o) < len(executionOptionNames) {
		return executionOptionNames[o]
	}
	return fmt.Sprintf("ExecutionOptions(%d)", uint8(o))
}

func (o ExecutionOptions) MarshalText() ([]byte, error) {
	if int(o) >= len(executionOptionNames) {
		return nil, fmt.Errorf("unknown execution options %d", uint8(o))
	}
	return []byte(o.String()), nil
}

func (o *ExecutionOptions) UnmarshalText(text []byte) error {
	for i, name := range executionOptionNames {
		if name == string(text) {
			*o = ExecutionOptions(i)
			return nil
		}
	}
	return fmt.Errorf("unknown execution options %q", string(text))
}

// Clearance is how much of a target a role may call.
type Clearance uint8

const (
	ClearanceNone Clearance = iota
	ClearanceTarget
	ClearanceFunction
)

var clearanceNames = []string{"None", "Target", "Function"}

func (c Clearance) String() string {
	if int(c) < len(clearanceNames) {
		return clearanceNames[c]
	}
	return fmt.Sprintf("Clearance(%d)", uint8(c))
}

func (c Clearance) MarshalText() ([]byte, error) {
	if int(c) >= len(clearanceNames) {
		return nil, fmt.Errorf("unknown clearance %d", uint8(c))
	}
	return []byte(c.String()), nil
}

func (c *Clearance) UnmarshalText(text []byte) error {
	for i, name := range clearanceNames {
		if name == string(text) {
			*c = Clearance(i)
			return nil
		}
	}
	return fmt.Errorf("unknown clearance %q", string(text))
}

// Selector is a 4 byte function selector.
type Selector [4]byte

// SelectorFromSignature hashes a canonical function signature such as
// "transfer(address,uint256)".
func SelectorFromSignature(signature string) Selector {
	var s Selector
	copy(s[:], crypto.Keccak256([]byte(strings.ReplaceAll(signature, " ", "")))[:4])
	return s
}

// ParseSelector accepts either a 0x prefixed 4 byte hex string or a function
// signature.
func ParseSelector(s string) (Selector, error) {
	if strings.Contains(s, "(") {
		return SelectorFromSignature(s), nil
	}
	var sel Selector
	if err := sel.UnmarshalText([]byte(s)); err != nil {
		return Selector{}, err
	}
	return sel, nil
}

func (s Selector) String() string {
	return "0x" + hex.EncodeToString(s[:])
}

func (s Selector) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Selector) UnmarshalText(text []byte) error {
	raw := strings.TrimPrefix(strings.TrimPrefix(string(text), "0x"), "0X")
	b, err := hex.DecodeString(raw)
	if err != nil || len(b) != 4 {
		return fmt.Errorf("invalid selector %q", string(text))
	}
	copy(s[:], b)
	return nil
}

// Permission is the flat authoring unit. A nil Selector allows the whole
// target. A nil Condition leaves the function wildcarded.
type Permission struct {
	TargetAddress common.Address        `json:"targetAddress"`
	Selector      *Selector             `json:"selector,omitempty"`
	Condition     *conditions.Condition `json:"condition,omitempty"`
	Send          bool                  `json:"send,omitempty"`
	DelegateCall  bool                  `json:"delegatecall,omitempty"`
}

func (p Permission) ExecutionOptions() ExecutionOptions {
	return NewExecutionOptions(p.Send, p.DelegateCall)
}

func (p Permission) String() string {
	var sb strings.Builder
	sb.WriteString(p.TargetAddress.Hex())
	if p.Selector != nil {
		sb.WriteString(".")
		sb.WriteString(p.Selector.String())
	}
	if p.Condition != nil {
		sb.WriteString(" scoped")
	}
	if opts := p.ExecutionOptions(); opts != ExecutionOptionsNone {
		sb.WriteString(" ")
		sb.WriteString(opts.String())
	}
	return sb.String()
}

type Function struct {
	Selector         Selector              `json:"selector"`
	ExecutionOptions ExecutionOptions      `json:"executionOptions"`
	Wildcarded       bool                  `json:"wildcarded"`
	Condition        *conditions.Condition `json:"condition,omitempty"`
}

type Target struct {
	Address          common.Address   `json:"address"`
	Clearance        Clearance        `json:"clearance"`
	ExecutionOptions ExecutionOptions `json:"executionOptions"`
	Functions        []Function       `json:"functions"`
}

// FunctionBySelector returns the function entry for sel, if any.
func (t Target) FunctionBySelector(sel Selector) (Function, bool) {
	for _, f := range t.Functions {
		if f.Selector == sel {
			return f, true
		}
	}
	return Function{}, false
}

// Annotation points at a preset definition served over HTTP, described by an
// OpenAPI schema.
type Annotation struct {
	URI    string `json:"uri"`
	Schema string `json:"schema"`
}

// PermissionSet is a group of permissions, optionally produced by a preset
// annotation.
type PermissionSet struct {
	Annotation  *Annotation  `json:"annotation,omitempty"`
	Permissions []Permission `json:"permissions"`
}
