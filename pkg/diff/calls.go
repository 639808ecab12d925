// roles/pkg/diff/calls.go

package diff

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"zodiac/roles/pkg/conditions"
	"zodiac/roles/pkg/permissions"
)

// Call is one mutating operation of the Roles modifier.
type Call interface {
	Name() string
	isCall()
}

type AllowTarget struct {
	RoleKey          common.Hash                  `json:"roleKey"`
	TargetAddress    common.Address               `json:"targetAddress"`
	ExecutionOptions permissions.ExecutionOptions `json:"executionOptions"`
}

type ScopeTarget struct {
	RoleKey       common.Hash    `json:"roleKey"`
	TargetAddress common.Address `json:"targetAddress"`
}

type RevokeTarget struct {
	RoleKey       common.Hash    `json:"roleKey"`
	TargetAddress common.Address `json:"targetAddress"`
}

type AllowFunction struct {
	RoleKey          common.Hash                  `json:"roleKey"`
	TargetAddress    common.Address               `json:"targetAddress"`
	Selector         permissions.Selector         `json:"selector"`
	ExecutionOptions permissions.ExecutionOptions `json:"executionOptions"`
}

type ScopeFunction struct {
	RoleKey          common.Hash                  `json:"roleKey"`
	TargetAddress    common.Address               `json:"targetAddress"`
	Selector         permissions.Selector         `json:"selector"`
	Condition        conditions.Condition         `json:"condition"`
	ExecutionOptions permissions.ExecutionOptions `json:"executionOptions"`
}

type RevokeFunction struct {
	RoleKey       common.Hash          `json:"roleKey"`
	TargetAddress common.Address       `json:"targetAddress"`
	Selector      permissions.Selector `json:"selector"`
}

type AssignRoles struct {
	RoleKey common.Hash    `json:"roleKey"`
	Member  common.Address `json:"member"`
	Join    bool           `json:"join"`
}

type SetAllowance struct {
	Key       common.Hash  `json:"key"`
	Balance   *uint256.Int `json:"balance"`
	MaxRefill *uint256.Int `json:"maxRefill"`
	Refill    *uint256.Int `json:"refill"`
	Period    uint64       `json:"period"`
	Timestamp uint64       `json:"timestamp"`
}

// PostAnnotations publishes annotation changes for a role. Remove lists
// URIs.
type PostAnnotations struct {
	RoleKey common.Hash              `json:"roleKey"`
	Add     []permissions.Annotation `json:"add"`
	Remove  []string                 `json:"remove"`
}

func (AllowTarget) Name() string     { return "allowTarget" }
func (ScopeTarget) Name() string     { return "scopeTarget" }
func (RevokeTarget) Name() string    { return "revokeTarget" }
func (AllowFunction) Name() string   { return "allowFunction" }
func (ScopeFunction) Name() string   { return "scopeFunction" }
func (RevokeFunction) Name() string  { return "revokeFunction" }
func (AssignRoles) Name() string     { return "assignRoles" }
func (SetAllowance) Name() string    { return "setAllowance" }
func (PostAnnotations) Name() string { return "postAnnotations" }

func (AllowTarget) isCall()     {}
func (ScopeTarget) isCall()     {}
func (RevokeTarget) isCall()    {}
func (AllowFunction) isCall()   {}
func (ScopeFunction) isCall()   {}
func (RevokeFunction) isCall()  {}
func (AssignRoles) isCall()     {}
func (SetAllowance) isCall()    {}
func (PostAnnotations) isCall() {}

// MarshalCall encodes c as a JSON object carrying a "call" discriminator.
func MarshalCall(c Call) ([]byte, error) {
	body, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	name, err := json.Marshal(c.Name())
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString(`{"call":`)
	buf.Write(name)
	if len(body) > 2 {
		buf.WriteByte(',')
		buf.Write(body[1:])
	} else {
		buf.WriteByte('}')
	}
	return buf.Bytes(), nil
}

// UnmarshalCall decodes a call encoded by MarshalCall.
func UnmarshalCall(data []byte) (Call, error) {
	var envelope struct {
		Call string `json:"call"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, err
	}

	var c Call
	var err error
	switch envelope.Call {
	case "allowTarget":
		var v AllowTarget
		err = json.Unmarshal(data, &v)
		c = v
	case "scopeTarget":
		var v ScopeTarget
		err = json.Unmarshal(data, &v)
		c = v
	case "revokeTarget":
		var v RevokeTarget
		err = json.Unmarshal(data, &v)
		c = v
	case "allowFunction":
		var v AllowFunction
		err = json.Unmarshal(data, &v)
		c = v
	case "scopeFunction":
		var v ScopeFunction
		err = json.Unmarshal(data, &v)
		c = v
	case "revokeFunction":
		var v RevokeFunction
		err = json.Unmarshal(data, &v)
		c = v
	case "assignRoles":
		var v AssignRoles
		err = json.Unmarshal(data, &v)
		c = v
	case "setAllowance":
		var v SetAllowance
		err = json.Unmarshal(data, &v)
		c = v
	case "postAnnotations":
		var v PostAnnotations
		err = json.Unmarshal(data, &v)
		c = v
	default:
		return nil, fmt.Errorf("unknown call %q", envelope.Call)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}
