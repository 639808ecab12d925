// roles/pkg/encode/encoder.go

// Package encode turns diff calls into transactions against a Roles
// modifier and the Poster contract used for annotations.
package encode

import (
	"encoding/json"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"zodiac/roles/pkg/conditions"
	"zodiac/roles/pkg/diff"
	"zodiac/roles/pkg/logging"
)

// DefaultPoster is the canonical Poster deployment.
var DefaultPoster = common.HexToAddress("0x000000000000cd17345801aa8147b8D3950260FF")

const AnnotationTag = "ROLES_PERMISSION_ANNOTATION"

var (
	rolesContract  = mustParse(rolesABI)
	posterContract = mustParse(posterABI)
)

func mustParse(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

type Transaction struct {
	To   common.Address `json:"to"`
	Data hexutil.Bytes  `json:"data"`
}

type Encoder struct {
	RolesMod common.Address
	Poster   common.Address
}

func NewEncoder(rolesMod common.Address) *Encoder {
	return &Encoder{RolesMod: rolesMod, Poster: DefaultPoster}
}

// flatCondition mirrors the ConditionFlat struct of the modifier.
type flatCondition struct {
	Parent    uint8
	ParamType uint8
	Operator  uint8
	CompValue []byte
}

func maxUint128() *uint256.Int {
	return new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 128), uint256.NewInt(1))
}

func uint128(v *uint256.Int) (*big.Int, error) {
	if v == nil {
		return new(big.Int), nil
	}
	if v.Gt(maxUint128()) {
		return nil, fmt.Errorf("value %s exceeds uint128", v.Dec())
	}
	return v.ToBig(), nil
}

func (e *Encoder) pack(method string, args ...interface{}) (Transaction, error) {
	data, err := rolesContract.Pack(method, args...)
	if err != nil {
		return Transaction{}, logging.NewError(logging.ErrorTypeValidation, "cannot encode "+method, err, nil)
	}
	return Transaction{To: e.RolesMod, Data: data}, nil
}

// Encode encodes a single call.
func (e *Encoder) Encode(call diff.Call) (Transaction, error) {
	switch c := call.(type) {
	case diff.AllowTarget:
		return e.pack("allowTarget", [32]byte(c.RoleKey), c.TargetAddress, uint8(c.ExecutionOptions))
	case diff.ScopeTarget:
		return e.pack("scopeTarget", [32]byte(c.RoleKey), c.TargetAddress)
	case diff.RevokeTarget:
		return e.pack("revokeTarget", [32]byte(c.RoleKey), c.TargetAddress)
	case diff.AllowFunction:
		return e.pack("allowFunction", [32]byte(c.RoleKey), c.TargetAddress, [4]byte(c.Selector), uint8(c.ExecutionOptions))
	case diff.ScopeFunction:
		flat, err := conditions.Flatten(c.Condition)
		if err != nil {
			return Transaction{}, err
		}
		packed := make([]flatCondition, len(flat))
		for i, f := range flat {
			packed[i] = flatCondition{Parent: f.Parent, ParamType: uint8(f.ParamType), Operator: uint8(f.Operator), CompValue: f.CompValue}
		}
		return e.pack("scopeFunction", [32]byte(c.RoleKey), c.TargetAddress, [4]byte(c.Selector), packed, uint8(c.ExecutionOptions))
	case diff.RevokeFunction:
		return e.pack("revokeFunction", [32]byte(c.RoleKey), c.TargetAddress, [4]byte(c.Selector))
	case diff.AssignRoles:
		return e.pack("assignRoles", c.Member, [][32]byte{c.RoleKey}, []bool{c.Join})
	case diff.SetAllowance:
		balance, err := uint128(c.Balance)
		if err != nil {
			return Transaction{}, logging.NewError(logging.ErrorTypeValidation, "invalid allowance balance", err, nil)
		}
		maxRefill, err := uint128(c.MaxRefill)
		if err != nil {
			return Transaction{}, logging.NewError(logging.ErrorTypeValidation, "invalid allowance maxRefill", err, nil)
		}
		refill, err := uint128(c.Refill)
		if err != nil {
			return Transaction{}, logging.NewError(logging.ErrorTypeValidation, "invalid allowance refill", err, nil)
		}
		return e.pack("setAllowance", [32]byte(c.Key), balance, maxRefill, refill, c.Period, c.Timestamp)
	case diff.PostAnnotations:
		return e.encodeAnnotations(c)
	}
	return Transaction{}, fmt.Errorf("unsupported call %T", call)
}

type annotationGroup struct {
	URIs   []string `json:"uris"`
	Schema string   `json:"schema"`
}

type annotationPost struct {
	RolesMod          string            `json:"rolesMod"`
	RoleKey           string            `json:"roleKey"`
	AddAnnotations    []annotationGroup `json:"addAnnotations,omitempty"`
	RemoveAnnotations []string          `json:"removeAnnotations,omitempty"`
}

func (e *Encoder) encodeAnnotations(c diff.PostAnnotations) (Transaction, error) {
	post := annotationPost{
		RolesMod:          strings.ToLower(e.RolesMod.Hex()),
		RoleKey:           c.RoleKey.Hex(),
		RemoveAnnotations: c.Remove,
	}
	bySchema := make(map[string][]string)
	for _, a := range c.Add {
		bySchema[a.Schema] = append(bySchema[a.Schema], a.URI)
	}
	schemas := make([]string, 0, len(bySchema))
	for schema := range bySchema {
		schemas = append(schemas, schema)
	}
	sort.Strings(schemas)
	for _, schema := range schemas {
		post.AddAnnotations = append(post.AddAnnotations, annotationGroup{URIs: bySchema[schema], Schema: schema})
	}

	content, err := json.Marshal(post)
	if err != nil {
		return Transaction{}, err
	}
	data, err := posterContract.Pack("post", string(content), AnnotationTag)
	if err != nil {
		return Transaction{}, logging.NewError(logging.ErrorTypeValidation, "cannot encode post", err, nil)
	}
	return Transaction{To: e.Poster, Data: data}, nil
}

// EncodeAll encodes calls in order. Consecutive role assignments for the
// same member are batched into one assignRoles transaction.
func (e *Encoder) EncodeAll(calls []diff.Call) ([]Transaction, error) {
	var out []Transaction
	for i := 0; i < len(calls); i++ {
		assign, ok := calls[i].(diff.AssignRoles)
		if !ok {
			tx, err := e.Encode(calls[i])
			if err != nil {
				logging.LogError(logging.Logger, err)
				return nil, fmt.Errorf("call %d (%s): %w", i, calls[i].Name(), err)
			}
			out = append(out, tx)
			continue
		}

		keys := [][32]byte{assign.RoleKey}
		memberOf := []bool{assign.Join}
		for i+1 < len(calls) {
			next, ok := calls[i+1].(diff.AssignRoles)
			if !ok || next.Member != assign.Member {
				break
			}
			keys = append(keys, next.RoleKey)
			memberOf = append(memberOf, next.Join)
			i++
		}
		tx, err := e.pack("assignRoles", assign.Member, keys, memberOf)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	logging.Logger.Debug().Int("calls", len(calls)).Int("transactions", len(out)).Msg("Encoded calls")
	return out, nil
}
