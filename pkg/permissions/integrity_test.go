package permissions

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zodiac/roles/pkg/abishape"
	"zodiac/roles/pkg/conditions"
	"zodiac/roles/pkg/logging"
)

const erc20ABI = `[
	{"type":"function","name":"transfer","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`

func TestCheckIntegrity(t *testing.T) {
	token, err := abi.JSON(strings.NewReader(erc20ABI))
	require.NoError(t, err)
	abis := map[common.Address]abi.ABI{targetA: token}

	tests := []struct {
		name    string
		targets []Target
		errType logging.ErrorType
	}{
		{
			name: "valid",
			targets: []Target{
				{Address: targetA, Clearance: ClearanceFunction, Functions: []Function{{Selector: transfer, Condition: recipientIs(1)}}},
				{Address: targetB, Clearance: ClearanceTarget},
			},
		},
		{
			name:    "duplicate target",
			targets: []Target{{Address: targetB, Clearance: ClearanceTarget}, {Address: targetB, Clearance: ClearanceTarget}},
			errType: logging.ErrorTypeIntegrity,
		},
		{
			name: "duplicate selector",
			targets: []Target{{Address: targetB, Clearance: ClearanceFunction, Functions: []Function{
				{Selector: transfer, Wildcarded: true}, {Selector: transfer, Wildcarded: true},
			}}},
			errType: logging.ErrorTypeIntegrity,
		},
		{
			name:    "target clearance with functions",
			targets: []Target{{Address: targetB, Clearance: ClearanceTarget, Functions: []Function{{Selector: transfer, Wildcarded: true}}}},
			errType: logging.ErrorTypeIntegrity,
		},
		{
			name:    "neither wildcarded nor scoped",
			targets: []Target{{Address: targetB, Clearance: ClearanceFunction, Functions: []Function{{Selector: transfer}}}},
			errType: logging.ErrorTypeIntegrity,
		},
		{
			name:    "wildcarded and scoped",
			targets: []Target{{Address: targetB, Clearance: ClearanceFunction, Functions: []Function{{Selector: transfer, Wildcarded: true, Condition: recipientIs(1)}}}},
			errType: logging.ErrorTypeIntegrity,
		},
		{
			name:    "malformed condition",
			targets: []Target{{Address: targetB, Clearance: ClearanceFunction, Functions: []Function{{Selector: transfer, Condition: Scoped(conditions.OrOf())}}}},
			errType: logging.ErrorTypeValidation,
		},
		{
			name: "more parameters than the abi",
			targets: []Target{{Address: targetA, Clearance: ClearanceFunction, Functions: []Function{{Selector: transfer, Condition: Scoped(conditions.CalldataMatches(
				conditions.PassNode(conditions.Static), conditions.PassNode(conditions.Static), conditions.EqualToValue(conditions.Static, word(1)),
			))}}}},
			errType: logging.ErrorTypeIntegrity,
		},
		{
			name: "dynamic type for an address",
			targets: []Target{{Address: targetA, Clearance: ClearanceFunction, Functions: []Function{{Selector: transfer, Condition: Scoped(conditions.CalldataMatches(
				conditions.EqualToValue(conditions.Dynamic, []byte{1}),
			))}}}},
			errType: logging.ErrorTypeIntegrity,
		},
		{
			name:    "selector missing from abi",
			targets: []Target{{Address: targetA, Clearance: ClearanceFunction, Functions: []Function{{Selector: SelectorFromSignature("mint(uint256)"), Wildcarded: true}, {Selector: SelectorFromSignature("burn(uint256)"), Condition: recipientIs(1)}}}},
			errType: logging.ErrorTypeIntegrity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckIntegrity(tt.targets, abis)
			if tt.errType == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, logging.IsType(err, tt.errType), err.Error())
		})
	}
}

func TestTargetIntegrityWithoutABI(t *testing.T) {
	target := Target{Address: targetA, Clearance: ClearanceFunction, Functions: []Function{{Selector: SelectorFromSignature("mint(uint256)"), Condition: recipientIs(1)}}}
	assert.NoError(t, TargetIntegrity(target, nil))
}

func TestDerivePermissionFromCall(t *testing.T) {
	method, err := abishape.MethodFromSignature("swap(uint8,address[],bytes,uint256)")
	require.NoError(t, err)

	path := []common.Address{common.HexToAddress("0x01"), common.HexToAddress("0x02")}
	packed, err := method.Inputs.Pack(uint8(3), path, []byte{0xca, 0xfe}, big.NewInt(100))
	require.NoError(t, err)
	calldata := append(append([]byte{}, method.ID...), packed...)

	t.Run("wildcarding the path", func(t *testing.T) {
		perm, err := DerivePermissionFromCall(targetA, method, calldata, 1)
		require.NoError(t, err)
		require.NotNil(t, perm.Selector)
		assert.Equal(t, method.ID, perm.Selector[:])
		require.NotNil(t, perm.Condition)

		c := *perm.Condition
		assert.Equal(t, conditions.Calldata, c.ParamType)
		assert.Equal(t, conditions.Matches, c.Operator)
		require.Len(t, c.Children, 4)

		assert.Equal(t, conditions.EqualTo, c.Children[0].Operator)
		assert.Equal(t, word(3), []byte(c.Children[0].CompValue))

		assert.True(t, c.Children[1].IsInert())
		assert.Equal(t, conditions.Array, c.Children[1].ParamType)

		assert.Equal(t, conditions.EqualTo, c.Children[2].Operator)
		assert.Equal(t, conditions.Dynamic, c.Children[2].ParamType)
		assert.Len(t, c.Children[2].CompValue, 64)

		assert.Equal(t, word(100), []byte(c.Children[3].CompValue))
	})

	t.Run("pinning the path", func(t *testing.T) {
		perm, err := DerivePermissionFromCall(targetA, method, calldata)
		require.NoError(t, err)
		path := perm.Condition.Children[1]
		assert.Equal(t, conditions.EqualTo, path.Operator)
		assert.Equal(t, conditions.Array, path.ParamType)
		require.Len(t, path.Children, 1)
		assert.Equal(t, conditions.Static, path.Children[0].ParamType)
	})

	t.Run("trailing wildcards are dropped", func(t *testing.T) {
		perm, err := DerivePermissionFromCall(targetA, method, calldata, 2, 3)
		require.NoError(t, err)
		assert.Len(t, perm.Condition.Children, 2)
	})

	t.Run("fully wildcarded", func(t *testing.T) {
		perm, err := DerivePermissionFromCall(targetA, method, calldata, 0, 1, 2, 3)
		require.NoError(t, err)
		assert.Nil(t, perm.Condition)
	})

	t.Run("derived permission passes the abi check", func(t *testing.T) {
		perm, err := DerivePermissionFromCall(targetA, method, calldata, 1)
		require.NoError(t, err)
		contract := abi.ABI{Methods: map[string]abi.Method{method.Name: method}}
		result, err := ProcessPermissions([]Permission{perm})
		require.NoError(t, err)
		assert.NoError(t, TargetIntegrity(result.Targets[0], &contract))
	})

	t.Run("wrong selector", func(t *testing.T) {
		other, err := abishape.MethodFromSignature("swap(uint8)")
		require.NoError(t, err)
		_, err = DerivePermissionFromCall(targetA, other, calldata)
		require.Error(t, err)
		assert.True(t, logging.IsType(err, logging.ErrorTypeIntegrity))
	})

	t.Run("wildcard out of range", func(t *testing.T) {
		_, err := DerivePermissionFromCall(targetA, method, calldata, 4)
		assert.Error(t, err)
	})
}
