package conditions

import (
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestID(t *testing.T) {
	a := CalldataMatches(EqualToWord(word(1)), PassNode(Dynamic))
	b := CalldataMatches(EqualToWord(word(1)), PassNode(Dynamic))
	c := CalldataMatches(EqualToWord(word(2)), PassNode(Dynamic))

	assert.Equal(t, ID(a), ID(b))
	assert.NotEqual(t, ID(a), ID(c))
	assert.NotEqual(t, ID(EqualToWord(word(1))), ID(GreaterThanWord(word(1))))
	assert.NotEqual(t, ID(EqualToValue(Dynamic, []byte{1})), ID(EqualToValue(Static, []byte{1})))

	// Sub-structure hashes the same wherever it occurs.
	inner := OrOf(EqualToWord(word(5)), EqualToWord(word(6)))
	left := CalldataMatches(inner)
	right := AndOf(CalldataMatches(inner), EtherWithinAllowanceKey(word(1)))
	assert.Equal(t, ID(left.Children[0]), ID(right.Children[0].Children[0]))
}

func TestEqualToBuilders(t *testing.T) {
	tree := TupleMatches(PassNode(Static), PassNode(Dynamic))
	c := EqualToValue(Tuple, []byte{0x01}, tree.Children...)
	assert.Equal(t, EqualTo, c.Operator)
	assert.Equal(t, Tuple, c.ParamType)
	assert.Equal(t, []byte{0x01}, c.CompValue)
	assert.Len(t, c.Children, 2)

	assert.Equal(t, EqualTo, EqualToWord(word(1)).Operator)
	for _, option := range OneOf(Dynamic, []byte{1}, []byte{2}).Children {
		assert.Equal(t, EqualTo, option.Operator)
	}
}

func TestConditionJSON(t *testing.T) {
	c := CalldataMatches(
		EqualToWord(word(1)),
		OrOf(EqualToValue(Dynamic, []byte{0xab}), PassNode(Dynamic)),
	)

	data, err := json.Marshal(c)
	require.NoError(t, err)

	var decoded Condition
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, ID(c), ID(decoded))

	var numeric Condition
	require.NoError(t, json.Unmarshal([]byte(`{"paramType":"1","operator":"16","compValue":"0x0000000000000000000000000000000000000000000000000000000000000001"}`), &numeric))
	assert.Equal(t, EqualToWord(word(1)), numeric)

	var bad Condition
	assert.Error(t, json.Unmarshal([]byte(`{"paramType":"Static","operator":"Bogus"}`), &bad))
	assert.Error(t, json.Unmarshal([]byte(`{"paramType":"12","operator":"Pass"}`), &bad))
}

func TestConditionString(t *testing.T) {
	c := CalldataMatches(EqualToValue(Dynamic, []byte{0xab}))
	assert.Equal(t, "Matches(Calldata)\n  EqualTo(Dynamic, 0xab)", c.String())
}

func TestClone(t *testing.T) {
	c := CalldataMatches(EqualToValue(Dynamic, []byte{0xab}))
	clone := c.Clone()
	clone.Children[0].CompValue[0] = 0xcd
	assert.Equal(t, byte(0xab), c.Children[0].CompValue[0])
}

func TestWalkAndFormatPath(t *testing.T) {
	c := CalldataMatches(EqualToWord(word(1)), TupleMatches(PassNode(Static), EqualToWord(word(2))))

	var paths []string
	Walk(c, func(node Condition, path []int) bool {
		paths = append(paths, FormatPath(path))
		return node.ParamType != Tuple
	})
	assert.Equal(t, []string{"root", "root.0", "root.1"}, paths)
}

func TestAllowanceKeys(t *testing.T) {
	k1 := common.HexToHash("0x01")
	k2 := common.HexToHash("0x02")

	c := AndOf(
		CalldataMatches(WithinAllowanceKey(k2)),
		EtherWithinAllowanceKey(k1),
		CallWithinAllowanceKey(k2),
	)
	assert.Equal(t, []common.Hash{k1, k2}, AllowanceKeys(c))
	assert.Empty(t, AllowanceKeys(EqualToWord(word(1))))
}
