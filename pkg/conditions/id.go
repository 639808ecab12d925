// roles/pkg/conditions/id.go

package conditions

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ID is the structural content hash of c. Identical sub-structure yields an
// identical id wherever it occurs. Callers comparing conditions should use
// NormalizedID or Equal so that differently authored but equivalent trees
// compare equal.
func ID(c Condition) common.Hash {
	buf := make([]byte, 0, 2+4+len(c.CompValue)+4+32*len(c.Children))
	buf = append(buf, byte(c.ParamType), byte(c.Operator))
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(c.CompValue)))
	buf = append(buf, c.CompValue...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(c.Children)))
	for _, child := range c.Children {
		id := ID(child)
		buf = append(buf, id.Bytes()...)
	}
	return crypto.Keccak256Hash(buf)
}

// NormalizedID returns the id of the canonical form of c.
func NormalizedID(c Condition) (common.Hash, error) {
	normalized, err := Normalize(c)
	if err != nil {
		return common.Hash{}, err
	}
	return ID(normalized), nil
}

// Equal reports whether a and b are interchangeable for diffing purposes.
func Equal(a, b Condition) (bool, error) {
	idA, err := NormalizedID(a)
	if err != nil {
		return false, err
	}
	idB, err := NormalizedID(b)
	if err != nil {
		return false, err
	}
	return idA == idB, nil
}
