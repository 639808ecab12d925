// roles/pkg/abishape/encode.go

package abishape

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// EncodeValue ABI encodes a single value the way comparison nodes store it.
// Dynamic values drop the leading offset word, leaving the value's own
// encoding.
func EncodeValue(t abi.Type, value interface{}) ([]byte, error) {
	packed, err := abi.Arguments{{Type: t}}.Pack(value)
	if err != nil {
		return nil, fmt.Errorf("encode %s value: %w", t.String(), err)
	}
	if FromType(t).IsDynamic() {
		return packed[32:], nil
	}
	return packed, nil
}
