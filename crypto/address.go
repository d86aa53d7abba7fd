package crypto

import (
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/common"
)

// AddressPrefix defines the human-readable part of an encoded address.
type AddressPrefix string

// CrybPrefix is the prefix used for every account known to the sale.
const CrybPrefix AddressPrefix = "cryb"

var errAddressLength = errors.New("address must be 20 bytes long")

// Address represents a 20-byte account identifier with a specific prefix.
type Address struct {
	prefix AddressPrefix
	bytes  []byte
}

func NewAddress(prefix AddressPrefix, b []byte) (Address, error) {
	if len(b) != 20 {
		return Address{}, errAddressLength
	}
	out := make([]byte, 20)
	copy(out, b)
	return Address{prefix: prefix, bytes: out}, nil
}

// MustNewAddress is NewAddress for callers holding a fixed-size array.
func MustNewAddress(prefix AddressPrefix, b []byte) Address {
	addr, err := NewAddress(prefix, b)
	if err != nil {
		panic(err)
	}
	return addr
}

// FromArray wraps a raw account identifier with the sale prefix.
func FromArray(raw [20]byte) Address {
	return MustNewAddress(CrybPrefix, raw[:])
}

func (a Address) String() string {
	conv, err := bech32.ConvertBits(a.bytes, 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(string(a.prefix), conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

func (a Address) Bytes() []byte {
	return a.bytes
}

// Array returns the raw identifier used as a state key.
func (a Address) Array() [20]byte {
	var out [20]byte
	copy(out[:], a.bytes)
	return out
}

// Prefix returns the human-readable prefix associated with the address.
func (a Address) Prefix() AddressPrefix {
	return a.prefix
}

// Hex renders the identifier as 0x-prefixed checksummed hex.
func (a Address) Hex() string {
	return common.BytesToAddress(a.bytes).Hex()
}

func DecodeAddress(addrStr string) (Address, error) {
	prefix, decoded, err := bech32.Decode(addrStr)
	if err != nil {
		return Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	return NewAddress(AddressPrefix(prefix), conv)
}

// ParseAddress accepts either a bech32 string or 0x-prefixed hex. Hex input is
// returned under the sale prefix.
func ParseAddress(input string) (Address, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return Address{}, errors.New("address required")
	}
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		if !common.IsHexAddress(trimmed) {
			return Address{}, fmt.Errorf("invalid hex address %q", trimmed)
		}
		return NewAddress(CrybPrefix, common.HexToAddress(trimmed).Bytes())
	}
	addr, err := DecodeAddress(trimmed)
	if err != nil {
		return Address{}, err
	}
	if addr.prefix != CrybPrefix {
		return Address{}, fmt.Errorf("unexpected address prefix %q", addr.prefix)
	}
	return addr, nil
}
