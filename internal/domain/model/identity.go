package model

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Identity is an account address in EIP-55 checksum form. It keys talents
// and authorizes callers.
type Identity string

// ParseIdentity validates a 0x-prefixed 20-byte hex address and returns its
// canonical form. The zero address is rejected.
func ParseIdentity(s string) (Identity, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || !strings.EqualFold(s[:2], "0x") || !common.IsHexAddress(s) {
		return "", ErrInvalidIdentity
	}
	addr := common.HexToAddress(s)
	if addr == (common.Address{}) {
		return "", ErrInvalidIdentity
	}
	return Identity(addr.Hex()), nil
}

// MustParseIdentity is ParseIdentity that panics on malformed input.
func MustParseIdentity(s string) Identity {
	id, err := ParseIdentity(s)
	if err != nil {
		panic("model: " + err.Error() + ": " + s)
	}
	return id
}

// IdentityFromAddress converts an address to its canonical identity.
func IdentityFromAddress(addr common.Address) Identity {
	return Identity(addr.Hex())
}

// Address returns the underlying account address.
func (i Identity) Address() common.Address { return common.HexToAddress(string(i)) }

// IsZero reports whether the identity is unset.
func (i Identity) IsZero() bool { return i == "" }

func (i Identity) String() string { return string(i) }
