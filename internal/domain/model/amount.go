package model

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/holiman/uint256"
)

const weiPerEther = 1_000_000_000_000_000_000

// Amount is an unsigned 256-bit monetary amount in the smallest unit (wei).
// It marshals to JSON as a decimal string.
type Amount struct {
	v uint256.Int
}

// AmountFromUint64 returns n wei.
func AmountFromUint64(n uint64) Amount {
	var a Amount
	a.v.SetUint64(n)
	return a
}

// Ether returns n whole ether expressed in wei.
func Ether(n uint64) Amount {
	var a Amount
	a.v.Mul(uint256.NewInt(n), uint256.NewInt(weiPerEther))
	return a
}

// ParseAmount parses a base-10 integer string.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" || s[0] == '-' || s[0] == '+' {
		return Amount{}, ErrInvalidAmount
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return Amount{}, ErrInvalidAmount
	}
	return Amount{v: *v}, nil
}

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool { return a.v.IsZero() }

// Cmp compares a and b and returns -1, 0 or +1.
func (a Amount) Cmp(b Amount) int { return a.v.Cmp(&b.v) }

// String returns the decimal representation.
func (a Amount) String() string { return a.v.Dec() }

// MarshalJSON encodes the amount as a quoted decimal string.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts a quoted decimal string or a bare JSON integer.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	s := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return ErrInvalidAmount
		}
	}
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
