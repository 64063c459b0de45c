// Package bigint provides a JSON codec for arbitrary-precision integers that
// serializes as decimal strings rather than JSON numbers, avoiding the
// precision loss of float64 round-tripping and avoiding the need for any
// encoding/json monkey-patching in callers.
package bigint

import (
	"encoding/json"
	"fmt"
	"math/big"
)

// Int wraps *big.Int with decimal-string JSON marshaling. The zero value
// (no wrapped *big.Int) marshals as JSON null, as does a nil *Int; a wrapped
// zero marshals as "0".
type Int struct {
	v *big.Int
}

// New wraps v. A nil v is preserved (MarshalJSON will emit null).
func New(v *big.Int) Int {
	return Int{v: v}
}

// NewFromUint64 wraps v.
func NewFromUint64(v uint64) Int {
	return Int{v: new(big.Int).SetUint64(v)}
}

// NewFromString parses s as a base-10 integer.
func NewFromString(s string) (Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Int{}, fmt.Errorf("bigint: invalid decimal string %q", s)
	}

	return Int{v: v}, nil
}

// Big returns the underlying *big.Int, or a freshly allocated zero if the
// wrapped value is nil.
func (i Int) Big() *big.Int {
	if i.v == nil {
		return new(big.Int)
	}

	return i.v
}

func (i Int) String() string {
	return i.Big().String()
}

// IsZero reports whether the wrapped value is nil or equal to zero.
func (i Int) IsZero() bool {
	return i.v == nil || i.v.Sign() == 0
}

// Cmp compares the wrapped values, treating a nil wrapped value as zero.
func (i Int) Cmp(other Int) int {
	return i.Big().Cmp(other.Big())
}

// Max returns the larger of a and b.
func Max(a, b Int) Int {
	if a.Cmp(b) >= 0 {
		return a
	}

	return b
}

func (i Int) MarshalJSON() ([]byte, error) {
	if i.v == nil {
		return []byte("null"), nil
	}

	return json.Marshal(i.v.String())
}

func (i *Int) UnmarshalJSON(data []byte) error {
	var s *string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("bigint: %w", err)
	}

	if s == nil {
		i.v = nil

		return nil
	}

	v, ok := new(big.Int).SetString(*s, 10)
	if !ok {
		return fmt.Errorf("bigint: invalid decimal string %q", *s)
	}

	i.v = v

	return nil
}
