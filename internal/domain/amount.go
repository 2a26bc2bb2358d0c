// internal/domain/amount.go
package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
)

var ErrInvalidAmount = errors.New("invalid amount")

// Amount is a monetary value in minor token units. It is an exact
// arbitrary-precision integer and serializes as a decimal string so
// large values survive JSON round-trips without precision loss.
type Amount struct {
	v *big.Int
}

// ParseAmount accepts a base-10 integer string and rejects anything
// that is not a positive integer in minor units.
func ParseAmount(s string) (Amount, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Amount{}, fmt.Errorf("%w: %q is not a base-10 integer", ErrInvalidAmount, s)
	}
	if v.Sign() <= 0 {
		return Amount{}, fmt.Errorf("%w: must be a positive integer in minor units", ErrInvalidAmount)
	}
	return Amount{v: v}, nil
}

// NewAmount wraps an int64 minor-unit value. Intended for tests and fixtures.
func NewAmount(v int64) Amount {
	return Amount{v: big.NewInt(v)}
}

// Cmp returns -1, 0 or +1 like big.Int.Cmp. Zero-value amounts compare as 0.
func (a Amount) Cmp(b Amount) int {
	return a.bigint().Cmp(b.bigint())
}

func (a Amount) String() string {
	return a.bigint().String()
}

// IsZero reports whether the amount is unset or zero.
func (a Amount) IsZero() bool {
	return a.v == nil || a.v.Sign() == 0
}

func (a Amount) bigint() *big.Int {
	if a.v == nil {
		return big.NewInt(0)
	}
	return a.v
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: amount must be a decimal string", ErrInvalidAmount)
	}
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
