package model

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// EtherDecimals is the number of fractional digits in one whole currency unit.
const EtherDecimals = 18

// ErrInvalidAmount is returned when a value cannot be represented as an Amount.
var ErrInvalidAmount = errors.New("invalid amount")

// Amount is a quantity of value in indivisible base units. With
// EtherDecimals fractional digits the largest representable value is
// MaxAmount, about 18.44 whole units; anything above it is ErrInvalidAmount.
type Amount uint64

// MaxAmount is the largest representable Amount.
const MaxAmount = Amount(^uint64(0))

// MarshalJSON encodes the amount as a decimal string so large values survive
// JSON consumers that parse numbers as float64.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + strconv.FormatUint(uint64(a), 10) + `"`), nil
}

// UnmarshalJSON accepts either a decimal string or a bare integer.
func (a *Amount) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	*a = Amount(v)
	return nil
}

func (a Amount) String() string { return strconv.FormatUint(uint64(a), 10) }

// ParseUnits converts a decimal string such as "0.8" into base units with the
// given number of fractional digits. Extra precision and overflow are rejected.
func ParseUnits(s string, decimals int) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	whole, frac, _ := strings.Cut(s, ".")
	if len(frac) > decimals {
		return 0, fmt.Errorf("%w: %q has more than %d decimals", ErrInvalidAmount, s, decimals)
	}
	if whole == "" {
		whole = "0"
	}
	digits := whole + frac + strings.Repeat("0", decimals-len(frac))
	v, ok := new(big.Int).SetString(digits, 10)
	if !ok || !v.IsUint64() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return v.Uint64(), nil
}

// ParseEther is ParseUnits with 18 decimals.
func ParseEther(s string) (Amount, error) {
	v, err := ParseUnits(s, EtherDecimals)
	return Amount(v), err
}

// MustParseEther is ParseEther for constants and tests.
func MustParseEther(s string) Amount {
	a, err := ParseEther(s)
	if err != nil {
		panic(err)
	}
	return a
}

// FormatUnits renders v with the given number of fractional digits, trimming
// trailing zeros.
func FormatUnits(v uint64, decimals int) string {
	s := strconv.FormatUint(v, 10)
	if decimals <= 0 {
		return s
	}
	if len(s) <= decimals {
		s = strings.Repeat("0", decimals-len(s)+1) + s
	}
	whole, frac := s[:len(s)-decimals], strings.TrimRight(s[len(s)-decimals:], "0")
	if frac == "" {
		return whole
	}
	return whole + "." + frac
}
