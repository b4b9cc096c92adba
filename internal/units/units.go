// Package units converts between on-chain fixed-point integers and their
// human-readable forms.
package units

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
	"github.com/mtecstake/autostake/pkg/types"
	"github.com/shopspring/decimal"
)

// DefaultDisplayDigits is the fractional precision used for token amounts
const DefaultDisplayDigits = 6

// SecondsPerDay is the day length used by lock-duration conversions
const SecondsPerDay = 86400

var maxUint256 = new(uint256.Int).SetAllOne()

// MaxUint256 returns 2^256-1, the "unlimited" approval amount
func MaxUint256() *big.Int {
	return maxUint256.ToBig()
}

// FitsUint256 reports whether v is a valid uint256 argument
func FitsUint256(v *big.Int) bool {
	if v == nil || v.Sign() < 0 {
		return false
	}
	_, overflow := uint256.FromBig(v)
	return !overflow
}

// FormatUnits renders amount with the given decimals, keeping at most digits
// fractional digits. Extra digits are truncated, never rounded, and trailing
// zeros are dropped. A nil amount renders as "0".
func FormatUnits(amount *big.Int, decimals uint8, digits int) string {
	if amount == nil {
		return "0"
	}

	sign := ""
	abs := new(big.Int).Set(amount)
	if abs.Sign() < 0 {
		sign = "-"
		abs.Neg(abs)
	}

	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole, frac := new(big.Int).QuoRem(abs, scale, new(big.Int))

	if frac.Sign() == 0 || digits <= 0 {
		if whole.Sign() == 0 {
			return "0"
		}
		return sign + whole.String()
	}

	fracStr := frac.String()
	if pad := int(decimals) - len(fracStr); pad > 0 {
		fracStr = strings.Repeat("0", pad) + fracStr
	}
	if len(fracStr) > digits {
		fracStr = fracStr[:digits]
	}
	fracStr = strings.TrimRight(fracStr, "0")

	if fracStr == "" {
		if whole.Sign() == 0 {
			return "0"
		}
		return sign + whole.String()
	}
	return sign + whole.String() + "." + fracStr
}

// Format renders amount with DefaultDisplayDigits
func Format(amount *big.Int, decimals uint8) string {
	return FormatUnits(amount, decimals, DefaultDisplayDigits)
}

// Decimal digit counts of 2^256 and 2^64. A nonzero value whose exponent
// reaches them is out of range.
const (
	uint256Digits = 78
	uint64Digits  = 20
)

// ParseUnits parses a decimal string into base units. It rejects empty,
// negative and over-precise input, and anything that does not fit uint256.
func ParseUnits(s string, decimals uint8) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: amount is required", types.ErrInvalidInput)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid amount %q", types.ErrInvalidInput, s)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("%w: amount must not be negative", types.ErrInvalidInput)
	}
	if d.IsZero() {
		return new(big.Int), nil
	}
	// Bound the exponent before any rescaling: "1e999999999" would
	// otherwise materialize a billion-digit integer.
	if d.Exponent()+int32(decimals) >= uint256Digits {
		return nil, fmt.Errorf("%w: amount %q overflows uint256", types.ErrInvalidInput, s)
	}
	if excess := -d.Exponent() - int32(decimals); excess > 0 {
		if excess > int32(len(s)) || !d.Equal(d.Truncate(int32(decimals))) {
			return nil, fmt.Errorf("%w: %q has more than %d decimals", types.ErrInvalidInput, s, decimals)
		}
	}

	v := d.Shift(int32(decimals)).BigInt()
	if !FitsUint256(v) {
		return nil, fmt.Errorf("%w: amount %q overflows uint256", types.ErrInvalidInput, s)
	}
	return v, nil
}

// BpsToPercent renders basis points as a percentage with two decimals
func BpsToPercent(bps uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(bps), -2).StringFixed(2)
}

// PercentToBps converts a percentage string to basis points, rounding half up
func PercentToBps(pct string) (uint64, error) {
	return scaleNonNegative(pct, decimal.NewFromInt(100), "APY percent")
}

// DaysToSeconds converts a day count string to seconds, rounding half up
func DaysToSeconds(days string) (uint64, error) {
	return scaleNonNegative(days, decimal.NewFromInt(SecondsPerDay), "lock days")
}

// SecondsToDays renders seconds as a whole number of days
func SecondsToDays(sec uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(sec), 0).
		Div(decimal.NewFromInt(SecondsPerDay)).
		Round(0).
		String()
}

func scaleNonNegative(s string, factor decimal.Decimal, what string) (uint64, error) {
	s = strings.TrimSpace(s)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s %q", types.ErrInvalidInput, what, s)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("%w: %s must not be negative", types.ErrInvalidInput, what)
	}

	switch {
	case d.IsZero():
		return 0, nil
	case d.Exponent() >= uint64Digits:
		return 0, fmt.Errorf("%w: %s %q is too large", types.ErrInvalidInput, what, s)
	case d.Exponent() < -int32(len(s))-int32(factor.NumDigits()):
		// below one half after scaling
		return 0, nil
	}

	v := d.Mul(factor).Round(0).BigInt()
	if !v.IsUint64() {
		return 0, fmt.Errorf("%w: %s %q is too large", types.ErrInvalidInput, what, s)
	}
	return v.Uint64(), nil
}
