package core

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// DecimalScale is the fractional precision every Amount carries, per
// spec.md §4.C: 18 fractional digits, stored conceptually as a 192-bit
// signed integer scaled by 10^18. shopspring/decimal backs the arbitrary
// precision integer; Amount pins the scale and adds rounding-mode aware
// operations on top of it. Values are not bounded to the 192-bit range:
// Add, Sub and Mul never report an overflow.
const DecimalScale = 18

// RoundingMode mirrors the five division rounding modes spec.md names.
type RoundingMode int

const (
	ToZero RoundingMode = iota
	ToNearestEven
	AwayFromZero
	ToPositive
	ToNegative
)

// Amount is a fixed-precision fungible quantity. The zero value is zero.
type Amount struct {
	d decimal.Decimal
}

func NewAmountFromInt64(v int64) Amount {
	return Amount{d: decimal.New(v, 0)}
}

// NewAmount parses a decimal string (e.g. "66.5") at DecimalScale precision.
func NewAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return Amount{d: d.Truncate(DecimalScale)}, nil
}

func (a Amount) IsZero() bool { return a.d.IsZero() }

func (a Amount) IsNegative() bool { return a.d.IsNegative() }

func (a Amount) String() string { return a.d.StringFixed(DecimalScale) }

func (a Amount) Cmp(b Amount) int { return a.d.Cmp(b.d) }

func (a Amount) Add(b Amount) (Amount, error) {
	return Amount{d: a.d.Add(b.d)}, nil
}

func (a Amount) Sub(b Amount) (Amount, error) {
	r := a.d.Sub(b.d)
	return Amount{d: r}, nil
}

// Mul multiplies two amounts, truncating the result to DecimalScale.
func (a Amount) Mul(b Amount) Amount {
	return Amount{d: a.d.Mul(b.d).Truncate(DecimalScale)}
}

// MulFraction scales an amount by an integer tip/percentage-style factor expressed
// as numerator/denominator (e.g. tip_percentage/100), rounding per mode.
func (a Amount) MulFraction(numerator, denominator int64, mode RoundingMode) Amount {
	num := decimal.New(numerator, 0)
	den := decimal.New(denominator, 0)
	return Amount{d: round(a.d.Mul(num).Div(den), mode)}
}

// Div divides a by b under the given rounding mode. Division by zero is a
// programmer error (costing/price computations never divide by a
// caller-controlled zero) and panics rather than silently saturating.
func (a Amount) Div(b Amount, mode RoundingMode) Amount {
	if b.IsZero() {
		panic("core: division by zero amount")
	}
	q := a.d.DivRound(b.d, DecimalScale+8)
	return Amount{d: round(q, mode)}
}

func round(d decimal.Decimal, mode RoundingMode) decimal.Decimal {
	switch mode {
	case ToZero:
		return d.Truncate(DecimalScale)
	case ToNearestEven:
		return d.RoundBank(DecimalScale)
	case AwayFromZero:
		if d.Truncate(DecimalScale).Equal(d) {
			return d.Truncate(DecimalScale)
		}
		if d.IsNegative() {
			return d.Truncate(DecimalScale).Sub(smallestUnit())
		}
		return d.Truncate(DecimalScale).Add(smallestUnit())
	case ToPositive:
		return d.RoundCeil(DecimalScale)
	case ToNegative:
		return d.RoundFloor(DecimalScale)
	default:
		return d.Truncate(DecimalScale)
	}
}

func smallestUnit() decimal.Decimal {
	return decimal.New(1, -DecimalScale)
}

// DecimalPlaces reports how many fractional digits v actually uses, used by
// containers to enforce a resource's declared divisibility on Take.
func (a Amount) DecimalPlaces() int32 {
	return -a.d.Exponent()
}

// decimalToFixed192 renders a as the wire form spec.md §4.A names for the
// Decimal custom kind: a 192-bit signed integer, big-endian two's complement,
// equal to a scaled by 10^DecimalScale.
func decimalToFixed192(a Amount) [24]byte {
	rescaled := a.d.Truncate(DecimalScale).Coefficient()
	shift := DecimalScale + a.d.Truncate(DecimalScale).Exponent()
	if shift > 0 {
		factor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(shift)), nil)
		rescaled = new(big.Int).Mul(rescaled, factor)
	}
	return bigIntToFixed192(rescaled)
}

func bigIntToFixed192(v *big.Int) [24]byte {
	var out [24]byte
	neg := v.Sign() < 0
	mag := new(big.Int).Abs(v)
	magBytes := mag.Bytes()
	if len(magBytes) > 24 {
		magBytes = magBytes[len(magBytes)-24:]
	}
	copy(out[24-len(magBytes):], magBytes)
	if neg {
		// two's complement: invert and add one, over the full 24 bytes.
		carry := byte(1)
		for i := 23; i >= 0; i-- {
			inv := ^out[i]
			sum := inv + carry
			if sum < inv {
				carry = 1
			} else {
				carry = 0
			}
			out[i] = sum
		}
	}
	return out
}

// decimalFromFixed192 is the inverse of decimalToFixed192.
func decimalFromFixed192(b [24]byte) Amount {
	neg := b[0]&0x80 != 0
	work := b
	if neg {
		carry := byte(1)
		for i := 23; i >= 0; i-- {
			inv := ^work[i]
			sum := inv + carry
			if sum < inv {
				carry = 1
			} else {
				carry = 0
			}
			work[i] = sum
		}
	}
	mag := new(big.Int).SetBytes(work[:])
	// Drop trailing zero digits so the decoded amount carries the same
	// exponent NewAmount/NewAmountFromInt64 give that value.
	exp := int32(-DecimalScale)
	ten := big.NewInt(10)
	for exp < 0 && mag.Sign() != 0 {
		q, r := new(big.Int).QuoRem(mag, ten, new(big.Int))
		if r.Sign() != 0 {
			break
		}
		mag, exp = q, exp+1
	}
	if mag.Sign() == 0 {
		exp = 0
	}
	if neg {
		mag.Neg(mag)
	}
	return Amount{d: decimal.NewFromBigInt(mag, exp)}
}
