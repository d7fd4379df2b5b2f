// Package core provides money handling and the ledger algorithms.
//
// Money is a fixed-point decimal with two fractional digits. Every
// constructor rounds half-to-even to the minor unit, so values stored
// in a Money are always representable as whole cents.
package core

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Places is the number of fractional digits carried by Money.
const Places = 2

// Input bounds for ParseAmount. The largest accepted magnitude is
// 99,999,999.99.
const (
	maxIntegerDigits  = 8
	maxFractionDigits = 12
)

var (
	hundred       = decimal.NewFromInt(100)
	amountPattern = regexp.MustCompile(`^[+-]?(\d+)(?:\.(\d+))?$`)
)

// MaxAmount is the largest magnitude ParseAmount accepts.
var MaxAmount = MoneyFromCents(9_999_999_999)

// Money is an amount in the ledger currency.
type Money struct {
	d decimal.Decimal
}

// Zero is the zero amount.
var Zero = Money{d: decimal.Zero}

// NewMoney wraps a decimal, rounding it to the minor unit with banker's rounding.
func NewMoney(d decimal.Decimal) Money {
	return Money{d: d.RoundBank(Places)}
}

// MoneyFromCents builds a Money from an integer number of minor units.
func MoneyFromCents(cents int64) Money {
	return Money{d: decimal.New(cents, -Places)}
}

// MustParseMoney parses a canonical decimal string and panics on failure.
// It is meant for constants and tests.
func MustParseMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return NewMoney(d)
}

// ParseAmount parses user input accepting either '.' or ',' as the
// fractional separator. Surrounding whitespace is ignored. Only plain
// decimal notation is accepted and the rounded magnitude may not exceed
// MaxAmount.
//
// Examples:
//
//	ParseAmount("12.34") -> 12.34, nil
//	ParseAmount("12,34") -> 12.34, nil
//	ParseAmount("12.345") -> 12.34, nil (half to even)
//	ParseAmount("1e5") -> ErrInvalidAmount
//	ParseAmount("abc") -> ErrInvalidAmount
func ParseAmount(s string) (Money, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	parts := amountPattern.FindStringSubmatch(s)
	if parts == nil {
		return Zero, ErrInvalidAmount
	}
	if len(strings.TrimLeft(parts[1], "0")) > maxIntegerDigits || len(parts[2]) > maxFractionDigits {
		return Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, ErrInvalidAmount
	}
	m := NewMoney(d)
	if m.Abs().Cmp(MaxAmount) > 0 {
		return Zero, ErrInvalidAmount
	}
	return m, nil
}

func (m Money) Add(o Money) Money { return Money{d: m.d.Add(o.d)} }
func (m Money) Sub(o Money) Money { return Money{d: m.d.Sub(o.d)} }
func (m Money) Neg() Money        { return Money{d: m.d.Neg()} }
func (m Money) Abs() Money        { return Money{d: m.d.Abs()} }

func (m Money) IsZero() bool     { return m.d.IsZero() }
func (m Money) IsPositive() bool { return m.d.IsPositive() }
func (m Money) IsNegative() bool { return m.d.IsNegative() }

// Cmp returns -1, 0 or +1 comparing m to o.
func (m Money) Cmp(o Money) int { return m.d.Cmp(o.d) }

// Equal reports whether both amounts have the same value.
func (m Money) Equal(o Money) bool { return m.d.Equal(o.d) }

// Decimal exposes the underlying decimal value.
func (m Money) Decimal() decimal.Decimal { return m.d }

// Cents returns the amount in minor units. Amounts whose cents do not
// fit an int64 fail with ErrAmountOutOfRange.
func (m Money) Cents() (int64, error) {
	c := m.d.Mul(hundred).Round(0).BigInt()
	if !c.IsInt64() {
		return 0, fmt.Errorf("%w: %s", ErrAmountOutOfRange, m)
	}
	return c.Int64(), nil
}

// Float64 returns the amount as a float for serialization and charts only.
func (m Money) Float64() float64 {
	f, _ := m.d.Float64()
	return f
}

// String renders the amount with exactly two fractional digits.
func (m Money) String() string {
	return m.d.StringFixedBank(Places)
}

// Sum adds up a list of amounts.
func Sum(amounts []Money) Money {
	total := Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// Split divides total into portions shares using banker's rounding.
// Every share gets the rounded quotient and any remainder is added to
// the last share, so the result always sums back to total exactly.
// Non-positive totals are accepted; portions must be positive.
func Split(total Money, portions int) ([]Money, error) {
	if portions <= 0 {
		return nil, &ValidationError{Kind: ErrInvalidArgument, Message: "portions must be a positive integer"}
	}

	base := NewMoney(total.d.Div(decimal.NewFromInt(int64(portions))))
	shares := make([]Money, portions)
	for i := range shares {
		shares[i] = base
	}

	if diff := total.Sub(Sum(shares)); !diff.IsZero() {
		last := len(shares) - 1
		shares[last] = NewMoney(shares[last].d.Add(diff.d))
	}
	return shares, nil
}
