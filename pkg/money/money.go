// Package money provides fixed-scale decimal helpers for ledger amounts.
//
// All monetary values in the system are decimals with exactly two fractional
// digits. Parsing rejects anything that cannot be represented at that scale,
// so a value that made it past Parse is safe to store and compare.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits carried by every amount.
const Scale = 2

// Zero is the canonical zero amount.
var Zero = decimal.Zero

// DriftTolerance is the maximum absolute difference between a stored
// balance and its recomputed value before the two are considered divergent.
var DriftTolerance = decimal.New(1, -2) // 0.01

// Parse converts a decimal string like "125.50" into an amount.
// It rejects empty input and values with more than two fractional digits.
func Parse(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount is required")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if d.Exponent() < -Scale {
		return decimal.Zero, fmt.Errorf("amount %q has more than %d decimal places", s, Scale)
	}
	return d.Round(Scale), nil
}

// MustParse is Parse for compile-time constants in tests and seeds.
// It panics on invalid input.
func MustParse(s string) decimal.Decimal {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// FromInt64 builds an amount from whole units, e.g. FromInt64(250) == 250.00.
func FromInt64(units int64) decimal.Decimal {
	return decimal.NewFromInt(units)
}

// Format renders an amount with exactly two fractional digits, e.g. "250.00".
// This is the canonical wire and log representation.
func Format(d decimal.Decimal) string {
	return d.StringFixed(Scale)
}

// IsPositive reports whether d is strictly greater than zero.
func IsPositive(d decimal.Decimal) bool {
	return d.Sign() > 0
}

// WithinTolerance reports whether a and b differ by no more than the
// reconciliation drift tolerance.
func WithinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().Cmp(DriftTolerance) <= 0
}
