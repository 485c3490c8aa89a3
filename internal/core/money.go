// Package core provides money parsing and handling utilities.
//
// This file contains the Money type used for transaction amounts and the
// parser that turns user input into it.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Amount bounds. Exponent notation is accepted ("1e3") but the value must
// fit in maxIntegerDigits before the point and maxScale after it.
const (
	maxAmountLength  = 64
	maxIntegerDigits = 15
	maxScale         = 32
)

// Money is a currency-less, non-negative decimal amount.
type Money struct {
	decimal.Decimal
}

// NewMoney builds Money from a float, for tests and fixtures.
func NewMoney(v float64) Money {
	return Money{Decimal: decimal.NewFromFloat(v)}
}

// ParseAmount converts a decimal string to Money.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. Negative
// values, empty strings, anything that is not a finite number and values
// beyond the amount bounds are rejected with ErrInvalidAmount.
//
// Examples:
//
//	ParseAmount("12.34") -> 12.34, nil
//	ParseAmount("12,34") -> 12.34, nil
//	ParseAmount("-1")    -> ErrInvalidAmount
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > maxAmountLength {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !withinBounds(d) {
		return Money{}, ErrInvalidAmount
	}
	return Money{Decimal: d}, nil
}

// withinBounds is checked before any arithmetic or formatting: a huge
// exponent would make StringFixed or Add allocate its full expansion.
func withinBounds(d decimal.Decimal) bool {
	exp := int64(d.Exponent())
	if exp < -maxScale || exp > maxIntegerDigits {
		return false
	}
	return int64(d.NumDigits())+exp <= maxIntegerDigits
}

// Add returns the sum of m and o.
func (m Money) Add(o Money) Money {
	return Money{Decimal: m.Decimal.Add(o.Decimal)}
}

// Sub returns m - o. The result may be negative (balances).
func (m Money) Sub(o Money) Money {
	return Money{Decimal: m.Decimal.Sub(o.Decimal)}
}

// String renders the amount with two decimals, e.g. "120.00".
func (m Money) String() string {
	return m.StringFixed(2)
}

// MarshalJSON writes the amount as a JSON number.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal.String()), nil
}

// UnmarshalJSON accepts both JSON numbers and quoted decimal strings within
// the amount bounds.
func (m *Money) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return err
	}
	if !withinBounds(d) {
		return ErrInvalidAmount
	}
	m.Decimal = d
	return nil
}
