// Package types provides the value types shared across loanbook.
package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Money represents a monetary value in the smallest currency unit.
// All arithmetic is integer-only, no floating point.
//
// Examples:
//   - USD(4900) = $49.00 (4900 cents)
//   - EUR(19900) = €199.00 (19900 cents)
type Money struct {
	Amount   int64  `json:"amount"`   // Smallest unit (cents, pence, etc)
	Currency string `json:"currency"` // ISO 4217 lowercase: "usd", "eur", "gbp"
}

// ErrUnknownCurrency is returned when a currency code is not ISO 4217.
var ErrUnknownCurrency = errors.New("money: unknown currency")

// ErrOutOfRange is returned when an amount does not fit in int64 minor units.
var ErrOutOfRange = errors.New("money: amount out of range")

var (
	maxMinor = decimal.NewFromInt(math.MaxInt64)
	minMinor = decimal.NewFromInt(math.MinInt64)
)

// USD creates a Money value in US Dollars (cents).
func USD(cents int64) Money { return Money{Amount: cents, Currency: "usd"} }

// EUR creates a Money value in Euros (cents).
func EUR(cents int64) Money { return Money{Amount: cents, Currency: "eur"} }

// GBP creates a Money value in British Pounds (pence).
func GBP(pence int64) Money { return Money{Amount: pence, Currency: "gbp"} }

// JPY creates a Money value in Japanese Yen (no decimal).
func JPY(yen int64) Money { return Money{Amount: yen, Currency: "jpy"} }

// New creates a Money value in the given currency.
func New(minor int64, currency string) Money {
	return Money{Amount: minor, Currency: strings.ToLower(currency)}
}

// Zero returns a zero Money value in the specified currency.
func Zero(currency string) Money { return Money{Amount: 0, Currency: strings.ToLower(currency)} }

// ParseMoney converts a major-unit decimal ("12.50") into minor units of
// currency. Amounts with more precision than the currency allows are
// rejected rather than rounded.
func ParseMoney(major decimal.Decimal, currency string) (Money, error) {
	fraction, err := Fraction(currency)
	if err != nil {
		return Money{}, err
	}

	minor := major.Shift(int32(fraction))
	if !minor.Equal(minor.Truncate(0)) {
		return Money{}, fmt.Errorf("money: %s has more than %d decimal places", major.String(), fraction)
	}
	if minor.GreaterThan(maxMinor) || minor.LessThan(minMinor) {
		return Money{}, fmt.Errorf("%w: %s", ErrOutOfRange, major.String())
	}

	return Money{Amount: minor.IntPart(), Currency: strings.ToLower(currency)}, nil
}

// Fraction returns the number of minor-unit digits for currency.
func Fraction(currency string) (int, error) {
	cur := money.GetCurrency(strings.ToUpper(currency))
	if cur == nil {
		return 0, fmt.Errorf("%w: %q", ErrUnknownCurrency, currency)
	}

	return cur.Fraction, nil
}

// Add adds two Money values. Panics if currencies don't match.
func (m Money) Add(other Money) Money {
	m.assertSameCurrency(other)
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}
}

// Subtract subtracts another Money value. Panics if currencies don't match.
func (m Money) Subtract(other Money) Money {
	m.assertSameCurrency(other)
	return Money{Amount: m.Amount - other.Amount, Currency: m.Currency}
}

// ClampedSubtract subtracts other and floors the result at zero.
func (m Money) ClampedSubtract(other Money) Money {
	r := m.Subtract(other)
	if r.Amount < 0 {
		r.Amount = 0
	}
	return r
}

// IsZero returns true if the amount is zero.
func (m Money) IsZero() bool { return m.Amount == 0 }

// IsPositive returns true if the amount is greater than zero.
func (m Money) IsPositive() bool { return m.Amount > 0 }

// IsNegative returns true if the amount is less than zero.
func (m Money) IsNegative() bool { return m.Amount < 0 }

// Equal returns true if both Money values are equal (same amount and currency).
func (m Money) Equal(other Money) bool {
	return m.Amount == other.Amount && m.Currency == other.Currency
}

// LessThan returns true if this Money is less than other. Panics if currencies don't match.
func (m Money) LessThan(other Money) bool {
	m.assertSameCurrency(other)
	return m.Amount < other.Amount
}

// GreaterThan returns true if this Money is greater than other. Panics if currencies don't match.
func (m Money) GreaterThan(other Money) bool {
	m.assertSameCurrency(other)
	return m.Amount > other.Amount
}

// Decimal returns the value in major units.
func (m Money) Decimal() decimal.Decimal {
	fraction, err := Fraction(m.Currency)
	if err != nil {
		fraction = 2
	}
	return decimal.New(m.Amount, -int32(fraction))
}

// FormatMajor returns the major unit string without currency symbol,
// e.g. "49.00" for USD(4900) and "100" for JPY(100).
func (m Money) FormatMajor() string {
	fraction, err := Fraction(m.Currency)
	if err != nil {
		fraction = 2
	}
	return m.Decimal().StringFixed(int32(fraction))
}

// String returns a human-readable string with currency symbol,
// e.g. "$1,250.00".
func (m Money) String() string {
	cur := money.GetCurrency(strings.ToUpper(m.Currency))
	if cur == nil {
		return strings.ToUpper(m.Currency) + " " + m.FormatMajor()
	}
	return cur.Formatter().Format(m.Amount)
}

// MarshalJSON implements json.Marshaler.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Display  string `json:"display"`
	}{
		Amount:   m.Amount,
		Currency: m.Currency,
		Display:  m.String(),
	})
}

// UnmarshalJSON implements json.Unmarshaler. The display field is ignored.
func (m *Money) UnmarshalJSON(data []byte) error {
	var raw struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Amount = raw.Amount
	m.Currency = strings.ToLower(raw.Currency)
	return nil
}

func (m Money) assertSameCurrency(other Money) {
	if m.Currency != other.Currency {
		panic(fmt.Sprintf("money: currency mismatch: %s != %s", m.Currency, other.Currency))
	}
}

// Sum calculates the sum of values in currency. All must share that currency.
func Sum(currency string, values ...Money) Money {
	result := Zero(currency)
	for _, v := range values {
		result = result.Add(v)
	}
	return result
}
