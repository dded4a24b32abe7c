package domain

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// minorUnitExponent is the number of decimal places carried by one minor
// unit (cents) of every supported currency.
const minorUnitExponent = 2

// Money is an exact amount in minor currency units (cents) tagged with an
// ISO currency code. It is never represented as floating point.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// NewMoney returns a Money value, rejecting negative amounts and empty
// currency codes.
func NewMoney(amount int64, currency string) (Money, error) {
	if amount < 0 {
		return Money{}, ErrNegativeResult
	}
	if currency == "" {
		return Money{}, &ValidationError{Message: "currency is required"}
	}
	return Money{Amount: amount, Currency: currency}, nil
}

// ParseMoney converts a decimal string such as "925.50" into Money. More
// than two decimal places, a negative value or an amount that does not fit
// in int64 minor units is an error.
func ParseMoney(s, currency string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, &ValidationError{Message: fmt.Sprintf("invalid monetary value %q", s)}
	}
	minor := d.Shift(minorUnitExponent)
	if !minor.IsInteger() {
		return Money{}, &ValidationError{Message: "monetary values must have at most 2 decimal places"}
	}
	if !minor.BigInt().IsInt64() {
		return Money{}, &ValidationError{Message: fmt.Sprintf("monetary value %q is out of range", s)}
	}
	return NewMoney(minor.IntPart(), currency)
}

// Add returns m + o, failing with ErrAmountOutOfRange when the sum does not
// fit in int64 minor units.
func (m Money) Add(o Money) (Money, error) {
	if m.Currency != o.Currency {
		return Money{}, ErrCurrencyMismatch
	}
	if o.Amount > 0 && m.Amount > math.MaxInt64-o.Amount {
		return Money{}, ErrAmountOutOfRange
	}
	return Money{Amount: m.Amount + o.Amount, Currency: m.Currency}, nil
}

// Sub returns m - o, failing with ErrNegativeResult when o > m.
func (m Money) Sub(o Money) (Money, error) {
	if m.Currency != o.Currency {
		return Money{}, ErrCurrencyMismatch
	}
	if o.Amount > m.Amount {
		return Money{}, ErrNegativeResult
	}
	return Money{Amount: m.Amount - o.Amount, Currency: m.Currency}, nil
}

// Cmp returns -1, 0 or +1 as m is less than, equal to, or greater than o.
func (m Money) Cmp(o Money) (int, error) {
	if m.Currency != o.Currency {
		return 0, ErrCurrencyMismatch
	}
	switch {
	case m.Amount < o.Amount:
		return -1, nil
	case m.Amount > o.Amount:
		return 1, nil
	}
	return 0, nil
}

// Scale multiplies m by a non-negative integer factor (increment steps).
func (m Money) Scale(n int64) (Money, error) {
	if n < 0 {
		return Money{}, ErrNegativeResult
	}
	if n > 0 && m.Amount > math.MaxInt64/n {
		return Money{}, ErrAmountOutOfRange
	}
	return Money{Amount: m.Amount * n, Currency: m.Currency}, nil
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool {
	return m.Amount == 0
}

// SameCurrency reports whether every value shares m's currency.
func (m Money) SameCurrency(others ...Money) bool {
	for _, o := range others {
		if o.Currency != m.Currency {
			return false
		}
	}
	return true
}

// Decimal returns the amount in major units, e.g. 92500 -> 925.00.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Amount, -minorUnitExponent)
}

// String formats the value as "925.00 USD".
func (m Money) String() string {
	return m.Decimal().StringFixed(minorUnitExponent) + " " + m.Currency
}

// MinMoney returns the smaller of a and b.
func MinMoney(a, b Money) (Money, error) {
	c, err := a.Cmp(b)
	if err != nil {
		return Money{}, err
	}
	if c <= 0 {
		return a, nil
	}
	return b, nil
}

// MaxMoney returns the larger of a and b.
func MaxMoney(a, b Money) (Money, error) {
	c, err := a.Cmp(b)
	if err != nil {
		return Money{}, err
	}
	if c >= 0 {
		return a, nil
	}
	return b, nil
}
