package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Currency is the only currency the wallet settles in.
const Currency = "KES"

// MinorUnitsPerWhole is the number of cents in one shilling.
const MinorUnitsPerWhole = 100

// Amount is a money value in minor units (cents).
type Amount int64

// MaxWholeAmount is the largest single STK push M-Pesa accepts, in shillings.
const MaxWholeAmount int64 = 250000

// AmountFromWhole converts whole shillings to an Amount. Values outside
// 1..MaxWholeAmount are rejected so the conversion can never wrap.
func AmountFromWhole(whole int64) (Amount, error) {
	if whole <= 0 {
		return 0, &ValidationError{Field: "amount", Message: "amount must be at least 1 whole unit"}
	}
	if whole > MaxWholeAmount {
		return 0, &ValidationError{Field: "amount", Message: fmt.Sprintf("amount must not exceed %d", MaxWholeAmount)}
	}
	return Amount(whole * MinorUnitsPerWhole), nil
}

// MustAmountFromWhole is AmountFromWhole for constants known to be in range.
func MustAmountFromWhole(whole int64) Amount {
	a, err := AmountFromWhole(whole)
	if err != nil {
		panic(err)
	}
	return a
}

// Whole returns the amount in whole shillings, truncated toward zero.
func (a Amount) Whole() int64 {
	return int64(a) / MinorUnitsPerWhole
}

func (a Amount) String() string {
	return fmt.Sprintf("%s %s", decimal.New(int64(a), -2).StringFixed(2), Currency)
}

// TruncateWhole drops any fractional shillings, truncating toward zero.
// M-Pesa only accepts whole units, so 100.9 becomes 100.
func TruncateWhole(d decimal.Decimal) int64 {
	return d.Truncate(0).IntPart()
}

var maxWholeDecimal = decimal.NewFromInt(MaxWholeAmount)

// validateWholeAmount checks d on the decimal side, before any int64 conversion.
func validateWholeAmount(d decimal.Decimal) error {
	if !d.IsPositive() || d.Truncate(0).IsZero() {
		return &ValidationError{Field: "amount", Message: "amount must be at least 1 whole unit"}
	}
	if d.Truncate(0).GreaterThan(maxWholeDecimal) {
		return &ValidationError{Field: "amount", Message: fmt.Sprintf("amount must not exceed %d", MaxWholeAmount)}
	}
	return nil
}
