package catalog

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// DefaultCurrencyExponent is the number of minor-unit digits for two-decimal currencies.
const DefaultCurrencyExponent int32 = 2

var maxMinor = decimal.NewFromInt(math.MaxInt64)

// ToMinorUnits converts a major-unit price into an integer amount of minor
// units. It fails closed when the result is not a whole number of minor units,
// is not positive, or does not fit in int64.
func ToMinorUnits(price decimal.Decimal, exponent int32) (int64, error) {
	scaled := price.Shift(exponent)
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("%w: %s has more than %d decimal places", ErrInvalidPrice, price.String(), exponent)
	}
	if scaled.Sign() <= 0 {
		return 0, fmt.Errorf("%w: %s is not positive", ErrInvalidPrice, price.String())
	}
	if scaled.GreaterThan(maxMinor) {
		return 0, fmt.Errorf("%w: %s overflows", ErrInvalidPrice, price.String())
	}
	return scaled.IntPart(), nil
}

// FormatMinorUnits renders a minor-unit amount with a fixed number of decimals,
// e.g. 4550 with exponent 2 -> "45.50".
func FormatMinorUnits(amount int64, exponent int32) string {
	return decimal.New(amount, -exponent).StringFixed(exponent)
}
