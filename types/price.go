package types

import (
	"errors"

	"github.com/shopspring/decimal"
)

// MinorPerMajor is the number of minor currency units (paise) in one
// major unit (rupee).
const MinorPerMajor = 100

var (
	minorPerMajor = decimal.NewFromInt(MinorPerMajor)

	// MaxPrice is the largest major-unit price accepted by the catalog.
	MaxPrice = decimal.New(1, 13)

	ErrInvalidPrice = errors.New("invalid price")
)

// Price is a monetary amount held as an integer count of minor units.
// It is encoded in JSON as a major-unit decimal number, e.g. 299 -> 2.99.
type Price int64

// PriceFromMajor converts a major-unit amount to minor units, rounding
// half away from zero on the exact decimal product.
func PriceFromMajor(major decimal.Decimal) Price {
	return Price(major.Mul(minorPerMajor).Round(0).IntPart())
}

// Major returns the price in major units.
func (p Price) Major() decimal.Decimal {
	return decimal.New(int64(p), -2)
}

func (p Price) String() string {
	return p.Major().StringFixed(2)
}

func (p Price) MarshalJSON() ([]byte, error) {
	return []byte(p.Major().String()), nil
}

func (p *Price) UnmarshalJSON(data []byte) error {
	var major decimal.Decimal
	if err := major.UnmarshalJSON(data); err != nil {
		return ErrInvalidPrice
	}
	*p = PriceFromMajor(major)
	return nil
}
