package helpers

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

func StringToInt(s string) (int, error) {
	return strconv.Atoi(s)
}

// ParseAmount parses a monetary amount from a form or query value and
// normalizes it to two decimal places.
func ParseAmount(s string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount format")
	}
	return amount.Round(2), nil
}

// OptionalString maps an empty form value to nil so the column stays NULL.
func OptionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
