package registry

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount      = errors.New("contribution amount must be greater than zero")
	ErrGiftNotFound       = errors.New("gift not found")
	ErrAlreadyFullyFunded = errors.New("gift is already fully funded")
)

// AmountExceedsPriceError rejects a single contribution larger than the
// gift's full price. Amounts over the price are never silently clamped.
type AmountExceedsPriceError struct {
	Price decimal.Decimal
}

func (e *AmountExceedsPriceError) Error() string {
	return fmt.Sprintf("contribution exceeds the gift price; the maximum amount is %s", e.Price.StringFixed(2))
}

// AmountExceedsRemainingError reports the exact balance still open so a
// client can offer a corrected amount without another round trip.
type AmountExceedsRemainingError struct {
	Remaining decimal.Decimal
}

func (e *AmountExceedsRemainingError) Error() string {
	return fmt.Sprintf("contribution exceeds the remaining balance; the maximum amount is %s", e.Remaining.StringFixed(2))
}
