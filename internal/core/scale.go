package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Stored precision, matching the NUMERIC(14,3) quantity and NUMERIC(14,2)
// money columns. Finer values are rejected.
const (
	QuantityPlaces = 3
	MoneyPlaces    = 2
)

func fitsPlaces(d decimal.Decimal, places int32) bool {
	return d.Equal(d.Round(places))
}

// checkQuantity accepts positive quantities with at most QuantityPlaces decimals.
func checkQuantity(q decimal.Decimal) error {
	if !q.IsPositive() {
		return fmt.Errorf("%w: must be positive, got %s", ErrInvalidQuantity, q)
	}
	return checkQuantityScale(q)
}

func checkQuantityScale(q decimal.Decimal) error {
	if !fitsPlaces(q, QuantityPlaces) {
		return fmt.Errorf("%w: %s has more than %d decimal places", ErrInvalidQuantity, q, QuantityPlaces)
	}
	return nil
}

func checkMoneyScale(m decimal.Decimal) error {
	if !fitsPlaces(m, MoneyPlaces) {
		return fmt.Errorf("%w: %s has more than %d decimal places", ErrInvalidAmount, m, MoneyPlaces)
	}
	return nil
}

func checkPrices(price, costPrice decimal.Decimal) error {
	if price.IsNegative() || costPrice.IsNegative() {
		return fmt.Errorf("%w: prices cannot be negative", ErrInvalidAmount)
	}
	if err := checkMoneyScale(price); err != nil {
		return err
	}
	return checkMoneyScale(costPrice)
}

// BillTotal sums quantity times price over items, rounded to MoneyPlaces.
func BillTotal(items []BillItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Quantity.Mul(it.Price))
	}
	return total.Round(MoneyPlaces)
}
