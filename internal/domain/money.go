package domain

import "github.com/shopspring/decimal"

// Bounds match the order_items columns: price NUMERIC(12,2), quantity INT.
// With MaxCartLines they also keep Subtotal and ItemCount far from overflow.
const (
	MaxQuantity  = 9999
	MaxCartLines = 200
	priceScale   = 2
)

var MaxUnitPrice = decimal.RequireFromString("9999999999.99")

func init() {
	// Prices travel as JSON numbers, matching the persisted cart snapshot format.
	decimal.MarshalJSONWithoutQuotes = true
}

// ValidUnitPrice reports whether p is a storable price: not negative, at most
// MaxUnitPrice and no finer than one cent.
func ValidUnitPrice(p decimal.Decimal) bool {
	return !p.IsNegative() && p.LessThanOrEqual(MaxUnitPrice) && p.Equal(p.Truncate(priceScale))
}

func ValidQuantity(q int) bool {
	return q >= 1 && q <= MaxQuantity
}

// LineTotal is the exact, unrounded price of quantity units.
func LineTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}

// Subtotal sums unrounded line totals and rounds once to whole monetary units.
func Subtotal(lines []CartLine) int64 {
	sum := decimal.Zero
	for _, line := range lines {
		sum = sum.Add(LineTotal(line.UnitPrice, line.Quantity))
	}
	return sum.Round(0).IntPart()
}

func ItemCount(lines []CartLine) int {
	n := 0
	for _, line := range lines {
		n += line.Quantity
	}
	return n
}
