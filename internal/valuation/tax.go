package valuation

import "github.com/shopspring/decimal"

// NetProceeds is the amount a seller receives for a sale at price after the
// market tax is deducted. taxPercent is a whole percentage (5 means 5%).
func NetProceeds(price decimal.Decimal, taxPercent int) decimal.Decimal {
	rate := decimal.NewFromInt(int64(taxPercent)).Div(decimal.NewFromInt(100))
	return price.Mul(decimal.NewFromInt(1).Sub(rate))
}
