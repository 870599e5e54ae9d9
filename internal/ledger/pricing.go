package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/otomarket/backend/internal/models"
)

// ResolveUnitPrice picks the unit price for a credit sale. Preference order:
// cost price marked up by the category's profit margin, then the discounted
// sale price, then the list price. Margin math runs on decimals and rounds
// half-up to kurus.
func ResolveUnitPrice(product *models.Product, category *models.Category) int64 {
	if product.CostPrice != nil && category != nil && category.ProfitMargin > 0 {
		cost := decimal.NewFromInt(*product.CostPrice)
		factor := decimal.NewFromInt(1).Add(
			decimal.NewFromFloat(category.ProfitMargin).Div(decimal.NewFromInt(100)))
		return cost.Mul(factor).Round(0).IntPart()
	}
	if product.SalePrice != nil && *product.SalePrice > 0 {
		return *product.SalePrice
	}
	return product.Price
}
