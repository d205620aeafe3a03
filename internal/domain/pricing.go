package domain

// DefaultCurrency is the settlement currency for all storefront pricing.
// Monetary amounts are carried in the smallest currency unit.
const DefaultCurrency = "EUR"

// PricingDetails is the itemized, derived cost breakdown for a design and
// quantity. It is recomputed wholesale from its inputs; partial updates are
// never applied. DiscountRateBps is the applied discount in basis points.
type PricingDetails struct {
	BasePrice       int64
	MaterialCost    int64
	NFCCost         int64
	Quantity        int
	DiscountRateBps int64
	DiscountAmount  int64
	Subtotal        int64
	Total           int64
	Currency        string
}

// UnitPrice returns the per-card price before quantity discounts.
func (p PricingDetails) UnitPrice() int64 {
	return p.BasePrice + p.MaterialCost + p.NFCCost
}
