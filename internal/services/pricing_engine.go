package services

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfiguration signals a design whose material or chip type is
	// outside the supported set or missing a pricing rule.
	ErrInvalidConfiguration = errors.New("pricing: invalid configuration")
	// ErrInvalidQuantity signals a non-positive order quantity.
	ErrInvalidQuantity = errors.New("pricing: invalid quantity")
)

// basePriceMinorUnits is the per-card base price before surcharges (9.99).
const basePriceMinorUnits int64 = 999

// maxCalculableQuantity bounds a single calculation so the minor-unit
// arithmetic stays inside int64. Order policy caps are enforced separately at
// validation; this is the calculator's own ceiling.
const maxCalculableQuantity = 1_000_000

// materialSurcharges maps every supported material to its per-card surcharge
// in minor units. The table must stay exhaustive over domain.Materials; a
// supported value with no entry is treated as a configuration error, never as
// zero cost.
var materialSurcharges = map[Material]int64{
	MaterialPVC:            0,
	MaterialPremiumPlastic: 150,
	MaterialWood:           300,
	MaterialMetal:          500,
}

// chipSurcharges maps every supported NFC chip model to its per-card
// surcharge in minor units. Same exhaustiveness contract as
// materialSurcharges.
var chipSurcharges = map[ChipType]int64{
	ChipNTAG213: 0,
	ChipNTAG215: 200,
	ChipNTAG216: 400,
}

// discountTier pairs an inclusive quantity threshold with a discount rate in
// basis points.
type discountTier struct {
	MinQuantity int
	RateBps     int64
}

// discountTiers is evaluated highest threshold first; tiers are mutually
// exclusive, so a quantity qualifying for several gets only the highest.
var discountTiers = []discountTier{
	{MinQuantity: 1000, RateBps: 3000},
	{MinQuantity: 500, RateBps: 2000},
	{MinQuantity: 100, RateBps: 1000},
}

// PricingEngine derives an itemized price breakdown from a design
// configuration and quantity. Calculation is pure and deterministic: no I/O,
// no caching, cheap enough to run on every designer mutation.
type PricingEngine struct {
	currency string
}

type PricingEngineDeps struct {
	Currency string
}

func NewPricingEngine(deps PricingEngineDeps) (*PricingEngine, error) {
	currency := deps.Currency
	if currency == "" {
		currency = DefaultCurrency
	}
	if len(currency) != 3 {
		return nil, fmt.Errorf("pricing engine: invalid currency %q", currency)
	}
	return &PricingEngine{currency: currency}, nil
}

// Calculate prices the given design at the given quantity. All intermediate
// arithmetic happens on minor units; rounding only enters through the single
// integer division applying the discount rate, so identical inputs always
// produce identical totals.
func (e *PricingEngine) Calculate(design Design, quantity int) (PricingDetails, error) {
	if quantity <= 0 {
		return PricingDetails{}, fmt.Errorf("%w: quantity %d must be positive", ErrInvalidQuantity, quantity)
	}
	if quantity > maxCalculableQuantity {
		return PricingDetails{}, fmt.Errorf("%w: quantity %d exceeds maximum %d", ErrInvalidQuantity, quantity, maxCalculableQuantity)
	}
	materialCost, err := materialSurcharge(design.Material)
	if err != nil {
		return PricingDetails{}, err
	}
	chipCost, err := chipSurcharge(design.ChipType)
	if err != nil {
		return PricingDetails{}, err
	}

	unit := basePriceMinorUnits + materialCost + chipCost
	subtotal := unit * int64(quantity)
	rate := discountRateBps(quantity)
	discountAmount := subtotal * rate / 10_000
	total := subtotal - discountAmount

	return PricingDetails{
		BasePrice:       basePriceMinorUnits,
		MaterialCost:    materialCost,
		NFCCost:         chipCost,
		Quantity:        quantity,
		DiscountRateBps: rate,
		DiscountAmount:  discountAmount,
		Subtotal:        subtotal,
		Total:           total,
		Currency:        e.currency,
	}, nil
}

// Currency returns the settlement currency the engine prices in.
func (e *PricingEngine) Currency() string {
	return e.currency
}

func materialSurcharge(material Material) (int64, error) {
	if !material.Valid() {
		return 0, fmt.Errorf("%w: unknown material %q", ErrInvalidConfiguration, material)
	}
	cost, ok := materialSurcharges[material]
	if !ok {
		return 0, fmt.Errorf("%w: no pricing rule for material %q", ErrInvalidConfiguration, material)
	}
	return cost, nil
}

func chipSurcharge(chip ChipType) (int64, error) {
	if !chip.Valid() {
		return 0, fmt.Errorf("%w: unknown chip type %q", ErrInvalidConfiguration, chip)
	}
	cost, ok := chipSurcharges[chip]
	if !ok {
		return 0, fmt.Errorf("%w: no pricing rule for chip type %q", ErrInvalidConfiguration, chip)
	}
	return cost, nil
}

func discountRateBps(quantity int) int64 {
	for _, tier := range discountTiers {
		if quantity >= tier.MinQuantity {
			return tier.RateBps
		}
	}
	return 0
}
