package services

import (
	"errors"
	"fmt"
	"strings"
)

// ErrPricingMismatch signals that a client-submitted total disagrees with the
// independently recomputed total for the same design and quantity.
var ErrPricingMismatch = errors.New("order validation: pricing mismatch")

// ValidationCheck identifies one validator rule. Checks run in declaration
// order and short-circuit on the first failure.
type ValidationCheck string

const (
	// CheckUserReference requires a user reference on the candidate order.
	CheckUserReference ValidationCheck = "user_reference"
	// CheckDesign requires a structurally valid design.
	CheckDesign ValidationCheck = "design"
	// CheckQuantity requires a positive quantity within the policy bound.
	CheckQuantity ValidationCheck = "quantity"
	// CheckPricing requires the submitted total to match recomputation.
	CheckPricing ValidationCheck = "pricing"
	// CheckShipping requires complete shipping information.
	CheckShipping ValidationCheck = "shipping"
)

// ValidationError names the first check an order failed. It wraps the
// underlying cause so callers can still match sentinel errors with errors.Is.
type ValidationError struct {
	Check  ValidationCheck
	Reason string
	cause  error
}

func (e *ValidationError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("order validation: check %s failed: %v", e.Check, e.cause)
	}
	return fmt.Sprintf("order validation: check %s failed: %s", e.Check, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.cause
}

func failCheck(check ValidationCheck, reason string) *ValidationError {
	return &ValidationError{Check: check, Reason: reason}
}

func failCheckErr(check ValidationCheck, cause error) *ValidationError {
	return &ValidationError{Check: check, Reason: cause.Error(), cause: cause}
}

// defaultMaxOrderQuantity bounds a single order; larger runs go through sales.
const defaultMaxOrderQuantity = 10_000

type orderValidator struct {
	pricing     PricingCalculator
	maxQuantity int
}

type OrderValidatorDeps struct {
	Pricing     PricingCalculator
	MaxQuantity int
}

func NewOrderValidator(deps OrderValidatorDeps) (OrderValidator, error) {
	if deps.Pricing == nil {
		return nil, errors.New("order validator: pricing calculator is required")
	}
	maxQuantity := deps.MaxQuantity
	if maxQuantity <= 0 {
		maxQuantity = defaultMaxOrderQuantity
	}
	return &orderValidator{pricing: deps.Pricing, maxQuantity: maxQuantity}, nil
}

// Validate runs the admission checks in order and returns either an immutable
// validated payload or the first failure. No side effects either way.
func (v *orderValidator) Validate(input CreateOrderInput) (ValidatedOrder, error) {
	if strings.TrimSpace(input.UserID) == "" {
		return ValidatedOrder{}, failCheck(CheckUserReference, "user reference is required")
	}

	if err := validateDesign(input.Design); err != nil {
		return ValidatedOrder{}, failCheckErr(CheckDesign, err)
	}

	if input.Quantity <= 0 {
		return ValidatedOrder{}, failCheckErr(CheckQuantity,
			fmt.Errorf("%w: quantity %d must be positive", ErrInvalidQuantity, input.Quantity))
	}
	if input.Quantity > v.maxQuantity {
		return ValidatedOrder{}, failCheck(CheckQuantity,
			fmt.Sprintf("quantity %d exceeds the maximum of %d", input.Quantity, v.maxQuantity))
	}

	pricing, err := v.pricing.Calculate(input.Design, input.Quantity)
	if err != nil {
		return ValidatedOrder{}, failCheckErr(CheckPricing, err)
	}
	if pricing.Total != input.SubmittedTotal {
		return ValidatedOrder{}, failCheckErr(CheckPricing,
			fmt.Errorf("%w: submitted total %d, recomputed total %d", ErrPricingMismatch, input.SubmittedTotal, pricing.Total))
	}

	if reason, ok := missingShippingField(input.Shipping); !ok {
		return ValidatedOrder{}, failCheck(CheckShipping, reason)
	}

	return ValidatedOrder{
		UserID:   strings.TrimSpace(input.UserID),
		Design:   input.Design.Clone(),
		Quantity: input.Quantity,
		Pricing:  pricing,
		Shipping: trimShipping(input.Shipping),
	}, nil
}

func validateDesign(design Design) error {
	if strings.TrimSpace(design.TemplateID) == "" {
		return fmt.Errorf("%w: design has no template", ErrInvalidConfiguration)
	}
	if !design.Material.Valid() {
		return fmt.Errorf("%w: unknown material %q", ErrInvalidConfiguration, design.Material)
	}
	if !design.ChipType.Valid() {
		return fmt.Errorf("%w: unknown chip type %q", ErrInvalidConfiguration, design.ChipType)
	}
	for _, element := range design.Elements {
		if strings.TrimSpace(element.ID) == "" {
			return fmt.Errorf("%w: design element without identifier", ErrInvalidConfiguration)
		}
		if !element.Kind.Valid() {
			return fmt.Errorf("%w: unknown element kind %q", ErrInvalidConfiguration, element.Kind)
		}
	}
	return nil
}

// missingShippingField checks the fixed required-field set for shipping.
func missingShippingField(shipping ShippingInfo) (string, bool) {
	required := []struct {
		name  string
		value string
	}{
		{"recipient", shipping.Recipient},
		{"line1", shipping.Line1},
		{"city", shipping.City},
		{"postalCode", shipping.PostalCode},
		{"country", shipping.Country},
	}
	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			return fmt.Sprintf("shipping %s is required", field.name), false
		}
	}
	return "", true
}

func trimShipping(shipping ShippingInfo) ShippingInfo {
	return ShippingInfo{
		Recipient:  strings.TrimSpace(shipping.Recipient),
		Line1:      strings.TrimSpace(shipping.Line1),
		Line2:      strings.TrimSpace(shipping.Line2),
		City:       strings.TrimSpace(shipping.City),
		State:      strings.TrimSpace(shipping.State),
		PostalCode: strings.TrimSpace(shipping.PostalCode),
		Country:    strings.TrimSpace(shipping.Country),
		Phone:      strings.TrimSpace(shipping.Phone),
	}
}
