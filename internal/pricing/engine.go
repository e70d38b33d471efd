package pricing

import (
	"math"

	"github.com/shopspring/decimal"
)

// Money represents a monetary value stored in whole currency units.
type Money = int64

// DefaultDeliveryFee is the flat fee charged for delivery orders.
const DefaultDeliveryFee Money = 79

// AddressType mirrors the fulfilment mode that gates the delivery fee.
type AddressType string

const (
	AddressNone     AddressType = ""
	AddressDelivery AddressType = "delivery"
	AddressPickup   AddressType = "pickup"
)

// Item describes a line item used for pricing calculation. UnitPrice is tax inclusive.
type Item struct {
	Qty             int
	UnitPrice       Money
	DiscountPerUnit Money
}

// Context carries the externally owned inputs of a computation.
type Context struct {
	TaxRate     float64
	AddressType AddressType
	DeliveryFee Money
}

// Summary aggregates computed pricing components.
type Summary struct {
	TaxableSubtotal Money
	Subtotal        Money
	Tax             Money
	DeliveryFee     Money
	Voucher         Money
	Discount        Money
	Gross           Money
	Total           Money
}

var hundred = decimal.NewFromInt(100)

// TaxableSubtotal sums unit prices times quantity before backing tax out.
func TaxableSubtotal(items []Item) Money {
	return round(lineSum(items, func(it Item) Money { return it.UnitPrice }))
}

// Subtotal returns the tax-exclusive subtotal. Unit prices already contain tax, so the rate is
// backed out of every line before the single rounding step.
func Subtotal(items []Item, taxRate float64) Money {
	gross := lineSum(items, func(it Item) Money { return it.UnitPrice })
	factor := hundred.Sub(rate(taxRate)).Div(hundred)
	return round(gross.Mul(factor))
}

// Tax computes the tax on an already rounded subtotal.
func Tax(subtotal Money, taxRate float64) Money {
	return round(decimal.NewFromInt(subtotal).Mul(rate(taxRate)).Div(hundred))
}

// Discount sums per-unit discounts times quantity.
func Discount(items []Item) Money {
	var total Money
	for _, it := range items {
		if it.Qty <= 0 || it.DiscountPerUnit <= 0 {
			continue
		}
		total += Money(it.Qty) * it.DiscountPerUnit
	}
	return total
}

// DeliveryFee returns fee for delivery orders and zero otherwise.
func DeliveryFee(addressType AddressType, fee Money) Money {
	if addressType != AddressDelivery || fee < 0 {
		return 0
	}
	return fee
}

// FinalTotal combines the rounded components. The result is never negative.
func FinalTotal(subtotal, voucher, tax, deliveryFee Money) Money {
	total := subtotal - voucher + tax + deliveryFee
	if total < 0 {
		return 0
	}
	return total
}

// ClampVoucher limits a voucher to what the order itself costs before delivery, so the
// delivery fee is always paid in full.
func ClampVoucher(voucher, subtotal, tax Money) Money {
	limit := subtotal + tax
	if limit < 0 {
		limit = 0
	}
	switch {
	case voucher < 0:
		return 0
	case voucher > limit:
		return limit
	}
	return voucher
}

// GrossTotal is the pre-discount total used to render struck-through prices.
func GrossTotal(items []Item) Money {
	return round(lineSum(items, func(it Item) Money { return it.UnitPrice + it.DiscountPerUnit }))
}

// Compute calculates every cart total from the provided inputs.
func Compute(items []Item, ctx Context, voucher Money) Summary {
	subtotal := Subtotal(items, ctx.TaxRate)
	tax := Tax(subtotal, ctx.TaxRate)
	voucher = ClampVoucher(voucher, subtotal, tax)
	fee := DeliveryFee(ctx.AddressType, ctx.DeliveryFee)
	return Summary{
		TaxableSubtotal: TaxableSubtotal(items),
		Subtotal:        subtotal,
		Tax:             tax,
		DeliveryFee:     fee,
		Voucher:         voucher,
		Discount:        Discount(items),
		Gross:           GrossTotal(items),
		Total:           FinalTotal(subtotal, voucher, tax, fee),
	}
}

func lineSum(items []Item, unit func(Item) Money) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		if it.Qty <= 0 {
			continue
		}
		sum = sum.Add(decimal.NewFromInt(unit(it)).Mul(decimal.NewFromInt(int64(it.Qty))))
	}
	return sum
}

func rate(taxRate float64) decimal.Decimal {
	switch {
	case math.IsNaN(taxRate) || taxRate <= 0:
		return decimal.Zero
	case taxRate >= 100:
		return hundred
	}
	return decimal.NewFromFloat(taxRate)
}

// round applies half-away-from-zero rounding to whole units.
func round(d decimal.Decimal) Money {
	return d.Round(0).IntPart()
}
