package cart

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/noah-isme/storefront/internal/pricing"
)

var (
	// ErrInvalidInput is returned when the provided payload is invalid.
	ErrInvalidInput = errors.New("invalid input")
	// ErrLineNotFound indicates no cart line matches the requested identity.
	ErrLineNotFound = errors.New("cart line not found")
	// ErrStaleResponse is returned when an upstream answer arrives after the cart changed.
	ErrStaleResponse = errors.New("cart changed while request was in flight")
)

// Option is one selected add-on or variant of a product.
type Option struct {
	ID        string        `json:"optionId"`
	Name      string        `json:"optionName"`
	GroupName string        `json:"optionGroupName"`
	Price     pricing.Money `json:"price"`
	Quantity  int           `json:"quantity"`
}

// Line is one distinct purchasable configuration in the cart.
type Line struct {
	ProductID        string        `json:"productId"`
	Name             string        `json:"name"`
	Image            string        `json:"image"`
	Quantity         int           `json:"quantity"`
	Category         string        `json:"categoryName"`
	Price            pricing.Money `json:"price"`
	OriginalPrice    pricing.Money `json:"originalPrice"`
	DiscountPerUnit  pricing.Money `json:"discountGiven"`
	MinDeliveryOrder pricing.Money `json:"minimumDelivery"`
	PaymentType      string        `json:"paymentType"`
	Instructions     string        `json:"instructions"`
	Options          []Option      `json:"options"`
}

// Key identifies a line: the product plus its normalised option selection.
type Key struct {
	ProductID string
	Options   string
}

func (k Key) String() string {
	if k.Options == "" {
		return k.ProductID
	}
	return k.ProductID + "|" + k.Options
}

// KeyFor builds the identity key for a product and option selection. Option order is irrelevant.
func KeyFor(productID string, options []Option) Key {
	return Key{ProductID: strings.TrimSpace(productID), Options: optionsKey(options)}
}

// Key returns the identity key of the line.
func (l Line) Key() Key {
	return KeyFor(l.ProductID, l.Options)
}

// UnitTotal is the tax-inclusive price of one unit including its options.
func (l Line) UnitTotal() pricing.Money {
	total := l.Price
	for _, opt := range l.Options {
		total += opt.Price * pricing.Money(optionQty(opt.Quantity))
	}
	return total
}

// LineTotal is UnitTotal times quantity.
func (l Line) LineTotal() pricing.Money {
	return l.UnitTotal() * pricing.Money(l.Quantity)
}

// Normalize defaults missing or negative values at the boundary and validates required fields.
func Normalize(l Line) (Line, error) {
	l.ProductID = strings.TrimSpace(l.ProductID)
	if l.ProductID == "" {
		return Line{}, fmt.Errorf("productId is required: %w", ErrInvalidInput)
	}
	l.Name = strings.TrimSpace(l.Name)
	l.Image = strings.TrimSpace(l.Image)
	l.Category = strings.TrimSpace(l.Category)
	l.PaymentType = strings.TrimSpace(l.PaymentType)
	l.Instructions = strings.TrimSpace(l.Instructions)
	if l.Quantity < 1 {
		l.Quantity = 1
	}
	l.Price = nonNegative(l.Price)
	l.OriginalPrice = nonNegative(l.OriginalPrice)
	l.DiscountPerUnit = nonNegative(l.DiscountPerUnit)
	l.MinDeliveryOrder = nonNegative(l.MinDeliveryOrder)
	if l.OriginalPrice == 0 {
		l.OriginalPrice = l.Price + l.DiscountPerUnit
	}
	l.Options = normalizeOptions(l.Options)
	return l, nil
}

func normalizeOptions(in []Option) []Option {
	if len(in) == 0 {
		return in
	}
	out := make([]Option, 0, len(in))
	for _, opt := range in {
		opt.ID = strings.TrimSpace(opt.ID)
		if opt.ID == "" {
			continue
		}
		opt.Name = strings.TrimSpace(opt.Name)
		opt.GroupName = strings.TrimSpace(opt.GroupName)
		opt.Price = nonNegative(opt.Price)
		opt.Quantity = optionQty(opt.Quantity)
		out = append(out, opt)
	}
	return out
}

func optionsKey(options []Option) string {
	if len(options) == 0 {
		return ""
	}
	parts := make([]string, 0, len(options))
	for _, opt := range options {
		id := strings.TrimSpace(opt.ID)
		if id == "" {
			continue
		}
		parts = append(parts, id+"x"+strconv.Itoa(optionQty(opt.Quantity)))
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

func optionQty(q int) int {
	if q < 1 {
		return 1
	}
	return q
}

func nonNegative(v pricing.Money) pricing.Money {
	if v < 0 {
		return 0
	}
	return v
}

func cloneLine(l Line) Line {
	if l.Options != nil {
		l.Options = append([]Option(nil), l.Options...)
	}
	return l
}

func cloneLines(lines []Line) []Line {
	out := make([]Line, len(lines))
	for i, l := range lines {
		out[i] = cloneLine(l)
	}
	return out
}

func pricingItems(lines []Line) []pricing.Item {
	items := make([]pricing.Item, 0, len(lines))
	for _, l := range lines {
		items = append(items, pricing.Item{Qty: l.Quantity, UnitPrice: l.UnitTotal(), DiscountPerUnit: l.DiscountPerUnit})
	}
	return items
}
