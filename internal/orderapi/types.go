package orderapi

import (
	"time"

	"github.com/noah-isme/storefront/internal/pricing"
)

// VoucherRequest asks the order API to validate a voucher code for a cart.
type VoucherRequest struct {
	Code     string        `json:"code"`
	Phone    string        `json:"phone"`
	Subtotal pricing.Money `json:"subtotal"`
	Outlet   string        `json:"outlet"`
}

// VoucherResult is the discount granted by a valid voucher.
type VoucherResult struct {
	Code   string        `json:"code"`
	Amount pricing.Money `json:"amount"`
}

// OrderOption is a selected option inside a submitted order item.
type OrderOption struct {
	ID        string        `json:"optionId"`
	Name      string        `json:"optionName"`
	GroupName string        `json:"optionGroupName"`
	Price     pricing.Money `json:"price"`
	Quantity  int           `json:"quantity"`
}

// OrderItem is one flattened cart line.
type OrderItem struct {
	ProductID       string        `json:"productId"`
	Name            string        `json:"name"`
	Image           string        `json:"image"`
	Options         []OrderOption `json:"options"`
	Quantity        int           `json:"quantity"`
	Category        string        `json:"categoryName"`
	MinimumDelivery pricing.Money `json:"minimumDelivery"`
	Price           pricing.Money `json:"price"`
	Discount        pricing.Money `json:"discount"`
}

// OrderPayload is the full order submission.
type OrderPayload struct {
	Items         []OrderItem   `json:"items"`
	Subtotal      pricing.Money `json:"subtotal"`
	Tax           pricing.Money `json:"tax"`
	Discount      pricing.Money `json:"discount"`
	DeliveryFee   pricing.Money `json:"deliveryFee"`
	VoucherCode   string        `json:"voucherCode,omitempty"`
	VoucherAmount pricing.Money `json:"voucherAmount"`
	TotalAmount   pricing.Money `json:"totalAmount"`
	CustomerName  string        `json:"customerName"`
	Phone         string        `json:"phone"`
	Email         string        `json:"email,omitempty"`
	Address       string        `json:"address,omitempty"`
	AddressType   string        `json:"addressType"`
	Outlet        string        `json:"outlet"`
	City          string        `json:"city"`
	Area          string        `json:"area"`
	PaymentType   string        `json:"paymentType"`
	Instructions  string        `json:"instructions,omitempty"`
	Currency      string        `json:"currency,omitempty"`
}

// OrderReceipt is returned for an accepted order.
type OrderReceipt struct {
	OrderID string `json:"orderId"`
	Message string `json:"message"`
}

// Product is a menu entry.
type Product struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	Description     string        `json:"description"`
	Image           string        `json:"image"`
	Category        string        `json:"categoryName"`
	Price           pricing.Money `json:"price"`
	OriginalPrice   pricing.Money `json:"originalPrice"`
	Discount        pricing.Money `json:"discount"`
	MinimumDelivery pricing.Money `json:"minimumDelivery"`
	HasOptions      bool          `json:"hasOptions"`
}

// MenuCategory groups products on the menu.
type MenuCategory struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Products []Product `json:"products"`
}

// ProductOption is one selectable option of a group.
type ProductOption struct {
	ID    string        `json:"id"`
	Name  string        `json:"name"`
	Price pricing.Money `json:"price"`
}

// OptionGroup is a named set of options for a product.
type OptionGroup struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Required  bool            `json:"required"`
	MaxSelect int             `json:"maxSelect"`
	Options   []ProductOption `json:"options"`
}

// Order is a placed order as reported by the order API.
type Order struct {
	ID          string        `json:"orderId"`
	Status      string        `json:"status"`
	Phone       string        `json:"phone"`
	Outlet      string        `json:"outlet"`
	AddressType string        `json:"addressType"`
	TotalAmount pricing.Money `json:"totalAmount"`
	Items       []OrderItem   `json:"items"`
	PlacedAt    time.Time     `json:"placedAt"`
}
