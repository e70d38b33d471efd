package orderapi

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// ValidateVoucher returns the discount granted for the voucher.
func (c *Client) ValidateVoucher(ctx context.Context, req VoucherRequest) (VoucherResult, error) {
	req.Code = strings.TrimSpace(req.Code)
	var out VoucherResult
	if _, err := c.call(ctx, "validate_voucher", http.MethodPost, "/vouchers/validate", nil, req, &out); err != nil {
		return VoucherResult{}, err
	}
	if out.Code == "" {
		out.Code = req.Code
	}
	if out.Amount < 0 {
		out.Amount = 0
	}
	return out, nil
}

// PlaceOrder submits the order. A receipt is returned only for a success discriminator.
func (c *Client) PlaceOrder(ctx context.Context, payload OrderPayload) (OrderReceipt, error) {
	var out OrderReceipt
	message, err := c.call(ctx, "place_order", http.MethodPost, "/orders", nil, payload, &out)
	if err != nil {
		return OrderReceipt{}, err
	}
	if out.Message == "" {
		out.Message = message
	}
	return out, nil
}

// Menu lists the categories and products of an outlet.
func (c *Client) Menu(ctx context.Context, outlet string) ([]MenuCategory, error) {
	var out []MenuCategory
	if _, err := c.call(ctx, "menu", http.MethodGet, "/menu", outletQuery(outlet), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ProductOptions lists the option groups of a product.
func (c *Client) ProductOptions(ctx context.Context, productID string) ([]OptionGroup, error) {
	var out []OptionGroup
	path := "/products/" + url.PathEscape(strings.TrimSpace(productID)) + "/options"
	if _, err := c.call(ctx, "product_options", http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Suggestions lists suggested add-on products for an outlet.
func (c *Client) Suggestions(ctx context.Context, outlet string) ([]Product, error) {
	var out []Product
	if _, err := c.call(ctx, "suggestions", http.MethodGet, "/suggestions", outletQuery(outlet), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Orders lists orders placed with a phone number.
func (c *Client) Orders(ctx context.Context, phone string) ([]Order, error) {
	var out []Order
	q := url.Values{}
	q.Set("phone", strings.TrimSpace(phone))
	if _, err := c.call(ctx, "orders", http.MethodGet, "/orders", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Order returns one order with its current status.
func (c *Client) Order(ctx context.Context, orderID string) (Order, error) {
	var out Order
	path := "/orders/" + url.PathEscape(strings.TrimSpace(orderID))
	if _, err := c.call(ctx, "order", http.MethodGet, path, nil, nil, &out); err != nil {
		return Order{}, err
	}
	return out, nil
}

func outletQuery(outlet string) url.Values {
	outlet = strings.TrimSpace(outlet)
	if outlet == "" {
		return nil
	}
	return url.Values{"outlet": []string{outlet}}
}
