package checkout

import (
	"github.com/noah-isme/storefront/internal/address"
	"github.com/noah-isme/storefront/internal/cart"
	"github.com/noah-isme/storefront/internal/orderapi"
	"github.com/noah-isme/storefront/internal/pricing"
)

// MinimumOrder is the highest minimum-delivery threshold among the lines.
func MinimumOrder(lines []cart.Line) pricing.Money {
	var highest pricing.Money
	for _, l := range lines {
		if l.MinDeliveryOrder > highest {
			highest = l.MinDeliveryOrder
		}
	}
	return highest
}

// BuildPayload flattens a cart snapshot into the order submission. The submitted total excludes
// the delivery fee, which the order API adds on its side.
func BuildPayload(snap cart.Snapshot, addr address.Context, req Request, currency string) orderapi.OrderPayload {
	items := make([]orderapi.OrderItem, 0, len(snap.Lines))
	for _, l := range snap.Lines {
		opts := make([]orderapi.OrderOption, 0, len(l.Options))
		for _, o := range l.Options {
			opts = append(opts, orderapi.OrderOption{
				ID:        o.ID,
				Name:      o.Name,
				GroupName: o.GroupName,
				Price:     o.Price,
				Quantity:  o.Quantity,
			})
		}
		items = append(items, orderapi.OrderItem{
			ProductID:       l.ProductID,
			Name:            l.Name,
			Image:           l.Image,
			Options:         opts,
			Quantity:        l.Quantity,
			Category:        l.Category,
			MinimumDelivery: l.MinDeliveryOrder,
			Price:           l.Price,
			Discount:        l.DiscountPerUnit,
		})
	}

	totals := snap.Totals
	paymentType := req.PaymentType
	if paymentType == "" {
		paymentType = firstPaymentType(snap.Lines)
	}
	payload := orderapi.OrderPayload{
		Items:         items,
		Subtotal:      totals.Subtotal,
		Tax:           totals.Tax,
		Discount:      totals.Discount,
		DeliveryFee:   totals.DeliveryFee,
		VoucherCode:   totals.VoucherCode,
		VoucherAmount: totals.VoucherDiscount,
		TotalAmount:   totals.FinalTotal - totals.DeliveryFee,
		CustomerName:  req.CustomerName,
		Phone:         req.Phone,
		Email:         req.Email,
		AddressType:   string(addr.Type),
		Outlet:        addr.Outlet,
		City:          addr.City,
		Area:          addr.Area,
		PaymentType:   paymentType,
		Instructions:  req.Instructions,
		Currency:      currency,
	}
	if addr.Type == address.Delivery {
		payload.Address = req.Address
	}
	return payload
}

func firstPaymentType(lines []cart.Line) string {
	for _, l := range lines {
		if l.PaymentType != "" {
			return l.PaymentType
		}
	}
	return "cash"
}
