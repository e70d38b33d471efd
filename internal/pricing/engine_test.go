package pricing

import (
	"math"
	"testing"
)

func TestComputeDeliveryScenario(t *testing.T) {
	items := []Item{{Qty: 2, UnitPrice: 1000}}
	summary := Compute(items, Context{TaxRate: 15, AddressType: AddressDelivery, DeliveryFee: DefaultDeliveryFee}, 0)

	if summary.TaxableSubtotal != 2000 {
		t.Fatalf("expected taxable subtotal 2000, got %d", summary.TaxableSubtotal)
	}
	if summary.Subtotal != 1700 {
		t.Fatalf("expected subtotal 1700, got %d", summary.Subtotal)
	}
	if summary.Tax != 255 {
		t.Fatalf("expected tax 255, got %d", summary.Tax)
	}
	if summary.DeliveryFee != 79 {
		t.Fatalf("expected delivery fee 79, got %d", summary.DeliveryFee)
	}
	if summary.Total != 2034 {
		t.Fatalf("expected total 2034, got %d", summary.Total)
	}
}

func TestComputeVoucherOnlyMovesTotal(t *testing.T) {
	items := []Item{{Qty: 2, UnitPrice: 1000}}
	ctx := Context{TaxRate: 15, AddressType: AddressDelivery, DeliveryFee: DefaultDeliveryFee}
	base := Compute(items, ctx, 0)
	withVoucher := Compute(items, ctx, 200)

	if withVoucher.Total != 1834 {
		t.Fatalf("expected total 1834, got %d", withVoucher.Total)
	}
	if withVoucher.Subtotal != base.Subtotal || withVoucher.Tax != base.Tax || withVoucher.DeliveryFee != base.DeliveryFee {
		t.Fatalf("voucher must not change subtotal/tax/fee: %+v vs %+v", withVoucher, base)
	}
}

func TestSubtotalZeroRateMatchesTaxable(t *testing.T) {
	cases := [][]Item{
		nil,
		{{Qty: 1, UnitPrice: 999}},
		{{Qty: 3, UnitPrice: 450}, {Qty: 1, UnitPrice: 1299, DiscountPerUnit: 100}},
	}
	for _, items := range cases {
		if got, want := Subtotal(items, 0), TaxableSubtotal(items); got != want {
			t.Fatalf("subtotal at zero rate %d != taxable %d", got, want)
		}
	}
}

func TestRoundingIsPerStage(t *testing.T) {
	// 999 * 0.835 = 834.165 -> 834; 834 * 0.165 = 137.61 -> 138
	items := []Item{{Qty: 1, UnitPrice: 999}}
	subtotal := Subtotal(items, 16.5)
	if subtotal != 834 {
		t.Fatalf("expected subtotal 834, got %d", subtotal)
	}
	if tax := Tax(subtotal, 16.5); tax != 138 {
		t.Fatalf("expected tax 138, got %d", tax)
	}
}

func TestRoundHalfAwayFromZero(t *testing.T) {
	// 5 * 0.9 = 4.5 -> 5
	if got := Subtotal([]Item{{Qty: 1, UnitPrice: 5}}, 10); got != 5 {
		t.Fatalf("expected 5, got %d", got)
	}
}

func TestDiscountAndGross(t *testing.T) {
	items := []Item{
		{Qty: 2, UnitPrice: 800, DiscountPerUnit: 200},
		{Qty: 1, UnitPrice: 500},
		{Qty: 0, UnitPrice: 10_000, DiscountPerUnit: 10_000},
	}
	if got := Discount(items); got != 400 {
		t.Fatalf("expected discount 400, got %d", got)
	}
	if got := GrossTotal(items); got != 2500 {
		t.Fatalf("expected gross 2500, got %d", got)
	}
}

func TestDeliveryFeeGatedByAddressType(t *testing.T) {
	if DeliveryFee(AddressPickup, 79) != 0 {
		t.Fatal("pickup must not carry a delivery fee")
	}
	if DeliveryFee(AddressNone, 79) != 0 {
		t.Fatal("unset address type must not carry a delivery fee")
	}
	if DeliveryFee(AddressDelivery, 79) != 79 {
		t.Fatal("delivery must carry the flat fee")
	}
}

func TestFinalTotalNeverNegative(t *testing.T) {
	if got := FinalTotal(100, 500, 15, 0); got != 0 {
		t.Fatalf("expected clamp to 0, got %d", got)
	}
}

func TestVoucherCannotEatDeliveryFee(t *testing.T) {
	items := []Item{{Qty: 2, UnitPrice: 1000}}
	summary := Compute(items, Context{TaxRate: 15, AddressType: AddressDelivery, DeliveryFee: 79}, 5000)
	if summary.Voucher != 1955 {
		t.Fatalf("expected voucher capped at subtotal+tax 1955, got %d", summary.Voucher)
	}
	if summary.Total != 79 {
		t.Fatalf("expected only the delivery fee to remain, got %d", summary.Total)
	}
	if summary.Total != summary.Subtotal-summary.Voucher+summary.Tax+summary.DeliveryFee {
		t.Fatalf("total does not reconcile: %+v", summary)
	}
	if got := ClampVoucher(-10, 100, 0); got != 0 {
		t.Fatalf("negative voucher must count as 0, got %d", got)
	}
}

func TestInvalidRatesTreatedAsZero(t *testing.T) {
	items := []Item{{Qty: 1, UnitPrice: 1000}}
	if got := Subtotal(items, math.NaN()); got != 1000 {
		t.Fatalf("expected NaN rate to be ignored, got %d", got)
	}
	if got := Tax(1000, -5); got != 0 {
		t.Fatalf("expected negative rate to be ignored, got %d", got)
	}
}
