package cart

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/storefront/internal/pricing"
)

// Totals is derived from the line list and the address context; it is never edited directly.
type Totals struct {
	TaxableSubtotal pricing.Money `json:"taxableSubtotal"`
	Subtotal        pricing.Money `json:"subtotal"`
	Tax             pricing.Money `json:"tax"`
	DeliveryFee     pricing.Money `json:"deliveryFee"`
	VoucherCode     string        `json:"voucherCode,omitempty"`
	VoucherDiscount pricing.Money `json:"voucherDiscount"`
	Discount        pricing.Money `json:"discount"`
	GrossTotal      pricing.Money `json:"grossTotal"`
	FinalTotal      pricing.Money `json:"finalTotal"`
}

// Snapshot is a consistent copy of the cart taken under the session lock.
type Snapshot struct {
	Lines       []Line              `json:"lines"`
	Totals      Totals              `json:"totals"`
	AddressType pricing.AddressType `json:"addressType"`
	TaxRate     float64             `json:"taxRate"`
	Revision    uint64              `json:"revision"`
}

// Persister is the single persistence boundary of a Store.
type Persister interface {
	Save(ctx context.Context, lines []Line) error
	Clear(ctx context.Context) error
}

// Store holds the lines of one cart and the totals of the last recompute. A Store is not safe
// for concurrent use; Session serialises access.
type Store struct {
	lines       []Line
	totals      Totals
	addressType pricing.AddressType
	taxRate     float64
	deliveryFee pricing.Money
	revision    uint64
	voucher     appliedVoucher
	dirty       bool

	persist Persister
	logger  zerolog.Logger
}

// appliedVoucher remembers the subtotal the discount was granted for.
type appliedVoucher struct {
	code   string
	amount pricing.Money
	base   pricing.Money
}

func (v appliedVoucher) active() bool {
	return v.code != "" || v.amount != 0
}

// StoreOption customises a Store.
type StoreOption func(*Store)

// WithPersister attaches the persistence boundary.
func WithPersister(p Persister) StoreOption {
	return func(s *Store) { s.persist = p }
}

// WithLogger sets the logger used for best-effort persistence failures.
func WithLogger(logger zerolog.Logger) StoreOption {
	return func(s *Store) { s.logger = logger }
}

// WithDeliveryFee overrides the flat delivery fee.
func WithDeliveryFee(fee pricing.Money) StoreOption {
	return func(s *Store) { s.deliveryFee = fee }
}

// NewStore constructs an empty store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{deliveryFee: pricing.DefaultDeliveryFee, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Lines returns a copy of the current lines in insertion order.
func (s *Store) Lines() []Line {
	return cloneLines(s.lines)
}

// Totals returns the result of the last recompute.
func (s *Store) Totals() Totals {
	return s.totals
}

// Revision increases on every line, voucher or pricing context change.
func (s *Store) Revision() uint64 {
	return s.revision
}

// Snapshot copies lines, totals and the pricing context in one value.
func (s *Store) Snapshot() Snapshot {
	return Snapshot{
		Lines:       cloneLines(s.lines),
		Totals:      s.totals,
		AddressType: s.addressType,
		TaxRate:     s.taxRate,
		Revision:    s.revision,
	}
}

// Len returns the number of lines.
func (s *Store) Len() int {
	return len(s.lines)
}

// Find returns the line matching key.
func (s *Store) Find(key Key) (Line, bool) {
	if i := s.index(key); i >= 0 {
		return cloneLine(s.lines[i]), true
	}
	return Line{}, false
}

// AddLine appends line verbatim. Merging identical configurations is the caller's concern.
func (s *Store) AddLine(ctx context.Context, line Line) {
	s.lines = append(s.lines, cloneLine(line))
	s.changed(ctx)
}

// RemoveLine removes the line with the given identity key.
func (s *Store) RemoveLine(ctx context.Context, key Key) error {
	i := s.index(key)
	if i < 0 {
		return ErrLineNotFound
	}
	s.lines = append(s.lines[:i], s.lines[i+1:]...)
	s.changed(ctx)
	return nil
}

// RemoveProduct removes every variant of productID and reports how many lines were dropped.
func (s *Store) RemoveProduct(ctx context.Context, productID string) int {
	productID = strings.TrimSpace(productID)
	kept := s.lines[:0]
	removed := 0
	for _, l := range s.lines {
		if l.ProductID == productID {
			removed++
			continue
		}
		kept = append(kept, l)
	}
	s.lines = kept
	if removed > 0 {
		s.changed(ctx)
	}
	return removed
}

// SetQuantity updates the quantity of the line with key. A quantity below 1 removes the line.
func (s *Store) SetQuantity(ctx context.Context, key Key, qty int) error {
	i := s.index(key)
	if i < 0 {
		return ErrLineNotFound
	}
	if qty < 1 {
		s.lines = append(s.lines[:i], s.lines[i+1:]...)
	} else {
		s.lines[i].Quantity = qty
	}
	s.changed(ctx)
	return nil
}

// ApplyVoucher records the voucher against the current subtotal and refreshes the final total
// only. The voucher is dropped as soon as the subtotal moves away from that value.
func (s *Store) ApplyVoucher(code string, amount pricing.Money) {
	if amount < 0 {
		amount = 0
	}
	s.voucher = appliedVoucher{code: strings.TrimSpace(code), amount: amount, base: s.totals.Subtotal}
	s.revision++
	s.refreshFinal()
}

// ClearVoucher drops any applied voucher and refreshes the final total only.
func (s *Store) ClearVoucher() {
	s.voucher = appliedVoucher{}
	s.revision++
	s.refreshFinal()
}

// Voucher returns the applied voucher with the subtotal it was granted for, or the zero value.
func (s *Store) Voucher() VoucherState {
	if !s.voucher.active() {
		return VoucherState{}
	}
	return VoucherState{Code: s.voucher.code, Amount: s.voucher.amount, Subtotal: s.voucher.base}
}

// RestoreVoucher adopts a persisted voucher. A voucher granted for another subtotal is ignored;
// the zero value removes the current one. It reports whether anything changed.
func (s *Store) RestoreVoucher(v VoucherState) bool {
	if v == s.Voucher() {
		return false
	}
	if v == (VoucherState{}) {
		s.voucher = appliedVoucher{}
	} else {
		if v.Subtotal != s.totals.Subtotal || v.Amount < 0 {
			return false
		}
		s.voucher = appliedVoucher{code: v.Code, amount: v.Amount, base: v.Subtotal}
	}
	s.revision++
	s.refreshFinal()
	return true
}

// RecomputeTotals stores the address context and recomputes every total from the current lines.
func (s *Store) RecomputeTotals(addressType pricing.AddressType, taxRate float64) {
	if addressType != s.addressType || taxRate != s.taxRate {
		s.revision++
	}
	s.addressType = addressType
	s.taxRate = taxRate
	s.recompute()
}

// Clear empties the cart and its persisted copy. The address context is kept.
func (s *Store) Clear(ctx context.Context) {
	s.lines = nil
	s.totals = Totals{}
	s.voucher = appliedVoucher{}
	s.revision++
	s.recompute()
	if s.persist == nil {
		return
	}
	if err := s.persist.Clear(ctx); err != nil {
		s.dirty = true
		s.logger.Warn().Err(err).Msg("cart_clear_persist_failed")
		return
	}
	s.dirty = false
}

// Hydrate replaces the lines wholesale, typically at startup. Only line-derived totals are
// refreshed: tax and delivery fee keep their last known values until RecomputeTotals runs.
func (s *Store) Hydrate(lines []Line) {
	s.lines = cloneLines(lines)
	items := pricingItems(s.lines)
	s.totals.TaxableSubtotal = pricing.TaxableSubtotal(items)
	s.totals.Subtotal = pricing.Subtotal(items, s.taxRate)
	s.totals.Discount = pricing.Discount(items)
	s.totals.GrossTotal = pricing.GrossTotal(items)
	s.dropStaleVoucher(s.totals.Subtotal)
	s.refreshFinal()
}

// Sync adopts lines written by another process. Nothing happens when they price the same as
// the lines held; otherwise the revision moves and every total is recomputed.
func (s *Store) Sync(lines []Line) bool {
	if sameLines(s.lines, lines) {
		return false
	}
	s.lines = cloneLines(lines)
	s.revision++
	s.recompute()
	return true
}

// Dirty reports whether the last write to the persister failed, leaving memory ahead of storage.
func (s *Store) Dirty() bool {
	return s.dirty
}

func (s *Store) index(key Key) int {
	for i, l := range s.lines {
		if l.Key() == key {
			return i
		}
	}
	return -1
}

func (s *Store) changed(ctx context.Context) {
	s.revision++
	s.recompute()
	if s.persist == nil {
		return
	}
	if err := s.persist.Save(ctx, s.lines); err != nil {
		s.dirty = true
		s.logger.Warn().Err(err).Int("lines", len(s.lines)).Msg("cart_persist_failed")
		return
	}
	s.dirty = false
}

func (s *Store) recompute() {
	items := pricingItems(s.lines)
	s.dropStaleVoucher(pricing.Subtotal(items, s.taxRate))
	summary := pricing.Compute(items, pricing.Context{
		TaxRate:     s.taxRate,
		AddressType: s.addressType,
		DeliveryFee: s.deliveryFee,
	}, s.voucher.amount)
	s.totals = Totals{
		TaxableSubtotal: summary.TaxableSubtotal,
		Subtotal:        summary.Subtotal,
		Tax:             summary.Tax,
		DeliveryFee:     summary.DeliveryFee,
		VoucherCode:     s.voucher.code,
		VoucherDiscount: summary.Voucher,
		Discount:        summary.Discount,
		GrossTotal:      summary.Gross,
		FinalTotal:      summary.Total,
	}
}

func (s *Store) refreshFinal() {
	s.totals.VoucherCode = s.voucher.code
	s.totals.VoucherDiscount = pricing.ClampVoucher(s.voucher.amount, s.totals.Subtotal, s.totals.Tax)
	s.totals.FinalTotal = pricing.FinalTotal(s.totals.Subtotal, s.totals.VoucherDiscount, s.totals.Tax, s.totals.DeliveryFee)
}

// dropStaleVoucher forgets a voucher granted for a different subtotal.
func (s *Store) dropStaleVoucher(subtotal pricing.Money) {
	if !s.voucher.active() || s.voucher.base == subtotal {
		return
	}
	s.logger.Debug().Str("voucher", s.voucher.code).Int64("granted_for", int64(s.voucher.base)).
		Int64("subtotal", int64(subtotal)).Msg("cart_voucher_dropped")
	s.voucher = appliedVoucher{}
}

func sameLines(a, b []Line) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		x, y := a[i], b[i]
		if x.Key() != y.Key() || x.Quantity != y.Quantity || x.Price != y.Price ||
			x.DiscountPerUnit != y.DiscountPerUnit || x.MinDeliveryOrder != y.MinDeliveryOrder ||
			x.UnitTotal() != y.UnitTotal() {
			return false
		}
	}
	return true
}
