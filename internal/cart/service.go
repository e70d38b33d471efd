package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/storefront/internal/address"
	"github.com/noah-isme/storefront/internal/obs"
	"github.com/noah-isme/storefront/internal/orderapi"
)

// ErrEmptyCart is returned by operations that need at least one line.
var ErrEmptyCart = errors.New("cart is empty")

// RemoteAPI is the part of the order API the cart depends on.
type RemoteAPI interface {
	ValidateVoucher(ctx context.Context, req orderapi.VoucherRequest) (orderapi.VoucherResult, error)
	Suggestions(ctx context.Context, outlet string) ([]orderapi.Product, error)
}

// View is what a visitor sees of their cart.
type View struct {
	Lines     []Line          `json:"lines"`
	Totals    Totals          `json:"totals"`
	Address   address.Context `json:"address"`
	ItemCount int             `json:"itemCount"`
	Revision  uint64          `json:"revision"`
}

// Result is the outcome of a mutation.
type Result struct {
	View
	Changed bool `json:"changed"`
}

// Service implements the cart use-cases on top of the session registry.
type Service struct {
	Sessions *Sessions
	API      RemoteAPI
	Logger   zerolog.Logger
}

// NewService constructs a service.
func NewService(sessions *Sessions, api RemoteAPI, logger zerolog.Logger) *Service {
	return &Service{Sessions: sessions, API: api, Logger: logger}
}

func viewOf(sess *Session) View {
	snap := sess.store.Snapshot()
	count := 0
	for _, l := range snap.Lines {
		count += l.Quantity
	}
	return View{
		Lines:     snap.Lines,
		Totals:    snap.Totals,
		Address:   sess.address,
		ItemCount: count,
		Revision:  snap.Revision,
	}
}

// Cart returns the current cart.
func (s *Service) Cart(ctx context.Context, sessionID string) (View, error) {
	var view View
	err := s.Sessions.With(ctx, sessionID, func(sess *Session) error {
		view = viewOf(sess)
		return nil
	})
	return view, err
}

// Snapshot returns the raw store snapshot and address context, for checkout.
func (s *Service) Snapshot(ctx context.Context, sessionID string) (Snapshot, address.Context, error) {
	var (
		snap Snapshot
		addr address.Context
	)
	err := s.Sessions.With(ctx, sessionID, func(sess *Session) error {
		snap = sess.store.Snapshot()
		addr = sess.address
		return nil
	})
	return snap, addr, err
}

// AddToCart merges line into an existing line with the same product and options, or appends it.
func (s *Service) AddToCart(ctx context.Context, sessionID string, line Line) (Result, error) {
	normalized, err := Normalize(line)
	if err != nil {
		return Result{}, err
	}
	var res Result
	err = s.Sessions.With(ctx, sessionID, func(sess *Session) error {
		store := sess.store
		key := normalized.Key()
		if existing, ok := store.Find(key); ok {
			if err := store.SetQuantity(ctx, key, existing.Quantity+1); err != nil {
				return err
			}
			obs.CountCartMutation("merge")
		} else {
			store.AddLine(ctx, normalized)
			obs.CountCartMutation("add")
		}
		res = Result{View: viewOf(sess), Changed: true}
		return nil
	})
	return res, err
}

// IncrementQuantity adds one unit to the matching line.
func (s *Service) IncrementQuantity(ctx context.Context, sessionID, productID string, options []Option) (Result, error) {
	var res Result
	err := s.Sessions.With(ctx, sessionID, func(sess *Session) error {
		line, ok := locate(sess.store, productID, options)
		if !ok {
			return ErrLineNotFound
		}
		if err := sess.store.SetQuantity(ctx, line.Key(), line.Quantity+1); err != nil {
			return err
		}
		obs.CountCartMutation("increment")
		res = Result{View: viewOf(sess), Changed: true}
		return nil
	})
	return res, err
}

// DecrementQuantity removes one unit from the matching line while it has more than one. A line
// with a single unit is left alone; removing it is RemoveLine's job.
func (s *Service) DecrementQuantity(ctx context.Context, sessionID, productID string, options []Option) (Result, error) {
	var res Result
	err := s.Sessions.With(ctx, sessionID, func(sess *Session) error {
		line, ok := locate(sess.store, productID, options)
		if !ok {
			return ErrLineNotFound
		}
		if line.Quantity <= 1 {
			res = Result{View: viewOf(sess), Changed: false}
			return nil
		}
		if err := sess.store.SetQuantity(ctx, line.Key(), line.Quantity-1); err != nil {
			return err
		}
		obs.CountCartMutation("decrement")
		res = Result{View: viewOf(sess), Changed: true}
		return nil
	})
	return res, err
}

// RemoveLine removes one line, found the same way Increment and Decrement find it.
func (s *Service) RemoveLine(ctx context.Context, sessionID, productID string, options []Option) (Result, error) {
	var res Result
	err := s.Sessions.With(ctx, sessionID, func(sess *Session) error {
		line, ok := locate(sess.store, productID, options)
		if !ok {
			return ErrLineNotFound
		}
		if err := sess.store.RemoveLine(ctx, line.Key()); err != nil {
			return err
		}
		obs.CountCartMutation("remove")
		res = Result{View: viewOf(sess), Changed: true}
		return nil
	})
	return res, err
}

// RemoveProduct removes every option variant of a product.
func (s *Service) RemoveProduct(ctx context.Context, sessionID, productID string) (Result, error) {
	if strings.TrimSpace(productID) == "" {
		return Result{}, fmt.Errorf("productId is required: %w", ErrInvalidInput)
	}
	var res Result
	err := s.Sessions.With(ctx, sessionID, func(sess *Session) error {
		removed := sess.store.RemoveProduct(ctx, productID)
		if removed == 0 {
			return ErrLineNotFound
		}
		obs.CountCartMutation("remove_product")
		res = Result{View: viewOf(sess), Changed: true}
		return nil
	})
	return res, err
}

// ApplyVoucher validates code with the order API and applies the returned discount. The call is
// made without holding the cart; if the cart changed meanwhile the answer is discarded with
// ErrStaleResponse so a discount computed for other contents is never applied.
func (s *Service) ApplyVoucher(ctx context.Context, sessionID, code string) (Result, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Result{}, fmt.Errorf("voucher code is required: %w", ErrInvalidInput)
	}
	if s.API == nil {
		return Result{}, orderapi.ErrNotConfigured
	}
	var (
		revision uint64
		req      orderapi.VoucherRequest
	)
	err := s.Sessions.With(ctx, sessionID, func(sess *Session) error {
		if sess.store.Len() == 0 {
			return ErrEmptyCart
		}
		revision = sess.store.Revision()
		req = orderapi.VoucherRequest{
			Code:     code,
			Phone:    sess.address.Phone,
			Subtotal: sess.store.Totals().Subtotal,
			Outlet:   sess.address.Outlet,
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	voucher, err := s.API.ValidateVoucher(ctx, req)
	if err != nil {
		result := "error"
		if errors.Is(err, orderapi.ErrRejected) {
			result = "rejected"
		}
		countVoucher(result)
		return Result{}, err
	}

	var res Result
	err = s.Sessions.With(ctx, sessionID, func(sess *Session) error {
		if sess.store.Revision() != revision {
			return ErrStaleResponse
		}
		sess.store.ApplyVoucher(voucher.Code, voucher.Amount)
		res = Result{View: viewOf(sess), Changed: true}
		return nil
	})
	switch {
	case errors.Is(err, ErrStaleResponse):
		countVoucher("stale")
		s.Logger.Info().Str("session_id", sessionID).Msg("voucher_response_discarded")
	case err == nil:
		countVoucher("applied")
	}
	return res, err
}

// RemoveVoucher drops the applied voucher.
func (s *Service) RemoveVoucher(ctx context.Context, sessionID string) (Result, error) {
	var res Result
	err := s.Sessions.With(ctx, sessionID, func(sess *Session) error {
		changed := sess.store.Totals().VoucherCode != "" || sess.store.Totals().VoucherDiscount != 0
		if changed {
			sess.store.ClearVoucher()
			obs.CountCartMutation("voucher_remove")
		}
		res = Result{View: viewOf(sess), Changed: changed}
		return nil
	})
	return res, err
}

// ClearCart empties the cart and its persisted copy.
func (s *Service) ClearCart(ctx context.Context, sessionID string) (Result, error) {
	var res Result
	err := s.Sessions.With(ctx, sessionID, func(sess *Session) error {
		sess.store.Clear(ctx)
		obs.CountCartMutation("clear")
		res = Result{View: viewOf(sess), Changed: true}
		return nil
	})
	return res, err
}

// AddressResult reports whether the address change emptied the cart.
type AddressResult struct {
	View
	Cleared bool `json:"cleared"`
}

// ChangeAddress stores a new address context and recomputes totals. Switching to another city
// empties the cart because menus and prices differ between cities.
func (s *Service) ChangeAddress(ctx context.Context, sessionID string, next address.Context) (AddressResult, error) {
	next = next.Normalize()
	var res AddressResult
	err := s.Sessions.With(ctx, sessionID, func(sess *Session) error {
		cleared := false
		if address.CityChanged(sess.address, next) && sess.store.Len() > 0 {
			sess.store.Clear(ctx)
			cleared = true
		}
		if err := s.Sessions.Addresses.Save(ctx, sess.ID, next); err != nil {
			s.Logger.Warn().Err(err).Str("session_id", sess.ID).Msg("address_persist_failed")
		}
		sess.address = next
		sess.store.RecomputeTotals(next.Type, next.TaxRate)
		obs.CountCartMutation("address")
		res = AddressResult{View: viewOf(sess), Cleared: cleared}
		return nil
	})
	return res, err
}

// CompleteCheckout empties the cart after an accepted order if nothing changed since the
// snapshot the order was built from. It reports whether the cart was cleared.
func (s *Service) CompleteCheckout(ctx context.Context, sessionID string, revision uint64) (bool, error) {
	cleared := false
	err := s.Sessions.With(ctx, sessionID, func(sess *Session) error {
		if sess.store.Revision() != revision {
			return nil
		}
		sess.store.Clear(ctx)
		obs.CountCartMutation("checkout")
		cleared = true
		return nil
	})
	return cleared, err
}

// Suggestions returns suggested products for the visitor's outlet that are not in the cart yet.
// The filter runs against the cart as it is when the answer arrives.
func (s *Service) Suggestions(ctx context.Context, sessionID string) ([]orderapi.Product, error) {
	if s.API == nil {
		return nil, orderapi.ErrNotConfigured
	}
	var outlet string
	if err := s.Sessions.With(ctx, sessionID, func(sess *Session) error {
		outlet = sess.address.Outlet
		return nil
	}); err != nil {
		return nil, err
	}

	products, err := s.API.Suggestions(ctx, outlet)
	if err != nil {
		return nil, err
	}

	out := make([]orderapi.Product, 0, len(products))
	err = s.Sessions.With(ctx, sessionID, func(sess *Session) error {
		inCart := make(map[string]struct{}, sess.store.Len())
		for _, l := range sess.store.Lines() {
			inCart[l.ProductID] = struct{}{}
		}
		for _, p := range products {
			if _, ok := inCart[p.ID]; ok {
				continue
			}
			out = append(out, p)
		}
		return nil
	})
	return out, err
}

// locate finds the line to adjust. With options the match is exact; without, an option-less
// line of the product wins over the first variant of it.
func locate(store *Store, productID string, options []Option) (Line, bool) {
	productID = strings.TrimSpace(productID)
	if len(options) > 0 {
		return store.Find(KeyFor(productID, options))
	}
	if line, ok := store.Find(KeyFor(productID, nil)); ok {
		return line, true
	}
	for _, l := range store.Lines() {
		if l.ProductID == productID {
			return l, true
		}
	}
	return Line{}, false
}

func countVoucher(result string) {
	if obs.VoucherApplyTotal != nil {
		obs.VoucherApplyTotal.WithLabelValues(result).Inc()
	}
}
