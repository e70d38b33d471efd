package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/storefront/internal/address"
	"github.com/noah-isme/storefront/internal/cart"
	"github.com/noah-isme/storefront/internal/common"
	"github.com/noah-isme/storefront/internal/lock"
	"github.com/noah-isme/storefront/internal/obs"
	"github.com/noah-isme/storefront/internal/orderapi"
	"github.com/noah-isme/storefront/internal/pricing"
)

// OrderPlacer submits orders to the order API.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, payload orderapi.OrderPayload) (orderapi.OrderReceipt, error)
}

// Locker serialises submissions of one session.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Receipt is returned for an accepted order.
type Receipt struct {
	OrderID     string        `json:"orderId"`
	Message     string        `json:"message"`
	TotalAmount pricing.Money `json:"totalAmount"`
	CartCleared bool          `json:"cartCleared"`
}

// Service places orders built from the visitor's cart.
type Service struct {
	Cart     *cart.Service
	API      OrderPlacer
	Lock     Locker
	LockTTL  time.Duration
	Validate *validator.Validate
	Currency string
	Logger   zerolog.Logger
}

// Submit validates req against the current cart, places the order and empties the cart once
// the order API accepts it. Nothing is sent when validation fails, and a failed submission is
// never retried.
func (s *Service) Submit(ctx context.Context, sessionID string, req Request) (Receipt, error) {
	if s == nil || s.Cart == nil || s.API == nil {
		return Receipt{}, errors.New("checkout service not configured")
	}
	var receipt Receipt
	run := func(ctx context.Context) error {
		var err error
		receipt, err = s.submit(ctx, sessionID, req)
		return err
	}
	var err error
	if s.Lock != nil {
		err = s.Lock.WithLock(ctx, "checkout:"+sessionID, s.LockTTL, run)
	} else {
		err = run(ctx)
	}
	if errors.Is(err, lock.ErrLocked) {
		countSubmit("locked")
		return Receipt{}, common.NewAppError("CHECKOUT_IN_PROGRESS", "Your order is already being placed.", http.StatusConflict, err)
	}
	return receipt, err
}

func (s *Service) submit(ctx context.Context, sessionID string, req Request) (Receipt, error) {
	snap, addr, err := s.Cart.Snapshot(ctx, sessionID)
	if err != nil {
		return Receipt{}, err
	}
	req = req.normalize()
	if req.Phone == "" {
		req.Phone = addr.Phone
	}
	if err := s.validate(snap, addr, req); err != nil {
		countSubmit("invalid")
		return Receipt{}, err
	}

	payload := BuildPayload(snap, addr, req, s.Currency)
	logger := s.Logger.With().Str("session_id", sessionID).Int("items", len(payload.Items)).Logger()

	placed, err := s.API.PlaceOrder(ctx, payload)
	switch {
	case errors.Is(err, orderapi.ErrRejected):
		countSubmit("rejected")
		logger.Info().Err(err).Msg("order_rejected")
		return Receipt{}, common.NewAppError("ORDER_REJECTED", orderapi.RejectionMessage(err), http.StatusUnprocessableEntity, err)
	case err != nil:
		countSubmit("error")
		return Receipt{}, common.UpstreamUnavailable(fmt.Errorf("place order: %w", err))
	}
	countSubmit("accepted")

	cleared, err := s.Cart.CompleteCheckout(ctx, sessionID, snap.Revision)
	if err != nil {
		logger.Warn().Err(err).Str("order_id", placed.OrderID).Msg("cart_clear_after_order_failed")
	}
	if !cleared {
		logger.Info().Str("order_id", placed.OrderID).Msg("cart_changed_during_checkout")
	}
	logger.Info().Str("order_id", placed.OrderID).Int64("total", payload.TotalAmount).Msg("order_placed")
	return Receipt{
		OrderID:     placed.OrderID,
		Message:     placed.Message,
		TotalAmount: payload.TotalAmount,
		CartCleared: cleared,
	}, nil
}

func (s *Service) validate(snap cart.Snapshot, addr address.Context, req Request) error {
	details := map[string]string{}
	if s.Validate != nil {
		if err := s.Validate.Struct(req); err != nil {
			details = fieldErrors(err)
			if details == nil {
				return err
			}
		}
	}
	if len(snap.Lines) == 0 {
		details["cart"] = "empty"
	}
	if addr.Outlet == "" {
		details["outlet"] = "required"
	}
	if addr.Type == address.None {
		details["addressType"] = "required"
	}
	if addr.Type == address.Delivery {
		if req.Address == "" {
			details["address"] = "required"
		}
		if threshold := MinimumOrder(snap.Lines); threshold > 0 && snap.Totals.TaxableSubtotal < threshold {
			details["minimumOrder"] = fmt.Sprintf("min=%d", threshold)
		}
	}
	if len(details) == 0 {
		return nil
	}
	return common.ValidationError("Please check your order details.", details)
}

func countSubmit(result string) {
	if obs.OrderSubmitTotal != nil {
		obs.OrderSubmitTotal.WithLabelValues(result).Inc()
	}
}
