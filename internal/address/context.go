package address

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/storefront/internal/pricing"
	"github.com/noah-isme/storefront/internal/storage"
)

// Type is the fulfilment mode selected by the visitor.
type Type = pricing.AddressType

const (
	None     = pricing.AddressNone
	Delivery = pricing.AddressDelivery
	Pickup   = pricing.AddressPickup
)

// ParseType converts free-form input into a Type. Unknown values map to None.
func ParseType(value string) Type {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "delivery":
		return Delivery
	case "pickup", "takeaway":
		return Pickup
	default:
		return None
	}
}

// Context is the delivery/pickup selection and the tax rate that comes with it. The cart reads
// it to compute totals but never owns it.
type Context struct {
	City    string  `json:"city"`
	Area    string  `json:"area"`
	Outlet  string  `json:"outlet"`
	Type    Type    `json:"addressType"`
	TaxRate float64 `json:"taxRate"`
	Phone   string  `json:"phone"`
}

// Normalize trims text fields and clamps the tax rate to [0,100].
func (c Context) Normalize() Context {
	c.City = strings.TrimSpace(c.City)
	c.Area = strings.TrimSpace(c.Area)
	c.Outlet = strings.TrimSpace(c.Outlet)
	c.Phone = strings.TrimSpace(c.Phone)
	c.Type = ParseType(string(c.Type))
	switch {
	case math.IsNaN(c.TaxRate) || c.TaxRate < 0:
		c.TaxRate = 0
	case c.TaxRate > 100:
		c.TaxRate = 100
	}
	return c
}

// CityChanged reports whether moving from prev to next switches to a different city. Only an
// explicit city switch invalidates cart contents; an initial selection does not.
func CityChanged(prev, next Context) bool {
	if prev.City == "" {
		return false
	}
	return !strings.EqualFold(prev.City, next.City)
}

// Repository persists the context per session.
type Repository struct {
	KV     storage.KV
	Logger zerolog.Logger
}

func key(sessionID string) string {
	return "address:" + sessionID
}

// Load returns the stored context, or the zero Context when nothing usable is stored.
func (r Repository) Load(ctx context.Context, sessionID string) Context {
	out, err := r.Fetch(ctx, sessionID)
	if err != nil {
		r.Logger.Warn().Err(err).Str("session_id", sessionID).Msg("address_load_failed")
		return Context{}
	}
	return out
}

// Fetch is Load that reports storage failures.
func (r Repository) Fetch(ctx context.Context, sessionID string) (Context, error) {
	if r.KV == nil {
		return Context{}, nil
	}
	raw, ok, err := r.KV.Get(ctx, key(sessionID))
	if err != nil {
		return Context{}, err
	}
	if !ok || raw == "" {
		return Context{}, nil
	}
	var out Context
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		r.Logger.Warn().Err(err).Str("session_id", sessionID).Msg("address_decode_failed")
		return Context{}, nil
	}
	return out.Normalize(), nil
}

// Save stores the context for the session.
func (r Repository) Save(ctx context.Context, sessionID string, c Context) error {
	if r.KV == nil {
		return storage.ErrNotConfigured
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode address: %w", err)
	}
	return r.KV.Set(ctx, key(sessionID), string(data))
}
