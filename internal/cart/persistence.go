package cart

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/noah-isme/storefront/internal/pricing"
	"github.com/noah-isme/storefront/internal/storage"
)

// VoucherState is the stored form of an applied voucher.
type VoucherState struct {
	Code     string        `json:"code"`
	Amount   pricing.Money `json:"amount"`
	Subtotal pricing.Money `json:"subtotal"`
}

// LineStorage serialises a cart's lines as one JSON array under one key. The applied voucher,
// when VoucherKey is set, lives under its own key.
type LineStorage struct {
	KV         storage.KV
	Key        string
	VoucherKey string
	Logger     zerolog.Logger
}

// StorageKey returns the key holding the lines of a session.
func StorageKey(sessionID string) string {
	return "cart:" + sessionID
}

// VoucherKey returns the key holding the applied voucher of a session.
func VoucherKey(sessionID string) string {
	return "voucher:" + sessionID
}

// Save writes the full line list.
func (p LineStorage) Save(ctx context.Context, lines []Line) error {
	if p.KV == nil {
		return storage.ErrNotConfigured
	}
	if lines == nil {
		lines = []Line{}
	}
	data, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("encode cart lines: %w", err)
	}
	return p.KV.Set(ctx, p.Key, string(data))
}

// Load reads the persisted lines. Missing or unreadable data yields an empty list.
func (p LineStorage) Load(ctx context.Context) []Line {
	lines, err := p.Fetch(ctx)
	if err != nil {
		p.Logger.Warn().Err(err).Str("key", p.Key).Msg("cart_load_failed")
		return []Line{}
	}
	return lines
}

// Fetch is Load that reports storage failures instead of hiding them. Corrupt data still reads
// as an empty cart.
func (p LineStorage) Fetch(ctx context.Context) ([]Line, error) {
	if p.KV == nil {
		return []Line{}, nil
	}
	raw, ok, err := p.KV.Get(ctx, p.Key)
	if err != nil {
		return nil, err
	}
	if !ok || raw == "" {
		return []Line{}, nil
	}
	var lines []Line
	if err := json.Unmarshal([]byte(raw), &lines); err != nil {
		p.Logger.Warn().Err(err).Str("key", p.Key).Msg("cart_decode_failed")
		return []Line{}, nil
	}
	out := make([]Line, 0, len(lines))
	for _, l := range lines {
		normalized, err := Normalize(l)
		if err != nil {
			continue
		}
		out = append(out, normalized)
	}
	return out, nil
}

// Clear removes the persisted lines and voucher.
func (p LineStorage) Clear(ctx context.Context) error {
	if p.KV == nil {
		return storage.ErrNotConfigured
	}
	if err := p.KV.Delete(ctx, p.Key); err != nil {
		return err
	}
	if p.VoucherKey == "" {
		return nil
	}
	return p.KV.Delete(ctx, p.VoucherKey)
}

// SaveVoucher stores v, or deletes the stored voucher when v is the zero value.
func (p LineStorage) SaveVoucher(ctx context.Context, v VoucherState) error {
	if p.VoucherKey == "" {
		return nil
	}
	if p.KV == nil {
		return storage.ErrNotConfigured
	}
	if v == (VoucherState{}) {
		return p.KV.Delete(ctx, p.VoucherKey)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode voucher: %w", err)
	}
	return p.KV.Set(ctx, p.VoucherKey, string(data))
}

// FetchVoucher reads the stored voucher. Missing or corrupt data reads as no voucher.
func (p LineStorage) FetchVoucher(ctx context.Context) (VoucherState, error) {
	if p.KV == nil || p.VoucherKey == "" {
		return VoucherState{}, nil
	}
	raw, ok, err := p.KV.Get(ctx, p.VoucherKey)
	if err != nil || !ok || raw == "" {
		return VoucherState{}, err
	}
	var v VoucherState
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		p.Logger.Warn().Err(err).Str("key", p.VoucherKey).Msg("voucher_decode_failed")
		return VoucherState{}, nil
	}
	return v, nil
}
