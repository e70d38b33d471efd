package menu

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/storefront/internal/orderapi"
)

// ErrInvalidInput is returned for malformed lookups.
var ErrInvalidInput = errors.New("menu: invalid input")

// Source is the upstream catalogue.
type Source interface {
	Menu(ctx context.Context, outlet string) ([]orderapi.MenuCategory, error)
	ProductOptions(ctx context.Context, productID string) ([]orderapi.OptionGroup, error)
}

// Service serves the menu through a read-through cache.
type Service struct {
	Source Source
	Cache  *Cache
	Logger zerolog.Logger
}

func menuKey(outlet string) string {
	if outlet == "" {
		outlet = "default"
	}
	return "menu:" + outlet
}

func optionsKey(productID string) string {
	return "options:" + productID
}

// Menu returns the categories and products available at outlet.
func (s *Service) Menu(ctx context.Context, outlet string) ([]orderapi.MenuCategory, error) {
	outlet = strings.TrimSpace(outlet)
	return readThrough(ctx, s, menuKey(outlet), func(ctx context.Context) ([]orderapi.MenuCategory, error) {
		return s.Source.Menu(ctx, outlet)
	})
}

// ProductOptions returns the option groups of a product.
func (s *Service) ProductOptions(ctx context.Context, productID string) ([]orderapi.OptionGroup, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, ErrInvalidInput
	}
	return readThrough(ctx, s, optionsKey(productID), func(ctx context.Context) ([]orderapi.OptionGroup, error) {
		return s.Source.ProductOptions(ctx, productID)
	})
}

// readThrough serves key from the cache, falling back to load. Cache errors are logged and
// otherwise ignored.
func readThrough[T any](ctx context.Context, s *Service, key string, load func(context.Context) ([]T, error)) ([]T, error) {
	if s.Source == nil {
		return nil, orderapi.ErrNotConfigured
	}
	var cached []T
	hit, err := s.Cache.GetJSON(ctx, key, &cached)
	if err != nil {
		s.Logger.Warn().Err(err).Str("key", key).Msg("menu_cache_read_failed")
	}
	if hit {
		return cached, nil
	}
	fresh, err := load(ctx)
	if err != nil {
		return nil, err
	}
	if fresh == nil {
		fresh = []T{}
	}
	if err := s.Cache.SetJSON(ctx, key, fresh); err != nil {
		s.Logger.Warn().Err(err).Str("key", key).Msg("menu_cache_write_failed")
	}
	return fresh, nil
}
