package app

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"time"

	validator "github.com/go-playground/validator/v10"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/storefront/internal/checkout"
	"github.com/noah-isme/storefront/internal/config"
	"github.com/noah-isme/storefront/internal/obs"
	"github.com/noah-isme/storefront/internal/orderapi"
)

// Dependencies enumerates the shared infrastructure the HTTP surface is built from.
type Dependencies struct {
	Config         *config.Config
	Logger         zerolog.Logger
	Redis          *redis.Client
	OrderAPI       *orderapi.Client
	Validator      *validator.Validate
	HTTPMetrics    *obs.HTTPMetrics
	MetricsHandler http.Handler
	Tracing        bool
	HealthTimeouts HealthTimeouts
}

// HealthTimeouts bounds readiness probes.
type HealthTimeouts struct {
	Redis    time.Duration
	OrderAPI time.Duration
}

// NewValidator builds the checkout validator from the configured phone pattern.
func NewValidator(cfg *config.Config) (*validator.Validate, error) {
	pattern, err := regexp.Compile(cfg.PhonePattern)
	if err != nil {
		return nil, err
	}
	return checkout.NewValidator(pattern), nil
}

type readinessChecker struct {
	redis    *redis.Client
	orderAPI *orderapi.Client
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
}

func (c readinessChecker) PingOrderAPI(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.orderAPI.Ping(ctx)
}
