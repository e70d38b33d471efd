package app

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/noah-isme/storefront/internal/cart"
	"github.com/noah-isme/storefront/internal/checkout"
	"github.com/noah-isme/storefront/internal/common"
	"github.com/noah-isme/storefront/internal/health"
	"github.com/noah-isme/storefront/internal/lock"
	"github.com/noah-isme/storefront/internal/menu"
	"github.com/noah-isme/storefront/internal/obs"
	"github.com/noah-isme/storefront/internal/orders"
	"github.com/noah-isme/storefront/internal/ratelimit"
	"github.com/noah-isme/storefront/internal/security"
	"github.com/noah-isme/storefront/internal/session"
	"github.com/noah-isme/storefront/internal/storage"
)

const csrfHeader = "X-CSRF-Token"

// App is the assembled service.
type App struct {
	Router   http.Handler
	Sessions *cart.Sessions
}

// New wires every component and mounts the HTTP routes.
func New(deps Dependencies) (*App, error) {
	cfg := deps.Config
	if cfg == nil {
		return nil, errors.New("app: config is required")
	}
	if deps.Redis == nil {
		return nil, errors.New("app: redis client is required")
	}
	if deps.OrderAPI == nil {
		return nil, errors.New("app: order api client is required")
	}
	logger := deps.Logger

	tokens, err := session.NewTokens(session.Config{
		Secret:   cfg.SessionSecret,
		Issuer:   cfg.SessionIssuer,
		Audience: cfg.SessionAudience,
		TTL:      cfg.SessionTTL,
	})
	if err != nil {
		return nil, err
	}
	validate := deps.Validator
	if validate == nil {
		if validate, err = NewValidator(cfg); err != nil {
			return nil, err
		}
	}

	kv := storage.NewRedisKV(deps.Redis, "", cfg.CartTTL)
	sessions := cart.NewSessions(kv, cfg.DeliveryFee, logger)
	sessions.Guard = lock.Locker{R: deps.Redis, Prefix: "lock:", Wait: cfg.CartLockWait}
	cartSvc := cart.NewService(sessions, deps.OrderAPI, logger)
	checkoutSvc := &checkout.Service{
		Cart:     cartSvc,
		API:      deps.OrderAPI,
		Lock:     lock.Locker{R: deps.Redis},
		LockTTL:  cfg.CheckoutLockTTL,
		Validate: validate,
		Currency: cfg.CurrencyCode,
		Logger:   logger,
	}
	menuSvc := &menu.Service{
		Source: deps.OrderAPI,
		Cache:  menu.NewCache(deps.Redis, "", cfg.MenuCacheTTL),
		Logger: logger,
	}

	sessionHandler := session.Handler{
		Tokens: tokens,
		Cookies: session.CookieOptions{
			Name:       session.DefaultCookie,
			CSRFHeader: csrfHeader,
			Domain:     cfg.CookieDomain,
			Secure:     cfg.CookieSecure,
			SameSite:   cfg.CookieSameSite,
		},
		Logger: logger,
	}
	sessionMW := session.Middleware{Tokens: tokens, Cookie: session.DefaultCookie}
	csrf := security.CSRF{Header: csrfHeader, SessionCookie: session.DefaultCookie}
	cartHandler := &cart.Handler{Svc: cartSvc}
	checkoutHandler := &checkout.Handler{Svc: checkoutSvc}
	menuHandler := &menu.Handler{Svc: menuSvc}
	ordersHandler := &orders.Handler{API: deps.OrderAPI, Addresses: cartSvc}
	idem := common.Idem{R: deps.Redis, TTL: cfg.IdempotencyTTL}
	limiter := ratelimit.Limiter{Client: deps.Redis, Prefix: "rl:"}
	limit := func(scope string) func(http.Handler) http.Handler {
		return ratelimit.Handler{
			Limiter: limiter,
			Config:  ratelimit.Config{Key: ratelimit.SessionKey(scope), Window: cfg.RateLimitWindow, Max: cfg.RateLimitMax},
			OnError: func(err error) { logger.Warn().Err(err).Str("scope", scope).Msg("rate_limit_unavailable") },
		}.Middleware
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if deps.Tracing {
		r.Use(obs.TracingMiddleware)
	}
	if deps.HTTPMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: deps.HTTPMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg.CORSAllowedOrigins),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", csrfHeader, "Idempotency-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(security.Headers{Enable: true, EnableHSTS: cfg.IsProduction(), HSTSMaxAge: 31536000}.Middleware)
	r.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)

	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}
	healthHandler := health.Handler{
		Checker:         readinessChecker{redis: deps.Redis, orderAPI: deps.OrderAPI},
		RedisTimeout:    deps.HealthTimeouts.Redis,
		OrderAPITimeout: deps.HealthTimeouts.OrderAPI,
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Post("/session", sessionHandler.Create)
		v.Get("/menu", menuHandler.Menu)
		v.Get("/menu/products/{id}/options", menuHandler.Options)

		v.Group(func(s chi.Router) {
			s.Use(sessionMW.Require)
			s.Use(csrf.Middleware)

			s.Route("/cart", func(c chi.Router) {
				cartHandler.Routes(c, limit("voucher"))
			})
			s.With(limit("checkout"), idem.Middleware).Post("/checkout", checkoutHandler.Checkout)
			s.Get("/orders", ordersHandler.List)
			s.Get("/orders/{id}", ordersHandler.Get)
		})
	})

	return &App{Router: r, Sessions: sessions}, nil
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
