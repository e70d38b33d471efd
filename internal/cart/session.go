package cart

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/storefront/internal/address"
	"github.com/noah-isme/storefront/internal/lock"
	"github.com/noah-isme/storefront/internal/obs"
	"github.com/noah-isme/storefront/internal/pricing"
	"github.com/noah-isme/storefront/internal/storage"
)

// ErrNoSession is returned when an operation is attempted without a session identifier.
var ErrNoSession = errors.New("cart: session id is required")

// ErrBusy is returned when another process keeps the cart locked past the wait budget.
var ErrBusy = errors.New("cart: busy in another process")

// Guard serialises access to one cart across processes sharing the same storage.
// lock.Locker satisfies it.
type Guard interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Session is the in-memory cart of one visitor. Access goes through Sessions.With, which holds
// the session lock for the duration of the callback.
type Session struct {
	ID string

	mu       sync.Mutex
	store    *Store
	persist  LineStorage
	voucher  VoucherState
	address  address.Context
	ready    bool
	evicted  bool
	lastUsed time.Time
}

// Store returns the cart store of the session.
func (s *Session) Store() *Store { return s.store }

// Address returns the address context last loaded or set.
func (s *Session) Address() address.Context { return s.address }

// Sessions is the registry of live carts. Carts are created lazily on first touch and
// initialised from storage in two phases: lines are hydrated, then totals are recomputed once
// the address context is known.
//
// Without a Guard the registry assumes it is the only writer of its carts. With one, every
// access holds the guard lock for the cart and first re-reads lines and address from storage,
// so replicas sharing the store never overwrite each other's changes.
type Sessions struct {
	KV          storage.KV
	Addresses   address.Repository
	DeliveryFee pricing.Money
	Logger      zerolog.Logger
	Now         func() time.Time
	Guard       Guard
	GuardTTL    time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessions constructs a registry backed by kv.
func NewSessions(kv storage.KV, deliveryFee pricing.Money, logger zerolog.Logger) *Sessions {
	return &Sessions{
		KV:          kv,
		Addresses:   address.Repository{KV: kv, Logger: logger},
		DeliveryFee: deliveryFee,
		Logger:      logger,
		sessions:    make(map[string]*Session),
	}
}

func (s *Sessions) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// With runs fn with exclusive access to the cart of sessionID.
func (s *Sessions) With(ctx context.Context, sessionID string, fn func(*Session) error) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return ErrNoSession
	}
	for {
		sess := s.lookup(sessionID)
		sess.mu.Lock()
		if sess.evicted {
			// lost a race with Sweep; the next lookup creates a fresh entry
			sess.mu.Unlock()
			continue
		}
		err := s.run(ctx, sess, fn)
		sess.mu.Unlock()
		return err
	}
}

func (s *Sessions) run(ctx context.Context, sess *Session, fn func(*Session) error) error {
	if s.Guard == nil {
		if !sess.ready {
			s.initialize(ctx, sess)
		}
		sess.lastUsed = s.now()
		err := fn(sess)
		s.saveVoucher(ctx, sess)
		return err
	}
	ttl := s.GuardTTL
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	err := s.Guard.WithLock(ctx, "cart:"+sess.ID, ttl, func(ctx context.Context) error {
		if !sess.ready {
			s.initialize(ctx, sess)
		} else {
			s.refresh(ctx, sess)
		}
		sess.lastUsed = s.now()
		err := fn(sess)
		s.saveVoucher(ctx, sess)
		return err
	})
	if errors.Is(err, lock.ErrLocked) {
		return ErrBusy
	}
	return err
}

func (s *Sessions) lookup(sessionID string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions == nil {
		s.sessions = make(map[string]*Session)
	}
	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = &Session{ID: sessionID}
		s.sessions[sessionID] = sess
		if obs.ActiveSessions != nil {
			obs.ActiveSessions.Inc()
		}
	}
	return sess
}

func (s *Sessions) initialize(ctx context.Context, sess *Session) {
	logger := s.Logger.With().Str("session_id", sess.ID).Logger()
	persist := LineStorage{KV: s.KV, Key: StorageKey(sess.ID), VoucherKey: VoucherKey(sess.ID), Logger: logger}
	sess.persist = persist
	fee := s.DeliveryFee
	if fee <= 0 {
		fee = pricing.DefaultDeliveryFee
	}
	sess.store = NewStore(WithPersister(persist), WithLogger(logger), WithDeliveryFee(fee))

	sess.store.Hydrate(persist.Load(ctx))
	sess.address = s.Addresses.Load(ctx, sess.ID)
	sess.store.RecomputeTotals(sess.address.Type, sess.address.TaxRate)
	if v, err := persist.FetchVoucher(ctx); err != nil {
		logger.Warn().Err(err).Msg("voucher_load_failed")
	} else {
		sess.store.RestoreVoucher(v)
		sess.voucher = v
	}
	sess.ready = true
}

// refresh re-reads what other processes may have written since the last access. A cart whose
// last write failed keeps its memory copy, and a failed read changes nothing.
func (s *Sessions) refresh(ctx context.Context, sess *Session) {
	if sess.store.Dirty() {
		return
	}
	lines, err := sess.persist.Fetch(ctx)
	if err != nil {
		s.Logger.Warn().Err(err).Str("session_id", sess.ID).Msg("cart_refresh_failed")
		return
	}
	addr, err := s.Addresses.Fetch(ctx, sess.ID)
	if err != nil {
		s.Logger.Warn().Err(err).Str("session_id", sess.ID).Msg("address_refresh_failed")
		return
	}
	if sess.store.Sync(lines) {
		s.Logger.Debug().Str("session_id", sess.ID).Msg("cart_refreshed")
	}
	sess.address = addr
	sess.store.RecomputeTotals(addr.Type, addr.TaxRate)

	if sess.store.Voucher() != sess.voucher {
		// the last voucher write failed; memory is ahead
		return
	}
	v, err := sess.persist.FetchVoucher(ctx)
	if err != nil {
		s.Logger.Warn().Err(err).Str("session_id", sess.ID).Msg("voucher_refresh_failed")
		return
	}
	sess.store.RestoreVoucher(v)
	sess.voucher = v
}

// saveVoucher writes the applied voucher when it differs from what was last stored.
func (s *Sessions) saveVoucher(ctx context.Context, sess *Session) {
	if sess.store == nil {
		return
	}
	current := sess.store.Voucher()
	if current == sess.voucher {
		return
	}
	if err := sess.persist.SaveVoucher(ctx, current); err != nil {
		s.Logger.Warn().Err(err).Str("session_id", sess.ID).Msg("voucher_persist_failed")
		return
	}
	sess.voucher = current
}

// Sweep evicts carts idle for longer than idle and returns how many were dropped. Busy carts
// are skipped. Persisted state is untouched, so an evicted visitor is rehydrated on the next
// request.
func (s *Sessions) Sweep(idle time.Duration) int {
	if idle <= 0 {
		return 0
	}
	cutoff := s.now().Add(-idle)
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, sess := range s.sessions {
		if !sess.mu.TryLock() {
			continue
		}
		if sess.lastUsed.Before(cutoff) {
			sess.evicted = true
			delete(s.sessions, id)
			removed++
		}
		sess.mu.Unlock()
	}
	if removed > 0 && obs.ActiveSessions != nil {
		obs.ActiveSessions.Sub(float64(removed))
	}
	return removed
}

// Len returns the number of carts held in memory.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// RunSweeper evicts idle carts every interval until ctx is cancelled.
func (s *Sessions) RunSweeper(ctx context.Context, interval, idle time.Duration) {
	if interval <= 0 || idle <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(idle); n > 0 {
				s.Logger.Debug().Int("evicted", n).Msg("cart_sessions_swept")
			}
		}
	}
}
