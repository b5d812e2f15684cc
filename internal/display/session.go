// Package display tracks the selected display currency and the rate used to
// present base-currency amounts in it.
package display

import (
	"context"
	"fmt"
	"sync"
	"time"

	"finify/internal/core"
	"finify/internal/currency"
	"finify/internal/kv"
	applog "finify/internal/log"
)

// PreferenceKey is the kv key holding the selected currency code.
const PreferenceKey = "selectedCurrency"

// Context is the currency and rate a view is rendered with. Rate converts
// base amounts into Currency.
type Context struct {
	Currency currency.Code
	Rate     float64
}

// Identity is the context for displaying base amounts unconverted.
func Identity(base currency.Code) Context {
	return Context{Currency: base, Rate: 1}
}

// Format renders amount in the context's currency.
func (c Context) Format(p *currency.Presenter, amount core.Money) (string, error) {
	return p.Format(amount, c.Currency, c.Rate)
}

// RateSource resolves conversion rates.
type RateSource interface {
	GetRate(ctx context.Context, base, target currency.Code) (float64, error)
}

// Session owns the display context. The selected currency changes only
// through SetCurrency, which also persists it. Rate responses are tagged
// with a sequence number; a response is applied only when its currency is
// still selected and no later request has been applied already.
//
// An applied rate is re-resolved on read once it is older than the recheck
// interval. A fallback identity rate is retried the same way, so a failed
// lookup never pins the display.
type Session struct {
	store   kv.Store
	rates   RateSource
	base    currency.Code
	logger  *applog.Logger
	now     func() time.Time
	recheck time.Duration

	// selectMu serializes SetCurrency so the persisted preference and
	// the in-memory selection agree.
	selectMu sync.Mutex

	mu        sync.RWMutex
	selected  currency.Code
	current   Context
	appliedAt time.Time
	seq       uint64
	applied   uint64
}

// Option configures a Session.
type Option func(*Session)

// WithRecheckInterval sets how long an applied rate is served before the
// rate source is asked again. Zero asks on every read; the rate source is
// expected to cache.
func WithRecheckInterval(d time.Duration) Option {
	return func(s *Session) {
		if d >= 0 {
			s.recheck = d
		}
	}
}

// WithClock overrides time.Now for recheck decisions.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSession restores the persisted preference (falling back to base when
// missing or unknown) and resolves its rate.
func NewSession(ctx context.Context, store kv.Store, rates RateSource, base currency.Code, logger *applog.Logger, opts ...Option) *Session {
	if logger == nil {
		logger = applog.Discard()
	}
	s := &Session{
		store:    store,
		rates:    rates,
		base:     base,
		logger:   logger.WithComponent(applog.ComponentDisplay),
		now:      time.Now,
		selected: base,
		current:  Identity(base),
	}
	for _, opt := range opts {
		opt(s)
	}

	if code, ok := s.loadPreference(ctx); ok {
		s.selected = code
	}
	s.Refresh(ctx)
	return s
}

func (s *Session) loadPreference(ctx context.Context) (currency.Code, bool) {
	raw, ok, err := s.store.Get(ctx, PreferenceKey)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to read currency preference", applog.FieldError, err)
		return "", false
	}
	if !ok {
		return "", false
	}
	code, err := currency.ParseCode(raw)
	if err != nil {
		s.logger.WarnContext(ctx, "Ignoring unknown stored currency", applog.FieldCurrency, raw)
		return "", false
	}
	return code, true
}

// Context returns the context views should currently render with,
// re-resolving the rate first when it is due.
func (s *Session) Context() Context {
	return s.Current(context.Background())
}

// Current is Context with a caller supplied context for the rate lookup.
func (s *Session) Current(ctx context.Context) Context {
	s.mu.RLock()
	current := s.current
	due := s.now().Sub(s.appliedAt) >= s.recheck
	s.mu.RUnlock()

	if !due {
		return current
	}
	return s.Refresh(ctx)
}

// Selected returns the currency most recently chosen, whose rate may still
// be resolving.
func (s *Session) Selected() currency.Code {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// Base returns the currency entries are recorded in.
func (s *Session) Base() currency.Code {
	return s.base
}

// SetCurrency selects code, persists it, and resolves its rate.
func (s *Session) SetCurrency(ctx context.Context, code currency.Code) (Context, error) {
	if !code.IsValid() {
		return s.inEffect(), fmt.Errorf("%w: %q", currency.ErrUnknownCurrency, code)
	}

	s.selectMu.Lock()
	if err := s.store.Set(ctx, PreferenceKey, string(code)); err != nil {
		s.selectMu.Unlock()
		return s.inEffect(), fmt.Errorf("persist currency preference: %w", err)
	}
	s.mu.Lock()
	s.selected = code
	s.mu.Unlock()
	s.selectMu.Unlock()

	s.logger.InfoContext(ctx, "Display currency selected", applog.FieldCurrency, code)
	return s.Refresh(ctx), nil
}

// Refresh requests the rate for the selected currency and applies it if it
// is still relevant when it arrives. A failed lookup applies the identity
// rate. The returned context is the one in effect afterwards.
func (s *Session) Refresh(ctx context.Context) Context {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	target := s.selected
	s.mu.Unlock()

	rate, err := s.rates.GetRate(ctx, s.base, target)
	if err != nil {
		s.logger.WarnContext(ctx, "Exchange rate unavailable, showing unconverted amounts",
			applog.FieldError, err,
			applog.FieldErrorType, applog.ErrorTypeNetwork,
			applog.FieldBase, s.base,
			applog.FieldTarget, target)
		rate = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if target != s.selected || seq < s.applied {
		s.logger.DebugContext(ctx, "Discarding superseded rate response",
			applog.FieldTarget, target,
			"sequence", seq)
		return s.current
	}
	s.applied = seq
	s.current = Context{Currency: target, Rate: rate}
	if err != nil {
		// Zero time keeps a fallback due on the next read.
		s.appliedAt = time.Time{}
	} else {
		s.appliedAt = s.now()
	}
	return s.current
}

func (s *Session) inEffect() Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}
