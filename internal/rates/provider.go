// Package rates supplies currency conversion rates, cached per pair with a
// freshness window.
package rates

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"finify/internal/currency"
	applog "finify/internal/log"
)

// DefaultTTL is how long a fetched rate is served from cache.
const DefaultTTL = 12 * time.Hour

// ErrRateUnavailable wraps every failure to obtain a rate remotely. Callers
// are expected to fall back to an identity rate for display.
var ErrRateUnavailable = errors.New("exchange rate unavailable")

// Provider returns conversion rates: identity for equal currencies, a fresh
// cached value when one exists, otherwise a remote lookup. Failed lookups are
// never cached.
type Provider struct {
	cache   Cache
	fetcher Fetcher
	ttl     time.Duration
	now     func() time.Time
	logger  *applog.Logger
	group   singleflight.Group
}

// Option configures a Provider.
type Option func(*Provider)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(p *Provider) {
		if ttl > 0 {
			p.ttl = ttl
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) {
		p.now = now
	}
}

// WithLogger sets the provider's logger.
func WithLogger(l *applog.Logger) Option {
	return func(p *Provider) {
		if l != nil {
			p.logger = l.WithComponent(applog.ComponentRates)
		}
	}
}

func NewProvider(cache Cache, fetcher Fetcher, opts ...Option) *Provider {
	p := &Provider{
		cache:   cache,
		fetcher: fetcher,
		ttl:     DefaultTTL,
		now:     time.Now,
		logger:  applog.Discard(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// TTL returns the freshness window.
func (p *Provider) TTL() time.Duration {
	return p.ttl
}

// GetRate returns the rate converting base amounts into target.
func (p *Provider) GetRate(ctx context.Context, base, target currency.Code) (float64, error) {
	if base == target {
		return 1, nil
	}
	pair := Pair{Base: base, Target: target}

	if entry, ok := p.cache.Get(ctx, pair); ok {
		age := entry.Age(p.now())
		if age >= 0 && age < p.ttl {
			return entry.Rate, nil
		}
		p.logger.DebugContext(ctx, "Cached rate is stale",
			applog.FieldBase, base,
			applog.FieldTarget, target,
			"age", age.String())
	}

	v, err, _ := p.group.Do(pair.Key(), func() (any, error) {
		return p.refresh(ctx, pair)
	})
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}

func (p *Provider) refresh(ctx context.Context, pair Pair) (float64, error) {
	rate, err := p.fetcher.Fetch(ctx, pair)
	if err != nil {
		p.logger.WarnContext(ctx, "Exchange rate fetch failed",
			applog.FieldError, err,
			applog.FieldErrorType, applog.ErrorTypeNetwork,
			applog.FieldBase, pair.Base,
			applog.FieldTarget, pair.Target)
		return 0, fmt.Errorf("%w: %s: %v", ErrRateUnavailable, pair, err)
	}

	if err := p.cache.Put(ctx, pair, Entry{Rate: rate, FetchedAt: p.now()}); err != nil {
		// The rate is still good for this call.
		p.logger.WarnContext(ctx, "Failed to cache exchange rate", applog.FieldError, err)
	}
	p.logger.InfoContext(ctx, "Fetched exchange rate",
		applog.FieldBase, pair.Base,
		applog.FieldTarget, pair.Target,
		applog.FieldRate, rate)
	return rate, nil
}
