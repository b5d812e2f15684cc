package rates

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finify/internal/currency"
	"finify/internal/kv"
)

type fakeFetcher struct {
	mu    sync.Mutex
	rate  float64
	err   error
	calls int
}

func (f *fakeFetcher) Fetch(_ context.Context, _ Pair) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return f.rate, nil
}

func (f *fakeFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func newTestProvider(t *testing.T, f Fetcher, c *clock) (*Provider, *KVCache, kv.Store) {
	t.Helper()
	store := kv.NewMemory()
	cache := NewKVCache(store, nil)
	return NewProvider(cache, f, WithClock(c.Now)), cache, store
}

func TestPairKey(t *testing.T) {
	p := Pair{Base: currency.PHP, Target: currency.USD}
	assert.Equal(t, "exchangeRate-PHP-USD", p.Key())
}

func TestGetRate_IdentityNeedsNoLookup(t *testing.T) {
	f := &fakeFetcher{err: errors.New("should not be called")}
	c := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	p, _, store := newTestProvider(t, f, c)

	rate, err := p.GetRate(context.Background(), currency.PHP, currency.PHP)
	require.NoError(t, err)
	assert.Equal(t, 1.0, rate)
	assert.Zero(t, f.Calls())
	assert.Zero(t, store.(*kv.Memory).Len())
}

func TestGetRate_FetchesThenServesFromCache(t *testing.T) {
	f := &fakeFetcher{rate: 0.018}
	c := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	p, cache, _ := newTestProvider(t, f, c)
	ctx := context.Background()

	rate, err := p.GetRate(ctx, currency.PHP, currency.USD)
	require.NoError(t, err)
	assert.Equal(t, 0.018, rate)

	entry, ok := cache.Get(ctx, Pair{Base: currency.PHP, Target: currency.USD})
	require.True(t, ok)
	assert.Equal(t, 0.018, entry.Rate)
	assert.Equal(t, c.t.UnixMilli(), entry.FetchedAt.UnixMilli())

	c.t = c.t.Add(11 * time.Hour)
	f.rate = 0.02
	rate, err = p.GetRate(ctx, currency.PHP, currency.USD)
	require.NoError(t, err)
	assert.Equal(t, 0.018, rate)
	assert.Equal(t, 1, f.Calls())
}

func TestGetRate_StaleEntryIsRefetched(t *testing.T) {
	f := &fakeFetcher{rate: 0.02}
	c := &clock{t: time.Date(2024, 1, 1, 13, 0, 0, 0, time.UTC)}
	p, cache, _ := newTestProvider(t, f, c)
	ctx := context.Background()
	pair := Pair{Base: currency.PHP, Target: currency.USD}

	require.NoError(t, cache.Put(ctx, pair, Entry{Rate: 0.018, FetchedAt: c.t.Add(-13 * time.Hour)}))

	rate, err := p.GetRate(ctx, currency.PHP, currency.USD)
	require.NoError(t, err)
	assert.Equal(t, 0.02, rate)
	assert.Equal(t, 1, f.Calls())

	entry, ok := cache.Get(ctx, pair)
	require.True(t, ok)
	assert.Equal(t, 0.02, entry.Rate)
	assert.Equal(t, c.t.UnixMilli(), entry.FetchedAt.UnixMilli())
}

func TestGetRate_FailureIsNotCached(t *testing.T) {
	f := &fakeFetcher{err: errors.New("network down")}
	c := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	p, cache, _ := newTestProvider(t, f, c)
	ctx := context.Background()

	_, err := p.GetRate(ctx, currency.PHP, currency.USD)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRateUnavailable)

	_, ok := cache.Get(ctx, Pair{Base: currency.PHP, Target: currency.USD})
	assert.False(t, ok)

	f.mu.Lock()
	f.err = nil
	f.rate = 0.018
	f.mu.Unlock()

	rate, err := p.GetRate(ctx, currency.PHP, currency.USD)
	require.NoError(t, err)
	assert.Equal(t, 0.018, rate)
	assert.Equal(t, 2, f.Calls())
}

func TestGetRate_StaleEntrySurvivesFailedRefresh(t *testing.T) {
	f := &fakeFetcher{err: errors.New("timeout")}
	c := &clock{t: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)}
	p, cache, _ := newTestProvider(t, f, c)
	ctx := context.Background()
	pair := Pair{Base: currency.PHP, Target: currency.USD}
	old := Entry{Rate: 0.017, FetchedAt: c.t.Add(-24 * time.Hour)}
	require.NoError(t, cache.Put(ctx, pair, old))

	_, err := p.GetRate(ctx, currency.PHP, currency.USD)
	assert.ErrorIs(t, err, ErrRateUnavailable)

	entry, ok := cache.Get(ctx, pair)
	require.True(t, ok)
	assert.Equal(t, 0.017, entry.Rate)
}

func TestGetRate_ConcurrentCallersShareOneFetch(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	f := fetcherFunc(func(ctx context.Context, _ Pair) (float64, error) {
		calls.Add(1)
		<-release
		return 0.018, nil
	})
	c := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	p, _, _ := newTestProvider(t, f, c)

	var wg sync.WaitGroup
	results := make([]float64, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := p.GetRate(context.Background(), currency.PHP, currency.USD)
			if err == nil {
				results[i] = r
			}
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, 0.018, r)
	}
	assert.LessOrEqual(t, calls.Load(), int32(5))
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
}

type fetcherFunc func(ctx context.Context, p Pair) (float64, error)

func (f fetcherFunc) Fetch(ctx context.Context, p Pair) (float64, error) { return f(ctx, p) }

func TestKVCache_CorruptEntryIsRemoved(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "{oops"},
		{"missing rate", `{"timestamp": 1700000000000}`},
		{"missing timestamp", `{"rate": 0.018}`},
		{"zero rate", `{"rate": 0, "timestamp": 1700000000000}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := kv.NewMemory()
			cache := NewKVCache(store, nil)
			pair := Pair{Base: currency.PHP, Target: currency.USD}
			require.NoError(t, store.Set(ctx, pair.Key(), tt.raw))

			_, ok := cache.Get(ctx, pair)
			assert.False(t, ok)

			_, present, err := store.Get(ctx, pair.Key())
			require.NoError(t, err)
			assert.False(t, present)
		})
	}
}

func TestKVCache_StoredFormat(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	cache := NewKVCache(store, nil)
	pair := Pair{Base: currency.PHP, Target: currency.USD}

	require.NoError(t, cache.Put(ctx, pair, Entry{Rate: 0.018, FetchedAt: time.UnixMilli(1700000000000)}))

	raw, ok, err := store.Get(ctx, "exchangeRate-PHP-USD")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"rate":0.018,"timestamp":1700000000000}`, raw)
}

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/secret/latest/PHP":
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"result":"success","base_code":"PHP","conversion_rates":{"PHP":1,"USD":0.018}}`)
		case "/secret/latest/USD":
			fmt.Fprint(w, `{"result":"success","conversion_rates":{"USD":1}}`)
		case "/bad/latest/PHP":
			fmt.Fprint(w, `{"result":"error","error-type":"invalid-key"}`)
		default:
			http.Error(w, "nope", http.StatusInternalServerError)
		}
	}))
	defer srv.Close()
	ctx := context.Background()

	t.Run("reads target rate", func(t *testing.T) {
		f := NewHTTPFetcher(srv.URL, "secret", srv.Client(), time.Second)
		rate, err := f.Fetch(ctx, Pair{Base: currency.PHP, Target: currency.USD})
		require.NoError(t, err)
		assert.Equal(t, 0.018, rate)
	})

	t.Run("missing target is an error", func(t *testing.T) {
		f := NewHTTPFetcher(srv.URL, "secret", srv.Client(), time.Second)
		_, err := f.Fetch(ctx, Pair{Base: currency.USD, Target: currency.PHP})
		assert.Error(t, err)
	})

	t.Run("api error result", func(t *testing.T) {
		f := NewHTTPFetcher(srv.URL, "bad", srv.Client(), time.Second)
		_, err := f.Fetch(ctx, Pair{Base: currency.PHP, Target: currency.USD})
		assert.ErrorContains(t, err, "invalid-key")
	})

	t.Run("non 2xx status", func(t *testing.T) {
		f := NewHTTPFetcher(srv.URL, "other", srv.Client(), time.Second)
		_, err := f.Fetch(ctx, Pair{Base: currency.PHP, Target: currency.USD})
		assert.ErrorContains(t, err, "500")
	})
}

func TestProviderWithHTTPFetcher_FailureFallsThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":"success","conversion_rates":{"PHP":1}}`)
	}))
	defer srv.Close()

	c := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	p, cache, _ := newTestProvider(t, NewHTTPFetcher(srv.URL, "k", srv.Client(), time.Second), c)

	_, err := p.GetRate(context.Background(), currency.PHP, currency.USD)
	assert.ErrorIs(t, err, ErrRateUnavailable)
	_, ok := cache.Get(context.Background(), Pair{Base: currency.PHP, Target: currency.USD})
	assert.False(t, ok)
}

func TestDisabledFetcher_ServesOnlyFreshCache(t *testing.T) {
	c := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	p, cache, _ := newTestProvider(t, Disabled{}, c)
	ctx := context.Background()
	pair := Pair{Base: currency.PHP, Target: currency.USD}

	_, err := p.GetRate(ctx, currency.PHP, currency.USD)
	assert.ErrorIs(t, err, ErrRateUnavailable)

	require.NoError(t, cache.Put(ctx, pair, Entry{Rate: 0.017, FetchedAt: c.t}))
	rate, err := p.GetRate(ctx, currency.PHP, currency.USD)
	require.NoError(t, err)
	assert.Equal(t, 0.017, rate)
}
