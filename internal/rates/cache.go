package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"finify/internal/currency"
	"finify/internal/kv"
	applog "finify/internal/log"
)

// Pair is a (base, target) currency pair.
type Pair struct {
	Base   currency.Code
	Target currency.Code
}

// Key is the storage key of the pair's cached rate.
func (p Pair) Key() string {
	return fmt.Sprintf("exchangeRate-%s-%s", p.Base, p.Target)
}

func (p Pair) String() string {
	return string(p.Base) + "/" + string(p.Target)
}

// Entry is a fetched rate and when it was fetched.
type Entry struct {
	Rate      float64
	FetchedAt time.Time
}

// Age returns how old the entry is at now.
func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.FetchedAt)
}

// Cache stores the last fetched rate per pair.
type Cache interface {
	Get(ctx context.Context, pair Pair) (Entry, bool)
	Put(ctx context.Context, pair Pair, entry Entry) error
}

var errCorruptEntry = errors.New("corrupt cached rate")

// storedEntry is the serialized form: {"rate": 0.018, "timestamp": <unix ms>}.
type storedEntry struct {
	Rate      *float64 `json:"rate"`
	Timestamp *int64   `json:"timestamp"`
}

// KVCache keeps rates as JSON values in a kv.Store. Unreadable values are
// removed and reported as a miss.
type KVCache struct {
	store  kv.Store
	logger *applog.Logger
}

var _ Cache = (*KVCache)(nil)

func NewKVCache(store kv.Store, logger *applog.Logger) *KVCache {
	if logger == nil {
		logger = applog.Discard()
	}
	return &KVCache{store: store, logger: logger.WithComponent(applog.ComponentCache)}
}

func (c *KVCache) Get(ctx context.Context, pair Pair) (Entry, bool) {
	raw, ok, err := c.store.Get(ctx, pair.Key())
	if err != nil {
		c.logger.WarnContext(ctx, "Rate cache read failed",
			applog.FieldError, err,
			applog.FieldBase, pair.Base,
			applog.FieldTarget, pair.Target)
		return Entry{}, false
	}
	if !ok {
		return Entry{}, false
	}

	entry, err := decodeEntry(raw)
	if err != nil {
		c.logger.WarnContext(ctx, "Discarding corrupt cached rate",
			applog.FieldError, err,
			applog.FieldErrorType, applog.ErrorTypeCorruptCache,
			applog.FieldBase, pair.Base,
			applog.FieldTarget, pair.Target)
		if rmErr := c.store.Remove(ctx, pair.Key()); rmErr != nil {
			c.logger.WarnContext(ctx, "Failed to remove corrupt cached rate", applog.FieldError, rmErr)
		}
		return Entry{}, false
	}
	return entry, true
}

func (c *KVCache) Put(ctx context.Context, pair Pair, entry Entry) error {
	raw, err := encodeEntry(entry)
	if err != nil {
		return err
	}
	if err := c.store.Set(ctx, pair.Key(), raw); err != nil {
		return fmt.Errorf("store rate %s: %w", pair, err)
	}
	return nil
}

func encodeEntry(e Entry) (string, error) {
	rate := e.Rate
	ts := e.FetchedAt.UnixMilli()
	b, err := json.Marshal(storedEntry{Rate: &rate, Timestamp: &ts})
	if err != nil {
		return "", fmt.Errorf("encode rate: %w", err)
	}
	return string(b), nil
}

func decodeEntry(raw string) (Entry, error) {
	var s storedEntry
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return Entry{}, fmt.Errorf("%w: %v", errCorruptEntry, err)
	}
	if s.Rate == nil || s.Timestamp == nil {
		return Entry{}, fmt.Errorf("%w: missing field", errCorruptEntry)
	}
	if *s.Rate <= 0 {
		return Entry{}, fmt.Errorf("%w: non-positive rate %v", errCorruptEntry, *s.Rate)
	}
	return Entry{Rate: *s.Rate, FetchedAt: time.UnixMilli(*s.Timestamp)}, nil
}
