// Package pool maintains a buffered supply of ready-to-serve practice
// items per category, refilled from an external source in the background.
package pool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/adaptlearn/practice-engine/internal/catalog"
)

// Source supplies batches of items for a category. It may return fewer
// than requested; errors and short batches are both acceptable.
type Source interface {
	FetchBatch(ctx context.Context, category string, count int) ([]catalog.Item, error)
}

// Buffer is the slice of the cache contract the pool needs.
type Buffer interface {
	RPush(ctx context.Context, key string, values ...string) error
	LPop(ctx context.Context, key string) (string, bool, error)
	LLen(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// Config holds Pool tunables.
type Config struct {
	Source        Source
	Buffer        Buffer
	Batch         int           // items fetched per refill (default 20)
	LowWater      int           // refill trigger threshold (default 5)
	TTL           time.Duration // buffer expiry (default 30m)
	RefillTimeout time.Duration // bound on a background refill (default 30s)
}

// Pool is the buffered item supply. Pop never blocks on the source; when
// the buffer runs low a single background refill per category is kicked
// off via singleflight.
type Pool struct {
	source        Source
	buffer        Buffer
	batch         int
	lowWater      int
	ttl           time.Duration
	refillTimeout time.Duration
	group         singleflight.Group
}

// New creates a pool.
func New(cfg Config) *Pool {
	batch := cfg.Batch
	if batch == 0 {
		batch = 20
	}
	lowWater := cfg.LowWater
	if lowWater == 0 {
		lowWater = 5
	}
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = 30 * time.Minute
	}
	refillTimeout := cfg.RefillTimeout
	if refillTimeout == 0 {
		refillTimeout = 30 * time.Second
	}
	return &Pool{
		source:        cfg.Source,
		buffer:        cfg.Buffer,
		batch:         batch,
		lowWater:      lowWater,
		ttl:           ttl,
		refillTimeout: refillTimeout,
	}
}

func bufferKey(category string) string {
	return fmt.Sprintf("practice:pool:%s", category)
}

// Pop takes one item from the category buffer. When the remaining supply
// falls below the low-water mark, a detached refill starts; its failure
// never affects the caller.
func (p *Pool) Pop(ctx context.Context, category string) (*catalog.Item, bool, error) {
	key := bufferKey(category)

	raw, ok, err := p.buffer.LPop(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("pool pop: %w", err)
	}
	if !ok {
		p.refillAsync(category)
		return nil, false, nil
	}

	remaining, err := p.buffer.LLen(ctx, key)
	if err == nil && remaining < int64(p.lowWater) {
		p.refillAsync(category)
	}

	var item catalog.Item
	if err := json.Unmarshal([]byte(raw), &item); err != nil {
		return nil, false, fmt.Errorf("pool item decode: %w", err)
	}
	return &item, true, nil
}

// Len returns the buffered item count for the category.
func (p *Pool) Len(ctx context.Context, category string) (int64, error) {
	return p.buffer.LLen(ctx, bufferKey(category))
}

// refillAsync starts a detached refill, at most one in flight per
// category.
func (p *Pool) refillAsync(category string) {
	go func() {
		_, _, _ = p.group.Do(category, func() (interface{}, error) {
			ctx, cancel := context.WithTimeout(context.Background(), p.refillTimeout)
			defer cancel()

			n, err := p.Refill(ctx, category)
			if err != nil {
				slog.Warn("background pool refill failed", "category", category, "error", err)
				return nil, err
			}
			slog.Info("pool refilled", "category", category, "items", n)
			return n, nil
		})
	}()
}

// Refill fetches one batch from the source and appends it to the buffer.
// Returns the number of items added.
func (p *Pool) Refill(ctx context.Context, category string) (int, error) {
	items, err := p.source.FetchBatch(ctx, category, p.batch)
	if err != nil {
		return 0, fmt.Errorf("fetch batch: %w", err)
	}
	if len(items) == 0 {
		return 0, nil
	}

	values := make([]string, 0, len(items))
	for _, item := range items {
		raw, err := json.Marshal(item)
		if err != nil {
			slog.Warn("skipping unmarshalable pool item", "error", err)
			continue
		}
		values = append(values, string(raw))
	}
	if len(values) == 0 {
		return 0, nil
	}

	key := bufferKey(category)
	if err := p.buffer.RPush(ctx, key, values...); err != nil {
		return 0, fmt.Errorf("push batch: %w", err)
	}
	if err := p.buffer.Expire(ctx, key, p.ttl); err != nil {
		return len(values), fmt.Errorf("expire buffer: %w", err)
	}
	return len(values), nil
}
