package pool_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/adaptlearn/practice-engine/internal/catalog"
	"github.com/adaptlearn/practice-engine/internal/platform/cache"
	"github.com/adaptlearn/practice-engine/internal/pool"
)

// fakeSource returns canned items and counts fetches.
type fakeSource struct {
	fetches int32
	fail    bool
	short   int // if >0, return this many items regardless of count
}

func (f *fakeSource) FetchBatch(_ context.Context, category string, count int) ([]catalog.Item, error) {
	atomic.AddInt32(&f.fetches, 1)
	if f.fail {
		return nil, errors.New("source down")
	}
	n := count
	if f.short > 0 {
		n = f.short
	}
	items := make([]catalog.Item, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, catalog.Item{
			ID:            category + "-item",
			Stem:          "stem",
			Options:       []string{"A. 1", "B. 2"},
			CorrectAnswer: "A",
			Source:        "pool",
		})
	}
	return items, nil
}

func TestPool_RefillAndPop(t *testing.T) {
	src := &fakeSource{}
	p := pool.New(pool.Config{Source: src, Buffer: cache.NewMemory(), Batch: 10, LowWater: 2})
	ctx := context.Background()

	n, err := p.Refill(ctx, "math")
	if err != nil {
		t.Fatalf("Refill() error = %v", err)
	}
	if n != 10 {
		t.Errorf("Refill() = %d, want 10", n)
	}

	item, ok, err := p.Pop(ctx, "math")
	if err != nil || !ok {
		t.Fatalf("Pop() = %v, %v, %v", item, ok, err)
	}
	if item.Stem != "stem" || item.Source != "pool" {
		t.Errorf("Pop() item = %+v", item)
	}
}

func TestPool_PopEmpty(t *testing.T) {
	p := pool.New(pool.Config{Source: &fakeSource{}, Buffer: cache.NewMemory()})

	_, ok, err := p.Pop(context.Background(), "math")
	if err != nil {
		t.Fatalf("Pop() error = %v", err)
	}
	if ok {
		t.Error("Pop() reported an item from an empty pool")
	}
}

func TestPool_EmptyPopTriggersBackgroundRefill(t *testing.T) {
	src := &fakeSource{}
	buf := cache.NewMemory()
	p := pool.New(pool.Config{Source: src, Buffer: buf, Batch: 5, LowWater: 2, RefillTimeout: time.Second})
	ctx := context.Background()

	// A drained category must start replenishing on the miss itself,
	// not wait for the next warmer sweep.
	if _, ok, err := p.Pop(ctx, "math"); err != nil || ok {
		t.Fatalf("Pop() = %v, %v on empty pool", ok, err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&src.fetches) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("empty pop never fetched from the source")
		}
		time.Sleep(10 * time.Millisecond)
	}

	for time.Now().Before(deadline) {
		if n, _ := p.Len(ctx, "math"); n == 5 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("buffer never refilled after empty pop")
}

func TestPool_ShortBatchAccepted(t *testing.T) {
	src := &fakeSource{short: 3}
	p := pool.New(pool.Config{Source: src, Buffer: cache.NewMemory(), Batch: 20})

	n, err := p.Refill(context.Background(), "math")
	if err != nil {
		t.Fatalf("Refill() error = %v", err)
	}
	if n != 3 {
		t.Errorf("Refill() = %d, want 3 (short batch)", n)
	}
}

func TestPool_SourceFailureSurfaced(t *testing.T) {
	p := pool.New(pool.Config{Source: &fakeSource{fail: true}, Buffer: cache.NewMemory()})

	if _, err := p.Refill(context.Background(), "math"); err == nil {
		t.Fatal("Refill() should surface source errors")
	}
}

func TestPool_LowWaterTriggersBackgroundRefill(t *testing.T) {
	src := &fakeSource{}
	buf := cache.NewMemory()
	p := pool.New(pool.Config{Source: src, Buffer: buf, Batch: 5, LowWater: 5, RefillTimeout: time.Second})
	ctx := context.Background()

	if _, err := p.Refill(ctx, "math"); err != nil {
		t.Fatal(err)
	}
	before := atomic.LoadInt32(&src.fetches)

	// Remaining supply after this pop (4) is below the low-water mark.
	if _, ok, err := p.Pop(ctx, "math"); err != nil || !ok {
		t.Fatalf("Pop() failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&src.fetches) == before {
		if time.Now().After(deadline) {
			t.Fatal("background refill never fetched")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestPool_BufferHasTTL(t *testing.T) {
	buf := cache.NewMemory()
	now := time.Now()
	buf.SetClock(func() time.Time { return now })
	p := pool.New(pool.Config{Source: &fakeSource{}, Buffer: buf, Batch: 5, TTL: 30 * time.Minute})
	ctx := context.Background()

	if _, err := p.Refill(ctx, "math"); err != nil {
		t.Fatal(err)
	}

	now = now.Add(time.Hour)
	if n, _ := p.Len(ctx, "math"); n != 0 {
		t.Errorf("Len() = %d after TTL, want 0", n)
	}
}
