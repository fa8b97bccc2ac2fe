package pool

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

// Warmer periodically tops up category buffers that have drained below
// the low-water mark, so foreground selection rarely hits an empty pool.
type Warmer struct {
	scheduler  *gocron.Scheduler
	pool       *Pool
	categories []string
	interval   time.Duration
}

// NewWarmer creates a warmer sweeping the given categories.
func NewWarmer(p *Pool, categories []string, interval time.Duration) *Warmer {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Warmer{
		scheduler:  gocron.NewScheduler(time.UTC),
		pool:       p,
		categories: categories,
		interval:   interval,
	}
}

// Start begins the periodic sweep in the background.
func (w *Warmer) Start() {
	if _, err := w.scheduler.Every(w.interval).Do(w.sweep); err != nil {
		slog.Error("pool warmer schedule failed", "interval", w.interval, "error", err)
		return
	}
	w.scheduler.StartAsync()
}

// Stop terminates the sweep.
func (w *Warmer) Stop() {
	w.scheduler.Stop()
}

func (w *Warmer) sweep() {
	for _, category := range w.categories {
		ctx, cancel := context.WithTimeout(context.Background(), w.pool.refillTimeout)

		n, err := w.pool.Len(ctx, category)
		if err != nil {
			slog.Warn("pool warm check failed", "category", category, "error", err)
			cancel()
			continue
		}
		if n >= int64(w.pool.lowWater) {
			cancel()
			continue
		}

		added, err := w.pool.Refill(ctx, category)
		if err != nil {
			slog.Warn("pool warm refill failed", "category", category, "error", err)
		} else {
			slog.Info("pool warmed", "category", category, "items", added)
		}
		cancel()
	}
}
