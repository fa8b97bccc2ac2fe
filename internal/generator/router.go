package generator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/adaptlearn/practice-engine/internal/catalog"
)

// Router fans a generation request across registered providers in
// registration order, returning the first success.
type Router struct {
	providers map[string]Provider
	fallback  []string // ordered fallback chain
	mu        sync.RWMutex
}

// NewRouter creates a new generation router.
func NewRouter() *Router {
	return &Router{
		providers: make(map[string]Provider),
	}
}

// Register adds a provider to the router.
func (r *Router) Register(name string, provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = provider
	r.fallback = append(r.fallback, name)
}

// Generate routes a request through the fallback chain.
func (r *Router) Generate(ctx context.Context, req Request) (catalog.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range r.fallback {
		provider := r.providers[name]

		item, err := provider.Generate(ctx, req)
		if err != nil {
			slog.Warn("generator provider failed, trying next",
				"provider", name,
				"topic", req.TopicName,
				"error", err,
			)
			continue
		}

		slog.Debug("item generated",
			"provider", name,
			"topic", req.TopicName,
			"difficulty", req.Difficulty,
		)
		return item, nil
	}

	return catalog.Item{}, fmt.Errorf("all generator providers failed")
}

// HealthCheck reports healthy if any provider is reachable.
func (r *Router) HealthCheck(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var last error
	for _, name := range r.fallback {
		if err := r.providers[name].HealthCheck(ctx); err == nil {
			return nil
		} else {
			last = err
		}
	}
	if last == nil {
		return fmt.Errorf("no providers registered")
	}
	return last
}

// HasProvider returns true if at least one provider is registered.
func (r *Router) HasProvider() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers) > 0
}
