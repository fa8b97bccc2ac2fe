package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adaptlearn/practice-engine/internal/catalog"
	"github.com/adaptlearn/practice-engine/internal/engine"
	"github.com/adaptlearn/practice-engine/internal/generator"
	"github.com/adaptlearn/practice-engine/internal/platform/cache"
	"github.com/adaptlearn/practice-engine/internal/platform/config"
	"github.com/adaptlearn/practice-engine/internal/platform/database"
	"github.com/adaptlearn/practice-engine/internal/pool"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	app, cleanup, err := buildApp(ctx, cfg)
	if err != nil {
		slog.Error("failed to build application", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      newMux(app),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

// buildApp wires the engine and its dependencies from config. The
// returned cleanup closes connections and stops background workers.
func buildApp(ctx context.Context, cfg *config.Config) (*app, func(), error) {
	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("load catalog: %w", err)
	}
	slog.Info("catalog loaded", "topics", cat.Len())

	db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate database: %w", err)
	}

	kv, err := cache.New(ctx, cfg.Cache.URL)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("connect cache: %w", err)
	}

	store, err := engine.NewPostgresStore(db.Pool)
	if err != nil {
		db.Close()
		kv.Close()
		return nil, nil, err
	}

	var router *generator.Router
	if cfg.HasGenerator() {
		provider, err := generator.NewHTTPProvider(cfg.Generator.URL, cfg.Generator.APIKey, cfg.Generator.Timeout)
		if err != nil {
			db.Close()
			kv.Close()
			return nil, nil, fmt.Errorf("build generator: %w", err)
		}
		router = generator.NewRouter()
		router.Register("http", provider)
	}

	var itemPool *pool.Pool
	var warmer *pool.Warmer
	if cfg.HasPoolSource() {
		source, err := pool.NewHTTPSource(cfg.Pool.SourceURL, 10*time.Second)
		if err != nil {
			db.Close()
			kv.Close()
			return nil, nil, fmt.Errorf("build pool source: %w", err)
		}
		itemPool = pool.New(pool.Config{
			Source:   source,
			Buffer:   kv,
			Batch:    cfg.Pool.Batch,
			LowWater: cfg.Pool.LowWater,
			TTL:      cfg.Pool.TTL,
		})
		warmer = pool.NewWarmer(itemPool, categories(cat), cfg.Pool.WarmInterval)
		warmer.Start()
	}

	eng, err := engine.New(engine.Config{
		Catalog:            cat,
		Store:              store,
		KV:                 kv,
		Generator:          router,
		Pool:               itemPool,
		Quality:            engine.QualityPolicy{FastAnswer: cfg.Engine.FastAnswer, SlowAnswer: cfg.Engine.SlowAnswer},
		ReadinessThreshold: cfg.Engine.ReadinessThreshold,
		DrillWindow:        cfg.Engine.DrillWindow,
		MinIntervalDays:    cfg.Engine.MinIntervalDays,
		GenerateTimeout:    cfg.Generator.Timeout,
	})
	if err != nil {
		db.Close()
		kv.Close()
		return nil, nil, err
	}

	cleanup := func() {
		if warmer != nil {
			warmer.Stop()
		}
		kv.Close()
		db.Close()
	}
	return &app{engine: eng, db: db, cache: kv}, cleanup, nil
}

// categories lists the distinct topic categories, for the pool warmer.
func categories(cat *catalog.Catalog) []string {
	seen := map[string]bool{}
	var out []string
	for _, topic := range cat.All() {
		if topic.Category != "" && !seen[topic.Category] {
			seen[topic.Category] = true
			out = append(out, topic.Category)
		}
	}
	return out
}
