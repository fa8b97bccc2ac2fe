// Package engine implements the adaptive practice core: Bayesian mastery
// tracking, SM-2 review scheduling, the mistake ledger, and weighted
// strategy selection, orchestrated behind SelectNext and Record.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sethvargo/go-retry"

	"github.com/adaptlearn/practice-engine/internal/catalog"
	"github.com/adaptlearn/practice-engine/internal/generator"
	"github.com/adaptlearn/practice-engine/internal/platform/cache"
	"github.com/adaptlearn/practice-engine/internal/pool"
)

// Selection is the outcome of SelectNext: one item and the strategy tier
// that produced it.
type Selection struct {
	Strategy Strategy     `json:"strategy"`
	Item     catalog.Item `json:"item"`
	TopicID  string       `json:"topic_id"`
}

// Config holds Engine dependencies and tunables. Catalog, Store and KV
// are required; Generator and Pool are optional fallback tiers.
type Config struct {
	Catalog *catalog.Catalog
	Store   Store
	KV      cache.KV

	Generator *generator.Router
	Pool      *pool.Pool

	Weights            StrategyWeights
	Quality            QualityPolicy
	ReadinessThreshold float64
	DrillWindow        time.Duration
	MinIntervalDays    float64
	GenerateTimeout    time.Duration

	// Draw and Now are injectable for tests.
	Draw func() float64
	Now  func() time.Time
}

// Engine is the practice orchestrator.
type Engine struct {
	catalog *catalog.Catalog
	store   Store
	kv      cache.KV

	ledger   *Ledger
	queue    *ReviewQueue
	selector *Selector

	generator *generator.Router
	pool      *pool.Pool

	defaultWeights  StrategyWeights
	quality         QualityPolicy
	drillWindow     time.Duration
	minIntervalDays float64
	genTimeout      time.Duration

	locks keyedMutex
	now   func() time.Time
}

// New creates an engine. Zero-valued tunables fall back to the defaults
// documented on Config fields.
func New(cfg Config) (*Engine, error) {
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("engine: catalog is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("engine: store is required")
	}
	if cfg.KV == nil {
		return nil, fmt.Errorf("engine: cache is required")
	}

	weights := cfg.Weights
	if weights == (StrategyWeights{}) {
		weights = DefaultWeights()
	}
	if err := weights.Validate(); err != nil {
		return nil, err
	}

	quality := cfg.Quality
	if quality == (QualityPolicy{}) {
		quality = DefaultQualityPolicy()
	}

	drillWindow := cfg.DrillWindow
	if drillWindow == 0 {
		drillWindow = 10 * time.Minute
	}
	minIntervalDays := cfg.MinIntervalDays
	if minIntervalDays == 0 {
		minIntervalDays = 0.25
	}
	genTimeout := cfg.GenerateTimeout
	if genTimeout == 0 {
		genTimeout = 20 * time.Second
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	ledger := NewLedger(cfg.KV)
	queue := NewReviewQueue(cfg.KV)

	e := &Engine{
		catalog:         cfg.Catalog,
		store:           cfg.Store,
		kv:              cfg.KV,
		ledger:          ledger,
		queue:           queue,
		generator:       cfg.Generator,
		pool:            cfg.Pool,
		defaultWeights:  weights,
		quality:         quality,
		drillWindow:     drillWindow,
		minIntervalDays: minIntervalDays,
		genTimeout:      genTimeout,
		now:             now,
	}
	e.selector = NewSelector(SelectorConfig{
		Catalog:   cfg.Catalog,
		Store:     cfg.Store,
		Ledger:    ledger,
		Queue:     queue,
		Readiness: cfg.ReadinessThreshold,
		Draw:      cfg.Draw,
		Now:       now,
	})
	return e, nil
}

// Ledger exposes the mistake ledger for administrative operations.
func (e *Engine) Ledger() *Ledger { return e.ledger }

// SelectNext picks the next practice item for the student. Tier order:
// local strategy selection, then the buffered pool, then on-demand
// generation. Returns ErrExhausted when every tier comes up empty; the
// caller may retry after the pool warms.
func (e *Engine) SelectNext(ctx context.Context, studentID string) (*Selection, error) {
	if studentID == "" {
		return nil, validationErrf("student_id", "must not be empty")
	}

	weights, err := e.Weights(ctx, studentID)
	if err != nil {
		slog.Warn("weights unavailable, using defaults", "student_id", studentID, "error", err)
		weights = e.defaultWeights
	}

	cand, err := e.selector.Select(ctx, studentID, weights)
	if err == nil {
		return &Selection{Strategy: cand.Strategy, Item: cand.Item, TopicID: cand.TopicID}, nil
	}
	if err != ErrNoCandidate {
		return nil, err
	}

	topic, mastery := e.fallbackTopic(ctx, studentID)
	if topic == nil {
		return nil, ErrExhausted
	}

	if sel := e.popPool(ctx, *topic); sel != nil {
		return sel, nil
	}
	if sel := e.generate(ctx, studentID, *topic, mastery); sel != nil {
		return sel, nil
	}
	return nil, ErrExhausted
}

// fallbackTopic picks the topic the fallback tiers target: the student's
// weakest attempted topic, or the first topic in topological order for a
// blank history. Returns the topic's current mastery alongside.
func (e *Engine) fallbackTopic(ctx context.Context, studentID string) (*catalog.Topic, float64) {
	mastery, err := e.store.MasteryByStudent(ctx, studentID)
	if err != nil {
		slog.Warn("mastery lookup failed for fallback", "student_id", studentID, "error", err)
		mastery = map[string]float64{}
	}

	targetID := ""
	lowest := 2.0
	for _, topicID := range sortedKeys(mastery) {
		if _, known := e.catalog.Get(topicID); !known {
			continue
		}
		if p := mastery[topicID]; p < lowest {
			lowest = p
			targetID = topicID
		}
	}
	if targetID == "" {
		order := e.catalog.TopoOrder()
		if len(order) == 0 {
			return nil, 0
		}
		targetID = order[0]
	}

	topic, ok := e.catalog.Get(targetID)
	if !ok {
		return nil, 0
	}
	p, attempted := mastery[targetID]
	if !attempted {
		p = topic.Params.Init
	}
	return &topic, p
}

func (e *Engine) popPool(ctx context.Context, topic catalog.Topic) *Selection {
	if e.pool == nil {
		return nil
	}
	item, ok, err := e.pool.Pop(ctx, topic.Category)
	if err != nil {
		slog.Warn("pool fallback failed", "category", topic.Category, "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	item.TopicID = topic.ID
	e.bankItem(ctx, *item)
	return &Selection{Strategy: StrategyPool, Item: *item, TopicID: topic.ID}
}

// bankItem persists a served pool or generated item so the mistake and
// review tiers can re-serve it later. Serving continues even when the
// write fails.
func (e *Engine) bankItem(ctx context.Context, item catalog.Item) {
	if err := e.store.InsertItem(ctx, item); err != nil {
		slog.Warn("item bank insert failed", "item_id", item.ID, "error", err)
	}
}

func (e *Engine) generate(ctx context.Context, studentID string, topic catalog.Topic, mastery float64) *Selection {
	if e.generator == nil || !e.generator.HasProvider() {
		return nil
	}

	mistakes, err := e.ledger.CommonMistakes(ctx, studentID, topic.ID)
	if err != nil {
		slog.Warn("common mistakes unavailable for generation", "student_id", studentID, "error", err)
	}
	summary := e.lastWrongSummary(ctx, studentID)

	genCtx, cancel := context.WithTimeout(ctx, e.genTimeout)
	defer cancel()

	item, err := e.generator.Generate(genCtx, generator.Request{
		TopicName:        topic.Name,
		Mastery:          mastery,
		CommonMistakes:   mistakes,
		LastWrongSummary: summary,
		DaysSinceReview:  e.daysSinceReview(ctx, studentID),
		Difficulty:       difficultyTier(mastery),
	})
	if err != nil {
		slog.Warn("generation fallback failed", "student_id", studentID, "topic_id", topic.ID, "error", err)
		return nil
	}

	if item.ID == "" {
		item.ID = ulid.Make().String()
	}
	item.TopicID = topic.ID
	e.bankItem(ctx, item)
	return &Selection{Strategy: StrategyGenerate, Item: item, TopicID: topic.ID}
}

// lastWrongSummary condenses the top wrong items into a short generation
// hint. Best effort; an empty string is fine.
func (e *Engine) lastWrongSummary(ctx context.Context, studentID string) string {
	top, err := e.ledger.TopWrong(ctx, studentID, 3)
	if err != nil || len(top) == 0 {
		return ""
	}
	summary := ""
	for i, w := range top {
		if i > 0 {
			summary += ", "
		}
		summary += fmt.Sprintf("%s (missed %d times)", w.ItemID, w.Count)
	}
	return summary
}

// daysSinceReview reports how many days ago the student's oldest due
// item was last reviewed. DueAt was set to the review time plus the
// interval, so the review time is recovered by subtracting it back out.
// Zero when nothing is due.
func (e *Engine) daysSinceReview(ctx context.Context, studentID string) int {
	now := e.now()
	due, err := e.queue.Due(ctx, studentID, now, 1)
	if err != nil || len(due) == 0 {
		return 0
	}
	entry, err := e.store.GetReview(ctx, studentID, due[0])
	if err != nil || entry == nil {
		return 0
	}
	reviewedAt := entry.DueAt.Add(-days(entry.IntervalDays))
	elapsed := int(now.Sub(reviewedAt).Hours() / 24)
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// difficultyTier maps mastery to a generation difficulty band.
func difficultyTier(mastery float64) string {
	switch {
	case mastery < 0.4:
		return "Easy"
	case mastery < 0.75:
		return "Medium"
	default:
		return "Hard"
	}
}

// RecordResult reports the state Record produced.
type RecordResult struct {
	Mastery    float64   `json:"mastery"`
	Quality    int       `json:"quality"`
	NextDue    time.Time `json:"next_due"`
	EventID    string    `json:"event_id"`
	DrillTopic string    `json:"drill_topic,omitempty"`
}

// Record ingests one answered exercise. Sub-steps run in a fixed order:
// mastery update, ledger and drill flag, review reschedule, event append.
// Each step is retried with bounded backoff on storage failure, then
// logged and skipped; there is no rollback. Mutations for the same
// (student, topic) or (student, item) pair are serialized.
func (e *Engine) Record(ctx context.Context, studentID, itemID, topicID string, correct bool, durationMs int) (*RecordResult, error) {
	if studentID == "" {
		return nil, validationErrf("student_id", "must not be empty")
	}
	if itemID == "" {
		return nil, validationErrf("item_id", "must not be empty")
	}
	if durationMs < 0 {
		return nil, validationErrf("duration_ms", "must be non-negative, got %d", durationMs)
	}
	topic, ok := e.catalog.Get(topicID)
	if !ok {
		return nil, validationErrf("topic_id", "unknown topic %q", topicID)
	}

	unlock := e.locks.lockPair(pairKey(studentID, topicID), pairKey(studentID, itemID))
	defer unlock()

	now := e.now()
	result := &RecordResult{}

	// Mastery update.
	p := e.updateMastery(ctx, studentID, topic, correct, now)
	result.Mastery = p

	// Mistake ledger and drill flag.
	if correct {
		if drillTopic, active, err := e.ledger.Drill(ctx, studentID); err == nil && active && drillTopic == topicID {
			if err := e.ledger.ClearDrill(ctx, studentID); err != nil {
				slog.Warn("drill clear failed", "student_id", studentID, "error", err)
			}
		}
	} else {
		if err := e.withRetry(ctx, func(ctx context.Context) error {
			return e.ledger.RecordWrong(ctx, studentID, itemID)
		}); err != nil {
			slog.Error("wrong-answer record skipped", "student_id", studentID, "item_id", itemID, "error", err)
		}
		if err := e.ledger.SetDrill(ctx, studentID, topicID, e.drillWindow); err != nil {
			slog.Warn("drill flag set failed", "student_id", studentID, "error", err)
		} else {
			result.DrillTopic = topicID
		}
	}

	// Review reschedule.
	quality := e.quality.Quality(correct, time.Duration(durationMs)*time.Millisecond)
	result.Quality = quality
	result.NextDue = e.reschedule(ctx, studentID, itemID, quality, now)

	// Event append.
	event := ExerciseEvent{
		ID:         ulid.Make().String(),
		StudentID:  studentID,
		ItemID:     itemID,
		TopicID:    topicID,
		Correct:    correct,
		DurationMs: durationMs,
		CreatedAt:  now,
	}
	if err := e.withRetry(ctx, func(ctx context.Context) error {
		return e.store.AppendEvent(ctx, event)
	}); err != nil {
		slog.Error("event append skipped", "student_id", studentID, "item_id", itemID, "error", err)
	} else {
		result.EventID = event.ID
	}

	return result, nil
}

// updateMastery runs the BKT step and persists the posterior, mirroring
// it into the per-student mastery hash for cheap reads.
func (e *Engine) updateMastery(ctx context.Context, studentID string, topic catalog.Topic, correct bool, now time.Time) float64 {
	prior := topic.Params.Init
	if state, err := e.store.GetMastery(ctx, studentID, topic.ID); err != nil {
		slog.Warn("mastery read failed, using prior", "student_id", studentID, "topic_id", topic.ID, "error", err)
	} else if state != nil {
		prior = state.P
	}

	p := UpdateMastery(prior, correct, topic.Params)

	if err := e.withRetry(ctx, func(ctx context.Context) error {
		return e.store.PutMastery(ctx, MasteryState{
			StudentID: studentID,
			TopicID:   topic.ID,
			P:         p,
			UpdatedAt: now,
		})
	}); err != nil {
		slog.Error("mastery persist skipped", "student_id", studentID, "topic_id", topic.ID, "error", err)
	}

	if err := e.kv.HSet(ctx, keyMastery(studentID), topic.ID, strconv.FormatFloat(p, 'f', -1, 64)); err != nil {
		slog.Warn("mastery mirror failed", "student_id", studentID, "topic_id", topic.ID, "error", err)
	}
	return p
}

// reschedule applies SM-2 and updates both the durable schedule and the
// due-time index.
func (e *Engine) reschedule(ctx context.Context, studentID, itemID string, quality int, now time.Time) time.Time {
	prev, err := e.store.GetReview(ctx, studentID, itemID)
	if err != nil {
		slog.Warn("review read failed, treating as first exposure", "student_id", studentID, "item_id", itemID, "error", err)
		prev = nil
	}

	next := Schedule(prev, quality, now, e.minIntervalDays)
	next.StudentID = studentID
	next.ItemID = itemID

	if err := e.withRetry(ctx, func(ctx context.Context) error {
		return e.store.PutReview(ctx, next)
	}); err != nil {
		slog.Error("review persist skipped", "student_id", studentID, "item_id", itemID, "error", err)
	}
	if err := e.queue.Upsert(ctx, studentID, itemID, next.DueAt); err != nil {
		slog.Warn("review queue upsert failed", "student_id", studentID, "item_id", itemID, "error", err)
	}
	return next.DueAt
}

// MasteryByTopic returns the student's mastery map for read-only display.
func (e *Engine) MasteryByTopic(ctx context.Context, studentID string) (map[string]float64, error) {
	if studentID == "" {
		return nil, validationErrf("student_id", "must not be empty")
	}
	m, err := e.store.MasteryByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("mastery by topic: %w", err)
	}
	return m, nil
}

func (e *Engine) withRetry(ctx context.Context, op func(context.Context) error) error {
	backoff := retry.WithMaxRetries(3, retry.NewExponential(50*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := op(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}
