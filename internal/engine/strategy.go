package engine

import (
	"context"
	"log/slog"
	"math/rand"
	"sort"
	"time"

	"github.com/adaptlearn/practice-engine/internal/catalog"
)

// Strategy labels the policy that produced a candidate.
type Strategy string

const (
	StrategyMistake  Strategy = "mistake_repeat"
	StrategyReview   Strategy = "review_due"
	StrategyWeakness Strategy = "weakness_remediation"
	StrategyAdvance  Strategy = "skill_advance"
	StrategyPool     Strategy = "pool"
	StrategyGenerate Strategy = "generated"
)

// Candidate is one selectable item with the strategy that proposed it.
type Candidate struct {
	Strategy Strategy
	Item     catalog.Item
	TopicID  string
}

const (
	topWrongDepth = 10
	dueDepth      = 5
)

// Selector ranks one candidate per strategy and draws among them by the
// configured weights. The draw source is injectable so tests can pin the
// outcome; rand.Float64 is used in production.
type Selector struct {
	catalog   *catalog.Catalog
	store     Store
	ledger    *Ledger
	queue     *ReviewQueue
	readiness float64
	draw      func() float64
	now       func() time.Time
}

// SelectorConfig holds Selector dependencies.
type SelectorConfig struct {
	Catalog   *catalog.Catalog
	Store     Store
	Ledger    *Ledger
	Queue     *ReviewQueue
	Readiness float64 // prerequisite readiness threshold, e.g. 0.6
	Draw      func() float64
	Now       func() time.Time
}

// NewSelector creates a selector.
func NewSelector(cfg SelectorConfig) *Selector {
	draw := cfg.Draw
	if draw == nil {
		draw = rand.Float64
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	readiness := cfg.Readiness
	if readiness == 0 {
		readiness = 0.6
	}
	return &Selector{
		catalog:   cfg.Catalog,
		store:     cfg.Store,
		ledger:    cfg.Ledger,
		queue:     cfg.Queue,
		readiness: readiness,
		draw:      draw,
		now:       now,
	}
}

// Select returns one candidate for the student, or ErrNoCandidate when
// every strategy pool is empty. Strategies whose pool is empty are
// excluded and the remaining weights renormalized; a zero remaining total
// falls back to the fixed priority order
// mistake > review > weakness > advance.
func (s *Selector) Select(ctx context.Context, studentID string, w StrategyWeights) (*Candidate, error) {
	mastery, err := s.store.MasteryByStudent(ctx, studentID)
	if err != nil {
		slog.Warn("mastery lookup failed during selection", "student_id", studentID, "error", err)
		mastery = map[string]float64{}
	}

	// Fixed priority order; pools that fail to build are treated as empty.
	pools := []struct {
		weight    int
		candidate *Candidate
	}{
		{w.Mistake, s.mistakeCandidate(ctx, studentID)},
		{w.Review, s.reviewCandidate(ctx, studentID)},
		{w.Weakness, s.weaknessCandidate(ctx, studentID, mastery)},
		{w.Advance, s.advanceCandidate(ctx, mastery)},
	}

	total := 0
	anyCandidate := false
	for _, p := range pools {
		if p.candidate != nil {
			anyCandidate = true
			total += p.weight
		}
	}
	if !anyCandidate {
		return nil, ErrNoCandidate
	}

	if total == 0 {
		for _, p := range pools {
			if p.candidate != nil {
				return p.candidate, nil
			}
		}
	}

	r := s.draw() * float64(total)
	acc := 0.0
	for _, p := range pools {
		if p.candidate == nil {
			continue
		}
		acc += float64(p.weight)
		if r < acc {
			return p.candidate, nil
		}
	}
	// Floating-point edge: fall back to the last non-empty pool.
	for i := len(pools) - 1; i >= 0; i-- {
		if pools[i].candidate != nil {
			return pools[i].candidate, nil
		}
	}
	return nil, ErrNoCandidate
}

// mistakeCandidate proposes the most frequently missed item. When the
// drill flag is active, an item from the drill topic is preferred over a
// higher-ranked one.
func (s *Selector) mistakeCandidate(ctx context.Context, studentID string) *Candidate {
	top, err := s.ledger.TopWrong(ctx, studentID, topWrongDepth)
	if err != nil {
		slog.Warn("mistake pool unavailable", "student_id", studentID, "error", err)
		return nil
	}
	if len(top) == 0 {
		return nil
	}

	drillTopic, drillActive, err := s.ledger.Drill(ctx, studentID)
	if err != nil {
		slog.Warn("drill flag unavailable", "student_id", studentID, "error", err)
		drillActive = false
	}

	var fallback *Candidate
	for _, wrong := range top {
		item, err := s.store.GetItem(ctx, wrong.ItemID)
		if err != nil || item == nil {
			continue
		}
		c := &Candidate{Strategy: StrategyMistake, Item: *item, TopicID: item.TopicID}
		if drillActive && item.TopicID == drillTopic {
			return c
		}
		if fallback == nil {
			fallback = c
		}
	}
	return fallback
}

// reviewCandidate proposes the earliest due item.
func (s *Selector) reviewCandidate(ctx context.Context, studentID string) *Candidate {
	due, err := s.queue.Due(ctx, studentID, s.now(), dueDepth)
	if err != nil {
		slog.Warn("review pool unavailable", "student_id", studentID, "error", err)
		return nil
	}
	for _, itemID := range due {
		item, err := s.store.GetItem(ctx, itemID)
		if err != nil || item == nil {
			continue
		}
		return &Candidate{Strategy: StrategyReview, Item: *item, TopicID: item.TopicID}
	}
	return nil
}

// weaknessCandidate proposes an item from the weakest attempted topic. If
// that topic is not ready (an unmet prerequisite is below the readiness
// threshold), the walk descends to the weakest unmet prerequisite; the
// descent is bounded by the catalog size since the graph is acyclic.
func (s *Selector) weaknessCandidate(ctx context.Context, studentID string, mastery map[string]float64) *Candidate {
	if len(mastery) == 0 {
		return nil
	}

	target := ""
	lowest := 2.0
	for _, topicID := range sortedKeys(mastery) {
		if _, known := s.catalog.Get(topicID); !known {
			continue
		}
		if p := mastery[topicID]; p < lowest {
			lowest = p
			target = topicID
		}
	}
	if target == "" {
		return nil
	}

	for depth := 0; depth < s.catalog.Len(); depth++ {
		weakestUnmet, ok := s.weakestUnmetPrereq(target, mastery)
		if !ok {
			break
		}
		target = weakestUnmet
	}

	item, err := s.store.PickItem(ctx, target)
	if err != nil {
		slog.Warn("weakness pool unavailable", "student_id", studentID, "error", err)
		return nil
	}
	if item == nil {
		return nil
	}
	return &Candidate{Strategy: StrategyWeakness, Item: *item, TopicID: target}
}

// weakestUnmetPrereq returns the weakest prerequisite of topicID that sits
// below the readiness threshold. Prerequisite IDs not present in the
// catalog are treated as satisfied; prerequisites never attempted fall
// back to their pInit.
func (s *Selector) weakestUnmetPrereq(topicID string, mastery map[string]float64) (string, bool) {
	topic, ok := s.catalog.Get(topicID)
	if !ok {
		return "", false
	}

	prereqs := append([]string(nil), topic.Prerequisites...)
	sort.Strings(prereqs)

	unmet := ""
	lowest := 2.0
	for _, pre := range prereqs {
		preTopic, known := s.catalog.Get(pre)
		if !known {
			continue
		}
		p, attempted := mastery[pre]
		if !attempted {
			p = preTopic.Params.Init
		}
		if p < s.readiness && p < lowest {
			lowest = p
			unmet = pre
		}
	}
	return unmet, unmet != ""
}

// advanceCandidate proposes an item from the first topic in topological
// order the student has not attempted.
func (s *Selector) advanceCandidate(ctx context.Context, mastery map[string]float64) *Candidate {
	for _, topicID := range s.catalog.TopoOrder() {
		if _, attempted := mastery[topicID]; attempted {
			continue
		}
		item, err := s.store.PickItem(ctx, topicID)
		if err != nil {
			slog.Warn("advance pool unavailable", "topic_id", topicID, "error", err)
			return nil
		}
		if item == nil {
			// No bank item for this topic; try the next unattempted one.
			continue
		}
		return &Candidate{Strategy: StrategyAdvance, Item: *item, TopicID: topicID}
	}
	return nil
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
