package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/adaptlearn/practice-engine/internal/platform/cache"
)

// Ledger tracks wrong-answer frequencies and common-mistake summaries per
// student. Counters only grow; the sole reset is the explicit
// administrative Reset call.
type Ledger struct {
	kv cache.KV
}

// NewLedger creates a ledger over the given cache.
func NewLedger(kv cache.KV) *Ledger {
	return &Ledger{kv: kv}
}

// WrongItem is one entry of the ranked wrong-answer set.
type WrongItem struct {
	ItemID string
	Count  int
}

// RecordWrong increments the wrong-answer counter for the item.
func (l *Ledger) RecordWrong(ctx context.Context, studentID, itemID string) error {
	if _, err := l.kv.ZIncrBy(ctx, keyWrongFreq(studentID), itemID, 1); err != nil {
		return fmt.Errorf("record wrong: %w", err)
	}
	return nil
}

// TopWrong returns the k highest-frequency wrong items, ties broken by
// ascending item ID so results are reproducible.
func (l *Ledger) TopWrong(ctx context.Context, studentID string, k int) ([]WrongItem, error) {
	entries, err := l.kv.ZTopN(ctx, keyWrongFreq(studentID), k)
	if err != nil {
		return nil, fmt.Errorf("top wrong: %w", err)
	}
	items := make([]WrongItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, WrongItem{ItemID: e.Member, Count: int(e.Score)})
	}
	// The cache contract only guarantees descending score; pin the
	// tie-break ourselves.
	sort.Slice(items, func(i, j int) bool {
		if items[i].Count != items[j].Count {
			return items[i].Count > items[j].Count
		}
		return items[i].ItemID < items[j].ItemID
	})
	return items, nil
}

// CommonMistakes returns the stored mistake summary for the topic, used as
// generation context. The summary text is accumulated by callers; the
// ledger only stores and retrieves it.
func (l *Ledger) CommonMistakes(ctx context.Context, studentID, topicID string) (string, error) {
	v, ok, err := l.kv.HGet(ctx, keyCommonMistakes(studentID), topicID)
	if err != nil {
		return "", fmt.Errorf("common mistakes: %w", err)
	}
	if !ok {
		return "", nil
	}
	return v, nil
}

// SetCommonMistakes stores the mistake summary for the topic.
func (l *Ledger) SetCommonMistakes(ctx context.Context, studentID, topicID, summary string) error {
	if err := l.kv.HSet(ctx, keyCommonMistakes(studentID), topicID, summary); err != nil {
		return fmt.Errorf("set common mistakes: %w", err)
	}
	return nil
}

// Reset clears all ledger state for the student. Administrative use only.
func (l *Ledger) Reset(ctx context.Context, studentID string) error {
	for _, key := range []string{keyWrongFreq(studentID), keyCommonMistakes(studentID), keyDrill(studentID)} {
		if err := l.kv.Delete(ctx, key); err != nil {
			return fmt.Errorf("reset ledger: %w", err)
		}
	}
	return nil
}

// SetDrill marks the topic as the student's drill focus for the window.
// The flag is bound to the topic actually answered incorrectly.
func (l *Ledger) SetDrill(ctx context.Context, studentID, topicID string, window time.Duration) error {
	if err := l.kv.Set(ctx, keyDrill(studentID), topicID, window); err != nil {
		return fmt.Errorf("set drill: %w", err)
	}
	return nil
}

// Drill returns the active drill topic, if any.
func (l *Ledger) Drill(ctx context.Context, studentID string) (string, bool, error) {
	topicID, ok, err := l.kv.Get(ctx, keyDrill(studentID))
	if err != nil {
		return "", false, fmt.Errorf("get drill: %w", err)
	}
	return topicID, ok, nil
}

// ClearDrill removes the drill flag.
func (l *Ledger) ClearDrill(ctx context.Context, studentID string) error {
	if err := l.kv.Delete(ctx, keyDrill(studentID)); err != nil {
		return fmt.Errorf("clear drill: %w", err)
	}
	return nil
}
