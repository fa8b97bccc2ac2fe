package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/adaptlearn/practice-engine/internal/platform/cache"
)

const (
	// minEase is the SM-2 floor; the ease factor never drops below it.
	minEase = 1.3
	// initialEase is the SM-2 starting ease for a freshly seen item.
	initialEase = 2.5

	firstIntervalDays  = 1.0
	secondIntervalDays = 6.0
)

// ReviewEntry is the spaced-repetition state for one (student, item) pair.
type ReviewEntry struct {
	StudentID    string
	ItemID       string
	DueAt        time.Time
	IntervalDays float64
	Repetition   int
	Ease         float64
}

// Schedule computes the next review entry from the previous one and an
// SM-2 quality score. A nil prev means first exposure: the item starts at
// the initial ease with no repetition history. minIntervalDays is the
// relearning interval applied after a failed recall.
func Schedule(prev *ReviewEntry, quality int, now time.Time, minIntervalDays float64) ReviewEntry {
	ease := initialEase
	repetition := 0
	interval := 0.0
	if prev != nil {
		ease = prev.Ease
		repetition = prev.Repetition
		interval = prev.IntervalDays
	}

	next := ReviewEntry{}
	if prev != nil {
		next.StudentID = prev.StudentID
		next.ItemID = prev.ItemID
	}

	if quality < 3 {
		next.Repetition = 0
		next.IntervalDays = minIntervalDays
		next.Ease = maxFloat(minEase, ease-0.2)
	} else {
		next.Repetition = repetition + 1
		q := float64(quality)
		next.Ease = maxFloat(minEase, ease+(0.1-(5-q)*(0.08+(5-q)*0.02)))

		switch next.Repetition {
		case 1:
			next.IntervalDays = firstIntervalDays
		case 2:
			next.IntervalDays = secondIntervalDays
		default:
			next.IntervalDays = interval * next.Ease
		}
	}

	next.DueAt = now.Add(days(next.IntervalDays))
	return next
}

func days(d float64) time.Duration {
	return time.Duration(d * 24 * float64(time.Hour))
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// ReviewQueue indexes review due times in a per-student sorted set so the
// "due now" query never scans full history.
type ReviewQueue struct {
	kv cache.KV
}

// NewReviewQueue creates a queue over the given cache.
func NewReviewQueue(kv cache.KV) *ReviewQueue {
	return &ReviewQueue{kv: kv}
}

// Upsert records the item's next due time.
func (q *ReviewQueue) Upsert(ctx context.Context, studentID, itemID string, dueAt time.Time) error {
	if err := q.kv.ZAdd(ctx, keyReviewDue(studentID), itemID, float64(dueAt.Unix())); err != nil {
		return fmt.Errorf("review queue upsert: %w", err)
	}
	return nil
}

// Due returns up to limit item IDs with dueAt <= now, earliest first.
func (q *ReviewQueue) Due(ctx context.Context, studentID string, now time.Time, limit int) ([]string, error) {
	entries, err := q.kv.ZRangeByScoreAsc(ctx, keyReviewDue(studentID), float64(now.Unix()), limit)
	if err != nil {
		return nil, fmt.Errorf("review queue due: %w", err)
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.Member)
	}
	return ids, nil
}
