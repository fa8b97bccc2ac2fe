package engine

import "time"

// QualityPolicy maps an answer outcome to an SM-2 quality score (0..5).
// Correctness is the dominant signal; response duration biases the score
// up or down around the nominal correct grade.
type QualityPolicy struct {
	// FastAnswer and below earns the top grade; SlowAnswer and above
	// drops to the minimum passing grade.
	FastAnswer time.Duration
	SlowAnswer time.Duration
}

// DefaultQualityPolicy mirrors typical drill pacing: under 15s is fluent,
// over 90s is a struggle.
func DefaultQualityPolicy() QualityPolicy {
	return QualityPolicy{FastAnswer: 15 * time.Second, SlowAnswer: 90 * time.Second}
}

// Quality derives the SM-2 quality score from correctness and duration.
// Incorrect answers always fall below the SM-2 passing threshold of 3.
func (q QualityPolicy) Quality(correct bool, duration time.Duration) int {
	if !correct {
		return 2
	}
	switch {
	case duration > 0 && duration <= q.FastAnswer:
		return 5
	case q.SlowAnswer > 0 && duration >= q.SlowAnswer:
		return 3
	default:
		return 4
	}
}
