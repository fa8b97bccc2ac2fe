// Package generator provides a provider-agnostic content generation
// gateway with ordered fallback.
package generator

import (
	"context"

	"github.com/adaptlearn/practice-engine/internal/catalog"
)

// Request carries the remediation context sent to a provider. Mastery is
// the student's current probability for the topic; CommonMistakes and
// LastWrongSummary steer the item toward observed weaknesses.
type Request struct {
	TopicName        string  `json:"topic_name"`
	Mastery          float64 `json:"mastery"`
	CommonMistakes   string  `json:"common_mistakes"`
	LastWrongSummary string  `json:"last_wrong_summary"`
	DaysSinceReview  int     `json:"days_since_review"`
	Difficulty       string  `json:"difficulty"`
}

// Provider generates one practice item for the given context. Both errors
// and timeouts are soft failures; the caller escalates to the next
// fallback tier.
type Provider interface {
	Generate(ctx context.Context, req Request) (catalog.Item, error)
	HealthCheck(ctx context.Context) error
}
