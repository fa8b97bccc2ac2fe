package pool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/adaptlearn/practice-engine/internal/catalog"
)

// HTTPSource fetches item batches from a question bank API. Responses are
// mapped tolerantly: the upstream sometimes wraps the payload in a
// "question" object and sometimes serves it flat; items missing a stem
// are skipped rather than failing the batch.
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

var _ Source = (*HTTPSource)(nil)

// NewHTTPSource creates a source for the given endpoint.
func NewHTTPSource(baseURL string, timeout time.Duration) (*HTTPSource, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("source base URL is empty")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSource{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// sourceItem is the tolerant wire shape of one upstream question.
type sourceItem struct {
	Question      json.RawMessage   `json:"question"`
	Stem          string            `json:"stem"`
	Choices       map[string]string `json:"choices"`
	Options       []string          `json:"options"`
	CorrectAnswer string            `json:"correct_answer"`
	Answer        string            `json:"answer"`
	Explanation   string            `json:"explanation"`
	Rationale     string            `json:"rationale"`
	Difficulty    string            `json:"difficulty"`
}

func (s *HTTPSource) FetchBatch(ctx context.Context, category string, count int) ([]catalog.Item, error) {
	u := fmt.Sprintf("%s?section=%s&limit=%d", s.baseURL, url.QueryEscape(category), count)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call item source: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("item source status %d", resp.StatusCode)
	}

	var wire []sourceItem
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	items := make([]catalog.Item, 0, len(wire))
	for _, w := range wire {
		item, ok := mapItem(w)
		if !ok {
			slog.Warn("skipping source item with no stem", "category", category)
			continue
		}
		item.ID = ulid.Make().String()
		item.Source = "pool"
		items = append(items, item)
	}

	slog.Info("fetched item batch", "category", category, "requested", count, "received", len(items))
	return items, nil
}

// mapItem flattens a wire item, unwrapping the nested "question" object
// when present.
func mapItem(w sourceItem) (catalog.Item, bool) {
	inner := w
	if len(w.Question) > 0 && w.Question[0] == '{' {
		var nested sourceItem
		if err := json.Unmarshal(w.Question, &nested); err == nil {
			inner = nested
			// The nested shape uses "question" for the stem text.
			var stem string
			if json.Unmarshal(jsonField(w.Question, "question"), &stem) == nil && stem != "" {
				inner.Stem = stem
			}
			if inner.Difficulty == "" {
				inner.Difficulty = w.Difficulty
			}
		}
	} else if len(w.Question) > 0 {
		// Flat shape with "question" holding the stem string.
		var stem string
		if err := json.Unmarshal(w.Question, &stem); err == nil && inner.Stem == "" {
			inner.Stem = stem
		}
	}

	if inner.Stem == "" {
		return catalog.Item{}, false
	}

	options := inner.Options
	if len(options) == 0 && len(inner.Choices) > 0 {
		for _, key := range []string{"A", "B", "C", "D"} {
			if v, ok := inner.Choices[key]; ok {
				options = append(options, key+". "+v)
			}
		}
	}

	correct := inner.CorrectAnswer
	if correct == "" {
		correct = inner.Answer
	}

	rationale := inner.Explanation
	if rationale == "" {
		rationale = inner.Rationale
	}

	difficulty := inner.Difficulty
	if difficulty == "" {
		difficulty = "Medium"
	}

	return catalog.Item{
		Stem:          inner.Stem,
		Options:       options,
		CorrectAnswer: correct,
		Rationale:     rationale,
		Difficulty:    difficulty,
	}, true
}

// jsonField extracts one raw field from a JSON object without decoding
// the whole shape.
func jsonField(obj json.RawMessage, name string) json.RawMessage {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(obj, &m); err != nil {
		return nil
	}
	return m[name]
}
