package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/adaptlearn/practice-engine/internal/catalog"
)

// itemSchema is the contract a provider response must satisfy before the
// item is accepted into the supply.
const itemSchema = `{
	"type": "object",
	"required": ["stem", "options", "correct_answer"],
	"properties": {
		"stem": {"type": "string", "minLength": 1},
		"options": {
			"type": "array",
			"items": {"type": "string"},
			"minItems": 2
		},
		"correct_answer": {"type": "string", "minLength": 1},
		"rationale": {"type": "string"},
		"difficulty": {"type": "string"}
	}
}`

// HTTPProvider calls a remote generation endpoint. Responses are
// validated against itemSchema; anything malformed is an error, never a
// silently accepted item.
type HTTPProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
	schema  *gojsonschema.Schema
}

var _ Provider = (*HTTPProvider)(nil)

// NewHTTPProvider creates a provider for the given endpoint. The timeout
// bounds every call; the engine never blocks on generation indefinitely.
func NewHTTPProvider(baseURL, apiKey string, timeout time.Duration) (*HTTPProvider, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("generator base URL is empty")
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(itemSchema))
	if err != nil {
		return nil, fmt.Errorf("compile item schema: %w", err)
	}

	return &HTTPProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		schema:  schema,
	}, nil
}

type httpItem struct {
	Stem          string   `json:"stem"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Rationale     string   `json:"rationale"`
	Difficulty    string   `json:"difficulty"`
}

func (p *HTTPProvider) Generate(ctx context.Context, req Request) (catalog.Item, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return catalog.Item{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(body))
	if err != nil {
		return catalog.Item{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return catalog.Item{}, fmt.Errorf("call generator: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return catalog.Item{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return catalog.Item{}, fmt.Errorf("generator status %d: %s", resp.StatusCode, truncate(raw, 200))
	}

	result, err := p.schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return catalog.Item{}, fmt.Errorf("validate response: %w", err)
	}
	if !result.Valid() {
		return catalog.Item{}, fmt.Errorf("generator response failed schema: %v", result.Errors())
	}

	var item httpItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return catalog.Item{}, fmt.Errorf("decode response: %w", err)
	}

	difficulty := item.Difficulty
	if difficulty == "" {
		difficulty = req.Difficulty
	}

	return catalog.Item{
		Stem:          item.Stem,
		Options:       item.Options,
		CorrectAnswer: item.CorrectAnswer,
		Rationale:     item.Rationale,
		Difficulty:    difficulty,
		Source:        "generated",
	}, nil
}

func (p *HTTPProvider) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.baseURL, nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
