package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/adaptlearn/practice-engine/internal/catalog"
	"github.com/adaptlearn/practice-engine/internal/engine"
	"github.com/adaptlearn/practice-engine/internal/platform/cache"
)

func testApp(t *testing.T) *app {
	t.Helper()
	cat, err := catalog.FromTopics([]catalog.Topic{
		{ID: "fractions", Name: "Fractions", Category: "math", Params: catalog.Params{Init: 0.3, Transit: 0.1, Guess: 0.2, Slip: 0.1}},
	})
	if err != nil {
		t.Fatal(err)
	}
	store := engine.NewMemoryStore()
	if err := store.InsertItem(t.Context(), catalog.Item{
		ID: "frac-1", TopicID: "fractions", Stem: "1/2 + 1/4 = ?",
		Options: []string{"A. 3/4", "B. 1/2"}, CorrectAnswer: "A", Difficulty: "Easy", Source: "bank",
	}); err != nil {
		t.Fatal(err)
	}

	eng, err := engine.New(engine.Config{Catalog: cat, Store: store, KV: cache.NewMemory()})
	if err != nil {
		t.Fatal(err)
	}
	return &app{engine: eng}
}

func TestHealthEndpoints(t *testing.T) {
	mux := newMux(testApp(t))

	tests := []struct {
		name       string
		path       string
		wantStatus int
	}{
		{"healthz returns 200", "/healthz", http.StatusOK},
		{"readyz returns 200 without deps", "/readyz", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			rec := httptest.NewRecorder()

			mux.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestPracticeFlow(t *testing.T) {
	mux := newMux(testApp(t))

	// Next: blank student gets the bank item.
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/practice/next",
		strings.NewReader(`{"student_id":"stu-1"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("next status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var sel engine.Selection
	if err := json.Unmarshal(rec.Body.Bytes(), &sel); err != nil {
		t.Fatal(err)
	}
	if sel.Item.ID != "frac-1" || sel.TopicID != "fractions" {
		t.Fatalf("selection = %+v", sel)
	}

	// Submit an incorrect answer.
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/practice/submit",
		strings.NewReader(`{"student_id":"stu-1","item_id":"frac-1","topic_id":"fractions","correct":false,"duration_ms":42000}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("submit status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var res engine.RecordResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Mastery <= 0 || res.Mastery >= 0.3 {
		t.Errorf("mastery = %v, want below the 0.3 prior", res.Mastery)
	}
	if res.DrillTopic != "fractions" {
		t.Errorf("drill topic = %q, want fractions", res.DrillTopic)
	}

	// Mastery readback.
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/practice/mastery?student_id=stu-1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("mastery status = %d", rec.Code)
	}
	var masteryResp struct {
		StudentID string             `json:"student_id"`
		Mastery   map[string]float64 `json:"mastery"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &masteryResp); err != nil {
		t.Fatal(err)
	}
	if len(masteryResp.Mastery) != 1 {
		t.Errorf("mastery map = %v, want one topic", masteryResp.Mastery)
	}
}

func TestSubmitValidation(t *testing.T) {
	mux := newMux(testApp(t))

	tests := []struct {
		name string
		body string
	}{
		{"unknown topic", `{"student_id":"stu","item_id":"frac-1","topic_id":"calculus","correct":true,"duration_ms":1}`},
		{"missing student", `{"item_id":"frac-1","topic_id":"fractions","correct":true,"duration_ms":1}`},
		{"malformed json", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/practice/submit", strings.NewReader(tt.body)))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestWeightsEndpoints(t *testing.T) {
	mux := newMux(testApp(t))

	// Default before any override.
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/practice/weights?student_id=stu", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var w engine.StrategyWeights
	if err := json.Unmarshal(rec.Body.Bytes(), &w); err != nil {
		t.Fatal(err)
	}
	if w != engine.DefaultWeights() {
		t.Errorf("weights = %+v, want default", w)
	}

	// Invalid override rejected.
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/practice/weights",
		strings.NewReader(`{"student_id":"stu","weights":{"mistake":10}}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid put status = %d, want 400", rec.Code)
	}

	// Valid override round-trips.
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/practice/weights",
		strings.NewReader(`{"student_id":"stu","weights":{"mistake":70,"weakness":10,"review":10,"advance":10}}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("put status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/practice/weights?student_id=stu", nil))
	if err := json.Unmarshal(rec.Body.Bytes(), &w); err != nil {
		t.Fatal(err)
	}
	if w.Mistake != 70 {
		t.Errorf("weights after put = %+v", w)
	}
}

func TestExhaustedSupply(t *testing.T) {
	cat, err := catalog.FromTopics([]catalog.Topic{
		{ID: "fractions", Name: "Fractions", Category: "math", Params: catalog.Params{Init: 0.3, Transit: 0.1, Guess: 0.2, Slip: 0.1}},
	})
	if err != nil {
		t.Fatal(err)
	}
	eng, err := engine.New(engine.Config{Catalog: cat, Store: engine.NewMemoryStore(), KV: cache.NewMemory()})
	if err != nil {
		t.Fatal(err)
	}
	mux := newMux(&app{engine: eng})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/practice/next",
		strings.NewReader(`{"student_id":"stu"}`)))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
}
