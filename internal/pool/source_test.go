package pool

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPSource_FetchBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("section"); got != "math" {
			t.Errorf("section = %q, want math", got)
		}
		if got := r.URL.Query().Get("limit"); got != "2" {
			t.Errorf("limit = %q, want 2", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{
				"question": {"question": "1/2 + 1/4 = ?", "choices": {"A": "3/4", "B": "1/2", "C": "1/4", "D": "1"}, "answer": "A", "explanation": "common denominator"},
				"difficulty": "Easy"
			},
			{
				"question": "25% of 80?",
				"options": ["A. 20", "B. 25"],
				"correct_answer": "A",
				"rationale": "one quarter"
			}
		]`))
	}))
	defer srv.Close()

	src, err := NewHTTPSource(srv.URL, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	items, err := src.FetchBatch(context.Background(), "math", 2)
	if err != nil {
		t.Fatalf("FetchBatch() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("item count = %d, want 2", len(items))
	}

	wrapped := items[0]
	if wrapped.Stem != "1/2 + 1/4 = ?" {
		t.Errorf("wrapped stem = %q", wrapped.Stem)
	}
	if len(wrapped.Options) != 4 || wrapped.Options[0] != "A. 3/4" {
		t.Errorf("wrapped options = %v", wrapped.Options)
	}
	if wrapped.CorrectAnswer != "A" || wrapped.Rationale != "common denominator" {
		t.Errorf("wrapped item = %+v", wrapped)
	}
	if wrapped.Difficulty != "Easy" {
		t.Errorf("wrapped difficulty = %q, want Easy", wrapped.Difficulty)
	}

	flat := items[1]
	if flat.Stem != "25% of 80?" {
		t.Errorf("flat stem = %q", flat.Stem)
	}
	if flat.Difficulty != "Medium" {
		t.Errorf("flat difficulty = %q, want the Medium default", flat.Difficulty)
	}

	for i, item := range items {
		if item.ID == "" {
			t.Errorf("item %d has no id", i)
		}
		if item.Source != "pool" {
			t.Errorf("item %d source = %q, want pool", i, item.Source)
		}
	}
}

func TestHTTPSource_SkipsStemlessItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[{"options": ["A. 1"]}, {"stem": "valid?", "options": ["A. 1"], "correct_answer": "A"}]`))
	}))
	defer srv.Close()

	src, err := NewHTTPSource(srv.URL, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	items, err := src.FetchBatch(context.Background(), "math", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].Stem != "valid?" {
		t.Errorf("items = %+v, want the single valid item", items)
	}
}

func TestHTTPSource_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	src, err := NewHTTPSource(srv.URL, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := src.FetchBatch(context.Background(), "math", 5); err == nil {
		t.Fatal("FetchBatch() should fail on a non-200 status")
	}
}

func TestHTTPSource_EmptyURL(t *testing.T) {
	if _, err := NewHTTPSource("", time.Second); err == nil {
		t.Fatal("NewHTTPSource(\"\") should fail")
	}
}
