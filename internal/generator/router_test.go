package generator_test

import (
	"context"
	"errors"
	"testing"

	"github.com/adaptlearn/practice-engine/internal/catalog"
	"github.com/adaptlearn/practice-engine/internal/generator"
)

func sampleItem() catalog.Item {
	return catalog.Item{
		Stem:          "What is 2 + 2?",
		Options:       []string{"A. 3", "B. 4", "C. 5", "D. 22"},
		CorrectAnswer: "B",
		Rationale:     "Basic addition.",
	}
}

func TestRouter_Fallback(t *testing.T) {
	broken := &generator.MockProvider{Err: errors.New("provider down")}
	working := generator.NewMockProvider(sampleItem())

	r := generator.NewRouter()
	r.Register("primary", broken)
	r.Register("secondary", working)

	item, err := r.Generate(context.Background(), generator.Request{TopicName: "Fractions"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if item.Stem != sampleItem().Stem {
		t.Errorf("Generate() stem = %q, want fallback provider's item", item.Stem)
	}
	if broken.Calls != 1 || working.Calls != 1 {
		t.Errorf("call counts = %d/%d, want 1/1", broken.Calls, working.Calls)
	}
}

func TestRouter_AllFail(t *testing.T) {
	r := generator.NewRouter()
	r.Register("only", &generator.MockProvider{Err: errors.New("down")})

	_, err := r.Generate(context.Background(), generator.Request{TopicName: "Fractions"})
	if err == nil {
		t.Fatal("Generate() should fail when every provider fails")
	}
}

func TestRouter_PassesContext(t *testing.T) {
	mock := generator.NewMockProvider(sampleItem())
	r := generator.NewRouter()
	r.Register("mock", mock)

	req := generator.Request{
		TopicName:      "Linear Equations",
		Mastery:        0.35,
		CommonMistakes: "drops the sign when moving terms",
		Difficulty:     "Easy",
	}
	if _, err := r.Generate(context.Background(), req); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if mock.LastRequest == nil {
		t.Fatal("provider never saw the request")
	}
	if mock.LastRequest.CommonMistakes != req.CommonMistakes {
		t.Errorf("CommonMistakes = %q, want %q", mock.LastRequest.CommonMistakes, req.CommonMistakes)
	}
	if mock.LastRequest.Mastery != req.Mastery {
		t.Errorf("Mastery = %v, want %v", mock.LastRequest.Mastery, req.Mastery)
	}
}

func TestRouter_HasProvider(t *testing.T) {
	r := generator.NewRouter()
	if r.HasProvider() {
		t.Error("HasProvider() = true on empty router")
	}
	r.Register("mock", generator.NewMockProvider(sampleItem()))
	if !r.HasProvider() {
		t.Error("HasProvider() = false after registration")
	}
}
