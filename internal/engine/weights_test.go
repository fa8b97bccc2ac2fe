package engine

import (
	"context"
	"testing"
)

func TestStrategyWeights_Validate(t *testing.T) {
	tests := []struct {
		name    string
		w       StrategyWeights
		wantErr bool
	}{
		{"default mix", DefaultWeights(), false},
		{"single strategy", StrategyWeights{Mistake: 100}, false},
		{"even split", StrategyWeights{Mistake: 25, Weakness: 25, Review: 25, Advance: 25}, false},
		{"sum under 100", StrategyWeights{Mistake: 50, Weakness: 30}, true},
		{"sum over 100", StrategyWeights{Mistake: 60, Weakness: 60}, true},
		{"negative weight", StrategyWeights{Mistake: 110, Weakness: -10}, true},
		{"zero everything", StrategyWeights{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.w.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !IsValidation(err) {
				t.Errorf("Validate() error = %v, want ValidationError", err)
			}
		})
	}
}

func TestEngine_WeightsRoundTrip(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	// Nothing stored: engine default.
	w, err := f.engine.Weights(ctx, "stu")
	if err != nil {
		t.Fatal(err)
	}
	if w != DefaultWeights() {
		t.Errorf("Weights() = %+v, want default", w)
	}

	override := StrategyWeights{Mistake: 70, Weakness: 10, Review: 10, Advance: 10}
	if err := f.engine.SetWeights(ctx, "stu", override); err != nil {
		t.Fatal(err)
	}
	w, err = f.engine.Weights(ctx, "stu")
	if err != nil {
		t.Fatal(err)
	}
	if w != override {
		t.Errorf("Weights() = %+v, want %+v", w, override)
	}

	// The override is per student.
	w, err = f.engine.Weights(ctx, "other")
	if err != nil {
		t.Fatal(err)
	}
	if w != DefaultWeights() {
		t.Errorf("Weights(other) = %+v, want default", w)
	}
}

func TestEngine_SetWeightsRejectsInvalid(t *testing.T) {
	f := newFixture(t, nil)

	err := f.engine.SetWeights(context.Background(), "stu", StrategyWeights{Mistake: 10})
	if !IsValidation(err) {
		t.Fatalf("SetWeights() error = %v, want ValidationError", err)
	}
}
