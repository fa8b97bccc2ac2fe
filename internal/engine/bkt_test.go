package engine

import (
	"math"
	"testing"

	"github.com/adaptlearn/practice-engine/internal/catalog"
)

var refParams = catalog.Params{Init: 0.3, Transit: 0.1, Guess: 0.2, Slip: 0.1}

func TestUpdateMastery_ReferenceValues(t *testing.T) {
	// First correct observation from the initial prior:
	// posterior = 0.3*0.9 / (0.3*0.9 + 0.7*0.2) = 0.6585...
	// then learning transition: p' = posterior + (1-posterior)*0.1.
	got := UpdateMastery(refParams.Init, true, refParams)
	want := 0.69265
	if math.Abs(got-want) > 1e-4 {
		t.Errorf("UpdateMastery(0.3, correct) = %v, want %v ±1e-4", got, want)
	}
}

func TestUpdateMastery_IncorrectFromInit(t *testing.T) {
	// posterior = 0.3*0.1 / (0.3*0.1 + 0.7*0.8) = 0.050847...
	// p' = posterior + (1-posterior)*0.1 = 0.145763...
	got := UpdateMastery(refParams.Init, false, refParams)
	want := 0.1457627
	if math.Abs(got-want) > 1e-4 {
		t.Errorf("UpdateMastery(0.3, incorrect) = %v, want %v ±1e-4", got, want)
	}
}

func TestUpdateMastery_BoundsAndMonotonicity(t *testing.T) {
	// All-correct: non-decreasing, converging toward 1 without reaching it.
	p := refParams.Init
	for i := 0; i < 200; i++ {
		next := UpdateMastery(p, true, refParams)
		if next < p {
			t.Fatalf("all-correct sequence decreased at step %d: %v -> %v", i, p, next)
		}
		if next <= 0 || next >= 1 {
			t.Fatalf("mastery left (0,1) at step %d: %v", i, next)
		}
		p = next
	}
	if p > 1-masteryEpsilon {
		t.Errorf("all-correct sequence exceeded the clamp: %v", p)
	}
	if p < 0.99 {
		t.Errorf("all-correct sequence should converge toward 1, got %v", p)
	}

	// All-incorrect: non-increasing, floored above 0.
	p = refParams.Init
	for i := 0; i < 200; i++ {
		next := UpdateMastery(p, false, refParams)
		if next > p {
			t.Fatalf("all-incorrect sequence increased at step %d: %v -> %v", i, p, next)
		}
		if next <= 0 {
			t.Fatalf("mastery reached 0 at step %d", i)
		}
		p = next
	}
	if p < masteryEpsilon {
		t.Errorf("all-incorrect sequence fell below the floor: %v", p)
	}
}

func TestUpdateMastery_ClampsExtremePriors(t *testing.T) {
	for _, prior := range []float64{-1, 0, 1, 2} {
		for _, correct := range []bool{true, false} {
			got := UpdateMastery(prior, correct, refParams)
			if got < masteryEpsilon || got > 1-masteryEpsilon {
				t.Errorf("UpdateMastery(%v, %v) = %v, outside [ε, 1-ε]", prior, correct, got)
			}
		}
	}
}

func TestUpdateMastery_Deterministic(t *testing.T) {
	a := UpdateMastery(0.42, true, refParams)
	b := UpdateMastery(0.42, true, refParams)
	if a != b {
		t.Errorf("UpdateMastery not deterministic: %v != %v", a, b)
	}
}
