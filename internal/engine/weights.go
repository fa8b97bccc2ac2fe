package engine

import (
	"context"
	"fmt"
	"strconv"
)

// StrategyWeights distributes selection probability across the four
// strategies. Weights are non-negative and must sum to 100; validation
// happens at the boundary, not inside the selector.
type StrategyWeights struct {
	Mistake  int `json:"mistake"`
	Weakness int `json:"weakness"`
	Review   int `json:"review"`
	Advance  int `json:"advance"`
}

// DefaultWeights is the engine-wide default mix.
func DefaultWeights() StrategyWeights {
	return StrategyWeights{Mistake: 30, Weakness: 30, Review: 20, Advance: 20}
}

// Validate rejects negative weights and totals other than 100.
func (w StrategyWeights) Validate() error {
	for _, f := range []struct {
		name string
		v    int
	}{
		{"mistake", w.Mistake},
		{"weakness", w.Weakness},
		{"review", w.Review},
		{"advance", w.Advance},
	} {
		if f.v < 0 {
			return validationErrf("weights", "%s weight is negative: %d", f.name, f.v)
		}
	}
	if sum := w.Mistake + w.Weakness + w.Review + w.Advance; sum != 100 {
		return validationErrf("weights", "weights must sum to 100, got %d", sum)
	}
	return nil
}

// Weights returns the student's configured strategy weights, or the
// engine default when none are stored.
func (e *Engine) Weights(ctx context.Context, studentID string) (StrategyWeights, error) {
	fields, err := e.kv.HGetAll(ctx, keyWeights(studentID))
	if err != nil {
		return StrategyWeights{}, fmt.Errorf("load weights: %w", err)
	}
	if len(fields) == 0 {
		return e.defaultWeights, nil
	}

	w := StrategyWeights{
		Mistake:  atoiField(fields, "mistake"),
		Weakness: atoiField(fields, "weakness"),
		Review:   atoiField(fields, "review"),
		Advance:  atoiField(fields, "advance"),
	}
	if err := w.Validate(); err != nil {
		// Stored weights predate validation or were hand-edited; fall
		// back to the default rather than fail selection.
		return e.defaultWeights, nil
	}
	return w, nil
}

// SetWeights validates and stores a per-student weight override.
func (e *Engine) SetWeights(ctx context.Context, studentID string, w StrategyWeights) error {
	if err := w.Validate(); err != nil {
		return err
	}
	// One write keeps concurrent readers from seeing a partial hash.
	err := e.kv.HSetAll(ctx, keyWeights(studentID), map[string]string{
		"mistake":  strconv.Itoa(w.Mistake),
		"weakness": strconv.Itoa(w.Weakness),
		"review":   strconv.Itoa(w.Review),
		"advance":  strconv.Itoa(w.Advance),
	})
	if err != nil {
		return fmt.Errorf("store weights: %w", err)
	}
	return nil
}

func atoiField(fields map[string]string, name string) int {
	v, _ := strconv.Atoi(fields[name])
	return v
}
