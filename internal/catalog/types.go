package catalog

import "fmt"

// Params holds the Bayesian Knowledge Tracing parameters for a topic.
// All four probabilities must lie strictly inside (0,1).
type Params struct {
	Init    float64 `yaml:"p_init"`
	Transit float64 `yaml:"p_transit"`
	Guess   float64 `yaml:"p_guess"`
	Slip    float64 `yaml:"p_slip"`
}

// Validate checks that every parameter is a proper probability.
func (p Params) Validate() error {
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"p_init", p.Init},
		{"p_transit", p.Transit},
		{"p_guess", p.Guess},
		{"p_slip", p.Slip},
	} {
		if f.v <= 0 || f.v >= 1 {
			return fmt.Errorf("%s must be in (0,1), got %v", f.name, f.v)
		}
	}
	return nil
}

// Topic represents a knowledge point loaded from YAML. Topics form a
// prerequisite DAG; cycles are rejected at load time.
type Topic struct {
	ID            string   `yaml:"id"`
	Name          string   `yaml:"name"`
	Category      string   `yaml:"category"`
	Params        Params   `yaml:"bkt"`
	Prerequisites []string `yaml:"prerequisites"`
}

// Item is a single practice question. Items come from the local bank
// (imported), the external pool, or on-demand generation.
type Item struct {
	ID            string   `json:"id"`
	TopicID       string   `json:"topic_id,omitempty"`
	Stem          string   `json:"stem"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Rationale     string   `json:"rationale,omitempty"`
	Difficulty    string   `json:"difficulty,omitempty"`
	Source        string   `json:"source,omitempty"`
}
