package engine

import "github.com/adaptlearn/practice-engine/internal/catalog"

// masteryEpsilon keeps mastery strictly inside (0,1) so no sequence of
// observations can lock a student at exactly 0 or 1.
const masteryEpsilon = 1e-4

// UpdateMastery applies one Bayesian Knowledge Tracing observation to the
// prior mastery probability and returns the posterior. It is pure and
// deterministic: evidence conditioning on the observed correctness,
// followed by the learning transition, clamped into
// [masteryEpsilon, 1-masteryEpsilon].
func UpdateMastery(prior float64, correct bool, p catalog.Params) float64 {
	prior = clampMastery(prior)

	var posterior float64
	if correct {
		num := prior * (1 - p.Slip)
		posterior = num / (num + (1-prior)*p.Guess)
	} else {
		num := prior * p.Slip
		posterior = num / (num + (1-prior)*(1-p.Guess))
	}

	learned := posterior + (1-posterior)*p.Transit
	return clampMastery(learned)
}

func clampMastery(p float64) float64 {
	if p < masteryEpsilon {
		return masteryEpsilon
	}
	if p > 1-masteryEpsilon {
		return 1 - masteryEpsilon
	}
	return p
}
