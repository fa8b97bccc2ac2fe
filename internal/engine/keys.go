package engine

import "fmt"

// Cache key scheme. All per-student state is partitioned under
// "student:{id}:", so concurrent students never touch the same keys.
func keyMastery(studentID string) string {
	return fmt.Sprintf("student:%s:mastery", studentID)
}

func keyWrongFreq(studentID string) string {
	return fmt.Sprintf("student:%s:wrong_freq", studentID)
}

func keyCommonMistakes(studentID string) string {
	return fmt.Sprintf("student:%s:common_mistakes", studentID)
}

func keyDrill(studentID string) string {
	return fmt.Sprintf("student:%s:drill_mode", studentID)
}

func keyReviewDue(studentID string) string {
	return fmt.Sprintf("student:%s:review_due", studentID)
}

func keyWeights(studentID string) string {
	return fmt.Sprintf("student:%s:strategy_weights", studentID)
}
