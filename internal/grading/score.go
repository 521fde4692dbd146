package grading

import "math"

// Summary is the graded outcome of a whole attempt.
type Summary struct {
	Score       int      `json:"score"` // 0-100 whole percentage
	Passed      bool     `json:"passed"`
	Earned      float64  `json:"earned"`
	Max         float64  `json:"max"`
	PerQuestion []Result `json:"per_question"`
}

// roundPercent converts earned/max into a whole percentage, rounding to
// nearest with ties up, so 84.5 becomes 85. A pass threshold compare on
// the rounded value keeps the boundary inclusive.
func roundPercent(earned, max float64) int {
	if max <= 0 {
		return 0
	}
	pct := earned / max * 100
	return int(math.Floor(pct + 0.5))
}
