package grading

// Q is a minimal view of a question needed for grading.
// Keep this in sync with whatever fields your store uses.
type Q struct {
	ID      string
	Type    string // mcq_single, mcq_multi, true_false
	Points  float64
	Correct []int // indices of the correct option(s)
}

// Response is one submitted answer, tagged by shape: option indices for
// multiple choice, a boolean for true/false.
type Response struct {
	Selected []int
	Value    *bool
}

// Result is the outcome of grading a single question response.
type Result struct {
	QuestionID string  `json:"question_id"`
	Earned     float64 `json:"earned"`
	Max        float64 `json:"max"`
	Answered   bool    `json:"answered"`
	Correct    bool    `json:"correct"`
}

// Strategy grades a single question. Missing or malformed responses
// score zero; grading never errors once a submission is accepted.
type Strategy interface {
	Grade(q Q, resp Response, answered bool) Result
}

// Engine routes by question type to the correct Strategy.
type Engine struct {
	strategies map[string]Strategy
}

// NewEngine installs the built-in strategies.
func NewEngine() *Engine {
	return &Engine{
		strategies: map[string]Strategy{
			"mcq_single": mcqSingleStrategy{},
			"true_false": trueFalseStrategy{},
			"mcq_multi":  mcqMultiStrategy{},
		},
	}
}

// Grade scores a full answer set against the question list. It is pure
// and deterministic: identical inputs always produce identical output,
// which makes re-reads of a terminal attempt safe.
func (e *Engine) Grade(questions []Q, responses map[string]Response, passingScore int) Summary {
	sum := Summary{PerQuestion: make([]Result, 0, len(questions))}
	for _, q := range questions {
		resp, has := responses[q.ID]
		r := Result{QuestionID: q.ID, Max: q.Points}
		if has {
			answered := len(resp.Selected) > 0 || resp.Value != nil
			if s, ok := e.strategies[q.Type]; ok && answered {
				r = s.Grade(q, resp, answered)
			} else {
				r.Answered = answered
			}
		}
		sum.Earned += r.Earned
		sum.Max += r.Max
		sum.PerQuestion = append(sum.PerQuestion, r)
	}
	sum.Score = roundPercent(sum.Earned, sum.Max)
	sum.Passed = sum.Score >= passingScore
	return sum
}

type mcqSingleStrategy struct{}

func (mcqSingleStrategy) Grade(q Q, resp Response, answered bool) Result {
	r := Result{QuestionID: q.ID, Max: q.Points, Answered: answered}
	if len(resp.Selected) == 1 && len(q.Correct) == 1 && resp.Selected[0] == q.Correct[0] {
		r.Correct = true
		r.Earned = q.Points
	}
	return r
}

// trueFalseStrategy treats true/false as a two-option multiple choice:
// option 0 is the true label, option 1 the false label. A boolean
// response maps onto those indices; an index response is accepted too.
type trueFalseStrategy struct{}

func (trueFalseStrategy) Grade(q Q, resp Response, answered bool) Result {
	r := Result{QuestionID: q.ID, Max: q.Points, Answered: answered}
	idx := -1
	switch {
	case resp.Value != nil:
		if *resp.Value {
			idx = 0
		} else {
			idx = 1
		}
	case len(resp.Selected) == 1:
		idx = resp.Selected[0]
	}
	if idx >= 0 && len(q.Correct) == 1 && idx == q.Correct[0] {
		r.Correct = true
		r.Earned = q.Points
	}
	return r
}

// mcqMultiStrategy requires an exact match of the selected set: any
// missing or extra option scores zero.
type mcqMultiStrategy struct{}

func (mcqMultiStrategy) Grade(q Q, resp Response, answered bool) Result {
	r := Result{QuestionID: q.ID, Max: q.Points, Answered: answered}
	if len(q.Correct) > 0 && equalIntSets(resp.Selected, q.Correct) {
		r.Correct = true
		r.Earned = q.Points
	}
	return r
}

func equalIntSets(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	seen := map[int]int{}
	for _, v := range a {
		seen[v]++
	}
	for _, v := range b {
		seen[v]--
	}
	for _, v := range seen {
		if v != 0 {
			return false
		}
	}
	return true
}
