package exam

// Question types supported by the grading engine. True/false is a
// two-option multiple choice whose options are fixed as [true-label, false-label].
const (
	TypeMCQSingle = "mcq_single"
	TypeMCQMulti  = "mcq_multi"
	TypeTrueFalse = "true_false"
)

// Attempt statuses. in_progress is the only non-terminal state.
const (
	StatusInProgress = "in_progress"
	StatusSubmitted  = "submitted"
	StatusExpired    = "expired"
)

type Question struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"`
	Prompt      string   `json:"prompt"`
	Options     []string `json:"options"`
	Correct     []int    `json:"correct,omitempty"` // indices into Options; stripped on student reads
	Points      float64  `json:"points"`
	Explanation string   `json:"explanation,omitempty"`
}

// Definition is a course's published exam. Immutable once published;
// attempts snapshot the question set at start so later edits never
// affect a sitting in progress.
type Definition struct {
	CourseID     string     `json:"course_id"`
	TimeLimitSec int        `json:"time_limit_sec"`
	PassingScore int        `json:"passing_score"` // 0-100, boundary inclusive
	MaxAttempts  int        `json:"max_attempts"`
	Shuffle      bool       `json:"shuffle"`
	Questions    []Question `json:"questions"`
	PublishedAt  int64      `json:"published_at,omitempty"`
}

// Answer is one submitted response, tagged by shape: option indices for
// multiple choice, a boolean for true/false. Exactly one side is set.
type Answer struct {
	Selected []int `json:"selected,omitempty"`
	Value    *bool `json:"value,omitempty"`
}

type AnswerSet map[string]Answer

type Attempt struct {
	ID          string     `json:"id"`
	CourseID    string     `json:"course_id"`
	UserID      string     `json:"user_id"`
	AttemptNo   int        `json:"attempt_no"`
	Status      string     `json:"status"`
	Questions   []Question `json:"questions"` // snapshot taken at start
	Answers     AnswerSet  `json:"answers"`
	Score       *int       `json:"score,omitempty"`  // nil until graded
	Passed      *bool      `json:"passed,omitempty"` // nil until graded
	StartedAt   int64      `json:"started_at"`
	Deadline    int64      `json:"deadline"` // started_at + time limit + grace
	SubmittedAt *int64     `json:"submitted_at,omitempty"`
	ElapsedSec  *int       `json:"elapsed_sec,omitempty"`
}

// Terminal reports whether the attempt reached a final state. Terminal
// attempts are never mutated again.
func (a Attempt) Terminal() bool {
	return a.Status == StatusSubmitted || a.Status == StatusExpired
}

// ValidateAnswers rejects structurally malformed submissions at the
// boundary: an answer must be exactly one of option indices or a
// boolean. Wrong-but-well-formed answers are a grading concern, not a
// validation one.
func ValidateAnswers(answers AnswerSet) error {
	for qid, a := range answers {
		if qid == "" {
			return validationErrorf("answer with empty question id")
		}
		if len(a.Selected) > 0 && a.Value != nil {
			return validationErrorf("answer for %q sets both selected and value", qid)
		}
		for _, idx := range a.Selected {
			if idx < 0 {
				return validationErrorf("answer for %q has negative option index", qid)
			}
		}
	}
	return nil
}

// StudentView strips answer keys and explanations from the snapshot so
// an in-progress attempt can be served to its owner.
func (a Attempt) StudentView() Attempt {
	out := a
	out.Questions = make([]Question, len(a.Questions))
	copy(out.Questions, a.Questions)
	if !a.Terminal() {
		for i := range out.Questions {
			out.Questions[i].Correct = nil
			out.Questions[i].Explanation = ""
		}
	}
	return out
}
