package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/certlane/certlane/internal/exam"
)

type courseReq struct {
	Title string `json:"title" validate:"required"`
}

// PUT /courses/{courseID}
func UpsertCourseHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req courseReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, err)
			return
		}
		c := exam.Course{ID: chi.URLParam(r, "courseID"), Title: req.Title}
		if err := store.PutCourse(r.Context(), c); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

type questionReq struct {
	ID          string   `json:"id" validate:"required"`
	Type        string   `json:"type" validate:"required,oneof=mcq_single mcq_multi true_false"`
	Prompt      string   `json:"prompt" validate:"required"`
	Options     []string `json:"options" validate:"required,min=2"`
	Correct     []int    `json:"correct" validate:"required,min=1"`
	Points      float64  `json:"points"`
	Explanation string   `json:"explanation"`
}

type publishExamReq struct {
	TimeLimitMinutes int           `json:"time_limit_minutes" validate:"required,min=1"`
	PassingScore     int           `json:"passing_score" validate:"min=0,max=100"`
	MaxAttempts      int           `json:"max_attempts" validate:"required,min=1"`
	Shuffle          bool          `json:"shuffle"`
	Questions        []questionReq `json:"questions" validate:"required,min=1,dive"`
}

// POST /courses/{courseID}/exam
func PublishExamHandler(store exam.Store, bank *exam.Bank) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req publishExamReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, err)
			return
		}
		d := exam.Definition{
			CourseID:     chi.URLParam(r, "courseID"),
			TimeLimitSec: req.TimeLimitMinutes * 60,
			PassingScore: req.PassingScore,
			MaxAttempts:  req.MaxAttempts,
			Shuffle:      req.Shuffle,
		}
		for _, q := range req.Questions {
			points := q.Points
			if points == 0 {
				points = 1
			}
			d.Questions = append(d.Questions, exam.Question{
				ID:          q.ID,
				Type:        q.Type,
				Prompt:      q.Prompt,
				Options:     q.Options,
				Correct:     q.Correct,
				Points:      points,
				Explanation: q.Explanation,
			})
		}
		if err := exam.ValidateDefinition(d); err != nil {
			writeError(w, err)
			return
		}
		if err := store.PutExam(r.Context(), d); err != nil {
			writeError(w, err)
			return
		}
		bank.Invalidate(d.CourseID)
		writeJSON(w, http.StatusOK, map[string]any{
			"course_id": d.CourseID,
			"questions": len(d.Questions),
		})
	}
}

// GET /courses/{courseID}/exam  — student-safe view, no answer keys.
func GetExamHandler(bank *exam.Bank) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := bank.Load(r.Context(), chi.URLParam(r, "courseID"))
		if err != nil {
			writeError(w, err)
			return
		}
		for i := range d.Questions {
			d.Questions[i].Correct = nil
			d.Questions[i].Explanation = ""
		}
		writeJSON(w, http.StatusOK, d)
	}
}
