package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	authmw "github.com/certlane/certlane/internal/auth/middleware"
	"github.com/certlane/certlane/internal/exam"
	"github.com/certlane/certlane/internal/rbac"
)

// POST /courses/{courseID}/attempts
func StartAttemptHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := authmw.SubjectFromContext(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		a, err := svc.StartAttempt(r.Context(), userID, chi.URLParam(r, "courseID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, a.StudentView())
	}
}

type saveAnswersReq struct {
	Answers exam.AnswerSet `json:"answers"`
}

// PUT /attempts/{attemptID}/answers
func SaveAnswersHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := authmw.SubjectFromContext(r.Context())
		var req saveAnswersReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if err := exam.ValidateAnswers(req.Answers); err != nil {
			writeError(w, err)
			return
		}
		a, err := svc.SaveAnswers(r.Context(), userID, chi.URLParam(r, "attemptID"), req.Answers)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, a.StudentView())
	}
}

type submitAttemptReq struct {
	Answers    exam.AnswerSet `json:"answers"`
	ElapsedSec int            `json:"elapsed_sec"`
}

// POST /attempts/{attemptID}/submit
func SubmitAttemptHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := authmw.SubjectFromContext(r.Context())
		var req submitAttemptReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if err := exam.ValidateAnswers(req.Answers); err != nil {
			writeError(w, err)
			return
		}
		a, err := svc.SubmitAttempt(r.Context(), userID, chi.URLParam(r, "attemptID"),
			req.Answers, req.ElapsedSec)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, a.StudentView())
	}
}

// GET /attempts/{attemptID}  — owner, or any holder of attempt:view-all.
func GetAttemptHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		a, err := svc.GetAttempt(ctx, chi.URLParam(r, "attemptID"))
		if err != nil {
			writeError(w, err)
			return
		}
		userID := authmw.SubjectFromContext(ctx)
		if a.UserID != userID && !rbac.Can(rbac.RoleFromContext(ctx), "attempt:view-all") {
			writeError(w, exam.ErrAttemptForbidden)
			return
		}
		writeJSON(w, http.StatusOK, a.StudentView())
	}
}

// GET /attempts?course_id=&user_id=&status=&limit=&offset=
// Students see only their own; staff may filter freely.
func ListAttemptsHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		q := r.URL.Query()
		opts := exam.ListOpts{
			CourseID: q.Get("course_id"),
			UserID:   q.Get("user_id"),
			Status:   q.Get("status"),
		}
		opts.Limit, _ = strconv.Atoi(q.Get("limit"))
		opts.Offset, _ = strconv.Atoi(q.Get("offset"))
		if !rbac.Can(rbac.RoleFromContext(ctx), "attempt:view-all") {
			opts.UserID = authmw.SubjectFromContext(ctx)
		}
		attempts, err := svc.ListAttempts(ctx, opts)
		if err != nil {
			writeError(w, err)
			return
		}
		out := make([]exam.Attempt, 0, len(attempts))
		for _, a := range attempts {
			out = append(out, a.StudentView())
		}
		writeJSON(w, http.StatusOK, out)
	}
}
