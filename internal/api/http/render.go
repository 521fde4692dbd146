package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/certlane/certlane/internal/cert"
	"github.com/certlane/certlane/internal/exam"
)

var validate = validator.New()

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps engine errors onto stable error kinds. Precondition
// failures keep their kind so the UI can render non-retryable messages;
// anything unmapped is a 500 with no internals leaked.
func writeError(w http.ResponseWriter, err error) {
	status, kind := errStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Printf("http: %v", err)
		msg = "internal error"
	}
	writeJSON(w, status, map[string]string{"error": kind, "message": msg})
}

func errStatus(err error) (int, string) {
	var ve validator.ValidationErrors
	switch {
	case errors.Is(err, exam.ErrPurchaseRequired):
		return http.StatusPaymentRequired, "purchase_required"
	case errors.Is(err, exam.ErrAttemptLimit):
		return http.StatusConflict, "attempt_limit_exceeded"
	case errors.Is(err, exam.ErrAttemptNotActive):
		return http.StatusConflict, "attempt_not_active"
	case errors.Is(err, exam.ErrAttemptForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, exam.ErrCourseNotFound),
		errors.Is(err, exam.ErrExamNotConfigured),
		errors.Is(err, exam.ErrAttemptNotFound),
		errors.Is(err, cert.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case exam.IsValidation(err), errors.As(err, &ve):
		return http.StatusUnprocessableEntity, "validation_error"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
