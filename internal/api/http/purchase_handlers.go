package http

import (
	"encoding/json"
	"net/http"

	"github.com/certlane/certlane/internal/purchase"
)

type grantPurchaseReq struct {
	UserID   string `json:"user_id" validate:"required"`
	CourseID string `json:"course_id" validate:"required"`
}

// POST /purchases  — back-office grant. The storefront's payment
// webhook writes the same row out of band.
func GrantPurchaseHandler(store *purchase.SQLStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req grantPurchaseReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, err)
			return
		}
		if err := store.Grant(r.Context(), req.UserID, req.CourseID); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"user_id":   req.UserID,
			"course_id": req.CourseID,
			"status":    purchase.StatusCompleted,
		})
	}
}
