package http

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	authmw "github.com/certlane/certlane/internal/auth/middleware"
	"github.com/certlane/certlane/internal/cert"
	"github.com/certlane/certlane/internal/storage"
)

// GET /verify/{certificateNumber}  — public, no auth. Always 200 with a
// status body so an unknown number is indistinguishable in shape from
// any other not_found.
func VerifyHandler(svc *cert.VerificationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.Verify(r.Context(), chi.URLParam(r, "certificateNumber"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// GET /courses/{courseID}/certificate  — caller's own certificate.
func GetOwnCertificateHandler(store cert.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := authmw.SubjectFromContext(r.Context())
		c, err := store.GetActive(r.Context(), userID, chi.URLParam(r, "courseID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

type revokeReq struct {
	Reason string `json:"reason" validate:"required"`
}

// POST /certificates/{certificateID}/revoke  — admin only.
func RevokeCertificateHandler(issuer *cert.Issuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req revokeReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, err)
			return
		}
		c, err := issuer.Revoke(r.Context(), chi.URLParam(r, "certificateID"), req.Reason)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

// PUT /certificates/{certificateID}/artifact  — the external PDF
// renderer uploads its output here.
func PutArtifactHandler(store cert.Store, artifacts storage.ArtifactStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "certificateID")
		if _, err := store.GetByID(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		defer r.Body.Close()
		if err := artifacts.Put(id, r.Body); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"certificate_id": id})
	}
}

// GET /certificates/{certificateID}/artifact
func GetArtifactHandler(artifacts storage.ArtifactStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rc, err := artifacts.Get(chi.URLParam(r, "certificateID"))
		if err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		defer rc.Close()
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = io.Copy(w, rc)
	}
}
