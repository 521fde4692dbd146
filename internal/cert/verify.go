package cert

import (
	"context"
	"errors"
)

// VerifyResult is the public answer for a certificate number. Details
// are present only for valid certificates; every not_found path yields
// the same shape so unknown numbers reveal nothing.
type VerifyResult struct {
	Status  string   `json:"status"` // valid | revoked | not_found
	Details *Details `json:"details,omitempty"`
}

type Details struct {
	CertificateNumber string `json:"certificate_number"`
	RecipientName     string `json:"recipient_name"`
	CourseTitle       string `json:"course_title"`
	IssuedAt          int64  `json:"issued_at"`
}

// VerificationService is the read-only public lookup. It never exposes
// attempt scores, emails, or any other user's data.
type VerificationService struct {
	store Store
}

func NewVerificationService(store Store) *VerificationService {
	return &VerificationService{store: store}
}

func (v *VerificationService) Verify(ctx context.Context, number string) (VerifyResult, error) {
	c, err := v.store.GetByNumber(ctx, number)
	if errors.Is(err, ErrNotFound) {
		return VerifyResult{Status: StatusNotFound}, nil
	}
	if err != nil {
		return VerifyResult{}, err
	}
	if c.Revoked {
		return VerifyResult{Status: StatusRevoked}, nil
	}
	return VerifyResult{
		Status: StatusValid,
		Details: &Details{
			CertificateNumber: c.Number,
			RecipientName:     c.RecipientName,
			CourseTitle:       c.CourseTitle,
			IssuedAt:          c.IssuedAt,
		},
	}, nil
}
