// Package cert mints and verifies course certificates. A certificate is
// append-only: issuance writes it once, revocation is the only later
// mutation, and the attempt it references never changes.
package cert

import (
	"context"
	"errors"
)

// Verification statuses.
const (
	StatusValid    = "valid"
	StatusRevoked  = "revoked"
	StatusNotFound = "not_found"
)

type Certificate struct {
	ID            string `json:"id"`
	Number        string `json:"number"` // public, high-entropy lookup key
	UserID        string `json:"user_id"`
	CourseID      string `json:"course_id"`
	AttemptID     string `json:"attempt_id"`
	RecipientName string `json:"recipient_name"`
	CourseTitle   string `json:"course_title"`
	IssuedAt      int64  `json:"issued_at"`
	Revoked       bool   `json:"revoked"`
	RevokedAt     *int64 `json:"revoked_at,omitempty"`
	RevokeReason  string `json:"revoke_reason,omitempty"`
}

var (
	ErrNotFound = errors.New("certificate not found")
	// ErrDuplicate marks a lost issuance race on the active
	// (user, course) uniqueness. Absorbed by the issuer, never surfaced.
	ErrDuplicate = errors.New("active certificate already exists")
	// ErrNotEligible is returned when issuance is requested for an
	// attempt that did not pass.
	ErrNotEligible = errors.New("attempt did not pass")
)

type Store interface {
	// Insert persists a new certificate; ErrDuplicate when a non-revoked
	// certificate already exists for (user, course).
	Insert(ctx context.Context, c Certificate) error
	// GetActive returns the non-revoked certificate for (user, course).
	GetActive(ctx context.Context, userID, courseID string) (Certificate, error)
	GetByID(ctx context.Context, id string) (Certificate, error)
	GetByNumber(ctx context.Context, number string) (Certificate, error)
	// Revoke marks a certificate revoked; idempotent, preserves the row.
	Revoke(ctx context.Context, id, reason string, now int64) (Certificate, error)
	// DisplayStrings resolves the denormalized strings frozen onto the
	// certificate at issue time.
	DisplayStrings(ctx context.Context, userID, courseID string) (recipient, courseTitle string, err error)
}
