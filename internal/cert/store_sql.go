package cert

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/certlane/certlane/internal/db"
)

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(dbh *sql.DB) *SQLStore { return &SQLStore{db: dbh} }

func (s *SQLStore) Insert(ctx context.Context, c Certificate) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO certificates
		(id,number,user_id,course_id,attempt_id,recipient_name,course_title,issued_at,revoked)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,FALSE)`,
		c.ID, c.Number, c.UserID, c.CourseID, c.AttemptID,
		c.RecipientName, c.CourseTitle, c.IssuedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert certificate: %w", err)
	}
	return nil
}

func (s *SQLStore) GetActive(ctx context.Context, userID, courseID string) (Certificate, error) {
	row := s.db.QueryRowContext(ctx, selectCert+
		` WHERE user_id=$1 AND course_id=$2 AND revoked=FALSE`, userID, courseID)
	return scanCert(row)
}

func (s *SQLStore) GetByID(ctx context.Context, id string) (Certificate, error) {
	row := s.db.QueryRowContext(ctx, selectCert+` WHERE id=$1`, id)
	return scanCert(row)
}

func (s *SQLStore) GetByNumber(ctx context.Context, number string) (Certificate, error) {
	row := s.db.QueryRowContext(ctx, selectCert+` WHERE number=$1`, number)
	return scanCert(row)
}

func (s *SQLStore) Revoke(ctx context.Context, id, reason string, now int64) (Certificate, error) {
	// only the first revocation writes timestamp and reason
	_, err := s.db.ExecContext(ctx, `UPDATE certificates
		SET revoked=TRUE, revoked_at=$1, revoke_reason=$2
		WHERE id=$3 AND revoked=FALSE`, now, reason, id)
	if err != nil {
		return Certificate{}, fmt.Errorf("revoke certificate: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *SQLStore) DisplayStrings(ctx context.Context, userID, courseID string) (string, string, error) {
	recipient := userID
	var name string
	err := s.db.QueryRowContext(ctx,
		`SELECT display_name FROM users WHERE id=$1 OR username=$1`, userID).Scan(&name)
	switch {
	case err == nil && name != "":
		recipient = name
	case err != nil && err != sql.ErrNoRows:
		return "", "", fmt.Errorf("resolve recipient: %w", err)
	}

	var title string
	if err := s.db.QueryRowContext(ctx,
		`SELECT title FROM courses WHERE id=$1`, courseID).Scan(&title); err != nil {
		if err == sql.ErrNoRows {
			return "", "", fmt.Errorf("course %s: %w", courseID, ErrNotFound)
		}
		return "", "", fmt.Errorf("resolve course title: %w", err)
	}
	return recipient, title, nil
}

const selectCert = `SELECT id,number,user_id,course_id,attempt_id,recipient_name,
	course_title,issued_at,revoked,revoked_at,revoke_reason FROM certificates`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCert(row rowScanner) (Certificate, error) {
	var c Certificate
	var revokedAt sql.NullInt64
	var reason sql.NullString
	err := row.Scan(&c.ID, &c.Number, &c.UserID, &c.CourseID, &c.AttemptID,
		&c.RecipientName, &c.CourseTitle, &c.IssuedAt, &c.Revoked, &revokedAt, &reason)
	if err != nil {
		if err == sql.ErrNoRows {
			return Certificate{}, ErrNotFound
		}
		return Certificate{}, fmt.Errorf("scan certificate: %w", err)
	}
	if revokedAt.Valid {
		v := revokedAt.Int64
		c.RevokedAt = &v
	}
	c.RevokeReason = reason.String
	return c, nil
}
