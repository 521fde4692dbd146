// Package purchase answers one question for the exam engine: has this
// user a completed purchase of this course. Checkout and payment
// webhooks live outside this service; they land rows in the purchases
// table that this package reads.
package purchase

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"
)

const StatusCompleted = "completed"

type Verifier interface {
	HasCompletedPurchase(ctx context.Context, userID, courseID string) (bool, error)
}

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(dbh *sql.DB) *SQLStore { return &SQLStore{db: dbh} }

func (s *SQLStore) HasCompletedPurchase(ctx context.Context, userID, courseID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM purchases WHERE user_id=$1 AND course_id=$2 AND status=$3`,
		userID, courseID, StatusCompleted).Scan(&one)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check purchase: %w", err)
	}
	return true, nil
}

// Grant records a completed purchase. Used by the back-office grant
// endpoint and by seeds; the payment webhook writes the same row.
func (s *SQLStore) Grant(ctx context.Context, userID, courseID string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO purchases (user_id,course_id,status,completed_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (user_id,course_id) DO UPDATE SET
			status=EXCLUDED.status, completed_at=EXCLUDED.completed_at`,
		userID, courseID, StatusCompleted, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("grant purchase: %w", err)
	}
	return nil
}

// MemoryStore is a Verifier for tests and offline runs.
type MemoryStore struct {
	mu      sync.Mutex
	granted map[string]bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{granted: map[string]bool{}}
}

func (m *MemoryStore) Grant(userID, courseID string) {
	m.mu.Lock()
	m.granted[userID+"|"+courseID] = true
	m.mu.Unlock()
}

func (m *MemoryStore) HasCompletedPurchase(_ context.Context, userID, courseID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.granted[userID+"|"+courseID], nil
}
