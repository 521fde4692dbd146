// Package notify delivers fire-and-forget user notifications. Delivery
// failures are logged and dropped: a lost notification must never roll
// back grading or certificate issuance.
package notify

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"time"
)

// Event names emitted by the engine.
const (
	EventExamPassed        = "exam.passed"
	EventExamFailed        = "exam.failed"
	EventAttemptExpired    = "attempt.expired"
	EventCertificateIssued = "certificate.issued"
)

type Notifier interface {
	Notify(ctx context.Context, userID, event string, payload map[string]any)
}

// EventLogNotifier appends notifications to the append-only event_log
// table; a downstream mailer drains it. Append errors are swallowed.
type EventLogNotifier struct {
	db *sql.DB
}

func NewEventLogNotifier(dbh *sql.DB) *EventLogNotifier {
	return &EventLogNotifier{db: dbh}
}

func (n *EventLogNotifier) Notify(ctx context.Context, userID, event string, payload map[string]any) {
	if payload == nil {
		payload = map[string]any{}
	}
	payload["user_id"] = userID
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("notify: encode %s for %s: %v", event, userID, err)
		return
	}
	_, err = n.db.ExecContext(ctx,
		`INSERT INTO event_log (typ, key, data, created_at) VALUES ($1,$2,$3,$4)`,
		event, userID, string(data), time.Now().Unix())
	if err != nil {
		log.Printf("notify: append %s for %s: %v", event, userID, err)
	}
}

// LogNotifier just logs. Used in dev and as a test double.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, userID, event string, payload map[string]any) {
	log.Printf("notify: %s user=%s payload=%v", event, userID, payload)
}
