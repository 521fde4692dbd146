package exam

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/certlane/certlane/internal/db"
)

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(dbh *sql.DB) *SQLStore {
	return &SQLStore{db: dbh}
}

func (s *SQLStore) PutCourse(ctx context.Context, c Course) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO courses (id,title,created_at)
		VALUES ($1,$2,$3)
		ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title`,
		c.ID, c.Title, time.Now().Unix())
	return err
}

func (s *SQLStore) GetCourse(ctx context.Context, id string) (Course, error) {
	var c Course
	err := s.db.QueryRowContext(ctx,
		`SELECT id,title,created_at FROM courses WHERE id=$1`, id).
		Scan(&c.ID, &c.Title, &c.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return Course{}, ErrCourseNotFound
		}
		return Course{}, fmt.Errorf("load course: %w", err)
	}
	return c, nil
}

func (s *SQLStore) PutExam(ctx context.Context, d Definition) error {
	if _, err := s.GetCourse(ctx, d.CourseID); err != nil {
		return err
	}
	qj, err := json.Marshal(d.Questions)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO exams
		(course_id,time_limit_sec,passing_score,max_attempts,shuffle,questions_json,published_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (course_id) DO UPDATE SET
			time_limit_sec=EXCLUDED.time_limit_sec,
			passing_score=EXCLUDED.passing_score,
			max_attempts=EXCLUDED.max_attempts,
			shuffle=EXCLUDED.shuffle,
			questions_json=EXCLUDED.questions_json,
			published_at=EXCLUDED.published_at`,
		d.CourseID, d.TimeLimitSec, d.PassingScore, d.MaxAttempts, d.Shuffle,
		string(qj), time.Now().Unix())
	return err
}

func (s *SQLStore) GetExam(ctx context.Context, courseID string) (Definition, error) {
	var d Definition
	var qjson string
	err := s.db.QueryRowContext(ctx, `SELECT course_id,time_limit_sec,passing_score,
		max_attempts,shuffle,questions_json,published_at FROM exams WHERE course_id=$1`,
		courseID).
		Scan(&d.CourseID, &d.TimeLimitSec, &d.PassingScore, &d.MaxAttempts,
			&d.Shuffle, &qjson, &d.PublishedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return Definition{}, ErrExamNotConfigured
		}
		return Definition{}, fmt.Errorf("load exam: %w", err)
	}
	if err := json.Unmarshal([]byte(qjson), &d.Questions); err != nil {
		return Definition{}, fmt.Errorf("decode questions: %w", err)
	}
	return d, nil
}

func (s *SQLStore) CreateAttempt(ctx context.Context, a Attempt) error {
	qj, err := json.Marshal(a.Questions)
	if err != nil {
		return err
	}
	aj, err := json.Marshal(a.Answers)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO attempts
		(id,course_id,user_id,attempt_no,status,questions_json,answers_json,started_at,deadline)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		a.ID, a.CourseID, a.UserID, a.AttemptNo, a.Status,
		string(qj), string(aj), a.StartedAt, a.Deadline)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrDuplicateAttempt
		}
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

func (s *SQLStore) GetAttempt(ctx context.Context, id string) (Attempt, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,course_id,user_id,attempt_no,status,
		questions_json,answers_json,score,passed,started_at,deadline,submitted_at,elapsed_sec
		FROM attempts WHERE id=$1`, id)
	return scanAttempt(row)
}

func (s *SQLStore) CountAttempts(ctx context.Context, courseID, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM attempts WHERE course_id=$1 AND user_id=$2`,
		courseID, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count attempts: %w", err)
	}
	return n, nil
}

func (s *SQLStore) SaveAnswers(ctx context.Context, attemptID string, answers AnswerSet) (Attempt, error) {
	a, err := s.GetAttempt(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if a.Terminal() {
		return Attempt{}, ErrAttemptNotActive
	}
	if a.Answers == nil {
		a.Answers = AnswerSet{}
	}
	for k, v := range answers {
		a.Answers[k] = v
	}
	buf, err := json.Marshal(a.Answers)
	if err != nil {
		return Attempt{}, err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE attempts SET answers_json=$1 WHERE id=$2 AND status=$3`,
		string(buf), attemptID, StatusInProgress)
	if err != nil {
		return Attempt{}, fmt.Errorf("save answers: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// finalized between read and write
		return Attempt{}, ErrAttemptNotActive
	}
	return s.GetAttempt(ctx, attemptID)
}

func (s *SQLStore) FinalizeAttempt(ctx context.Context, a Attempt) (Attempt, bool, error) {
	buf, err := json.Marshal(a.Answers)
	if err != nil {
		return Attempt{}, false, err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE attempts SET
			status=$1, answers_json=$2, score=$3, passed=$4, submitted_at=$5, elapsed_sec=$6
		WHERE id=$7 AND status=$8`,
		a.Status, string(buf), a.Score, a.Passed, a.SubmittedAt, a.ElapsedSec,
		a.ID, StatusInProgress)
	if err != nil {
		return Attempt{}, false, fmt.Errorf("finalize attempt: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Attempt{}, false, err
	}
	stored, err := s.GetAttempt(ctx, a.ID)
	if err != nil {
		return Attempt{}, false, err
	}
	return stored, n > 0, nil
}

func (s *SQLStore) ListAttempts(ctx context.Context, opts ListOpts) ([]Attempt, error) {
	q := `SELECT id,course_id,user_id,attempt_no,status,questions_json,answers_json,
		score,passed,started_at,deadline,submitted_at,elapsed_sec FROM attempts WHERE 1=1`
	args := []any{}
	n := 0
	add := func(cond string, v any) {
		n++
		q += fmt.Sprintf(" AND %s=$%d", cond, n)
		args = append(args, v)
	}
	if opts.CourseID != "" {
		add("course_id", opts.CourseID)
	}
	if opts.UserID != "" {
		add("user_id", opts.UserID)
	}
	if opts.Status != "" {
		add("status", opts.Status)
	}
	q += " ORDER BY started_at DESC"
	limit := opts.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()
	var out []Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) ListOverdue(ctx context.Context, now int64, graceSec int, limit int) ([]Attempt, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT id,course_id,user_id,
		attempt_no,status,questions_json,answers_json,score,passed,started_at,deadline,
		submitted_at,elapsed_sec
		FROM attempts WHERE status=$1 AND deadline + $2 < $3
		ORDER BY deadline ASC LIMIT %d`, limit),
		StatusInProgress, graceSec, now)
	if err != nil {
		return nil, fmt.Errorf("list overdue: %w", err)
	}
	defer rows.Close()
	var out []Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttempt(row rowScanner) (Attempt, error) {
	var a Attempt
	var qjson, ajson string
	var score sql.NullInt64
	var passed sql.NullBool
	var submittedAt, elapsed sql.NullInt64
	err := row.Scan(&a.ID, &a.CourseID, &a.UserID, &a.AttemptNo, &a.Status,
		&qjson, &ajson, &score, &passed, &a.StartedAt, &a.Deadline,
		&submittedAt, &elapsed)
	if err != nil {
		if err == sql.ErrNoRows {
			return Attempt{}, ErrAttemptNotFound
		}
		return Attempt{}, fmt.Errorf("scan attempt: %w", err)
	}
	if err := json.Unmarshal([]byte(qjson), &a.Questions); err != nil {
		return Attempt{}, fmt.Errorf("decode question snapshot: %w", err)
	}
	if err := json.Unmarshal([]byte(ajson), &a.Answers); err != nil {
		a.Answers = AnswerSet{}
	}
	if score.Valid {
		v := int(score.Int64)
		a.Score = &v
	}
	if passed.Valid {
		v := passed.Bool
		a.Passed = &v
	}
	if submittedAt.Valid {
		v := submittedAt.Int64
		a.SubmittedAt = &v
	}
	if elapsed.Valid {
		v := int(elapsed.Int64)
		a.ElapsedSec = &v
	}
	return a, nil
}
