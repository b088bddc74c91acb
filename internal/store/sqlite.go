package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spigell/interviewer/internal/interview"
	"github.com/spigell/interviewer/internal/scoring"
	"github.com/spigell/interviewer/internal/utils"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const (
	busyRetries   = 3
	busyBaseDelay = 50 * time.Millisecond
)

// SQLiteStore persists sessions in a SQLite database file.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLite opens (and creates when missing) the database at dbPath.
func NewSQLite(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Immediate transactions take the write lock up front so concurrent commits queue on the
	// busy timeout instead of failing on lock upgrade.
	dsn := dbPath +
		"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db, logger: logger}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		job_title TEXT NOT NULL,
		job_description TEXT NOT NULL,
		requirements TEXT NOT NULL,
		status TEXT NOT NULL,
		step_index INTEGER NOT NULL,
		total_steps INTEGER NOT NULL,
		score_history TEXT NOT NULL,
		cumulative_score REAL NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		completed_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_idle ON sessions(updated_at) WHERE status = 'in_progress';

	CREATE TABLE IF NOT EXISTS questions (
		session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		ord INTEGER NOT NULL,
		text TEXT NOT NULL,
		difficulty TEXT NOT NULL,
		origin TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (session_id, ord)
	);

	CREATE TABLE IF NOT EXISTS answers (
		session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		ord INTEGER NOT NULL,
		text TEXT NOT NULL,
		has_audio INTEGER NOT NULL,
		has_video INTEGER NOT NULL,
		content_score REAL NOT NULL,
		audio_score REAL,
		video_score REAL,
		composite_score REAL NOT NULL,
		feedback TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (session_id, ord)
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateSession(ctx context.Context, session *interview.Session, first *interview.Question) error {
	history, err := json.Marshal(session.ScoreHistory)
	if err != nil {
		return fmt.Errorf("marshal score history: %w", err)
	}

	return s.withRetry(ctx, "create session", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		defer tx.Rollback()

		_, err = tx.ExecContext(ctx, `
			INSERT INTO sessions (id, job_title, job_description, requirements, status, step_index,
				total_steps, score_history, cumulative_score, created_at, updated_at, completed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			session.ID, session.Job.Title, session.Job.Description, session.Job.Requirements,
			string(session.Status), session.StepIndex, session.TotalSteps, string(history),
			session.CumulativeScore, toUnix(session.CreatedAt), toUnix(session.UpdatedAt),
			nullableTime(session.CompletedAt),
		)
		if err != nil {
			return fmt.Errorf("insert session: %w", err)
		}

		if first != nil {
			if err := insertQuestion(ctx, tx, first); err != nil {
				return err
			}
		}

		return tx.Commit()
	})
}

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*interview.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, job_title, job_description, requirements, status, step_index, total_steps,
		       score_history, cumulative_score, created_at, updated_at, completed_at
		FROM sessions WHERE id = ?`, id)

	var (
		session              interview.Session
		status, history      string
		createdAt, updatedAt int64
		completedAt          sql.NullInt64
	)
	err := row.Scan(
		&session.ID, &session.Job.Title, &session.Job.Description, &session.Job.Requirements,
		&status, &session.StepIndex, &session.TotalSteps, &history, &session.CumulativeScore,
		&createdAt, &updatedAt, &completedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, interview.ErrSessionMissing
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	if err := json.Unmarshal([]byte(history), &session.ScoreHistory); err != nil {
		return nil, fmt.Errorf("unmarshal score history of %s: %w", id, err)
	}
	if session.ScoreHistory == nil {
		session.ScoreHistory = []float64{}
	}

	session.Status = interview.Status(status)
	session.CreatedAt = fromUnix(createdAt)
	session.UpdatedAt = fromUnix(updatedAt)
	if completedAt.Valid {
		at := fromUnix(completedAt.Int64)
		session.CompletedAt = &at
	}

	return &session, nil
}

func (s *SQLiteStore) ListQuestions(ctx context.Context, sessionID string) ([]*interview.Question, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, ord, text, difficulty, origin, created_at
		FROM questions WHERE session_id = ? ORDER BY ord`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	var out []*interview.Question
	for rows.Next() {
		var (
			q                  interview.Question
			difficulty, origin string
			createdAt          int64
		)
		if err := rows.Scan(&q.SessionID, &q.Order, &q.Text, &difficulty, &origin, &createdAt); err != nil {
			return nil, fmt.Errorf("scan question row: %w", err)
		}
		q.Difficulty = scoring.Difficulty(difficulty)
		q.Origin = interview.Origin(origin)
		q.CreatedAt = fromUnix(createdAt)
		out = append(out, &q)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListAnswers(ctx context.Context, sessionID string) ([]*interview.Answer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, ord, text, has_audio, has_video, content_score, audio_score,
		       video_score, composite_score, feedback, created_at
		FROM answers WHERE session_id = ? ORDER BY ord`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query answers: %w", err)
	}
	defer rows.Close()

	var out []*interview.Answer
	for rows.Next() {
		var (
			a                      interview.Answer
			audioScore, videoScore sql.NullFloat64
			createdAt              int64
		)
		err := rows.Scan(&a.SessionID, &a.Order, &a.Text, &a.HasAudio, &a.HasVideo, &a.ContentScore,
			&audioScore, &videoScore, &a.CompositeScore, &a.Feedback, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("scan answer row: %w", err)
		}
		if audioScore.Valid {
			a.AudioScore = &audioScore.Float64
		}
		if videoScore.Valid {
			a.VideoScore = &videoScore.Float64
		}
		a.CreatedAt = fromUnix(createdAt)
		out = append(out, &a)
	}
	return out, rows.Err()
}

// CommitStep writes the answer, the advanced session and the next question in one transaction.
// The session update is conditional on the expected step index.
func (s *SQLiteStore) CommitStep(ctx context.Context, c *interview.StepCommit) error {
	history, err := json.Marshal(c.Session.ScoreHistory)
	if err != nil {
		return fmt.Errorf("marshal score history: %w", err)
	}

	return s.withRetry(ctx, "commit step", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		defer tx.Rollback()

		result, err := tx.ExecContext(ctx, `
			UPDATE sessions
			SET status = ?, step_index = ?, score_history = ?, cumulative_score = ?,
			    updated_at = ?, completed_at = ?
			WHERE id = ? AND step_index = ? AND status = ?`,
			string(c.Session.Status), c.Session.StepIndex, string(history), c.Session.CumulativeScore,
			toUnix(c.Session.UpdatedAt), nullableTime(c.Session.CompletedAt),
			c.Session.ID, c.ExpectedStep, string(interview.StatusInProgress),
		)
		if err != nil {
			return fmt.Errorf("update session: %w", err)
		}
		if err := s.checkAffected(ctx, tx, result, c.Session.ID); err != nil {
			return err
		}

		a := c.Answer
		_, err = tx.ExecContext(ctx, `
			INSERT INTO answers (session_id, ord, text, has_audio, has_video, content_score,
				audio_score, video_score, composite_score, feedback, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.SessionID, a.Order, a.Text, a.HasAudio, a.HasVideo, a.ContentScore,
			nullableFloat(a.AudioScore), nullableFloat(a.VideoScore), a.CompositeScore,
			a.Feedback, toUnix(a.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("insert answer: %w", err)
		}

		if c.Next != nil {
			if err := insertQuestion(ctx, tx, c.Next); err != nil {
				return err
			}
		}

		return tx.Commit()
	})
}

func (s *SQLiteStore) MarkAbandoned(ctx context.Context, id string, expectedStep int, at time.Time) error {
	return s.withRetry(ctx, "mark abandoned", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		defer tx.Rollback()

		result, err := tx.ExecContext(ctx, `
			UPDATE sessions SET status = ?, updated_at = ?
			WHERE id = ? AND step_index = ? AND status = ?`,
			string(interview.StatusAbandoned), toUnix(at), id, expectedStep, string(interview.StatusInProgress),
		)
		if err != nil {
			return fmt.Errorf("update session status: %w", err)
		}
		if err := s.checkAffected(ctx, tx, result, id); err != nil {
			return err
		}

		return tx.Commit()
	})
}

func (s *SQLiteStore) ListIdle(ctx context.Context, before time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM sessions WHERE status = ? AND updated_at < ? ORDER BY id`,
		string(interview.StatusInProgress), toUnix(before))
	if err != nil {
		return nil, fmt.Errorf("query idle sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan idle session: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// checkAffected turns a conditional update that matched nothing into ErrSessionMissing or
// ErrStepConflict.
func (s *SQLiteStore) checkAffected(ctx context.Context, tx *sql.Tx, result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return interview.ErrSessionMissing
	}
	if err != nil {
		return fmt.Errorf("check session existence: %w", err)
	}
	return interview.ErrStepConflict
}

// withRetry retries fn with exponential backoff while SQLite reports lock contention.
func (s *SQLiteStore) withRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 0; attempt < busyRetries; attempt++ {
		if err = fn(); err == nil || !isBusy(err) {
			return err
		}

		delay := utils.Backoff(busyBaseDelay, attempt)
		s.logger.Debug("database is busy, retrying",
			zap.String("operation", op),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
		)
		if waitErr := utils.WaitFor(ctx, delay); waitErr != nil {
			return err
		}
	}
	return fmt.Errorf("%s after %d attempts: %w", op, busyRetries, err)
}

func insertQuestion(ctx context.Context, tx *sql.Tx, q *interview.Question) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO questions (session_id, ord, text, difficulty, origin, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		q.SessionID, q.Order, q.Text, string(q.Difficulty), string(q.Origin), toUnix(q.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert question %d: %w", q.Order, err)
	}
	return nil
}

func toUnix(t time.Time) int64 {
	return t.UnixNano()
}

func fromUnix(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return toUnix(*t)
}

func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
