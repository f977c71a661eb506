// Package history persists terminal submission results in MySQL.
package history

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"arbiter/internal/judge"
	appErr "arbiter/pkg/errors"
)

// Config holds the MySQL connection settings.
type Config struct {
	DSN            string `yaml:"dsn"`
	MaxOpenConns   int    `yaml:"max_open_conns"`
	MaxIdleConns   int    `yaml:"max_idle_conns"`
	ConnMaxLifeSec int    `yaml:"conn_max_life_sec"`
}

// Store writes and reads submission history. WriteResult is atomic: the
// submission row and its test rows commit together or not at all.
type Store struct {
	db *sql.DB
}

func NewStore(cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, appErr.ValidationError("dsn", "required")
	}
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "open mysql failed")
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifeSec > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifeSec) * time.Second)
	}
	return &Store{db: db}, nil
}

// NewStoreWithDB wraps an existing handle, used by tests.
func NewStoreWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return appErr.Wrapf(err, appErr.DatabaseError, "ping mysql failed")
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema applies the history DDL. The statements are idempotent so
// this is safe on every startup.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return appErr.Wrapf(err, appErr.DatabaseError, "apply schema failed")
		}
	}
	return nil
}

// schemaStatements splits the DDL into single statements because the MySQL
// driver rejects multi-statement Exec by default.
func schemaStatements() []string {
	var out []string
	for _, stmt := range strings.Split(Schema(), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

const insertSubmissionSQL = `
INSERT INTO submissions
  (id, submitter, problem_id, language, state, score, success,
   compile_ok, compile_exit_code, compile_stderr, elapsed_ms, error, submitted_at, judged_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const insertTestSQL = `
INSERT INTO submission_tests
  (submission_id, test_id, seq, kind, exit_code, wall_time_ms, cpu_time_ms,
   memory_kb, stdout, stderr, hidden, weight)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// WriteResult stores one terminal result. Implements judge.HistoryWriter.
func (s *Store) WriteResult(ctx context.Context, res judge.SubmissionResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return appErr.Wrapf(err, appErr.HistoryWriteFailed, "begin tx failed")
	}
	defer func() { _ = tx.Rollback() }()

	sub := res.Submission
	_, err = tx.ExecContext(ctx, insertSubmissionSQL,
		sub.ID, sub.Submitter, sub.ProblemID, sub.Language,
		string(res.State), res.Score, res.Success,
		res.Compile.OK, res.Compile.ExitCode, res.Compile.Stderr,
		res.ElapsedMs, res.Error, sub.SubmittedAt, time.Now())
	if err != nil {
		return appErr.Wrapf(err, appErr.HistoryWriteFailed, "insert submission failed")
	}

	for seq, t := range res.Tests {
		_, err = tx.ExecContext(ctx, insertTestSQL,
			sub.ID, t.TestID, seq, string(t.Kind), t.ExitCode,
			t.WallTimeMs, t.CPUTimeMs, t.MemoryKB,
			t.Stdout, t.Stderr, t.Hidden, t.Weight)
		if err != nil {
			return appErr.Wrapf(err, appErr.HistoryWriteFailed, "insert test %s failed", t.TestID)
		}
	}

	if err := tx.Commit(); err != nil {
		return appErr.Wrapf(err, appErr.HistoryWriteFailed, "commit failed")
	}
	return nil
}

// CountAttempts implements judge.AttemptCounter. Cancelled submissions do
// not consume an attempt.
func (s *Store) CountAttempts(ctx context.Context, submitter, problemID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM submissions WHERE submitter = ? AND problem_id = ? AND state != ?`,
		submitter, problemID, string(judge.StateCancelled)).Scan(&count)
	if err != nil {
		return 0, appErr.Wrapf(err, appErr.DatabaseError, "count attempts failed")
	}
	return count, nil
}

// Record is one stored submission without its test rows.
type Record struct {
	ID          string    `json:"id"`
	Submitter   string    `json:"submitter"`
	ProblemID   string    `json:"problem_id"`
	Language    string    `json:"language"`
	State       string    `json:"state"`
	Score       float64   `json:"score"`
	Success     bool      `json:"success"`
	ElapsedMs   int64     `json:"elapsed_ms"`
	SubmittedAt time.Time `json:"submitted_at"`
}

const selectRecordSQL = `
SELECT id, submitter, problem_id, language, state, score, success, elapsed_ms, submitted_at
FROM submissions`

// ListBySubmitter returns a contestant's submissions, newest first.
func (s *Store) ListBySubmitter(ctx context.Context, submitter string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		selectRecordSQL+` WHERE submitter = ? ORDER BY submitted_at DESC LIMIT ?`,
		submitter, limit)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "list submissions failed")
	}
	defer rows.Close()
	return scanRecords(rows)
}

// GetResult loads one stored submission with its tests.
func (s *Store) GetResult(ctx context.Context, submissionID string) (Record, []judge.TestOutcome, error) {
	var rec Record
	err := s.db.QueryRowContext(ctx,
		selectRecordSQL+` WHERE id = ?`, submissionID).
		Scan(&rec.ID, &rec.Submitter, &rec.ProblemID, &rec.Language,
			&rec.State, &rec.Score, &rec.Success, &rec.ElapsedMs, &rec.SubmittedAt)
	if err == sql.ErrNoRows {
		return Record{}, nil, appErr.Newf(appErr.SubmissionNotFound, "submission %s not found", submissionID)
	}
	if err != nil {
		return Record{}, nil, appErr.Wrapf(err, appErr.DatabaseError, "load submission failed")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT test_id, kind, exit_code, wall_time_ms, cpu_time_ms, memory_kb, stdout, stderr, hidden, weight
		 FROM submission_tests WHERE submission_id = ? ORDER BY seq`, submissionID)
	if err != nil {
		return Record{}, nil, appErr.Wrapf(err, appErr.DatabaseError, "load tests failed")
	}
	defer rows.Close()

	var tests []judge.TestOutcome
	for rows.Next() {
		var t judge.TestOutcome
		var kind string
		if err := rows.Scan(&t.TestID, &kind, &t.ExitCode, &t.WallTimeMs, &t.CPUTimeMs,
			&t.MemoryKB, &t.Stdout, &t.Stderr, &t.Hidden, &t.Weight); err != nil {
			return Record{}, nil, appErr.Wrapf(err, appErr.DatabaseError, "scan test row failed")
		}
		t.Kind = judge.OutcomeKind(kind)
		tests = append(tests, t)
	}
	if err := rows.Err(); err != nil {
		return Record{}, nil, appErr.Wrapf(err, appErr.DatabaseError, "iterate tests failed")
	}
	return rec, tests, nil
}

// Leaderboard aggregates the best score per contestant per problem.
type LeaderboardRow struct {
	Submitter string  `json:"submitter"`
	ProblemID string  `json:"problem_id"`
	BestScore float64 `json:"best_score"`
	Solved    bool    `json:"solved"`
}

func (s *Store) Leaderboard(ctx context.Context) ([]LeaderboardRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT submitter, problem_id, MAX(score), MAX(success)
		FROM submissions
		WHERE state = ?
		GROUP BY submitter, problem_id
		ORDER BY submitter, problem_id`, string(judge.StateCompleted))
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "leaderboard query failed")
	}
	defer rows.Close()

	var out []LeaderboardRow
	for rows.Next() {
		var row LeaderboardRow
		if err := rows.Scan(&row.Submitter, &row.ProblemID, &row.BestScore, &row.Solved); err != nil {
			return nil, appErr.Wrapf(err, appErr.DatabaseError, "scan leaderboard row failed")
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "iterate leaderboard failed")
	}
	return out, nil
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.Submitter, &rec.ProblemID, &rec.Language,
			&rec.State, &rec.Score, &rec.Success, &rec.ElapsedMs, &rec.SubmittedAt); err != nil {
			return nil, appErr.Wrapf(err, appErr.DatabaseError, "scan submission row failed")
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "iterate submissions failed")
	}
	return out, nil
}

// Schema returns the DDL for the history tables.
func Schema() string {
	return `
CREATE TABLE IF NOT EXISTS submissions (
  id VARCHAR(64) PRIMARY KEY,
  submitter VARCHAR(128) NOT NULL,
  problem_id VARCHAR(128) NOT NULL,
  language VARCHAR(64) NOT NULL,
  state VARCHAR(32) NOT NULL,
  score DOUBLE NOT NULL DEFAULT 0,
  success BOOLEAN NOT NULL DEFAULT FALSE,
  compile_ok BOOLEAN NOT NULL DEFAULT FALSE,
  compile_exit_code INT NOT NULL DEFAULT 0,
  compile_stderr TEXT,
  elapsed_ms BIGINT NOT NULL DEFAULT 0,
  error TEXT,
  submitted_at DATETIME(3) NOT NULL,
  judged_at DATETIME(3) NOT NULL,
  INDEX idx_submitter_problem (submitter, problem_id)
);

CREATE TABLE IF NOT EXISTS submission_tests (
  submission_id VARCHAR(64) NOT NULL,
  test_id VARCHAR(128) NOT NULL,
  seq INT NOT NULL,
  kind VARCHAR(32) NOT NULL,
  exit_code INT NOT NULL DEFAULT 0,
  wall_time_ms BIGINT NOT NULL DEFAULT 0,
  cpu_time_ms BIGINT NOT NULL DEFAULT 0,
  memory_kb BIGINT NOT NULL DEFAULT 0,
  stdout MEDIUMTEXT,
  stderr MEDIUMTEXT,
  hidden BOOLEAN NOT NULL DEFAULT FALSE,
  weight DOUBLE NOT NULL DEFAULT 1,
  PRIMARY KEY (submission_id, test_id),
  INDEX idx_submission (submission_id)
);`
}
