package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Pure-Go SQLite driver, registered under the name "sqlite".
	_ "modernc.org/sqlite"

	"github.com/fennec-eda/hdlenv/internal/model"
)

const (
	// StateDirName is the repository-local directory that holds hdlenv's
	// bookkeeping files. It sits next to .git and should be gitignored.
	StateDirName = ".hdlenv"

	// FileName is the journal database file name inside StateDirName.
	FileName = "journal.db"
)

// timeFormat is the timestamp encoding used in the database. RFC3339Nano
// keeps full precision and sorts lexicographically within a single
// timezone, which is all the journal needs.
const timeFormat = time.RFC3339Nano

// Journal records runs in a SQLite database. One Journal maps to one
// repository; open it with Open and close it when the command finishes.
type Journal struct {
	db   *sql.DB
	path string
}

// Path returns the journal database path for a repository root without
// opening it. Used by `hdlenv status` to report where the journal lives.
func Path(repoRoot string) string {
	return filepath.Join(repoRoot, StateDirName, FileName)
}

// Open opens the journal for the given repository root, creating the
// .hdlenv directory, the database file, and the schema as needed.
func Open(repoRoot string) (*Journal, error) {
	dir := filepath.Join(repoRoot, StateDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, FileName)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database %s: %w", path, err)
	}

	j := &Journal{db: db, path: path}
	if err := j.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

// initSchema creates the journal tables if they do not exist yet.
// The schema is append-only; there are no migrations to run.
func (j *Journal) initSchema() error {
	_, err := j.db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			mode        TEXT    NOT NULL,
			workspace   TEXT    NOT NULL,
			python      TEXT    NOT NULL,
			sandbox     INTEGER NOT NULL DEFAULT 0,
			started_at  TEXT    NOT NULL,
			finished_at TEXT    NOT NULL,
			outcome     TEXT    NOT NULL
		);
		CREATE TABLE IF NOT EXISTS steps (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id      INTEGER NOT NULL REFERENCES runs(id),
			seq         INTEGER NOT NULL,
			name        TEXT    NOT NULL,
			detail      TEXT    NOT NULL,
			status      TEXT    NOT NULL,
			error       TEXT    NOT NULL DEFAULT '',
			note        TEXT    NOT NULL DEFAULT '',
			started_at  TEXT,
			finished_at TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_steps_run ON steps(run_id, seq);
	`)
	if err != nil {
		return fmt.Errorf("failed to initialize journal schema: %w", err)
	}
	return nil
}

// RecordRun inserts a run and its steps in a single transaction and
// fills in rec.ID with the assigned row id. Steps are numbered by their
// position in rec.Steps, which is their execution order.
func (j *Journal) RecordRun(rec *model.RunRecord) error {
	tx, err := j.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin journal transaction: %w", err)
	}
	// Rollback is a no-op after a successful Commit.
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec(`
		INSERT INTO runs (mode, workspace, python, sandbox, started_at, finished_at, outcome)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.Mode.String(),
		rec.Workspace,
		rec.Python,
		boolToInt(rec.Sandbox),
		encodeTime(rec.StartedAt),
		encodeTime(rec.FinishedAt),
		rec.Outcome.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	runID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read run id: %w", err)
	}

	for i, step := range rec.Steps {
		_, err := tx.Exec(`
			INSERT INTO steps (run_id, seq, name, detail, status, error, note, started_at, finished_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID,
			i,
			step.Name,
			step.Detail,
			step.Status.String(),
			step.Error,
			step.Note,
			encodeNullableTime(step.StartedAt),
			encodeNullableTime(step.FinishedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to insert step %q: %w", step.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit journal transaction: %w", err)
	}

	rec.ID = runID
	return nil
}

// LastRun returns the most recently recorded run including its steps,
// or nil when the journal holds no runs yet.
func (j *Journal) LastRun() (*model.RunRecord, error) {
	row := j.db.QueryRow(`
		SELECT id, mode, workspace, python, sandbox, started_at, finished_at, outcome
		FROM runs ORDER BY id DESC LIMIT 1`)

	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	steps, err := j.loadSteps(rec.ID)
	if err != nil {
		return nil, err
	}
	rec.Steps = steps
	return rec, nil
}

// scanRun reads one runs row. The caller owns sql.ErrNoRows handling.
func scanRun(row *sql.Row) (*model.RunRecord, error) {
	var (
		rec        model.RunRecord
		mode       string
		sandbox    int
		startedAt  string
		finishedAt string
		outcome    string
	)
	err := row.Scan(&rec.ID, &mode, &rec.Workspace, &rec.Python, &sandbox,
		&startedAt, &finishedAt, &outcome)
	if err != nil {
		return nil, err
	}

	rec.Mode, err = model.ParseRunMode(mode)
	if err != nil {
		return nil, fmt.Errorf("corrupt journal run %d: %w", rec.ID, err)
	}
	rec.Outcome, err = model.ParseRunOutcome(outcome)
	if err != nil {
		return nil, fmt.Errorf("corrupt journal run %d: %w", rec.ID, err)
	}
	rec.Sandbox = sandbox != 0

	rec.StartedAt, err = decodeTime(startedAt)
	if err != nil {
		return nil, fmt.Errorf("corrupt journal run %d: %w", rec.ID, err)
	}
	rec.FinishedAt, err = decodeTime(finishedAt)
	if err != nil {
		return nil, fmt.Errorf("corrupt journal run %d: %w", rec.ID, err)
	}

	return &rec, nil
}

// loadSteps reads the steps of a run in execution order.
func (j *Journal) loadSteps(runID int64) ([]model.StepResult, error) {
	rows, err := j.db.Query(`
		SELECT name, detail, status, error, note, started_at, finished_at
		FROM steps WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query steps for run %d: %w", runID, err)
	}
	defer func() { _ = rows.Close() }()

	var steps []model.StepResult
	for rows.Next() {
		var (
			step       model.StepResult
			status     string
			startedAt  sql.NullString
			finishedAt sql.NullString
		)
		if err := rows.Scan(&step.Name, &step.Detail, &status, &step.Error,
			&step.Note, &startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan step for run %d: %w", runID, err)
		}

		step.Status, err = model.ParseStepStatus(status)
		if err != nil {
			return nil, fmt.Errorf("corrupt journal step in run %d: %w", runID, err)
		}
		step.StartedAt, err = decodeNullableTime(startedAt)
		if err != nil {
			return nil, fmt.Errorf("corrupt journal step in run %d: %w", runID, err)
		}
		step.FinishedAt, err = decodeNullableTime(finishedAt)
		if err != nil {
			return nil, fmt.Errorf("corrupt journal step in run %d: %w", runID, err)
		}

		steps = append(steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate steps for run %d: %w", runID, err)
	}
	return steps, nil
}

// Close closes the underlying database. Safe to call on a nil Journal so
// callers can defer Close unconditionally after a failed Open.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func encodeTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func decodeTime(s string) (time.Time, error) {
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

// encodeNullableTime maps the zero time to NULL. Skipped steps never
// started, so they carry no timestamps.
func encodeNullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return encodeTime(t)
}

func decodeNullableTime(s sql.NullString) (time.Time, error) {
	if !s.Valid || s.String == "" {
		return time.Time{}, nil
	}
	return decodeTime(s.String)
}
