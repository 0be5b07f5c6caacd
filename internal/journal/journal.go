// Package journal records manual tasks in SQLite until they are folded into
// the day's log.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/abishchhetri-svg/Tasks/internal/worklog"
)

const (
	schemaVersion = 2
	stampLayout   = "2006-01-02T15:04:05.000000000Z07:00"
)

// Values of the merged column. A claimed row belongs to the caller that is
// currently writing it into the log; nobody else may merge it.
const (
	statePending = 0
	stateMerged  = 1
	stateClaimed = 2
)

// ClaimTimeout is how long a claim holds before another caller may take the
// row over, so a crashed writer does not strand its tasks.
const ClaimTimeout = 10 * time.Minute

// Entry is one manual task. Merged is set once the task is in the log file.
type Entry struct {
	ID        string         `json:"id"`
	Day       worklog.Date   `json:"day"`
	Bucket    worklog.Bucket `json:"type"`
	Content   string         `json:"content"`
	CreatedAt time.Time      `json:"createdAt"`
	Merged    bool           `json:"merged"`
}

// Task converts the entry into a merge input.
func (e Entry) Task() worklog.Task {
	return worklog.Task{ID: e.ID, Bucket: e.Bucket, Content: e.Content, At: e.CreatedAt}
}

type Journal struct {
	db       *sql.DB
	mu       sync.Mutex
	claimTTL time.Duration
}

func Open(dbPath string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	j := &Journal{db: db, claimTTL: ClaimTimeout}
	if err := j.configure(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := j.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) configure() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := j.db.Exec(p); err != nil {
			return fmt.Errorf("sqlite pragma %q: %w", p, err)
		}
	}
	return nil
}

func (j *Journal) initSchema() error {
	var version int
	if err := j.db.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version == 1 {
		if _, err := j.db.Exec(`ALTER TABLE manual_tasks ADD COLUMN claimed_at TEXT`); err != nil {
			return fmt.Errorf("migrate schema: %w", err)
		}
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS manual_tasks (
			id TEXT PRIMARY KEY,
			day TEXT NOT NULL,
			bucket TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TEXT NOT NULL,
			merged INTEGER NOT NULL DEFAULT 0,
			claimed_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_manual_tasks_day ON manual_tasks(day, merged)`,
		fmt.Sprintf(`PRAGMA user_version = %d`, schemaVersion),
	}
	for _, stmt := range stmts {
		if _, err := j.db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Record stores a pending entry, filling in ID, CreatedAt and Day when unset.
// The next Claim for its day picks it up.
func (j *Journal) Record(ctx context.Context, e Entry) (Entry, error) {
	return j.insert(ctx, e, statePending)
}

// Hold stores an entry already claimed by the caller, which is about to merge
// it itself. It must be finished with MarkMerged or handed back with Release.
func (j *Journal) Hold(ctx context.Context, e Entry) (Entry, error) {
	return j.insert(ctx, e, stateClaimed)
}

func (j *Journal) insert(ctx context.Context, e Entry, state int) (Entry, error) {
	e.Content = strings.TrimSpace(e.Content)
	if e.Content == "" {
		return Entry{}, fmt.Errorf("record manual task: empty content")
	}
	if _, ok := e.Bucket.SectionKey(); !ok {
		return Entry{}, fmt.Errorf("record manual task: unknown type %q", e.Bucket)
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	if e.Day == "" {
		e.Day = worklog.DateOf(e.CreatedAt)
	}
	e.Merged = false

	var claimedAt any
	if state == stateClaimed {
		claimedAt = stamp(time.Now())
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO manual_tasks (id, day, bucket, content, created_at, merged, claimed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.ID, string(e.Day), string(e.Bucket), e.Content, stamp(e.CreatedAt), state, claimedAt)
	if err != nil {
		return Entry{}, fmt.Errorf("record manual task: %w", err)
	}
	return e, nil
}

// Pending returns entries for day that are not yet in the log, oldest first,
// including ones another caller is merging right now.
func (j *Journal) Pending(ctx context.Context, day worklog.Date) ([]Entry, error) {
	return j.query(ctx, `WHERE day = ? AND merged <> 1`, string(day))
}

// List returns every entry for day, oldest first.
func (j *Journal) List(ctx context.Context, day worklog.Date) ([]Entry, error) {
	return j.query(ctx, `WHERE day = ?`, string(day))
}

// Claim atomically takes every unclaimed pending entry for day, plus claims
// older than the claim timeout. Concurrent callers, in this process or
// another, never receive the same entry.
func (j *Journal) Claim(ctx context.Context, day worklog.Date) ([]Entry, error) {
	now := time.Now()

	j.mu.Lock()
	defer j.mu.Unlock()
	rows, err := j.db.QueryContext(ctx, `
		UPDATE manual_tasks SET merged = ?, claimed_at = ?
		WHERE day = ? AND (merged = ? OR (merged = ? AND claimed_at < ?))
		RETURNING id, day, bucket, content, created_at, merged
	`, stateClaimed, stamp(now), string(day), statePending, stateClaimed, stamp(now.Add(-j.claimTTL)))
	if err != nil {
		return nil, fmt.Errorf("claim manual tasks: %w", err)
	}
	out, err := scanEntries(rows)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].CreatedAt.Before(out[b].CreatedAt) })
	return out, nil
}

// MarkMerged records that the entries are in the log file.
func (j *Journal) MarkMerged(ctx context.Context, ids ...string) error {
	return j.setState(ctx, "mark merged", `UPDATE manual_tasks SET merged = 1, claimed_at = NULL WHERE id IN `, ids)
}

// Release hands claimed entries back to the queue after a failed merge.
func (j *Journal) Release(ctx context.Context, ids ...string) error {
	return j.setState(ctx, "release", `UPDATE manual_tasks SET merged = 0, claimed_at = NULL WHERE merged = 2 AND id IN `, ids)
}

func (j *Journal) setState(ctx context.Context, op, stmt string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if _, err := j.db.ExecContext(ctx, stmt+`(`+placeholders+`)`, args...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Prune deletes merged entries for days before cutoff.
func (j *Journal) Prune(ctx context.Context, cutoff worklog.Date) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	res, err := j.db.ExecContext(ctx, `DELETE FROM manual_tasks WHERE merged = 1 AND day < ?`, string(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune manual tasks: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune manual tasks: %w", err)
	}
	return n, nil
}

func (j *Journal) query(ctx context.Context, where string, args ...any) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, day, bucket, content, created_at, merged
		FROM manual_tasks `+where+`
		ORDER BY created_at ASC, rowid ASC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("query manual tasks: %w", err)
	}
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e                   Entry
			day, bucket, stampS string
			merged              int
		)
		if err := rows.Scan(&e.ID, &day, &bucket, &e.Content, &stampS, &merged); err != nil {
			return nil, fmt.Errorf("scan manual task: %w", err)
		}
		e.Day = worklog.Date(day)
		e.Bucket = worklog.Bucket(bucket)
		e.Merged = merged == stateMerged
		if t, err := time.Parse(stampLayout, stampS); err == nil {
			e.CreatedAt = t.Local()
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate manual tasks: %w", err)
	}
	return out, nil
}

func stamp(t time.Time) string {
	return t.UTC().Format(stampLayout)
}
