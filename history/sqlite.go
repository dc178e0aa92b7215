package history

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS courses (
    title TEXT PRIMARY KEY,
    type TEXT NOT NULL DEFAULT '',
    creation_date TEXT NOT NULL DEFAULT '',
    days_since_creation TEXT NOT NULL DEFAULT '',
    training_materials TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS snapshots (
    title TEXT NOT NULL REFERENCES courses(title) ON DELETE CASCADE,
    date TEXT NOT NULL,
    enrollments INTEGER,
    completed INTEGER,
    PRIMARY KEY(title, date)
);

CREATE INDEX IF NOT EXISTS idx_snapshots_date ON snapshots(date);
`

// Snapshot is one (course, date) row of the SQLite mirror. A counter is nil
// when only the other mapping had that date.
type Snapshot struct {
	Title       string
	Date        string
	Enrollments *int
	Completed   *int
}

// SQLiteMirror keeps a queryable copy of the dataset in SQLite.
type SQLiteMirror struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the mirror database at path.
func OpenSQLite(path string) (*SQLiteMirror, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open sqlite %s: %w", path, err)
	}
	// One connection: SQLite has a single writer, and ":memory:" is per-connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: apply sqlite schema: %w", err)
	}
	return &SQLiteMirror{db: db}, nil
}

// Close closes the underlying database.
func (m *SQLiteMirror) Close() error {
	return m.db.Close()
}

// Sync upserts every record and snapshot of ds in a single transaction.
// Rows for titles or dates absent from ds are left alone.
func (m *SQLiteMirror) Sync(ctx context.Context, ds *Dataset) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("history: begin sqlite tx: %w", err)
	}
	defer tx.Rollback()

	courseStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO courses (title, type, creation_date, days_since_creation, training_materials)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(title) DO UPDATE SET
			type = excluded.type,
			creation_date = excluded.creation_date,
			days_since_creation = excluded.days_since_creation,
			training_materials = excluded.training_materials`)
	if err != nil {
		return fmt.Errorf("history: prepare course upsert: %w", err)
	}
	defer courseStmt.Close()

	snapStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO snapshots (title, date, enrollments, completed)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(title, date) DO UPDATE SET
			enrollments = excluded.enrollments,
			completed = excluded.completed`)
	if err != nil {
		return fmt.Errorf("history: prepare snapshot upsert: %w", err)
	}
	defer snapStmt.Close()

	for _, r := range ds.records {
		if _, err := courseStmt.ExecContext(ctx, r.Title, r.Type, r.CreationDate, r.DaysSinceCreation, r.TrainingMaterials); err != nil {
			return fmt.Errorf("history: upsert course %q: %w", r.Title, err)
		}
		for _, date := range r.Dates() {
			if _, err := snapStmt.ExecContext(ctx, r.Title, date, nullable(r.Enrollments, date), nullable(r.Completed, date)); err != nil {
				return fmt.Errorf("history: upsert snapshot %q %s: %w", r.Title, date, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("history: commit sqlite tx: %w", err)
	}
	return nil
}

// History returns the snapshots of one course ordered by date.
func (m *SQLiteMirror) History(ctx context.Context, title string) ([]Snapshot, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT title, date, enrollments, completed FROM snapshots WHERE title = ? ORDER BY date`, title)
	if err != nil {
		return nil, fmt.Errorf("history: query snapshots: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var (
			s         Snapshot
			enr, comp sql.NullInt64
		)
		if err := rows.Scan(&s.Title, &s.Date, &enr, &comp); err != nil {
			return nil, fmt.Errorf("history: scan snapshot: %w", err)
		}
		s.Enrollments = intPtr(enr)
		s.Completed = intPtr(comp)
		out = append(out, s)
	}
	return out, rows.Err()
}

func nullable(m map[string]int, date string) sql.NullInt64 {
	v, ok := m[date]
	return sql.NullInt64{Int64: int64(v), Valid: ok}
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}
