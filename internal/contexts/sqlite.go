package contexts

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// DBFile is the database file name inside the storage directory.
const DBFile = "contexts.db"

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// SQLiteBackend stores every context as a JSON document row.
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend opens (or creates) <dir>/contexts.db.
func NewSQLiteBackend(dir string) (*SQLiteBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("contexts: create data dir: %w", err)
	}

	db, err := openDB("sqlite", filepath.Join(dir, DBFile))
	if err != nil {
		return nil, fmt.Errorf("contexts: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("contexts: pragma %q: %w", p, err)
		}
	}

	b := &SQLiteBackend{db: db}
	if err := b.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("contexts: migration: %w", err)
	}
	return b, nil
}

func (b *SQLiteBackend) migrate() error {
	_, err := b.db.Exec(`
		CREATE TABLE IF NOT EXISTS contexts (
			id            TEXT PRIMARY KEY,
			project_name  TEXT NOT NULL,
			current_phase TEXT NOT NULL,
			data          TEXT NOT NULL,
			created_at    TEXT NOT NULL,
			updated_at    TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_contexts_updated ON contexts(updated_at);
	`)
	return err
}

// Load reads the row for id.
func (b *SQLiteBackend) Load(ctx context.Context, id string) (*PlanningContext, error) {
	var data string
	err := b.db.QueryRowContext(ctx, `SELECT data FROM contexts WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("contexts: load %s: %w", id, err)
	}
	var c PlanningContext
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return nil, fmt.Errorf("contexts: parse %s: %w", id, err)
	}
	c.normalize()
	return &c, nil
}

// Save upserts the full record.
func (b *SQLiteBackend) Save(ctx context.Context, c *PlanningContext) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("contexts: marshal %s: %w", c.ID, err)
	}
	_, err = b.db.ExecContext(ctx, `
		INSERT INTO contexts (id, project_name, current_phase, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			project_name  = excluded.project_name,
			current_phase = excluded.current_phase,
			data          = excluded.data,
			updated_at    = excluded.updated_at`,
		c.ID, c.ProjectName, string(c.CurrentPhase), string(data),
		c.CreatedAt.UTC().Format(time.RFC3339Nano), c.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("contexts: save %s: %w", c.ID, err)
	}
	return nil
}

// Exists reports whether a row for id exists.
func (b *SQLiteBackend) Exists(ctx context.Context, id string) (bool, error) {
	var n int
	if err := b.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM contexts WHERE id = ?`, id).Scan(&n); err != nil {
		return false, fmt.Errorf("contexts: exists %s: %w", id, err)
	}
	return n > 0, nil
}

// List returns every record, most recently updated first.
func (b *SQLiteBackend) List(ctx context.Context) ([]PlanningContext, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT data FROM contexts ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("contexts: list: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []PlanningContext
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("contexts: scan: %w", err)
		}
		var c PlanningContext
		if err := json.Unmarshal([]byte(data), &c); err != nil {
			continue
		}
		c.normalize()
		out = append(out, c)
	}
	return out, rows.Err()
}

// Close closes the database.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
