package contexts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileExt is the extension of context record files.
const FileExt = ".json"

// FileBackend stores each context as <dir>/<id>.json.
type FileBackend struct {
	dir string
}

// NewFileBackend creates the directory if needed.
func NewFileBackend(dir string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating contexts directory: %w", err)
	}
	return &FileBackend{dir: dir}, nil
}

// Dir returns the directory holding the records.
func (fb *FileBackend) Dir() string { return fb.dir }

// Path returns the record file for id.
func (fb *FileBackend) Path(id string) string {
	return filepath.Join(fb.dir, id+FileExt)
}

// Load reads the record for id.
func (fb *FileBackend) Load(_ context.Context, id string) (*PlanningContext, error) {
	if !ValidID(id) {
		return nil, ErrNotFound
	}
	data, err := os.ReadFile(fb.Path(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading context %s: %w", id, err)
	}
	var c PlanningContext
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing context %s: %w", id, err)
	}
	c.normalize()
	return &c, nil
}

// Save writes the record through a temp file and rename so readers never
// see a half-written file.
func (fb *FileBackend) Save(_ context.Context, c *PlanningContext) error {
	if !ValidID(c.ID) {
		return fmt.Errorf("invalid context id %q", c.ID)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling context: %w", err)
	}
	if err := os.MkdirAll(fb.dir, 0o755); err != nil {
		return fmt.Errorf("creating contexts directory: %w", err)
	}

	tmp, err := os.CreateTemp(fb.dir, "."+c.ID+"-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing context %s: %w", c.ID, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing context %s: %w", c.ID, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod context %s: %w", c.ID, err)
	}
	if err := os.Rename(tmpName, fb.Path(c.ID)); err != nil {
		return fmt.Errorf("replacing context %s: %w", c.ID, err)
	}
	return nil
}

// Exists reports whether a record for id is on disk.
func (fb *FileBackend) Exists(_ context.Context, id string) (bool, error) {
	if !ValidID(id) {
		return false, nil
	}
	_, err := os.Stat(fb.Path(id))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// List loads every readable record. Unparseable files are skipped.
func (fb *FileBackend) List(ctx context.Context) ([]PlanningContext, error) {
	entries, err := os.ReadDir(fb.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading contexts directory: %w", err)
	}
	var out []PlanningContext
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, FileExt) {
			continue
		}
		c, err := fb.Load(ctx, strings.TrimSuffix(name, FileExt))
		if err != nil {
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

// Close is a no-op.
func (fb *FileBackend) Close() error { return nil }

// idFromPath returns the context id for a record path inside dir, or "".
func idFromPath(path string) string {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, FileExt) {
		return ""
	}
	return strings.TrimSuffix(name, FileExt)
}
