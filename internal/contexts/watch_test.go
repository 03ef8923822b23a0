package contexts

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatch_PicksUpExternalEdits(t *testing.T) {
	s, dir := newFileStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := s.Create(ctx, "Demo", "r", "")
	require.NoError(t, err)
	require.NoError(t, s.Watch(ctx))

	// Another process rewrites the record.
	edited := *c
	edited.Requirements = "edited elsewhere"
	data, err := json.MarshalIndent(edited, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, c.ID+".json"), data, 0o644))

	assert.Eventually(t, func() bool {
		got, err := s.Get(ctx, c.ID)
		return err == nil && got.Requirements == "edited elsewhere"
	}, 2*time.Second, 20*time.Millisecond)
}

func TestWatch_UnsupportedBackend(t *testing.T) {
	b, err := NewSQLiteBackend(t.TempDir())
	require.NoError(t, err)
	s := NewStore(b, nil, nil)
	defer s.Close()

	assert.ErrorIs(t, s.Watch(context.Background()), ErrWatchUnsupported)
}
