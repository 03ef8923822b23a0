package server

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HendryAvila/gemini-planner/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Gemini.Model = "gemini-test"
	cfg.Storage.Dir = filepath.Join(t.TempDir(), "contexts")
	return cfg
}

func TestNew_RegistersEverything(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, cleanup, err := New(ctx, testConfig(t), nil)
	require.NoError(t, err)
	require.NotNil(t, s)
	defer cleanup()

	tools := s.ListTools()
	for _, name := range []string{
		"test_gemini_connection",
		"test_context7_connection",
		"create_project_context",
		"render_plan_checklist",
		"generate_plan_with_gemini",
		"get_project_context",
		"list_project_contexts",
		"add_feedback",
		"record_execution_session",
	} {
		assert.Contains(t, tools, name)
	}
	assert.Len(t, tools, 9)
}

func TestNew_SQLiteWithWatchFallsBack(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Driver = config.DriverSQLite
	cfg.Storage.Watch = true

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, cleanup, err := New(ctx, cfg, nil)
	require.NoError(t, err)
	require.NotNil(t, s)
	cleanup()
}

func TestNew_UnreachableNATSIsNotFatal(t *testing.T) {
	cfg := testConfig(t)
	cfg.Events.NATSURL = "nats://127.0.0.1:1"

	s, cleanup, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.NotNil(t, s)
	cleanup()
}

func TestOpenStore(t *testing.T) {
	dir := t.TempDir()
	for _, driver := range []string{config.DriverFile, config.DriverSQLite} {
		store, err := OpenStore(config.StorageConfig{Driver: driver, Dir: filepath.Join(dir, driver)}, nil, nil)
		require.NoError(t, err, driver)
		c, err := store.Create(context.Background(), "Demo", "r", "")
		require.NoError(t, err, driver)
		assert.Regexp(t, `^demo-\d+$`, c.ID)
		require.NoError(t, store.Close())
	}

	_, err := OpenStore(config.StorageConfig{Driver: "postgres", Dir: dir}, nil, nil)
	assert.Error(t, err)
}
