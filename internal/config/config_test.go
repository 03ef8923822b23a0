package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points config lookups at an empty directory and clears every
// variable that could leak in from the developer's shell.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	for _, name := range []string{
		"GEMINI_MODEL", "GEMINI_API_KEY", "GEMINI_CLI_PATH", "CONTEXT7_URL",
		"PLANNER_GEMINI_MODEL", "PLANNER_GEMINI_TIMEOUT", "PLANNER_STORAGE_DRIVER",
		"PLANNER_DOCS_URL",
	} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	v, err := NewViper("")
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "", cfg.Gemini.Model)
	assert.Equal(t, "gemini", cfg.Gemini.CLIPath)
	assert.Equal(t, "GEMINI_API_KEY", cfg.Gemini.APIKeyEnv)
	assert.Equal(t, 60*time.Second, cfg.Gemini.Timeout)
	assert.Equal(t, 10*1024*1024, cfg.Gemini.MaxOutputBytes)
	assert.Contains(t, cfg.Gemini.NoisePatterns, "DEP0040")
	assert.Equal(t, "https://mcp.context7.com/mcp", cfg.Docs.URL)
	assert.Equal(t, "https://registry.npmjs.org", cfg.Registry.URL)
	assert.Equal(t, DriverFile, cfg.Storage.Driver)
	assert.Equal(t, "./contexts", cfg.Storage.Dir)
	assert.Equal(t, "planner.context", cfg.Events.SubjectPrefix)
	assert.Equal(t, "HendryAvila/gemini-planner", cfg.Updater.Repo)
}

func TestLoad_LegacyEnv(t *testing.T) {
	isolate(t)
	t.Setenv("GEMINI_MODEL", "gemini-2.5-pro")
	t.Setenv("GEMINI_CLI_PATH", "/opt/bin/gemini")
	t.Setenv("CONTEXT7_URL", "http://localhost:8080/mcp")

	v, err := NewViper("")
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "gemini-2.5-pro", cfg.Gemini.Model)
	assert.Equal(t, "/opt/bin/gemini", cfg.Gemini.CLIPath)
	assert.Equal(t, "http://localhost:8080/mcp", cfg.Docs.URL)
}

func TestLoad_PrefixedEnvWinsOverLegacy(t *testing.T) {
	isolate(t)
	t.Setenv("GEMINI_MODEL", "legacy")
	t.Setenv("PLANNER_GEMINI_MODEL", "prefixed")
	t.Setenv("PLANNER_GEMINI_TIMEOUT", "5s")

	v, err := NewViper("")
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "prefixed", cfg.Gemini.Model)
	assert.Equal(t, 5*time.Second, cfg.Gemini.Timeout)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "planner.yaml")
	content := `gemini:
  model: from-file
  timeout: 90s
storage:
  driver: sqlite
  dir: /var/lib/planner
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	v, err := NewViper(path)
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.Gemini.Model)
	assert.Equal(t, 90*time.Second, cfg.Gemini.Timeout)
	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, "/var/lib/planner", cfg.Storage.Dir)
}

func TestNewViper_MissingExplicitFile(t *testing.T) {
	dir := isolate(t)

	_, err := NewViper(filepath.Join(dir, "nope.yaml"))
	require.Error(t, err)
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.Gemini.CLIPath = ""
	cfg.Gemini.Timeout = 0
	cfg.Storage.Driver = "postgres"
	cfg.Logging.Format = "xml"

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	for _, want := range []string{"gemini.cli_path", "gemini.timeout", "storage.driver", "logging.format"} {
		assert.True(t, strings.Contains(msg, want), "error should mention %s: %s", want, msg)
	}
}

func TestValidate_DefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v, want nil", err)
	}
}

func TestRequireModel(t *testing.T) {
	cfg := Default()
	if err := cfg.RequireModel(); err == nil {
		t.Fatal("expected error for empty model")
	}
	cfg.Gemini.Model = "  "
	if err := cfg.RequireModel(); err == nil {
		t.Fatal("expected error for blank model")
	}
	cfg.Gemini.Model = "gemini-2.5-flash"
	if err := cfg.RequireModel(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDir_UsesXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	if got := Dir(); got != filepath.Join("/tmp/xdg", "gemini-planner") {
		t.Errorf("Dir() = %s", got)
	}
}
