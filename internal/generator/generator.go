// Package generator runs the external text-generation CLI.
//
// The CLI is treated as a black box: a prompt goes in on argv, text comes
// back on stdout. The invoker bounds wall time and captured output, passes
// the credential through the environment, and unwraps a fenced json block
// when the CLI wraps its answer in markdown.
package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/HendryAvila/gemini-planner/internal/config"
	"github.com/HendryAvila/gemini-planner/internal/logging"
	"github.com/HendryAvila/gemini-planner/internal/metrics"
)

// Canary prompt and marker used by TestConnection.
const (
	CanaryPrompt = "Say 'connection test successful' in JSON format."
	CanaryMarker = "connection test successful"
)

// waitDelay bounds how long Wait blocks on pipes after the process is killed.
const waitDelay = 2 * time.Second

// execCommand is swapped in tests.
var execCommand = func(ctx context.Context, name string, args ...string) *exec.Cmd {
	return exec.CommandContext(ctx, name, args...)
}

var fencedJSON = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")

// Config holds everything needed to run the CLI.
type Config struct {
	CLIPath        string
	Model          string
	APIKey         string
	APIKeyEnv      string
	Timeout        time.Duration
	MaxOutputBytes int
	NoisePatterns  []string
}

// ConfigFrom converts the gemini section of the process config.
func ConfigFrom(c config.GeminiConfig) Config {
	return Config{
		CLIPath:        c.CLIPath,
		Model:          c.Model,
		APIKey:         c.APIKey,
		APIKeyEnv:      c.APIKeyEnv,
		Timeout:        c.Timeout,
		MaxOutputBytes: c.MaxOutputBytes,
		NoisePatterns:  c.NoisePatterns,
	}
}

// Invoker runs the generator CLI. It is safe for concurrent use.
type Invoker struct {
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates an Invoker. Zero-valued limits fall back to the defaults.
func New(cfg Config, logger *slog.Logger, m *metrics.Metrics) *Invoker {
	d := config.Default().Gemini
	if cfg.CLIPath == "" {
		cfg.CLIPath = d.CLIPath
	}
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = d.APIKeyEnv
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = d.Timeout
	}
	if cfg.MaxOutputBytes <= 0 {
		cfg.MaxOutputBytes = d.MaxOutputBytes
	}
	return &Invoker{cfg: cfg, logger: logging.OrDefault(logger), metrics: m}
}

// Model returns the configured model identifier.
func (i *Invoker) Model() string { return i.cfg.Model }

// CLIPath returns the configured executable.
func (i *Invoker) CLIPath() string { return i.cfg.CLIPath }

// HasAPIKey reports whether a credential will be exported to the CLI.
func (i *Invoker) HasAPIKey() bool { return i.cfg.APIKey != "" }

// Args returns the argv (without the executable) for prompt. Arguments are
// passed directly to the process, never through a shell.
func (i *Invoker) Args(prompt string) []string {
	var args []string
	if i.cfg.Model != "" {
		args = append(args, "--model", i.cfg.Model)
	}
	return append(args, "--prompt", prompt)
}

// CommandLine renders the invocation as a quoted, human-readable string for
// logs. The credential is never part of it.
func (i *Invoker) CommandLine(prompt string) string {
	parts := []string{i.cfg.CLIPath}
	for _, a := range i.Args(prompt) {
		if strings.HasPrefix(a, "--") {
			parts = append(parts, a)
			continue
		}
		parts = append(parts, strconv.Quote(a))
	}
	return strings.Join(parts, " ")
}

// Invoke runs the CLI with prompt and returns its answer. envOverrides are
// added to the child environment after the credential.
func (i *Invoker) Invoke(ctx context.Context, prompt string, envOverrides map[string]string) (out string, err error) {
	start := time.Now()
	defer func() { i.metrics.ObserveGenerator(start, err) }()

	runCtx, cancel := context.WithTimeout(ctx, i.cfg.Timeout)
	defer cancel()

	cmd := execCommand(runCtx, i.cfg.CLIPath, i.Args(prompt)...)
	cmd.Env = i.environ(envOverrides)
	cmd.WaitDelay = waitDelay

	var once sync.Once
	overflow := func() { once.Do(cancel) }
	stdout := &cappedBuffer{max: i.cfg.MaxOutputBytes, onOverflow: overflow}
	stderr := &cappedBuffer{max: i.cfg.MaxOutputBytes, onOverflow: overflow}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	i.logger.Debug("invoking generator", "cmd", truncate(i.CommandLine(prompt), 200))
	runErr := cmd.Run()

	noise := FilterNoise(stderr.String(), i.cfg.NoisePatterns)
	if noise != "" {
		i.logger.Warn("generator stderr", "output", noise)
	}

	if runErr != nil || stdout.Overflowed() || stderr.Overflowed() {
		ierr := &InvocationError{Cause: runErr, ExitCode: -1, Stderr: noise}
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			ierr.ExitCode = exitErr.ExitCode()
		}
		switch {
		case stdout.Overflowed() || stderr.Overflowed():
			ierr.Cause = fmt.Errorf("%w (%d bytes)", ErrOutputTooLarge, i.cfg.MaxOutputBytes)
		case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
			ierr.Cause = fmt.Errorf("%w after %s", ErrTimeout, i.cfg.Timeout)
		case ctx.Err() != nil:
			ierr.Cause = ctx.Err()
		}
		return "", ierr
	}

	return UnwrapFenced(stdout.String()), nil
}

// TestConnection sends the canary prompt and reports whether the marker came
// back. Errors are logged, not returned.
func (i *Invoker) TestConnection(ctx context.Context) bool {
	out, err := i.Invoke(ctx, CanaryPrompt, nil)
	if err != nil {
		i.logger.Error("generator connection test failed", "err", err)
		return false
	}
	return strings.Contains(out, CanaryMarker)
}

func (i *Invoker) environ(overrides map[string]string) []string {
	env := os.Environ()
	if i.cfg.APIKey != "" {
		env = append(env, i.cfg.APIKeyEnv+"="+i.cfg.APIKey)
	}
	for k, v := range overrides {
		env = append(env, k+"="+v)
	}
	return env
}

// UnwrapFenced returns the interior of the first ```json fenced block, or
// the trimmed text when there is none. No JSON validation happens here.
func UnwrapFenced(text string) string {
	text = strings.TrimSpace(text)
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return text
}

// FilterNoise drops stderr lines containing any of patterns and trims the rest.
func FilterNoise(stderr string, patterns []string) string {
	if strings.TrimSpace(stderr) == "" {
		return ""
	}
	lines := strings.Split(stderr, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if !matchesAny(line, patterns) {
			kept = append(kept, line)
		}
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

func matchesAny(line string, patterns []string) bool {
	for _, p := range patterns {
		if p != "" && strings.Contains(line, p) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// cappedBuffer collects output up to max bytes. The first write past the cap
// marks the buffer and fires onOverflow; later bytes are discarded so the
// child never blocks on a full pipe while it is being killed.
type cappedBuffer struct {
	mu         sync.Mutex
	buf        []byte
	max        int
	overflowed bool
	onOverflow func()
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.overflowed {
		return len(p), nil
	}
	if len(b.buf)+len(p) > b.max {
		b.overflowed = true
		if b.onOverflow != nil {
			b.onOverflow()
		}
		return len(p), nil
	}
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *cappedBuffer) Overflowed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.overflowed
}

func (b *cappedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
