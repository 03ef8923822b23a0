package generator

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// fakeCLI writes an executable shell script standing in for the generator.
func fakeCLI(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported on windows")
	}
	path := filepath.Join(t.TempDir(), "fake-gemini")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("writing fake cli: %v", err)
	}
	return path
}

func newTestInvoker(cliPath string) *Invoker {
	return New(Config{
		CLIPath:        cliPath,
		Model:          "test-model",
		Timeout:        5 * time.Second,
		MaxOutputBytes: 1 << 20,
		NoisePatterns:  []string{"DEP0040", "punycode"},
	}, nil, nil)
}

// --- Invoke ---

func TestInvoke_ReturnsTrimmedStdout(t *testing.T) {
	inv := newTestInvoker(fakeCLI(t, `printf '  {"overview":"x"}  \n'`))

	out, err := inv.Invoke(context.Background(), "plan", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != `{"overview":"x"}` {
		t.Errorf("out = %q", out)
	}
}

func TestInvoke_UnwrapsFencedBlock(t *testing.T) {
	inv := newTestInvoker(fakeCLI(t, "printf 'Here you go:\\n```json\\n{\"a\":1}\\n```\\nbye\\n'"))

	out, err := inv.Invoke(context.Background(), "plan", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != `{"a":1}` {
		t.Errorf("out = %q, want fenced interior", out)
	}
}

func TestInvoke_PassesPromptVerbatim(t *testing.T) {
	inv := newTestInvoker(fakeCLI(t, `for a in "$@"; do printf '<%s>\n' "$a"; done`))
	prompt := `say "hi" and $(rm -rf /) 'quoted'`

	out, err := inv.Invoke(context.Background(), prompt, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "<--model>\n<test-model>\n<--prompt>\n<" + prompt + ">"
	if out != want {
		t.Errorf("argv mismatch:\ngot  %q\nwant %q", out, want)
	}
}

func TestInvoke_OmitsModelWhenEmpty(t *testing.T) {
	inv := New(Config{CLIPath: fakeCLI(t, `printf '%s|' "$@"`)}, nil, nil)

	out, err := inv.Invoke(context.Background(), "p", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "--prompt|p|" {
		t.Errorf("out = %q", out)
	}
}

func TestInvoke_CredentialViaEnvironment(t *testing.T) {
	cli := fakeCLI(t, `printf '%s|%s|%s' "$GEMINI_API_KEY" "$EXTRA" "$*"`)
	inv := New(Config{CLIPath: cli, APIKey: "s3cret"}, nil, nil)

	out, err := inv.Invoke(context.Background(), "p", map[string]string{"EXTRA": "yes"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	parts := strings.Split(out, "|")
	if parts[0] != "s3cret" {
		t.Errorf("api key env = %q", parts[0])
	}
	if parts[1] != "yes" {
		t.Errorf("override env = %q", parts[1])
	}
	if strings.Contains(parts[2], "s3cret") {
		t.Errorf("credential leaked onto argv: %q", parts[2])
	}
	if strings.Contains(inv.CommandLine("p"), "s3cret") {
		t.Error("credential leaked into CommandLine")
	}
}

func TestInvoke_NonZeroExit(t *testing.T) {
	inv := newTestInvoker(fakeCLI(t, `echo "(node:1) [DEP0040] punycode is deprecated" >&2
echo "quota exceeded" >&2
exit 3`))

	_, err := inv.Invoke(context.Background(), "p", nil)
	var ierr *InvocationError
	if !errors.As(err, &ierr) {
		t.Fatalf("expected *InvocationError, got %T: %v", err, err)
	}
	if ierr.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", ierr.ExitCode)
	}
	if ierr.Stderr != "quota exceeded" {
		t.Errorf("Stderr = %q, want noise filtered", ierr.Stderr)
	}
}

func TestInvoke_Timeout(t *testing.T) {
	inv := New(Config{CLIPath: fakeCLI(t, "exec sleep 5"), Timeout: 100 * time.Millisecond}, nil, nil)

	start := time.Now()
	_, err := inv.Invoke(context.Background(), "p", nil)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	var ierr *InvocationError
	if !errors.As(err, &ierr) {
		t.Fatalf("timeout should arrive inside *InvocationError, got %T", err)
	}
	if time.Since(start) > 4*time.Second {
		t.Errorf("Invoke took %s, timeout not enforced", time.Since(start))
	}
}

func TestInvoke_OutputCap(t *testing.T) {
	cli := fakeCLI(t, `i=0; while [ $i -lt 200 ]; do printf '0123456789'; i=$((i+1)); done`)
	inv := New(Config{CLIPath: cli, MaxOutputBytes: 100}, nil, nil)

	_, err := inv.Invoke(context.Background(), "p", nil)
	if !errors.Is(err, ErrOutputTooLarge) {
		t.Fatalf("expected ErrOutputTooLarge, got %v", err)
	}
}

func TestInvoke_SpawnFailure(t *testing.T) {
	inv := newTestInvoker(filepath.Join(t.TempDir(), "does-not-exist"))

	_, err := inv.Invoke(context.Background(), "p", nil)
	var ierr *InvocationError
	if !errors.As(err, &ierr) {
		t.Fatalf("expected *InvocationError, got %T: %v", err, err)
	}
	if ierr.Cause == nil {
		t.Error("Cause should carry the spawn error")
	}
}

func TestInvoke_UsesExecCommand(t *testing.T) {
	orig := execCommand
	defer func() { execCommand = orig }()

	var gotName string
	var gotArgs []string
	execCommand = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		gotName, gotArgs = name, args
		return orig(ctx, "echo", "stubbed")
	}

	inv := newTestInvoker("gemini-custom")
	out, err := inv.Invoke(context.Background(), "hello", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "stubbed" {
		t.Errorf("out = %q", out)
	}
	if gotName != "gemini-custom" {
		t.Errorf("name = %q", gotName)
	}
	if len(gotArgs) != 4 || gotArgs[3] != "hello" {
		t.Errorf("args = %v", gotArgs)
	}
}

// --- TestConnection ---

func TestTestConnection(t *testing.T) {
	ok := newTestInvoker(fakeCLI(t, `echo '{"message":"connection test successful"}'`))
	if !ok.TestConnection(context.Background()) {
		t.Error("expected true when marker present")
	}

	wrong := newTestInvoker(fakeCLI(t, `echo '{"message":"hello"}'`))
	if wrong.TestConnection(context.Background()) {
		t.Error("expected false when marker absent")
	}

	broken := newTestInvoker(fakeCLI(t, "exit 1"))
	if broken.TestConnection(context.Background()) {
		t.Error("expected false on invocation error")
	}
}

// --- helpers ---

func TestUnwrapFenced(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"bare", `  {"a":1} `, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"fenced with prose", "text\n```json {\"a\":1} ``` more", `{"a":1}`},
		{"unlabeled fence untouched", "```\n{\"a\":1}\n```", "```\n{\"a\":1}\n```"},
		{"not json", "not json at all", "not json at all"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UnwrapFenced(tt.in); got != tt.want {
				t.Errorf("UnwrapFenced() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFilterNoise(t *testing.T) {
	in := "(node:42) [DEP0040] DeprecationWarning: The `punycode` module is deprecated\nreal problem\n"
	if got := FilterNoise(in, []string{"DEP0040", "punycode"}); got != "real problem" {
		t.Errorf("FilterNoise() = %q", got)
	}
	if got := FilterNoise("  \n", nil); got != "" {
		t.Errorf("blank stderr should filter to empty, got %q", got)
	}
}

func TestCommandLine_QuotesPrompt(t *testing.T) {
	inv := newTestInvoker("gemini")
	got := inv.CommandLine(`a "b"`)
	want := `gemini --model "test-model" --prompt "a \"b\""`
	if got != want {
		t.Errorf("CommandLine() = %s, want %s", got, want)
	}
}
