package shell

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunSuccess(t *testing.T) {
	s := NewSession(t.TempDir())

	var sink strings.Builder
	out, ok := s.Run(context.Background(), "echo hello world", &sink)

	if !ok {
		t.Fatalf("expected success, got failure: %s", out)
	}
	if strings.TrimSpace(out) != "hello world" {
		t.Errorf("unexpected output: %q", out)
	}
	if !strings.Contains(sink.String(), "hello world") {
		t.Errorf("expected streamed output in sink, got: %q", sink.String())
	}
}

func TestRunFailure(t *testing.T) {
	s := NewSession(t.TempDir())

	var sink strings.Builder
	_, ok := s.Run(context.Background(), "false", &sink)

	if ok {
		t.Fatal("expected failure for 'false'")
	}
	if !strings.Contains(sink.String(), "Command exited with code") {
		t.Errorf("expected exit diagnostic in sink, got: %q", sink.String())
	}
}

func TestRunMergesStderr(t *testing.T) {
	s := NewSession(t.TempDir())

	out, ok := s.Run(context.Background(), "echo visible 1>&2", nil)
	if !ok {
		t.Fatalf("expected success, got failure: %s", out)
	}
	if !strings.Contains(out, "visible") {
		t.Errorf("stderr should be merged into output, got: %q", out)
	}
}

func TestRunUsesSessionDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "probe.txt"), []byte("content"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewSession(dir)
	out, ok := s.Run(context.Background(), "cat probe.txt", nil)
	if !ok || !strings.Contains(out, "content") {
		t.Errorf("expected command to run in session dir, got ok=%v out=%q", ok, out)
	}
}

func TestCdUpdatesSessionDir(t *testing.T) {
	base := t.TempDir()
	sub := filepath.Join(base, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	s := NewSession(base)
	out, ok := s.Run(context.Background(), "cd sub", nil)
	if !ok {
		t.Fatalf("cd failed: %s", out)
	}
	if out != "" {
		t.Errorf("cd should return empty output, got: %q", out)
	}
	if s.Dir() != sub {
		t.Errorf("expected session dir %q, got %q", sub, s.Dir())
	}

	// A subsequent command observes the new directory.
	pwdOut, ok := s.Run(context.Background(), "pwd", nil)
	if !ok || !strings.Contains(pwdOut, "sub") {
		t.Errorf("expected pwd in new dir, got ok=%v out=%q", ok, pwdOut)
	}
}

func TestCdNonexistentLeavesDirUnchanged(t *testing.T) {
	base := t.TempDir()
	s := NewSession(base)

	out, ok := s.Run(context.Background(), "cd does-not-exist", nil)
	if ok {
		t.Fatal("expected cd to a missing directory to fail")
	}
	if !strings.Contains(out, "cd: no such file or directory: does-not-exist") {
		t.Errorf("unexpected error message: %q", out)
	}
	if s.Dir() != base {
		t.Errorf("session dir should be unchanged, got %q", s.Dir())
	}
}

func TestCdWithoutArgumentGoesHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory available")
	}

	s := NewSession(t.TempDir())
	if _, ok := s.Run(context.Background(), "cd", nil); !ok {
		t.Fatal("cd without argument should succeed")
	}
	if s.Dir() != home {
		t.Errorf("expected home %q, got %q", home, s.Dir())
	}
}

func TestEditWritesFileWithJoinedContent(t *testing.T) {
	dir := t.TempDir()
	s := NewSession(dir)

	_, ok := s.Run(context.Background(), "edit nested/notes.txt hello brave new world", nil)
	if !ok {
		t.Fatal("edit should succeed")
	}

	data, err := os.ReadFile(filepath.Join(dir, "nested", "notes.txt"))
	if err != nil {
		t.Fatalf("expected file to exist: %v", err)
	}
	if string(data) != "hello brave new world" {
		t.Errorf("unexpected content: %q", string(data))
	}
}

func TestEditOverwrites(t *testing.T) {
	dir := t.TempDir()
	s := NewSession(dir)

	s.Run(context.Background(), "edit f.txt first", nil)
	s.Run(context.Background(), "edit f.txt second version", nil)

	data, _ := os.ReadFile(filepath.Join(dir, "f.txt"))
	if string(data) != "second version" {
		t.Errorf("expected overwrite, got: %q", string(data))
	}
}

func TestEditMalformedUsage(t *testing.T) {
	s := NewSession(t.TempDir())

	out, ok := s.Run(context.Background(), "edit onlypath", nil)
	if ok {
		t.Fatal("edit with too few arguments should fail")
	}
	if !strings.Contains(out, "usage: edit") {
		t.Errorf("expected usage message, got: %q", out)
	}
}

func TestQuotedArgumentsAreSingleTokens(t *testing.T) {
	dir := t.TempDir()
	s := NewSession(dir)

	_, ok := s.Run(context.Background(), `edit "my file.txt" some content`, nil)
	if !ok {
		t.Fatal("edit with quoted path should succeed")
	}
	if _, err := os.Stat(filepath.Join(dir, "my file.txt")); err != nil {
		t.Errorf("expected quoted filename to be one token: %v", err)
	}
}

func TestRunHandlesVeryLongLines(t *testing.T) {
	s := NewSession(t.TempDir())

	// A single 2 MiB line followed by a marker; the runner must drain it
	// fully and still observe the process exit.
	cmd := "head -c 2097152 /dev/zero | tr '\\0' 'a'; echo; echo tail-marker"
	out, ok := s.Run(context.Background(), cmd, nil)

	if !ok {
		t.Fatalf("expected success, got failure: %.200s", out)
	}
	if !strings.Contains(out, "tail-marker") {
		t.Error("expected output after the long line to be captured")
	}
	if len(out) < 2097152 {
		t.Errorf("expected the full long line in output, got %d bytes", len(out))
	}
}

func TestRunUnterminatedFinalChunk(t *testing.T) {
	s := NewSession(t.TempDir())

	var sink strings.Builder
	out, ok := s.Run(context.Background(), "printf no-newline", &sink)
	if !ok {
		t.Fatalf("expected success, got failure: %s", out)
	}
	if !strings.Contains(out, "no-newline") {
		t.Errorf("expected final unterminated chunk in output, got: %q", out)
	}
	if !strings.Contains(sink.String(), "no-newline") {
		t.Errorf("expected final chunk forwarded to sink, got: %q", sink.String())
	}
}

func TestRunAsyncMatchesBlockingSemantics(t *testing.T) {
	s := NewSession(t.TempDir())

	var sink strings.Builder
	res := <-s.RunAsync(context.Background(), "echo async", &sink)
	if !res.Success {
		t.Fatalf("expected success, got: %s", res.Output)
	}
	if strings.TrimSpace(res.Output) != "async" {
		t.Errorf("unexpected output: %q", res.Output)
	}
	if !strings.Contains(sink.String(), "async") {
		t.Errorf("expected streamed output, got: %q", sink.String())
	}

	res = <-s.RunAsync(context.Background(), "false", nil)
	if res.Success {
		t.Error("expected failure for 'false'")
	}
}

func TestRunAsyncHandlesBuiltins(t *testing.T) {
	base := t.TempDir()
	sub := filepath.Join(base, "later")
	os.Mkdir(sub, 0o755)

	s := NewSession(base)
	res := <-s.RunAsync(context.Background(), "cd later", nil)
	if !res.Success {
		t.Fatalf("async cd failed: %s", res.Output)
	}
	if s.Dir() != sub {
		t.Errorf("expected %q, got %q", sub, s.Dir())
	}
}
