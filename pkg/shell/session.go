// Package shell executes commands for the assistant. A Session owns the
// working directory carried across sequential executions; cd is the only
// operation that mutates it.
package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/google/shlex"

	"github.com/shellmind/shellmind/pkg/logger"
)

type Session struct {
	dir string
}

// Result is the outcome of one command execution.
type Result struct {
	Output  string
	Success bool
}

// NewSession starts a session rooted at dir, or the process working
// directory when dir is empty.
func NewSession(dir string) *Session {
	if dir == "" {
		dir, _ = os.Getwd()
	}
	return &Session{dir: dir}
}

func (s *Session) Dir() string {
	return s.dir
}

// Run executes command synchronously. Built-in verbs (cd, edit) are
// intercepted; anything else runs under the shell with the session
// directory as its working directory. Output lines are forwarded to sink
// as they arrive and accumulated into the returned string. Success is
// exit code zero; a failed command never returns an error.
func (s *Session) Run(ctx context.Context, command string, sink io.Writer) (string, bool) {
	if sink == nil {
		sink = io.Discard
	}

	tokens := splitWords(command)
	if len(tokens) > 0 {
		switch tokens[0] {
		case "cd":
			return s.builtinCd(tokens[1:])
		case "edit":
			return s.builtinEdit(tokens[1:], sink)
		}
	}

	return s.execute(ctx, command, sink)
}

// RunAsync has the same contract as Run but does not block the caller:
// the subprocess is driven from a goroutine and the final Result is
// delivered on the returned channel. Output interleaving on sink matches
// the blocking mode since both share execute.
func (s *Session) RunAsync(ctx context.Context, command string, sink io.Writer) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		output, ok := s.Run(ctx, command, sink)
		ch <- Result{Output: output, Success: ok}
		close(ch)
	}()
	return ch
}

func (s *Session) execute(ctx context.Context, command string, sink io.Writer) (string, bool) {
	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(ctx, "powershell", "-NoProfile", "-NonInteractive", "-Command", command)
	} else {
		cmd = exec.CommandContext(ctx, "sh", "-c", command)
	}
	cmd.Dir = s.dir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Sprintf("failed to start command: %v", err), false
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return fmt.Sprintf("failed to start command: %v", err), false
	}

	// Read with bufio.Reader rather than a Scanner: a Scanner gives up on
	// lines past its buffer cap and would leave the pipe undrained, wedging
	// the child on a full pipe before Wait.
	var buf strings.Builder
	reader := bufio.NewReader(stdout)
	for {
		line, readErr := reader.ReadString('\n')
		if line != "" {
			fmt.Fprint(sink, line)
			buf.WriteString(line)
			if !strings.HasSuffix(line, "\n") {
				fmt.Fprintln(sink)
				buf.WriteByte('\n')
			}
		}
		if readErr != nil {
			break
		}
	}

	err = cmd.Wait()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			fmt.Fprintf(sink, "Command exited with code %d\n", exitErr.ExitCode())
		} else {
			fmt.Fprintf(sink, "Error: %v\n", err)
		}
		logger.WarnCF("shell", "command failed", map[string]any{"command": command, "err": err.Error()})
		return buf.String(), false
	}

	return buf.String(), true
}

// builtinCd resolves the target against the session directory and updates
// it only when the target is an existing directory.
func (s *Session) builtinCd(args []string) (string, bool) {
	var target string
	if len(args) == 0 {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Sprintf("cd: %v", err), false
		}
		target = home
	} else {
		target = expandTilde(args[0])
	}

	resolved := target
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(s.dir, resolved)
	}
	resolved = filepath.Clean(resolved)

	info, err := os.Stat(resolved)
	if err != nil || !info.IsDir() {
		return fmt.Sprintf("cd: no such file or directory: %s", target), false
	}

	s.dir = resolved
	return "", true
}

// builtinEdit writes the space-rejoined remaining tokens to the named file,
// creating parent directories as needed.
func (s *Session) builtinEdit(args []string, sink io.Writer) (string, bool) {
	if len(args) < 2 {
		return "usage: edit <path> <content>", false
	}

	path := expandTilde(args[0])
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.dir, path)
	}
	content := strings.Join(args[1:], " ")

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Sprintf("edit: %v", err), false
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Sprintf("edit: %v", err), false
	}

	msg := fmt.Sprintf("Wrote %s", path)
	fmt.Fprintln(sink, msg)
	return msg + "\n", true
}

func splitWords(command string) []string {
	tokens, err := shlex.Split(command)
	if err != nil {
		return strings.Fields(command)
	}
	return tokens
}

func expandTilde(path string) string {
	if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			return home
		}
		return path
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
