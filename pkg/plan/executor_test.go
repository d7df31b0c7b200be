package plan

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shellmind/shellmind/pkg/knowledge"
	"github.com/shellmind/shellmind/pkg/sysinfo"
)

// fakeRunner maps commands to canned results and records what ran.
type fakeRunner struct {
	dir     string
	results map[string]bool
	ran     []string
}

func (f *fakeRunner) Run(ctx context.Context, command string, sink io.Writer) (string, bool) {
	f.ran = append(f.ran, command)
	ok := f.results[command]
	return command + " output\n", ok
}

func (f *fakeRunner) Dir() string { return f.dir }

func newTestKB(t *testing.T, dir string) (*knowledge.Base, string) {
	t.Helper()
	kbPath := filepath.Join(dir, "kb.json")
	kb, err := knowledge.Load(kbPath, func() sysinfo.Info {
		return sysinfo.Info{OS: "TestOS"}
	})
	require.NoError(t, err)
	return kb, kbPath
}

func TestExecuteStopsOnFirstFailure(t *testing.T) {
	dir := t.TempDir()
	planPath := filepath.Join(dir, "plan.json")
	kb, kbPath := newTestKB(t, dir)

	steps := []*Step{
		{Description: "A", Command: "ok", Status: StatusPending},
		{Description: "B", Command: "fail", Status: StatusPending},
		{Description: "C", Command: "never", Status: StatusPending},
	}
	runner := &fakeRunner{dir: dir, results: map[string]bool{"ok": true, "fail": false, "never": true}}

	Execute(context.Background(), steps, planPath, kb, kbPath, runner, ExecuteOptions{})

	assert.Equal(t, StatusDone, steps[0].Status)
	assert.Equal(t, StatusFailed, steps[1].Status)
	assert.Equal(t, StatusPending, steps[2].Status)
	assert.Equal(t, []string{"ok", "fail"}, runner.ran)

	require.NotNil(t, steps[0].Success)
	assert.True(t, *steps[0].Success)
	require.NotNil(t, steps[1].Success)
	assert.False(t, *steps[1].Success)

	// Every executed step landed in the knowledge base, in order.
	require.Len(t, kb.Commands, 2)
	assert.Equal(t, "ok", kb.Commands[0].Command)
	assert.Equal(t, "fail", kb.Commands[1].Command)

	// The persisted plan reflects the final state.
	saved := Load(planPath)
	require.Len(t, saved, 3)
	assert.Equal(t, StatusFailed, saved[1].Status)
	assert.Equal(t, StatusPending, saved[2].Status)
}

func TestExecuteSkipsCompletedSteps(t *testing.T) {
	dir := t.TempDir()
	planPath := filepath.Join(dir, "plan.json")
	kb, kbPath := newTestKB(t, dir)

	steps := []*Step{
		{Description: "A", Command: "done-before", Status: StatusDone},
		{Description: "B", Command: "retry", Status: StatusPending},
	}
	runner := &fakeRunner{dir: dir, results: map[string]bool{"retry": true}}

	Execute(context.Background(), steps, planPath, kb, kbPath, runner, ExecuteOptions{})

	assert.Equal(t, []string{"retry"}, runner.ran)
	assert.Equal(t, StatusDone, steps[1].Status)
}

func TestExecuteDeclinePausesPlan(t *testing.T) {
	dir := t.TempDir()
	planPath := filepath.Join(dir, "plan.json")
	kb, kbPath := newTestKB(t, dir)

	steps := []*Step{
		{Description: "A", Command: "first", Status: StatusPending},
		{Description: "B", Command: "second", Status: StatusPending},
	}
	runner := &fakeRunner{dir: dir, results: map[string]bool{"first": true, "second": true}}

	var sink strings.Builder
	Execute(context.Background(), steps, planPath, kb, kbPath, runner, ExecuteOptions{
		ConfirmEach: true,
		Confirm:     func(step *Step) bool { return false },
		Sink:        &sink,
	})

	// Decline is a pause, not a failure: nothing ran, nothing recorded.
	assert.Empty(t, runner.ran)
	assert.Equal(t, StatusPending, steps[0].Status)
	assert.Equal(t, StatusPending, steps[1].Status)
	assert.Empty(t, kb.Commands)
	assert.Contains(t, sink.String(), "Step declined. Pausing plan.")

	// The plan was still persisted for a later resume.
	saved := Load(planPath)
	require.Len(t, saved, 2)
	assert.Equal(t, StatusPending, saved[0].Status)
}

func TestExecuteConfirmAcceptRunsStep(t *testing.T) {
	dir := t.TempDir()
	planPath := filepath.Join(dir, "plan.json")
	kb, kbPath := newTestKB(t, dir)

	steps := []*Step{{Description: "A", Command: "first", Status: StatusPending}}
	runner := &fakeRunner{dir: dir, results: map[string]bool{"first": true}}

	asked := 0
	Execute(context.Background(), steps, planPath, kb, kbPath, runner, ExecuteOptions{
		ConfirmEach: true,
		Confirm: func(step *Step) bool {
			asked++
			return true
		},
	})

	assert.Equal(t, 1, asked)
	assert.Equal(t, StatusDone, steps[0].Status)
	assert.Len(t, kb.Commands, 1)
}

func TestExecuteResumeAfterFailure(t *testing.T) {
	dir := t.TempDir()
	planPath := filepath.Join(dir, "plan.json")
	kb, kbPath := newTestKB(t, dir)

	steps := []*Step{
		{Description: "A", Command: "flaky", Status: StatusPending},
		{Description: "B", Command: "after", Status: StatusPending},
	}
	runner := &fakeRunner{dir: dir, results: map[string]bool{"flaky": false, "after": true}}
	Execute(context.Background(), steps, planPath, kb, kbPath, runner, ExecuteOptions{})
	require.Equal(t, StatusFailed, steps[0].Status)
	require.Equal(t, StatusPending, steps[1].Status)

	// Operator fixes the issue and re-runs: only pending steps execute.
	runner.results["flaky"] = true
	runner.ran = nil
	Execute(context.Background(), steps, planPath, kb, kbPath, runner, ExecuteOptions{})

	assert.Equal(t, []string{"after"}, runner.ran)
	assert.Equal(t, StatusDone, steps[1].Status)
	// The failed step is not retried automatically.
	assert.Equal(t, StatusFailed, steps[0].Status)
}
