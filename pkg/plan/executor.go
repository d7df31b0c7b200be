package plan

import (
	"context"
	"fmt"
	"io"

	"github.com/shellmind/shellmind/pkg/knowledge"
	"github.com/shellmind/shellmind/pkg/logger"
)

// Runner executes a single command and reports merged output and success.
// *shell.Session satisfies it; tests use fakes.
type Runner interface {
	Run(ctx context.Context, command string, sink io.Writer) (string, bool)
	Dir() string
}

// ExecuteOptions tunes one executor run.
type ExecuteOptions struct {
	// ConfirmEach prompts before every step. A decline pauses the plan:
	// the step stays pending and nothing is recorded for it.
	ConfirmEach bool
	// Confirm is the prompt callback used when ConfirmEach is set.
	// A nil callback approves every step.
	Confirm func(step *Step) bool
	// Sink receives live command output and executor progress lines.
	Sink io.Writer
}

// Execute runs pending steps strictly in order through the runner,
// updating the knowledge base and persisting the whole plan after every
// step. The first failure halts the run; later steps stay pending and can
// be resumed by calling Execute again.
func Execute(ctx context.Context, steps []*Step, planPath string, kb *knowledge.Base, kbPath string, runner Runner, opts ExecuteOptions) []*Step {
	sink := opts.Sink
	if sink == nil {
		sink = io.Discard
	}

	for _, step := range steps {
		if step.Status != StatusPending {
			continue
		}

		fmt.Fprintf(sink, "Step: %s\n", step.Description)
		fmt.Fprintf(sink, "Command: %s\n", step.Command)

		if opts.ConfirmEach && opts.Confirm != nil && !opts.Confirm(step) {
			fmt.Fprintln(sink, "Step declined. Pausing plan.")
			if err := Save(planPath, steps); err != nil {
				logger.ErrorCF("plan", "failed to save plan", map[string]any{"err": err.Error()})
			}
			break
		}

		output, success := runner.Run(ctx, step.Command, sink)
		step.Output = output
		step.Success = &success
		if success {
			step.Status = StatusDone
		} else {
			step.Status = StatusFailed
		}

		if err := kb.Update(kbPath, step.Command, output, success, runner.Dir()); err != nil {
			logger.ErrorCF("plan", "failed to update knowledge base", map[string]any{"err": err.Error()})
		}
		if err := Save(planPath, steps); err != nil {
			logger.ErrorCF("plan", "failed to save plan", map[string]any{"err": err.Error()})
		}

		if !success {
			fmt.Fprintln(sink, "Step failed. Stopping execution.")
			break
		}
	}

	return steps
}
