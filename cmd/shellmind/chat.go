package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/shellmind/shellmind/pkg/config"
	"github.com/shellmind/shellmind/pkg/knowledge"
	"github.com/shellmind/shellmind/pkg/logger"
	"github.com/shellmind/shellmind/pkg/plan"
	"github.com/shellmind/shellmind/pkg/providers"
	"github.com/shellmind/shellmind/pkg/providers/openai_sdk"
	"github.com/shellmind/shellmind/pkg/rules"
	"github.com/shellmind/shellmind/pkg/shell"
	"github.com/shellmind/shellmind/pkg/sysinfo"
)

const systemPrompt = "You are ShellMind, a helpful assistant for managing a server from the command line. " +
	"When the user asks for something that maps to a shell command, respond with JSON: " +
	`{"explanation": "...", "command": "..."}. ` +
	"Leave command empty when no command applies. Keep explanations short."

// assistant wires the session-scoped collaborators together.
type assistant struct {
	cfg      *config.Config
	provider providers.Provider
	kb       *knowledge.Base
	ruleSet  rules.RuleSet
	session  *shell.Session
	messages []providers.Message
}

func newAssistant() (*assistant, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}

	if cfg.LLM.APIKey == "" {
		return nil, fmt.Errorf("API key not set. Set SHELLMIND_LLM_API_KEY or OPENAI_API_KEY in your environment")
	}

	kb, err := knowledge.Load(cfg.KnowledgePath(), sysinfo.Gather)
	if err != nil {
		// The in-memory base is still usable; later updates retry the write.
		logger.WarnC("chat", err.Error())
	}

	a := &assistant{
		cfg:      cfg,
		provider: openai_sdk.NewProvider(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Model),
		kb:       kb,
		ruleSet: rules.Load(rules.Sources{
			SafetyFile:      cfg.SafetyPath(),
			PreferencesFile: cfg.PreferencesPath(),
			WhitelistFile:   cfg.WhitelistPath(),
		}),
		session: shell.NewSession(""),
	}
	a.messages = []providers.Message{providers.SystemMessage(a.promptWithContext())}
	return a, nil
}

// promptWithContext folds the knowledge digest into the system prompt so
// state carries across turns without replaying command outputs.
func (a *assistant) promptWithContext() string {
	return systemPrompt + "\n\n" + a.kb.Summarize()
}

func runChat(cmd *cobra.Command, message string) error {
	a, err := newAssistant()
	if err != nil {
		return err
	}

	if message != "" {
		return a.oneShot(cmd.Context(), message)
	}
	return a.interactive()
}

func runPlan(cmd *cobra.Command, task string) error {
	a, err := newAssistant()
	if err != nil {
		return err
	}

	rl, err := newReadline()
	if err != nil {
		return err
	}
	defer rl.Close()

	if task == "" {
		return a.resumePlan(cmd.Context(), rl)
	}
	return a.generatePlan(cmd.Context(), rl, task)
}

func newReadline() (*readline.Instance, error) {
	return readline.NewEx(&readline.Config{
		Prompt:          "You: ",
		HistoryFile:     filepath.Join(os.TempDir(), ".shellmind_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
}

func (a *assistant) interactive() error {
	rl, err := newReadline()
	if err != nil {
		return fmt.Errorf("error initializing readline: %w", err)
	}
	defer rl.Close()

	fmt.Println("ShellMind interactive mode (Ctrl+C to exit)")
	fmt.Println("  /plan <task>  - break a task into steps and run them")
	fmt.Println("  /resume       - continue the pending plan")
	fmt.Println("  /edit-plan    - adjust pending plan steps")
	fmt.Println("  /kb           - show the knowledge digest")
	fmt.Println()

	ctx := context.Background()
	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				fmt.Println("\nGoodbye!")
				return nil
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			fmt.Println("Goodbye!")
			return nil
		}

		if strings.HasPrefix(input, "/") {
			a.handleSlash(ctx, rl, input)
			continue
		}

		a.turn(ctx, rl, input)
	}
}

func (a *assistant) handleSlash(ctx context.Context, rl *readline.Instance, input string) {
	switch {
	case strings.HasPrefix(input, "/plan"):
		task := strings.TrimSpace(strings.TrimPrefix(input, "/plan"))
		if task == "" {
			fmt.Println("Usage: /plan <task>")
			return
		}
		if err := a.generatePlan(ctx, rl, task); err != nil {
			fmt.Printf("Error: %v\n", err)
		}
	case input == "/resume":
		if err := a.resumePlan(ctx, rl); err != nil {
			fmt.Printf("Error: %v\n", err)
		}
	case input == "/edit-plan":
		if err := plan.InteractiveEdit(a.cfg.PlanPath(), os.Stdin, os.Stdout); err != nil {
			fmt.Printf("Error: %v\n", err)
		}
	case input == "/kb":
		fmt.Println(a.kb.Summarize())
	default:
		fmt.Println("Unknown command. Available: /plan, /resume, /edit-plan, /kb")
	}
}

// turn runs one conversational exchange: ask the model, show the reply,
// and offer any suggested command for execution through the safety gate.
func (a *assistant) turn(ctx context.Context, rl *readline.Instance, input string) {
	a.messages[0] = providers.SystemMessage(a.promptWithContext())
	a.messages = append(a.messages, providers.UserMessage(input))

	raw, err := a.provider.Chat(ctx, a.messages)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	a.messages = append(a.messages, providers.AssistantMessage(raw))

	reply, ok := providers.ParseReply(raw)
	if !ok {
		// Not the structured shape; show the raw text and move on.
		fmt.Printf("\nAI: %s\n\n", raw)
		return
	}

	if reply.Explanation != "" {
		fmt.Printf("\nAI: %s\n", reply.Explanation)
	}
	if reply.Command == "" {
		fmt.Println()
		return
	}

	fmt.Printf("Command: %s\n", reply.Command)
	a.gateAndRun(ctx, rl, reply.Command)
	fmt.Println()
}

func (a *assistant) oneShot(ctx context.Context, message string) error {
	a.messages = append(a.messages, providers.UserMessage(message))

	raw, err := a.provider.Chat(ctx, a.messages)
	if err != nil {
		return err
	}

	reply, ok := providers.ParseReply(raw)
	if !ok {
		fmt.Println(raw)
		return nil
	}

	if reply.Explanation != "" {
		fmt.Println(reply.Explanation)
	}
	if reply.Command != "" {
		fmt.Printf("Command: %s\n", reply.Command)
		// One-shot mode only runs commands that need no interaction.
		if rules.Classify(reply.Command, a.ruleSet) == rules.Auto && a.cfg.Run.AutoRun {
			a.execute(ctx, reply.Command)
		}
	}
	return nil
}

// gateAndRun applies the classifier verdict before executing.
func (a *assistant) gateAndRun(ctx context.Context, rl *readline.Instance, command string) {
	switch rules.Classify(command, a.ruleSet) {
	case rules.Block:
		fmt.Println("Blocked by safety rules. This command will not be run.")
	case rules.Danger:
		fmt.Println("WARNING: this command is potentially destructive.")
		if promptLine(rl, "Type 'yes' to run it anyway: ") != "yes" {
			fmt.Println("Skipped.")
			return
		}
		a.execute(ctx, command)
	case rules.Confirm:
		ans := strings.ToLower(promptLine(rl, "Run this command? (y/n): "))
		if ans != "y" && ans != "yes" {
			fmt.Println("Skipped.")
			return
		}
		a.execute(ctx, command)
	case rules.Auto:
		if a.cfg.Run.AutoRun {
			a.execute(ctx, command)
			return
		}
		fallthrough
	default:
		ans := strings.ToLower(promptLine(rl, "Run this command? (press enter for yes, 'n' to skip): "))
		if ans == "n" || ans == "no" {
			fmt.Println("Skipped.")
			return
		}
		a.execute(ctx, command)
	}
}

// execute runs the command in suspending mode, streaming output as it
// arrives, then records the outcome in the knowledge base.
func (a *assistant) execute(ctx context.Context, command string) {
	res := <-a.session.RunAsync(ctx, command, os.Stdout)

	if err := a.kb.Update(a.cfg.KnowledgePath(), command, res.Output, res.Success, a.session.Dir()); err != nil {
		logger.WarnC("chat", err.Error())
	}
}

func (a *assistant) generatePlan(ctx context.Context, rl *readline.Instance, task string) error {
	steps, err := plan.Generate(ctx, a.provider, task)
	if err != nil {
		return err
	}
	if len(steps) == 0 {
		fmt.Println("The model returned no steps for this task.")
		return nil
	}

	for i, s := range steps {
		fmt.Printf("%d. %s: %s\n", i+1, s.Description, s.Command)
	}
	if err := plan.Save(a.cfg.PlanPath(), steps); err != nil {
		return err
	}

	ans := strings.ToLower(promptLine(rl, "Execute this plan now? (y/n): "))
	if ans != "y" && ans != "yes" {
		fmt.Println("Plan saved. Use /resume to run it later.")
		return nil
	}

	a.executePlan(ctx, rl, steps)
	return nil
}

func (a *assistant) resumePlan(ctx context.Context, rl *readline.Instance) error {
	steps := plan.Load(a.cfg.PlanPath())
	if len(steps) == 0 {
		fmt.Println("No plan found.")
		return nil
	}

	pending := 0
	for _, s := range steps {
		if s.Status == plan.StatusPending {
			pending++
		}
	}
	if pending == 0 {
		fmt.Println("Plan already complete.")
		return nil
	}

	fmt.Printf("Resuming plan: %d pending step(s).\n", pending)
	a.executePlan(ctx, rl, steps)
	return nil
}

func (a *assistant) executePlan(ctx context.Context, rl *readline.Instance, steps []*plan.Step) {
	plan.Execute(ctx, steps, a.cfg.PlanPath(), a.kb, a.cfg.KnowledgePath(), a.session, plan.ExecuteOptions{
		ConfirmEach: a.cfg.Run.ConfirmPlanStep,
		Confirm: func(step *plan.Step) bool {
			ans := strings.ToLower(promptLine(rl, "Run this command? (press enter for yes, 'n' to skip): "))
			return ans != "n" && ans != "no"
		},
		Sink: os.Stdout,
	})
}

// promptLine asks one question through the readline instance and restores
// the previous prompt afterwards.
func promptLine(rl *readline.Instance, label string) string {
	prev := rl.Config.Prompt
	rl.SetPrompt(label)
	defer rl.SetPrompt(prev)

	line, err := rl.Readline()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(line)
}
