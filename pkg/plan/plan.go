// Package plan persists and executes multi-step task plans. A plan is an
// ordered sequence of steps generated by the language model; it survives
// process restarts and resumes from the first pending step.
package plan

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/shellmind/shellmind/pkg/providers"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

type Step struct {
	Description string `json:"description"`
	Command     string `json:"command"`
	Status      Status `json:"status"`
	Output      string `json:"output"`
	Success     *bool  `json:"success"`
}

const planPrompt = "Break the following task into a short sequence of shell commands. " +
	"Respond in JSON with a 'steps' array where each item has 'description' and 'command'."

// Save writes the whole plan; the sequence is rewritten, not appended.
func Save(path string, steps []*Step) error {
	data, err := json.MarshalIndent(steps, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal plan: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write plan: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename plan file: %w", err)
	}
	return nil
}

// Load returns the persisted plan, or an empty sequence when the file is
// missing or malformed. Never fails the caller.
func Load(path string) []*Step {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	var steps []*Step
	if err := json.Unmarshal(data, &steps); err != nil {
		return nil
	}
	for _, s := range steps {
		if s.Status == "" {
			s.Status = StatusPending
		}
	}
	return steps
}

// Generate asks the model to break task into steps. A malformed reply is
// an error, not a crash; the caller reports it and continues.
func Generate(ctx context.Context, provider providers.Provider, task string) ([]*Step, error) {
	raw, err := provider.Chat(ctx, []providers.Message{
		providers.SystemMessage(planPrompt),
		providers.UserMessage(task),
	})
	if err != nil {
		return nil, err
	}

	var payload struct {
		Steps []struct {
			Description string `json:"description"`
			Command     string `json:"command"`
		} `json:"steps"`
	}
	if err := json.Unmarshal([]byte(stripFences(raw)), &payload); err != nil {
		return nil, fmt.Errorf("plan reply was not valid JSON: %w", err)
	}

	steps := make([]*Step, 0, len(payload.Steps))
	for _, s := range payload.Steps {
		if s.Command == "" {
			continue
		}
		steps = append(steps, &Step{
			Description: s.Description,
			Command:     s.Command,
			Status:      StatusPending,
		})
	}
	return steps, nil
}

// InteractiveEdit lets the operator adjust step descriptions and commands
// before running. Empty input keeps the current value; an empty step
// number finishes editing. The plan is saved on exit.
func InteractiveEdit(path string, in io.Reader, out io.Writer) error {
	steps := Load(path)
	if len(steps) == 0 {
		fmt.Fprintln(out, "No plan found.")
		return nil
	}

	scanner := bufio.NewScanner(in)
	readLine := func(prompt string) string {
		fmt.Fprint(out, prompt)
		if !scanner.Scan() {
			return ""
		}
		return strings.TrimSpace(scanner.Text())
	}

	for {
		for i, s := range steps {
			fmt.Fprintf(out, "%d. %s: %s [%s]\n", i+1, s.Description, s.Command, s.Status)
		}
		choice := readLine("Edit step number (enter to finish): ")
		if choice == "" {
			break
		}
		idx, err := strconv.Atoi(choice)
		if err != nil || idx < 1 || idx > len(steps) {
			fmt.Fprintln(out, "Invalid step.")
			continue
		}
		step := steps[idx-1]
		if desc := readLine(fmt.Sprintf("Description [%s]: ", step.Description)); desc != "" {
			step.Description = desc
		}
		if cmd := readLine(fmt.Sprintf("Command [%s]: ", step.Command)); cmd != "" {
			step.Command = cmd
		}
	}

	return Save(path, steps)
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if idx := strings.Index(text, "\n"); idx >= 0 {
		text = text[idx+1:]
	}
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}
