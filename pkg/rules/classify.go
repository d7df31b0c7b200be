package rules

import (
	"strings"

	"github.com/google/shlex"
)

// Disposition is the classifier's verdict on a proposed command.
type Disposition int

const (
	// Default means no rule matched; the caller prompts interactively.
	Default Disposition = iota
	// Block refuses the command outright.
	Block
	// Danger requires an explicit opt-in with a warning.
	Danger
	// Confirm requires a yes/no prompt.
	Confirm
	// Auto runs without confirmation.
	Auto
)

func (d Disposition) String() string {
	switch d {
	case Block:
		return "block"
	case Danger:
		return "danger"
	case Confirm:
		return "confirm"
	case Auto:
		return "auto"
	default:
		return "default"
	}
}

// dangerousPatterns is fixed and independent of user configuration.
var dangerousPatterns = []string{
	"rm -rf /",
	"rm -rf /*",
	"mkfs",
	"dd if=",
}

// Classify checks command against rules in strict priority order:
// blocked, dangerous, confirm, auto. Blocked/dangerous/confirm patterns
// are literal substring matches; auto compares only the first shell token.
// The ordering is deliberate: safety dominates convenience, and a confirm
// rule can still intercept a whitelisted tool name.
func Classify(command string, rules RuleSet) Disposition {
	for _, p := range rules.Blocked {
		if p != "" && strings.Contains(command, p) {
			return Block
		}
	}

	for _, p := range dangerousPatterns {
		if strings.Contains(command, p) {
			return Danger
		}
	}

	for _, p := range rules.Confirm {
		if p != "" && strings.Contains(command, p) {
			return Confirm
		}
	}

	if first := FirstToken(command); first != "" {
		for _, name := range rules.Auto {
			if first == name {
				return Auto
			}
		}
	}

	return Default
}

// FirstToken returns the command's first shell word, honoring quoting.
// Falls back to whitespace splitting if the command does not lex.
func FirstToken(command string) string {
	tokens, err := shlex.Split(command)
	if err != nil || len(tokens) == 0 {
		fields := strings.Fields(command)
		if len(fields) == 0 {
			return ""
		}
		return fields[0]
	}
	return tokens[0]
}
