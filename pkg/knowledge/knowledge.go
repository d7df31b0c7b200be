// Package knowledge is the durable record of system facts, command
// history, per-command statistics and discovered filesystem paths.
// Every mutation is persisted synchronously; there is no in-memory-only
// window.
package knowledge

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/shlex"

	"github.com/shellmind/shellmind/pkg/logger"
	"github.com/shellmind/shellmind/pkg/sysinfo"
)

type CommandRecord struct {
	Command string `json:"command"`
	Output  string `json:"output"`
	Success bool   `json:"success"`
}

type Stats struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
}

type Base struct {
	System   sysinfo.Info      `json:"system"`
	Commands []CommandRecord   `json:"commands"`
	Stats    map[string]*Stats `json:"stats"`
	Paths    map[string]string `json:"paths"`
}

// Load reads the knowledge file at path. Unreadable or malformed content
// degrades to an empty structure. Missing top-level keys are back-filled;
// the system snapshot is gathered only when absent. The file is always
// rewritten in valid form before returning.
func Load(path string, gather sysinfo.Gatherer) (*Base, error) {
	kb := &Base{}
	haveSystem := false

	if data, err := os.ReadFile(path); err == nil {
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(data, &raw); err == nil {
			if sys, ok := raw["system"]; ok && string(sys) != "null" {
				if json.Unmarshal(sys, &kb.System) == nil {
					haveSystem = true
				}
			}
			if cmds, ok := raw["commands"]; ok {
				json.Unmarshal(cmds, &kb.Commands)
			}
			if stats, ok := raw["stats"]; ok {
				json.Unmarshal(stats, &kb.Stats)
			}
			if paths, ok := raw["paths"]; ok {
				json.Unmarshal(paths, &kb.Paths)
			}
		} else {
			logger.WarnCF("knowledge", "knowledge file unreadable, starting fresh", map[string]any{"path": path})
		}
	}

	if !haveSystem {
		kb.System = gather()
	}
	if kb.Commands == nil {
		kb.Commands = []CommandRecord{}
	}
	if kb.Stats == nil {
		kb.Stats = map[string]*Stats{}
	}
	if kb.Paths == nil {
		kb.Paths = map[string]string{}
	}

	if err := kb.save(path); err != nil {
		return kb, fmt.Errorf("failed to persist knowledge base: %w", err)
	}
	return kb, nil
}

// Update records one executed command: appends the history entry, bumps
// the stats counters, records paths the command touched, and persists.
// dir is the session directory the command ran in; relative tokens are
// resolved against it. After a failed command, previously recorded
// candidate paths that no longer exist are pruned (destructive commands
// delete their own targets).
func (b *Base) Update(path, command, output string, success bool, dir string) error {
	b.Commands = append(b.Commands, CommandRecord{
		Command: command,
		Output:  output,
		Success: success,
	})

	st := b.Stats[command]
	if st == nil {
		st = &Stats{}
		b.Stats[command] = st
	}
	if success {
		st.Success++
	} else {
		st.Failure++
	}

	for _, candidate := range candidatePaths(command, dir) {
		info, err := os.Stat(candidate)
		if err == nil {
			kind := "file"
			if info.IsDir() {
				kind = "directory"
			}
			b.Paths[candidate] = kind
		} else if !success {
			delete(b.Paths, candidate)
		}
	}

	return b.save(path)
}

// Summarize returns a short digest for the next prompt: the OS string and
// up to five known paths. Keeps prompt token usage bounded while carrying
// state across turns.
func (b *Base) Summarize() string {
	var sb strings.Builder
	sb.WriteString("System: ")
	sb.WriteString(b.System.OS)

	if len(b.Paths) > 0 {
		keys := make([]string, 0, len(b.Paths))
		for k := range b.Paths {
			keys = append(keys, k)
		}
		// Sorted so the digest is stable between prompts.
		sort.Strings(keys)
		if len(keys) > 5 {
			keys = keys[:5]
		}
		sb.WriteString(". Known paths: ")
		sb.WriteString(strings.Join(keys, ", "))
	}
	return sb.String()
}

// candidatePaths resolves every non-flag token of command against dir and
// returns the absolute forms. The token need not exist; callers decide
// what existence means for them.
func candidatePaths(command, dir string) []string {
	tokens, err := shlex.Split(command)
	if err != nil {
		tokens = strings.Fields(command)
	}

	var out []string
	for _, tok := range tokens {
		if tok == "" || strings.HasPrefix(tok, "-") {
			continue
		}
		p := tok
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		out = append(out, filepath.Clean(p))
	}
	return out
}

// save writes the whole structure with a temp-file + rename so the file
// is never left corrupted.
func (b *Base) save(path string) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal knowledge base: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
