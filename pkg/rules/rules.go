// Package rules loads the layered command safety rules and classifies
// proposed shell commands against them.
package rules

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// RuleSet holds the merged pattern lists from every configured source.
// Blocked and Confirm patterns match anywhere in the command text; Auto
// entries match the command's first shell token only.
type RuleSet struct {
	Blocked []string
	Confirm []string
	Auto    []string
}

// Sources names the optional rule files. Empty or missing paths contribute
// nothing; a malformed file is skipped, never fatal.
type Sources struct {
	SafetyFile      string
	PreferencesFile string
	WhitelistFile   string
}

// defaultAuto is the built-in set of read-only commands that never need
// confirmation.
var defaultAuto = []string{
	"ls", "pwd", "whoami", "date", "uptime", "uname",
	"df", "free", "ps", "echo", "cat", "which",
}

type ruleDoc struct {
	Blocked   []string `yaml:"blocked"`
	Confirm   []string `yaml:"confirm"`
	Auto      []string `yaml:"auto"`
	Whitelist []string `yaml:"whitelist"`
}

// Load merges all sources into a single RuleSet. The auto list is the
// concatenation of the built-in defaults and every source, deduplicated
// preserving first-seen order.
func Load(src Sources) RuleSet {
	rs := RuleSet{}
	auto := append([]string{}, defaultAuto...)

	for _, path := range []string{src.SafetyFile, src.PreferencesFile} {
		doc, ok := readRuleDoc(path)
		if !ok {
			continue
		}
		rs.Blocked = append(rs.Blocked, doc.Blocked...)
		rs.Confirm = append(rs.Confirm, doc.Confirm...)
		auto = append(auto, doc.Auto...)
		auto = append(auto, doc.Whitelist...)
	}

	auto = append(auto, readWhitelist(src.WhitelistFile)...)
	rs.Auto = dedupe(auto)
	return rs
}

func readRuleDoc(path string) (ruleDoc, bool) {
	var doc ruleDoc
	if path == "" {
		return doc, false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return doc, false
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return doc, false
	}
	return doc, true
}

// readWhitelist parses a plain-text list: one command name per line,
// '#' comments and blank lines skipped.
func readWhitelist(path string) []string {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	var entries []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entries = append(entries, line)
	}
	return entries
}

func dedupe(entries []string) []string {
	seen := make(map[string]struct{}, len(entries))
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	return out
}
