package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

type LLMConfig struct {
	Model   string `json:"model" env:"SHELLMIND_LLM_MODEL"`
	APIKey  string `json:"api_key" env:"SHELLMIND_LLM_API_KEY"`
	BaseURL string `json:"base_url" env:"SHELLMIND_LLM_BASE_URL"`
}

type FilesConfig struct {
	Knowledge   string `json:"knowledge" env:"SHELLMIND_KNOWLEDGE_FILE"`
	Plan        string `json:"plan" env:"SHELLMIND_PLAN_FILE"`
	Safety      string `json:"safety" env:"SHELLMIND_SAFETY_FILE"`
	Preferences string `json:"preferences" env:"SHELLMIND_PREFERENCES_FILE"`
	Whitelist   string `json:"whitelist" env:"SHELLMIND_WHITELIST_FILE"`
	// Log enables the JSON file sink when set; empty means console only.
	Log string `json:"log" env:"SHELLMIND_LOG_FILE"`
}

type RunConfig struct {
	// AutoRun lets whitelisted commands execute without a prompt.
	AutoRun         bool `json:"auto_run" env:"SHELLMIND_AUTO_RUN"`
	ConfirmPlanStep bool `json:"confirm_plan_step" env:"SHELLMIND_CONFIRM_PLAN_STEP"`
}

type Config struct {
	LLM   LLMConfig   `json:"llm"`
	Files FilesConfig `json:"files"`
	Run   RunConfig   `json:"run"`
}

func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Model: "gpt-4o",
		},
		Files: FilesConfig{
			Knowledge:   "server_knowledge.json",
			Plan:        "task_plan.json",
			Safety:      "~/.shellmind/safety.yaml",
			Preferences: "~/.shellmind/preferences.yaml",
			Whitelist:   "~/.shellmind/whitelist.txt",
		},
		Run: RunConfig{
			AutoRun:         true,
			ConfirmPlanStep: true,
		},
	}
}

// LoadConfig reads path if it exists, then applies environment overrides.
// A missing config file is not an error; defaults are used.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// OPENAI_API_KEY is honored as a fallback so existing shells keep working.
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func (c *Config) KnowledgePath() string   { return ExpandHome(c.Files.Knowledge) }
func (c *Config) PlanPath() string        { return ExpandHome(c.Files.Plan) }
func (c *Config) SafetyPath() string      { return ExpandHome(c.Files.Safety) }
func (c *Config) PreferencesPath() string { return ExpandHome(c.Files.Preferences) }
func (c *Config) WhitelistPath() string   { return ExpandHome(c.Files.Whitelist) }
func (c *Config) LogPath() string         { return ExpandHome(c.Files.Log) }

func ExpandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
