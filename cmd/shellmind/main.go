package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/shellmind/shellmind/pkg/config"
	"github.com/shellmind/shellmind/pkg/logger"
)

var (
	version   = "dev"
	gitCommit string
)

var (
	flagConfig string
	flagDebug  bool
)

func main() {
	root := &cobra.Command{
		Use:   "shellmind",
		Short: "Conversational server assistant with a safety-gated shell",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, "")
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", "", "config file path (default ~/.shellmind/config.json)")
	root.PersistentFlags().BoolVarP(&flagDebug, "debug", "d", false, "enable debug logging")

	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive assistant session",
		RunE: func(cmd *cobra.Command, args []string) error {
			message, _ := cmd.Flags().GetString("message")
			return runChat(cmd, message)
		},
	}
	chatCmd.Flags().StringP("message", "m", "", "process a single message and exit")

	planCmd := &cobra.Command{
		Use:   "plan [task]",
		Short: "Generate and run a multi-step plan, or resume the pending one",
		RunE: func(cmd *cobra.Command, args []string) error {
			task := ""
			if len(args) > 0 {
				task = args[0]
			}
			return runPlan(cmd, task)
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			v := version
			if gitCommit != "" {
				v += fmt.Sprintf(" (git: %s)", gitCommit)
			}
			fmt.Printf("shellmind %s\n  Go: %s\n", v, runtime.Version())
		},
	}

	root.AddCommand(chatCmd, planCmd, versionCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if flagDebug {
		logger.SetLevel(logger.DEBUG)
	}

	path := flagConfig
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(home, ".shellmind", "config.json")
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}

	if logPath := cfg.LogPath(); logPath != "" {
		if err := logger.EnableFileLogging(logPath); err != nil {
			logger.WarnC("main", err.Error())
		}
	}

	return cfg, nil
}
