package main

import (
	"fmt"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/radu2lupu/agentcord/config"
	"github.com/radu2lupu/agentcord/store"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check provider availability and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			path = config.DefaultPath()
		}
		cfg, err := config.Load(path)
		if err != nil {
			fmt.Printf("✗ config %s: %v\n", path, err)
			return err
		}
		fmt.Printf("✓ config %s\n", path)

		dataDir := cfg.DataDir
		if dataDir == "" {
			dataDir, _ = store.DefaultDir()
		}
		fmt.Printf("  data dir %s\n", dataDir)
		fmt.Printf("  edit interval %s, retention %s\n",
			cfg.EditInterval.Std(), cfg.Retention.Std())

		probe("claude", "install the Claude CLI and make sure it is on PATH")
		probe("codex", "npm install -g @openai/codex")
		probe("tmux", "install tmux for terminal-attached sessions")
		return nil
	},
}

func probe(binary, hint string) {
	if path, err := exec.LookPath(binary); err == nil {
		fmt.Printf("✓ %s (%s)\n", binary, path)
		return
	}
	fmt.Printf("✗ %s not found — %s\n", binary, hint)
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
