// Command agentcord bridges chat channels to coding-agent CLI sessions.
package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "agentcord",
	Short: "Chat bridge for coding-agent CLI sessions",
	Long: `Agentcord manages long-lived coding-agent sessions, one per chat
channel, streaming agent output back as incrementally edited messages and
routing interactive responses (buttons, menus) into the running turn.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Settings file (default: $AGENTCORD_CONFIG or ~/.agentcord/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger builds the process logger. Everything downstream receives it as
// a constructor argument.
func newLogger() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = true
	if verbose {
		cfg = zap.NewDevelopmentConfig()
	}
	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
