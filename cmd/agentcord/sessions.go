package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List persisted sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(context.Background())
		if err != nil {
			return err
		}
		all := a.sessions.GetAllSessions()
		if len(all) == 0 {
			fmt.Println("no sessions")
			return nil
		}
		for _, s := range all {
			channel := s.ChannelID
			if channel == "" {
				channel = "-"
			}
			fmt.Printf("%-24s %-8s %-8s %-40s channel=%s turns=%d $%.4f\n",
				s.ID, s.Provider, s.Mode, s.Directory, channel, s.MessageCount, s.TotalCost)
		}
		return nil
	},
}

var sessionsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Recover orphaned terminal-multiplexer sessions into the registry",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		recovered := a.sessions.Sync(ctx)
		if len(recovered) == 0 {
			fmt.Println("nothing to recover")
			return nil
		}
		for _, s := range recovered {
			fmt.Printf("recovered %s in %s\n", s.ID, s.Directory)
		}
		a.sessions.Flush()
		return nil
	},
}

func init() {
	sessionsCmd.AddCommand(sessionsSyncCmd)
	rootCmd.AddCommand(sessionsCmd)
}
