package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/parleyhq/parley/session"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List persisted conversations",
	RunE:  runSessions,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
}

func runSessions(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := session.NewStore(cfg.ConversationsDir())
	if err != nil {
		return fmt.Errorf("open conversation store: %w", err)
	}
	ids, err := store.List()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Println("No conversations found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CONVERSATION\tPHASE\tROUND\tMESSAGES")
	for _, id := range ids {
		conv, err := store.Load(id)
		if err != nil || conv == nil {
			fmt.Fprintf(w, "%s\t(unreadable)\t\t\n", id)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", id, conv.Phase, conv.Round, len(conv.Messages))
	}
	return w.Flush()
}
