// Command parley is a terminal UI for multi-turn conversations with an
// autonomous coding agent. The root command opens the conversation TUI;
// `parley view` replays a recorded agent stream; `parley sessions` lists
// persisted conversations.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configDir  string
	contextID  string
	stepID     string
	modelFlag  string
	replayPath string
)

var rootCmd = &cobra.Command{
	Use:   "parley",
	Short: "Conversation TUI for autonomous coding agents",
	Long: `Parley renders streamed agent events as a classified transcript
(responses, tool calls, questions, results) and manages the conversation
lifecycle: prompting, awaiting feedback, and gated step completion.

Sessions persist under the data dir and resume across restarts.`,
	RunE: runConversation,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "Directory containing .parley.yaml (default: cwd)")
	rootCmd.Flags().StringVar(&contextID, "context", "default", "Workflow context identifier")
	rootCmd.Flags().StringVar(&stepID, "step", "main", "Workflow step identifier")
	rootCmd.Flags().StringVar(&modelFlag, "model", "", "Agent model (overrides config)")
	rootCmd.Flags().StringVar(&replayPath, "replay", "", "Drive the conversation from a recorded NDJSON stream")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
