package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/parleyhq/parley/app"
	"github.com/parleyhq/parley/logging"
	"github.com/parleyhq/parley/replay"
	"github.com/parleyhq/parley/runstate"
	"github.com/parleyhq/parley/session"
)

var viewCmd = &cobra.Command{
	Use:   "view <recording>",
	Short: "Replay a recorded agent stream in the transcript viewer",
	Long: `View replays an NDJSON agent stream recording through the
classification pipeline, rendering it exactly as a live conversation
would have appeared. Nothing is persisted.`,
	Args: cobra.ExactArgs(1),
	RunE: runView,
}

func init() {
	rootCmd.AddCommand(viewCmd)
}

func runView(cmd *cobra.Command, args []string) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("parley requires a terminal (stdout is not a tty)")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := logging.Init(cfg.LogFile); err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logging.Close()

	rec, err := replay.Load(args[0])
	if err != nil {
		return fmt.Errorf("load recording: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	runs := runstate.NewRegistry()
	rt := replay.NewRuntime(rec, runs)

	// Ephemeral controller: no store, no artifacts. The auto prompt
	// kicks the replay off as soon as the program starts.
	ctrl := session.NewController(session.ControllerConfig{
		ContextID: "view",
		StepID:    filepath.Base(args[0]),
		Model:     rec.Model,
	}, rt, runs, nil, nil, nil)

	m, notices := app.New(ctx, ctrl, runs, app.Options{
		AutoPrompt: "replay " + filepath.Base(args[0]),
	})
	ctrl.SetNotifier(app.Notifier(notices))

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = p.Run()
	return err
}
