package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/parleyhq/parley/app"
	"github.com/parleyhq/parley/config"
	"github.com/parleyhq/parley/logging"
	"github.com/parleyhq/parley/replay"
	"github.com/parleyhq/parley/runstate"
	"github.com/parleyhq/parley/session"
)

func runConversation(cmd *cobra.Command, args []string) error {
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	runs := runstate.NewRegistry()
	rt, err := buildRuntime(runs)
	if err != nil {
		return err
	}

	store, err := session.NewStore(cfg.ConversationsDir())
	if err != nil {
		return fmt.Errorf("open conversation store: %w", err)
	}
	artifacts := session.NewFSArtifactStore(cfg.ArtifactsDir())

	model := cfg.Model
	if modelFlag != "" {
		model = modelFlag
	}
	ctrl := session.NewController(session.ControllerConfig{
		ContextID:            contextID,
		StepID:               stepID,
		Model:                model,
		AllowedTools:         cfg.AllowedTools,
		MaxTurns:             cfg.MaxTurns,
		ArtifactOverridePath: cfg.ArtifactPath,
		ArtifactRelPath:      "decision.md",
	}, rt, runs, store, artifacts, nil)
	ctrl.Resume()

	m, notices := app.New(ctx, ctrl, runs, app.Options{
		StallAfter: time.Duration(cfg.StallAfterSeconds) * time.Second,
	})
	ctrl.SetNotifier(app.Notifier(notices))

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = p.Run()
	return err
}

// buildRuntime picks the runtime driving the conversation. Only the
// replay runtime is wired today; a live agent runtime plugs in through
// the same interface.
func buildRuntime(runs *runstate.Registry) (session.Runtime, error) {
	if replayPath == "" {
		return nil, fmt.Errorf("no runtime configured: pass --replay <recording>")
	}
	rec, err := replay.Load(replayPath)
	if err != nil {
		return nil, fmt.Errorf("load recording: %w", err)
	}
	return replay.NewRuntime(rec, runs), nil
}

func loadConfig() (*config.Config, error) {
	dir := configDir
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		dir = cwd
	}
	return config.Load(dir)
}
