package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"xlsconv/cmd/xlsconv/ui"
	"xlsconv/internal/logging"
	"xlsconv/internal/pipeline"
	"xlsconv/internal/updater"
)

// runInteractive starts the terminal shell.
func runInteractive(cmd *cobra.Command, args []string) error {
	store := openStore()
	if store != nil {
		defer store.Close()
	}
	p, err := newPipeline(store)
	if err != nil {
		return err
	}

	deps := ui.Deps{
		Runner:       p,
		Files:        func() ([]string, error) { return pipeline.Discover(defaultInputDirs()...) },
		Version:      updater.Current(),
		CheckOnStart: cfg.Update.CheckOnStart,
		CheckTimeout: cfg.Update.GetTimeout(),
	}
	u, err := newUpdater()
	if err != nil {
		logging.UIError("Update checks disabled: %v", err)
	} else {
		deps.Updater = u
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logging.UI("Interactive shell started")
	final, err := tea.NewProgram(ui.New(ctx, deps), tea.WithAltScreen()).Run()
	if err != nil {
		return fmt.Errorf("interactive shell: %w", err)
	}
	logging.UI("Interactive shell closed")

	if m, ok := final.(ui.Model); ok && m.RestartRequested() && u != nil {
		return u.Restart(os.Args[1:]...)
	}
	return nil
}
