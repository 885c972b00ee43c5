package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"xlsconv/internal/history"
	"xlsconv/internal/pipeline"
	"xlsconv/internal/watch"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show recent pipeline runs, or one run in detail",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Process workbooks dropped into an inbox directory",
	Long: `Watches a directory and runs the pipeline on every new or rewritten
workbook once it has been quiet for the debounce window. The order number
is taken from the leading digits of the file name ("66_bom.xlsx" -> 66);
files without one are skipped.

The directory defaults to watch.inbox from the configuration.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to show")
}

func runHistory(cmd *cobra.Command, args []string) error {
	path, err := cfg.HistoryPath()
	if err != nil {
		return err
	}
	store, err := history.NewStore(path)
	if err != nil {
		return err
	}
	defer store.Close()

	out := cmd.OutOrStdout()
	if len(args) == 1 {
		r, err := store.Get(args[0])
		if errors.Is(err, history.ErrNotFound) {
			return fmt.Errorf("no run with id %s", args[0])
		}
		if err != nil {
			return err
		}
		printRun(cmd, r)
		return nil
	}

	runs, err := store.Recent(historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded yet")
		return nil
	}
	fmt.Fprintf(out, "%-36s  %-16s  %-7s  %-8s  %5s  %s\n", "ID", "STARTED", "STATUS", "ORDER", "FILES", "INPUT")
	for _, r := range runs {
		fmt.Fprintf(out, "%-36s  %-16s  %-7s  %-8s  %5d  %s\n",
			r.ID, r.StartedAt.Local().Format("2006-01-02 15:04"), r.Status, r.OrderID, len(r.Files), filepath.Base(r.Input))
	}
	return nil
}

func printRun(cmd *cobra.Command, r *history.Run) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run:      %s\n", r.ID)
	fmt.Fprintf(out, "Input:    %s\n", r.Input)
	fmt.Fprintf(out, "Order:    %s\n", r.OrderID)
	fmt.Fprintf(out, "Status:   %s\n", r.Status)
	fmt.Fprintf(out, "Started:  %s\n", r.StartedAt.Local().Format(time.RFC3339))
	if d := r.Duration(); d > 0 {
		fmt.Fprintf(out, "Duration: %s\n", d.Round(time.Millisecond))
	}
	fmt.Fprintf(out, "Quantity: %d -> %d\n", r.QuantityIn, r.QuantityOut)
	if r.ResultDir != "" {
		fmt.Fprintf(out, "Results:  %s\n", r.ResultDir)
	}
	for _, f := range r.Files {
		fmt.Fprintf(out, "  %s\n", filepath.Base(f))
	}
	if r.Error != "" {
		fmt.Fprintf(out, "Error:    %s\n", r.Error)
	}
}

func runWatch(cmd *cobra.Command, args []string) error {
	inbox := cfg.Watch.Inbox
	if len(args) == 1 {
		inbox = args[0]
	}
	if inbox == "" {
		return errors.New("no inbox: pass a directory or set watch.inbox")
	}
	inbox, err := homedir.Expand(inbox)
	if err != nil {
		return err
	}

	store := openStore()
	if store != nil {
		defer store.Close()
	}
	p, err := newPipeline(store)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	w, err := watch.New(inbox, p,
		watch.WithDebounce(cfg.GetWatchDebounce()),
		watch.WithResultHandler(func(path string, res *pipeline.Result, err error) {
			if err != nil {
				fmt.Fprintf(out, "%s: %v\n", filepath.Base(path), err)
				return
			}
			fmt.Fprintf(out, "%s: order %s, %d files in %s\n", filepath.Base(path), res.OrderID, len(res.Files), res.ResultDir)
		}),
	)
	if err != nil {
		return err
	}

	// Runs until interrupted; --timeout does not apply.
	ctx, cancel := commandContext(0)
	defer cancel()
	if err := w.Start(ctx); err != nil {
		return err
	}
	logger.Info("Watching inbox", zap.String("dir", inbox))
	fmt.Fprintf(out, "Watching %s (Ctrl+C to stop)\n", inbox)

	<-ctx.Done()
	w.Stop()
	s := w.Stats()
	fmt.Fprintf(out, "Stopped: %d runs, %d failed, %d skipped\n", s.Runs, s.Failures, s.Skipped)
	return nil
}
