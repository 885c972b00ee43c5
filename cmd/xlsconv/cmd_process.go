package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"xlsconv/internal/converter"
	"xlsconv/internal/order"
	"xlsconv/internal/pipeline"
	"xlsconv/internal/processor"
	"xlsconv/internal/sheet"
	"xlsconv/internal/sorter"
)

var (
	orderNumber string
	outputDir   string
)

// processCmd runs all steps
var processCmd = &cobra.Command{
	Use:   "process <file>",
	Short: "Run clean, sort and convert and collect the TXT files",
	Long: `Runs the full pipeline on a BOM workbook:
  1. Clean: remove empty rows and merge duplicates (<name>_processed.xlsx)
  2. Sort: group by thickness (<OrderID>_by_thickness.xlsx)
  3. Convert: one TXT per sheet, moved to <results>/<OrderID>

Example:
  xlsconv process "BOM 66.xls" --order 66`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

var cleanCmd = &cobra.Command{
	Use:   "clean <file>",
	Short: "Step 1: remove empty rows and merge duplicate parts",
	Args:  cobra.ExactArgs(1),
	RunE:  runClean,
}

var sortCmd = &cobra.Command{
	Use:   "sort <processed-file>",
	Short: "Step 2: group parts by material thickness into a nesting job workbook",
	Args:  cobra.ExactArgs(1),
	RunE:  runSort,
}

var convertCmd = &cobra.Command{
	Use:   "convert <sorted-file>",
	Short: "Step 3: write every sheet as a tab-separated TXT file",
	Long: `Converts each sheet of a workbook to <OrderID>_<sheet>.txt.

The OrderID comes from --order or, failing that, from the file name
("25-113_by_thickness.xlsx" or "66_bom.xlsx").`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

var listCmd = &cobra.Command{
	Use:   "list [dir...]",
	Short: "List input workbooks (default: current directory and Desktop)",
	RunE:  runList,
}

func init() {
	processCmd.Flags().StringVarP(&orderNumber, "order", "o", "", "Order number (required)")
	_ = processCmd.MarkFlagRequired("order")

	sortCmd.Flags().StringVarP(&orderNumber, "order", "o", "", "Order number (required)")
	_ = sortCmd.MarkFlagRequired("order")
	sortCmd.Flags().StringVar(&outputDir, "out", "", "Output directory (default: next to the input)")

	convertCmd.Flags().StringVarP(&orderNumber, "order", "o", "", "Order number (default: from the file name)")
	convertCmd.Flags().StringVar(&outputDir, "out", "", "Output directory (default: next to the input)")
}

func printEvent(w io.Writer, e pipeline.Event) {
	switch e.Kind {
	case pipeline.StepStarted:
		fmt.Fprintf(w, "[%d/%d] %s...\n", int(e.Step), int(pipeline.StepCollect), e.Step.Title())
	case pipeline.StepFinished:
		if e.Detail != "" {
			fmt.Fprintf(w, "      %s\n", e.Detail)
		}
	case pipeline.StepFailed:
		fmt.Fprintf(w, "      failed: %v\n", e.Err)
	}
}

func runProcess(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(timeout)
	defer cancel()

	store := openStore()
	if store != nil {
		defer store.Close()
	}
	p, err := newPipeline(store)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	logger.Info("Processing", zap.String("input", args[0]), zap.String("order", orderNumber))
	res, err := p.Run(ctx, pipeline.Request{
		Input:       args[0],
		OrderNumber: orderNumber,
		Observer:    func(e pipeline.Event) { printEvent(out, e) },
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\nOrder %s: %d files in %s (%s)\n", res.OrderID, len(res.Files), res.ResultDir, res.Duration.Round(time.Millisecond))
	for _, f := range res.Files {
		fmt.Fprintf(out, "  %s\n", filepath.Base(f))
	}
	fmt.Fprintf(out, "Clean: %s\n", res.Clean)
	fmt.Fprintf(out, "Sort:  %s\n", res.Report)
	return nil
}

func runClean(cmd *cobra.Command, args []string) error {
	if err := pipeline.ValidateInput(args[0]); err != nil {
		return err
	}
	opts, err := processor.OptionsFromConfig(cfg.Columns)
	if err != nil {
		return err
	}
	t, err := sheet.Read(args[0])
	if err != nil {
		return err
	}
	cleaned, stats, err := processor.Process(t, opts)
	if err != nil {
		return err
	}
	path, err := processor.Save(cleaned, args[0], opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s\n", path, stats)
	return nil
}

func runSort(cmd *cobra.Command, args []string) error {
	if err := pipeline.ValidateInput(args[0]); err != nil {
		return err
	}
	n, err := order.ParseNumber(orderNumber)
	if err != nil {
		return err
	}
	opts, err := sorter.OptionsFromConfig(cfg.Nesting)
	if err != nil {
		return err
	}
	t, err := sheet.Read(args[0])
	if err != nil {
		return err
	}

	now := time.Now()
	dir := outputDir
	if dir == "" {
		dir = filepath.Dir(args[0])
	}
	path, res, err := sorter.Sort(t, order.Format(n, now), dir, now, opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, path)
	for _, g := range res.Groups {
		fmt.Fprintf(out, "  %-16s %4d rows, quantity %d\n", g.Name, len(g.Rows), g.Quantity)
	}
	fmt.Fprintln(out, res.Report)
	return nil
}

func runConvert(cmd *cobra.Command, args []string) error {
	if err := pipeline.ValidateInput(args[0]); err != nil {
		return err
	}
	opts := converter.Options{Workers: cfg.Convert.Workers}
	if orderNumber != "" {
		n, err := order.ParseNumber(orderNumber)
		if err != nil {
			return err
		}
		opts.OrderID = order.Format(n, time.Now())
	}
	dir := outputDir
	if dir == "" {
		dir = filepath.Dir(args[0])
	}

	ctx, cancel := commandContext(timeout)
	defer cancel()
	files, err := converter.ConvertAll(ctx, args[0], dir, opts)
	if err != nil {
		return err
	}
	for _, f := range files {
		fmt.Fprintln(cmd.OutOrStdout(), f)
	}
	return nil
}

// defaultInputDirs are searched by list and the interactive shell.
func defaultInputDirs() []string {
	dirs := []string{"."}
	if home, err := homedir.Dir(); err == nil {
		dirs = append(dirs, filepath.Join(home, "Desktop"))
	}
	if cfg != nil && cfg.Watch.Inbox != "" {
		if inbox, err := homedir.Expand(cfg.Watch.Inbox); err == nil {
			dirs = append(dirs, inbox)
		}
	}
	return dirs
}

func runList(cmd *cobra.Command, args []string) error {
	dirs := args
	if len(dirs) == 0 {
		dirs = defaultInputDirs()
	}
	files, err := pipeline.Discover(dirs...)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(files) == 0 {
		fmt.Fprintln(out, "No input workbooks found")
		return nil
	}
	for _, f := range files {
		if info, err := os.Stat(f); err == nil {
			fmt.Fprintf(out, "%s  %s\n", info.ModTime().Format("2006-01-02 15:04"), f)
			continue
		}
		fmt.Fprintln(out, f)
	}
	return nil
}
