package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"xlsconv/internal/config"
	"xlsconv/internal/history"
	"xlsconv/internal/logging"
	"xlsconv/internal/pipeline"
	"xlsconv/internal/updater"
)

var (
	// Global flags
	verbose    bool
	configPath string
	appDir     string
	timeout    time.Duration

	// Loaded in PersistentPreRunE
	cfg *config.Config

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "xlsconv",
	Short: "Convert BOM workbooks into nesting job TXT files",
	Long: `xlsconv turns a bill-of-materials workbook (.xls, .xlsx, .xlsm) into
tab-separated nesting job files, one per sheet-metal thickness:

  1. Clean: remove empty rows and merge duplicate parts
  2. Sort: group parts by material thickness into nesting job sheets
  3. Convert: write every sheet as <OrderID>_<thickness>.txt

Results are collected in <results>/<OrderID>.

Run without arguments to start the interactive shell.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
	Args: cobra.NoArgs,
	RunE: runInteractive,
}

// setup builds the console logger, loads the configuration and opens the
// log files.
func setup(cmd *cobra.Command, args []string) error {
	if !cmd.HasParent() {
		// The interactive shell owns the terminal.
		logger = zap.NewNop()
	} else {
		zc := zap.NewProductionConfig()
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
	}

	var err error
	cfg, err = loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logsDir, err := cfg.LogsDir()
	if err != nil {
		return err
	}
	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	if err := logging.Initialize(logsDir, logging.Options{
		Enabled:    cfg.Logging.Enabled,
		Level:      level,
		JSON:       cfg.Logging.Format == "json",
		Categories: cfg.Logging.Categories,
	}); err != nil {
		// File logging is optional; a read-only install still works.
		logger.Warn("File logging disabled", zap.Error(err))
	}
	logging.Boot("xlsconv %s: %s", updater.BuildVersion, cmd.CommandPath())
	return nil
}

// resolveConfigPath returns --config or config.yaml in the app directory.
func resolveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	defaults := config.DefaultConfig()
	defaults.AppDir = appDir
	if defaults.AppDir == "" {
		defaults.AppDir = os.Getenv("XLSCONV_APP_DIR")
	}
	return defaults.DefaultPath()
}

func loadConfig() (*config.Config, error) {
	path, err := resolveConfigPath()
	if err != nil {
		return nil, err
	}
	c, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if appDir != "" {
		c.AppDir = appDir
	}
	logger.Debug("Configuration loaded", zap.String("path", path))
	return c, nil
}

// openStore opens the history database. History is best effort: a
// failure is logged and nil returned.
func openStore() *history.Store {
	if !cfg.History.Enabled {
		return nil
	}
	path, err := cfg.HistoryPath()
	if err != nil {
		logger.Warn("History disabled", zap.Error(err))
		return nil
	}
	store, err := history.NewStore(path)
	if err != nil {
		logger.Warn("History disabled", zap.Error(err))
		return nil
	}
	return store
}

func newPipeline(store *history.Store) (*pipeline.Pipeline, error) {
	return pipeline.New(cfg, store)
}

// commandContext is canceled by SIGINT/SIGTERM and, when d > 0, after d.
func commandContext(d time.Duration) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	if d <= 0 {
		return ctx, stop
	}
	tctx, cancel := context.WithTimeout(ctx, d)
	return tctx, func() {
		cancel()
		stop()
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: <app-dir>/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&appDir, "app-dir", "", "Directory for logs, results and history (default: executable directory)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Minute, "Operation timeout")

	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(sortCmd)
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		logging.CloseAll()
		os.Exit(1)
	}
}
