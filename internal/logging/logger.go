// Package logging provides config-driven categorized file logging for xlsconv.
// Logs are written to <app>/logs/ with one file per category and day.
// When logging is disabled every logger is a no-op.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot      Category = "boot"      // Startup and configuration
	CategoryProcessor Category = "processor" // Step 1: empty rows, duplicates
	CategorySorter    Category = "sorter"    // Step 2: thickness grouping
	CategoryConverter Category = "converter" // Step 3: sheet -> txt
	CategoryPipeline  Category = "pipeline"  // Step orchestration, result folders
	CategoryHistory   Category = "history"   // Run history database
	CategoryWatch     Category = "watch"     // Inbox watcher
	CategoryUpdater   Category = "updater"   // Release checks and self-update
	CategoryUI        Category = "ui"        // Interactive shell
)

// Options mirrors config.LoggingConfig to keep this package free of
// internal imports.
type Options struct {
	Enabled    bool
	Level      string // debug, info, warn, error
	JSON       bool
	Categories map[string]bool
}

// Logger writes one category to its own file.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
	file     *os.File
}

var (
	loggers   = make(map[Category]*Logger)
	loggersMu sync.RWMutex
	logsDir   string
	options   Options
	optionsMu sync.RWMutex
	level     = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// Initialize sets up the logs directory. Should be called once at startup.
func Initialize(dir string, opts Options) error {
	if dir == "" {
		return fmt.Errorf("logs directory required")
	}

	CloseAll()

	optionsMu.Lock()
	options = opts
	logsDir = dir
	optionsMu.Unlock()

	if opts.Level != "" {
		lvl, err := zap.ParseAtomicLevel(opts.Level)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level.SetLevel(lvl.Level())
	} else {
		level.SetLevel(zapcore.InfoLevel)
	}

	if !opts.Enabled {
		return nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	if err := InitAudit(); err != nil {
		return err
	}

	Boot("=== xlsconv logging initialized ===")
	Boot("Logs directory: %s", dir)
	BootDebug("Log level: %s, json: %v", level.Level(), opts.JSON)
	return nil
}

// IsEnabled returns whether file logging is on.
func IsEnabled() bool {
	optionsMu.RLock()
	defer optionsMu.RUnlock()
	return options.Enabled && logsDir != ""
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	optionsMu.RLock()
	defer optionsMu.RUnlock()

	if !options.Enabled || logsDir == "" {
		return false
	}
	if options.Categories == nil {
		return true
	}
	enabled, exists := options.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Dir returns the logs directory, empty before Initialize.
func Dir() string {
	optionsMu.RLock()
	defer optionsMu.RUnlock()
	return logsDir
}

func newEncoder(json bool) zapcore.Encoder {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "ts"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	if json {
		return zapcore.NewJSONEncoder(enc)
	}
	enc.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewConsoleEncoder(enc)
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if logging or the category is disabled.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) {
		return &Logger{category: category}
	}

	loggersMu.RLock()
	if l, ok := loggers[category]; ok {
		loggersMu.RUnlock()
		return l
	}
	loggersMu.RUnlock()

	loggersMu.Lock()
	defer loggersMu.Unlock()

	if l, ok := loggers[category]; ok {
		return l
	}

	optionsMu.RLock()
	dir, json := logsDir, options.JSON
	optionsMu.RUnlock()

	// Date prefix for easy rotation
	filename := fmt.Sprintf("%s_%s.log", time.Now().Format("2006-01-02"), category)
	logPath := filepath.Join(dir, filename)

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] Warning: could not open log file %s: %v\n", logPath, err)
		return &Logger{category: category}
	}

	core := zapcore.NewCore(newEncoder(json), zapcore.AddSync(file), level)
	l := &Logger{
		category: category,
		file:     file,
		sugar:    zap.New(core).With(zap.String("cat", string(category))).Sugar(),
	}
	loggers[category] = l
	return l
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.sugar != nil {
		l.sugar.Debugf(format, args...)
	}
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	if l.sugar != nil {
		l.sugar.Infof(format, args...)
	}
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.sugar != nil {
		l.sugar.Warnf(format, args...)
	}
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	if l.sugar != nil {
		l.sugar.Errorf(format, args...)
	}
}

// With returns a logger that attaches key-value context to every entry.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	if l.sugar == nil {
		return l
	}
	return &Logger{category: l.category, sugar: l.sugar.With(keysAndValues...)}
}

// CloseAll flushes and closes all open log files (call at shutdown)
func CloseAll() {
	loggersMu.Lock()
	for _, l := range loggers {
		if l.sugar != nil {
			_ = l.sugar.Sync()
		}
		if l.file != nil {
			l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
	loggersMu.Unlock()

	CloseAudit()
}

// =============================================================================
// CONVENIENCE FUNCTIONS - no-ops when the category is disabled
// =============================================================================

func Boot(format string, args ...interface{})      { Get(CategoryBoot).Info(format, args...) }
func BootDebug(format string, args ...interface{}) { Get(CategoryBoot).Debug(format, args...) }
func BootWarn(format string, args ...interface{})  { Get(CategoryBoot).Warn(format, args...) }

func Processor(format string, args ...interface{})      { Get(CategoryProcessor).Info(format, args...) }
func ProcessorDebug(format string, args ...interface{}) { Get(CategoryProcessor).Debug(format, args...) }
func ProcessorWarn(format string, args ...interface{})  { Get(CategoryProcessor).Warn(format, args...) }

func Sorter(format string, args ...interface{})      { Get(CategorySorter).Info(format, args...) }
func SorterDebug(format string, args ...interface{}) { Get(CategorySorter).Debug(format, args...) }
func SorterWarn(format string, args ...interface{})  { Get(CategorySorter).Warn(format, args...) }

func Converter(format string, args ...interface{})      { Get(CategoryConverter).Info(format, args...) }
func ConverterDebug(format string, args ...interface{}) { Get(CategoryConverter).Debug(format, args...) }
func ConverterError(format string, args ...interface{}) { Get(CategoryConverter).Error(format, args...) }

func Pipeline(format string, args ...interface{})      { Get(CategoryPipeline).Info(format, args...) }
func PipelineDebug(format string, args ...interface{}) { Get(CategoryPipeline).Debug(format, args...) }
func PipelineError(format string, args ...interface{}) { Get(CategoryPipeline).Error(format, args...) }

func History(format string, args ...interface{})      { Get(CategoryHistory).Info(format, args...) }
func HistoryError(format string, args ...interface{}) { Get(CategoryHistory).Error(format, args...) }

func Watch(format string, args ...interface{})      { Get(CategoryWatch).Info(format, args...) }
func WatchDebug(format string, args ...interface{}) { Get(CategoryWatch).Debug(format, args...) }
func WatchWarn(format string, args ...interface{})  { Get(CategoryWatch).Warn(format, args...) }
func WatchError(format string, args ...interface{}) { Get(CategoryWatch).Error(format, args...) }

func Updater(format string, args ...interface{})      { Get(CategoryUpdater).Info(format, args...) }
func UpdaterDebug(format string, args ...interface{}) { Get(CategoryUpdater).Debug(format, args...) }
func UpdaterWarn(format string, args ...interface{})  { Get(CategoryUpdater).Warn(format, args...) }
func UpdaterError(format string, args ...interface{}) { Get(CategoryUpdater).Error(format, args...) }

func UI(format string, args ...interface{})      { Get(CategoryUI).Info(format, args...) }
func UIError(format string, args ...interface{}) { Get(CategoryUI).Error(format, args...) }
