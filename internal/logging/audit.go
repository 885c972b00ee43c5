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

// AuditEventType identifies what an audit entry records.
type AuditEventType string

const (
	// Step lifecycle
	AuditStepStart    AuditEventType = "step_start"
	AuditStepComplete AuditEventType = "step_complete"
	AuditStepError    AuditEventType = "step_error"

	// File operations
	AuditFileRead  AuditEventType = "file_read"
	AuditFileWrite AuditEventType = "file_write"
	AuditFileMove  AuditEventType = "file_move"

	// Runs
	AuditRunStart    AuditEventType = "run_start"
	AuditRunComplete AuditEventType = "run_complete"
	AuditRunError    AuditEventType = "run_error"

	// Updates
	AuditUpdateCheck AuditEventType = "update_check"
	AuditUpdateApply AuditEventType = "update_apply"
)

// AuditEvent is one line of <logs>/audit.jsonl.
type AuditEvent struct {
	Type     AuditEventType
	RunID    string
	Target   string // file, step or version the event is about
	Success  bool
	Duration time.Duration
	Err      error
	Fields   map[string]interface{}
}

const auditFileName = "audit.jsonl"

var (
	auditFile   *os.File
	auditLogger *zap.Logger
	auditMu     sync.Mutex
)

// InitAudit opens the audit file. No-op when logging is disabled.
func InitAudit() error {
	if !IsEnabled() {
		return nil
	}

	auditMu.Lock()
	defer auditMu.Unlock()

	if auditLogger != nil {
		return nil
	}

	path := filepath.Join(Dir(), auditFileName)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}

	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "ts"
	enc.EncodeTime = zapcore.EpochMillisTimeEncoder
	enc.LevelKey = ""
	enc.MessageKey = "event"
	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(file), zapcore.DebugLevel)

	auditFile = file
	auditLogger = zap.New(core)
	return nil
}

// CloseAudit flushes and closes the audit file.
func CloseAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditLogger != nil {
		_ = auditLogger.Sync()
		auditLogger = nil
	}
	if auditFile != nil {
		auditFile.Close()
		auditFile = nil
	}
}

// Audit records an event. No-op when the audit file is not open.
func Audit(e AuditEvent) {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditLogger == nil {
		return
	}

	fields := []zap.Field{
		zap.String("run", e.RunID),
		zap.String("target", e.Target),
		zap.Bool("success", e.Success),
	}
	if e.Duration > 0 {
		fields = append(fields, zap.Int64("dur_ms", e.Duration.Milliseconds()))
	}
	if e.Err != nil {
		fields = append(fields, zap.String("error", e.Err.Error()))
	}
	if len(e.Fields) > 0 {
		fields = append(fields, zap.Any("fields", e.Fields))
	}
	auditLogger.Info(string(e.Type), fields...)
}

// AuditStep records a step start and returns a function that records its
// completion or failure with the elapsed time.
func AuditStep(runID, step string) func(err error) {
	start := time.Now()
	Audit(AuditEvent{Type: AuditStepStart, RunID: runID, Target: step, Success: true})
	return func(err error) {
		ev := AuditEvent{
			Type:     AuditStepComplete,
			RunID:    runID,
			Target:   step,
			Success:  err == nil,
			Duration: time.Since(start),
			Err:      err,
		}
		if err != nil {
			ev.Type = AuditStepError
		}
		Audit(ev)
	}
}
