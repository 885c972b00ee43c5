// Package pipeline runs the three conversion steps on one input workbook
// and files the resulting text files under results/<OrderID>.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"xlsconv/internal/config"
	"xlsconv/internal/converter"
	"xlsconv/internal/history"
	"xlsconv/internal/logging"
	"xlsconv/internal/order"
	"xlsconv/internal/processor"
	"xlsconv/internal/sheet"
	"xlsconv/internal/sorter"
)

// Step identifies a pipeline step.
type Step int

const (
	StepClean Step = iota + 1
	StepSort
	StepConvert
	StepCollect
)

func (s Step) String() string {
	switch s {
	case StepClean:
		return "clean"
	case StepSort:
		return "sort"
	case StepConvert:
		return "convert"
	case StepCollect:
		return "collect"
	}
	return fmt.Sprintf("step%d", int(s))
}

// Title is the operator-facing step description.
func (s Step) Title() string {
	switch s {
	case StepClean:
		return "Removing empty rows and merging duplicates"
	case StepSort:
		return "Sorting by material thickness"
	case StepConvert:
		return "Converting sheets to TXT"
	case StepCollect:
		return "Moving files to the results folder"
	}
	return s.String()
}

// EventKind tells an observer what happened.
type EventKind int

const (
	StepStarted EventKind = iota
	StepFinished
	StepFailed
)

// Event is delivered to the Observer as the run progresses.
type Event struct {
	Kind   EventKind
	Step   Step
	Detail string
	Err    error
}

// Observer receives progress events. It is called synchronously.
type Observer func(Event)

// Request describes one run.
type Request struct {
	Input string
	// OrderNumber is the operator's input, e.g. "66".
	OrderNumber string
	Observer    Observer
}

// Result describes a successful run.
type Result struct {
	RunID         string
	OrderID       string
	Input         string
	ProcessedPath string
	SortedPath    string
	ResultDir     string
	Files         []string
	Sheets        []string
	Clean         processor.Stats
	Report        sorter.Report
	Duration      time.Duration
}

// Pipeline holds the resolved configuration for running steps 1-3.
type Pipeline struct {
	resultsDir string
	columns    processor.Options
	nesting    sorter.Options
	workers    int
	store      *history.Store
	now        func() time.Time
}

// New resolves cfg. store may be nil to skip history.
func New(cfg *config.Config, store *history.Store) (*Pipeline, error) {
	columns, err := processor.OptionsFromConfig(cfg.Columns)
	if err != nil {
		return nil, err
	}
	nesting, err := sorter.OptionsFromConfig(cfg.Nesting)
	if err != nil {
		return nil, err
	}
	results, err := cfg.ResolveResultsDir()
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		resultsDir: results,
		columns:    columns,
		nesting:    nesting,
		workers:    cfg.Convert.Workers,
		store:      store,
		now:        time.Now,
	}, nil
}

// ResultsDir returns the directory receiving one folder per order.
func (p *Pipeline) ResultsDir() string {
	return p.resultsDir
}

// ValidateInput checks that path is an existing workbook.
func ValidateInput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("input file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("input %s is a directory", path)
	}
	if !sheet.IsWorkbook(path) {
		return fmt.Errorf("%s: %w", filepath.Base(path), sheet.ErrUnsupportedFormat)
	}
	return nil
}

type runState struct {
	req   Request
	res   *Result
	run   *history.Run
	start time.Time
}

func (st *runState) emit(e Event) {
	if st.req.Observer != nil {
		st.req.Observer(e)
	}
}

// Run validates the request and runs clean, sort and convert, then moves
// the text files to <results>/<OrderID>. A failing step aborts the run and
// is returned as "step N (name): cause".
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	if err := ValidateInput(req.Input); err != nil {
		return nil, err
	}
	n, err := order.ParseNumber(req.OrderNumber)
	if err != nil {
		return nil, err
	}

	now := p.now()
	st := &runState{
		req:   req,
		start: now,
		res: &Result{
			RunID:   uuid.New().String(),
			OrderID: order.Format(n, now),
			Input:   req.Input,
		},
	}
	st.run = &history.Run{
		ID:        st.res.RunID,
		Input:     req.Input,
		OrderID:   st.res.OrderID,
		Status:    history.StatusRunning,
		StartedAt: now,
	}
	p.record(st.run)

	logging.Pipeline("=== Run %s: %s, OrderID %s ===", st.res.RunID, filepath.Base(req.Input), st.res.OrderID)
	logging.Audit(logging.AuditEvent{Type: logging.AuditRunStart, RunID: st.res.RunID, Target: req.Input, Success: true,
		Fields: map[string]interface{}{"order": st.res.OrderID}})

	steps := []struct {
		step Step
		fn   func(context.Context, *runState) (string, error)
	}{
		{StepClean, p.clean},
		{StepSort, p.sort},
		{StepConvert, p.convert},
		{StepCollect, p.collect},
	}
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return nil, p.fail(st, s.step, err)
		}
		st.emit(Event{Kind: StepStarted, Step: s.step})
		logging.Pipeline("Step %d: %s", int(s.step), s.step.Title())
		done := logging.AuditStep(st.res.RunID, s.step.String())
		detail, err := s.fn(ctx, st)
		done(err)
		if err != nil {
			return nil, p.fail(st, s.step, err)
		}
		logging.PipelineDebug("Step %s: %s", s.step, detail)
		st.emit(Event{Kind: StepFinished, Step: s.step, Detail: detail})
	}

	st.res.Duration = p.now().Sub(st.start)
	st.run.Status = history.StatusSuccess
	st.run.FinishedAt = st.start.Add(st.res.Duration)
	st.run.QuantityIn = st.res.Clean.QuantityIn
	st.run.QuantityOut = st.res.Report.Grouped + st.res.Report.Unmatched
	st.run.ResultDir = st.res.ResultDir
	st.run.Files = st.res.Files
	p.record(st.run)

	logging.Audit(logging.AuditEvent{Type: logging.AuditRunComplete, RunID: st.res.RunID, Target: st.res.ResultDir,
		Success: true, Duration: st.res.Duration, Fields: map[string]interface{}{"files": len(st.res.Files)}})
	logging.Pipeline("=== Run %s done: %d files in %s ===", st.res.RunID, len(st.res.Files), st.res.ResultDir)
	return st.res, nil
}

func (p *Pipeline) fail(st *runState, step Step, cause error) error {
	err := fmt.Errorf("step %d (%s): %w", int(step), step, cause)
	st.emit(Event{Kind: StepFailed, Step: step, Err: err})

	st.run.Status = history.StatusFailed
	st.run.FinishedAt = p.now()
	st.run.Error = err.Error()
	p.record(st.run)

	logging.PipelineError("Run %s failed: %v", st.res.RunID, err)
	logging.Audit(logging.AuditEvent{Type: logging.AuditRunError, RunID: st.res.RunID, Target: st.req.Input, Err: err})
	return err
}

func (p *Pipeline) record(r *history.Run) {
	if p.store == nil {
		return
	}
	if err := p.store.Record(r); err != nil {
		logging.PipelineError("History not updated: %v", err)
	}
}

func (p *Pipeline) clean(_ context.Context, st *runState) (string, error) {
	t, err := sheet.Read(st.req.Input)
	if err != nil {
		return "", err
	}
	logging.Audit(logging.AuditEvent{Type: logging.AuditFileRead, RunID: st.res.RunID, Target: st.req.Input, Success: true,
		Fields: map[string]interface{}{"rows": t.Len()}})

	out, stats, err := processor.Process(t, p.columns)
	if err != nil {
		return "", err
	}
	path, err := processor.Save(out, st.req.Input, p.columns)
	if err != nil {
		return "", err
	}
	st.res.Clean = stats
	st.res.ProcessedPath = path
	logging.Audit(logging.AuditEvent{Type: logging.AuditFileWrite, RunID: st.res.RunID, Target: path, Success: true})
	return stats.String(), nil
}

func (p *Pipeline) sort(_ context.Context, st *runState) (string, error) {
	t, err := sheet.Read(st.res.ProcessedPath)
	if err != nil {
		return "", err
	}
	path, res, err := sorter.Sort(t, st.res.OrderID, filepath.Dir(st.res.ProcessedPath), st.start, p.nesting)
	if err != nil {
		return "", err
	}
	st.res.SortedPath = path
	st.res.Report = res.Report
	for _, g := range res.Groups {
		st.res.Sheets = append(st.res.Sheets, g.Name)
	}
	if !res.Report.Balanced() {
		logging.PipelineError("Quantity mismatch after sorting: %s", res.Report)
	}
	logging.Audit(logging.AuditEvent{Type: logging.AuditFileWrite, RunID: st.res.RunID, Target: path, Success: true,
		Fields: map[string]interface{}{"sheets": len(res.Groups)}})
	return res.Report.String(), nil
}

func (p *Pipeline) convert(ctx context.Context, st *runState) (string, error) {
	files, err := converter.ConvertAll(ctx, st.res.SortedPath, filepath.Dir(st.res.SortedPath), converter.Options{
		Workers: p.workers,
		OrderID: st.res.OrderID,
	})
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", fmt.Errorf("no text files produced")
	}
	st.res.Files = files
	return fmt.Sprintf("%d files", len(files)), nil
}

func (p *Pipeline) collect(_ context.Context, st *runState) (string, error) {
	dir := filepath.Join(p.resultsDir, st.res.OrderID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create results folder: %w", err)
	}

	moved := make([]string, 0, len(st.res.Files))
	for _, src := range st.res.Files {
		dst := filepath.Join(dir, filepath.Base(src))
		if err := moveFile(src, dst); err != nil {
			return "", err
		}
		logging.Audit(logging.AuditEvent{Type: logging.AuditFileMove, RunID: st.res.RunID, Target: dst, Success: true,
			Fields: map[string]interface{}{"from": src}})
		moved = append(moved, dst)
	}
	st.res.ResultDir = dir
	st.res.Files = moved
	return dir, nil
}
