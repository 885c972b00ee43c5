package ui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xlsconv/internal/pipeline"
	"xlsconv/internal/updater"
)

type fakeRunner struct {
	req pipeline.Request
	err error
}

func (f *fakeRunner) Run(_ context.Context, req pipeline.Request) (*pipeline.Result, error) {
	f.req = req
	for s := pipeline.StepClean; s <= pipeline.StepCollect; s++ {
		req.Observer(pipeline.Event{Kind: pipeline.StepStarted, Step: s})
		if f.err != nil {
			req.Observer(pipeline.Event{Kind: pipeline.StepFailed, Step: s, Err: f.err})
			return nil, f.err
		}
		req.Observer(pipeline.Event{Kind: pipeline.StepFinished, Step: s, Detail: "ok"})
	}
	return &pipeline.Result{OrderID: "25-066", ResultDir: "/results/25-066", Files: []string{"a.txt", "b.txt"}}, nil
}

type fakeUpdater struct {
	has     bool
	rel     updater.Release
	err     error
	applied []updater.Release
}

func (f *fakeUpdater) Check(context.Context) (bool, updater.Release, error) {
	return f.has, f.rel, f.err
}

func (f *fakeUpdater) Apply(_ context.Context, rel updater.Release) (string, error) {
	f.applied = append(f.applied, rel)
	return "/opt/xlsconv", nil
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok)
	return nm, cmd
}

func typeText(t *testing.T, m Model, s string) Model {
	t.Helper()
	for _, r := range s {
		m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

func newTestModel(t *testing.T, runner Runner, upd Updater) Model {
	t.Helper()
	m := New(context.Background(), Deps{
		Runner:     runner,
		Updater:    upd,
		Files:      func() ([]string, error) { return []string{"/in/66_bom.xlsx", "/in/67_bom.xls"}, nil },
		Version:    "1.2.0",
		NotesStyle: "notty",
	})
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})
	m, _ = update(t, m, m.loadFiles()())
	return m
}

// drain feeds pipeline progress into the model until the run finishes.
func drain(t *testing.T, m Model) Model {
	t.Helper()
	for m.state == stateRunning {
		msg, ok := <-m.progress
		require.True(t, ok, "progress closed before the run finished")
		m, _ = update(t, m, msg)
	}
	return m
}

// ===== FILE SELECTION =====

func TestFilesListed(t *testing.T) {
	m := newTestModel(t, &fakeRunner{}, nil)
	assert.Len(t, m.files.Items(), 2)
	assert.Contains(t, m.View(), "66_bom.xlsx")
	assert.Contains(t, m.View(), "xlsconv 1.2.0")
}

func TestFilesError(t *testing.T) {
	m := New(context.Background(), Deps{Files: func() ([]string, error) { return nil, errors.New("denied") }})
	m, _ = update(t, m, m.loadFiles()())
	assert.Contains(t, m.View(), "Could not list files: denied")
}

// ===== RUN =====

func TestRunFromShell(t *testing.T) {
	runner := &fakeRunner{}
	m := newTestModel(t, runner, nil)

	m, cmd := update(t, m, key("enter"))
	require.Equal(t, stateOrder, m.state)
	assert.NotNil(t, cmd)
	assert.Equal(t, "/in/66_bom.xlsx", m.selected)

	m = typeText(t, m, "66")
	m, _ = update(t, m, key("enter"))
	require.Equal(t, stateRunning, m.state)

	m = drain(t, m)
	assert.Equal(t, stateDone, m.state)
	assert.Equal(t, "66", runner.req.OrderNumber)
	assert.Equal(t, "/in/66_bom.xlsx", runner.req.Input)
	for _, s := range m.steps {
		assert.Equal(t, stepDone, s.status, s.step.String())
	}
	view := m.View()
	assert.Contains(t, view, "Done: 2 files for order 25-066")
	assert.Contains(t, view, "/results/25-066")

	m, _ = update(t, m, key("enter"))
	assert.Equal(t, stateSelect, m.state)
}

func TestRunRejectsBadOrderNumber(t *testing.T) {
	m := newTestModel(t, &fakeRunner{}, nil)
	m, _ = update(t, m, key("enter"))
	m = typeText(t, m, "6a")
	m, _ = update(t, m, key("enter"))

	assert.Equal(t, stateOrder, m.state)
	assert.Contains(t, m.View(), "Order number must be a whole number")

	m, _ = update(t, m, key("esc"))
	assert.Equal(t, stateSelect, m.state)
}

func TestRunFailureShown(t *testing.T) {
	m := newTestModel(t, &fakeRunner{err: errors.New("step 1 (clean): no rows")}, nil)
	m, _ = update(t, m, key("enter"))
	m = typeText(t, m, "7")
	m, _ = update(t, m, key("enter"))
	m = drain(t, m)

	assert.Equal(t, stepFailed, m.steps[0].status)
	assert.Equal(t, stepPending, m.steps[1].status)
	assert.Contains(t, m.View(), "Failed: step 1 (clean): no rows")
}

// ===== UPDATES =====

func TestCheckForUpdate(t *testing.T) {
	upd := &fakeUpdater{has: true, rel: updater.Release{
		Version: updater.MustParseVersion("1.3.0"),
		Notes:   "## Fixes\n\n- faster sorting",
	}}
	m := newTestModel(t, &fakeRunner{}, upd)

	m, cmd := update(t, m, key("u"))
	require.NotNil(t, cmd)
	m, _ = update(t, m, cmd())

	assert.True(t, m.hasUpdate)
	assert.Contains(t, m.View(), "Version 1.3.0 is available")
	assert.Contains(t, m.View(), "update 1.3.0")

	m, _ = update(t, m, key("n"))
	require.Equal(t, stateNotes, m.state)
	assert.Contains(t, m.View(), "faster sorting")

	m, cmd = update(t, m, key("i"))
	require.NotNil(t, cmd)
	assert.True(t, m.updating)

	m, cmd = update(t, m, updateAppliedMsg{exe: "/opt/xlsconv"})
	assert.True(t, m.RestartRequested())
	assert.NotNil(t, cmd)
}

func TestCheckUpToDateAndFailures(t *testing.T) {
	upd := &fakeUpdater{}
	m := newTestModel(t, &fakeRunner{}, upd)

	m, cmd := update(t, m, key("u"))
	m, _ = update(t, m, cmd())
	assert.Contains(t, m.View(), "You have the latest version")

	upd.err = errors.New("offline")
	m, cmd = update(t, m, key("u"))
	m, _ = update(t, m, cmd())
	assert.Contains(t, m.View(), "Could not check for updates: offline")
	assert.False(t, m.hasUpdate)

	// Startup checks stay quiet on failure.
	m, _ = update(t, m, updateCheckedMsg{err: errors.New("offline")})
	assert.Equal(t, stateSelect, m.state)
}

func TestUpdateDisabled(t *testing.T) {
	m := newTestModel(t, &fakeRunner{}, nil)
	m, cmd := update(t, m, key("u"))
	assert.Nil(t, cmd)
	assert.Contains(t, m.View(), "Update checks are not configured")
}

func TestApplyFailureKeepsShell(t *testing.T) {
	m := newTestModel(t, &fakeRunner{}, nil)
	m, cmd := update(t, m, updateAppliedMsg{err: updater.ErrChecksumMismatch})
	assert.Nil(t, cmd)
	assert.False(t, m.RestartRequested())
	assert.Contains(t, m.View(), "Update failed: checksum mismatch")
}

func TestQuit(t *testing.T) {
	m := newTestModel(t, &fakeRunner{}, nil)
	_, cmd := update(t, m, key("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())

	_, cmd = update(t, m, key("ctrl+c"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}
