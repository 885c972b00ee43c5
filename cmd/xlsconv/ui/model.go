package ui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"xlsconv/internal/logging"
	"xlsconv/internal/notes"
	"xlsconv/internal/order"
	"xlsconv/internal/pipeline"
	"xlsconv/internal/updater"
)

// Runner runs the conversion pipeline.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// Updater checks for and installs releases.
type Updater interface {
	Check(ctx context.Context) (bool, updater.Release, error)
	Apply(ctx context.Context, rel updater.Release) (string, error)
}

// Deps wires the shell to the rest of the program.
type Deps struct {
	Runner Runner
	// Updater may be nil, which disables update checks.
	Updater      Updater
	Files        func() ([]string, error)
	Version      string
	CheckOnStart bool
	CheckTimeout time.Duration
	// NotesStyle is the glamour style for release notes. Empty follows
	// the theme.
	NotesStyle string
}

type state int

const (
	stateSelect state = iota
	stateOrder
	stateRunning
	stateDone
	stateNotes
)

type fileItem struct {
	path string
}

func (i fileItem) Title() string       { return filepath.Base(i.path) }
func (i fileItem) Description() string { return filepath.Dir(i.path) }
func (i fileItem) FilterValue() string { return filepath.Base(i.path) }

type stepStatus int

const (
	stepPending stepStatus = iota
	stepRunning
	stepDone
	stepFailed
)

type stepLine struct {
	step   pipeline.Step
	status stepStatus
	detail string
}

type filesMsg struct {
	files []string
	err   error
}

type progressMsg pipeline.Event

type runDoneMsg struct {
	res *pipeline.Result
	err error
}

type updateCheckedMsg struct {
	has    bool
	rel    updater.Release
	err    error
	manual bool
}

type updateAppliedMsg struct {
	exe string
	err error
}

// Model is the bubbletea model of the interactive shell.
type Model struct {
	deps   Deps
	ctx    context.Context
	styles Styles

	state  state
	width  int
	height int

	files   list.Model
	order   textinput.Model
	spinner spinner.Model
	notes   viewport.Model

	selected string
	orderErr string
	steps    []stepLine
	progress <-chan tea.Msg
	result   *pipeline.Result
	runErr   error

	status    string
	release   *updater.Release
	hasUpdate bool
	updating  bool
	restart   bool
}

// New creates the shell. ctx bounds pipeline runs and update requests.
func New(ctx context.Context, deps Deps) Model {
	if deps.CheckTimeout <= 0 {
		deps.CheckTimeout = 30 * time.Second
	}
	styles := DefaultStyles()

	l := list.New(nil, list.NewDefaultDelegate(), 80, 20)
	l.Title = "Input workbooks"
	l.SetShowHelp(false)
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.DisableQuitKeybindings()
	l.Styles.Title = styles.Title

	ti := textinput.New()
	ti.Placeholder = "66"
	ti.Prompt = "Order number: "
	ti.CharLimit = 6

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	return Model{
		deps:    deps,
		ctx:     ctx,
		styles:  styles,
		files:   l,
		order:   ti,
		spinner: sp,
		notes:   viewport.New(80, 20),
	}
}

// RestartRequested reports whether an update was installed and the
// program should restart once the shell exits.
func (m Model) RestartRequested() bool {
	return m.restart
}

// Init loads the file list and optionally checks for updates.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.loadFiles()}
	if m.deps.CheckOnStart && m.deps.Updater != nil {
		cmds = append(cmds, m.checkUpdate(false))
	}
	return tea.Batch(cmds...)
}

func (m Model) loadFiles() tea.Cmd {
	files := m.deps.Files
	return func() tea.Msg {
		if files == nil {
			return filesMsg{}
		}
		found, err := files()
		return filesMsg{files: found, err: err}
	}
}

func (m Model) checkUpdate(manual bool) tea.Cmd {
	u, ctx, timeout := m.deps.Updater, m.ctx, m.deps.CheckTimeout
	return func() tea.Msg {
		cctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		has, rel, err := u.Check(cctx)
		return updateCheckedMsg{has: has, rel: rel, err: err, manual: manual}
	}
}

func (m Model) applyUpdate(rel updater.Release) tea.Cmd {
	u, ctx := m.deps.Updater, m.ctx
	return func() tea.Msg {
		exe, err := u.Apply(ctx, rel)
		return updateAppliedMsg{exe: exe, err: err}
	}
}

func waitForProgress(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}

func (m Model) startRun(number string) (Model, tea.Cmd) {
	ch := make(chan tea.Msg, 16)
	m.progress = ch
	m.state = stateRunning
	m.result, m.runErr = nil, nil
	m.steps = make([]stepLine, 0, int(pipeline.StepCollect))
	for s := pipeline.StepClean; s <= pipeline.StepCollect; s++ {
		m.steps = append(m.steps, stepLine{step: s})
	}

	runner, ctx := m.deps.Runner, m.ctx
	req := pipeline.Request{
		Input:       m.selected,
		OrderNumber: number,
		Observer:    func(e pipeline.Event) { ch <- progressMsg(e) },
	}
	logging.UI("Run requested: %s, order %s", m.selected, number)
	go func() {
		defer close(ch)
		res, err := runner.Run(ctx, req)
		ch <- runDoneMsg{res: res, err: err}
	}()
	return m, tea.Batch(m.spinner.Tick, waitForProgress(ch))
}

func (m *Model) setSize(w, h int) {
	m.width, m.height = w, h
	body := h - 4
	if body < 5 {
		body = 5
	}
	m.files.SetSize(w, body)
	m.notes.Width = w
	m.notes.Height = body
	if m.release != nil {
		m.notes.SetContent(m.renderNotes(*m.release))
	}
}

func (m Model) renderNotes(rel updater.Release) string {
	style := m.deps.NotesStyle
	if style == "" {
		style = "light"
		if m.styles.Theme.IsDark {
			style = "dark"
		}
	}
	width := m.width - 4
	if width <= 0 {
		width = notes.DefaultWidth
	}
	body := notes.NewRenderer(style, width).Render(rel.Notes)
	if body == "" {
		body = m.styles.Muted.Render("No release notes.")
	}
	title := m.styles.Title.Render(fmt.Sprintf("Release %s", rel.Version))
	return title + "\n" + body
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.setSize(msg.Width, msg.Height)
		return m, nil

	case filesMsg:
		if msg.err != nil {
			m.status = m.styles.Error.Render("Could not list files: " + msg.err.Error())
			logging.UIError("List files: %v", msg.err)
		}
		items := make([]list.Item, 0, len(msg.files))
		for _, f := range msg.files {
			items = append(items, fileItem{path: f})
		}
		cmd := m.files.SetItems(items)
		return m, cmd

	case progressMsg:
		m.applyEvent(pipeline.Event(msg))
		return m, waitForProgress(m.progress)

	case runDoneMsg:
		m.state = stateDone
		m.result, m.runErr = msg.res, msg.err
		if msg.err != nil {
			logging.UIError("Run failed: %v", msg.err)
		}
		return m, nil

	case updateCheckedMsg:
		return m.handleChecked(msg), nil

	case updateAppliedMsg:
		m.updating = false
		if msg.err != nil {
			m.status = m.styles.Error.Render("Update failed: " + msg.err.Error())
			return m, nil
		}
		logging.UI("Installed update to %s", msg.exe)
		m.restart = true
		m.status = m.styles.Success.Render("Updated, restarting...")
		return m, tea.Quit

	case spinner.TickMsg:
		if m.state != stateRunning && !m.updating {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m.handleKey(msg)
	}

	return m.forward(msg)
}

// forward passes other messages to the focused component.
func (m Model) forward(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.state {
	case stateSelect:
		m.files, cmd = m.files.Update(msg)
	case stateOrder:
		m.order, cmd = m.order.Update(msg)
	case stateNotes:
		m.notes, cmd = m.notes.Update(msg)
	}
	return m, cmd
}

func (m *Model) applyEvent(e pipeline.Event) {
	for i := range m.steps {
		if m.steps[i].step != e.Step {
			continue
		}
		switch e.Kind {
		case pipeline.StepStarted:
			m.steps[i].status = stepRunning
		case pipeline.StepFinished:
			m.steps[i].status = stepDone
			m.steps[i].detail = e.Detail
		case pipeline.StepFailed:
			m.steps[i].status = stepFailed
			if e.Err != nil {
				m.steps[i].detail = e.Err.Error()
			}
		}
	}
}

func (m Model) handleChecked(msg updateCheckedMsg) Model {
	if msg.err != nil {
		logging.UIError("Update check: %v", msg.err)
		if msg.manual {
			m.status = m.styles.Warning.Render("Could not check for updates: " + msg.err.Error())
		}
		return m
	}
	m.hasUpdate = msg.has
	if !msg.has {
		if msg.manual {
			m.status = m.styles.Success.Render("You have the latest version")
		}
		return m
	}
	rel := msg.rel
	m.release = &rel
	m.notes.SetContent(m.renderNotes(rel))
	m.notes.GotoTop()
	m.status = m.styles.Info.Render(fmt.Sprintf("Version %s is available, press n for details", rel.Version))
	return m
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.state {
	case stateSelect:
		if m.files.FilterState() == list.Filtering {
			break
		}
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case "enter":
			item, ok := m.files.SelectedItem().(fileItem)
			if !ok {
				return m, nil
			}
			m.selected = item.path
			m.orderErr = ""
			m.order.SetValue("")
			m.state = stateOrder
			cmd := m.order.Focus()
			return m, cmd
		case "r":
			return m, m.loadFiles()
		case "u":
			if m.deps.Updater == nil {
				m.status = m.styles.Muted.Render("Update checks are not configured")
				return m, nil
			}
			m.status = m.styles.Muted.Render("Checking for updates...")
			return m, m.checkUpdate(true)
		case "n":
			if m.release != nil {
				m.state = stateNotes
			}
			return m, nil
		case "esc":
			return m, nil
		}

	case stateOrder:
		switch msg.String() {
		case "esc":
			m.order.Blur()
			m.state = stateSelect
			return m, nil
		case "enter":
			number := strings.TrimSpace(m.order.Value())
			if _, err := order.ParseNumber(number); err != nil {
				m.orderErr = "Order number must be a whole number"
				return m, nil
			}
			m.order.Blur()
			return m.startRun(number)
		}

	case stateRunning:
		return m, nil

	case stateDone:
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case "enter", "esc":
			m.state = stateSelect
			return m, m.loadFiles()
		}
		return m, nil

	case stateNotes:
		switch msg.String() {
		case "esc", "q":
			m.state = stateSelect
			return m, nil
		case "i":
			if !m.hasUpdate || m.updating || m.release == nil {
				return m, nil
			}
			m.updating = true
			m.status = m.styles.Muted.Render(fmt.Sprintf("Installing %s...", m.release.Version))
			return m, tea.Batch(m.spinner.Tick, m.applyUpdate(*m.release))
		}
	}
	return m.forward(msg)
}

// View renders the shell.
func (m Model) View() string {
	header := m.styles.Header.Render("xlsconv " + m.deps.Version)
	if m.hasUpdate && m.release != nil {
		header = lipgloss.JoinHorizontal(lipgloss.Center, header, " ", m.styles.Badge.Render("update "+m.release.Version.String()))
	}

	var body, keys string
	switch m.state {
	case stateSelect:
		body = m.files.View()
		keys = "enter select • / filter • r refresh • u check updates • q quit"
		if m.release != nil {
			keys = "enter select • / filter • r refresh • n release notes • q quit"
		}
	case stateOrder:
		body = m.viewOrder()
		keys = "enter run • esc back"
	case stateRunning, stateDone:
		body = m.viewRun()
		keys = "ctrl+c quit"
		if m.state == stateDone {
			keys = "enter back • q quit"
		}
	case stateNotes:
		body = m.notes.View()
		keys = "↑/↓ scroll • esc back"
		if m.hasUpdate {
			keys = "i install • ↑/↓ scroll • esc back"
		}
	}

	parts := []string{header, body}
	if m.status != "" {
		status := m.status
		if m.updating {
			status = m.spinner.View() + " " + status
		}
		parts = append(parts, status)
	}
	parts = append(parts, m.styles.Footer.Render(keys))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) viewOrder() string {
	var b strings.Builder
	b.WriteString(m.styles.Title.Render(filepath.Base(m.selected)))
	b.WriteString("\n")
	b.WriteString(m.order.View())
	if m.orderErr != "" {
		b.WriteString("\n")
		b.WriteString(m.styles.Error.Render(m.orderErr))
	}
	return m.styles.Panel.Render(b.String())
}

func (m Model) viewRun() string {
	var b strings.Builder
	b.WriteString(m.styles.Title.Render(filepath.Base(m.selected)))
	b.WriteString("\n")
	for _, s := range m.steps {
		var mark string
		switch s.status {
		case stepPending:
			mark = m.styles.Muted.Render("·")
		case stepRunning:
			mark = m.spinner.View()
		case stepDone:
			mark = m.styles.Success.Render("✓")
		case stepFailed:
			mark = m.styles.Error.Render("✗")
		}
		line := fmt.Sprintf("%s %d. %s", mark, int(s.step), s.step.Title())
		if s.detail != "" {
			line += m.styles.Muted.Render(" (" + s.detail + ")")
		}
		b.WriteString(line + "\n")
	}

	if m.state == stateDone {
		b.WriteString("\n")
		if m.runErr != nil {
			b.WriteString(m.styles.Error.Render("Failed: " + m.runErr.Error()))
		} else if m.result != nil {
			b.WriteString(m.styles.Success.Render(fmt.Sprintf("Done: %d files for order %s", len(m.result.Files), m.result.OrderID)))
			b.WriteString("\n")
			b.WriteString(m.styles.Body.Render(m.result.ResultDir))
		}
	}
	return m.styles.Panel.Render(b.String())
}
