package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"tinyimg/internal/intake"
	"tinyimg/internal/result"
)

// Session is what the UI needs from a compression session.
type Session interface {
	Submit(ctx context.Context, batch []result.File) intake.Report
	Changed() <-chan struct{}
	Entries() []result.Entry
	SaveEntry(name string) (string, error)
	SaveArchive() (string, error)
	SaveToCloud(ctx context.Context) error
}

type Options struct {
	Collect      intake.CollectOptions
	CloudEnabled bool
}

type status int

const (
	statusEmpty status = iota
	statusCompressing
	statusDone
)

type model struct {
	ctx  context.Context
	sess Session
	opts Options
	sp   spinner.Model

	st      status
	entries []result.Entry
	totals  result.Totals

	// pending paths from the command line, submitted on Init
	initial []string

	// drop area
	drop     textinput.Model
	dropping bool

	// list view
	cursor       int
	scrollOffset int

	// modal alert with intake diagnostics
	alert []string

	// last save/cloud outcome
	notice    string
	noticeErr bool
	busy      bool

	termW int
	termH int

	showHelp bool
}

func newModel(ctx context.Context, sess Session, paths []string, opts Options) model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	ti := textinput.New()
	ti.Placeholder = "/path/to/photo.jpg /path/to/folder"
	ti.Prompt = "drop > "
	ti.CharLimit = 0

	m := model{
		ctx:     ctx,
		sess:    sess,
		opts:    opts,
		sp:      sp,
		initial: paths,
		drop:    ti,
	}
	m.refresh()
	return m
}

// Run starts the interactive UI on the given session, submitting paths first
// when there are any.
func Run(ctx context.Context, sess Session, paths []string, opts Options) error {
	p := tea.NewProgram(newModel(ctx, sess, paths, opts))
	_, err := p.Run()
	return err
}

// messages
type changedMsg struct{}

type submittedMsg struct {
	report     intake.Report
	collectErr error
	found      int
}

type savedMsg struct {
	what string
	path string
	err  error
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.sp.Tick, m.waitChange()}
	if len(m.initial) > 0 {
		cmds = append(cmds, m.submitCmd(m.initial))
	}
	return tea.Batch(cmds...)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.termW, m.termH = msg.Width, msg.Height
		m.drop.Width = msg.Width - len(m.drop.Prompt) - 2
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.sp, cmd = m.sp.Update(msg)
		return m, cmd

	case changedMsg:
		m.refresh()
		return m, m.waitChange()

	case submittedMsg:
		m.refresh()
		var lines []string
		if msg.collectErr != nil {
			lines = append(lines, msg.collectErr.Error())
		}
		lines = append(lines, msg.report.Diagnostics()...)
		if msg.found == 0 && msg.collectErr == nil {
			lines = append(lines, "No image files found ("+strings.Join(intake.ImageExtensions(), ", ")+").")
		}
		m.alert = lines
		return m, nil

	case savedMsg:
		m.busy = false
		m.noticeErr = msg.err != nil
		switch {
		case msg.err != nil:
			m.notice = msg.what + " failed: " + msg.err.Error()
		case msg.path != "":
			m.notice = msg.what + " saved to " + msg.path
		default:
			m.notice = msg.what + " done"
		}
		return m, nil
	}

	if m.dropping {
		var cmd tea.Cmd
		m.drop, cmd = m.drop.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	if len(m.alert) > 0 {
		m.alert = nil
		return m, nil
	}

	if m.dropping {
		switch msg.Type {
		case tea.KeyEnter:
			paths := intake.ParseDropped(m.drop.Value())
			m.drop.Reset()
			m.drop.Blur()
			m.dropping = false
			if len(paths) == 0 {
				return m, nil
			}
			return m, m.submitCmd(paths)
		case tea.KeyEsc:
			m.drop.Reset()
			m.drop.Blur()
			m.dropping = false
			return m, nil
		}
		var cmd tea.Cmd
		m.drop, cmd = m.drop.Update(msg)
		return m, cmd
	}

	// dragging files onto the terminal pastes their paths
	if msg.Paste {
		if paths := intake.ParseDropped(string(msg.Runes)); len(paths) > 0 {
			return m, m.submitCmd(paths)
		}
		return m, nil
	}

	switch msg.String() {
	case "q", "esc":
		return m, tea.Quit
	case "?":
		m.showHelp = !m.showHelp
		return m, nil
	case "a", "o":
		m.dropping = true
		return m, m.drop.Focus()
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
			m.adjustScroll()
		}
		return m, nil
	case "down", "j":
		if m.cursor < len(m.entries)-1 {
			m.cursor++
			m.adjustScroll()
		}
		return m, nil
	case "enter", "d":
		if m.cursor < len(m.entries) && m.entries[m.cursor].Status.Terminal() && !m.busy {
			m.busy = true
			return m, m.saveEntryCmd(m.entries[m.cursor].FileName)
		}
		return m, nil
	case "z":
		if m.st == statusDone && !m.busy {
			m.busy = true
			return m, m.saveArchiveCmd()
		}
		return m, nil
	case "b":
		if m.st == statusDone && m.opts.CloudEnabled && !m.busy {
			m.busy = true
			m.notice = "Saving to Dropbox..."
			m.noticeErr = false
			return m, m.cloudCmd()
		}
		return m, nil
	}
	return m, nil
}

// refresh re-reads the session snapshot.
func (m *model) refresh() {
	m.entries = m.sess.Entries()
	m.totals = result.Summarize(m.entries)
	switch {
	case m.totals.Entries == 0:
		m.st = statusEmpty
	case m.totals.Done():
		m.st = statusDone
	default:
		m.st = statusCompressing
	}
	if m.cursor >= len(m.entries) {
		m.cursor = len(m.entries) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *model) visibleHeight() int {
	headerLines := strings.Count(m.headerText(), "\n") + 1
	h := m.termH - headerLines - 6
	if h < 3 {
		h = 3
	}
	return h
}

func (m *model) adjustScroll() {
	visible := m.visibleHeight()
	if m.cursor >= m.scrollOffset+visible {
		m.scrollOffset = m.cursor - visible + 1
	}
	if m.cursor < m.scrollOffset {
		m.scrollOffset = m.cursor
	}
}

// waitChange turns the session's change signal into a message. It is issued
// once from Init and again after each changedMsg, so at most one is pending.
// A closed channel means the session is gone and ends the wait.
func (m *model) waitChange() tea.Cmd {
	ch := m.sess.Changed()
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return changedMsg{}
	}
}

func (m *model) submitCmd(paths []string) tea.Cmd {
	ctx, sess, opts := m.ctx, m.sess, m.opts.Collect
	return func() tea.Msg {
		files, err := intake.Collect(ctx, paths, opts)
		rep := sess.Submit(ctx, files)
		return submittedMsg{report: rep, collectErr: err, found: len(files)}
	}
}

func (m *model) saveEntryCmd(name string) tea.Cmd {
	sess := m.sess
	return func() tea.Msg {
		p, err := sess.SaveEntry(name)
		return savedMsg{what: name, path: p, err: err}
	}
}

func (m *model) saveArchiveCmd() tea.Cmd {
	sess := m.sess
	return func() tea.Msg {
		p, err := sess.SaveArchive()
		return savedMsg{what: "Archive", path: p, err: err}
	}
}

func (m *model) cloudCmd() tea.Cmd {
	ctx, sess := m.ctx, m.sess
	return func() tea.Msg {
		return savedMsg{what: "Dropbox upload", err: sess.SaveToCloud(ctx)}
	}
}
