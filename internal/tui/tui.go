// Package tui provides the Bubble Tea HUD: the wheel of the selected line,
// its task list, the undo snackbar and the log browser.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fakeyudi/linewheel/internal/app"
	"github.com/fakeyudi/linewheel/internal/config"
	"github.com/fakeyudi/linewheel/internal/logstore"
	"github.com/fakeyudi/linewheel/internal/session"
)

// ── Styles ────────────

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 2)

	// Selected line
	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245")).
				Background(lipgloss.Color("235")).
				Padding(0, 1)

	tabSepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("238")).
			Background(lipgloss.Color("235"))

	sectionHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	timeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("178"))

	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	reasonStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)

	snackbarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("238")).
			Padding(0, 1)

	promptStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("205")).
			Padding(0, 2)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("245")).
			Padding(0, 1)

	selectedRowStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("237"))
)

// ── Views and input modes ─────────────────

type tabID int

const (
	tabWheel tabID = iota
	tabLogs
	tabCount
)

var tabNames = [tabCount]string{"Wheel", "Logs"}

type inputMode int

const (
	modeNormal inputMode = iota
	modeMemo
	modeSearch
)

type tickMsg time.Time

// ── Model ────────────────────

// Model is the root Bubble Tea model of the HUD.
type Model struct {
	coord    *app.Coordinator
	prompter *Prompter
	feed     *statusFeed

	status app.Status
	cfg    config.AppConfig

	activeTab tabID
	cursor    int
	mode      inputMode
	input     textinput.Model
	presetIdx int
	query     string
	logs      []session.LogEntry
	logView   viewport.Model
	prompt    *promptOpenMsg
	flash     string
	flashErr  bool

	width  int
	height int
	ready  bool
}

// New creates a HUD over coord. prompter may be nil when the coordinator
// was built without one.
func New(coord *app.Coordinator, prompter *Prompter) Model {
	ti := textinput.New()
	ti.CharLimit = 200
	m := Model{
		coord:    coord,
		prompter: prompter,
		feed:     newStatusFeed(coord),
		input:    ti,
	}
	m.refresh(coord.Status())
	return m
}

// ── Bubble Tea interface ───────────────

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.feed.next(), tick()}
	if m.prompter != nil {
		cmds = append(cmds, m.prompter.next())
	}
	return tea.Batch(cmds...)
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.initViewport()
		return m, nil

	case tickMsg:
		m.refresh(m.coord.Status())
		return m, tick()

	case statusMsg:
		m.refresh(app.Status(msg))
		if m.activeTab == tabLogs {
			m.loadLogs()
		}
		return m, m.feed.next()

	case promptOpenMsg:
		m.prompt = &msg
		return m, m.prompter.next()

	case promptClosedMsg:
		if m.prompt != nil && m.prompt.id == msg.id {
			m.prompt = nil
		}
		return m, m.prompter.next()

	case tea.KeyMsg:
		if m.prompt != nil {
			return m.updatePrompt(msg)
		}
		if m.mode != modeNormal {
			return m.updateInput(msg)
		}
		return m.updateNormal(msg)
	}
	return m, nil
}

func (m Model) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var answer, ok bool
	switch msg.String() {
	case "y", "enter":
		answer, ok = true, true
	case "n", "esc":
		answer, ok = false, true
	case "ctrl+c":
		return m, tea.Quit
	}
	if ok {
		select {
		case m.prompt.reply <- answer:
		default:
		}
		m.prompt = nil
	}
	return m, nil
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeNormal
		m.input.Blur()
		return m, nil
	case "enter":
		value := m.input.Value()
		mode := m.mode
		m.mode = modeNormal
		m.input.Blur()
		if mode == modeMemo {
			_, err := m.coord.UpdateMemo(m.status.CurrentLine, value)
			m.report("memo saved", err)
			m.refresh(m.coord.Status())
		} else {
			m.query = value
			m.loadLogs()
		}
		return m, nil
	case "tab":
		if m.mode == modeMemo {
			if presets := m.cfg.Lines[m.status.CurrentLine].MemoPresets; len(presets) > 0 {
				m.input.SetValue(presets[m.presetIdx%len(presets)])
				m.input.CursorEnd()
				m.presetIdx++
			}
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	m.flash = ""
	switch key {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "tab":
		m.activeTab = (m.activeTab + 1) % tabCount
		if m.activeTab == tabLogs {
			m.loadLogs()
		}
		return m, nil
	}

	if m.activeTab == tabLogs {
		switch key {
		case "/":
			m.mode = modeSearch
			m.input.Placeholder = "search task, line, reason or memo"
			m.input.SetValue(m.query)
			m.input.CursorEnd()
			cmd := m.input.Focus()
			return m, cmd
		case "r":
			m.loadLogs()
			return m, nil
		}
		var cmd tea.Cmd
		m.logView, cmd = m.logView.Update(msg)
		return m, cmd
	}

	tasks := m.cfg.Tasks(m.status.CurrentLine)
	switch key {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(tasks)-1 {
			m.cursor++
		}
	case "left", "h", "right", "l":
		m.stepLine(key == "right" || key == "l")
	case "enter":
		if m.cursor < len(tasks) {
			_, err := m.coord.Start(m.status.CurrentLine, tasks[m.cursor], "")
			m.report("started "+tasks[m.cursor], err)
		}
	case "c":
		action, err := m.coord.CenterClick()
		m.report(centerText(action), err)
	case "u":
		u, err := m.coord.Undo()
		if err == nil && u == nil {
			m.report("nothing to undo", nil)
		} else {
			m.report("undone", err)
		}
	case "m":
		m.mode = modeMemo
		m.presetIdx = 0
		m.input.Placeholder = "memo (tab cycles presets)"
		line, _ := m.status.Line(m.status.CurrentLine)
		m.input.SetValue(line.Memo)
		m.input.CursorEnd()
		cmd := m.input.Focus()
		return m, cmd
	case "s":
		_, err := m.coord.Shutdown(m.status.CurrentLine)
		m.report("started "+session.TaskShutdown, err)
	case "E":
		entries, err := m.coord.EndOfDay()
		m.report(fmt.Sprintf("end of day: %d line(s) stopped", len(entries)), err)
	default:
		if err := m.coord.HandleKey(key); err != nil {
			m.report("", err)
		}
	}
	m.refresh(m.coord.Status())
	return m, nil
}

func (m *Model) stepLine(forward bool) {
	ids := m.cfg.LineIDs()
	if len(ids) == 0 {
		return
	}
	i := 0
	for j, id := range ids {
		if id == m.status.CurrentLine {
			i = j
		}
	}
	if forward {
		i = (i + 1) % len(ids)
	} else {
		i = (i - 1 + len(ids)) % len(ids)
	}
	m.report("", m.coord.SelectLine(ids[i]))
}

func centerText(a app.CenterAction) string {
	switch a {
	case app.CenterStopped:
		return "stopped"
	case app.CenterResumed:
		return "resumed last task"
	case app.CenterStarted:
		return "started default task"
	case app.CenterOpenLineRing:
		return "pick a line with 1-6 or ←/→"
	}
	return ""
}

func (m *Model) report(ok string, err error) {
	if err != nil {
		m.flash, m.flashErr = err.Error(), true
		return
	}
	m.flash, m.flashErr = ok, false
}

// refresh adopts st and keeps the task cursor on the running task when the
// selected line changes.
func (m *Model) refresh(st app.Status) {
	prev := m.status.CurrentLine
	m.status = st
	m.cfg = m.coord.Config()
	tasks := m.cfg.Tasks(st.CurrentLine)
	if prev != st.CurrentLine || m.cursor >= len(tasks) {
		m.cursor = 0
		if line, ok := st.Line(st.CurrentLine); ok && line.Running {
			for i, t := range tasks {
				if t == line.Task {
					m.cursor = i
				}
			}
		}
	}
}

func (m *Model) loadLogs() {
	entries, err := m.coord.SearchLogs(m.query, logstore.SearchLimit)
	if err != nil {
		m.report("", err)
		return
	}
	m.logs = entries
	m.logView.SetContent(m.renderLogs())
	m.logView.GotoTop()
}

// ── Viewport management ───────────────────────────────────────────────────────

func (m *Model) initViewport() {
	// title(1) + tabRow(1) + input(1) + statusBar(1)
	h := m.height - 4
	if h < 1 {
		h = 1
	}
	m.logView = viewport.New(m.width, h)
	m.logView.SetContent(m.renderLogs())
}

func (m Model) View() string {
	if !m.ready {
		return "Loading…"
	}

	title := titleStyle.Width(m.width).Render(
		"  linewheel  " + m.status.Now.Format("15:04:05") + "  " + tabNames[m.activeTab])

	var body string
	if m.activeTab == tabLogs {
		body = m.logView.View()
	} else {
		body = m.renderWheel()
	}

	rows := []string{title, m.renderTabRow(), body}
	if m.status.Undo != nil {
		rows = append(rows, m.renderSnackbar())
	}
	if m.prompt != nil {
		rows = append(rows, promptStyle.Render(m.prompt.message+"\n\n"+dimStyle.Render("y yes  n no")))
	}
	if m.mode != modeNormal {
		rows = append(rows, "  "+m.input.View())
	}
	rows = append(rows, m.renderStatusBar())
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

// ── Renderers ─────────────────────────────────────────────────────────────

func (m Model) renderTabRow() string {
	var parts []string
	for i, ls := range m.status.Lines {
		label := fmt.Sprintf(" %d %s ", i+1, ls.Name)
		if ls.Running {
			label += "● " + ls.Elapsed + " "
		}
		if ls.Line == m.status.CurrentLine {
			parts = append(parts, activeTabStyle.Render(label))
		} else {
			parts = append(parts, inactiveTabStyle.Render(label))
		}
		if i < len(m.status.Lines)-1 {
			parts = append(parts, tabSepStyle.Render("│"))
		}
	}
	return lipgloss.NewStyle().
		Background(lipgloss.Color("235")).
		Width(m.width).
		Render(lipgloss.JoinHorizontal(lipgloss.Top, parts...))
}

func heading(s string) string {
	return "\n" + sectionHeader.Render("  "+s) + "\n\n"
}

func (m Model) renderWheel() string {
	var sb strings.Builder
	line, _ := m.status.Line(m.status.CurrentLine)
	sb.WriteString(heading(fmt.Sprintf("%s (%s)", line.Name, line.Line)))

	row := func(label, value string) {
		sb.WriteString(labelStyle.Render(fmt.Sprintf("  %-10s", label)) + "  " + value + "\n")
	}
	if line.Running {
		row("Running:", runningStyle.Render(line.Task)+"  "+timeStyle.Render(line.Elapsed))
		row("Since:", line.StartedAt.Format("15:04:05"))
	} else {
		row("Idle:", dimStyle.Render("no task running"))
	}
	if line.Memo != "" {
		row("Memo:", line.Memo)
	}
	if le := line.LastEnded; le != nil {
		row("Last:", le.Task+dimStyle.Render(" ended "+le.EndedAt.Format("15:04")))
	}

	sb.WriteString(heading("Tasks"))
	for i, t := range m.cfg.Tasks(m.status.CurrentLine) {
		marker := "   "
		if line.Running && t == line.Task {
			marker = runningStyle.Render(" ● ")
		}
		text := fmt.Sprintf("%s%2d  %s", marker, i+1, t)
		if i == m.cursor {
			text = selectedRowStyle.Width(max(m.width-2, 1)).Render(text)
		}
		sb.WriteString(text + "\n")
	}
	return sb.String()
}

func (m Model) renderSnackbar() string {
	u := m.status.Undo
	left := u.ExpiresAt.Sub(m.status.Now).Round(time.Second)
	if left < 0 {
		left = 0
	}
	what := "stopped"
	if u.Kind == session.UndoAutoStop {
		what = "switched from"
	}
	text := fmt.Sprintf("↶ %s %s · %s (%s)  u undo · %s",
		what, u.Log.LineName, u.Log.Task, session.FormatDuration(u.Log.Duration()), left)
	return snackbarStyle.Render(text)
}

func (m Model) renderLogs() string {
	var sb strings.Builder
	title := fmt.Sprintf("Records (%d)", len(m.logs))
	if m.query != "" {
		title = fmt.Sprintf("Records matching %q (%d)", m.query, len(m.logs))
	}
	sb.WriteString(heading(title))
	if len(m.logs) == 0 {
		sb.WriteString(dimStyle.Render("  (none)") + "\n")
		return sb.String()
	}
	for _, e := range m.logs {
		ts := timeStyle.Render(e.StartedAt.Format("01/02 15:04") + "-" + e.EndedAt.Format("15:04"))
		text := fmt.Sprintf("  %s  %-8s  %s  %s", ts, e.LineName, e.Task, dimStyle.Render(session.FormatDuration(e.Duration())))
		if e.Reason != "" {
			text += "  " + reasonStyle.Render(e.Reason)
		}
		if e.Memo != "" {
			text += "  " + e.Memo
		}
		sb.WriteString(text + "\n")
	}
	return sb.String()
}

func (m Model) renderStatusBar() string {
	hint := "  1-6 line  ↑/↓ task  enter start  space stop  c center  u undo  m memo  s 立ち下げ  E 終業  tab logs  q quit"
	switch {
	case m.prompt != nil:
		hint = "  y confirm  n decline"
	case m.mode != modeNormal:
		hint = "  enter save  esc cancel"
	case m.activeTab == tabLogs:
		hint = "  / search  r refresh  ↑/↓ scroll  tab wheel  q quit"
	}
	if m.flash != "" {
		if m.flashErr {
			hint = "  " + errorStyle.Render(m.flash)
		} else {
			hint = "  " + m.flash
		}
	}
	return statusBarStyle.Width(m.width).Render(hint)
}

// Run starts the HUD and blocks until the user quits.
func Run(coord *app.Coordinator, prompter *Prompter) error {
	m := New(coord, prompter)
	defer m.feed.unsubscribe()
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
