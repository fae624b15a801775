package tui

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go-watchdog/internal/models"
	"go-watchdog/internal/scanner"
)

const (
	refreshEvery  = time.Second
	storeTimeout  = 3 * time.Second
	uptimeRows    = 50
	historyRows   = 30
	timeLayout    = "2006-01-02 15:04:05"
	clockLayout   = "15:04:05"
	tabWatchdogs  = 0
	tabUptime     = 1
	tabLogs       = 2
	tabCount      = 3
	footerDefault = "\n[Space] Enable/Disable  [Enter] History  [d] Delete  [r] Refresh  [Tab] Switch View  [q] Quit"
)

var (
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"})
	specialStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"})
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#F0E442", Dark: "#F0E442"})
	dangerStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#F25D94", Dark: "#F25D94"})
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Bold(true)

	activeTab   = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, true, false).BorderForeground(lipgloss.Color("#7D56F4")).Foreground(lipgloss.Color("#7D56F4")).Bold(true).Padding(0, 1)
	inactiveTab = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.AdaptiveColor{Light: "#AAA", Dark: "#555"})

	colID      = lipgloss.NewStyle().Width(5)
	colName    = lipgloss.NewStyle().Width(20)
	colMode    = lipgloss.NewStyle().Width(9)
	colEnabled = lipgloss.NewStyle().Width(9)
	colStatus  = lipgloss.NewStyle().Width(9)
	colAlert   = lipgloss.NewStyle().Width(11)
)

// Store is what the dashboard reads and edits.
type Store interface {
	ListWatchdogs(ctx context.Context) ([]models.Watchdog, error)
	SetWatchdogEnabled(ctx context.Context, id int, enabled bool) error
	DeleteWatchdog(ctx context.Context, id int) error
	RecentLogRows(ctx context.Context, watchdogID, limit int) ([]models.LogRow, error)
	RecentSelfLogRows(ctx context.Context, limit int) ([]models.SelfLogRow, error)
}

// Engine is the live scanner state.
type Engine interface {
	Latest() (scanner.Report, bool)
	Counter(watchdogID int) (failures int, notified bool, ok bool)
}

type Journal interface {
	Lines() []string
}

type Deps struct {
	Store   Store
	Engine  Engine
	Journal Journal
}

type row struct {
	watchdog models.Watchdog
	state    *models.WatchdogState
	failures int
	notified bool
	counting bool
}

type sessionState int

const (
	stateDashboard sessionState = iota
	stateHistory
)

type tickMsg time.Time

type Model struct {
	deps Deps

	state      sessionState
	currentTab int

	cursor       int
	tableOffset  int
	maxTableRows int
	errorMsg     string

	rows      []row
	report    scanner.Report
	hasReport bool

	logViewport     viewport.Model
	uptimeViewport  viewport.Model
	historyViewport viewport.Model
	historyTitle    string
}

func InitialModel(deps Deps) Model {
	vpLogs := viewport.New(100, 20)
	vpLogs.SetContent("Waiting for logs...")

	m := Model{
		deps:            deps,
		state:           stateDashboard,
		logViewport:     vpLogs,
		uptimeViewport:  viewport.New(100, 20),
		historyViewport: viewport.New(100, 20),
		maxTableRows:    10,
	}
	m.refreshData()
	return m
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(refreshEvery, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		headerHeight := 4
		footerHeight := 2
		m.maxTableRows = max(msg.Height-headerHeight-footerHeight-3, 1)

		for _, vp := range []*viewport.Model{&m.logViewport, &m.uptimeViewport, &m.historyViewport} {
			vp.Width = msg.Width
			vp.Height = max(msg.Height-6, 1)
		}

	case tickMsg:
		m.refreshData()
		return m, tick()

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

		if m.state == stateHistory {
			switch msg.String() {
			case "esc", "q", "enter":
				m.state = stateDashboard
			default:
				m.historyViewport, cmd = m.historyViewport.Update(msg)
			}
			return m, cmd
		}

		switch msg.String() {
		case "q":
			return m, tea.Quit
		case "tab":
			m.switchTab(m.currentTab + 1)
		case "shift+tab":
			m.switchTab(m.currentTab + tabCount - 1)
		case "r":
			m.errorMsg = ""
			m.refreshData()
		case "pgup", "pgdown":
			if vp := m.scrollable(); vp != nil {
				*vp, cmd = vp.Update(msg)
				return m, cmd
			}
		case "up", "k":
			if vp := m.scrollable(); vp != nil {
				vp.LineUp(1)
			} else if m.cursor > 0 {
				m.cursor--
				if m.cursor < m.tableOffset {
					m.tableOffset = m.cursor
				}
			}
		case "down", "j":
			if vp := m.scrollable(); vp != nil {
				vp.LineDown(1)
			} else if m.cursor < len(m.rows)-1 {
				m.cursor++
				if m.cursor >= m.tableOffset+m.maxTableRows {
					m.tableOffset++
				}
			}
		case " ":
			if w, ok := m.selected(); ok {
				m.setError(storeCall(func(ctx context.Context) error {
					return m.deps.Store.SetWatchdogEnabled(ctx, w.ID, !w.Enabled)
				}))
				m.refreshData()
			}
		case "d", "backspace":
			if w, ok := m.selected(); ok {
				m.setError(storeCall(func(ctx context.Context) error {
					return m.deps.Store.DeleteWatchdog(ctx, w.ID)
				}))
				if m.cursor >= len(m.rows)-1 && m.cursor > 0 {
					m.cursor--
				}
				if m.cursor < m.tableOffset {
					m.tableOffset = m.cursor
				}
				m.refreshData()
			}
		case "enter":
			if w, ok := m.selected(); ok {
				m.openHistory(w)
			}
		}
	}
	return m, cmd
}

func (m *Model) switchTab(tab int) {
	m.currentTab = tab % tabCount
	m.cursor = 0
	m.tableOffset = 0
}

// scrollable returns the viewport of the current tab, or nil for the table.
func (m *Model) scrollable() *viewport.Model {
	switch m.currentTab {
	case tabUptime:
		return &m.uptimeViewport
	case tabLogs:
		return &m.logViewport
	}
	return nil
}

func (m *Model) selected() (models.Watchdog, bool) {
	if m.currentTab != tabWatchdogs || m.cursor >= len(m.rows) {
		return models.Watchdog{}, false
	}
	return m.rows[m.cursor].watchdog, true
}

func storeCall(fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	return fn(ctx)
}

func (m *Model) setError(err error) {
	if err != nil {
		m.errorMsg = err.Error()
		return
	}
	m.errorMsg = ""
}

func (m *Model) refreshData() {
	var watchdogs []models.Watchdog
	err := storeCall(func(ctx context.Context) error {
		var err error
		watchdogs, err = m.deps.Store.ListWatchdogs(ctx)
		return err
	})
	if err != nil {
		m.errorMsg = err.Error()
		return
	}

	m.report, m.hasReport = m.deps.Engine.Latest()
	states := make(map[int]models.WatchdogState, len(m.report.States))
	for _, s := range m.report.States {
		states[s.WatchdogID] = s
	}

	sort.Slice(watchdogs, func(i, j int) bool { return watchdogs[i].ID < watchdogs[j].ID })
	rows := make([]row, 0, len(watchdogs))
	for _, w := range watchdogs {
		r := row{watchdog: w}
		if s, ok := states[w.ID]; ok && w.Enabled {
			r.state = &s
		}
		r.failures, r.notified, r.counting = m.deps.Engine.Counter(w.ID)
		rows = append(rows, r)
	}
	m.rows = rows
	if m.cursor > len(m.rows)-1 {
		m.cursor = max(len(m.rows)-1, 0)
	}

	var selfLogs []models.SelfLogRow
	err = storeCall(func(ctx context.Context) error {
		var err error
		selfLogs, err = m.deps.Store.RecentSelfLogRows(ctx, uptimeRows)
		return err
	})
	if err != nil {
		m.uptimeViewport.SetContent(dangerStyle.Render("Error: " + err.Error()))
	} else {
		m.uptimeViewport.SetContent(renderUptime(selfLogs, time.Now()))
	}

	if m.deps.Journal != nil {
		if lines := m.deps.Journal.Lines(); len(lines) > 0 {
			m.logViewport.SetContent(strings.Join(lines, "\n"))
		}
	}
}

func (m *Model) openHistory(w models.Watchdog) {
	var logs []models.LogRow
	err := storeCall(func(ctx context.Context) error {
		var err error
		logs, err = m.deps.Store.RecentLogRows(ctx, w.ID, historyRows)
		return err
	})
	if err != nil {
		m.errorMsg = err.Error()
		return
	}

	var b strings.Builder
	if len(logs) == 0 {
		b.WriteString("No history yet.")
	}
	for _, l := range logs {
		fmt.Fprintf(&b, "%s  %s - %s  x%-5d %s\n",
			statusLabel(l.Status),
			l.TimestampStart.Format(timeLayout),
			l.TimestampStop.Format(clockLayout),
			l.OccurrenceCount,
			l.Note)
	}
	m.historyTitle = fmt.Sprintf("History of #%d %s", w.ID, w.Name)
	m.historyViewport.SetContent(b.String())
	m.historyViewport.GotoTop()
	m.state = stateHistory
}

// renderUptime lists the scanner's own run intervals, newest first, with
// the gaps between them.
func renderUptime(rows []models.SelfLogRow, now time.Time) string {
	if len(rows) == 0 {
		return "No scanner runs recorded yet."
	}
	var b strings.Builder
	for i, r := range rows {
		if r.Start == nil {
			continue
		}
		stop := "running"
		end := *r.Start
		if r.Stop != nil {
			end = *r.Stop
			stop = r.Stop.Format(timeLayout)
		}
		if i == 0 && r.Stop != nil && now.Sub(end) > time.Minute {
			stop += warnStyle.Render(" (stale)")
		}
		fmt.Fprintf(&b, "%s  up   %s -> %s (%s)\n",
			specialStyle.Render("●"), r.Start.Format(timeLayout), stop, end.Sub(*r.Start).Round(time.Second))

		if i+1 < len(rows) {
			prev := rows[i+1]
			prevEnd := prev.Stop
			if prevEnd == nil {
				prevEnd = prev.Start
			}
			if prevEnd != nil {
				fmt.Fprintf(&b, "%s  down %s (%s)\n",
					dangerStyle.Render("●"), prevEnd.Format(timeLayout), r.Start.Sub(*prevEnd).Round(time.Second))
			}
		}
	}
	return b.String()
}

func (m Model) View() string {
	if m.state == stateHistory {
		f := subtleStyle.Render("\n[PgUp/PgDn] Scroll  [Esc] Back")
		return lipgloss.NewStyle().Padding(1, 2).Render(titleStyle.Render(m.historyTitle) + "\n\n" + m.historyViewport.View() + "\n" + f)
	}
	return m.viewDashboard()
}

func (m Model) viewDashboard() string {
	tabs := []string{"Watchdogs", "Uptime", "Logs"}
	var renderedTabs []string
	for i, t := range tabs {
		if i == m.currentTab {
			renderedTabs = append(renderedTabs, activeTab.Render(t))
		} else {
			renderedTabs = append(renderedTabs, inactiveTab.Render(t))
		}
	}
	header := lipgloss.JoinHorizontal(lipgloss.Top, renderedTabs...)
	if m.hasReport {
		header += subtleStyle.Render(fmt.Sprintf("  cycle %d at %s", m.report.Cycle, m.report.StartedAt.Format(clockLayout)))
	}
	content := ""
	if m.errorMsg != "" {
		content += "\n" + dangerStyle.Render("Error: "+m.errorMsg)
	}

	switch m.currentTab {
	case tabWatchdogs:
		content += "\n" + m.viewTable()
	case tabUptime:
		content += "\n" + m.uptimeViewport.View()
	case tabLogs:
		content += "\n" + m.logViewport.View()
	}

	footer := subtleStyle.Render(footerDefault)
	return lipgloss.NewStyle().Padding(1, 2).Render(header + "\n" + content + "\n" + footer)
}

func (m Model) viewTable() string {
	headerStr := lipgloss.JoinHorizontal(lipgloss.Left,
		colID.Render("ID"), colName.Render("NAME"), colMode.Render("MODE"), colEnabled.Render("ENABLED"),
		colStatus.Render("STATUS"), colAlert.Render("ALERT"), "NOTE")
	content := headerStr + "\n"
	content += subtleStyle.Render(strings.Repeat("-", 90)) + "\n"

	if len(m.rows) == 0 {
		return content + "\n  No watchdogs configured."
	}

	end := min(m.tableOffset+m.maxTableRows, len(m.rows))
	for i := m.tableOffset; i < end; i++ {
		r := m.rows[i]

		enabled := subtleStyle.Render("no")
		if r.watchdog.Enabled {
			enabled = "yes"
		}

		status, note := subtleStyle.Render("-"), ""
		if r.state != nil {
			status = statusLabel(r.state.Status)
			note = r.state.Note
		}

		line := lipgloss.JoinHorizontal(lipgloss.Left,
			colID.Render(strconv.Itoa(r.watchdog.ID)),
			colName.Render(limitStr(r.watchdog.Name, 18)),
			colMode.Render(string(r.watchdog.Mode)),
			colEnabled.Render(enabled),
			colStatus.Render(status),
			colAlert.Render(alertLabel(r)),
			limitStr(note, 60),
		)

		if m.cursor == i {
			line = lipgloss.NewStyle().Bold(true).Render(">" + line)
		} else {
			line = " " + line
		}
		content += line + "\n"
	}
	return content
}

func statusLabel(status int) string {
	if status == models.StatusUp {
		return specialStyle.Render("UP")
	}
	return dangerStyle.Render("DOWN")
}

func alertLabel(r row) string {
	switch {
	case !r.counting:
		return "-"
	case r.notified:
		return dangerStyle.Render("notified")
	default:
		return warnStyle.Render(fmt.Sprintf("%d/%d", r.failures, max(r.watchdog.Threshold, 1)))
	}
}

func limitStr(text string, max int) string {
	if len(text) > max {
		return text[:max-3] + "..."
	}
	return text
}
