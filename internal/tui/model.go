// Package tui provides the BubbleTea-based focus monitor.
package tui

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/callfocus/internal/config"
	"github.com/jmylchreest/callfocus/internal/model"
)

// View represents the current UI view.
type View int

const (
	ViewStatus View = iota
	ViewDetail
	ViewHelp
)

// DefaultRefreshInterval is how often the state is re-read when no signal arrives.
const DefaultRefreshInterval = 5 * time.Second

// Source is the daemon surface the TUI reads from and acts on.
type Source interface {
	State(ctx context.Context) (model.State, error)
	History(ctx context.Context) ([]model.Transition, error)
	DumpFocus(ctx context.Context) (string, error)
	DismissCallNotification(ctx context.Context) (string, error)
}

// Model is the main TUI model.
type Model struct {
	cfg     *config.Config
	source  Source
	timeout time.Duration
	refresh time.Duration

	// Signalled by the caller whenever the daemon reports a focus change
	changes <-chan struct{}

	view View

	list     list.Model
	viewport viewport.Model
	help     help.Model

	state     model.State
	history   []model.Transition
	connected bool
	lastErr   error
	selected  *model.Transition
	width     int
	height    int
	ready     bool

	keys KeyMap
	clip clipboard

	statusMsg string
	statusErr bool
}

// transitionItem wraps a transition for the list component.
type transitionItem struct {
	transition model.Transition
}

func (i transitionItem) Title() string {
	return fmt.Sprintf("%s  %s → %s", i.transition.Command, i.transition.From, i.transition.To)
}

func (i transitionItem) Description() string {
	parts := []string{humanize.Time(i.transition.TimestampTime())}
	if i.transition.CallerID != "" {
		parts = append(parts, "caller "+i.transition.CallerID)
	}
	parts = append(parts, i.transition.RequestID)
	return strings.Join(parts, " · ")
}

func (i transitionItem) FilterValue() string {
	return i.transition.Command + " " + i.transition.CallerID
}

// transitionDelegate dims transitions that released focus.
type transitionDelegate struct {
	list.DefaultDelegate
}

func newTransitionDelegate() transitionDelegate {
	return transitionDelegate{DefaultDelegate: list.NewDefaultDelegate()}
}

// Render renders a list item, dimming releases.
func (d transitionDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	ti, ok := item.(transitionItem)
	if !ok || ti.transition.To != model.ModeNone {
		d.DefaultDelegate.Render(w, m, index, item)
		return
	}

	titleStyle := d.Styles.NormalTitle
	descStyle := d.Styles.NormalDesc
	if index == m.Index() {
		titleStyle = d.Styles.SelectedTitle
		descStyle = d.Styles.SelectedDesc
	}
	titleStyle = titleStyle.Foreground(lipgloss.Color("8"))
	descStyle = descStyle.Foreground(lipgloss.Color("8"))

	itemWidth := m.Width() - d.Styles.NormalTitle.GetHorizontalPadding()
	title, desc := ti.Title(), ti.Description()
	if itemWidth > 0 && len(title) > itemWidth {
		title = title[:itemWidth-1] + "…"
	}
	if itemWidth > 0 && len(desc) > itemWidth {
		desc = desc[:itemWidth-1] + "…"
	}

	fmt.Fprint(w, titleStyle.Render(title))
	fmt.Fprint(w, "\n")
	fmt.Fprint(w, descStyle.Render(desc))
}

// New creates a new TUI model.
func New(cfg *config.Config, source Source, changes <-chan struct{}) Model {
	l := list.New(nil, newTransitionDelegate(), 0, 0)
	l.Title = "Focus History"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(true)
	l.DisableQuitKeybindings()

	timeout := config.DefaultClientTimeout
	if cfg != nil && cfg.Client.Timeout > 0 {
		timeout = cfg.Client.Timeout.Duration()
	}

	h := help.New()
	h.ShowAll = true

	return Model{
		cfg:     cfg,
		source:  source,
		timeout: timeout,
		refresh: DefaultRefreshInterval,
		changes: changes,
		view:    ViewStatus,
		list:    l,
		help:    h,
		keys:    DefaultKeyMap(),
		clip:    newClipboard(cfg, exec.LookPath),
	}
}

// Init initializes the TUI.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.fetch,
		m.watchForChanges,
		m.tick(),
	)
}

type snapshotMsg struct {
	state   model.State
	history []model.Transition
	err     error
}

// fetch reads state and history from the daemon.
func (m Model) fetch() tea.Msg {
	if m.source == nil {
		return snapshotMsg{err: fmt.Errorf("not connected")}
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	state, err := m.source.State(ctx)
	if err != nil {
		return snapshotMsg{err: err}
	}
	history, err := m.source.History(ctx)
	if err != nil {
		return snapshotMsg{err: err}
	}
	return snapshotMsg{state: state, history: history}
}

type changedMsg struct{}

// watchForChanges waits for the next focus change signal.
func (m Model) watchForChanges() tea.Msg {
	if m.changes == nil {
		return nil
	}
	if _, ok := <-m.changes; !ok {
		return nil
	}
	return changedMsg{}
}

type tickMsg time.Time

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

type actionMsg struct {
	command   string
	requestID string
	err       error
}

type statusMsg struct {
	text  string
	isErr bool
}

type clearStatusMsg struct{}

type copyResultMsg struct {
	kind string
	err  error
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.viewport = viewport.New(msg.Width, msg.Height-2)
		m.viewport.YPosition = 1
		m.resize()
		return m, nil

	case snapshotMsg:
		if msg.err != nil {
			m.connected = false
			m.lastErr = msg.err
			m.resize()
			return m, nil
		}
		m.connected = true
		m.lastErr = nil
		m.state = msg.state
		m.history = msg.history
		m.list.SetItems(m.buildListItems())
		m.resize()
		return m, nil

	case changedMsg:
		return m, tea.Batch(m.fetch, m.watchForChanges)

	case tickMsg:
		return m, tea.Batch(m.fetch, m.tick())

	case actionMsg:
		if msg.err != nil {
			return m, func() tea.Msg {
				return statusMsg{text: msg.command + " failed: " + msg.err.Error(), isErr: true}
			}
		}
		text := msg.command + " applied"
		if msg.requestID != "" {
			text += " (" + msg.requestID + ")"
		}
		return m, tea.Batch(m.fetch, func() tea.Msg {
			return statusMsg{text: text}
		})

	case statusMsg:
		m.statusMsg = msg.text
		m.statusErr = msg.isErr
		return m, tea.Tick(3*time.Second, func(time.Time) tea.Msg {
			return clearStatusMsg{}
		})

	case clearStatusMsg:
		m.statusMsg = ""
		m.statusErr = false
		return m, nil

	case copyResultMsg:
		if msg.err != nil {
			return m, func() tea.Msg {
				return statusMsg{text: "Copy " + msg.kind + " failed: " + msg.err.Error(), isErr: true}
			}
		}
		return m, func() tea.Msg {
			return statusMsg{text: "Copied " + msg.kind + " to clipboard"}
		}
	}

	var cmd tea.Cmd
	switch m.view {
	case ViewStatus:
		m.list, cmd = m.list.Update(msg)
	case ViewDetail:
		m.viewport, cmd = m.viewport.Update(msg)
	}
	return m, cmd
}

// resize fits the history list below the state panel.
func (m *Model) resize() {
	if !m.ready {
		return
	}
	header := lipgloss.Height(m.renderState())
	m.list.SetSize(m.width, max(m.height-header-1, 0))
}

// handleKey handles key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.list.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		if m.view == ViewHelp {
			m.view = ViewStatus
		} else {
			m.view = ViewHelp
		}
		return m, nil
	}

	switch m.view {
	case ViewStatus:
		return m.handleStatusKey(msg)
	case ViewDetail:
		return m.handleDetailKey(msg)
	case ViewHelp:
		if key.Matches(msg, m.keys.Back) {
			m.view = ViewStatus
		}
		return m, nil
	}

	return m, nil
}

// handleStatusKey handles keys in the status view.
func (m Model) handleStatusKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Enter):
		if item, ok := m.list.SelectedItem().(transitionItem); ok {
			t := item.transition
			m.selected = &t
			m.view = ViewDetail
			m.viewport.SetContent(renderDetail(t))
			m.viewport.GotoTop()
		}
		return m, nil

	case key.Matches(msg, m.keys.CopyState):
		p, err := statePayload(m.state)
		return m, m.copyPayload(p, err)

	case key.Matches(msg, m.keys.CopyHistory):
		p, err := historyPayload(m.history)
		return m, m.copyPayload(p, err)

	case key.Matches(msg, m.keys.Dismiss):
		if !m.state.HasPendingCall() {
			return m, func() tea.Msg {
				return statusMsg{text: "No call notification to dismiss"}
			}
		}
		return m, m.run(model.CommandDismissCallNotification, Source.DismissCallNotification)

	case key.Matches(msg, m.keys.Release):
		return m, m.run(model.CommandDumpFocus, Source.DumpFocus)

	case key.Matches(msg, m.keys.Refresh):
		return m, m.fetch
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// handleDetailKey handles keys in the detail view.
func (m Model) handleDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Back) {
		m.view = ViewStatus
		m.selected = nil
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// run issues a command against the daemon.
func (m Model) run(command string, fn func(Source, context.Context) (string, error)) tea.Cmd {
	if m.source == nil {
		return nil
	}
	source, timeout := m.source, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		id, err := fn(source, ctx)
		return actionMsg{command: command, requestID: id, err: err}
	}
}

// buildListItems lists transitions newest first.
func (m Model) buildListItems() []list.Item {
	items := make([]list.Item, 0, len(m.history))
	for i := len(m.history) - 1; i >= 0; i-- {
		items = append(items, transitionItem{transition: m.history[i]})
	}
	return items
}

// copyPayload puts p on the clipboard, or reports err from building it.
func (m Model) copyPayload(p payload, err error) tea.Cmd {
	clip := m.clip
	return func() tea.Msg {
		if err != nil {
			return copyResultMsg{kind: p.kind, err: err}
		}
		return copyResultMsg{kind: p.kind, err: clip.copy(context.Background(), p)}
	}
}

// modeStyle colours a mode name.
func modeStyle(mode model.Mode) lipgloss.Style {
	style := lipgloss.NewStyle().Bold(true)
	switch mode {
	case model.ModeRingtone:
		return style.Foreground(lipgloss.Color("11"))
	case model.ModeInCommunication:
		return style.Foreground(lipgloss.Color("10"))
	case model.ModeNormal:
		return style.Foreground(lipgloss.Color("12"))
	default:
		return style.Foreground(lipgloss.Color("8"))
	}
}

// renderState renders the current focus state panel.
func (m Model) renderState() string {
	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	panel := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("8")).
		Padding(0, 1)

	if !m.connected {
		errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
		text := "Waiting for callfocusd..."
		if m.lastErr != nil {
			text = "callfocusd unreachable: " + m.lastErr.Error()
		}
		return panel.Render(errStyle.Render(text))
	}

	s := labelStyle.Render("Mode:     ") + modeStyle(m.state.Mode).Render(m.state.Mode.String())
	if m.state.Behavior != "" && m.state.Behavior != model.BehaviorNone {
		s += labelStyle.Render(" (" + string(m.state.Behavior) + ")")
	}
	if m.state.HasPendingCall() {
		s += "\n" + labelStyle.Render("Caller:   ") + m.state.CallerID
	}
	if m.state.HasFocus() && m.state.HeldSince > 0 {
		s += "\n" + labelStyle.Render("Held:     ") + humanize.Time(m.state.HeldSinceTime())
	}
	s += "\n" + labelStyle.Render("Revision: ") + fmt.Sprintf("%d", m.state.Revision)

	return panel.Render(s)
}

// renderDetail renders the detail view for a transition.
func renderDetail(t model.Transition) string {
	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("8"))

	s := headerStyle.Render(t.Command) + "\n\n"
	s += labelStyle.Render("From: ") + modeStyle(t.From).Render(t.From.String()) + "\n"
	s += labelStyle.Render("To: ") + modeStyle(t.To).Render(t.To.String()) + "\n"
	if t.CallerID != "" {
		s += labelStyle.Render("Caller: ") + t.CallerID + "\n"
	}
	s += labelStyle.Render("Request: ") + t.RequestID + "\n"
	s += labelStyle.Render("Time: ") + t.TimestampTime().Format(time.DateTime) +
		" (" + humanize.Time(t.TimestampTime()) + ")\n"

	return s
}

// View renders the TUI.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	switch m.view {
	case ViewStatus:
		return m.viewStatus()
	case ViewDetail:
		return m.viewDetail()
	case ViewHelp:
		return m.viewHelp()
	default:
		return ""
	}
}

func (m Model) viewStatus() string {
	s := m.renderState() + "\n" + m.list.View()

	if m.statusMsg != "" {
		statusStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
		if m.statusErr {
			statusStyle = statusStyle.Foreground(lipgloss.Color("9"))
		}
		s += "\n" + statusStyle.Render(m.statusMsg)
	} else {
		s += "\n" + m.buildKeybindBar(m.width, ViewStatus)
	}

	return s
}

func (m Model) viewDetail() string {
	header := lipgloss.NewStyle().Bold(true).Padding(0, 1).Render("Transition Detail")
	return header + "\n" + m.viewport.View() + "\n" + m.buildKeybindBar(m.width, ViewDetail)
}

func (m Model) viewHelp() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		MarginBottom(1)

	s := titleStyle.Render("Keyboard Shortcuts") + "\n\n"
	s += m.help.View(m.keys) + "\n\n"
	s += lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render("Press ? or esc to return")
	return s
}

// keybind represents a single keybind with priority for the status bar.
type keybind struct {
	key  string
	desc string
}

// buildKeybindBar builds a keybind bar that fits within the given width.
// Binds are listed most important first and dropped from the end.
func (m Model) buildKeybindBar(width int, view View) string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	keyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10"))

	var binds []keybind
	switch view {
	case ViewStatus:
		binds = []keybind{
			{"q", "quit"},
			{"enter", "view"},
			{"?", "help"},
			{"d", "dismiss"},
			{"x", "release"},
			{"c", "copy"},
			{"/", "filter"},
			{"r", "refresh"},
		}
	case ViewDetail:
		binds = []keybind{
			{"q", "quit"},
			{"esc", "back"},
			{"j/k", "scroll"},
		}
	}

	const separator = "  "
	result := ""
	plainLen := 0
	for _, b := range binds {
		plainItem := b.key + " " + b.desc
		testLen := plainLen + len(plainItem)
		if result != "" {
			testLen += len(separator)
		}
		if width > 0 && testLen > width {
			break
		}
		if result != "" {
			result += separator
		}
		result += keyStyle.Render(b.key) + " " + b.desc
		plainLen = testLen
	}

	return style.Render(result)
}

// RunOptions configures the TUI.
type RunOptions struct {
	Config  *config.Config
	Source  Source
	Changes <-chan struct{} // Focus change notifications (nil = poll only)
}

// Run starts the TUI with the given options.
func Run(opts RunOptions) error {
	p := tea.NewProgram(New(opts.Config, opts.Source, opts.Changes), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
