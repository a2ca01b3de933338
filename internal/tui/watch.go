// Package tui renders a live queue dashboard in the terminal, fed by the
// server's event stream. It is a read-only consumer of the public API.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nexmoe/vidbee-server/internal/model"
)

const historyTail = 8

var (
	watchTitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	watchMutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	watchErrorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	watchOKStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	watchActiveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	watchPanelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

type watchModel struct {
	baseURL string
	events  <-chan interface{}

	spinner   spinner.Model
	downloads []model.DownloadTask
	history   []model.DownloadTask
	connected bool
	streamErr error
	width     int
}

func newWatchModel(baseURL string, events <-chan interface{}) watchModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = watchActiveStyle
	return watchModel{baseURL: baseURL, events: events, spinner: sp}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.events))
}

func waitForEvent(events <-chan interface{}) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-events
		if !ok {
			return streamClosedMsg{}
		}
		return msg
	}
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case taskEventMsg:
		m.connected = true
		m.applyTask(msg.task)
		return m, waitForEvent(m.events)
	case queueEventMsg:
		m.connected = true
		m.downloads = msg.tasks
		return m, waitForEvent(m.events)
	case historyEventMsg:
		m.connected = true
		m.history = msg.tasks
		return m, waitForEvent(m.events)
	case streamClosedMsg:
		m.connected = false
		m.streamErr = msg.err
		return m, nil
	}
	return m, nil
}

// applyTask patches a single task into whichever list holds it, so progress
// updates land between queue snapshots.
func (m *watchModel) applyTask(task model.DownloadTask) {
	if model.IsTerminalStatus(task.Status) {
		for i := range m.downloads {
			if m.downloads[i].ID == task.ID {
				m.downloads = append(m.downloads[:i], m.downloads[i+1:]...)
				break
			}
		}
		return
	}
	for i := range m.downloads {
		if m.downloads[i].ID == task.ID {
			m.downloads[i] = task
			return
		}
	}
	m.downloads = append([]model.DownloadTask{task}, m.downloads...)
}

func (m watchModel) View() string {
	var b strings.Builder
	b.WriteString(watchTitleStyle.Render("vidbee downloads"))
	b.WriteString(watchMutedStyle.Render("  " + m.baseURL))
	b.WriteString("\n\n")

	if m.streamErr != nil {
		b.WriteString(watchErrorStyle.Render(fmt.Sprintf("event stream lost: %v", m.streamErr)))
		b.WriteString("\n\n")
	} else if !m.connected {
		b.WriteString(m.spinner.View())
		b.WriteString(watchMutedStyle.Render(" connecting..."))
		b.WriteString("\n\n")
	}

	if len(m.downloads) == 0 {
		b.WriteString(watchMutedStyle.Render("no active downloads"))
		b.WriteString("\n")
	} else {
		for _, task := range m.downloads {
			b.WriteString(m.renderTask(task))
			b.WriteString("\n")
		}
	}

	if len(m.history) > 0 {
		b.WriteString("\n")
		b.WriteString(watchTitleStyle.Render("recent"))
		b.WriteString("\n")
		tail := m.history
		if len(tail) > historyTail {
			tail = tail[:historyTail]
		}
		lines := make([]string, 0, len(tail))
		for _, task := range tail {
			lines = append(lines, renderHistoryLine(task))
		}
		b.WriteString(watchPanelStyle.Render(strings.Join(lines, "\n")))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(watchMutedStyle.Render("q quit"))
	return b.String()
}

func (m watchModel) renderTask(task model.DownloadTask) string {
	label := task.Title
	if label == "" {
		label = task.URL
	}
	switch task.Status {
	case model.StatusDownloading:
		detail := fmt.Sprintf("%5.1f%%", task.Progress.Percent)
		if task.Progress.Speed != "" {
			detail += "  " + task.Progress.Speed
		}
		if task.Progress.ETA != "" {
			detail += "  eta " + task.Progress.ETA
		}
		return fmt.Sprintf("%s %s\n   %s", m.spinner.View(), label, watchActiveStyle.Render(detail))
	default:
		return fmt.Sprintf("%s %s", watchMutedStyle.Render("·"), label+watchMutedStyle.Render("  "+task.Status))
	}
}

func renderHistoryLine(task model.DownloadTask) string {
	label := task.Title
	if label == "" {
		label = task.URL
	}
	switch task.Status {
	case model.StatusCompleted:
		return watchOKStyle.Render("✓ ") + label
	case model.StatusError:
		return watchErrorStyle.Render("✗ ") + label
	default:
		return watchMutedStyle.Render("- " + label)
	}
}

// Watch runs the dashboard against a running server until the user quits.
func Watch(baseURL string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan interface{}, 16)
	go streamEvents(ctx, baseURL, events)

	p := tea.NewProgram(newWatchModel(baseURL, events), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
