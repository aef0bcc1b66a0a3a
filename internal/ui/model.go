package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/desertwitch/primcheck/internal/queue"
	"github.com/dustin/go-humanize"
)

const maxLogLines = 100

//nolint:gochecknoglobals
var (
	// titleStyle defines the style for a panel's title.
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	// borderStyle defines the style for a panel's borders.
	borderStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7D56F4"))

	// infoStyle defines the style for a panel's text.
	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA"))

	passedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	failedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87"))
	skipStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD75F"))

	// helpStyle defines the style for the help panel's text.
	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			Padding(0, 1)
)

// ProgressMsg is a [tea.Msg] containing [queue.Progress] information.
type ProgressMsg struct {
	t    time.Time
	data queue.Progress
}

// TeaModel is the principal [tea.Model] for the command-line user interface.
type TeaModel struct {
	width  int
	height int

	cancel context.CancelFunc

	uiHandler *Handler

	fullWidthWithBorders int

	data queue.Progress

	scenarioProgress progress.Model
	logsViewport     viewport.Model
	logs             []string

	ready bool
}

// NewTeaModel returns an initial new [TeaModel].
//
//nolint:mnd
func NewTeaModel(uiHandler *Handler, cancel context.CancelFunc) TeaModel {
	return TeaModel{
		uiHandler: uiHandler,
		scenarioProgress: progress.New(
			progress.WithDefaultGradient(),
			progress.WithWidth(80),
		),
		logsViewport: viewport.New(80, 20),
		logs:         make([]string, 0, maxLogLines),
		cancel:       cancel,
	}
}

// Init initializes the model within a [tea.Program].
func (m TeaModel) Init() tea.Cmd {
	m.uiHandler.Initialized.Store(true)

	return tea.Batch(
		tea.EnterAltScreen,
		updateProgress(m.uiHandler.progressSource),
	)
}

// updateProgress produces a [tea.Cmd] for later scheduling in a
// [tea.Program]. When executed, a [ProgressMsg] with the source's
// [queue.Progress] is returned.
func updateProgress(source progressProvider) tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg { //nolint:mnd
		return ProgressMsg{
			t:    t,
			data: source.Progress(),
		}
	})
}

// Update is the principal message handling method of the model.
//
//nolint:mnd,ireturn
func (m TeaModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.cancel()

			return m, tea.Quit
		case "q":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		m.fullWidthWithBorders = m.width - 2
		m.scenarioProgress.Width = m.fullWidthWithBorders

		// The progress panel has a fixed height, the logs take the rest.
		m.logsViewport.Width = m.fullWidthWithBorders
		m.logsViewport.Height = max(m.height-14, 1)
		m.refreshLogs()

		if !m.ready {
			m.ready = true
			m.uiHandler.Ready.Store(true)
		}

	case ProgressMsg:
		m.data = msg.data

		cmds = append(cmds,
			m.scenarioProgress.SetPercent(m.data.ProgressPct/100),
			updateProgress(m.uiHandler.progressSource),
		)

	case LogMsg:
		if len(m.logs) >= maxLogLines {
			m.logs = m.logs[1:]
		}
		m.logs = append(m.logs, string(msg))
		m.refreshLogs()

	case progress.FrameMsg:
		updated, cmd := m.scenarioProgress.Update(msg)
		if progressModel, ok := updated.(progress.Model); ok {
			m.scenarioProgress = progressModel
		}
		cmds = append(cmds, cmd)
	}

	m.logsViewport, cmd = m.logsViewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *TeaModel) refreshLogs() {
	if len(m.logs) == 0 {
		return
	}

	logs := lipgloss.NewStyle().
		Width(m.logsViewport.Width).
		Render(strings.TrimSuffix(strings.Join(m.logs, ""), "\n"))

	m.logsViewport.SetContent(logs)
	m.logsViewport.GotoBottom()
}

// View is the principal rendering function of the model.
func (m TeaModel) View() string {
	if !m.ready {
		return "Loading the GUI..."
	}

	progressSection := borderStyle.
		Width(m.fullWidthWithBorders).
		Render(m.formatProgressView("Scenarios", m.scenarioProgress.View(), m.data))

	logsSection := borderStyle.
		Width(m.fullWidthWithBorders).
		Render(
			lipgloss.JoinVertical(
				lipgloss.Left,
				titleStyle.Width(m.fullWidthWithBorders).Render("Scenario Logs"),
				lipgloss.NewStyle().Width(m.fullWidthWithBorders).Render(m.logsViewport.View()),
			),
		)

	helpSection := helpStyle.
		Width(m.fullWidthWithBorders).
		Render("q: quit gui • ctrl+c: abort run")

	return lipgloss.JoinVertical(
		lipgloss.Left,
		progressSection,
		logsSection,
		helpSection,
	)
}

// formatProgressView is a helper function for rendering the progress panel.
func (m TeaModel) formatProgressView(title string, progressBar string, p queue.Progress) string {
	counts := fmt.Sprintf("Scenarios: %s, %s, %s, Running=%d",
		passedStyle.Render(fmt.Sprintf("Passed=%d", p.PassedItems)),
		failedStyle.Render(fmt.Sprintf("Failed=%d", p.FailedItems)),
		skipStyle.Render(fmt.Sprintf("Skipped=%d", p.SkippedItems)),
		p.InProgressItems,
	)

	var timing string
	switch {
	case !p.HasStarted:
		timing = "Time: Waiting to start\n"
	case p.HasFinished:
		timing = fmt.Sprintf("Time: Started=%v, Finished=%v (%s)\n",
			p.StartTime.Format("15:04:05"),
			p.FinishTime.Format("15:04:05"),
			p.FinishTime.Sub(p.StartTime).Round(time.Millisecond),
		)
	default:
		eta := "unknown"
		if !p.ETA.IsZero() {
			eta = humanize.Time(p.ETA)
		}

		timing = fmt.Sprintf("Time: Started=%v, ETA=%s\nSpeed: %s scenarios/s\n",
			p.StartTime.Format("15:04:05"),
			eta,
			humanize.FtoaWithDigits(p.ItemsPerSec, 2), //nolint:mnd
		)
	}

	details := fmt.Sprintf("Progress: %.2f%% (%d/%d)\n%s\n%s",
		p.ProgressPct,
		p.ProcessedItems,
		p.TotalItems,
		counts,
		timing,
	)

	return lipgloss.JoinVertical(
		lipgloss.Left,
		titleStyle.Width(m.fullWidthWithBorders).Render(title),
		"", // Empty line for spacing.
		progressBar,
		"", // Empty line for spacing.
		infoStyle.Width(m.fullWidthWithBorders).Render(details),
	)
}
