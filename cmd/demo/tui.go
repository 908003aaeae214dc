package main

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF79C6")).
			Background(lipgloss.Color("#282A36")).
			Padding(0, 1).
			MarginTop(1).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#8BE9FD"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#50FA7B"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F1FA8C"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6272A4"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#BD93F9")).
			Padding(1, 2).
			MarginTop(1).
			MarginBottom(1)

	statStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFB86C"))
)

type progressMsg float64

type messageMsg string

type stageStartMsg struct {
	stage  stage
	detail string
}

type loadedMsg loadStats

type stageCompleteMsg struct {
	stage stage
	stats benchmarkResult
}

type demoDoneMsg struct{}

type model struct {
	stage           stage
	detail          string
	spinner         spinner.Model
	progress        progress.Model
	progressPercent float64

	load    loadStats
	results map[stage]benchmarkResult
	last    stage

	messages []string
	width    int
	height   int
}

func initialModel() model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF79C6"))

	return model{
		stage:    stageLoading,
		spinner:  s,
		progress: progress.New(progress.WithDefaultGradient()),
		results:  make(map[stage]benchmarkResult),
		last:     -1,
		width:    80,
		height:   24,
	}
}

func (m model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = msg.Width - 10
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		return m, cmd

	case progressMsg:
		m.progressPercent = float64(msg)
		return m, m.progress.SetPercent(float64(msg))

	case messageMsg:
		m.messages = append(m.messages, string(msg))
		if len(m.messages) > 5 {
			m.messages = m.messages[1:]
		}
		return m, nil

	case stageStartMsg:
		m.stage = msg.stage
		m.detail = msg.detail
		m.progressPercent = 0
		return m, m.progress.SetPercent(0)

	case loadedMsg:
		m.load = loadStats(msg)
		m.last = stageLoading
		return m, nil

	case stageCompleteMsg:
		m.results[msg.stage] = msg.stats
		m.last = msg.stage
		return m, nil

	case demoDoneMsg:
		m.stage = stageDone
		return m, nil
	}

	return m, nil
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("🌍 Geo Filter Demo"))
	b.WriteString("\n\n")

	if m.stage == stageDone {
		b.WriteString(renderSummary(m))
	} else {
		if m.last == stageLoading {
			b.WriteString(renderLoadStats(m.load))
		} else if stats, ok := m.results[m.last]; ok {
			b.WriteString(renderBenchmarkStats(m.last.title(), stats))
		}

		b.WriteString("\n")
		b.WriteString(subtitleStyle.Render(m.stage.title()))
		b.WriteString("\n\n")
		b.WriteString(m.spinner.View() + " " + m.detail + "\n\n")
		b.WriteString(m.progress.ViewAs(m.progressPercent))
	}

	if len(m.messages) > 0 {
		b.WriteString("\n\n")
		b.WriteString(dimStyle.Render("Recent activity:"))
		b.WriteString("\n")
		for _, msg := range m.messages {
			b.WriteString(dimStyle.Render("• " + msg))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n\n")
	b.WriteString(dimStyle.Render("Press 'q' to quit"))

	return b.String()
}

func renderLoadStats(stats loadStats) string {
	content := fmt.Sprintf(
		"✓ Indexed %s points in %s\n"+
			"✓ Points per second: %s",
		statStyle.Render(fmt.Sprintf("%d", stats.points)),
		statStyle.Render(stats.duration.Round(time.Millisecond).String()),
		statStyle.Render(fmt.Sprintf("%.0f", float64(stats.points)/stats.duration.Seconds())),
	)

	return boxStyle.Render(successStyle.Render("Loading Complete!\n\n") + content)
}

func renderBenchmarkStats(title string, stats benchmarkResult) string {
	avgResults := 0.0
	if stats.totalQueries > 0 {
		avgResults = float64(stats.totalResults) / float64(stats.totalQueries)
	}

	content := fmt.Sprintf(
		"✓ Total queries: %s\n"+
			"✓ Total time: %s\n"+
			"✓ Queries per second: %s\n"+
			"✓ Average query time: %s\n"+
			"✓ Total results found: %s\n"+
			"✓ Average results per query: %s",
		statStyle.Render(fmt.Sprintf("%d", stats.totalQueries)),
		statStyle.Render(stats.totalTime.String()),
		statStyle.Render(fmt.Sprintf("%.0f", stats.queriesPerSec)),
		statStyle.Render(stats.avgQueryTime.String()),
		statStyle.Render(fmt.Sprintf("%d", stats.totalResults)),
		statStyle.Render(fmt.Sprintf("%.1f", avgResults)),
	)

	return boxStyle.Render(successStyle.Render(title+" Complete!\n\n") + content)
}

func renderSummary(m model) string {
	summary := titleStyle.Render("🎉 Demo Complete!")
	summary += "\n\n"
	summary += infoStyle.Render(fmt.Sprintf("Indexed %d points using %d CPU cores", m.load.points, runtime.NumCPU()))
	summary += "\n\n"

	var lines []string
	for s := stageBox; s < stageDone; s++ {
		stats, ok := m.results[s]
		if !ok {
			continue
		}
		lines = append(lines, fmt.Sprintf("%-36s %s queries/sec, avg %s",
			s.title(),
			statStyle.Render(fmt.Sprintf("%.0f", stats.queriesPerSec)),
			statStyle.Render(stats.avgQueryTime.String())))
	}

	summary += boxStyle.Render(infoStyle.Render("Performance Summary:\n\n") + strings.Join(lines, "\n"))
	return summary
}

// teaReporter forwards demo progress to the bubbletea program
type teaReporter struct {
	program *tea.Program
}

func (r teaReporter) start(s stage, detail string) {
	r.program.Send(stageStartMsg{stage: s, detail: detail})
}

func (r teaReporter) progress(p float64) { r.program.Send(progressMsg(p)) }

func (r teaReporter) message(msg string) { r.program.Send(messageMsg(msg)) }

func (r teaReporter) loaded(stats loadStats) { r.program.Send(loadedMsg(stats)) }

func (r teaReporter) finished(s stage, stats benchmarkResult) {
	r.program.Send(stageCompleteMsg{stage: s, stats: stats})
}
