package presenter

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dd32/crawl-a-million-miles/pkg/application"
	"github.com/dd32/crawl-a-million-miles/pkg/domain/entity"
	"github.com/dd32/crawl-a-million-miles/pkg/stats"
)

// Dashboard is a TUI dashboard for crawling progress
type Dashboard struct {
	snapshot  entity.StatsSnapshot
	status    application.Status
	total     int64
	interrupt func()
	bar       progress.Model
	width     int
	height    int
	mu        sync.RWMutex
}

type tickMsg time.Time

// NewDashboard creates a new TUI dashboard. interrupt is called for every
// q or Ctrl+C key press, since the terminal swallows SIGINT in raw mode.
func NewDashboard(total int64, interrupt func()) *Dashboard {
	return &Dashboard{
		total:     total,
		interrupt: interrupt,
		bar:       progress.New(progress.WithDefaultGradient()),
	}
}

// Init initializes the dashboard
func (d *Dashboard) Init() tea.Cmd {
	return tickCmd()
}

// Update handles dashboard updates
func (d *Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "Q", "ctrl+c":
			if d.interrupt != nil {
				d.interrupt()
			}
		}
		return d, nil

	case tea.WindowSizeMsg:
		d.mu.Lock()
		d.width = msg.Width
		d.height = msg.Height
		d.bar.Width = msg.Width - 4
		d.mu.Unlock()
		return d, nil

	case tickMsg:
		return d, tickCmd()
	}

	return d, nil
}

// View renders the dashboard
func (d *Dashboard) View() string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.width == 0 {
		return "Initializing..."
	}

	header := d.renderHeader()
	footer := d.renderFooter()

	availableHeight := d.height - lipgloss.Height(header) - lipgloss.Height(footer)
	if availableHeight < 0 {
		availableHeight = 0
	}
	halfHeight := availableHeight / 2
	leftWidth := d.width / 2
	rightWidth := d.width - leftWidth

	row1 := lipgloss.JoinHorizontal(
		lipgloss.Top,
		d.renderCrawlStats(leftWidth, halfHeight),
		d.renderHistogram("🧩 WordPress", "#FF6B6B", d.snapshot.Verdicts, rightWidth, halfHeight),
	)
	row2 := lipgloss.JoinHorizontal(
		lipgloss.Top,
		d.renderHistogram("🌐 Status Codes", "#4ECDC4", d.snapshot.Codes, leftWidth, availableHeight-halfHeight),
		d.renderHistogram("⚠ Error Reasons", "#04B575", d.snapshot.ErrorReasons, rightWidth, availableHeight-halfHeight),
	)

	return lipgloss.JoinVertical(lipgloss.Left, header, row1, row2, footer)
}

// OnStatsUpdate implements application.StatsObserver
func (d *Dashboard) OnStatsUpdate(snapshot entity.StatsSnapshot, status application.Status) {
	d.mu.Lock()
	d.snapshot = snapshot
	d.status = status
	d.mu.Unlock()
}

func (d *Dashboard) renderHeader() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#7D56F4")).
		Padding(0, 1)

	timeStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#999999"))

	state := "running"
	switch {
	case d.status.Done:
		state = "done"
	case d.status.Draining:
		state = "draining"
	}

	title := titleStyle.Render("🔍 Crawl a Million Miles")
	info := timeStyle.Render(fmt.Sprintf(" %s | elapsed %s", state, d.snapshot.Elapsed.Round(time.Second)))

	line := title + info
	if d.total > 0 {
		percent := float64(d.snapshot.Processed) / float64(d.total)
		if percent > 1 {
			percent = 1
		}
		line += "\n  " + d.bar.ViewAs(percent)
	}
	return line
}

func (d *Dashboard) renderCrawlStats(width, height int) string {
	s := d.snapshot
	lines := []string{
		"📊 Crawl",
		"",
		fmt.Sprintf("Processed:   %d", s.Processed),
		fmt.Sprintf("Success:     %d", s.Success),
		fmt.Sprintf("Errors:      %d", s.Error),
		fmt.Sprintf("In flight:   %d (peak %d)", d.status.InFlight, d.status.Peak),
		fmt.Sprintf("Admitted:    %d", d.status.Admitted),
		fmt.Sprintf("Downloaded:  %s of %s", stats.HumanBytes(s.Bytes.Downloaded), stats.HumanBytes(s.Bytes.Total)),
	}
	if seconds := s.Elapsed.Seconds(); seconds > 0 {
		lines = append(lines, "", fmt.Sprintf("Rate:        %.1f domains/s", float64(s.Processed)/seconds))
	}
	return boxStyle("#874BFD", width, height).Render(strings.Join(lines, "\n"))
}

func (d *Dashboard) renderHistogram(title, color string, counts []entity.Count, width, height int) string {
	lines := []string{title, ""}

	// border, padding, title and blank line
	maxLines := height - 6
	if len(counts) == 0 {
		lines = append(lines, "Nothing yet...")
	}
	for i, count := range counts {
		if i >= maxLines {
			break
		}
		lines = append(lines, fmt.Sprintf("%-22s %d", count.Key, count.Count))
	}
	return boxStyle(color, width, height).Render(strings.Join(lines, "\n"))
}

func (d *Dashboard) renderFooter() string {
	footerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#626262")).
		Padding(1, 0)

	return footerStyle.Render("Press 'q' or 'Ctrl+C' to stop admitting domains, twice to exit immediately")
}

func boxStyle(color string, width, height int) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(color)).
		Padding(1, 2).
		Width(max(width-2, 0)).
		Height(max(height-2, 0))
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*500, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
