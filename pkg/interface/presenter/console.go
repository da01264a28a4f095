package presenter

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dd32/crawl-a-million-miles/pkg/common"
	"github.com/dd32/crawl-a-million-miles/pkg/domain/entity"
	"github.com/dd32/crawl-a-million-miles/pkg/stats"
)

// consoleTopN bounds the rows printed per histogram; the file report has all of them
const consoleTopN = 10

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true).
			Padding(1, 2)

	keyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11")).
			Bold(true)
)

// ConsoleSink prints a condensed stats block, e.g. to stderr
type ConsoleSink struct {
	out   io.Writer
	width int
}

// NewConsoleSink creates a console sink sized to the terminal
func NewConsoleSink(out io.Writer) *ConsoleSink {
	width := common.TerminalWidth()
	if width > 100 {
		width = 100
	}
	return &ConsoleSink{out: out, width: width}
}

// Write implements repository.ReportSink
func (c *ConsoleSink) Write(snapshot entity.StatsSnapshot, label string) error {
	_, err := io.WriteString(c.out, c.Render(snapshot, label))
	return err
}

// Render returns the stats block
func (c *ConsoleSink) Render(s entity.StatsSnapshot, label string) string {
	divider := keyStyle.Render(strings.Repeat("─", c.width))

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("📊 %s stats (elapsed %s)", label, s.Elapsed.Round(time.Second))))
	b.WriteString("\n" + divider + "\n")

	line := func(key, value string) {
		fmt.Fprintf(&b, "  %s %s\n", keyStyle.Render(fmt.Sprintf("%-12s", key)), valueStyle.Render(value))
	}
	line("processed", fmt.Sprintf("%d", s.Processed))
	line("success", fmt.Sprintf("%d", s.Success))
	line("error", fmt.Sprintf("%d", s.Error))
	line("bytes", fmt.Sprintf("%s of %s (%.1f%%)",
		stats.HumanBytes(s.Bytes.Downloaded), stats.HumanBytes(s.Bytes.Total), s.Bytes.Percent))

	section := func(title string, counts []entity.Count) {
		if len(counts) == 0 {
			return
		}
		fmt.Fprintf(&b, "\n %s\n", title)
		for i, count := range counts {
			if i == consoleTopN {
				fmt.Fprintf(&b, "  %s\n", keyStyle.Render(fmt.Sprintf("... %d more", len(counts)-consoleTopN)))
				break
			}
			line(count.Key, fmt.Sprintf("%d", count.Count))
		}
	}
	section("wordpress", s.Verdicts)
	section("status codes", s.Codes)
	section("error reasons", s.ErrorReasons)
	section("generators", s.Generators)

	b.WriteString(divider + "\n")
	return b.String()
}
