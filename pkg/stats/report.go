package stats

import (
	"fmt"
	"strings"
	"time"

	"github.com/dd32/crawl-a-million-miles/pkg/domain/entity"
)

// Format renders a snapshot as the plain-text report written to report
// files
func Format(s entity.StatsSnapshot, label string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s stats at %s (elapsed %s)\n", label, s.TakenAt.Format(time.DateTime), s.Elapsed.Round(time.Second))
	fmt.Fprintf(&b, "processed: %d\n", s.Processed)
	fmt.Fprintf(&b, "success:   %d\n", s.Success)
	fmt.Fprintf(&b, "error:     %d\n", s.Error)
	fmt.Fprintf(&b, "bytes:     %s of %s (%.1f%%)\n", HumanBytes(s.Bytes.Downloaded), HumanBytes(s.Bytes.Total), s.Bytes.Percent)

	writeSection(&b, "status codes", s.Codes)
	writeSection(&b, "error reasons", s.ErrorReasons)
	writeSection(&b, "wordpress", s.Verdicts)
	writeSection(&b, "generators", s.Generators)

	return b.String()
}

func writeSection(b *strings.Builder, title string, counts []entity.Count) {
	fmt.Fprintf(b, "\n%s:\n", title)
	if len(counts) == 0 {
		b.WriteString("  (none)\n")
		return
	}
	for _, c := range counts {
		fmt.Fprintf(b, "  %-40s %d\n", c.Key, c.Count)
	}
}

// HumanBytes formats a byte count with a binary unit
func HumanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
