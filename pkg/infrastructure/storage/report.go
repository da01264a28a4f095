package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dd32/crawl-a-million-miles/pkg/domain/entity"
	"github.com/dd32/crawl-a-million-miles/pkg/stats"
)

// FileSink implements repository.ReportSink. Every snapshot is written to
// its own timestamped file inside dir.
type FileSink struct {
	dir string
}

// NewFileSink creates the output directory if needed
func NewFileSink(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create stats directory: %w", err)
	}
	return &FileSink{dir: dir}, nil
}

// Write implements repository.ReportSink
func (s *FileSink) Write(snapshot entity.StatsSnapshot, label string) error {
	path := s.Path(snapshot, label)
	if err := os.WriteFile(path, []byte(stats.Format(snapshot, label)), 0o644); err != nil {
		return fmt.Errorf("write stats report: %w", err)
	}
	return nil
}

// Path returns the file a snapshot is written to
func (s *FileSink) Path(snapshot entity.StatsSnapshot, label string) string {
	name := fmt.Sprintf("stats-%s.txt", snapshot.TakenAt.Format("20060102-150405"))
	if label != "" && label != "periodic" {
		name = fmt.Sprintf("stats-%s-%s.txt", snapshot.TakenAt.Format("20060102-150405"), label)
	}
	return filepath.Join(s.dir, name)
}
