package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dd32/crawl-a-million-miles/pkg/config"
	"github.com/mattn/go-isatty"
)

// dashboardLogFile receives the logs while the dashboard owns the terminal
const dashboardLogFile = "crawl.log"

// NewLogger creates the process logger. Logs go to stderr unless a log
// file is configured; the dashboard forces a file under the stats directory.
// The returned function closes the log file.
func NewLogger(opts *Options, cfg *config.Config) (*slog.Logger, func() error, error) {
	path := cfg.Output.LogFile
	if path == "" && opts.ShowDashboard {
		path = filepath.Join(cfg.Output.StatsDir, dashboardLogFile)
	}

	if path == "" {
		return newHandlerLogger(os.Stderr, opts.Verbose), func() error { return nil }, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return newHandlerLogger(file, opts.Verbose), file.Close, nil
}

// newHandlerLogger picks a text handler for terminals and JSON otherwise
func newHandlerLogger(out io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	if f, ok := out.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		return slog.New(slog.NewTextHandler(out, handlerOpts))
	}
	return slog.New(slog.NewJSONHandler(out, handlerOpts))
}
