package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dd32/crawl-a-million-miles/pkg/application"
	"github.com/dd32/crawl-a-million-miles/pkg/classifier"
	"github.com/dd32/crawl-a-million-miles/pkg/config"
	"github.com/dd32/crawl-a-million-miles/pkg/domain/repository"
	"github.com/dd32/crawl-a-million-miles/pkg/infrastructure/http"
	"github.com/dd32/crawl-a-million-miles/pkg/infrastructure/source"
	"github.com/dd32/crawl-a-million-miles/pkg/infrastructure/storage"
	"github.com/dd32/crawl-a-million-miles/pkg/stats"
	"github.com/dd32/crawl-a-million-miles/pkg/util"
)

// Assembler assembles all components for the application
type Assembler struct {
	config *config.Config
	logger *slog.Logger
}

// NewAssembler creates a new assembler
func NewAssembler(config *config.Config, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{config: config, logger: logger}
}

// App holds the assembled components of one run
type App struct {
	Source     *source.CSVSource
	Metrics    *stats.Metrics
	Aggregator *stats.Aggregator
	Scheduler  *application.Scheduler
	Reporter   *application.Reporter
	// Exporter is nil unless a metrics address was configured
	Exporter *util.PrometheusExporter

	writer repository.ResultWriter
}

// Assemble opens the input and wires the crawl pipeline
func (a *Assembler) Assemble() (*App, error) {
	cfg := a.config

	src, err := source.Open(cfg.Input.File, source.Options{
		MaxDomains:        cfg.Input.MaxDomains,
		Dedup:             cfg.Dedup.Enabled,
		BloomFilterSize:   cfg.Dedup.BloomFilterSize,
		FalsePositiveRate: cfg.Dedup.BloomFilterFalsePositive,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open domain list: %w", err)
	}

	writer, err := a.resultWriter()
	if err != nil {
		src.Close()
		return nil, err
	}

	fileSink, err := storage.NewFileSink(cfg.Output.StatsDir)
	if err != nil {
		src.Close()
		if writer != nil {
			writer.Close()
		}
		return nil, fmt.Errorf("failed to create stats directory: %w", err)
	}

	transport := http.NewTransport(http.Config{
		Timeout:           cfg.HTTP.Timeout,
		UserAgent:         cfg.HTTP.UserAgent,
		MaxBytes:          int64(cfg.Classifier.MaxBytes),
		VerifyTLS:         cfg.HTTP.VerifyTLS,
		RejectErrorStatus: cfg.HTTP.RejectErrorStatus,
	})

	c := classifier.New(classifier.Config{
		MaxBytes:    cfg.Classifier.MaxBytes,
		CloseOnHead: cfg.Classifier.CloseOnHead,
	})

	metrics := stats.NewMetrics()
	aggregator := stats.NewAggregator(metrics)

	scheduler := application.NewScheduler(
		application.Config{
			Concurrency:    cfg.Concurrency.NumWorkers,
			QueueSize:      cfg.Concurrency.QueueSize,
			RefillInterval: cfg.Concurrency.RefillInterval,
			Scheme:         cfg.HTTP.Scheme,
			Streaming:      cfg.HTTP.Streaming,
		},
		src,
		transport,
		c,
		aggregator,
		writer,
		metrics,
		a.logger,
	)

	reporter := application.NewReporter(aggregator, scheduler, cfg.Report.Interval, a.logger)
	reporter.AddSink(fileSink)

	app := &App{
		Source:     src,
		Metrics:    metrics,
		Aggregator: aggregator,
		Scheduler:  scheduler,
		Reporter:   reporter,
		writer:     writer,
	}
	if cfg.Output.MetricsAddr != "" {
		app.Exporter = util.NewPrometheusExporter(cfg.Output.MetricsAddr, metrics.Registry, a.logger)
	}

	a.logger.Info("assembled crawl",
		slog.String("input", cfg.Input.File),
		slog.Int("max_domains", cfg.Input.MaxDomains),
		slog.Int("concurrency", cfg.Concurrency.NumWorkers),
		slog.Int("queue_size", cfg.Concurrency.QueueSize),
		slog.Bool("streaming", cfg.HTTP.Streaming),
	)
	return app, nil
}

// resultWriter opens the configured per-domain outcome stores. The result is
// nil when none is configured.
func (a *Assembler) resultWriter() (repository.ResultWriter, error) {
	var writers []repository.ResultWriter
	closeAll := func() {
		for _, w := range writers {
			w.Close()
		}
	}

	if path := a.config.Output.ResultsFile; path != "" {
		w, err := storage.NewResultWriter(path)
		if err != nil {
			return nil, fmt.Errorf("failed to create result writer: %w", err)
		}
		writers = append(writers, w)
	}

	if dsn := a.config.Output.PostgresDSN; dsn != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		w, err := storage.NewPostgresWriter(ctx, dsn, a.config.Output.PostgresTable, a.config.Output.PostgresBatch)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("failed to open postgres result store: %w", err)
		}
		writers = append(writers, w)
		a.logger.Info("storing outcomes in postgres", slog.String("table", a.config.Output.PostgresTable))
	}

	return storage.NewMultiWriter(writers...), nil
}

// ExpectedTotal returns the number of domains the run will most likely
// process, for progress displays. It is an upper bound when the list has
// a header or duplicates.
func (a *Assembler) ExpectedTotal() int64 {
	if a.config.Input.MaxDomains > 0 {
		return int64(a.config.Input.MaxDomains)
	}
	lines, err := util.CountNumLines(a.config.Input.File)
	if err != nil {
		a.logger.Warn("failed to count input lines", slog.Any("error", err))
		return 0
	}
	return lines
}

// Close flushes the result log and releases the input
func (app *App) Close(ctx context.Context) error {
	var errs []error
	if app.writer != nil {
		errs = append(errs, app.writer.Close())
	}
	errs = append(errs, app.Source.Close())
	if app.Exporter != nil {
		errs = append(errs, app.Exporter.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// FlushResults writes buffered result log lines to disk
func (app *App) FlushResults() error {
	if app.writer == nil {
		return nil
	}
	return app.writer.Flush()
}
