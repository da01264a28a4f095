package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dd32/crawl-a-million-miles/pkg/application"
	"github.com/dd32/crawl-a-million-miles/pkg/common"
	"github.com/dd32/crawl-a-million-miles/pkg/config"
	"github.com/dd32/crawl-a-million-miles/pkg/interface/cli"
	"github.com/dd32/crawl-a-million-miles/pkg/interface/presenter"
	"github.com/jessevdk/go-flags"
)

// watchInterval is the period of the "draining, N in flight" check
const watchInterval = time.Second

func main() {
	// Parse command line flags
	opts, err := cli.ParseFlags(os.Args[1:])
	if err != nil {
		var flagsErr *flags.Error
		if !errors.As(err, &flagsErr) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}

	if opts.Version {
		fmt.Println(common.PV.String())
		return
	}

	cfg, err := opts.Config()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger, closeLog, err := cli.NewLogger(opts, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	code := run(opts, cfg, logger, closeLog)
	closeLog()
	os.Exit(code)
}

func run(opts *cli.Options, cfg *config.Config, logger *slog.Logger, closeLog func() error) int {
	// Assemble the crawl with all dependencies
	assembler := cli.NewAssembler(cfg, logger)
	app, err := assembler.Assemble()
	if err != nil {
		logger.Error("failed to start", slog.Any("error", err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if app.Exporter != nil {
		app.Exporter.Start()
	}

	var prog *tea.Program
	sigChan := make(chan os.Signal, 1)

	controller := application.NewShutdownController(app.Scheduler, application.ShutdownOptions{
		Flush: app.Reporter.Flush,
		Exit: func(code int) {
			if prog != nil {
				prog.Kill()
				presenter.NewConsoleSink(os.Stdout).Write(app.Aggregator.Snapshot(), application.LabelKilled)
			}
			if err := app.FlushResults(); err != nil {
				logger.Error("failed to flush results", slog.Any("error", err))
			}
			closeLog()
			os.Exit(code)
		},
		Release: func() { signal.Stop(sigChan) },
	}, logger)

	// Setup presenters
	var bar *presenter.ProgressBar
	if opts.ShowDashboard {
		dashboard := presenter.NewDashboard(assembler.ExpectedTotal(), controller.Interrupt)
		app.Reporter.RegisterObserver(dashboard)
		prog = tea.NewProgram(dashboard, tea.WithAltScreen())
	} else {
		app.Reporter.AddSink(presenter.NewConsoleSink(os.Stdout))
		if opts.ShowProgress {
			bar = presenter.NewProgressBar(os.Stderr, assembler.ExpectedTotal())
			app.Reporter.RegisterObserver(bar)
		}
	}

	// Handle interrupt signals
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		for {
			select {
			case <-sigChan:
				controller.Interrupt()
			case <-ctx.Done():
				return
			}
		}
	}()

	go app.Reporter.Run(ctx)
	go controller.Watch(ctx, watchInterval)

	crawl := func() error {
		err := app.Scheduler.Run(ctx)
		app.Reporter.Flush(application.LabelFinal)
		return err
	}

	if prog != nil {
		// Run crawl in background, the TUI owns the main goroutine
		errCh := make(chan error, 1)
		go func() {
			errCh <- crawl()
			prog.Quit()
		}()

		if _, err := prog.Run(); err != nil {
			logger.Error("dashboard failed", slog.Any("error", err))
		}
		err = <-errCh

		presenter.NewConsoleSink(os.Stdout).Write(app.Aggregator.Snapshot(), application.LabelFinal)
	} else {
		logger.Info("starting crawl", slog.String("version", common.PV.Short()))
		err = crawl()
		if bar != nil {
			bar.Wait()
		}
	}

	controller.Release()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if closeErr := app.Close(shutdownCtx); closeErr != nil {
		logger.Error("failed to close outputs", slog.Any("error", closeErr))
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("crawl failed", slog.Any("error", err))
		return 1
	}
	logger.Info("crawl finished", slog.Int64("processed", app.Aggregator.Snapshot().Processed))
	return 0
}
