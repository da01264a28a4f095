package application

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dd32/crawl-a-million-miles/pkg/domain/entity"
	"github.com/dd32/crawl-a-million-miles/pkg/domain/repository"
	"github.com/dd32/crawl-a-million-miles/pkg/stats"
)

// Report labels
const (
	LabelPeriodic = "periodic"
	LabelFinal    = "final"
	LabelKilled   = "killed"
)

// observerInterval is the refresh period of progress displays
const observerInterval = 500 * time.Millisecond

// StatsObserver observes stats changes
type StatsObserver interface {
	OnStatsUpdate(snapshot entity.StatsSnapshot, status Status)
}

// StatusProvider reports the scheduler status
type StatusProvider interface {
	Status() Status
}

// Reporter writes snapshots to report sinks on a fixed interval and keeps
// observers up to date
type Reporter struct {
	aggregator *stats.Aggregator
	status     StatusProvider
	interval   time.Duration
	logger     *slog.Logger

	sinks     []repository.ReportSink
	observers []StatsObserver
	mu        sync.Mutex
}

// NewReporter creates a reporter
func NewReporter(aggregator *stats.Aggregator, status StatusProvider, interval time.Duration, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{
		aggregator: aggregator,
		status:     status,
		interval:   interval,
		logger:     logger,
	}
}

// AddSink registers a report sink
func (r *Reporter) AddSink(sink repository.ReportSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks = append(r.sinks, sink)
}

// RegisterObserver registers a stats observer
func (r *Reporter) RegisterObserver(observer StatsObserver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, observer)
}

// Run reports until ctx is canceled
func (r *Reporter) Run(ctx context.Context) {
	reportTicker := time.NewTicker(r.interval)
	defer reportTicker.Stop()
	observerTicker := time.NewTicker(observerInterval)
	defer observerTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-reportTicker.C:
			r.Flush(LabelPeriodic)
		case <-observerTicker.C:
			r.notify(r.aggregator.Snapshot())
		}
	}
}

// Flush writes the current snapshot to every sink. Sink errors are logged.
func (r *Reporter) Flush(label string) {
	snapshot := r.aggregator.Snapshot()

	r.mu.Lock()
	for _, sink := range r.sinks {
		if err := sink.Write(snapshot, label); err != nil {
			r.logger.Error("failed to write stats report",
				slog.String("label", label),
				slog.Any("error", err),
			)
		}
	}
	r.mu.Unlock()

	r.notify(snapshot)
}

func (r *Reporter) notify(snapshot entity.StatsSnapshot) {
	var status Status
	if r.status != nil {
		status = r.status.Status()
	}

	r.mu.Lock()
	observers := make([]StatsObserver, len(r.observers))
	copy(observers, r.observers)
	r.mu.Unlock()

	for _, observer := range observers {
		observer.OnStatsUpdate(snapshot, status)
	}
}
