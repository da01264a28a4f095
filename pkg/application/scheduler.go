package application

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dd32/crawl-a-million-miles/pkg/classifier"
	"github.com/dd32/crawl-a-million-miles/pkg/domain/entity"
	"github.com/dd32/crawl-a-million-miles/pkg/domain/repository"
	"github.com/dd32/crawl-a-million-miles/pkg/domain/service"
	"github.com/dd32/crawl-a-million-miles/pkg/stats"
	"golang.org/x/sync/semaphore"
)

// Config holds the scheduler configuration
type Config struct {
	// Concurrency is the maximum number of fetches in flight
	Concurrency int
	// QueueSize is the maximum number of admitted, not yet completed domains
	QueueSize int
	// RefillInterval is the period of the admission loop
	RefillInterval time.Duration
	// Scheme is used to build https://domain/ style URLs
	Scheme string
	// Streaming selects the chunked classification path
	Streaming bool
}

// Status is a point-in-time view of the scheduler
type Status struct {
	Admitted   int64
	InFlight   int64
	Peak       int64
	Dispatched int64
	Completed  int64
	Exhausted  bool
	Draining   bool
	Done       bool
}

// Scheduler admits domains from a source in batches and keeps at most
// Concurrency fetches in flight
type Scheduler struct {
	config  Config
	source  repository.DomainSource
	worker  *worker
	sem     *semaphore.Weighted
	metrics *stats.Metrics
	logger  *slog.Logger

	admitted   atomic.Int64
	inFlight   atomic.Int64
	peak       atomic.Int64
	dispatched atomic.Int64
	completed  atomic.Int64
	exhausted  atomic.Bool
	draining   atomic.Bool

	wg        sync.WaitGroup
	wake      chan struct{}
	drainCh   chan struct{}
	drainOnce sync.Once
	done      chan struct{}
}

// NewScheduler creates a scheduler. writer and metrics may be nil.
func NewScheduler(
	config Config,
	source repository.DomainSource,
	transport service.Transport,
	c *classifier.Classifier,
	aggregator *stats.Aggregator,
	writer repository.ResultWriter,
	metrics *stats.Metrics,
	logger *slog.Logger,
) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Scheme == "" {
		config.Scheme = "https"
	}
	return &Scheduler{
		config: config,
		source: source,
		worker: &worker{
			scheme:     config.Scheme,
			streaming:  config.Streaming,
			transport:  transport,
			classifier: c,
			aggregator: aggregator,
			writer:     writer,
			logger:     logger,
		},
		sem:     semaphore.NewWeighted(int64(config.Concurrency)),
		metrics: metrics,
		logger:  logger,
		wake:    make(chan struct{}, 1),
		drainCh: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Run admits domains until the source is exhausted, or until Drain was
// called, and returns once every admitted domain has completed. It must be
// called once.
func (s *Scheduler) Run(ctx context.Context) error {
	defer close(s.done)

	ticker := time.NewTicker(s.config.RefillInterval)
	defer ticker.Stop()

	drained := s.drainCh
	s.refill(ctx)
	for {
		if s.quiescent() {
			s.logger.Debug("scheduler finished",
				slog.Int64("completed", s.completed.Load()),
				slog.Int64("peak_in_flight", s.peak.Load()),
			)
			return nil
		}

		select {
		case <-ticker.C:
			s.refill(ctx)
		case <-s.wake:
		case <-drained:
			drained = nil
		case <-ctx.Done():
			s.Drain()
			s.wg.Wait()
			return ctx.Err()
		}
	}
}

// quiescent reports whether nothing more will happen: no admitted domain is
// left and no new one will be admitted
func (s *Scheduler) quiescent() bool {
	if s.admitted.Load() > 0 {
		return false
	}
	return s.exhausted.Load() || s.draining.Load()
}

// refill tops the admitted set up to QueueSize. Only the Run goroutine
// reads the source.
func (s *Scheduler) refill(ctx context.Context) {
	if s.draining.Load() || s.exhausted.Load() {
		return
	}
	s.logger.Debug("refill", slog.Int64("admitted", s.admitted.Load()))

	for s.admitted.Load() < int64(s.config.QueueSize) {
		if s.draining.Load() {
			return
		}
		domain, ok, err := s.source.Next()
		if err != nil {
			s.logger.Error("domain source failed", slog.Any("error", err))
			s.exhausted.Store(true)
			return
		}
		if !ok {
			s.exhausted.Store(true)
			return
		}
		s.admit(ctx, domain)
	}
}

func (s *Scheduler) admit(ctx context.Context, domain string) {
	s.admitted.Add(1)
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		defer s.complete()

		task := entity.FetchTask{Domain: domain}
		if err := s.sem.Acquire(ctx, 1); err != nil {
			s.worker.fail(task, time.Now(), errDispatchCanceled.Error())
			return
		}
		defer s.sem.Release(1)

		s.dispatched.Add(1)
		s.enter()
		defer s.leave()

		task.DispatchedAt = time.Now()
		s.worker.process(ctx, task)
	}()
}

func (s *Scheduler) enter() {
	n := s.inFlight.Add(1)
	for {
		peak := s.peak.Load()
		if n <= peak || s.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	s.metrics.SetInFlight(n)
}

func (s *Scheduler) leave() {
	s.metrics.SetInFlight(s.inFlight.Add(-1))
}

func (s *Scheduler) complete() {
	s.completed.Add(1)
	s.admitted.Add(-1)
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Drain stops admission. Domains that were already admitted still run to
// completion. Safe to call more than once and from any goroutine.
func (s *Scheduler) Drain() {
	s.drainOnce.Do(func() {
		s.draining.Store(true)
		close(s.drainCh)
	})
}

// Done is closed when Run returns
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

// Status returns the current counters
func (s *Scheduler) Status() Status {
	status := Status{
		Admitted:   s.admitted.Load(),
		InFlight:   s.inFlight.Load(),
		Peak:       s.peak.Load(),
		Dispatched: s.dispatched.Load(),
		Completed:  s.completed.Load(),
		Exhausted:  s.exhausted.Load(),
		Draining:   s.draining.Load(),
	}
	select {
	case <-s.done:
		status.Done = true
	default:
	}
	return status
}
