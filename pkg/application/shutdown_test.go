package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dd32/crawl-a-million-miles/pkg/domain/entity"
	"github.com/dd32/crawl-a-million-miles/pkg/stats"
)

type fakeDrainer struct {
	mu     sync.Mutex
	drains int
	done   chan struct{}
}

func newFakeDrainer() *fakeDrainer {
	return &fakeDrainer{done: make(chan struct{})}
}

func (d *fakeDrainer) Drain() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.drains++
}

func (d *fakeDrainer) Status() Status { return Status{InFlight: 2, Admitted: 3} }

func (d *fakeDrainer) Done() <-chan struct{} { return d.done }

type shutdownEvents struct {
	mu       sync.Mutex
	events   []string
	exitCode int
	releases int
}

func (e *shutdownEvents) record(event string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
}

func (e *shutdownEvents) options() ShutdownOptions {
	return ShutdownOptions{
		Flush: func(label string) { e.record("flush:" + label) },
		Exit: func(code int) {
			e.record("exit")
			e.exitCode = code
		},
		Release: func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			e.releases++
		},
	}
}

func TestShutdownTwoStage(t *testing.T) {
	drainer := newFakeDrainer()
	events := &shutdownEvents{}
	c := NewShutdownController(drainer, events.options(), discard)

	if c.State() != entity.Running {
		t.Fatalf("State() = %v, want running", c.State())
	}

	c.Interrupt()
	if c.State() != entity.Draining {
		t.Errorf("State() = %v, want draining", c.State())
	}
	if drainer.drains != 1 {
		t.Errorf("drains = %d, want 1", drainer.drains)
	}
	if len(events.events) != 0 {
		t.Errorf("events after first interrupt = %v, want none", events.events)
	}

	c.Interrupt()
	if c.State() != entity.Killing {
		t.Errorf("State() = %v, want killing", c.State())
	}
	want := []string{"flush:" + LabelKilled, "exit"}
	if len(events.events) != len(want) || events.events[0] != want[0] || events.events[1] != want[1] {
		t.Errorf("events = %v, want %v (flush before exit)", events.events, want)
	}
	if events.exitCode != ExitInterrupted {
		t.Errorf("exit code = %d, want %d", events.exitCode, ExitInterrupted)
	}

	c.Interrupt()
	if len(events.events) != 2 {
		t.Errorf("events after third interrupt = %v, want no more", events.events)
	}
}

func TestWatchReleasesOnce(t *testing.T) {
	drainer := newFakeDrainer()
	events := &shutdownEvents{}
	c := NewShutdownController(drainer, events.options(), discard)

	c.Interrupt()
	close(drainer.done)

	watched := make(chan struct{})
	go func() {
		c.Watch(context.Background(), time.Millisecond)
		close(watched)
	}()

	select {
	case <-watched:
	case <-time.After(5 * time.Second):
		t.Fatalf("Watch() did not return after the scheduler finished")
	}

	c.Release()
	c.Release()
	if events.releases != 1 {
		t.Errorf("releases = %d, want 1", events.releases)
	}
}

func TestWatchStopsOnContext(t *testing.T) {
	c := NewShutdownController(newFakeDrainer(), ShutdownOptions{}, discard)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	watched := make(chan struct{})
	go func() {
		c.Watch(ctx, time.Millisecond)
		close(watched)
	}()

	select {
	case <-watched:
	case <-time.After(5 * time.Second):
		t.Fatalf("Watch() did not return after cancel")
	}
}

func TestShutdownDrainsScheduler(t *testing.T) {
	transport := newFakeTransport(nil)
	transport.release = make(chan struct{})
	h := newHarness(Config{Concurrency: 1, QueueSize: 2, RefillInterval: time.Hour}, domains(20), transport)

	events := &shutdownEvents{}
	c := NewShutdownController(h.scheduler, events.options(), discard)

	errCh := make(chan error, 1)
	go func() { errCh <- h.scheduler.Run(context.Background()) }()
	for h.scheduler.Status().InFlight < 1 {
		time.Sleep(time.Millisecond)
	}

	c.Interrupt()
	close(transport.release)

	if err := <-errCh; err != nil {
		t.Fatalf("Run() = %v, want nil", err)
	}
	c.Watch(context.Background(), time.Millisecond)

	if got := h.aggregator.Get(stats.Processed); got != 2 {
		t.Errorf("processed = %d, want 2", got)
	}
	if events.releases != 1 || events.exitCode != 0 {
		t.Errorf("releases = %d, exit = %d, want 1 release and no exit", events.releases, events.exitCode)
	}
}

type failingSink struct{ calls int }

func (s *failingSink) Write(entity.StatsSnapshot, string) error {
	s.calls++
	return errors.New("disk full")
}

type recordingSink struct {
	labels []string
	last   entity.StatsSnapshot
}

func (s *recordingSink) Write(snapshot entity.StatsSnapshot, label string) error {
	s.labels = append(s.labels, label)
	s.last = snapshot
	return nil
}

type recordingObserver struct {
	mu      sync.Mutex
	updates int
	status  Status
}

func (o *recordingObserver) OnStatsUpdate(_ entity.StatsSnapshot, status Status) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.updates++
	o.status = status
}

func (o *recordingObserver) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.updates
}

func TestReporterFlush(t *testing.T) {
	aggregator := stats.NewAggregator(nil)
	aggregator.Increment(stats.Processed)

	failing := &failingSink{}
	recording := &recordingSink{}
	observer := &recordingObserver{}

	r := NewReporter(aggregator, newFakeDrainer(), time.Hour, discard)
	r.AddSink(failing)
	r.AddSink(recording)
	r.RegisterObserver(observer)

	r.Flush(LabelFinal)

	if failing.calls != 1 {
		t.Errorf("failing sink calls = %d, want 1", failing.calls)
	}
	if len(recording.labels) != 1 || recording.labels[0] != LabelFinal {
		t.Errorf("labels = %v, want [%s]", recording.labels, LabelFinal)
	}
	if recording.last.Processed != 1 {
		t.Errorf("Processed = %d, want 1", recording.last.Processed)
	}
	if observer.count() != 1 || observer.status.InFlight != 2 {
		t.Errorf("observer = %d updates, status %+v, want 1 update with the scheduler status", observer.updates, observer.status)
	}
}

func TestReporterRun(t *testing.T) {
	aggregator := stats.NewAggregator(nil)
	observer := &recordingObserver{}
	r := NewReporter(aggregator, nil, time.Hour, discard)
	r.RegisterObserver(observer)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for observer.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("observer never notified")
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-done
}
