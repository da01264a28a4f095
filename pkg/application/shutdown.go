package application

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dd32/crawl-a-million-miles/pkg/domain/entity"
)

// ExitInterrupted is the process exit code after a second interrupt
const ExitInterrupted = 130

// Drainer is the part of the scheduler the shutdown controller drives
type Drainer interface {
	Drain()
	Status() Status
	Done() <-chan struct{}
}

// ShutdownOptions holds the side effects of the shutdown protocol
type ShutdownOptions struct {
	// Flush writes the current stats with the given label
	Flush func(label string)
	// Exit terminates the process
	Exit func(code int)
	// Release deregisters the interrupt handler
	Release func()
}

// ShutdownController implements the two-stage interrupt protocol: the first
// interrupt drains, the second flushes the current stats and exits.
type ShutdownController struct {
	state   atomic.Int32
	sched   Drainer
	opts    ShutdownOptions
	logger  *slog.Logger
	release sync.Once
}

// NewShutdownController creates a controller in the running state
func NewShutdownController(sched Drainer, opts ShutdownOptions, logger *slog.Logger) *ShutdownController {
	if logger == nil {
		logger = slog.Default()
	}
	return &ShutdownController{sched: sched, opts: opts, logger: logger}
}

// State returns the current state
func (c *ShutdownController) State() entity.ShutdownState {
	return entity.ShutdownState(c.state.Load())
}

// Interrupt advances the state machine by one step
func (c *ShutdownController) Interrupt() {
	switch {
	case c.state.CompareAndSwap(int32(entity.Running), int32(entity.Draining)):
		c.sched.Drain()
		status := c.sched.Status()
		c.logger.Info("interrupt received, draining; interrupt again to exit immediately",
			slog.Int64("in_flight", status.InFlight),
			slog.Int64("admitted", status.Admitted),
		)

	case c.state.CompareAndSwap(int32(entity.Draining), int32(entity.Killing)):
		status := c.sched.Status()
		c.logger.Warn("second interrupt, exiting immediately",
			slog.Int64("abandoned", status.Admitted),
		)
		if c.opts.Flush != nil {
			c.opts.Flush(LabelKilled)
		}
		if c.opts.Exit != nil {
			c.opts.Exit(ExitInterrupted)
		}
	}
}

// Watch checks every interval whether the scheduler has finished. Once it
// has, the interrupt handler is released and Watch returns.
func (c *ShutdownController) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		select {
		case <-c.sched.Done():
		default:
			if c.State() == entity.Draining {
				c.logger.Info("draining", slog.Int64("in_flight", c.sched.Status().InFlight))
			}
			continue
		}

		if c.State() == entity.Draining {
			c.logger.Info("stopped normally")
		}
		c.Release()
		return
	}
}

// Release deregisters the interrupt handler. Only the first call has an
// effect.
func (c *ShutdownController) Release() {
	c.release.Do(func() {
		if c.opts.Release != nil {
			c.opts.Release()
		}
	})
}
