// Package resource bounds the concurrency and IO budget of the engram
// build phase.
//
// Model construction is the only place the module does heavy work:
// decoding the full original vocabulary and, when a remote artifact
// store is configured, moving bundles over the network. The controller
// keeps that work inside an explicit budget so embedding engram in a
// larger process does not starve it.
package resource

import (
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits.
type Config struct {
	// MaxDecodeWorkers is the maximum number of concurrent vocabulary
	// decode workers. If 0, defaults to runtime.NumCPU().
	MaxDecodeWorkers int64

	// IOLimitBytesPerSec is the maximum throughput for artifact
	// transfers to or from a remote store. If 0, unlimited.
	IOLimitBytesPerSec int64
}

// Controller manages the build-phase budget.
// A nil *Controller is valid and enforces nothing.
type Controller struct {
	workerSem *semaphore.Weighted
	ioLimiter *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxDecodeWorkers <= 0 {
		cfg.MaxDecodeWorkers = int64(runtime.NumCPU())
	}

	c := &Controller{
		workerSem: semaphore.NewWeighted(cfg.MaxDecodeWorkers),
	}

	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}

	return c
}

// AcquireWorker reserves a decode worker slot, blocking until one is
// available or ctx is canceled.
func (c *Controller) AcquireWorker(ctx context.Context) error {
	if c == nil {
		return nil
	}

	return c.workerSem.Acquire(ctx, 1)
}

// ReleaseWorker returns a decode worker slot.
func (c *Controller) ReleaseWorker() {
	if c == nil {
		return
	}

	c.workerSem.Release(1)
}

// WaitIO blocks until the IO limiter admits a transfer of the given
// size. Transfers larger than the limiter burst are admitted in
// burst-sized installments.
func (c *Controller) WaitIO(ctx context.Context, bytes int) error {
	if c == nil || c.ioLimiter == nil || bytes <= 0 {
		return nil
	}

	burst := c.ioLimiter.Burst()
	for bytes > 0 {
		n := bytes
		if n > burst {
			n = burst
		}
		if err := c.ioLimiter.WaitN(ctx, n); err != nil {
			return err
		}
		bytes -= n
	}

	return nil
}
