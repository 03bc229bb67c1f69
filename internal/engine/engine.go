// Package engine is the download orchestrator: a bounded-concurrency pool of
// workers draining a FIFO of URLs, each worker running the per-item driver
// with format fallback, and a pause/skip/cancel control plane that is safe to
// poke from any goroutine.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"ytdle/internal/config"
	"ytdle/internal/fetch"
	"ytdle/internal/history"
	"ytdle/internal/integrity"
	"ytdle/internal/network"
	"ytdle/internal/queue"
)

// Engine runs one batch of URLs. Construct with New, drive with Run; the
// control methods may be called concurrently while Run is in flight.
type Engine struct {
	opts    config.Options
	urls    []string
	store   *history.Store
	fetcher fetch.Fetcher
	monitor *network.Monitor
	log     *slog.Logger
	em      *emitter
	queue   *queue.FIFO
	batchID string
	total   int

	// checksum is swappable in tests.
	checksum func(path string) (string, error)

	cancelled atomic.Bool
	paused    atomic.Bool
	skip      atomic.Bool
	success   atomic.Int64
	fail      atomic.Int64
	inFlight  atomic.Int64

	cancelLog sync.Once
}

// New builds an engine for one batch. opts must already be normalized.
func New(fetcher fetch.Fetcher, store *history.Store, opts config.Options, urls []string, events Events, log *slog.Logger) *Engine {
	e := &Engine{
		opts:     opts,
		urls:     urls,
		store:    store,
		fetcher:  fetcher,
		monitor:  network.NewMonitor(log),
		log:      log,
		queue:    queue.NewFromURLs(urls),
		batchID:  uuid.New().String(),
		total:    len(urls),
		checksum: integrity.Checksum,
	}
	e.em = &emitter{ev: events, log: log}
	return e
}

// Run processes the whole batch and returns the success and failure counts.
// It blocks until every in-flight item has finalized; AllFinished has fired
// by the time it returns. An empty batch emits AllFinished(0,0) and nothing
// else.
func (e *Engine) Run(ctx context.Context) (successCount, failCount int) {
	if e.total == 0 {
		e.em.AllFinished(0, 0)
		return 0, 0
	}

	version := e.fetcher.Version()
	if version == "" {
		version = "unknown"
	}
	e.em.Log("yt-dlp version: " + version)

	n := e.opts.MaxConcurrent
	if n > e.total {
		n = e.total
	}
	e.em.Log(fmt.Sprintf("Using %d concurrent workers", n))

	sem := semaphore.NewWeighted(int64(n))
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.worker(ctx, sem)
		}()
	}
	wg.Wait()

	successCount = int(e.success.Load())
	failCount = int(e.fail.Load())
	e.em.AllFinished(successCount, failCount)
	return successCount, failCount
}

// worker claims queued items until the queue drains or cancel is observed.
func (e *Engine) worker(ctx context.Context, sem *semaphore.Weighted) {
	for {
		if e.cancelled.Load() {
			e.cancelLog.Do(func() {
				e.em.Log("Cancellation requested. Stopping before next item.")
			})
			return
		}
		if e.paused.Load() {
			time.Sleep(pauseTick)
			continue
		}
		qi, ok := e.queue.TryPop()
		if !ok {
			return
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			return
		}
		stop := e.process(ctx, qi)
		sem.Release(1)
		if stop {
			return
		}
	}
}

// process runs one item under panic recovery and updates the counters.
// It reports whether the worker should stop (item observed cancellation).
func (e *Engine) process(ctx context.Context, qi queue.Item) (stop bool) {
	e.inFlight.Add(1)
	defer e.inFlight.Add(-1)
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("Worker panic recovered", "url", qi.URL, "panic", r)
			e.fail.Add(1)
			e.em.ItemFinished(qi.URL, false, "internal error")
		}
	}()

	it := &item{index: qi.Index, url: qi.URL}
	switch e.runItem(ctx, it) {
	case outcomeFinished:
		e.success.Add(1)
	case outcomeCancelled:
		e.fail.Add(1)
		return true
	default:
		e.fail.Add(1)
	}
	return false
}

// Cancel stops the batch: no new items start and every running download is
// interrupted at its next progress event. The latch is monotonic for the
// life of the batch.
func (e *Engine) Cancel() {
	e.cancelled.Store(true)
}

// Pause suspends all workers cooperatively. Running downloads hold at their
// next progress event; queued items stay queued.
func (e *Engine) Pause() {
	e.paused.Store(true)
}

// Resume clears the pause flag; every blocked worker observes it within one
// pause tick.
func (e *Engine) Resume() {
	e.paused.Store(false)
}

// SkipCurrent abandons one currently running item. Under concurrency the
// flag is consumed by exactly one driver.
func (e *Engine) SkipCurrent() {
	e.skip.Store(true)
}

func (e *Engine) IsPaused() bool {
	return e.paused.Load()
}

func (e *Engine) IsCancelled() bool {
	return e.cancelled.Load()
}

// CheckNetwork probes connectivity and caches the result.
func (e *Engine) CheckNetwork() bool {
	return e.monitor.Check()
}

// NetworkStatus returns the cached connectivity badge.
func (e *Engine) NetworkStatus() string {
	return e.monitor.Status()
}

// Counts returns the running success and failure tallies.
func (e *Engine) Counts() (successCount, failCount int) {
	return int(e.success.Load()), int(e.fail.Load())
}

// BatchID identifies this batch in history metadata and API responses.
func (e *Engine) BatchID() string {
	return e.batchID
}

// InFlight returns how many items are currently downloading.
func (e *Engine) InFlight() int {
	return int(e.inFlight.Load())
}

// QueueSnapshot returns the still-pending items in order.
func (e *Engine) QueueSnapshot() []queue.Item {
	return e.queue.Snapshot()
}
