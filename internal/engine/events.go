package engine

import "log/slog"

// Events is the engine's outbound interface: a struct of optional callbacks,
// one per event. Nil fields are skipped. Callbacks may be invoked
// concurrently from several workers and must be safe for that; a panicking
// callback is recovered and logged, never allowed to take the engine down.
type Events struct {
	// Progress reports the current item's completion, 0..100.
	Progress func(pct int)
	// Status carries the human-readable state label ("Downloading... 2.1 MB/s | ETA 0:42").
	Status func(s string)
	// Log carries one log-pane line.
	Log func(s string)
	// Error carries a user-facing failure line.
	Error func(s string)
	// ItemStarted fires when a URL is claimed by a worker.
	ItemStarted func(url string)
	// ItemFinished fires once per item. info is the output path on success,
	// the failure reason otherwise.
	ItemFinished func(url string, success bool, info string)
	// AllFinished fires exactly once, after every ItemFinished.
	AllFinished func(successCount, failCount int)
}

// emitter wraps Events with panic recovery.
type emitter struct {
	ev  Events
	log *slog.Logger
}

func (e *emitter) guard(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("Event callback panicked", "event", name, "panic", r)
		}
	}()
	fn()
}

func (e *emitter) Progress(pct int) {
	if e.ev.Progress != nil {
		e.guard("progress", func() { e.ev.Progress(pct) })
	}
}

func (e *emitter) Status(s string) {
	if e.ev.Status != nil {
		e.guard("status", func() { e.ev.Status(s) })
	}
}

func (e *emitter) Log(s string) {
	if e.ev.Log != nil {
		e.guard("log", func() { e.ev.Log(s) })
	}
}

func (e *emitter) Error(s string) {
	if e.ev.Error != nil {
		e.guard("error", func() { e.ev.Error(s) })
	}
}

func (e *emitter) ItemStarted(url string) {
	if e.ev.ItemStarted != nil {
		e.guard("itemStarted", func() { e.ev.ItemStarted(url) })
	}
}

func (e *emitter) ItemFinished(url string, success bool, info string) {
	if e.ev.ItemFinished != nil {
		e.guard("itemFinished", func() { e.ev.ItemFinished(url, success, info) })
	}
}

func (e *emitter) AllFinished(successCount, failCount int) {
	if e.ev.AllFinished != nil {
		e.guard("allFinished", func() { e.ev.AllFinished(successCount, failCount) })
	}
}
