package cli

import (
	"io"
	"log/slog"
	"sync"

	"github.com/cheggaaa/pb/v3"

	"ytdle/internal/engine"
)

var barTemplate pb.ProgressBarTemplate = `{{ bar . "[" "=" ">" " " "]" }} {{percent . }} {{string . "status"}}`

// progressUI renders the live download bar and forwards engine events into
// the logger. One bar tracks the current item; with concurrent workers it
// shows whichever item reported last, which matches the single-line terminal
// budget.
type progressUI struct {
	log     *slog.Logger
	verbose bool

	mu  sync.Mutex
	bar *pb.ProgressBar
}

func newProgressUI(out io.Writer, log *slog.Logger, verbose bool) *progressUI {
	bar := barTemplate.New(100)
	bar.SetWriter(out)
	bar.Set("status", "Waiting...")
	bar.Start()
	return &progressUI{log: log, verbose: verbose, bar: bar}
}

// Events returns the callback set the engine invokes. Callbacks arrive from
// several workers; the bar is guarded by the mutex.
func (u *progressUI) Events() engine.Events {
	return engine.Events{
		Progress: func(pct int) {
			u.mu.Lock()
			u.bar.SetCurrent(int64(pct))
			u.mu.Unlock()
		},
		Status: func(s string) {
			u.mu.Lock()
			u.bar.Set("status", s)
			u.mu.Unlock()
		},
		Log: func(s string) {
			u.log.Info(s)
		},
		Error: func(s string) {
			u.log.Error(s)
		},
		ItemStarted: func(url string) {
			u.log.Debug("Item started", "url", url)
		},
		ItemFinished: func(url string, success bool, info string) {
			if success {
				u.log.Info("Completed", "url", url, "output", info)
			} else {
				u.log.Warn("Not completed", "url", url, "reason", info)
			}
		},
		AllFinished: func(successCount, failCount int) {
			u.mu.Lock()
			u.bar.Set("status", "Done")
			u.bar.SetCurrent(100)
			u.mu.Unlock()
		},
	}
}

func (u *progressUI) Close() {
	u.mu.Lock()
	u.bar.Finish()
	u.mu.Unlock()
}
