package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ytdle/internal/artifacts"
	"ytdle/internal/diagnostics"
	"ytdle/internal/fetch"
	"ytdle/internal/history"
)

// item is the per-URL state owned by exactly one driver run. The fetcher
// invokes the progress hook sequentially, so no locking is needed.
type item struct {
	index      int
	url        string
	title      string
	attempt    int
	outputPath string
	workDir    string
	stem       string
	candidates map[string]struct{}
	lastLogged int
}

type outcome int

const (
	outcomeFinished outcome = iota
	outcomeFailed
	outcomeSkipped
	outcomeCancelled
)

// runItem drives one URL through the attempt loop and finalizes it. The
// returned outcome tells the worker whether the batch should continue.
func (e *Engine) runItem(ctx context.Context, it *item) outcome {
	it.candidates = make(map[string]struct{})
	it.lastLogged = -10
	it.workDir = e.opts.Directory

	if err := os.MkdirAll(e.opts.Directory, 0755); err != nil {
		return e.finalizeFailed(it, fetch.Classify(fmt.Errorf("disk error creating %s: %w", e.opts.Directory, err)))
	}
	if err := diagnostics.CheckTargetDir(e.opts.Directory); err != nil {
		return e.finalizeFailed(it, fetch.Classify(err))
	}

	e.em.ItemStarted(it.url)
	e.em.Status(fmt.Sprintf("Starting %d/%d", it.index, e.total))
	e.em.Progress(0)
	e.em.Log("Preparing: " + it.url)

	maxAttempts := e.opts.MaxAttempts()
	for it.attempt = 0; it.attempt < maxAttempts; it.attempt++ {
		if e.cancelled.Load() {
			return e.finalizeCancelled(it)
		}

		req := fetch.BuildRequest(e.opts, it.attempt)
		if it.attempt > 0 {
			e.em.Log(fmt.Sprintf("Retrying with fallback format (attempt %d/%d)", it.attempt+1, maxAttempts))
		}

		e.probeInfo(ctx, it, req)

		err := e.fetcher.Download(ctx, it.url, req, e.progressHook(it))
		if err == nil {
			return e.finalizeFinished(it)
		}

		if errors.Is(err, fetch.ErrSkipCurrent) {
			return e.finalizeSkipped(it)
		}
		cerr := fetch.Classify(err)
		if cerr.Kind == fetch.Cancelled {
			return e.finalizeCancelled(it)
		}
		if cerr.Kind == fetch.Network {
			e.em.Log("Network check: " + e.networkBadge())
		}
		if cerr.Kind == fetch.FormatNotAvailable {
			if it.attempt < maxAttempts-1 {
				e.em.Log("Format not available, trying fallback...")
				continue
			}
			e.em.Log("All format attempts failed for " + it.url)
			return e.finalizeFailed(it, cerr)
		}
		if cerr.Kind.Retryable() && it.attempt < maxAttempts-1 {
			e.em.Log(fmt.Sprintf("Download error: %s: %s", cerr.Kind, cerr.Error()))
			continue
		}
		return e.finalizeFailed(it, cerr)
	}
	// Loop exits only through a finalize; the budget check above re-raises
	// on the last attempt.
	return e.finalizeFailed(it, fetch.Classify(errors.New("attempt budget exhausted")))
}

// probeInfo runs the non-downloading metadata probe. Failures are logged and
// ignored; a download may still succeed where the probe did not.
func (e *Engine) probeInfo(ctx context.Context, it *item, req fetch.Request) {
	info, err := e.fetcher.Probe(ctx, it.url, req)
	if err != nil {
		e.em.Log(fmt.Sprintf("Info probe failed: %v", err))
		return
	}
	if info.Title != "" {
		it.title = info.Title
	}
	dur := "?"
	if info.Duration > 0 {
		dur = FormatETA(int64(info.Duration))
	}
	e.em.Log(fmt.Sprintf("Info: %s | Uploader: %s | Duration: %s", info.Title, info.Uploader, dur))
}

// pauseTick is how long a paused hook sleeps between cancel re-checks.
const pauseTick = 100 * time.Millisecond

// progressHook builds the callback handed to the fetcher for one item. It is
// the only place a running download can be interrupted: cancel and skip are
// signalled by returning the matching sentinel.
func (e *Engine) progressHook(it *item) fetch.ProgressFunc {
	return func(p fetch.Progress) error {
		if e.cancelled.Load() {
			return fetch.ErrCancelled
		}
		if e.skip.CompareAndSwap(true, false) {
			return fetch.ErrSkipCurrent
		}
		for e.paused.Load() {
			e.em.Status("Paused")
			time.Sleep(pauseTick)
			if e.cancelled.Load() {
				return fetch.ErrCancelled
			}
		}

		switch p.Status {
		case fetch.StatusDownloading:
			e.recordPath(it, p.Filename)
			e.recordPath(it, p.TmpFilename)
			if p.Filename != "" {
				it.outputPath = p.Filename
			}
			total := p.Total()
			if total <= 0 {
				return nil
			}
			pct := int(p.DownloadedBytes * 100 / total)
			if pct > 100 {
				pct = 100
			}
			e.em.Progress(pct)
			status := FormatDownloadStatus(p.Speed, p.ETA)
			e.em.Status(status)
			if pct >= it.lastLogged+10 {
				e.em.Log(fmt.Sprintf("Progress: %d%% | %s", pct, status))
				it.lastLogged = pct - pct%10
			}

		case fetch.StatusFinished:
			if p.Filename != "" {
				e.recordPath(it, p.Filename)
				it.outputPath = p.Filename
			}
			e.em.Status("Processing downloaded file...")
			e.em.Log("Download finished. Running post-processing...")
			e.em.Progress(100)
		}
		return nil
	}
}

// recordPath remembers an observed filename as an artifact candidate and
// derives the working directory and stem on first sight.
func (e *Engine) recordPath(it *item, path string) {
	if path == "" {
		return
	}
	it.candidates[path] = struct{}{}
	if dir := filepath.Dir(path); dir != "." {
		it.workDir = dir
	}
	if it.stem == "" {
		base := filepath.Base(path)
		it.stem = strings.TrimSuffix(base, filepath.Ext(base))
	}
}

func (e *Engine) sweep(it *item) {
	artifacts.Sweep(artifacts.Params{
		WorkDir:    it.workDir,
		Stem:       it.stem,
		Candidates: candidateList(it),
		LastOutput: it.outputPath,
	}, e.em.Log)
}

func candidateList(it *item) []string {
	out := make([]string, 0, len(it.candidates))
	for c := range it.candidates {
		out = append(out, c)
	}
	return out
}

// metadata composes the opaque JSON bag stored with every record.
func (e *Engine) metadata(it *item, checksum string) string {
	bag := map[string]interface{}{
		"batch_id": e.batchID,
		"attempts": it.attempt + 1,
	}
	if checksum != "" {
		bag["sha256"] = checksum
	}
	raw, err := json.Marshal(bag)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

func (e *Engine) record(it *item, rec *history.Record) {
	if err := e.store.Add(rec); err != nil {
		e.log.Error("Failed to record history", "url", it.url, "error", err)
	}
}

func (e *Engine) finalizeFinished(it *item) outcome {
	path := it.outputPath
	if path == "" {
		path = "Completed"
	}
	checksum := e.checksumFor(it)
	e.record(it, &history.Record{
		URL:        it.url,
		Title:      it.title,
		Format:     string(e.opts.Kind),
		Quality:    e.opts.Quality,
		OutputPath: path,
		Success:    true,
		RetryCount: it.attempt,
		Metadata:   e.metadata(it, checksum),
	})
	e.em.Log("Finished: " + path)
	e.em.ItemFinished(it.url, true, path)
	return outcomeFinished
}

func (e *Engine) checksumFor(it *item) string {
	if !e.opts.ComputeChecksum || it.outputPath == "" {
		return ""
	}
	sum, err := e.checksum(it.outputPath)
	if err != nil {
		e.log.Warn("Checksum failed", "path", it.outputPath, "error", err)
		return ""
	}
	return sum
}

func (e *Engine) finalizeFailed(it *item, cerr *fetch.Error) outcome {
	e.sweep(it)
	msg := cerr.Error()
	e.record(it, &history.Record{
		URL:          it.url,
		Title:        it.title,
		Format:       string(e.opts.Kind),
		Quality:      e.opts.Quality,
		ErrorMessage: msg,
		RetryCount:   it.attempt,
		Metadata:     e.metadata(it, ""),
	})
	line := fmt.Sprintf("Error downloading %s: %s", it.url, msg)
	e.em.Error(line)
	e.em.Log(line)
	e.em.ItemFinished(it.url, false, msg)
	return outcomeFailed
}

func (e *Engine) finalizeSkipped(it *item) outcome {
	e.sweep(it)
	e.record(it, &history.Record{
		URL:          it.url,
		Title:        it.title,
		Format:       string(e.opts.Kind),
		Quality:      e.opts.Quality,
		ErrorMessage: "Skipped by user",
		RetryCount:   it.attempt,
		Metadata:     e.metadata(it, ""),
	})
	e.em.Log("Skipped: " + it.url)
	e.em.ItemFinished(it.url, false, "Skipped")
	return outcomeSkipped
}

func (e *Engine) finalizeCancelled(it *item) outcome {
	e.sweep(it)
	e.record(it, &history.Record{
		URL:          it.url,
		Title:        it.title,
		Format:       string(e.opts.Kind),
		Quality:      e.opts.Quality,
		ErrorMessage: "Cancelled by user",
		RetryCount:   it.attempt,
		Metadata:     e.metadata(it, ""),
	})
	e.em.Log("Cancelled: " + it.url)
	e.em.ItemFinished(it.url, false, "Cancelled")
	return outcomeCancelled
}

func (e *Engine) networkBadge() string {
	if e.monitor == nil {
		return "Unknown"
	}
	e.monitor.Check()
	return e.monitor.Status()
}
