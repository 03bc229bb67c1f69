// Package ytdlp is the production fetch.Fetcher: it shells out to the
// yt-dlp binary, translating the neutral Request into CLI flags and the
// machine-readable progress stream back into fetch.Progress events.
package ytdlp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"ytdle/internal/fetch"
)

func binaryName() string {
	if runtime.GOOS == "windows" {
		return "yt-dlp.exe"
	}
	return "yt-dlp"
}

// Locate resolves the yt-dlp binary: bundled next to the executable, then
// the working directory, then PATH. Returns "" when absent.
func Locate() string {
	name := binaryName()

	if exe, err := os.Executable(); err == nil {
		bundled := filepath.Join(filepath.Dir(exe), name)
		if info, err := os.Stat(bundled); err == nil && !info.IsDir() {
			return bundled
		}
	}
	if wd, err := os.Getwd(); err == nil {
		local := filepath.Join(wd, name)
		if info, err := os.Stat(local); err == nil && !info.IsDir() {
			return local
		}
	}
	if p, err := exec.LookPath(name); err == nil {
		return p
	}
	return ""
}

// Runner drives the yt-dlp binary. Safe for concurrent use: every call spawns
// its own process.
type Runner struct {
	binary string
	log    *slog.Logger

	versionOnce sync.Once
	version     string
}

// New builds a Runner. An empty binary path resolves via Locate; a Runner
// with no binary still constructs, and surfaces the absence as call errors.
func New(log *slog.Logger, binary string) *Runner {
	if binary == "" {
		binary = Locate()
	}
	return &Runner{binary: binary, log: log}
}

// Binary returns the resolved yt-dlp path, "" when not found.
func (r *Runner) Binary() string {
	return r.binary
}

// Version reports the yt-dlp version string, cached after the first probe.
func (r *Runner) Version() string {
	r.versionOnce.Do(func() {
		r.version = "unknown"
		if r.binary == "" {
			return
		}
		out, err := exec.Command(r.binary, "--version").Output()
		if err != nil {
			return
		}
		if v := strings.TrimSpace(string(out)); v != "" {
			r.version = v
		}
	})
	return r.version
}

// Probe extracts metadata without downloading.
func (r *Runner) Probe(ctx context.Context, url string, req fetch.Request) (fetch.Info, error) {
	if r.binary == "" {
		return fetch.Info{}, fmt.Errorf("yt-dlp binary not found")
	}

	args := buildArgs(url, req, true)
	cmd := exec.CommandContext(ctx, r.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fetch.Info{}, fmt.Errorf("%s", firstErrorLine(stderr.String(), err))
	}

	var info fetch.Info
	dec := json.NewDecoder(&stdout)
	if err := dec.Decode(&info); err != nil {
		return fetch.Info{}, fmt.Errorf("failed to extract metadata: %w", err)
	}
	return info, nil
}

// Download runs yt-dlp to disk, streaming progress lines into fn. An error
// returned by fn kills the child process and is surfaced unchanged, which is
// how cancel and skip interrupt a running download.
func (r *Runner) Download(ctx context.Context, url string, req fetch.Request, fn fetch.ProgressFunc) error {
	if r.binary == "" {
		return fmt.Errorf("yt-dlp binary not found")
	}

	args := buildArgs(url, req, false)
	r.log.Debug("Spawning yt-dlp", "url", url, "format", req.Format)

	cmd := exec.CommandContext(ctx, r.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start yt-dlp: %w", err)
	}

	var hookErr error
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		p, ok := parseProgressLine(scanner.Text())
		if !ok || fn == nil {
			continue
		}
		if err := fn(p); err != nil {
			hookErr = err
			_ = cmd.Process.Kill()
			break
		}
	}

	waitErr := cmd.Wait()
	if hookErr != nil {
		return hookErr
	}
	if waitErr != nil {
		return fmt.Errorf("%s", firstErrorLine(stderr.String(), waitErr))
	}
	return nil
}

// firstErrorLine pulls the most useful line out of yt-dlp's stderr: the
// first "ERROR:" line when present, else the last non-empty line, else the
// process error itself. Classification matches on this text.
func firstErrorLine(stderr string, fallback error) string {
	lines := strings.Split(stderr, "\n")
	last := ""
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "ERROR:") {
			return line
		}
		last = line
	}
	if last != "" {
		return last
	}
	return fallback.Error()
}
