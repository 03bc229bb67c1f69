// Package fetch defines the capability the download engine drives: an
// external extractor/downloader that resolves a URL to media streams and
// writes bytes to disk. The engine only ever sees this interface; the
// production implementation shells out to yt-dlp (internal/ytdlp) and tests
// substitute fakes.
package fetch

import "context"

// Progress statuses reported by the fetcher while a download runs.
const (
	StatusDownloading = "downloading"
	StatusFinished    = "finished"
)

// Info is the metadata returned by a non-downloading probe.
type Info struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Uploader string  `json:"uploader"`
	Channel  string  `json:"channel"`
	Duration float64 `json:"duration"`
	Ext      string  `json:"ext"`
}

// Progress is one progress event surfaced by the fetcher. TotalBytes is the
// exact size when known, TotalBytesEstimate a guess; either may be zero.
type Progress struct {
	Status             string
	DownloadedBytes    int64
	TotalBytes         int64
	TotalBytesEstimate int64
	Speed              float64 // bytes per second, 0 when unknown
	ETA                int64   // seconds remaining, 0 when unknown
	Filename           string
	TmpFilename        string
}

// Total returns the best-known total size, preferring the exact figure.
func (p Progress) Total() int64 {
	if p.TotalBytes > 0 {
		return p.TotalBytes
	}
	return p.TotalBytesEstimate
}

// ProgressFunc receives progress events during Download. Returning a non-nil
// error aborts the download with that error — this is the only sanctioned way
// to interrupt a running fetch (used for cancel and skip).
type ProgressFunc func(Progress) error

// Fetcher resolves URLs and downloads media according to a Request.
type Fetcher interface {
	// Probe extracts metadata without writing any bytes. Failures are
	// expected to be non-fatal to callers.
	Probe(ctx context.Context, url string, req Request) (Info, error)

	// Download fetches the URL to disk, invoking fn for every progress
	// event. An error returned by fn aborts the download and is surfaced
	// unchanged.
	Download(ctx context.Context, url string, req Request, fn ProgressFunc) error

	// Version identifies the underlying tool, "unknown" when undetectable.
	Version() string
}
