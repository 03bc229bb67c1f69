package ytdlp

import (
	"strconv"
	"strings"

	"ytdle/internal/fetch"
)

// parseProgressLine decodes one progress-template line. Returns ok=false for
// anything that is not a progress line. yt-dlp renders unknown numeric
// fields as "NA"; those read as zero.
func parseProgressLine(line string) (fetch.Progress, bool) {
	if !strings.HasPrefix(line, progressPrefix+"|") {
		return fetch.Progress{}, false
	}
	fields := strings.Split(line, "|")
	if len(fields) != 9 {
		return fetch.Progress{}, false
	}

	p := fetch.Progress{
		Status:             fields[1],
		DownloadedBytes:    parseInt(fields[2]),
		TotalBytes:         parseInt(fields[3]),
		TotalBytesEstimate: parseInt(fields[4]),
		Speed:              parseFloat(fields[5]),
		ETA:                parseInt(fields[6]),
		Filename:           cleanField(fields[7]),
		TmpFilename:        cleanField(fields[8]),
	}
	return p, true
}

func cleanField(s string) string {
	s = strings.TrimSpace(s)
	if s == "NA" {
		return ""
	}
	return s
}

func parseInt(s string) int64 {
	s = cleanField(s)
	if s == "" {
		return 0
	}
	// The template renders some counters as floats ("1024.0").
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(f)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func parseFloat(s string) float64 {
	s = cleanField(s)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
