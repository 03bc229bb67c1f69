package engine

import (
	"fmt"
	"strings"
)

// FormatETA renders seconds as H:MM:SS, or M:SS when under an hour.
func FormatETA(seconds int64) string {
	if seconds <= 0 {
		return ""
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// FormatDownloadStatus composes the live status label from speed (bytes/s)
// and ETA (seconds). Unknown parts are dropped.
func FormatDownloadStatus(speed float64, etaSeconds int64) string {
	parts := []string{"Downloading..."}
	if speed > 0 {
		parts = append(parts, fmt.Sprintf("%.1f MB/s", speed/1024/1024))
	}
	if eta := FormatETA(etaSeconds); eta != "" {
		if speed > 0 {
			parts[len(parts)-1] += " | ETA " + eta
		} else {
			parts = append(parts, "ETA "+eta)
		}
	}
	return strings.Join(parts, " ")
}
