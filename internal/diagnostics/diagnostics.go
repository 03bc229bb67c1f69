// Package diagnostics inspects the environment the downloader depends on:
// the yt-dlp binary, the ffmpeg binary, the database location and free disk
// space in the target directory. The doctor command renders a full report;
// the engine uses the disk check as a per-item preflight.
package diagnostics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
)

// MinFreeBytes is the floor below which a download is refused up front
// rather than left to fail mid-write.
const MinFreeBytes = 50 * 1024 * 1024

// DiskUsageInfo holds disk space information for one volume.
type DiskUsageInfo struct {
	Path    string  `json:"path"`
	UsedGB  float64 `json:"used_gb"`
	FreeGB  float64 `json:"free_gb"`
	TotalGB float64 `json:"total_gb"`
	Percent float64 `json:"percent"`
}

// DiskUsage returns space info for the volume holding path. Errors collapse
// to zeros; the caller treats an all-zero result as unknown.
func DiskUsage(path string) DiskUsageInfo {
	volumePath := filepath.VolumeName(path)
	if volumePath == "" {
		volumePath = "/"
	} else {
		volumePath += "\\"
	}

	usage, err := disk.Usage(volumePath)
	if err != nil {
		return DiskUsageInfo{Path: path}
	}
	const gb = 1024 * 1024 * 1024
	return DiskUsageInfo{
		Path:    path,
		UsedGB:  float64(usage.Used) / gb,
		FreeGB:  float64(usage.Free) / gb,
		TotalGB: float64(usage.Total) / gb,
		Percent: usage.UsedPercent,
	}
}

// FreeBytes returns the free space on the volume holding path.
func FreeBytes(path string) (uint64, error) {
	volumePath := filepath.VolumeName(path)
	if volumePath == "" {
		volumePath = "/"
	} else {
		volumePath += "\\"
	}
	usage, err := disk.Usage(volumePath)
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}

// CheckTargetDir verifies the target directory's volume has room for a
// download. The error message classifies as a Filesystem failure.
func CheckTargetDir(dir string) error {
	free, err := FreeBytes(dir)
	if err != nil {
		// Unknowable free space is not a reason to refuse the download.
		return nil
	}
	if free < MinFreeBytes {
		return fmt.Errorf("insufficient disk space in %s: %d bytes free", dir, free)
	}
	return nil
}

// HostInfo is a small selection of host facts for the doctor report.
type HostInfo struct {
	Hostname string `json:"hostname"`
	OS       string `json:"os"`
	Platform string `json:"platform"`
	Uptime   uint64 `json:"uptime_seconds"`
}

// HostFacts returns host information, zero-valued when undetectable.
func HostFacts() HostInfo {
	info, err := host.Info()
	if err != nil {
		return HostInfo{}
	}
	return HostInfo{
		Hostname: info.Hostname,
		OS:       info.OS,
		Platform: fmt.Sprintf("%s %s", info.Platform, info.PlatformVersion),
		Uptime:   info.Uptime,
	}
}

// Release is the subset of a GitHub release the checker needs.
type Release struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
}

// LatestRelease queries GitHub for the latest release of owner/repo. The
// doctor uses it against yt-dlp/yt-dlp to flag a stale extractor.
func LatestRelease(owner, repo string) (*Release, error) {
	if owner == "" || repo == "" {
		return nil, fmt.Errorf("owner and repo required")
	}

	url := fmt.Sprintf("https://api.github.com/repos/%s/%s/releases/latest", owner, repo)
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "ytdle-doctor")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("failed to check release: %d", resp.StatusCode)
	}

	var rel Release
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return nil, err
	}
	return &rel, nil
}
