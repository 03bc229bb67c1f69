package network

import (
	"context"
	"fmt"
	"time"

	"github.com/showwin/speedtest-go/speedtest"
)

// Speed test phases, in order of emission.
const (
	PhaseConnecting = "connecting"
	PhasePing       = "ping"
	PhaseDownload   = "download"
	PhaseUpload     = "upload"
	PhaseComplete   = "complete"
)

// SpeedResult is the outcome of a full bandwidth measurement.
type SpeedResult struct {
	DownloadMbps float64 `json:"download_mbps"`
	UploadMbps   float64 `json:"upload_mbps"`
	PingMs       int64   `json:"ping_ms"`
	JitterMs     int64   `json:"jitter_ms"`
	Server       string  `json:"server"`
	Location     string  `json:"location"`
	Host         string  `json:"host"`
	ISP          string  `json:"isp"`
	Timestamp    string  `json:"timestamp"`
}

// SpeedPhase is a progress snapshot emitted as the measurement advances.
// Fields fill in as phases complete.
type SpeedPhase struct {
	Phase        string  `json:"phase"`
	PingMs       int64   `json:"ping_ms"`
	DownloadMbps float64 `json:"download_mbps"`
	UploadMbps   float64 `json:"upload_mbps"`
	Server       string  `json:"server"`
	ISP          string  `json:"isp"`
}

// MeasureSpeed runs ping, download and upload tests against the nearest
// public server. onPhase may be nil; when set it receives a snapshot at the
// start of each phase and once more on completion.
func MeasureSpeed(ctx context.Context, onPhase func(SpeedPhase)) (*SpeedResult, error) {
	emit := func(p SpeedPhase) {
		if onPhase != nil {
			onPhase(p)
		}
	}

	emit(SpeedPhase{Phase: PhaseConnecting})

	user, err := speedtest.FetchUserInfo()
	if err != nil {
		return nil, fmt.Errorf("no internet connection")
	}
	servers, err := speedtest.FetchServers()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch servers")
	}
	targets, err := servers.FindServer(nil)
	if err != nil || len(targets) == 0 {
		return nil, fmt.Errorf("no speed test servers available")
	}
	server := targets[0]

	emit(SpeedPhase{Phase: PhasePing, Server: server.Name, ISP: user.Isp})

	if err := server.PingTestContext(ctx, nil); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("speed test timed out")
		}
		return nil, fmt.Errorf("ping test failed")
	}
	ping := server.Latency.Milliseconds()

	emit(SpeedPhase{Phase: PhaseDownload, PingMs: ping, Server: server.Name, ISP: user.Isp})

	if err := server.DownloadTestContext(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("speed test timed out during download")
		}
		return nil, fmt.Errorf("download test failed")
	}
	down := float64(server.DLSpeed) / 1000 / 1000 * 8

	emit(SpeedPhase{Phase: PhaseUpload, PingMs: ping, DownloadMbps: down, Server: server.Name, ISP: user.Isp})

	if err := server.UploadTestContext(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("speed test timed out during upload")
		}
		return nil, fmt.Errorf("upload test failed")
	}
	up := float64(server.ULSpeed) / 1000 / 1000 * 8

	emit(SpeedPhase{Phase: PhaseComplete, PingMs: ping, DownloadMbps: down, UploadMbps: up, Server: server.Name, ISP: user.Isp})

	return &SpeedResult{
		DownloadMbps: down,
		UploadMbps:   up,
		PingMs:       ping,
		JitterMs:     server.Jitter.Milliseconds(),
		Server:       server.Name,
		Location:     fmt.Sprintf("%s, %s", server.Name, server.Country),
		Host:         server.Host,
		ISP:          user.Isp,
		Timestamp:    time.Now().Format(time.RFC3339),
	}, nil
}
