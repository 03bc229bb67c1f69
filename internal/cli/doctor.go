package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"ytdle/internal/diagnostics"
	"ytdle/internal/history"
	"ytdle/internal/network"
	"ytdle/internal/transcoder"
	"ytdle/internal/ytdlp"
)

func newDoctorCmd(ro *rootOpts) *cobra.Command {
	var speedtest bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the environment: binaries, database, disk and network",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd.OutOrStdout(), ro, speedtest)
		},
	}
	cmd.Flags().BoolVar(&speedtest, "speedtest", false, "Run a full bandwidth measurement (slow)")
	return cmd
}

func runDoctor(out io.Writer, ro *rootOpts, speedtest bool) error {
	check := func(ok bool, label, detail string) {
		mark := "ok"
		if !ok {
			mark = "MISSING"
		}
		fmt.Fprintf(out, "[%-7s] %-12s %s\n", mark, label, detail)
	}

	runner := ytdlp.New(slog.New(slog.NewTextHandler(io.Discard, nil)), "")
	if bin := runner.Binary(); bin != "" {
		check(true, "yt-dlp", fmt.Sprintf("%s (version %s)", bin, runner.Version()))
		if rel, err := diagnostics.LatestRelease("yt-dlp", "yt-dlp"); err == nil {
			if rel.TagName != runner.Version() {
				fmt.Fprintf(out, "          latest release is %s (%s)\n", rel.TagName, rel.HTMLURL)
			}
		}
	} else {
		check(false, "yt-dlp", "not found next to the executable, in the cwd or on PATH")
	}

	if ffmpeg := transcoder.Locate(); ffmpeg != "" {
		check(true, "ffmpeg", ffmpeg)
	} else {
		check(false, "ffmpeg", "audio extraction and remuxing will fail")
	}

	dbPath := ro.DBPath
	if dbPath == "" {
		p, err := history.DefaultPath()
		if err != nil {
			return err
		}
		dbPath = p
	}
	if _, err := os.Stat(dbPath); err == nil {
		check(true, "database", dbPath)
	} else {
		check(true, "database", dbPath+" (will be created)")
	}

	wd, _ := os.Getwd()
	usage := diagnostics.DiskUsage(wd)
	if usage.TotalGB > 0 {
		ok := usage.FreeGB*1024*1024*1024 >= diagnostics.MinFreeBytes
		check(ok, "disk", fmt.Sprintf("%.1f GB free of %.1f GB (%.0f%% used)", usage.FreeGB, usage.TotalGB, usage.Percent))
	} else {
		check(true, "disk", "usage unknown")
	}

	facts := diagnostics.HostFacts()
	if facts.Hostname != "" {
		check(true, "host", fmt.Sprintf("%s, %s", facts.Hostname, facts.Platform))
	}

	if speedtest {
		fmt.Fprintln(out, "Running speed test...")
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		result, err := network.MeasureSpeed(ctx, func(p network.SpeedPhase) {
			fmt.Fprintf(out, "  %s\n", p.Phase)
		})
		if err != nil {
			check(false, "network", err.Error())
		} else {
			check(true, "network", fmt.Sprintf("%.1f Mbps down / %.1f Mbps up, %d ms ping via %s",
				result.DownloadMbps, result.UploadMbps, result.PingMs, result.Server))
		}
	}

	return nil
}
