package cli

import (
	"fmt"
	"io"
	"log/slog"
	"runtime"

	"github.com/spf13/cobra"

	"ytdle/internal/ytdlp"
)

func newVersionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ytdle %s (%s/%s)\n", version, runtime.GOOS, runtime.GOARCH)
			runner := ytdlp.New(slog.New(slog.NewTextHandler(io.Discard, nil)), "")
			if runner.Binary() != "" {
				fmt.Fprintf(out, "yt-dlp %s\n", runner.Version())
			}
		},
	}
}
