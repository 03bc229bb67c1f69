// Package cli wires the cobra command tree: the root download command plus
// the history, config, doctor and version subcommands.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ytdle/internal/api"
	"ytdle/internal/config"
	"ytdle/internal/engine"
	"ytdle/internal/history"
	"ytdle/internal/logger"
	"ytdle/internal/ytdlp"
)

// rootOpts holds global CLI options shared by every subcommand.
type rootOpts struct {
	Verbose bool
	DBPath  string
}

// Execute runs the CLI with the given version string.
func Execute(version string) error {
	ro := &rootOpts{}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := &cobra.Command{
		Use:           "ytdle",
		Short:         "Batch media downloader driving yt-dlp with retries, history and a control API",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}

	root.PersistentFlags().BoolVarP(&ro.Verbose, "verbose", "v", false, "Verbose logging")
	root.PersistentFlags().StringVar(&ro.DBPath, "db", "", "History database path (default ~/.ytdle/ytdle.db)")

	downloadCmd := newDownloadCmd(ro)
	root.AddCommand(downloadCmd)
	root.AddCommand(newHistoryCmd(ro))
	root.AddCommand(newConfigCmd(ro))
	root.AddCommand(newDoctorCmd(ro))
	root.AddCommand(newVersionCmd(version))

	// Download is the default command when no subcommand is given.
	root.RunE = downloadCmd.RunE
	root.Flags().AddFlagSet(downloadCmd.Flags())
	root.SetHelpCommand(&cobra.Command{Use: "help", Hidden: true})

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return err
	}
	return nil
}

type downloadFlags struct {
	URLs              []string
	OutputDir         string
	Format            string
	Quality           string
	Playlist          bool
	Restrict          bool
	Template          string
	NoCheckCert       bool
	Cookies           string
	CookiesBrowser    string
	FFmpegAddArgs     string
	FFmpegOverride    string
	Aria2c            bool
	Aria2cConnections int
	Concurrent        int
	Checksum          bool
	API               bool
	APIPort           int
}

func newDownloadCmd(ro *rootOpts) *cobra.Command {
	df := &downloadFlags{}

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download a batch of URLs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDownload(cmd.Context(), ro, df)
		},
	}

	cmd.Flags().StringSliceVarP(&df.URLs, "input", "i", nil, "Input URLs (repeatable)")
	cmd.Flags().StringVarP(&df.OutputDir, "output-dir", "o", "", "Output directory (default: cwd)")
	cmd.Flags().StringVarP(&df.Format, "format", "f", "", "Format: mp3 or mp4 (default mp3)")
	cmd.Flags().StringVarP(&df.Quality, "quality", "q", "", "Quality: audio bitrate (192k) or video height (1080p/Best)")
	cmd.Flags().BoolVarP(&df.Playlist, "playlist", "p", false, "Include playlist contents")
	cmd.Flags().BoolVarP(&df.Restrict, "restrict", "r", false, "Restrict filenames to ASCII")
	cmd.Flags().StringVarP(&df.Template, "template", "t", "", "Output template (default %(title).150s)")
	cmd.Flags().BoolVar(&df.NoCheckCert, "no-check-certificate", false, "Skip TLS certificate validation")
	cmd.Flags().StringVar(&df.Cookies, "cookies", "", "Cookie file path")
	cmd.Flags().StringVar(&df.CookiesBrowser, "cookies-from-browser", "", "Browser cookie spec: BROWSER[+KEYRING][:PROFILE][::CONTAINER]")
	cmd.Flags().StringVar(&df.FFmpegAddArgs, "ffmpeg-add-args", "", "Extra ffmpeg arguments (appended to defaults)")
	cmd.Flags().StringVar(&df.FFmpegOverride, "ffmpeg-override-args", "", "Replacement ffmpeg arguments")
	cmd.Flags().BoolVar(&df.Aria2c, "aria2c", false, "Use aria2c as external downloader")
	cmd.Flags().IntVar(&df.Aria2cConnections, "aria2c-connections", config.DefaultAria2cConnections, "aria2c connections per download")
	cmd.Flags().IntVarP(&df.Concurrent, "concurrent", "c", 0, "Max concurrent downloads (default 3)")
	cmd.Flags().BoolVar(&df.Checksum, "checksum", false, "Record a SHA-256 of each finished file in history")
	cmd.Flags().BoolVar(&df.API, "api", false, "Start the local control API")
	cmd.Flags().IntVar(&df.APIPort, "api-port", -1, "Control API port (0 = ephemeral)")
	cmd.MarkFlagRequired("input")

	return cmd
}

func runDownload(ctx context.Context, ro *rootOpts, df *downloadFlags) error {
	if len(df.URLs) == 0 {
		return fmt.Errorf("at least one --input URL is required")
	}

	log, hook, err := logger.New(os.Stderr, ro.Verbose)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	store, err := history.NewStore(log, ro.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()
	mgr := config.NewManager(store)

	opts, err := buildOptions(mgr, df)
	if err != nil {
		return err
	}

	runner := ytdlp.New(log, "")
	if runner.Binary() == "" {
		return fmt.Errorf("yt-dlp binary not found (install it or place it next to the executable)")
	}

	ui := newProgressUI(os.Stderr, log, ro.Verbose)
	defer ui.Close()

	eng := engine.New(runner, store, opts, df.URLs, ui.Events(), log)

	events := api.NewEventBuffer()
	hook.SetFunc(events.Append)

	if df.API {
		port := df.APIPort
		if port < 0 {
			port = mgr.GetAPIPort()
		}
		srv := api.NewControlServer(eng, store, api.NewAuditLogger(log), events, mgr.GetAPIToken(), log)
		addr, err := srv.Start(port)
		if err != nil {
			return err
		}
		defer srv.Close()
		log.Info("Control API ready", "addr", addr)
	}

	// Ctrl-C cancels the batch; the engine finalizes in-flight items before
	// Run returns.
	go func() {
		<-ctx.Done()
		eng.Cancel()
	}()

	success, fail := eng.Run(ctx)

	if err := store.Checkpoint(); err != nil {
		log.Warn("Database checkpoint failed", "error", err)
	}

	log.Info("Batch finished", "success", success, "failed", fail)
	if eng.IsCancelled() {
		return fmt.Errorf("cancelled: %d succeeded, %d failed", success, fail)
	}
	if fail > 0 {
		return fmt.Errorf("%d of %d downloads failed", fail, success+fail)
	}
	return nil
}

// buildOptions merges CLI flags over persisted defaults over built-ins.
func buildOptions(mgr *config.Manager, df *downloadFlags) (config.Options, error) {
	opts := config.DefaultOptions()

	opts.Kind = mgr.GetDefaultFormat()
	if df.Format != "" {
		kind, err := config.ParseKind(df.Format)
		if err != nil {
			return opts, err
		}
		opts.Kind = kind
	}

	opts.Quality = df.Quality
	if opts.Quality == "" {
		opts.Quality = mgr.GetDefaultQuality()
	}

	opts.Directory = df.OutputDir
	if opts.Directory == "" {
		opts.Directory = mgr.GetDefaultOutputDir()
	}

	opts.MaxConcurrent = df.Concurrent
	if opts.MaxConcurrent == 0 {
		opts.MaxConcurrent = mgr.GetMaxConcurrent()
	}

	opts.Template = df.Template
	opts.Playlist = df.Playlist
	opts.RestrictFilenames = df.Restrict
	opts.NoCheckCertificate = df.NoCheckCert
	opts.CookieFile = df.Cookies
	opts.FFmpegAddArgs = df.FFmpegAddArgs
	opts.FFmpegOverrideArgs = df.FFmpegOverride
	opts.UseAria2c = df.Aria2c
	opts.Aria2cConnections = df.Aria2cConnections
	opts.ComputeChecksum = df.Checksum || mgr.GetComputeChecksum()

	if df.CookiesBrowser != "" {
		spec, err := config.ParseBrowserSpec(df.CookiesBrowser)
		if err != nil {
			return opts, err
		}
		opts.Browser = spec
	}

	if err := opts.Normalize(); err != nil {
		return opts, err
	}
	return opts, nil
}
