package fetch

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kballard/go-shellquote"

	"ytdle/internal/config"
	"ytdle/internal/transcoder"
)

// Post-processor keys understood by the fetcher.
const (
	PPExtractAudio   = "FFmpegExtractAudio"
	PPMetadata       = "FFmpegMetadata"
	PPEmbedThumbnail = "EmbedThumbnail"
)

// Postprocessor is one step of the fetcher's post-download chain.
type Postprocessor struct {
	Key     string
	Codec   string // target codec for PPExtractAudio
	Quality string // bitrate for PPExtractAudio
}

// Request is the per-attempt configuration handed to the Fetcher. It is a
// neutral record: the yt-dlp implementation maps it to CLI flags, fakes
// inspect it directly.
type Request struct {
	OutputTemplate      string // directory-joined template ending in .%(ext)s
	Format              string
	Retries             int
	FragmentRetries     int
	ConcurrentFragments int
	NoPlaylist          bool
	RestrictFilenames   bool
	NoCheckCertificate  bool
	PreferTranscoder    bool
	TranscoderPath      string
	CookieFile          string
	BrowserCookies      *config.BrowserCookies
	ExternalDownloader  string
	ExternalArgs        []string
	FFmpegArgs          []string
	FFmpegArgsReplace   bool
	MergeFormat         string
	Postprocessors      []Postprocessor
	WriteThumbnail      bool
}

// SanitizeTemplate trims the output template and substitutes the default
// when empty.
func SanitizeTemplate(template string) string {
	t := strings.TrimSpace(template)
	if t == "" {
		return config.DefaultTemplate
	}
	return t
}

// BuildRequest derives the fetcher configuration for one attempt. It is a
// pure function of the options and the 0-based attempt index; the attempt
// index selects the video format strategy.
func BuildRequest(opts config.Options, attempt int) Request {
	req := Request{
		OutputTemplate:      filepath.Join(opts.Directory, SanitizeTemplate(opts.Template)+".%(ext)s"),
		Retries:             opts.Retries,
		FragmentRetries:     opts.FragmentRetries,
		ConcurrentFragments: opts.ConcurrentFragments,
		NoPlaylist:          !opts.Playlist,
		RestrictFilenames:   opts.RestrictFilenames,
		NoCheckCertificate:  opts.NoCheckCertificate,
		PreferTranscoder:    true,
		TranscoderPath:      transcoder.Locate(),
	}

	// Browser cookies take priority over a cookie file.
	if opts.Browser != nil {
		req.BrowserCookies = opts.Browser
	} else if opts.CookieFile != "" {
		req.CookieFile = opts.CookieFile
	}

	if opts.UseAria2c {
		n := strconv.Itoa(opts.Aria2cConnections)
		req.ExternalDownloader = "aria2c"
		req.ExternalArgs = []string{
			"-x", n,
			"-s", n,
			"-k", "1M",
			"--file-allocation=none",
			"--optimize-concurrent-downloads=true",
		}
	}

	req.FFmpegArgs, req.FFmpegArgsReplace = transcoderArgs(opts)

	if opts.Kind.IsAudio() {
		req.Format = "bestaudio/best"
		req.Postprocessors = []Postprocessor{
			{Key: PPExtractAudio, Codec: "mp3", Quality: audioBitrate(opts.Quality)},
			{Key: PPMetadata},
			{Key: PPEmbedThumbnail},
		}
		req.WriteThumbnail = true
	} else {
		req.Format = videoFormat(opts.Quality, attempt)
		req.MergeFormat = "mp4"
		req.Postprocessors = []Postprocessor{{Key: PPMetadata}}
	}

	return req
}

// transcoderArgs tokenizes the custom ffmpeg argument strings by POSIX shell
// rules. Strings that fail to tokenize are skipped — the attempt proceeds
// without them. Replace is true when override args were supplied.
func transcoderArgs(opts config.Options) (args []string, replace bool) {
	for _, raw := range []string{opts.FFmpegAddArgs, opts.FFmpegOverrideArgs} {
		if raw == "" {
			continue
		}
		tokens, err := shellquote.Split(raw)
		if err != nil {
			continue
		}
		args = append(args, tokens...)
	}
	return args, opts.FFmpegOverrideArgs != ""
}

// videoFormat picks the selector for a video attempt. Attempt 0 asks for the
// best separate streams, attempt 1 falls back to a pre-merged mp4, attempt 2
// takes whatever is available.
func videoFormat(quality string, attempt int) string {
	best := strings.EqualFold(strings.TrimSpace(quality), "best")
	switch attempt {
	case 0:
		if best {
			return "bv*+ba/best"
		}
		h := videoHeight(quality)
		return fmt.Sprintf("bv*[height<=%d]+ba/b[height<=%d]/best[height<=%d]/best", h, h, h)
	case 1:
		if best {
			return "best[ext=mp4]/best"
		}
		h := videoHeight(quality)
		return fmt.Sprintf("best[height<=%d][ext=mp4]/best[height<=%d]/best", h, h)
	default:
		return "best"
	}
}

// digits concatenates the decimal digits of s, mirroring how quality tokens
// like "1080p" and "192k" are read.
func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func audioBitrate(quality string) string {
	if d := digits(quality); d != "" {
		return d
	}
	return "192"
}

func videoHeight(quality string) int {
	if d := digits(quality); d != "" {
		if h, err := strconv.Atoi(d); err == nil {
			return h
		}
	}
	return 1080
}
