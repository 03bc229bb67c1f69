package ytdlp

import (
	"strconv"
	"strings"

	"github.com/kballard/go-shellquote"

	"ytdle/internal/fetch"
)

// progressPrefix marks machine-readable progress lines on stdout.
const progressPrefix = "ytdle-progress"

// progressTemplate asks yt-dlp to print one parseable line per progress
// event instead of its human progress bar. Field order must match
// parseProgressLine.
const progressTemplate = "download:" + progressPrefix +
	"|%(progress.status)s" +
	"|%(progress.downloaded_bytes)s" +
	"|%(progress.total_bytes)s" +
	"|%(progress.total_bytes_estimate)s" +
	"|%(progress.speed)s" +
	"|%(progress.eta)s" +
	"|%(progress.filename)s" +
	"|%(progress.tmpfilename)s\n"

// buildArgs maps a fetch.Request to the yt-dlp command line. probe selects
// the metadata-only invocation.
func buildArgs(url string, req fetch.Request, probe bool) []string {
	args := []string{"--no-warnings"}

	if probe {
		args = append(args, "--dump-json", "--skip-download")
	} else {
		args = append(args, "--newline", "--progress-template", progressTemplate)
		args = append(args, "-o", req.OutputTemplate)
	}

	if req.Format != "" {
		args = append(args, "-f", req.Format)
	}
	args = append(args,
		"--retries", strconv.Itoa(req.Retries),
		"--fragment-retries", strconv.Itoa(req.FragmentRetries),
		"--concurrent-fragments", strconv.Itoa(req.ConcurrentFragments),
	)
	if req.NoPlaylist {
		args = append(args, "--no-playlist")
	} else {
		args = append(args, "--yes-playlist")
	}
	if req.RestrictFilenames {
		args = append(args, "--restrict-filenames")
	}
	if req.NoCheckCertificate {
		args = append(args, "--no-check-certificate")
	}
	if req.PreferTranscoder && req.TranscoderPath != "" {
		args = append(args, "--ffmpeg-location", req.TranscoderPath)
	}

	// Browser cookies win over a cookie file; the request builder already
	// enforced the precedence, this is belt and braces.
	if req.BrowserCookies != nil {
		args = append(args, "--cookies-from-browser", browserSpecString(req))
	} else if req.CookieFile != "" {
		args = append(args, "--cookies", req.CookieFile)
	}

	if !probe {
		if req.ExternalDownloader != "" {
			args = append(args, "--downloader", req.ExternalDownloader)
			if len(req.ExternalArgs) > 0 {
				args = append(args, "--downloader-args",
					req.ExternalDownloader+":"+shellquote.Join(req.ExternalArgs...))
			}
		}
		if req.MergeFormat != "" {
			args = append(args, "--merge-output-format", req.MergeFormat)
		}
		for _, pp := range req.Postprocessors {
			switch pp.Key {
			case fetch.PPExtractAudio:
				args = append(args, "-x", "--audio-format", pp.Codec, "--audio-quality", pp.Quality+"K")
			case fetch.PPMetadata:
				args = append(args, "--embed-metadata")
			case fetch.PPEmbedThumbnail:
				args = append(args, "--embed-thumbnail")
			}
		}
		if req.WriteThumbnail {
			args = append(args, "--write-thumbnail")
		}
		if len(req.FFmpegArgs) > 0 {
			args = append(args, "--postprocessor-args", "ffmpeg:"+shellquote.Join(req.FFmpegArgs...))
		}
	}

	return append(args, url)
}

// browserSpecString renders the BROWSER[+KEYRING][:PROFILE][::CONTAINER]
// syntax yt-dlp expects.
func browserSpecString(req fetch.Request) string {
	b := req.BrowserCookies
	var sb strings.Builder
	sb.WriteString(b.Browser)
	if b.Keyring != "" {
		sb.WriteString("+" + b.Keyring)
	}
	if b.Profile != "" {
		sb.WriteString(":" + b.Profile)
	}
	if b.Container != "" {
		sb.WriteString("::" + b.Container)
	}
	return sb.String()
}
