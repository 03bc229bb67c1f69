package fetch

import (
	"errors"
	"strings"
)

// Sentinels returned from a ProgressFunc to interrupt a running download.
// The driver maps them to the Cancelled / Skipped outcomes.
var (
	ErrCancelled   = errors.New("user cancelled")
	ErrSkipCurrent = errors.New("skip current")
)

// Kind is the typed classification of a fetcher failure. It drives the
// driver's retry policy: FormatNotAvailable escalates the format strategy,
// Network and Unknown may consume a retry, everything else is fatal for the
// item.
type Kind int

const (
	Unknown Kind = iota
	FormatNotAvailable
	VideoNotFound
	Authentication
	Network
	Filesystem
	Cancelled
	TranscoderMissing
	Conversion
	RateLimit
	Playlist
	MetadataExtraction
)

var kindNames = map[Kind]string{
	Unknown:            "Unknown",
	FormatNotAvailable: "FormatNotAvailable",
	VideoNotFound:      "VideoNotFound",
	Authentication:     "Authentication",
	Network:            "Network",
	Filesystem:         "Filesystem",
	Cancelled:          "Cancelled",
	TranscoderMissing:  "TranscoderMissing",
	Conversion:         "Conversion",
	RateLimit:          "RateLimit",
	Playlist:           "Playlist",
	MetadataExtraction: "MetadataExtraction",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// Retryable reports whether another attempt may help when one remains.
func (k Kind) Retryable() bool {
	return k == FormatNotAvailable || k == Network || k == Unknown
}

// Error is a fetcher failure tagged with its classified Kind. The message is
// the underlying tool's text, kept verbatim so status labels and history
// records show what actually happened.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// classification rules, checked in priority order against the lowercased
// message. First match wins.
var classifyRules = []struct {
	kind Kind
	subs []string
}{
	{Cancelled, []string{"cancelled", "user cancelled"}},
	{FormatNotAvailable, []string{"format", "no video formats"}},
	{VideoNotFound, []string{"not found", "404", "unavailable"}},
	{Authentication, []string{"login", "authentication", "sign in"}},
	{Network, []string{"network", "connection", "timeout"}},
	{Filesystem, []string{"permission", "disk", "space"}},
	{TranscoderMissing, []string{"ffmpeg"}},
	{Conversion, []string{"conversion", "postprocessing"}},
	{RateLimit, []string{"rate limit", "429"}},
	{Playlist, []string{"playlist"}},
	{MetadataExtraction, []string{"metadata", "extract"}},
}

// Classify maps an opaque fetcher failure to its typed Kind by substring
// match. Classification happens exactly once: already-classified errors pass
// through unchanged.
func Classify(err error) *Error {
	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}
	if errors.Is(err, ErrCancelled) {
		return &Error{Kind: Cancelled, Err: err}
	}

	msg := strings.ToLower(err.Error())
	for _, rule := range classifyRules {
		for _, sub := range rule.subs {
			if strings.Contains(msg, sub) {
				return &Error{Kind: rule.kind, Err: err}
			}
		}
	}
	return &Error{Kind: Unknown, Err: err}
}
