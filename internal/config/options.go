package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Kind selects the download workflow: audio extraction or video download.
// The string value doubles as the format label stored in history.
type Kind string

const (
	Audio Kind = "mp3"
	Video Kind = "mp4"
)

// ParseKind maps a CLI format token to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mp3":
		return Audio, nil
	case "mp4":
		return Video, nil
	default:
		return "", fmt.Errorf("unknown format %q (want mp3 or mp4)", s)
	}
}

// IsAudio reports whether the audio-extraction workflow applies.
func (k Kind) IsAudio() bool {
	return k == Audio
}

// BrowserCookies identifies a browser cookie store to read session cookies
// from. Profile, Keyring and Container are optional refinements.
type BrowserCookies struct {
	Browser   string
	Profile   string
	Keyring   string
	Container string
}

// ParseBrowserSpec parses the BROWSER[+KEYRING][:PROFILE][::CONTAINER]
// cookie-source syntax used on the command line.
func ParseBrowserSpec(s string) (*BrowserCookies, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty browser cookie spec")
	}

	spec := &BrowserCookies{}
	if head, container, ok := strings.Cut(s, "::"); ok {
		spec.Container = container
		s = head
	}
	if head, profile, ok := strings.Cut(s, ":"); ok {
		spec.Profile = profile
		s = head
	}
	if head, keyring, ok := strings.Cut(s, "+"); ok {
		spec.Keyring = keyring
		s = head
	}
	spec.Browser = strings.ToLower(s)
	if spec.Browser == "" {
		return nil, fmt.Errorf("browser cookie spec %q has no browser name", s)
	}
	return spec, nil
}

// Options is the immutable per-batch configuration. Cookie sources are a
// tagged choice: Browser wins over CookieFile when both are set.
type Options struct {
	Directory           string
	Template            string
	Kind                Kind
	Quality             string
	Playlist            bool
	RestrictFilenames   bool
	Retries             int
	FragmentRetries     int
	ConcurrentFragments int
	NoCheckCertificate  bool
	CookieFile          string
	Browser             *BrowserCookies
	FFmpegAddArgs       string
	FFmpegOverrideArgs  string
	UseAria2c           bool
	Aria2cConnections   int
	MaxConcurrent       int
	ComputeChecksum     bool
}

// Default values applied by Normalize.
const (
	DefaultAudioQuality      = "192k"
	DefaultVideoQuality      = "Best"
	DefaultTemplate          = "%(title).150s"
	DefaultRetries           = 10
	DefaultFragmentRetries   = 10
	DefaultFragments         = 3
	DefaultAria2cConnections = 16
	DefaultMaxConcurrent     = 3
)

// DefaultOptions returns an Options pre-filled with built-in defaults for an
// audio batch into the current directory.
func DefaultOptions() Options {
	return Options{
		Template:            DefaultTemplate,
		Kind:                Audio,
		Retries:             DefaultRetries,
		FragmentRetries:     DefaultFragmentRetries,
		ConcurrentFragments: DefaultFragments,
		Aria2cConnections:   DefaultAria2cConnections,
		MaxConcurrent:       DefaultMaxConcurrent,
	}
}

// Normalize fills unset fields with defaults and resolves the target
// directory to an absolute path. Counters below their minimum are reset to
// their defaults rather than rejected.
func (o *Options) Normalize() error {
	if o.Kind == "" {
		o.Kind = Audio
	}
	if strings.TrimSpace(o.Quality) == "" {
		if o.Kind.IsAudio() {
			o.Quality = DefaultAudioQuality
		} else {
			o.Quality = DefaultVideoQuality
		}
	}
	if o.Directory == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("resolve working directory: %w", err)
		}
		o.Directory = wd
	}
	abs, err := filepath.Abs(o.Directory)
	if err != nil {
		return fmt.Errorf("resolve output directory: %w", err)
	}
	o.Directory = abs

	if o.Retries < 0 {
		o.Retries = DefaultRetries
	}
	if o.FragmentRetries < 0 {
		o.FragmentRetries = DefaultFragmentRetries
	}
	if o.ConcurrentFragments < 1 {
		o.ConcurrentFragments = DefaultFragments
	}
	if o.Aria2cConnections < 1 {
		o.Aria2cConnections = DefaultAria2cConnections
	}
	if o.MaxConcurrent < 1 {
		o.MaxConcurrent = DefaultMaxConcurrent
	}
	return nil
}

// MaxAttempts returns the per-item attempt budget: video downloads escalate
// through three format strategies, audio has a single strategy.
func (o Options) MaxAttempts() int {
	if o.Kind.IsAudio() {
		return 1
	}
	return 3
}
