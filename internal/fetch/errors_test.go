package fetch

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		msg  string
		want Kind
	}{
		{"Download was cancelled by user", Cancelled},
		{"ERROR: Requested format is not available", FormatNotAvailable},
		{"ERROR: No video formats found!", FormatNotAvailable},
		{"HTTP Error 404: Not Found", VideoNotFound},
		{"ERROR: Video unavailable", VideoNotFound},
		{"ERROR: Please sign in to confirm your age", Authentication},
		{"This video requires login", Authentication},
		{"The read operation timed out", Network},
		{"Unable to download webpage: <urlopen error [Errno 111] Connection refused>", Network},
		{"[Errno 13] Permission denied: '/root/out'", Filesystem},
		{"OSError: No space left on device", Filesystem},
		{"ERROR: ffmpeg not found. Please install or provide the path", TranscoderMissing},
		{"Postprocessing: audio conversion failed", Conversion},
		{"HTTP Error 429: Too Many Requests", RateLimit},
		{"ERROR: This playlist is private", Playlist},
		{"Unable to extract video data", MetadataExtraction},
		{"something inexplicable happened", Unknown},
	}
	for _, tc := range cases {
		got := Classify(errors.New(tc.msg))
		if got.Kind != tc.want {
			t.Errorf("Classify(%q) = %v, want %v", tc.msg, got.Kind, tc.want)
		}
		if got.Error() != tc.msg {
			t.Errorf("Classify(%q) message = %q, want original preserved", tc.msg, got.Error())
		}
	}
}

func TestClassifyPriority(t *testing.T) {
	// Overlapping substrings resolve to the higher-priority kind.
	cases := []struct {
		msg  string
		want Kind
	}{
		{"cancelled while negotiating format", Cancelled},
		{"requested format is unavailable", FormatNotAvailable},
		{"video not found due to network hiccup", VideoNotFound},
	}
	for _, tc := range cases {
		if got := Classify(errors.New(tc.msg)); got.Kind != tc.want {
			t.Errorf("Classify(%q) = %v, want %v", tc.msg, got.Kind, tc.want)
		}
	}
}

func TestClassifyPassThrough(t *testing.T) {
	orig := &Error{Kind: RateLimit, Err: errors.New("slow down")}
	wrapped := fmt.Errorf("attempt 1: %w", orig)

	got := Classify(wrapped)
	if got != orig {
		t.Fatalf("Classify re-classified an already classified error: got %v", got.Kind)
	}
}

func TestClassifyCancelSentinel(t *testing.T) {
	got := Classify(fmt.Errorf("hook: %w", ErrCancelled))
	if got.Kind != Cancelled {
		t.Fatalf("Classify(ErrCancelled) = %v, want Cancelled", got.Kind)
	}
	if !errors.Is(got, ErrCancelled) {
		t.Fatal("classified error lost the sentinel chain")
	}
}

func TestRetryable(t *testing.T) {
	retryable := []Kind{FormatNotAvailable, Network, Unknown}
	for _, k := range retryable {
		if !k.Retryable() {
			t.Errorf("%v.Retryable() = false, want true", k)
		}
	}
	fatal := []Kind{VideoNotFound, Authentication, Filesystem, Cancelled, TranscoderMissing, Conversion, RateLimit, Playlist, MetadataExtraction}
	for _, k := range fatal {
		if k.Retryable() {
			t.Errorf("%v.Retryable() = true, want false", k)
		}
	}
}
