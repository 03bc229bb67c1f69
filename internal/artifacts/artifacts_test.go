package artifacts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestSweepRemovesLeftovers(t *testing.T) {
	dir := t.TempDir()
	leftovers := []string{
		"clip.part",
		"clip.ytdl",
		"clip.ytdl.part",
		"clip-video.webm",
		"clip-audio.m4a",
		"clip.frag1.m4s",
		"clip.webp",
		"clip.mp4",
	}
	for _, name := range leftovers {
		touch(t, filepath.Join(dir, name))
	}
	survivor := filepath.Join(dir, "other.part")
	touch(t, survivor)

	var logs []string
	n := Sweep(Params{WorkDir: dir, Stem: "clip"}, func(s string) { logs = append(logs, s) })

	if n != len(leftovers) {
		t.Errorf("Sweep removed %d files, want %d", n, len(leftovers))
	}
	for _, name := range leftovers {
		if exists(filepath.Join(dir, name)) {
			t.Errorf("%s still exists after sweep", name)
		}
	}
	if !exists(survivor) {
		t.Error("sweep removed a file belonging to another item")
	}
	if len(logs) != len(leftovers) {
		t.Errorf("got %d log lines, want %d", len(logs), len(leftovers))
	}
	for _, line := range logs {
		if !strings.HasPrefix(line, "Cleanup: removed ") {
			t.Errorf("unexpected log line %q", line)
		}
	}
}

func TestSweepIdempotent(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "clip.part"))
	keep := filepath.Join(dir, "keep.txt")
	touch(t, keep)

	p := Params{WorkDir: dir, Stem: "clip"}
	if n := Sweep(p, nil); n != 1 {
		t.Fatalf("first sweep removed %d, want 1", n)
	}

	var logs []string
	if n := Sweep(p, func(s string) { logs = append(logs, s) }); n != 0 {
		t.Errorf("second sweep removed %d, want 0", n)
	}
	if len(logs) != 1 || logs[0] != "Cleanup: no artifacts found to remove" {
		t.Errorf("second sweep logs = %v", logs)
	}
	if !exists(keep) {
		t.Error("unrelated file removed on repeat sweep")
	}
}

func TestSweepCandidatesAndRelativePaths(t *testing.T) {
	dir := t.TempDir()
	abs := filepath.Join(dir, "seen.tmp")
	touch(t, abs)
	touch(t, filepath.Join(dir, "rel.tmp"))

	n := Sweep(Params{WorkDir: dir, Candidates: []string{abs, "rel.tmp", ""}}, nil)
	if n != 2 {
		t.Errorf("Sweep removed %d, want 2", n)
	}
	if exists(abs) || exists(filepath.Join(dir, "rel.tmp")) {
		t.Error("candidate files survived the sweep")
	}
}

func TestSweepDerivesStemFromLastOutput(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "song.part"))
	out := filepath.Join(dir, "song.mp3")
	touch(t, out)

	n := Sweep(Params{LastOutput: out}, nil)
	if n != 2 {
		t.Errorf("Sweep removed %d, want 2 (output and its .part)", n)
	}
}

func TestSweepSkipsDirectories(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "clip.tmp"), 0755); err != nil {
		t.Fatal(err)
	}

	n := Sweep(Params{WorkDir: dir, Stem: "clip"}, nil)
	if n != 0 {
		t.Errorf("Sweep removed %d, want 0", n)
	}
	if !exists(filepath.Join(dir, "clip.tmp")) {
		t.Error("directory was removed")
	}
}

func TestSweepNoWorkDir(t *testing.T) {
	var logs []string
	n := Sweep(Params{}, func(s string) { logs = append(logs, s) })
	if n != 0 {
		t.Errorf("Sweep removed %d, want 0", n)
	}
	if len(logs) != 0 {
		t.Errorf("expected silence with no work dir, got %v", logs)
	}
}
