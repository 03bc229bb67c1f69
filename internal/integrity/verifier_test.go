package integrity

import (
	"os"
	"path/filepath"
	"testing"
)

func TestChecksum(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.bin")
	if err := os.WriteFile(path, []byte("hello world"), 0644); err != nil {
		t.Fatal(err)
	}

	// sha256("hello world")
	want := "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	got, err := Checksum(path)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("Checksum = %s, want %s", got, want)
	}

	if err := Verify(path, want); err != nil {
		t.Errorf("Verify with matching hash: %v", err)
	}
	if err := Verify(path, "deadbeef"); err == nil {
		t.Error("Verify with wrong hash succeeded")
	}
}

func TestChecksumMissingFile(t *testing.T) {
	if _, err := Checksum(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Error("Checksum of missing file succeeded")
	}
}
