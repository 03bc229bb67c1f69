// Package transcoder resolves the external ffmpeg binary used for remuxing,
// audio extraction and metadata embedding.
package transcoder

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

func binaryName() string {
	if runtime.GOOS == "windows" {
		return "ffmpeg.exe"
	}
	return "ffmpeg"
}

// Locate returns the path of the ffmpeg binary, checking a copy bundled next
// to the running executable first, then the current working directory, then
// the system PATH. Returns "" when none is found.
func Locate() string {
	name := binaryName()

	if exe, err := os.Executable(); err == nil {
		bundled := filepath.Join(filepath.Dir(exe), name)
		if fileExists(bundled) {
			return bundled
		}
	}

	if wd, err := os.Getwd(); err == nil {
		local := filepath.Join(wd, name)
		if fileExists(local) {
			return local
		}
	}

	if p, err := exec.LookPath(name); err == nil {
		return p
	}
	return ""
}

// Available reports whether an ffmpeg binary can be resolved. Audio workflows
// fail without one; video workflows degrade to un-remuxed output.
func Available() bool {
	return Locate() != ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
