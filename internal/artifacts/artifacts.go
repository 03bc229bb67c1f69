// Package artifacts removes partial-download leftovers after an item fails,
// is skipped or is cancelled. Finished downloads are never swept.
package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Params bundles a driver's post-mortem view of one item.
type Params struct {
	WorkDir    string   // directory to glob; falls back from LastOutput's dir
	Stem       string   // item filename without extension
	Candidates []string // paths observed in progress events
	LastOutput string   // most recent output path, if any
}

// patternsFor lists the glob shapes a partially fetched item leaves behind:
// resumable fragments, split video/audio streams, segment files and
// thumbnails, plus the merged container itself.
func patternsFor(stem string) []string {
	return []string{
		stem + ".part",
		stem + ".ytdl",
		stem + ".ytdl.part",
		stem + ".tmp",
		stem + ".temp",
		stem + "-video.*",
		stem + "-audio.*",
		stem + "*.m4s",
		stem + "*.ts",
		stem + ".webp",
		stem + ".jpg",
		stem + ".png",
		stem + ".mp4",
	}
}

// Sweep deletes every leftover regular file for one item and returns how many
// were removed. It never fails: unreadable or vanished paths are skipped, and
// each removal or failure is reported through emit. Running it again over the
// same item is a no-op.
func Sweep(p Params, emit func(string)) int {
	log := func(s string) {
		if emit != nil {
			emit(s)
		}
	}

	workDir := p.WorkDir
	stem := p.Stem
	seen := make(map[string]struct{}, len(p.Candidates)+1)
	for _, c := range p.Candidates {
		if c != "" {
			seen[c] = struct{}{}
		}
	}
	if p.LastOutput != "" {
		seen[p.LastOutput] = struct{}{}
		if stem == "" {
			base := filepath.Base(p.LastOutput)
			stem = strings.TrimSuffix(base, filepath.Ext(base))
		}
		if dir := filepath.Dir(p.LastOutput); dir != "." {
			workDir = dir
		}
	}
	if workDir == "" {
		return 0
	}

	if stem != "" {
		for _, pat := range patternsFor(stem) {
			matches, err := filepath.Glob(filepath.Join(workDir, pat))
			if err != nil {
				continue // stem contained glob metacharacters
			}
			for _, m := range matches {
				seen[m] = struct{}{}
			}
		}
	}

	paths := make([]string, 0, len(seen))
	for pth := range seen {
		paths = append(paths, pth)
	}
	sort.Strings(paths)

	removed := 0
	for _, pth := range paths {
		if !filepath.IsAbs(pth) {
			pth = filepath.Join(workDir, pth)
		}
		fi, err := os.Stat(pth)
		if err != nil || !fi.Mode().IsRegular() {
			continue
		}
		if err := os.Remove(pth); err != nil {
			log(fmt.Sprintf("Cleanup: failed to remove %s: %v", pth, err))
			continue
		}
		removed++
		log(fmt.Sprintf("Cleanup: removed %s", pth))
	}
	if removed == 0 {
		log("Cleanup: no artifacts found to remove")
	}
	return removed
}
