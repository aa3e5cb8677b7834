// Package locator resolves the recordings that belong to a transcript.
//
// Recordings live under {root}/{region}/ and follow the corpus convention
// {region}{index}+2c.{ext} for the combined two-camera view and
// {region}{index}c.{ext} for the single view.
package locator

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/heimdex/offsetcheck/internal/naming"
)

// MaxRecordings is the most recordings returned for one transcript.
const MaxRecordings = 2

// DefaultExtensions are the recording container extensions tried, in order.
var DefaultExtensions = []string{"mp4"}

// Locator finds recordings on disk.
type Locator struct {
	root   string
	exts   []string
	logger *slog.Logger
}

func New(root string, exts []string, logger *slog.Logger) *Locator {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	clean := make([]string, 0, len(exts))
	for _, e := range exts {
		if e = strings.TrimPrefix(strings.TrimSpace(e), "."); e != "" {
			clean = append(clean, e)
		}
	}
	return &Locator{root: root, exts: clean, logger: logger}
}

// Candidates returns the conventional recording paths for a transcript in
// priority order: combined view first, then single view.
func (l *Locator) Candidates(t naming.Transcript) []string {
	dir := filepath.Join(l.root, t.Region)
	var out []string
	for _, suffix := range []string{"+2c", "c"} {
		for _, ext := range l.exts {
			out = append(out, filepath.Join(dir, t.Region+t.Index+suffix+"."+ext))
		}
	}
	return out
}

// Locate returns up to MaxRecordings existing recordings for the transcript
// filename. When only one conventional path exists, a broader glob search
// looks for a complementary recording. An empty result is not an error.
func (l *Locator) Locate(filename string) []string {
	t := naming.Parse(filename)

	var found []string
	for _, p := range l.Candidates(t) {
		if len(found) == MaxRecordings {
			break
		}
		if isFile(p) {
			found = append(found, p)
		}
	}

	if len(found) == 1 {
		found = l.complement(t, found)
	}

	if l.logger != nil {
		l.logger.Debug("recordings located", "transcript", t.Filename, "count", len(found), "region", t.Region, "index", t.Index)
	}
	return found
}

func (l *Locator) complement(t naming.Transcript, found []string) []string {
	region := escapeGlob(t.Region)
	dir := filepath.Join(escapeGlob(l.root), region)
	for _, ext := range l.exts {
		patterns := []string{
			filepath.Join(dir, region+"*"+escapeGlob(t.Index)+"*c."+escapeGlob(ext)),
			filepath.Join(dir, region+escapeGlob(t.PaddedIndex())+"*."+escapeGlob(ext)),
		}
		for _, pattern := range patterns {
			matches, err := filepath.Glob(pattern)
			if err != nil {
				continue
			}
			for _, m := range matches {
				if len(found) >= MaxRecordings {
					return found
				}
				if !contains(found, m) && isFile(m) {
					found = append(found, m)
				}
			}
		}
	}
	return found
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

func contains(paths []string, p string) bool {
	cp := filepath.Clean(p)
	for _, q := range paths {
		if filepath.Clean(q) == cp {
			return true
		}
	}
	return false
}

func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
