// Package playback streams recordings to the review page with byte-range
// support so the browser can seek.
package playback

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

var videoTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
}

type Streamer struct {
	logger *slog.Logger
}

func NewStreamer(logger *slog.Logger) *Streamer {
	return &Streamer{logger: logger}
}

// ContentType guesses the media type of a recording from its extension.
func ContentType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if t, ok := videoTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

// Stream writes path to w, honouring a single-range Range header. A missing
// file is answered with 404 and no error.
func (s *Streamer) Stream(w http.ResponseWriter, r *http.Request, path string) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			http.Error(w, "recording not found", http.StatusNotFound)
			return nil
		}
		return fmt.Errorf("open recording: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat recording: %w", err)
	}
	size := info.Size()

	h := w.Header()
	h.Set("Accept-Ranges", "bytes")
	h.Set("Content-Type", ContentType(path))
	h.Set("Last-Modified", info.ModTime().UTC().Format(http.TimeFormat))

	br, partial, err := ParseRange(r.Header.Get("Range"), size)
	if errors.Is(err, ErrUnsatisfiable) {
		h.Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		http.Error(w, "range not satisfiable", http.StatusRequestedRangeNotSatisfiable)
		return nil
	}

	status := http.StatusOK
	length := size
	if partial {
		status = http.StatusPartialContent
		length = br.Len()
		h.Set("Content-Range", br.ContentRange(size))
		if _, err := f.Seek(br.Start, io.SeekStart); err != nil {
			return fmt.Errorf("seek recording: %w", err)
		}
	}
	h.Set("Content-Length", strconv.FormatInt(length, 10))
	w.WriteHeader(status)

	if r.Method == http.MethodHead {
		return nil
	}

	start := time.Now()
	n, err := io.CopyN(w, f, length)
	if s.logger != nil {
		if err != nil {
			// the client usually went away mid-stream
			s.logger.Debug("recording stream interrupted", "path", path, "bytes", n, "error", err)
		} else {
			s.logger.Debug("streamed recording", "path", path, "bytes", n, "partial", partial, "duration_ms", time.Since(start).Milliseconds())
		}
	}
	return nil
}
