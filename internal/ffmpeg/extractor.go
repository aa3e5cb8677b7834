package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
)

// FrameRunner is the part of Runner the extractor needs.
type FrameRunner interface {
	ExtractFrame(ctx context.Context, src string, atSeconds float64, outPath string) RunResult
}

// Extractor turns single-frame ffmpeg runs into image bytes. Frames are
// written under workDir, which the caller owns and removes.
type Extractor struct {
	runner  FrameRunner
	workDir string
	seq     atomic.Int64
	lastErr atomic.Value
}

func NewExtractor(runner FrameRunner, workDir string) *Extractor {
	return &Extractor{runner: runner, workDir: workDir}
}

// Extract returns the PNG frame at seconds into recordingPath. A non-zero exit
// or a missing or empty output file reports false; it never panics or errors.
func (e *Extractor) Extract(ctx context.Context, recordingPath string, seconds float64) ([]byte, bool) {
	n := e.seq.Add(1)
	out := filepath.Join(e.workDir, fmt.Sprintf("frame_%04d.png", n))

	res := e.runner.ExtractFrame(ctx, recordingPath, seconds, out)
	if !res.IsSuccess() {
		e.lastErr.Store(fmt.Sprintf("ffmpeg exited %d: %s", res.ExitCode, truncate(res.StderrTail, 256)))
		return nil, false
	}

	data, err := os.ReadFile(out)
	if err != nil || len(data) == 0 {
		e.lastErr.Store("ffmpeg produced no output file")
		return nil, false
	}
	return data, true
}

// LastFailure describes the most recent failed extraction, if any.
func (e *Extractor) LastFailure() string {
	s, _ := e.lastErr.Load().(string)
	return s
}
