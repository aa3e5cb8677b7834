// Package ffmpeg runs the ffmpeg binary as a subprocess to pull still frames
// out of recordings.
package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	maxStderrBytes = 8 * 1024 // 8 KB tail of stderr kept for diagnostics

	DefaultBinary  = "ffmpeg"
	DefaultTimeout = 60 * time.Second
)

// Config holds the runner's configuration.
type Config struct {
	Binary  string        // ffmpeg binary name or path; empty = "ffmpeg" on PATH
	Timeout time.Duration // per-invocation timeout
	Logger  *slog.Logger
}

// RunResult is the structured outcome of one ffmpeg invocation.
type RunResult struct {
	ExitCode   int
	OutputPath string
	StderrTail string
	Duration   time.Duration
}

// IsSuccess returns true when the subprocess exited cleanly.
func (r RunResult) IsSuccess() bool { return r.ExitCode == 0 }

// Runner executes ffmpeg commands.
type Runner struct {
	cfg    Config
	binary string
}

// NewRunner resolves the ffmpeg binary and returns a Runner.
func NewRunner(cfg Config) (*Runner, error) {
	binary, err := resolveBinary(cfg.Binary)
	if err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Runner{cfg: cfg, binary: binary}, nil
}

// Binary returns the resolved ffmpeg path.
func (r *Runner) Binary() string {
	return r.binary
}

// ExtractFrame writes the frame at atSeconds of src to outPath as an image.
// The image format follows the outPath extension.
func (r *Runner) ExtractFrame(ctx context.Context, src string, atSeconds float64, outPath string) RunResult {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	return r.exec(ctx, outPath,
		"-nostdin",
		"-hide_banner",
		"-loglevel", "error",
		"-ss", FormatSeconds(atSeconds),
		"-i", src,
		"-vframes", "1",
		"-q:v", "2",
		"-y", outPath,
	)
}

// Version runs `ffmpeg -version` and returns the first line of its output.
func (r *Runner) Version(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, r.binary, "-version").Output()
	if err != nil {
		return "", fmt.Errorf("ffmpeg -version: %w", err)
	}
	line, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimSpace(line), nil
}

// FormatSeconds renders a timestamp for -ss with millisecond precision.
func FormatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}

func (r *Runner) exec(ctx context.Context, outPath string, args ...string) RunResult {
	start := time.Now()

	if outPath != "" {
		if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
			r.cfg.Logger.Error("cannot create output dir", "error", err)
			return RunResult{ExitCode: -1, StderrTail: err.Error(), Duration: time.Since(start)}
		}
	}

	cmd := exec.CommandContext(ctx, r.binary, args...)

	var stderrBuf bytes.Buffer
	cmd.Stderr = &limitedWriter{w: &stderrBuf, limit: maxStderrBytes}
	cmd.Stdout = io.Discard

	r.cfg.Logger.Debug("executing ffmpeg", "args", args)

	err := cmd.Run()
	elapsed := time.Since(start)

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	stderrTail := stderrBuf.String()
	if err != nil && stderrTail == "" {
		stderrTail = err.Error()
	}

	if exitCode != 0 {
		r.cfg.Logger.Debug("ffmpeg failed",
			"exit_code", exitCode,
			"duration_ms", elapsed.Milliseconds(),
			"stderr_tail", truncate(stderrTail, 512),
		)
	}

	return RunResult{
		ExitCode:   exitCode,
		OutputPath: outPath,
		StderrTail: stderrTail,
		Duration:   elapsed,
	}
}

func resolveBinary(preferred string) (string, error) {
	name := strings.TrimSpace(preferred)
	if name == "" {
		name = DefaultBinary
	}
	p, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("ffmpeg binary %q not found: %w", name, err)
	}
	return p, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter is an io.Writer that keeps only the last `limit` bytes.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		b := lw.w.Bytes()
		tail := make([]byte, lw.limit)
		copy(tail, b[len(b)-lw.limit:])
		lw.w.Reset()
		lw.w.Write(tail)
	}
	return n, nil
}
