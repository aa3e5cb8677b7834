package ffmpeg

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const defaultCacheTTL = 5 * time.Minute

// Capabilities reports whether frame extraction is usable.
type Capabilities struct {
	Binary    string    `json:"binary"`
	Version   string    `json:"version,omitempty"`
	Available bool      `json:"available"`
	Error     string    `json:"error,omitempty"`
	ProbedAt  time.Time `json:"probed_at"`
}

// Prober is the part of Runner the doctor needs.
type Prober interface {
	Binary() string
	Version(ctx context.Context) (string, error)
}

// CachedDoctor caches ffmpeg probe results with a TTL so health checks do not
// spawn a subprocess on every request.
type CachedDoctor struct {
	prober Prober
	ttl    time.Duration
	logger *slog.Logger

	mu     sync.RWMutex
	cached *Capabilities
}

func NewCachedDoctor(prober Prober, logger *slog.Logger) *CachedDoctor {
	return &CachedDoctor{prober: prober, ttl: defaultCacheTTL, logger: logger}
}

// Get returns cached capabilities if fresh, otherwise re-probes.
func (d *CachedDoctor) Get(ctx context.Context) *Capabilities {
	d.mu.RLock()
	if d.cached != nil && time.Since(d.cached.ProbedAt) < d.ttl {
		caps := d.cached
		d.mu.RUnlock()
		return caps
	}
	d.mu.RUnlock()

	return d.Refresh(ctx)
}

// Refresh probes ffmpeg regardless of cache freshness.
func (d *CachedDoctor) Refresh(ctx context.Context) *Capabilities {
	d.mu.Lock()
	defer d.mu.Unlock()

	caps := &Capabilities{Binary: d.prober.Binary(), ProbedAt: time.Now()}
	version, err := d.prober.Version(ctx)
	if err != nil {
		caps.Error = err.Error()
		if d.logger != nil {
			d.logger.Warn("ffmpeg probe failed", "binary", caps.Binary, "error", err)
		}
	} else {
		caps.Available = true
		caps.Version = version
	}

	d.cached = caps
	return caps
}

// Probe checks ffmpeg without a Runner, for use before one can be built.
func Probe(ctx context.Context, binary string) *Capabilities {
	caps := &Capabilities{Binary: binary, ProbedAt: time.Now()}
	r, err := NewRunner(Config{Binary: binary, Timeout: 10 * time.Second})
	if err != nil {
		caps.Error = err.Error()
		return caps
	}
	caps.Binary = r.Binary()
	version, err := r.Version(ctx)
	if err != nil {
		caps.Error = err.Error()
		return caps
	}
	caps.Available = true
	caps.Version = version
	return caps
}
