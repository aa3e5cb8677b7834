// Package ledger persists reviewer decisions, one row per transcript, in a
// CSV file with the header filename,decision,timestamp,notes.
package ledger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/heimdex/offsetcheck/internal/logging"
)

// DefaultFilename is the ledger file name inside the data directory.
const DefaultFilename = "decisions.csv"

var header = []string{"filename", "decision", "timestamp", "notes"}

// ErrInvalidDecision is returned for anything other than accept or reject.
var ErrInvalidDecision = errors.New("decision must be accept or reject")

// Decision is the reviewer's verdict on a whole transcript.
type Decision string

const (
	Accept Decision = "accept"
	Reject Decision = "reject"
)

// ParseDecision normalises case and whitespace.
func ParseDecision(s string) (Decision, error) {
	switch Decision(strings.ToLower(strings.TrimSpace(s))) {
	case Accept:
		return Accept, nil
	case Reject:
		return Reject, nil
	}
	return "", fmt.Errorf("%w: got %q", ErrInvalidDecision, s)
}

func (d Decision) Valid() bool { return d == Accept || d == Reject }

// Record is one ledger row.
type Record struct {
	Filename  string   `json:"filename"`
	Decision  Decision `json:"decision"`
	Timestamp string   `json:"timestamp"`
	Notes     string   `json:"notes"`
}

// Tally counts decisions by kind.
type Tally struct {
	Accept int `json:"accept"`
	Reject int `json:"reject"`
	Other  int `json:"other,omitempty"`
}

// FormatTimestamp renders decision times the way the ledger stores them.
func FormatTimestamp(t time.Time) string {
	return t.Format(time.RFC3339)
}

// Ledger is the in-memory view of the ledger file. Every write re-reads the
// file under an advisory lock, applies the change and atomically replaces the
// file, so the on-disk content is always either the old or the new table.
type Ledger struct {
	path   string
	lock   *flock.Flock
	logger *slog.Logger

	mu      sync.RWMutex
	records []Record
	index   map[string]int
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the logger that reports damaged ledger content.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// Open loads the ledger at path. A missing, empty or truncated file is an
// empty (or partial) ledger, not an error.
func Open(path string, opts ...Option) (*Ledger, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("ledger path is empty")
	}
	l := &Ledger{
		path:   path,
		lock:   flock.New(path + ".lock"),
		logger: logging.Discard(),
		index:  map[string]int{},
	}
	for _, opt := range opts {
		opt(l)
	}
	if err := l.Reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// Path returns the ledger file path.
func (l *Ledger) Path() string { return l.path }

// Reload re-reads the ledger file, picking up writes from other processes.
func (l *Ledger) Reload() error {
	records, err := l.read()
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.setLocked(records)
	l.mu.Unlock()
	return nil
}

// IsProcessed reports whether filename already has a decision row.
func (l *Ledger) IsProcessed(filename string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.index[filename]
	return ok
}

// Lookup returns the row for filename.
func (l *Ledger) Lookup(filename string) (Record, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	i, ok := l.index[filename]
	if !ok {
		return Record{}, false
	}
	return l.records[i], true
}

// Records returns a copy of all rows in file order.
func (l *Ledger) Records() []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}

// Counts tallies the decisions currently loaded.
func (l *Ledger) Counts() Tally {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var t Tally
	for _, r := range l.records {
		switch r.Decision {
		case Accept:
			t.Accept++
		case Reject:
			t.Reject++
		default:
			t.Other++
		}
	}
	return t
}

// Upsert records decision for filename. An existing row keeps its position
// and has decision, timestamp and notes replaced; otherwise a row is appended.
// It reports whether an existing row was updated.
func (l *Ledger) Upsert(filename string, decision Decision, at time.Time, notes string) (Record, bool, error) {
	rec := Record{
		Filename:  filename,
		Decision:  decision,
		Timestamp: FormatTimestamp(at),
		Notes:     notes,
	}
	updated, _, err := l.apply([]Record{rec}, true)
	if err != nil {
		return Record{}, false, err
	}
	return rec, updated > 0, nil
}

// Merge upserts a batch of records with a single rewrite. When overwrite is
// false, filenames already in the ledger are left untouched. It returns how
// many rows were updated and how many appended.
func (l *Ledger) Merge(records []Record, overwrite bool) (updated, added int, err error) {
	return l.apply(records, overwrite)
}

func (l *Ledger) apply(records []Record, overwrite bool) (updated, added int, err error) {
	for _, r := range records {
		if strings.TrimSpace(r.Filename) == "" {
			return 0, 0, errors.New("ledger: empty filename")
		}
		if !r.Decision.Valid() {
			return 0, 0, fmt.Errorf("ledger: %s: %w", r.Filename, ErrInvalidDecision)
		}
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return 0, 0, fmt.Errorf("create ledger dir: %w", err)
	}
	if err := l.lock.Lock(); err != nil {
		return 0, 0, fmt.Errorf("lock ledger: %w", err)
	}
	defer func() { _ = l.lock.Unlock() }()

	l.mu.Lock()
	defer l.mu.Unlock()

	// The whole old table is read before anything is written.
	current, rerr := l.read()
	if rerr != nil {
		return 0, 0, rerr
	}
	l.setLocked(current)

	next := make([]Record, len(l.records))
	copy(next, l.records)
	index := make(map[string]int, len(l.index))
	for k, v := range l.index {
		index[k] = v
	}

	for _, r := range records {
		if i, ok := index[r.Filename]; ok {
			if !overwrite {
				continue
			}
			next[i].Decision = r.Decision
			next[i].Timestamp = r.Timestamp
			next[i].Notes = r.Notes
			updated++
			continue
		}
		index[r.Filename] = len(next)
		next = append(next, r)
		added++
	}

	if err := writeFile(l.path, next); err != nil {
		return 0, 0, err
	}
	l.records = next
	l.index = index
	return updated, added, nil
}

func (l *Ledger) setLocked(records []Record) {
	l.records = records
	l.index = make(map[string]int, len(records))
	for i, r := range records {
		l.index[r.Filename] = i
	}
}

// read parses the ledger file and warns about rows that swallowed later
// rows, which is what an unterminated quote leaves behind. Those rows stay
// as they are; rewriting the file keeps the damage, so it needs a hand fix.
func (l *Ledger) read() ([]Record, error) {
	records, err := readFile(l.path)
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if n := absorbedRows(r); n > 0 {
			l.logger.Warn("ledger row absorbed later rows, check for an unbalanced quote",
				"path", l.path,
				"file", r.Filename,
				"absorbed", n,
			)
		}
	}
	return records, nil
}

// absorbedRows counts the lines inside rec's fields that look like ledger
// rows of their own.
func absorbedRows(rec Record) int {
	n := 0
	for _, field := range []string{rec.Timestamp, rec.Notes} {
		lines := strings.Split(field, "\n")
		for _, line := range lines[1:] {
			parts := strings.Split(line, ",")
			if len(parts) < 3 || strings.TrimSpace(parts[0]) == "" {
				continue
			}
			if _, err := ParseDecision(parts[1]); err == nil {
				n++
			}
		}
	}
	return n
}

// readFile parses the ledger. Rows after a malformed line are ignored, as are
// rows without a filename. Duplicate filenames collapse onto the first row,
// taking the later values.
func readFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var (
		records []Record
		seen    = map[string]int{}
		first   = true
	)
	for {
		row, err := r.Read()
		if err != nil {
			// io.EOF, or a truncated tail
			break
		}
		if first {
			first = false
			if len(row) > 0 && strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(row[0], "\ufeff")), header[0]) {
				continue
			}
		}
		for len(row) < len(header) {
			row = append(row, "")
		}
		name := strings.TrimSpace(row[0])
		if name == "" {
			continue
		}
		rec := Record{Filename: name, Decision: Decision(strings.TrimSpace(row[1])), Timestamp: row[2], Notes: row[3]}
		if i, ok := seen[name]; ok {
			records[i] = rec
			continue
		}
		seen[name] = len(records)
		records = append(records, rec)
	}
	return records, nil
}

// writeFile replaces path with the given rows via a temp file and rename.
func writeFile(path string, records []Record) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		cleanup()
		return fmt.Errorf("write ledger header: %w", err)
	}
	for _, r := range records {
		if err := w.Write([]string{r.Filename, string(r.Decision), r.Timestamp, r.Notes}); err != nil {
			cleanup()
			return fmt.Errorf("write ledger row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		cleanup()
		return fmt.Errorf("flush ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("sync ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close ledger: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}
