package ledger

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// BatchPattern matches the per-decision files the review page downloads.
const BatchPattern = "decision_*.csv"

// BatchFile is the outcome of reading one decision file.
type BatchFile struct {
	Path      string
	Record    Record
	Duplicate bool  // a file earlier in the batch already named this transcript
	Err       error // unreadable or malformed
}

// Batch is a set of decision files read from one directory.
type Batch struct {
	Files []BatchFile
}

// Records returns the first valid record per transcript, in file order.
func (b Batch) Records() []Record {
	var out []Record
	for _, f := range b.Files {
		if f.Err == nil && !f.Duplicate {
			out = append(out, f.Record)
		}
	}
	return out
}

// Paths returns every file that contributed a record or was a duplicate.
func (b Batch) Paths() []string {
	var out []string
	for _, f := range b.Files {
		if f.Err == nil {
			out = append(out, f.Path)
		}
	}
	return out
}

// ReadBatch reads every decision file in dir in name order. Each file holds
// one line filename,decision,timestamp[,notes]. The first file to name a
// transcript wins; later ones are marked Duplicate.
func ReadBatch(dir string) (Batch, error) {
	matches, err := filepath.Glob(filepath.Join(dir, BatchPattern))
	if err != nil {
		return Batch{}, fmt.Errorf("list decision files: %w", err)
	}
	sort.Strings(matches)

	var (
		batch Batch
		seen  = map[string]bool{}
	)
	for _, path := range matches {
		rec, err := readDecisionFile(path)
		bf := BatchFile{Path: path, Record: rec, Err: err}
		if err == nil {
			bf.Duplicate = seen[rec.Filename]
			seen[rec.Filename] = true
		}
		batch.Files = append(batch.Files, bf)
	}
	return batch, nil
}

func readDecisionFile(path string) (Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return Record{}, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		r := csv.NewReader(strings.NewReader(line))
		r.FieldsPerRecord = -1
		r.LazyQuotes = true
		fields, err := r.Read()
		if err != nil {
			return Record{}, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
		}
		if strings.EqualFold(strings.TrimSpace(fields[0]), header[0]) {
			continue
		}
		if len(fields) < 3 {
			return Record{}, fmt.Errorf("parse %s: want at least 3 fields, got %d", filepath.Base(path), len(fields))
		}
		decision, err := ParseDecision(fields[1])
		if err != nil {
			return Record{}, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
		}
		rec := Record{
			Filename:  strings.TrimSpace(fields[0]),
			Decision:  decision,
			Timestamp: strings.TrimSpace(fields[2]),
		}
		if len(fields) > 3 {
			rec.Notes = strings.Join(fields[3:], ",")
		}
		if rec.Filename == "" {
			return Record{}, fmt.Errorf("parse %s: empty filename", filepath.Base(path))
		}
		return rec, nil
	}
	if err := sc.Err(); err != nil {
		return Record{}, err
	}
	return Record{}, fmt.Errorf("%s is empty", filepath.Base(path))
}

// CollectResult summarises a Collect run.
type CollectResult struct {
	Batch   Batch
	Updated int
	Added   int
	Removed []string
}

// Collect merges the decision files in dir into the ledger. Later decisions
// replace earlier ledger rows for the same transcript. With remove set, the
// files that were read successfully are deleted after the merge.
func (l *Ledger) Collect(dir string, remove bool) (CollectResult, error) {
	batch, err := ReadBatch(dir)
	if err != nil {
		return CollectResult{}, err
	}
	res := CollectResult{Batch: batch}

	records := batch.Records()
	if len(records) > 0 {
		res.Updated, res.Added, err = l.Merge(records, true)
		if err != nil {
			return res, err
		}
	}

	if remove {
		for _, p := range batch.Paths() {
			if err := os.Remove(p); err != nil {
				return res, fmt.Errorf("remove %s: %w", p, err)
			}
			res.Removed = append(res.Removed, p)
		}
	}
	return res, nil
}
