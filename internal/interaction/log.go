package interaction

import (
	"bufio"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Entry is one durable record of a completed request/response
// interaction. Entries are immutable once written.
type Entry struct {
	Timestamp   time.Time `json:"timestamp"`
	Prompt      string    `json:"prompt"`
	Response    string    `json:"response"`
	Model       string    `json:"model"`
	DurationMS  int64     `json:"duration_ms"`
	Success     bool      `json:"success"`
	ErrorReason string    `json:"error_reason,omitempty"`
}

// Stats aggregates the whole log file.
type Stats struct {
	Total             int     `json:"total_interactions"`
	Successful        int     `json:"successful_interactions"`
	Failed            int     `json:"failed_interactions"`
	AverageDurationMS float64 `json:"average_duration_ms"`
}

// Log is a thread-safe append-only writer of interaction records to a
// line-delimited JSON file. Only appends take the lock; readers
// tolerate a concurrently-in-progress write by skipping unparseable
// lines.
type Log struct {
	path   string
	mu     sync.Mutex
	logger *zap.Logger
}

func NewLog(path string, logger *zap.Logger) *Log {
	return &Log{path: path, logger: logger}
}

// Append serializes the entry as one JSON line and appends it to the
// log file, creating the containing directory on first use. A write
// failure is reported through the logger and never propagated: the
// caller's response must not depend on the log being writable.
func (l *Log) Append(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.write(e); err != nil {
		l.logger.Error("failed to append interaction", zap.Error(err))
	}
}

func (l *Log) write(e Entry) error {
	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	line, err := json.Marshal(e)
	if err != nil {
		return err
	}

	_, err = f.Write(append(line, '\n'))
	return err
}

// Recent returns up to limit most-recently-appended entries in
// insertion (oldest-first) order. A missing file yields an empty slice;
// unparseable lines are skipped.
func (l *Log) Recent(limit int) []Entry {
	if limit <= 0 {
		return []Entry{}
	}

	entries := l.scan(nil)
	if len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries
}

// Stats runs a full linear scan of the log file. Unparseable lines are
// not counted.
func (l *Log) Stats() Stats {
	var s Stats
	var totalDuration int64

	l.scan(func(e Entry) {
		s.Total++
		if e.Success {
			s.Successful++
		} else {
			s.Failed++
		}
		totalDuration += e.DurationMS
	})

	if s.Total > 0 {
		s.AverageDurationMS = math.Round(float64(totalDuration)/float64(s.Total)*100) / 100
	}
	return s
}

// scan parses every well-formed line. With a nil visitor it collects
// and returns the entries; with a visitor it streams them instead.
func (l *Log) scan(visit func(Entry)) []Entry {
	f, err := os.Open(l.path)
	if err != nil {
		if !os.IsNotExist(err) {
			l.logger.Error("failed to open interaction log", zap.Error(err))
		}
		return []Entry{}
	}
	defer f.Close()

	entries := []Entry{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			// Tolerates a crash mid-write or a concurrent partial line.
			continue
		}
		if visit != nil {
			visit(e)
		} else {
			entries = append(entries, e)
		}
	}
	if err := scanner.Err(); err != nil {
		l.logger.Warn("interaction log scan ended early", zap.Error(err))
	}
	return entries
}
