package daemon

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Log levels used by EventLog entries.
const (
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// EventEntry represents a single event log entry
type EventEntry struct {
	Timestamp time.Time `json:"ts"`
	Level     string    `json:"level"`     // "info", "warn", "error"
	Component string    `json:"component"` // "relay", "poll", "notify"
	Message   string    `json:"message"`
	Cursor    string    `json:"cursor,omitempty"`
}

// MaxEventLogEntries is the maximum number of entries kept in memory
const MaxEventLogEntries = 100

// EventLog appends leveled entries to a JSONL file and keeps the most
// recent ones in an in-memory ring buffer.
type EventLog struct {
	mu        sync.Mutex
	file      *os.File
	path      string
	now       func() time.Time
	recent    []EventEntry
	maxRecent int
	writeIdx  int // Next write position in ring buffer
	count     int // Total entries in ring buffer (up to maxRecent)
}

// NewEventLog creates a new event log writer
func NewEventLog(path string) (*EventLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	return &EventLog{
		file:      file,
		path:      path,
		now:       time.Now,
		recent:    make([]EventEntry, MaxEventLogEntries),
		maxRecent: MaxEventLogEntries,
	}, nil
}

// Path returns the file the log appends to.
func (e *EventLog) Path() string { return e.path }

// Log writes an entry to both file and in-memory buffer
func (e *EventLog) Log(level, component, message, cursor string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry := EventEntry{
		Timestamp: e.now(),
		Level:     level,
		Component: component,
		Message:   message,
		Cursor:    cursor,
	}

	if e.file != nil {
		data, err := json.Marshal(entry)
		if err == nil {
			_, _ = e.file.Write(append(data, '\n'))
		}
	}

	e.recent[e.writeIdx] = entry
	e.writeIdx = (e.writeIdx + 1) % e.maxRecent
	if e.count < e.maxRecent {
		e.count++
	}
}

// Recent returns the most recent entries (newest first)
func (e *EventLog) Recent() []EventEntry {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.count == 0 {
		return nil
	}

	result := make([]EventEntry, e.count)
	readIdx := (e.writeIdx - 1 + e.maxRecent) % e.maxRecent
	for i := 0; i < e.count; i++ {
		result[i] = e.recent[readIdx]
		readIdx = (readIdx - 1 + e.maxRecent) % e.maxRecent
	}
	return result
}

// RecentN returns up to n most recent entries (newest first)
func (e *EventLog) RecentN(n int) []EventEntry {
	all := e.Recent()
	if len(all) <= n {
		return all
	}
	return all[:n]
}

// CountSince counts buffered entries at level newer than since. An empty
// level counts every level. Only the in-memory buffer is consulted.
func (e *EventLog) CountSince(level string, since time.Time) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	count := 0
	readIdx := (e.writeIdx - 1 + e.maxRecent) % e.maxRecent
	for i := 0; i < e.count; i++ {
		entry := e.recent[readIdx]
		if entry.Timestamp.After(since) && (level == "" || entry.Level == level) {
			count++
		}
		readIdx = (readIdx - 1 + e.maxRecent) % e.maxRecent
	}
	return count
}

// Close closes the event log file
func (e *EventLog) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.file != nil {
		err := e.file.Close()
		e.file = nil
		return err
	}
	return nil
}
