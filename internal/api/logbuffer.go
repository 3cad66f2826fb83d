package api

import (
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// LogEntry is one captured log line.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Raw       string    `json:"raw"`
}

// LogBuffer is a thread-safe ring buffer of recent log lines. It
// implements io.Writer so it can sit behind the zerolog multi-writer and
// back the /api/logs endpoint.
type LogBuffer struct {
	mu      sync.RWMutex
	entries []LogEntry
	head    int
	count   int
}

// NewLogBuffer creates a buffer holding the last size entries.
func NewLogBuffer(size int) *LogBuffer {
	return &LogBuffer{entries: make([]LogEntry, size)}
}

// logLine is the subset of zerolog's JSON output we index on.
type logLine struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Write captures one log line.
func (b *LogBuffer) Write(p []byte) (int, error) {
	entry := LogEntry{
		Timestamp: time.Now(),
		Level:     "info",
		Raw:       strings.TrimRight(string(p), "\n"),
	}

	var line logLine
	if err := json.Unmarshal(p, &line); err == nil {
		if line.Level != "" {
			entry.Level = line.Level
		}
		entry.Message = line.Message
	}

	b.mu.Lock()
	b.entries[b.head] = entry
	b.head = (b.head + 1) % len(b.entries)
	if b.count < len(b.entries) {
		b.count++
	}
	b.mu.Unlock()

	return len(p), nil
}

// Recent returns up to n entries, oldest first.
func (b *LogBuffer) Recent(n int) []LogEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if n > b.count || n <= 0 {
		n = b.count
	}
	out := make([]LogEntry, 0, n)
	start := b.head - n
	if b.count < len(b.entries) {
		start = b.count - n
	}
	for i := 0; i < n; i++ {
		idx := ((start + i) % len(b.entries) + len(b.entries)) % len(b.entries)
		out = append(out, b.entries[idx])
	}
	return out
}
