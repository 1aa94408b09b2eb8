package application

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/afflictionmoney/portofarm/internal/domain/model"
)

// DefaultLogCapacity bounds the in-memory run log served over the API.
const DefaultLogCapacity = 500

// LogEntry is one user-visible line of the run log.
type LogEntry struct {
	ID      string         `json:"id"`
	Time    time.Time      `json:"time"`
	Level   model.LogLevel `json:"level"`
	Message string         `json:"message"`
}

// LogBuffer is a bounded, concurrency-safe ring of run-log entries. When full,
// appending drops the oldest entry.
type LogBuffer struct {
	mu      sync.Mutex
	cap     int
	entries []LogEntry
}

// NewLogBuffer creates a buffer holding at most capacity entries.
func NewLogBuffer(capacity int) *LogBuffer {
	if capacity < 1 {
		capacity = DefaultLogCapacity
	}
	return &LogBuffer{cap: capacity}
}

// Append records one entry, evicting the oldest when at capacity.
func (b *LogBuffer) Append(level model.LogLevel, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.entries) == b.cap {
		copy(b.entries, b.entries[1:])
		b.entries = b.entries[:b.cap-1]
	}
	b.entries = append(b.entries, LogEntry{
		ID:      uuid.NewString(),
		Time:    time.Now().UTC(),
		Level:   level,
		Message: message,
	})
}

// Entries returns a copy of the buffered entries, oldest first.
func (b *LogBuffer) Entries() []LogEntry {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]LogEntry, len(b.entries))
	copy(out, b.entries)
	return out
}
