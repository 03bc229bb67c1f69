package api

import (
	"sync"
	"time"
)

const eventBufferSize = 500

// EventEntry is one engine log line retained for the events endpoint.
type EventEntry struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

// EventBuffer is a fixed-size ring of recent engine log lines. The logger's
// hook handler feeds it; GET /v1/events drains it read-only.
type EventBuffer struct {
	mu      sync.Mutex
	entries []EventEntry
	next    int
	full    bool
}

func NewEventBuffer() *EventBuffer {
	return &EventBuffer{entries: make([]EventEntry, eventBufferSize)}
}

// Append records one line, evicting the oldest when full.
func (b *EventBuffer) Append(level, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[b.next] = EventEntry{Time: time.Now(), Level: level, Message: message}
	b.next = (b.next + 1) % len(b.entries)
	if b.next == 0 {
		b.full = true
	}
}

// Recent returns up to limit entries, newest first. limit <= 0 returns all.
func (b *EventBuffer) Recent(limit int) []EventEntry {
	b.mu.Lock()
	defer b.mu.Unlock()

	size := b.next
	if b.full {
		size = len(b.entries)
	}
	if limit <= 0 || limit > size {
		limit = size
	}

	out := make([]EventEntry, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (b.next - i + len(b.entries)) % len(b.entries)
		out = append(out, b.entries[idx])
	}
	return out
}
