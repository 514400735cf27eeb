package service

import (
	"sync"

	"frpanel/internal/models"
)

const DefaultLogCapacity = 100

// LogBuffer is a fixed-size ring of log entries. Appends from the stdout and
// stderr readers are serialised by mu, so eviction never loses or repeats an
// entry.
type LogBuffer struct {
	mu      sync.RWMutex
	entries []models.LogEntry
	start   int
	size    int
}

func NewLogBuffer(capacity int) *LogBuffer {
	if capacity <= 0 {
		capacity = DefaultLogCapacity
	}
	return &LogBuffer{
		entries: make([]models.LogEntry, capacity),
	}
}

// Add appends entry, evicting the oldest one when the buffer is full.
func (lb *LogBuffer) Add(entry models.LogEntry) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	capacity := len(lb.entries)
	if lb.size < capacity {
		lb.entries[(lb.start+lb.size)%capacity] = entry
		lb.size++
		return
	}
	lb.entries[lb.start] = entry
	lb.start = (lb.start + 1) % capacity
}

// Entries returns a copy of the buffer, oldest first.
func (lb *LogBuffer) Entries() []models.LogEntry {
	return lb.GetLast(lb.Cap())
}

// GetLast returns up to n of the newest entries, oldest first.
func (lb *LogBuffer) GetLast(n int) []models.LogEntry {
	lb.mu.RLock()
	defer lb.mu.RUnlock()

	if n <= 0 || lb.size == 0 {
		return []models.LogEntry{}
	}
	if n > lb.size {
		n = lb.size
	}

	capacity := len(lb.entries)
	result := make([]models.LogEntry, n)
	first := lb.start + lb.size - n
	for i := range result {
		result[i] = lb.entries[(first+i)%capacity]
	}
	return result
}

func (lb *LogBuffer) Clear() {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	clear(lb.entries)
	lb.start = 0
	lb.size = 0
}

func (lb *LogBuffer) Len() int {
	lb.mu.RLock()
	defer lb.mu.RUnlock()
	return lb.size
}

func (lb *LogBuffer) Cap() int {
	return len(lb.entries)
}
