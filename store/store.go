// Package store keeps finished task records in memory with a bounded
// lifetime, so results can be polled for a while after completion
// without the registry growing forever.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/use-agent/domainrank/models"
)

// entry holds a terminal task record with its insertion timestamp.
type entry struct {
	task       *models.Task
	recordedAt time.Time
}

// TaskStore is an in-memory TTL store for terminal tasks.
// It is safe for concurrent use and implements the scheduler's Recorder.
type TaskStore struct {
	mu    sync.RWMutex
	store map[string]*entry
	ttl   time.Duration
}

// New creates a TaskStore. A background goroutine evicts records older
// than ttl, checking at a quarter of the ttl interval.
func New(ttl time.Duration) *TaskStore {
	s := &TaskStore{
		store: make(map[string]*entry),
		ttl:   ttl,
	}

	go s.cleanupLoop()
	return s
}

// Record stores a terminal task snapshot, replacing any previous record
// with the same ID.
func (s *TaskStore) Record(task *models.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store[task.ID] = &entry{
		task:       task,
		recordedAt: time.Now(),
	}
}

// Get retrieves a recorded task by ID.
func (s *TaskStore) Get(id string) (*models.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.store[id]
	if !ok {
		return nil, false
	}
	return e.task, true
}

// List returns all recorded tasks, newest first.
func (s *TaskStore) List() []*models.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]*entry, 0, len(s.store))
	for _, e := range s.store {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].recordedAt.After(entries[j].recordedAt)
	})

	out := make([]*models.Task, len(entries))
	for i, e := range entries {
		out[i] = e.task
	}
	return out
}

// Len returns the number of recorded tasks.
func (s *TaskStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.store)
}

func (s *TaskStore) cleanupLoop() {
	interval := s.ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-s.ttl)
		s.mu.Lock()
		for id, e := range s.store {
			if e.recordedAt.Before(cutoff) {
				delete(s.store, id)
			}
		}
		s.mu.Unlock()
	}
}
