package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// ErrNotFound is returned when no run matches the given topic ID.
var ErrNotFound = fmt.Errorf("research run not found")

// MemoryRuns is an in-process RunRepository. Runs are kept for the
// lifetime of the service; a database-backed implementation can replace
// it without touching callers.
type MemoryRuns struct {
	mu      sync.RWMutex
	runs    map[string]*ResearchRun // keyed by run ID
	byTopic map[string]string       // topic ID -> run ID
}

// NewMemoryRuns creates an empty in-memory run repository.
func NewMemoryRuns() *MemoryRuns {
	return &MemoryRuns{
		runs:    make(map[string]*ResearchRun),
		byTopic: make(map[string]string),
	}
}

func (m *MemoryRuns) Create(ctx context.Context, run *ResearchRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.runs[run.ID]; exists {
		return fmt.Errorf("run %s already exists", run.ID)
	}
	stored := *run
	m.runs[run.ID] = &stored
	m.byTopic[run.TopicID] = run.ID
	return nil
}

func (m *MemoryRuns) Update(ctx context.Context, run *ResearchRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.runs[run.ID]; !exists {
		return ErrNotFound
	}
	stored := *run
	m.runs[run.ID] = &stored
	return nil
}

func (m *MemoryRuns) GetByTopicID(ctx context.Context, topicID string) (*ResearchRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byTopic[topicID]
	if !ok {
		return nil, ErrNotFound
	}
	run := *m.runs[id]
	return &run, nil
}

func (m *MemoryRuns) List(ctx context.Context, limit, offset int) ([]*ResearchRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := make([]*ResearchRun, 0, len(m.runs))
	for _, run := range m.runs {
		r := *run
		all = append(all, &r)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].StartedAt.After(all[j].StartedAt)
	})
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

// MemoryResults is an in-process ResultRepository.
type MemoryResults struct {
	mu      sync.RWMutex
	results map[string][]*TopicResult // keyed by run ID
}

// NewMemoryResults creates an empty in-memory result repository.
func NewMemoryResults() *MemoryResults {
	return &MemoryResults{results: make(map[string][]*TopicResult)}
}

func (m *MemoryResults) Create(ctx context.Context, result *TopicResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *result
	m.results[result.RunID] = append(m.results[result.RunID], &stored)
	return nil
}

func (m *MemoryResults) ListByRun(ctx context.Context, runID string) ([]*TopicResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*TopicResult, 0, len(m.results[runID]))
	for _, r := range m.results[runID] {
		res := *r
		out = append(out, &res)
	}
	return out, nil
}
