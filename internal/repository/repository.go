// Package repository declares the persistence contracts for research
// entities and ships an in-memory implementation. Callers depend only on
// the interfaces.
package repository

import (
	"context"
	"time"
)

// ResearchRun is one recursive research execution.
type ResearchRun struct {
	ID          string
	Topic       string
	TopicID     string
	Status      string
	MaxDepth    int
	NodeCount   int
	StartedAt   time.Time
	CompletedAt *time.Time
}

// TopicResult is the persisted outcome of one coordination round.
type TopicResult struct {
	ID           string
	RunID        string
	Topic        string
	Depth        int
	Summary      string
	SourceCount  int
	Confidence   float64
	Completeness float64
	CreatedAt    time.Time
}

// RunRepository persists research runs.
type RunRepository interface {
	Create(ctx context.Context, run *ResearchRun) error
	Update(ctx context.Context, run *ResearchRun) error
	GetByTopicID(ctx context.Context, topicID string) (*ResearchRun, error)
	List(ctx context.Context, limit, offset int) ([]*ResearchRun, error)
}

// ResultRepository persists per-topic round outcomes.
type ResultRepository interface {
	Create(ctx context.Context, result *TopicResult) error
	ListByRun(ctx context.Context, runID string) ([]*TopicResult, error)
}
