package repository

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryRunsLifecycle(t *testing.T) {
	repo := NewMemoryRuns()
	ctx := context.Background()

	run := &ResearchRun{
		ID:        "run-1",
		Topic:     "quantum computing",
		TopicID:   "topic-1",
		Status:    "running",
		MaxDepth:  3,
		StartedAt: time.Now(),
	}
	if err := repo.Create(ctx, run); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Create(ctx, run); err == nil {
		t.Error("duplicate create should fail")
	}

	got, err := repo.GetByTopicID(ctx, "topic-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != "running" {
		t.Errorf("status = %q", got.Status)
	}

	// Returned copies must not alias the stored record.
	got.Status = "mutated"
	again, _ := repo.GetByTopicID(ctx, "topic-1")
	if again.Status != "running" {
		t.Errorf("stored run mutated through returned copy: %q", again.Status)
	}

	now := time.Now()
	run.Status = "completed"
	run.NodeCount = 4
	run.CompletedAt = &now
	if err := repo.Update(ctx, run); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ = repo.GetByTopicID(ctx, "topic-1")
	if got.Status != "completed" || got.NodeCount != 4 || got.CompletedAt == nil {
		t.Errorf("update not applied: %+v", got)
	}

	if _, err := repo.GetByTopicID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing topic: err = %v, want ErrNotFound", err)
	}
	if err := repo.Update(ctx, &ResearchRun{ID: "ghost"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("update missing: err = %v, want ErrNotFound", err)
	}
}

func TestMemoryRunsList(t *testing.T) {
	repo := NewMemoryRuns()
	ctx := context.Background()
	base := time.Now()
	for i, id := range []string{"a", "b", "c"} {
		_ = repo.Create(ctx, &ResearchRun{
			ID:        id,
			TopicID:   "topic-" + id,
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}

	all, err := repo.List(ctx, 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 || all[0].ID != "c" {
		t.Errorf("want newest first, got %+v", all)
	}

	page, _ := repo.List(ctx, 1, 1)
	if len(page) != 1 || page[0].ID != "b" {
		t.Errorf("limit/offset: got %+v", page)
	}
	empty, _ := repo.List(ctx, 10, 99)
	if len(empty) != 0 {
		t.Errorf("offset past end: got %d runs", len(empty))
	}
}

func TestMemoryResults(t *testing.T) {
	repo := NewMemoryResults()
	ctx := context.Background()

	for depth := 0; depth < 2; depth++ {
		err := repo.Create(ctx, &TopicResult{
			ID:        "res-" + string(rune('a'+depth)),
			RunID:     "run-1",
			Topic:     "go concurrency",
			Depth:     depth,
			CreatedAt: time.Now(),
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	results, err := repo.ListByRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len = %d, want 2", len(results))
	}

	other, _ := repo.ListByRun(ctx, "run-2")
	if len(other) != 0 {
		t.Errorf("unrelated run has %d results", len(other))
	}
}
