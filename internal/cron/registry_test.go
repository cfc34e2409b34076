package cron

import (
	"context"
	"testing"
	"time"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryDueHonoursCadence(t *testing.T) {
	sweep := &stubJob{name: "pending-order-sweep"}
	retention := &stubJob{name: "outbox-retention"}
	registry, err := NewRegistry(
		Schedule{Job: sweep},
		Schedule{Job: retention, Every: 24 * time.Hour},
	)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}

	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	if due := registry.Due(start); len(due) != 2 {
		t.Fatalf("every job is due on the first cycle, got %d", len(due))
	}
	registry.MarkRan(sweep.Name(), start)
	registry.MarkRan(retention.Name(), start)

	due := registry.Due(start.Add(5 * time.Minute))
	if len(due) != 1 || due[0] != sweep {
		t.Fatalf("only the sweep should be due, got %v", due)
	}
	if due := registry.Due(start.Add(24 * time.Hour)); len(due) != 2 {
		t.Fatalf("retention should be due after a day, got %d", len(due))
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	_, err := NewRegistry(
		Schedule{Job: &stubJob{name: "a"}},
		Schedule{Job: &stubJob{name: "a"}, Every: time.Hour},
	)
	if err == nil {
		t.Fatal("expected duplicate job name to be rejected")
	}
	if _, err := NewRegistry(Schedule{}); err == nil {
		t.Fatal("expected nil job to be rejected")
	}
}
