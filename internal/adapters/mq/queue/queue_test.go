package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/pitscout/internal/domain/model"
)

func task(subject string) Task {
	return model.EnrichmentTask{SubjectKey: subject, RankingSetID: "world", QueuedAt: time.Now()}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
	if err := q.Enqueue(ctx, task("frc254")); err != nil {
		t.Fatalf("expected enqueue to succeed, got %v", err)
	}
	if l := q.Len(); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	got := <-q.Dequeue(ctx)
	if got.SubjectKey != "frc254" {
		t.Errorf("expected frc254, got %q", got.SubjectKey)
	}
	if l := q.Len(); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_Full(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	for _, s := range []string{"frc1", "frc2"} {
		if err := q.Enqueue(ctx, task(s)); err != nil {
			t.Fatalf("enqueue %s: %v", s, err)
		}
	}
	if err := q.Enqueue(ctx, task("frc3")); !errors.Is(err, ErrFull) {
		t.Errorf("expected ErrFull, got %v", err)
	}
}

func TestInMemoryQueue_CloseDrains(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(4))
	ctx := context.Background()

	_ = q.Enqueue(ctx, task("frc1"))
	_ = q.Enqueue(ctx, task("frc2"))
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Errorf("second close should be a no-op, got %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to report closed")
	}
	if err := q.Enqueue(ctx, task("frc3")); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}

	var seen []string
	for tk := range q.Dequeue(ctx) {
		seen = append(seen, tk.SubjectKey)
	}
	if len(seen) != 2 || seen[0] != "frc1" || seen[1] != "frc2" {
		t.Errorf("expected pending tasks to drain in order, got %v", seen)
	}
}

func TestInMemoryQueue_DequeueStopsOnCancel(t *testing.T) {
	q := NewInMemoryQueue()
	ctx, cancel := context.WithCancel(context.Background())
	ch := q.Dequeue(ctx)
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected no task")
		}
	case <-time.After(time.Second):
		t.Error("dequeue channel not closed after cancel")
	}
}

func TestInMemoryQueue_CanceledEnqueue(t *testing.T) {
	q := NewInMemoryQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := q.Enqueue(ctx, task("frc1")); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
