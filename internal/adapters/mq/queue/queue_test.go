package queue

import (
	"context"
	"sync"
	"testing"

	"github.com/okian/modelmarket/internal/domain/model"
)

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}

	if !q.Enqueue(ctx, model.Event{Seq: 1, Kind: model.EventMinted, AssetID: 1}) {
		t.Fatal("expected enqueue to succeed")
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	e := <-q.Dequeue(ctx)
	if e.Seq != 1 || e.Kind != model.EventMinted {
		t.Errorf("unexpected event %+v", e)
	}
	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	for seq := uint64(1); seq <= 2; seq++ {
		if !q.Enqueue(ctx, model.Event{Seq: seq}) {
			t.Fatalf("expected enqueue %d to succeed", seq)
		}
	}
	if q.Enqueue(ctx, model.Event{Seq: 3}) {
		t.Error("expected enqueue to fail when full")
	}
	if q.Capacity() != 2 {
		t.Errorf("expected capacity 2, got %d", q.Capacity())
	}
}

func TestInMemoryQueue_Order(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10))
	ctx := context.Background()

	for seq := uint64(1); seq <= 5; seq++ {
		q.Enqueue(ctx, model.Event{Seq: seq})
	}
	_ = q.Close()

	var want uint64 = 1
	for e := range q.Dequeue(ctx) {
		if e.Seq != want {
			t.Fatalf("expected seq %d, got %d", want, e.Seq)
		}
		want++
	}
	if want != 6 {
		t.Errorf("expected to drain 5 events, drained %d", want-1)
	}
}

func TestInMemoryQueue_Close(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed")
	}
	if q.Enqueue(ctx, model.Event{Seq: 1}) {
		t.Error("expected enqueue on closed queue to fail")
	}
	if err := q.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}

func TestInMemoryQueue_CancelledContext(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if q.Enqueue(ctx, model.Event{Seq: 1}) {
		t.Error("expected enqueue with cancelled context to fail")
	}
}

func TestInMemoryQueue_ConcurrentEnqueue(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(1000))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				q.Enqueue(ctx, model.Event{Kind: model.EventTransfer})
			}
		}()
	}
	wg.Wait()

	if l := q.Len(ctx); l != 1000 {
		t.Errorf("expected length 1000, got %d", l)
	}
}
