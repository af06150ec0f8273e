package commandqueue

import "testing"

func TestNewDefaultsToDefaultMaxBatch(t *testing.T) {
	q := New(nil, nil)
	if q.maxBatch != DefaultMaxBatch {
		t.Fatalf("maxBatch = %d, want %d", q.maxBatch, DefaultMaxBatch)
	}
}

func TestWithMaxBatchOverride(t *testing.T) {
	q := New(nil, nil, WithMaxBatch(10))
	if q.maxBatch != 10 {
		t.Fatalf("maxBatch = %d, want 10", q.maxBatch)
	}
}

func TestFlushOnEmptyQueueIsNoOp(t *testing.T) {
	q := New(nil, nil)
	future, err := q.Flush()
	if err != nil {
		t.Fatalf("Flush on empty queue: %v", err)
	}
	if err := future.Wait(); err != nil {
		t.Fatalf("Wait on no-op flush: %v", err)
	}
	if q.Pending() != 0 {
		t.Fatalf("Pending() = %d, want 0", q.Pending())
	}
}
