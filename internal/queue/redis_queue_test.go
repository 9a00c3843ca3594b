package queue

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testQueue(t *testing.T, visibility time.Duration) *RedisQueue {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisQueueWithClient(client, visibility)
}

func TestEnqueueDequeueAck(t *testing.T) {
	ctx := context.Background()
	q := testQueue(t, time.Minute)

	if err := q.Enqueue(ctx, "job-1"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := q.Enqueue(ctx, "job-2"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if depth, _ := q.Depth(ctx); depth != 2 {
		t.Fatalf("expected depth 2, got %d", depth)
	}

	id, err := q.DequeueWithLease(ctx)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if id != "job-1" {
		t.Fatalf("expected FIFO order, got %q", id)
	}
	if depth, _ := q.Depth(ctx); depth != 1 {
		t.Fatalf("expected depth 1 after dequeue, got %d", depth)
	}

	if err := q.Ack(ctx, id); err != nil {
		t.Fatalf("ack: %v", err)
	}
	// An acked lease never shows up as expired.
	expired, err := q.ExpiredLeases(ctx, time.Now().Add(2*time.Minute), 10)
	if err != nil {
		t.Fatalf("expired leases: %v", err)
	}
	if len(expired) != 0 {
		t.Fatalf("expected no expired leases, got %v", expired)
	}
}

func TestDequeueEmpty(t *testing.T) {
	ctx := context.Background()
	q := testQueue(t, time.Minute)

	id, err := q.DequeueWithLease(ctx)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if id != "" {
		t.Fatalf("expected empty id, got %q", id)
	}
}

func TestExpiredLeasesDrained(t *testing.T) {
	ctx := context.Background()
	q := testQueue(t, time.Millisecond)

	if err := q.Enqueue(ctx, "job-1"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := q.DequeueWithLease(ctx); err != nil {
		t.Fatalf("dequeue: %v", err)
	}

	expired, err := q.ExpiredLeases(ctx, time.Now().Add(time.Second), 10)
	if err != nil {
		t.Fatalf("expired leases: %v", err)
	}
	if len(expired) != 1 || expired[0] != "job-1" {
		t.Fatalf("expected job-1 expired, got %v", expired)
	}

	// Expired jobs are not re-enqueued; the drain is final.
	if depth, _ := q.Depth(ctx); depth != 0 {
		t.Fatalf("expected empty ready queue, got %d", depth)
	}
	again, _ := q.ExpiredLeases(ctx, time.Now().Add(time.Second), 10)
	if len(again) != 0 {
		t.Fatalf("expected drain to be final, got %v", again)
	}
}

func TestExtendLease(t *testing.T) {
	ctx := context.Background()
	q := testQueue(t, time.Millisecond)

	if err := q.Enqueue(ctx, "job-1"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := q.DequeueWithLease(ctx); err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if err := q.ExtendLease(ctx, "job-1", time.Hour); err != nil {
		t.Fatalf("extend lease: %v", err)
	}

	expired, _ := q.ExpiredLeases(ctx, time.Now().Add(time.Minute), 10)
	if len(expired) != 0 {
		t.Fatalf("extended lease should not expire, got %v", expired)
	}
}
