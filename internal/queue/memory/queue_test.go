package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestQueueEnqueueDequeue(t *testing.T) {
	t.Parallel()

	q := NewQueue[string]()
	result := make(chan string, 1)
	errCh := make(chan error, 1)

	go func() {
		item, err := q.Dequeue(context.Background())
		if err != nil {
			errCh <- err
			return
		}
		result <- item
	}()

	time.Sleep(10 * time.Millisecond) // allow goroutine to start
	if err := q.Enqueue("http://a.example/"); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	select {
	case err := <-errCh:
		t.Fatalf("Dequeue() error = %v", err)
	case got := <-result:
		if got != "http://a.example/" {
			t.Fatalf("expected http://a.example/, got %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("dequeue did not return item")
	}
}

func TestQueueIsFIFOAndUnbounded(t *testing.T) {
	t.Parallel()

	q := NewQueue[int]()
	for i := 0; i < 1000; i++ {
		if err := q.Enqueue(i); err != nil {
			t.Fatalf("Enqueue(%d) error = %v", i, err)
		}
	}
	if q.Len() != 1000 {
		t.Fatalf("Len() = %d, want 1000", q.Len())
	}
	for i := 0; i < 1000; i++ {
		got, ok := q.TryDequeue()
		if !ok || got != i {
			t.Fatalf("TryDequeue() = %d,%v want %d,true", got, ok, i)
		}
	}
	if _, ok := q.TryDequeue(); ok {
		t.Fatal("expected empty queue")
	}
}

func TestQueuePushFrontKeepsOrder(t *testing.T) {
	t.Parallel()

	q := NewQueue[string]()
	_ = q.Enqueue("c")
	if err := q.PushFront("a", "b"); err != nil {
		t.Fatalf("PushFront() error = %v", err)
	}
	got := q.Drain()
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("Drain() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Drain() = %v, want %v", got, want)
		}
	}
	if q.Len() != 0 {
		t.Fatalf("expected empty queue after Drain, got %d", q.Len())
	}
}

func TestQueueCancelation(t *testing.T) {
	t.Parallel()

	q := NewQueue[int]()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := q.Dequeue(ctx); err == nil ||
		err.Error() != "dequeue canceled: context canceled" {
		t.Fatalf("expected dequeue cancel error, got %v", err)
	}

	ctx, cancel = context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	if _, err := q.Dequeue(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestQueueClose(t *testing.T) {
	t.Parallel()

	q := NewQueue[int]()
	_ = q.Enqueue(7)
	q.Close()
	if err := q.Enqueue(8); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed on enqueue, got %v", err)
	}
	got, err := q.Dequeue(context.Background())
	if err != nil || got != 7 {
		t.Fatalf("expected queued item after close, got %d, %v", got, err)
	}
	if _, err := q.Dequeue(context.Background()); err == nil || err.Error() != "queue closed" {
		t.Fatalf("expected queue closed error, got %v", err)
	}
	// Closing twice should be safe.
	q.Close()
}

func TestQueueConcurrentConsumersSeeEveryItemOnce(t *testing.T) {
	t.Parallel()

	const total = 500
	q := NewQueue[int]()
	var (
		mu   sync.Mutex
		seen = make(map[int]int, total)
		wg   sync.WaitGroup
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				item, err := q.Dequeue(context.Background())
				if err != nil {
					return
				}
				mu.Lock()
				seen[item]++
				mu.Unlock()
			}
		}()
	}
	for i := 0; i < total; i++ {
		_ = q.Enqueue(i)
	}
	deadline := time.Now().Add(2 * time.Second)
	for q.Len() > 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	q.Close()
	wg.Wait()

	if len(seen) != total {
		t.Fatalf("consumed %d distinct items, want %d", len(seen), total)
	}
	for item, n := range seen {
		if n != 1 {
			t.Fatalf("item %d consumed %d times", item, n)
		}
	}
}
