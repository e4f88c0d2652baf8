package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// testItem is a simple struct for testing the generic queue
type testItem struct {
	ID   int
	Name string
}

func TestQueue_New(t *testing.T) {
	q := New[testItem]()
	if q == nil {
		t.Fatal("expected non-nil queue")
	}
	if !q.Empty() {
		t.Error("expected empty queue")
	}
	if q.Len() != 0 {
		t.Errorf("expected length 0, got %d", q.Len())
	}
}

func TestQueue_Push(t *testing.T) {
	q := New[testItem]()

	if err := q.Push(testItem{ID: 1, Name: "first"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Len() != 1 {
		t.Errorf("expected length 1, got %d", q.Len())
	}

	q.Push(testItem{ID: 2}, testItem{ID: 3})
	if q.Len() != 3 {
		t.Errorf("expected length 3, got %d", q.Len())
	}
}

func TestQueue_Pop(t *testing.T) {
	q := New[testItem]()
	q.Push(testItem{ID: 1}, testItem{ID: 2})

	if got := q.Pop(); got.ID != 1 {
		t.Errorf("expected ID 1, got %d", got.ID)
	}
	if got := q.Pop(); got.ID != 2 {
		t.Errorf("expected ID 2, got %d", got.ID)
	}
	if got := q.Pop(); got != (testItem{}) {
		t.Errorf("expected zero value from empty queue, got %+v", got)
	}
}

func TestQueue_GetAndEmpty(t *testing.T) {
	q := New[int]()
	q.Push(1, 2, 3)

	items := q.GetAndEmpty()
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if !q.Empty() {
		t.Error("expected queue to be empty")
	}
}

func TestQueue_NextReturnsInOrder(t *testing.T) {
	q := New[int]()
	q.Push(10, 20)

	for _, want := range []int{10, 20} {
		got, ok, err := q.Next(context.Background())
		if err != nil || !ok {
			t.Fatalf("unexpected ok=%v err=%v", ok, err)
		}
		if got != want {
			t.Errorf("expected %d, got %d", want, got)
		}
	}
}

func TestQueue_NextBlocksUntilPush(t *testing.T) {
	q := New[string]()

	done := make(chan string)
	go func() {
		item, _, _ := q.Next(context.Background())
		done <- item
	}()

	select {
	case <-done:
		t.Fatal("Next returned before anything was pushed")
	case <-time.After(20 * time.Millisecond):
	}

	q.Push("frame")
	select {
	case got := <-done:
		if got != "frame" {
			t.Errorf("expected 'frame', got %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("Next did not wake up")
	}
}

func TestQueue_CloseDrains(t *testing.T) {
	q := New[int]()
	q.Push(1)
	q.Close()
	q.Close()

	if err := q.Push(2); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}

	got, ok, err := q.Next(context.Background())
	if err != nil || !ok || got != 1 {
		t.Errorf("expected queued item after close, got %d ok=%v err=%v", got, ok, err)
	}

	_, ok, err = q.Next(context.Background())
	if ok || err != nil {
		t.Errorf("expected drained queue, got ok=%v err=%v", ok, err)
	}
}

func TestQueue_NextCancelled(t *testing.T) {
	q := New[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, ok, err := q.Next(ctx)
	if ok {
		t.Error("expected no item")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestQueue_ConcurrentProducerConsumer(t *testing.T) {
	q := New[int]()
	const producers, perProducer = 8, 250

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(p*perProducer + i)
			}
		}(p)
	}

	got := make(chan int)
	go func() {
		n := 0
		for {
			_, ok, _ := q.Next(context.Background())
			if !ok {
				got <- n
				return
			}
			n++
		}
	}()

	wg.Wait()
	q.Close()

	if n := <-got; n != producers*perProducer {
		t.Errorf("expected %d items, got %d", producers*perProducer, n)
	}
}
