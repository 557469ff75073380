package gateway

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/user/claimline/internal/types"
)

func testRun(user, text string) *Run {
	return NewRun(&types.InboundEvent{UserKey: types.UserKey(user), Kind: types.EventText, Text: text})
}

func TestQueueConcurrency(t *testing.T) {
	queue := NewQueue(2)
	ctx := context.Background()
	queue.Start(ctx)
	defer queue.Stop()

	var running int32
	var maxSeen int32

	queue.processor = func(run *Run) error {
		current := atomic.AddInt32(&running, 1)
		for {
			old := atomic.LoadInt32(&maxSeen)
			if current <= old || atomic.CompareAndSwapInt32(&maxSeen, old, current) {
				break
			}
		}
		time.Sleep(50 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return nil
	}

	for i := 0; i < 5; i++ {
		if err := queue.Enqueue(testRun(fmt.Sprintf("line:U%d", i), "hi")); err != nil {
			t.Fatal(err)
		}
	}

	if !queue.WaitIdle(2 * time.Second) {
		t.Fatal("queue did not drain")
	}
	time.Sleep(20 * time.Millisecond)

	if m := atomic.LoadInt32(&maxSeen); m > 2 {
		t.Errorf("expected max 2 concurrent, saw %d", m)
	}
}

func TestQueueProcessorCalled(t *testing.T) {
	queue := NewQueue(1)
	ctx := context.Background()
	queue.Start(ctx)
	defer queue.Stop()

	done := make(chan struct{})
	queue.SetProcessor(func(run *Run) error {
		if run.Ctx == nil {
			t.Error("run context not set")
		}
		close(done)
		return nil
	})

	if err := queue.Enqueue(testRun("line:U1", "hi")); err != nil {
		t.Fatal(err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("processor not called")
	}
}

func TestQueueSameUserOrdering(t *testing.T) {
	queue := NewQueue(4)
	ctx := context.Background()
	queue.Start(ctx)
	defer queue.Stop()

	var mu sync.Mutex
	var order []string
	done := make(chan struct{})

	queue.SetProcessor(func(run *Run) error {
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		order = append(order, run.Event.Text)
		n := len(order)
		mu.Unlock()
		if n == 3 {
			close(done)
		}
		return nil
	})

	for _, text := range []string{"first", "second", "third"} {
		if err := queue.Enqueue(testRun("line:same", text)); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for runs to process")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, want := range []string{"first", "second", "third"} {
		if order[i] != want {
			t.Errorf("order[%d] = %s, want %s", i, order[i], want)
		}
	}
}

func TestQueueNotStarted(t *testing.T) {
	queue := NewQueue(1)
	if err := queue.Enqueue(testRun("line:U1", "hi")); err == nil {
		t.Error("expected error before Start")
	}
}

func TestQueueNoProcessor(t *testing.T) {
	queue := NewQueue(1)
	ctx := context.Background()
	queue.Start(ctx)
	defer queue.Stop()

	if err := queue.Enqueue(testRun("line:U1", "hi")); err != nil {
		t.Fatal(err)
	}
	if !queue.WaitIdle(time.Second) {
		t.Error("queue without processor should still drain")
	}
}
