package cache

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestExecuteCachesResult(t *testing.T) {
	c := New(16, time.Minute)

	var calls int32
	fn := func() (any, error) {
		atomic.AddInt32(&calls, 1)
		return "result", nil
	}

	v1, err, cached1 := c.Execute("swap", 42, fn)
	if err != nil || cached1 {
		t.Fatalf("first call should execute fresh: cached=%v err=%v", cached1, err)
	}
	v2, err, cached2 := c.Execute("swap", 42, fn)
	if err != nil || !cached2 {
		t.Fatalf("second call should hit cache: cached=%v err=%v", cached2, err)
	}
	if v1 != v2 {
		t.Fatal("cached value should match original")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("fn should run exactly once, ran %d times", calls)
	}
}

func TestExecuteCoalescesConcurrentDuplicates(t *testing.T) {
	c := New(16, time.Minute)

	var calls int32
	start := make(chan struct{})
	fn := func() (any, error) {
		<-start
		atomic.AddInt32(&calls, 1)
		return "done", nil
	}

	var wg sync.WaitGroup
	results := make([]any, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, _, _ := c.Execute("melt", 7, fn)
			results[i] = v
		}(i)
	}
	close(start)
	wg.Wait()

	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("fn should run exactly once across concurrent duplicates, ran %d times", calls)
	}
	for _, r := range results {
		if r != "done" {
			t.Fatalf("all concurrent callers should see the same result, got %v", r)
		}
	}
}

func TestAcknowledgeEvicts(t *testing.T) {
	c := New(16, time.Minute)
	c.Execute("mint", 1, func() (any, error) { return "x", nil })

	if _, ok := c.Get("mint", 1); !ok {
		t.Fatal("expected entry to be cached before acknowledge")
	}
	c.Acknowledge("mint", 1)
	if _, ok := c.Get("mint", 1); ok {
		t.Fatal("expected entry to be evicted after acknowledge")
	}
}
