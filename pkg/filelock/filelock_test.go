package filelock

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestAcquireRelease(t *testing.T) {
	lm := NewLockManager()
	key := "/test/file.txt"

	if err := lm.Acquire(context.Background(), key, time.Second); err != nil {
		t.Errorf("Acquire failed: %v", err)
	}
	lm.Release(key)

	if lm.Size() != 0 {
		t.Errorf("expected size 0 after release, got %d", lm.Size())
	}
}

func TestAcquireTimesOutWhenHeld(t *testing.T) {
	lm := NewLockManager()
	key := "/test/file.txt"

	if err := lm.Acquire(context.Background(), key, time.Second); err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}

	start := time.Now()
	err := lm.Acquire(context.Background(), key, 30*time.Millisecond)
	if err != ErrTimeout {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("expected to wait at least the timeout, waited %v", elapsed)
	}

	lm.Release(key)
}

func TestAcquireRespectsContextCancellation(t *testing.T) {
	lm := NewLockManager()
	key := "/test/file.txt"

	if err := lm.Acquire(context.Background(), key, time.Second); err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	if err := lm.Acquire(ctx, key, 10*time.Second); err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}

	lm.Release(key)
}

func TestWithLockSerializesAndReleases(t *testing.T) {
	lm := NewLockManager()
	key := "/test/file.txt"

	executed := false
	err := lm.WithLock(context.Background(), key, time.Second, func() error {
		executed = true
		return nil
	})

	if err != nil {
		t.Errorf("WithLock failed: %v", err)
	}
	if !executed {
		t.Error("function was not executed")
	}
	if lm.Size() != 0 {
		t.Errorf("expected entry to be cleaned up, size=%d", lm.Size())
	}
}

func TestConcurrentLocksSerializeOnSameKey(t *testing.T) {
	lm := NewLockManager()
	key := "/test/file.txt"

	var counter int
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := lm.WithLock(context.Background(), key, 5*time.Second, func() error {
				temp := counter
				time.Sleep(time.Millisecond)
				counter = temp + 1
				return nil
			})
			if err != nil {
				t.Errorf("WithLock failed: %v", err)
			}
		}()
	}

	wg.Wait()

	if counter != 20 {
		t.Errorf("expected counter 20 (strict serialization), got %d", counter)
	}
}

func TestDistinctKeysProgressConcurrently(t *testing.T) {
	lm := NewLockManager()

	var wg sync.WaitGroup
	start := make(chan struct{})
	results := make(chan time.Duration, 2)

	for _, key := range []string{"/a", "/b"} {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			<-start
			begin := time.Now()
			_ = lm.WithLock(context.Background(), key, time.Second, func() error {
				time.Sleep(50 * time.Millisecond)
				return nil
			})
			results <- time.Since(begin)
		}(key)
	}

	close(start)
	wg.Wait()
	close(results)

	for d := range results {
		if d > 100*time.Millisecond {
			t.Errorf("expected distinct keys to run concurrently, one took %v", d)
		}
	}
}

func TestSize(t *testing.T) {
	lm := NewLockManager()

	if lm.Size() != 0 {
		t.Errorf("expected size 0, got %d", lm.Size())
	}

	ctx := context.Background()
	_ = lm.Acquire(ctx, "/file1.txt", time.Second)
	_ = lm.Acquire(ctx, "/file2.txt", time.Second)

	if lm.Size() != 2 {
		t.Errorf("expected size 2, got %d", lm.Size())
	}

	lm.Release("/file1.txt")
	lm.Release("/file2.txt")

	if lm.Size() != 0 {
		t.Errorf("expected size 0 after releasing all, got %d", lm.Size())
	}
}
