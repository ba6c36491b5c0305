package filelock

import (
	"context"
	"testing"
	"time"
)

func BenchmarkAcquireRelease(b *testing.B) {
	lm := NewLockManager()
	key := "/test/file.txt"
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		lm.Acquire(ctx, key, time.Second)
		lm.Release(key)
	}
}

func BenchmarkWithLock(b *testing.B) {
	lm := NewLockManager()
	key := "/test/file.txt"
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		lm.WithLock(ctx, key, time.Second, func() error {
			return nil
		})
	}
}

func BenchmarkConcurrentLocks(b *testing.B) {
	lm := NewLockManager()
	key := "/test/file.txt"
	ctx := context.Background()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			lm.Acquire(ctx, key, time.Second)
			lm.Release(key)
		}
	})
}
