package util

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSafeGoWithName(t *testing.T) {
	var wg sync.WaitGroup
	var executed atomic.Bool

	wg.Add(1)
	SafeGoWithName("test-goroutine", func() {
		defer wg.Done()
		executed.Store(true)
	})

	wg.Wait()

	if !executed.Load() {
		t.Error("SafeGoWithName did not execute the function")
	}
}

func TestSafeGoWithNameAndPanic(t *testing.T) {
	done := make(chan struct{})

	SafeGoWithName("panicking-goroutine", func() {
		defer close(done)
		panic("test panic")
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("SafeGoWithName did not complete in time")
	}
}

func TestSafeGoWithNameConcurrent(t *testing.T) {
	var wg sync.WaitGroup
	var counter atomic.Int64

	for i := 0; i < 50; i++ {
		wg.Add(1)
		SafeGoWithName("worker", func() {
			defer wg.Done()
			counter.Add(1)
		})
	}

	wg.Wait()

	if counter.Load() != 50 {
		t.Errorf("expected 50 executions, got %d", counter.Load())
	}
}
