package relay

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestTaskRunnerRunsSubmittedTasks(t *testing.T) {
	r := NewTaskRunner(2, 16, time.Second)

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		r.Submit("count", func(ctx context.Context) error {
			ran.Add(1)
			return nil
		})
	}

	r.Shutdown()
	if got := ran.Load(); got != 5 {
		t.Fatalf("ran = %d, want 5", got)
	}
}

func TestTaskRunnerShutdownDrains(t *testing.T) {
	r := NewTaskRunner(1, 16, time.Second)

	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		r.Submit("slow", func(ctx context.Context) error {
			time.Sleep(time.Millisecond)
			ran.Add(1)
			return nil
		})
	}

	r.Shutdown()
	if got := ran.Load(); got != 10 {
		t.Fatalf("ran = %d, want 10 (shutdown must drain the queue)", got)
	}
}

func TestTaskRunnerSurvivesPanic(t *testing.T) {
	r := NewTaskRunner(1, 16, time.Second)

	var ran atomic.Int32
	r.Submit("boom", func(ctx context.Context) error {
		panic("boom")
	})
	r.Submit("after", func(ctx context.Context) error {
		ran.Add(1)
		return nil
	})

	r.Shutdown()
	if got := ran.Load(); got != 1 {
		t.Fatalf("ran = %d, want 1 (worker must survive a panic)", got)
	}
}

func TestTaskRunnerErrorDoesNotStopWorker(t *testing.T) {
	r := NewTaskRunner(1, 16, time.Second)

	var ran atomic.Int32
	r.Submit("fails", func(ctx context.Context) error {
		return errors.New("publish failed")
	})
	r.Submit("after", func(ctx context.Context) error {
		ran.Add(1)
		return nil
	})

	r.Shutdown()
	if got := ran.Load(); got != 1 {
		t.Fatalf("ran = %d, want 1", got)
	}
}

func TestTaskRunnerSubmitAfterShutdownDrops(t *testing.T) {
	r := NewTaskRunner(1, 16, time.Second)
	r.Shutdown()

	// Must not panic on the closed channel.
	r.Submit("late", func(ctx context.Context) error { return nil })
}

func TestTaskRunnerSubmitRacingShutdown(t *testing.T) {
	// Submissions from in-flight handlers can overlap Shutdown; none
	// of them may hit the closed channel.
	for i := 0; i < 200; i++ {
		r := NewTaskRunner(2, 16, time.Second)

		var wg sync.WaitGroup
		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 20; j++ {
					r.Submit("racy", func(ctx context.Context) error { return nil })
				}
			}()
		}

		r.Shutdown()
		wg.Wait()
	}
}

func TestTaskRunnerTaskTimeout(t *testing.T) {
	r := NewTaskRunner(1, 16, 10*time.Millisecond)

	var sawDeadline atomic.Bool
	r.Submit("long", func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			sawDeadline.Store(true)
			return ctx.Err()
		case <-time.After(time.Second):
			return nil
		}
	})

	r.Shutdown()
	if !sawDeadline.Load() {
		t.Fatal("task context must carry the runner timeout")
	}
}
