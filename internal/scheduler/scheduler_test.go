package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestJobRunsOnInterval(t *testing.T) {
	sch := New()

	var runs atomic.Int32
	stop := sch.Add(Job{
		Name:     "tick",
		Interval: 10 * time.Millisecond,
		Run:      func(ctx context.Context) { runs.Add(1) },
	})
	defer stop()

	sch.Start(context.Background())
	defer sch.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for runs.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if runs.Load() < 2 {
		t.Fatalf("job ran %d times, want >= 2", runs.Load())
	}
}

func TestJobAddedAfterStart(t *testing.T) {
	sch := New()
	sch.Start(context.Background())
	defer sch.Stop()

	ran := make(chan struct{})
	var once atomic.Bool
	stop := sch.Add(Job{
		Name:     "late",
		Interval: 10 * time.Millisecond,
		Run: func(ctx context.Context) {
			if once.CompareAndSwap(false, true) {
				close(ran)
			}
		},
	})
	defer stop()

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("job added after start never ran")
	}
}

func TestStopHaltsJob(t *testing.T) {
	sch := New()

	var runs atomic.Int32
	stop := sch.Add(Job{
		Name:     "stoppable",
		Interval: 10 * time.Millisecond,
		Run:      func(ctx context.Context) { runs.Add(1) },
	})

	sch.Start(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for runs.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	stop()
	stop() // stopping twice is safe
	after := runs.Load()
	time.Sleep(50 * time.Millisecond)
	if runs.Load() != after {
		t.Fatalf("job kept running after stop: %d -> %d", after, runs.Load())
	}

	sch.Stop()
}

func TestStopBeforeLaunchDropsPendingJob(t *testing.T) {
	sch := New()

	var runs atomic.Int32
	stop := sch.Add(Job{
		Name:     "never",
		Interval: time.Millisecond,
		Run:      func(ctx context.Context) { runs.Add(1) },
	})
	stop()

	sch.Start(context.Background())
	defer sch.Stop()

	time.Sleep(30 * time.Millisecond)
	if runs.Load() != 0 {
		t.Fatalf("job stopped before start still ran %d times", runs.Load())
	}
}

func TestDurationUntilNextMinute(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 30, 45, 0, time.UTC)
	if d := durationUntilNextMinute(at); d != 15*time.Second {
		t.Fatalf("duration = %v, want 15s", d)
	}
	onBoundary := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	if d := durationUntilNextMinute(onBoundary); d != time.Minute {
		t.Fatalf("duration at boundary = %v, want 1m", d)
	}
}
