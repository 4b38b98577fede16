// Package scheduler runs named periodic jobs on independent tickers.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Job is one periodic task. AlignToMinute delays the first run until the
// next wall-clock minute boundary, which keeps clock broadcasts in step
// with the displayed time.
type Job struct {
	Name          string
	Interval      time.Duration
	AlignToMinute bool
	Run           func(ctx context.Context)
}

type entry struct {
	job    Job
	cancel context.CancelFunc
	done   chan struct{}
}

// Scheduler owns the job goroutines. Jobs may be added before or after
// Start; jobs added before Start begin once Start is called.
type Scheduler struct {
	mu      sync.Mutex
	ctx     context.Context
	started bool
	pending []*entry

	startOnce sync.Once
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func New() *Scheduler {
	return &Scheduler{}
}

// Add registers a job and returns a stop function that halts it and waits
// for any in-flight run to finish. Stopping twice is safe.
func (sch *Scheduler) Add(j Job) (stop func()) {
	e := &entry{job: j, done: make(chan struct{})}

	sch.mu.Lock()
	if sch.started {
		sch.launch(e)
	} else {
		sch.pending = append(sch.pending, e)
	}
	sch.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			sch.mu.Lock()
			if e.cancel != nil {
				e.cancel()
				sch.mu.Unlock()
				<-e.done
				return
			}
			// Never launched; drop it from the queue.
			for i, p := range sch.pending {
				if p == e {
					sch.pending = append(sch.pending[:i], sch.pending[i+1:]...)
					break
				}
			}
			sch.mu.Unlock()
		})
	}
}

func (sch *Scheduler) Start(ctx context.Context) {
	sch.startOnce.Do(func() {
		sch.mu.Lock()
		sch.ctx, sch.cancel = context.WithCancel(ctx)
		sch.started = true
		for _, e := range sch.pending {
			sch.launch(e)
		}
		sch.pending = nil
		sch.mu.Unlock()
	})
}

// Stop cancels every job and blocks until all run goroutines exit.
func (sch *Scheduler) Stop() {
	sch.mu.Lock()
	cancel := sch.cancel
	sch.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	sch.wg.Wait()
}

// launch starts the job goroutine. Caller holds sch.mu.
func (sch *Scheduler) launch(e *entry) {
	ctx, cancel := context.WithCancel(sch.ctx)
	e.cancel = cancel
	sch.wg.Add(1)
	go sch.run(ctx, e)
}

func (sch *Scheduler) run(ctx context.Context, e *entry) {
	defer sch.wg.Done()
	defer close(e.done)

	interval := e.job.Interval
	if interval <= 0 {
		slog.Error("scheduler: job has no interval, not running", "job", e.job.Name)
		return
	}

	first := interval
	if e.job.AlignToMinute {
		first = durationUntilNextMinute(time.Now())
	}

	timer := time.NewTimer(first)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			e.job.Run(ctx)
			timer.Reset(interval)
		}
	}
}

func durationUntilNextMinute(now time.Time) time.Duration {
	next := now.Truncate(time.Minute).Add(time.Minute)
	return next.Sub(now)
}
