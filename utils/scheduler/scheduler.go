package scheduler

import (
	"context"
	"log"
	"sync"
	"time"
)

// Task represents a scheduled task
type Task struct {
	Name     string
	Interval time.Duration // 0 means run once after Delay
	Delay    time.Duration
	Function func(context.Context)
	ticker   *time.Ticker
}

// Scheduler drives the engine's periodic ticks: scoring passes, position
// monitoring, status updates.
type Scheduler struct {
	tasks []*Task
	wg    sync.WaitGroup
	mu    sync.Mutex
}

// New creates a new task scheduler
func New() *Scheduler {
	return &Scheduler{
		tasks: make([]*Task, 0),
	}
}

// Every schedules a function to run at the specified interval. The first run
// happens immediately when the scheduler starts.
func (s *Scheduler) Every(interval time.Duration, name string, fn func(context.Context)) *Scheduler {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks = append(s.tasks, &Task{
		Name:     name,
		Interval: interval,
		Function: fn,
	})
	return s
}

// RunAfter schedules a function to run once after a delay
func (s *Scheduler) RunAfter(delay time.Duration, name string, fn func(context.Context)) *Scheduler {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks = append(s.tasks, &Task{
		Name:     name,
		Delay:    delay,
		Function: fn,
	})
	return s
}

// Run starts all scheduled tasks and blocks until context is cancelled
func (s *Scheduler) Run(ctx context.Context) {
	s.mu.Lock()
	log.Printf("=== STARTING SCHEDULER WITH %d TASKS ===", len(s.tasks))

	for _, task := range s.tasks {
		s.wg.Add(1)
		if task.Interval > 0 {
			log.Printf("Scheduled '%s': every %v", task.Name, task.Interval)
			go s.runPeriodic(ctx, task)
		} else {
			log.Printf("Scheduled '%s': once after %v", task.Name, task.Delay)
			go s.runOnce(ctx, task)
		}
	}
	s.mu.Unlock()

	<-ctx.Done()

	s.Stop()
	s.wg.Wait()
	log.Println("=== SCHEDULER STOPPED ===")
}

// RunAsync starts all scheduled tasks without blocking
func (s *Scheduler) RunAsync(ctx context.Context) {
	go s.Run(ctx)
}

// Stop stops all task tickers
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, task := range s.tasks {
		if task.ticker != nil {
			task.ticker.Stop()
		}
	}
}

// TaskCount returns the number of scheduled tasks
func (s *Scheduler) TaskCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Private methods

func (s *Scheduler) runPeriodic(ctx context.Context, task *Task) {
	defer s.wg.Done()

	ticker := time.NewTicker(task.Interval)
	task.ticker = ticker
	defer ticker.Stop()

	// Run immediately on start
	s.safeRun(ctx, task)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.safeRun(ctx, task)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, task *Task) {
	defer s.wg.Done()

	timer := time.NewTimer(task.Delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
		s.safeRun(ctx, task)
	}
}

func (s *Scheduler) safeRun(ctx context.Context, task *Task) {
	// One panicking tick must not take the scheduler down with it
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: Task '%s' panicked: %v", task.Name, r)
		}
	}()

	task.Function(ctx)
}
