// Package scheduler runs background tasks one at a time, off the request path.
package scheduler

import (
	"errors"
	"sync"
	"time"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("buffer-language-server.scheduler")

var (
	ErrStopped   = errors.New("scheduler: stopped")
	ErrQueueFull = errors.New("scheduler: queue full")
)

type Task struct {
	Name    string
	Execute func() error
}

type Scheduler struct {
	taskQueue chan Task
	stopChan  chan struct{}
	mu        sync.RWMutex // guards stopped against sends on a closed queue
	stopped   bool
	running   sync.WaitGroup
	periodic  sync.WaitGroup
}

// New creates a Scheduler whose queue holds up to queueSize pending tasks.
func New(queueSize int) *Scheduler {
	return &Scheduler{
		taskQueue: make(chan Task, queueSize),
		stopChan:  make(chan struct{}),
	}
}

// Run starts the worker loop. Tasks execute in the order they were scheduled.
func (s *Scheduler) Run() {
	s.running.Add(1)
	go func() {
		defer s.running.Done()
		for task := range s.taskQueue {
			execute(task)
		}
	}()
}

func execute(task Task) {
	log.Debugf("executing %s", task.Name)
	if err := task.Execute(); err != nil {
		log.Errorf("task %s failed: %s", task.Name, err)
	}
}

// Schedule queues task, blocking while the queue is full.
func (s *Scheduler) Schedule(task Task) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stopped {
		return ErrStopped
	}
	s.taskQueue <- task
	return nil
}

// TrySchedule queues task without waiting. It fails with ErrQueueFull when
// the queue has no room.
func (s *Scheduler) TrySchedule(task Task) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stopped {
		return ErrStopped
	}
	select {
	case s.taskQueue <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Every queues task once per interval. A tick is skipped when the queue is
// full rather than piling up behind slow work.
func (s *Scheduler) Every(interval time.Duration, task Task) {
	ticker := time.NewTicker(interval)
	s.periodic.Add(1)
	go func() {
		defer s.periodic.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := s.TrySchedule(task); errors.Is(err, ErrQueueFull) {
					log.Noticef("skipped %s, queue is full", task.Name)
				}
			case <-s.stopChan:
				return
			}
		}
	}()
}

// Stop ends periodic scheduling, runs every task still queued and waits for
// the worker to exit. Calling Stop twice is harmless.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	close(s.stopChan)
	close(s.taskQueue)
	s.mu.Unlock()

	s.periodic.Wait()
	s.running.Wait()
	log.Debug("scheduler stopped")
}
