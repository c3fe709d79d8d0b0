package scheduler_test

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"buffer-language-server/internal/scheduler"
)

func TestSchedulerRunsTasksInOrder(t *testing.T) {
	s := scheduler.New(10)
	s.Run()

	var order []int
	for i := 0; i < 5; i++ {
		i := i
		err := s.Schedule(scheduler.Task{
			Name: "append",
			Execute: func() error {
				time.Sleep(5 * time.Millisecond)
				order = append(order, i)
				return nil
			},
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	// Stop drains the queue before returning.
	s.Stop()

	if len(order) != 5 {
		t.Fatalf("expected 5 executed tasks, got %d", len(order))
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("tasks ran out of order: %v", order)
		}
	}
}

func TestSchedulerRejectsAfterStop(t *testing.T) {
	s := scheduler.New(1)
	s.Run()
	s.Stop()
	s.Stop()

	err := s.Schedule(scheduler.Task{Name: "late", Execute: func() error { return nil }})
	if !errors.Is(err, scheduler.ErrStopped) {
		t.Fatalf("Schedule() after Stop = %v, want ErrStopped", err)
	}
}

func TestSchedulerSurvivesFailingTask(t *testing.T) {
	s := scheduler.New(4)
	s.Run()

	var ran atomic.Int32
	_ = s.Schedule(scheduler.Task{Name: "fail", Execute: func() error { return errors.New("boom") }})
	_ = s.Schedule(scheduler.Task{Name: "ok", Execute: func() error { ran.Add(1); return nil }})
	s.Stop()

	if ran.Load() != 1 {
		t.Fatal("task after a failing task did not run")
	}
}

func TestEvery(t *testing.T) {
	s := scheduler.New(4)
	s.Run()

	ticks := make(chan struct{}, 16)
	s.Every(5*time.Millisecond, scheduler.Task{
		Name: "tick",
		Execute: func() error {
			select {
			case ticks <- struct{}{}:
			default:
			}
			return nil
		},
	})

	timeout := time.After(2 * time.Second)
	for i := 0; i < 3; i++ {
		select {
		case <-ticks:
		case <-timeout:
			t.Fatalf("periodic task ran %d times before timeout", i)
		}
	}
	s.Stop()
}

func TestTryScheduleNeverWaits(t *testing.T) {
	s := scheduler.New(1)

	var ran atomic.Int32
	task := scheduler.Task{Name: "count", Execute: func() error { ran.Add(1); return nil }}

	// No worker is running, so the single slot stays taken.
	if err := s.TrySchedule(task); err != nil {
		t.Fatalf("first TrySchedule() = %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- s.TrySchedule(task) }()
	select {
	case err := <-done:
		if !errors.Is(err, scheduler.ErrQueueFull) {
			t.Fatalf("TrySchedule() on a full queue = %v, want ErrQueueFull", err)
		}
	case <-time.After(time.Second):
		t.Fatal("TrySchedule() blocked on a full queue")
	}

	s.Run()
	s.Stop()
	if ran.Load() != 1 {
		t.Fatalf("queued task ran %d times, want 1", ran.Load())
	}
	if err := s.TrySchedule(task); !errors.Is(err, scheduler.ErrStopped) {
		t.Fatalf("TrySchedule() after Stop = %v, want ErrStopped", err)
	}
}
