package layout

import (
	"sync"
	"sync/atomic"
	"time"
)

// Scheduler is the host's per-frame scheduling primitive. Schedule arranges
// for fn to run once at the next frame and returns a revoke function that
// reports whether it prevented fn from running.
type Scheduler interface {
	Schedule(fn func()) (revoke func() bool)
}

// FrameScheduler runs callbacks on a fixed frame interval
type FrameScheduler struct {
	interval time.Duration
}

// NewFrameScheduler creates a scheduler firing at fps frames per second
func NewFrameScheduler(fps int) *FrameScheduler {
	if fps <= 0 {
		fps = 60
	}
	return &FrameScheduler{interval: time.Second / time.Duration(fps)}
}

// Schedule runs fn after one frame interval
func (s *FrameScheduler) Schedule(fn func()) func() bool {
	t := time.AfterFunc(s.interval, fn)
	return t.Stop
}

// ImmediateScheduler runs each callback as soon as possible on its own
// goroutine. It is meant for headless layout where no display paces frames.
type ImmediateScheduler struct{}

const (
	taskPending int32 = iota
	taskStarted
	taskRevoked
)

// Schedule runs fn on a new goroutine unless revoked first
func (ImmediateScheduler) Schedule(fn func()) func() bool {
	var state atomic.Int32
	go func() {
		if state.CompareAndSwap(taskPending, taskStarted) {
			fn()
		}
	}()
	return func() bool {
		return state.CompareAndSwap(taskPending, taskRevoked)
	}
}

// ManualScheduler queues callbacks until Tick is called. Tests use it to step
// a session frame by frame.
type ManualScheduler struct {
	mu    sync.Mutex
	queue []*manualTask
}

type manualTask struct {
	fn func()
}

// NewManualScheduler creates an empty manual scheduler
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// Schedule queues fn for the next Tick
func (s *ManualScheduler) Schedule(fn func()) func() bool {
	task := &manualTask{fn: fn}
	s.mu.Lock()
	s.queue = append(s.queue, task)
	s.mu.Unlock()

	return func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, t := range s.queue {
			if t == task {
				s.queue = append(s.queue[:i], s.queue[i+1:]...)
				return true
			}
		}
		return false
	}
}

// Tick runs the oldest queued callback and reports whether one ran
func (s *ManualScheduler) Tick() bool {
	s.mu.Lock()
	if len(s.queue) == 0 {
		s.mu.Unlock()
		return false
	}
	task := s.queue[0]
	s.queue = s.queue[1:]
	s.mu.Unlock()

	task.fn()
	return true
}

// RunUntilIdle ticks until the queue is empty or max callbacks have run, and
// returns how many ran
func (s *ManualScheduler) RunUntilIdle(max int) int {
	n := 0
	for n < max && s.Tick() {
		n++
	}
	return n
}

// Pending reports how many callbacks are queued
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}
