package layout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dd0wney/cluso-graphview/pkg/logging"
	"github.com/dd0wney/cluso-graphview/pkg/metrics"
	"github.com/dd0wney/cluso-graphview/pkg/synthesis"
)

var (
	// ErrInvalidArgument is returned by Start for unusable inputs
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnknownNode is returned when pinning a node the session does not own
	ErrUnknownNode = errors.New("unknown node")
)

// State is the lifecycle state of a layout session
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateConverged
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateConverged:
		return "converged"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name
func (s *State) UnmarshalText(text []byte) error {
	for _, candidate := range []State{StateIdle, StateRunning, StateConverged, StateCancelled} {
		if candidate.String() == string(text) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown layout state %q", text)
}

// Terminal reports whether no further frames can be produced
func (s State) Terminal() bool {
	return s == StateConverged || s == StateCancelled
}

// Frame is one published snapshot. Nodes is never mutated after publication.
type Frame struct {
	SessionID       string                `json:"sessionId"`
	Iteration       int                   `json:"iteration"`
	Nodes           []synthesis.GraphNode `json:"nodes"`
	Edges           []synthesis.GraphEdge `json:"edges"`
	MaxDisplacement float64               `json:"maxDisplacement"`
	State           State                 `json:"state"`
	// Capped is set on the final frame of a session stopped by MaxIterations
	Capped bool `json:"capped,omitempty"`
}

// PublishFunc receives every frame. It runs on the simulation goroutine while
// the session is locked, so it must not call Cancel or Pin synchronously.
type PublishFunc func(Frame)

// Session owns the node positions of one layout run
type Session struct {
	id        string
	cfg       Config
	scheduler Scheduler
	publish   PublishFunc
	onFinish  func(*Session)
	logger    logging.Logger
	metrics   *metrics.Registry

	edges   []synthesis.GraphEdge
	springs []spring
	index   map[string]int

	mu         sync.Mutex
	nodes      []synthesis.GraphNode
	pinned     map[string]synthesis.Position
	revoke     func() bool
	iterations int

	state   atomic.Int32
	latest  atomic.Pointer[[]synthesis.GraphNode]
	iter    atomic.Int64
	started time.Time
	done    chan struct{}
}

// ID returns the session handle
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state
func (s *Session) State() State { return State(s.state.Load()) }

// Iterations returns how many relaxation steps have been published
func (s *Session) Iterations() int { return int(s.iter.Load()) }

// Done is closed once the session reaches a terminal state
func (s *Session) Done() <-chan struct{} { return s.done }

// Edges returns the session's edge set
func (s *Session) Edges() []synthesis.GraphEdge { return s.edges }

// Snapshot returns the latest node positions. The slice is shared with
// published frames and must be treated as read-only.
func (s *Session) Snapshot() []synthesis.GraphNode {
	return *s.latest.Load()
}

// Wait blocks until the session finishes or ctx is done
func (s *Session) Wait(ctx context.Context) (State, error) {
	select {
	case <-s.done:
		return s.State(), nil
	case <-ctx.Done():
		return s.State(), ctx.Err()
	}
}

// Cancel stops the session and revokes any pending frame. It reports whether
// this call moved the session to StateCancelled. A converged session may be
// cancelled to release it; it produces no further frames either way.
func (s *Session) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.State() {
	case StateCancelled:
		return false
	case StateConverged:
		s.state.Store(int32(StateCancelled))
		return true
	}

	if s.revoke != nil {
		s.revoke()
		s.revoke = nil
	}
	s.state.Store(int32(StateCancelled))
	s.finish(StateCancelled)
	return true
}

// Pin fixes a node at pos. Pinned nodes still push and pull their neighbours
// but are exempt from integration, so the next frame does not undo a drag.
func (s *Session) Pin(nodeID string, pos synthesis.Position) error {
	if _, ok := s.index[nodeID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNode, nodeID)
	}
	s.mu.Lock()
	s.pinned[nodeID] = pos
	s.mu.Unlock()
	return nil
}

// Unpin releases a pinned node
func (s *Session) Unpin(nodeID string) {
	s.mu.Lock()
	delete(s.pinned, nodeID)
	s.mu.Unlock()
}

// run performs one scheduled iteration
func (s *Session) run() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() != StateRunning {
		return
	}
	s.revoke = nil

	start := time.Now()
	next, maxDisplacement := step(s.nodes, s.springs, s.pinned, s.cfg)
	s.nodes = next
	s.iterations++

	converged := maxDisplacement <= s.cfg.ConvergenceThreshold
	capped := !converged && s.cfg.MaxIterations > 0 && s.iterations >= s.cfg.MaxIterations
	if converged || capped {
		s.state.Store(int32(StateConverged))
	}

	s.latest.Store(&next)
	s.iter.Store(int64(s.iterations))
	s.publish(Frame{
		SessionID:       s.id,
		Iteration:       s.iterations,
		Nodes:           next,
		Edges:           s.edges,
		MaxDisplacement: maxDisplacement,
		State:           s.State(),
		Capped:          capped,
	})
	if s.metrics != nil {
		s.metrics.RecordFrame(time.Since(start))
	}

	if converged || capped {
		if capped {
			s.logger.Warn("layout stopped at iteration cap", logging.Iteration(s.iterations),
				logging.Float64("max_displacement", maxDisplacement))
		}
		s.finish(StateConverged)
		return
	}
	s.revoke = s.scheduler.Schedule(s.run)
}

// finish records the terminal transition. Callers hold s.mu.
func (s *Session) finish(outcome State) {
	close(s.done)
	if s.metrics != nil {
		s.metrics.SessionFinished(outcome.String(), s.iterations)
	}
	s.logger.Info("layout session finished",
		logging.String("state", outcome.String()),
		logging.Iteration(s.iterations),
		logging.Latency(time.Since(s.started)),
	)
	if s.onFinish != nil {
		s.onFinish(s)
	}
}
