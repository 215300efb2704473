package layout

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/cluso-graphview/pkg/logging"
	"github.com/dd0wney/cluso-graphview/pkg/synthesis"
)

func TestManager_Lifecycle(t *testing.T) {
	sim, sched := newManualSimulator(t, DefaultConfig())
	m := NewManager(sim)
	nodes, edges := lineGraph()

	a, err := m.Start(nodes, edges, func(Frame) {})
	require.NoError(t, err)
	b, err := m.Start(nodes, edges, func(Frame) {})
	require.NoError(t, err)
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, 2, m.Active())
	assert.Len(t, m.List(), 2)

	got, err := m.Get(a.ID())
	require.NoError(t, err)
	assert.Same(t, a, got)

	require.NoError(t, m.Cancel(a.ID()))
	assert.Equal(t, StateCancelled, a.State())
	assert.Equal(t, 1, m.Active())

	require.NoError(t, m.Remove(b.ID()))
	assert.Equal(t, StateCancelled, b.State())
	_, err = m.Get(b.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)

	assert.Zero(t, sched.Pending())
}

func TestManager_UnknownSession(t *testing.T) {
	sim, _ := newManualSimulator(t, DefaultConfig())
	m := NewManager(sim)

	_, err := m.Get("nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, m.Cancel("nope"), ErrSessionNotFound)
	assert.ErrorIs(t, m.Remove("nope"), ErrSessionNotFound)
}

func TestManager_StartRejectsInvalidArguments(t *testing.T) {
	sim, _ := newManualSimulator(t, DefaultConfig())
	m := NewManager(sim)

	_, err := m.Start(nil, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Empty(t, m.List())
}

func TestManager_CancelAll(t *testing.T) {
	sim, sched := newManualSimulator(t, DefaultConfig())
	m := NewManager(sim)
	nodes, edges := lineGraph()

	for i := 0; i < 3; i++ {
		_, err := m.Start(nodes, edges, func(Frame) {})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, m.CancelAll())
	assert.Zero(t, m.Active())
	assert.Zero(t, sched.Pending())
	assert.Zero(t, m.CancelAll())
}

func startEmpty(t *testing.T, m *Manager, n int) []*Session {
	t.Helper()
	out := make([]*Session, 0, n)
	for i := 0; i < n; i++ {
		s, err := m.Start([]synthesis.GraphNode{}, []synthesis.GraphEdge{}, func(Frame) {})
		require.NoError(t, err)
		out = append(out, s)
	}
	return out
}

func TestManager_EvictsFinishedAfterRetention(t *testing.T) {
	sim, sched := newManualSimulator(t, DefaultConfig())
	m := NewManager(sim, WithRetention(20*time.Millisecond), WithMaxRetained(0))

	sessions := startEmpty(t, m, 50)
	nodes, edges := lineGraph()
	running, err := m.Start(nodes, edges, func(Frame) {})
	require.NoError(t, err)
	assert.Equal(t, 51, m.Retained())

	sched.RunUntilIdle(len(sessions))
	for _, s := range sessions {
		require.Equal(t, StateConverged, s.State())
	}

	require.Eventually(t, func() bool { return m.Retained() == 1 }, 2*time.Second, 5*time.Millisecond)
	got, err := m.Get(running.ID())
	require.NoError(t, err)
	assert.Same(t, running, got)
	_, err = m.Get(sessions[0].ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManager_MaxRetainedEvictsOldestFinished(t *testing.T) {
	sim, sched := newManualSimulator(t, DefaultConfig())
	m := NewManager(sim, WithRetention(0), WithMaxRetained(3))

	sessions := startEmpty(t, m, 5)
	sched.RunUntilIdle(10)

	assert.Equal(t, 3, m.Retained())
	for i, s := range sessions {
		_, err := m.Get(s.ID())
		if i < 2 {
			assert.ErrorIs(t, err, ErrSessionNotFound, "session %d should be evicted", i)
		} else {
			assert.NoError(t, err, "session %d should be retained", i)
		}
	}

	// Cancelled sessions count against the cap too.
	extra := startEmpty(t, m, 1)[0]
	require.NoError(t, m.Cancel(extra.ID()))
	assert.Equal(t, 3, m.Retained())
	_, err := m.Get(sessions[2].ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManager_RunningSessionsAreNeverEvicted(t *testing.T) {
	sim, _ := newManualSimulator(t, DefaultConfig())
	m := NewManager(sim, WithRetention(time.Millisecond), WithMaxRetained(1))
	nodes, edges := lineGraph()

	for i := 0; i < 4; i++ {
		_, err := m.Start(nodes, edges, func(Frame) {})
		require.NoError(t, err)
	}
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 4, m.Retained())
	assert.Equal(t, 4, m.Active())
}

func TestManager_RemoveStopsRetention(t *testing.T) {
	sim, sched := newManualSimulator(t, DefaultConfig())
	m := NewManager(sim, WithRetention(time.Hour))

	s := startEmpty(t, m, 1)[0]
	sched.RunUntilIdle(1)
	require.Equal(t, StateConverged, s.State())

	require.NoError(t, m.Remove(s.ID()))
	assert.Zero(t, m.Retained())
	assert.Empty(t, m.retired)
	assert.Empty(t, m.finished)
}

func TestManager_EvictsSessionsFinishedBeforeRegistration(t *testing.T) {
	sim, err := NewSimulator(DefaultConfig(), WithScheduler(ImmediateScheduler{}), WithLogger(logging.NewNopLogger()))
	require.NoError(t, err)
	m := NewManager(sim, WithRetention(10*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, s := range startEmpty(t, m, 20) {
		_, err := s.Wait(ctx)
		require.NoError(t, err)
	}
	require.Eventually(t, func() bool { return m.Retained() == 0 }, 2*time.Second, 5*time.Millisecond)
}
