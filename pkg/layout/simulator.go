package layout

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dd0wney/cluso-graphview/pkg/logging"
	"github.com/dd0wney/cluso-graphview/pkg/metrics"
	"github.com/dd0wney/cluso-graphview/pkg/synthesis"
)

// Simulator starts layout sessions with a shared configuration
type Simulator struct {
	cfg       Config
	scheduler Scheduler
	logger    logging.Logger
	metrics   *metrics.Registry
}

// Option configures a Simulator
type Option func(*Simulator)

// WithScheduler sets the frame scheduler; the default paces frames at cfg.FrameRate
func WithScheduler(s Scheduler) Option {
	return func(sim *Simulator) { sim.scheduler = s }
}

// WithLogger sets the logger
func WithLogger(l logging.Logger) Option {
	return func(sim *Simulator) { sim.logger = l }
}

// WithMetrics records sessions and frames in reg
func WithMetrics(reg *metrics.Registry) Option {
	return func(sim *Simulator) { sim.metrics = reg }
}

// NewSimulator validates cfg and creates a simulator
func NewSimulator(cfg Config, opts ...Option) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sim := &Simulator{cfg: cfg}
	for _, opt := range opts {
		opt(sim)
	}
	if sim.scheduler == nil {
		sim.scheduler = NewFrameScheduler(cfg.FrameRate)
	}
	sim.logger = logging.OrDefault(sim.logger).With(logging.Component("layout"))
	return sim, nil
}

// Config returns the simulation constants
func (sim *Simulator) Config() Config { return sim.cfg }

// Start begins a session over copies of nodes and edges. The first frame is
// scheduled, not run, so a session cancelled straight away publishes nothing.
func (sim *Simulator) Start(nodes []synthesis.GraphNode, edges []synthesis.GraphEdge, publish PublishFunc) (*Session, error) {
	return sim.start(nodes, edges, publish, nil)
}

// start is Start with a hook run once when the session reaches a terminal
// state. The hook runs with the session locked.
func (sim *Simulator) start(nodes []synthesis.GraphNode, edges []synthesis.GraphEdge, publish PublishFunc, onFinish func(*Session)) (*Session, error) {
	if nodes == nil {
		return nil, fmt.Errorf("%w: node collection is nil", ErrInvalidArgument)
	}
	if edges == nil {
		return nil, fmt.Errorf("%w: edge collection is nil", ErrInvalidArgument)
	}
	if publish == nil {
		return nil, fmt.Errorf("%w: publish callback is nil", ErrInvalidArgument)
	}

	ownNodes := make([]synthesis.GraphNode, len(nodes))
	copy(ownNodes, nodes)
	ownEdges := make([]synthesis.GraphEdge, len(edges))
	copy(ownEdges, edges)

	index := make(map[string]int, len(ownNodes))
	for i, n := range ownNodes {
		index[n.ID] = i
	}

	id := uuid.NewString()
	s := &Session{
		id:        id,
		cfg:       sim.cfg,
		scheduler: sim.scheduler,
		publish:   publish,
		onFinish:  onFinish,
		logger:    sim.logger.With(logging.SessionID(id)),
		metrics:   sim.metrics,
		edges:     ownEdges,
		springs:   resolveSprings(ownNodes, ownEdges),
		index:     index,
		nodes:     ownNodes,
		pinned:    make(map[string]synthesis.Position),
		done:      make(chan struct{}),
	}
	s.latest.Store(&ownNodes)
	s.state.Store(int32(StateIdle))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = time.Now()
	s.state.Store(int32(StateRunning))
	if sim.metrics != nil {
		sim.metrics.SessionStarted()
	}
	s.revoke = sim.scheduler.Schedule(s.run)

	s.logger.Info("layout session started",
		logging.Int("nodes", len(ownNodes)),
		logging.Int("edges", len(ownEdges)),
	)
	return s, nil
}

// Cancel stops a session; see Session.Cancel
func (sim *Simulator) Cancel(s *Session) bool {
	if s == nil {
		return false
	}
	return s.Cancel()
}
