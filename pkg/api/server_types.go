package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/dd0wney/cluso-graphview/pkg/api/middleware"
	"github.com/dd0wney/cluso-graphview/pkg/graphql"
	"github.com/dd0wney/cluso-graphview/pkg/health"
	"github.com/dd0wney/cluso-graphview/pkg/layout"
	"github.com/dd0wney/cluso-graphview/pkg/logging"
	"github.com/dd0wney/cluso-graphview/pkg/metrics"
	"github.com/dd0wney/cluso-graphview/pkg/pubsub"
	"github.com/dd0wney/cluso-graphview/pkg/store"
	"github.com/dd0wney/cluso-graphview/pkg/synthesis"
)

// FrameSink receives every frame in addition to the in-process fan-out
type FrameSink interface {
	PublishFrame(f layout.Frame)
}

// Options configures a Server
type Options struct {
	Store   store.Store
	Builder *synthesis.Builder
	Manager *layout.Manager
	// PubSub defaults to a fresh instance
	PubSub *pubsub.PubSub
	// Sink is optional, e.g. a transport.FramePublisher
	Sink    FrameSink
	Metrics *metrics.Registry
	Logger  logging.Logger

	Addr              string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	ShutdownTimeout   time.Duration
	FinalFrameTimeout time.Duration
	// MaxActiveSessions marks the service degraded above this many running
	// sessions; zero disables the threshold
	MaxActiveSessions int
	// LayoutRateLimit throttles session starts per client when non-nil
	LayoutRateLimit *middleware.RateLimitConfig
	MaxBodyBytes    int64
}

// Server represents the HTTP API server
type Server struct {
	store          store.Store
	builder        *synthesis.Builder
	manager        *layout.Manager
	pubsub         *pubsub.PubSub
	sink           FrameSink
	graphqlHandler *graphql.GraphQLHandler
	metrics        *metrics.Registry
	healthChecker  *health.HealthChecker
	logger         logging.Logger
	opts           Options
	handler        http.Handler
	rateLimiter    *middleware.RateLimiter
	startTime      time.Time
	finals         sync.WaitGroup // terminal frame hand-offs in flight
}
