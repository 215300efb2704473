// Package api serves synthesized graphs and live layout sessions over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dd0wney/cluso-graphview/pkg/api/middleware"
	"github.com/dd0wney/cluso-graphview/pkg/graphql"
	"github.com/dd0wney/cluso-graphview/pkg/health"
	"github.com/dd0wney/cluso-graphview/pkg/layout"
	"github.com/dd0wney/cluso-graphview/pkg/logging"
	"github.com/dd0wney/cluso-graphview/pkg/pubsub"
	"github.com/dd0wney/cluso-graphview/pkg/synthesis"
	"github.com/dd0wney/cluso-graphview/pkg/validation"
)

// NewServer wires handlers, health checks and the GraphQL schema
func NewServer(opts Options) (*Server, error) {
	if opts.Store == nil {
		return nil, errors.New("api: store is required")
	}
	if opts.Manager == nil {
		return nil, errors.New("api: layout manager is required")
	}

	s := &Server{
		store:     opts.Store,
		builder:   opts.Builder,
		manager:   opts.Manager,
		pubsub:    opts.PubSub,
		sink:      opts.Sink,
		metrics:   opts.Metrics,
		logger:    logging.OrDefault(opts.Logger).With(logging.Component("api")),
		opts:      opts,
		startTime: time.Now(),
	}
	if s.builder == nil {
		s.builder = synthesis.NewBuilder(synthesis.WithLogger(s.logger), synthesis.WithMetrics(s.metrics))
	}
	if s.pubsub == nil {
		s.pubsub = pubsub.NewPubSub()
	}
	s.opts.FinalFrameTimeout = validation.DefaultOr(opts.FinalFrameTimeout, time.Second)
	s.opts.ShutdownTimeout = validation.DefaultOr(opts.ShutdownTimeout, 10*time.Second)
	s.opts.Addr = validation.DefaultOr(opts.Addr, ":8080")
	s.opts.MaxBodyBytes = validation.DefaultOr(opts.MaxBodyBytes, int64(64<<10))
	if opts.LayoutRateLimit != nil {
		s.rateLimiter = middleware.NewRateLimiter(*opts.LayoutRateLimit)
	}

	schema, err := graphql.NewSchema(s, s.manager)
	if err != nil {
		return nil, err
	}
	s.graphqlHandler = graphql.NewGraphQLHandler(schema)

	s.healthChecker = health.NewHealthChecker()
	s.healthChecker.RegisterLivenessCheck("api", health.SimpleCheck("api"))
	s.healthChecker.RegisterReadinessCheck("store", health.StoreCheck(s.store))
	s.healthChecker.RegisterCheck("store", health.StoreCheck(s.store))
	s.healthChecker.RegisterCheck("layout", health.LayoutCheck(s.manager.Active, opts.MaxActiveSessions))
	s.healthChecker.RegisterCheck("memory", health.MemoryCheck(health.RuntimeMemory))

	s.handler = s.routes()
	return s, nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthChecker.HTTPHandler())
	mux.HandleFunc("GET /health/ready", s.healthChecker.ReadinessHandler())
	mux.HandleFunc("GET /health/live", s.healthChecker.LivenessHandler())
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	mux.HandleFunc("GET /api/workspaces/{id}/graph", s.handleGraph)
	limitStarts := middleware.RateLimit(s.rateLimiter, middleware.ClientIP, func(r *http.Request, clientID string) {
		s.logger.Warn("layout start rate limited", logging.String("client", clientID))
	})
	mux.Handle("POST /api/workspaces/{id}/layout", limitStarts(http.HandlerFunc(s.handleStartLayout)))

	mux.HandleFunc("GET /api/layout/{session}", s.handleGetSession)
	mux.HandleFunc("DELETE /api/layout/{session}", s.handleCancelSession)
	mux.HandleFunc("GET /api/layout/{session}/frames", s.handleFrameStream)
	mux.Handle("PUT /api/layout/{session}/pins", middleware.BodySizeLimit(s.opts.MaxBodyBytes)(http.HandlerFunc(s.handlePin)))
	mux.HandleFunc("DELETE /api/layout/{session}/pins/{node}", s.handleUnpin)

	mux.Handle("/graphql", s.graphqlHandler)

	var h http.Handler = mux
	if s.metrics != nil {
		h = s.metricsMiddleware(h)
	}
	h = s.panicRecoveryMiddleware(s.loggingMiddleware(s.corsMiddleware(h)))
	return middleware.RequestID()(h)
}

// Handler returns the root handler with middleware applied
func (s *Server) Handler() http.Handler { return s.handler }

// PubSub returns the frame fan-out
func (s *Server) PubSub() *pubsub.PubSub { return s.pubsub }

// Graph builds the graph of a workspace from the store
func (s *Server) Graph(ctx context.Context, workspaceID string) (*synthesis.Result, error) {
	if err := validation.ValidateWorkspaceID(workspaceID); err != nil {
		return nil, err
	}
	return s.builder.BuildWorkspace(ctx, s.store, workspaceID)
}

// publishFrame fans a frame out to stream subscribers and the optional sink.
// It runs with the session locked, so the terminal frame, which may wait up
// to FinalFrameTimeout for a slow subscriber, is handed off to a goroutine.
func (s *Server) publishFrame(f layout.Frame) {
	topic := pubsub.FrameTopic(f.SessionID)
	if !f.State.Terminal() {
		s.pubsub.Publish(topic, f)
		if s.sink != nil {
			s.sink.PublishFrame(f)
		}
		return
	}

	s.finals.Add(1)
	go func() {
		defer s.finals.Done()
		s.pubsub.PublishFinal(topic, f, s.opts.FinalFrameTimeout)
		if s.sink != nil {
			s.sink.PublishFrame(f)
		}
	}()
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully:
// running layout sessions are cancelled and streams are closed.
func (s *Server) ListenAndServe(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s.handler,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	if s.metrics != nil {
		go s.updateMetricsPeriodically(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("graphview API listening", logging.String("addr", s.opts.Addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down", logging.Int("active_sessions", s.manager.Active()))
	s.manager.CancelAll()
	s.finals.Wait()
	s.pubsub.Shutdown()
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
