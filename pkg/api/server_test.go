package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/cluso-graphview/pkg/api/middleware"
	"github.com/dd0wney/cluso-graphview/pkg/document"
	"github.com/dd0wney/cluso-graphview/pkg/layout"
	"github.com/dd0wney/cluso-graphview/pkg/logging"
	"github.com/dd0wney/cluso-graphview/pkg/metrics"
	"github.com/dd0wney/cluso-graphview/pkg/pubsub"
	"github.com/dd0wney/cluso-graphview/pkg/store"
	"github.com/dd0wney/cluso-graphview/pkg/synthesis"
)

type testServer struct {
	*Server
	store     *store.MemoryStore
	scheduler *layout.ManualScheduler
	metrics   *metrics.Registry
}

// setupTestServer builds a server over an in-memory store holding two
// documents that link to each other by title
func setupTestServer(t *testing.T, cfg layout.Config, mutators ...func(*Options)) *testServer {
	t.Helper()

	st := store.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, st.Put(ctx, "notes", encodeDoc(t, "a", []document.LocalNode{
		{ID: "1", Label: "Alpha"},
		{ID: "2", Label: "see [[Beta]]"},
	}, []document.LocalEdge{{ID: "e1", Source: "1", Target: "2"}})))
	require.NoError(t, st.Put(ctx, "notes", encodeDoc(t, "b", []document.LocalNode{
		{ID: "1", Label: "Beta"},
	}, nil)))

	sched := layout.NewManualScheduler()
	reg := metrics.NewRegistry()
	sim, err := layout.NewSimulator(cfg,
		layout.WithScheduler(sched),
		layout.WithLogger(logging.NewNopLogger()),
		layout.WithMetrics(reg))
	require.NoError(t, err)

	opts := Options{
		Store:   st,
		Builder: synthesis.NewBuilder(synthesis.WithSeed(7), synthesis.WithLogger(logging.NewNopLogger()), synthesis.WithMetrics(reg)),
		Manager: layout.NewManager(sim),
		Metrics: reg,
		Logger:  logging.NewNopLogger(),
	}
	for _, m := range mutators {
		m(&opts)
	}
	srv, err := NewServer(opts)
	require.NoError(t, err)
	t.Cleanup(func() {
		srv.manager.CancelAll()
		srv.pubsub.Shutdown()
		if srv.rateLimiter != nil {
			srv.rateLimiter.Stop()
		}
	})
	return &testServer{Server: srv, store: st, scheduler: sched, metrics: reg}
}

func encodeDoc(t *testing.T, id string, nodes []document.LocalNode, edges []document.LocalEdge) document.Document {
	t.Helper()
	s, err := document.Encode(&document.LocalGraph{Nodes: nodes, Edges: edges})
	require.NoError(t, err)
	return document.Document{ID: id, SerializedGraph: s}
}

func cappedConfig(n int) layout.Config {
	cfg := layout.DefaultConfig()
	cfg.ConvergenceThreshold = 0
	cfg.MaxIterations = n
	return cfg
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	ts.Handler().ServeHTTP(rr, req)
	return rr
}

func (ts *testServer) startLayout(t *testing.T) string {
	t.Helper()
	rr := ts.do(t, http.MethodPost, "/api/workspaces/notes/layout", "")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var resp StartLayoutResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.NotEmpty(t, resp.SessionID)
	return resp.SessionID
}

func TestNewServer_RequiresCollaborators(t *testing.T) {
	_, err := NewServer(Options{})
	assert.Error(t, err)

	_, err = NewServer(Options{Store: store.NewMemoryStore()})
	assert.Error(t, err)
}

func TestGetGraph(t *testing.T) {
	ts := setupTestServer(t, layout.DefaultConfig())

	rr := ts.do(t, http.MethodGet, "/api/workspaces/notes/graph", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var res synthesis.Result
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
	assert.Len(t, res.Nodes, 3)
	assert.Equal(t, 1, res.Stats.StructuralEdges)
	assert.Equal(t, 1, res.Stats.ReferenceEdges)

	var ids []string
	for _, n := range res.Nodes {
		ids = append(ids, n.ID)
	}
	assert.ElementsMatch(t, []string{"a::1", "a::2", "b::1"}, ids)
}

func TestGetGraph_EmptyWorkspace(t *testing.T) {
	ts := setupTestServer(t, layout.DefaultConfig())

	rr := ts.do(t, http.MethodGet, "/api/workspaces/empty/graph", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var res synthesis.Result
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
	assert.Empty(t, res.Nodes)
	assert.Empty(t, res.Edges)
}

func TestGetGraph_InvalidWorkspace(t *testing.T) {
	ts := setupTestServer(t, layout.DefaultConfig())

	rr := ts.do(t, http.MethodGet, "/api/workspaces/.hidden/graph", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestGetGraph_StoreClosed(t *testing.T) {
	ts := setupTestServer(t, layout.DefaultConfig())
	require.NoError(t, ts.store.Close())

	rr := ts.do(t, http.MethodGet, "/api/workspaces/notes/graph", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestLayoutLifecycle(t *testing.T) {
	ts := setupTestServer(t, cappedConfig(3))
	id := ts.startLayout(t)

	rr := ts.do(t, http.MethodGet, "/api/layout/"+id, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var resp SessionResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "running", resp.State)
	assert.Len(t, resp.Nodes, 3)
	assert.Len(t, resp.Edges, 2)

	assert.Equal(t, 3, ts.scheduler.RunUntilIdle(100))

	rr = ts.do(t, http.MethodGet, "/api/layout/"+id, "")
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "converged", resp.State)
	assert.Equal(t, 3, resp.Iterations)
}

func TestCancelSession(t *testing.T) {
	ts := setupTestServer(t, layout.DefaultConfig())
	id := ts.startLayout(t)
	session, err := ts.manager.Get(id)
	require.NoError(t, err)

	rr := ts.do(t, http.MethodDelete, "/api/layout/"+id, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, layout.StateCancelled, session.State())
	assert.Equal(t, 0, ts.scheduler.Pending())

	rr = ts.do(t, http.MethodGet, "/api/layout/"+id, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = ts.do(t, http.MethodDelete, "/api/layout/"+id, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestPinAndUnpin(t *testing.T) {
	ts := setupTestServer(t, layout.DefaultConfig())
	id := ts.startLayout(t)

	rr := ts.do(t, http.MethodPut, "/api/layout/"+id+"/pins", `{"node_id":"a::1","x":12,"y":-4}`)
	require.Equal(t, http.StatusNoContent, rr.Code, rr.Body.String())

	ts.scheduler.Tick()
	session, err := ts.manager.Get(id)
	require.NoError(t, err)
	for _, n := range session.Snapshot() {
		if n.ID == "a::1" {
			assert.Equal(t, synthesis.Position{X: 12, Y: -4}, n.Position)
		}
	}

	rr = ts.do(t, http.MethodPut, "/api/layout/"+id+"/pins", `{"node_id":"missing","x":0,"y":0}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ts.do(t, http.MethodPut, "/api/layout/"+id+"/pins", `{"x":0}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ts.do(t, http.MethodDelete, "/api/layout/"+id+"/pins/a::1", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestUnknownSession(t *testing.T) {
	ts := setupTestServer(t, layout.DefaultConfig())

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/layout/nope"},
		{http.MethodDelete, "/api/layout/nope"},
		{http.MethodGet, "/api/layout/nope/frames"},
	} {
		rr := ts.do(t, tc.method, tc.path, "")
		assert.Equal(t, http.StatusNotFound, rr.Code, "%s %s", tc.method, tc.path)
	}
}

// readFrames collects frame events until the stream closes
func readFrames(t *testing.T, resp *http.Response) []layout.Frame {
	t.Helper()
	var frames []layout.Frame
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		var f layout.Frame
		require.NoError(t, json.Unmarshal([]byte(data), &f))
		frames = append(frames, f)
	}
	return frames
}

func openStream(t *testing.T, ts *testServer, httpSrv *httptest.Server, id string) *http.Response {
	t.Helper()
	resp, err := http.Get(httpSrv.URL + "/api/layout/" + id + "/frames")
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	return resp
}

func TestFrameStream_UntilConverged(t *testing.T) {
	ts := setupTestServer(t, cappedConfig(5))
	httpSrv := httptest.NewServer(ts.Handler())
	defer httpSrv.Close()

	id := ts.startLayout(t)
	resp := openStream(t, ts, httpSrv, id)

	require.Eventually(t, func() bool {
		return ts.pubsub.GetSubscriberCount("layout/"+id) == 1
	}, 2*time.Second, 5*time.Millisecond)

	go ts.scheduler.RunUntilIdle(100)

	frames := readFrames(t, resp)
	require.Len(t, frames, 5)
	for i, f := range frames {
		assert.Equal(t, i+1, f.Iteration)
		assert.Equal(t, id, f.SessionID)
	}
	last := frames[len(frames)-1]
	assert.Equal(t, layout.StateConverged, last.State)
	assert.Equal(t, 1, last.Iteration)
}

func TestFrameStream_Cancelled(t *testing.T) {
	ts := setupTestServer(t, layout.DefaultConfig())
	httpSrv := httptest.NewServer(ts.Handler())
	defer httpSrv.Close()

	id := ts.startLayout(t)
	resp := openStream(t, ts, httpSrv, id)
	require.Eventually(t, func() bool {
		return ts.pubsub.GetSubscriberCount("layout/"+id) == 1
	}, 2*time.Second, 5*time.Millisecond)

	ts.scheduler.Tick()
	require.NoError(t, ts.manager.Cancel(id))

	frames := readFrames(t, resp)
	require.NotEmpty(t, frames)
	assert.Equal(t, layout.StateCancelled, frames[len(frames)-1].State)
	for _, f := range frames[:len(frames)-1] {
		assert.Equal(t, layout.StateRunning, f.State)
	}
}

func TestFrameStream_AlreadyFinished(t *testing.T) {
	ts := setupTestServer(t, cappedConfig(2))
	httpSrv := httptest.NewServer(ts.Handler())
	defer httpSrv.Close()

	id := ts.startLayout(t)
	ts.scheduler.RunUntilIdle(10)

	frames := readFrames(t, openStream(t, ts, httpSrv, id))
	require.Len(t, frames, 1)
	assert.Equal(t, layout.StateConverged, frames[0].State)
	assert.Equal(t, 2, frames[0].Iteration)
	assert.Len(t, frames[0].Nodes, 3)
}

func TestHealthEndpoints(t *testing.T) {
	ts := setupTestServer(t, layout.DefaultConfig())

	for _, path := range []string{"/health", "/health/ready", "/health/live"} {
		rr := ts.do(t, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, rr.Code, path)
	}

	require.NoError(t, ts.store.Close())
	rr := ts.do(t, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := setupTestServer(t, layout.DefaultConfig())
	ts.do(t, http.MethodGet, "/api/workspaces/notes/graph", "")

	rr := ts.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `route="GET /api/workspaces/{id}/graph"`)
	assert.Contains(t, body, "graphview_synthesis_")
}

func TestGraphQLEndpoint(t *testing.T) {
	ts := setupTestServer(t, layout.DefaultConfig())

	rr := ts.do(t, http.MethodPost, "/graphql",
		`{"query":"{ graph(workspace: \"notes\") { stats { nodes referenceEdges } } }"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp struct {
		Data struct {
			Graph struct {
				Stats struct {
					Nodes          int `json:"nodes"`
					ReferenceEdges int `json:"referenceEdges"`
				} `json:"stats"`
			} `json:"graph"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, 3, resp.Data.Graph.Stats.Nodes)
	assert.Equal(t, 1, resp.Data.Graph.Stats.ReferenceEdges)
}

func TestStartLayout_RateLimited(t *testing.T) {
	ts := setupTestServer(t, layout.DefaultConfig(), func(o *Options) {
		o.LayoutRateLimit = &middleware.RateLimitConfig{RequestsPerSecond: 0.001, BurstSize: 1}
	})

	ts.startLayout(t)
	rr := ts.do(t, http.MethodPost, "/api/workspaces/notes/layout", "")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Len(t, ts.manager.List(), 1)

	// reads are not limited
	rr = ts.do(t, http.MethodGet, "/api/workspaces/notes/graph", "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestPin_BodyTooLarge(t *testing.T) {
	ts := setupTestServer(t, layout.DefaultConfig(), func(o *Options) { o.MaxBodyBytes = 16 })
	id := ts.startLayout(t)

	rr := ts.do(t, http.MethodPut, "/api/layout/"+id+"/pins", `{"node_id":"a::1","x":12,"y":-4}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestRequestIDHeader(t *testing.T) {
	ts := setupTestServer(t, layout.DefaultConfig())

	rr := ts.do(t, http.MethodGet, "/health/live", "")
	assert.NotEmpty(t, rr.Header().Get(middleware.RequestIDHeader))
}

func TestCORSPreflight(t *testing.T) {
	ts := setupTestServer(t, layout.DefaultConfig())

	rr := ts.do(t, http.MethodOptions, "/api/workspaces/notes/graph", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

type recordingSink struct{ frames chan layout.Frame }

func (r *recordingSink) PublishFrame(f layout.Frame) { r.frames <- f }

func TestPublishFrame_ForwardsToSink(t *testing.T) {
	ts := setupTestServer(t, cappedConfig(2))
	sink := &recordingSink{frames: make(chan layout.Frame, 4)}
	ts.sink = sink

	ts.startLayout(t)
	ts.scheduler.RunUntilIdle(10)

	require.Eventually(t, func() bool { return len(sink.frames) == 2 }, 2*time.Second, 5*time.Millisecond)
	<-sink.frames
	last := <-sink.frames
	assert.Equal(t, layout.StateConverged, last.State)
}

func TestPublishFrame_StalledSubscriberDoesNotHoldSession(t *testing.T) {
	ts := setupTestServer(t, cappedConfig(1), func(o *Options) {
		o.FinalFrameTimeout = 5 * time.Second
	})
	id := ts.startLayout(t)

	sub, err := ts.PubSub().Subscribe(context.Background(), pubsub.FrameTopic(id))
	require.NoError(t, err)
	defer sub.Unsubscribe()
	for i := 0; i < pubsub.DefaultBufferSize; i++ {
		ts.PubSub().Publish(pubsub.FrameTopic(id), layout.Frame{SessionID: id, State: layout.StateRunning})
	}

	start := time.Now()
	assert.Equal(t, 1, ts.scheduler.RunUntilIdle(10))
	session, err := ts.manager.Get(id)
	require.NoError(t, err)
	require.NoError(t, session.Pin("a::1", synthesis.Position{X: 1, Y: 1}))
	assert.Less(t, time.Since(start), time.Second, "terminal hand-off blocked the session")

	var last layout.Frame
	for i := 0; i <= pubsub.DefaultBufferSize; i++ {
		select {
		case msg := <-sub.Channel():
			last = msg.(layout.Frame)
		case <-time.After(2 * time.Second):
			t.Fatalf("terminal frame not delivered after %d frames", i)
		}
	}
	assert.Equal(t, layout.StateConverged, last.State)
	assert.Equal(t, 1, last.Iteration)
}

func TestListenAndServe_GracefulShutdown(t *testing.T) {
	ts := setupTestServer(t, layout.DefaultConfig())
	ts.opts.Addr = "127.0.0.1:0"
	id := ts.startLayout(t)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- ts.ListenAndServe(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}

	session, err := ts.manager.Get(id)
	require.NoError(t, err)
	assert.Equal(t, layout.StateCancelled, session.State())
}
