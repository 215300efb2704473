package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dd0wney/cluso-graphview/pkg/layout"
	"github.com/dd0wney/cluso-graphview/pkg/logging"
	"github.com/dd0wney/cluso-graphview/pkg/pubsub"
)

// handleFrameStream streams frames of a session as Server-Sent Events and
// closes once the session reaches a terminal state. The last event always
// carries a terminal state, synthesized from the session snapshot when the
// session ended without publishing one (cancellation).
func (s *Server) handleFrameStream(w http.ResponseWriter, r *http.Request) {
	session, err := s.manager.Get(r.PathValue("session"))
	if err != nil {
		s.respondServiceError(w, "stream frames", err)
		return
	}

	// Subscribe before looking at the state so no frame falls in between.
	sub, err := s.pubsub.Subscribe(r.Context(), pubsub.FrameTopic(session.ID()))
	if err != nil {
		s.respondError(w, http.StatusServiceUnavailable, "server shutting down")
		return
	}
	defer sub.Unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	rc := http.NewResponseController(w)

	send := func(f layout.Frame) bool {
		data, err := json.Marshal(f)
		if err != nil {
			s.logger.Error("failed to encode frame", logging.SessionID(f.SessionID), logging.Error(err))
			return false
		}
		if _, err := fmt.Fprintf(w, "event: frame\ndata: %s\n\n", data); err != nil {
			return false
		}
		return rc.Flush() == nil
	}

	finish := func() {
		send(snapshotFrame(session))
	}

	if session.State().Terminal() {
		finish()
		return
	}

	// deliver forwards one subscription message and reports whether the
	// stream is over.
	deliver := func(msg any, ok bool) bool {
		if !ok {
			finish()
			return true
		}
		f, isFrame := msg.(layout.Frame)
		if !isFrame {
			return false
		}
		return !send(f) || f.State.Terminal()
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-sub.Channel():
			if deliver(msg, ok) {
				return
			}
		case <-session.Done():
			s.streamTail(r, session, sub, deliver, finish)
			return
		}
	}
}

// streamTail flushes what remains after the session finished. A converged
// session's terminal frame is published off the simulation goroutine, so it
// is awaited for up to FinalFrameTimeout; a cancelled session has none.
func (s *Server) streamTail(r *http.Request, session *layout.Session, sub *pubsub.Subscription, deliver func(any, bool) bool, finish func()) {
	var grace <-chan time.Time
	if session.State() == layout.StateConverged {
		timer := time.NewTimer(s.opts.FinalFrameTimeout)
		defer timer.Stop()
		grace = timer.C
	}

	for {
		select {
		case msg, ok := <-sub.Channel():
			if deliver(msg, ok) {
				return
			}
			continue
		default:
		}
		if grace == nil {
			finish()
			return
		}
		select {
		case msg, ok := <-sub.Channel():
			if deliver(msg, ok) {
				return
			}
		case <-grace:
			finish()
			return
		case <-r.Context().Done():
			return
		}
	}
}

// snapshotFrame describes the current state of a session as a frame
func snapshotFrame(session *layout.Session) layout.Frame {
	return layout.Frame{
		SessionID: session.ID(),
		Iteration: session.Iterations(),
		Nodes:     session.Snapshot(),
		Edges:     session.Edges(),
		State:     session.State(),
	}
}
