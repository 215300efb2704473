package api

import (
	"net/http"

	"github.com/dd0wney/cluso-graphview/pkg/layout"
	"github.com/dd0wney/cluso-graphview/pkg/logging"
	"github.com/dd0wney/cluso-graphview/pkg/synthesis"
)

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	res, err := s.Graph(r.Context(), r.PathValue("id"))
	if err != nil {
		s.respondServiceError(w, "build graph", err)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleStartLayout(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.PathValue("id")
	res, err := s.Graph(r.Context(), workspaceID)
	if err != nil {
		s.respondServiceError(w, "build graph", err)
		return
	}

	session, err := s.manager.Start(res.Nodes, res.Edges, s.publishFrame)
	if err != nil {
		s.respondServiceError(w, "start layout", err)
		return
	}
	s.logger.Info("layout session started",
		logging.SessionID(session.ID()),
		logging.Workspace(workspaceID),
		logging.Int("nodes", len(res.Nodes)),
		logging.Int("edges", len(res.Edges)))

	s.respondJSON(w, http.StatusCreated, StartLayoutResponse{
		SessionID: session.ID(),
		Stats:     res.Stats,
		StreamURL: "/api/layout/" + session.ID() + "/frames",
	})
}

func sessionResponse(session *layout.Session) SessionResponse {
	return SessionResponse{
		SessionID:  session.ID(),
		State:      session.State().String(),
		Iterations: session.Iterations(),
		Nodes:      session.Snapshot(),
		Edges:      session.Edges(),
	}
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.manager.Get(r.PathValue("session"))
	if err != nil {
		s.respondServiceError(w, "get session", err)
		return
	}
	s.respondJSON(w, http.StatusOK, sessionResponse(session))
}

// handleCancelSession cancels a session and forgets it. Open frame streams
// of the session still close normally.
func (s *Server) handleCancelSession(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.Remove(r.PathValue("session")); err != nil {
		s.respondServiceError(w, "cancel session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePin(w http.ResponseWriter, r *http.Request) {
	session, err := s.manager.Get(r.PathValue("session"))
	if err != nil {
		s.respondServiceError(w, "pin node", err)
		return
	}
	var req PinRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := session.Pin(req.NodeID, synthesis.Position{X: req.X, Y: req.Y}); err != nil {
		s.respondServiceError(w, "pin node", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUnpin(w http.ResponseWriter, r *http.Request) {
	session, err := s.manager.Get(r.PathValue("session"))
	if err != nil {
		s.respondServiceError(w, "unpin node", err)
		return
	}
	session.Unpin(r.PathValue("node"))
	w.WriteHeader(http.StatusNoContent)
}
