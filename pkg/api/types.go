package api

import (
	"github.com/dd0wney/cluso-graphview/pkg/synthesis"
)

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// StartLayoutResponse is returned when a layout session starts
type StartLayoutResponse struct {
	SessionID string          `json:"session_id"`
	Stats     synthesis.Stats `json:"stats"`
	StreamURL string          `json:"stream_url"`
}

// SessionResponse describes a layout session
type SessionResponse struct {
	SessionID  string                `json:"session_id"`
	State      string                `json:"state"`
	Iterations int                   `json:"iterations"`
	Nodes      []synthesis.GraphNode `json:"nodes"`
	Edges      []synthesis.GraphEdge `json:"edges"`
}

// PinRequest fixes a node at a position, as when the user drags it
type PinRequest struct {
	NodeID string  `json:"node_id" validate:"required"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}
