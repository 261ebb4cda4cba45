package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// enqueueEventRequest is the POST /api/v1/events body.
type enqueueEventRequest struct {
	EventID string `json:"event_id"`
	Payload any    `json:"payload"`
}

// handleEnqueueEvent accepts an inbound host event and funnels it to the
// scheduler. The event is queued, not yet executed, hence 202.
// POST /api/v1/events
func (s *Server) handleEnqueueEvent(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var req enqueueEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, reqID, http.StatusBadRequest, "invalid_body", "cannot parse JSON body: "+err.Error())
		return
	}
	if req.EventID == "" {
		req.EventID = "evt_" + uuid.New().String()[:8]
	}

	s.host.EnqueueEvent(req.EventID, req.Payload)
	s.logger.Debug("event accepted", "event_id", req.EventID)

	respondAccepted(w, reqID, map[string]any{"event_id": req.EventID})
}

// statusResponse is the GET /api/v1/status payload.
type statusResponse struct {
	HasPending          bool    `json:"has_pending"`
	Macrotasks          int     `json:"macrotasks"`
	Timers              int     `json:"timers"`
	NextTimerDeadlineMS *uint64 `json:"next_timer_deadline_ms,omitempty"`
	UntilNextTimerMS    *uint64 `json:"time_until_next_timer_ms,omitempty"`
	UptimeSeconds       float64 `json:"uptime_seconds"`
}

// handleStatus reports scheduler introspection, captured on the loop
// goroutine so it never races the owner.
// GET /api/v1/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	snap, err := s.host.Inspect(r.Context())
	if err != nil {
		respondError(w, reqID, http.StatusServiceUnavailable, "unavailable", err.Error())
		return
	}

	resp := statusResponse{
		HasPending:    snap.HasPending,
		Macrotasks:    snap.Macrotasks,
		Timers:        snap.Timers,
		UptimeSeconds: time.Since(s.startTime).Seconds(),
	}
	if snap.HasNext {
		resp.NextTimerDeadlineMS = &snap.NextDeadline
		resp.UntilNextTimerMS = &snap.UntilNextTimer
	}
	respondOK(w, reqID, resp)
}

// handleHealth is a liveness probe.
// GET /api/v1/healthz
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondOK(w, RequestIDFromContext(r.Context()), map[string]string{"state": "up"})
}
