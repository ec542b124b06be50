package api

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/huntsman-telescope/huntsman-core/internal/journal"
	"github.com/huntsman-telescope/huntsman-core/internal/safety"
	"github.com/huntsman-telescope/huntsman-core/internal/statemachine"
)

const (
	healthCheckTimeout = 3 * time.Second
	maxQueryParamLen   = 64
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	Components map[string]string `json:"components,omitempty"`
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Version       string              `json:"version"`
	UptimeSeconds int64               `json:"uptime_seconds"`
	Engine        statemachine.Status `json:"engine"`
	Conditions    *safety.Conditions  `json:"conditions,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := HealthResponse{Status: "ok", Version: s.version}
	if len(s.checks) > 0 {
		resp.Components = make(map[string]string, len(s.checks))
	}

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := s.checks[name](ctx); err != nil {
			resp.Components[name] = err.Error()
			resp.Status = "degraded"
			continue
		}
		resp.Components[name] = "ok"
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Engine:        s.engine.Status(),
	}
	if s.conditions != nil {
		c := s.conditions.Conditions()
		resp.Conditions = &c
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListTransitions(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, r, http.StatusServiceUnavailable, "transition journal is not configured")
		return
	}

	q := r.URL.Query()
	filter := journal.Filter{RunID: q.Get("run")}
	if len(filter.RunID) > maxQueryParamLen {
		writeError(w, r, http.StatusBadRequest, "run is too long")
		return
	}

	if state := q.Get("state"); state != "" {
		if !statemachine.State(state).Valid() {
			writeError(w, r, http.StatusBadRequest, "unknown state "+strconv.Quote(state))
			return
		}
		filter.State = state
	}

	if since := q.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "since must be RFC 3339")
			return
		}
		filter.Since = t
	}

	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		writeError(w, r, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		writeError(w, r, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}

	res, err := s.journal.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing transitions", "error", err)
		writeError(w, r, http.StatusInternalServerError, "failed to list transitions")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if !s.engine.Status().Running {
		writeError(w, r, http.StatusConflict, "state machine is not running")
		return
	}
	s.logger.Info("stop requested over HTTP")
	s.engine.StopStates()
	writeJSON(w, http.StatusAccepted, s.engine.Status())
}

// intParam parses an optional non-negative integer query parameter.
func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, strconv.ErrRange
	}
	return n, nil
}
