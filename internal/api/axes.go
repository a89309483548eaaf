package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dokzlo13/dimmerd/internal/controller"
)

// SetRequest is the body of PUT /api/v1/axes/{axis}. A positive DurationMs
// starts a transition, otherwise the value is written directly.
type SetRequest struct {
	Value          *float64 `json:"value"`
	DurationMs     int64    `json:"duration_ms,omitempty"`
	Reason         string   `json:"reason,omitempty"`
	KeepTransition bool     `json:"keep_transition,omitempty"`
	Frequency      float64  `json:"frequency,omitempty"`
}

// TransitionView describes a running transition.
type TransitionView struct {
	ID         string  `json:"id"`
	Target     float64 `json:"target"`
	DurationMs int64   `json:"duration_ms"`
	Frequency  float64 `json:"frequency"`
	Reason     string  `json:"reason,omitempty"`
}

// AxisView is the representation of one axis.
type AxisView struct {
	Axis       string          `json:"axis"`
	Available  bool            `json:"available"`
	Value      *float64        `json:"value"`
	Min        *float64        `json:"min,omitempty"`
	Max        *float64        `json:"max,omitempty"`
	Transition *TransitionView `json:"transition,omitempty"`
}

func axisView(c controller.Controller) AxisView {
	v := AxisView{
		Axis:      c.Name(),
		Available: c.Available(),
	}
	if value, known := c.Value(); known {
		v.Value = &value
	}
	if bounds, ok := c.Bounds(); ok {
		v.Min, v.Max = &bounds.Min, &bounds.Max
	}
	if tr := c.ActiveTransition(); tr != nil {
		v.Transition = &TransitionView{
			ID:         tr.ID(),
			Target:     tr.Target(),
			DurationMs: tr.Duration().Milliseconds(),
			Frequency:  tr.Frequency(),
			Reason:     tr.Reason(),
		}
	}
	return v
}

func (s *Server) handleListAxes(w http.ResponseWriter, _ *http.Request) {
	all := s.deps.Controllers.All()
	out := make([]AxisView, 0, len(all))
	for _, c := range all {
		out = append(out, axisView(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"axes":  out,
		"count": len(out),
	})
}

func (s *Server) handleGetAxis(w http.ResponseWriter, r *http.Request) {
	c, err := s.deps.Controllers.Get(chi.URLParam(r, "axis"))
	if err != nil {
		writeControllerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, axisView(c))
}

func (s *Server) handleSetAxis(w http.ResponseWriter, r *http.Request) {
	c, err := s.deps.Controllers.Get(chi.URLParam(r, "axis"))
	if err != nil {
		writeControllerError(w, err)
		return
	}

	var req SetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON: "+err.Error())
		return
	}
	if req.Value == nil {
		writeBadRequest(w, "value is required")
		return
	}
	if req.DurationMs < 0 || req.Frequency < 0 {
		writeBadRequest(w, "duration_ms and frequency must not be negative")
		return
	}

	// Transitions outlive the request; they are bound to the controllers' context.
	if req.DurationMs > 0 {
		_, err := c.Transition(r.Context(), *req.Value, time.Duration(req.DurationMs)*time.Millisecond, controller.TransitionOptions{
			Reason:    req.Reason,
			Frequency: req.Frequency,
		})
		if err != nil {
			writeControllerError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, axisView(c))
		return
	}

	err = c.Set(r.Context(), *req.Value, controller.SetOptions{
		Reason:         req.Reason,
		KeepTransition: req.KeepTransition,
	})
	if err != nil {
		writeControllerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, axisView(c))
}

func (s *Server) handleCancelTransition(w http.ResponseWriter, r *http.Request) {
	c, err := s.deps.Controllers.Get(chi.URLParam(r, "axis"))
	if err != nil {
		writeControllerError(w, err)
		return
	}
	c.CancelActiveTransition()
	writeJSON(w, http.StatusOK, axisView(c))
}
