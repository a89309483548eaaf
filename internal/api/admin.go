package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dokzlo13/dimmerd/internal/devices"
	"github.com/dokzlo13/dimmerd/internal/ledger"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// DriverView describes one display driver.
type DriverView struct {
	ID        string  `json:"id"`
	Quantity  string  `json:"quantity"`
	Available bool    `json:"available"`
	Active    bool    `json:"active"`
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	Overdrive float64 `json:"overdrive,omitempty"`
	Risk      float64 `json:"risk,omitempty"`
}

func (s *Server) handleListDrivers(w http.ResponseWriter, _ *http.Request) {
	if s.deps.Drivers == nil {
		writeJSON(w, http.StatusOK, map[string]any{"drivers": []DriverView{}, "count": 0})
		return
	}

	active := s.deps.Drivers.Active()
	all := s.deps.Drivers.All()
	out := make([]DriverView, 0, len(all))
	for _, d := range all {
		bounds := d.Bounds()
		out = append(out, DriverView{
			ID:         d.ID(),
			Quantity:   string(d.Quantity()),
			Available:  d.Available().Get(),
			Active:     active != nil && active.ID() == d.ID(),
			Min:        bounds.Min,
			Max:        bounds.Max,
			Overdrive:  d.Thresholds().Overdrive,
			Risk:       d.Thresholds().Risk,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"drivers": out,
		"count":   len(out),
	})
}

// CapRequest is the body of PUT /api/v1/settings/max-brightness/{family}.
type CapRequest struct {
	Value *float64 `json:"value"`
}

func (s *Server) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	if s.deps.Settings == nil {
		writeNotFound(w, "settings are not configured")
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Settings.Snapshot())
}

func (s *Server) handleSetMaxBrightness(w http.ResponseWriter, r *http.Request) {
	if s.deps.Settings == nil {
		writeNotFound(w, "settings are not configured")
		return
	}

	var req CapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON: "+err.Error())
		return
	}
	if req.Value == nil {
		writeBadRequest(w, "value is required")
		return
	}

	if err := s.deps.Settings.SetMaxBrightness(chi.URLParam(r, "family"), *req.Value); err != nil {
		writeControllerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Settings.Snapshot())
}

func (s *Server) handleClearMaxBrightness(w http.ResponseWriter, r *http.Request) {
	if s.deps.Settings == nil {
		writeNotFound(w, "settings are not configured")
		return
	}
	if err := s.deps.Settings.ClearMaxBrightness(chi.URLParam(r, "family")); err != nil {
		writeControllerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Settings.Snapshot())
}

func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	if s.deps.Feed == nil {
		writeNotFound(w, "device feed is not configured")
		return
	}
	ids := s.deps.Feed.Snapshot()
	if ids == nil {
		ids = []devices.Identity{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": ids,
		"count":   len(ids),
	})
}

// handlePublishDevices replaces the current enumeration snapshot.
func (s *Server) handlePublishDevices(w http.ResponseWriter, r *http.Request) {
	if s.deps.Feed == nil {
		writeNotFound(w, "device feed is not configured")
		return
	}

	var ids []devices.Identity
	if err := json.NewDecoder(r.Body).Decode(&ids); err != nil {
		writeBadRequest(w, "invalid JSON: "+err.Error())
		return
	}
	s.deps.Feed.Publish(ids)
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": ids,
		"count":   len(ids),
	})
}

// handleListAudit returns recent audit entries.
//
// Query parameters:
//   - axis: filter by axis
//   - since: RFC 3339 lower bound, switches to a time range query
//   - limit: max results (default 50, max 500)
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ledger == nil {
		writeNotFound(w, "audit log is not configured")
		return
	}

	q := r.URL.Query()
	limit := defaultAuditLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = min(n, maxAuditLimit)
	}

	var (
		entries []*ledger.Entry
		err     error
	)
	if raw := q.Get("since"); raw != "" {
		since, perr := time.Parse(time.RFC3339, raw)
		if perr != nil {
			writeBadRequest(w, "since must be an RFC 3339 timestamp")
			return
		}
		entries, err = s.deps.Ledger.GetByTimeRange(since, time.Now(), limit)
		if err == nil && q.Get("axis") != "" {
			entries = filterAxis(entries, q.Get("axis"))
		}
	} else {
		entries, err = s.deps.Ledger.Recent(q.Get("axis"), limit)
	}
	if err != nil {
		writeInternalError(w, "failed to read audit log")
		return
	}
	if entries == nil {
		entries = []*ledger.Entry{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

func filterAxis(entries []*ledger.Entry, axis string) []*ledger.Entry {
	out := entries[:0]
	for _, e := range entries {
		if e.Axis == axis {
			out = append(out, e)
		}
	}
	return out
}
