package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/nixlim/fleetwatch/internal/events"
	"github.com/nixlim/fleetwatch/internal/state"
)

const (
	defaultLimit     = 50
	maxLimit         = 500
	defaultStatsDays = 7
	maxStatsDays     = 365

	// maxScan bounds how many stored events one request filters and bundles.
	maxScan = 5000
)

// EventsResponse is the body of GET /api/events.
type EventsResponse struct {
	Data []events.BundledEvent `json:"data"`
	Meta PageMeta              `json:"meta"`
}

// PageMeta describes the page of a paginated response.
type PageMeta struct {
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// PayloadResponse is the body of GET /api/events/{id}/payload.
type PayloadResponse struct {
	ID      events.ID `json:"id"`
	Payload any       `json:"payload"`
}

// DeviceResponse is a device summary with its derived status.
type DeviceResponse struct {
	state.DeviceSummary
	Status state.DeviceStatus `json:"status"`
	Alarms int                `json:"alarms"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	limit, err := intParam(query.Get("limit"), defaultLimit, 1, maxLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "limit: "+err.Error())
		return
	}
	offset, err := intParam(query.Get("offset"), 0, 0, -1)
	if err != nil {
		writeError(w, http.StatusBadRequest, "offset: "+err.Error())
		return
	}
	since, err := timeParam(query.Get("since"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "since: "+err.Error())
		return
	}
	until, err := timeParam(query.Get("until"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "until: "+err.Error())
		return
	}

	filter := events.Filter{
		Device:    query.Get("device"),
		HideNoise: boolParam(query.Get("hide_noise")),
	}
	if kinds := query.Get("kind"); kinds != "" {
		filter.Kinds = events.ParseKinds(kinds)
		if len(filter.Kinds) == 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("kind: no known kind in %q", kinds))
			return
		}
	}

	stored := s.store.Events(state.Query{Device: filter.Device, Since: since, Until: until, Limit: maxScan})
	selected := filter.Apply(stored)

	var view []events.BundledEvent
	if b := query.Get("bundle"); b == "" || boolParam(b) {
		view = s.bundler.Bundle(selected)
	} else {
		view = s.bundler.Singles(selected)
	}

	total := len(view)
	start := min(offset, total)
	end := min(start+limit, total)

	writeJSON(w, http.StatusOK, EventsResponse{
		Data: view[start:end],
		Meta: PageMeta{Total: total, Limit: limit, Offset: offset},
	})
}

func (s *Server) handlePayload(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if events.IsBundleID(id) {
		writeError(w, http.StatusBadRequest, "bundles have no payload of their own; request a member event id")
		return
	}

	e, ok := s.store.GetEvent(events.ID(id))
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("event %q not found", id))
		return
	}
	writeJSON(w, http.StatusOK, PayloadResponse{ID: e.ID, Payload: e.Payload})
}

func (s *Server) handleDevices(w http.ResponseWriter, _ *http.Request) {
	devices := s.store.ListDevices()
	out := make([]DeviceResponse, len(devices))
	for i, d := range devices {
		out[i] = DeviceResponse{DeviceSummary: d, Status: d.Status(), Alarms: d.Alarms()}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

func (s *Server) handleDailyStats(w http.ResponseWriter, r *http.Request) {
	days, err := intParam(r.URL.Query().Get("days"), defaultStatsDays, 1, maxStatsDays)
	if err != nil {
		writeError(w, http.StatusBadRequest, "days: "+err.Error())
		return
	}
	summaries := s.store.DailySummaries(days)
	if summaries == nil {
		summaries = []state.DailySummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":          summaries,
		"droppedWrites": s.store.DroppedWrites(),
	})
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// intParam parses a non-negative integer query value. A max below zero
// means unbounded; values above max are clamped.
func intParam(raw string, def, lo, hi int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%q is not an integer", raw)
	}
	if n < lo {
		return 0, fmt.Errorf("must be at least %d, got %d", lo, n)
	}
	if hi >= 0 && n > hi {
		n = hi
	}
	return n, nil
}

func timeParam(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, ok := events.ParseTimestamp(raw)
	if !ok {
		return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
	}
	return t, nil
}

func boolParam(raw string) bool {
	b, err := strconv.ParseBool(raw)
	return err == nil && b
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ERROR: encoding API response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
