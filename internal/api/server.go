// Package api implements the exposed HTTP and WebSocket surface: pull
// endpoints over the Hub's snapshots plus the /rollups/stream push
// surface. Transport glue only; all state lives in the Hub and all
// health derivation in the health package.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/chainbound-labs/rollupwatch/internal/health"
	"github.com/chainbound-labs/rollupwatch/internal/hub"
	"github.com/chainbound-labs/rollupwatch/internal/rollup"
)

type Server struct {
	hub           *hub.Hub
	downThreshold int64
	version       string
	log           log.Logger

	// now is swappable so handler tests can pin wall clock.
	now func() int64
}

func NewServer(h *hub.Hub, sequencerDownThreshold int64, version string, l log.Logger) *Server {
	if sequencerDownThreshold <= 0 {
		sequencerDownThreshold = rollup.DefaultSequencerDownThresholdSecs
	}
	return &Server{
		hub:           h,
		downThreshold: sequencerDownThreshold,
		version:       version,
		log:           l.New("component", "api"),
		now:           func() int64 { return time.Now().Unix() },
	}
}

// Handler builds the route table. Method-qualified patterns give 405 on
// method mismatch for free; unknown paths under the catch-all map to a
// JSON 404.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /rollups", s.handleRollups)
	mux.HandleFunc("GET /rollups/health", s.handleAllRollupHealth)
	mux.HandleFunc("GET /rollups/sequencer", s.handleSequencers)
	mux.HandleFunc("GET /rollups/stream", s.handleStream)
	mux.HandleFunc("GET /rollups/{name}/status", s.handleRollupStatus)
	mux.HandleFunc("GET /rollups/{name}/health", s.handleRollupHealth)
	return s.recoverer(mux)
}

// recoverer converts a handler panic into a generic 500 instead of
// killing the connection.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error("handler panic", "path", r.URL.Path, "panic", rec)
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "rollupwatch",
		"version": s.version,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleRollups lists every rollup the service supports, whether or not
// it is configured in this deployment.
func (s *Server) handleRollups(w http.ResponseWriter, r *http.Request) {
	ids := rollup.AllIDs()
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		names = append(names, id.String())
	}
	writeJSON(w, http.StatusOK, names)
}

func (s *Server) handleRollupStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathRollup(w, r)
	if !ok {
		return
	}
	st, _ := s.hub.SnapshotStatus(id)
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleRollupHealth(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathRollup(w, r)
	if !ok {
		return
	}
	st, ever := s.hub.SnapshotStatus(id)
	report := health.Assess(id, st, ever, s.now(), s.hub.Thresholds(id))
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleAllRollupHealth(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	known := s.hub.SnapshotAllStatus()
	reports := make([]rollup.HealthReport, 0, len(known))
	for _, id := range rollup.AllIDs() {
		st, ok := known[id]
		if !ok {
			continue
		}
		reports = append(reports, health.Assess(id, st, s.hub.EverRecorded(id), now, s.hub.Thresholds(id)))
	}
	writeJSON(w, http.StatusOK, map[string]any{"rollups": reports})
}

func (s *Server) handleSequencers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sequencer": s.sequencerViews(s.hub.SnapshotSequencers())})
}

func (s *Server) sequencerViews(snap map[rollup.ID]rollup.SequencerMetrics) map[rollup.ID]rollup.SequencerView {
	out := make(map[rollup.ID]rollup.SequencerView, len(snap))
	for id, m := range snap {
		out[id] = m.View(s.downThreshold)
	}
	return out
}

// pathRollup resolves the {name} path segment; unknown names get a 404
// with an explicit body.
func (s *Server) pathRollup(w http.ResponseWriter, r *http.Request) (rollup.ID, bool) {
	id, ok := rollup.ParseID(r.PathValue("name"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown rollup"})
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// headers are already sent; an encode failure has nowhere to go
	_ = json.NewEncoder(w).Encode(v)
}
