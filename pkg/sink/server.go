// Package sink is a minimal order-ingestion endpoint for local smoke runs.
// It accepts and counts orders; it does no matching and keeps nothing.
package sink

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/uhyunpark/orderflood/pkg/order"
	"github.com/uhyunpark/orderflood/pkg/util"
)

// Stats counts what the sink has accepted since start.
type Stats struct {
	Accepted  int64            `json:"accepted"`
	Rejected  int64            `json:"rejected"`
	BySymbol  map[string]int64 `json:"bySymbol"`
	BySide    map[string]int64 `json:"bySide"`
	ByType    map[string]int64 `json:"byType"`
	FirstSeen *time.Time       `json:"firstSeen,omitempty"`
	LastSeen  *time.Time       `json:"lastSeen,omitempty"`
}

type Server struct {
	router *mux.Router
	logger *zap.Logger
	clock  util.Clock
	// Delay is added before every response; handy for exercising the
	// in-flight cap against a slow target.
	Delay time.Duration

	mu    sync.Mutex
	stats Stats
}

func NewServer(logger *zap.Logger) *Server {
	s := &Server{
		router: mux.NewRouter(),
		logger: util.OrNop(logger),
		clock:  util.RealClock{},
		stats: Stats{
			BySymbol: map[string]int64{},
			BySide:   map[string]int64{},
			ByType:   map[string]int64{},
		},
	}
	s.router.HandleFunc("/orders", s.handleSubmitOrder).Methods("POST")
	s.router.HandleFunc("/stats", s.handleStats).Methods("GET")
	s.router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	if s.Delay > 0 {
		select {
		case <-s.clock.After(s.Delay):
		case <-r.Context().Done():
			return
		}
	}

	var o order.Order
	if err := json.NewDecoder(r.Body).Decode(&o); err != nil {
		s.reject()
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON", "message": err.Error()})
		return
	}
	if err := o.Validate(); err != nil {
		s.reject()
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order", "message": err.Error()})
		return
	}

	s.accept(o)
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.Snapshot())
}

func (s *Server) accept(o order.Order) {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Accepted++
	s.stats.BySymbol[o.Symbol]++
	s.stats.BySide[string(o.Side)]++
	s.stats.ByType[string(o.Type)]++
	if s.stats.FirstSeen == nil {
		s.stats.FirstSeen = &now
	}
	s.stats.LastSeen = &now
	if s.stats.Accepted%1000 == 0 {
		s.logger.Info("sink_progress", zap.Int64("accepted", s.stats.Accepted), zap.Int64("rejected", s.stats.Rejected))
	}
}

func (s *Server) reject() {
	s.mu.Lock()
	s.stats.Rejected++
	s.mu.Unlock()
}

// Snapshot returns a deep copy of the counters.
func (s *Server) Snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.stats
	out.BySymbol = copyCounts(s.stats.BySymbol)
	out.BySide = copyCounts(s.stats.BySide)
	out.ByType = copyCounts(s.stats.ByType)
	return out
}

func copyCounts(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
