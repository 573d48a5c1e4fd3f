package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/uhyunpark/orderflood/pkg/dispatch"
	"github.com/uhyunpark/orderflood/pkg/util"
)

// ProgressSource is satisfied by *dispatch.Scheduler.
type ProgressSource interface {
	Progress() dispatch.Progress
}

// Server exposes run status over REST, Prometheus and WebSocket.
type Server struct {
	src    ProgressSource
	runID  string
	target string
	reg    prometheus.Gatherer
	router *mux.Router
	hub    *Hub
	logger *zap.Logger
	http   *http.Server
}

// NewServer creates a new status server
func NewServer(src ProgressSource, reg prometheus.Gatherer, runID, target string, logger *zap.Logger) *Server {
	logger = util.OrNop(logger)
	s := &Server{
		src:    src,
		runID:  runID,
		target: target,
		reg:    reg,
		router: mux.NewRouter(),
		hub:    NewHub(logger),
		logger: logger,
	}
	s.setupRoutes()
	s.http = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods("GET")

	s.router.Handle("/metrics", promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{})).Methods("GET")
	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "not found", r.URL.Path)
	})
}

// Handler returns the routed handler wrapped with CORS.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(s.router)
}

// Start listens on addr and serves until Shutdown. It returns nil after a
// clean shutdown, including when Shutdown ran first.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve runs the hub and serves on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	go s.hub.Run()

	s.logger.Info("status_server_starting", zap.String("addr", ln.Addr().String()))
	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the hub and the listener. Safe to call before or
// concurrently with Start.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Stop()
	return s.http.Shutdown(ctx)
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) status() StatusResponse {
	p := s.src.Progress()
	return StatusResponse{
		RunID:     s.runID,
		Target:    s.target,
		Mode:      string(p.Mode),
		Cursor:    p.Cursor,
		Total:     p.Total,
		Ticks:     p.Ticks,
		InFlight:  p.InFlight,
		Succeeded: p.Succeeded,
		Failed:    p.Failed,
		ElapsedMs: float64(p.Elapsed.Microseconds()) / 1000.0,
		Done:      p.Done,
		WSClients: s.hub.ClientCount(),
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, s.status())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Broadcast Methods (called from the scheduler)
// ==============================

// BroadcastProgress pushes one tick to subscribers of the progress channel.
// It never blocks the scheduler: slow clients miss updates.
func (s *Server) BroadcastProgress(ti dispatch.TickInfo) {
	s.hub.BroadcastToChannel(ChannelProgress, WSMessage{
		Type: ChannelProgress,
		Data: ProgressUpdate{
			RunID:     s.runID,
			Tick:      ti.Tick,
			From:      ti.From,
			To:        ti.To,
			Cursor:    ti.Cursor,
			Total:     ti.Total,
			Timestamp: ti.At.UnixMilli(),
		},
	})
}

// ==============================
// Helpers
// ==============================

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}
