// Package web serves the scoreboard JSON API and the static dashboard.
//
// Endpoints:
//   - GET /api/snapshot  aggregate snapshot with scoring
//   - GET /api/config    event settings for the frontend
//   - GET /api/diag      poller diagnostics (also /api/debug)
//   - GET /health        liveness probe
//   - GET /metrics       Prometheus scrape, when a handler is supplied
//   - GET /              files from the www directory, registered last
package web

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"scoreboard/aggregate"
	"scoreboard/config"
	"scoreboard/cty"
	"scoreboard/poller"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const shutdownTimeout = 5 * time.Second

// DiagnosticsSource supplies the /api/diag document. *poller.Poller satisfies it.
type DiagnosticsSource interface {
	Diagnostics() poller.Diagnostics
}

// Options wires the server to the rest of the process.
type Options struct {
	Host    string
	Port    int
	WWWDir  string
	Event   config.EventConfig
	Scoring *config.ScoringConfig

	Aggregator  *aggregate.Aggregator
	Diagnostics DiagnosticsSource
	Metrics     http.Handler
}

// Server is the HTTP front end.
type Server struct {
	opts     Options
	handler  http.Handler
	mu       sync.Mutex
	listener net.Listener
}

// New builds the route table. It does not listen yet.
func New(opts Options) *Server {
	s := &Server{opts: opts}
	s.handler = s.routes()
	return s
}

// Handler returns the root handler, used directly by tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /api/config", s.handleConfig)
	mux.HandleFunc("GET /api/diag", s.handleDiag)
	mux.HandleFunc("GET /api/debug", s.handleDiag)
	mux.HandleFunc("GET /health", handleHealth)
	if s.opts.Metrics != nil {
		mux.Handle("GET /metrics", s.opts.Metrics)
	}
	if dir := s.opts.WWWDir; dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			mux.Handle("/", http.FileServer(http.Dir(dir)))
		} else {
			log.Printf("Web: static directory %s not found; serving API only", dir)
		}
	}
	return mux
}

// Purpose: Listen and serve until ctx is cancelled, then shut down gracefully.
// Key aspects: Returns nil on a clean shutdown so it can run under errgroup.
// Upstream: main errgroup.
// Downstream: net.Listen, http.Server.Serve/Shutdown.
func (s *Server) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	log.Printf("Web: listening on http://%s", ln.Addr())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Web: shutdown: %v", err)
		return err
	}
	return nil
}

// Addr returns the bound address once Run is listening.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	if s.opts.Aggregator == nil {
		http.Error(w, "aggregator not ready", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, s.opts.Aggregator.Snapshot(s.opts.Scoring))
}

// eventView keeps the snake_case keys the dashboard script reads.
type eventView struct {
	ClubName       string         `json:"club_name"`
	Callsign       string         `json:"callsign"`
	EventName      string         `json:"event_name"`
	HomeLat        float64        `json:"home_lat"`
	HomeLon        float64        `json:"home_lon"`
	HomeLocation   string         `json:"home_location"`
	HomeGrid       string         `json:"home_grid,omitempty"`
	WeatherEnabled bool           `json:"weather_enabled"`
	BandGoals      map[string]int `json:"band_goals"`
}

func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	ev := s.opts.Event
	goals := ev.BandGoals
	if goals == nil {
		goals = map[string]int{}
	}
	var grid string
	if ev.HomeLat != 0 || ev.HomeLon != 0 {
		grid, _ = cty.GridFromLatLon(ev.HomeLat, ev.HomeLon, 6)
	}
	writeJSON(w, eventView{
		ClubName:       ev.ClubName,
		Callsign:       ev.Callsign,
		EventName:      ev.EventName,
		HomeLat:        ev.HomeLat,
		HomeLon:        ev.HomeLon,
		HomeLocation:   ev.HomeLocation,
		HomeGrid:       grid,
		WeatherEnabled: ev.WeatherEnabled,
		BandGoals:      goals,
	})
}

func (s *Server) handleDiag(w http.ResponseWriter, _ *http.Request) {
	if s.opts.Diagnostics == nil {
		http.Error(w, "poller not running", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, s.opts.Diagnostics.Diagnostics())
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]bool{"ok": true})
}

func writeJSON(w http.ResponseWriter, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Printf("Web: encode response: %v", err)
		http.Error(w, "encode failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(body)
}
