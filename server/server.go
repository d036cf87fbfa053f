package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"fiveradio/model"
	"fiveradio/player"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// eventBuffer is how many events a slow SSE client may lag before drops.
const eventBuffer = 32

// getRealIP extracts the real client IP from the request.
// It checks headers in the following priority order:
// 1. CF-Connecting-IP (Cloudflare)
// 2. X-Real-IP (nginx)
// 3. X-Forwarded-For (standard proxy, first IP in the list)
// 4. RemoteAddr (fallback)
func getRealIP(r *http.Request) string {
	if cfIP := r.Header.Get("CF-Connecting-IP"); cfIP != "" {
		return cfIP
	}

	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}

	// The first IP is the original client
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// Catalog is the station source the server lists and plays from.
type Catalog interface {
	Stations(ctx context.Context) []model.Station
	Lookup(ctx context.Context, id string) (model.Station, bool)
}

// Player is the playback surface the server drives.
type Player interface {
	PlayStation(ctx context.Context, st model.Station)
	Pause()
	Resume()
	Stop()
	SetVolume(v float64)
	SetMuted(muted bool)
	Snapshot() player.Status
	SpectrumSample() []float64
	Subscribe(fn func(player.Event)) player.SubscriptionID
	Unsubscribe(id player.SubscriptionID)
}

// Server exposes the controller over HTTP for remote control.
type Server struct {
	port    int
	catalog Catalog
	player  Player

	// ctx outlives requests; background attaches and event streams end with it.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu   sync.Mutex
	http *http.Server
}

// NewServer creates a control server
func NewServer(port int, catalog Catalog, p Player) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		port:    port,
		catalog: catalog,
		player:  p,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/stations", s.handleStations)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /api/play/{stationID}", s.handlePlay)
	mux.HandleFunc("POST /api/pause", s.handleControl(s.player.Pause))
	mux.HandleFunc("POST /api/resume", s.handleControl(s.player.Resume))
	mux.HandleFunc("POST /api/stop", s.handleControl(s.player.Stop))
	mux.HandleFunc("PUT /api/volume", s.handleVolume)
	mux.HandleFunc("PUT /api/mute", s.handleMute)
	mux.HandleFunc("GET /api/spectrum", s.handleSpectrum)
	mux.HandleFunc("GET /api/events", s.handleEvents)
	return mux
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.http = srv
	s.mu.Unlock()

	log.Info().Str("addr", addr).Msg("📡 control server started")
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown ends event streams and pending attaches, then stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()

	s.mu.Lock()
	srv := s.http
	s.mu.Unlock()

	var err error
	if srv != nil {
		err = srv.Shutdown(ctx)
	}
	s.wg.Wait()
	return err
}

func (s *Server) handleStations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog.Stations(r.Context()))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.player.Snapshot())
}

// handlePlay starts the station and returns before the stream is attached.
// Progress is reported on /api/events.
func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	stationID := r.PathValue("stationID")
	clientIP := getRealIP(r)
	log.Info().Str("client", clientIP).Str("station", stationID).Msg("📥 play request")

	st, ok := s.catalog.Lookup(r.Context(), stationID)
	if !ok {
		http.Error(w, "station not found", http.StatusNotFound)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.player.PlayStation(s.ctx, st)
	}()

	writeJSON(w, http.StatusAccepted, st)
}

func (s *Server) handleControl(action func()) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Debug().Str("client", getRealIP(r)).Str("path", r.URL.Path).Msg("control request")
		action()
		writeJSON(w, http.StatusOK, s.player.Snapshot())
	}
}

func (s *Server) handleVolume(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Volume *float64 `json:"volume"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Volume == nil {
		http.Error(w, `expected {"volume": 0..1}`, http.StatusBadRequest)
		return
	}
	s.player.SetVolume(*body.Volume)
	writeJSON(w, http.StatusOK, s.player.Snapshot())
}

func (s *Server) handleMute(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Muted *bool `json:"muted"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Muted == nil {
		http.Error(w, `expected {"muted": true|false}`, http.StatusBadRequest)
		return
	}
	s.player.SetMuted(*body.Muted)
	writeJSON(w, http.StatusOK, s.player.Snapshot())
}

func (s *Server) handleSpectrum(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]float64{"bands": s.player.SpectrumSample()})
}

// handleEvents streams controller events as server-sent events. The first
// event is always the current status.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	clientID := uuid.NewString()
	clientIP := getRealIP(r)
	log.Info().Str("client", clientIP).Str("id", clientID).Msg("🎵 event client connected")

	events := make(chan player.Event, eventBuffer)
	subID := s.player.Subscribe(func(ev player.Event) {
		select {
		case events <- ev:
		default:
			log.Warn().Str("id", clientID).Str("kind", ev.Kind()).Msg("event client too slow, dropping event")
		}
	})
	defer s.player.Unsubscribe(subID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, "status", s.player.Snapshot()); err != nil {
		return
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			log.Info().Str("id", clientID).Msg("👋 event client disconnected")
			return
		case <-s.ctx.Done():
			return
		case ev := <-events:
			if err := writeEvent(w, ev.Kind(), ev); err != nil {
				log.Debug().Err(err).Str("id", clientID).Msg("event write failed")
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, kind string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", kind, data)
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("failed to write response")
	}
}
