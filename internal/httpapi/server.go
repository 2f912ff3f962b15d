// Package httpapi exposes the service over HTTP: the WebSocket transport,
// the long-poll fallback transport, and the health endpoints consumed by
// orchestration.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/kapu/shogi-sync-server/internal/obslog"
	"github.com/kapu/shogi-sync-server/internal/registry"
	"github.com/kapu/shogi-sync-server/internal/room"
	"github.com/kapu/shogi-sync-server/internal/roomstore"
	"github.com/kapu/shogi-sync-server/internal/router"
)

const Version = "1.0.0"

const readyTimeout = time.Second

type Server struct {
	addr   string
	store  *roomstore.Store
	reg    *registry.Registry
	rooms  *room.Manager
	router *router.Router
	polls  *pollHub
	start  time.Time
}

func New(addr string, store *roomstore.Store, reg *registry.Registry, rooms *room.Manager, rt *router.Router) *Server {
	s := &Server{
		addr:   addr,
		store:  store,
		reg:    reg,
		rooms:  rooms,
		router: rt,
		start:  time.Now(),
	}
	s.polls = newPollHub(rt)
	return s
}

// Handler builds the full route table wrapped in CORS.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /health/live", s.liveHandler)
	mux.HandleFunc("GET /health/ready", s.readyHandler)
	mux.HandleFunc("GET /socket", s.socketHandler)
	mux.HandleFunc("POST /poll", s.polls.handleConnect)
	mux.HandleFunc("POST /poll/{sid}", s.polls.handleSend)
	mux.HandleFunc("GET /poll/{sid}", s.polls.handlePoll)
	mux.HandleFunc("DELETE /poll/{sid}", s.polls.handleClose)
	return corsMiddleware(mux)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.polls.reapLoop(ctx)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			obslog.L().Warn("http shutdown", zap.Error(err))
		}
	}()

	obslog.L().Info("listening", zap.String("addr", s.addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		obslog.L().Debug("write response", zap.Error(err))
	}
}

func (s *Server) liveHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "alive",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()
	if !s.store.Ping(ctx) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":    "not_ready",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"error":     "store ping failed",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ready",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

type memoryInfo struct {
	RSS       uint64 `json:"rss"`
	HeapUsed  uint64 `json:"heapUsed"`
	HeapTotal uint64 `json:"heapTotal"`
}

type redisHealth struct {
	Status              string `json:"status"`
	Connected           bool   `json:"connected"`
	UsingMemoryFallback bool   `json:"usingMemoryFallback"`
	MemoryKeys          int    `json:"memoryKeys"`
}

type healthResponse struct {
	Status       string     `json:"status"`
	Timestamp    string     `json:"timestamp"`
	Uptime       int64      `json:"uptime"`
	Version      string     `json:"version"`
	Memory       memoryInfo `json:"memory"`
	Rooms        int        `json:"rooms"`
	Connections  int        `json:"connections"`
	Services     services   `json:"services"`
	ResponseTime int64      `json:"responseTime"`
}

type services struct {
	Redis redisHealth `json:"redis"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	healthy := s.store.Ping(ctx)
	cancel()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	st := s.store.Status()

	redisStatus := "healthy"
	overall := "healthy"
	code := http.StatusOK
	if !healthy {
		redisStatus = "unhealthy"
		overall = "degraded"
		code = http.StatusServiceUnavailable
	}

	roomCount, connCount := s.reg.Counts()
	resp := healthResponse{
		Status:    overall,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    int64(time.Since(s.start).Seconds()),
		Version:   Version,
		Memory: memoryInfo{
			RSS:       mem.Sys / 1024 / 1024,
			HeapUsed:  mem.HeapAlloc / 1024 / 1024,
			HeapTotal: mem.HeapSys / 1024 / 1024,
		},
		Rooms:       roomCount,
		Connections: connCount,
		Services: services{
			Redis: redisHealth{
				Status:              redisStatus,
				Connected:           st.Connected,
				UsingMemoryFallback: st.UsingMemoryFallback,
				MemoryKeys:          st.MemoryKeys,
			},
		},
		ResponseTime: time.Since(started).Milliseconds(),
	}
	writeJSON(w, code, resp)
}
