package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kapu/shogi-sync-server/internal/obslog"
	"github.com/kapu/shogi-sync-server/internal/router"
)

// Long-poll is the fallback transport for clients that cannot hold a
// websocket open. A session is created with POST /poll, fed with
// POST /poll/{sid}, drained with GET /poll/{sid}, and torn down either
// explicitly with DELETE /poll/{sid} or by the idle reaper.

const (
	pollWait     = 25 * time.Second
	pollIdle     = 60 * time.Second
	reapInterval = 10 * time.Second
)

var errPollClosed = errors.New("poll session closed")

type pollSession struct {
	id     string
	client *router.Client

	// dispatchMu stands in for the single read loop a websocket has: router
	// dispatch for one session never runs concurrently, so frames keep
	// arrival order and Client state stays single-writer.
	dispatchMu sync.Mutex

	mu       sync.Mutex
	queue    []serverMessage
	closed   bool
	lastSeen time.Time
	notify   chan struct{}
}

func (p *pollSession) ID() string { return p.id }

// Send buffers the event for the next GET drain.
func (p *pollSession) Send(ctx context.Context, event string, data any) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return errPollClosed
	}
	p.queue = append(p.queue, serverMessage{Event: event, Data: data})
	p.mu.Unlock()
	select {
	case p.notify <- struct{}{}:
	default:
	}
	return nil
}

func (p *pollSession) drain() []serverMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.queue
	p.queue = nil
	p.lastSeen = time.Now()
	return out
}

func (p *pollSession) touch() {
	p.mu.Lock()
	p.lastSeen = time.Now()
	p.mu.Unlock()
}

func (p *pollSession) idleSince(cutoff time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSeen.Before(cutoff)
}

func (p *pollSession) close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

type pollHub struct {
	router *router.Router

	mu       sync.Mutex
	sessions map[string]*pollSession
}

func newPollHub(rt *router.Router) *pollHub {
	return &pollHub{router: rt, sessions: make(map[string]*pollSession)}
}

func (h *pollHub) lookup(sid string) *pollSession {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sessions[sid]
}

func (h *pollHub) remove(p *pollSession) {
	p.close()
	p.dispatchMu.Lock()
	h.router.HandleDisconnect(p.client)
	p.dispatchMu.Unlock()
	h.mu.Lock()
	delete(h.sessions, p.id)
	h.mu.Unlock()
}

// reapLoop drops sessions no request has touched within pollIdle.
func (h *pollHub) reapLoop(ctx context.Context) {
	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		cutoff := time.Now().Add(-pollIdle)
		h.mu.Lock()
		var stale []*pollSession
		for _, p := range h.sessions {
			if p.idleSince(cutoff) {
				stale = append(stale, p)
			}
		}
		h.mu.Unlock()
		for _, p := range stale {
			obslog.L().Info("reaping idle poll session", zap.String("sid", p.id))
			h.remove(p)
		}
	}
}

func (h *pollHub) handleConnect(w http.ResponseWriter, r *http.Request) {
	p := &pollSession{
		id:       uuid.New().String(),
		lastSeen: time.Now(),
		notify:   make(chan struct{}, 1),
	}
	p.client = h.router.NewClient(p, router.Classify(r.URL.Query()))
	h.mu.Lock()
	h.sessions[p.id] = p
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"sid": p.id})
}

func (h *pollHub) handleSend(w http.ResponseWriter, r *http.Request) {
	p := h.lookup(r.PathValue("sid"))
	if p == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown session"})
		return
	}
	p.touch()
	var msg clientMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil || msg.Event == "" {
		p.dispatchMu.Lock()
		h.router.RejectMalformed(r.Context(), p.client)
		p.dispatchMu.Unlock()
		w.WriteHeader(http.StatusNoContent)
		return
	}
	p.dispatchMu.Lock()
	h.router.HandleMessage(r.Context(), p.client, msg.Event, msg.Data)
	p.dispatchMu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (h *pollHub) handlePoll(w http.ResponseWriter, r *http.Request) {
	p := h.lookup(r.PathValue("sid"))
	if p == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown session"})
		return
	}

	if events := p.drain(); len(events) > 0 {
		writeJSON(w, http.StatusOK, map[string]any{"events": events})
		return
	}

	timer := time.NewTimer(pollWait)
	defer timer.Stop()
	select {
	case <-p.notify:
	case <-timer.C:
	case <-r.Context().Done():
		return
	}
	events := p.drain()
	if events == nil {
		events = []serverMessage{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (h *pollHub) handleClose(w http.ResponseWriter, r *http.Request) {
	p := h.lookup(r.PathValue("sid"))
	if p == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown session"})
		return
	}
	h.remove(p)
	w.WriteHeader(http.StatusNoContent)
}
