package syncclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/kapu/shogi-sync-server/internal/httpapi"
	"github.com/kapu/shogi-sync-server/internal/msgcat"
	"github.com/kapu/shogi-sync-server/internal/registry"
	"github.com/kapu/shogi-sync-server/internal/room"
	"github.com/kapu/shogi-sync-server/internal/roomstore"
	"github.com/kapu/shogi-sync-server/internal/router"
	"github.com/kapu/shogi-sync-server/pkg/syncdto"
)

func startServer(t *testing.T) *httptest.Server {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })
	store := roomstore.New(fmt.Sprintf("redis://%s/0", mr.Addr()))
	t.Cleanup(func() { _ = store.Close() })

	cat, err := msgcat.New("")
	if err != nil {
		t.Fatalf("msgcat.New: %v", err)
	}
	reg := registry.New()
	rooms := room.NewManager(room.Limits{})
	rt := router.New(store, rooms, reg, cat, nil)
	srv := httptest.NewServer(httpapi.New(":0", store, reg, rooms, rt).Handler())
	t.Cleanup(srv.Close)
	return srv
}

type frameSink struct {
	mu     sync.Mutex
	frames []syncdto.Frame
}

func (fs *frameSink) add(f *syncdto.Frame) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.frames = append(fs.frames, *f)
}

func (fs *frameSink) snapshot() []syncdto.Frame {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	out := make([]syncdto.Frame, len(fs.frames))
	copy(out, fs.frames)
	return out
}

func waitFrames(t *testing.T, fs *frameSink, n int) []syncdto.Frame {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := fs.snapshot(); len(got) >= n {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("got %d frames, want %d", len(fs.snapshot()), n)
	return nil
}

func dial(t *testing.T, srv *httptest.Server) (*Socket, *frameSink) {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/socket"
	sock := NewSocket(wsURL, 0)
	sink := &frameSink{}
	sock.OnFrame(sink.add)
	if err := sock.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = sock.Close(ctx)
	})
	return sock, sink
}

func TestSocketRoundTrip(t *testing.T) {
	srv := startServer(t)
	ctx := context.Background()

	a, _ := dial(t, srv)
	b, bSink := dial(t, srv)

	if err := a.JoinRoom(ctx, "abc123"); err != nil {
		t.Fatalf("a join: %v", err)
	}
	if err := b.JoinRoom(ctx, "abc123"); err != nil {
		t.Fatalf("b join: %v", err)
	}

	pos := "9/9/9/9/9/9/9/9/9 b -"
	// joins race with the broadcast; give the server a beat
	time.Sleep(50 * time.Millisecond)
	if err := a.UpdatePosition(ctx, pos); err != nil {
		t.Fatalf("update: %v", err)
	}

	frames := waitFrames(t, bSink, 1)
	if frames[0].Event != syncdto.EventUpdate {
		t.Fatalf("b got event %q", frames[0].Event)
	}
	var text string
	if err := json.Unmarshal(frames[0].Data, &text); err != nil || text != pos {
		t.Fatalf("b got data %s (%v)", frames[0].Data, err)
	}
}

func TestSocketCommentEcho(t *testing.T) {
	srv := startServer(t)
	ctx := context.Background()

	a, aSink := dial(t, srv)
	if err := a.JoinRoom(ctx, "abc123"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := a.SendComment(ctx, "sente", "yoroshiku"); err != nil {
		t.Fatalf("comment: %v", err)
	}

	frames := waitFrames(t, aSink, 1)
	if frames[0].Event != syncdto.EventReceiveComment {
		t.Fatalf("event = %q", frames[0].Event)
	}
	var cm syncdto.Comment
	if err := json.Unmarshal(frames[0].Data, &cm); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cm.Name != "sente" || cm.Comment != "yoroshiku" || cm.Time == "" {
		t.Fatalf("comment = %+v", cm)
	}
}

func TestSocketErrorFrame(t *testing.T) {
	srv := startServer(t)
	a, aSink := dial(t, srv)

	if err := a.UpdatePosition(context.Background(), "9/9/9/9/9/9/9/9/9 b -"); err != nil {
		t.Fatalf("emit: %v", err)
	}

	frames := waitFrames(t, aSink, 1)
	if frames[0].Event != syncdto.EventError {
		t.Fatalf("event = %q", frames[0].Event)
	}
	var p syncdto.ErrorPayload
	if err := json.Unmarshal(frames[0].Data, &p); err != nil || p.Message != "Room not joined" {
		t.Fatalf("payload = %s", frames[0].Data)
	}
}

func TestHTTPHealth(t *testing.T) {
	srv := startServer(t)
	c := NewClient(srv.URL, WithTimeout(2*time.Second))

	ready, err := c.Ready(context.Background())
	if err != nil || !ready {
		t.Fatalf("ready = %v err = %v", ready, err)
	}

	h, err := c.GetHealth(context.Background())
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if h.Status != "healthy" || h.Version == "" {
		t.Fatalf("health = %+v", h)
	}
}

func TestEmitWhileDisconnected(t *testing.T) {
	sock := NewSocket("ws://127.0.0.1:1/socket", 0)
	if err := sock.Emit(context.Background(), syncdto.EventLeaveRoom, nil); err != ErrNotConnected {
		t.Fatalf("err = %v, want ErrNotConnected", err)
	}
}
