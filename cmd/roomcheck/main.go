// roomcheck probes a running sync server. It exits non-zero when the
// server is not ready, so it doubles as a container healthcheck command.
// With ROOM_ID set it also opens a websocket, joins the room, and logs
// frames for a short observation window.
package main

import (
	"context"
	"log"
	"os"
	"strings"
	"time"

	"github.com/kapu/shogi-sync-server/pkg/syncclient"
	"github.com/kapu/shogi-sync-server/pkg/syncdto"
)

func main() {
	baseURL := os.Getenv("SYNC_BASE_URL")
	if baseURL == "" {
		baseURL = "http://127.0.0.1:3000"
	}

	client := syncclient.NewClient(baseURL, syncclient.WithTimeout(5*time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ready, err := client.Ready(ctx)
	if err != nil {
		log.Fatalf("/health/ready error: %v", err)
	}
	if !ready {
		log.Fatalf("/health/ready: not ready")
	}
	log.Printf("/health/ready ok")

	health, err := client.GetHealth(ctx)
	if err != nil {
		log.Fatalf("/health error: %v", err)
	}
	log.Printf("/health %s: uptime=%ds rooms=%d connections=%d redis=%s fallback=%v",
		health.Status, health.Uptime, health.Rooms, health.Connections,
		health.Services.Redis.Status, health.Services.Redis.UsingMemoryFallback)
	if health.Status != "healthy" {
		os.Exit(1)
	}

	roomID := os.Getenv("ROOM_ID")
	if roomID == "" {
		return
	}

	wsURL := "ws" + strings.TrimPrefix(baseURL, "http") + "/socket"
	sock := syncclient.NewSocket(wsURL, 3)
	sock.OnStateChange(func(state syncclient.SocketState) {
		log.Printf("socket state: %s", state)
	})
	sock.OnFrame(func(f *syncdto.Frame) {
		log.Printf("frame event=%s data=%s", f.Event, f.Data)
	})

	cctx, ccancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer ccancel()
	if err := sock.Connect(cctx); err != nil {
		log.Fatalf("socket connect error: %v", err)
	}
	if err := sock.JoinRoom(cctx, roomID); err != nil {
		log.Fatalf("join error: %v", err)
	}

	// observe for a short window
	<-time.After(10 * time.Second)
	_ = sock.Close(context.Background())
}
