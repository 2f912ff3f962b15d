package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/kapu/shogi-sync-server/internal/obslog"
	"github.com/kapu/shogi-sync-server/internal/router"
)

const (
	wsReadLimit   = 64 * 1024
	wsSendTimeout = 5 * time.Second
)

// clientMessage is the inbound wire frame shared by both transports.
type clientMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// serverMessage is the outbound wire frame.
type serverMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// wsConn adapts a websocket connection to registry.Conn. nhooyr serializes
// concurrent writes internally, so Send is safe from broadcast goroutines.
type wsConn struct {
	id   string
	conn *websocket.Conn
}

func (w *wsConn) ID() string { return w.id }

func (w *wsConn) Send(ctx context.Context, event string, data any) error {
	ctx, cancel := context.WithTimeout(ctx, wsSendTimeout)
	defer cancel()
	return wsjson.Write(ctx, w.conn, serverMessage{Event: event, Data: data})
}

func (s *Server) socketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		obslog.L().Debug("websocket accept failed", zap.Error(err))
		return
	}
	conn.SetReadLimit(wsReadLimit)

	wc := &wsConn{id: uuid.New().String(), conn: conn}
	client := s.router.NewClient(wc, router.Classify(r.URL.Query()))
	defer s.router.HandleDisconnect(client)
	defer conn.Close(websocket.StatusNormalClosure, "")

	ctx := r.Context()
	for {
		typ, raw, err := conn.Read(ctx)
		if err != nil {
			var ce websocket.CloseError
			if !errors.As(err, &ce) && ctx.Err() == nil {
				obslog.L().Debug("websocket read failed",
					zap.String("conn", wc.id), zap.Error(err))
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil || msg.Event == "" {
			// a bad frame costs the sender an error event, not the connection
			s.router.RejectMalformed(ctx, client)
			continue
		}
		s.router.HandleMessage(ctx, client, msg.Event, msg.Data)
	}
}
