package syncclient

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/kapu/shogi-sync-server/pkg/syncdto"
)

// ErrNotConnected rejects an Emit while the socket is down.
var ErrNotConnected = errors.New("socket not connected")

// SocketState tracks the websocket lifecycle for observers.
type SocketState string

const (
	StateDisconnected SocketState = "disconnected"
	StateConnecting   SocketState = "connecting"
	StateConnected    SocketState = "connected"
	StateReconnecting SocketState = "reconnecting"
	StateFailed       SocketState = "failed"
)

// FrameCallback receives every server frame.
type FrameCallback func(*syncdto.Frame)

// StateCallback observes socket state transitions.
type StateCallback func(SocketState)

type frameCbEntry struct {
	id int
	cb FrameCallback
}

type stateCbEntry struct {
	id int
	cb StateCallback
}

// Socket is a reconnecting websocket to a sync server's GET /socket
// endpoint. Emit methods are safe for concurrent use.
type Socket struct {
	wsURL string

	conn   *websocket.Conn
	state  SocketState
	stateM sync.RWMutex

	frameCbs []frameCbEntry
	stateCbs []stateCbEntry
	cbM      sync.RWMutex

	maxReconnectAttempts int
	pingInterval         time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	rootCtx    context.Context
	rootCancel context.CancelFunc
}

// NewSocket points at ws://host/socket. maxReconnectAttempts bounds the
// backoff loop after a drop; zero disables reconnection.
func NewSocket(wsURL string, maxReconnectAttempts int) *Socket {
	return &Socket{
		wsURL:                wsURL,
		state:                StateDisconnected,
		maxReconnectAttempts: maxReconnectAttempts,
		pingInterval:         30 * time.Second,
		stopCh:               make(chan struct{}),
	}
}

func (s *Socket) Connect(ctx context.Context) error {
	s.stateM.Lock()
	if s.state == StateConnected || s.state == StateConnecting {
		s.stateM.Unlock()
		return nil
	}
	s.stateM.Unlock()

	s.rootCtx, s.rootCancel = context.WithCancel(context.Background())
	s.setState(StateConnecting)

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, s.wsURL, nil)
	if err != nil {
		s.setState(StateFailed)
		s.scheduleReconnect()
		return err
	}

	s.setConn(conn)
	s.setState(StateConnected)
	s.wg.Add(2)
	go s.listen()
	go s.pingLoop()
	return nil
}

// JoinRoom enters a room; the server answers with the stored position
// as an update frame when one exists.
func (s *Socket) JoinRoom(ctx context.Context, roomID string) error {
	return s.Emit(ctx, syncdto.EventJoinRoom, roomID)
}

// UpdatePosition publishes a board position to the joined room.
func (s *Socket) UpdatePosition(ctx context.Context, text string) error {
	return s.Emit(ctx, syncdto.EventUpdatePosition, syncdto.UpdatePosition{Text: text})
}

// SendComment publishes a chat message to the joined room.
func (s *Socket) SendComment(ctx context.Context, name, comment string) error {
	return s.Emit(ctx, syncdto.EventSendChat, syncdto.Comment{Name: name, Comment: comment})
}

// SendMove publishes a piece movement to the joined room.
func (s *Socket) SendMove(ctx context.Context, mv syncdto.Move) error {
	return s.Emit(ctx, syncdto.EventSendMove, mv)
}

// LeaveRoom leaves the joined room without closing the socket.
func (s *Socket) LeaveRoom(ctx context.Context) error {
	return s.Emit(ctx, syncdto.EventLeaveRoom, nil)
}

// Emit sends one event frame.
func (s *Socket) Emit(ctx context.Context, event string, data any) error {
	conn := s.currentConn()
	if conn == nil {
		return ErrNotConnected
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}
	return wsjson.Write(ctx, conn, syncdto.Frame{Event: event, Data: raw})
}

func (s *Socket) listen() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		conn := s.currentConn()
		if conn == nil {
			return
		}
		var frame syncdto.Frame
		if err := wsjson.Read(s.rootCtx, conn, &frame); err != nil {
			if s.isStopping() {
				return
			}
			s.setState(StateDisconnected)
			_ = s.closeConn(websocket.StatusGoingAway, "reconnect")
			s.scheduleReconnect()
			return
		}

		s.cbM.RLock()
		cbs := make([]frameCbEntry, len(s.frameCbs))
		copy(cbs, s.frameCbs)
		s.cbM.RUnlock()
		for _, entry := range cbs {
			if entry.cb != nil {
				entry.cb(&frame)
			}
		}
	}
}

func (s *Socket) pingLoop() {
	defer s.wg.Done()
	t := time.NewTicker(s.pingInterval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-s.stopCh:
			return
		case <-t.C:
			conn := s.currentConn()
			if conn == nil {
				continue
			}
			ctx, cancel := context.WithTimeout(s.rootCtx, 3*time.Second)
			err := conn.Ping(ctx)
			cancel()
			if err != nil {
				failures++
				if failures >= 2 {
					if s.isStopping() {
						return
					}
					s.setState(StateDisconnected)
					_ = s.closeConn(websocket.StatusGoingAway, "ping failure")
					s.scheduleReconnect()
					failures = 0
				}
				continue
			}
			failures = 0
		}
	}
}

func (s *Socket) scheduleReconnect() {
	if s.maxReconnectAttempts <= 0 {
		return
	}
	s.setState(StateReconnecting)

	go func() {
		for attempt := 1; attempt <= s.maxReconnectAttempts; attempt++ {
			select {
			case <-s.stopCh:
				return
			case <-time.After(backoffDuration(attempt)):
			}

			dialCtx, cancel := context.WithTimeout(s.rootCtx, 10*time.Second)
			conn, _, err := websocket.Dial(dialCtx, s.wsURL, nil)
			cancel()
			if err != nil {
				continue
			}

			s.setConn(conn)
			s.setState(StateConnected)
			s.wg.Add(2)
			go s.listen()
			go s.pingLoop()
			return
		}
		s.setState(StateFailed)
	}()
}

// OnFrame registers a callback for every inbound frame and returns an
// id usable with RemoveFrameCallback.
func (s *Socket) OnFrame(cb FrameCallback) int {
	s.cbM.Lock()
	defer s.cbM.Unlock()
	id := len(s.frameCbs) + 1
	s.frameCbs = append(s.frameCbs, frameCbEntry{id: id, cb: cb})
	return id
}

func (s *Socket) RemoveFrameCallback(id int) {
	s.cbM.Lock()
	defer s.cbM.Unlock()
	for i, entry := range s.frameCbs {
		if entry.id == id {
			s.frameCbs = append(s.frameCbs[:i], s.frameCbs[i+1:]...)
			break
		}
	}
}

func (s *Socket) OnStateChange(cb StateCallback) int {
	s.cbM.Lock()
	defer s.cbM.Unlock()
	id := len(s.stateCbs) + 1
	s.stateCbs = append(s.stateCbs, stateCbEntry{id: id, cb: cb})
	return id
}

func (s *Socket) setState(state SocketState) {
	s.stateM.Lock()
	s.state = state
	s.stateM.Unlock()

	s.cbM.RLock()
	cbs := make([]stateCbEntry, len(s.stateCbs))
	copy(cbs, s.stateCbs)
	s.cbM.RUnlock()
	for _, entry := range cbs {
		if entry.cb != nil {
			entry.cb(state)
		}
	}
}

// State reports the current socket state.
func (s *Socket) State() SocketState {
	s.stateM.RLock()
	defer s.stateM.RUnlock()
	return s.state
}

func (s *Socket) Close(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	_ = s.closeConn(websocket.StatusNormalClosure, "close")

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		if s.rootCancel != nil {
			s.rootCancel()
		}
		return nil
	}
}

func (s *Socket) setConn(conn *websocket.Conn) {
	s.stateM.Lock()
	s.conn = conn
	s.stateM.Unlock()
}

func (s *Socket) currentConn() *websocket.Conn {
	s.stateM.RLock()
	defer s.stateM.RUnlock()
	return s.conn
}

func (s *Socket) closeConn(code websocket.StatusCode, reason string) error {
	s.stateM.Lock()
	conn := s.conn
	s.conn = nil
	s.stateM.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close(code, reason)
}

func (s *Socket) isStopping() bool {
	select {
	case <-s.stopCh:
		return true
	default:
		return false
	}
}
