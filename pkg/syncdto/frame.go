// Package syncdto holds the wire types exchanged with a board sync
// server. Client code imports this package instead of the server
// internals.
package syncdto

import "encoding/json"

// Frame is the envelope every transport message travels in.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Inbound event names accepted by the server. The server also accepts
// the older socket.io era aliases (enterRoom, send, sendComment,
// sendMove, leaveRoom).
const (
	EventJoinRoom       = "join-room"
	EventUpdatePosition = "update-position"
	EventSendChat       = "send-chat"
	EventSendMove       = "send-move"
	EventLeaveRoom      = "leave-room"
)

// Outbound event names the server emits.
const (
	EventUpdate         = "update"
	EventReceiveComment = "receiveComment"
	EventReceiveMove    = "receiveMove"
	EventError          = "error"
)
