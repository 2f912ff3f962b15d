package router

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
)

// MaxFieldBytes is the size ceiling for any client-supplied field.
const MaxFieldBytes = 10000

var roomIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,50}$`)

// ValidRoomID reports whether id matches the room identifier grammar.
func ValidRoomID(id string) bool { return roomIDPattern.MatchString(id) }

// ValidationError rejects a malformed inbound event. Key names the
// client-facing message in the catalog.
type ValidationError struct {
	Key string
}

func (e *ValidationError) Error() string { return "validation failed: " + e.Key }

func invalid(key string) *ValidationError { return &ValidationError{Key: key} }

// Event is the decoded, validated form of one inbound client message.
type Event interface{ isEvent() }

type JoinRoom struct {
	RoomID string
}

// UpdatePosition carries a whole serialized position. The room is the one
// the sender joined; the wire id field is legacy baggage and not trusted.
type UpdatePosition struct {
	RoomID string
	Text   string
}

type SendComment struct {
	Name    string
	Comment string
}

type SendMove struct {
	BeforeX Coord
	BeforeY Coord
	AfterX  Coord
	AfterY  Coord
	Piece   string
}

type LeaveRoom struct{}

func (*JoinRoom) isEvent()       {}
func (*UpdatePosition) isEvent() {}
func (*SendComment) isEvent()    {}
func (*SendMove) isEvent()       {}
func (*LeaveRoom) isEvent()      {}

// Coord is a board coordinate that may arrive as a JSON number or as a
// string (hand and stock drops use letters instead of indices).
type Coord string

func (c *Coord) UnmarshalJSON(b []byte) error {
	if len(b) == 0 {
		return fmt.Errorf("empty coordinate")
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = Coord(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*c = Coord(n.String())
	return nil
}

func (c Coord) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(string(c))), nil
}

func (c Coord) String() string { return string(c) }

// inboundNames maps both dialects' wire spellings to one canonical name.
var inboundNames = map[string]string{
	"enterRoom":       "join-room",
	"join-room":       "join-room",
	"send":            "update-position",
	"update-position": "update-position",
	"sendComment":     "send-chat",
	"send-chat":       "send-chat",
	"sendMove":        "send-move",
	"send-move":       "send-move",
	"leaveRoom":       "leave-room",
	"leave-room":      "leave-room",
}

// Decode turns a wire event name plus raw payload into a validated Event.
// Malformed payloads come back as *ValidationError; an unknown name comes
// back as ErrUnknownEvent.
func Decode(name string, data json.RawMessage) (Event, error) {
	canonical, ok := inboundNames[name]
	if !ok {
		return nil, ErrUnknownEvent
	}
	switch canonical {
	case "join-room":
		return decodeJoin(data)
	case "update-position":
		return decodeUpdate(data)
	case "send-chat":
		return decodeComment(data)
	case "send-move":
		return decodeMove(data)
	default:
		return &LeaveRoom{}, nil
	}
}

func decodeJoin(data json.RawMessage) (Event, error) {
	var roomID string
	if err := json.Unmarshal(data, &roomID); err != nil {
		return nil, invalid("error.invalid_room_id")
	}
	if !ValidRoomID(roomID) {
		return nil, invalid("error.invalid_room_id")
	}
	return &JoinRoom{RoomID: roomID}, nil
}

func decodeUpdate(data json.RawMessage) (Event, error) {
	var p struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, invalid("error.invalid_parameters")
	}
	if p.Text == "" || len(p.Text) > MaxFieldBytes {
		return nil, invalid("error.invalid_board")
	}
	return &UpdatePosition{RoomID: p.ID, Text: p.Text}, nil
}

func decodeComment(data json.RawMessage) (Event, error) {
	var p struct {
		Name    string `json:"name"`
		Comment string `json:"comment"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, invalid("error.invalid_parameters")
	}
	if p.Name == "" || p.Comment == "" ||
		len(p.Name) > MaxFieldBytes || len(p.Comment) > MaxFieldBytes {
		return nil, invalid("error.invalid_comment")
	}
	return &SendComment{Name: p.Name, Comment: p.Comment}, nil
}

func decodeMove(data json.RawMessage) (Event, error) {
	var p struct {
		BeforeX Coord  `json:"beforeX"`
		BeforeY Coord  `json:"beforeY"`
		AfterX  Coord  `json:"afterX"`
		AfterY  Coord  `json:"afterY"`
		Piece   string `json:"piece"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, invalid("error.invalid_move")
	}
	if p.Piece == "" || len(p.Piece) > MaxFieldBytes {
		return nil, invalid("error.invalid_move")
	}
	return &SendMove{
		BeforeX: p.BeforeX,
		BeforeY: p.BeforeY,
		AfterX:  p.AfterX,
		AfterY:  p.AfterY,
		Piece:   p.Piece,
	}, nil
}
