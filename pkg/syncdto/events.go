package syncdto

// UpdatePosition carries a full board position in text notation.
type UpdatePosition struct {
	RoomID string `json:"id,omitempty"`
	Text   string `json:"text"`
}

// Comment is a chat message. On the way out of the server Time carries
// the JST receipt timestamp.
type Comment struct {
	Time    string `json:"time,omitempty"`
	Name    string `json:"name"`
	Comment string `json:"comment"`
}

// Move is one piece movement. Coordinates are strings because drop
// moves use markers like "hand" instead of numbers.
type Move struct {
	Time    string `json:"time,omitempty"`
	BeforeX string `json:"beforeX"`
	BeforeY string `json:"beforeY"`
	AfterX  string `json:"afterX"`
	AfterY  string `json:"afterY"`
	Piece   string `json:"piece"`
}

// ErrorPayload is the error event body. Code is only present for
// legacy dialect connections.
type ErrorPayload struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}
