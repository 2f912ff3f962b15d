package router

import "net/url"

// Dialect identifies which of the two historical client protocol
// conventions a connection speaks. It is decided once at connect time from
// the handshake query and never changes for the life of the connection.
type Dialect int

const (
	// DialectCurrent is the present-day protocol: error payloads are
	// {message}.
	DialectCurrent Dialect = iota
	// DialectLegacy covers old clients (engine.io v3 handshakes): error
	// payloads carry an extra code field.
	DialectLegacy
)

func (d Dialect) String() string {
	if d == DialectLegacy {
		return "legacy"
	}
	return "current"
}

// Classify inspects handshake query parameters. Legacy clients announce
// themselves with EIO=3.
func Classify(query url.Values) Dialect {
	if query.Get("EIO") == "3" {
		return DialectLegacy
	}
	return DialectCurrent
}

type errorPayload struct {
	Message string `json:"message"`
}

type legacyErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorPayload shapes an error message for this dialect. This is the only
// place dialect is consulted when emitting.
func (d Dialect) ErrorPayload(message string) any {
	if d == DialectLegacy {
		return legacyErrorPayload{Code: "SERVER_ERROR", Message: message}
	}
	return errorPayload{Message: message}
}
