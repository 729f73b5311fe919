package protocol

import (
	"encoding/json"
	"fmt"
)

// Event names carried on a session.
const (
	EventStartStream    = "start-stream"
	EventStopStream     = "stop-stream"
	EventScreenData     = "screen-data"
	EventMouseMove      = "mouse-move"
	EventMouseClick     = "mouse-click"
	EventTypeKey        = "type-key"
	EventConnected      = "connected"
	EventRegisterDevice = "register-device"
	EventRTCOffer       = "rtc-offer"
	EventRTCAnswer      = "rtc-answer"
)

// Mouse buttons accepted in MouseClick.
const (
	ButtonLeft  = "left"
	ButtonRight = "right"
)

// Symbolic keys accepted in TypeKey.
const (
	KeyBackspace = "backspace"
	KeyEnter     = "enter"
)

// Envelope is the framing for every event on the websocket and the
// data-channel substrates.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Frame is one encoded screen image. Timestamp is the capture time in
// milliseconds on the host's monotonic clock.
type Frame struct {
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Image     []byte `json:"image"`
	Timestamp int64  `json:"timestamp"`
}

// MouseMove is a relative pointer delta.
type MouseMove struct {
	DX int `json:"dx"`
	DY int `json:"dy"`
}

// IsZero reports whether the delta carries no motion.
func (m MouseMove) IsZero() bool { return m.DX == 0 && m.DY == 0 }

type MouseClick struct {
	Button string `json:"button"`
}

type TypeKey struct {
	Key string `json:"key"`
}

// Connected is the greeting the host sends once a session is established.
type Connected struct {
	Message string `json:"message"`
}

// RegisterDevice announces the viewer's saved name for the host.
type RegisterDevice struct {
	IP   string `json:"ip"`
	Name string `json:"name"`
}

// SessionDescription carries a pion SDP (with gathered candidates) as JSON.
type SessionDescription struct {
	SDP json.RawMessage `json:"sdp"`
}

// Marshal frames an event and its payload. A nil payload omits the data field.
func Marshal(event string, payload any) ([]byte, error) {
	env := Envelope{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", event, err)
		}
		env.Data = data
	}
	return json.Marshal(env)
}

// Unmarshal parses an envelope.
func Unmarshal(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("unmarshal envelope: missing event name")
	}
	return env, nil
}

// Decode unmarshals an event payload into v. An absent payload is an error.
func Decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("decode payload: empty")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}
