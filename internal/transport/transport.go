// Package transport provides the event-messaging substrate sessions run
// on: named events with reliable and volatile emit, explicit handler
// subscriptions, and disconnect notification.
package transport

import (
	"encoding/json"
	"errors"
)

var (
	// ErrClosed is returned when emitting on a closed connection.
	ErrClosed = errors.New("transport: connection closed")
	// ErrDropped is returned by EmitVolatile when the channel is backpressured.
	ErrDropped = errors.New("transport: volatile message dropped")
	// ErrConnectTimeout means the host did not answer within the connect timeout.
	ErrConnectTimeout = errors.New("transport: connection timed out")
	// ErrConnectFailed means the host refused or could not be reached.
	ErrConnectFailed = errors.New("transport: could not connect")
)

// Handler receives the raw payload of one event. It runs on the
// connection's read goroutine and must not block for long.
type Handler func(data json.RawMessage)

// Conn is one end of a session channel.
type Conn interface {
	// Emit queues an event for in-order delivery.
	Emit(event string, payload any) error
	// EmitVolatile sends an event only if the channel can take it now;
	// otherwise it returns ErrDropped.
	EmitVolatile(event string, payload any) error
	// On subscribes h to event. The returned func unsubscribes it.
	On(event string, h Handler) (unsubscribe func())
	// OnDisconnect registers fn to run once when the connection ends.
	OnDisconnect(fn func()) (unsubscribe func())
	Connected() bool
	Done() <-chan struct{}
	Close() error
	// ID identifies the connection in logs.
	ID() string
}
