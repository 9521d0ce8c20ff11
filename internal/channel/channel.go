// Package channel provides the uniform message transport used by both sides
// of a session. A channel carries protocol messages between exactly two
// peers; the local variant dispatches in-process, the remote variant runs
// over a byte-stream transport. Both obey the same send/receive/close
// contract, so a coordinator cannot tell a local player from a remote one.
package channel

import (
	"errors"

	"github.com/sergeijochim/BlueMemory/internal/protocol"
)

// ErrClosed is returned by Send after the channel has been closed.
var ErrClosed = errors.New("channel closed")

// Handler receives a channel's inbound events. OnMessage is invoked once per
// received message, in order, from a single goroutine. OnClosed is invoked at
// most once, after the last message, when the channel stops; err is nil for a
// deliberate local close.
type Handler interface {
	OnMessage(msg protocol.Message)
	OnClosed(err error)
}

// Channel is one endpoint of a duplex message connection.
type Channel interface {
	// Send queues a message for delivery to the peer. Sends from one
	// goroutine are delivered in submission order.
	Send(msg protocol.Message) error

	// Close tears the connection down and releases the transport. Closing a
	// channel that is not connected is a no-op.
	Close() error
}

// MessageStream is a transport that delivers whole messages: one write is one
// message, one read returns exactly one message. Implementations exist for
// websocket connections and for length-framed byte streams.
type MessageStream interface {
	ReadMessage() ([]byte, error)
	WriteMessage(buf []byte) error
	Close() error
}
