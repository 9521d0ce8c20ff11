package channel

import (
	"sync"

	"github.com/sergeijochim/BlueMemory/internal/protocol"
)

// Local is one endpoint of an in-process channel pair. Sending on one
// endpoint invokes the peer's handler directly on the calling goroutine, so
// messages never serialize and ordering is the caller's ordering. To the
// state machines on either side a local peer is indistinguishable from a
// remote one.
type Local struct {
	mu      sync.Mutex
	peer    *Local
	handler Handler
	closed  bool
}

// NewLocalPair creates two connected local endpoints. Each side must Bind its
// handler before the other side sends.
func NewLocalPair() (*Local, *Local) {
	a := &Local{}
	b := &Local{}
	a.peer = b
	b.peer = a
	return a, b
}

// Bind attaches the handler receiving this endpoint's inbound messages.
func (l *Local) Bind(h Handler) {
	l.mu.Lock()
	l.handler = h
	l.mu.Unlock()
}

// Send delivers the message to the peer's handler synchronously.
func (l *Local) Send(msg protocol.Message) error {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return ErrClosed
	}

	l.peer.mu.Lock()
	h := l.peer.handler
	peerClosed := l.peer.closed
	l.peer.mu.Unlock()
	if peerClosed || h == nil {
		return ErrClosed
	}

	h.OnMessage(msg)
	return nil
}

// Close shuts down both endpoints and notifies the peer's handler. Closing an
// already closed endpoint is a no-op.
func (l *Local) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	l.peer.mu.Lock()
	peerAlreadyClosed := l.peer.closed
	l.peer.closed = true
	h := l.peer.handler
	l.peer.mu.Unlock()

	if !peerAlreadyClosed && h != nil {
		h.OnClosed(nil)
	}
	return nil
}
