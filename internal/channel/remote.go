package channel

import (
	"sync"

	"github.com/sergeijochim/BlueMemory/internal/protocol"
	"go.uber.org/zap"
)

const sendQueueSize = 64

// Remote is a channel endpoint over a byte-stream transport. It runs two
// workers: a reader that blocks on the stream and hands decoded messages to
// the handler, and a writer that drains the outbound queue in submission
// order so a peer's bytes never interleave.
type Remote struct {
	stream  MessageStream
	handler Handler
	logger  *zap.Logger

	out       chan protocol.Message
	closed    chan struct{}
	closeOnce sync.Once
	closeErr  error

	// set before closing the stream so the reader can tell a deliberate
	// close from a transport failure
	localClose chan struct{}
}

// NewRemote creates a remote channel over the given stream and starts its
// reader and writer workers.
func NewRemote(stream MessageStream, handler Handler, logger *zap.Logger) *Remote {
	r := &Remote{
		stream:     stream,
		handler:    handler,
		logger:     logger,
		out:        make(chan protocol.Message, sendQueueSize),
		closed:     make(chan struct{}),
		localClose: make(chan struct{}),
	}
	go r.readLoop()
	go r.writeLoop()
	return r
}

// Send queues the message for the writer worker. It fails once the channel is
// closed; a disconnect mid-send surfaces as a failed send on a later call.
func (r *Remote) Send(msg protocol.Message) error {
	select {
	case <-r.closed:
		return ErrClosed
	default:
	}
	select {
	case r.out <- msg:
		return nil
	case <-r.closed:
		return ErrClosed
	}
}

// Close cancels pending I/O and releases the transport. Safe to call more
// than once.
func (r *Remote) Close() error {
	r.closeOnce.Do(func() {
		close(r.localClose)
		close(r.closed)
		r.closeErr = r.stream.Close()
	})
	return r.closeErr
}

func (r *Remote) readLoop() {
	for {
		buf, err := r.stream.ReadMessage()
		if err != nil {
			select {
			case <-r.localClose:
				// deliberate close, not a transport failure
				err = nil
			default:
				r.logger.Debug("channel read failed", zap.Error(err))
			}
			r.Close()
			r.handler.OnClosed(err)
			return
		}

		msg, err := protocol.Decode(buf)
		if err != nil {
			r.logger.Warn("undecodable message dropped", zap.Error(err))
			continue
		}
		r.handler.OnMessage(msg)
	}
}

func (r *Remote) writeLoop() {
	for {
		select {
		case msg := <-r.out:
			if err := r.stream.WriteMessage(protocol.Encode(msg)); err != nil {
				select {
				case <-r.localClose:
				default:
					r.logger.Debug("channel write failed",
						zap.String("status", msg.Status.String()),
						zap.Error(err),
					)
				}
				r.Close()
				return
			}
		case <-r.closed:
			return
		}
	}
}
