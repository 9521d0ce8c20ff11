package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxFrameSize bounds a single framed message. Boards and rosters are small;
// anything larger is a corrupt stream.
const MaxFrameSize = 64 * 1024

// FramedStream adds explicit message framing on top of a plain byte stream.
//
// Ordered byte streams do not preserve message boundaries, so each message is
// prefixed with its length as a big-endian uint16. Any io.ReadWriteCloser (a
// TCP connection, a pipe) then carries exact messages.
type FramedStream struct {
	rw io.ReadWriteCloser
}

// NewFramedStream wraps a duplex byte stream with length-prefix framing.
func NewFramedStream(rw io.ReadWriteCloser) *FramedStream {
	return &FramedStream{rw: rw}
}

// WriteMessage writes one length-prefixed message.
func (s *FramedStream) WriteMessage(buf []byte) error {
	if len(buf) > MaxFrameSize {
		return fmt.Errorf("message of %d bytes exceeds frame limit", len(buf))
	}
	var hdr [2]byte
	binary.BigEndian.PutUint16(hdr[:], uint16(len(buf)))
	if _, err := s.rw.Write(hdr[:]); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if _, err := s.rw.Write(buf); err != nil {
		return fmt.Errorf("write frame body: %w", err)
	}
	return nil
}

// ReadMessage reads exactly one length-prefixed message, blocking until a
// full frame is available or the stream fails.
func (s *FramedStream) ReadMessage() ([]byte, error) {
	var hdr [2]byte
	if _, err := io.ReadFull(s.rw, hdr[:]); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint16(hdr[:])
	if length == 0 {
		return nil, fmt.Errorf("zero-length frame")
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(s.rw, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Close closes the underlying stream.
func (s *FramedStream) Close() error {
	return s.rw.Close()
}
