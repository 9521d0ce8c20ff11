package channel

import (
	"fmt"

	"github.com/gorilla/websocket"
)

// WebSocketStream adapts a websocket connection to the MessageStream
// contract. Each protocol message travels as one binary frame, so the
// transport itself provides message boundaries and no extra framing is
// needed.
type WebSocketStream struct {
	conn *websocket.Conn
}

// NewWebSocketStream wraps an established websocket connection.
func NewWebSocketStream(conn *websocket.Conn) *WebSocketStream {
	return &WebSocketStream{conn: conn}
}

// ReadMessage returns the payload of the next binary frame.
func (s *WebSocketStream) ReadMessage() ([]byte, error) {
	for {
		msgType, buf, err := s.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		switch msgType {
		case websocket.BinaryMessage, websocket.TextMessage:
			if len(buf) == 0 {
				return nil, fmt.Errorf("empty websocket frame")
			}
			return buf, nil
		default:
			// control frames are handled by gorilla internally; skip the rest
		}
	}
}

// WriteMessage sends one message as a single binary frame.
func (s *WebSocketStream) WriteMessage(buf []byte) error {
	return s.conn.WriteMessage(websocket.BinaryMessage, buf)
}

// Close closes the underlying websocket connection.
func (s *WebSocketStream) Close() error {
	return s.conn.Close()
}
