package protocol

import (
	"encoding/json"
	"fmt"
)

// Message is one protocol message: a status code and an optional UTF-8
// payload. Messages are ephemeral; they exist only in transit.
type Message struct {
	Status  Status
	Payload string
}

// HasPayload reports whether the message carries a payload.
func (m Message) HasPayload() bool {
	return m.Payload != ""
}

func (m Message) String() string {
	if m.Payload == "" {
		return m.Status.String()
	}
	return fmt.Sprintf("%s %q", m.Status, m.Payload)
}

// Encode renders a message as its wire form: one status byte followed by the
// raw UTF-8 payload bytes. Message boundaries are the transport's concern.
func Encode(m Message) []byte {
	buf := make([]byte, 0, 1+len(m.Payload))
	buf = append(buf, byte(m.Status))
	buf = append(buf, m.Payload...)
	return buf
}

// Decode parses a wire buffer back into a message. A one-byte buffer is a
// message without payload. Decode is the exact inverse of Encode.
func Decode(buf []byte) (Message, error) {
	if len(buf) == 0 {
		return Message{}, fmt.Errorf("empty message buffer")
	}
	m := Message{Status: Status(buf[0])}
	if len(buf) > 1 {
		m.Payload = string(buf[1:])
	}
	return m, nil
}

// LobbyPayload is the JSON body of a POST_LOBBY message.
type LobbyPayload struct {
	Lobby []string `json:"lobby"`
}

// EncodeLobby builds a POST_LOBBY message from a roster.
func EncodeLobby(players []string) (Message, error) {
	body, err := json.Marshal(LobbyPayload{Lobby: players})
	if err != nil {
		return Message{}, fmt.Errorf("marshal lobby: %w", err)
	}
	return Message{Status: PostLobby, Payload: string(body)}, nil
}

// DecodeLobby parses the roster out of a POST_LOBBY payload.
func DecodeLobby(payload string) ([]string, error) {
	if payload == "" {
		return nil, fmt.Errorf("empty lobby payload")
	}
	var body LobbyPayload
	if err := json.Unmarshal([]byte(payload), &body); err != nil {
		return nil, fmt.Errorf("unmarshal lobby: %w", err)
	}
	if body.Lobby == nil {
		return nil, fmt.Errorf("lobby payload missing lobby field")
	}
	return body.Lobby, nil
}

// BoardPayload is the JSON body of a POST_SPIELFELD message. Field names are
// fixed by the wire protocol.
type BoardPayload struct {
	Dim        int    `json:"dim"`
	Deck       string `json:"deck"`
	Feld       []int  `json:"feld"`
	FeldStatus []int  `json:"feldStatus"`
	Pause      int    `json:"pause"`
}
