// Package protocol defines the BlueMemory session wire protocol: the status
// codes, the status-byte + UTF-8 payload codec, and the JSON payload shapes
// exchanged between the coordinator and its clients.
//
// Code ranges: 0-19 connection setup/teardown, 20-39 lobby, 40-69 game flow.
package protocol

import "fmt"

// Status is the one-byte message type of the session protocol.
type Status byte

const (
	// Helo is sent by a client to register with its player name. Payload: name.
	Helo Status = 0

	// Hello confirms the player name was accepted. No payload.
	Hello Status = 1

	// FehlerHelo rejects a registration because the name is taken. No payload.
	FehlerHelo Status = 2

	// Bye ends the connection. Sent by either side. No payload.
	Bye Status = 10

	// GetLobby requests the current lobby roster. No payload.
	GetLobby Status = 20

	// PostLobby carries the roster as JSON {"lobby":["name",...]}.
	PostLobby Status = 21

	// OkLobby acknowledges a received roster. No payload.
	OkLobby Status = 22

	// PlayerJoined announces a new lobby member. Payload: name.
	PlayerJoined Status = 25

	// PlayerLeft announces a departed lobby member. Payload: name.
	PlayerLeft Status = 26

	// Starten announces that the host started the game. No payload.
	Starten Status = 27

	// GetSpielfeld requests the game board. No payload.
	GetSpielfeld Status = 40

	// PostSpielfeld carries the board as a JSON object. See BoardPayload.
	PostSpielfeld Status = 41

	// OkSpielfeld acknowledges a received board. No payload.
	OkSpielfeld Status = 42

	// Rate names the player whose turn it is. Payload: name.
	Rate Status = 50

	// Warte tells the client to lock its board and wait. No payload.
	Warte Status = 51

	// Zug reports the cell a client revealed. Payload: decimal cell index.
	Zug Status = 52

	// PostZug relays a move to all clients. Payload: decimal cell index.
	PostZug Status = 53

	// OkZug acknowledges that a relayed move was applied. No payload.
	OkZug Status = 54

	// Beenden announces the end of the game. No payload.
	Beenden Status = 60
)

func (s Status) String() string {
	switch s {
	case Helo:
		return "HELO"
	case Hello:
		return "HELLO"
	case FehlerHelo:
		return "FEHLER_HELO"
	case Bye:
		return "BYE"
	case GetLobby:
		return "GET_LOBBY"
	case PostLobby:
		return "POST_LOBBY"
	case OkLobby:
		return "OK_LOBBY"
	case PlayerJoined:
		return "PLAYER_JOINED"
	case PlayerLeft:
		return "PLAYER_LEFT"
	case Starten:
		return "STARTEN"
	case GetSpielfeld:
		return "GET_SPIELFELD"
	case PostSpielfeld:
		return "POST_SPIELFELD"
	case OkSpielfeld:
		return "OK_SPIELFELD"
	case Rate:
		return "RATE"
	case Warte:
		return "WARTE"
	case Zug:
		return "ZUG"
	case PostZug:
		return "POST_ZUG"
	case OkZug:
		return "OK_ZUG"
	case Beenden:
		return "BEENDEN"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", byte(s))
	}
}
