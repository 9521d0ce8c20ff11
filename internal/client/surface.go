// Package client implements the per-device protocol client: it turns UI
// intents into protocol messages, applies relayed moves to the local board
// copy, and reports everything the player needs to see through the Surface
// callback interface.
package client

import (
	"github.com/sergeijochim/BlueMemory/internal/board"
	"github.com/sergeijochim/BlueMemory/internal/stats"
)

// Result summarizes a finished game from the local player's perspective.
type Result struct {
	// Winners holds every player with the maximum number of found pairs, in
	// roster order. One entry is a clean win, several are a tie.
	Winners []string

	// Pairs is the winning pair count.
	Pairs int

	// Category classifies the outcome for the local player.
	Category stats.Category
}

// Surface receives everything a presentation layer needs to render the
// session. Callbacks are invoked from the proxy's message dispatch and must
// not call back into the proxy synchronously; kick off a goroutine (or the UI
// event loop) for follow-up intents.
type Surface interface {
	// OnNameAccepted is called when the server admitted the player name.
	OnNameAccepted()

	// OnNameConflict is called when the name is already taken. The session
	// is over; the proxy has already said goodbye.
	OnNameConflict()

	// OnRoster delivers the full lobby roster.
	OnRoster(players []string)

	// OnRosterFailed is called after the roster could not be fetched in
	// three attempts. The session is over.
	OnRosterFailed()

	// OnPlayerJoined and OnPlayerLeft update the roster incrementally.
	OnPlayerJoined(name string)
	OnPlayerLeft(name string)

	// OnGameStarting is called when the host starts the game; the board
	// follows.
	OnGameStarting()

	// OnBoard delivers the parsed board. It arrives locked.
	OnBoard(b *board.Board)

	// OnBoardFailed is called when the board could not be fetched. Check the
	// error against deck.ErrNotFound to tell a missing deck from a transfer
	// failure. The session is over.
	OnBoardFailed(err error)

	// OnTurn announces whose turn it is. The board is unlocked iff yours.
	OnTurn(player string, yours bool)

	// OnWait tells the player to hold; the board is locked.
	OnWait()

	// OnMove reports a relayed move already applied to the local board.
	OnMove(cell int)

	// OnGameOver delivers the final result. The outcome has been recorded.
	OnGameOver(result Result)

	// OnDisconnected is called when the session ends outside the normal
	// game-over path. err is nil for an orderly goodbye, ErrDesync when the
	// local board diverged from the session.
	OnDisconnected(err error)
}
