// Package board implements the memory game board: the card layout, the
// per-cell reveal state machine, pairing checks, and the JSON wire round-trip.
package board

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/sergeijochim/BlueMemory/internal/deck"
	"github.com/sergeijochim/BlueMemory/internal/protocol"
)

// ErrMalformed is returned when a received board payload cannot be parsed
// into a consistent board.
var ErrMalformed = errors.New("malformed board")

// CellState is the reveal state of a single cell. Transitions are
// Hidden → RevealedTransient → {Hidden, RevealedPermanent};
// RevealedPermanent is terminal.
type CellState int

const (
	Hidden CellState = iota
	RevealedTransient
	RevealedPermanent
)

func (s CellState) String() string {
	switch s {
	case Hidden:
		return "HIDDEN"
	case RevealedTransient:
		return "REVEALED_TRANSIENT"
	case RevealedPermanent:
		return "REVEALED_PERMANENT"
	default:
		return "UNKNOWN"
	}
}

// Board is the complete grid of cards and per-cell reveal state for one game.
// Every card id appears in exactly two cells. A board is mutated only by its
// owning side in response to validated moves.
type Board struct {
	dim     int
	deck    string
	cards   []int
	states  []CellState
	pauseMs int

	locked        bool
	lastPairFound bool
}

// Generate builds a fresh width*height board for the named deck. Card ids
// 0..dim/2-1 are each placed on two cells, then shuffled (Fisher-Yates).
// All cells start Hidden and the board starts locked.
func Generate(width, height int, deckName string, pauseMs int, decks deck.Resolver) (*Board, error) {
	dim := width * height
	if dim <= 0 || dim%2 != 0 {
		return nil, fmt.Errorf("%w: dimension %dx%d must be positive and even", ErrMalformed, width, height)
	}
	if _, err := decks.Resolve(deckName); err != nil {
		return nil, err
	}

	cards := make([]int, dim)
	for i := 0; i < dim; i += 2 {
		cards[i] = i / 2
		cards[i+1] = i / 2
	}
	rand.Shuffle(dim, func(i, j int) {
		cards[i], cards[j] = cards[j], cards[i]
	})

	return &Board{
		dim:     dim,
		deck:    deckName,
		cards:   cards,
		states:  make([]CellState, dim),
		pauseMs: pauseMs,
		locked:  true,
	}, nil
}

// Parse reconstructs a board from its serialized wire form. It fails with
// ErrMalformed on missing or inconsistent fields and with deck.ErrNotFound
// when the referenced deck cannot be resolved.
func Parse(data []byte, decks deck.Resolver) (*Board, error) {
	var payload protocol.BoardPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if payload.Dim <= 0 || payload.Deck == "" {
		return nil, fmt.Errorf("%w: missing dim or deck", ErrMalformed)
	}
	if len(payload.Feld) != payload.Dim || len(payload.FeldStatus) != payload.Dim {
		return nil, fmt.Errorf("%w: field arrays do not match dim %d", ErrMalformed, payload.Dim)
	}
	states := make([]CellState, payload.Dim)
	for i, raw := range payload.FeldStatus {
		state := CellState(raw)
		if state < Hidden || state > RevealedPermanent {
			return nil, fmt.Errorf("%w: invalid cell state %d", ErrMalformed, raw)
		}
		states[i] = state
	}
	if _, err := decks.Resolve(payload.Deck); err != nil {
		return nil, err
	}

	cards := make([]int, payload.Dim)
	copy(cards, payload.Feld)

	return &Board{
		dim:     payload.Dim,
		deck:    payload.Deck,
		cards:   cards,
		states:  states,
		pauseMs: payload.Pause,
		locked:  true,
	}, nil
}

// Serialize renders the board as its JSON wire form, the inverse of Parse.
func (b *Board) Serialize() ([]byte, error) {
	data, err := json.Marshal(protocol.BoardPayload{
		Dim:        b.dim,
		Deck:       b.deck,
		Feld:       b.cards,
		FeldStatus: b.statesAsInts(),
		Pause:      b.pauseMs,
	})
	if err != nil {
		return nil, fmt.Errorf("serialize board: %w", err)
	}
	return data, nil
}

func (b *Board) statesAsInts() []int {
	out := make([]int, len(b.states))
	for i, s := range b.states {
		out[i] = int(s)
	}
	return out
}

// Dim returns the number of cells.
func (b *Board) Dim() int { return b.dim }

// Deck returns the deck identifier the board plays with.
func (b *Board) Deck() string { return b.deck }

// Card returns the logical card id assigned to a cell.
func (b *Board) Card(cell int) int { return b.cards[cell] }

// State returns the reveal state of a cell.
func (b *Board) State(cell int) CellState { return b.states[cell] }

// Pause returns how long a client waits before acknowledging a move.
func (b *Board) Pause() time.Duration { return time.Duration(b.pauseMs) * time.Millisecond }

// PauseMs returns the pause in milliseconds as carried on the wire.
func (b *Board) PauseMs() int { return b.pauseMs }

// Lock gates the board against local move attempts.
func (b *Board) Lock() { b.locked = true }

// Unlock releases the move acceptance gate.
func (b *Board) Unlock() { b.locked = false }

// IsLocked reports whether the move acceptance gate is closed.
func (b *Board) IsLocked() bool { return b.locked }

// LastPairFound reports the outcome of the most recent pair check.
func (b *Board) LastPairFound() bool { return b.lastPairFound }

// TryReveal reports whether revealing the cell would be a valid move: the
// board is unlocked (or the lock is bypassed, for relayed moves) and the cell
// is still hidden. It never mutates state.
func (b *Board) TryReveal(cell int, bypassLock bool) bool {
	if cell < 0 || cell >= b.dim {
		return false
	}
	return (!b.locked || bypassLock) && b.states[cell] == Hidden
}

// Reveal turns a hidden cell face up for the current round. Already revealed
// cells are left unchanged.
func (b *Board) Reveal(cell int) {
	if cell < 0 || cell >= b.dim {
		return
	}
	if b.states[cell] == Hidden {
		b.states[cell] = RevealedTransient
	}
}

// CheckPair tests whether two cells carry the same card. On a match both
// cells become permanently revealed. The outcome is retained in
// LastPairFound until the next ResetTransient.
func (b *Board) CheckPair(a, c int) bool {
	b.lastPairFound = b.cards[a] == b.cards[c]
	if b.lastPairFound {
		b.states[a] = RevealedPermanent
		b.states[c] = RevealedPermanent
	}
	return b.lastPairFound
}

// ResetTransient covers all transiently revealed cells again and clears the
// last pair outcome. Permanently revealed cells stay revealed.
func (b *Board) ResetTransient() {
	for i, state := range b.states {
		if state == RevealedTransient {
			b.states[i] = Hidden
		}
	}
	b.lastPairFound = false
}

// IsComplete reports whether every cell is permanently revealed.
func (b *Board) IsComplete() bool {
	for _, state := range b.states {
		if state != RevealedPermanent {
			return false
		}
	}
	return true
}
