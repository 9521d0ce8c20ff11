// Package stats records per-player win/loss statistics at game end. The
// session core only depends on the Recorder interface; storage backends are
// interchangeable.
package stats

import "context"

// Category classifies a finished game for the local player.
type Category int

const (
	Won Category = iota
	Tied
	Lost
)

func (c Category) String() string {
	switch c {
	case Won:
		return "WON"
	case Tied:
		return "TIED"
	case Lost:
		return "LOST"
	default:
		return "UNKNOWN"
	}
}

// Outcome is one player's result for one finished game.
type Outcome struct {
	Player   string
	Moves    int
	Pairs    int
	Category Category
}

// Recorder persists game outcomes.
type Recorder interface {
	RecordOutcome(ctx context.Context, outcome Outcome) error
}

// Noop discards outcomes. Used when no stats backend is configured.
type Noop struct{}

// RecordOutcome does nothing.
func (Noop) RecordOutcome(context.Context, Outcome) error { return nil }
