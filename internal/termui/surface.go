// Package termui is a minimal line-oriented Surface implementation for the
// bundled binaries. Real presentations implement client.Surface themselves.
package termui

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"sync"

	"github.com/sergeijochim/BlueMemory/internal/board"
	"github.com/sergeijochim/BlueMemory/internal/client"
	"github.com/sergeijochim/BlueMemory/internal/deck"
)

// Surface renders session events as plain text lines and a card grid.
type Surface struct {
	mu    sync.Mutex
	out   io.Writer
	name  string
	board *board.Board

	done     chan struct{}
	doneOnce sync.Once
}

// New creates a surface for the named local player writing to out.
func New(name string, out io.Writer) *Surface {
	return &Surface{name: name, out: out, done: make(chan struct{})}
}

// Done is closed once the session is over, however it ended.
func (s *Surface) Done() <-chan struct{} {
	return s.done
}

func (s *Surface) finish() {
	s.doneOnce.Do(func() { close(s.done) })
}

func (s *Surface) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format+"\n", args...)
}

func (s *Surface) OnNameAccepted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.printf("joined as %s, waiting in lobby", s.name)
}

func (s *Surface) OnNameConflict() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.printf("the name %s is already taken", s.name)
	s.finish()
}

func (s *Surface) OnRoster(players []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.printf("players: %s", strings.Join(players, ", "))
}

func (s *Surface) OnRosterFailed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.printf("could not fetch the lobby, leaving")
	s.finish()
}

func (s *Surface) OnPlayerJoined(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.printf("%s joined", name)
}

func (s *Surface) OnPlayerLeft(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.printf("%s left", name)
}

func (s *Surface) OnGameStarting() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.printf("game starting, fetching board")
}

func (s *Surface) OnBoard(b *board.Board) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.board = b
	s.printf("board received: %d cards, deck %q", b.Dim(), b.Deck())
	s.render()
}

func (s *Surface) OnBoardFailed(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if errors.Is(err, deck.ErrNotFound) {
		s.printf("the deck for this game is not installed")
	} else {
		s.printf("could not fetch the board, leaving")
	}
	s.finish()
}

func (s *Surface) OnTurn(player string, yours bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.render()
	if yours {
		s.printf("your turn! pick a card with: play <cell>")
	} else {
		s.printf("waiting for %s", player)
	}
}

func (s *Surface) OnWait() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.printf("waiting...")
}

func (s *Surface) OnMove(cell int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.board != nil {
		s.printf("cell %d shows card %d", cell, s.board.Card(cell))
	}
	s.render()
}

func (s *Surface) OnGameOver(result client.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch len(result.Winners) {
	case 0:
		s.printf("game over")
	case 1:
		s.printf("game over, %s wins with %d pairs", result.Winners[0], result.Pairs)
	default:
		s.printf("game over, tie between %s with %d pairs",
			strings.Join(result.Winners, " and "), result.Pairs)
	}
	s.finish()
}

func (s *Surface) OnDisconnected(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.printf("connection lost")
	} else {
		s.printf("session ended")
	}
	s.finish()
}

// render prints the grid, one row per line. Hidden cells show their index,
// revealed cells show their card id in brackets.
func (s *Surface) render() {
	if s.board == nil {
		return
	}
	dim := s.board.Dim()
	cols := gridColumns(dim)
	var line strings.Builder
	for cell := 0; cell < dim; cell++ {
		switch s.board.State(cell) {
		case board.Hidden:
			fmt.Fprintf(&line, " %3d ", cell)
		case board.RevealedTransient:
			fmt.Fprintf(&line, " (%2d)", s.board.Card(cell))
		case board.RevealedPermanent:
			fmt.Fprintf(&line, " [%2d]", s.board.Card(cell))
		}
		if (cell+1)%cols == 0 {
			s.printf("%s", line.String())
			line.Reset()
		}
	}
	if line.Len() > 0 {
		s.printf("%s", line.String())
	}
}

// gridColumns picks the divisor of dim closest to a square layout.
func gridColumns(dim int) int {
	best := 1
	for cols := 1; cols <= int(math.Sqrt(float64(dim))); cols++ {
		if dim%cols == 0 {
			best = cols
		}
	}
	return dim / best
}
