package client

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/sergeijochim/BlueMemory/internal/board"
	"github.com/sergeijochim/BlueMemory/internal/channel"
	"github.com/sergeijochim/BlueMemory/internal/deck"
	"github.com/sergeijochim/BlueMemory/internal/protocol"
	"github.com/sergeijochim/BlueMemory/internal/stats"
	"go.uber.org/zap"
)

// ErrDesync marks a relayed move that is invalid on the local board copy.
// The boards have diverged and the session cannot be repaired.
var ErrDesync = errors.New("board out of sync with session")

// maxFetchAttempts bounds the GET_LOBBY and GET_SPIELFELD retries on
// malformed responses.
const maxFetchAttempts = 3

const recordTimeout = 5 * time.Second

// State is the client proxy's protocol phase.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateAwaitingNameAck
	StateInLobby
	StateAwaitingBoard
	StateBoardLocked
	StateBoardUnlocked
	StateGameOver
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateAwaitingNameAck:
		return "AWAITING_NAME_ACK"
	case StateInLobby:
		return "IN_LOBBY"
	case StateAwaitingBoard:
		return "AWAITING_BOARD"
	case StateBoardLocked:
		return "BOARD_LOCKED"
	case StateBoardUnlocked:
		return "BOARD_UNLOCKED"
	case StateGameOver:
		return "GAME_OVER"
	default:
		return "UNKNOWN"
	}
}

// counters tracks one player's progress as seen from this device. The server
// keeps no per-player tallies; every client derives them from the relayed
// move stream.
type counters struct {
	moves  int
	pairs  int
	first  int // first pick of the current round
	second int // second pick of the current round
}

// Proxy is the protocol client for one device. It implements
// channel.Handler; all inbound messages arrive serialized from the channel,
// UI intents may come from any goroutine.
type Proxy struct {
	name     string
	surface  Surface
	decks    deck.Resolver
	recorder stats.Recorder
	logger   *zap.Logger

	mu     sync.Mutex
	ch     channel.Channel
	state  State
	board  *board.Board
	roster []string
	player map[string]*counters
	active string

	lobbyFailures int
	boardFailures int
}

// New creates a proxy for the named local player.
func New(name string, surface Surface, decks deck.Resolver, recorder stats.Recorder, logger *zap.Logger) *Proxy {
	return &Proxy{
		name:     name,
		surface:  surface,
		decks:    decks,
		recorder: recorder,
		logger:   logger,
		state:    StateDisconnected,
		player:   make(map[string]*counters),
	}
}

// Name returns the local player name.
func (p *Proxy) Name() string { return p.name }

// State returns the proxy's protocol phase.
func (p *Proxy) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Board returns the local board copy, nil before one was received.
func (p *Proxy) Board() *board.Board {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.board
}

// Connect binds the proxy to a connected channel and registers the player
// name with the server.
func (p *Proxy) Connect(ch channel.Channel) {
	p.mu.Lock()
	p.ch = ch
	p.state = StateAwaitingNameAck
	p.mu.Unlock()

	p.logger.Info("registering player", zap.String("player", p.name))
	p.send(protocol.Message{Status: protocol.Helo, Payload: p.name})
}

// PlayCell submits the local player's move. The move is not applied locally;
// it comes back as POST_ZUG via the server like every other move.
func (p *Proxy) PlayCell(cell int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateBoardUnlocked {
		return fmt.Errorf("not your turn")
	}
	if !p.board.TryReveal(cell, false) {
		return fmt.Errorf("cell %d cannot be revealed", cell)
	}

	// lock immediately so no second click sneaks in before the relay
	p.board.Lock()
	p.state = StateBoardLocked
	p.send(protocol.Message{Status: protocol.Zug, Payload: strconv.Itoa(cell)})
	return nil
}

// Leave says goodbye and closes the connection.
func (p *Proxy) Leave() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StateDisconnected || p.state == StateGameOver {
		return
	}
	p.send(protocol.Message{Status: protocol.Bye})
	p.state = StateDisconnected
	p.closeChannel()
}

// OnMessage dispatches one inbound protocol message.
func (p *Proxy) OnMessage(msg protocol.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.logger.Debug("message received", zap.String("status", msg.Status.String()))

	switch msg.Status {
	case protocol.Hello:
		p.handleHello()
	case protocol.FehlerHelo:
		p.handleNameConflict()
	case protocol.PostLobby:
		p.handleLobby(msg.Payload)
	case protocol.PlayerJoined:
		p.handlePlayerJoined(msg.Payload)
	case protocol.PlayerLeft:
		p.handlePlayerLeft(msg.Payload)
	case protocol.Starten:
		p.handleStart()
	case protocol.PostSpielfeld:
		p.handleBoard(msg.Payload)
	case protocol.Rate:
		p.handleTurn(msg.Payload)
	case protocol.Warte:
		p.handleWait()
	case protocol.PostZug:
		p.handleMove(msg.Payload)
	case protocol.Beenden:
		p.handleGameOver()
	case protocol.Bye:
		p.state = StateDisconnected
		p.closeChannel()
		p.surface.OnDisconnected(nil)
	default:
		p.logger.Warn("unknown status ignored", zap.String("status", msg.Status.String()))
	}
}

// OnClosed handles an unexpected transport end.
func (p *Proxy) OnClosed(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateGameOver || p.state == StateDisconnected {
		return
	}
	p.logger.Info("connection ended", zap.Error(err))
	p.state = StateDisconnected
	p.surface.OnDisconnected(err)
}

func (p *Proxy) handleHello() {
	p.state = StateInLobby
	p.surface.OnNameAccepted()
	p.send(protocol.Message{Status: protocol.GetLobby})
}

func (p *Proxy) handleNameConflict() {
	p.logger.Warn("player name already taken", zap.String("player", p.name))
	p.send(protocol.Message{Status: protocol.Bye})
	p.state = StateGameOver
	p.closeChannel()
	p.surface.OnNameConflict()
}

func (p *Proxy) handleLobby(payload string) {
	roster, err := protocol.DecodeLobby(payload)
	if err != nil {
		p.lobbyFailures++
		p.logger.Warn("malformed lobby payload",
			zap.Int("attempt", p.lobbyFailures),
			zap.Error(err),
		)
		if p.lobbyFailures >= maxFetchAttempts {
			p.state = StateGameOver
			p.send(protocol.Message{Status: protocol.Bye})
			p.closeChannel()
			p.surface.OnRosterFailed()
			return
		}
		p.send(protocol.Message{Status: protocol.GetLobby})
		return
	}

	p.roster = roster
	for _, name := range roster {
		if _, ok := p.player[name]; !ok {
			p.player[name] = &counters{}
		}
	}
	p.send(protocol.Message{Status: protocol.OkLobby})
	p.surface.OnRoster(roster)
}

func (p *Proxy) handlePlayerJoined(name string) {
	if _, ok := p.player[name]; !ok {
		p.roster = append(p.roster, name)
		p.player[name] = &counters{}
	}
	p.surface.OnPlayerJoined(name)
}

func (p *Proxy) handlePlayerLeft(name string) {
	delete(p.player, name)
	for i, existing := range p.roster {
		if existing == name {
			p.roster = append(p.roster[:i], p.roster[i+1:]...)
			break
		}
	}
	p.surface.OnPlayerLeft(name)
}

func (p *Proxy) handleStart() {
	p.state = StateAwaitingBoard
	p.surface.OnGameStarting()
	p.send(protocol.Message{Status: protocol.GetSpielfeld})
}

func (p *Proxy) handleBoard(payload string) {
	b, err := board.Parse([]byte(payload), p.decks)
	if err != nil {
		if errors.Is(err, deck.ErrNotFound) {
			// a missing deck will not appear on retry
			p.logger.Error("board references uninstalled deck", zap.Error(err))
			p.failBoard(err)
			return
		}
		p.boardFailures++
		p.logger.Warn("unparseable board payload",
			zap.Int("attempt", p.boardFailures),
			zap.Error(err),
		)
		if p.boardFailures >= maxFetchAttempts {
			p.failBoard(err)
			return
		}
		p.send(protocol.Message{Status: protocol.GetSpielfeld})
		return
	}

	p.board = b
	p.state = StateBoardLocked
	p.surface.OnBoard(b)
	p.send(protocol.Message{Status: protocol.OkSpielfeld})
}

func (p *Proxy) failBoard(err error) {
	p.state = StateGameOver
	p.send(protocol.Message{Status: protocol.Bye})
	p.closeChannel()
	p.surface.OnBoardFailed(err)
}

func (p *Proxy) handleTurn(name string) {
	if p.board == nil {
		p.logger.Warn("turn announcement before board")
		return
	}

	// a completed round is covered again before the next one starts; pairs
	// stay revealed because they are already permanent
	if prev := p.player[p.active]; prev != nil && prev.moves > 0 && prev.moves%2 == 0 {
		p.board.ResetTransient()
	}

	yours := name == p.name
	if yours {
		p.board.Unlock()
		p.state = StateBoardUnlocked
	} else {
		p.board.Lock()
		p.state = StateBoardLocked
	}
	p.active = name
	p.surface.OnTurn(name, yours)
}

func (p *Proxy) handleWait() {
	if p.board != nil {
		p.board.Lock()
	}
	p.state = StateBoardLocked
	p.surface.OnWait()
}

// handleMove applies a relayed move to the local board copy. A move that is
// invalid here means the boards have diverged, which is fatal: the proxy
// terminates the session rather than attempting repair.
func (p *Proxy) handleMove(payload string) {
	cell, err := strconv.Atoi(payload)
	if err != nil || p.board == nil || !p.board.TryReveal(cell, true) {
		p.logger.Error("relayed move invalid on local board",
			zap.String("payload", payload),
			zap.String("active", p.active),
		)
		p.state = StateDisconnected
		p.closeChannel()
		p.surface.OnDisconnected(ErrDesync)
		return
	}

	tally := p.player[p.active]
	if tally == nil {
		tally = &counters{}
		p.player[p.active] = tally
	}
	tally.moves++
	p.board.Reveal(cell)
	p.surface.OnMove(cell)

	if tally.moves%2 != 0 {
		tally.first = cell
		p.send(protocol.Message{Status: protocol.OkZug})
		return
	}

	tally.second = cell
	if p.board.CheckPair(tally.first, tally.second) {
		tally.pairs++
	}

	// give the player time to look at the pair before the round is
	// acknowledged and the cards may be covered again; only this client's
	// acknowledgment is delayed, nothing else blocks
	pause := p.board.Pause()
	time.AfterFunc(pause, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.state == StateBoardLocked || p.state == StateBoardUnlocked {
			p.send(protocol.Message{Status: protocol.OkZug})
		}
	})
}

func (p *Proxy) handleGameOver() {
	p.send(protocol.Message{Status: protocol.Bye})
	result := p.computeResult()
	p.state = StateGameOver
	p.closeChannel()

	p.recordOutcome(result)
	p.surface.OnGameOver(result)
}

// computeResult determines the winner set: every player holding the maximum
// pair count. A single winner is a clean win, several are a tie.
func (p *Proxy) computeResult() Result {
	best := -1
	for _, tally := range p.player {
		if tally.pairs > best {
			best = tally.pairs
		}
	}

	var winners []string
	localWon := false
	for _, name := range p.roster {
		tally := p.player[name]
		if tally != nil && tally.pairs == best {
			winners = append(winners, name)
			if name == p.name {
				localWon = true
			}
		}
	}

	category := stats.Lost
	if localWon && len(winners) == 1 {
		category = stats.Won
	} else if localWon {
		category = stats.Tied
	}

	return Result{Winners: winners, Pairs: best, Category: category}
}

func (p *Proxy) recordOutcome(result Result) {
	tally := p.player[p.name]
	if tally == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	err := p.recorder.RecordOutcome(ctx, stats.Outcome{
		Player:   p.name,
		Moves:    tally.moves,
		Pairs:    tally.pairs,
		Category: result.Category,
	})
	if err != nil {
		p.logger.Warn("recording outcome failed", zap.Error(err))
	}
}

func (p *Proxy) send(msg protocol.Message) {
	if p.ch == nil {
		return
	}
	if err := p.ch.Send(msg); err != nil {
		p.logger.Debug("send failed",
			zap.String("status", msg.Status.String()),
			zap.Error(err),
		)
	}
}

func (p *Proxy) closeChannel() {
	if p.ch != nil {
		p.ch.Close()
	}
}
