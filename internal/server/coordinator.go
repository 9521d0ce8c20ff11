// Package server implements the authoritative session coordinator: lobby
// arbitration, turn order, move relay and completion detection for one game,
// plus the websocket listener remote players join through.
package server

import (
	"fmt"
	"math/rand"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/sergeijochim/BlueMemory/internal/board"
	"github.com/sergeijochim/BlueMemory/internal/channel"
	"github.com/sergeijochim/BlueMemory/internal/protocol"
	"go.uber.org/zap"
)

// Player count bounds for one session.
const (
	MinPlayers = 1
	MaxPlayers = 6
)

const eventQueueSize = 1024

// State is the lifecycle phase of a coordinator.
type State int

const (
	StateAwaitingPlayers State = iota
	StateInProgress
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateAwaitingPlayers:
		return "AWAITING_PLAYERS"
	case StateInProgress:
		return "IN_PROGRESS"
	case StateFinished:
		return "FINISHED"
	default:
		return "UNKNOWN"
	}
}

// connection is one player slot. Until HELO is accepted it carries a
// provisional name that can never collide with a real player name.
type connection struct {
	name  string
	named bool
	ch    channel.Channel
}

type event struct {
	conn   *connection
	msg    protocol.Message
	attach bool
	closed bool
	err    error
}

type startRequest struct {
	resp chan error
}

// Coordinator owns the canonical board and the ordered player list for one
// session. All state mutations happen on a single event loop; channels only
// produce events, so concurrent inbound messages from different connections
// are serialized into one consistent order. Index 0 of the connection list is
// always the host's own local player.
type Coordinator struct {
	id     string
	logger *zap.Logger
	board  *board.Board

	events chan event
	starts chan startRequest
	aborts chan struct{}
	done   chan struct{}

	mu          sync.RWMutex
	state       State
	connections []*connection

	active       int
	boardAcks    int
	rateAnnounce bool // set once the first RATE broadcast went out
	moveAcks     int
	moves        int
	pendingFirst int
}

// New creates a coordinator for the given board and starts its event loop.
func New(b *board.Board, logger *zap.Logger) *Coordinator {
	id := uuid.NewString()
	c := &Coordinator{
		id:           id,
		logger:       logger.With(zap.String("session_id", id)),
		board:        b,
		events:       make(chan event, eventQueueSize),
		starts:       make(chan startRequest),
		aborts:       make(chan struct{}, 1),
		done:         make(chan struct{}),
		state:        StateAwaitingPlayers,
		pendingFirst: -1,
	}
	go c.loop()
	return c
}

// ID returns the unique session identifier.
func (c *Coordinator) ID() string {
	return c.id
}

// AttachLocal creates the host's own player slot at index 0 and returns the
// client-side endpoint its proxy connects through.
func (c *Coordinator) AttachLocal() *channel.Local {
	clientEnd, serverEnd := channel.NewLocalPair()
	conn := &connection{name: provisionalName(), ch: serverEnd}
	serverEnd.Bind(connHandler{c: c, conn: conn})
	c.post(event{conn: conn, attach: true})
	return clientEnd
}

// Accept registers a newly connected remote stream as a player slot. The
// coordinator closes it again if the session is full or already started.
func (c *Coordinator) Accept(stream channel.MessageStream) {
	conn := &connection{name: provisionalName()}
	conn.ch = channel.NewRemote(stream, connHandler{c: c, conn: conn}, c.logger)
	c.post(event{conn: conn, attach: true})
}

// StartGame stops accepting joins, announces the start to every player and
// begins the turn cycle once all boards are acknowledged.
func (c *Coordinator) StartGame() error {
	req := startRequest{resp: make(chan error, 1)}
	select {
	case c.starts <- req:
		return <-req.resp
	case <-c.done:
		return fmt.Errorf("session already over")
	}
}

// Abort force-closes every connection. Used for non-recoverable errors and
// host shutdown.
func (c *Coordinator) Abort() {
	select {
	case c.aborts <- struct{}{}:
	case <-c.done:
	}
}

// State returns the coordinator's lifecycle phase.
func (c *Coordinator) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Accepting reports whether new joins are currently admitted.
func (c *Coordinator) Accepting() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state == StateAwaitingPlayers && len(c.connections) < MaxPlayers
}

// Roster returns the named players in turn order.
func (c *Coordinator) Roster() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rosterLocked()
}

// Done is closed when the session is over and the loop has exited.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

func (c *Coordinator) rosterLocked() []string {
	roster := make([]string, 0, len(c.connections))
	for _, conn := range c.connections {
		if conn.named {
			roster = append(roster, conn.name)
		}
	}
	return roster
}

func (c *Coordinator) post(e event) {
	select {
	case c.events <- e:
	case <-c.done:
	}
}

func (c *Coordinator) loop() {
	defer close(c.done)
	for {
		select {
		case e := <-c.events:
			if e.attach {
				c.onAttach(e.conn)
			} else if e.closed {
				c.onDisconnect(e.conn, e.err)
			} else {
				c.onMessage(e.conn, e.msg)
			}
		case req := <-c.starts:
			req.resp <- c.onStart()
		case <-c.aborts:
			c.onAbort()
			return
		}
		if c.State() == StateFinished {
			return
		}
	}
}

func (c *Coordinator) onAttach(conn *connection) {
	c.mu.Lock()
	if c.state != StateAwaitingPlayers || len(c.connections) >= MaxPlayers {
		c.mu.Unlock()
		c.logger.Info("join rejected, session closed or full")
		conn.ch.Close()
		return
	}
	c.connections = append(c.connections, conn)
	count := len(c.connections)
	c.mu.Unlock()

	c.logger.Info("connection attached", zap.Int("connections", count))
}

func (c *Coordinator) onMessage(conn *connection, msg protocol.Message) {
	if c.indexOf(conn) < 0 {
		// late message from a removed connection
		return
	}

	switch msg.Status {
	case protocol.Helo:
		c.acceptJoin(conn, msg.Payload)
	case protocol.GetLobby:
		c.sendLobby(conn)
	case protocol.OkLobby:
		// roster delivery needs no server-side bookkeeping
	case protocol.GetSpielfeld:
		c.sendBoard(conn)
	case protocol.OkSpielfeld:
		c.onBoardAck()
	case protocol.Zug:
		c.onMove(msg.Payload)
	case protocol.OkZug:
		c.onMoveAck()
	case protocol.Bye:
		c.onDisconnect(conn, nil)
	default:
		c.logger.Warn("unexpected status from client",
			zap.String("status", msg.Status.String()),
			zap.String("player", conn.name),
		)
	}
}

// acceptJoin binds a player name to a connection, rejecting names already in
// use, and announces the newcomer to everyone else.
func (c *Coordinator) acceptJoin(conn *connection, name string) {
	if name == "" || c.nameTaken(name) {
		c.logger.Info("join rejected, name taken", zap.String("player", name))
		c.send(conn, protocol.Message{Status: protocol.FehlerHelo})
		return
	}

	c.mu.Lock()
	conn.name = name
	conn.named = true
	c.mu.Unlock()

	c.send(conn, protocol.Message{Status: protocol.Hello})
	c.broadcastExcept(conn, protocol.Message{Status: protocol.PlayerJoined, Payload: name})
	c.logger.Info("player joined", zap.String("player", name))
}

func (c *Coordinator) nameTaken(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, conn := range c.connections {
		if conn.named && conn.name == name {
			return true
		}
	}
	return false
}

func (c *Coordinator) sendLobby(conn *connection) {
	msg, err := protocol.EncodeLobby(c.Roster())
	if err != nil {
		c.logger.Error("encode lobby failed", zap.Error(err))
		return
	}
	c.send(conn, msg)
}

func (c *Coordinator) sendBoard(conn *connection) {
	data, err := c.board.Serialize()
	if err != nil {
		c.logger.Error("serialize board failed", zap.Error(err))
		return
	}
	c.send(conn, protocol.Message{Status: protocol.PostSpielfeld, Payload: string(data)})
}

func (c *Coordinator) onStart() error {
	c.mu.Lock()
	if c.state != StateAwaitingPlayers {
		c.mu.Unlock()
		return fmt.Errorf("game already started")
	}
	count := len(c.connections)
	if count < MinPlayers || count > MaxPlayers {
		c.mu.Unlock()
		return fmt.Errorf("need %d to %d players, have %d", MinPlayers, MaxPlayers, count)
	}
	c.state = StateInProgress
	c.active = rand.Intn(count)
	c.mu.Unlock()

	c.broadcast(protocol.Message{Status: protocol.Starten})
	c.logger.Info("game started",
		zap.Int("players", count),
		zap.String("first_player", c.activeName()),
	)
	return nil
}

// onBoardAck counts OK_SPIELFELD acknowledgments. Once every connection has
// the board, the first active player is announced. The gate fires exactly
// once.
func (c *Coordinator) onBoardAck() {
	c.boardAcks++
	if c.rateAnnounce || c.boardAcks < c.playerCount() {
		return
	}
	c.rateAnnounce = true

	name := c.activeName()
	c.broadcast(protocol.Message{Status: protocol.Rate, Payload: name})
	c.logger.Info("first turn drawn", zap.String("player", name))
}

// onMove relays a move to every connection. The coordinator does not validate
// the move against its board; it applies it only for pair and completion
// bookkeeping. Clients validate against their own copies.
func (c *Coordinator) onMove(payload string) {
	c.moves++
	c.moveAcks = 0

	if cell, err := strconv.Atoi(payload); err == nil {
		c.applyMove(cell)
	} else {
		c.logger.Warn("unparseable move relayed", zap.String("payload", payload))
	}

	c.broadcast(protocol.Message{Status: protocol.PostZug, Payload: payload})
}

func (c *Coordinator) applyMove(cell int) {
	if c.moves%2 == 1 {
		// first pick of a round: cover the previous round's cards unless
		// they were a pair
		if !c.board.LastPairFound() {
			c.board.ResetTransient()
		}
		c.board.Reveal(cell)
		c.pendingFirst = cell
		return
	}
	c.board.Reveal(cell)
	if c.pendingFirst >= 0 {
		c.board.CheckPair(c.pendingFirst, cell)
		c.pendingFirst = -1
	}
}

// onMoveAck counts OK_ZUG acknowledgments. Once every connection applied the
// move, either the game is complete and BEENDEN goes out, or the next active
// player is announced. The turn only passes on after the second move of a
// round that did not produce a pair.
func (c *Coordinator) onMoveAck() {
	c.moveAcks++
	if c.moveAcks < c.playerCount() {
		return
	}

	if c.board.IsComplete() {
		c.logger.Info("game complete")
		c.broadcast(protocol.Message{Status: protocol.Beenden})
		c.finish()
		return
	}

	if c.moves%2 == 0 && !c.board.LastPairFound() {
		c.mu.Lock()
		c.active = (c.active + 1) % len(c.connections)
		c.mu.Unlock()
	}
	c.broadcast(protocol.Message{Status: protocol.Rate, Payload: c.activeName()})
}

// onDisconnect removes a connection and tells everyone who left. Before the
// game starts the lobby simply shrinks and new joins are admitted again;
// mid-game a lost player is unrecoverable and the session is ended for all.
func (c *Coordinator) onDisconnect(conn *connection, err error) {
	idx := c.indexOf(conn)
	if idx < 0 {
		return
	}

	c.mu.Lock()
	c.connections = append(c.connections[:idx], c.connections[idx+1:]...)
	state := c.state
	remaining := len(c.connections)
	c.mu.Unlock()

	conn.ch.Close()
	c.logger.Info("player left",
		zap.String("player", conn.name),
		zap.Int("connections", remaining),
		zap.Error(err),
	)

	if conn.named {
		c.broadcast(protocol.Message{Status: protocol.PlayerLeft, Payload: conn.name})
	}

	if state == StateInProgress {
		// a mid-game disconnect is terminal for the whole session
		c.logger.Warn("player lost mid-game, ending session", zap.String("player", conn.name))
		c.broadcast(protocol.Message{Status: protocol.Beenden})
		c.finish()
		return
	}

	if remaining == 0 && state != StateAwaitingPlayers {
		c.finish()
	}
}

func (c *Coordinator) onAbort() {
	c.logger.Warn("session aborted, closing all connections")
	c.mu.Lock()
	conns := c.connections
	c.connections = nil
	c.state = StateFinished
	c.mu.Unlock()

	for _, conn := range conns {
		conn.ch.Close()
	}
}

func (c *Coordinator) finish() {
	c.mu.Lock()
	c.state = StateFinished
	c.mu.Unlock()
}

func (c *Coordinator) playerCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.connections)
}

func (c *Coordinator) activeName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.active < 0 || c.active >= len(c.connections) {
		return ""
	}
	return c.connections[c.active].name
}

func (c *Coordinator) indexOf(conn *connection) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i, candidate := range c.connections {
		if candidate == conn {
			return i
		}
	}
	return -1
}

func (c *Coordinator) send(conn *connection, msg protocol.Message) {
	if err := conn.ch.Send(msg); err != nil {
		c.logger.Debug("send failed",
			zap.String("player", conn.name),
			zap.String("status", msg.Status.String()),
			zap.Error(err),
		)
	}
}

func (c *Coordinator) broadcast(msg protocol.Message) {
	c.mu.RLock()
	conns := make([]*connection, len(c.connections))
	copy(conns, c.connections)
	c.mu.RUnlock()

	for _, conn := range conns {
		c.send(conn, msg)
	}
}

func (c *Coordinator) broadcastExcept(skip *connection, msg protocol.Message) {
	c.mu.RLock()
	conns := make([]*connection, len(c.connections))
	copy(conns, c.connections)
	c.mu.RUnlock()

	for _, conn := range conns {
		if conn != skip {
			c.send(conn, msg)
		}
	}
}

// connHandler funnels one channel's inbound events into the coordinator's
// event loop. Channels never touch coordinator state directly.
type connHandler struct {
	c    *Coordinator
	conn *connection
}

func (h connHandler) OnMessage(msg protocol.Message) {
	h.c.post(event{conn: h.conn, msg: msg})
}

func (h connHandler) OnClosed(err error) {
	h.c.post(event{conn: h.conn, closed: true, err: err})
}

func provisionalName() string {
	return "pending-" + uuid.NewString()
}
