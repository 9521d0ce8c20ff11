package server

import (
	"encoding/json"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/sergeijochim/BlueMemory/internal/board"
	"github.com/sergeijochim/BlueMemory/internal/channel"
	"github.com/sergeijochim/BlueMemory/internal/deck"
	"github.com/sergeijochim/BlueMemory/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeDecks struct{}

func (fakeDecks) Resolve(name string) (*deck.Deck, error) {
	if name != "classic" {
		return nil, deck.ErrNotFound
	}
	return &deck.Deck{Name: name}, nil
}

// fixedBoard builds a board with a known card layout so pair outcomes are
// deterministic.
func fixedBoard(t *testing.T, cards []int) *board.Board {
	t.Helper()
	data, err := json.Marshal(protocol.BoardPayload{
		Dim:        len(cards),
		Deck:       "classic",
		Feld:       cards,
		FeldStatus: make([]int, len(cards)),
	})
	require.NoError(t, err)
	b, err := board.Parse(data, fakeDecks{})
	require.NoError(t, err)
	return b
}

// testClient is a remote player driven directly by the test.
type testClient struct {
	ch     channel.Channel
	msgs   chan protocol.Message
	closed chan error
}

func (tc *testClient) OnMessage(msg protocol.Message) { tc.msgs <- msg }
func (tc *testClient) OnClosed(err error)             { tc.closed <- err }

func (tc *testClient) send(t *testing.T, msg protocol.Message) {
	t.Helper()
	require.NoError(t, tc.ch.Send(msg))
}

func (tc *testClient) expect(t *testing.T, want protocol.Status) protocol.Message {
	t.Helper()
	select {
	case msg := <-tc.msgs:
		require.Equalf(t, want, msg.Status, "unexpected message %s", msg)
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", want)
		return protocol.Message{}
	}
}

func (tc *testClient) expectNothing(t *testing.T) {
	t.Helper()
	select {
	case msg := <-tc.msgs:
		t.Fatalf("unexpected message %s", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func (tc *testClient) waitClosed(t *testing.T) {
	t.Helper()
	select {
	case <-tc.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for close")
	}
}

// dial connects a remote test client to the coordinator over an in-process
// byte stream.
func dial(t *testing.T, c *Coordinator) *testClient {
	t.Helper()
	clientConn, serverConn := net.Pipe()
	tc := &testClient{
		msgs:   make(chan protocol.Message, 64),
		closed: make(chan error, 1),
	}
	tc.ch = channel.NewRemote(protocol.NewFramedStream(clientConn), tc, zap.NewNop())
	t.Cleanup(func() { tc.ch.Close() })
	c.Accept(protocol.NewFramedStream(serverConn))
	return tc
}

// join registers a player name and waits for admission.
func join(t *testing.T, c *Coordinator, name string) *testClient {
	t.Helper()
	tc := dial(t, c)
	tc.send(t, protocol.Message{Status: protocol.Helo, Payload: name})
	tc.expect(t, protocol.Hello)
	return tc
}

func newCoordinator(t *testing.T, cards []int) *Coordinator {
	t.Helper()
	c := New(fixedBoard(t, cards), zap.NewNop())
	t.Cleanup(c.Abort)
	return c
}

func waitForRoster(t *testing.T, c *Coordinator, want int) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for len(c.Roster()) != want {
		select {
		case <-deadline:
			t.Fatalf("roster never reached %d players, have %v", want, c.Roster())
		case <-time.After(time.Millisecond):
		}
	}
}

func TestJoinAndRoster(t *testing.T) {
	c := newCoordinator(t, []int{0, 1, 0, 1})

	alex := join(t, c, "Alex")
	waitForRoster(t, c, 1)

	bert := join(t, c, "Bert")
	msg := alex.expect(t, protocol.PlayerJoined)
	assert.Equal(t, "Bert", msg.Payload)

	assert.Equal(t, []string{"Alex", "Bert"}, c.Roster())

	bert.send(t, protocol.Message{Status: protocol.GetLobby})
	msg = bert.expect(t, protocol.PostLobby)
	roster, err := protocol.DecodeLobby(msg.Payload)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alex", "Bert"}, roster)
}

func TestJoinNameTaken(t *testing.T) {
	c := newCoordinator(t, []int{0, 1, 0, 1})

	alex := join(t, c, "Alex")
	waitForRoster(t, c, 1)

	impostor := dial(t, c)
	impostor.send(t, protocol.Message{Status: protocol.Helo, Payload: "Alex"})
	impostor.expect(t, protocol.FehlerHelo)

	assert.Equal(t, []string{"Alex"}, c.Roster())
	alex.expectNothing(t)

	// the rejected connection may try again with a different name
	impostor.send(t, protocol.Message{Status: protocol.Helo, Payload: "Bert"})
	impostor.expect(t, protocol.Hello)
	waitForRoster(t, c, 2)
}

func TestJoinEmptyNameRejected(t *testing.T) {
	c := newCoordinator(t, []int{0, 1, 0, 1})

	tc := dial(t, c)
	tc.send(t, protocol.Message{Status: protocol.Helo})
	tc.expect(t, protocol.FehlerHelo)
}

func TestJoinRejectedWhenFull(t *testing.T) {
	c := newCoordinator(t, []int{0, 1, 0, 1})

	for i := 0; i < MaxPlayers; i++ {
		join(t, c, "Player"+strconv.Itoa(i))
		// drain the join announcements so buffers stay clear
	}
	waitForRoster(t, c, MaxPlayers)
	assert.False(t, c.Accepting())

	extra := dial(t, c)
	extra.waitClosed(t)
}

func TestStartGameRequiresLobby(t *testing.T) {
	c := newCoordinator(t, []int{0, 1, 0, 1})
	assert.Error(t, c.StartGame(), "cannot start without players")

	join(t, c, "Alex")
	waitForRoster(t, c, 1)
	require.NoError(t, c.StartGame())
	assert.Error(t, c.StartGame(), "cannot start twice")
}

// startGame brings all clients through start, board fetch and acknowledgment,
// then returns the first announced active player name.
func startGame(t *testing.T, c *Coordinator, clients []*testClient) string {
	t.Helper()
	require.NoError(t, c.StartGame())
	for _, tc := range clients {
		tc.expect(t, protocol.Starten)
		tc.send(t, protocol.Message{Status: protocol.GetSpielfeld})
		tc.expect(t, protocol.PostSpielfeld)
	}
	for _, tc := range clients {
		tc.send(t, protocol.Message{Status: protocol.OkSpielfeld})
	}
	first := clients[0].expect(t, protocol.Rate).Payload
	for _, tc := range clients[1:] {
		assert.Equal(t, first, tc.expect(t, protocol.Rate).Payload)
	}
	return first
}

func TestBoardDeliveryAndFirstTurn(t *testing.T) {
	c := newCoordinator(t, []int{0, 1, 0, 1})

	alex := join(t, c, "Alex")
	waitForRoster(t, c, 1)
	bert := join(t, c, "Bert")
	alex.expect(t, protocol.PlayerJoined)
	waitForRoster(t, c, 2)

	require.NoError(t, c.StartGame())
	alex.expect(t, protocol.Starten)
	bert.expect(t, protocol.Starten)

	alex.send(t, protocol.Message{Status: protocol.GetSpielfeld})
	msg := alex.expect(t, protocol.PostSpielfeld)
	b, err := board.Parse([]byte(msg.Payload), fakeDecks{})
	require.NoError(t, err)
	assert.Equal(t, 4, b.Dim())

	// the first turn is announced only after every player acknowledged
	alex.send(t, protocol.Message{Status: protocol.OkSpielfeld})
	alex.expectNothing(t)
	bert.expectNothing(t)

	bert.send(t, protocol.Message{Status: protocol.OkSpielfeld})
	first := alex.expect(t, protocol.Rate).Payload
	assert.Equal(t, first, bert.expect(t, protocol.Rate).Payload)
	assert.Contains(t, []string{"Alex", "Bert"}, first)

	// stray acknowledgments must not announce a second first turn
	alex.send(t, protocol.Message{Status: protocol.OkSpielfeld})
	alex.expectNothing(t)
}

// relayMove sends one move from mover and collects the relayed announcement
// and acknowledgments from every client.
func relayMove(t *testing.T, clients []*testClient, mover *testClient, cell int) {
	t.Helper()
	payload := strconv.Itoa(cell)
	mover.send(t, protocol.Message{Status: protocol.Zug, Payload: payload})
	for _, tc := range clients {
		msg := tc.expect(t, protocol.PostZug)
		assert.Equal(t, payload, msg.Payload)
	}
	for _, tc := range clients {
		tc.send(t, protocol.Message{Status: protocol.OkZug})
	}
}

func expectTurn(t *testing.T, clients []*testClient) string {
	t.Helper()
	name := clients[0].expect(t, protocol.Rate).Payload
	for _, tc := range clients[1:] {
		assert.Equal(t, name, tc.expect(t, protocol.Rate).Payload)
	}
	return name
}

func TestTurnPassesOnMissedPair(t *testing.T) {
	c := newCoordinator(t, []int{0, 1, 0, 1})

	alex := join(t, c, "Alex")
	waitForRoster(t, c, 1)
	bert := join(t, c, "Bert")
	alex.expect(t, protocol.PlayerJoined)
	waitForRoster(t, c, 2)

	clients := []*testClient{alex, bert}
	byName := map[string]*testClient{"Alex": alex, "Bert": bert}

	first := startGame(t, c, clients)
	second := "Alex"
	if first == "Alex" {
		second = "Bert"
	}

	// first pick keeps the turn with the same player
	relayMove(t, clients, byName[first], 0)
	assert.Equal(t, first, expectTurn(t, clients))

	// missed pair passes the turn on
	relayMove(t, clients, byName[first], 1)
	assert.Equal(t, second, expectTurn(t, clients))

	// found pair keeps the turn
	relayMove(t, clients, byName[second], 0)
	assert.Equal(t, second, expectTurn(t, clients))
	relayMove(t, clients, byName[second], 2)
	assert.Equal(t, second, expectTurn(t, clients))
}

func TestTurnRotatesThroughFullLobby(t *testing.T) {
	cards := []int{0, 1, 2, 3, 4, 5, 0, 1, 2, 3, 4, 5}
	c := newCoordinator(t, cards)

	names := []string{"P0", "P1", "P2", "P3", "P4", "P5"}
	clients := make([]*testClient, 0, len(names))
	byName := make(map[string]*testClient, len(names))
	for i, name := range names {
		tc := join(t, c, name)
		waitForRoster(t, c, i+1)
		clients = append(clients, tc)
		byName[name] = tc
	}
	for i, tc := range clients {
		// every earlier player was told about each later join
		for j := i + 1; j < len(names); j++ {
			msg := tc.expect(t, protocol.PlayerJoined)
			assert.Equal(t, names[j], msg.Payload)
		}
	}

	indexOf := func(name string) int {
		for i, candidate := range names {
			if candidate == name {
				return i
			}
		}
		t.Fatalf("unknown player %q", name)
		return -1
	}

	active := startGame(t, c, clients)

	// two consecutive missed rounds each hand the turn to the next player in
	// join order, and never after the first pick of a round
	for round := 0; round < 2; round++ {
		relayMove(t, clients, byName[active], 2*round)
		assert.Equal(t, active, expectTurn(t, clients), "turn kept after first pick")

		relayMove(t, clients, byName[active], 2*round+1)
		next := names[(indexOf(active)+1)%len(names)]
		active = expectTurn(t, clients)
		assert.Equal(t, next, active, "missed pair advances by one")
	}
}

func TestGameCompletionBroadcastsEnd(t *testing.T) {
	c := newCoordinator(t, []int{0, 1, 0, 1})

	alex := join(t, c, "Alex")
	waitForRoster(t, c, 1)
	clients := []*testClient{alex}
	startGame(t, c, clients)

	relayMove(t, clients, alex, 0)
	expectTurn(t, clients)
	relayMove(t, clients, alex, 2)
	expectTurn(t, clients)
	relayMove(t, clients, alex, 1)
	expectTurn(t, clients)
	relayMove(t, clients, alex, 3)

	alex.expect(t, protocol.Beenden)
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("coordinator never finished")
	}
	assert.Equal(t, StateFinished, c.State())
}

func TestLobbyDisconnectShrinksRoster(t *testing.T) {
	c := newCoordinator(t, []int{0, 1, 0, 1})

	alex := join(t, c, "Alex")
	waitForRoster(t, c, 1)
	bert := join(t, c, "Bert")
	alex.expect(t, protocol.PlayerJoined)
	waitForRoster(t, c, 2)

	bert.send(t, protocol.Message{Status: protocol.Bye})
	msg := alex.expect(t, protocol.PlayerLeft)
	assert.Equal(t, "Bert", msg.Payload)
	waitForRoster(t, c, 1)

	// the freed slot can be taken again
	join(t, c, "Cora")
	msg = alex.expect(t, protocol.PlayerJoined)
	assert.Equal(t, "Cora", msg.Payload)
}

func TestMidGameDisconnectEndsSession(t *testing.T) {
	c := newCoordinator(t, []int{0, 1, 0, 1})

	alex := join(t, c, "Alex")
	waitForRoster(t, c, 1)
	bert := join(t, c, "Bert")
	alex.expect(t, protocol.PlayerJoined)
	waitForRoster(t, c, 2)

	startGame(t, c, []*testClient{alex, bert})

	require.NoError(t, bert.ch.Close())

	msg := alex.expect(t, protocol.PlayerLeft)
	assert.Equal(t, "Bert", msg.Payload)
	alex.expect(t, protocol.Beenden)

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("coordinator never finished")
	}
}

func TestJoinRejectedAfterStart(t *testing.T) {
	c := newCoordinator(t, []int{0, 1, 0, 1})

	join(t, c, "Alex")
	waitForRoster(t, c, 1)
	require.NoError(t, c.StartGame())
	assert.False(t, c.Accepting())

	late := dial(t, c)
	late.waitClosed(t)
}

func TestAbortClosesEverything(t *testing.T) {
	c := newCoordinator(t, []int{0, 1, 0, 1})

	alex := join(t, c, "Alex")
	waitForRoster(t, c, 1)

	c.Abort()
	alex.waitClosed(t)

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("coordinator never finished")
	}
}
