// Package client maintains a read-only mirror of a checkers game hosted by
// the server. It owns the connection, applies state deltas after verifying
// their checksums, and heals divergence by requesting full snapshots. A
// front-end renders the mirror and submits moves; it never mutates state.
package client

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/audreyd114/B438-Checkers/game"
	"github.com/audreyd114/B438-Checkers/protocol"
)

// StateChange is delivered to the OnStateChanged callback after every
// applied snapshot or delta and when the game ends.
type StateChange struct {
	Board  game.Board
	Seq    uint64
	Turn   game.Player
	Status game.Status
	Winner game.Player
}

// Options configures Dial. All callbacks are optional and are invoked
// from the client's read goroutine; keep them fast.
type Options struct {
	PlayerID string
	// OnStateChanged fires whenever the mirror changes.
	OnStateChanged func(StateChange)
	// OnRejected fires when the server refuses one of our moves.
	OnRejected func(reason game.RejectReason, detail string)

	// HeartbeatInterval must match the server's; used for our own RTT
	// probes and the silence threshold. Defaults to 2s.
	HeartbeatInterval time.Duration
	// MissedHeartbeatLimit heartbeat intervals of silence mark the
	// session dead. Defaults to 3.
	MissedHeartbeatLimit int
}

var ErrGameFull = errors.New("game is full or already over")

// Client is the client side of one game session.
type Client struct {
	conn *websocket.Conn
	opts Options

	playerID string
	gameID   string
	color    game.Player

	mu     sync.Mutex
	board  game.Board
	seq    uint64
	turn   game.Player
	status game.Status
	winner game.Player
	rtt    time.Duration

	out       chan []byte
	closeOnce sync.Once
	closed    chan struct{}
}

// Dial connects, introduces the player and waits for the server's Welcome
// before returning. rawURL is the websocket endpoint, e.g.
// ws://host:8080/ws/game?game=kitchen.
func Dial(rawURL string, opts Options) (*Client, error) {
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = 2 * time.Second
	}
	if opts.MissedHeartbeatLimit <= 0 {
		opts.MissedHeartbeatLimit = 3
	}

	conn, _, err := websocket.DefaultDialer.Dial(rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rawURL, err)
	}

	c := &Client{
		conn:     conn,
		opts:     opts,
		playerID: opts.PlayerID,
		status:   game.StatusInProgress,
		out:      make(chan []byte, 32),
		closed:   make(chan struct{}),
	}

	frame, err := protocol.Pack(protocol.KindHello, protocol.Hello{PlayerID: opts.PlayerID})
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send hello: %w", err)
	}

	if err := c.awaitWelcome(); err != nil {
		conn.Close()
		return nil, err
	}

	go c.writePump()
	go c.readLoop()
	go c.heartbeatLoop()
	return c, nil
}

func (c *Client) awaitWelcome() error {
	c.conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	defer c.conn.SetReadDeadline(time.Time{})

	_, frame, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("await welcome: %w", err)
	}
	env, err := protocol.Unpack(frame)
	if err != nil {
		return err
	}
	if env.Type == protocol.KindBye {
		return ErrGameFull
	}
	if env.Type != protocol.KindWelcome {
		return fmt.Errorf("expected welcome, got %s", env.Type)
	}
	var welcome protocol.Welcome
	if err := protocol.Decode(env, &welcome); err != nil {
		return err
	}
	c.color = welcome.Color
	c.gameID = welcome.GameID
	c.commitSnapshot(welcome.Snapshot, false)
	return nil
}

// SubmitMove sends a move for validation. Rejections arrive asynchronously
// through OnRejected; only transport problems are returned here.
func (c *Client) SubmitMove(move game.Move) error {
	c.mu.Lock()
	move.By = c.color
	seq := c.seq
	c.mu.Unlock()

	frame, err := protocol.Pack(protocol.KindMove, protocol.MoveRequest{Move: move, Seq: seq})
	if err != nil {
		return err
	}
	return c.enqueue(frame)
}

// Board returns a snapshot copy of the mirrored board.
func (c *Client) Board() game.Board {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.board
}

// State returns the mirror as one consistent StateChange.
func (c *Client) State() StateChange {
	c.mu.Lock()
	defer c.mu.Unlock()
	return StateChange{Board: c.board, Seq: c.seq, Turn: c.turn, Status: c.status, Winner: c.winner}
}

// Color is the side the server assigned us.
func (c *Client) Color() game.Player { return c.color }

// GameID is the key of the joined game.
func (c *Client) GameID() string { return c.gameID }

// RTT is the most recent heartbeat round-trip measurement.
func (c *Client) RTT() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rtt
}

// Close says goodbye and tears the connection down.
func (c *Client) Close() error {
	if frame, err := protocol.Pack(protocol.KindBye, nil); err == nil {
		c.enqueue(frame)
	}
	time.Sleep(50 * time.Millisecond) // let the bye flush
	c.shutdown()
	return nil
}

func (c *Client) enqueue(frame []byte) error {
	select {
	case c.out <- frame:
		return nil
	case <-c.closed:
		return errors.New("connection closed")
	}
}

func (c *Client) shutdown() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.conn.Close()
	})
}

func (c *Client) writePump() {
	for {
		select {
		case frame := <-c.out:
			c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Error().Err(err).Str("gameID", c.gameID).Msg("Write failed")
				c.shutdown()
				return
			}
		case <-c.closed:
			return
		}
	}
}

// heartbeatLoop sends our own latency probes. The server echoes them back
// and readLoop records the round trip.
func (c *Client) heartbeatLoop() {
	t := time.NewTicker(c.opts.HeartbeatInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			frame, err := protocol.Pack(protocol.KindHeartbeat, protocol.Heartbeat{Nanos: time.Now().UnixNano()})
			if err == nil {
				c.enqueue(frame)
			}
		case <-c.closed:
			return
		}
	}
}

// readLoop is the mirror's only writer. The read deadline doubles as the
// silent-disconnect detector: the server heartbeats every interval, so a
// silence longer than limit+1 intervals means the transport is gone.
func (c *Client) readLoop() {
	silence := c.opts.HeartbeatInterval * time.Duration(c.opts.MissedHeartbeatLimit+1)
	for {
		c.conn.SetReadDeadline(time.Now().Add(silence))
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.closed:
			default:
				log.Error().Err(err).Str("gameID", c.gameID).Msg("Transport failure")
				c.abortLocal()
			}
			c.shutdown()
			return
		}
		env, err := protocol.Unpack(frame)
		if err != nil {
			log.Error().Err(err).Str("gameID", c.gameID).Msg("Malformed frame from server")
			continue
		}
		c.handle(env)
	}
}

func (c *Client) handle(env protocol.Envelope) {
	switch env.Type {
	case protocol.KindSnapshot:
		var snap protocol.Snapshot
		if err := protocol.Decode(env, &snap); err != nil {
			log.Error().Err(err).Msg("Bad snapshot payload")
			return
		}
		c.commitSnapshot(snap, true)

	case protocol.KindDelta:
		var delta protocol.Delta
		if err := protocol.Decode(env, &delta); err != nil {
			log.Error().Err(err).Msg("Bad delta payload")
			return
		}
		c.applyDelta(delta)

	case protocol.KindRejected:
		var rej protocol.Rejected
		if err := protocol.Decode(env, &rej); err != nil {
			return
		}
		log.Info().Str("gameID", c.gameID).Str("reason", string(rej.Reason)).Msg("Move rejected")
		if c.opts.OnRejected != nil {
			c.opts.OnRejected(rej.Reason, rej.Detail)
		}

	case protocol.KindHeartbeat:
		var hb protocol.Heartbeat
		if err := protocol.Decode(env, &hb); err != nil {
			return
		}
		if hb.Echo {
			c.mu.Lock()
			c.rtt = time.Duration(time.Now().UnixNano() - hb.Nanos)
			c.mu.Unlock()
		} else if frame, err := protocol.Pack(protocol.KindHeartbeat, protocol.Heartbeat{Nanos: hb.Nanos, Echo: true}); err == nil {
			c.enqueue(frame)
		}

	case protocol.KindGameOver:
		var over protocol.GameOver
		if err := protocol.Decode(env, &over); err != nil {
			return
		}
		c.mu.Lock()
		c.status = over.Status
		c.winner = over.Winner
		change := StateChange{Board: c.board, Seq: c.seq, Turn: c.turn, Status: c.status, Winner: c.winner}
		c.mu.Unlock()
		// acknowledge so the server can retire the session
		if frame, err := protocol.Pack(protocol.KindBye, nil); err == nil {
			c.enqueue(frame)
		}
		c.notify(change)

	case protocol.KindBye:
		c.shutdown()

	default:
		log.Warn().Str("kind", string(env.Type)).Msg("Unexpected frame kind from server")
	}
}

// applyDelta applies a delta to the mirror, trusting it only if our own
// checksum of the result matches the embedded one. A duplicate is dropped;
// a sequence gap or checksum mismatch triggers a snapshot resync, bounding
// the damage of a lost or corrupted update to one extra round trip.
func (c *Client) applyDelta(delta protocol.Delta) {
	c.mu.Lock()
	switch {
	case delta.Seq <= c.seq:
		c.mu.Unlock()
		log.Debug().Uint64("seq", delta.Seq).Msg("Duplicate delta dropped")
		return
	case delta.Seq != c.seq+1:
		c.mu.Unlock()
		log.Warn().Uint64("have", c.seq).Uint64("got", delta.Seq).Msg("Sequence gap, requesting snapshot")
		c.requestResync()
		return
	}
	next := c.board.ApplyChanges(delta.Changes)
	if next.Checksum() != delta.Checksum {
		c.mu.Unlock()
		log.Warn().Uint64("seq", delta.Seq).Msg("Checksum mismatch, requesting snapshot")
		c.requestResync()
		return
	}
	c.board = next
	c.seq = delta.Seq
	c.turn = delta.Turn
	change := StateChange{Board: c.board, Seq: c.seq, Turn: c.turn, Status: c.status, Winner: c.winner}
	c.mu.Unlock()
	c.notify(change)
}

func (c *Client) commitSnapshot(snap protocol.Snapshot, notify bool) {
	if snap.Board.Checksum() != snap.Checksum {
		// The authority disagrees with itself; log it and trust the board.
		log.Warn().Str("gameID", c.gameID).Msg("Snapshot checksum mismatch")
	}
	c.mu.Lock()
	c.board = snap.Board
	c.seq = snap.Seq
	c.turn = snap.Turn
	c.status = snap.Status
	change := StateChange{Board: c.board, Seq: c.seq, Turn: c.turn, Status: c.status, Winner: c.winner}
	c.mu.Unlock()
	if notify {
		c.notify(change)
	}
}

func (c *Client) requestResync() {
	c.mu.Lock()
	have := c.seq
	c.mu.Unlock()
	if frame, err := protocol.Pack(protocol.KindResync, protocol.Resync{Have: have}); err == nil {
		c.enqueue(frame)
	}
}

func (c *Client) abortLocal() {
	c.mu.Lock()
	if c.status.Terminal() {
		c.mu.Unlock()
		return
	}
	c.status = game.StatusAborted
	change := StateChange{Board: c.board, Seq: c.seq, Turn: c.turn, Status: c.status}
	c.mu.Unlock()
	c.notify(change)
}

func (c *Client) notify(change StateChange) {
	if c.opts.OnStateChanged != nil {
		c.opts.OnStateChanged(change)
	}
}
