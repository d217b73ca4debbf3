package server

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/audreyd114/B438-Checkers/archive"
	"github.com/audreyd114/B438-Checkers/game"
	"github.com/audreyd114/B438-Checkers/protocol"
)

// inbound is a decoded frame tagged with the connection it came from.
type inbound struct {
	peer *peer
	env  protocol.Envelope
}

type joinRequest struct {
	peer  *peer
	reply chan bool
}

// match owns one game. Its run loop is the single serialization point for
// the session: joins, moves, resync requests, heartbeats and departures
// all funnel through its channels, so no two moves are ever validated
// concurrently against the same board.
type match struct {
	id      string
	srv     *Server
	session *game.Session
	players map[game.Player]*peer

	join    chan joinRequest
	inbox   chan inbound
	leave   chan *peer
	inspect chan chan protocol.Snapshot

	// done is closed when the run loop exits, releasing any connection
	// handler still waiting to report its departure on leave.
	done chan struct{}
}

func newMatch(id string, srv *Server) *match {
	return &match{
		id:      id,
		srv:     srv,
		players: make(map[game.Player]*peer),
		join:    make(chan joinRequest),
		inbox:   make(chan inbound, peerQueueSize),
		leave:   make(chan *peer),
		inspect: make(chan chan protocol.Snapshot),
		done:    make(chan struct{}),
	}
}

func (m *match) run() {
	defer m.srv.removeMatch(m.id)
	defer close(m.done)

	hb := time.NewTicker(m.srv.cfg.HeartbeatInterval)
	defer hb.Stop()

	for {
		select {
		case req := <-m.join:
			req.reply <- m.handleJoin(req.peer)

		case in := <-m.inbox:
			if !m.member(in.peer) {
				// The sender already left; its pending requests are
				// discarded, not queued.
				continue
			}
			m.handleFrame(in)

		case p := <-m.leave:
			if m.handleLeave(p) {
				return
			}

		case reply := <-m.inspect:
			reply <- m.snapshot()

		case <-hb.C:
			if m.pulse() {
				return
			}
		}
	}
}

func (m *match) member(p *peer) bool {
	for _, q := range m.players {
		if q == p {
			return true
		}
	}
	return false
}

// handleJoin assigns RED to the first player, BLACK to the second, and
// starts the session the moment the second player is in. Anyone else is
// turned away.
func (m *match) handleJoin(p *peer) bool {
	if m.session != nil && m.session.Status.Terminal() {
		return false
	}
	switch {
	case m.players[game.Red] == nil:
		p.color = game.Red
	case m.players[game.Black] == nil && m.players[game.Red].id != p.id:
		p.color = game.Black
	default:
		return false
	}
	m.players[p.color] = p

	p.send(protocol.KindWelcome, protocol.Welcome{
		PlayerID: p.id,
		Color:    p.color,
		GameID:   m.id,
		Snapshot: m.snapshot(),
	})
	log.Info().Str("gameID", m.id).Str("playerID", p.id).Str("color", string(p.color)).Msg("Player joined")

	if m.players[game.Red] != nil && m.players[game.Black] != nil && m.session == nil {
		m.session = game.NewSession(m.id, m.players[game.Red].id, m.players[game.Black].id)
		log.Info().Str("gameID", m.id).Str("red", m.session.RedID).Str("black", m.session.BlackID).Msg("Session started")
		m.broadcast(protocol.KindSnapshot, m.snapshot())
	}
	return true
}

func (m *match) handleFrame(in inbound) {
	switch in.env.Type {
	case protocol.KindMove:
		var req protocol.MoveRequest
		if err := protocol.Decode(in.env, &req); err != nil {
			log.Error().Err(err).Str("gameID", m.id).Msg("Bad move payload")
			return
		}
		m.handleMove(in.peer, req)

	case protocol.KindResync:
		// Self-healing path: the client's mirror diverged, send the
		// ground truth.
		log.Info().Str("gameID", m.id).Str("playerID", in.peer.id).Msg("Resync requested")
		in.peer.send(protocol.KindSnapshot, m.snapshot())

	case protocol.KindHeartbeat:
		var hb protocol.Heartbeat
		if err := protocol.Decode(in.env, &hb); err != nil {
			return
		}
		if hb.Echo {
			in.peer.missed = 0
			in.peer.rtt = time.Duration(time.Now().UnixNano() - hb.Nanos)
		} else {
			hb.Echo = true
			in.peer.send(protocol.KindHeartbeat, hb)
		}

	default:
		log.Warn().Str("gameID", m.id).Str("kind", string(in.env.Type)).Msg("Unexpected frame kind")
	}
}

func (m *match) handleMove(p *peer, req protocol.MoveRequest) {
	if m.session == nil {
		p.send(protocol.KindRejected, protocol.Rejected{
			Reason: game.NotYourTurn,
			Detail: "waiting for opponent",
		})
		return
	}
	move := req.Move
	move.By = p.color

	after, err := m.session.Submit(p.color, move)
	if err != nil {
		reason := game.ReasonOf(err)
		log.Info().Str("gameID", m.id).Str("playerID", p.id).Str("move", move.String()).
			Str("reason", string(reason)).Msg("Move rejected")
		p.send(protocol.KindRejected, protocol.Rejected{
			Reason: reason,
			Detail: err.Error(),
			Seq:    m.session.Seq,
		})
		return
	}

	delta := protocol.Delta{
		Changes:  game.ChangesFor(move, after),
		Checksum: after.Checksum(),
		Seq:      m.session.Seq,
		Turn:     m.session.Turn,
	}
	m.broadcast(protocol.KindDelta, delta)
	log.Info().Str("gameID", m.id).Str("playerID", p.id).Str("move", move.String()).
		Uint64("seq", m.session.Seq).Msg("Move accepted")

	if m.session.Status.Terminal() {
		m.finish()
	}
}

// handleLeave removes a departed peer. Mid-game this aborts the session
// and notifies the survivor. Returns true when the match loop should end.
func (m *match) handleLeave(p *peer) bool {
	if !m.member(p) {
		return false
	}
	delete(m.players, p.color)
	close(p.out)
	p.close()
	log.Info().Str("gameID", m.id).Str("playerID", p.id).Msg("Player left")

	if m.session != nil && !m.session.Status.Terminal() {
		m.session.Abort()
		m.broadcast(protocol.KindGameOver, protocol.GameOver{
			Status: game.StatusAborted,
			Seq:    m.session.Seq,
		})
		m.archiveResult()
	}
	if len(m.players) == 0 {
		return true
	}
	return false
}

// pulse runs every heartbeat interval: reap peers whose echoes lapsed past
// the missed limit, then probe the rest. Returns true when the match ended.
func (m *match) pulse() bool {
	now := time.Now().UnixNano()
	for _, p := range m.players {
		if p.missed >= m.srv.cfg.MissedHeartbeatLimit {
			log.Warn().Str("gameID", m.id).Str("playerID", p.id).Int("missed", p.missed).
				Msg("Heartbeat timeout, treating as disconnect")
			if m.handleLeave(p) {
				return true
			}
			continue
		}
		p.missed++
		p.send(protocol.KindHeartbeat, protocol.Heartbeat{Nanos: now})
	}
	return false
}

// finish announces the terminal status and archives the result. Peers stay
// registered until their sockets close, so the loop ends via handleLeave.
func (m *match) finish() {
	m.broadcast(protocol.KindGameOver, protocol.GameOver{
		Status: m.session.Status,
		Winner: m.session.Winner(),
		Seq:    m.session.Seq,
	})
	log.Info().Str("gameID", m.id).Str("status", string(m.session.Status)).
		Str("winner", string(m.session.Winner())).Msg("Game over")
	m.archiveResult()
}

func (m *match) archiveResult() {
	if m.srv.store == nil || m.session == nil {
		return
	}
	r := &archive.Result{
		GameID:     m.id,
		Status:     m.session.Status,
		Winner:     m.session.Winner(),
		Moves:      m.session.MoveCount,
		Duration:   m.session.UpdatedAt.Sub(m.session.CreatedAt),
		FinishedAt: m.session.UpdatedAt,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := m.srv.store.SaveResult(ctx, r); err != nil {
			log.Error().Err(err).Str("gameID", r.GameID).Msg("Failed to archive result")
		}
	}()
}

func (m *match) snapshot() protocol.Snapshot {
	if m.session == nil {
		b := game.NewBoard()
		return protocol.Snapshot{
			Board:    b,
			Checksum: b.Checksum(),
			Turn:     game.Red,
			Status:   game.StatusInProgress,
		}
	}
	return protocol.Snapshot{
		Board:    m.session.Board,
		Checksum: m.session.Board.Checksum(),
		Seq:      m.session.Seq,
		Turn:     m.session.Turn,
		Status:   m.session.Status,
	}
}

func (m *match) broadcast(kind protocol.Kind, payload any) {
	for _, p := range m.players {
		p.send(kind, payload)
	}
}
