package server

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/audreyd114/B438-Checkers/game"
	"github.com/audreyd114/B438-Checkers/protocol"
)

const peerQueueSize = 32

// peer is one connected player: the websocket plus its outbound queue.
// missed and rtt are heartbeat bookkeeping owned exclusively by the match
// loop; nothing else may touch them.
type peer struct {
	id    string
	color game.Player
	conn  *websocket.Conn
	out   chan []byte

	writeTimeout time.Duration

	missed int
	rtt    time.Duration

	closeOnce sync.Once
}

func newPeer(id string, conn *websocket.Conn, writeTimeout time.Duration) *peer {
	return &peer{
		id:           id,
		conn:         conn,
		out:          make(chan []byte, peerQueueSize),
		writeTimeout: writeTimeout,
	}
}

// send queues a frame for the write pump. A full queue means the client
// stopped draining; the frame is dropped and the heartbeat timeout will
// reap the connection shortly after.
func (p *peer) send(kind protocol.Kind, payload any) {
	frame, err := protocol.Pack(kind, payload)
	if err != nil {
		log.Error().Err(err).Str("playerID", p.id).Str("kind", string(kind)).Msg("Failed to pack frame")
		return
	}
	select {
	case p.out <- frame:
	default:
		log.Warn().Str("playerID", p.id).Str("kind", string(kind)).Msg("Outbound queue full, dropping frame")
	}
}

// writePump drains the outbound queue onto the socket. It exits when the
// queue is closed or a write fails.
func (p *peer) writePump() {
	for frame := range p.out {
		p.conn.SetWriteDeadline(time.Now().Add(p.writeTimeout))
		if err := p.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			log.Error().Err(err).Str("playerID", p.id).Msg("Write failed, closing connection")
			p.close()
			return
		}
	}
}

// readPump decodes inbound frames and forwards them to the match loop.
// It returns when the connection dies or the client says bye; the caller
// reports the departure to the match.
func (p *peer) readPump(m *match) {
	for {
		_, frame, err := p.conn.ReadMessage()
		if err != nil {
			log.Info().Err(err).Str("playerID", p.id).Str("gameID", m.id).Msg("Connection closed")
			return
		}
		env, err := protocol.Unpack(frame)
		if err != nil {
			// Protocol error: malformed frame. Drop the connection.
			log.Error().Err(err).Str("playerID", p.id).Msg("Malformed frame")
			return
		}
		if env.Type == protocol.KindBye {
			return
		}
		m.inbox <- inbound{peer: p, env: env}
	}
}

func (p *peer) close() {
	p.closeOnce.Do(func() {
		p.conn.Close()
	})
}
