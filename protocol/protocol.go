// Package protocol defines the wire messages exchanged between the
// checkers server and its clients. Every websocket text frame carries one
// JSON envelope: {"type": <kind>, "data": <payload>}.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/audreyd114/B438-Checkers/game"
)

// Kind discriminates envelope payloads.
type Kind string

const (
	KindHello     Kind = "hello"
	KindWelcome   Kind = "welcome"
	KindMove      Kind = "move"
	KindRejected  Kind = "rejected"
	KindDelta     Kind = "delta"
	KindSnapshot  Kind = "snapshot"
	KindResync    Kind = "resync"
	KindHeartbeat Kind = "heartbeat"
	KindGameOver  Kind = "game_over"
	KindBye       Kind = "bye"
)

// Envelope is the single frame format on the wire.
type Envelope struct {
	Type Kind            `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Hello is the first message a client sends after connecting.
type Hello struct {
	PlayerID string `json:"playerId"`
}

// Welcome assigns the connecting player its side and carries the initial
// full snapshot.
type Welcome struct {
	PlayerID string      `json:"playerId"`
	Color    game.Player `json:"color"`
	GameID   string      `json:"gameId"`
	Snapshot Snapshot    `json:"snapshot"`
}

// MoveRequest submits a move. Seq is the last state sequence number the
// client has seen, so stale requests are detectable server-side.
type MoveRequest struct {
	Move game.Move `json:"move"`
	Seq  uint64    `json:"seq"`
}

// Rejected reports an illegal move back to its sender. The turn is
// unchanged and the game continues.
type Rejected struct {
	Reason game.RejectReason `json:"reason"`
	Detail string            `json:"detail,omitempty"`
	Seq    uint64            `json:"seq"`
}

// Delta is the common-case state update after an accepted move: only the
// changed squares, plus the checksum of the full resulting board so the
// receiver can verify its mirror before trusting it.
type Delta struct {
	Changes  []game.SquareChange `json:"changes"`
	Checksum uint64              `json:"checksum"`
	Seq      uint64              `json:"seq"`
	Turn     game.Player         `json:"turn"`
}

// Snapshot is the full 64-square occupancy, sent on connect and whenever a
// client reports a checksum mismatch.
type Snapshot struct {
	Board    game.Board  `json:"board"`
	Checksum uint64      `json:"checksum"`
	Seq      uint64      `json:"seq"`
	Turn     game.Player `json:"turn"`
	Status   game.Status `json:"status"`
}

// Resync asks the server for a full snapshot after a checksum mismatch or
// sequence gap. Have is the last sequence number the client trusts.
type Resync struct {
	Have uint64 `json:"have"`
}

// Heartbeat measures round-trip latency. The receiver echoes the message
// back unchanged except for Echo=true; the original sender computes RTT
// from Nanos.
type Heartbeat struct {
	Nanos int64 `json:"nanos"`
	Echo  bool  `json:"echo,omitempty"`
}

// GameOver announces a terminal status to both clients.
type GameOver struct {
	Status game.Status `json:"status"`
	Winner game.Player `json:"winner,omitempty"`
	Seq    uint64      `json:"seq"`
}

// Pack wraps a payload into an envelope frame ready for the wire.
func Pack(kind Kind, payload any) ([]byte, error) {
	env := Envelope{Type: kind}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", kind, err)
		}
		env.Data = data
	}
	return json.Marshal(env)
}

// Unpack parses a frame into its envelope. Payload decoding is left to the
// caller via Decode once the kind is known.
func Unpack(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("malformed envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("envelope missing type")
	}
	return env, nil
}

// Decode unmarshals the envelope payload into dst.
func Decode(env Envelope, dst any) error {
	if len(env.Data) == 0 {
		return fmt.Errorf("%s envelope has no data", env.Type)
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		return fmt.Errorf("decode %s payload: %w", env.Type, err)
	}
	return nil
}
