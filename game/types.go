package game

import (
	"errors"
	"fmt"
)

const BoardSize = 8

// Player identifies one of the two sides. RED starts on rows 0-2 and moves
// toward row 7, BLACK starts on rows 5-7 and moves toward row 0.
type Player string

const (
	Red   Player = "RED"
	Black Player = "BLACK"
)

func (p Player) Opponent() Player {
	if p == Red {
		return Black
	}
	return Red
}

func (p Player) Valid() bool {
	return p == Red || p == Black
}

// Piece is the occupancy of a single square.
type Piece uint8

const (
	Empty Piece = iota
	RedMan
	RedKing
	BlackMan
	BlackKing
)

// Owner returns the player owning the piece, or "" for an empty square.
func (pc Piece) Owner() Player {
	switch pc {
	case RedMan, RedKing:
		return Red
	case BlackMan, BlackKing:
		return Black
	}
	return ""
}

func (pc Piece) King() bool {
	return pc == RedKing || pc == BlackKing
}

// Pos is a board coordinate; row 0 is the top edge.
type Pos struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func (p Pos) InBounds() bool {
	return p.Row >= 0 && p.Row < BoardSize && p.Col >= 0 && p.Col < BoardSize
}

// Dark reports whether the square is playable. Checkers lives entirely on
// the dark squares, where row+col is odd.
func (p Pos) Dark() bool {
	return (p.Row+p.Col)%2 == 1
}

func (p Pos) String() string {
	return fmt.Sprintf("(%d,%d)", p.Row, p.Col)
}

// Move is an origin square plus the ordered landing squares the piece
// visits. A simple move has a single landing; a capture chain has one
// landing per jump.
type Move struct {
	From Pos    `json:"from"`
	Path []Pos  `json:"path"`
	By   Player `json:"by"`
}

func (m Move) Dest() Pos {
	if len(m.Path) == 0 {
		return m.From
	}
	return m.Path[len(m.Path)-1]
}

// Capturing reports whether the move's first segment is a jump. Mixed
// step/jump paths are rejected later by geometry checks.
func (m Move) Capturing() bool {
	if len(m.Path) == 0 {
		return false
	}
	return abs(m.Path[0].Row-m.From.Row) == 2
}

func (m Move) String() string {
	s := m.From.String()
	for _, p := range m.Path {
		s += "-" + p.String()
	}
	return s
}

// RejectReason is the wire-visible classification of an illegal move.
type RejectReason string

const (
	NotYourTurn         RejectReason = "NOT_YOUR_TURN"
	NoPieceAtOrigin     RejectReason = "NO_PIECE_AT_ORIGIN"
	MustCapture         RejectReason = "MUST_CAPTURE"
	IllegalGeometry     RejectReason = "ILLEGAL_GEOMETRY"
	OccupiedDestination RejectReason = "OCCUPIED_DESTINATION"
)

// MoveError carries the rejection reason for an illegal move. The session
// stays untouched when one is returned.
type MoveError struct {
	Reason RejectReason
	Detail string
}

func (e *MoveError) Error() string {
	if e.Detail == "" {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
}

func rejectf(reason RejectReason, format string, args ...any) *MoveError {
	return &MoveError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// ReasonOf extracts the RejectReason from an error returned by Submit or
// Apply, or "" if the error is not a move rejection.
func ReasonOf(err error) RejectReason {
	var me *MoveError
	if errors.As(err, &me) {
		return me.Reason
	}
	return ""
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
