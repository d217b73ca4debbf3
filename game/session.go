package game

import (
	"time"
)

// Status is the lifecycle state of a session.
type Status string

const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusRedWon     Status = "RED_WON"
	StatusBlackWon   Status = "BLACK_WON"
	StatusDraw       Status = "DRAW"
	StatusAborted    Status = "ABORTED"
)

// Terminal reports whether the status ends the game.
func (s Status) Terminal() bool {
	return s != StatusInProgress
}

// Session is the authoritative state of one game. It is not safe for
// concurrent use: the server's match loop is the single serialization
// point and owns the session exclusively; clients only ever hold copies
// reconstructed from sync messages.
type Session struct {
	ID        string    `json:"id"`
	RedID     string    `json:"red_id"`
	BlackID   string    `json:"black_id"`
	Board     Board     `json:"board"`
	Turn      Player    `json:"turn"`
	Status    Status    `json:"status"`
	Seq       uint64    `json:"seq"`
	MoveCount int       `json:"move_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession starts a game between the two players. RED moves first.
func NewSession(id, redID, blackID string) *Session {
	now := time.Now()
	return &Session{
		ID:        id,
		RedID:     redID,
		BlackID:   blackID,
		Board:     NewBoard(),
		Turn:      Red,
		Status:    StatusInProgress,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ColorOf returns the side assigned to the player ID, or "".
func (s *Session) ColorOf(playerID string) Player {
	switch playerID {
	case s.RedID:
		return Red
	case s.BlackID:
		return Black
	}
	return ""
}

// Winner returns the winning side for a won game, otherwise "".
func (s *Session) Winner() Player {
	switch s.Status {
	case StatusRedWon:
		return Red
	case StatusBlackWon:
		return Black
	}
	return ""
}

// Abort marks the session aborted, e.g. after a transport failure.
func (s *Session) Abort() {
	if !s.Status.Terminal() {
		s.Status = StatusAborted
		s.UpdatedAt = time.Now()
	}
}

// Submit validates and applies a move for the given side. On success the
// board is replaced, the sequence number increments, the turn flips and
// game-end detection runs; the resulting board is returned. On rejection
// the session is untouched and the error carries a RejectReason.
func (s *Session) Submit(by Player, m Move) (Board, error) {
	if s.Status.Terminal() {
		return s.Board, rejectf(NotYourTurn, "game is over (%s)", s.Status)
	}
	if by != s.Turn {
		return s.Board, rejectf(NotYourTurn, "it is %s's turn", s.Turn)
	}
	if !m.From.InBounds() || !m.From.Dark() {
		return s.Board, rejectf(IllegalGeometry, "origin %s off the dark squares", m.From)
	}
	pc := s.Board.At(m.From)
	if pc.Owner() != by {
		return s.Board, rejectf(NoPieceAtOrigin, "no %s piece at %s", by, m.From)
	}
	if len(m.Path) == 0 {
		return s.Board, rejectf(IllegalGeometry, "move has no destination")
	}

	if m.Capturing() {
		if err := s.checkCaptureChain(pc, m); err != nil {
			return s.Board, err
		}
		// maximum-capture rule: among available chains only the longest
		// may be played
		if best := longestCapture(s.Board, by); len(m.Path) < best {
			return s.Board, rejectf(MustCapture, "a %d-piece capture is available", best)
		}
	} else {
		if HasCapture(s.Board, by) {
			return s.Board, rejectf(MustCapture, "a capture is available and must be taken")
		}
		if err := s.checkSimpleStep(pc, m); err != nil {
			return s.Board, err
		}
	}

	next, err := s.Board.Apply(m)
	if err != nil {
		return s.Board, err
	}

	s.Board = next
	s.Seq++
	s.MoveCount++
	s.Turn = by.Opponent()
	s.UpdatedAt = time.Now()
	s.detectEnd(by)
	return s.Board, nil
}

func (s *Session) checkSimpleStep(pc Piece, m Move) error {
	if len(m.Path) > 1 {
		return rejectf(IllegalGeometry, "simple move cannot chain destinations")
	}
	dst := m.Path[0]
	if !dst.InBounds() || !dst.Dark() {
		return rejectf(IllegalGeometry, "destination %s off the dark squares", dst)
	}
	dr, dc := dst.Row-m.From.Row, dst.Col-m.From.Col
	legal := false
	for _, d := range stepDirs(pc) {
		if dr == d[0] && dc == d[1] {
			legal = true
			break
		}
	}
	if !legal {
		return rejectf(IllegalGeometry, "segment %s-%s is not a legal step", m.From, dst)
	}
	if s.Board.At(dst) != Empty {
		return rejectf(OccupiedDestination, "destination %s occupied", dst)
	}
	return nil
}

// checkCaptureChain walks the jump segments on a scratch board, removing
// each victim as it goes so the same piece cannot be captured twice, and
// refusing to revisit any square the move already passed through. The
// chain must be complete: stopping while a further jump onto an unvisited
// square exists from the final landing square is itself a MustCapture
// violation, unless the move ended by promotion.
func (s *Session) checkCaptureChain(pc Piece, m Move) error {
	scratch := s.Board
	scratch[m.From.Row][m.From.Col] = Empty
	visited := map[Pos]bool{m.From: true}
	cur := m.From
	for i, dst := range m.Path {
		if !dst.InBounds() || !dst.Dark() {
			return rejectf(IllegalGeometry, "destination %s off the dark squares", dst)
		}
		if visited[dst] {
			return rejectf(IllegalGeometry, "move revisits %s", dst)
		}
		dr, dc := dst.Row-cur.Row, dst.Col-cur.Col
		if abs(dr) != 2 || abs(dc) != 2 {
			return rejectf(IllegalGeometry, "segment %s-%s is not a jump", cur, dst)
		}
		land, ok := jumpStep(scratch, cur, pc, [2]int{dr / 2, dc / 2})
		if !ok {
			if scratch.At(dst) != Empty {
				return rejectf(OccupiedDestination, "destination %s occupied", dst)
			}
			return rejectf(IllegalGeometry, "segment %s-%s is not a legal jump", cur, dst)
		}
		mid := Pos{Row: (cur.Row + land.Row) / 2, Col: (cur.Col + land.Col) / 2}
		scratch[mid.Row][mid.Col] = Empty
		scratch[land.Row][land.Col] = pc
		visited[dst] = true

		promoted := promote(pc, land.Row) != pc
		if promoted && i < len(m.Path)-1 {
			return rejectf(IllegalGeometry, "chain continues past promotion at %s", land)
		}
		if i == len(m.Path)-1 && !promoted && hasJumpAvoiding(scratch, land, pc, visited) {
			return rejectf(MustCapture, "further capture available from %s", land)
		}
		if i < len(m.Path)-1 {
			scratch[land.Row][land.Col] = Empty
		}
		cur = dst
	}
	return nil
}

// detectEnd runs after every accepted move: the player now on turn loses
// with zero pieces or zero legal moves; when neither side can move the
// game is a draw.
func (s *Session) detectEnd(mover Player) {
	next := s.Turn
	if s.Board.Count(next) == 0 || len(LegalMoves(s.Board, next)) == 0 {
		if s.Board.Count(next) > 0 && len(LegalMoves(s.Board, mover)) == 0 {
			s.Status = StatusDraw
			return
		}
		if mover == Red {
			s.Status = StatusRedWon
		} else {
			s.Status = StatusBlackWon
		}
	}
}
