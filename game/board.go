package game

import (
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Board is the full occupancy of the 8x8 grid. It is a value type: Apply
// returns a new board and never mutates its receiver, so snapshots can be
// handed out freely.
type Board [BoardSize][BoardSize]Piece

// NewBoard returns the standard starting layout: twelve RED men on the dark
// squares of rows 0-2, twelve BLACK men on the dark squares of rows 5-7.
func NewBoard() Board {
	var b Board
	for r := 0; r < BoardSize; r++ {
		for c := 0; c < BoardSize; c++ {
			if (r+c)%2 != 1 {
				continue
			}
			switch {
			case r <= 2:
				b[r][c] = RedMan
			case r >= 5:
				b[r][c] = BlackMan
			}
		}
	}
	return b
}

func (b Board) At(p Pos) Piece {
	return b[p.Row][p.Col]
}

// Count returns the number of pieces owned by the player.
func (b Board) Count(p Player) int {
	n := 0
	for r := 0; r < BoardSize; r++ {
		for c := 0; c < BoardSize; c++ {
			if b[r][c].Owner() == p {
				n++
			}
		}
	}
	return n
}

// promote kings a man that finished its move on the opposing back rank.
// Promotion happens inside Apply, never as a separate turn.
func promote(pc Piece, row int) Piece {
	if pc == RedMan && row == BoardSize-1 {
		return RedKing
	}
	if pc == BlackMan && row == 0 {
		return BlackKing
	}
	return pc
}

// Apply executes the move and returns the resulting board. It checks
// geometry only (squares on-grid, dark, diagonal steps of 1 or 2, landing
// squares empty); ownership, turn and capture rules belong to the
// validator. Jumped pieces are removed and promotion is applied atomically.
func (b Board) Apply(m Move) (Board, error) {
	if len(m.Path) == 0 {
		return b, rejectf(IllegalGeometry, "move has no destination")
	}
	if !m.From.InBounds() || !m.From.Dark() {
		return b, rejectf(IllegalGeometry, "origin %s off the dark squares", m.From)
	}
	pc := b.At(m.From)
	if pc == Empty {
		return b, rejectf(NoPieceAtOrigin, "no piece at %s", m.From)
	}

	out := b
	out[m.From.Row][m.From.Col] = Empty
	cur := m.From
	for _, dst := range m.Path {
		if !dst.InBounds() || !dst.Dark() {
			return b, rejectf(IllegalGeometry, "destination %s off the dark squares", dst)
		}
		dr, dc := dst.Row-cur.Row, dst.Col-cur.Col
		if abs(dr) != abs(dc) || (abs(dr) != 1 && abs(dr) != 2) {
			return b, rejectf(IllegalGeometry, "segment %s-%s is not a diagonal step or jump", cur, dst)
		}
		if abs(dr) == 1 && len(m.Path) > 1 {
			return b, rejectf(IllegalGeometry, "simple step inside a multi-segment move")
		}
		if out.At(dst) != Empty {
			return b, rejectf(OccupiedDestination, "destination %s occupied", dst)
		}
		if abs(dr) == 2 {
			mid := Pos{Row: (cur.Row + dst.Row) / 2, Col: (cur.Col + dst.Col) / 2}
			out[mid.Row][mid.Col] = Empty
		}
		cur = dst
	}
	out[cur.Row][cur.Col] = promote(pc, cur.Row)
	return out, nil
}

// Captures returns the squares whose pieces the move removes: the midpoint
// of every jump segment, in jump order.
func (m Move) Captures() []Pos {
	var caps []Pos
	cur := m.From
	for _, dst := range m.Path {
		if abs(dst.Row-cur.Row) == 2 {
			caps = append(caps, Pos{Row: (cur.Row + dst.Row) / 2, Col: (cur.Col + dst.Col) / 2})
		}
		cur = dst
	}
	return caps
}

// Checksum is a 64-bit digest of the occupancy array. Its only job is
// divergence detection between the server board and a client mirror.
func (b Board) Checksum() uint64 {
	var buf [BoardSize * BoardSize]byte
	for r := 0; r < BoardSize; r++ {
		for c := 0; c < BoardSize; c++ {
			buf[r*BoardSize+c] = byte(b[r][c])
		}
	}
	return xxhash.Sum64(buf[:])
}

// String renders the board in ASCII, rows 0..7 top to bottom. Handy in
// logs and the terminal client.
func (b Board) String() string {
	var sb strings.Builder
	for r := 0; r < BoardSize; r++ {
		for c := 0; c < BoardSize; c++ {
			ch := " "
			switch b[r][c] {
			case Empty:
				if (Pos{r, c}).Dark() {
					ch = "."
				}
			case RedMan:
				ch = "r"
			case RedKing:
				ch = "R"
			case BlackMan:
				ch = "b"
			case BlackKing:
				ch = "B"
			}
			sb.WriteString(ch)
			if c < BoardSize-1 {
				sb.WriteString(" ")
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// SquareChange is one cell of a state delta: the square and its new
// occupancy after a move.
type SquareChange struct {
	Pos   Pos   `json:"pos"`
	Piece Piece `json:"piece"`
}

// ChangesFor builds the minimal delta for a move applied to before,
// yielding after: origin vacated, captured squares vacated, destination
// occupied with promotion already reflected.
func ChangesFor(m Move, after Board) []SquareChange {
	changes := []SquareChange{{Pos: m.From, Piece: Empty}}
	for _, c := range m.Captures() {
		changes = append(changes, SquareChange{Pos: c, Piece: Empty})
	}
	dst := m.Dest()
	changes = append(changes, SquareChange{Pos: dst, Piece: after.At(dst)})
	return changes
}

// ApplyChanges replays a delta onto a board. Out-of-bounds squares are
// ignored rather than panicking; the checksum comparison that follows every
// delta catches any resulting divergence.
func (b Board) ApplyChanges(changes []SquareChange) Board {
	out := b
	for _, ch := range changes {
		if ch.Pos.InBounds() {
			out[ch.Pos.Row][ch.Pos.Col] = ch.Piece
		}
	}
	return out
}
