package game

// Move generation. Men step and jump forward only (RED toward row 7, BLACK
// toward row 0); kings go both ways. Capture chains are explored by DFS on
// board copies so the real board is never touched.

var kingDirs = [4][2]int{{-1, -1}, {-1, 1}, {1, -1}, {1, 1}}

func stepDirs(pc Piece) [][2]int {
	if pc.King() {
		return kingDirs[:]
	}
	if pc.Owner() == Red {
		return [][2]int{{1, -1}, {1, 1}}
	}
	return [][2]int{{-1, -1}, {-1, 1}}
}

// simpleMovesFrom returns the non-capturing single steps available to the
// piece at from.
func simpleMovesFrom(b Board, from Pos) []Move {
	pc := b.At(from)
	if pc == Empty {
		return nil
	}
	var moves []Move
	for _, d := range stepDirs(pc) {
		dst := Pos{Row: from.Row + d[0], Col: from.Col + d[1]}
		if dst.InBounds() && b.At(dst) == Empty {
			moves = append(moves, Move{From: from, Path: []Pos{dst}, By: pc.Owner()})
		}
	}
	return moves
}

// jumpStep reports whether the piece at from on b may jump in direction d,
// and the landing square if so.
func jumpStep(b Board, from Pos, pc Piece, d [2]int) (Pos, bool) {
	mid := Pos{Row: from.Row + d[0], Col: from.Col + d[1]}
	land := Pos{Row: from.Row + 2*d[0], Col: from.Col + 2*d[1]}
	if !land.InBounds() {
		return Pos{}, false
	}
	victim := b.At(mid).Owner()
	if victim == "" || victim == pc.Owner() {
		return Pos{}, false
	}
	if b.At(land) != Empty {
		return Pos{}, false
	}
	if !pc.King() {
		// men capture forward only
		if pc.Owner() == Red && d[0] < 0 {
			return Pos{}, false
		}
		if pc.Owner() == Black && d[0] > 0 {
			return Pos{}, false
		}
	}
	return land, true
}

// captureSequencesFrom returns every complete capture chain starting at
// from. A chain only ends where no further jump exists onto an unvisited
// square; promotion is not applied mid-chain, so a man cannot pick up king
// directions inside one move. The no-revisit rule here matches the
// validator's, so generated chains are always accepted.
func captureSequencesFrom(b Board, from Pos) []Move {
	pc := b.At(from)
	if pc == Empty {
		return nil
	}
	var out []Move
	visited := map[Pos]bool{from: true}

	var dfs func(cur Board, at Pos, path []Pos)
	dfs = func(cur Board, at Pos, path []Pos) {
		extended := false
		for _, d := range kingDirs {
			land, ok := jumpStep(cur, at, pc, d)
			if !ok || visited[land] {
				continue
			}
			next := cur
			mid := Pos{Row: (at.Row + land.Row) / 2, Col: (at.Col + land.Col) / 2}
			next[mid.Row][mid.Col] = Empty
			next[at.Row][at.Col] = Empty
			next[land.Row][land.Col] = pc
			visited[land] = true
			dfs(next, land, append(append([]Pos{}, path...), land))
			delete(visited, land)
			extended = true
		}
		if !extended && len(path) > 0 {
			out = append(out, Move{From: from, Path: path, By: pc.Owner()})
		}
	}
	dfs(b, from, nil)
	return out
}

// hasJumpAvoiding reports whether the piece may jump from the square onto
// any landing square not already in visited.
func hasJumpAvoiding(b Board, from Pos, pc Piece, visited map[Pos]bool) bool {
	for _, d := range kingDirs {
		if land, ok := jumpStep(b, from, pc, d); ok && !visited[land] {
			return true
		}
	}
	return false
}

// hasJumpFrom reports whether the piece at from has at least one jump.
func hasJumpFrom(b Board, from Pos) bool {
	pc := b.At(from)
	if pc == Empty {
		return false
	}
	return hasJumpAvoiding(b, from, pc, nil)
}

// HasCapture reports whether any of the player's pieces has a jump
// available. When it does, checkers' mandatory-capture rule forbids every
// simple move.
func HasCapture(b Board, p Player) bool {
	for r := 0; r < BoardSize; r++ {
		for c := 0; c < BoardSize; c++ {
			if b[r][c].Owner() == p && hasJumpFrom(b, Pos{r, c}) {
				return true
			}
		}
	}
	return false
}

// longestCapture returns the greatest number of pieces any single move by
// the player can capture, zero when no capture exists.
func longestCapture(b Board, p Player) int {
	best := 0
	for r := 0; r < BoardSize; r++ {
		for c := 0; c < BoardSize; c++ {
			if b[r][c].Owner() != p {
				continue
			}
			for _, m := range captureSequencesFrom(b, Pos{r, c}) {
				if len(m.Path) > best {
					best = len(m.Path)
				}
			}
		}
	}
	return best
}

// LegalMoves returns the player's legal moves. When any capture exists only
// the chains capturing the most pieces are legal; otherwise all simple
// steps are.
func LegalMoves(b Board, p Player) []Move {
	var captures, quiets []Move
	best := 0
	for r := 0; r < BoardSize; r++ {
		for c := 0; c < BoardSize; c++ {
			from := Pos{r, c}
			if b.At(from).Owner() != p {
				continue
			}
			if caps := captureSequencesFrom(b, from); len(caps) > 0 {
				for _, m := range caps {
					if len(m.Path) > best {
						best = len(m.Path)
					}
				}
				captures = append(captures, caps...)
			} else if len(captures) == 0 {
				quiets = append(quiets, simpleMovesFrom(b, from)...)
			}
		}
	}
	if len(captures) > 0 {
		longest := captures[:0]
		for _, m := range captures {
			if len(m.Path) == best {
				longest = append(longest, m)
			}
		}
		return longest
	}
	return quiets
}
