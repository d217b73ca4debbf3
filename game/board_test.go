package game

import (
	"testing"
)

func TestNewBoardLayout(t *testing.T) {
	b := NewBoard()
	if got := b.Count(Red); got != 12 {
		t.Fatalf("red pieces = %d, want 12", got)
	}
	if got := b.Count(Black); got != 12 {
		t.Fatalf("black pieces = %d, want 12", got)
	}
	for r := 0; r < BoardSize; r++ {
		for c := 0; c < BoardSize; c++ {
			p := Pos{r, c}
			if b.At(p) != Empty && !p.Dark() {
				t.Fatalf("piece on light square %s", p)
			}
		}
	}
	if b.At(Pos{2, 1}) != RedMan {
		t.Fatalf("expected red man at (2,1), got %v", b.At(Pos{2, 1}))
	}
	if b.At(Pos{5, 0}) != BlackMan {
		t.Fatalf("expected black man at (5,0), got %v", b.At(Pos{5, 0}))
	}
}

func TestApplyIsPure(t *testing.T) {
	b := NewBoard()
	before := b
	if _, err := b.Apply(Move{From: Pos{2, 1}, Path: []Pos{{3, 0}}, By: Red}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if b != before {
		t.Fatal("Apply mutated its receiver")
	}
}

func TestApplySimpleMove(t *testing.T) {
	b := NewBoard()
	next, err := b.Apply(Move{From: Pos{2, 1}, Path: []Pos{{3, 0}}, By: Red})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if next.At(Pos{2, 1}) != Empty {
		t.Fatal("origin not vacated")
	}
	if next.At(Pos{3, 0}) != RedMan {
		t.Fatal("destination not occupied")
	}
}

func TestApplyGeometryErrors(t *testing.T) {
	b := NewBoard()
	cases := []struct {
		name string
		move Move
		want RejectReason
	}{
		{"off grid", Move{From: Pos{2, 1}, Path: []Pos{{-1, 0}}}, IllegalGeometry},
		{"light square", Move{From: Pos{2, 1}, Path: []Pos{{3, 1}}}, IllegalGeometry},
		{"not diagonal", Move{From: Pos{2, 1}, Path: []Pos{{4, 1}}}, IllegalGeometry},
		{"occupied", Move{From: Pos{2, 1}, Path: []Pos{{1, 0}}}, OccupiedDestination},
		{"empty path", Move{From: Pos{2, 1}}, IllegalGeometry},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := b.Apply(tc.move); ReasonOf(err) != tc.want {
				t.Fatalf("got %v, want reason %s", err, tc.want)
			}
		})
	}
}

func TestApplyJumpRemovesCaptured(t *testing.T) {
	var b Board
	b[3][2] = RedMan
	b[4][3] = BlackMan
	m := Move{From: Pos{3, 2}, Path: []Pos{{5, 4}}, By: Red}

	caps := m.Captures()
	if len(caps) != 1 || caps[0] != (Pos{4, 3}) {
		t.Fatalf("captures = %v, want [(4,3)]", caps)
	}

	next, err := b.Apply(m)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if next.At(Pos{4, 3}) != Empty {
		t.Fatal("captured piece still on board")
	}
	if next.At(Pos{5, 4}) != RedMan {
		t.Fatal("jumper not at landing square")
	}
}

func TestPromotionIsAtomic(t *testing.T) {
	var b Board
	b[6][1] = RedMan
	next, err := b.Apply(Move{From: Pos{6, 1}, Path: []Pos{{7, 0}}, By: Red})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if next.At(Pos{7, 0}) != RedKing {
		t.Fatalf("man reaching row 7 should be a king in the same move, got %v", next.At(Pos{7, 0}))
	}

	b = Board{}
	b[1][2] = BlackMan
	next, err = b.Apply(Move{From: Pos{1, 2}, Path: []Pos{{0, 1}}, By: Black})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if next.At(Pos{0, 1}) != BlackKing {
		t.Fatalf("black man reaching row 0 should be a king, got %v", next.At(Pos{0, 1}))
	}
}

func TestChecksumDeterministicAndSensitive(t *testing.T) {
	a := NewBoard()
	b := NewBoard()
	if a.Checksum() != b.Checksum() {
		t.Fatal("identical boards hash differently")
	}
	moved, err := a.Apply(Move{From: Pos{2, 1}, Path: []Pos{{3, 0}}, By: Red})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if moved.Checksum() == a.Checksum() {
		t.Fatal("different boards hash identically")
	}
	// same (board, move) always yields the same result and checksum
	again, _ := b.Apply(Move{From: Pos{2, 1}, Path: []Pos{{3, 0}}, By: Red})
	if again != moved || again.Checksum() != moved.Checksum() {
		t.Fatal("apply is not deterministic")
	}
}

func TestDeltaRoundTrip(t *testing.T) {
	b := NewBoard()
	m := Move{From: Pos{2, 1}, Path: []Pos{{3, 0}}, By: Red}
	after, err := b.Apply(m)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	changes := ChangesFor(m, after)
	if got := b.ApplyChanges(changes); got != after {
		t.Fatal("applying the delta does not reproduce the board")
	}
	if b.ApplyChanges(changes).Checksum() != after.Checksum() {
		t.Fatal("delta result checksum mismatch")
	}

	// a corrupted delta must be detectable via the checksum
	corrupted := make([]SquareChange, len(changes))
	copy(corrupted, changes)
	corrupted[len(corrupted)-1].Piece = BlackKing
	if b.ApplyChanges(corrupted).Checksum() == after.Checksum() {
		t.Fatal("corrupted delta produced the correct checksum")
	}
}

func TestDeltaCoversCaptureAndPromotion(t *testing.T) {
	var b Board
	b[5][2] = RedMan
	b[6][3] = BlackMan
	m := Move{From: Pos{5, 2}, Path: []Pos{{7, 4}}, By: Red}
	after, err := b.Apply(m)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	changes := ChangesFor(m, after)
	want := []SquareChange{
		{Pos: Pos{5, 2}, Piece: Empty},
		{Pos: Pos{6, 3}, Piece: Empty},
		{Pos: Pos{7, 4}, Piece: RedKing}, // promotion reflected in the delta
	}
	if len(changes) != len(want) {
		t.Fatalf("changes = %v, want %v", changes, want)
	}
	for i := range want {
		if changes[i] != want[i] {
			t.Fatalf("changes[%d] = %v, want %v", i, changes[i], want[i])
		}
	}
}
