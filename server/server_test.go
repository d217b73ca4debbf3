package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/audreyd114/B438-Checkers/archive"
	"github.com/audreyd114/B438-Checkers/config"
	"github.com/audreyd114/B438-Checkers/game"
	"github.com/audreyd114/B438-Checkers/protocol"
)

func testConfig() *config.Config {
	return &config.Config{
		ListenAddr:           ":0",
		HeartbeatInterval:    time.Minute, // quiet unless a test shortens it
		MissedHeartbeatLimit: 3,
		WriteTimeout:         5 * time.Second,
	}
}

func newTestServer(t *testing.T, cfg *config.Config) (*Server, *httptest.Server) {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}
	s := New(cfg, archive.NewMemoryStore())
	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)
	return s, ts
}

// testClient is a raw websocket player for driving the server directly.
type testClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func wsDial(t *testing.T, ts *httptest.Server, gameID, playerID string) *testClient {
	t.Helper()
	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/game?game=" + gameID
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	c := &testClient{t: t, conn: conn}
	c.send(protocol.KindHello, protocol.Hello{PlayerID: playerID})
	return c
}

func (c *testClient) send(kind protocol.Kind, payload any) {
	c.t.Helper()
	frame, err := protocol.Pack(kind, payload)
	if err != nil {
		c.t.Fatalf("pack %s: %v", kind, err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		c.t.Fatalf("write %s: %v", kind, err)
	}
}

// expect reads until a frame of the wanted kind arrives, echoing any
// heartbeat probes so the connection is not reaped mid-test.
func (c *testClient) expect(kind protocol.Kind) protocol.Envelope {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			c.t.Fatalf("read (want %s): %v", kind, err)
		}
		env, err := protocol.Unpack(frame)
		if err != nil {
			c.t.Fatalf("unpack: %v", err)
		}
		if env.Type == protocol.KindHeartbeat {
			var hb protocol.Heartbeat
			if protocol.Decode(env, &hb) == nil && !hb.Echo {
				hb.Echo = true
				c.send(protocol.KindHeartbeat, hb)
			}
			if kind != protocol.KindHeartbeat {
				continue
			}
		}
		if env.Type != kind {
			c.t.Fatalf("got %s, want %s", env.Type, kind)
		}
		return env
	}
}

func (c *testClient) welcome() protocol.Welcome {
	c.t.Helper()
	var w protocol.Welcome
	if err := protocol.Decode(c.expect(protocol.KindWelcome), &w); err != nil {
		c.t.Fatalf("decode welcome: %v", err)
	}
	return w
}

func (c *testClient) delta() protocol.Delta {
	c.t.Helper()
	var d protocol.Delta
	if err := protocol.Decode(c.expect(protocol.KindDelta), &d); err != nil {
		c.t.Fatalf("decode delta: %v", err)
	}
	return d
}

// joinPair connects two players and drains their handshake frames.
func joinPair(t *testing.T, ts *httptest.Server, gameID string) (*testClient, *testClient) {
	t.Helper()
	a := wsDial(t, ts, gameID, "alice")
	if w := a.welcome(); w.Color != game.Red {
		t.Fatalf("first player got %s, want RED", w.Color)
	}
	b := wsDial(t, ts, gameID, "bob")
	if w := b.welcome(); w.Color != game.Black {
		t.Fatalf("second player got %s, want BLACK", w.Color)
	}
	// session start is announced to both sides
	a.expect(protocol.KindSnapshot)
	b.expect(protocol.KindSnapshot)
	return a, b
}

func TestJoinAssignsColorsAndStartsSession(t *testing.T) {
	_, ts := newTestServer(t, nil)
	a := wsDial(t, ts, "colors", "alice")

	w := a.welcome()
	if w.Color != game.Red {
		t.Fatalf("color = %s, want RED", w.Color)
	}
	if w.Snapshot.Board != game.NewBoard() {
		t.Fatal("welcome snapshot is not the opening position")
	}
	if w.Snapshot.Turn != game.Red {
		t.Fatalf("opening turn = %s, want RED", w.Snapshot.Turn)
	}

	b := wsDial(t, ts, "colors", "bob")
	if w := b.welcome(); w.Color != game.Black {
		t.Fatalf("second color = %s, want BLACK", w.Color)
	}

	// the waiting player hears that the game is on
	var snap protocol.Snapshot
	if err := protocol.Decode(a.expect(protocol.KindSnapshot), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.Status != game.StatusInProgress || snap.Seq != 0 {
		t.Fatalf("session snapshot = %+v", snap)
	}
}

func TestThirdConnectionTurnedAway(t *testing.T) {
	_, ts := newTestServer(t, nil)
	joinPair(t, ts, "full")

	c := wsDial(t, ts, "full", "carol")
	c.expect(protocol.KindBye)
}

func TestMoveFlowWithMandatoryCapture(t *testing.T) {
	_, ts := newTestServer(t, nil)
	a, b := joinPair(t, ts, "flow")

	submit := func(c *testClient, from game.Pos, path ...game.Pos) {
		c.send(protocol.KindMove, protocol.MoveRequest{Move: game.Move{From: from, Path: path}})
	}

	// two quiet opening moves
	submit(a, game.Pos{Row: 2, Col: 1}, game.Pos{Row: 3, Col: 2})
	d := a.delta()
	if d.Seq != 1 || d.Turn != game.Black {
		t.Fatalf("delta 1 = seq %d turn %s", d.Seq, d.Turn)
	}
	b.delta()

	submit(b, game.Pos{Row: 5, Col: 0}, game.Pos{Row: 4, Col: 1})
	if d := b.delta(); d.Seq != 2 || d.Turn != game.Red {
		t.Fatalf("delta 2 = seq %d turn %s", d.Seq, d.Turn)
	}
	a.delta()

	// RED now has a jump over (4,1); a quiet move must be refused
	submit(a, game.Pos{Row: 2, Col: 3}, game.Pos{Row: 3, Col: 4})
	var rej protocol.Rejected
	if err := protocol.Decode(a.expect(protocol.KindRejected), &rej); err != nil {
		t.Fatalf("decode rejection: %v", err)
	}
	if rej.Reason != game.MustCapture {
		t.Fatalf("reason = %s, want MUST_CAPTURE", rej.Reason)
	}

	// the jump itself goes through and the victim square is vacated
	submit(a, game.Pos{Row: 3, Col: 2}, game.Pos{Row: 5, Col: 0})
	d = a.delta()
	if d.Seq != 3 || d.Turn != game.Black {
		t.Fatalf("jump delta = seq %d turn %s", d.Seq, d.Turn)
	}
	victimCleared := false
	for _, ch := range d.Changes {
		if ch.Pos == (game.Pos{Row: 4, Col: 1}) && ch.Piece == game.Empty {
			victimCleared = true
		}
	}
	if !victimCleared {
		t.Fatalf("jump delta never vacated the captured square: %+v", d.Changes)
	}
	b.delta()
}

func TestOutOfTurnMoveRejected(t *testing.T) {
	_, ts := newTestServer(t, nil)
	_, b := joinPair(t, ts, "turns")

	b.send(protocol.KindMove, protocol.MoveRequest{
		Move: game.Move{From: game.Pos{Row: 5, Col: 0}, Path: []game.Pos{{Row: 4, Col: 1}}},
	})
	var rej protocol.Rejected
	if err := protocol.Decode(b.expect(protocol.KindRejected), &rej); err != nil {
		t.Fatalf("decode rejection: %v", err)
	}
	if rej.Reason != game.NotYourTurn {
		t.Fatalf("reason = %s, want NOT_YOUR_TURN", rej.Reason)
	}
}

func TestResyncReturnsAuthoritativeSnapshot(t *testing.T) {
	_, ts := newTestServer(t, nil)
	a, b := joinPair(t, ts, "resync")

	a.send(protocol.KindMove, protocol.MoveRequest{
		Move: game.Move{From: game.Pos{Row: 2, Col: 1}, Path: []game.Pos{{Row: 3, Col: 2}}},
	})
	a.delta()
	b.delta()

	b.send(protocol.KindResync, protocol.Resync{Have: 0})
	var snap protocol.Snapshot
	if err := protocol.Decode(b.expect(protocol.KindSnapshot), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.Seq != 1 || snap.Turn != game.Black {
		t.Fatalf("snapshot = seq %d turn %s", snap.Seq, snap.Turn)
	}
	if snap.Board.Checksum() != snap.Checksum {
		t.Fatal("snapshot checksum does not match its board")
	}
	if snap.Board.At(game.Pos{Row: 3, Col: 2}) != game.RedMan {
		t.Fatal("snapshot is missing the applied move")
	}
}

func TestDisconnectAbortsAndArchives(t *testing.T) {
	s, ts := newTestServer(t, nil)
	a, b := joinPair(t, ts, "walkout")

	a.conn.Close()

	var over protocol.GameOver
	if err := protocol.Decode(b.expect(protocol.KindGameOver), &over); err != nil {
		t.Fatalf("decode game over: %v", err)
	}
	if over.Status != game.StatusAborted {
		t.Fatalf("status = %s, want ABORTED", over.Status)
	}

	// the result lands in the archive shortly after
	deadline := time.Now().Add(2 * time.Second)
	for {
		results, err := s.store.Recent(context.Background(), 10)
		if err != nil {
			t.Fatalf("recent: %v", err)
		}
		if len(results) > 0 {
			if results[0].GameID != "walkout" || results[0].Status != game.StatusAborted {
				t.Fatalf("archived result = %+v", results[0])
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("result never archived")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestHeartbeatTimeoutReapsSilentPeer(t *testing.T) {
	cfg := testConfig()
	cfg.HeartbeatInterval = 20 * time.Millisecond
	cfg.MissedHeartbeatLimit = 2
	_, ts := newTestServer(t, cfg)

	a, b := joinPair(t, ts, "silent")
	_ = b // bob goes silent: no echoes, no reads

	// alice keeps echoing via expect and eventually hears the abort
	var over protocol.GameOver
	if err := protocol.Decode(a.expect(protocol.KindGameOver), &over); err != nil {
		t.Fatalf("decode game over: %v", err)
	}
	if over.Status != game.StatusAborted {
		t.Fatalf("status = %s, want ABORTED", over.Status)
	}
}

// When the reaper removes the last players itself, their connection
// handlers still have to finish; ts.Close waits for every active handler,
// so a handler stuck reporting its departure would hang it.
func TestReaperReleasesConnectionHandlers(t *testing.T) {
	cfg := testConfig()
	cfg.HeartbeatInterval = 20 * time.Millisecond
	cfg.MissedHeartbeatLimit = 2
	s := New(cfg, archive.NewMemoryStore())
	ts := httptest.NewServer(s.Router())

	a := wsDial(t, ts, "ghosts", "alice")
	a.welcome()
	b := wsDial(t, ts, "ghosts", "bob")
	b.welcome()
	// neither player answers another frame; both get reaped

	deadline := time.Now().Add(2 * time.Second)
	for {
		s.mu.Lock()
		_, live := s.matches["ghosts"]
		s.mu.Unlock()
		if !live {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("silent match never removed")
		}
		time.Sleep(20 * time.Millisecond)
	}

	closed := make(chan struct{})
	go func() {
		ts.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(3 * time.Second):
		t.Fatal("connection handlers still blocked after the match ended")
	}
}

func TestGameStateEndpoint(t *testing.T) {
	_, ts := newTestServer(t, nil)
	wsDial(t, ts, "peek", "alice").welcome()

	resp, err := http.Get(ts.URL + "/game/peek/state")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var snap protocol.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.Turn != game.Red || snap.Board != game.NewBoard() {
		t.Fatalf("state = %+v", snap)
	}

	resp2, err := http.Get(ts.URL + "/game/nosuch/state")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusNotFound {
		t.Fatalf("missing game status = %d", resp2.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	_, ts := newTestServer(t, nil)
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}
