// Package server hosts checkers games: it upgrades client connections to
// websockets, pairs them into matches, and runs one serialized match loop
// per game so the authoritative session is never mutated concurrently.
package server

import (
	"encoding/json"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/audreyd114/B438-Checkers/archive"
	"github.com/audreyd114/B438-Checkers/config"
	"github.com/audreyd114/B438-Checkers/protocol"
)

// DefaultGameID is the game key used when a client connects without one.
const DefaultGameID = "default"

type Server struct {
	cfg   *config.Config
	store archive.Store

	mu      sync.Mutex
	matches map[string]*match

	upgrader websocket.Upgrader
}

func New(cfg *config.Config, store archive.Store) *Server {
	return &Server{
		cfg:     cfg,
		store:   store,
		matches: make(map[string]*match),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Router builds the HTTP surface: the game websocket plus a health check
// and a read-only state endpoint.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/ws/game", s.gameWebSocketHandler)
	r.HandleFunc("/healthz", healthzHandler).Methods("GET")
	r.HandleFunc("/game/{gameID}/state", s.gameStateHandler).Methods("GET")
	return r
}

// Start blocks serving HTTP on the configured address.
func (s *Server) Start() error {
	log.Info().Str("addr", s.cfg.ListenAddr).Msg("Server listening")
	h := handlers.RecoveryHandler()(handlers.LoggingHandler(os.Stdout, s.Router()))
	return http.ListenAndServe(s.cfg.ListenAddr, h)
}

func healthzHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// gameStateHandler exposes the authoritative session as JSON, mainly for
// debugging and ops.
func (s *Server) gameStateHandler(w http.ResponseWriter, r *http.Request) {
	gameID := mux.Vars(r)["gameID"]

	s.mu.Lock()
	m, exists := s.matches[gameID]
	s.mu.Unlock()
	if !exists {
		http.Error(w, "Game not found", http.StatusNotFound)
		return
	}

	// Snapshot fetched through the match loop so we never read the session
	// concurrently with a move.
	reply := make(chan protocol.Snapshot, 1)
	select {
	case m.inspect <- reply:
	case <-time.After(time.Second):
		http.Error(w, "Game not responding", http.StatusServiceUnavailable)
		return
	}
	snap := <-reply

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		log.Error().Err(err).Str("gameID", gameID).Msg("Failed to encode game state")
	}
}

// gameWebSocketHandler is the session entry point: upgrade, read the
// client's Hello, then hand the connection to the match.
func (s *Server) gameWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	gameID := r.URL.Query().Get("game")
	if gameID == "" {
		gameID = DefaultGameID
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Str("gameID", gameID).Msg("WebSocket upgrade error")
		return
	}

	hello, err := readHello(conn)
	if err != nil {
		log.Error().Err(err).Str("gameID", gameID).Msg("Handshake failed")
		conn.Close()
		return
	}
	playerID := hello.PlayerID
	if playerID == "" {
		playerID = uuid.New().String()
	}

	p := newPeer(playerID, conn, s.cfg.WriteTimeout)
	m, ok := s.joinMatch(gameID, p)
	if !ok {
		// Game full or already over; turn the connection away.
		frame, _ := protocol.Pack(protocol.KindBye, nil)
		conn.WriteMessage(websocket.TextMessage, frame)
		conn.Close()
		return
	}

	go p.writePump()
	p.readPump(m)
	// the match may already have ended, e.g. when the heartbeat reaper
	// removed this peer as its last player; done unblocks the report
	select {
	case m.leave <- p:
	case <-m.done:
	}
}

// readHello waits briefly for the opening Hello frame.
func readHello(conn *websocket.Conn) (protocol.Hello, error) {
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	defer conn.SetReadDeadline(time.Time{})

	_, frame, err := conn.ReadMessage()
	if err != nil {
		return protocol.Hello{}, err
	}
	env, err := protocol.Unpack(frame)
	if err != nil {
		return protocol.Hello{}, err
	}
	var hello protocol.Hello
	if env.Type != protocol.KindHello {
		return protocol.Hello{}, &protocolError{kind: env.Type}
	}
	if err := protocol.Decode(env, &hello); err != nil {
		return protocol.Hello{}, err
	}
	return hello, nil
}

type protocolError struct {
	kind protocol.Kind
}

func (e *protocolError) Error() string {
	return "expected hello, got " + string(e.kind)
}

// joinMatch routes the peer into its game's match loop, creating the loop
// on first use. A retry covers the window where a finished match removes
// itself between lookup and join.
func (s *Server) joinMatch(gameID string, p *peer) (*match, bool) {
	for attempt := 0; attempt < 2; attempt++ {
		m := s.matchFor(gameID)
		req := joinRequest{peer: p, reply: make(chan bool, 1)}
		select {
		case m.join <- req:
			return m, <-req.reply
		case <-time.After(time.Second):
			continue
		}
	}
	return nil, false
}

func (s *Server) matchFor(gameID string) *match {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.matches[gameID]; ok {
		return m
	}
	m := newMatch(gameID, s)
	s.matches[gameID] = m
	go m.run()
	log.Info().Str("gameID", gameID).Msg("Match created")
	return m
}

func (s *Server) removeMatch(gameID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.matches, gameID)
	log.Info().Str("gameID", gameID).Msg("Match removed")
}
