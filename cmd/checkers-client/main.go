// checkers-client is a minimal terminal front-end for the game client: it
// renders the mirrored board as ASCII and reads moves from stdin. The real
// rendering surface is expected to live elsewhere; everything here goes
// through the same client API a GUI would use.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/audreyd114/B438-Checkers/client"
	"github.com/audreyd114/B438-Checkers/game"
)

func main() {
	url := flag.String("url", "ws://localhost:8080/ws/game", "server websocket URL")
	gameID := flag.String("game", "", "game key to join (optional)")
	player := flag.String("player", "", "player ID (defaults to a random UUID)")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	log.Logger = log.Output(os.Stderr)

	playerID := *player
	if playerID == "" {
		playerID = uuid.New().String()
	}
	target := *url
	if *gameID != "" {
		target += "?game=" + *gameID
	}

	c, err := client.Dial(target, client.Options{
		PlayerID: playerID,
		OnStateChanged: func(sc client.StateChange) {
			fmt.Println()
			fmt.Print(sc.Board)
			if sc.Status.Terminal() {
				fmt.Printf("Game over: %s", sc.Status)
				if sc.Winner != "" {
					fmt.Printf(" (winner %s)", sc.Winner)
				}
				fmt.Println()
				return
			}
			fmt.Printf("Turn: %s  (seq %d)\n> ", sc.Turn, sc.Seq)
		},
		OnRejected: func(reason game.RejectReason, detail string) {
			fmt.Printf("\nMove rejected: %s (%s)\n> ", reason, detail)
		},
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect:", err)
		os.Exit(1)
	}
	defer c.Close()

	fmt.Printf("Joined game %s as %s\n", c.GameID(), c.Color())
	fmt.Print(c.Board())
	fmt.Println(`Enter moves as "row,col row,col [row,col ...]" or "quit".`)
	fmt.Print("> ")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
		case line == "quit", line == "exit":
			return
		default:
			move, err := parseMove(line)
			if err != nil {
				fmt.Println("bad move:", err)
			} else if err := c.SubmitMove(move); err != nil {
				fmt.Fprintln(os.Stderr, "send:", err)
				return
			}
		}
		fmt.Print("> ")
	}
}

// parseMove turns "2,1 3,0 5,4" into a Move: first square is the origin,
// the rest are landing squares.
func parseMove(line string) (game.Move, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return game.Move{}, fmt.Errorf("need an origin and at least one destination")
	}
	squares := make([]game.Pos, 0, len(fields))
	for _, f := range fields {
		parts := strings.SplitN(f, ",", 2)
		if len(parts) != 2 {
			return game.Move{}, fmt.Errorf("square %q is not row,col", f)
		}
		row, err := strconv.Atoi(parts[0])
		if err != nil {
			return game.Move{}, fmt.Errorf("square %q: %v", f, err)
		}
		col, err := strconv.Atoi(parts[1])
		if err != nil {
			return game.Move{}, fmt.Errorf("square %q: %v", f, err)
		}
		squares = append(squares, game.Pos{Row: row, Col: col})
	}
	return game.Move{From: squares[0], Path: squares[1:]}, nil
}
