package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"ctchen222/Tic-Tac-Toe-Grid/internal/bot"
	"ctchen222/Tic-Tac-Toe-Grid/internal/client"
	"ctchen222/Tic-Tac-Toe-Grid/internal/config"
	"ctchen222/Tic-Tac-Toe-Grid/internal/game"
	"ctchen222/Tic-Tac-Toe-Grid/internal/logger"
	"ctchen222/Tic-Tac-Toe-Grid/internal/session"
)

func main() {
	configPath := flag.String("config", "", "path to a yaml config file")
	mode := flag.String("mode", "", "opponent mode: self, computer or human")
	size := flag.Int("size", 0, "grid size, 3 to 10")
	serverURL := flag.String("server", "", "game server base url for human mode")
	flag.Parse()

	cfg, err := config.LoadClient(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *mode != "" {
		cfg.Mode = *mode
	}
	if *size != 0 {
		cfg.GridSize = *size
	}
	if *serverURL != "" {
		cfg.ServerURL = *serverURL
	}

	logger.Init("warn")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m, err := session.ParseMode(cfg.Mode)
	if err != nil {
		log.Fatal(err)
	}

	lines := readLines(os.Stdin)
	if m == session.ModeRemote {
		err = playRemote(ctx, cfg, lines)
	} else {
		err = playLocal(ctx, cfg, m, lines)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func readLines(r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
	}()
	return lines
}

func parseMove(line string) (row, col int, err error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("enter a move as \"row col\"")
	}
	if row, err = strconv.Atoi(fields[0]); err != nil {
		return 0, 0, fmt.Errorf("bad row %q", fields[0])
	}
	if col, err = strconv.Atoi(fields[1]); err != nil {
		return 0, 0, fmt.Errorf("bad col %q", fields[1])
	}
	return row, col, nil
}

func printBoard(board [][]game.Mark) {
	for i, row := range board {
		cells := make([]string, len(row))
		for j, cell := range row {
			if cell == game.Empty {
				cells[j] = "."
			} else {
				cells[j] = string(cell)
			}
		}
		fmt.Printf("%2d  %s\n", i, strings.Join(cells, " "))
	}
}

func printResult(snap session.Snapshot) {
	switch snap.Status {
	case session.StatusWon:
		fmt.Printf("%s wins!\n", snap.Winner)
	case session.StatusDraw:
		fmt.Println("Draw.")
	}
}

// playLocal runs self-play or a game against the computer until it ends.
func playLocal(ctx context.Context, cfg *config.Client, mode session.Mode, lines <-chan string) error {
	computerMoved := make(chan session.MoveResult, 1)
	opts := session.Options{Size: cfg.GridSize, Mode: mode}
	if mode == session.ModeComputer {
		opts.Selector = bot.Selector{}
		opts.ComputerDelay = cfg.ComputerDelay
		opts.OnMove = func(res session.MoveResult) {
			if res.Mark == session.ComputerMark {
				computerMoved <- res
			}
		}
	}
	s, err := session.New(opts)
	if err != nil {
		return err
	}
	defer s.Close()

	printBoard(s.Snapshot().Board)
	fmt.Printf("%s to move. Enter \"row col\", r to reset, q to quit.\n", s.Snapshot().CurrentMark)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case res := <-computerMoved:
			fmt.Printf("Computer plays %d %d\n", res.Move.Row, res.Move.Col)
			printBoard(res.Board)
			if res.Status.Terminal() {
				printResult(s.Snapshot())
				return nil
			}

		case line, ok := <-lines:
			if !ok || line == "q" {
				return nil
			}
			if line == "r" {
				s.Reset()
				printBoard(s.Snapshot().Board)
				continue
			}
			row, col, err := parseMove(line)
			if err != nil {
				fmt.Println(err)
				continue
			}
			res, err := s.Play(row, col)
			if err != nil {
				fmt.Println("Move rejected:", err)
				continue
			}
			printBoard(res.Board)
			if res.Status.Terminal() {
				printResult(s.Snapshot())
				return nil
			}
			fmt.Printf("%s to move.\n", res.Next)
		}
	}
}

// playRemote finds an opponent through the server and relays moves until the game ends
// or the client is sent back to configuration.
func playRemote(ctx context.Context, cfg *config.Client, lines <-chan string) error {
	wsURL, err := client.WebsocketURL(cfg.ServerURL, "")
	if err != nil {
		return err
	}
	conn, err := client.Dial(ctx, wsURL)
	if err != nil {
		return err
	}
	defer conn.Close()

	remote := client.NewRemote(conn, client.RemoteOptions{GridSize: cfg.GridSize, DisconnectGrace: cfg.DisconnectGrace})
	go func() { _ = remote.Run(ctx) }()

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go client.Heartbeat(hbCtx, cfg.ServerURL, cfg.HeartbeatInterval, func(err error) {
		fmt.Println("Server unreachable:", err)
	})

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-remote.Done():
			return nil

		case ev := <-remote.Events():
			done, err := showEvent(ctx, remote, ev)
			if done {
				return err
			}

		case line, ok := <-lines:
			if !ok || line == "q" {
				return nil
			}
			if line == "c" {
				if err := remote.Cancel(ctx); err != nil {
					return err
				}
				fmt.Println("Matchmaking cancelled.")
				return nil
			}
			row, col, err := parseMove(line)
			if err != nil {
				fmt.Println(err)
				continue
			}
			if _, err := remote.Play(ctx, row, col); err != nil {
				fmt.Println("Move rejected:", err)
			}
		}
	}
}

// showEvent prints a remote event and reports whether the client should return to configuration.
func showEvent(ctx context.Context, remote *client.Remote, ev client.Event) (bool, error) {
	switch ev.Kind {
	case client.EventConnected:
		fmt.Println("Connected. Looking for an opponent...")
		return false, remote.FindMatch(ctx)
	case client.EventWaiting:
		fmt.Println("Waiting for an opponent. Enter c to cancel.")
	case client.EventMatchFound:
		fmt.Printf("Match found: you play %s on a %dx%d board.\n", ev.Snapshot.LocalMark, ev.GridSize, ev.GridSize)
		printBoard(ev.Snapshot.Board)
	case client.EventNoMatchFound:
		fmt.Println("No opponent found.")
		return true, nil
	case client.EventBoardUpdated:
		printBoard(ev.Snapshot.Board)
		if ev.Snapshot.Status == session.StatusPlaying {
			if ev.Snapshot.CurrentMark == ev.Snapshot.LocalMark {
				fmt.Println("Your move.")
			} else {
				fmt.Println("Opponent's move.")
			}
		}
	case client.EventMoveRejected:
		fmt.Printf("Move rejected (%s): %s\n", ev.Code, ev.Reason)
		printBoard(ev.Snapshot.Board)
	case client.EventGameOver:
		printResult(ev.Snapshot)
		return true, nil
	case client.EventOpponentDisconnected:
		fmt.Println("Opponent disconnected.")
	case client.EventReturnToConfig:
		return true, nil
	case client.EventTransportLost:
		return true, ev.Err
	case client.EventServerError:
		fmt.Printf("Server error (%s): %s\n", ev.Code, ev.Reason)
	}
	return false, nil
}
