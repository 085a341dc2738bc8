package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/playferrous/playferrous/internal/gameproc"
)

// main runs the machine-mode request/response loop the launcher expects
// (internal/gameproc/driver.go invokes this binary as
// `rock-paper-scissors --playferrous`): read one JSON request line from
// stdin, write exactly one JSON response line to stdout, repeat until
// stdin closes.
func main() {
	if err := run(os.Stdin, os.Stdout); err != nil && err != io.EOF {
		fmt.Fprintln(os.Stderr, "rock-paper-scissors:", err)
		os.Exit(1)
	}
}

func run(in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	writer := bufio.NewWriter(out)

	var game *rockPaperScissors
	for scanner.Scan() {
		var req gameproc.Request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			return fmt.Errorf("unmarshal request: %w", err)
		}

		resp, err := dispatch(&game, req)
		if err != nil {
			return fmt.Errorf("handle %s: %w", req.Type, err)
		}

		line, err := json.Marshal(resp)
		if err != nil {
			return fmt.Errorf("marshal response: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return err
		}
		if err := writer.WriteByte('\n'); err != nil {
			return err
		}
		if err := writer.Flush(); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func dispatch(game **rockPaperScissors, req gameproc.Request) (gameproc.Response, error) {
	switch req.Type {
	case gameproc.RequestInitialize:
		if req.Setup == nil {
			return gameproc.Response{}, fmt.Errorf("initialize request missing setup")
		}
		g, err := newGame(*req.Setup)
		if err != nil {
			return gameproc.Response{}, err
		}
		*game = g
		return gameproc.Response{Type: gameproc.RequestInitialize}, nil

	case gameproc.RequestLoadSnapshot:
		if *game == nil {
			return gameproc.Response{}, fmt.Errorf("load_snapshot before initialize")
		}
		if err := (*game).loadSnapshot(req.Snapshot); err != nil {
			return gameproc.Response{}, err
		}
		return gameproc.Response{Type: gameproc.RequestLoadSnapshot}, nil

	case gameproc.RequestSaveSnapshot:
		if *game == nil {
			return gameproc.Response{}, fmt.Errorf("save_snapshot before initialize")
		}
		snap, err := (*game).saveSnapshot()
		if err != nil {
			return gameproc.Response{}, err
		}
		return gameproc.Response{Type: gameproc.RequestSaveSnapshot, Snapshot: snap}, nil

	case gameproc.RequestAdvance:
		if *game == nil {
			return gameproc.Response{}, fmt.Errorf("advance before initialize")
		}
		if req.Tick == nil {
			return gameproc.Response{}, fmt.Errorf("advance request missing tick")
		}
		if err := (*game).advance(*req.Tick, req.Action); err != nil {
			return gameproc.Response{}, err
		}
		return gameproc.Response{Type: gameproc.RequestAdvance}, nil

	case gameproc.RequestState:
		if *game == nil {
			return gameproc.Response{}, fmt.Errorf("state before initialize")
		}
		state := (*game).gameState()
		return gameproc.Response{Type: gameproc.RequestState, State: &state}, nil

	case gameproc.RequestRenderConsoleUI:
		if *game == nil {
			return gameproc.Response{}, fmt.Errorf("render_console_ui before initialize")
		}
		if req.Player == nil {
			return gameproc.Response{}, fmt.Errorf("render_console_ui request missing player")
		}
		ui, err := (*game).renderConsoleUI(*req.Player)
		if err != nil {
			return gameproc.Response{}, err
		}
		return gameproc.Response{Type: gameproc.RequestRenderConsoleUI, Prompt: ui}, nil

	case gameproc.RequestInterpretConsoleCommand:
		if *game == nil {
			return gameproc.Response{}, fmt.Errorf("interpret_console_command before initialize")
		}
		if req.Player == nil || req.Command == nil {
			return gameproc.Response{}, fmt.Errorf("interpret_console_command request missing player or command")
		}
		cr, err := (*game).interpretConsoleCommand(*req.Player, *req.Command)
		if err != nil {
			return gameproc.Response{}, err
		}
		return gameproc.Response{Type: gameproc.RequestInterpretConsoleCommand, CommandResponse: cr}, nil

	default:
		return gameproc.Response{}, fmt.Errorf("unknown request type %q", req.Type)
	}
}

// normalizeCommand lowercases a console command and removes every space,
// tab, CR and LF from it (not only leading and trailing ones), so "Rock",
// " r\n", and "ROCK" all resolve the same way.
func normalizeCommand(command string) string {
	var b []byte
	for i := 0; i < len(command); i++ {
		c := command[i]
		if c == ' ' || c == '\t' || c == '\r' || c == '\n' {
			continue
		}
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		b = append(b, c)
	}
	return string(b)
}
