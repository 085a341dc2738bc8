package gamesession

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/playferrous/playferrous/internal/gameproc"
	"github.com/playferrous/playferrous/internal/session"
	"github.com/playferrous/playferrous/internal/txn"
	"github.com/playferrous/playferrous/pkg/ids"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeRPS is a minimal stand-in for the rock-paper-scissors subprocess: it
// counts the Advance requests it receives and leaves each test's respond
// func to decide, from that count, when the game completes, without
// replicating the real scoring rules.
type fakeRPS struct {
	mu       sync.Mutex
	advances int
	respond  func(req gameproc.Request, advances int) gameproc.Response
}

func newFakeLauncher(respond func(req gameproc.Request, advances int) gameproc.Response) (Launcher, *fakeRPS) {
	fg := &fakeRPS{respond: respond}
	return launcherFunc(func(gameType string, setup gameproc.GameSetup) (*gameproc.Driver, error) {
		driverStdinR, driverStdinW := io.Pipe()
		gameStdoutR, gameStdoutW := io.Pipe()

		go func() {
			scanner := bufio.NewScanner(driverStdinR)
			for scanner.Scan() {
				var req gameproc.Request
				if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
					return
				}

				fg.mu.Lock()
				if req.Type == gameproc.RequestAdvance {
					fg.advances++
				}
				resp := fg.respond(req, fg.advances)
				fg.mu.Unlock()

				line, _ := json.Marshal(resp)
				line = append(line, '\n')
				if _, err := gameStdoutW.Write(line); err != nil {
					return
				}
			}
		}()

		return gameproc.NewDriver(nil, driverStdinW, gameStdoutR, testLogger()), nil
	}), fg
}

type launcherFunc func(gameType string, setup gameproc.GameSetup) (*gameproc.Driver, error)

func (f launcherFunc) Launch(gameType string, setup gameproc.GameSetup) (*gameproc.Driver, error) {
	return f(gameType, setup)
}

// fakeStore is an in-memory Store sufficient for exercising the actor
// without a database.
type fakeStore struct {
	mu        sync.Mutex
	db        *sql.DB
	setup     gameproc.GameSetup
	snapshot  json.RawMessage
	completed *gameproc.GameResult
	notified  map[ids.UserID][]string
}

func newFakeStore(t *testing.T, setup gameproc.GameSetup) *fakeStore {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite3: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &fakeStore{db: db, setup: setup, notified: make(map[ids.UserID][]string)}
}

func (s *fakeStore) GameSetup(ctx context.Context, gameID ids.GameID) (gameproc.GameSetup, error) {
	return s.setup, nil
}

func (s *fakeStore) LoadSnapshot(ctx context.Context, gameID ids.GameID) (json.RawMessage, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot == nil {
		return nil, false, nil
	}
	return s.snapshot, true, nil
}

func (s *fakeStore) Begin(ctx context.Context) (*txn.Tx, error) {
	return txn.Begin(ctx, s.db)
}

func (s *fakeStore) SaveSnapshot(ctx context.Context, tx *txn.Tx, gameID ids.GameID, snapshot json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = snapshot
	return nil
}

func (s *fakeStore) CompleteGame(ctx context.Context, tx *txn.Tx, gameID ids.GameID, result gameproc.GameResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = &result
	return nil
}

func (s *fakeStore) NotifyParticipant(ctx context.Context, tx *txn.Tx, userID ids.UserID, fromID *ids.UserID, subject, body string, requestID *ids.RequestID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notified[userID] = append(s.notified[userID], body)
	return nil
}

func (s *fakeStore) isCompleted() *gameproc.GameResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed
}

func TestGameSessionCompletesOnExplicitActions(t *testing.T) {
	respond := func(req gameproc.Request, advances int) gameproc.Response {
		switch req.Type {
		case gameproc.RequestState:
			if advances >= 2 {
				return gameproc.Response{Type: gameproc.RequestState, State: &gameproc.GameState{
					Complete: &gameproc.GameResult{PlayerResults: []gameproc.PlayerResult{{Score: 0}, {Score: 3}}},
				}}
			}
			turn := 0
			if advances == 1 {
				turn = 1
			}
			return gameproc.Response{Type: gameproc.RequestState, State: &gameproc.GameState{
				InProgress: &gameproc.InProgressGameState{PlayerTurn: turn, Deadline: gameproc.GameTick(time.Now().Add(time.Hour).UnixMilli())},
			}}
		case gameproc.RequestInterpretConsoleCommand:
			action := json.RawMessage(`"` + *req.Command + `"`)
			return gameproc.Response{Type: gameproc.RequestInterpretConsoleCommand, CommandResponse: &gameproc.CommandResponse{Advance: action}}
		case gameproc.RequestRenderConsoleUI:
			return gameproc.Response{Type: gameproc.RequestRenderConsoleUI}
		default:
			return gameproc.Response{Type: req.Type}
		}
	}

	launcher, _ := newFakeLauncher(respond)
	store := newFakeStore(t, gameproc.GameSetup{GameType: "rock-paper-scissors", NumPlayers: 2})
	mgr := NewManager(launcher, store, testLogger(), nil)

	ctx := context.Background()
	gameID := ids.GameID(1)

	conn0, err := mgr.EnterSession(ctx, gameID, ids.UserID(1), 0, session.PresentationTerminal)
	if err != nil {
		t.Fatalf("EnterSession player 0: %v", err)
	}
	conn1, err := mgr.EnterSession(ctx, gameID, ids.UserID(2), 1, session.PresentationTerminal)
	if err != nil {
		t.Fatalf("EnterSession player 1: %v", err)
	}

	conn0.S <- session.ToSessionMsg{Terminal: &session.TerminalCommand{Line: "r"}}
	conn1.S <- session.ToSessionMsg{Terminal: &session.TerminalCommand{Line: "p"}}

	deadline := time.After(2 * time.Second)
	gotFinal0, gotFinal1 := false, false
	for !gotFinal0 || !gotFinal1 {
		select {
		case msg := <-conn0.R:
			if msg.Event != nil && msg.Event.TerminalLine != nil {
				gotFinal0 = true
			}
		case msg := <-conn1.R:
			if msg.Event != nil && msg.Event.TerminalLine != nil {
				gotFinal1 = true
			}
		case <-deadline:
			t.Fatal("timed out waiting for game completion broadcast")
		}
	}

	if store.isCompleted() == nil {
		t.Fatalf("expected CompleteGame to have been called")
	}
}

func TestGameSessionRejectsOutOfRangePlayerIndex(t *testing.T) {
	respond := func(req gameproc.Request, advances int) gameproc.Response {
		return gameproc.Response{Type: req.Type}
	}
	launcher, _ := newFakeLauncher(respond)
	store := newFakeStore(t, gameproc.GameSetup{GameType: "rock-paper-scissors", NumPlayers: 2})
	mgr := NewManager(launcher, store, testLogger(), nil)

	ctx := context.Background()
	conn, err := mgr.EnterSession(ctx, ids.GameID(2), ids.UserID(9), 5, session.PresentationTerminal)
	if err != nil {
		t.Fatalf("EnterSession: %v", err)
	}

	select {
	case msg := <-conn.R:
		if msg.Event == nil {
			t.Fatalf("expected a rejection event, got %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for rejection event")
	}
}
