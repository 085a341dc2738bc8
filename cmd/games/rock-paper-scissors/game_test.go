package main

import (
	"encoding/json"
	"testing"

	"github.com/playferrous/playferrous/internal/gameproc"
)

func newTestGame(t *testing.T, numRounds int64) *rockPaperScissors {
	t.Helper()
	rules := rules{NumRounds: numRounds, TurnTimeout: gameproc.GameTick(30000)}
	rulesJSON, err := json.Marshal(rules)
	if err != nil {
		t.Fatalf("marshal rules: %v", err)
	}
	g, err := newGame(gameproc.GameSetup{GameType: "rock-paper-scissors", NumPlayers: 2, Rules: rulesJSON})
	if err != nil {
		t.Fatalf("newGame: %v", err)
	}
	return g
}

func mustMarshal(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}

func TestCompareOutcomes(t *testing.T) {
	cases := []struct {
		a, b action
		want outcome
	}{
		{rock, scissors, won},
		{scissors, paper, won},
		{paper, rock, won},
		{scissors, rock, lost},
		{paper, scissors, lost},
		{rock, paper, lost},
		{rock, rock, drew},
		{paper, paper, drew},
		{scissors, scissors, drew},
	}
	for _, c := range cases {
		if got := compare(c.a, c.b); got != c.want {
			t.Errorf("compare(%s, %s) = %s, want %s", c.a, c.b, got, c.want)
		}
	}
}

func TestOutcomeNegateAndScore(t *testing.T) {
	if won.negate() != lost || lost.negate() != won || drew.negate() != drew {
		t.Fatal("negate did not flip won/lost and preserve drew")
	}
	if won.score() != 3 || drew.score() != 1 || lost.score() != 0 {
		t.Fatal("unexpected scoring")
	}
}

func TestAdvancePlayerTurnAlternates(t *testing.T) {
	g := newTestGame(t, 3)

	if g.playerTurn() != 0 {
		t.Fatalf("playerTurn = %d, want 0 before anyone has acted", g.playerTurn())
	}

	if err := g.advance(gameproc.GameTick(1000), mustMarshal(t, rock)); err != nil {
		t.Fatalf("advance (player0): %v", err)
	}
	if g.playerTurn() != 1 {
		t.Fatalf("playerTurn = %d, want 1 after player0 acts", g.playerTurn())
	}
	if g.state.RoundsPlayed != 0 {
		t.Fatalf("round should not complete until player1 acts")
	}

	if err := g.advance(gameproc.GameTick(2000), mustMarshal(t, scissors)); err != nil {
		t.Fatalf("advance (player1): %v", err)
	}
	if g.state.RoundsPlayed != 1 {
		t.Fatalf("RoundsPlayed = %d, want 1", g.state.RoundsPlayed)
	}
	if g.state.Player0Score != 3 || g.state.Player1Score != 0 {
		t.Fatalf("scores = %d/%d, want 3/0 (rock beats scissors)", g.state.Player0Score, g.state.Player1Score)
	}
	if g.playerTurn() != 0 {
		t.Fatalf("playerTurn = %d, want 0 at the start of the next round", g.playerTurn())
	}
}

func TestAdvanceDrawScoresOnePointEach(t *testing.T) {
	g := newTestGame(t, 1)

	if err := g.advance(gameproc.GameTick(0), mustMarshal(t, paper)); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if err := g.advance(gameproc.GameTick(1), mustMarshal(t, paper)); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if g.state.Player0Score != 1 || g.state.Player1Score != 1 {
		t.Fatalf("scores = %d/%d, want 1/1 on a draw", g.state.Player0Score, g.state.Player1Score)
	}
}

func TestAdvancePlayer1DeadlineForfeit(t *testing.T) {
	g := newTestGame(t, 1)

	if err := g.advance(gameproc.GameTick(0), mustMarshal(t, rock)); err != nil {
		t.Fatalf("advance (player0): %v", err)
	}
	// player1 never acts; the driver calls advance with a nil action once
	// the deadline elapses.
	if err := g.advance(gameproc.GameTick(60000), nil); err != nil {
		t.Fatalf("advance (forfeit): %v", err)
	}
	if g.state.Player0Score != 3 || g.state.Player1Score != 0 {
		t.Fatalf("scores = %d/%d, want 3/0 when player1 forfeits", g.state.Player0Score, g.state.Player1Score)
	}
	if g.state.RoundsPlayed != 1 {
		t.Fatalf("a forfeited round should still count as played")
	}
}

func TestAdvancePlayer0DeadlineForfeit(t *testing.T) {
	g := newTestGame(t, 1)

	if err := g.advance(gameproc.GameTick(0), nil); err != nil {
		t.Fatalf("advance (forfeit): %v", err)
	}
	if g.state.Player0Score != 0 || g.state.Player1Score != 3 {
		t.Fatalf("scores = %d/%d, want 0/3 when player0 forfeits", g.state.Player0Score, g.state.Player1Score)
	}
	if g.state.RoundsPlayed != 1 {
		t.Fatalf("a forfeited round should still count as played")
	}
	if g.playerTurn() != 0 {
		t.Fatalf("playerTurn = %d, want 0 at the start of the next round", g.playerTurn())
	}
}

func TestGameStateTransitionsToComplete(t *testing.T) {
	g := newTestGame(t, 1)

	state := g.gameState()
	if state.InProgress == nil || state.Complete != nil {
		t.Fatal("expected an in-progress state before any rounds are played")
	}

	if err := g.advance(gameproc.GameTick(0), mustMarshal(t, rock)); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if err := g.advance(gameproc.GameTick(1), mustMarshal(t, scissors)); err != nil {
		t.Fatalf("advance: %v", err)
	}

	state = g.gameState()
	if state.Complete == nil {
		t.Fatal("expected a complete state after the configured rounds are played")
	}
	if len(state.Complete.PlayerResults) != 2 {
		t.Fatalf("PlayerResults has %d entries, want 2", len(state.Complete.PlayerResults))
	}
	if state.Complete.PlayerResults[0].Score != 3 || state.Complete.PlayerResults[1].Score != 0 {
		t.Fatalf("final scores = %d/%d, want 3/0", state.Complete.PlayerResults[0].Score, state.Complete.PlayerResults[1].Score)
	}
}

func TestInterpretConsoleCommandAcceptsShorthand(t *testing.T) {
	g := newTestGame(t, 1)

	cr, err := g.interpretConsoleCommand(0, "r")
	if err != nil {
		t.Fatalf("interpretConsoleCommand: %v", err)
	}
	if cr.Advance == nil {
		t.Fatal("expected an advance action for a valid command")
	}
	var act action
	if err := json.Unmarshal(cr.Advance, &act); err != nil {
		t.Fatalf("unmarshal advance action: %v", err)
	}
	if act != rock {
		t.Fatalf("act = %s, want rock", act)
	}
}

func TestInterpretConsoleCommandRejectsWrongTurn(t *testing.T) {
	g := newTestGame(t, 1)

	cr, err := g.interpretConsoleCommand(1, "rock")
	if err != nil {
		t.Fatalf("interpretConsoleCommand: %v", err)
	}
	if cr.UpdateUI == nil || cr.UpdateUI.Prompt != "It's not your turn yet!" {
		t.Fatalf("unexpected response for an out-of-turn command: %+v", cr)
	}
	if cr.Advance != nil {
		t.Fatal("an out-of-turn command must not advance the game")
	}
}

func TestInterpretConsoleCommandRejectsUnrecognized(t *testing.T) {
	g := newTestGame(t, 1)

	cr, err := g.interpretConsoleCommand(0, "lizard")
	if err != nil {
		t.Fatalf("interpretConsoleCommand: %v", err)
	}
	if cr.UpdateUI == nil || cr.UpdateUI.Prompt != "Invalid command: lizard" {
		t.Fatalf("unexpected response for an unrecognized command: %+v", cr)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	g := newTestGame(t, 3)
	if err := g.advance(gameproc.GameTick(0), mustMarshal(t, paper)); err != nil {
		t.Fatalf("advance: %v", err)
	}

	snap, err := g.saveSnapshot()
	if err != nil {
		t.Fatalf("saveSnapshot: %v", err)
	}

	restored := newTestGame(t, 3)
	if err := restored.loadSnapshot(snap); err != nil {
		t.Fatalf("loadSnapshot: %v", err)
	}
	if restored.playerTurn() != 1 {
		t.Fatalf("playerTurn = %d after restore, want 1", restored.playerTurn())
	}
}
