// Command rock-paper-scissors is the reference game subprocess (spec.md
// §4.3/§6, §12): a two-player, best-of-N-rounds game speaking the
// gameproc wire protocol over stdin/stdout.
//
// Grounded on
// _examples/original_source/games/rock-paper-scissors/src/main.rs; rules,
// scoring (win=3, draw=1, loss=0), and deadline-forfeit behavior are
// carried over in semantics, re-expressed in idiomatic Go in place of the
// original's GameProcess trait implementation.
package main

import (
	"encoding/json"
	"fmt"

	"github.com/playferrous/playferrous/internal/gameproc"
)

// rules are the parameters this game type is initialized with (spec.md
// §4.3's opaque `rules` blob, resolved here into a concrete schema).
type rules struct {
	NumRounds   int64             `json:"num_rounds"`
	TurnTimeout gameproc.GameTick `json:"turn_timeout"`
}

// action is one player's throw for a round.
type action string

const (
	rock     action = "rock"
	paper    action = "paper"
	scissors action = "scissors"
)

func (a action) String() string { return string(a) }

// outcome is the result of comparing two actions from player 0's
// perspective.
type outcome int

const (
	won outcome = iota
	lost
	drew
)

// negate returns the same outcome from the other player's perspective.
func (o outcome) negate() outcome {
	switch o {
	case won:
		return lost
	case lost:
		return won
	default:
		return drew
	}
}

func (o outcome) String() string {
	switch o {
	case won:
		return "won"
	case lost:
		return "lost"
	default:
		return "drew"
	}
}

func (o outcome) score() int64 {
	switch o {
	case won:
		return 3
	case drew:
		return 1
	default:
		return 0
	}
}

// compare returns a's outcome when played against b.
func compare(a, b action) outcome {
	if a == b {
		return drew
	}
	switch {
	case a == rock && b == scissors,
		a == scissors && b == paper,
		a == paper && b == rock:
		return won
	default:
		return lost
	}
}

// snapshot is the full persisted state of one game instance.
type snapshot struct {
	Player0Score  int64             `json:"player0_score"`
	Player1Score  int64             `json:"player1_score"`
	RoundsPlayed  int64             `json:"rounds_played"`
	Player0Action *action           `json:"player0_action,omitempty"`
	LastAction    gameproc.GameTick `json:"last_action"`
	Player0Prompt string            `json:"player0_prompt"`
	Player1Prompt string            `json:"player1_prompt"`
}

type rockPaperScissors struct {
	rules rules
	state snapshot
}

func newGame(setup gameproc.GameSetup) (*rockPaperScissors, error) {
	var r rules
	if err := json.Unmarshal(setup.Rules, &r); err != nil {
		return nil, fmt.Errorf("rock-paper-scissors: unmarshal rules: %w", err)
	}
	return &rockPaperScissors{rules: r}, nil
}

// playerTurn reports which player's action is still awaited this round.
func (g *rockPaperScissors) playerTurn() int {
	if g.state.Player0Action != nil {
		return 1
	}
	return 0
}

func (g *rockPaperScissors) loadSnapshot(raw json.RawMessage) error {
	return json.Unmarshal(raw, &g.state)
}

func (g *rockPaperScissors) saveSnapshot() (json.RawMessage, error) {
	return json.Marshal(g.state)
}

// advance applies the outstanding player's move for this round. actionRaw
// is the JSON encoding of an optional action: an absent or null value
// means the deadline elapsed before the player moved (spec.md §4.6's
// deadline-forfeit).
func (g *rockPaperScissors) advance(tick gameproc.GameTick, actionRaw json.RawMessage) error {
	var act *action
	if len(actionRaw) > 0 {
		if err := json.Unmarshal(actionRaw, &act); err != nil {
			return fmt.Errorf("rock-paper-scissors: unmarshal action: %w", err)
		}
	}

	if g.state.Player0Action != nil {
		player0Action := *g.state.Player0Action
		g.state.Player0Action = nil

		var player0Outcome outcome
		if act != nil {
			player0Outcome = compare(player0Action, *act)
			player1Outcome := player0Outcome.negate()
			g.state.Player0Prompt = fmt.Sprintf("You played %s and %s against %s.", player0Action, player0Outcome, *act)
			g.state.Player1Prompt = fmt.Sprintf("You played %s and %s against %s.", *act, player1Outcome, player0Action)
		} else {
			g.state.Player0Prompt = "You won this round because the other player took too long to go."
			g.state.Player1Prompt = "You lost this round because you took too long to go."
			player0Outcome = won
		}
		g.state.Player0Score += player0Outcome.score()
		g.state.Player1Score += player0Outcome.negate().score()
		g.state.RoundsPlayed++
	} else {
		if act == nil {
			g.state.Player0Prompt = "You lost this round because you took too long to go."
			g.state.Player1Prompt = "You won this round because the other player took too long to go."
			g.state.Player1Score += 3
			g.state.RoundsPlayed++
		} else {
			g.state.Player0Action = act
		}
	}

	g.state.LastAction = tick
	return nil
}

func (g *rockPaperScissors) gameState() gameproc.GameState {
	if g.state.RoundsPlayed < g.rules.NumRounds {
		return gameproc.GameState{
			InProgress: &gameproc.InProgressGameState{
				PlayerTurn: g.playerTurn(),
				Deadline:   g.state.LastAction.Add(g.rules.TurnTimeout),
			},
		}
	}
	return gameproc.GameState{
		Complete: &gameproc.GameResult{
			PlayerResults: []gameproc.PlayerResult{
				{Score: g.state.Player0Score},
				{Score: g.state.Player1Score},
			},
		},
	}
}

// renderConsoleUI always reports no unprompted update: this game delivers
// its prompts exclusively through interpretConsoleCommand's UpdateUI
// field, mirroring the original's render_console_ui, which always
// returns None.
func (g *rockPaperScissors) renderConsoleUI(player int) (*gameproc.ConsoleUI, error) {
	return nil, nil
}

func (g *rockPaperScissors) interpretConsoleCommand(player int, command string) (*gameproc.CommandResponse, error) {
	if player != g.playerTurn() {
		return &gameproc.CommandResponse{UpdateUI: &gameproc.ConsoleUI{Prompt: "It's not your turn yet!"}}, nil
	}

	var act action
	switch normalizeCommand(command) {
	case "r", "rock":
		act = rock
	case "p", "paper":
		act = paper
	case "s", "scissors":
		act = scissors
	default:
		return &gameproc.CommandResponse{UpdateUI: &gameproc.ConsoleUI{Prompt: fmt.Sprintf("Invalid command: %s", command)}}, nil
	}

	actionJSON, err := json.Marshal(act)
	if err != nil {
		return nil, fmt.Errorf("rock-paper-scissors: marshal action: %w", err)
	}
	return &gameproc.CommandResponse{Advance: actionJSON}, nil
}
