// Package gameproc implements the game subprocess driver (C3, spec.md
// §4.3/§6): it spawns a game executable in "machine mode", exchanges
// JSON-line request/response pairs over its stdin/stdout, and enforces
// that every request is matched by exactly one response carrying the same
// discriminator.
//
// The wire schema mirrors _examples/original_source/types/src/lib.rs's
// GameRequest/GameResponse enums; Go has no sum types, so each is
// represented as a single struct tagged by a "type" discriminator field,
// with the payload fields for other variants left zero.
package gameproc

import "encoding/json"

// RequestType is the discriminator carried by every GameRequest.
type RequestType string

const (
	RequestInitialize              RequestType = "initialize"
	RequestLoadSnapshot            RequestType = "load_snapshot"
	RequestSaveSnapshot            RequestType = "save_snapshot"
	RequestAdvance                 RequestType = "advance"
	RequestState                   RequestType = "state"
	RequestRenderConsoleUI         RequestType = "render_console_ui"
	RequestInterpretConsoleCommand RequestType = "interpret_console_command"
)

// ResponseType is the discriminator carried by every GameResponse. It must
// equal the RequestType of the request it answers (spec.md invariant 3).
type ResponseType = RequestType

// GameSetup carries the parameters a subprocess needs to initialize a new
// game instance (spec.md §4.3, §6).
type GameSetup struct {
	GameType   string          `json:"game_type"`
	NumPlayers int             `json:"num_players"`
	Seed       int64           `json:"seed"`
	Rules      json.RawMessage `json:"rules"`
}

// ConsoleUI is the console prompt a subprocess may render for a player.
type ConsoleUI struct {
	Prompt string `json:"prompt"`
}

// CommandResponse is returned by InterpretConsoleCommand: an optional UI
// update to show without advancing, and/or an optional action to apply.
// Both absent means "ignore" (spec.md §4.3).
type CommandResponse struct {
	UpdateUI *ConsoleUI      `json:"update_ui,omitempty"`
	Advance  json.RawMessage `json:"advance,omitempty"`
}

// PlayerResult is one player's outcome in a completed game.
type PlayerResult struct {
	Score int64 `json:"score"`
}

// GameResult is the full outcome of a completed game, indexed by player.
type GameResult struct {
	PlayerResults []PlayerResult `json:"player_results"`
}

// InProgressGameState reports whose turn it is and when their deadline
// elapses.
type InProgressGameState struct {
	PlayerTurn int      `json:"player_turn"`
	Deadline   GameTick `json:"deadline"`
}

// GameState is the subprocess's report of overall game progress: either
// still in progress (with a turn/deadline) or complete (with results).
type GameState struct {
	InProgress *InProgressGameState `json:"in_progress,omitempty"`
	Complete   *GameResult          `json:"complete,omitempty"`
}

// Done reports whether the game has finished.
func (s GameState) Done() bool { return s.Complete != nil }

// Request is a single line written to a subprocess's stdin.
type Request struct {
	Type RequestType `json:"type"`

	// Initialize
	Setup *GameSetup `json:"setup,omitempty"`
	// LoadSnapshot
	Snapshot json.RawMessage `json:"snapshot,omitempty"`
	// Advance
	Tick   *GameTick       `json:"tick,omitempty"`
	Action json.RawMessage `json:"action,omitempty"`
	// RenderConsoleUi, InterpretConsoleCommand
	Player *int `json:"player,omitempty"`
	// InterpretConsoleCommand
	Command *string `json:"command,omitempty"`
}

// Response is a single line read from a subprocess's stdout.
type Response struct {
	Type ResponseType `json:"type"`

	// SaveSnapshot
	Snapshot json.RawMessage `json:"snapshot,omitempty"`
	// State
	State *GameState `json:"state,omitempty"`
	// RenderConsoleUi
	Prompt *ConsoleUI `json:"prompt,omitempty"`
	// InterpretConsoleCommand
	CommandResponse *CommandResponse `json:"command_response,omitempty"`
}

func initializeRequest(setup GameSetup) Request {
	return Request{Type: RequestInitialize, Setup: &setup}
}

func loadSnapshotRequest(snapshot json.RawMessage) Request {
	return Request{Type: RequestLoadSnapshot, Snapshot: snapshot}
}

func saveSnapshotRequest() Request {
	return Request{Type: RequestSaveSnapshot}
}

func advanceRequest(tick GameTick, action json.RawMessage) Request {
	return Request{Type: RequestAdvance, Tick: &tick, Action: action}
}

func stateRequest() Request {
	return Request{Type: RequestState}
}

func renderConsoleUIRequest(player int) Request {
	return Request{Type: RequestRenderConsoleUI, Player: &player}
}

func interpretConsoleCommandRequest(player int, command string) Request {
	return Request{Type: RequestInterpretConsoleCommand, Player: &player, Command: &command}
}
