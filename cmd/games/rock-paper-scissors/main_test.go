package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/playferrous/playferrous/internal/gameproc"
)

func readResponses(t *testing.T, out *bytes.Buffer, n int) []gameproc.Response {
	t.Helper()
	scanner := bufio.NewScanner(out)
	var resps []gameproc.Response
	for i := 0; i < n && scanner.Scan(); i++ {
		var resp gameproc.Response
		if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshal response %d: %v", i, err)
		}
		resps = append(resps, resp)
	}
	return resps
}

func TestRunSpeaksTheWireProtocolEndToEnd(t *testing.T) {
	rulesJSON, _ := json.Marshal(rules{NumRounds: 1, TurnTimeout: gameproc.GameTick(30000)})
	tick := gameproc.GameTick(0)
	tick1 := gameproc.GameTick(1)
	player0 := 0
	rockAction, _ := json.Marshal(rock)
	scissorsAction, _ := json.Marshal(scissors)

	requests := []gameproc.Request{
		{Type: gameproc.RequestInitialize, Setup: &gameproc.GameSetup{GameType: "rock-paper-scissors", NumPlayers: 2, Rules: rulesJSON}},
		{Type: gameproc.RequestAdvance, Tick: &tick, Action: rockAction},
		{Type: gameproc.RequestAdvance, Tick: &tick1, Action: scissorsAction},
		{Type: gameproc.RequestState},
		{Type: gameproc.RequestInterpretConsoleCommand, Player: &player0, Command: strPtr("rock")},
	}

	var in bytes.Buffer
	for _, req := range requests {
		line, err := json.Marshal(req)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		in.Write(line)
		in.WriteByte('\n')
	}

	var out bytes.Buffer
	if err := run(&in, &out); err != nil {
		t.Fatalf("run: %v", err)
	}

	resps := readResponses(t, &out, len(requests))
	if len(resps) != len(requests) {
		t.Fatalf("got %d responses, want %d", len(resps), len(requests))
	}
	for i, resp := range resps {
		if resp.Type != requests[i].Type {
			t.Fatalf("response %d type = %q, want %q", i, resp.Type, requests[i].Type)
		}
	}

	state := resps[3].State
	if state == nil || state.Complete == nil {
		t.Fatalf("expected a complete state after the configured round, got %+v", resps[3])
	}
	if state.Complete.PlayerResults[0].Score != 3 || state.Complete.PlayerResults[1].Score != 0 {
		t.Fatalf("final scores = %+v, want 3/0", state.Complete.PlayerResults)
	}

	// interpretConsoleCommand only checks turn order, not completion, so a
	// well-formed command from the player whose turn it is still resolves
	// to an advance action even though the game has already finished.
	cr := resps[4].CommandResponse
	if cr == nil || cr.Advance == nil {
		t.Fatalf("unexpected command response after game completion: %+v", cr)
	}
}

func TestRunRejectsRequestsBeforeInitialize(t *testing.T) {
	in := strings.NewReader(`{"type":"state"}` + "\n")
	var out bytes.Buffer
	if err := run(in, &out); err == nil {
		t.Fatal("expected an error for a state request before initialize")
	}
}

func strPtr(s string) *string { return &s }
