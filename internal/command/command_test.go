package command

import (
	"strings"
	"testing"
)

func TestUnrecognisedCommand(t *testing.T) {
	interp, err := Default().Interpret("foo")
	if err != nil {
		t.Fatalf("Interpret: %v", err)
	}
	if interp.Kind != Response || interp.Prompt != "Unrecognised command. Use `help` for more information.\n" {
		t.Fatalf("unexpected interpretation: %+v", interp)
	}
}

func TestBlankLineIsNoop(t *testing.T) {
	interp, err := Default().Interpret("   ")
	if err != nil {
		t.Fatalf("Interpret: %v", err)
	}
	if interp.Kind != Noop {
		t.Fatalf("expected Noop, got %+v", interp)
	}
}

func TestProposeIsCaseInsensitiveActionWithArgs(t *testing.T) {
	interp, err := Default().Interpret("PROPOSE rock-paper-scissors")
	if err != nil {
		t.Fatalf("Interpret: %v", err)
	}
	if interp.Kind != Action || interp.Command != "propose" || len(interp.Args) != 1 || interp.Args[0] != "rock-paper-scissors" {
		t.Fatalf("unexpected interpretation: %+v", interp)
	}
}

func TestHelpTopLevel(t *testing.T) {
	interp, err := Default().Interpret("help")
	if err != nil {
		t.Fatalf("Interpret: %v", err)
	}
	if interp.Kind != Response || !strings.Contains(interp.Prompt, "propose") {
		t.Fatalf("expected top-level help mentioning propose, got %+v", interp)
	}
}

func TestHelpForKnownCommand(t *testing.T) {
	interp, err := Default().Interpret("help enter")
	if err != nil {
		t.Fatalf("Interpret: %v", err)
	}
	if interp.Kind != Response || !strings.Contains(interp.Prompt, "enter") {
		t.Fatalf("expected command-specific help, got %+v", interp)
	}
}

func TestHelpForUnknownCommand(t *testing.T) {
	interp, err := Default().Interpret("help bogus")
	if err != nil {
		t.Fatalf("Interpret: %v", err)
	}
	if interp.Kind != Response || !strings.Contains(interp.Prompt, "Unrecognised command bogus") {
		t.Fatalf("unexpected interpretation: %+v", interp)
	}
}

func TestExitTakesNoArgs(t *testing.T) {
	interp, err := Default().Interpret("exit")
	if err != nil {
		t.Fatalf("Interpret: %v", err)
	}
	if interp.Kind != Action || interp.Command != "exit" || len(interp.Args) != 0 {
		t.Fatalf("unexpected interpretation: %+v", interp)
	}
}
