package proposal

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/playferrous/playferrous/internal/session"
	"github.com/playferrous/playferrous/pkg/ids"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEnterSessionRendezvousesOnSameActor(t *testing.T) {
	mgr := NewManager(testLogger(), nil)
	ctx := context.Background()
	proposalID := ids.ProposalID(1)

	connA, err := mgr.EnterSession(ctx, proposalID, ids.UserID(1), session.PresentationTerminal)
	if err != nil {
		t.Fatalf("EnterSession A: %v", err)
	}
	connB, err := mgr.EnterSession(ctx, proposalID, ids.UserID(2), session.PresentationTerminal)
	if err != nil {
		t.Fatalf("EnterSession B: %v", err)
	}

	// A should observe B's entry broadcast.
	select {
	case msg := <-connA.R:
		if msg.UserEntered == nil || msg.UserEntered.UserID != ids.UserID(2) {
			t.Fatalf("unexpected message on A: %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for UserEntered broadcast on A")
	}
	_ = connB
}

func TestBroadcastOnTerminalLine(t *testing.T) {
	mgr := NewManager(testLogger(), nil)
	ctx := context.Background()
	proposalID := ids.ProposalID(7)

	connA, err := mgr.EnterSession(ctx, proposalID, ids.UserID(1), session.PresentationTerminal)
	if err != nil {
		t.Fatalf("EnterSession A: %v", err)
	}
	connB, err := mgr.EnterSession(ctx, proposalID, ids.UserID(2), session.PresentationTerminal)
	if err != nil {
		t.Fatalf("EnterSession B: %v", err)
	}

	// Drain A's view of B's UserEntered broadcast first.
	<-connA.R
	// connB does not see its own entry broadcast (it enters after).

	connA.S <- session.ToSessionMsg{Terminal: &session.TerminalCommand{Line: "hello"}}

	select {
	case msg := <-connB.R:
		if msg.Event == nil || msg.Event.TerminalLine == nil {
			t.Fatalf("expected a terminal line event, got %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for terminal line broadcast on B")
	}
}

func TestSlowRecipientEvictedWithoutAbortingBroadcast(t *testing.T) {
	mgr := NewManager(testLogger(), nil)
	ctx := context.Background()
	proposalID := ids.ProposalID(42)

	connA, err := mgr.EnterSession(ctx, proposalID, ids.UserID(1), session.PresentationTerminal)
	if err != nil {
		t.Fatalf("EnterSession A: %v", err)
	}
	connB, err := mgr.EnterSession(ctx, proposalID, ids.UserID(2), session.PresentationTerminal)
	if err != nil {
		t.Fatalf("EnterSession B: %v", err)
	}
	<-connA.R // drain A's view of B's entry broadcast

	// Fill B's inbox (capacity 4) without draining it, so any further
	// broadcast to B must time out and evict B.
	for i := 0; i < sessionChanCapacity; i++ {
		select {
		case <-connB.R:
		default:
		}
	}
	for i := 0; i < sessionChanCapacity; i++ {
		_, err := mgr.EnterSession(ctx, proposalID, ids.UserID(100+i), session.PresentationTerminal)
		if err != nil {
			t.Fatalf("fill EnterSession %d: %v", i, err)
		}
		<-connA.R
	}

	start := time.Now()
	if _, err := mgr.EnterSession(ctx, proposalID, ids.UserID(3), session.PresentationTerminal); err != nil {
		t.Fatalf("EnterSession C: %v", err)
	}

	// The broadcast for C's entry must still reach A despite B being
	// stalled — bounded by at most one 200ms eviction timeout.
	select {
	case msg := <-connA.R:
		if msg.UserEntered == nil {
			t.Fatalf("unexpected message: %+v", msg)
		}
	case <-time.After(2 * userSendTimeout):
		t.Fatal("broadcast should complete within bounded time even with a stalled recipient")
	}
	if elapsed := time.Since(start); elapsed > 2*userSendTimeout {
		t.Fatalf("broadcast took too long: %v", elapsed)
	}
}
