package connection

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/playferrous/playferrous/internal/session"
	"github.com/playferrous/playferrous/internal/txn"
	"github.com/playferrous/playferrous/pkg/bichannel"
	"github.com/playferrous/playferrous/pkg/ids"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeStore struct {
	mu        sync.Mutex
	db        *sql.DB
	proposals []ProposalSummary
	sessions  []SessionSummary
	messages  []MessageSummary
	byID      map[ids.SessionID]SessionRecord
	created   []string
	nextPID   int64
}

func newFakeStore(t *testing.T) *fakeStore {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite3: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &fakeStore{db: db, byID: make(map[ids.SessionID]SessionRecord)}
}

func (s *fakeStore) ListProposals(ctx context.Context, userID ids.UserID) ([]ProposalSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ProposalSummary(nil), s.proposals...), nil
}

func (s *fakeStore) ListSessions(ctx context.Context, userID ids.UserID) ([]SessionSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SessionSummary(nil), s.sessions...), nil
}

func (s *fakeStore) ListMessages(ctx context.Context, userID ids.UserID) ([]MessageSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]MessageSummary(nil), s.messages...), nil
}

func (s *fakeStore) SessionByIDForUser(ctx context.Context, sessionID ids.SessionID, userID ids.UserID) (SessionRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[sessionID]
	return rec, ok, nil
}

func (s *fakeStore) Begin(ctx context.Context) (*txn.Tx, error) {
	return txn.Begin(ctx, s.db)
}

func (s *fakeStore) CreateProposal(ctx context.Context, tx *txn.Tx, userID ids.UserID, gameType string) (ids.ProposalID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextPID++
	id := ids.ProposalID(s.nextPID)
	s.created = append(s.created, gameType)
	s.proposals = append(s.proposals, ProposalSummary{ID: id, GameType: gameType})
	return id, nil
}

// proposalSessionsStub and gameSessionsStub adapt a fixed ConnBichannel to
// the narrow interfaces actor.go depends on.
type proposalSessionsStub struct{ ch session.ConnBichannel }

func (p proposalSessionsStub) EnterSession(ctx context.Context, proposalID ids.ProposalID, userID ids.UserID, kind session.PresentationKind) (session.ConnBichannel, error) {
	return p.ch, nil
}

type gameSessionsStub struct{ ch session.ConnBichannel }

func (g gameSessionsStub) EnterSession(ctx context.Context, gameID ids.GameID, userID ids.UserID, playerIndex int, kind session.PresentationKind) (session.ConnBichannel, error) {
	return g.ch, nil
}

func newTestRegistry(t *testing.T) (*Registry, *fakeStore, session.Bichannel) {
	store := newFakeStore(t)
	sessionSide, connSide := bichannelSessionPair()
	reg := NewRegistry(store, proposalSessionsStub{ch: connSide}, gameSessionsStub{ch: connSide}, testLogger(), nil)
	return reg, store, sessionSide
}

// bichannelSessionPair builds a connected pair of session endpoints: the
// first value (session.Bichannel) stands in for "the session actor side"
// in test code, the second (session.ConnBichannel) is what a fake
// manager's EnterSession hands back to the connection actor under test.
func bichannelSessionPair() (session.Bichannel, session.ConnBichannel) {
	return bichannel.New[session.FromSessionMsg, session.ToSessionMsg](4)
}

func TestOpenAndListProposals(t *testing.T) {
	reg, store, _ := newTestRegistry(t)
	store.proposals = []ProposalSummary{{ID: ids.ProposalID(1), GameType: "rock-paper-scissors"}}

	ep := reg.Open(ids.UserID(1), session.PresentationTerminal)
	ep.S <- Intent{Type: IntentListProposals}

	select {
	case r := <-ep.R:
		if len(r.Proposals) != 1 || r.Proposals[0].GameType != "rock-paper-scissors" {
			t.Fatalf("unexpected reply: %+v", r)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for ListProposals reply")
	}
}

func TestProposeRepliesOnlyAfterCommit(t *testing.T) {
	reg, store, _ := newTestRegistry(t)
	ep := reg.Open(ids.UserID(1), session.PresentationTerminal)

	ep.S <- Intent{Type: IntentPropose, GameType: "rock-paper-scissors"}

	select {
	case r := <-ep.R:
		if r.SessionLine == nil {
			t.Fatalf("expected a confirmation line, got %+v", r)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Propose reply")
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.created) != 1 || store.created[0] != "rock-paper-scissors" {
		t.Fatalf("proposal not recorded: %+v", store.created)
	}
}

func TestEnterAndExit(t *testing.T) {
	reg, store, sessionSide := newTestRegistry(t)
	store.byID[ids.SessionID(1)] = SessionRecord{
		ID:     ids.SessionID(1),
		Target: ids.SessionTarget{Kind: ids.SessionKindGameProposal, Proposal: ids.ProposalID(1)},
	}

	ep := reg.Open(ids.UserID(1), session.PresentationTerminal)
	ep.S <- Intent{Type: IntentEnter, SessionID: ids.SessionID(1)}

	select {
	case r := <-ep.R:
		if r.EnteredSession == nil || r.EnteredSession.ID != ids.SessionID(1) {
			t.Fatalf("unexpected enter reply: %+v", r)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Enter reply")
	}

	// A terminal command should now be forwarded into the active session.
	ep.S <- Intent{Type: IntentSessionCommand, Command: session.TerminalCommand{Line: "r"}}
	select {
	case msg := <-sessionSide.R:
		if msg.Terminal == nil || msg.Terminal.Line != "r" {
			t.Fatalf("unexpected forwarded command: %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for forwarded session command")
	}

	ep.S <- Intent{Type: IntentExit}
	select {
	case r := <-ep.R:
		if !r.ExitedSession {
			t.Fatalf("expected ExitedSession reply, got %+v", r)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Exit reply")
	}
}

func TestEnterUnknownSessionReportsError(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	ep := reg.Open(ids.UserID(1), session.PresentationTerminal)

	ep.S <- Intent{Type: IntentEnter, SessionID: ids.SessionID(999)}

	select {
	case r := <-ep.R:
		if r.Error == nil {
			t.Fatalf("expected an error reply, got %+v", r)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Enter error reply")
	}
}
