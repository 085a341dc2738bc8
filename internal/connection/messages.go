// Package connection implements the connection actor (C7, spec.md §4.7)
// and connection registry (C8, spec.md §4.8): the per-presentation-session
// actor that dispatches presentation intents to persistence or to a
// session manager, and the sharded user-id-to-connections registry that
// owns it.
//
// Grounded on _examples/original_source/server/src/connection_manager.rs;
// the message vocabulary (PresentationToConnectionMsg/
// ConnectionToPresentationMsg in the original) is re-expressed here as a
// single discriminator-tagged Intent/Reply pair, matching the idiom
// already established for the game subprocess wire protocol in
// internal/gameproc, since Go has no sum types.
package connection

import (
	"context"
	"time"

	"github.com/playferrous/playferrous/internal/session"
	"github.com/playferrous/playferrous/pkg/ids"
)

// IntentType discriminates a presentation-originated Intent.
type IntentType string

const (
	IntentListProposals  IntentType = "list_proposals"
	IntentListSessions   IntentType = "list_sessions"
	IntentListMessages   IntentType = "list_messages"
	IntentPropose        IntentType = "propose"
	IntentWithdraw       IntentType = "withdraw"
	IntentEnter          IntentType = "enter"
	IntentExit           IntentType = "exit"
	IntentSessionCommand IntentType = "session_command"
)

// Intent is one message sent from a presentation adapter to its connection
// actor (spec.md §4.7's "Presentation intents" table).
type Intent struct {
	Type IntentType

	GameType   string             // Propose
	ProposalID ids.ProposalID     // Withdraw
	SessionID  ids.SessionID      // Enter
	Command    session.TerminalCommand // SessionCommand
}

// SessionInfo names the session a connection has entered.
type SessionInfo struct {
	ID   ids.SessionID
	Kind ids.SessionKind
}

// ProposalSummary is one row of a proposal listing.
type ProposalSummary struct {
	ID       ids.ProposalID
	GameType string
}

// SessionSummary is one row of a session listing.
type SessionSummary struct {
	ID   ids.SessionID
	Kind ids.SessionKind
}

// MessageSummary is one row of a message listing (spec.md §3's Message
// entity: id, recipient, optional sender, subject, body, optional
// triggering request id, sent-at; the read flag is not surfaced here
// since ListMessages only ever returns unread messages).
type MessageSummary struct {
	ID        ids.MessageID
	From      *ids.UserID
	Subject   string
	Body      string
	RequestID *ids.RequestID
	SentAt    time.Time
}

// Reply is one message sent from a connection actor back to its
// presentation adapter.
type Reply struct {
	EnteredSession *SessionInfo
	ExitedSession  bool
	SessionLine    *string
	Error          *string
	Messages       []MessageSummary
	Proposals      []ProposalSummary
	Sessions       []SessionSummary
}

// SystemMsg is a notification delivered to a connection actor out of band
// from its presentation adapter (spec.md §4.7's "one-way inbox for system
// notifications").
type SystemMsg struct {
	NewMessage bool
}

// ProposalSessions is the subset of proposal.Manager a connection actor
// needs to enter a game-proposal session. Declared locally so this package
// does not import internal/proposal directly; *proposal.Manager satisfies
// it structurally.
type ProposalSessions interface {
	EnterSession(ctx context.Context, proposalID ids.ProposalID, userID ids.UserID, kind session.PresentationKind) (session.ConnBichannel, error)
}

// GameSessions is the subset of gamesession.Manager a connection actor
// needs to enter a game session. *gamesession.Manager satisfies it
// structurally.
type GameSessions interface {
	EnterSession(ctx context.Context, gameID ids.GameID, userID ids.UserID, playerIndex int, kind session.PresentationKind) (session.ConnBichannel, error)
}
