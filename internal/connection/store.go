package connection

import (
	"context"

	"github.com/playferrous/playferrous/internal/txn"
	"github.com/playferrous/playferrous/pkg/ids"
)

// SessionRecord is a persisted session row resolved by id, naming which
// kind of session it seats and at what target (spec.md §3's
// (proposal_id) xor (game_id, player_index) pair).
type SessionRecord struct {
	ID     ids.SessionID
	Target ids.SessionTarget
}

// Store is the persistence surface a connection actor needs (spec.md
// §4.7). Concrete implementations live in internal/store.
type Store interface {
	ListProposals(ctx context.Context, userID ids.UserID) ([]ProposalSummary, error)
	ListSessions(ctx context.Context, userID ids.UserID) ([]SessionSummary, error)
	ListMessages(ctx context.Context, userID ids.UserID) ([]MessageSummary, error)

	// SessionByIDForUser resolves a session id, scoped to userID so a user
	// cannot enter a session they do not own (spec.md §7's Authorization
	// kind: "session-not-owned-by-user").
	SessionByIDForUser(ctx context.Context, sessionID ids.SessionID, userID ids.UserID) (SessionRecord, bool, error)

	Begin(ctx context.Context) (*txn.Tx, error)

	// CreateProposal records a new proposal of gameType authored by
	// userID, inside tx.
	CreateProposal(ctx context.Context, tx *txn.Tx, userID ids.UserID, gameType string) (ids.ProposalID, error)
}
