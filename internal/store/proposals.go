package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/playferrous/playferrous/internal/connection"
	"github.com/playferrous/playferrous/internal/txn"
	"github.com/playferrous/playferrous/pkg/ids"
)

// Defaults applied to every new proposal, mirroring
// original_source/server/src/database/proposal.rs:8-44's INSERT: every
// proposal starts private, open to 2-8 players, with one moderator seat,
// no rules blob, and a five-minute acceptance window.
const (
	defaultProposalIsPublic   = false
	defaultProposalMinPlayers = 2
	defaultProposalMaxPlayers = 8
	defaultProposalModPlayers = 1
	defaultProposalDeadline   = 5 * time.Minute
)

// ListProposals satisfies connection.Store.ListProposals: every open
// proposal authored by userID.
func (s *Store) ListProposals(ctx context.Context, userID ids.UserID) ([]connection.ProposalSummary, error) {
	query := fmt.Sprintf(`SELECT id, game_type FROM proposals WHERE user_id = %s ORDER BY id`, s.ph(1))
	rows, err := s.db.QueryContext(ctx, query, int64(userID))
	if err != nil {
		return nil, fmt.Errorf("store: list proposals: %w", err)
	}
	defer rows.Close()

	var out []connection.ProposalSummary
	for rows.Next() {
		var id int64
		var gameType string
		if err := rows.Scan(&id, &gameType); err != nil {
			return nil, fmt.Errorf("store: list proposals: scan: %w", err)
		}
		out = append(out, connection.ProposalSummary{ID: ids.ProposalID(id), GameType: gameType})
	}
	return out, rows.Err()
}

// CreateProposal satisfies connection.Store.CreateProposal: it records
// the proposal row — with the same visibility, player-count, rules, and
// deadline defaults original_source/server/src/database/proposal.rs
// inserts — and, in the same transaction, a session row seating the
// proposer at it (so it immediately shows up from ListSessions/
// SessionByIDForUser — a proposal and the proposer's own seat at it are
// created atomically, matching propose_manager.rs's "propose also
// enters").
func (s *Store) CreateProposal(ctx context.Context, tx *txn.Tx, userID ids.UserID, gameType string) (ids.ProposalID, error) {
	insert := fmt.Sprintf(
		`INSERT INTO proposals (user_id, game_type, is_public, min_players, max_players, mod_players, rules, deadline)
		 VALUES (%s, %s, %s, %s, %s, %s, %s, %s)`,
		s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6), s.ph(7), s.ph(8))
	proposalID, err := s.insertReturningID(ctx, tx, insert,
		int64(userID), gameType,
		defaultProposalIsPublic, defaultProposalMinPlayers, defaultProposalMaxPlayers, defaultProposalModPlayers,
		nil, time.Now().Add(defaultProposalDeadline))
	if err != nil {
		return 0, fmt.Errorf("store: create proposal: %w", err)
	}

	sessionInsert := fmt.Sprintf(
		`INSERT INTO sessions (user_id, kind, proposal_id, player_idx) VALUES (%s, %s, %s, 0)`,
		s.ph(1), s.ph(2), s.ph(3))
	if _, err := tx.Exec(ctx, sessionInsert, int64(userID), ids.SessionKindGameProposal.String(), proposalID); err != nil {
		return 0, fmt.Errorf("store: create proposal: seat proposer: %w", err)
	}

	return ids.ProposalID(proposalID), nil
}

// ListSessions satisfies connection.Store.ListSessions: every session
// userID currently holds a seat at.
func (s *Store) ListSessions(ctx context.Context, userID ids.UserID) ([]connection.SessionSummary, error) {
	query := fmt.Sprintf(`SELECT id, kind FROM sessions WHERE user_id = %s ORDER BY id`, s.ph(1))
	rows, err := s.db.QueryContext(ctx, query, int64(userID))
	if err != nil {
		return nil, fmt.Errorf("store: list sessions: %w", err)
	}
	defer rows.Close()

	var out []connection.SessionSummary
	for rows.Next() {
		var id int64
		var kind string
		if err := rows.Scan(&id, &kind); err != nil {
			return nil, fmt.Errorf("store: list sessions: scan: %w", err)
		}
		out = append(out, connection.SessionSummary{ID: ids.SessionID(id), Kind: parseSessionKind(kind)})
	}
	return out, rows.Err()
}

// SessionByIDForUser satisfies connection.Store.SessionByIDForUser,
// scoping the lookup to userID so a user cannot enter a seat that is not
// theirs (spec.md §7's "session-not-owned-by-user" authorization case).
func (s *Store) SessionByIDForUser(ctx context.Context, sessionID ids.SessionID, userID ids.UserID) (connection.SessionRecord, bool, error) {
	query := fmt.Sprintf(
		`SELECT kind, proposal_id, game_id, player_idx FROM sessions WHERE id = %s AND user_id = %s`,
		s.ph(1), s.ph(2))

	var kind string
	var proposalID, gameID sql.NullInt64
	var playerIdx int
	err := s.db.QueryRowContext(ctx, query, int64(sessionID), int64(userID)).Scan(&kind, &proposalID, &gameID, &playerIdx)
	if err == sql.ErrNoRows {
		return connection.SessionRecord{}, false, nil
	}
	if err != nil {
		return connection.SessionRecord{}, false, fmt.Errorf("store: session by id: %w", err)
	}

	rec := connection.SessionRecord{
		ID: sessionID,
		Target: ids.SessionTarget{
			Kind:      parseSessionKind(kind),
			Proposal:  ids.ProposalID(proposalID.Int64),
			Game:      ids.GameID(gameID.Int64),
			PlayerIdx: playerIdx,
		},
	}
	return rec, true, nil
}

// CreateGameSession records a game and seats each of its participants, one
// session row per player index. It supplies the persistence half of
// proposal-to-game promotion; no component in this module calls it, so
// no proposal is promoted to a game by the server itself.
func (s *Store) CreateGameSession(ctx context.Context, tx *txn.Tx, gameType string, numPlayers int, seed int64, rules []byte, participants []ids.UserID) (ids.GameID, error) {
	insertGame := fmt.Sprintf(
		`INSERT INTO games (game_type, num_players, seed, rules) VALUES (%s, %s, %s, %s)`,
		s.ph(1), s.ph(2), s.ph(3), s.ph(4))
	gameID, err := s.insertReturningID(ctx, tx, insertGame, gameType, numPlayers, seed, string(rules))
	if err != nil {
		return 0, fmt.Errorf("store: create game: %w", err)
	}

	sessionInsert := fmt.Sprintf(
		`INSERT INTO sessions (user_id, kind, game_id, player_idx) VALUES (%s, %s, %s, %s)`,
		s.ph(1), s.ph(2), s.ph(3), s.ph(4))
	for idx, userID := range participants {
		if _, err := tx.Exec(ctx, sessionInsert, int64(userID), ids.SessionKindGame.String(), gameID, idx); err != nil {
			return 0, fmt.Errorf("store: create game: seat player %d: %w", idx, err)
		}
	}

	return ids.GameID(gameID), nil
}

func parseSessionKind(s string) ids.SessionKind {
	if s == ids.SessionKindGame.String() {
		return ids.SessionKindGame
	}
	return ids.SessionKindGameProposal
}
