package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/playferrous/playferrous/internal/gameproc"
	"github.com/playferrous/playferrous/internal/txn"
	"github.com/playferrous/playferrous/pkg/ids"
)

// GameSetup satisfies gamesession.Store.GameSetup.
func (s *Store) GameSetup(ctx context.Context, gameID ids.GameID) (gameproc.GameSetup, error) {
	query := fmt.Sprintf(`SELECT game_type, num_players, seed, rules FROM games WHERE id = %s`, s.ph(1))

	var setup gameproc.GameSetup
	var rules string
	err := s.db.QueryRowContext(ctx, query, int64(gameID)).Scan(&setup.GameType, &setup.NumPlayers, &setup.Seed, &rules)
	if err == sql.ErrNoRows {
		return gameproc.GameSetup{}, fmt.Errorf("store: game setup: unknown game %s", gameID)
	}
	if err != nil {
		return gameproc.GameSetup{}, fmt.Errorf("store: game setup: %w", err)
	}
	setup.Rules = json.RawMessage(rules)
	return setup, nil
}

// LoadSnapshot satisfies gamesession.Store.LoadSnapshot.
func (s *Store) LoadSnapshot(ctx context.Context, gameID ids.GameID) (json.RawMessage, bool, error) {
	query := fmt.Sprintf(`SELECT snapshot FROM games WHERE id = %s`, s.ph(1))

	var snapshot sql.NullString
	err := s.db.QueryRowContext(ctx, query, int64(gameID)).Scan(&snapshot)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("store: load snapshot: %w", err)
	}
	if !snapshot.Valid {
		return nil, false, nil
	}
	return json.RawMessage(snapshot.String), true, nil
}

// SaveSnapshot satisfies gamesession.Store.SaveSnapshot.
func (s *Store) SaveSnapshot(ctx context.Context, tx *txn.Tx, gameID ids.GameID, snapshot json.RawMessage) error {
	update := fmt.Sprintf(`UPDATE games SET snapshot = %s WHERE id = %s`, s.ph(1), s.ph(2))
	if _, err := tx.Exec(ctx, update, string(snapshot), int64(gameID)); err != nil {
		return fmt.Errorf("store: save snapshot: %w", err)
	}
	return nil
}

// CompleteGame satisfies gamesession.Store.CompleteGame.
func (s *Store) CompleteGame(ctx context.Context, tx *txn.Tx, gameID ids.GameID, result gameproc.GameResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("store: complete game: marshal result: %w", err)
	}

	update := fmt.Sprintf(`UPDATE games SET completed = TRUE, result = %s WHERE id = %s`, s.ph(1), s.ph(2))
	if _, err := tx.Exec(ctx, update, string(resultJSON), int64(gameID)); err != nil {
		return fmt.Errorf("store: complete game: %w", err)
	}
	return nil
}
