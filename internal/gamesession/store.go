package gamesession

import (
	"context"
	"encoding/json"

	"github.com/playferrous/playferrous/internal/gameproc"
	"github.com/playferrous/playferrous/internal/txn"
	"github.com/playferrous/playferrous/pkg/ids"
)

// Store is the persistence surface the game session actor needs (spec.md
// §4.6, §4.9). Concrete implementations live in internal/store; this
// package depends only on the interface so it can be tested without a
// database.
type Store interface {
	// GameSetup returns the parameters a game id was created with.
	GameSetup(ctx context.Context, gameID ids.GameID) (gameproc.GameSetup, error)

	// LoadSnapshot returns the most recently saved snapshot for gameID, or
	// found=false if the game has never been advanced.
	LoadSnapshot(ctx context.Context, gameID ids.GameID) (snapshot json.RawMessage, found bool, err error)

	// Begin opens a persistence transaction.
	Begin(ctx context.Context) (*txn.Tx, error)

	// SaveSnapshot durably records snapshot as the latest state of gameID,
	// inside tx.
	SaveSnapshot(ctx context.Context, tx *txn.Tx, gameID ids.GameID, snapshot json.RawMessage) error

	// CompleteGame records the final result of gameID, inside tx.
	CompleteGame(ctx context.Context, tx *txn.Tx, gameID ids.GameID, result gameproc.GameResult) error

	// NotifyParticipant writes a message addressed to userID, inside tx.
	// fromID and requestID are nil for a system-generated notification
	// (spec.md §3's Message entity makes both optional).
	NotifyParticipant(ctx context.Context, tx *txn.Tx, userID ids.UserID, fromID *ids.UserID, subject, body string, requestID *ids.RequestID) error
}

// Launcher resolves a game type to a spawned subprocess driver. Satisfied
// by *launcher.Registry; declared locally to avoid an import cycle (the
// launcher package has no reason to know about sessions).
type Launcher interface {
	Launch(gameType string, setup gameproc.GameSetup) (*gameproc.Driver, error)
}
