// Package gamesession implements the game session actor (C6, spec.md
// §4.6). Unlike the proposal session actor (internal/proposal), this
// component has no direct counterpart to port: original_source's
// server/src/game_manager.rs is a near-empty stub whose GameActor::run
// immediately returns. This package is built fresh from spec.md §4.6's
// text, reusing the registry/actor shape established by
// internal/proposal and the subprocess driver from internal/gameproc.
package gamesession

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/playferrous/playferrous/internal/session"
	"github.com/playferrous/playferrous/pkg/actor"
	"github.com/playferrous/playferrous/pkg/apperr"
	"github.com/playferrous/playferrous/pkg/bichannel"
	"github.com/playferrous/playferrous/pkg/ids"
	"github.com/playferrous/playferrous/pkg/metrics"
)

// entryChanCapacity and sessionChanCapacity mirror the defaults used by
// internal/proposal (spec.md §5: "Channels use capacity 4 by default").
const (
	entryChanCapacity   = 4
	sessionChanCapacity = 4
)

// enterMsg is the game manager's system message admitting one player seat,
// grounded on EnterGameSession in game_manager.rs (there keyed by
// player_index alone; this package also threads the user id through so
// Member broadcasts can name who sits at a seat, per spec.md's Member
// type).
type enterMsg struct {
	userID      ids.UserID
	playerIndex int
	channel     session.Bichannel
	kind        session.PresentationKind
}

// Manager is the process-wide registry of live game session actors, keyed
// by game id.
type Manager struct {
	mu    sync.Mutex
	games map[ids.GameID]chan<- enterMsg

	launcher Launcher
	store    Store
	log      *slog.Logger
	metrics  *metrics.OrchestrationMetrics
}

// NewManager constructs an empty game session registry.
func NewManager(launcher Launcher, store Store, log *slog.Logger, m *metrics.OrchestrationMetrics) *Manager {
	return &Manager{
		games:    make(map[ids.GameID]chan<- enterMsg),
		launcher: launcher,
		store:    store,
		log:      log,
		metrics:  m,
	}
}

// EnterSession admits userID, seated at playerIndex, into the game session
// for gameID, starting its actor if it does not already exist, and returns
// the connection-facing half of a fresh bichannel to it.
func (m *Manager) EnterSession(ctx context.Context, gameID ids.GameID, userID ids.UserID, playerIndex int, kind session.PresentationKind) (session.ConnBichannel, error) {
	entryCh := m.entryChannel(gameID)

	sessionSide, connSide := bichannel.New[session.FromSessionMsg, session.ToSessionMsg](sessionChanCapacity)

	enter := enterMsg{userID: userID, playerIndex: playerIndex, channel: sessionSide, kind: kind}

	select {
	case entryCh <- enter:
		return connSide, nil
	case <-ctx.Done():
		return session.ConnBichannel{}, apperr.Wrap(apperr.KindTimeout, ctx.Err())
	}
}

func (m *Manager) entryChannel(gameID ids.GameID) chan<- enterMsg {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ch, ok := m.games[gameID]; ok {
		return ch
	}

	ch := make(chan enterMsg, entryChanCapacity)
	m.games[gameID] = ch

	a := newActor(gameID, ch, m, m.launcher, m.store, m.log.With("game_id", fmt.Sprint(gameID)), m.metrics)
	actor.Spawn(context.Background(), m.log, fmt.Sprintf("game-actor[%s]", gameID), a.run)

	return ch
}

// remove deregisters gameID. Called by the actor itself on exit, the Go
// analog of GameActor's Drop impl removing its own registry entry.
func (m *Manager) remove(gameID ids.GameID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.games, gameID)
}
