// Package proposal implements the proposal session actor (C5, spec.md
// §4.5): a per-proposal rendezvous room that admits users, broadcasts
// membership and terminal events, enforces per-recipient send timeouts,
// and self-terminates once idle. It is grounded directly on
// _examples/original_source/server/src/proposal_manager.rs, re-expressed
// with goroutines/channels in place of tokio tasks/DashMap.
package proposal

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

// entryChanCapacity matches the original's mpsc::channel(4) for the
// system inbox.
const entryChanCapacity = 4

// sessionChanCapacity matches the original's bichannel(4) per connection.
const sessionChanCapacity = 4

// Manager is the process-wide registry of live proposal actors, keyed by
// proposal id. It performs compare-and-insert so concurrent entry
// requests for the same proposal rendezvous on one actor (spec.md
// invariant 1).
type Manager struct {
	mu        sync.Mutex
	proposals map[ids.ProposalID]chan<- session.Enter

	log     *slog.Logger
	metrics *metrics.OrchestrationMetrics
}

// NewManager constructs an empty proposal registry.
func NewManager(log *slog.Logger, m *metrics.OrchestrationMetrics) *Manager {
	return &Manager{
		proposals: make(map[ids.ProposalID]chan<- session.Enter),
		log:       log,
		metrics:   m,
	}
}

// EnterSession admits userID into the proposal session for proposalID,
// starting the session actor if it does not already exist, and returns
// the connection-facing half of a fresh bichannel to it.
func (m *Manager) EnterSession(ctx context.Context, proposalID ids.ProposalID, userID ids.UserID, kind session.PresentationKind) (session.ConnBichannel, error) {
	entryCh := m.entryChannel(proposalID)

	sessionSide, connSide := bichannel.New[session.FromSessionMsg, session.ToSessionMsg](sessionChanCapacity)

	enter := session.Enter{UserID: userID, Channel: sessionSide, Kind: kind}

	select {
	case entryCh <- enter:
		return connSide, nil
	case <-ctx.Done():
		return session.ConnBichannel{}, apperr.Wrap(apperr.KindTimeout, ctx.Err())
	}
}

// entryChannel returns the existing actor's entry channel for proposalID,
// or starts a new actor and registers its entry channel atomically.
func (m *Manager) entryChannel(proposalID ids.ProposalID) chan<- session.Enter {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ch, ok := m.proposals[proposalID]; ok {
		return ch
	}

	ch := make(chan session.Enter, entryChanCapacity)
	m.proposals[proposalID] = ch

	a := newActor(proposalID, ch, m, m.log.With("proposal_id", fmt.Sprint(proposalID)), m.metrics)
	actor.Spawn(context.Background(), m.log, fmt.Sprintf("proposal-actor[%s]", proposalID), a.run)

	return ch
}

// remove deregisters proposalID. Called by the actor itself on exit,
// mirroring the original's Drop impl removing its own registry entry.
func (m *Manager) remove(proposalID ids.ProposalID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.proposals, proposalID)
}
