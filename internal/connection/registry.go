package connection

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/playferrous/playferrous/internal/session"
	"github.com/playferrous/playferrous/pkg/actor"
	"github.com/playferrous/playferrous/pkg/bichannel"
	"github.com/playferrous/playferrous/pkg/ids"
	"github.com/playferrous/playferrous/pkg/metrics"
)

// broadcastSendTimeout is the connection-registry-to-connection send
// timeout (spec.md §4.8, §5: 500ms per recipient).
const broadcastSendTimeout = 500 * time.Millisecond

// presentationChanCapacity matches the original's bichannel(4) for the
// presentation-facing half.
const presentationChanCapacity = 4

type entry struct {
	id uuid.UUID
	s  chan<- SystemMsg
}

// Registry is a sharded mapping user_id -> list of connections (spec.md
// §4.8), grounded on connection_manager.rs's
// `Arc<DashMap<UserId, Vec<Connection>>>`, re-expressed as a mutex-guarded
// map of slices: the corpus offers no off-the-shelf concurrent
// multi-map, and the registry's critical sections are short enough that a
// single mutex (rather than per-shard locks) keeps this component legible.
type Registry struct {
	mu          sync.Mutex
	connections map[ids.UserID][]entry

	store     Store
	proposals ProposalSessions
	games     GameSessions
	log       *slog.Logger
	metrics   *metrics.OrchestrationMetrics
}

// NewRegistry constructs an empty connection registry.
func NewRegistry(store Store, proposals ProposalSessions, games GameSessions, log *slog.Logger, m *metrics.OrchestrationMetrics) *Registry {
	return &Registry{
		connections: make(map[ids.UserID][]entry),
		store:       store,
		proposals:   proposals,
		games:       games,
		log:         log,
		metrics:     m,
	}
}

// Open inserts a new connection for userID, spawns its actor, and returns
// the presentation-facing bichannel endpoint (spec.md §4.8's "open").
func (r *Registry) Open(userID ids.UserID, kind session.PresentationKind) bichannel.Endpoint[Intent, Reply] {
	connSide, presentationSide := bichannel.New[Reply, Intent](presentationChanCapacity)

	systemCh := make(chan SystemMsg, entryChanCapacity)
	handleID := uuid.New()

	r.mu.Lock()
	r.connections[userID] = append(r.connections[userID], entry{id: handleID, s: systemCh})
	r.mu.Unlock()
	if r.metrics != nil {
		r.metrics.ActiveConnections.Inc()
	}

	a := newActor(userID, kind, connSide, systemCh, r, r.store, r.proposals, r.games, r.log.With("user_id", fmt.Sprint(userID), "connection", handleID), r.metrics)
	actor.Spawn(context.Background(), r.log, fmt.Sprintf("connection-actor[%s/%s]", userID, handleID), func(ctx context.Context) error {
		defer r.remove(userID, handleID)
		return a.run(ctx)
	})

	return presentationSide
}

// Broadcast fans msg out to every connection of every user in userIDs,
// with a 500ms per-recipient timeout; a slow or gone recipient is skipped
// rather than allowed to stall the broadcast (spec.md §4.8).
func (r *Registry) Broadcast(userIDs []ids.UserID, msgFn func(ids.UserID) SystemMsg) {
	type target struct {
		userID ids.UserID
		s      chan<- SystemMsg
	}

	r.mu.Lock()
	var targets []target
	for _, userID := range userIDs {
		for _, e := range r.connections[userID] {
			targets = append(targets, target{userID: userID, s: e.s})
		}
	}
	r.mu.Unlock()

	for _, t := range targets {
		select {
		case t.s <- msgFn(t.userID):
		case <-time.After(broadcastSendTimeout):
			r.log.Warn("connection registry: broadcast send timed out", "user_id", fmt.Sprint(t.userID))
		}
	}
}

// Send broadcasts msg to the singleton set {userID} (spec.md §4.8).
func (r *Registry) Send(userID ids.UserID, msg SystemMsg) {
	r.Broadcast([]ids.UserID{userID}, func(ids.UserID) SystemMsg { return msg })
}

// remove drops handleID from userID's connection list, removing the
// bucket entirely if it becomes empty (spec.md §4.8's "gc"). Unlike the
// original's retain(!is_closed) sweep — Go channels have no
// is_closed introspection — each actor removes its own entry by identity
// on exit, which is the Go-idiomatic equivalent of the Drop-triggered gc.
func (r *Registry) remove(userID ids.UserID, handleID uuid.UUID) {
	if r.metrics != nil {
		r.metrics.ActiveConnections.Dec()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	conns := r.connections[userID]
	for i, e := range conns {
		if e.id == handleID {
			conns = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(conns) == 0 {
		delete(r.connections, userID)
	} else {
		r.connections[userID] = conns
	}
}
