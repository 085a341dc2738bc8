package proposal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/playferrous/playferrous/internal/session"
	"github.com/playferrous/playferrous/pkg/ids"
	"github.com/playferrous/playferrous/pkg/metrics"
)

// userSendTimeout is the per-recipient broadcast send timeout for proposal
// sessions (spec.md §4.5, §5): a slow recipient is evicted rather than
// allowed to stall the broadcast.
const userSendTimeout = 200 * time.Millisecond

// idleTimeout is how long a proposal actor with zero members waits before
// self-terminating (spec.md §4.5).
const idleTimeout = 1 * time.Second

type connEvent struct {
	userID ids.UserID
	msg    session.ToSessionMsg
	ok     bool
}

type connection struct {
	kind   session.PresentationKind
	ch     session.Bichannel
	cancel context.CancelFunc
}

// actor is one running proposal session, grounded on ProposalActor in
// _examples/original_source/server/src/proposal_manager.rs.
type actor struct {
	proposalID ids.ProposalID
	entryCh    <-chan session.Enter
	manager    *Manager
	log        *slog.Logger
	metrics    *metrics.OrchestrationMetrics

	connections map[ids.UserID]*connection
	fanIn       chan connEvent
}

func newActor(proposalID ids.ProposalID, entryCh <-chan session.Enter, manager *Manager, log *slog.Logger, m *metrics.OrchestrationMetrics) *actor {
	return &actor{
		proposalID:  proposalID,
		entryCh:     entryCh,
		manager:     manager,
		log:         log,
		metrics:     m,
		connections: make(map[ids.UserID]*connection),
		fanIn:       make(chan connEvent, 16),
	}
}

// run is the actor's biased select loop (spec.md §4.5, §5): system
// messages before connection traffic before the idle timer. Each
// iteration first tries a non-blocking receive on the system channel so
// an enter request already queued is never starved behind connection
// traffic; only when nothing is immediately ready does it fall through to
// a blocking select across all three sources.
func (a *actor) run(ctx context.Context) error {
	defer a.manager.remove(a.proposalID)
	a.log.Info("proposal session starting")
	defer a.log.Info("proposal session stopping")

	for {
		select {
		case enter, ok := <-a.entryCh:
			if !ok {
				return nil
			}
			a.handleEnter(enter)
			continue
		default:
		}

		var idleTimerC <-chan time.Time
		if len(a.connections) == 0 {
			idleTimerC = time.After(idleTimeout)
		}

		select {
		case enter, ok := <-a.entryCh:
			if !ok {
				return nil
			}
			a.handleEnter(enter)

		case ev := <-a.fanIn:
			if !ev.ok {
				a.disconnectUser(ev.userID)
			} else {
				a.handleConnMsg(ev.userID, ev.msg)
			}

		case <-idleTimerC:
			if len(a.connections) == 0 {
				return nil
			}
		}
	}
}

func (a *actor) handleEnter(enter session.Enter) {
	a.log.Info("user entered", "user_id", fmt.Sprint(enter.UserID))

	a.broadcast(session.FromSessionMsg{UserEntered: &session.Member{UserID: enter.UserID}})

	ctx, cancel := context.WithCancel(context.Background())
	conn := &connection{kind: enter.Kind, ch: enter.Channel, cancel: cancel}
	a.connections[enter.UserID] = conn

	go forwardConn(ctx, enter.UserID, enter.Channel, a.fanIn)
}

// forwardConn relays messages from one connection's inbound half onto the
// actor's shared fan-in channel, tagged with the sending user. It is the
// Go analog of the original's per-connection future inside a select over
// `self.connections.iter_mut()`.
func forwardConn(ctx context.Context, userID ids.UserID, ch session.Bichannel, fanIn chan<- connEvent) {
	for {
		select {
		case msg, ok := <-ch.R:
			select {
			case fanIn <- connEvent{userID: userID, msg: msg, ok: ok}:
			case <-ctx.Done():
				return
			}
			if !ok {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (a *actor) handleConnMsg(userID ids.UserID, msg session.ToSessionMsg) {
	if msg.Terminal == nil {
		return
	}
	line := fmt.Sprintf("%s: %s", fmt.Sprint(userID), msg.Terminal.Line)
	a.broadcast(session.FromSessionMsg{Event: &session.Event{TerminalLine: &line}})
}

func (a *actor) disconnectUser(userID ids.UserID) {
	a.removeUser(userID)
	a.log.Info("user left", "user_id", fmt.Sprint(userID))
	a.broadcast(session.FromSessionMsg{UserExited: &session.Member{UserID: userID}})
}

func (a *actor) timeoutUser(userID ids.UserID) {
	a.removeUser(userID)
	a.log.Info("user left due to a timeout", "user_id", fmt.Sprint(userID))
	a.broadcast(session.FromSessionMsg{UserExited: &session.Member{UserID: userID}})
}

func (a *actor) removeUser(userID ids.UserID) {
	if conn, ok := a.connections[userID]; ok {
		conn.cancel()
		delete(a.connections, userID)
	}
}

// sendToUser performs a single send with the 200ms per-recipient timeout;
// a timeout evicts the recipient rather than blocking the broadcast
// (spec.md §4.5).
func (a *actor) sendToUser(userID ids.UserID, msg session.FromSessionMsg) {
	conn, ok := a.connections[userID]
	if !ok {
		return
	}

	start := time.Now()
	select {
	case conn.ch.S <- msg:
		if a.metrics != nil {
			a.metrics.ObserveBroadcastSend("proposal-actor", time.Since(start), false)
		}
	case <-time.After(userSendTimeout):
		if a.metrics != nil {
			a.metrics.ObserveBroadcastSend("proposal-actor", time.Since(start), true)
		}
		a.timeoutUser(userID)
	}
}

// broadcast fans msg out to every current member, evicting any recipient
// whose send times out without delaying the others (spec.md §4.5,
// testable property in spec.md §8).
func (a *actor) broadcast(msg session.FromSessionMsg) {
	userIDs := make([]ids.UserID, 0, len(a.connections))
	for uid := range a.connections {
		userIDs = append(userIDs, uid)
	}
	for _, uid := range userIDs {
		a.sendToUser(uid, msg)
	}
}
