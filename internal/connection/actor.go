package connection

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/playferrous/playferrous/internal/session"
	"github.com/playferrous/playferrous/pkg/apperr"
	"github.com/playferrous/playferrous/pkg/bichannel"
	"github.com/playferrous/playferrous/pkg/ids"
	"github.com/playferrous/playferrous/pkg/metrics"
)

// entryChanCapacity matches the original's mpsc::channel(4) for the
// system inbox.
const entryChanCapacity = 4

type activeSession struct {
	info SessionInfo
	ch   session.ConnBichannel
}

// actor is one running connection, grounded on ConnectionActor in
// _examples/original_source/server/src/connection_manager.rs.
type actor struct {
	userID ids.UserID
	kind   session.PresentationKind

	presentation bichannel.Endpoint[Reply, Intent]
	systemCh     <-chan SystemMsg

	store     Store
	proposals ProposalSessions
	games     GameSessions
	log       *slog.Logger
	metrics   *metrics.OrchestrationMetrics

	active *activeSession
}

func newActor(userID ids.UserID, kind session.PresentationKind, presentation bichannel.Endpoint[Reply, Intent], systemCh <-chan SystemMsg, registry *Registry, store Store, proposals ProposalSessions, games GameSessions, log *slog.Logger, m *metrics.OrchestrationMetrics) *actor {
	return &actor{
		userID:       userID,
		kind:         kind,
		presentation: presentation,
		systemCh:     systemCh,
		store:        store,
		proposals:    proposals,
		games:        games,
		log:          log,
		metrics:      m,
	}
}

// run is the connection actor's biased select loop: system inbox before
// active-session traffic (only while a session is active) before the
// presentation inbox (spec.md §4.7, §5).
func (a *actor) run(ctx context.Context) error {
	a.log.Info("connection starting")
	defer a.log.Info("connection stopping")
	defer func() {
		if a.active != nil {
			a.active.ch.Close()
		}
	}()

	for {
		select {
		case msg, ok := <-a.systemCh:
			if !ok {
				return nil
			}
			a.handleSystemMsg(msg)
			continue
		default:
		}

		var sessionRecvC <-chan session.FromSessionMsg
		if a.active != nil {
			sessionRecvC = a.active.ch.R
		}

		select {
		case msg, ok := <-a.systemCh:
			if !ok {
				return nil
			}
			a.handleSystemMsg(msg)

		case msg, ok := <-sessionRecvC:
			if ok {
				a.handleSessionMsg(msg)
			} else {
				a.exit()
			}

		case intent, ok := <-a.presentation.R:
			if !ok {
				return nil
			}
			if err := a.handlePresentationIntent(ctx, intent); err != nil {
				return err
			}
		}
	}
}

func (a *actor) reply(r Reply) {
	select {
	case a.presentation.S <- r:
	case <-time.After(playerSendTimeout):
		a.log.Warn("connection: reply to presentation timed out")
	}
}

// playerSendTimeout reuses the 200ms session-actor-to-connection figure
// from spec.md §5 for the connection-actor-to-presentation hop, since the
// spec does not name a distinct value for this leg.
const playerSendTimeout = 200 * time.Millisecond

func (a *actor) errorLine(text string) {
	a.reply(Reply{Error: &text})
}

func (a *actor) handleSystemMsg(msg SystemMsg) {
	if msg.NewMessage {
		text := "You have new messages.\n"
		a.reply(Reply{SessionLine: &text})
	}
}

// handleSessionMsg translates membership/event notifications from an
// active session into presentation lines (spec.md §4.7's "Session
// events").
func (a *actor) handleSessionMsg(msg session.FromSessionMsg) {
	switch {
	case msg.UserEntered != nil:
		line := "User entered\n"
		a.reply(Reply{SessionLine: &line})
	case msg.UserExited != nil:
		line := "User exited\n"
		a.reply(Reply{SessionLine: &line})
	case msg.Event != nil && msg.Event.TerminalLine != nil:
		a.reply(Reply{SessionLine: msg.Event.TerminalLine})
	}
}

func (a *actor) handlePresentationIntent(ctx context.Context, intent Intent) error {
	switch intent.Type {
	case IntentListProposals:
		return a.listProposals(ctx)
	case IntentListSessions:
		return a.listSessions(ctx)
	case IntentListMessages:
		return a.listMessages(ctx)
	case IntentPropose:
		return a.propose(ctx, intent.GameType)
	case IntentWithdraw:
		// Open Question (a) per spec.md §9: left unimplemented.
		a.errorLine("Withdraw is not yet implemented.\n")
		return nil
	case IntentEnter:
		return a.enter(ctx, intent.SessionID)
	case IntentExit:
		a.exit()
		return nil
	case IntentSessionCommand:
		a.sessionCommand(intent.Command)
		return nil
	default:
		a.errorLine(fmt.Sprintf("Unrecognised presentation intent: %s\n", intent.Type))
		return nil
	}
}

func (a *actor) listProposals(ctx context.Context) error {
	proposals, err := a.store.ListProposals(ctx, a.userID)
	if err != nil {
		return a.softOrFatal(err, "list proposals")
	}
	a.reply(Reply{Proposals: proposals})
	return nil
}

func (a *actor) listSessions(ctx context.Context) error {
	sessions, err := a.store.ListSessions(ctx, a.userID)
	if err != nil {
		return a.softOrFatal(err, "list sessions")
	}
	a.reply(Reply{Sessions: sessions})
	return nil
}

func (a *actor) listMessages(ctx context.Context) error {
	messages, err := a.store.ListMessages(ctx, a.userID)
	if err != nil {
		return a.softOrFatal(err, "list messages")
	}
	a.reply(Reply{Messages: messages})
	return nil
}

// propose creates a proposal inside a transaction, notifying the proposer
// only after it durably commits (spec.md §4.7, §4.9).
func (a *actor) propose(ctx context.Context, gameType string) error {
	tx, err := a.store.Begin(ctx)
	if err != nil {
		return a.softOrFatal(err, "begin propose")
	}
	defer tx.Rollback()

	if _, err := a.store.CreateProposal(ctx, tx, a.userID, gameType); err != nil {
		return a.softOrFatal(err, "create proposal")
	}

	tx.OnCommit(func(ctx context.Context) error {
		text := fmt.Sprintf("Proposed %s.\n", gameType)
		a.reply(Reply{SessionLine: &text})
		return nil
	})

	if err := tx.Commit(ctx); err != nil {
		return a.softOrFatal(err, "commit propose")
	}
	return nil
}

// enter resolves session_id for this user, then dispatches to the
// proposal or game manager for a bichannel (spec.md §4.7).
func (a *actor) enter(ctx context.Context, sessionID ids.SessionID) error {
	rec, found, err := a.store.SessionByIDForUser(ctx, sessionID, a.userID)
	if err != nil {
		return a.softOrFatal(err, "resolve session")
	}
	if !found {
		a.errorLine("Invalid session ID\n")
		return nil
	}

	var ch session.ConnBichannel
	switch rec.Target.Kind {
	case ids.SessionKindGame:
		ch, err = a.games.EnterSession(ctx, rec.Target.Game, a.userID, rec.Target.PlayerIdx, a.kind)
	case ids.SessionKindGameProposal:
		ch, err = a.proposals.EnterSession(ctx, rec.Target.Proposal, a.userID, a.kind)
	default:
		a.errorLine("Unknown session kind\n")
		return nil
	}
	if err != nil {
		return a.softOrFatal(err, "enter session")
	}

	if a.active != nil {
		a.active.ch.Close()
	}
	a.active = &activeSession{info: SessionInfo{ID: sessionID, Kind: rec.Target.Kind}, ch: ch}
	a.reply(Reply{EnteredSession: &a.active.info})
	return nil
}

func (a *actor) exit() {
	if a.active == nil {
		a.errorLine("No active session\n")
		return
	}
	a.active.ch.Close()
	a.active = nil
	a.reply(Reply{ExitedSession: true})
}

func (a *actor) sessionCommand(cmd session.TerminalCommand) {
	if a.active == nil {
		return
	}
	select {
	case a.active.ch.S <- session.ToSessionMsg{Terminal: &cmd}:
	case <-time.After(playerSendTimeout):
		a.log.Warn("connection: session command send timed out")
	}
}

// softOrFatal converts a persistence error into a presentation error line
// (spec.md §7's Persistence kind propagates, but at the connection-actor
// boundary it is user-visible, not actor-fatal, unless it is something the
// apperr taxonomy marks Internal/Transport).
func (a *actor) softOrFatal(err error, what string) error {
	if apperr.KindOf(err) == apperr.KindInternal || apperr.KindOf(err) == apperr.KindTransport {
		return fmt.Errorf("connection: %s: %w", what, err)
	}
	a.errorLine(fmt.Sprintf("Could not %s.\n", what))
	return nil
}
