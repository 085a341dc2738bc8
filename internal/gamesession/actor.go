package gamesession

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/playferrous/playferrous/internal/gameproc"
	"github.com/playferrous/playferrous/internal/session"
	"github.com/playferrous/playferrous/pkg/apperr"
	"github.com/playferrous/playferrous/pkg/ids"
	"github.com/playferrous/playferrous/pkg/metrics"
)

// playerSendTimeout is the per-recipient broadcast send timeout, shared
// with internal/proposal's value (spec.md §5: 200ms session-actor to
// connection).
const playerSendTimeout = 200 * time.Millisecond

// idleTimeout is how long a game actor with zero connected players waits
// before self-terminating (spec.md §5's general "1s idle timer for empty
// session actors").
const idleTimeout = 1 * time.Second

// snapshotWriteAttempts is the retry-once-then-fatal policy from spec.md
// §4.6's snapshot policy.
const snapshotWriteAttempts = 2

type connEvent struct {
	playerIndex int
	msg         session.ToSessionMsg
	ok          bool
}

type connection struct {
	userID ids.UserID
	kind   session.PresentationKind
	ch     session.Bichannel
	cancel context.CancelFunc
}

// actor is one running game session, owning a game subprocess driver for
// the lifetime of gameID (spec.md §4.6).
type actor struct {
	gameID   ids.GameID
	entryCh  <-chan enterMsg
	manager  *Manager
	launcher Launcher
	store    Store
	log      *slog.Logger
	metrics  *metrics.OrchestrationMetrics

	driver     *gameproc.Driver
	maxPlayers int

	connections map[int]*connection
	fanIn       chan connEvent

	playerTurn int
	deadline   gameproc.GameTick
}

func newActor(gameID ids.GameID, entryCh <-chan enterMsg, manager *Manager, launcher Launcher, store Store, log *slog.Logger, m *metrics.OrchestrationMetrics) *actor {
	return &actor{
		gameID:      gameID,
		entryCh:     entryCh,
		manager:     manager,
		launcher:    launcher,
		store:       store,
		log:         log,
		metrics:     m,
		connections: make(map[int]*connection),
		fanIn:       make(chan connEvent, 16),
	}
}

// currentTick reports the present moment as a GameTick. Ticks are unix
// milliseconds rather than an actor-relative counter so a deadline
// recorded before a process restart still compares correctly against the
// wall clock afterwards.
func currentTick() gameproc.GameTick {
	return gameproc.GameTick(time.Now().UnixMilli())
}

// deadlineTimer returns a channel that fires when d elapses. If d has
// already passed, the wait is clamped to zero so the channel fires at once.
func deadlineTimer(d gameproc.GameTick) <-chan time.Time {
	wait := time.UnixMilli(int64(d)).Sub(time.Now())
	if wait < 0 {
		wait = 0
	}
	return time.After(wait)
}

// run launches the subprocess, restores the latest snapshot if any, then
// drives the session until the game completes or a fatal error occurs.
func (a *actor) run(ctx context.Context) error {
	defer a.manager.remove(a.gameID)
	a.log.Info("game session starting")
	defer a.log.Info("game session stopping")

	setup, err := a.store.GameSetup(ctx, a.gameID)
	if err != nil {
		return apperr.Wrapf(apperr.KindPersistence, "gamesession: load setup: %w", err)
	}
	a.maxPlayers = setup.NumPlayers

	driver, err := a.launcher.Launch(setup.GameType, setup)
	if err != nil {
		return apperr.Wrapf(apperr.KindTransport, "gamesession: launch %s: %w", setup.GameType, err)
	}
	a.driver = driver
	defer a.driver.Kill()

	snapshot, found, err := a.store.LoadSnapshot(ctx, a.gameID)
	if err != nil {
		return apperr.Wrapf(apperr.KindPersistence, "gamesession: load snapshot: %w", err)
	}
	if found {
		if err := a.driver.LoadSnapshot(snapshot); err != nil {
			return fmt.Errorf("gamesession: restore snapshot: %w", err)
		}
	}

	state, err := a.driver.State()
	if err != nil {
		return fmt.Errorf("gamesession: initial state: %w", err)
	}
	if state.Done() {
		return a.finish(ctx, *state.Complete)
	}
	a.applyInProgress(*state.InProgress)

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
				a.disconnectPlayer(ev.playerIndex)
				continue
			}
			done, err := a.handleConnMsg(ctx, ev.playerIndex, ev.msg)
			if err != nil {
				return err
			}
			if done {
				return nil
			}

		case <-deadlineTimer(a.deadline):
			done, err := a.handleDeadline(ctx)
			if err != nil {
				return err
			}
			if done {
				return nil
			}

		case <-idleTimerC:
			if len(a.connections) == 0 {
				return nil
			}
		}
	}
}

// handleEnter admits a player seat, or rejects it with a soft error event
// if the index is out of range or already occupied (spec.md §4.6's
// "Player join" rule; the duplicate-index case resolves Open Question (b)
// per DESIGN.md: treated the same as over-capacity).
func (a *actor) handleEnter(enter enterMsg) {
	if enter.playerIndex < 0 || enter.playerIndex >= a.maxPlayers {
		a.rejectEnter(enter, "This game has no such player seat.\n")
		return
	}
	if _, occupied := a.connections[enter.playerIndex]; occupied {
		a.rejectEnter(enter, "That player seat is already occupied.\n")
		return
	}

	a.log.Info("player entered", "user_id", fmt.Sprint(enter.userID), "player_index", enter.playerIndex)

	idx := enter.playerIndex
	a.broadcast(session.FromSessionMsg{UserEntered: &session.Member{UserID: enter.userID, PlayerIndex: &idx}})

	connCtx, cancel := context.WithCancel(context.Background())
	conn := &connection{userID: enter.userID, kind: enter.kind, ch: enter.channel, cancel: cancel}
	a.connections[enter.playerIndex] = conn

	go forwardConn(connCtx, enter.playerIndex, enter.channel, a.fanIn)

	if prompt, err := a.driver.RenderConsoleUI(enter.playerIndex); err == nil && prompt != nil {
		a.sendToPlayer(enter.playerIndex, session.FromSessionMsg{Event: &session.Event{TerminalLine: &prompt.Prompt}})
	}
}

func (a *actor) rejectEnter(enter enterMsg, text string) {
	select {
	case enter.channel.S <- session.FromSessionMsg{Event: &session.Event{TerminalLine: &text}}:
	case <-time.After(playerSendTimeout):
	}
	enter.channel.Close()
}

// forwardConn relays messages from one connection's inbound half onto the
// actor's shared fan-in channel, tagged with the player index seated at
// that connection (the game analog of internal/proposal's forwardConn).
func forwardConn(ctx context.Context, playerIndex int, ch session.Bichannel, fanIn chan<- connEvent) {
	for {
		select {
		case msg, ok := <-ch.R:
			select {
			case fanIn <- connEvent{playerIndex: playerIndex, msg: msg, ok: ok}:
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

// handleConnMsg interprets one line from a player as a console command.
// The subprocess itself enforces turn ownership (spec.md §4.6: "commands
// from other players are rendered but not advanced"), mirroring
// rock-paper-scissors's interpret_console_command, which returns a
// not-your-turn UI update instead of an Advance when out of turn.
func (a *actor) handleConnMsg(ctx context.Context, playerIndex int, msg session.ToSessionMsg) (done bool, err error) {
	if msg.Terminal == nil {
		return false, nil
	}

	resp, err := a.driver.InterpretConsoleCommand(playerIndex, msg.Terminal.Line)
	if err != nil {
		return false, fmt.Errorf("gamesession: interpret command: %w", err)
	}
	if resp == nil {
		return false, nil
	}

	if resp.UpdateUI != nil {
		a.sendToPlayer(playerIndex, session.FromSessionMsg{Event: &session.Event{TerminalLine: &resp.UpdateUI.Prompt}})
	}
	if resp.Advance != nil {
		return a.advance(ctx, resp.Advance)
	}
	return false, nil
}

// handleDeadline synthesizes a null-action Advance when the current
// player's turn has elapsed (spec.md §4.6).
func (a *actor) handleDeadline(ctx context.Context) (done bool, err error) {
	return a.advance(ctx, nil)
}

// advance drives the subprocess forward by one Advance call, persists the
// resulting snapshot, and re-reads state, finishing the session if the
// game is now complete.
func (a *actor) advance(ctx context.Context, action json.RawMessage) (done bool, err error) {
	tick := currentTick()
	if err := a.driver.Advance(tick, action); err != nil {
		return false, fmt.Errorf("gamesession: advance: %w", err)
	}

	if err := a.persistSnapshot(ctx); err != nil {
		return false, err
	}

	state, err := a.driver.State()
	if err != nil {
		return false, fmt.Errorf("gamesession: state after advance: %w", err)
	}
	if state.Done() {
		if err := a.finish(ctx, *state.Complete); err != nil {
			return false, err
		}
		return true, nil
	}

	a.applyInProgress(*state.InProgress)
	return false, nil
}

func (a *actor) applyInProgress(s gameproc.InProgressGameState) {
	a.playerTurn = s.PlayerTurn
	a.deadline = s.Deadline
}

// persistSnapshot saves the subprocess's current state inside a
// transaction with a post-commit hook, retrying once before treating
// failure as fatal (spec.md §4.6's snapshot policy).
func (a *actor) persistSnapshot(ctx context.Context) error {
	snapshot, err := a.driver.SaveSnapshot()
	if err != nil {
		return fmt.Errorf("gamesession: save snapshot from subprocess: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < snapshotWriteAttempts; attempt++ {
		if lastErr = a.writeSnapshot(ctx, snapshot); lastErr == nil {
			return nil
		}
		a.log.Warn("gamesession: snapshot write failed, retrying", "attempt", attempt, "error", lastErr)
	}
	return apperr.Wrapf(apperr.KindPersistence, "gamesession: snapshot write failed after %d attempts: %w", snapshotWriteAttempts, lastErr)
}

func (a *actor) writeSnapshot(ctx context.Context, snapshot json.RawMessage) error {
	tx, err := a.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := a.store.SaveSnapshot(ctx, tx, a.gameID, snapshot); err != nil {
		return err
	}
	tx.OnCommit(func(ctx context.Context) error {
		a.log.Debug("gamesession: snapshot committed")
		return nil
	})
	return tx.Commit(ctx)
}

// finish persists the final result, stores a result message for each
// player currently connected to the session, announces the outcome to those
// players, and signals the run loop to exit. Seated players who are not
// connected when the game completes get no result message.
func (a *actor) finish(ctx context.Context, result gameproc.GameResult) error {
	tx, err := a.store.Begin(ctx)
	if err != nil {
		return apperr.Wrapf(apperr.KindPersistence, "gamesession: begin completion: %w", err)
	}
	defer tx.Rollback()

	if err := a.store.CompleteGame(ctx, tx, a.gameID, result); err != nil {
		return apperr.Wrapf(apperr.KindPersistence, "gamesession: complete game: %w", err)
	}

	for idx, conn := range a.connections {
		body := "Game over.\n"
		if idx < len(result.PlayerResults) {
			body = fmt.Sprintf("Game over. Your score: %d\n", result.PlayerResults[idx].Score)
		}
		if err := a.store.NotifyParticipant(ctx, tx, conn.userID, nil, "Game result", body, nil); err != nil {
			return apperr.Wrapf(apperr.KindPersistence, "gamesession: notify %s: %w", conn.userID, err)
		}
	}

	tx.OnCommit(func(ctx context.Context) error {
		a.announceCompletion(result)
		return nil
	})
	if err := tx.Commit(ctx); err != nil {
		return apperr.Wrapf(apperr.KindPersistence, "gamesession: commit completion: %w", err)
	}
	return nil
}

func (a *actor) announceCompletion(result gameproc.GameResult) {
	for idx, conn := range a.connections {
		text := "Game over.\n"
		if idx < len(result.PlayerResults) {
			text = fmt.Sprintf("Game over. Your score: %d\n", result.PlayerResults[idx].Score)
		}
		a.sendToPlayer(idx, session.FromSessionMsg{Event: &session.Event{TerminalLine: &text}})
		conn.cancel()
	}
}

func (a *actor) disconnectPlayer(playerIndex int) {
	conn, ok := a.connections[playerIndex]
	if !ok {
		return
	}
	conn.cancel()
	delete(a.connections, playerIndex)
	a.log.Info("player left", "user_id", fmt.Sprint(conn.userID), "player_index", playerIndex)
	a.broadcast(session.FromSessionMsg{UserExited: &session.Member{UserID: conn.userID, PlayerIndex: &playerIndex}})
}

func (a *actor) sendToPlayer(playerIndex int, msg session.FromSessionMsg) {
	conn, ok := a.connections[playerIndex]
	if !ok {
		return
	}

	start := time.Now()
	select {
	case conn.ch.S <- msg:
		if a.metrics != nil {
			a.metrics.ObserveBroadcastSend("game-actor", time.Since(start), false)
		}
	case <-time.After(playerSendTimeout):
		if a.metrics != nil {
			a.metrics.ObserveBroadcastSend("game-actor", time.Since(start), true)
		}
		a.disconnectPlayer(playerIndex)
	}
}

func (a *actor) broadcast(msg session.FromSessionMsg) {
	indices := make([]int, 0, len(a.connections))
	for idx := range a.connections {
		indices = append(indices, idx)
	}
	for _, idx := range indices {
		a.sendToPlayer(idx, msg)
	}
}
