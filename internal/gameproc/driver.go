package gameproc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"

	"github.com/playferrous/playferrous/pkg/apperr"
)

// Driver drives one game subprocess through the request/response protocol
// in spec.md §4.3. At most one request is outstanding at a time; the
// driver is not internally synchronized beyond that guarantee — its owner
// (the game session actor, C6) is expected to serialize access, per
// spec.md's explicit concurrency note.
type Driver struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	log    *slog.Logger

	mu     sync.Mutex
	killed bool
}

// Launch starts the executable at path in machine mode ("--playferrous"),
// inheriting stderr, and sends the initial Initialize request. On any
// failure — including a non-matching Initialize response or an immediate
// subprocess exit — construction fails and the subprocess (if started) is
// killed, matching spec.md §4.3's lifecycle rule.
func Launch(path string, setup GameSetup, log *slog.Logger) (*Driver, error) {
	cmd := exec.Command(path, "--playferrous")
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, apperr.Wrapf(apperr.KindTransport, "gameproc: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, apperr.Wrapf(apperr.KindTransport, "gameproc: stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, apperr.Wrapf(apperr.KindTransport, "gameproc: start %s: %w", path, err)
	}

	d := NewDriver(cmd, stdin, stdout, log)

	if _, err := d.roundTrip(initializeRequest(setup)); err != nil {
		d.Kill()
		return nil, fmt.Errorf("gameproc: initialize %s: %w", setup.GameType, err)
	}

	return d, nil
}

// NewDriver assembles a Driver from already-open pipes, bypassing the
// process-spawning half of Launch. Exported so callers that launch
// subprocesses through a transport other than os/exec (and tests, in any
// package, simulating a subprocess over an in-memory pipe) can still speak
// the protocol through a Driver.
func NewDriver(cmd *exec.Cmd, stdin io.WriteCloser, stdout io.Reader, log *slog.Logger) *Driver {
	return &Driver{
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReader(stdout),
		log:    log,
	}
}

// roundTrip writes one request line, flushes, and reads exactly one
// response line, failing fatally if the response discriminator does not
// match the request's (spec.md §4.3, invariant 3).
func (d *Driver) roundTrip(req Request) (Response, error) {
	line, err := json.Marshal(req)
	if err != nil {
		return Response{}, apperr.Wrapf(apperr.KindProtocol, "gameproc: marshal request: %w", err)
	}
	line = append(line, '\n')

	if _, err := d.stdin.Write(line); err != nil {
		return Response{}, apperr.Wrapf(apperr.KindTransport, "gameproc: write request: %w", err)
	}

	respLine, err := d.stdout.ReadBytes('\n')
	if err != nil {
		return Response{}, apperr.Wrapf(apperr.KindTransport, "gameproc: read response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(respLine, &resp); err != nil {
		return Response{}, apperr.Wrapf(apperr.KindProtocol, "gameproc: unmarshal response: %w", err)
	}

	if resp.Type != req.Type {
		return Response{}, apperr.Wrapf(apperr.KindProtocol,
			"gameproc: response type %q does not match request type %q", resp.Type, req.Type)
	}

	return resp, nil
}

// LoadSnapshot restores a subprocess's state from a previously saved
// snapshot blob.
func (d *Driver) LoadSnapshot(snapshot json.RawMessage) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := d.roundTrip(loadSnapshotRequest(snapshot))
	return err
}

// SaveSnapshot returns the subprocess's current state as an opaque blob.
func (d *Driver) SaveSnapshot() (json.RawMessage, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	resp, err := d.roundTrip(saveSnapshotRequest())
	if err != nil {
		return nil, err
	}
	return resp.Snapshot, nil
}

// Advance applies action at tick. action may be nil to represent a
// deadline-forfeit (spec.md §4.6): the subprocess is responsible for
// interpreting an absent action.
func (d *Driver) Advance(tick GameTick, action json.RawMessage) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := d.roundTrip(advanceRequest(tick, action))
	return err
}

// State queries the subprocess's current progress.
func (d *Driver) State() (GameState, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	resp, err := d.roundTrip(stateRequest())
	if err != nil {
		return GameState{}, err
	}
	if resp.State == nil {
		return GameState{}, apperr.Wrapf(apperr.KindProtocol, "gameproc: state response missing state field")
	}
	return *resp.State, nil
}

// RenderConsoleUI asks the subprocess for the prompt it wants to show
// player, if any.
func (d *Driver) RenderConsoleUI(player int) (*ConsoleUI, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	resp, err := d.roundTrip(renderConsoleUIRequest(player))
	if err != nil {
		return nil, err
	}
	return resp.Prompt, nil
}

// InterpretConsoleCommand asks the subprocess to interpret a line typed by
// player, returning an optional UI update and/or action.
func (d *Driver) InterpretConsoleCommand(player int, command string) (*CommandResponse, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	resp, err := d.roundTrip(interpretConsoleCommandRequest(player, command))
	if err != nil {
		return nil, err
	}
	return resp.CommandResponse, nil
}

// Kill terminates the subprocess unconditionally. Safe to call more than
// once and safe to call after a failed Launch.
func (d *Driver) Kill() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.killed {
		return
	}
	d.killed = true
	d.stdin.Close()
	if d.cmd != nil && d.cmd.Process != nil {
		if err := d.cmd.Process.Kill(); err != nil {
			d.log.Debug("gameproc: kill subprocess", "error", err)
		}
		_ = d.cmd.Wait()
	}
}
