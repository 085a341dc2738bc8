package presentation

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/playferrous/playferrous/internal/command"
	"github.com/playferrous/playferrous/internal/connection"
	"github.com/playferrous/playferrous/internal/session"
	"github.com/playferrous/playferrous/pkg/bichannel"
	"github.com/playferrous/playferrous/pkg/ids"
)

// intentSendTimeout reuses the 200ms actor-to-actor send figure from
// spec.md §5 for the presentation-to-connection-actor hop.
const intentSendTimeout = 200 * time.Millisecond

// runTerminal bridges one SSH session channel to a connection actor for
// the lifetime of the channel (spec.md §4.10). It owns the decision of
// command mode vs. active-session mode: a line starting with the
// reserved prefix (`/` or `.`) is always a command; otherwise, if a
// session is currently active, the whole line is a session command, else
// it is parsed as a command (spec.md §6).
func runTerminal(ctx context.Context, channel ssh.Channel, userID ids.UserID, registry *connection.Registry, log *slog.Logger) {
	ep := registry.Open(userID, session.PresentationTerminal)
	defer ep.Close()

	lines := make(chan string)
	go readLines(channel, lines)

	grammar := command.Default()
	active := false

	fmt.Fprint(channel, "> ")
	for {
		select {
		case <-ctx.Done():
			return

		case line, ok := <-lines:
			if !ok {
				return
			}
			handleLine(channel, ep, grammar, line, active, log)
			fmt.Fprint(channel, "> ")

		case reply, ok := <-ep.R:
			if !ok {
				return
			}
			if reply.EnteredSession != nil {
				active = true
			}
			if reply.ExitedSession {
				active = false
			}
			renderReply(channel, reply)
		}
	}
}

func readLines(r io.Reader, out chan<- string) {
	defer close(out)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		out <- scanner.Text()
	}
}

func handleLine(w io.Writer, ep bichannel.Endpoint[connection.Intent, connection.Reply], grammar *command.Grammar, line string, active bool, log *slog.Logger) {
	trimmed, isCommand := stripCommandPrefix(line)
	if !isCommand && active {
		sendIntent(ep, connection.Intent{Type: connection.IntentSessionCommand, Command: session.TerminalCommand{Line: trimmed}}, log)
		return
	}

	interp, err := grammar.Interpret(trimmed)
	if err != nil {
		fmt.Fprint(w, "Internal error.\n")
		return
	}

	switch interp.Kind {
	case command.Noop:
		return
	case command.Response:
		fmt.Fprint(w, interp.Prompt)
		return
	}

	intent, errText := toIntent(interp.Command, interp.Args)
	if errText != "" {
		fmt.Fprint(w, errText)
		return
	}
	sendIntent(ep, intent, log)
}

func sendIntent(ep bichannel.Endpoint[connection.Intent, connection.Reply], intent connection.Intent, log *slog.Logger) {
	select {
	case ep.S <- intent:
	case <-time.After(intentSendTimeout):
		log.Warn("presentation: intent send timed out", "intent", intent.Type)
	}
}

// stripCommandPrefix reports whether line is in command mode and returns
// the line with a leading "/" or "." removed, if present.
func stripCommandPrefix(line string) (string, bool) {
	if strings.HasPrefix(line, "/") || strings.HasPrefix(line, ".") {
		return line[1:], true
	}
	return line, false
}

func toIntent(cmd string, args []string) (connection.Intent, string) {
	switch cmd {
	case "propose":
		if len(args) != 1 {
			return connection.Intent{}, fmt.Sprintf("Expected 1 argument, received %d!\n", len(args))
		}
		return connection.Intent{Type: connection.IntentPropose, GameType: args[0]}, ""
	case "proposals":
		return connection.Intent{Type: connection.IntentListProposals}, ""
	case "withdraw":
		if len(args) != 1 {
			return connection.Intent{}, fmt.Sprintf("Expected 1 argument, received %d!\n", len(args))
		}
		id, err := ids.ParseProposalID(args[0])
		if err != nil {
			return connection.Intent{}, "Invalid ID\n"
		}
		return connection.Intent{Type: connection.IntentWithdraw, ProposalID: id}, ""
	case "sessions":
		return connection.Intent{Type: connection.IntentListSessions}, ""
	case "enter":
		if len(args) != 1 {
			return connection.Intent{}, fmt.Sprintf("Expected 1 argument, received %d!\n", len(args))
		}
		id, err := ids.ParseSessionID(args[0])
		if err != nil {
			return connection.Intent{}, "Invalid ID\n"
		}
		return connection.Intent{Type: connection.IntentEnter, SessionID: id}, ""
	case "exit":
		return connection.Intent{Type: connection.IntentExit}, ""
	case "messages":
		return connection.Intent{Type: connection.IntentListMessages}, ""
	default:
		return connection.Intent{}, "Not implemented\n"
	}
}

func renderReply(w io.Writer, r connection.Reply) {
	switch {
	case r.Error != nil:
		fmt.Fprint(w, *r.Error)
	case r.SessionLine != nil:
		fmt.Fprint(w, *r.SessionLine)
	case r.EnteredSession != nil:
		fmt.Fprintf(w, "Entered session %s.\n", r.EnteredSession.ID)
	case r.ExitedSession:
		fmt.Fprint(w, "Exited session.\n")
	case r.Proposals != nil:
		for _, p := range r.Proposals {
			fmt.Fprintf(w, "%6s %s\n", p.ID, p.GameType)
		}
	case r.Sessions != nil:
		for _, s := range r.Sessions {
			fmt.Fprintf(w, "%6s %s\n", s.ID, s.Kind)
		}
	case r.Messages != nil:
		for _, m := range r.Messages {
			from := "system"
			if m.From != nil {
				from = m.From.String()
			}
			fmt.Fprintf(w, "%6s from %-8s %s: %s\n", m.ID, from, m.Subject, m.Body)
		}
	}
}
