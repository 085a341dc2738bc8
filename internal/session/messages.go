// Package session defines the message envelope shared by both concrete
// session actor implementations (proposal sessions and game sessions, C5
// and C6). spec.md §9 is explicit that these are two concrete actor types
// sharing one protocol, not a common base class with runtime dispatch; this
// package holds only the shared vocabulary they speak.
package session

import "github.com/playferrous/playferrous/pkg/ids"

// PresentationKind distinguishes how a connection is rendering session
// output. Only "terminal" exists today (spec.md's terminal endpoint).
type PresentationKind int

const (
	PresentationTerminal PresentationKind = iota
)

// Member describes one user's seat in a session, with an optional player
// index for game sessions (nil for proposal sessions and for spectating
// entrants).
type Member struct {
	UserID      ids.UserID
	PlayerIndex *int
}

// ToSessionMsg is a message sent from a connection actor to a session
// actor over the connection's half of the session bichannel (spec.md
// §4.5's "per-connection commands").
type ToSessionMsg struct {
	Terminal *TerminalCommand
}

// TerminalCommand is the sole per-connection command kind in the current
// protocol: a raw line typed by the user while a session is active.
type TerminalCommand struct {
	Line string
}

// FromSessionMsg is a message sent from a session actor to a connection
// actor over the session's half of the session bichannel.
type FromSessionMsg struct {
	UserEntered *Member
	UserExited  *Member
	Event       *Event
}

// Event is session-originated content destined for display, as opposed to
// membership-change notifications (spec.md §4.5's "Event(Terminal.Line)").
type Event struct {
	TerminalLine *string
}
