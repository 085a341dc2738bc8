package session

import (
	"github.com/playferrous/playferrous/pkg/bichannel"
	"github.com/playferrous/playferrous/pkg/ids"
)

// Bichannel is the session-actor-facing half of the bichannel a session
// actor exchanges FromSessionMsg/ToSessionMsg over with one connection.
type Bichannel = bichannel.Endpoint[FromSessionMsg, ToSessionMsg]

// ConnBichannel is the connection-actor-facing half of the same
// bichannel: it sends ToSessionMsg and receives FromSessionMsg.
type ConnBichannel = bichannel.Endpoint[ToSessionMsg, FromSessionMsg]

// Enter is the system message the proposal session manager accepts to
// admit a new connection (spec.md §4.5's
// "Enter{user_id, bichannel, presentation_kind}"). The game session manager
// uses its own entry message, which also carries the player index.
type Enter struct {
	UserID  ids.UserID
	Channel Bichannel
	Kind    PresentationKind
}
