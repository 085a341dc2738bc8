// Package bichannel implements the bidirectional channel primitive of
// spec.md §4.1 (C1): a pair of bounded FIFO queues presented as two opposed
// endpoints, where one endpoint's send half is the peer's receive half.
// Send blocks when the peer's inbox is full; receive yields ok=false
// exactly when the peer has dropped its send half.
package bichannel

// Endpoint is one side of a bichannel. S sends values of type S to the
// peer; R receives values of type R from the peer.
type Endpoint[S, R any] struct {
	S chan<- S
	R <-chan R
}

// Close drops this endpoint's send half, so the peer observes closure on
// its next receive. It does not affect the peer's ability to keep sending
// until this endpoint stops draining R.
func (e Endpoint[S, R]) Close() {
	close(e.S)
}

// New returns two opposed endpoints sharing capacity n. Values sent on
// endpoint a's S are received on endpoint b's R, and vice versa.
func New[A, B any](capacity int) (Endpoint[A, B], Endpoint[B, A]) {
	ab := make(chan A, capacity)
	ba := make(chan B, capacity)
	return Endpoint[A, B]{S: ab, R: ba}, Endpoint[B, A]{S: ba, R: ab}
}
