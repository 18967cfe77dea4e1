// Package sandbox implements the isolation boundary between the host and the runtime
// that executes programs: structured messages over port pairs, the host-side channel
// that re-establishes a port pair per send, and the runtime itself.
package sandbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// ErrPortClosed is returned when posting to a port whose peer (or itself) is closed.
var ErrPortClosed = errors.New("port closed")

// portBuffer is the number of undelivered messages a port holds before Post blocks.
const portBuffer = 64

// Port is one end of a duplex message pair. Messages are copied as encoded JSON so
// the two ends never share memory.
type Port struct {
	peer  *Port
	inbox chan []byte
	done  chan struct{}
	once  sync.Once
}

// NewPortPair returns two connected ports. A message posted on one is received on the other.
func NewPortPair() (*Port, *Port) {
	a := &Port{inbox: make(chan []byte, portBuffer), done: make(chan struct{})}
	b := &Port{inbox: make(chan []byte, portBuffer), done: make(chan struct{})}
	a.peer, b.peer = b, a
	return a, b
}

// Post encodes v and delivers it to the peer.
func (p *Port) Post(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	return p.PostRaw(data)
}

// PostRaw delivers a copy of an already-encoded message to the peer.
func (p *Port) PostRaw(data []byte) error {
	msg := append([]byte(nil), data...)
	select {
	case <-p.done:
		return ErrPortClosed
	case <-p.peer.done:
		return ErrPortClosed
	default:
	}
	select {
	case p.peer.inbox <- msg:
		return nil
	case <-p.done:
		return ErrPortClosed
	case <-p.peer.done:
		return ErrPortClosed
	}
}

// Messages returns the channel of messages posted by the peer.
func (p *Port) Messages() <-chan []byte {
	return p.inbox
}

// Done is closed once the port is closed.
func (p *Port) Done() <-chan struct{} {
	return p.done
}

// Close stops delivery to and from this port. Safe to call more than once.
func (p *Port) Close() {
	p.once.Do(func() { close(p.done) })
}

// Closed reports whether either end of the pair has been closed.
func (p *Port) Closed() bool {
	select {
	case <-p.done:
		return true
	case <-p.peer.done:
		return true
	default:
		return false
	}
}
