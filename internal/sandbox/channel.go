package sandbox

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
)

// Target is anything that can accept an encoded request together with the port the
// runtime must reply on: the in-process Runtime, a Process, or a Surface wrapping either.
type Target interface {
	Deliver(data []byte, reply *Port) error
}

// Channel is the host side of the isolation boundary. Every Send opens a fresh port
// pair and stops listening on the previous one, so replies belonging to a superseded
// send are never delivered.
type Channel struct {
	target Target

	mu      sync.Mutex
	current *Port
}

// NewChannel creates a channel that delivers requests to target.
func NewChannel(target Target) *Channel {
	return &Channel{target: target}
}

// Send delivers req and calls onReply for every reply that arrives on the new port until
// the next Send or Close. onReply runs on the channel's listener goroutine.
func (c *Channel) Send(req Request, onReply func(Reply)) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	local, remote := NewPortPair()

	c.mu.Lock()
	if c.current != nil {
		c.current.Close()
	}
	c.current = local
	c.mu.Unlock()

	go listen(local, onReply)

	if err := c.target.Deliver(data, remote); err != nil {
		local.Close()
		return fmt.Errorf("failed to deliver request: %w", err)
	}
	return nil
}

// Close detaches the current listener.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil {
		c.current.Close()
		c.current = nil
	}
}

func listen(port *Port, onReply func(Reply)) {
	for {
		select {
		case <-port.Done():
			return
		case data := <-port.Messages():
			// A close racing with a queued message must still win.
			select {
			case <-port.Done():
				return
			default:
			}

			var reply Reply
			if err := json.Unmarshal(data, &reply); err != nil {
				log.Printf("[WARN] [Sandbox] Dropping undecodable reply: %v", err)
				continue
			}
			onReply(reply)
		}
	}
}
