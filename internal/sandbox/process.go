package sandbox

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"sync"
	"time"
)

const (
	// maxEnvelopeSize caps one protocol line from the sandbox process (10MB).
	maxEnvelopeSize = 10 * 1024 * 1024

	// maxStderrSize caps how much sandbox stderr is forwarded to the host (1MB).
	maxStderrSize = 1024 * 1024

	processShutdownTimeout = 5 * time.Second
)

const (
	kindLoaded  = "loaded"
	kindMessage = "message"
	kindReply   = "reply"
	kindKey     = "key"
)

// envelope is one newline-delimited JSON line on the process transport. Port numbers
// identify which transferred port a reply belongs to.
type envelope struct {
	Kind string          `json:"kind"`
	Port uint64          `json:"port,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

type envelopeWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (ew *envelopeWriter) write(env envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode envelope: %w", err)
	}
	data = append(data, '\n')

	ew.mu.Lock()
	defer ew.mu.Unlock()
	_, err = ew.w.Write(data)
	return err
}

// conn is the host end of the process transport.
type conn struct {
	out    *envelopeWriter
	closer io.Closer

	mu     sync.Mutex
	ports  map[uint64]*Port
	nextID uint64

	loaded   chan struct{}
	loadOnce sync.Once
	done     chan struct{}
}

func newConn(r io.Reader, w io.WriteCloser) *conn {
	c := &conn{
		out:    &envelopeWriter{w: w},
		closer: w,
		ports:  make(map[uint64]*Port),
		loaded: make(chan struct{}),
		done:   make(chan struct{}),
	}
	go c.readLoop(r)
	return c
}

// Deliver implements Target by writing the request to the process with a fresh port number.
func (c *conn) Deliver(data []byte, reply *Port) error {
	c.mu.Lock()
	for id, p := range c.ports {
		if p.Closed() {
			delete(c.ports, id)
		}
	}
	c.nextID++
	id := c.nextID
	c.ports[id] = reply
	c.mu.Unlock()

	if err := c.out.write(envelope{Kind: kindMessage, Port: id, Data: data}); err != nil {
		c.mu.Lock()
		delete(c.ports, id)
		c.mu.Unlock()
		return fmt.Errorf("failed to write to sandbox process: %w", err)
	}
	return nil
}

// Press forwards a key chord to the process.
func (c *conn) Press(key string) error {
	data, err := json.Marshal(key)
	if err != nil {
		return err
	}
	return c.out.write(envelope{Kind: kindKey, Data: data})
}

// Loaded is closed when the process reports its runtime is ready.
func (c *conn) Loaded() <-chan struct{} {
	return c.loaded
}

// Done is closed when the process output ends.
func (c *conn) Done() <-chan struct{} {
	return c.done
}

func (c *conn) readLoop(r io.Reader) {
	defer close(c.done)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxEnvelopeSize)

	for scanner.Scan() {
		var env envelope
		if err := json.Unmarshal(scanner.Bytes(), &env); err != nil {
			log.Printf("[WARN] [Sandbox] Dropping malformed envelope: %v", err)
			continue
		}

		switch env.Kind {
		case kindLoaded:
			c.loadOnce.Do(func() { close(c.loaded) })
		case kindReply:
			c.mu.Lock()
			port, ok := c.ports[env.Port]
			c.mu.Unlock()
			if !ok {
				continue
			}
			if err := port.PostRaw(env.Data); err != nil {
				c.mu.Lock()
				delete(c.ports, env.Port)
				c.mu.Unlock()
			}
		default:
			log.Printf("[WARN] [Sandbox] Ignoring envelope of kind %q", env.Kind)
		}
	}

	if err := scanner.Err(); err != nil {
		log.Printf("[ERROR] [Sandbox] Process output error: %v", err)
	}
}

// Process runs the sandbox runtime in a child process and talks to it over stdin/stdout.
type Process struct {
	*conn
	cmd *exec.Cmd
}

// StartProcess launches command (typically `playbox sandbox`) and connects to it.
func StartProcess(ctx context.Context, command []string) (*Process, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("sandbox command is empty")
	}

	cmd := exec.CommandContext(ctx, command[0], command[1:]...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	cmd.Stderr = &limitedWriter{w: os.Stderr, limit: maxStderrSize}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start sandbox process: %w", err)
	}
	log.Printf("[INFO] [Sandbox] Started process: command=%v pid=%d", command, cmd.Process.Pid)

	return &Process{conn: newConn(stdout, stdin), cmd: cmd}, nil
}

// Close ends the process by closing its stdin, killing it if it does not exit in time.
func (p *Process) Close() error {
	if err := p.closer.Close(); err != nil {
		log.Printf("[WARN] [Sandbox] Failed to close process stdin: %v", err)
	}

	select {
	case <-p.done:
	case <-time.After(processShutdownTimeout):
		log.Printf("[WARN] [Sandbox] Process did not exit in time, killing")
		_ = p.cmd.Process.Kill()
	}

	if err := p.cmd.Wait(); err != nil {
		if _, ok := err.(*exec.ExitError); !ok {
			return fmt.Errorf("sandbox process wait failed: %w", err)
		}
		log.Printf("[DEBUG] [Sandbox] Process exited: %v", err)
	}
	return nil
}

// Serve runs the sandbox side of the process transport: it reads envelopes from r,
// hands requests to rt and writes rt's replies to w. It returns when r ends.
func Serve(ctx context.Context, rt *Runtime, r io.Reader, w io.Writer) error {
	rt.Start(ctx)
	<-rt.Loaded()

	out := &envelopeWriter{w: w}
	if err := out.write(envelope{Kind: kindLoaded}); err != nil {
		return err
	}

	var current *Port
	defer func() {
		if current != nil {
			current.Close()
		}
	}()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxEnvelopeSize)

	for scanner.Scan() {
		var env envelope
		if err := json.Unmarshal(scanner.Bytes(), &env); err != nil {
			log.Printf("[WARN] [Sandbox] Dropping malformed envelope: %v", err)
			continue
		}

		switch env.Kind {
		case kindMessage:
			if current != nil {
				current.Close()
			}
			hostSide, runtimeSide := NewPortPair()
			current = hostSide
			go forward(hostSide, env.Port, out)
			if err := rt.Deliver(env.Data, runtimeSide); err != nil {
				return err
			}
		case kindKey:
			var key string
			if err := json.Unmarshal(env.Data, &key); err != nil {
				log.Printf("[WARN] [Sandbox] Invalid key envelope: %v", err)
				continue
			}
			if err := rt.Press(key); err != nil {
				return err
			}
		default:
			log.Printf("[WARN] [Sandbox] Ignoring envelope of kind %q", env.Kind)
		}
	}

	return scanner.Err()
}

func forward(port *Port, id uint64, out *envelopeWriter) {
	for {
		select {
		case <-port.Done():
			return
		case data := <-port.Messages():
			if err := out.write(envelope{Kind: kindReply, Port: id, Data: data}); err != nil {
				log.Printf("[ERROR] [Sandbox] Failed to write reply: %v", err)
				return
			}
		}
	}
}

// limitedWriter wraps a writer and enforces a size limit.
// Once the limit is reached, further writes are discarded.
type limitedWriter struct {
	w       io.Writer
	limit   int
	written int
}

func (lw *limitedWriter) Write(p []byte) (n int, err error) {
	remaining := lw.limit - lw.written
	if remaining <= 0 {
		return len(p), nil
	}

	toWrite := p
	if len(p) > remaining {
		toWrite = p[:remaining]
	}

	n, err = lw.w.Write(toWrite)
	lw.written += n
	return len(p), err
}
