package sandbox

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/dyluth/playbox/internal/program"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipeConn connects a host conn to Serve over in-memory pipes.
func pipeConn(t *testing.T) (*conn, <-chan error) {
	ctx, cancel := context.WithCancel(context.Background())

	hostIn, sandboxOut := io.Pipe()
	sandboxIn, hostOut := io.Pipe()

	served := make(chan error, 1)
	go func() {
		served <- Serve(ctx, NewRuntime(), sandboxIn, sandboxOut)
		sandboxOut.Close()
	}()

	c := newConn(hostIn, hostOut)
	t.Cleanup(func() {
		hostOut.Close()
		cancel()
	})

	select {
	case <-c.Loaded():
	case <-time.After(5 * time.Second):
		t.Fatal("sandbox never reported loaded")
	}
	return c, served
}

func TestProcessTransport_RoutesReplies(t *testing.T) {
	c, _ := pipeConn(t)
	ch := NewChannel(c)
	defer ch.Close()

	replies := make(chan Reply, 8)
	req := NewRequest(program.FromFragments(`log("over the wire")`))
	require.NoError(t, ch.Send(req, func(r Reply) { replies <- r }))

	var logged string
	var errs []ErrorEntry
	timeout := time.After(5 * time.Second)
	for errs == nil {
		select {
		case r := <-replies:
			if r.Log.Present {
				logged = r.Log.String()
			}
			if r.HasErrors() {
				errs = r.Errors
			}
		case <-timeout:
			t.Fatal("timed out waiting for replies")
		}
	}

	assert.Equal(t, `"over the wire"`, logged)
	assert.Empty(t, errs)
}

func TestProcessTransport_Shortcut(t *testing.T) {
	c, _ := pipeConn(t)
	ch := NewChannel(c)
	defer ch.Close()

	replies := make(chan Reply, 8)
	require.NoError(t, ch.Send(NewRequest(program.Boot()), func(r Reply) { replies <- r }))

	// Wait for the evaluation to finish before pressing keys.
	timeout := time.After(5 * time.Second)
	for done := false; !done; {
		select {
		case r := <-replies:
			done = r.HasErrors()
		case <-timeout:
			t.Fatal("timed out waiting for evaluation")
		}
	}

	require.NoError(t, c.Press("ctrl+["))

	select {
	case r := <-replies:
		assert.Equal(t, ShortcutPrevious, r.Shortcut)
	case <-time.After(5 * time.Second):
		t.Fatal("shortcut not relayed")
	}
}

func TestProcessTransport_ServeEndsWithInput(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var out bytes.Buffer
	err := Serve(ctx, NewRuntime(), bytes.NewBufferString("garbage\n{\"kind\":\"bogus\"}\n"), &out)

	assert.NoError(t, err)
	assert.Contains(t, out.String(), `"kind":"loaded"`)
}

func TestStartProcess_EmptyCommand(t *testing.T) {
	_, err := StartProcess(context.Background(), nil)
	assert.Error(t, err)
}

func TestLimitedWriter(t *testing.T) {
	var buf bytes.Buffer
	lw := &limitedWriter{w: &buf, limit: 5}

	n, err := lw.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = lw.Write([]byte("defgh"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	n, err = lw.Write([]byte("ij"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, "abcde", buf.String())
}
