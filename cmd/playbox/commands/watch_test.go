package commands

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/playbox/internal/config"
	"github.com/dyluth/playbox/internal/controller"
	"github.com/dyluth/playbox/internal/program"
	"github.com/dyluth/playbox/internal/sandbox"
	"github.com/dyluth/playbox/internal/screen"
	"github.com/dyluth/playbox/internal/store"
)

type recordingKeys struct {
	mu   sync.Mutex
	keys []string
}

func (r *recordingKeys) Press(key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, key)
	return nil
}

type nopTarget struct{}

func (nopTarget) Deliver([]byte, *sandbox.Port) error { return nil }

func TestParseViewport(t *testing.T) {
	tests := []struct {
		in      string
		want    sandbox.Viewport
		wantErr bool
	}{
		{in: "640x480", want: sandbox.Viewport{Width: 640, Height: 480}},
		{in: "640X480", want: sandbox.Viewport{Width: 640, Height: 480}},
		{in: "0x0", want: sandbox.Viewport{}},
		{in: "640", wantErr: true},
		{in: "ax480", wantErr: true},
		{in: "640x-1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseViewport(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRunCommand(t *testing.T) {
	st := store.New()
	st.FinishBoot()
	ctrl := controller.New(st, sandbox.NewSurface(nopTarget{}), nil, nil, controller.Options{})
	keys := &recordingKeys{}

	require.NoError(t, runCommand("", st, ctrl, keys))
	require.NoError(t, runCommand("save", st, ctrl, keys))
	require.NoError(t, runCommand("ctrl+[", st, ctrl, keys))
	require.NoError(t, runCommand("next", st, ctrl, keys))
	assert.Equal(t, []string{"ctrl+s", "ctrl+[", "ctrl+]"}, keys.keys)

	require.NoError(t, runCommand("screen code", st, ctrl, keys))
	assert.Equal(t, screen.Code, st.State().Screen)

	require.NoError(t, runCommand("resize 800x600", st, ctrl, keys))

	assert.ErrorIs(t, runCommand("quit", st, ctrl, keys), errQuit)
	assert.Error(t, runCommand("screen", st, ctrl, keys))
	assert.Error(t, runCommand("screen nowhere", st, ctrl, keys))
	assert.Error(t, runCommand("resize big", st, ctrl, keys))
	assert.Error(t, runCommand("dance", st, ctrl, keys))
}

func TestReadCommands_Quit(t *testing.T) {
	st := store.New()
	ctrl := controller.New(st, sandbox.NewSurface(nopTarget{}), nil, nil, controller.Options{})
	keys := &recordingKeys{}

	quit := make(chan struct{})
	readCommands(context.Background(), strings.NewReader("save\nquit\nnext\n"), st, ctrl, keys, func() { close(quit) })

	select {
	case <-quit:
	default:
		t.Fatal("quit was not called")
	}
	assert.Equal(t, []string{"ctrl+s"}, keys.keys)
}

func TestPollDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, program.CodeFile), []byte("// One\n"), 0o644))

	st := store.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pollDir(ctx, dir, 10*time.Millisecond, st)

	require.Eventually(t, func() bool {
		return program.Assemble(st.State().Program) == "// One\n"
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, program.CodeFile), []byte("// Two\n"), 0o644))
	require.Eventually(t, func() bool {
		return program.Title(st.State().Program) == "Two"
	}, time.Second, 5*time.Millisecond)
}

func TestEvaluateOnce_InProcess(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cfg := config.Default()
	host, err := startSandbox(ctx, cfg)
	require.NoError(t, err)
	defer host.close()

	st := store.New()
	st.FinishBoot()
	st.UpdateProgram(program.FromFragments("// Pong\n", "log({score: 3})\n"))
	st.SetScreen(screen.Run)

	view, err := evaluateOnce(ctx, newController(cfg, st, host, nil, nil), host)
	require.NoError(t, err)

	assert.Equal(t, "Pong", view.Title)
	assert.NotNil(t, view.Errors)
	assert.Empty(t, view.Errors)
	assert.Equal(t, `{"score":3}`, view.Log.String())
	assert.Equal(t, 512, view.Height)
}

func TestEvaluateOnce_RuntimeError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cfg := config.Default()
	host, err := startSandbox(ctx, cfg)
	require.NoError(t, err)
	defer host.close()

	st := store.New()
	st.FinishBoot()
	st.UpdateProgram(program.FromFragments("function update() { throw new Error('boom') }\n"))
	st.SetScreen(screen.Run)

	view, err := evaluateOnce(ctx, newController(cfg, st, host, nil, nil), host)
	require.NoError(t, err)
	require.Len(t, view.Errors, 1)
	assert.Equal(t, "runtime", view.Errors[0].Kind)
	assert.Contains(t, view.Errors[0].Message, "boom")
}
