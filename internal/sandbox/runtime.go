package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/dop251/goja"
)

// ErrRuntimeStopped is returned when delivering to a runtime whose loop has exited.
var ErrRuntimeStopped = errors.New("sandbox runtime stopped")

const (
	// DefaultBudget is how long a single evaluation may run before it is interrupted.
	DefaultBudget = 2 * time.Second

	maxCallStack = 512
	inboxSize    = 16
)

var errBudgetExceeded = errors.New("execution budget exceeded")

// keyShortcuts maps key chords pressed inside the sandbox to host shortcuts.
var keyShortcuts = map[string]Shortcut{
	"ctrl+s": ShortcutSave,
	"meta+s": ShortcutSave,
	"ctrl+[": ShortcutPrevious,
	"ctrl+]": ShortcutNext,
}

type delivery struct {
	data  []byte
	reply *Port
}

// Runtime executes programs in an embedded JavaScript VM on its own goroutine. It only
// talks to the host through encoded messages: requests arrive via Deliver, replies and
// shortcuts leave through the port that came with the latest request.
type Runtime struct {
	budget time.Duration

	inbox   chan delivery
	keys    chan string
	loaded  chan struct{}
	stopped chan struct{}
	start   sync.Once

	mu    sync.Mutex
	port  *Port
	frame Frame
}

// NewRuntime creates a runtime. It does nothing until Start is called.
func NewRuntime() *Runtime {
	return &Runtime{
		budget:  DefaultBudget,
		inbox:   make(chan delivery, inboxSize),
		keys:    make(chan string, inboxSize),
		loaded:  make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// SetBudget changes the per-evaluation execution budget. Call before Start.
func (r *Runtime) SetBudget(d time.Duration) {
	if d > 0 {
		r.budget = d
	}
}

// Start launches the runtime loop. The loop exits when ctx is cancelled.
func (r *Runtime) Start(ctx context.Context) {
	r.start.Do(func() {
		go r.loop(ctx)
	})
}

// Loaded is closed once the runtime is ready to accept requests.
func (r *Runtime) Loaded() <-chan struct{} {
	return r.loaded
}

// Deliver queues an encoded request. Replies for it are posted on reply.
func (r *Runtime) Deliver(data []byte, reply *Port) error {
	d := delivery{data: append([]byte(nil), data...), reply: reply}
	select {
	case <-r.stopped:
		return ErrRuntimeStopped
	default:
	}
	select {
	case r.inbox <- d:
		return nil
	case <-r.stopped:
		return ErrRuntimeStopped
	}
}

// Press forwards a key chord to the runtime as if the user typed it inside the sandbox.
func (r *Runtime) Press(key string) error {
	select {
	case r.keys <- key:
		return nil
	case <-r.stopped:
		return ErrRuntimeStopped
	}
}

// LastFrame returns what the most recent evaluation drew.
func (r *Runtime) LastFrame() Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frame
}

func (r *Runtime) loop(ctx context.Context) {
	defer close(r.stopped)
	close(r.loaded)
	log.Printf("[DEBUG] [Sandbox] Runtime loaded")

	for {
		select {
		case <-ctx.Done():
			log.Printf("[DEBUG] [Sandbox] Runtime shutting down")
			return
		case d := <-r.inbox:
			r.handle(d)
		case key := <-r.keys:
			r.handleKey(key)
		}
	}
}

func (r *Runtime) handle(d delivery) {
	post := func(rep Reply) {
		if err := d.reply.Post(rep); err != nil && !errors.Is(err, ErrPortClosed) {
			log.Printf("[WARN] [Sandbox] Failed to post reply: %v", err)
		}
	}

	var req Request
	if err := json.Unmarshal(d.data, &req); err != nil {
		log.Printf("[WARN] [Sandbox] Rejecting malformed request: %v", err)
		post(Reply{Errors: []ErrorEntry{{Kind: "protocol", Message: err.Error()}}})
		return
	}
	if req.Type != MessageTypeCallCode {
		log.Printf("[WARN] [Sandbox] Ignoring message of type %q", req.Type)
		return
	}

	r.mu.Lock()
	if r.port != nil && r.port != d.reply {
		r.port.Close()
	}
	r.port = d.reply
	r.mu.Unlock()

	height := surfaceHeight(req.Viewport)
	post(Reply{Height: &height})

	frame, err := r.execute(req, post)

	r.mu.Lock()
	r.frame = frame
	r.mu.Unlock()

	if err != nil {
		post(Reply{Errors: []ErrorEntry{{Kind: "runtime", Message: err.Error()}}})
	} else {
		post(Reply{Errors: []ErrorEntry{}})
	}

	if req.Callbacks.EndCallback == CallbackFinishBoot && req.IsDoneFetching {
		post(Reply{Callback: CallbackFinishBoot})
	}
}

func (r *Runtime) handleKey(key string) {
	shortcut, ok := keyShortcuts[key]
	if !ok {
		return
	}

	r.mu.Lock()
	port := r.port
	r.mu.Unlock()
	if port == nil {
		return
	}

	if err := port.Post(Reply{Shortcut: shortcut}); err != nil && !errors.Is(err, ErrPortClosed) {
		log.Printf("[WARN] [Sandbox] Failed to post shortcut: %v", err)
	}
}

// execute runs the program once. When req.Run is set the lifecycle functions init,
// update and draw are each called once with a shared state object.
func (r *Runtime) execute(req Request, post func(Reply)) (Frame, error) {
	cv := newCanvas(req.UseFrameBufferRenderer)

	vm := goja.New()
	vm.SetMaxCallStackSize(maxCallStack)

	timer := time.AfterFunc(r.budget, func() {
		vm.Interrupt(errBudgetExceeded)
	})
	defer timer.Stop()

	if err := install(vm, req, cv, post); err != nil {
		return Frame{}, err
	}

	if _, err := vm.RunScript("game.js", req.Game); err != nil {
		return cv.frame(), describe(err)
	}

	if req.Run {
		state := vm.NewObject()
		for _, name := range []string{"init", "update", "draw"} {
			fn, ok := goja.AssertFunction(vm.Get(name))
			if !ok {
				continue
			}
			if _, err := fn(goja.Undefined(), state); err != nil {
				return cv.frame(), describe(err)
			}
		}
	}

	return cv.frame(), nil
}

// install exposes the game API to the VM.
func install(vm *goja.Runtime, req Request, cv canvas, post func(Reply)) error {
	api := map[string]any{
		"log": func(call goja.FunctionCall) goja.Value {
			arg := call.Argument(0)
			if goja.IsUndefined(arg) {
				return goja.Undefined()
			}
			raw := json.RawMessage("null")
			if !goja.IsNull(arg) {
				data, err := json.Marshal(arg.Export())
				if err != nil {
					panic(vm.NewGoError(err))
				}
				raw = data
			}
			post(Reply{Log: NewLogValue(raw)})
			return goja.Undefined()
		},
		"cls":   func(c int) { cv.clear(c) },
		"pset":  func(x, y, c int) { cv.set(x, y, c) },
		"print": func(s string, x, y, c int) { cv.text(s, x, y, c) },
		"sprite": func(id, x, y int) {
			for dy, row := range req.Sprites[strconv.Itoa(id)] {
				for dx, ch := range row {
					c, err := strconv.ParseUint(string(ch), 16, 8)
					if err != nil {
						continue // transparent
					}
					cv.set(x+dx, y+dy, int(c))
				}
			}
		},
		"mget": func(x, y int) int {
			if y < 0 || y >= len(req.Map) || x < 0 || x >= len(req.Map[y]) {
				return -1
			}
			return req.Map[y][x]
		},
	}

	for name, fn := range api {
		if err := vm.Set(name, fn); err != nil {
			return err
		}
	}
	return nil
}

func describe(err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return errBudgetExceeded
	}
	var ex *goja.Exception
	if errors.As(err, &ex) {
		return errors.New(ex.Value().String())
	}
	return err
}
