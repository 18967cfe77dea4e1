// Package controller drives evaluation of the current program in the sandbox. It decides
// when to evaluate, what to send, and how replies change host state.
//
// All decisions happen on a single event-loop goroutine started by Run. Store changes,
// surface lifecycle, debounced resizes, validation results and sandbox replies are all
// turned into events for that loop, so controller state needs no locking apart from the
// view snapshot read by other goroutines.
package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dyluth/playbox/internal/debounce"
	"github.com/dyluth/playbox/internal/lint"
	"github.com/dyluth/playbox/internal/persist"
	"github.com/dyluth/playbox/internal/program"
	"github.com/dyluth/playbox/internal/sandbox"
	"github.com/dyluth/playbox/internal/screen"
	"github.com/dyluth/playbox/internal/store"
	"github.com/dyluth/playbox/internal/tokens"
	"github.com/dyluth/playbox/pkg/gist"
)

// ErrAlreadyRunning is returned when Run is called twice.
var ErrAlreadyRunning = errors.New("controller already running")

// Phase is the lifecycle of the sandbox surface as seen by the controller.
type Phase int

const (
	Idle Phase = iota
	Loading
	Ready
)

func (p Phase) String() string {
	switch p {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	default:
		return "idle"
	}
}

// Saver persists the current state to the gist store.
type Saver interface {
	Save(ctx context.Context, st store.State) (*gist.Gist, error)
}

// DraftRecorder keeps a local copy of every program that was sent.
type DraftRecorder interface {
	Save(ctx context.Context, p program.Program) (bool, error)
}

// Options tunes a controller. Zero values select the defaults.
type Options struct {
	Clock          clock.Clock
	ResizeDebounce time.Duration
	TokenInterval  time.Duration
	Renderer       sandbox.Renderer
	Viewport       sandbox.Viewport
	Drafts         DraftRecorder
}

// View is what the host displays next to the sandbox surface.
type View struct {
	Phase  Phase
	Errors []sandbox.ErrorEntry
	Log    sandbox.LogValue
	Height int
	Tokens string
	Title  string
}

type surfaceLoaded struct{}

type resized struct {
	viewport sandbox.Viewport
}

type replied struct {
	generation uint64
	reply      sandbox.Reply
}

type validated struct {
	key    string
	req    sandbox.Request
	data   []byte
	errors []sandbox.ErrorEntry
	err    error
}

// Controller is the evaluation controller.
type Controller struct {
	store     *store.Store
	surface   *sandbox.Surface
	channel   *sandbox.Channel
	validator lint.Validator
	saver     Saver
	drafts    DraftRecorder
	estimator *tokens.Estimator
	resize    *debounce.Debouncer
	renderer  sandbox.Renderer

	events  chan any
	updates chan struct{}
	done    chan struct{}
	running atomic.Bool

	mu   sync.Mutex
	view View

	// Owned by the loop goroutine.
	phase      Phase
	viewport   sandbox.Viewport
	source     string
	lastSent   []byte
	pending    string
	generation uint64
}

// New creates a controller for the given surface. saver may be nil, in which case save
// shortcuts are ignored.
func New(st *store.Store, surface *sandbox.Surface, validator lint.Validator, saver Saver, opts Options) *Controller {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}

	return &Controller{
		store:     st,
		surface:   surface,
		channel:   sandbox.NewChannel(surface),
		validator: validator,
		saver:     saver,
		drafts:    opts.Drafts,
		estimator: tokens.NewEstimator(opts.Clock, opts.TokenInterval),
		resize:    debounce.New(opts.Clock, opts.ResizeDebounce),
		renderer:  opts.Renderer,
		viewport:  opts.Viewport,
		events:    make(chan any, 64),
		updates:   make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
}

// View returns a snapshot of what should be displayed.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := c.view
	if c.view.Errors != nil {
		v.Errors = make([]sandbox.ErrorEntry, len(c.view.Errors))
		copy(v.Errors, c.view.Errors)
	}
	return v
}

// Updates fires after a reply changed the view. Signals are coalesced: a reader that
// falls behind sees one pending signal, not one per reply.
func (c *Controller) Updates() <-chan struct{} {
	return c.updates
}

func (c *Controller) notify() {
	select {
	case c.updates <- struct{}{}:
	default:
	}
}

// SurfaceLoaded signals that the sandbox surface finished (re)loading.
func (c *Controller) SurfaceLoaded() {
	c.post(surfaceLoaded{})
}

// Resize reports a new host viewport. Bursts are coalesced into one trailing evaluation.
func (c *Controller) Resize(v sandbox.Viewport) {
	c.resize.Trigger(func() {
		c.post(resized{viewport: v})
	})
}

func (c *Controller) post(ev any) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

// Run starts the event loop and blocks until ctx is cancelled. The store subscription
// and the resize timer live exactly as long as Run.
func (c *Controller) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	changes, unsubscribe := c.store.Subscribe()
	defer func() {
		unsubscribe()
		c.resize.Stop()
		c.channel.Close()
		close(c.done)
		log.Printf("[INFO] [Controller] Stopped")
	}()

	c.refresh(c.store.State())
	c.setPhase(Loading)
	log.Printf("[INFO] [Controller] Waiting for sandbox surface")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changes:
			if c.phase == Ready {
				c.evaluate(ctx)
			} else {
				c.refresh(c.store.State())
			}
		case ev := <-c.events:
			c.handle(ctx, ev)
		}
	}
}

func (c *Controller) handle(ctx context.Context, ev any) {
	switch ev := ev.(type) {
	case surfaceLoaded:
		log.Printf("[INFO] [Controller] Sandbox surface ready")
		c.setPhase(Ready)
		c.lastSent = nil
		c.evaluate(ctx)
	case resized:
		c.viewport = ev.viewport
		c.evaluate(ctx)
	case validated:
		c.onValidated(ctx, ev)
	case replied:
		c.onReply(ctx, ev)
	}
}

// evaluate is the single entry point for every trigger.
func (c *Controller) evaluate(ctx context.Context) {
	st := c.store.State()
	c.refresh(st)

	if c.phase != Ready {
		return
	}

	req := c.request(st)
	data, err := json.Marshal(req)
	if err != nil {
		log.Printf("[ERROR] [Controller] Failed to encode request: %v", err)
		return
	}

	// Whatever validation is in flight now belongs to an older snapshot.
	key := string(data)
	c.pending = key

	if bytes.Equal(data, c.lastSent) {
		return
	}

	if st.Screen == screen.Boot {
		c.send(ctx, req, data, false)
		return
	}

	go func() {
		errs, err := c.validator.Validate(ctx, req.Game)
		c.post(validated{key: key, req: req, data: data, errors: errs, err: err})
	}()
}

// request builds the outgoing snapshot. The boot screen always shows the boot program.
// IsDoneFetching only requires that no fetch is in flight, not that a gist was loaded,
// so a failed fetch still lets boot finish.
func (c *Controller) request(st store.State) sandbox.Request {
	var req sandbox.Request
	if st.Screen == screen.Boot {
		req = sandbox.NewRequest(program.Boot())
		req.Callbacks.EndCallback = sandbox.CallbackFinishBoot
	} else {
		req = sandbox.NewRequest(st.Program)
	}

	req.Run = screen.Runs(st.Screen)
	req.IsNew = program.IsBlank(st.Program) && st.Gist.Empty()
	req.IsDoneFetching = st.Screen == screen.Boot && !st.Gist.Fetching
	req.UseFrameBufferRenderer = c.renderer == sandbox.RendererFramebuffer
	req.Viewport = c.viewport
	return req
}

// refresh updates derived display values and clears the log when the source changed.
func (c *Controller) refresh(st store.State) {
	p := st.Program
	if st.Screen == screen.Boot {
		p = program.Boot()
	}
	source := program.Assemble(p)
	estimate := c.estimator.Estimate(p)

	c.mu.Lock()
	defer c.mu.Unlock()

	if source != c.source {
		c.source = source
		c.view.Log = sandbox.LogValue{}
	}
	c.view.Tokens = estimate
	c.view.Title = program.Title(p)
}

func (c *Controller) onValidated(ctx context.Context, ev validated) {
	if ev.key != c.pending {
		return
	}
	if ev.err != nil {
		if !errors.Is(ev.err, context.Canceled) {
			log.Printf("[ERROR] [Controller] Validation failed: %v", ev.err)
		}
		return
	}
	if len(ev.errors) > 0 {
		log.Printf("[WARN] [Controller] %s: %s", ev.errors[0].Kind, ev.errors[0].Message)
		return
	}
	c.send(ctx, ev.req, ev.data, true)
}

func (c *Controller) send(ctx context.Context, req sandbox.Request, data []byte, record bool) {
	if c.phase != Ready || bytes.Equal(data, c.lastSent) {
		return
	}

	c.generation++
	generation := c.generation

	err := c.channel.Send(req, func(r sandbox.Reply) {
		c.post(replied{generation: generation, reply: r})
	})
	if err != nil {
		log.Printf("[ERROR] [Controller] Failed to send evaluation: %v", err)
		return
	}
	c.lastSent = data
	log.Printf("[DEBUG] [Controller] Sent evaluation: generation=%d run=%t bytes=%d", generation, req.Run, len(data))

	if record && c.drafts != nil {
		if _, err := c.drafts.Save(ctx, c.store.State().Program); err != nil {
			log.Printf("[WARN] [Controller] Failed to record draft: %v", err)
		}
	}
}

// onReply applies each field of a reply independently.
func (c *Controller) onReply(ctx context.Context, ev replied) {
	if ev.generation != c.generation {
		return
	}
	r := ev.reply

	if r.Callback == sandbox.CallbackFinishBoot {
		c.store.FinishBoot()
	}

	c.mu.Lock()
	if r.Height != nil && c.surface.Exists() {
		c.surface.Resize(*r.Height)
		c.view.Height = *r.Height
	}
	if r.HasErrors() {
		c.view.Errors = r.Errors
	}
	if r.Log.Present {
		c.view.Log = r.Log
	}
	c.mu.Unlock()
	c.notify()

	if r.Shortcut != "" {
		c.onShortcut(ctx, r.Shortcut)
	}
}

func (c *Controller) onShortcut(ctx context.Context, shortcut sandbox.Shortcut) {
	st := c.store.State()

	switch shortcut {
	case sandbox.ShortcutSave:
		if st.Token == nil || st.Token.Value == "" || !persist.CanRecord(st) {
			return
		}
		if c.saver == nil {
			log.Printf("[WARN] [Controller] Save requested but no gist store is configured")
			return
		}
		go func() {
			// Failures are logged by the saver; the editor carries on either way.
			_, _ = c.saver.Save(ctx, st)
		}()
	case sandbox.ShortcutPrevious:
		c.store.SetScreen(screen.Previous(st.Screen))
	case sandbox.ShortcutNext:
		c.store.SetScreen(screen.Next(st.Screen))
	default:
		log.Printf("[DEBUG] [Controller] Ignoring unknown shortcut %q", shortcut)
	}
}

func (c *Controller) setPhase(p Phase) {
	c.phase = p
	c.mu.Lock()
	c.view.Phase = p
	c.mu.Unlock()
}
